package narration

// Option catalogs shown by the wizard. Labels and directives are
// Korean because the narration output itself is Korean.

type StyleOption struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Prompt      string `json:"prompt"`
}

type ToneOption struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

type VoiceOption struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Gender      string `json:"gender"`
}

var StyleOptions = []StyleOption{
	{
		ID:          "sermon",
		Label:       "설교 해설 (Sermon)",
		Description: "깊이 있는 울림, 철학적이고 차분한 문체",
		Prompt:      "깊이 있는 울림과 묵직한 어휘를 사용합니다. 핵심 가치와 본질을 탐구하는 철학적이고 차분한 문체로 작성합니다.",
	},
	{
		ID:          "new_believer",
		Label:       "새신자 (New Believer)",
		Description: "따뜻하고 포용적인 단어, 곁에 있음을 전하는 문체",
		Prompt:      "낯선 공간에서의 긴장을 풀어주는 따뜻하고 포용적인 단어를 선택합니다. 직접적인 환영 인사(\"환영합니다\" 등 금지)보다는 곁에 있음을 전하는 문체로 작성합니다.",
	},
	{
		ID:          "announcement",
		Label:       "교회 광고 (Announcement)",
		Description: "리듬감 있는 짧은 문장, 밝고 경쾌함",
		Prompt:      "리듬감 있는 짧은 문장을 사용하며, 함께할 때의 유익과 기쁨이 느껴지는 밝고 경쾌한 문체로 작성합니다. 딱딱한 말(\"공지합니다\" 등)을 피하고 활기차게 전달합니다.",
	},
	{
		ID:          "kids",
		Label:       "어린이 (Kids)",
		Description: "7-14세 눈높이, 쉬운 단어, ~요 체",
		Prompt:      "7-14세 어린이들에게 적합하도록 어려운 단어를 쉽게 풀어 설명합니다. 비속어는 사용하지 않으며 친근한 \"~요\"체를 사용합니다.",
	},
	{
		ID:          "youth",
		Label:       "청년 (Youth)",
		Description: "18-30세 공감, 격려와 위로",
		Prompt:      "18-30세 청년들이 공감할 수 있는 문체입니다. 공감과 격려가 많이 담겨있도록 작성합니다.",
	},
	{
		ID:          "general",
		Label:       "일반인 (General)",
		Description: "일상의 언어, 보편적인 위로",
		Prompt:      "일상의 언어로 공감을 건넵니다. 삶의 지친 마음을 보듬는 보편적인 위로의 문체로 작성하되, 기독교 핵심 고유명사는 훼손하지 않습니다.",
	},
}

var ToneOptions = []ToneOption{
	{ID: "calm", Label: "차분하고 신뢰감 있는", Description: "Calm and trustworthy"},
	{ID: "intellectual", Label: "지적인 톤", Description: "Intellectual / Sophisticated"},
	{ID: "clear", Label: "명확한 발음", Description: "Clear articulation"},
	{ID: "moderate", Label: "적절한 속도", Description: "Moderate pacing"},
	{ID: "professional", Label: "전문적인 느낌", Description: "Professional / Formal"},
}

var VoiceOptions = []VoiceOption{
	{ID: "zephyr", Name: "Zephyr", Description: "밝은 여성 (High pitch)", Gender: "Female"},
	{ID: "puck", Name: "Puck", Description: "안정감있는 남성 (Middle pitch)", Gender: "Male"},
	{ID: "charon", Name: "Charon", Description: "전문적인 남성 (Low pitch)", Gender: "Male"},
	{ID: "kore", Name: "Kore", Description: "온화한 여성 (Middle pitch)", Gender: "Female"},
	{ID: "fenrir", Name: "Fenrir", Description: "중후한 남성 (Low-mid pitch)", Gender: "Male"},
	{ID: "leda", Name: "Leda", Description: "밝은 여성 (Youthful, High pitch)", Gender: "Female"},
	{ID: "orus", Name: "Orus", Description: "확고한 남성 (Low-mid pitch)", Gender: "Male"},
	{ID: "aoede", Name: "Aoede", Description: "안정감있는 여성 (Middle pitch)", Gender: "Female"},
}

// StylePromptFor resolves a style ID to its generation directive. An
// unknown ID falls back to the general style.
func StylePromptFor(id string) string {
	for _, s := range StyleOptions {
		if s.ID == id {
			return s.Prompt
		}
	}
	return StyleOptions[len(StyleOptions)-1].Prompt
}

// ToneLabelFor resolves a tone ID to its label text.
func ToneLabelFor(id string) string {
	for _, t := range ToneOptions {
		if t.ID == id {
			return t.Label
		}
	}
	return ToneOptions[0].Label
}
