package narration

import "fmt"

func buildSingleScriptPrompt(stylePrompt, toneLabel string) string {
	return fmt.Sprintf(`이미지를 분석하여 다음 지침에 따라 130자 이내의 한국어 나레이션 스크립트를 작성하세요.
스타일: %s
톤: %s`, stylePrompt, toneLabel)
}

func buildBatchScriptPrompt(stylePrompt, toneLabel string, count int) string {
	return fmt.Sprintf(`당신은 전문 영상 스크립트 작가입니다.
제공된 %d개의 이미지들을 순서대로 분석하여, 전체적인 흐름이 이어지는 고품질 나레이션 스크립트를 작성하세요.

[스타일 지침]
%s

[톤 지침]
%s

[필수 제약사항]
1. 각 이미지별로 독립적이면서도 앞뒤 내용이 자연스럽게 연결되어야 합니다.
2. 각 페이지당 반드시 공백 포함 130글자 이내로 작성하세요.
3. 각 항목은 슬라이드 번호(0부터 시작)와 스크립트를 담은 JSON 객체로 출력하세요.
4. 한국어로 작성하세요.`, count, stylePrompt, toneLabel)
}

// probePrompt is intentionally tiny: the call exists only to confirm
// the credential is usable and billable.
const probePrompt = "ping"
