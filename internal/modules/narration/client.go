package narration

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	anthropicclient "github.com/anthropics/anthropic-sdk-go"
	"github.com/invopop/jsonschema"
	openaiclient "github.com/openai/openai-go/v2"
	jetai "go.jetify.com/ai"
	jetapi "go.jetify.com/ai/api"

	appcfg "github.com/ai-narray/core/internal/config"
)

const (
	defaultSpeechModel  = "gpt-4o-mini-tts"
	scriptMaxTokens     = 1024
	batchMaxTokensSlice = 512
)

// GenerationClient talks to the configured AI provider. It is
// stateless: every call resolves credentials and constructs a fresh
// SDK client.
type GenerationClient struct {
	creds       CredentialProvider
	scriptModel string
	speechModel string
}

func NewGenerationClient(creds CredentialProvider, scriptModel, speechModel string) *GenerationClient {
	if speechModel == "" {
		speechModel = defaultSpeechModel
	}
	return &GenerationClient{
		creds:       creds,
		scriptModel: scriptModel,
		speechModel: speechModel,
	}
}

func (g *GenerationClient) GenerateScript(ctx context.Context, img Image, stylePrompt, toneLabel string) (string, error) {
	provider, err := g.creds.Resolve()
	if err != nil {
		return "", err
	}
	prompt := buildSingleScriptPrompt(stylePrompt, toneLabel)

	var raw string
	if isAnthropicProviderType(provider.Type) {
		raw, err = g.anthropicVision(ctx, provider, []Image{img}, prompt)
	} else {
		raw, err = g.openaiVision(ctx, provider, []Image{img}, prompt, nil)
	}
	if err != nil {
		return "", err
	}

	script := strings.TrimSpace(raw)
	if script == "" {
		return "", ErrEmptyScript
	}
	return script, nil
}

type batchScriptItem struct {
	Index  int    `json:"index" jsonschema_description:"슬라이드 번호 (0부터 시작)"`
	Script string `json:"script" jsonschema_description:"해당 슬라이드의 나레이션 스크립트"`
}

type batchScriptPayload struct {
	Items []batchScriptItem `json:"items" jsonschema_description:"슬라이드별 나레이션 스크립트 목록"`
}

var batchResponseSchema = generateSchema[batchScriptPayload]()

func generateSchema[T any]() any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

func (g *GenerationClient) GenerateScriptsBatch(ctx context.Context, imgs []Image, stylePrompt, toneLabel string) ([]string, error) {
	provider, err := g.creds.Resolve()
	if err != nil {
		return nil, err
	}
	prompt := buildBatchScriptPrompt(stylePrompt, toneLabel, len(imgs))

	var raw string
	if isAnthropicProviderType(provider.Type) {
		raw, err = g.anthropicVision(ctx, provider, imgs, prompt+"\n\nJSON 객체 {\"items\": [{\"index\": 0, \"script\": \"...\"}, ...]} 형태로만 응답하세요.")
	} else {
		format := &openaiclient.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openaiclient.ResponseFormatJSONSchemaParam{
				JSONSchema: openaiclient.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "slide_scripts",
					Schema: batchResponseSchema,
					Strict: openaiclient.Bool(true),
				},
			},
		}
		raw, err = g.openaiVision(ctx, provider, imgs, prompt, format)
	}
	if err != nil {
		return nil, err
	}
	return parseBatchScripts(raw)
}

// parseBatchScripts decodes the structured batch response and restores
// submission order. The service is not guaranteed to preserve it.
func parseBatchScripts(raw string) ([]string, error) {
	cleaned := stripCodeFences(raw)

	var payload batchScriptPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil || len(payload.Items) == 0 {
		// Some providers answer with a bare array instead of the
		// requested object envelope.
		if err2 := json.Unmarshal([]byte(cleaned), &payload.Items); err2 != nil || len(payload.Items) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrBatchParse, firstNonNil(err, err2))
		}
	}

	items := payload.Items
	sort.Slice(items, func(i, j int) bool { return items[i].Index < items[j].Index })

	scripts := make([]string, 0, len(items))
	for _, item := range items {
		scripts = append(scripts, strings.TrimSpace(item.Script))
	}
	return scripts, nil
}

func stripCodeFences(raw string) string {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```JSON")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	return strings.TrimSpace(cleaned)
}

func firstNonNil(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return fmt.Errorf("empty batch response")
}

func (g *GenerationClient) GenerateSpeech(ctx context.Context, text, voice string) ([]byte, error) {
	provider, err := g.creds.Resolve()
	if err != nil {
		return nil, err
	}
	if isAnthropicProviderType(provider.Type) {
		return nil, fmt.Errorf("provider %s does not support speech synthesis", provider.ID)
	}

	client := newOpenAIClient(provider)
	resp, err := client.Audio.Speech.New(ctx, openaiclient.AudioSpeechNewParams{
		Model:          openaiclient.SpeechModel(g.speechModel),
		Voice:          openaiclient.AudioSpeechNewParamsVoice(voice),
		Input:          text,
		ResponseFormat: openaiclient.AudioSpeechNewParamsResponseFormatPCM,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrNoAudioData
	}
	return data, nil
}

func (g *GenerationClient) Probe(ctx context.Context) error {
	provider, err := g.creds.Resolve()
	if err != nil {
		return err
	}
	model, err := buildLanguageModel(provider, g.scriptModel)
	if err != nil {
		return err
	}
	_, err = jetai.GenerateText(ctx,
		[]jetapi.Message{&jetapi.UserMessage{Content: jetapi.ContentFromText(probePrompt)}},
		jetai.WithModel(model),
		jetai.WithMaxOutputTokens(8),
	)
	return err
}

func (g *GenerationClient) openaiVision(ctx context.Context, provider *appcfg.Provider, imgs []Image, prompt string, format *openaiclient.ChatCompletionNewParamsResponseFormatUnion) (string, error) {
	client := newOpenAIClient(provider)

	model := g.scriptModel
	if model == "" {
		model = strings.TrimSpace(provider.DefaultModel)
	}
	if model == "" {
		model = "gpt-4o-mini"
	}

	parts := make([]openaiclient.ChatCompletionContentPartUnionParam, 0, len(imgs)+1)
	for _, img := range imgs {
		parts = append(parts, openaiclient.ImageContentPart(openaiclient.ChatCompletionContentPartImageImageURLParam{
			URL: dataURL(img),
		}))
	}
	parts = append(parts, openaiclient.TextContentPart(prompt))

	params := openaiclient.ChatCompletionNewParams{
		Model:               openaiclient.ChatModel(model),
		Messages:            []openaiclient.ChatCompletionMessageParamUnion{openaiclient.UserMessage(parts)},
		MaxCompletionTokens: openaiclient.Int(int64(scriptMaxTokens + batchMaxTokensSlice*len(imgs))),
	}
	if format != nil {
		params.ResponseFormat = *format
	}

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyScript
	}
	return resp.Choices[0].Message.Content, nil
}

func (g *GenerationClient) anthropicVision(ctx context.Context, provider *appcfg.Provider, imgs []Image, prompt string) (string, error) {
	client := newAnthropicClient(provider)

	model := g.scriptModel
	if model == "" {
		model = strings.TrimSpace(provider.DefaultModel)
	}
	if model == "" {
		model = "claude-haiku-4-5-20251001"
	}

	blocks := make([]anthropicclient.ContentBlockParamUnion, 0, len(imgs)+1)
	for _, img := range imgs {
		blocks = append(blocks, anthropicclient.NewImageBlockBase64(img.MimeType, base64.StdEncoding.EncodeToString(img.Data)))
	}
	blocks = append(blocks, anthropicclient.NewTextBlock(prompt))

	msg, err := client.Messages.New(ctx, anthropicclient.MessageNewParams{
		Model:     anthropicclient.Model(model),
		MaxTokens: int64(scriptMaxTokens + batchMaxTokensSlice*len(imgs)),
		Messages: []anthropicclient.MessageParam{
			anthropicclient.NewUserMessage(blocks...),
		},
	})
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

func dataURL(img Image) string {
	return "data:" + img.MimeType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}
