package narration

import (
	"errors"
	"fmt"
	"os"
	"strings"

	anthropicclient "github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	openaiclient "github.com/openai/openai-go/v2"
	openaioption "github.com/openai/openai-go/v2/option"
	jetapi "go.jetify.com/ai/api"
	jetanthropic "go.jetify.com/ai/provider/anthropic"
	jetopenai "go.jetify.com/ai/provider/openai"

	appcfg "github.com/ai-narray/core/internal/config"
)

// CredentialProvider hands out the freshest usable provider config.
// It is re-resolved on every generation call so credential changes
// made mid-session are picked up without caching staleness.
type CredentialProvider interface {
	Resolve() (*appcfg.Provider, error)
}

// ConfigCredentials resolves from the application config. When a
// provider points at a key file, the file is re-read on every Resolve
// so an external key vault can rotate it underneath us.
type ConfigCredentials struct {
	cfg appcfg.AIConfig
}

func NewConfigCredentials(cfg appcfg.AIConfig) *ConfigCredentials {
	return &ConfigCredentials{cfg: cfg}
}

func (c *ConfigCredentials) Resolve() (*appcfg.Provider, error) {
	for _, p := range c.cfg.Providers {
		if !p.Enabled {
			continue
		}
		selected := p
		if selected.KeyFile != "" {
			data, err := os.ReadFile(selected.KeyFile)
			if err != nil {
				return nil, fmt.Errorf("read key file: %w", err)
			}
			selected.APIKey = strings.TrimSpace(string(data))
		}
		if strings.TrimSpace(selected.APIKey) == "" {
			continue
		}
		return &selected, nil
	}
	return nil, ErrNoProvider
}

func isAnthropicProviderType(raw string) bool {
	return normalizeProviderType(raw) == "anthropic"
}

func isOpenAICompatibleProviderType(raw string) bool {
	t := normalizeProviderType(raw)
	return t == "openai-compatible" || t == "openaicompatible"
}

func normalizeProviderType(raw string) string {
	t := strings.ToLower(strings.TrimSpace(raw))
	t = strings.ReplaceAll(t, "_", "-")
	t = strings.ReplaceAll(t, " ", "")
	return t
}

func newOpenAIClient(p *appcfg.Provider) openaiclient.Client {
	opts := []openaioption.RequestOption{
		openaioption.WithAPIKey(strings.TrimSpace(p.APIKey)),
		// The backoff wrapper owns all retry behavior.
		openaioption.WithMaxRetries(0),
	}
	if endpoint := strings.TrimSpace(p.Endpoint); endpoint != "" {
		opts = append(opts, openaioption.WithBaseURL(strings.TrimRight(endpoint, "/")))
	}
	return openaiclient.NewClient(opts...)
}

func newAnthropicClient(p *appcfg.Provider) anthropicclient.Client {
	opts := []anthropicoption.RequestOption{
		anthropicoption.WithAPIKey(strings.TrimSpace(p.APIKey)),
		anthropicoption.WithMaxRetries(0),
	}
	if endpoint := strings.TrimSpace(p.Endpoint); endpoint != "" {
		opts = append(opts, anthropicoption.WithBaseURL(strings.TrimRight(endpoint, "/")))
	}
	return anthropicclient.NewClient(opts...)
}

// buildLanguageModel wraps the provider in a jetify language model,
// used by the credential probe.
func buildLanguageModel(p *appcfg.Provider, modelID string) (jetapi.LanguageModel, error) {
	if p == nil {
		return nil, errors.New("AI provider is nil")
	}
	if strings.TrimSpace(p.APIKey) == "" {
		return nil, errors.New("AI provider api key is empty")
	}
	if modelID == "" {
		modelID = strings.TrimSpace(p.DefaultModel)
	}

	if isAnthropicProviderType(p.Type) {
		if modelID == "" {
			modelID = "claude-haiku-4-5-20251001"
		}
		client := newAnthropicClient(p)
		return jetanthropic.NewLanguageModel(modelID, jetanthropic.WithClient(client)), nil
	}

	if modelID == "" {
		modelID = "gpt-4o-mini"
	}
	client := newOpenAIClient(p)
	return jetopenai.NewLanguageModel(modelID, jetopenai.WithClient(client)), nil
}
