package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/Chative-Dental-Assistant/agent/contract"
	openrouterx "github.com/tanpawarit/Chative-Dental-Assistant/pkg/openrouter"
)

// Role selects the per-call model overrides.
type Role string

const (
	RoleMemory     Role = "memory"
	RoleClassifier Role = "classifier"
	RoleFormulator Role = "formulator"
)

type Config struct {
	BaseURL            string        `split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `split_words:"true"`
	SecretID           string        `envconfig:"OPENAI_SECRET_ID"`
	Model              string        `split_words:"true" default:"openai/gpt-4.1"`
	MaxCompletionToken int           `split_words:"true" default:"120"`
	Temperature        float32       `split_words:"true" default:"0.2"`
	Timeout            time.Duration `split_words:"true" default:"30s"`
	SiteURL            string        `split_words:"true"`
	SiteName           string        `split_words:"true"`

	MemoryModel           string  `split_words:"true"`
	ClassifierModel       string  `split_words:"true"`
	FormulatorModel       string  `split_words:"true"`
	MemoryTemperature     float32 `split_words:"true" default:"-1"`
	ClassifierTemperature float32 `split_words:"true" default:"0"`
	FormulatorTemperature float32 `split_words:"true" default:"-1"`
	ClassifierMaxTokens   int     `split_words:"true" default:"16"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" && strings.TrimSpace(c.SecretID) == "" {
		return fmt.Errorf("%w: LLM_API_KEY or LLM_OPENAI_SECRET_ID is required", contractx.ErrConfig)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrConfig)
	}
	return nil
}

// OpenRouterFor returns the client config for role using apiKey, which the
// caller resolves once at startup.
func (c Config) OpenRouterFor(role Role, apiKey string) openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature
	maxTokens := c.MaxCompletionToken

	switch role {
	case RoleMemory:
		if v := strings.TrimSpace(c.MemoryModel); v != "" {
			modelName = v
		}
		if c.MemoryTemperature >= 0 {
			temp = c.MemoryTemperature
		}
	case RoleClassifier:
		if v := strings.TrimSpace(c.ClassifierModel); v != "" {
			modelName = v
		}
		if c.ClassifierTemperature >= 0 {
			temp = c.ClassifierTemperature
		}
		if c.ClassifierMaxTokens > 0 {
			maxTokens = c.ClassifierMaxTokens
		}
	case RoleFormulator:
		if v := strings.TrimSpace(c.FormulatorModel); v != "" {
			modelName = v
		}
		if c.FormulatorTemperature >= 0 {
			temp = c.FormulatorTemperature
		}
	}

	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(apiKey),
		Model:              modelName,
		MaxCompletionToken: maxTokens,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}
