package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/outfitters-agent/agent/contract"
	openrouterx "github.com/tanpawarit/outfitters-agent/pkg/openrouter"
)

// Capability names one oracle operation that can run on its own model.
type Capability string

const (
	CapabilityClassifier  Capability = "classifier"
	CapabilityExtractor   Capability = "extractor"
	CapabilitySufficiency Capability = "sufficiency"
	CapabilityResponder   Capability = "responder"
)

type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"1000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.2"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	ClassifierModel        string  `envconfig:"CLASSIFIER_MODEL" split_words:"true"`
	ExtractorModel         string  `envconfig:"EXTRACTOR_MODEL" split_words:"true"`
	SufficiencyModel       string  `envconfig:"SUFFICIENCY_MODEL" split_words:"true"`
	ResponderModel         string  `envconfig:"RESPONDER_MODEL" split_words:"true"`
	ClassifierTemperature  float32 `envconfig:"CLASSIFIER_TEMPERATURE" split_words:"true" default:"0"`
	ExtractorTemperature   float32 `envconfig:"EXTRACTOR_TEMPERATURE" split_words:"true" default:"0"`
	SufficiencyTemperature float32 `envconfig:"SUFFICIENCY_TEMPERATURE" split_words:"true" default:"0"`
	ResponderTemperature   float32 `envconfig:"RESPONDER_TEMPERATURE" split_words:"true" default:"-1"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: openrouter api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	return nil
}

// OpenRouterFor resolves the model settings for one capability. Empty model
// names and negative temperatures fall back to the defaults.
func (c Config) OpenRouterFor(capability Capability) openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	var override string
	overrideTemp := float32(-1)
	switch capability {
	case CapabilityClassifier:
		override, overrideTemp = c.ClassifierModel, c.ClassifierTemperature
	case CapabilityExtractor:
		override, overrideTemp = c.ExtractorModel, c.ExtractorTemperature
	case CapabilitySufficiency:
		override, overrideTemp = c.SufficiencyModel, c.SufficiencyTemperature
	case CapabilityResponder:
		override, overrideTemp = c.ResponderModel, c.ResponderTemperature
	}
	if v := strings.TrimSpace(override); v != "" {
		modelName = v
	}
	if overrideTemp >= 0 {
		temp = overrideTemp
	}

	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}
