package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	orchestration "github.com/koscakluka/ema-rehearse/core"
	"github.com/koscakluka/ema-rehearse/core/llms/provider"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the namespace prefix for all ema-rehearse environment variables.
const EnvPrefix = "EMA_REHEARSE_"

const (
	AudioBackendMiniaudio = "miniaudio"
	AudioBackendPortaudio = "portaudio"
)

const (
	defaultModel             = "openai/gpt-4o-mini"
	defaultInactivityTimeout = 2 * time.Second
	defaultEndpointing       = 300 * time.Millisecond
	defaultUtteranceEnd      = time.Second
)

// Config holds all application configuration. Secrets (API keys) are loaded
// exclusively from environment variables and never appear in the config file.
type Config struct {
	// Model is the response generator as "provider/model".
	Model      string `yaml:"model" json:"model" jsonschema:"example=openai/gpt-4o-mini,example=anthropic/claude-3-5-haiku-latest"`
	MaxTokens  int64  `yaml:"max_tokens" json:"max_tokens,omitempty" jsonschema:"minimum=1"`
	MaxHistory int    `yaml:"max_history" json:"max_history,omitempty" jsonschema:"minimum=1"`

	InactivityTimeout string `yaml:"inactivity_timeout" json:"inactivity_timeout,omitempty" jsonschema:"description=Silence after a partial before it is committed as final"`
	AudioBackend      string `yaml:"audio_backend" json:"audio_backend,omitempty" jsonschema:"enum=miniaudio,enum=portaudio"`
	// Speech turns on spoken replies. Without it replies are only shown.
	Speech bool `yaml:"speech" json:"speech"`

	Deepgram DeepgramConfig `yaml:"deepgram" json:"deepgram"`

	Scenario      string                   `yaml:"scenario" json:"scenario,omitempty" jsonschema:"description=Scenario selected at startup"`
	ScenariosFile string                   `yaml:"scenarios_file" json:"scenarios_file,omitempty" jsonschema:"description=YAML file with a scenarios list that is reloaded on change"`
	Scenarios     []orchestration.Scenario `yaml:"scenarios" json:"scenarios,omitempty"`

	// Secrets, from env vars only.
	DeepgramAPIKey string `yaml:"-" json:"-"`
	LLMAPIKey      string `yaml:"-" json:"-"`
}

type DeepgramConfig struct {
	Model        string `yaml:"model" json:"model,omitempty"`
	Language     string `yaml:"language" json:"language,omitempty"`
	Voice        string `yaml:"voice" json:"voice,omitempty"`
	Endpointing  string `yaml:"endpointing" json:"endpointing,omitempty"`
	UtteranceEnd string `yaml:"utterance_end" json:"utterance_end,omitempty"`
}

func defaults() Config {
	return Config{
		Model:             defaultModel,
		MaxTokens:         1024,
		MaxHistory:        20,
		InactivityTimeout: defaultInactivityTimeout.String(),
		AudioBackend:      AudioBackendMiniaudio,
		Speech:            true,
		Deepgram: DeepgramConfig{
			Model:        "nova-3",
			Language:     "en-US",
			Voice:        "aura-2-thalia-en",
			Endpointing:  defaultEndpointing.String(),
			UtteranceEnd: defaultUtteranceEnd.String(),
		},
	}
}

// Load reads configuration from a YAML file (if it exists), applies
// environment variable overrides, loads secrets, and validates the result.
// It returns the config, any validation warnings, and an error if the file
// exists but cannot be read or parsed.
func Load(path string) (Config, []string, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, nil, fmt.Errorf("read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if cfg.ScenariosFile != "" && !filepath.IsAbs(cfg.ScenariosFile) && path != "" {
		cfg.ScenariosFile = filepath.Join(filepath.Dir(path), cfg.ScenariosFile)
	}
	loadSecrets(&cfg)

	warnings := validate(&cfg)
	return cfg, warnings, nil
}

// ParsedInactivityTimeout returns InactivityTimeout as a time.Duration,
// falling back to 2s if the value is invalid.
func (c *Config) ParsedInactivityTimeout() time.Duration {
	return parseDuration(c.InactivityTimeout, defaultInactivityTimeout)
}

func (c *Config) ParsedEndpointing() time.Duration {
	return parseDuration(c.Deepgram.Endpointing, defaultEndpointing)
}

func (c *Config) ParsedUtteranceEnd() time.Duration {
	return parseDuration(c.Deepgram.UtteranceEnd, defaultUtteranceEnd)
}

// Provider returns the provider half of Model.
func (c *Config) Provider() string {
	providerName, _, err := provider.ParseModel(c.Model)
	if err != nil {
		return ""
	}
	return providerName
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv(EnvPrefix + "MAX_TOKENS"); v != "" {
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil && n > 0 {
			cfg.MaxTokens = n
		}
	}
	if v := os.Getenv(EnvPrefix + "INACTIVITY_TIMEOUT"); v != "" {
		cfg.InactivityTimeout = v
	}
	if v := os.Getenv(EnvPrefix + "AUDIO_BACKEND"); v != "" {
		cfg.AudioBackend = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv(EnvPrefix + "SPEECH"); v != "" {
		if speech, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.Speech = speech
		}
	}
	if v := os.Getenv(EnvPrefix + "DEEPGRAM_MODEL"); v != "" {
		cfg.Deepgram.Model = v
	}
	if v := os.Getenv(EnvPrefix + "DEEPGRAM_LANGUAGE"); v != "" {
		cfg.Deepgram.Language = v
	}
	if v := os.Getenv(EnvPrefix + "DEEPGRAM_VOICE"); v != "" {
		cfg.Deepgram.Voice = v
	}
	if v := os.Getenv(EnvPrefix + "SCENARIO"); v != "" {
		cfg.Scenario = v
	}
	if v := os.Getenv(EnvPrefix + "SCENARIOS_FILE"); v != "" {
		cfg.ScenariosFile = v
	}
}

func loadSecrets(cfg *Config) {
	cfg.DeepgramAPIKey = firstEnv(EnvPrefix+"DEEPGRAM_API_KEY", "DEEPGRAM_API_KEY")
	cfg.LLMAPIKey = firstEnv(EnvPrefix+"LLM_API_KEY", provider.APIKeyEnv(cfg.Provider()))
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}

func validate(cfg *Config) []string {
	var warnings []string

	if cfg.DeepgramAPIKey == "" {
		warnings = append(warnings, "Deepgram API key not configured, sessions cannot listen. Set "+EnvPrefix+"DEEPGRAM_API_KEY.")
	}
	if _, _, err := provider.ParseModel(cfg.Model); err != nil {
		warnings = append(warnings, fmt.Sprintf("Invalid model %q, using default %s.", cfg.Model, defaultModel))
		cfg.Model = defaultModel
		cfg.LLMAPIKey = firstEnv(EnvPrefix+"LLM_API_KEY", provider.APIKeyEnv(cfg.Provider()))
	}
	if cfg.LLMAPIKey == "" {
		warnings = append(warnings, fmt.Sprintf("API key for %s not configured. Set %sLLM_API_KEY or %s.",
			cfg.Provider(), EnvPrefix, provider.APIKeyEnv(cfg.Provider())))
	}
	if d, err := time.ParseDuration(cfg.InactivityTimeout); err != nil || d <= 0 {
		warnings = append(warnings, fmt.Sprintf("Invalid inactivity_timeout %q, using default %s.", cfg.InactivityTimeout, defaultInactivityTimeout))
	}
	if !slices.Contains([]string{AudioBackendMiniaudio, AudioBackendPortaudio}, cfg.AudioBackend) {
		warnings = append(warnings, fmt.Sprintf("Unknown audio_backend %q, using %s.", cfg.AudioBackend, AudioBackendMiniaudio))
		cfg.AudioBackend = AudioBackendMiniaudio
	}

	if cfg.ScenariosFile != "" {
		scenarios, err := LoadScenarios(cfg.ScenariosFile)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("Could not load scenarios_file: %v.", err))
		} else {
			cfg.Scenarios = scenarios
		}
	}
	if len(cfg.Scenarios) == 0 {
		cfg.Scenarios = orchestration.DefaultScenarios()
	} else if err := orchestration.ValidateScenarios(cfg.Scenarios); err != nil {
		warnings = append(warnings, fmt.Sprintf("Invalid scenarios (%v), using built-in scenarios.", err))
		cfg.Scenarios = orchestration.DefaultScenarios()
	}
	if cfg.Scenario != "" && !slices.ContainsFunc(cfg.Scenarios, func(s orchestration.Scenario) bool { return s.ID == cfg.Scenario }) {
		warnings = append(warnings, fmt.Sprintf("Unknown scenario %q, starting with %q.", cfg.Scenario, cfg.Scenarios[0].ID))
		cfg.Scenario = ""
	}

	return warnings
}

type scenarioCatalog struct {
	Scenarios []orchestration.Scenario `yaml:"scenarios"`
}

// LoadScenarios reads a YAML file holding a top-level scenarios list.
func LoadScenarios(path string) ([]orchestration.Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenarios file: %w", err)
	}

	var catalog scenarioCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parse scenarios file: %w", err)
	}
	if err := orchestration.ValidateScenarios(catalog.Scenarios); err != nil {
		return nil, fmt.Errorf("invalid scenarios file: %w", err)
	}
	return catalog.Scenarios, nil
}
