package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	DefaultModel       = "gpt-4"
	DefaultAddr        = ":8080"
	DefaultExportPath  = "chat.json"
	DefaultTokenBudget = 6000
)

// Config is everything the commands need to build a session and its front
// ends. Values are layered: defaults, then the config file, then the
// environment, then command line flags.
type Config struct {
	Dev     bool   `yaml:"dev" toml:"dev"`
	LogPath string `yaml:"log_path" toml:"log_path"`

	Model            string `yaml:"model" toml:"model"`
	SystemPromptFile string `yaml:"system_prompt_file" toml:"system_prompt_file"`
	ExportPath       string `yaml:"export_path" toml:"export_path"`
	TokenBudget      int    `yaml:"token_budget" toml:"token_budget"`

	Addr string `yaml:"addr" toml:"addr"`

	OpenAI OpenAIConfig `yaml:"openai" toml:"openai"`
	Gemini GeminiConfig `yaml:"gemini" toml:"gemini"`
	Ollama OllamaConfig `yaml:"ollama" toml:"ollama"`
	Speech SpeechConfig `yaml:"speech" toml:"speech"`
}

type OpenAIConfig struct {
	APIKey  string `yaml:"api_key" toml:"api_key"`
	BaseURL string `yaml:"base_url" toml:"base_url"`
}

type GeminiConfig struct {
	APIKey string `yaml:"api_key" toml:"api_key"`
}

type OllamaConfig struct {
	Host string `yaml:"host" toml:"host"`
	// Disabled keeps the local Ollama provider out of model routing.
	Disabled bool `yaml:"disabled" toml:"disabled"`
}

type SpeechConfig struct {
	APIKey   string `yaml:"api_key" toml:"api_key"`
	VADModel string `yaml:"vad_model" toml:"vad_model"`
}

func Default() *Config {
	return &Config{
		Model:       DefaultModel,
		ExportPath:  DefaultExportPath,
		TokenBudget: DefaultTokenBudget,
		Addr:        DefaultAddr,
		Speech: SpeechConfig{
			VADModel: filepath.Join("internal", "files", "silero_vad.onnx"),
		},
	}
}

// Load builds a Config from defaults, the optional file at path and the
// environment. A .env file in the working directory is loaded first if
// present; variables already set win over it.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "load .env")
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read config")
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, c); err != nil {
			return errors.Wrapf(err, "parse %s", path)
		}
	case ".toml":
		if _, err := toml.Decode(string(raw), c); err != nil {
			return errors.Wrapf(err, "parse %s", path)
		}
	default:
		return errors.Errorf("config %s: unsupported format, use .yaml or .toml", path)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("OPENAI_API_KEY", &c.OpenAI.APIKey)
	str("OPENAI_BASE_URL", &c.OpenAI.BaseURL)
	str("GEMINI_API_KEY", &c.Gemini.APIKey)
	str("OLLAMA_HOST", &c.Ollama.Host)
	str("API_KEY", &c.Speech.APIKey)
	str("EYESY_MODEL", &c.Model)

	if v, ok := lookup("EYESY_TOKEN_BUDGET"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(err, "EYESY_TOKEN_BUDGET")
		}
		c.TokenBudget = n
	}
	return nil
}

// SpeechEnabled reports whether voice input can be offered.
func (c *Config) SpeechEnabled() bool {
	return c.Speech.APIKey != ""
}
