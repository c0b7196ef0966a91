package config

import (
	"github.com/spf13/pflag"
)

// Flags holds the command line overrides. Only flags the user actually set
// are applied, so file and environment values survive unset flags.
type Flags struct {
	fs *pflag.FlagSet

	ConfigFile       string
	Dev              bool
	LogPath          string
	Model            string
	SystemPromptFile string
	Addr             string
	ExportPath       string
	TokenBudget      int
	VADModel         string
}

func RegisterFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	fs.StringVar(&f.ConfigFile, "config", "", "Path to a .yaml or .toml config file")
	fs.BoolVar(&f.Dev, "dev", false, "Development mode")
	fs.StringVar(&f.LogPath, "logPath", "", "Path to save the log file")
	fs.StringVar(&f.Model, "model", DefaultModel, "Model to chat with")
	fs.StringVar(&f.SystemPromptFile, "system-prompt-file", "", "Replace the built in EYESY prompt with this file")
	fs.StringVar(&f.Addr, "addr", DefaultAddr, "Address the HTTP server listens on")
	fs.StringVar(&f.ExportPath, "export-path", DefaultExportPath, "Where Download Chat and /save write")
	fs.IntVar(&f.TokenBudget, "token-budget", DefaultTokenBudget, "Warn when the conversation grows past this many tokens (0 disables)")
	fs.StringVar(&f.VADModel, "vad-model", "", "Path to the silero VAD onnx model")
	return f
}

// Resolve loads the config file and environment, then applies set flags.
func (f *Flags) Resolve() (*Config, error) {
	cfg, err := Load(f.ConfigFile)
	if err != nil {
		return nil, err
	}
	f.apply(cfg)
	return cfg, nil
}

func (f *Flags) apply(cfg *Config) {
	changed := func(name string) bool {
		return f.fs != nil && f.fs.Changed(name)
	}
	if changed("dev") {
		cfg.Dev = f.Dev
	}
	if changed("logPath") {
		cfg.LogPath = f.LogPath
	}
	if changed("model") {
		cfg.Model = f.Model
	}
	if changed("system-prompt-file") {
		cfg.SystemPromptFile = f.SystemPromptFile
	}
	if changed("addr") {
		cfg.Addr = f.Addr
	}
	if changed("export-path") {
		cfg.ExportPath = f.ExportPath
	}
	if changed("token-budget") {
		cfg.TokenBudget = f.TokenBudget
	}
	if changed("vad-model") {
		cfg.Speech.VADModel = f.VADModel
	}
}
