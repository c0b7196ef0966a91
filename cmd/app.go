package cmd

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/bz888/eyesy-bot/internal/completion"
	"github.com/bz888/eyesy-bot/internal/config"
	"github.com/bz888/eyesy-bot/internal/logger"
	"github.com/bz888/eyesy-bot/internal/session"
	"github.com/bz888/eyesy-bot/internal/speech"
	"github.com/bz888/eyesy-bot/internal/transcript"
)

// app is the wiring every command shares: one session over the configured
// providers, the controller options each front end needs and, when
// configured, the microphone.
type app struct {
	cfg      *config.Config
	router   *completion.Router
	session  *session.Session
	ctrlOpts []session.ControllerOption
	voice    *speech.Listener

	localLogger *logger.Logger
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, localLogger: logger.NewLogger("app")}

	prompt, err := cfg.SystemPrompt()
	if err != nil {
		return nil, err
	}

	providers, err := buildProviders(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.router = completion.NewRouter(providers...)
	a.localLogger.Info("providers: ", a.router.Providers())

	a.session = session.New(a.router,
		session.WithSystemPrompt(prompt),
		session.WithModel(cfg.Model),
	)

	a.ctrlOpts = []session.ControllerOption{session.WithGreeting(config.Greeting)}
	if cfg.TokenBudget > 0 {
		counter, err := transcript.NewTokenCounter(cfg.Model)
		if err != nil {
			a.localLogger.Warn("token counting disabled: ", err)
		} else {
			a.ctrlOpts = append(a.ctrlOpts, session.WithTokenBudget(counter, cfg.TokenBudget))
		}
	}

	if cfg.SpeechEnabled() {
		debugDir := ""
		if cfg.Dev {
			debugDir = cfg.LogPath
		}
		a.voice, err = speech.NewListener(speech.Config{
			APIKey:   cfg.Speech.APIKey,
			VADModel: cfg.Speech.VADModel,
			DeviceID: -1,
			DebugDir: debugDir,
		})
		if err != nil {
			return nil, err
		}
	}
	return a, nil
}

// buildProviders registers OpenAI first, then Gemini, then the local Ollama
// server, so unlisted model names fall through in that order.
func buildProviders(ctx context.Context, cfg *config.Config) ([]completion.Provider, error) {
	hc := &http.Client{Timeout: 10 * time.Minute}
	var providers []completion.Provider

	if cfg.OpenAI.APIKey != "" {
		c, err := completion.NewOpenAIClient(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, hc)
		if err != nil {
			return nil, errors.Wrap(err, "openai")
		}
		providers = append(providers, c)
	}
	if cfg.Gemini.APIKey != "" {
		c, err := completion.NewGeminiClient(ctx, cfg.Gemini.APIKey)
		if err != nil {
			return nil, errors.Wrap(err, "gemini")
		}
		providers = append(providers, c)
	}
	if !cfg.Ollama.Disabled {
		c, err := completion.NewOllamaClient(cfg.Ollama.Host, hc)
		if err != nil {
			return nil, errors.Wrap(err, "ollama")
		}
		providers = append(providers, c)
	}
	if len(providers) == 0 {
		return nil, completion.ErrNoProvider
	}
	return providers, nil
}

// watchPrompt reloads the system prompt file until ctx is done. The new
// prompt takes effect at the next clear.
func (a *app) watchPrompt(ctx context.Context) error {
	if a.cfg.SystemPromptFile == "" {
		return nil
	}
	w, err := config.WatchPrompt(a.cfg.SystemPromptFile, a.session.SetSystemPrompt)
	if err != nil {
		return err
	}
	defer w.Close()
	return w.Run(ctx)
}

func (a *app) controller(view session.Presenter) *session.Controller {
	return session.NewController(a.session, view, a.ctrlOpts...)
}
