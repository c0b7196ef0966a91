package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/bz888/eyesy-bot/internal/logger"
)

const promptDebounce = 200 * time.Millisecond

// PromptWatcher reloads a system prompt file when it changes on disk.
// Editors often save by renaming a temp file over the original, so the
// containing directory is watched rather than the file.
type PromptWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onChange func(prompt string)

	localLogger *logger.Logger
}

func WatchPrompt(path string, onChange func(prompt string)) (*PromptWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(err, "resolve prompt path")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create watcher")
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, errors.Wrapf(err, "watch %s", filepath.Dir(abs))
	}
	return &PromptWatcher{
		path:        abs,
		watcher:     w,
		onChange:    onChange,
		localLogger: logger.NewLogger("prompt watcher"),
	}, nil
}

// Run delivers reloads until ctx is done or Close is called.
func (p *PromptWatcher) Run(ctx context.Context) error {
	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-p.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != p.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				pending = time.After(promptDebounce)
			}
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return nil
			}
			p.localLogger.Error("watch error: ", err)
		case <-pending:
			pending = nil
			prompt, err := ReadPrompt(p.path)
			if err != nil {
				p.localLogger.Warn("keeping previous system prompt: ", err)
				continue
			}
			p.localLogger.Info("system prompt reloaded from ", p.path)
			p.onChange(prompt)
		}
	}
}

func (p *PromptWatcher) Close() error {
	return p.watcher.Close()
}
