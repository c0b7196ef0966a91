package completion

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/bz888/eyesy-bot/internal/logger"
)

var ErrNoProvider = errors.New("no provider configured")

// Router sends each request to the provider that serves its model. Models
// seen in a listing are cached; anything else is routed by name prefix.
type Router struct {
	providers map[string]Provider
	order     []string

	mu          sync.RWMutex
	cacheModels map[string]string

	localLogger *logger.Logger
}

func NewRouter(providers ...Provider) *Router {
	r := &Router{
		providers:   make(map[string]Provider),
		cacheModels: make(map[string]string),
		localLogger: logger.NewLogger("router"),
	}
	for _, p := range providers {
		if p == nil {
			continue
		}
		if _, dup := r.providers[p.Name()]; !dup {
			r.order = append(r.order, p.Name())
		}
		r.providers[p.Name()] = p
	}
	return r
}

// Providers lists the configured provider names in registration order.
func (r *Router) Providers() []string {
	return append([]string(nil), r.order...)
}

// Models lists the models of every provider concurrently. A provider that
// fails is logged and skipped; the call only fails when all of them do.
func (r *Router) Models(ctx context.Context) ([]string, error) {
	if len(r.order) == 0 {
		return nil, ErrNoProvider
	}

	results := make([][]string, len(r.order))
	errs := make([]error, len(r.order))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range r.order {
		p := r.providers[name]
		g.Go(func() error {
			models, err := p.ListModels(gctx)
			if err != nil {
				r.localLogger.Warn("listing ", p.Name(), " models failed: ", err)
				errs[i] = err
				return nil
			}
			results[i] = models
			return nil
		})
	}
	_ = g.Wait()

	var all []string
	r.mu.Lock()
	for i, models := range results {
		for _, m := range models {
			r.cacheModels[m] = r.order[i]
			all = append(all, m)
		}
	}
	r.mu.Unlock()

	if len(all) == 0 {
		if err := errors.Join(errs...); err != nil {
			return nil, err
		}
	}
	sort.Strings(all)
	return all, nil
}

// Resolve picks the provider for model.
func (r *Router) Resolve(model string) (Provider, error) {
	r.mu.RLock()
	name, ok := r.cacheModels[model]
	r.mu.RUnlock()
	if !ok {
		name = providerByPrefix(model)
	}
	if p, ok := r.providers[name]; ok {
		return p, nil
	}
	if len(r.order) == 1 {
		return r.providers[r.order[0]], nil
	}
	return nil, fmt.Errorf("%w for model %q", ErrNoProvider, model)
}

func providerByPrefix(model string) string {
	switch {
	case strings.HasPrefix(model, "gemini-"):
		return ProviderGemini
	case isChatModel(model):
		return ProviderOpenAI
	default:
		return ProviderOllama
	}
}

func (r *Router) Stream(ctx context.Context, req *Request) (Stream, error) {
	p, err := r.Resolve(req.Model)
	if err != nil {
		return nil, &Error{Provider: "router", Err: err}
	}
	r.localLogger.Info("routing ", req.Model, " to ", p.Name(), " with ", len(req.Messages), " messages")
	return p.Stream(ctx, req)
}
