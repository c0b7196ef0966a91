package server

import (
	"context"
	"embed"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/bz888/eyesy-bot/internal/logger"
	"github.com/bz888/eyesy-bot/internal/session"
)

//go:embed static
var staticFS embed.FS

// ModelLister lists the models the configured providers offer.
type ModelLister interface {
	Models(ctx context.Context) ([]string, error)
}

// Server exposes one shared conversation over HTTP and websockets. Every
// request or connection gets its own Controller bound to a presenter that
// writes to that client.
type Server struct {
	session     *session.Session
	models      ModelLister
	ctrlOptions []session.ControllerOption

	mux      *http.ServeMux
	upgrader websocket.Upgrader

	localLogger *logger.Logger
}

func New(sess *session.Session, models ModelLister, opts ...session.ControllerOption) *Server {
	s := &Server{
		session:     sess,
		models:      models,
		ctrlOptions: opts,
		mux:         http.NewServeMux(),
		upgrader:    websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		localLogger: logger.NewLogger("server"),
	}
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) controller(view session.Presenter) *session.Controller {
	return session.NewController(s.session, view, s.ctrlOptions...)
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		<-ctx.Done()
		s.session.Cancel()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.localLogger.Error("server shutdown error: ", err)
			return err
		}
		s.localLogger.Info("server shutdown complete")
		return nil
	})
	eg.Go(func() error {
		s.localLogger.Info("Server started on http://", ln.Addr().String(), "/")
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.localLogger.Error("server listen error: ", err)
			return err
		}
		return nil
	})
	return eg.Wait()
}
