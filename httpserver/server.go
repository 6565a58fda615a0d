package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/flashbots/go-utils/httplogger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ruteri/wifi-provisioning-portal/api"
	"go.uber.org/atomic"
)

// RouteRegistrar mounts handlers on a router.
type RouteRegistrar interface {
	RegisterRoutes(r chi.Router)
}

type Server struct {
	cfg     *api.HTTPServerConfig
	isReady atomic.Bool
	log     *slog.Logger

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
	done     chan struct{}
}

// New creates a server with the routes of every registrar mounted.
func New(cfg *api.HTTPServerConfig, registrars ...RouteRegistrar) *Server {
	srv := &Server{
		cfg: cfg,
		log: cfg.Log,
	}

	srv.srv = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      srv.getRouter(registrars),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return srv
}

func (srv *Server) getRouter(registrars []RouteRegistrar) http.Handler {
	mux := chi.NewRouter()
	mux.Use(middleware.Recoverer)

	mux.Group(func(r chi.Router) {
		r.Use(srv.httpLogger)
		for _, registrar := range registrars {
			registrar.RegisterRoutes(r)
		}
	})

	// Health and diagnostic endpoints
	mux.With(srv.httpLogger).Get("/livez", srv.handleLivenessCheck)
	mux.With(srv.httpLogger).Get("/readyz", srv.handleReadinessCheck)

	// Connectivity probes and any other unknown path land on the portal
	mux.NotFound(srv.httpLogger(http.HandlerFunc(srv.handleCaptiveRedirect)).ServeHTTP)

	if srv.cfg.EnablePprof {
		srv.log.Info("pprof API enabled")
		mux.Mount("/debug", middleware.Profiler())
	}
	return mux
}

func (srv *Server) httpLogger(next http.Handler) http.Handler {
	return httplogger.LoggingMiddlewareSlog(srv.log, next)
}

func (srv *Server) handleCaptiveRedirect(w http.ResponseWriter, r *http.Request) {
	if !srv.cfg.PortalAddr.IsValid() {
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, "http://"+srv.cfg.PortalAddr.String()+"/", http.StatusFound)
}

func (srv *Server) handleLivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"alive"}`))
}

func (srv *Server) handleReadinessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !srv.isReady.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"not ready"}`))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

// Handler returns the router, for tests and embedding.
func (srv *Server) Handler() http.Handler {
	return srv.srv.Handler
}

// RunInBackground binds the listen address and serves on a goroutine.
// Binding happens before it returns so a busy port is reported to the caller.
func (srv *Server) RunInBackground() error {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	if srv.listener != nil {
		return errors.New("HTTP server already running")
	}

	ln, err := net.Listen("tcp", srv.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", srv.cfg.ListenAddr, err)
	}
	srv.listener = ln
	srv.done = make(chan struct{})
	srv.isReady.Store(true)

	go func(done chan struct{}) {
		defer close(done)
		srv.log.Info("Starting HTTP server", "listenAddress", ln.Addr().String())
		if err := srv.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srv.log.Error("HTTP server failed", "err", err)
		}
	}(srv.done)

	return nil
}

// Addr returns the bound address, or the configured one before RunInBackground.
func (srv *Server) Addr() string {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	if srv.listener == nil {
		return srv.cfg.ListenAddr
	}
	return srv.listener.Addr().String()
}

// Shutdown stops accepting requests and waits for in-flight ones, bounded
// by GracefulShutdownDuration when set. A server is not reusable after
// Shutdown.
func (srv *Server) Shutdown(ctx context.Context) error {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	srv.isReady.Store(false)
	if srv.listener == nil {
		return nil
	}

	if srv.cfg.GracefulShutdownDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, srv.cfg.GracefulShutdownDuration)
		defer cancel()
	}

	err := srv.srv.Shutdown(ctx)
	if err != nil {
		srv.log.Error("Graceful HTTP server shutdown failed", "err", err)
	} else {
		srv.log.Info("HTTP server gracefully stopped")
	}

	<-srv.done
	srv.listener = nil
	return err
}
