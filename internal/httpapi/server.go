// Package httpapi serves a small status surface over HTTP: liveness, the
// monitor state and a manual check trigger.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"listingbot/pkg/logx"
)

const defaultAddr = "127.0.0.1:8080"

type Config struct {
	Enabled bool
	Addr    string
	Token   string
	// Pprof exposes /debug/pprof behind the same token.
	Pprof bool
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.Addr) == "" {
		c.Addr = defaultAddr
	}
	return c
}

// NewRouter builds the gin engine.
func NewRouter(h *Handler, token string, log logx.Logger) *gin.Engine {
	return newRouter(h, Config{Token: token}, log)
}

func newRouter(h *Handler, cfg Config, log logx.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLog(log))

	r.GET("/healthz", h.HealthCheck)

	auth := r.Group("/", TokenAuth(cfg.Token))
	{
		auth.GET("/status", h.Status)
		auth.POST("/check", h.Check)
	}
	if cfg.Pprof {
		MountPprof(auth)
	}
	return r
}

// Server owns the listener. Apply starts, restarts or stops it to match cfg.
type Server struct {
	mu      sync.Mutex
	log     logx.Logger
	backend Backend
	srv     *http.Server
	addr    string
	cfg     Config
}

func NewServer(b Backend, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	gin.SetMode(gin.ReleaseMode)
	return &Server{log: log, backend: b}
}

func (s *Server) Apply(ctx context.Context, cfg Config) error {
	cfg = cfg.withDefaults()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !cfg.Enabled {
		s.stopLocked(ctx)
		s.cfg = cfg
		return nil
	}
	if s.srv != nil && s.cfg == cfg {
		return nil
	}
	s.stopLocked(ctx)
	if err := s.startLocked(cfg); err != nil {
		return err
	}
	s.cfg = cfg
	return nil
}

func (s *Server) startLocked(cfg Config) error {
	router := newRouter(NewHandler(s.backend), cfg, s.log)
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		s.log.Warn("http listen failed", logx.String("addr", cfg.Addr), logx.Err(err))
		return err
	}
	srv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.srv = srv
	s.addr = ln.Addr().String()

	addr := s.addr
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Warn("http server error", logx.String("addr", addr), logx.Err(err))
		}
	}()
	s.log.Info("http enabled", logx.String("addr", s.addr), logx.Bool("token_set", strings.TrimSpace(cfg.Token) != ""), logx.Bool("pprof", cfg.Pprof))
	return nil
}

func (s *Server) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked(ctx)
}

func (s *Server) stopLocked(ctx context.Context) {
	if s.srv == nil {
		return
	}
	srv := s.srv
	addr := s.addr
	s.srv = nil
	s.addr = ""

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Warn("http shutdown error", logx.String("addr", addr), logx.Err(err))
	}
	s.log.Info("http disabled", logx.String("addr", addr))
}

// Addr returns the bound address, empty when stopped.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}
