// Package pprof serves net/http/pprof on a separate, normally loopback-only listener.
package pprof

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net"
	"net/http"
	hpprof "net/http/pprof"
	"runtime"
	"strings"
	"sync"
	"time"

	rtsup "novacal/internal/runtime/supervisor"
	logx "novacal/pkg/logx"
)

const DefaultAddr = "127.0.0.1:6060"

// Config controls the profiling listener. A non-loopback Addr requires Token.
type Config struct {
	Enabled bool
	Addr    string
	Token   string

	MutexProfileFraction int
	BlockProfileRate     int
}

// Validate rejects configs that would expose profiles publicly without a token.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	addr := c.addr()
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("pprof.addr: invalid %q: %w", addr, err)
	}
	if c.Token == "" && !isLoopbackAddr(addr) {
		return errors.New("pprof: a non-loopback addr requires a token")
	}
	if c.MutexProfileFraction < 0 || c.BlockProfileRate < 0 {
		return errors.New("pprof: profile rates must be >= 0")
	}
	return nil
}

func (c Config) addr() string {
	if a := strings.TrimSpace(c.Addr); a != "" {
		return a
	}
	return DefaultAddr
}

type Service struct {
	mu  sync.Mutex
	log logx.Logger
	cfg Config

	sup  *rtsup.Supervisor
	addr string
}

func New(cfg Config, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, log: log}
}

// Addr reports the bound address while running.
func (s *Service) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Start binds the listener and serves until Stop. It is a no-op when disabled or running.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked(ctx)
}

func (s *Service) startLocked(ctx context.Context) error {
	cfg := s.cfg
	if !cfg.Enabled || s.sup != nil {
		return nil
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	runtime.SetMutexProfileFraction(cfg.MutexProfileFraction)
	runtime.SetBlockProfileRate(cfg.BlockProfileRate)

	ln, err := net.Listen("tcp", cfg.addr())
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: handler(cfg.Token), ReadTimeout: 5 * time.Second, IdleTimeout: 2 * time.Minute}
	sup := rtsup.New(ctx, rtsup.WithLogger(s.log))
	sup.Go("pprof.serve", func(c context.Context) error {
		go func() {
			<-c.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			_ = srv.Shutdown(sctx)
			cancel()
		}()
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	s.sup = sup
	s.addr = ln.Addr().String()
	s.log.Info("pprof started", logx.String("addr", s.addr), logx.Bool("token_set", cfg.Token != ""))
	return nil
}

// Apply swaps cfg, restarting the listener when the bind settings changed.
func (s *Service) Apply(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.cfg
	s.cfg = cfg
	if prev.Enabled == cfg.Enabled && prev.addr() == cfg.addr() && prev.Token == cfg.Token && s.sup != nil {
		runtime.SetMutexProfileFraction(cfg.MutexProfileFraction)
		runtime.SetBlockProfileRate(cfg.BlockProfileRate)
		return nil
	}
	s.stopLocked(ctx)
	return s.startLocked(ctx)
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked(ctx)
}

func (s *Service) stopLocked(ctx context.Context) {
	if s.sup == nil {
		return
	}
	if err := s.sup.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.log.Warn("pprof stop", logx.Err(err))
	}
	s.sup = nil
	s.addr = ""
	s.log.Info("pprof stopped")
}

func handler(token string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", hpprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", hpprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", hpprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", hpprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", hpprof.Trace)
	if token == "" {
		return mux
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.URL.Query().Get("token")
		if got == "" {
			got = strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		mux.ServeHTTP(w, r)
	})
}

func isLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
