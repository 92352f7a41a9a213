package pprof

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	logx "novacal/pkg/logx"
)

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"disabled", Config{Addr: "0.0.0.0:6060"}, true},
		{"default loopback", Config{Enabled: true}, true},
		{"localhost", Config{Enabled: true, Addr: "localhost:7000"}, true},
		{"public without token", Config{Enabled: true, Addr: "0.0.0.0:6060"}, false},
		{"public with token", Config{Enabled: true, Addr: "0.0.0.0:6060", Token: "s"}, true},
		{"bad addr", Config{Enabled: true, Addr: "nope"}, false},
		{"negative rate", Config{Enabled: true, BlockProfileRate: -1}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err == nil) != tc.ok {
				t.Fatalf("Validate() = %v, want ok=%v", err, tc.ok)
			}
		})
	}
}

func TestHandlerToken(t *testing.T) {
	h := handler("secret")
	cases := []struct {
		name   string
		target string
		auth   string
		want   int
	}{
		{"missing", "/debug/pprof/", "", http.StatusUnauthorized},
		{"wrong", "/debug/pprof/?token=x", "", http.StatusUnauthorized},
		{"query", "/debug/pprof/?token=secret", "", http.StatusOK},
		{"bearer", "/debug/pprof/", "Bearer secret", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.target, nil)
			if tc.auth != "" {
				req.Header.Set("Authorization", tc.auth)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestServiceLifecycle(t *testing.T) {
	s := New(Config{Enabled: true, Addr: "127.0.0.1:0"}, logx.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	addr := s.Addr()
	resp, err := http.Get("http://" + addr + "/debug/pprof/")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	if err := s.Apply(ctx, Config{}); err != nil {
		t.Fatalf("Apply disable: %v", err)
	}
	if s.Addr() != "" {
		t.Fatalf("still bound after disable")
	}
	s.Stop(ctx)
}
