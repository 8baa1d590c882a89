package routing_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/km-arc/go-ioc/framework/routing"
)

// ── helpers ──────────────────────────────────────────────────────────────────

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func do(t *testing.T, router http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

// ── routes ────────────────────────────────────────────────────────────────────

func TestRouter_Get(t *testing.T) {
	r := routing.New(nil)
	r.Get("/components", okHandler)

	if rr := do(t, r, http.MethodGet, "/components"); rr.Code != http.StatusOK {
		t.Errorf("GET /components: got %d want 200", rr.Code)
	}
	if rr := do(t, r, http.MethodPost, "/components"); rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /components: got %d want 405", rr.Code)
	}
}

func TestRouter_Handle(t *testing.T) {
	r := routing.New(nil)
	r.Handle("/metrics", http.HandlerFunc(okHandler))

	if rr := do(t, r, http.MethodGet, "/metrics"); rr.Code != http.StatusOK {
		t.Errorf("GET /metrics: got %d want 200", rr.Code)
	}
}

func TestRouter_PrefixAndParam(t *testing.T) {
	r := routing.New(nil)
	var got string
	r.Prefix("/tags", func(tags *routing.Router) {
		tags.Get("/{tag}", func(w http.ResponseWriter, req *http.Request) {
			got = routing.Param(req, "tag")
		})
	})

	do(t, r, http.MethodGet, "/tags/service")
	if got != "service" {
		t.Errorf("Param: got %q want service", got)
	}
}

func TestRouter_GroupMiddleware(t *testing.T) {
	r := routing.New(nil)
	r.Group(func(g *routing.Router) {
		g.Middleware(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				w.Header().Set("X-Group", "yes")
				next.ServeHTTP(w, req)
			})
		})
		g.Get("/inside", okHandler)
	})
	r.Get("/outside", okHandler)

	if rr := do(t, r, http.MethodGet, "/inside"); rr.Header().Get("X-Group") != "yes" {
		t.Error("group middleware should apply inside the group")
	}
	if rr := do(t, r, http.MethodGet, "/outside"); rr.Header().Get("X-Group") != "" {
		t.Error("group middleware should not leak outside the group")
	}
}

func TestRouter_RecoversPanics(t *testing.T) {
	r := routing.New(nil)
	r.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })

	if rr := do(t, r, http.MethodGet, "/boom"); rr.Code != http.StatusInternalServerError {
		t.Errorf("panic: got %d want 500", rr.Code)
	}
}

func TestRouter_RequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := routing.New(zap.New(core))
	r.Get("/graph", okHandler)

	do(t, r, http.MethodGet, "/graph")

	entries := logs.FilterMessage("request").All()
	if len(entries) != 1 {
		t.Fatalf("log entries: got %d want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["path"] != "/graph" || fields["status"] != int64(http.StatusOK) {
		t.Errorf("fields: got %v", fields)
	}
}
