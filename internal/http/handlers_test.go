package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"mikrotik-geo-visualizer/internal/domain"
	"mikrotik-geo-visualizer/internal/logger"
	"mikrotik-geo-visualizer/internal/service"
)

type collectorFunc func(ctx context.Context) ([]domain.ExportRecord, error)

func (f collectorFunc) Collect(ctx context.Context) ([]domain.ExportRecord, error) {
	return f(ctx)
}

func strPtr(s string) *string { return &s }

func serve(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestExport_Success(t *testing.T) {
	c := collectorFunc(func(context.Context) ([]domain.ExportRecord, error) {
		return []domain.ExportRecord{
			{IP: "8.8.8.8", Lat: 37.4, Lon: -122.0, Org: strPtr("Google"), City: strPtr("Mountain View")},
		}, nil
	})
	h := NewHandler(c, time.Second, logger.Discard()).Router()

	for _, target := range []string{"/", "/anything/else?limit=5"} {
		rec := serve(t, h, http.MethodGet, target)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", target, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("%s: unexpected content type %q", target, ct)
		}
		if origin := rec.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
			t.Errorf("%s: unexpected CORS header %q", target, origin)
		}

		var body []map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("%s: invalid JSON: %v", target, err)
		}
		if len(body) != 1 || body[0]["ip"] != "8.8.8.8" || body[0]["org"] != "Google" {
			t.Errorf("%s: unexpected body %s", target, rec.Body.String())
		}
	}
}

func TestExport_EmptyResult(t *testing.T) {
	c := collectorFunc(func(context.Context) ([]domain.ExportRecord, error) {
		return []domain.ExportRecord{}, nil
	})
	rec := serve(t, NewHandler(c, time.Second, logger.Discard()).Router(), http.MethodGet, "/")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Body.String(); got != "[]\n" {
		t.Errorf("expected empty array, got %q", got)
	}
}

func TestExport_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not initialized", domain.ErrNotInitialized, http.StatusServiceUnavailable},
		{"router down", &domain.ConnectionSourceError{Op: "list connections", Err: errors.New("refused")}, http.StatusBadGateway},
		{"geo down", &domain.GeoSourceError{Op: "batch lookup", Err: errors.New("closed")}, http.StatusBadGateway},
		{"timeout", &domain.ConnectionSourceError{Op: "list connections", Err: context.DeadlineExceeded}, http.StatusGatewayTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := collectorFunc(func(context.Context) ([]domain.ExportRecord, error) { return nil, tt.err })
			rec := serve(t, NewHandler(c, time.Second, logger.Discard()).Router(), http.MethodGet, "/")

			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}
			if origin := rec.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
				t.Errorf("unexpected CORS header %q", origin)
			}
			var body map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["error"] == "" {
				t.Errorf("expected error body, got %q", rec.Body.String())
			}
		})
	}
}

func TestExport_RecoversAfterRouterFailure(t *testing.T) {
	var calls int32
	c := collectorFunc(func(context.Context) ([]domain.ExportRecord, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil, &domain.ConnectionSourceError{Op: "list connections", Err: errors.New("no route to host")}
		}
		return []domain.ExportRecord{}, nil
	})
	h := NewHandler(c, time.Second, logger.Discard()).Router()

	if rec := serve(t, h, http.MethodGet, "/"); rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 first, got %d", rec.Code)
	}
	if rec := serve(t, h, http.MethodGet, "/"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 afterwards, got %d", rec.Code)
	}
}

func TestExport_RequestTimeout(t *testing.T) {
	c := collectorFunc(func(ctx context.Context) ([]domain.ExportRecord, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	rec := serve(t, NewHandler(c, 20*time.Millisecond, logger.Discard()).Router(), http.MethodGet, "/")

	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", rec.Code)
	}
}

func TestExport_UninitializedCollector(t *testing.T) {
	collector := service.NewCollector(logger.Discard())
	rec := serve(t, NewHandler(collector, time.Second, logger.Discard()).Router(), http.MethodGet, "/")

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestExport_MethodNotAllowed(t *testing.T) {
	c := collectorFunc(func(context.Context) ([]domain.ExportRecord, error) {
		t.Error("collector must not run for POST")
		return nil, nil
	})
	rec := serve(t, NewHandler(c, time.Second, logger.Discard()).Router(), http.MethodPost, "/")

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestExport_CORSPreflight(t *testing.T) {
	c := collectorFunc(func(context.Context) ([]domain.ExportRecord, error) { return nil, nil })
	h := NewHandler(c, time.Second, logger.Discard()).Router()

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "http://dashboard.lan")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if origin := rec.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Errorf("unexpected preflight CORS header %q", origin)
	}
}
