package screening

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"onboarding-engine/internal/model"
)

func newTestClient(url string, retries int) *Client {
	c := NewClient(url, 5*time.Second, retries)
	c.backoff = time.Millisecond // keep retry tests fast
	return c
}

func screenHandler(t *testing.T, results []model.ScreeningResult) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/screen" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req struct {
			Names []string `json:"names"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if len(req.Names) == 0 {
			t.Error("request carried no names")
		}
		json.NewEncoder(w).Encode(map[string]any{"results": results})
	}
}

func TestScreenReturnsOneResultPerName(t *testing.T) {
	results := []model.ScreeningResult{
		{Name: "Acme Sponsors LLP"},
		{Name: "John Smith", HasPEPHit: true},
	}
	srv := httptest.NewServer(screenHandler(t, results))
	defer srv.Close()

	got, err := newTestClient(srv.URL, 0).Screen(context.Background(), []string{"Acme Sponsors LLP", "John Smith"})
	if err != nil {
		t.Fatalf("Screen returned error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if !got[1].HasPEPHit {
		t.Error("PEP hit lost in transit")
	}
}

func TestScreenRequiresNames(t *testing.T) {
	if _, err := newTestClient("http://unused", 0).Screen(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty name list")
	}
}

func TestScreenRetriesTransientFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"results": []model.ScreeningResult{{Name: "Acme Sponsors LLP"}},
		})
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL, 3).Screen(context.Background(), []string{"Acme Sponsors LLP"})
	if err != nil {
		t.Fatalf("Screen returned error after retries: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 result, got %d", len(got))
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestScreenFailsHardWhenRetriesExhausted(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 2).Screen(context.Background(), []string{"Acme Sponsors LLP"})
	if err == nil {
		t.Fatal("expected hard error when the service stays down")
	}
	if !strings.Contains(err.Error(), "after 3 attempt(s)") {
		t.Errorf("error should report the attempt count, got %q", err)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestScreenRejectsEmptyResultSet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"results": []model.ScreeningResult{}})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 0).Screen(context.Background(), []string{"Acme Sponsors LLP"})
	if err == nil {
		t.Fatal("an empty result set must be an error, never silently accepted")
	}
}

func TestScreenHonorsContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(srv.URL, time.Second, 5)
	c.backoff = time.Hour // cancellation must win over the backoff wait
	if _, err := c.Screen(ctx, []string{"Acme Sponsors LLP"}); err == nil {
		t.Fatal("expected cancellation error")
	}
}
