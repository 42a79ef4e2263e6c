package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestGetJSONRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New("test", Options{RetryMax: 3, RetryBase: time.Millisecond})
	var out struct {
		OK bool `json:"ok"`
	}
	if err := c.GetJSON(context.Background(), srv.URL, nil, &out); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if !out.OK || calls.Load() != 3 {
		t.Fatalf("ok=%v calls=%d, want true/3", out.OK, calls.Load())
	}
}

func TestGetJSONDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	c := New("test", Options{RetryMax: 3, RetryBase: time.Millisecond})
	err := c.GetJSON(context.Background(), srv.URL, nil, nil)
	var se *StatusError
	if !errors.As(err, &se) || se.Status != http.StatusNotFound {
		t.Fatalf("err = %v, want 404 status error", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}

func TestPostJSONSendsHeadersOnce(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("X-Api-Key") != "k" || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("headers = %v", r.Header)
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New("test", Options{RetryMax: 3, RetryBase: time.Millisecond})
	err := c.PostJSON(context.Background(), srv.URL, map[string]string{"X-Api-Key": "k"}, map[string]int{"a": 1}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}

func TestCircuitOpensAfterConsecutiveFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New("test", Options{FailureThreshold: 2, OpenFor: time.Minute})
	for i := 0; i < 2; i++ {
		_, _, _ = c.Do(context.Background(), http.MethodGet, srv.URL, nil, nil)
	}
	_, _, err := c.Do(context.Background(), http.MethodGet, srv.URL, nil, nil)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want circuit open", err)
	}

	c.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, _, err = c.Do(context.Background(), http.MethodGet, srv.URL, nil, nil)
	if errors.Is(err, ErrCircuitOpen) {
		t.Fatal("circuit should be half-open after OpenFor")
	}
}

func TestIsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := New("test", Options{Timeout: 20 * time.Millisecond})
	_, _, err := c.Do(context.Background(), http.MethodGet, srv.URL, nil, nil)
	if !IsTimeout(err) {
		t.Fatalf("IsTimeout(%v) = false", err)
	}
	if IsTimeout(errors.New("boom")) {
		t.Fatal("plain error reported as timeout")
	}
}
