// internal/scraper/client_test.go
package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/text/encoding/charmap"

	apperrors "github.com/valpere/musicmanager/internal/errors"
)

func testClient(retries int) *HTTPClient {
	return NewHTTPClient(ClientConfig{
		Timeout:            5 * time.Second,
		RetryAttempts:      retries,
		RetryDelay:         time.Millisecond,
		UserAgents:         []string{"TestAgent/1.0"},
		PerHostConcurrency: 4,
	})
}

func TestHTTPClient_Fetch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "TestAgent/1.0" {
			t.Errorf("unexpected user agent %q", ua)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><head><title>Test</title></head></html>"))
	}))
	defer server.Close()

	page, err := testClient(0).Fetch(context.Background(), server.URL+"/a")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if page.StatusCode != 200 || page.URL != server.URL+"/a" {
		t.Errorf("unexpected page %+v", page)
	}
}

func TestHTTPClient_Fetch_DecodesCharset(t *testing.T) {
	body, _ := charmap.Windows1251.NewEncoder().String("<title>Микс</title>")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=windows-1251")
		w.Write([]byte(body))
	}))
	defer server.Close()

	page, err := testClient(0).Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatal(err)
	}
	if page.HTML != "<title>Микс</title>" {
		t.Errorf("body not decoded: %q", page.HTML)
	}
}

func TestHTTPClient_Get_RetriesTransient(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	resp, err := testClient(3).Get(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	resp.Body.Close()
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestHTTPClient_Get_NotFoundNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	_, err := testClient(3).Get(context.Background(), server.URL)
	var se *apperrors.StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 StatusError, got %v", err)
	}
	if calls != 1 {
		t.Errorf("404 must not be retried, got %d calls", calls)
	}
}

func TestHTTPClient_WithRetryAttempts(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	base := testClient(3)
	single := base.WithRetryAttempts(0)
	if single.Limiter() != base.Limiter() {
		t.Error("derived client must share the host limiter")
	}
	if _, err := single.Get(context.Background(), server.URL); err == nil {
		t.Fatal("expected 503 error")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected 1 call without retries, got %d", got)
	}
	if base.retryAttempts != 3 {
		t.Errorf("base client retry count changed to %d", base.retryAttempts)
	}
}

func TestHTTPClient_Get_InvalidURL(t *testing.T) {
	if _, err := testClient(0).Get(context.Background(), "not-a-url"); err == nil {
		t.Error("expected error for invalid URL")
	}
}

func TestHTTPClient_FinalURL(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/short", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/long/target", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/long/target", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/nohead", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		http.Redirect(w, r, "/long/target", http.StatusFound)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := testClient(0)
	for _, path := range []string{"/short", "/nohead"} {
		got, err := client.FinalURL(context.Background(), server.URL+path)
		if err != nil {
			t.Fatalf("FinalURL(%s) failed: %v", path, err)
		}
		if got != server.URL+"/long/target" {
			t.Errorf("FinalURL(%s) = %q", path, got)
		}
	}
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *recordingObserver) ObserveFetch(host, outcome string, d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func TestHTTPClient_Observer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer server.Close()

	obs := &recordingObserver{}
	client := NewHTTPClient(ClientConfig{RetryDelay: time.Millisecond, Observer: obs})
	client.Get(context.Background(), server.URL)

	if len(obs.outcomes) != 1 || obs.outcomes[0] != "4xx" {
		t.Errorf("unexpected outcomes %v", obs.outcomes)
	}
}

func TestResolveReference(t *testing.T) {
	if got := ResolveReference("https://m.facebook.com/story.php?id=1", "/l.php?u=x"); got != "https://m.facebook.com/l.php?u=x" {
		t.Errorf("got %q", got)
	}
}
