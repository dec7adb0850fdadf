package fetcher

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"stemsplit/internal/core/domain"
)

func TestFetchReturnsBodyAndContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write([]byte("wav-bytes"))
	}))
	defer srv.Close()

	data, ct, err := NewHTTPFetcher().Fetch(context.Background(), srv.URL+"/a.wav")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !bytes.Equal(data, []byte("wav-bytes")) {
		t.Fatalf("unexpected body %q", data)
	}
	if ct != "audio/wav" {
		t.Fatalf("unexpected content type %s", ct)
	}
}

func TestFetchNonSuccessIsHardFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, _, err := NewHTTPFetcher().Fetch(context.Background(), srv.URL+"/missing.wav")
	var ferr *domain.FetchError
	if !errors.As(err, &ferr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if ferr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", ferr.StatusCode)
	}
}
