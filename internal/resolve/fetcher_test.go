package resolve

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
)

func TestFetchWritesDocumentToScratch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("%PDF-1.4 fake document"))
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), t.TempDir(), nil)
	path, cleanup, err := f.Fetch(context.Background(), srv.URL, "RP-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if string(data) != "%PDF-1.4 fake document" {
		t.Fatalf("content = %q", data)
	}

	cleanup()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("cleanup left the file behind: %v", err)
	}
}

func TestFetchNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), t.TempDir(), nil)
	if _, _, err := f.Fetch(context.Background(), srv.URL, "RP-1"); err == nil {
		t.Fatal("expected error for 404")
	}
}

func TestFetchEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), t.TempDir(), nil)
	if _, _, err := f.Fetch(context.Background(), srv.URL, "RP-1"); err == nil {
		t.Fatal("expected error for empty body")
	}
}
