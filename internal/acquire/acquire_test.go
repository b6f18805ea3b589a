package acquire_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"narrate/internal/acquire"
	"narrate/internal/services"
)

func TestFetchCopiesLocalFile(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()
	src := filepath.Join(srcDir, "input.mkv")
	if err := os.WriteFile(src, []byte("video bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	fetcher := acquire.NewFetcher(5 * time.Second)
	got, err := fetcher.Fetch(context.Background(), src, "", destDir)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	want := filepath.Join(destDir, "source.mkv")
	if got != want {
		t.Fatalf("dest path = %q, want %q", got, want)
	}
	data, err := os.ReadFile(got)
	if err != nil || string(data) != "video bytes" {
		t.Fatalf("copy mismatch: %q %v", data, err)
	}
}

func TestFetchMissingLocalFile(t *testing.T) {
	fetcher := acquire.NewFetcher(5 * time.Second)
	_, err := fetcher.Fetch(context.Background(), "/no/such/file.mp4", "", t.TempDir())
	if !errors.Is(err, services.ErrAcquisition) {
		t.Fatalf("expected acquisition marker, got %v", err)
	}
}

func TestFetchEmptyLocalFile(t *testing.T) {
	src := filepath.Join(t.TempDir(), "empty.mp4")
	if err := os.WriteFile(src, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	fetcher := acquire.NewFetcher(5 * time.Second)
	_, err := fetcher.Fetch(context.Background(), src, "", t.TempDir())
	if !errors.Is(err, services.ErrAcquisition) {
		t.Fatalf("expected acquisition marker for empty source, got %v", err)
	}
}

func TestFetchDownloadsURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("remote video"))
	}))
	defer server.Close()

	destDir := t.TempDir()
	fetcher := acquire.NewFetcher(5 * time.Second)
	got, err := fetcher.Fetch(context.Background(), "", server.URL+"/clips/video.webm", destDir)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got != filepath.Join(destDir, "source.webm") {
		t.Fatalf("dest path = %q", got)
	}
	data, err := os.ReadFile(got)
	if err != nil || string(data) != "remote video" {
		t.Fatalf("download mismatch: %q %v", data, err)
	}
}

func TestFetchDownloadErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	fetcher := acquire.NewFetcher(5 * time.Second)
	_, err := fetcher.Fetch(context.Background(), "", server.URL+"/gone.mp4", t.TempDir())
	if !errors.Is(err, services.ErrAcquisition) {
		t.Fatalf("expected acquisition marker for 404, got %v", err)
	}
}

func TestFetchRequiresSource(t *testing.T) {
	fetcher := acquire.NewFetcher(5 * time.Second)
	_, err := fetcher.Fetch(context.Background(), "", "", t.TempDir())
	if !errors.Is(err, services.ErrAcquisition) {
		t.Fatalf("expected acquisition marker, got %v", err)
	}
}
