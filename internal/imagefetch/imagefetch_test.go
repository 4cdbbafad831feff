package imagefetch_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"quill/internal/imagefetch"
	"quill/internal/testsupport"
)

func TestFetchStoresImage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	payload := []byte("fake image bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(payload)
	}))
	defer srv.Close()

	fetcher := imagefetch.New(st, cfg.Paths.UploadsDir, 5*time.Second, nil)
	image, err := fetcher.Fetch(context.Background(), srv.URL+"/2020/01/photo.jpg")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if image.OriginalName != "photo.jpg" {
		t.Fatalf("unexpected original name: %q", image.OriginalName)
	}
	if image.SizeBytes != int64(len(payload)) {
		t.Fatalf("unexpected size: %d", image.SizeBytes)
	}

	onDisk := filepath.Join(cfg.Paths.UploadsDir, filepath.FromSlash(image.FilePath))
	data, err := os.ReadFile(onDisk)
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if string(data) != string(payload) {
		t.Fatal("stored file does not match downloaded bytes")
	}
}

func TestFetchReusesExistingImage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write([]byte("bytes"))
	}))
	defer srv.Close()

	fetcher := imagefetch.New(st, cfg.Paths.UploadsDir, 5*time.Second, nil)
	first, err := fetcher.Fetch(context.Background(), srv.URL+"/photo.jpg")
	if err != nil {
		t.Fatalf("first Fetch failed: %v", err)
	}
	second, err := fetcher.Fetch(context.Background(), srv.URL+"/photo.jpg")
	if err != nil {
		t.Fatalf("second Fetch failed: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected reuse, got images %d and %d", first.ID, second.ID)
	}
	if requests != 1 {
		t.Fatalf("expected 1 download, got %d", requests)
	}
}

func TestFetchRejectsErrorStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	fetcher := imagefetch.New(st, cfg.Paths.UploadsDir, 5*time.Second, nil)
	if _, err := fetcher.Fetch(context.Background(), srv.URL+"/missing.jpg"); err == nil {
		t.Fatal("expected error for 404 response")
	}
}

func TestFetchRejectsDataURL(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	fetcher := imagefetch.New(st, cfg.Paths.UploadsDir, time.Second, nil)
	if _, err := fetcher.Fetch(context.Background(), "data:image/png;base64,AAAA"); err == nil {
		t.Fatal("expected error for data URL")
	}
}

func TestSaveSuffixesOnCollision(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	fetcher := imagefetch.New(st, cfg.Paths.UploadsDir, time.Second, nil)
	ctx := context.Background()
	first, err := fetcher.Save(ctx, "photo.jpg", []byte("one"))
	if err != nil {
		t.Fatalf("first Save failed: %v", err)
	}
	second, err := fetcher.Save(ctx, "photo.jpg", []byte("two"))
	if err != nil {
		t.Fatalf("second Save failed: %v", err)
	}
	if first.FilePath == second.FilePath {
		t.Fatalf("expected distinct file paths, both %q", first.FilePath)
	}
}
