package watcher_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"quill/internal/store"
	"quill/internal/testsupport"
	"quill/internal/watcher"
)

func waitForJobs(t *testing.T, st *store.Store, want int, timeout time.Duration) []*store.Job {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		jobs, err := st.ListJobs(context.Background())
		if err != nil {
			t.Fatalf("ListJobs failed: %v", err)
		}
		if len(jobs) >= want {
			return jobs
		}
		time.Sleep(50 * time.Millisecond)
	}
	jobs, _ := st.ListJobs(context.Background())
	t.Fatalf("timed out waiting for %d jobs, have %d", want, len(jobs))
	return nil
}

func TestWatcherEnqueuesDroppedExport(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	w := watcher.New(st, cfg.Paths.ImportDropDir, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	dropped := filepath.Join(cfg.Paths.ImportDropDir, "export.xml")
	testsupport.WriteFile(t, dropped, "<rss></rss>")

	jobs := waitForJobs(t, st, 1, 10*time.Second)
	if jobs[0].Kind != store.JobImportExport {
		t.Fatalf("unexpected job kind: %s", jobs[0].Kind)
	}
	var payload watcher.ImportPayload
	if err := json.Unmarshal([]byte(jobs[0].PayloadJSON), &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Path != dropped {
		t.Fatalf("unexpected path: %q", payload.Path)
	}
}

func TestWatcherEnqueuesWXRExtension(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	w := watcher.New(st, cfg.Paths.ImportDropDir, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	dropped := filepath.Join(cfg.Paths.ImportDropDir, "export.WXR")
	testsupport.WriteFile(t, dropped, "<rss></rss>")

	jobs := waitForJobs(t, st, 1, 10*time.Second)
	var payload watcher.ImportPayload
	if err := json.Unmarshal([]byte(jobs[0].PayloadJSON), &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Path != dropped {
		t.Fatalf("unexpected path: %q", payload.Path)
	}
}

func TestWatcherEnqueuesPreexistingExports(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	// Files already in the drop dir before Start must still be imported.
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.ImportDropDir, "old.xml"), "<rss></rss>")
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.ImportDropDir, "older.wxr"), "<rss></rss>")
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.ImportDropDir, "notes.txt"), "hello")

	w := watcher.New(st, cfg.Paths.ImportDropDir, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	jobs := waitForJobs(t, st, 2, 10*time.Second)
	paths := make(map[string]bool)
	for _, job := range jobs {
		if job.Kind != store.JobImportExport {
			t.Fatalf("unexpected job kind: %s", job.Kind)
		}
		var payload watcher.ImportPayload
		if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
			t.Fatalf("unmarshal payload: %v", err)
		}
		paths[filepath.Base(payload.Path)] = true
	}
	if !paths["old.xml"] || !paths["older.wxr"] {
		t.Fatalf("expected both pre-existing exports enqueued, got %v", paths)
	}
	if paths["notes.txt"] {
		t.Fatal("non-export file enqueued by the initial scan")
	}
}

func TestWatcherIgnoresNonXML(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	w := watcher.New(st, cfg.Paths.ImportDropDir, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	testsupport.WriteFile(t, filepath.Join(cfg.Paths.ImportDropDir, "notes.txt"), "hello")

	time.Sleep(3 * time.Second)
	jobs, err := st.ListJobs(context.Background())
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("expected no jobs, got %d", len(jobs))
	}
}

func TestWatcherStartStopIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	w := watcher.New(st, cfg.Paths.ImportDropDir, nil)
	ctx := context.Background()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := w.Start(ctx); err != nil {
		t.Fatalf("second Start failed: %v", err)
	}
	if !w.Running() {
		t.Fatal("expected watcher running")
	}
	w.Stop()
	w.Stop()
	if w.Running() {
		t.Fatal("expected watcher stopped")
	}
}
