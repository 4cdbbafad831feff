// Package watcher monitors the import drop directory. Dropping a WordPress
// export XML file into it enqueues an import job for the worker, so content
// refreshes without restarting anything.
package watcher

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"quill/internal/logging"
	"quill/internal/store"
)

// settleDelay gives the writer time to finish before the file is enqueued.
// Exports are copied in, not atomically renamed, so a create event usually
// precedes the last write.
const settleDelay = 2 * time.Second

// ImportPayload is the job payload for a dropped export.
type ImportPayload struct {
	Path string `json:"path"`
}

// isExport reports whether the filename looks like a WordPress export.
// WordPress exports carry either extension depending on the exporter version.
func isExport(name string) bool {
	ext := filepath.Ext(name)
	return strings.EqualFold(ext, ".xml") || strings.EqualFold(ext, ".wxr")
}

// Watcher enqueues import jobs for XML files appearing in the drop dir.
type Watcher struct {
	store  *store.Store
	dir    string
	logger *slog.Logger

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	quit    chan struct{}
	running bool
}

// New constructs a Watcher over dir.
func New(st *store.Store, dir string, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Watcher{
		store:  st,
		dir:    dir,
		logger: logging.WithComponent(logger, "import-watcher"),
	}
}

// Start begins watching. Safe to call once; repeat calls are no-ops.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(w.dir); err != nil {
		fsw.Close()
		return err
	}

	w.fsw = fsw
	w.quit = make(chan struct{})
	w.running = true

	quit := w.quit
	go w.loop(ctx, fsw, quit)

	w.logger.Info("watching import directory", logging.String("dir", w.dir))
	return nil
}

// Stop shuts the watcher down.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	close(w.quit)
	w.quit = nil
	_ = w.fsw.Close()
	w.fsw = nil
	w.running = false
	w.logger.Info("import watcher stopped")
}

// Running reports whether the watcher is active.
func (w *Watcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher, quit <-chan struct{}) {
	pending := make(map[string]*time.Timer)
	defer func() {
		for _, timer := range pending {
			timer.Stop()
		}
	}()

	w.scanExisting(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-quit:
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
				continue
			}
			if !isExport(event.Name) {
				continue
			}
			path := event.Name
			if timer, exists := pending[path]; exists {
				timer.Reset(settleDelay)
				continue
			}
			pending[path] = time.AfterFunc(settleDelay, func() {
				w.enqueue(ctx, path)
			})
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", logging.Error(err))
		}
	}
}

// scanExisting enqueues exports already sitting in the drop directory when
// watching begins; fsnotify only reports files arriving afterwards. The
// import matches records by WordPress IDs, so re-enqueueing a file that was
// processed before a restart changes nothing.
func (w *Watcher) scanExisting(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("scan import directory", logging.Error(err))
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !isExport(entry.Name()) {
			continue
		}
		w.enqueue(ctx, filepath.Join(w.dir, entry.Name()))
	}
}

func (w *Watcher) enqueue(ctx context.Context, path string) {
	payload, err := json.Marshal(ImportPayload{Path: path})
	if err != nil {
		w.logger.Error("marshal import payload", logging.Error(err))
		return
	}
	job, err := w.store.EnqueueJob(ctx, store.JobImportExport, string(payload))
	if err != nil {
		w.logger.Error("enqueue import job",
			logging.String("path", path),
			logging.Error(err))
		return
	}
	w.logger.Info("queued export import",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String("path", path))
}
