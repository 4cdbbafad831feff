// Package worker drains the background job queue. One worker process runs at
// a time, enforced with a lock file; inside it jobs are claimed oldest first,
// heartbeated while running, and returned to pending when a worker dies
// mid-job.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"quill/internal/config"
	"quill/internal/logging"
	"quill/internal/store"
)

// Handler executes one job kind.
type Handler func(ctx context.Context, job *store.Job) error

// Worker polls the job table and dispatches to registered handlers.
type Worker struct {
	cfg      *config.Config
	store    *store.Store
	logger   *slog.Logger
	handlers map[string]Handler

	pollInterval       time.Duration
	errorRetryInterval time.Duration
	heartbeatInterval  time.Duration
	heartbeatTimeout   time.Duration

	lockPath string
	lock     *flock.Flock

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs a Worker. Handlers are registered separately so tests can
// install fakes.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	return &Worker{
		cfg:                cfg,
		store:              st,
		logger:             logging.WithComponent(logger, "worker"),
		handlers:           make(map[string]Handler),
		pollInterval:       time.Duration(cfg.Worker.PollInterval) * time.Second,
		errorRetryInterval: time.Duration(cfg.Worker.ErrorRetryInterval) * time.Second,
		heartbeatInterval:  time.Duration(cfg.Worker.HeartbeatInterval) * time.Second,
		heartbeatTimeout:   time.Duration(cfg.Worker.HeartbeatTimeout) * time.Second,
		lockPath:           lockPath,
		lock:               flock.New(lockPath),
	}
}

// Register installs the handler for a job kind, replacing any previous one.
func (w *Worker) Register(kind string, handler Handler) {
	w.handlers[kind] = handler
}

// Start acquires the worker lock and launches the poll loop.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return errors.New("worker already running")
	}

	ok, err := w.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire worker lock: %w", err)
	}
	if !ok {
		return errors.New("another worker instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.wg.Add(1)
	go w.run(runCtx)

	w.logger.Info("worker started",
		logging.String("lock", w.lockPath),
		logging.Duration("poll_interval", w.pollInterval))
	return nil
}

// Stop cancels the poll loop, waits for the in-flight job, and releases the
// lock.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	w.cancel = nil
	w.running = false
	w.mu.Unlock()

	cancel()
	w.wg.Wait()
	if err := w.lock.Unlock(); err != nil {
		w.logger.Warn("failed to release worker lock", logging.Error(err))
	}
	w.logger.Info("worker stopped")
}

// Running reports whether the worker loop is active.
func (w *Worker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		if reclaimed, err := w.store.ReclaimStaleJobs(ctx, time.Now().Add(-w.heartbeatTimeout)); err != nil {
			w.logger.Warn("reclaim stale jobs", logging.Error(err))
		} else if reclaimed > 0 {
			w.logger.Info("reclaimed stale jobs", logging.Int64("count", reclaimed))
		}

		job, err := w.store.ClaimNextJob(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("claim job", logging.Error(err))
			if !w.sleep(ctx, w.errorRetryInterval) {
				return
			}
			continue
		}
		if job == nil {
			if !w.sleep(ctx, w.pollInterval) {
				return
			}
			continue
		}

		w.process(ctx, job)
	}
}

func (w *Worker) process(ctx context.Context, job *store.Job) {
	logger := w.logger.With(
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldJobKind, job.Kind))

	handler, ok := w.handlers[job.Kind]
	if !ok {
		logger.Error("no handler for job kind")
		if err := w.store.FailJob(ctx, job.ID, "unknown job kind "+job.Kind, job.Attempts); err != nil {
			logger.Error("fail job", logging.Error(err))
		}
		return
	}

	jobCtx, stopHeartbeat := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go w.heartbeatLoop(jobCtx, &hbWG, job.ID)

	logger.Info("job started", logging.Int("attempt", job.Attempts))
	start := time.Now()
	err := handler(jobCtx, job)
	stopHeartbeat()
	hbWG.Wait()

	if err != nil {
		logger.Error("job failed",
			logging.Duration("elapsed", time.Since(start)),
			logging.Error(err))
		if failErr := w.store.FailJob(ctx, job.ID, err.Error(), w.cfg.Worker.MaxAttempts); failErr != nil {
			logger.Error("record job failure", logging.Error(failErr))
		}
		w.sleep(ctx, w.errorRetryInterval)
		return
	}

	if err := w.store.CompleteJob(ctx, job.ID); err != nil {
		logger.Error("complete job", logging.Error(err))
		return
	}
	logger.Info("job completed", logging.Duration("elapsed", time.Since(start)))
}

func (w *Worker) heartbeatLoop(ctx context.Context, wg *sync.WaitGroup, jobID int64) {
	defer wg.Done()
	ticker := time.NewTicker(w.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.store.JobHeartbeat(ctx, jobID); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Warn("heartbeat update failed",
					logging.Int64(logging.FieldJobID, jobID),
					logging.Error(err))
			}
		}
	}
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
