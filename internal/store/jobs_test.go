package store_test

import (
	"context"
	"testing"
	"time"

	"quill/internal/store"
	"quill/internal/testsupport"
)

func TestClaimNextJobOrdersByCreation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	first, err := st.EnqueueJob(ctx, store.JobDownloadImages, `{"post_id":1}`)
	if err != nil {
		t.Fatalf("EnqueueJob failed: %v", err)
	}
	if _, err := st.EnqueueJob(ctx, store.JobExtractFeatured, ""); err != nil {
		t.Fatalf("second EnqueueJob failed: %v", err)
	}

	claimed, err := st.ClaimNextJob(ctx)
	if err != nil {
		t.Fatalf("ClaimNextJob failed: %v", err)
	}
	if claimed == nil || claimed.ID != first.ID {
		t.Fatalf("expected job %d, got %#v", first.ID, claimed)
	}
	if claimed.Status != store.JobRunning {
		t.Fatalf("expected running status, got %s", claimed.Status)
	}
	if claimed.Attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", claimed.Attempts)
	}
	if claimed.StartedAt == nil || claimed.LastHeartbeat == nil {
		t.Fatal("expected started_at and last_heartbeat to be set")
	}
}

func TestClaimNextJobReturnsNilWhenEmpty(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	job, err := st.ClaimNextJob(context.Background())
	if err != nil {
		t.Fatalf("ClaimNextJob failed: %v", err)
	}
	if job != nil {
		t.Fatalf("expected no job, got %#v", job)
	}
}

func TestCompleteJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	if _, err := st.EnqueueJob(ctx, store.JobDownloadImages, ""); err != nil {
		t.Fatalf("EnqueueJob failed: %v", err)
	}
	claimed, err := st.ClaimNextJob(ctx)
	if err != nil {
		t.Fatalf("ClaimNextJob failed: %v", err)
	}
	if err := st.CompleteJob(ctx, claimed.ID); err != nil {
		t.Fatalf("CompleteJob failed: %v", err)
	}

	done, err := st.JobByID(ctx, claimed.ID)
	if err != nil {
		t.Fatalf("JobByID failed: %v", err)
	}
	if done.Status != store.JobCompleted {
		t.Fatalf("expected completed, got %s", done.Status)
	}
	if done.LastHeartbeat != nil {
		t.Fatal("expected heartbeat cleared on completion")
	}
}

func TestFailJobRetriesUntilAttemptLimit(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	const maxAttempts = 2
	if _, err := st.EnqueueJob(ctx, store.JobDownloadImages, ""); err != nil {
		t.Fatalf("EnqueueJob failed: %v", err)
	}

	claimed, err := st.ClaimNextJob(ctx)
	if err != nil {
		t.Fatalf("ClaimNextJob failed: %v", err)
	}
	if err := st.FailJob(ctx, claimed.ID, "download timed out", maxAttempts); err != nil {
		t.Fatalf("FailJob failed: %v", err)
	}

	afterFirst, err := st.JobByID(ctx, claimed.ID)
	if err != nil {
		t.Fatalf("JobByID failed: %v", err)
	}
	if afterFirst.Status != store.JobPending {
		t.Fatalf("expected pending after first failure, got %s", afterFirst.Status)
	}
	if afterFirst.ErrorMessage != "download timed out" {
		t.Fatalf("expected error message preserved, got %q", afterFirst.ErrorMessage)
	}

	reclaimed, err := st.ClaimNextJob(ctx)
	if err != nil {
		t.Fatalf("second ClaimNextJob failed: %v", err)
	}
	if reclaimed == nil || reclaimed.ID != claimed.ID {
		t.Fatalf("expected same job back, got %#v", reclaimed)
	}
	if err := st.FailJob(ctx, reclaimed.ID, "still failing", maxAttempts); err != nil {
		t.Fatalf("second FailJob failed: %v", err)
	}

	afterSecond, err := st.JobByID(ctx, claimed.ID)
	if err != nil {
		t.Fatalf("JobByID failed: %v", err)
	}
	if afterSecond.Status != store.JobFailed {
		t.Fatalf("expected failed after attempt limit, got %s", afterSecond.Status)
	}
}

func TestReclaimStaleJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	if _, err := st.EnqueueJob(ctx, store.JobDownloadImages, ""); err != nil {
		t.Fatalf("EnqueueJob failed: %v", err)
	}
	claimed, err := st.ClaimNextJob(ctx)
	if err != nil {
		t.Fatalf("ClaimNextJob failed: %v", err)
	}

	// Cutoff before the claim: heartbeat is fresh, nothing reclaimed.
	count, err := st.ReclaimStaleJobs(ctx, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("ReclaimStaleJobs failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no reclaims for fresh heartbeat, got %d", count)
	}

	// Cutoff after the claim: heartbeat is stale.
	count, err = st.ReclaimStaleJobs(ctx, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("ReclaimStaleJobs failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 reclaim, got %d", count)
	}

	reclaimed, err := st.JobByID(ctx, claimed.ID)
	if err != nil {
		t.Fatalf("JobByID failed: %v", err)
	}
	if reclaimed.Status != store.JobPending {
		t.Fatalf("expected pending after reclaim, got %s", reclaimed.Status)
	}
	if reclaimed.LastHeartbeat != nil {
		t.Fatal("expected heartbeat cleared on reclaim")
	}
}

func TestRetryFailedJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	if _, err := st.EnqueueJob(ctx, store.JobDownloadImages, ""); err != nil {
		t.Fatalf("EnqueueJob failed: %v", err)
	}
	claimed, err := st.ClaimNextJob(ctx)
	if err != nil {
		t.Fatalf("ClaimNextJob failed: %v", err)
	}
	if err := st.FailJob(ctx, claimed.ID, "boom", 1); err != nil {
		t.Fatalf("FailJob failed: %v", err)
	}

	count, err := st.RetryFailedJobs(ctx)
	if err != nil {
		t.Fatalf("RetryFailedJobs failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 retried job, got %d", count)
	}

	retried, err := st.JobByID(ctx, claimed.ID)
	if err != nil {
		t.Fatalf("JobByID failed: %v", err)
	}
	if retried.Status != store.JobPending || retried.Attempts != 0 {
		t.Fatalf("unexpected retried job: %#v", retried)
	}
}

func TestJobStats(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := st.EnqueueJob(ctx, store.JobDownloadImages, ""); err != nil {
			t.Fatalf("EnqueueJob failed: %v", err)
		}
	}
	claimed, err := st.ClaimNextJob(ctx)
	if err != nil {
		t.Fatalf("ClaimNextJob failed: %v", err)
	}
	if err := st.CompleteJob(ctx, claimed.ID); err != nil {
		t.Fatalf("CompleteJob failed: %v", err)
	}

	stats, err := st.JobStats(ctx)
	if err != nil {
		t.Fatalf("JobStats failed: %v", err)
	}
	if stats[store.JobPending] != 2 || stats[store.JobCompleted] != 1 {
		t.Fatalf("unexpected stats: %#v", stats)
	}
}
