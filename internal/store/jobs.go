package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const jobColumns = "id, kind, payload_json, status, error_message, attempts, created_at, updated_at, started_at, last_heartbeat"

func scanJob(sc scanner) (*Job, error) {
	var (
		job           Job
		statusStr     string
		errorMessage  sql.NullString
		createdAt     sql.NullString
		updatedAt     sql.NullString
		startedAt     sql.NullString
		lastHeartbeat sql.NullString
	)
	if err := sc.Scan(
		&job.ID,
		&job.Kind,
		&job.PayloadJSON,
		&statusStr,
		&errorMessage,
		&job.Attempts,
		&createdAt,
		&updatedAt,
		&startedAt,
		&lastHeartbeat,
	); err != nil {
		return nil, err
	}
	job.Status = JobStatus(statusStr)
	job.ErrorMessage = errorMessage.String
	if created, err := parseTimeString(createdAt.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedAt.String); err == nil {
		job.UpdatedAt = updated
	}
	job.StartedAt = timeFromNull(startedAt)
	job.LastHeartbeat = timeFromNull(lastHeartbeat)
	return &job, nil
}

// EnqueueJob appends a pending job.
func (s *Store) EnqueueJob(ctx context.Context, kind, payloadJSON string) (*Job, error) {
	if payloadJSON == "" {
		payloadJSON = "{}"
	}
	now := formatTime(time.Now().UTC())
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (kind, payload_json, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)`,
		kind,
		payloadJSON,
		JobPending,
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.JobByID(ctx, id)
}

// JobByID fetches a job by identifier.
func (s *Store) JobByID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ClaimNextJob atomically moves the oldest pending job to running and returns
// it. Returns nil when no pending job exists.
func (s *Store) ClaimNextJob(ctx context.Context) (*Job, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE status = ? ORDER BY created_at, id LIMIT 1`,
		JobPending,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select pending job: %w", err)
	}

	now := time.Now().UTC()
	res, err := tx.ExecContext(
		ctx,
		`UPDATE jobs
         SET status = ?, attempts = attempts + 1, started_at = ?, last_heartbeat = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		JobRunning,
		formatTime(now),
		formatTime(now),
		formatTime(now),
		job.ID,
		JobPending,
	)
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		// Another worker took it between the select and the update.
		return nil, nil
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}

	job.Status = JobRunning
	job.Attempts++
	job.StartedAt = &now
	job.LastHeartbeat = &now
	job.UpdatedAt = now
	return job, nil
}

// JobHeartbeat refreshes the last heartbeat of an in-flight job.
func (s *Store) JobHeartbeat(ctx context.Context, id int64) error {
	now := formatTime(time.Now().UTC())
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET last_heartbeat = ?, updated_at = ? WHERE id = ? AND status = ?`,
		now,
		now,
		id,
		JobRunning,
	)
	if err != nil {
		return fmt.Errorf("job heartbeat: %w", err)
	}
	return nil
}

// CompleteJob marks a running job completed.
func (s *Store) CompleteJob(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET status = ?, error_message = NULL, last_heartbeat = NULL, updated_at = ? WHERE id = ?`,
		JobCompleted,
		formatTime(time.Now().UTC()),
		id,
	)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// FailJob records a failure. Jobs under the attempt limit return to pending
// for another try, otherwise they land in failed with the message attached.
func (s *Store) FailJob(ctx context.Context, id int64, message string, maxAttempts int) error {
	job, err := s.JobByID(ctx, id)
	if err != nil {
		return err
	}
	status := JobPending
	if job.Attempts >= maxAttempts {
		status = JobFailed
	}
	_, err = s.db.ExecContext(
		ctx,
		`UPDATE jobs SET status = ?, error_message = ?, last_heartbeat = NULL, updated_at = ? WHERE id = ?`,
		status,
		nullableString(message),
		formatTime(time.Now().UTC()),
		id,
	)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return nil
}

// ReclaimStaleJobs returns running jobs whose heartbeat expired back to
// pending. Covers workers that died mid-job.
func (s *Store) ReclaimStaleJobs(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
         SET status = ?, last_heartbeat = NULL, updated_at = ?
         WHERE status = ? AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		JobPending,
		formatTime(time.Now().UTC()),
		JobRunning,
		formatTime(cutoff.UTC()),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailedJobs moves failed jobs back to pending. With no IDs every failed
// job is retried.
func (s *Store) RetryFailedJobs(ctx context.Context, ids ...int64) (int64, error) {
	now := formatTime(time.Now().UTC())
	if len(ids) == 0 {
		res, err := s.db.ExecContext(
			ctx,
			`UPDATE jobs SET status = ?, error_message = NULL, attempts = 0, updated_at = ? WHERE status = ?`,
			JobPending,
			now,
			JobFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed jobs: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+3)
	args = append(args, JobPending, now, JobFailed)
	for _, id := range ids {
		args = append(args, id)
	}
	query := `UPDATE jobs SET status = ?, error_message = NULL, attempts = 0, updated_at = ?
         WHERE status = ? AND id IN (` + placeholders + `)`
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry selected jobs: %w", err)
	}
	return res.RowsAffected()
}

// ListJobs returns jobs filtered by status, newest first. With no statuses
// every job is returned.
func (s *Store) ListJobs(ctx context.Context, statuses ...JobStatus) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	var args []any
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY created_at DESC, id DESC`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()
	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// JobStats returns a count of jobs grouped by status.
func (s *Store) JobStats(ctx context.Context) (map[JobStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[JobStatus]int)
	for rows.Next() {
		var status JobStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// ClearCompletedJobs deletes completed jobs.
func (s *Store) ClearCompletedJobs(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE status = ?`, JobCompleted)
	if err != nil {
		return 0, fmt.Errorf("clear completed jobs: %w", err)
	}
	return res.RowsAffected()
}
