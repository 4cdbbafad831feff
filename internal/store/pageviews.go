package store

import (
	"context"
	"fmt"
	"time"
)

// RecordPageView appends a view row for a post.
func (s *Store) RecordPageView(ctx context.Context, view *PageView) error {
	if view == nil {
		return nil
	}
	viewedAt := view.ViewedAt
	if viewedAt.IsZero() {
		viewedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO page_views (post_id, viewed_at, referrer, user_agent, ip_hash)
         VALUES (?, ?, ?, ?, ?)`,
		view.PostID,
		formatTime(viewedAt),
		view.Referrer,
		view.UserAgent,
		view.IPHash,
	)
	if err != nil {
		return fmt.Errorf("record page view: %w", err)
	}
	return nil
}

// ViewCountForPost returns the all-time view count of a post.
func (s *Store) ViewCountForPost(ctx context.Context, postID int64) (int64, error) {
	var count int64
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM page_views WHERE post_id = ?`, postID)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count page views: %w", err)
	}
	return count, nil
}

// PostViewCount pairs a post with its view count over a window. It is
// serialized into the sidebar payload.
type PostViewCount struct {
	PostID int64  `json:"post_id"`
	Title  string `json:"title"`
	Slug   string `json:"slug"`
	Views  int64  `json:"views"`
}

// TopViewedSince returns the most viewed visible posts since the cutoff.
// Posts unpublished after collecting views drop out of the ranking.
func (s *Store) TopViewedSince(ctx context.Context, since time.Time, limit int) ([]PostViewCount, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT p.id, p.title, p.slug, COUNT(v.id) AS views
         FROM page_views v
         JOIN posts p ON p.id = v.post_id
         WHERE v.viewed_at >= ? AND p.status = ?
           AND p.published_at IS NOT NULL AND p.published_at <= ?
         GROUP BY p.id
         ORDER BY views DESC, p.id
         LIMIT ?`,
		formatTime(since.UTC()),
		PostPublished,
		visibleCutoff(),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("top viewed: %w", err)
	}
	defer rows.Close()
	var counts []PostViewCount
	for rows.Next() {
		var entry PostViewCount
		if err := rows.Scan(&entry.PostID, &entry.Title, &entry.Slug, &entry.Views); err != nil {
			return nil, err
		}
		counts = append(counts, entry)
	}
	return counts, rows.Err()
}
