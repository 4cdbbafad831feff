package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const tagColumns = "id, name, slug, wp_term_id"

func scanTag(sc scanner) (*Tag, error) {
	var (
		tag      Tag
		wpTermID sql.NullInt64
	)
	if err := sc.Scan(&tag.ID, &tag.Name, &tag.Slug, &wpTermID); err != nil {
		return nil, err
	}
	tag.WPTermID = wpTermID.Int64
	return &tag, nil
}

// TagBySlug fetches a tag by slug.
func (s *Store) TagBySlug(ctx context.Context, slug string) (*Tag, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+tagColumns+` FROM tags WHERE slug = ?`, slug)
	tag, err := scanTag(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get tag: %w", err)
	}
	return tag, nil
}

// GetOrCreateTag returns the tag with the given slug, creating it when
// absent. The boolean reports whether a row was created.
func (s *Store) GetOrCreateTag(ctx context.Context, slug, name string, wpTermID int64) (*Tag, bool, error) {
	existing, err := s.TagBySlug(ctx, slug)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO tags (name, slug, wp_term_id) VALUES (?, ?, ?)`,
		name,
		slug,
		nullableInt64(wpTermID),
	)
	if err != nil {
		if isUniqueViolation(err) {
			tag, getErr := s.TagBySlug(ctx, slug)
			if getErr != nil {
				return nil, false, getErr
			}
			return tag, false, nil
		}
		return nil, false, fmt.Errorf("create tag: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, false, fmt.Errorf("last insert id: %w", err)
	}
	return &Tag{ID: id, Name: name, Slug: slug, WPTermID: wpTermID}, true, nil
}

// TagsForPost returns the tags attached to a post ordered by name.
func (s *Store) TagsForPost(ctx context.Context, postID int64) ([]*Tag, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT t.id, t.name, t.slug, t.wp_term_id
         FROM tags t JOIN post_tags pt ON pt.tag_id = t.id
         WHERE pt.post_id = ? ORDER BY t.name`,
		postID,
	)
	if err != nil {
		return nil, fmt.Errorf("tags for post: %w", err)
	}
	defer rows.Close()

	var tags []*Tag
	for rows.Next() {
		tag, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// TagsWithPublishedCounts returns tags that label at least one published
// post, with the count populated, ordered by count descending then name.
func (s *Store) TagsWithPublishedCounts(ctx context.Context, limit int) ([]*Tag, error) {
	query := `SELECT t.id, t.name, t.slug, t.wp_term_id, COUNT(p.id) AS post_count
        FROM tags t
        JOIN post_tags pt ON pt.tag_id = t.id
        JOIN posts p ON p.id = pt.post_id AND p.status = ?
            AND p.published_at IS NOT NULL AND p.published_at <= ?
        GROUP BY t.id HAVING post_count > 0
        ORDER BY post_count DESC, t.name`
	args := []any{PostPublished, visibleCutoff()}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("tags with counts: %w", err)
	}
	defer rows.Close()

	var tags []*Tag
	for rows.Next() {
		var (
			tag      Tag
			wpTermID sql.NullInt64
		)
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.Slug, &wpTermID, &tag.PostCount); err != nil {
			return nil, err
		}
		tag.WPTermID = wpTermID.Int64
		tags = append(tags, &tag)
	}
	return tags, rows.Err()
}

// AttachTag links a tag to a post. Attaching an already linked tag is a no-op.
func (s *Store) AttachTag(ctx context.Context, postID, tagID int64) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO post_tags (post_id, tag_id) VALUES (?, ?)`,
		postID,
		tagID,
	)
	if err != nil {
		return fmt.Errorf("attach tag: %w", err)
	}
	return nil
}

// ReplacePostTags replaces the full tag set for a post.
func (s *Store) ReplacePostTags(ctx context.Context, postID int64, tagIDs []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace tags tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM post_tags WHERE post_id = ?`, postID); err != nil {
		return fmt.Errorf("clear post tags: %w", err)
	}
	for _, tagID := range tagIDs {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO post_tags (post_id, tag_id) VALUES (?, ?)`, postID, tagID); err != nil {
			return fmt.Errorf("insert post tag: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace tags: %w", err)
	}
	return nil
}
