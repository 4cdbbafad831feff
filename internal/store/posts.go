package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const postColumns = "id, title, slug, content_md, content_html, excerpt, status, author_id, featured_image_id, published_at, created_at, updated_at, wp_post_id"

func scanPost(sc scanner) (*Post, error) {
	var (
		post        Post
		statusStr   string
		featuredID  sql.NullInt64
		publishedAt sql.NullString
		createdAt   sql.NullString
		updatedAt   sql.NullString
		wpPostID    sql.NullInt64
	)
	if err := sc.Scan(
		&post.ID,
		&post.Title,
		&post.Slug,
		&post.ContentMD,
		&post.ContentHTML,
		&post.Excerpt,
		&statusStr,
		&post.AuthorID,
		&featuredID,
		&publishedAt,
		&createdAt,
		&updatedAt,
		&wpPostID,
	); err != nil {
		return nil, err
	}
	post.Status = PostStatus(statusStr)
	post.FeaturedImageID = featuredID.Int64
	post.WPPostID = wpPostID.Int64
	post.PublishedAt = timeFromNull(publishedAt)
	if created, err := parseTimeString(createdAt.String); err == nil {
		post.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedAt.String); err == nil {
		post.UpdatedAt = updated
	}
	return &post, nil
}

// CreatePost inserts a new post.
func (s *Store) CreatePost(ctx context.Context, post *Post) (*Post, error) {
	if post == nil {
		return nil, errors.New("post is nil")
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO posts (
            title, slug, content_md, content_html, excerpt, status, author_id,
            featured_image_id, published_at, created_at, updated_at, wp_post_id
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		post.Title,
		post.Slug,
		post.ContentMD,
		post.ContentHTML,
		post.Excerpt,
		post.Status,
		post.AuthorID,
		nullableInt64(post.FeaturedImageID),
		nullableTime(post.PublishedAt),
		formatTime(now),
		formatTime(now),
		nullableInt64(post.WPPostID),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("create post %q: %w", post.Slug, ErrDuplicate)
		}
		return nil, fmt.Errorf("create post: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.PostByID(ctx, id)
}

// UpdatePost persists changes to an existing post.
func (s *Store) UpdatePost(ctx context.Context, post *Post) error {
	if post == nil {
		return errors.New("post is nil")
	}
	post.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE posts
         SET title = ?, slug = ?, content_md = ?, content_html = ?, excerpt = ?,
             status = ?, author_id = ?, featured_image_id = ?, published_at = ?,
             updated_at = ?, wp_post_id = ?
         WHERE id = ?`,
		post.Title,
		post.Slug,
		post.ContentMD,
		post.ContentHTML,
		post.Excerpt,
		post.Status,
		post.AuthorID,
		nullableInt64(post.FeaturedImageID),
		nullableTime(post.PublishedAt),
		formatTime(post.UpdatedAt),
		nullableInt64(post.WPPostID),
		post.ID,
	)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
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

// DeletePost removes a post. Comments and tag links cascade.
func (s *Store) DeletePost(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
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

// PostByID fetches a post by identifier.
func (s *Store) PostByID(ctx context.Context, id int64) (*Post, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ?`, id)
	post, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	return post, nil
}

// PostBySlug fetches a post by slug.
func (s *Store) PostBySlug(ctx context.Context, slug string) (*Post, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE slug = ?`, slug)
	post, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get post by slug: %w", err)
	}
	return post, nil
}

// PostByWPID fetches a post by its original WordPress post ID.
func (s *Store) PostByWPID(ctx context.Context, wpPostID int64) (*Post, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE wp_post_id = ?`, wpPostID)
	post, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get post by wp id: %w", err)
	}
	return post, nil
}

// SlugExists reports whether a slug is taken by a post other than excludeID.
func (s *Store) SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error) {
	var count int
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM posts WHERE slug = ? AND id != ?`, slug, excludeID)
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("check slug: %w", err)
	}
	return count > 0, nil
}

// CountPosts returns the total number of posts. The startup import runs only
// when this is zero.
func (s *Store) CountPosts(ctx context.Context) (int, error) {
	var count int
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM posts`)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return count, nil
}

// visibleClause is the WHERE condition shared by every public-facing query.
// A post is visible once its status is published and its publish time has
// passed; scheduled posts carry a future published_at and posts imported
// without a parseable date carry none. Bind PostPublished and visibleCutoff()
// in that order.
const visibleClause = `status = ? AND published_at IS NOT NULL AND published_at <= ?`

func visibleCutoff() string {
	return formatTime(time.Now().UTC())
}

// CountPublished returns the number of publicly visible posts.
func (s *Store) CountPublished(ctx context.Context) (int, error) {
	var count int
	row := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM posts WHERE `+visibleClause,
		PostPublished,
		visibleCutoff(),
	)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count published: %w", err)
	}
	return count, nil
}

// ListPublished returns publicly visible posts newest first. A non-positive
// limit returns every visible post.
func (s *Store) ListPublished(ctx context.Context, limit, offset int) ([]*Post, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+postColumns+` FROM posts
         WHERE `+visibleClause+`
         ORDER BY published_at DESC, created_at DESC
         LIMIT ? OFFSET ?`,
		PostPublished,
		visibleCutoff(),
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list published: %w", err)
	}
	return collectPosts(rows)
}

// ListPosts returns every post ordered by identifier. Used by maintenance
// passes that must visit all content.
func (s *Store) ListPosts(ctx context.Context) ([]*Post, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+postColumns+` FROM posts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return collectPosts(rows)
}

// ListPostsByAuthor returns an author's posts newest first.
func (s *Store) ListPostsByAuthor(ctx context.Context, authorID int64) ([]*Post, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+postColumns+` FROM posts WHERE author_id = ? ORDER BY created_at DESC`,
		authorID,
	)
	if err != nil {
		return nil, fmt.Errorf("list posts by author: %w", err)
	}
	return collectPosts(rows)
}

// ListPublishedByTag returns visible posts carrying the tag, newest first.
func (s *Store) ListPublishedByTag(ctx context.Context, tagID int64, limit, offset int) ([]*Post, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+postColumns+` FROM posts p
         JOIN post_tags pt ON pt.post_id = p.id
         WHERE pt.tag_id = ? AND p.status = ? AND p.published_at IS NOT NULL AND p.published_at <= ?
         ORDER BY p.published_at DESC, p.created_at DESC
         LIMIT ? OFFSET ?`,
		tagID,
		PostPublished,
		visibleCutoff(),
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list published by tag: %w", err)
	}
	return collectPosts(rows)
}

// CountPublishedByTag returns the number of visible posts carrying the tag.
func (s *Store) CountPublishedByTag(ctx context.Context, tagID int64) (int, error) {
	var count int
	row := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM posts p JOIN post_tags pt ON pt.post_id = p.id
         WHERE pt.tag_id = ? AND p.status = ? AND p.published_at IS NOT NULL AND p.published_at <= ?`,
		tagID,
		PostPublished,
		visibleCutoff(),
	)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count published by tag: %w", err)
	}
	return count, nil
}

// SearchPublished returns published posts whose title or markdown content
// contains the query, newest first.
func (s *Store) SearchPublished(ctx context.Context, query string, limit int) ([]*Post, error) {
	pattern := "%" + query + "%"
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+postColumns+` FROM posts
         WHERE `+visibleClause+` AND (title LIKE ? OR content_md LIKE ?)
         ORDER BY published_at DESC, created_at DESC
         LIMIT ?`,
		PostPublished,
		visibleCutoff(),
		pattern,
		pattern,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search published: %w", err)
	}
	return collectPosts(rows)
}

// RelatedPublished returns published posts sharing at least one tag with the
// given post, ranked by shared-tag count.
func (s *Store) RelatedPublished(ctx context.Context, postID int64, limit int) ([]*Post, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+prefixedPostColumns("p")+` FROM posts p
         JOIN post_tags pt ON pt.post_id = p.id
         WHERE pt.tag_id IN (SELECT tag_id FROM post_tags WHERE post_id = ?)
           AND p.id != ? AND p.status = ? AND p.published_at IS NOT NULL AND p.published_at <= ?
         GROUP BY p.id
         ORDER BY COUNT(pt.tag_id) DESC, p.published_at DESC
         LIMIT ?`,
		postID,
		postID,
		PostPublished,
		visibleCutoff(),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("related published: %w", err)
	}
	return collectPosts(rows)
}

// ListPostsWithoutFeaturedImage returns posts lacking a featured image,
// oldest first.
func (s *Store) ListPostsWithoutFeaturedImage(ctx context.Context) ([]*Post, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+postColumns+` FROM posts WHERE featured_image_id IS NULL ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list posts without featured image: %w", err)
	}
	return collectPosts(rows)
}

// SetFeaturedImage assigns a featured image to a post without touching other
// columns.
func (s *Store) SetFeaturedImage(ctx context.Context, postID, imageID int64) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE posts SET featured_image_id = ?, updated_at = ? WHERE id = ?`,
		nullableInt64(imageID),
		formatTime(time.Now().UTC()),
		postID,
	)
	if err != nil {
		return fmt.Errorf("set featured image: %w", err)
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

func collectPosts(rows *sql.Rows) ([]*Post, error) {
	defer rows.Close()
	var posts []*Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

func prefixedPostColumns(alias string) string {
	return alias + ".id, " + alias + ".title, " + alias + ".slug, " + alias + ".content_md, " +
		alias + ".content_html, " + alias + ".excerpt, " + alias + ".status, " + alias + ".author_id, " +
		alias + ".featured_image_id, " + alias + ".published_at, " + alias + ".created_at, " +
		alias + ".updated_at, " + alias + ".wp_post_id"
}
