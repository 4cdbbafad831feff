package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const commentColumns = "id, post_id, parent_id, author_name, author_email, content, status, created_at, wp_comment_id"

func scanComment(sc scanner) (*Comment, error) {
	var (
		comment     Comment
		parentID    sql.NullInt64
		statusStr   string
		createdAt   sql.NullString
		wpCommentID sql.NullInt64
	)
	if err := sc.Scan(
		&comment.ID,
		&comment.PostID,
		&parentID,
		&comment.AuthorName,
		&comment.AuthorEmail,
		&comment.Content,
		&statusStr,
		&createdAt,
		&wpCommentID,
	); err != nil {
		return nil, err
	}
	comment.ParentID = parentID.Int64
	comment.Status = CommentStatus(statusStr)
	comment.WPCommentID = wpCommentID.Int64
	if created, err := parseTimeString(createdAt.String); err == nil {
		comment.CreatedAt = created
	}
	return &comment, nil
}

// CreateComment inserts a comment. CreatedAt is honored when set so imported
// comments keep their original timestamps.
func (s *Store) CreateComment(ctx context.Context, comment *Comment) (*Comment, error) {
	if comment == nil {
		return nil, errors.New("comment is nil")
	}
	createdAt := comment.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO comments (post_id, parent_id, author_name, author_email, content, status, created_at, wp_comment_id)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		comment.PostID,
		nullableInt64(comment.ParentID),
		comment.AuthorName,
		comment.AuthorEmail,
		comment.Content,
		comment.Status,
		formatTime(createdAt),
		nullableInt64(comment.WPCommentID),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("create comment: %w", ErrDuplicate)
		}
		return nil, fmt.Errorf("create comment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.CommentByID(ctx, id)
}

// CommentByID fetches a comment by identifier.
func (s *Store) CommentByID(ctx context.Context, id int64) (*Comment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+commentColumns+` FROM comments WHERE id = ?`, id)
	comment, err := scanComment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get comment: %w", err)
	}
	return comment, nil
}

// CommentByWPID fetches a comment by its original WordPress comment ID.
func (s *Store) CommentByWPID(ctx context.Context, wpCommentID int64) (*Comment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+commentColumns+` FROM comments WHERE wp_comment_id = ?`, wpCommentID)
	comment, err := scanComment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get comment by wp id: %w", err)
	}
	return comment, nil
}

// ApprovedCommentsForPost returns a post's approved comments oldest first, so
// threads read in order.
func (s *Store) ApprovedCommentsForPost(ctx context.Context, postID int64) ([]*Comment, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+commentColumns+` FROM comments
         WHERE post_id = ? AND status = ?
         ORDER BY created_at, id`,
		postID,
		CommentApproved,
	)
	if err != nil {
		return nil, fmt.Errorf("list approved comments: %w", err)
	}
	defer rows.Close()
	var comments []*Comment
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, comment)
	}
	return comments, rows.Err()
}

// SetCommentStatus moves a comment between moderation states.
func (s *Store) SetCommentStatus(ctx context.Context, id int64, status CommentStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE comments SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("set comment status: %w", err)
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

// CountApprovedForPost returns the number of approved comments on a post.
func (s *Store) CountApprovedForPost(ctx context.Context, postID int64) (int, error) {
	var count int
	row := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM comments WHERE post_id = ? AND status = ?`,
		postID,
		CommentApproved,
	)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count approved comments: %w", err)
	}
	return count, nil
}
