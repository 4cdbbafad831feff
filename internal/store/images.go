package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const imageColumns = "id, file_path, original_name, alt_text, caption, width, height, size_bytes, uploaded_at"

func scanImage(sc scanner) (*Image, error) {
	var (
		image      Image
		width      sql.NullInt64
		height     sql.NullInt64
		sizeBytes  sql.NullInt64
		uploadedAt sql.NullString
	)
	if err := sc.Scan(
		&image.ID,
		&image.FilePath,
		&image.OriginalName,
		&image.AltText,
		&image.Caption,
		&width,
		&height,
		&sizeBytes,
		&uploadedAt,
	); err != nil {
		return nil, err
	}
	image.Width = width.Int64
	image.Height = height.Int64
	image.SizeBytes = sizeBytes.Int64
	if uploaded, err := parseTimeString(uploadedAt.String); err == nil {
		image.UploadedAt = uploaded
	}
	return &image, nil
}

// CreateImage inserts an image record.
func (s *Store) CreateImage(ctx context.Context, image *Image) (*Image, error) {
	if image == nil {
		return nil, errors.New("image is nil")
	}
	uploadedAt := image.UploadedAt
	if uploadedAt.IsZero() {
		uploadedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO images (file_path, original_name, alt_text, caption, width, height, size_bytes, uploaded_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		image.FilePath,
		image.OriginalName,
		image.AltText,
		image.Caption,
		nullableInt64(image.Width),
		nullableInt64(image.Height),
		nullableInt64(image.SizeBytes),
		formatTime(uploadedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("create image: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.ImageByID(ctx, id)
}

// ImageByID fetches an image by identifier.
func (s *Store) ImageByID(ctx context.Context, id int64) (*Image, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+imageColumns+` FROM images WHERE id = ?`, id)
	image, err := scanImage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get image: %w", err)
	}
	return image, nil
}

// ImageByFilePath fetches the image stored at the given uploads-relative path.
func (s *Store) ImageByFilePath(ctx context.Context, filePath string) (*Image, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+imageColumns+` FROM images WHERE file_path = ?`, filePath)
	image, err := scanImage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get image by path: %w", err)
	}
	return image, nil
}

// ImageByOriginalName fetches the first image with the given source filename.
// Featured-image extraction matches downloaded files by this name.
func (s *Store) ImageByOriginalName(ctx context.Context, name string) (*Image, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+imageColumns+` FROM images WHERE original_name = ? ORDER BY id LIMIT 1`,
		name,
	)
	image, err := scanImage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get image by original name: %w", err)
	}
	return image, nil
}

// ListImages returns every image newest first.
func (s *Store) ListImages(ctx context.Context) ([]*Image, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+imageColumns+` FROM images ORDER BY uploaded_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	defer rows.Close()
	var images []*Image
	for rows.Next() {
		image, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, image)
	}
	return images, rows.Err()
}
