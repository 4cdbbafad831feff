package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const userColumns = "id, username, email, display_name, password_hash, is_admin, created_at"

func scanUser(sc scanner) (*User, error) {
	var (
		user      User
		isAdmin   int
		createdAt string
	)
	if err := sc.Scan(&user.ID, &user.Username, &user.Email, &user.DisplayName, &user.PasswordHash, &isAdmin, &createdAt); err != nil {
		return nil, err
	}
	user.IsAdmin = isAdmin != 0
	if created, err := parseTimeString(createdAt); err == nil {
		user.CreatedAt = created
	}
	return &user, nil
}

// CreateUser inserts a new user.
func (s *Store) CreateUser(ctx context.Context, user *User) (*User, error) {
	if user == nil {
		return nil, errors.New("user is nil")
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO users (username, email, display_name, password_hash, is_admin, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		user.Username,
		user.Email,
		user.DisplayName,
		user.PasswordHash,
		boolToInt(user.IsAdmin),
		formatTime(now),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("create user %q: %w", user.Username, ErrDuplicate)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.UserByID(ctx, id)
}

// UserByID fetches a user by identifier.
func (s *Store) UserByID(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// UserByUsername fetches a user by username.
func (s *Store) UserByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return user, nil
}

// GetOrCreateUser returns the user with the given username, creating it from
// the template when absent. The boolean reports whether a row was created.
func (s *Store) GetOrCreateUser(ctx context.Context, username string, template *User) (*User, bool, error) {
	existing, err := s.UserByUsername(ctx, username)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	user := User{Username: username}
	if template != nil {
		user = *template
		user.Username = username
	}
	created, err := s.CreateUser(ctx, &user)
	if errors.Is(err, ErrDuplicate) {
		// Lost a race with a concurrent insert.
		existing, getErr := s.UserByUsername(ctx, username)
		if getErr != nil {
			return nil, false, getErr
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return created, true, nil
}

// UpdateUserPassword replaces the stored password hash.
func (s *Store) UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, passwordHash, id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
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

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
