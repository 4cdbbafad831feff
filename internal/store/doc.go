// Package store manages blog persistence backed by SQLite.
//
// It owns the schema (versioned, embedded migrations), the content model
// (users, tags, posts, comments, images, page views), and the background job
// queue the worker drains. All operations take a context and return wrapped
// errors; absent rows surface as ErrNotFound rather than sql.ErrNoRows.
package store
