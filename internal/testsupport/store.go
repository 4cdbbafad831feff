package testsupport

import (
	"context"
	"testing"
	"time"

	"quill/internal/config"
	"quill/internal/store"
)

// MustOpenStore opens a store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg.DatabasePath())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewUser creates a user for tests using the provided store.
func NewUser(t testing.TB, st *store.Store, username string) *store.User {
	t.Helper()

	user, err := st.CreateUser(context.Background(), &store.User{
		Username:     username,
		Email:        username + "@example.com",
		DisplayName:  username,
		PasswordHash: "x",
	})
	if err != nil {
		t.Fatalf("store.CreateUser: %v", err)
	}
	return user
}

// NewPublishedPost creates a published post owned by authorID.
func NewPublishedPost(t testing.TB, st *store.Store, authorID int64, title, slug string) *store.Post {
	t.Helper()

	now := time.Now().UTC()
	post, err := st.CreatePost(context.Background(), &store.Post{
		Title:       title,
		Slug:        slug,
		ContentMD:   "Body of " + title,
		ContentHTML: "<p>Body of " + title + "</p>",
		Status:      store.PostPublished,
		AuthorID:    authorID,
		PublishedAt: &now,
	})
	if err != nil {
		t.Fatalf("store.CreatePost: %v", err)
	}
	return post
}
