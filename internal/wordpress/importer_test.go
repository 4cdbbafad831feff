package wordpress_test

import (
	"context"
	"strings"
	"testing"

	"quill/internal/render"
	"quill/internal/store"
	"quill/internal/testsupport"
	"quill/internal/wordpress"
)

func importSample(t *testing.T, st *store.Store, admin *store.User) *wordpress.Stats {
	t.Helper()

	export, err := wordpress.Parse(strings.NewReader(sampleExport))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	importer := wordpress.NewImporter(st, render.New(), nil)
	stats, err := importer.Import(context.Background(), export, admin)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	return stats
}

func TestImportCreatesEverything(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	admin := testsupport.NewUser(t, st, "admin")

	ctx := context.Background()
	stats := importSample(t, st, admin)

	if stats.PostsCreated != 2 || stats.TagsCreated != 1 || stats.CommentsCreated != 2 {
		t.Fatalf("unexpected stats: %#v", stats)
	}

	post, err := st.PostBySlug(ctx, "first-post")
	if err != nil {
		t.Fatalf("PostBySlug failed: %v", err)
	}
	if post.WPPostID != 101 {
		t.Fatalf("expected wp_post_id 101, got %d", post.WPPostID)
	}
	if !strings.Contains(post.ContentMD, "**world**") {
		t.Fatalf("expected markdown conversion, got %q", post.ContentMD)
	}
	if !strings.Contains(post.ContentHTML, "<strong>world</strong>") {
		t.Fatalf("expected rendered HTML, got %q", post.ContentHTML)
	}
	if post.Excerpt != "A short excerpt" {
		t.Fatalf("unexpected excerpt: %q", post.Excerpt)
	}

	author, err := st.UserByUsername(ctx, "chris")
	if err != nil {
		t.Fatalf("UserByUsername failed: %v", err)
	}
	if post.AuthorID != author.ID {
		t.Fatalf("expected author %d, got %d", author.ID, post.AuthorID)
	}

	tags, err := st.TagsForPost(ctx, post.ID)
	if err != nil {
		t.Fatalf("TagsForPost failed: %v", err)
	}
	if len(tags) != 1 || tags[0].Slug != "golang" {
		t.Fatalf("unexpected tags: %#v", tags)
	}

	comments, err := st.ApprovedCommentsForPost(ctx, post.ID)
	if err != nil {
		t.Fatalf("ApprovedCommentsForPost failed: %v", err)
	}
	if len(comments) != 2 {
		t.Fatalf("expected 2 comments, got %d", len(comments))
	}
	if comments[1].ParentID != comments[0].ID {
		t.Fatalf("expected threading: parent %d, got %d", comments[0].ID, comments[1].ParentID)
	}
}

func TestImportIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	admin := testsupport.NewUser(t, st, "admin")

	ctx := context.Background()
	importSample(t, st, admin)
	second := importSample(t, st, admin)

	if second.PostsCreated != 0 || second.TagsCreated != 0 || second.CommentsCreated != 0 {
		t.Fatalf("second import created rows: %#v", second)
	}
	if second.PostsUpdated != 2 {
		t.Fatalf("expected 2 posts updated, got %d", second.PostsUpdated)
	}

	count, err := st.CountPosts(ctx)
	if err != nil {
		t.Fatalf("CountPosts failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 posts after re-import, got %d", count)
	}

	post, err := st.PostBySlug(ctx, "first-post")
	if err != nil {
		t.Fatalf("PostBySlug failed: %v", err)
	}
	comments, err := st.ApprovedCommentsForPost(ctx, post.ID)
	if err != nil {
		t.Fatalf("ApprovedCommentsForPost failed: %v", err)
	}
	if len(comments) != 2 {
		t.Fatalf("expected 2 comments after re-import, got %d", len(comments))
	}
}

func TestImportFallsBackToDefaultAuthor(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	admin := testsupport.NewUser(t, st, "admin")

	export := &wordpress.Export{
		Posts: []wordpress.ExportPost{{
			ID:          500,
			Title:       "Orphan Post",
			Slug:        "orphan-post",
			ContentHTML: "<p>body</p>",
			Status:      "published",
			Author:      "ghost",
		}},
	}
	importer := wordpress.NewImporter(st, render.New(), nil)
	if _, err := importer.Import(context.Background(), export, admin); err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	post, err := st.PostBySlug(context.Background(), "orphan-post")
	if err != nil {
		t.Fatalf("PostBySlug failed: %v", err)
	}
	if post.AuthorID != admin.ID {
		t.Fatalf("expected default author %d, got %d", admin.ID, post.AuthorID)
	}
}
