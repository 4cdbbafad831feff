package main

import (
	"context"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"quill/internal/store"
	"quill/internal/testsupport"
)

const cliExportFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"
    xmlns:content="http://purl.org/rss/1.0/modules/content/"
    xmlns:excerpt="http://wordpress.org/export/1.2/excerpt/"
    xmlns:dc="http://purl.org/dc/elements/1.1/"
    xmlns:wp="http://wordpress.org/export/1.2/">
  <channel>
    <title>CLI Blog</title>
    <item>
      <title>Hello CLI</title>
      <pubDate>Wed, 15 Jan 2020 10:30:00 +0000</pubDate>
      <dc:creator>admin</dc:creator>
      <content:encoded><![CDATA[<p>Imported from the command line</p>]]></content:encoded>
      <wp:post_id>501</wp:post_id>
      <wp:post_name>hello-cli</wp:post_name>
      <wp:post_type>post</wp:post_type>
      <wp:status>publish</wp:status>
    </item>
  </channel>
</rss>`

func TestMigrateReportsAppliedMigrations(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"migrate"}, env.configPath)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	requireContains(t, out, "migrations applied")
}

func TestStatusShowsContentAndJobCounts(t *testing.T) {
	env := setupCLITestEnv(t)
	st := env.openEnvStore(t)
	author := testsupport.NewUser(t, st, "writer")
	testsupport.NewPublishedPost(t, st, author.ID, "Counted", "counted")

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Posts")
	requireContains(t, out, "Published")
	requireContains(t, out, string(store.JobPending))
}

func TestJobsListRetryClear(t *testing.T) {
	env := setupCLITestEnv(t)
	st := env.openEnvStore(t)
	ctx := context.Background()

	job, err := st.EnqueueJob(ctx, store.JobDownloadImages, "{}")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	claimed, err := st.ClaimNextJob(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("claim: %v", err)
	}
	if err := st.FailJob(ctx, job.ID, "boom", 1); err != nil {
		t.Fatalf("fail: %v", err)
	}

	out, _, err := runCLI(t, []string{"jobs", "list", "--failed"}, env.configPath)
	if err != nil {
		t.Fatalf("jobs list: %v", err)
	}
	requireContains(t, out, store.JobDownloadImages)
	requireContains(t, out, "boom")

	out, _, err = runCLI(t, []string{"jobs", "retry"}, env.configPath)
	if err != nil {
		t.Fatalf("jobs retry: %v", err)
	}
	requireContains(t, out, "Requeued 1 jobs")

	claimed, err = st.ClaimNextJob(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("claim after retry: %v", err)
	}
	if err := st.CompleteJob(ctx, claimed.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	out, _, err = runCLI(t, []string{"jobs", "clear"}, env.configPath)
	if err != nil {
		t.Fatalf("jobs clear: %v", err)
	}
	requireContains(t, out, "Removed 1 completed jobs")
}

func TestUserCreateAdminAndSetPassword(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"user", "create-admin"}, env.configPath)
	if err != nil {
		t.Fatalf("create-admin: %v", err)
	}
	requireContains(t, out, `Created admin user "admin"`)

	out, _, err = runCLI(t, []string{"user", "create-admin"}, env.configPath)
	if err != nil {
		t.Fatalf("second create-admin: %v", err)
	}
	requireContains(t, out, "already exists")

	out, _, err = runCLI(t, []string{"user", "set-password", "admin", "rotated-secret"}, env.configPath)
	if err != nil {
		t.Fatalf("set-password: %v", err)
	}
	requireContains(t, out, `Updated password for "admin"`)

	st := env.openEnvStore(t)
	user, err := st.UserByUsername(context.Background(), "admin")
	if err != nil {
		t.Fatalf("load admin: %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("rotated-secret")); err != nil {
		t.Fatalf("password not rotated: %v", err)
	}
}

func TestImportCommandCreatesPosts(t *testing.T) {
	env := setupCLITestEnv(t)
	exportPath := filepath.Join(env.baseDir, "export.xml")
	testsupport.WriteFile(t, exportPath, cliExportFixture)

	out, _, err := runCLI(t, []string{"import", exportPath}, env.configPath)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	requireContains(t, out, "Posts created")

	st := env.openEnvStore(t)
	post, err := st.PostBySlug(context.Background(), "hello-cli")
	if err != nil {
		t.Fatalf("imported post missing: %v", err)
	}
	if post.WPPostID != 501 {
		t.Fatalf("unexpected wp post id %d", post.WPPostID)
	}
}

func TestPinImagesReportsCounts(t *testing.T) {
	env := setupCLITestEnv(t)
	st := env.openEnvStore(t)
	author := testsupport.NewUser(t, st, "writer")
	testsupport.NewPublishedPost(t, st, author.ID, "Bare", "bare")

	out, _, err := runCLI(t, []string{
		"pin-images",
		"bare=https://example.com/cover.jpg",
		"ghost=https://example.com/ghost.jpg",
	}, env.configPath)
	if err != nil {
		t.Fatalf("pin-images: %v", err)
	}
	requireContains(t, out, "Pinned 1, skipped 0, not found 1")
	requireContains(t, out, "missing post: ghost")

	post, err := st.PostBySlug(context.Background(), "bare")
	if err != nil {
		t.Fatalf("load pinned post: %v", err)
	}
	requireContains(t, post.ContentMD, "https://example.com/cover.jpg")
}

func TestJobsRetryRejectsBadID(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"jobs", "retry", "not-a-number"}, env.configPath)
	if err == nil {
		t.Fatal("expected invalid job id to be rejected")
	}
}
