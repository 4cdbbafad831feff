package featured_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"quill/internal/featured"
	"quill/internal/imagefetch"
	"quill/internal/render"
	"quill/internal/store"
	"quill/internal/testsupport"
	"quill/internal/urlrepair"
)

func TestFirstImageURL(t *testing.T) {
	cases := []struct {
		name string
		html string
		md   string
		want string
	}{
		{
			"html preferred",
			`<p><img src="/uploads/2020/01/a.jpg"></p>`,
			`![b](/uploads/2020/01/b.jpg)`,
			"/uploads/2020/01/a.jpg",
		},
		{
			"markdown fallback",
			"<p>no images</p>",
			`text ![pic](/uploads/2020/01/c.jpg) more`,
			"/uploads/2020/01/c.jpg",
		},
		{"none", "<p>plain</p>", "plain", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := featured.FirstImageURL(tc.html, tc.md); got != tc.want {
				t.Fatalf("FirstImageURL = %q, want %q", got, tc.want)
			}
		})
	}
}

func newExtractorEnv(t *testing.T, handler http.Handler) (*store.Store, *featured.Extractor, *httptest.Server) {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	fetcher := imagefetch.New(st, cfg.Paths.UploadsDir, 5*time.Second, nil)
	extractor := featured.NewExtractor(st, fetcher, urlrepair.New(""), nil)
	return st, extractor, srv
}

func TestExtractorAssignsFromContent(t *testing.T) {
	st, extractor, srv := newExtractorEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("image bytes"))
	}))

	ctx := context.Background()
	author := testsupport.NewUser(t, st, "author")
	post, err := st.CreatePost(ctx, &store.Post{
		Title:       "With Image",
		Slug:        "with-image",
		ContentMD:   "![](" + srv.URL + "/2020/01/cover.jpg)",
		ContentHTML: `<p><img src="` + srv.URL + `/2020/01/cover.jpg"></p>`,
		Status:      store.PostPublished,
		AuthorID:    author.ID,
	})
	if err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}

	assigned, err := extractor.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if assigned != 1 {
		t.Fatalf("expected 1 assignment, got %d", assigned)
	}

	updated, err := st.PostByID(ctx, post.ID)
	if err != nil {
		t.Fatalf("PostByID failed: %v", err)
	}
	if updated.FeaturedImageID == 0 {
		t.Fatal("expected featured image assigned")
	}
}

func TestExtractorNeverOverwrites(t *testing.T) {
	st, extractor, srv := newExtractorEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("image bytes"))
	}))

	ctx := context.Background()
	author := testsupport.NewUser(t, st, "author")
	existing, err := st.CreateImage(ctx, &store.Image{FilePath: "images/2019/01/old.jpg", OriginalName: "old.jpg"})
	if err != nil {
		t.Fatalf("CreateImage failed: %v", err)
	}
	post, err := st.CreatePost(ctx, &store.Post{
		Title:           "Already Featured",
		Slug:            "already-featured",
		ContentMD:       "![](" + srv.URL + "/2020/01/new.jpg)",
		Status:          store.PostPublished,
		AuthorID:        author.ID,
		FeaturedImageID: existing.ID,
	})
	if err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}

	assigned, err := extractor.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if assigned != 0 {
		t.Fatalf("expected no assignments, got %d", assigned)
	}

	updated, err := st.PostByID(ctx, post.ID)
	if err != nil {
		t.Fatalf("PostByID failed: %v", err)
	}
	if updated.FeaturedImageID != existing.ID {
		t.Fatalf("featured image changed: %d", updated.FeaturedImageID)
	}
}

func TestExtractorSkipsPostsWithoutImages(t *testing.T) {
	st, extractor, _ := newExtractorEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected download")
	}))

	ctx := context.Background()
	author := testsupport.NewUser(t, st, "author")
	testsupport.NewPublishedPost(t, st, author.ID, "No Images", "no-images")

	assigned, err := extractor.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if assigned != 0 {
		t.Fatalf("expected no assignments, got %d", assigned)
	}
}

func TestExtractorReusesLocalUpload(t *testing.T) {
	st, extractor, _ := newExtractorEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected download for local upload")
	}))

	ctx := context.Background()
	author := testsupport.NewUser(t, st, "author")
	image, err := st.CreateImage(ctx, &store.Image{
		FilePath:     "images/2020/01/cover.jpg",
		OriginalName: "cover.jpg",
	})
	if err != nil {
		t.Fatalf("CreateImage failed: %v", err)
	}
	post, err := st.CreatePost(ctx, &store.Post{
		Title:     "Local Image",
		Slug:      "local-image",
		ContentMD: "![](/uploads/images/2020/01/cover.jpg)",
		Status:    store.PostPublished,
		AuthorID:  author.ID,
	})
	if err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}

	assigned, err := extractor.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if assigned != 1 {
		t.Fatalf("expected 1 assignment, got %d", assigned)
	}
	updated, err := st.PostByID(ctx, post.ID)
	if err != nil {
		t.Fatalf("PostByID failed: %v", err)
	}
	if updated.FeaturedImageID != image.ID {
		t.Fatalf("expected image %d, got %d", image.ID, updated.FeaturedImageID)
	}
}

func TestPinnerPrependsAndRerenders(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	author := testsupport.NewUser(t, st, "author")
	post := testsupport.NewPublishedPost(t, st, author.ID, "Pinned", "pinned")
	withImage, err := st.CreatePost(ctx, &store.Post{
		Title:     "Has Image",
		Slug:      "has-image",
		ContentMD: "![](https://example.com/a.jpg)",
		Status:    store.PostPublished,
		AuthorID:  author.ID,
	})
	if err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}

	pinner := featured.NewPinner(st, render.New(), nil)
	result, err := pinner.Pin(ctx, map[string]string{
		"pinned":    "https://example.com/featured.png",
		"has-image": "https://example.com/other.png",
		"ghost":     "https://example.com/missing.png",
	})
	if err != nil {
		t.Fatalf("Pin failed: %v", err)
	}
	if result.Updated != 1 || result.Skipped != 1 || len(result.NotFound) != 1 {
		t.Fatalf("unexpected result: %#v", result)
	}

	updated, err := st.PostByID(ctx, post.ID)
	if err != nil {
		t.Fatalf("PostByID failed: %v", err)
	}
	if featured.FirstImageURL(updated.ContentHTML, updated.ContentMD) != "https://example.com/featured.png" {
		t.Fatalf("expected pinned image first, content: %q", updated.ContentMD)
	}

	untouched, err := st.PostByID(ctx, withImage.ID)
	if err != nil {
		t.Fatalf("PostByID failed: %v", err)
	}
	if untouched.ContentMD != "![](https://example.com/a.jpg)" {
		t.Fatalf("post with image was modified: %q", untouched.ContentMD)
	}

	// Second pass is a no-op.
	again, err := pinner.Pin(ctx, map[string]string{"pinned": "https://example.com/featured.png"})
	if err != nil {
		t.Fatalf("second Pin failed: %v", err)
	}
	if again.Updated != 0 || again.Skipped != 1 {
		t.Fatalf("expected idempotent pin, got %#v", again)
	}
}

func TestRunLocalDefersRemoteDownloads(t *testing.T) {
	st, extractor, srv := newExtractorEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected download request: %s", r.URL)
	}))

	ctx := context.Background()
	author := testsupport.NewUser(t, st, "author")

	stored, err := st.CreateImage(ctx, &store.Image{
		FilePath:     "images/2020/01/cover.jpg",
		OriginalName: "cover.jpg",
	})
	if err != nil {
		t.Fatalf("CreateImage failed: %v", err)
	}
	local, err := st.CreatePost(ctx, &store.Post{
		Title:       "Local",
		Slug:        "local",
		ContentHTML: `<p><img src="/uploads/images/2020/01/cover.jpg"></p>`,
		Status:      store.PostPublished,
		AuthorID:    author.ID,
	})
	if err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}
	if _, err := st.CreatePost(ctx, &store.Post{
		Title:       "Remote",
		Slug:        "remote",
		ContentHTML: `<p><img src="` + srv.URL + `/2020/01/far.jpg"></p>`,
		Status:      store.PostPublished,
		AuthorID:    author.ID,
	}); err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}

	assigned, remote, err := extractor.RunLocal(ctx)
	if err != nil {
		t.Fatalf("RunLocal failed: %v", err)
	}
	if assigned != 1 {
		t.Fatalf("expected 1 local assignment, got %d", assigned)
	}
	if remote != 1 {
		t.Fatalf("expected 1 remote pending, got %d", remote)
	}

	updated, err := st.PostByID(ctx, local.ID)
	if err != nil {
		t.Fatalf("PostByID failed: %v", err)
	}
	if updated.FeaturedImageID != stored.ID {
		t.Fatalf("expected featured image %d, got %d", stored.ID, updated.FeaturedImageID)
	}
}
