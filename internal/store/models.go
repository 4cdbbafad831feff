package store

import "time"

// PostStatus represents the publication lifecycle of a post.
type PostStatus string

const (
	PostDraft     PostStatus = "draft"
	PostScheduled PostStatus = "scheduled"
	PostPublished PostStatus = "published"
)

// ValidPostStatus reports whether value names a known post status.
func ValidPostStatus(value string) bool {
	switch PostStatus(value) {
	case PostDraft, PostScheduled, PostPublished:
		return true
	}
	return false
}

// CommentStatus represents the moderation state of a comment.
type CommentStatus string

const (
	CommentPending  CommentStatus = "pending"
	CommentApproved CommentStatus = "approved"
	CommentSpam     CommentStatus = "spam"
)

// JobStatus represents the lifecycle of a background job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job kinds processed by the worker.
const (
	JobDownloadImages  = "download_images"
	JobExtractFeatured = "extract_featured"
	JobImportExport    = "import_export"
)

// User is an author or administrator.
type User struct {
	ID           int64
	Username     string
	Email        string
	DisplayName  string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
}

// Tag labels posts. Categories from WordPress are not modeled.
type Tag struct {
	ID       int64
	Name     string
	Slug     string
	WPTermID int64
	// PostCount is populated by queries that aggregate published posts.
	PostCount int
}

// Image is an uploaded or downloaded media file under the uploads directory.
type Image struct {
	ID           int64
	FilePath     string
	OriginalName string
	AltText      string
	Caption      string
	Width        int64
	Height       int64
	SizeBytes    int64
	UploadedAt   time.Time
}

// Post is a blog post. ContentHTML is always derived from ContentMD; write
// paths that change ContentMD must re-render before saving.
type Post struct {
	ID              int64
	Title           string
	Slug            string
	ContentMD       string
	ContentHTML     string
	Excerpt         string
	Status          PostStatus
	AuthorID        int64
	FeaturedImageID int64
	PublishedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	WPPostID        int64
}

// IsPublished reports whether the post is visible to readers.
func (p *Post) IsPublished(now time.Time) bool {
	return p.Status == PostPublished && p.PublishedAt != nil && !p.PublishedAt.After(now)
}

// Comment is reader feedback on a post, optionally threaded via ParentID.
type Comment struct {
	ID          int64
	PostID      int64
	ParentID    int64
	AuthorName  string
	AuthorEmail string
	Content     string
	Status      CommentStatus
	CreatedAt   time.Time
	WPCommentID int64
}

// PageView records a single post-detail request. The client IP is stored only
// as a truncated hash.
type PageView struct {
	ID        int64
	PostID    int64
	ViewedAt  time.Time
	Referrer  string
	UserAgent string
	IPHash    string
}

// Job is a unit of background work drained by the worker process.
type Job struct {
	ID            int64
	Kind          string
	PayloadJSON   string
	Status        JobStatus
	ErrorMessage  string
	Attempts      int
	CreatedAt     time.Time
	UpdatedAt     time.Time
	StartedAt     *time.Time
	LastHeartbeat *time.Time
}
