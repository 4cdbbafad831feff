// Package wordpress parses WordPress WXR export files and imports their
// posts, tags, authors, and comments into the store. Imports are idempotent:
// rows carry the original WordPress IDs and re-running an import updates
// rather than duplicates.
package wordpress

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"
)

const (
	wxrNS     = "http://wordpress.org/export/1.2/"
	excerptNS = "http://wordpress.org/export/1.2/excerpt/"
	contentNS = "http://purl.org/rss/1.0/modules/content/"
	dcNS      = "http://purl.org/dc/elements/1.1/"
)

// Export is the parsed content of a WXR file.
type Export struct {
	Tags    []ExportTag
	Authors []ExportAuthor
	Posts   []ExportPost
}

// ExportTag is a wp:tag entry. Categories are not imported.
type ExportTag struct {
	TermID int64
	Slug   string
	Name   string
}

// ExportAuthor is a wp:author entry.
type ExportAuthor struct {
	Login       string
	Email       string
	DisplayName string
}

// ExportPost is an item of wp:post_type "post" with an importable status.
type ExportPost struct {
	ID          int64
	Title       string
	Slug        string
	ContentHTML string
	Excerpt     string
	Status      string
	Author      string
	PublishedAt *time.Time
	Tags        []string
	Comments    []ExportComment
}

// ExportComment is a wp:comment entry, ordered by WordPress comment ID so
// parents precede replies.
type ExportComment struct {
	ID          int64
	ParentID    int64
	AuthorName  string
	AuthorEmail string
	Content     string
	Status      string
	CreatedAt   *time.Time
}

type xmlDocument struct {
	Channel xmlChannel `xml:"channel"`
}

type xmlChannel struct {
	Tags    []xmlTag    `xml:"http://wordpress.org/export/1.2/ tag"`
	Authors []xmlAuthor `xml:"http://wordpress.org/export/1.2/ author"`
	Items   []xmlItem   `xml:"item"`
}

type xmlTag struct {
	TermID int64  `xml:"http://wordpress.org/export/1.2/ term_id"`
	Slug   string `xml:"http://wordpress.org/export/1.2/ tag_slug"`
	Name   string `xml:"http://wordpress.org/export/1.2/ tag_name"`
}

type xmlAuthor struct {
	Login       string `xml:"http://wordpress.org/export/1.2/ author_login"`
	Email       string `xml:"http://wordpress.org/export/1.2/ author_email"`
	DisplayName string `xml:"http://wordpress.org/export/1.2/ author_display_name"`
}

type xmlItem struct {
	Title      string        `xml:"title"`
	PubDate    string        `xml:"pubDate"`
	Creator    string        `xml:"http://purl.org/dc/elements/1.1/ creator"`
	Content    string        `xml:"http://purl.org/rss/1.0/modules/content/ encoded"`
	Excerpt    string        `xml:"http://wordpress.org/export/1.2/excerpt/ encoded"`
	PostID     int64         `xml:"http://wordpress.org/export/1.2/ post_id"`
	PostName   string        `xml:"http://wordpress.org/export/1.2/ post_name"`
	PostType   string        `xml:"http://wordpress.org/export/1.2/ post_type"`
	Status     string        `xml:"http://wordpress.org/export/1.2/ status"`
	Categories []xmlCategory `xml:"category"`
	Comments   []xmlComment  `xml:"http://wordpress.org/export/1.2/ comment"`
}

type xmlCategory struct {
	Domain   string `xml:"domain,attr"`
	Nicename string `xml:"nicename,attr"`
}

type xmlComment struct {
	ID          int64  `xml:"http://wordpress.org/export/1.2/ comment_id"`
	Author      string `xml:"http://wordpress.org/export/1.2/ comment_author"`
	AuthorEmail string `xml:"http://wordpress.org/export/1.2/ comment_author_email"`
	Date        string `xml:"http://wordpress.org/export/1.2/ comment_date"`
	Content     string `xml:"http://wordpress.org/export/1.2/ comment_content"`
	Approved    string `xml:"http://wordpress.org/export/1.2/ comment_approved"`
	Parent      int64  `xml:"http://wordpress.org/export/1.2/ comment_parent"`
}

// ParseFile reads and parses a WXR export at path.
func ParseFile(path string) (*Export, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open export: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a WXR export from r. Items that are not posts, or whose
// status is not publish, draft, or future, are skipped.
func Parse(r io.Reader) (*Export, error) {
	var doc xmlDocument
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode export: %w", err)
	}

	export := &Export{}
	for _, tag := range doc.Channel.Tags {
		if tag.Slug == "" {
			continue
		}
		export.Tags = append(export.Tags, ExportTag{
			TermID: tag.TermID,
			Slug:   tag.Slug,
			Name:   tag.Name,
		})
	}
	for _, author := range doc.Channel.Authors {
		if author.Login == "" {
			continue
		}
		export.Authors = append(export.Authors, ExportAuthor{
			Login:       author.Login,
			Email:       author.Email,
			DisplayName: author.DisplayName,
		})
	}
	for _, item := range doc.Channel.Items {
		post, ok := parseItem(item)
		if !ok {
			continue
		}
		export.Posts = append(export.Posts, post)
	}
	return export, nil
}

func parseItem(item xmlItem) (ExportPost, bool) {
	if item.PostType != "post" {
		return ExportPost{}, false
	}
	status, ok := mapPostStatus(item.Status)
	if !ok {
		return ExportPost{}, false
	}

	post := ExportPost{
		ID:          item.PostID,
		Title:       item.Title,
		Slug:        item.PostName,
		ContentHTML: item.Content,
		Excerpt:     item.Excerpt,
		Status:      status,
		Author:      item.Creator,
		PublishedAt: parsePubDate(item.PubDate),
	}
	if post.Title == "" {
		post.Title = "Untitled"
	}

	for _, category := range item.Categories {
		if category.Domain == "post_tag" && category.Nicename != "" {
			post.Tags = append(post.Tags, category.Nicename)
		}
	}

	for _, comment := range item.Comments {
		post.Comments = append(post.Comments, ExportComment{
			ID:          comment.ID,
			ParentID:    comment.Parent,
			AuthorName:  defaultString(comment.Author, "Anonymous"),
			AuthorEmail: comment.AuthorEmail,
			Content:     comment.Content,
			Status:      mapCommentStatus(comment.Approved),
			CreatedAt:   parseCommentDate(comment.Date),
		})
	}
	// Parents carry lower IDs than their replies, so ID order lets the
	// importer resolve threading in one pass.
	sort.Slice(post.Comments, func(i, j int) bool {
		return post.Comments[i].ID < post.Comments[j].ID
	})

	return post, true
}

func mapPostStatus(wpStatus string) (string, bool) {
	switch wpStatus {
	case "publish":
		return "published", true
	case "draft":
		return "draft", true
	case "future":
		return "scheduled", true
	default:
		// trash, private, pending, etc.
		return "", false
	}
}

func mapCommentStatus(approved string) string {
	switch approved {
	case "1":
		return "approved"
	case "spam":
		return "spam"
	default:
		return "pending"
	}
}

func parsePubDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC1123Z, time.RFC1123} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			utc := parsed.UTC()
			return &utc
		}
	}
	return nil
}

func parseCommentDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parsed, err := time.Parse("2006-01-02 15:04:05", raw)
	if err != nil {
		return nil
	}
	utc := parsed.UTC()
	return &utc
}

func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
