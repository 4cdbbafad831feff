// Package imagefetch downloads remote images into the uploads directory and
// registers them in the store. Files land under images/YYYY/MM/ relative to
// the uploads root.
package imagefetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"quill/internal/logging"
	"quill/internal/store"
)

// maxImageBytes bounds a single download. WordPress media rarely exceeds a
// few megabytes; anything larger is rejected rather than buffered.
const maxImageBytes = 25 << 20

// Fetcher downloads images over HTTP and records them.
type Fetcher struct {
	store      *store.Store
	uploadsDir string
	client     *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

// New constructs a Fetcher writing under uploadsDir.
func New(st *store.Store, uploadsDir string, timeout time.Duration, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Fetcher{
		store:      st,
		uploadsDir: uploadsDir,
		client:     &http.Client{Timeout: timeout},
		logger:     logging.WithComponent(logger, "imagefetch"),
		now:        time.Now,
	}
}

// Fetch downloads rawURL, stores the file under the uploads directory, and
// returns the created image record. When an image with the same original
// filename already exists it is returned without downloading again.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*store.Image, error) {
	if strings.HasPrefix(rawURL, "data:") {
		return nil, fmt.Errorf("refusing data URL")
	}

	if name := filenameFromURL(rawURL); name != "" {
		existing, err := f.store.ImageByOriginalName(ctx, name)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: unexpected status %s", rawURL, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("download %s: exceeds %d bytes", rawURL, maxImageBytes)
	}

	filename := filenameFromURL(rawURL)
	if filename == "" {
		filename = generatedFilename(resp.Header.Get("Content-Type"))
	}

	return f.Save(ctx, filename, data)
}

// Save writes image data under images/YYYY/MM/ and records it. Filename
// collisions on disk get a short unique suffix.
func (f *Fetcher) Save(ctx context.Context, filename string, data []byte) (*store.Image, error) {
	now := f.now().UTC()
	relDir := filepath.Join("images", now.Format("2006"), now.Format("01"))
	absDir := filepath.Join(f.uploadsDir, relDir)
	if err := os.MkdirAll(absDir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}

	target := filepath.Join(absDir, filename)
	finalName := filename
	if _, err := os.Stat(target); err == nil {
		ext := filepath.Ext(filename)
		base := strings.TrimSuffix(filename, ext)
		finalName = fmt.Sprintf("%s-%s%s", base, uuid.NewString()[:8], ext)
		target = filepath.Join(absDir, finalName)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return nil, fmt.Errorf("write image: %w", err)
	}

	image, err := f.store.CreateImage(ctx, &store.Image{
		FilePath:     filepath.ToSlash(filepath.Join(relDir, finalName)),
		OriginalName: filename,
		SizeBytes:    int64(len(data)),
	})
	if err != nil {
		return nil, err
	}
	f.logger.Info("stored image",
		logging.String("file", image.FilePath),
		logging.Int64("bytes", image.SizeBytes))
	return image, nil
}

// LocalURL returns the serving path for a stored image.
func LocalURL(image *store.Image) string {
	return "/uploads/" + image.FilePath
}

func filenameFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	name := path.Base(parsed.Path)
	if name == "." || name == "/" || name == "" {
		return ""
	}
	return name
}

func generatedFilename(contentType string) string {
	ext := ".jpg"
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		if parts := strings.SplitN(mediaType, "/", 2); len(parts) == 2 && parts[1] != "" {
			ext = "." + parts[1]
		}
	}
	return "image-" + uuid.NewString()[:8] + ext
}
