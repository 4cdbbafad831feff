package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"time"

	"quill/internal/logging"
	"quill/internal/store"
)

const (
	ipHashLength   = 16
	maxFieldLength = 255
)

// hashClientIP reduces an address to a short one-way hash. The raw IP is
// never stored.
func hashClientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	sum := sha256.Sum256([]byte(host))
	return hex.EncodeToString(sum[:])[:ipHashLength]
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit]
}

// recordPageView logs a post-detail hit. Failures are logged and swallowed so
// analytics never break a page load.
func (s *Server) recordPageView(ctx context.Context, r *http.Request, postID int64) {
	view := &store.PageView{
		PostID:    postID,
		ViewedAt:  time.Now().UTC(),
		Referrer:  truncate(r.Referer(), maxFieldLength),
		UserAgent: truncate(r.UserAgent(), maxFieldLength),
		IPHash:    hashClientIP(r.RemoteAddr),
	}
	if err := s.store.RecordPageView(ctx, view); err != nil {
		s.logger.Warn("record page view",
			logging.Int64(logging.FieldPostID, postID),
			logging.Error(err))
	}
}
