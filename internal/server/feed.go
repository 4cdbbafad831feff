package server

import (
	"encoding/xml"
	"net/http"
	"time"

	"github.com/gorilla/feeds"

	"quill/internal/logging"
)

const feedItemLimit = 20

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	base := s.cfg.Server.BaseURL

	posts, err := s.store.ListPublished(ctx, feedItemLimit, 0)
	if err != nil {
		s.writeInternalError(w, err)
		return
	}

	feed := &feeds.Feed{
		Title:   "Quill",
		Link:    &feeds.Link{Href: base},
		Updated: time.Now().UTC(),
	}
	if len(posts) > 0 && posts[0].PublishedAt != nil {
		feed.Updated = *posts[0].PublishedAt
	}

	for _, post := range posts {
		item := &feeds.Item{
			Title:       post.Title,
			Link:        &feeds.Link{Href: absoluteURL(base, "/"+post.Slug)},
			Description: post.Excerpt,
			Id:          absoluteURL(base, "/"+post.Slug),
		}
		if post.PublishedAt != nil {
			item.Created = *post.PublishedAt
		}
		feed.Items = append(feed.Items, item)
	}

	rss, err := feed.ToRss()
	if err != nil {
		s.writeInternalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(rss))
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

type sitemapSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

func (s *Server) handleSitemap(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	base := s.cfg.Server.BaseURL

	set := sitemapSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs: []sitemapURL{
			{Loc: absoluteURL(base, "/")},
			{Loc: absoluteURL(base, "/about")},
			{Loc: absoluteURL(base, "/tags")},
		},
	}

	posts, err := s.store.ListPublished(ctx, 0, 0)
	if err != nil {
		s.writeInternalError(w, err)
		return
	}
	for _, post := range posts {
		entry := sitemapURL{Loc: absoluteURL(base, "/"+post.Slug)}
		if post.PublishedAt != nil {
			entry.LastMod = post.UpdatedAt.Format("2006-01-02")
		}
		set.URLs = append(set.URLs, entry)
	}

	tags, err := s.store.TagsWithPublishedCounts(ctx, 0)
	if err != nil {
		s.writeInternalError(w, err)
		return
	}
	for _, tag := range tags {
		set.URLs = append(set.URLs, sitemapURL{Loc: absoluteURL(base, "/tag/"+tag.Slug)})
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(xml.Header))
	if err := xml.NewEncoder(w).Encode(set); err != nil {
		s.logger.Warn("encode sitemap", logging.Error(err))
	}
}
