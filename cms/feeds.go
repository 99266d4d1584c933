package cms

import (
	"encoding/xml"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/feeds"
	"github.com/labstack/echo/v4"

	"github.com/gagglehome/backend/models"
)

// feedLimit is how many recent posts the RSS feed carries.
const feedLimit = 50

type sitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq"`
	Priority   string `xml:"priority"`
}

type sitemapSet struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

func (s *Server) siteURL(parts ...string) string {
	base := strings.TrimSuffix(s.cfg.PublicURL, "/")
	return base + "/" + strings.Join(parts, "/")
}

func (s *Server) publishedPosts(limit int) ([]models.Post, error) {
	var posts []models.Post
	q := publishedOnly(s.postQuery()).Order("publish_date DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&posts).Error
	return posts, err
}

func (s *Server) handleSitemap(c echo.Context) error {
	set := sitemapSet{
		Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs: []sitemapURL{{
			Loc:        s.siteURL("blog"),
			ChangeFreq: "daily",
			Priority:   "1.0",
		}},
	}

	posts, err := s.publishedPosts(0)
	if err != nil {
		return err
	}
	for _, p := range posts {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        s.siteURL("blog", p.Slug),
			LastMod:    p.UpdatedAt.UTC().Format("2006-01-02"),
			ChangeFreq: "weekly",
			Priority:   "0.8",
		})
	}

	var cats []models.Category
	if err := s.db.Find(&cats).Error; err != nil {
		return err
	}
	for _, cat := range cats {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        s.siteURL("blog", "category", cat.Slug),
			ChangeFreq: "weekly",
			Priority:   "0.6",
		})
	}

	var tags []models.Tag
	if err := s.db.Find(&tags).Error; err != nil {
		return err
	}
	for _, tag := range tags {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        s.siteURL("blog", "tag", tag.Slug),
			ChangeFreq: "weekly",
			Priority:   "0.5",
		})
	}

	out, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, "application/xml", append([]byte(xml.Header), out...))
}

func (s *Server) handleRSSFeed(c echo.Context) error {
	posts, err := s.publishedPosts(feedLimit)
	if err != nil {
		return err
	}

	feed := &feeds.Feed{
		Title:       "GaggleHome Blog",
		Link:        &feeds.Link{Href: s.siteURL("blog")},
		Description: "Latest posts from the GaggleHome blog",
		Updated:     time.Now().UTC(),
	}
	for _, p := range posts {
		item := &feeds.Item{
			Title:       p.Title,
			Link:        &feeds.Link{Href: s.siteURL("blog", p.Slug)},
			Description: p.Excerpt,
			Author:      &feeds.Author{Name: p.Author.FullName()},
			Id:          s.siteURL("blog", p.Slug),
		}
		if p.PublishDate != nil {
			item.Created = *p.PublishDate
		}
		feed.Items = append(feed.Items, item)
	}

	rss, err := feed.ToRss()
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, "application/rss+xml", []byte(rss))
}
