package cms

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/gagglehome/backend/content"
	"github.com/gagglehome/backend/models"
)

// Response shapes mirror the frontend contract: snake_case fields, image
// URLs nulled when unset, and content_parsed only on detail views.

type categoryView struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	PostCount   int64  `json:"post_count"`
}

type tagView struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	PostCount int64  `json:"post_count"`
}

type authorView struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

type postListView struct {
	ID               uint           `json:"id"`
	Title            string         `json:"title"`
	Slug             string         `json:"slug"`
	Excerpt          string         `json:"excerpt"`
	FeaturedImageURL *string        `json:"featured_image_url"`
	AuthorName       string         `json:"author_name"`
	Status           string         `json:"status"`
	PublishDate      *time.Time     `json:"publish_date"`
	ReadingTime      int            `json:"reading_time"`
	ViewCount        int            `json:"view_count"`
	Categories       []categoryView `json:"categories"`
	Tags             []tagView      `json:"tags"`
	Featured         bool           `json:"featured"`
}

type postDetailView struct {
	ID            uint           `json:"id"`
	Title         string         `json:"title"`
	Slug          string         `json:"slug"`
	Content       string         `json:"content,omitempty"`
	ContentParsed content.Result `json:"content_parsed"`
	Excerpt       string         `json:"excerpt"`

	FeaturedImageURL *string `json:"featured_image_url"`
	OgImageURL       *string `json:"og_image_url"`
	FullWidthImage   bool    `json:"full_width_image"`

	HeroBackgroundType     string  `json:"hero_background_type"`
	HeroBackgroundOpacity  float64 `json:"hero_background_opacity"`
	HeroBackgroundScope    string  `json:"hero_background_scope"`
	HeroBackgroundSize     string  `json:"hero_background_size"`
	HeroBackgroundTileSize int     `json:"hero_background_tile_size"`

	Author      authorView `json:"author"`
	PublishDate *time.Time `json:"publish_date"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	ReadingTime int `json:"reading_time"`
	ViewCount   int `json:"view_count"`

	Categories []categoryView `json:"categories"`
	Tags       []tagView      `json:"tags"`

	Featured      bool `json:"featured"`
	AllowComments bool `json:"allow_comments"`

	MetaTitle       string `json:"meta_title"`
	MetaDescription string `json:"meta_description"`
	MetaKeywords    string `json:"meta_keywords"`
	FocusKeyword    string `json:"focus_keyword"`
	CanonicalURL    string `json:"canonical_url"`
}

func optionalURL(u string) *string {
	if u == "" {
		return nil
	}
	return &u
}

// ogImageURL falls back to the featured image when no OG image is set.
func ogImageURL(p *models.Post) *string {
	if p.OgImage != "" {
		return &p.OgImage
	}
	return optionalURL(p.FeaturedImage)
}

// publishedPostCount counts published posts attached via the given join
// table, for the post_count field on category and tag views.
func (s *Server) publishedPostCount(joinTable, fkColumn string, id uint) int64 {
	var n int64
	s.db.Model(&models.Post{}).
		Joins("JOIN "+joinTable+" ON "+joinTable+".post_id = posts.id").
		Where(joinTable+"."+fkColumn+" = ?", id).
		Where("posts.status = ? AND posts.publish_date <= ?", models.StatusPublished, time.Now().UTC()).
		Count(&n)
	return n
}

func (s *Server) categoryView(cat *models.Category) categoryView {
	return categoryView{
		ID:          cat.ID,
		Name:        cat.Name,
		Slug:        cat.Slug,
		Description: cat.Description,
		PostCount:   s.publishedPostCount("post_categories", "category_id", cat.ID),
	}
}

func (s *Server) tagView(tag *models.Tag) tagView {
	return tagView{
		ID:        tag.ID,
		Name:      tag.Name,
		Slug:      tag.Slug,
		PostCount: s.publishedPostCount("post_tags", "tag_id", tag.ID),
	}
}

func (s *Server) categoryViews(cats []models.Category) []categoryView {
	out := make([]categoryView, 0, len(cats))
	for i := range cats {
		out = append(out, s.categoryView(&cats[i]))
	}
	return out
}

func (s *Server) tagViews(tags []models.Tag) []tagView {
	out := make([]tagView, 0, len(tags))
	for i := range tags {
		out = append(out, s.tagView(&tags[i]))
	}
	return out
}

func (s *Server) postListView(p *models.Post) postListView {
	return postListView{
		ID:               p.ID,
		Title:            p.Title,
		Slug:             p.Slug,
		Excerpt:          p.Excerpt,
		FeaturedImageURL: optionalURL(p.FeaturedImage),
		AuthorName:       p.Author.FullName(),
		Status:           p.Status,
		PublishDate:      p.PublishDate,
		ReadingTime:      p.ReadingTime,
		ViewCount:        p.ViewCount,
		Categories:       s.categoryViews(p.Categories),
		Tags:             s.tagViews(p.Tags),
		Featured:         p.Featured,
	}
}

func (s *Server) postListViews(posts []models.Post) []postListView {
	out := make([]postListView, 0, len(posts))
	for i := range posts {
		out = append(out, s.postListView(&posts[i]))
	}
	return out
}

// contentParsed runs the content transform, memoized on a hash of the
// source since the transform is deterministic.
func (s *Server) contentParsed(src string) content.Result {
	sum := sha256.Sum256([]byte(src))
	key := hex.EncodeToString(sum[:])
	if res, ok := s.transformCache.Get(key); ok {
		return res
	}
	res := content.Transform(src, s.transformCfg)
	s.transformCache.Add(key, res)
	return res
}

// postDetailView builds the full serialization. includeRaw adds the raw
// markdown content for staff editing.
func (s *Server) postDetailView(p *models.Post, includeRaw bool) postDetailView {
	view := postDetailView{
		ID:            p.ID,
		Title:         p.Title,
		Slug:          p.Slug,
		ContentParsed: s.contentParsed(p.Content),
		Excerpt:       p.Excerpt,

		FeaturedImageURL: optionalURL(p.FeaturedImage),
		OgImageURL:       ogImageURL(p),
		FullWidthImage:   p.FullWidthImage,

		HeroBackgroundType:     p.HeroBackgroundType,
		HeroBackgroundOpacity:  p.HeroBackgroundOpacity,
		HeroBackgroundScope:    p.HeroBackgroundScope,
		HeroBackgroundSize:     p.HeroBackgroundSize,
		HeroBackgroundTileSize: p.HeroBackgroundTileSize,

		Author: authorView{
			Name:     p.Author.FullName(),
			Email:    p.Author.Email,
			Username: p.Author.Handle,
		},
		PublishDate: p.PublishDate,
		Status:      p.Status,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,

		ReadingTime: p.ReadingTime,
		ViewCount:   p.ViewCount,

		Categories: s.categoryViews(p.Categories),
		Tags:       s.tagViews(p.Tags),

		Featured:      p.Featured,
		AllowComments: p.AllowComments,

		MetaTitle:       p.MetaTitle,
		MetaDescription: p.MetaDescription,
		MetaKeywords:    p.MetaKeywords,
		FocusKeyword:    p.FocusKeyword,
		CanonicalURL:    p.CanonicalURL,
	}
	if includeRaw {
		view.Content = p.Content
	}
	return view
}
