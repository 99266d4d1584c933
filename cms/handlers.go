package cms

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/gagglehome/backend/models"
)

// orderings maps the public ordering parameter to sortable columns.
var orderings = map[string]string{
	"publish_date": "publish_date",
	"view_count":   "view_count",
	"created_at":   "created_at",
	"updated_at":   "updated_at",
}

func orderClause(param, fallback string) string {
	if param == "" {
		param = fallback
	}
	desc := strings.HasPrefix(param, "-")
	col, ok := orderings[strings.TrimPrefix(param, "-")]
	if !ok {
		return "created_at DESC"
	}
	if desc {
		return col + " DESC"
	}
	return col
}

func (s *Server) postQuery() *gorm.DB {
	return s.db.Model(&models.Post{}).
		Preload("Author").
		Preload("Categories").
		Preload("Tags")
}

func publishedOnly(q *gorm.DB) *gorm.DB {
	return q.Where("posts.status = ? AND posts.publish_date <= ?", models.StatusPublished, time.Now().UTC())
}

// maxPageSize caps list page sizes; a missing or invalid limit falls back
// to the default.
const (
	defaultPageSize = 50
	maxPageSize     = 100
)

func pagination(c echo.Context) (limit, offset int) {
	limit = defaultPageSize
	if n, err := strconv.Atoi(c.QueryParam("limit")); err == nil && n > 0 {
		limit = n
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if n, err := strconv.Atoi(c.QueryParam("offset")); err == nil && n > 0 {
		offset = n
	}
	return limit, offset
}

// likeEscaper neutralizes LIKE metacharacters in user search terms so a
// literal % or _ only matches itself.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func searchClause(q *gorm.DB, search string) *gorm.DB {
	term := "%" + likeEscaper.Replace(search) + "%"
	return q.Where(
		`posts.title LIKE ? ESCAPE '\' OR posts.content LIKE ? ESCAPE '\' OR posts.excerpt LIKE ? ESCAPE '\'`,
		term, term, term)
}

func (s *Server) handleListPosts(c echo.Context) error {
	q := s.postQuery()

	staff := s.isStaff(c)
	if !staff {
		q = publishedOnly(q)
	}

	if cat := c.QueryParam("category"); cat != "" {
		q = q.Joins("JOIN post_categories ON post_categories.post_id = posts.id").
			Joins("JOIN categories ON categories.id = post_categories.category_id").
			Where("categories.slug = ?", cat)
	}
	if tag := c.QueryParam("tag"); tag != "" {
		q = q.Joins("JOIN post_tags ON post_tags.post_id = posts.id").
			Joins("JOIN tags ON tags.id = post_tags.tag_id").
			Where("tags.slug = ?", tag)
	}
	if c.QueryParam("featured") != "" {
		q = q.Where("posts.featured = ?", true)
	}
	if staff {
		if status := c.QueryParam("status"); status != "" {
			q = q.Where("posts.status = ?", status)
		}
	}
	if search := c.QueryParam("search"); search != "" {
		q = searchClause(q, search)
	}

	limit, offset := pagination(c)
	q = q.Distinct("posts.*").
		Order(orderClause(c.QueryParam("ordering"), "-created_at")).
		Limit(limit).
		Offset(offset)

	var posts []models.Post
	if err := q.Find(&posts).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.postListViews(posts))
}

// getPostBySlug loads a post with its associations, 404ing cleanly.
func (s *Server) getPostBySlug(slug string) (*models.Post, error) {
	var post models.Post
	if err := s.postQuery().First(&post, "posts.slug = ?", slug).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound, "post not found")
		}
		return nil, err
	}
	return &post, nil
}

func (s *Server) handleGetPost(c echo.Context) error {
	post, err := s.getPostBySlug(c.Param("slug"))
	if err != nil {
		return err
	}

	staff := s.isStaff(c)
	if !staff && !post.Published(time.Now().UTC()) {
		return echo.NewHTTPError(http.StatusNotFound, "post not found")
	}

	// Staff get the raw markdown alongside the parsed content so the
	// editor can round-trip it.
	return c.JSON(http.StatusOK, s.postDetailView(post, staff))
}

// postInput is the write payload for create and (partial) update.
type postInput struct {
	Title   *string `json:"title"`
	Slug    *string `json:"slug"`
	Content *string `json:"content"`
	Excerpt *string `json:"excerpt"`

	FeaturedImage  *string `json:"featured_image"`
	OgImage        *string `json:"og_image"`
	FullWidthImage *bool   `json:"full_width_image"`

	HeroBackgroundType     *string  `json:"hero_background_type"`
	HeroBackgroundOpacity  *float64 `json:"hero_background_opacity"`
	HeroBackgroundScope    *string  `json:"hero_background_scope"`
	HeroBackgroundSize     *string  `json:"hero_background_size"`
	HeroBackgroundTileSize *int     `json:"hero_background_tile_size"`

	Status      *string    `json:"status"`
	PublishDate *time.Time `json:"publish_date"`

	Featured      *bool `json:"featured"`
	AllowComments *bool `json:"allow_comments"`

	MetaTitle       *string `json:"meta_title"`
	MetaDescription *string `json:"meta_description"`
	MetaKeywords    *string `json:"meta_keywords"`
	FocusKeyword    *string `json:"focus_keyword"`
	CanonicalURL    *string `json:"canonical_url"`

	CategoryIDs *[]uint `json:"category_ids"`
	TagIDs      *[]uint `json:"tag_ids"`
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func (in *postInput) apply(p *models.Post) {
	setIf(&p.Title, in.Title)
	setIf(&p.Slug, in.Slug)
	setIf(&p.Content, in.Content)
	setIf(&p.Excerpt, in.Excerpt)
	setIf(&p.FeaturedImage, in.FeaturedImage)
	setIf(&p.OgImage, in.OgImage)
	setIf(&p.FullWidthImage, in.FullWidthImage)
	setIf(&p.HeroBackgroundType, in.HeroBackgroundType)
	setIf(&p.HeroBackgroundOpacity, in.HeroBackgroundOpacity)
	setIf(&p.HeroBackgroundScope, in.HeroBackgroundScope)
	setIf(&p.HeroBackgroundSize, in.HeroBackgroundSize)
	setIf(&p.HeroBackgroundTileSize, in.HeroBackgroundTileSize)
	setIf(&p.Status, in.Status)
	setIf(&p.Featured, in.Featured)
	setIf(&p.AllowComments, in.AllowComments)
	setIf(&p.MetaTitle, in.MetaTitle)
	setIf(&p.MetaDescription, in.MetaDescription)
	setIf(&p.MetaKeywords, in.MetaKeywords)
	setIf(&p.FocusKeyword, in.FocusKeyword)
	setIf(&p.CanonicalURL, in.CanonicalURL)
	if in.PublishDate != nil {
		d := *in.PublishDate
		p.PublishDate = &d
	}
}

// validatePost enforces the publishing rules: published posts need
// content (and get a publish date), scheduled posts need a future one.
func validatePost(p *models.Post) error {
	if p.Status != "" && !models.ValidStatus(p.Status) {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid status: %s", p.Status))
	}
	switch p.Status {
	case models.StatusPublished:
		if p.Content == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "content is required for published posts")
		}
	case models.StatusScheduled:
		if p.PublishDate == nil {
			return echo.NewHTTPError(http.StatusBadRequest, "publish date is required for scheduled posts")
		}
		if !p.PublishDate.After(time.Now().UTC()) {
			return echo.NewHTTPError(http.StatusBadRequest, "publish date must be in the future for scheduled posts")
		}
	}
	return nil
}

func (s *Server) setPostAssociations(p *models.Post, in *postInput) error {
	if in.CategoryIDs != nil {
		var cats []models.Category
		if len(*in.CategoryIDs) > 0 {
			if err := s.db.Find(&cats, *in.CategoryIDs).Error; err != nil {
				return err
			}
		}
		if err := s.db.Model(p).Association("Categories").Replace(cats); err != nil {
			return err
		}
	}
	if in.TagIDs != nil {
		var tags []models.Tag
		if len(*in.TagIDs) > 0 {
			if err := s.db.Find(&tags, *in.TagIDs).Error; err != nil {
				return err
			}
		}
		if err := s.db.Model(p).Association("Tags").Replace(tags); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) handleCreatePost(c echo.Context) error {
	var in postInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON")
	}
	if in.Title == nil || *in.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title is required")
	}

	post := models.Post{
		Status:   models.StatusDraft,
		AuthorID: s.currentUser(c).ID,
	}
	in.apply(&post)

	if err := validatePost(&post); err != nil {
		return err
	}
	if err := s.db.Create(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return echo.NewHTTPError(http.StatusBadRequest, "a post with this slug already exists")
		}
		return err
	}
	if err := s.setPostAssociations(&post, &in); err != nil {
		return err
	}

	created, err := s.getPostBySlug(post.Slug)
	if err != nil {
		return err
	}
	s.log.Info("post created", "slug", post.Slug, "status", post.Status, "author", s.currentUser(c).Handle)
	return c.JSON(http.StatusCreated, s.postDetailView(created, true))
}

// canEditPost: authors may edit their own posts, staff may edit any.
func canEditPost(u *models.User, p *models.Post) bool {
	return u.Admin || p.AuthorID == u.ID
}

func (s *Server) handleUpdatePost(c echo.Context) error {
	post, err := s.getPostBySlug(c.Param("slug"))
	if err != nil {
		return err
	}
	if !canEditPost(s.currentUser(c), post) {
		return echo.NewHTTPError(http.StatusForbidden, "you may only edit your own posts")
	}

	var in postInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON")
	}
	in.apply(post)

	if err := validatePost(post); err != nil {
		return err
	}
	if err := s.db.Save(post).Error; err != nil {
		return err
	}
	if err := s.setPostAssociations(post, &in); err != nil {
		return err
	}

	updated, err := s.getPostBySlug(post.Slug)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.postDetailView(updated, true))
}

func (s *Server) handleDeletePost(c echo.Context) error {
	post, err := s.getPostBySlug(c.Param("slug"))
	if err != nil {
		return err
	}
	if !canEditPost(s.currentUser(c), post) {
		return echo.NewHTTPError(http.StatusForbidden, "you may only delete your own posts")
	}
	if err := s.db.Delete(post).Error; err != nil {
		return err
	}
	s.log.Info("post deleted", "slug", post.Slug)
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleIncrementViewCount(c echo.Context) error {
	post, err := s.getPostBySlug(c.Param("slug"))
	if err != nil {
		return err
	}

	// UpdateColumn skips the save hooks so a view bump never touches
	// derived fields.
	if err := s.db.Model(post).UpdateColumn("view_count", gorm.Expr("view_count + 1")).Error; err != nil {
		return err
	}
	postViews.Inc()

	return c.JSON(http.StatusOK, map[string]int{"view_count": post.ViewCount + 1})
}

func (s *Server) handleRelatedPosts(c echo.Context) error {
	post, err := s.getPostBySlug(c.Param("slug"))
	if err != nil {
		return err
	}

	var catIDs, tagIDs []uint
	for _, cat := range post.Categories {
		catIDs = append(catIDs, cat.ID)
	}
	for _, tag := range post.Tags {
		tagIDs = append(tagIDs, tag.ID)
	}

	if len(catIDs) == 0 && len(tagIDs) == 0 {
		return c.JSON(http.StatusOK, []postListView{})
	}

	shared := s.db
	if len(catIDs) > 0 {
		shared = shared.Where("posts.id IN (?)",
			s.db.Table("post_categories").Select("post_id").Where("category_id IN ?", catIDs))
	}
	if len(tagIDs) > 0 {
		sub := s.db.Table("post_tags").Select("post_id").Where("tag_id IN ?", tagIDs)
		if len(catIDs) > 0 {
			shared = shared.Or("posts.id IN (?)", sub)
		} else {
			shared = shared.Where("posts.id IN (?)", sub)
		}
	}

	var related []models.Post
	q := publishedOnly(s.postQuery()).
		Where("posts.id <> ?", post.ID).
		Where(shared).
		Order("publish_date DESC").
		Limit(6)
	if err := q.Find(&related).Error; err != nil {
		return err
	}

	return c.JSON(http.StatusOK, s.postListViews(related))
}

func (s *Server) handleListDrafts(c echo.Context) error {
	var posts []models.Post
	q := s.postQuery().
		Where("posts.author_id = ? AND posts.status = ?", s.currentUser(c).ID, models.StatusDraft).
		Order("updated_at DESC")
	if err := q.Find(&posts).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.postListViews(posts))
}

func (s *Server) handleListAllPosts(c echo.Context) error {
	q := s.postQuery().Order("updated_at DESC")

	if status := c.QueryParam("status"); status != "" {
		q = q.Where("posts.status = ?", status)
	}
	if author := c.QueryParam("author"); author != "" {
		q = q.Joins("JOIN users ON users.id = posts.author_id").
			Where("users.handle = ?", author)
	}

	var posts []models.Post
	if err := q.Find(&posts).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.postListViews(posts))
}
