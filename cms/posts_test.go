package cms

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gagglehome/backend/models"
)

func createPost(t *testing.T, s *Server, tok string, body map[string]any) postDetailView {
	t.Helper()
	rec := doRequest(t, s, "POST", "/api/v1/blog/posts", tok, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeJSON[postDetailView](t, rec)
}

func TestCreatePostDerivedFields(t *testing.T) {
	s := newTestServer(t)
	_, tok := createUser(t, s, "admin", true)

	post := createPost(t, s, tok, map[string]any{
		"title":   "Hello Geese",
		"content": "Some **markdown** content.",
		"status":  "published",
	})

	assert.Equal(t, "hello-geese", post.Slug)
	assert.Equal(t, "Some markdown content.", post.Excerpt)
	assert.Equal(t, 1, post.ReadingTime)
	require.NotNil(t, post.PublishDate, "publishing should stamp the date")
	assert.WithinDuration(t, time.Now().UTC(), *post.PublishDate, time.Minute)
	assert.Contains(t, post.ContentParsed.HTML, "<strong>markdown</strong>")
}

func TestCreatePostValidation(t *testing.T) {
	s := newTestServer(t)
	_, tok := createUser(t, s, "admin", true)

	rec := doRequest(t, s, "POST", "/api/v1/blog/posts", tok, map[string]any{
		"content": "no title",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, s, "POST", "/api/v1/blog/posts", tok, map[string]any{
		"title":  "Empty published",
		"status": "published",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, s, "POST", "/api/v1/blog/posts", tok, map[string]any{
		"title":  "Bad status",
		"status": "limbo",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	past := time.Now().UTC().Add(-time.Hour)
	rec = doRequest(t, s, "POST", "/api/v1/blog/posts", tok, map[string]any{
		"title":        "Scheduled in the past",
		"content":      "body",
		"status":       "scheduled",
		"publish_date": past,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostVisibility(t *testing.T) {
	s := newTestServer(t)
	_, tok := createUser(t, s, "admin", true)

	createPost(t, s, tok, map[string]any{
		"title":   "Public Post",
		"content": "visible",
		"status":  "published",
	})
	createPost(t, s, tok, map[string]any{
		"title":   "Secret Draft",
		"content": "hidden",
	})
	future := time.Now().UTC().Add(24 * time.Hour)
	createPost(t, s, tok, map[string]any{
		"title":        "Tomorrow",
		"content":      "hidden until tomorrow",
		"status":       "scheduled",
		"publish_date": future,
	})

	rec := doRequest(t, s, "GET", "/api/v1/blog/posts", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decodeJSON[[]postListView](t, rec)
	require.Len(t, listed, 1)
	assert.Equal(t, "public-post", listed[0].Slug)

	// staff see everything
	rec = doRequest(t, s, "GET", "/api/v1/blog/posts", tok, nil)
	listed = decodeJSON[[]postListView](t, rec)
	assert.Len(t, listed, 3)

	rec = doRequest(t, s, "GET", "/api/v1/blog/posts/secret-draft", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, s, "GET", "/api/v1/blog/posts/secret-draft", tok, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPostDetailContent(t *testing.T) {
	s := newTestServer(t)
	_, tok := createUser(t, s, "admin", true)

	createPost(t, s, tok, map[string]any{
		"title":   "Components",
		"content": "Intro\n\n{{gallery:one,two}}\n",
		"status":  "published",
	})

	// anonymous readers get parsed content but not the raw markdown
	rec := doRequest(t, s, "GET", "/api/v1/blog/posts/components", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decodeJSON[map[string]any](t, rec)
	assert.NotContains(t, out, "content")

	parsed := out["content_parsed"].(map[string]any)
	assert.Contains(t, parsed["html"], `data-component="gallery"`)
	comps := parsed["components"].([]any)
	require.Len(t, comps, 1)
	assert.Equal(t, "component-0", comps[0].(map[string]any)["id"])

	rec = doRequest(t, s, "GET", "/api/v1/blog/posts/components", tok, nil)
	out = decodeJSON[map[string]any](t, rec)
	assert.Contains(t, out, "content")
}

func TestUpdateAndDeletePermissions(t *testing.T) {
	s := newTestServer(t)
	_, adminTok := createUser(t, s, "admin", true)
	_, otherTok := createUser(t, s, "other", false)

	createPost(t, s, adminTok, map[string]any{
		"title":   "Owned",
		"content": "body",
		"status":  "published",
	})

	rec := doRequest(t, s, "PATCH", "/api/v1/blog/posts/owned", otherTok, map[string]any{
		"title": "Hijacked",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, s, "PATCH", "/api/v1/blog/posts/owned", adminTok, map[string]any{
		"title": "Renamed",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Renamed", decodeJSON[postDetailView](t, rec).Title)

	rec = doRequest(t, s, "DELETE", "/api/v1/blog/posts/owned", otherTok, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, s, "DELETE", "/api/v1/blog/posts/owned", adminTok, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, s, "GET", "/api/v1/blog/posts/owned", adminTok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestViewCount(t *testing.T) {
	s := newTestServer(t)
	_, tok := createUser(t, s, "admin", true)

	createPost(t, s, tok, map[string]any{
		"title":   "Counted",
		"content": "body",
		"status":  "published",
	})

	for want := 1; want <= 3; want++ {
		rec := doRequest(t, s, "POST", "/api/v1/blog/posts/counted/view", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		out := decodeJSON[map[string]int](t, rec)
		assert.Equal(t, want, out["view_count"])
	}

	// the bump must not touch other fields through the save hooks
	var p models.Post
	require.NoError(t, s.db.First(&p, "slug = ?", "counted").Error)
	assert.Equal(t, 3, p.ViewCount)
	assert.Equal(t, "body", p.Content)
}

func TestCategoryFilterAndRelated(t *testing.T) {
	s := newTestServer(t)
	_, tok := createUser(t, s, "admin", true)

	rec := doRequest(t, s, "POST", "/api/v1/blog/categories", tok, map[string]any{
		"name": "Migration",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	cat := decodeJSON[categoryView](t, rec)
	assert.Equal(t, "migration", cat.Slug)

	createPost(t, s, tok, map[string]any{
		"title":        "Flying South",
		"content":      "body",
		"status":       "published",
		"category_ids": []uint{cat.ID},
	})
	createPost(t, s, tok, map[string]any{
		"title":        "Flying North",
		"content":      "body",
		"status":       "published",
		"category_ids": []uint{cat.ID},
	})
	createPost(t, s, tok, map[string]any{
		"title":   "Unrelated",
		"content": "body",
		"status":  "published",
	})

	rec = doRequest(t, s, "GET", "/api/v1/blog/posts?category=migration", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decodeJSON[[]postListView](t, rec)
	assert.Len(t, listed, 2)

	rec = doRequest(t, s, "GET", "/api/v1/blog/posts/flying-south/related", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	related := decodeJSON[[]postListView](t, rec)
	require.Len(t, related, 1)
	assert.Equal(t, "flying-north", related[0].Slug)

	rec = doRequest(t, s, "GET", "/api/v1/blog/posts/unrelated/related", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeJSON[[]postListView](t, rec))
}

func TestListPagination(t *testing.T) {
	s := newTestServer(t)
	_, tok := createUser(t, s, "admin", true)

	for _, title := range []string{"First", "Second", "Third"} {
		createPost(t, s, tok, map[string]any{
			"title":   title,
			"content": "body",
			"status":  "published",
		})
	}

	rec := doRequest(t, s, "GET", "/api/v1/blog/posts?limit=1&offset=1&ordering=created_at", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decodeJSON[[]postListView](t, rec)
	require.Len(t, listed, 1)
	assert.Equal(t, "second", listed[0].Slug)

	rec = doRequest(t, s, "GET", "/api/v1/blog/posts?limit=2&ordering=created_at", "", nil)
	listed = decodeJSON[[]postListView](t, rec)
	require.Len(t, listed, 2)
	assert.Equal(t, "first", listed[0].Slug)

	// junk values fall back to the defaults
	rec = doRequest(t, s, "GET", "/api/v1/blog/posts?limit=bogus&offset=-5", "", nil)
	listed = decodeJSON[[]postListView](t, rec)
	assert.Len(t, listed, 3)
}

func TestSearchEscapesWildcards(t *testing.T) {
	s := newTestServer(t)
	_, tok := createUser(t, s, "admin", true)

	createPost(t, s, tok, map[string]any{
		"title":   "Plain Title",
		"content": "nothing unusual here",
		"status":  "published",
	})
	createPost(t, s, tok, map[string]any{
		"title":   "Discount Post",
		"content": "save 50% on everything",
		"status":  "published",
	})

	// a literal % only matches content that contains one
	rec := doRequest(t, s, "GET", "/api/v1/blog/posts?search=%25", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decodeJSON[[]postListView](t, rec)
	require.Len(t, listed, 1)
	assert.Equal(t, "discount-post", listed[0].Slug)

	rec = doRequest(t, s, "GET", "/api/v1/blog/posts?search=50%25+on", "", nil)
	listed = decodeJSON[[]postListView](t, rec)
	require.Len(t, listed, 1)

	// same for underscore
	rec = doRequest(t, s, "GET", "/api/v1/blog/posts?search=_", "", nil)
	assert.Empty(t, decodeJSON[[]postListView](t, rec))
}

func TestSearchAndOrdering(t *testing.T) {
	s := newTestServer(t)
	_, tok := createUser(t, s, "admin", true)

	createPost(t, s, tok, map[string]any{
		"title":   "Goose Facts",
		"content": "geese are loud",
		"status":  "published",
	})
	createPost(t, s, tok, map[string]any{
		"title":   "Duck Facts",
		"content": "ducks are quiet",
		"status":  "published",
	})

	rec := doRequest(t, s, "GET", "/api/v1/blog/posts?search=geese", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decodeJSON[[]postListView](t, rec)
	require.Len(t, listed, 1)
	assert.Equal(t, "goose-facts", listed[0].Slug)

	doRequest(t, s, "POST", "/api/v1/blog/posts/duck-facts/view", "", nil)
	rec = doRequest(t, s, "GET", "/api/v1/blog/posts?ordering=-view_count", "", nil)
	listed = decodeJSON[[]postListView](t, rec)
	require.Len(t, listed, 2)
	assert.Equal(t, "duck-facts", listed[0].Slug)
}

func TestDraftsListsOwnDraftsOnly(t *testing.T) {
	s := newTestServer(t)
	_, tok := createUser(t, s, "admin", true)
	other, _ := createUser(t, s, "coauthor", true)

	createPost(t, s, tok, map[string]any{"title": "Mine", "content": "x"})
	require.NoError(t, s.db.Create(&models.Post{
		Title:    "Theirs",
		Slug:     "theirs",
		Content:  "y",
		Status:   models.StatusDraft,
		AuthorID: other.ID,
	}).Error)

	rec := doRequest(t, s, "GET", "/api/v1/blog/posts/drafts", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decodeJSON[[]postListView](t, rec)
	require.Len(t, listed, 1)
	assert.Equal(t, "mine", listed[0].Slug)
}

func TestPublishDuePosts(t *testing.T) {
	s := newTestServer(t)
	u, _ := createUser(t, s, "admin", true)

	due := time.Now().UTC().Add(-time.Minute)
	notYet := time.Now().UTC().Add(time.Hour)
	require.NoError(t, s.db.Create(&models.Post{
		Title: "Due", Slug: "due", Content: "x",
		Status: models.StatusScheduled, PublishDate: &due, AuthorID: u.ID,
	}).Error)
	require.NoError(t, s.db.Create(&models.Post{
		Title: "Later", Slug: "later", Content: "x",
		Status: models.StatusScheduled, PublishDate: &notYet, AuthorID: u.ID,
	}).Error)

	n, err := s.publishDuePosts(time.Now().UTC())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	rec := doRequest(t, s, "GET", "/api/v1/blog/posts", "", nil)
	listed := decodeJSON[[]postListView](t, rec)
	require.Len(t, listed, 1)
	assert.Equal(t, "due", listed[0].Slug)

	// idempotent once everything due is out
	n, err = s.publishDuePosts(time.Now().UTC())
	require.NoError(t, err)
	assert.Zero(t, n)
}
