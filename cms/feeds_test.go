package cms

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSitemap(t *testing.T) {
	s := newTestServer(t)
	_, tok := createUser(t, s, "admin", true)

	rec := doRequest(t, s, "POST", "/api/v1/blog/categories", tok, map[string]any{"name": "Migration"})
	require.Equal(t, http.StatusCreated, rec.Code)

	createPost(t, s, tok, map[string]any{
		"title":   "Flying South",
		"content": "body",
		"status":  "published",
	})
	createPost(t, s, tok, map[string]any{
		"title":   "Hidden Draft",
		"content": "body",
	})

	rec = doRequest(t, s, "GET", "/api/v1/blog/sitemap.xml", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/xml", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, "<loc>https://example.com/blog</loc>")
	assert.Contains(t, body, "<loc>https://example.com/blog/flying-south</loc>")
	assert.Contains(t, body, "<loc>https://example.com/blog/category/migration</loc>")
	assert.NotContains(t, body, "hidden-draft")
}

func TestRSSFeed(t *testing.T) {
	s := newTestServer(t)
	_, tok := createUser(t, s, "admin", true)

	createPost(t, s, tok, map[string]any{
		"title":   "Flying South",
		"content": "A long trip.",
		"status":  "published",
	})

	rec := doRequest(t, s, "GET", "/api/v1/blog/feed.xml", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/rss+xml", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, "<title>Flying South</title>")
	assert.Contains(t, body, "https://example.com/blog/flying-south")
	assert.Contains(t, body, "A long trip.")
}
