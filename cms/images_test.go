package cms

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uploadImage(t *testing.T, s *Server, tok, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("image", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.WriteField("alt_text", "a goose"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/api/v1/blog/upload-image", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestUploadImage(t *testing.T) {
	s := newTestServer(t)
	_, tok := createUser(t, s, "admin", true)

	rec := uploadImage(t, s, tok, "goose.png", []byte("not-really-a-png"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	out := decodeJSON[map[string]any](t, rec)
	url := out["url"].(string)
	assert.True(t, strings.HasPrefix(url, "/media/blog/uploads/"), url)
	assert.True(t, strings.HasSuffix(url, ".png"), url)
	assert.NotContains(t, url, "goose", "stored names must be random")

	// the file landed under the media dir
	rel := strings.TrimPrefix(url, "/media/")
	data, err := os.ReadFile(filepath.Join(s.cfg.MediaDir, filepath.FromSlash(rel)))
	require.NoError(t, err)
	assert.Equal(t, "not-really-a-png", string(data))

	rec = doRequest(t, s, "GET", "/api/v1/blog/images", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decodeJSON[[]imageView](t, rec)
	require.Len(t, listed, 1)
	assert.True(t, strings.HasSuffix(listed[0].URL, listed[0].Filename))
	assert.Equal(t, "a goose", listed[0].AltText)
	assert.EqualValues(t, len("not-really-a-png"), listed[0].Size)
}

func TestUploadImageRejectsBadTypes(t *testing.T) {
	s := newTestServer(t)
	_, tok := createUser(t, s, "admin", true)

	rec := uploadImage(t, s, tok, "script.svg", []byte("<svg/>"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = uploadImage(t, s, tok, "binary.exe", []byte{0x4d, 0x5a})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
