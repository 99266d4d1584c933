package cms

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/gagglehome/backend/models"
)

// maxImageSize caps a single upload at 10MB.
const maxImageSize = 10 << 20

var allowedImageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

type imageView struct {
	ID       uint      `json:"id"`
	URL      string    `json:"url"`
	AltText  string    `json:"alt_text"`
	Filename string    `json:"filename"`
	Size     int64     `json:"size"`
	Uploaded time.Time `json:"uploaded_at"`
}

func imageViews(imgs []models.BlogImage) []imageView {
	out := make([]imageView, 0, len(imgs))
	for _, img := range imgs {
		out = append(out, imageView{
			ID:       img.ID,
			URL:      img.URL,
			AltText:  img.AltText,
			Filename: img.Filename,
			Size:     img.Size,
			Uploaded: img.CreatedAt,
		})
	}
	return out
}

func (s *Server) handleListImages(c echo.Context) error {
	var imgs []models.BlogImage
	if err := s.db.Order("created_at DESC").Find(&imgs).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, imageViews(imgs))
}

func (s *Server) handleUploadImage(c echo.Context) error {
	if s.cfg.MediaDir == "" {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "media storage is not configured")
	}

	fh, err := c.FormFile("image")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "no image provided")
	}
	if fh.Size > maxImageSize {
		return echo.NewHTTPError(http.StatusBadRequest, "image exceeds the 10MB size limit")
	}

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !allowedImageExts[ext] {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unsupported image type: %s", ext))
	}

	// Uploads are bucketed by year/month with random names so filenames
	// never collide or leak the original name.
	now := time.Now().UTC()
	relDir := filepath.Join("blog", "uploads", now.Format("2006"), now.Format("01"))
	name := uuid.New().String() + ext

	dir := filepath.Join(s.cfg.MediaDir, relDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating upload directory: %w", err)
	}

	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return err
	}
	defer dst.Close()

	written, err := io.Copy(dst, io.LimitReader(src, maxImageSize))
	if err != nil {
		return err
	}

	url := s.cfg.MediaURL + path.Join(filepath.ToSlash(relDir), name)

	var uploadedBy *uint
	if u := s.currentUser(c); u != nil {
		uploadedBy = &u.ID
	}
	img := models.BlogImage{
		URL:          url,
		AltText:      c.FormValue("alt_text"),
		Filename:     name,
		Size:         written,
		UploadedByID: uploadedBy,
	}
	if err := s.db.Create(&img).Error; err != nil {
		return err
	}
	imageUploads.Inc()

	s.log.Info("image uploaded", "url", url, "size", written)
	return c.JSON(http.StatusCreated, map[string]any{
		"id":       img.ID,
		"url":      url,
		"filename": name,
		"size":     written,
		"alt_text": img.AltText,
	})
}
