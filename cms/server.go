// Package cms is the HTTP service for the GaggleHome content backend:
// blog CRUD, theming, auth, feeds and health checks over gorm + echo.
package cms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	slogecho "github.com/samber/slog-echo"
	"gorm.io/gorm"

	"github.com/gagglehome/backend/content"
	"github.com/gagglehome/backend/models"
	"github.com/gagglehome/backend/themegen"
)

// Config carries the service settings the CLI resolves from flags and
// environment.
type Config struct {
	JWTSigningKey []byte

	// MediaDir is the on-disk root for uploaded images; MediaURL is the
	// public prefix they are served under.
	MediaDir string
	MediaURL string

	// PublicURL is the externally visible site root used for absolute
	// links in the sitemap and RSS feed.
	PublicURL string

	// DefaultThemeName is returned as the frontend JSON fallback when no
	// backend theme is configured.
	DefaultThemeName string

	// RedisURL, when set, is pinged by the database health check.
	RedisURL string

	OpenRouterAPIKey string
	OpenRouterModel  string

	// ScheduledInterval is how often due scheduled posts are published.
	// Zero disables the in-process loop.
	ScheduledInterval time.Duration
}

// transformCacheSize bounds the in-memory cache of parsed post content.
const transformCacheSize = 512

type Server struct {
	db   *gorm.DB
	echo *echo.Echo
	cfg  Config

	rdb *redis.Client
	gen *themegen.Client

	transformCfg   content.Config
	transformCache *lru.Cache[string, content.Result]

	log *slog.Logger
}

func NewServer(db *gorm.DB, cfg Config) (*Server, error) {
	if len(cfg.JWTSigningKey) == 0 {
		return nil, fmt.Errorf("jwt signing key is required")
	}
	if cfg.DefaultThemeName == "" {
		cfg.DefaultThemeName = "vercel"
	}
	if cfg.MediaURL == "" {
		cfg.MediaURL = "/media/"
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Tag{},
		&models.Post{},
		&models.PostMeta{},
		&models.BlogImage{},
		&models.Theme{},
		&models.ThemeSetting{},
	); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	cache, err := lru.New[string, content.Result](transformCacheSize)
	if err != nil {
		return nil, err
	}

	s := &Server{
		db:             db,
		cfg:            cfg,
		transformCfg:   content.DefaultConfig(),
		transformCache: cache,
		log:            slog.Default().With("system", "cms"),
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis URL: %w", err)
		}
		s.rdb = redis.NewClient(opts)
	}

	if cfg.OpenRouterAPIKey != "" {
		s.gen = themegen.NewClient(cfg.OpenRouterAPIKey, cfg.OpenRouterModel, cfg.PublicURL)
	}

	s.echo = s.buildEcho()
	return s, nil
}

func (s *Server) buildEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(slogecho.New(slog.Default()))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("20M"))
	e.Use(middleware.CORS())
	e.HTTPErrorHandler = s.errorHandler
	e.Use(s.authMiddleware)

	e.GET("/_health", s.handleHealthCheck)
	e.GET("/_health/databases", s.handleHealthDatabases)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	if s.cfg.MediaDir != "" {
		e.Static("/media", s.cfg.MediaDir)
	}

	api := e.Group("/api/v1")

	// auth
	api.POST("/login", s.handleLogin)
	api.POST("/signup", s.handleSignup)
	api.POST("/logout", s.handleLogout)
	api.GET("/auth_status", s.handleAuthStatus)

	// blog
	blog := api.Group("/blog")
	blog.GET("/posts", s.handleListPosts)
	blog.POST("/posts", s.handleCreatePost, s.requireAdmin)
	blog.GET("/posts/drafts", s.handleListDrafts, s.requireAdmin)
	blog.GET("/posts/all", s.handleListAllPosts, s.requireAdmin)
	blog.GET("/posts/:slug", s.handleGetPost)
	blog.PUT("/posts/:slug", s.handleUpdatePost, s.requireAuth)
	blog.PATCH("/posts/:slug", s.handleUpdatePost, s.requireAuth)
	blog.DELETE("/posts/:slug", s.handleDeletePost, s.requireAuth)
	blog.POST("/posts/:slug/view", s.handleIncrementViewCount)
	blog.GET("/posts/:slug/related", s.handleRelatedPosts)

	blog.GET("/categories", s.handleListCategories)
	blog.POST("/categories", s.handleCreateCategory, s.requireAdmin)
	blog.GET("/categories/:id", s.handleGetCategory)
	blog.PUT("/categories/:id", s.handleUpdateCategory, s.requireAdmin)
	blog.DELETE("/categories/:id", s.handleDeleteCategory, s.requireAdmin)

	blog.GET("/tags", s.handleListTags)
	blog.POST("/tags", s.handleCreateTag, s.requireAdmin)
	blog.GET("/tags/:id", s.handleGetTag)
	blog.PUT("/tags/:id", s.handleUpdateTag, s.requireAdmin)
	blog.DELETE("/tags/:id", s.handleDeleteTag, s.requireAdmin)

	blog.GET("/images", s.handleListImages, s.requireAdmin)
	blog.POST("/upload-image", s.handleUploadImage, s.requireAdmin)

	blog.GET("/sitemap.xml", s.handleSitemap)
	blog.GET("/feed.xml", s.handleRSSFeed)

	// themes
	themes := api.Group("/themes")
	themes.GET("", s.handleListThemes)
	themes.POST("", s.handleCreateTheme, s.requireAuth)
	themes.GET("/available", s.handleThemesAvailable)
	themes.GET("/current", s.handleCurrentTheme)
	themes.GET("/current-setting", s.handleCurrentThemeSetting)
	themes.POST("/set-current", s.handleSetCurrentTheme, s.requireAuth)
	themes.POST("/generate", s.handleGenerateTheme, s.requireAuth)
	themes.GET("/:name", s.handleGetTheme)
	themes.PUT("/:name", s.handleUpdateTheme, s.requireAuth)
	themes.DELETE("/:name", s.handleDeleteTheme, s.requireAuth)
	themes.POST("/:name/duplicate", s.handleDuplicateTheme, s.requireAuth)

	settings := api.Group("/theme-settings")
	settings.GET("", s.handleCurrentThemeSetting)
	settings.POST("", s.handleCreateThemeSetting, s.requireAuth)
	settings.PUT("/:id", s.handleUpdateThemeSetting, s.requireAuth)

	return e
}

// errorHandler renders every error as {"error": ...} JSON and hides
// internals behind a generic message for 5xx.
func (s *Server) errorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := "internal server error"

	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		code = he.Code
		msg = fmt.Sprintf("%v", he.Message)
	case errors.Is(err, gorm.ErrRecordNotFound):
		code = http.StatusNotFound
		msg = "not found"
	case errors.Is(err, ErrInvalidUsernameOrPassword):
		code = http.StatusUnauthorized
		msg = err.Error()
	}

	if code >= 500 {
		s.log.Error("request failed", "path", c.Path(), "err", err)
	}
	if !c.Response().Committed {
		c.JSON(code, map[string]string{"error": msg})
	}
}

// ServeHTTP lets the server be used directly as an http.Handler in tests.
func (s *Server) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	s.echo.ServeHTTP(rw, req)
}

// RunAPI serves the API on addr until ctx is cancelled, then shuts down
// gracefully. The scheduled-post publisher runs alongside when enabled.
func (s *Server) RunAPI(ctx context.Context, addr string) error {
	httpd := &http.Server{
		Handler:        s,
		Addr:           addr,
		ReadTimeout:    time.Minute,
		WriteTimeout:   time.Minute,
		MaxHeaderBytes: 1 << 20,
	}

	if s.cfg.ScheduledInterval > 0 {
		go s.runScheduler(ctx, s.cfg.ScheduledInterval)
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("starting server", "bind", addr)
		if err := httpd.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpd.Shutdown(shutCtx)
}
