// Package models defines the gorm entities shared by the CMS service and
// the CLI commands.
package models

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/gagglehome/backend/content"
)

// Post lifecycle states.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusScheduled = "scheduled"
	StatusArchived  = "archived"
)

// ValidStatus reports whether s is one of the post lifecycle states.
func ValidStatus(s string) bool {
	switch s {
	case StatusDraft, StatusPublished, StatusScheduled, StatusArchived:
		return true
	}
	return false
}

// excerptLimit is the maximum auto-generated excerpt length, in characters
// of stripped plain text.
const excerptLimit = 300

type User struct {
	gorm.Model
	Handle    string `gorm:"uniqueIndex"`
	Email     string `gorm:"uniqueIndex"`
	Password  string // scrypt, salt:hash hex
	FirstName string
	LastName  string
	Admin     bool
}

// FullName returns "First Last", falling back to the handle when both
// name fields are empty.
func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Handle
	}
	return name
}

type Category struct {
	gorm.Model
	Name        string `gorm:"uniqueIndex"`
	Slug        string `gorm:"uniqueIndex"`
	Description string
	ParentID    *uint
	Order       int    `gorm:"default:0"`
	Posts       []Post `gorm:"many2many:post_categories"`
}

func (c *Category) BeforeSave(tx *gorm.DB) error {
	if c.Slug == "" {
		c.Slug = content.Slugify(c.Name)
	}
	return nil
}

type Tag struct {
	gorm.Model
	Name  string `gorm:"uniqueIndex"`
	Slug  string `gorm:"uniqueIndex"`
	Posts []Post `gorm:"many2many:post_tags"`
}

func (t *Tag) BeforeSave(tx *gorm.DB) error {
	if t.Slug == "" {
		t.Slug = content.Slugify(t.Name)
	}
	return nil
}

type Post struct {
	gorm.Model
	Title   string
	Slug    string `gorm:"uniqueIndex"`
	Content string // markdown plus {{type:data}} component tokens
	Excerpt string

	// Media is stored as URLs rather than file references so images can
	// come from the upload endpoint or anywhere else.
	FeaturedImage          string
	OgImage                string
	FullWidthImage         bool    `gorm:"default:true"`
	HeroBackgroundType     string
	HeroBackgroundOpacity  float64 `gorm:"default:0.6"`
	HeroBackgroundScope    string  `gorm:"default:hero"`  // hero | full
	HeroBackgroundSize     string  `gorm:"default:cover"` // cover | contain | tile
	HeroBackgroundTileSize int     `gorm:"default:800"`

	AuthorID    uint `gorm:"index"`
	Author      User
	Status      string     `gorm:"index:idx_posts_status_publish;default:draft"`
	PublishDate *time.Time `gorm:"index:idx_posts_status_publish"`

	MetaTitle       string
	MetaDescription string
	MetaKeywords    string
	FocusKeyword    string
	CanonicalURL    string

	Categories []Category `gorm:"many2many:post_categories"`
	Tags       []Tag      `gorm:"many2many:post_tags"`

	ReadingTime int `gorm:"default:1"`
	ViewCount   int `gorm:"default:0"`

	Featured      bool
	AllowComments bool `gorm:"default:true"`
}

// BeforeSave derives the fields the editor is allowed to leave blank:
// slug from title, excerpt and reading time from content, and the publish
// date the first time a post goes out.
func (p *Post) BeforeSave(tx *gorm.DB) error {
	if p.Slug == "" && p.Title != "" {
		p.Slug = content.Slugify(p.Title)
	}
	p.ReadingTime = content.ReadingTime(p.Content)
	if p.Excerpt == "" {
		p.Excerpt = content.Excerpt(p.Content, excerptLimit)
	}
	if p.Status == StatusPublished && p.PublishDate == nil {
		now := time.Now().UTC()
		p.PublishDate = &now
	}
	return nil
}

// Published reports whether the post is visible to anonymous readers.
func (p *Post) Published(now time.Time) bool {
	return p.Status == StatusPublished && p.PublishDate != nil && !p.PublishDate.After(now)
}

// PostMeta is an extensible key/value side table for future post features.
type PostMeta struct {
	gorm.Model
	PostID uint   `gorm:"index:idx_postmeta_post_key,unique"`
	Key    string `gorm:"index:idx_postmeta_post_key,unique"`
	Value  string // JSON string for structured values
}

// BlogImage tracks uploaded media so the editor can browse past uploads.
type BlogImage struct {
	gorm.Model
	URL          string `gorm:"uniqueIndex"`
	AltText      string
	Filename     string
	Size         int64
	UploadedByID *uint
}

var themeNamePattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// ValidThemeName reports whether name is a valid theme identifier
// (lowercase letters, digits and hyphens).
func ValidThemeName(name string) bool {
	return themeNamePattern.MatchString(name)
}

// Theme stores a named set of CSS variables covering the shared "theme"
// section plus light and dark mode palettes.
type Theme struct {
	gorm.Model
	Name        string `gorm:"uniqueIndex"`
	DisplayName string
	Description string

	CSSVars json.RawMessage `gorm:"type:text"`

	IsSystemTheme bool
	IsActive      bool   `gorm:"default:true;index"`
	Version       string `gorm:"default:1.0.0"`

	CreatedByID *uint
}

// Sections and variables every theme must define.
var (
	requiredThemeSections = []string{"theme", "light", "dark"}
	requiredColorVars     = []string{"background", "foreground", "primary", "secondary"}
)

// ValidateThemeVars checks the css_vars document for the required
// sections and the color variables each mode must define.
func ValidateThemeVars(raw json.RawMessage) error {
	var sections map[string]map[string]any
	if err := json.Unmarshal(raw, &sections); err != nil {
		return fmt.Errorf("css_vars must be a JSON object: %w", err)
	}
	for _, key := range requiredThemeSections {
		if _, ok := sections[key]; !ok {
			return fmt.Errorf("css_vars must contain %q section", key)
		}
	}
	for _, mode := range []string{"light", "dark"} {
		var missing []string
		for _, v := range requiredColorVars {
			if _, ok := sections[mode][v]; !ok {
				missing = append(missing, v)
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("%q mode missing required variables: %s", mode, strings.Join(missing, ", "))
		}
	}
	return nil
}

// ThemeSetting is a singleton row selecting the current and fallback
// themes for the site.
type ThemeSetting struct {
	gorm.Model
	CurrentThemeID  uint
	CurrentTheme    Theme `gorm:"foreignKey:CurrentThemeID"`
	FallbackThemeID uint
	FallbackTheme   Theme `gorm:"foreignKey:FallbackThemeID"`
	UpdatedByID     *uint
}
