package cms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/gagglehome/backend/models"
	"github.com/gagglehome/backend/themegen"
)

type themeView struct {
	ID          uint            `json:"id"`
	Name        string          `json:"name"`
	DisplayName string          `json:"display_name"`
	Description string          `json:"description"`
	CSSVars     json.RawMessage `json:"css_vars"`
	IsSystem    bool            `json:"is_system_theme"`
	IsActive    bool            `json:"is_active"`
	Version     string          `json:"version"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func newThemeView(t *models.Theme) themeView {
	return themeView{
		ID:          t.ID,
		Name:        t.Name,
		DisplayName: t.DisplayName,
		Description: t.Description,
		CSSVars:     t.CSSVars,
		IsSystem:    t.IsSystemTheme,
		IsActive:    t.IsActive,
		Version:     t.Version,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// themeListView is the lightweight shape for list endpoints, without the
// css_vars payload.
type themeListView struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	IsSystem    bool   `json:"is_system_theme"`
	Version     string `json:"version"`
}

func themeListViews(themes []models.Theme) []themeListView {
	out := make([]themeListView, 0, len(themes))
	for _, t := range themes {
		out = append(out, themeListView{
			ID:          t.ID,
			Name:        t.Name,
			DisplayName: t.DisplayName,
			Description: t.Description,
			IsSystem:    t.IsSystemTheme,
			Version:     t.Version,
		})
	}
	return out
}

// getThemeByName looks up an active theme; inactive themes are invisible
// to the by-name API surface.
func (s *Server) getThemeByName(name string) (*models.Theme, error) {
	var theme models.Theme
	if err := s.db.First(&theme, "name = ? AND is_active = ?", name, true).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("theme %q not found", name))
		}
		return nil, err
	}
	return &theme, nil
}

func (s *Server) handleListThemes(c echo.Context) error {
	var themes []models.Theme
	if err := s.db.Where("is_active = ?", true).Order("display_name ASC").Find(&themes).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"count":   len(themes),
		"results": themeListViews(themes),
	})
}

// handleThemesAvailable is a cheap probe for whether any backend theme is
// configured at all.
func (s *Server) handleThemesAvailable(c echo.Context) error {
	_, err := s.currentThemeSetting()
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return c.JSON(http.StatusOK, map[string]bool{"available": err == nil})
}

type themeInput struct {
	Name        *string         `json:"name"`
	DisplayName *string         `json:"display_name"`
	Description *string         `json:"description"`
	CSSVars     json.RawMessage `json:"css_vars"`
	IsActive    *bool           `json:"is_active"`
	Version     *string         `json:"version"`
}

func (s *Server) handleCreateTheme(c echo.Context) error {
	var in themeInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON")
	}
	if in.Name == nil || *in.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}
	if !models.ValidThemeName(*in.Name) {
		return echo.NewHTTPError(http.StatusBadRequest, "name must contain only lowercase letters, numbers and hyphens")
	}
	if len(in.CSSVars) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "css_vars is required")
	}
	if err := models.ValidateThemeVars(in.CSSVars); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	uid := s.currentUser(c).ID
	theme := models.Theme{
		Name:        *in.Name,
		DisplayName: *in.Name,
		CSSVars:     in.CSSVars,
		IsActive:    true,
		Version:     "1.0.0",
		CreatedByID: &uid,
	}
	setIf(&theme.DisplayName, in.DisplayName)
	setIf(&theme.Description, in.Description)
	setIf(&theme.Version, in.Version)

	if err := s.db.Create(&theme).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return echo.NewHTTPError(http.StatusBadRequest, "theme with this name already exists")
		}
		return err
	}
	return c.JSON(http.StatusCreated, newThemeView(&theme))
}

func (s *Server) handleGetTheme(c echo.Context) error {
	theme, err := s.getThemeByName(c.Param("name"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newThemeView(theme))
}

func (s *Server) handleUpdateTheme(c echo.Context) error {
	theme, err := s.getThemeByName(c.Param("name"))
	if err != nil {
		return err
	}
	if theme.IsSystemTheme && !s.isStaff(c) {
		return echo.NewHTTPError(http.StatusForbidden, "system themes can only be modified by staff")
	}

	var in themeInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON")
	}
	if in.Name != nil && *in.Name != theme.Name {
		return echo.NewHTTPError(http.StatusBadRequest, "theme names are immutable; duplicate instead")
	}
	if len(in.CSSVars) > 0 {
		if err := models.ValidateThemeVars(in.CSSVars); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		theme.CSSVars = in.CSSVars
	}
	setIf(&theme.DisplayName, in.DisplayName)
	setIf(&theme.Description, in.Description)
	setIf(&theme.IsActive, in.IsActive)
	setIf(&theme.Version, in.Version)

	if err := s.db.Save(theme).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newThemeView(theme))
}

func (s *Server) handleDeleteTheme(c echo.Context) error {
	theme, err := s.getThemeByName(c.Param("name"))
	if err != nil {
		return err
	}
	if theme.IsSystemTheme {
		return echo.NewHTTPError(http.StatusForbidden, "system themes cannot be deleted")
	}

	var setting models.ThemeSetting
	if err := s.db.First(&setting).Error; err == nil {
		if setting.CurrentThemeID == theme.ID || setting.FallbackThemeID == theme.ID {
			return echo.NewHTTPError(http.StatusBadRequest, "theme is in use; switch themes before deleting it")
		}
	}

	if err := s.db.Delete(theme).Error; err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleDuplicateTheme(c echo.Context) error {
	theme, err := s.getThemeByName(c.Param("name"))
	if err != nil {
		return err
	}

	var in struct {
		NewName        string `json:"new_name"`
		NewDisplayName string `json:"new_display_name"`
	}
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON")
	}
	if in.NewName == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "new_name is required")
	}
	if !models.ValidThemeName(in.NewName) {
		return echo.NewHTTPError(http.StatusBadRequest, "new_name must contain only lowercase letters, numbers and hyphens")
	}

	var count int64
	s.db.Model(&models.Theme{}).Where("name = ?", in.NewName).Count(&count)
	if count > 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "theme with this name already exists")
	}

	display := in.NewDisplayName
	if display == "" {
		display = theme.DisplayName + " (Copy)"
	}

	uid := s.currentUser(c).ID
	dup := models.Theme{
		Name:        in.NewName,
		DisplayName: display,
		Description: "Copy of " + theme.DisplayName,
		CSSVars:     theme.CSSVars,
		IsActive:    true,
		Version:     "1.0.0",
		CreatedByID: &uid,
	}
	if err := s.db.Create(&dup).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, newThemeView(&dup))
}

func (s *Server) currentThemeSetting() (*models.ThemeSetting, error) {
	var setting models.ThemeSetting
	err := s.db.Preload("CurrentTheme").Preload("FallbackTheme").First(&setting).Error
	if err != nil {
		return nil, err
	}
	return &setting, nil
}

// handleCurrentTheme returns the active theme, or a fallback marker
// telling the frontend to use its built-in default.
func (s *Server) handleCurrentTheme(c echo.Context) error {
	setting, err := s.currentThemeSetting()
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusOK, map[string]any{
				"fallback":   true,
				"theme_name": s.cfg.DefaultThemeName,
				"message":    "No backend themes configured, use frontend theme JSON",
			})
		}
		return err
	}
	return c.JSON(http.StatusOK, newThemeView(&setting.CurrentTheme))
}

func themeSettingView(setting *models.ThemeSetting) map[string]any {
	return map[string]any{
		"id":             setting.ID,
		"current_theme":  newThemeView(&setting.CurrentTheme),
		"fallback_theme": newThemeView(&setting.FallbackTheme),
		"updated_at":     setting.UpdatedAt,
	}
}

func (s *Server) handleCurrentThemeSetting(c echo.Context) error {
	setting, err := s.currentThemeSetting()
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "no theme setting configured")
		}
		return err
	}
	return c.JSON(http.StatusOK, themeSettingView(setting))
}

func (s *Server) handleSetCurrentTheme(c echo.Context) error {
	var in struct {
		ThemeName string `json:"theme_name"`
	}
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON")
	}
	if in.ThemeName == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "theme_name is required")
	}

	theme, err := s.getThemeByName(in.ThemeName)
	if err != nil {
		return err
	}

	// First use creates the singleton with the chosen theme doubling as
	// the fallback.
	uid := s.currentUser(c).ID
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var setting models.ThemeSetting
		err := tx.First(&setting).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			setting = models.ThemeSetting{
				CurrentThemeID:  theme.ID,
				FallbackThemeID: theme.ID,
				UpdatedByID:     &uid,
			}
			return tx.Create(&setting).Error
		}
		if err != nil {
			return err
		}
		setting.CurrentThemeID = theme.ID
		setting.UpdatedByID = &uid
		return tx.Save(&setting).Error
	})
	if err != nil {
		return err
	}

	setting, err := s.currentThemeSetting()
	if err != nil {
		return err
	}
	s.log.Info("current theme changed", "theme", theme.Name, "by", s.currentUser(c).Handle)
	return c.JSON(http.StatusOK, themeSettingView(setting))
}

func (s *Server) handleCreateThemeSetting(c echo.Context) error {
	var count int64
	s.db.Model(&models.ThemeSetting{}).Count(&count)
	if count > 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "theme setting already exists; use PUT to update")
	}
	return s.applyThemeSetting(c, nil)
}

func (s *Server) handleUpdateThemeSetting(c echo.Context) error {
	var setting models.ThemeSetting
	if err := s.db.First(&setting).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "no theme setting found")
		}
		return err
	}
	return s.applyThemeSetting(c, &setting)
}

// activeThemeByID validates a theme reference in a setting payload.
func (s *Server) activeThemeByID(id uint) (*models.Theme, error) {
	var theme models.Theme
	if err := s.db.First(&theme, "id = ? AND is_active = ?", id, true).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "theme must exist and be active")
		}
		return nil, err
	}
	return &theme, nil
}

func (s *Server) applyThemeSetting(c echo.Context, setting *models.ThemeSetting) error {
	var in struct {
		CurrentThemeID  *uint `json:"current_theme_id"`
		FallbackThemeID *uint `json:"fallback_theme_id"`
	}
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON")
	}

	created := setting == nil
	if created {
		if in.CurrentThemeID == nil {
			return echo.NewHTTPError(http.StatusBadRequest, "current_theme_id is required")
		}
		setting = &models.ThemeSetting{}
	}
	if in.CurrentThemeID != nil && in.FallbackThemeID != nil && *in.CurrentThemeID == *in.FallbackThemeID {
		return echo.NewHTTPError(http.StatusBadRequest, "current and fallback themes must be different")
	}

	if in.CurrentThemeID != nil {
		theme, err := s.activeThemeByID(*in.CurrentThemeID)
		if err != nil {
			return err
		}
		setting.CurrentThemeID = theme.ID
	}
	if in.FallbackThemeID != nil {
		theme, err := s.activeThemeByID(*in.FallbackThemeID)
		if err != nil {
			return err
		}
		setting.FallbackThemeID = theme.ID
	}
	if setting.FallbackThemeID == 0 {
		setting.FallbackThemeID = setting.CurrentThemeID
	}
	uid := s.currentUser(c).ID
	setting.UpdatedByID = &uid

	if err := s.db.Save(setting).Error; err != nil {
		return err
	}
	loaded, err := s.currentThemeSetting()
	if err != nil {
		return err
	}
	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	return c.JSON(code, themeSettingView(loaded))
}

// resolveMentions loads the themes named in theme_mentions ("current" or
// a theme name) so the generator can modify them rather than invent from
// scratch. Unknown mentions are skipped.
func (s *Server) resolveMentions(mentions []string) (map[string]themegen.ReferenceTheme, string, error) {
	refs := map[string]themegen.ReferenceTheme{}
	firstRef := ""

	for _, mention := range mentions {
		if _, seen := refs[mention]; seen {
			continue
		}

		var theme *models.Theme
		if mention == "current" {
			setting, err := s.currentThemeSetting()
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					continue
				}
				return nil, "", err
			}
			theme = &setting.CurrentTheme
		} else {
			var t models.Theme
			err := s.db.First(&t, "name = ? AND is_active = ?", mention, true).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			if err != nil {
				return nil, "", err
			}
			theme = &t
		}

		if firstRef == "" {
			firstRef = theme.Name
		}
		refs[mention] = themegen.ReferenceTheme{
			Name:        theme.Name,
			DisplayName: theme.DisplayName,
			CSSVars:     theme.CSSVars,
		}
	}
	return refs, firstRef, nil
}

// uniqueThemeName picks the stored name for a generated theme: themes
// derived from a reference get versioned names (base-v2, base-v3, ...);
// brand new themes get a numeric suffix only on collision.
func (s *Server) uniqueThemeName(base, refBase string) string {
	if refBase != "" {
		var names []string
		s.db.Model(&models.Theme{}).
			Where("name LIKE ? AND is_active = ?", refBase+"-v%", true).
			Pluck("name", &names)

		next := 2
		for _, name := range names {
			if n, err := strconv.Atoi(strings.TrimPrefix(name, refBase+"-v")); err == nil && n+1 > next {
				next = n + 1
			}
		}
		return fmt.Sprintf("%s-v%d", refBase, next)
	}

	var count int64
	s.db.Model(&models.Theme{}).Where("name = ? AND is_active = ?", base, true).Count(&count)
	if count == 0 {
		return base
	}
	for n := 2; ; n++ {
		name := fmt.Sprintf("%s-%d", base, n)
		s.db.Model(&models.Theme{}).Where("name = ? AND is_active = ?", name, true).Count(&count)
		if count == 0 {
			return name
		}
	}
}

func (s *Server) handleGenerateTheme(c echo.Context) error {
	if s.gen == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "theme generation is not configured")
	}

	var in struct {
		Prompt        string   `json:"prompt"`
		ThemeMentions []string `json:"theme_mentions"`
	}
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON")
	}
	in.Prompt = strings.TrimSpace(in.Prompt)
	if in.Prompt == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "prompt is required")
	}

	refs, refBase, err := s.resolveMentions(in.ThemeMentions)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Minute)
	defer cancel()

	generated, err := s.gen.GenerateTheme(ctx, in.Prompt, refs)
	if err != nil {
		s.log.Error("theme generation failed", "err", err)
		return echo.NewHTTPError(http.StatusBadGateway, fmt.Sprintf("theme generation failed: %v", err))
	}

	// The theme is stored but never auto-applied; the frontend previews
	// it and lets the user decide.
	uid := s.currentUser(c).ID
	theme := models.Theme{
		Name:        s.uniqueThemeName(generated.Name, refBase),
		DisplayName: generated.DisplayName,
		Description: generated.Description,
		CSSVars:     generated.CSSVars,
		IsActive:    true,
		Version:     generated.Version,
		CreatedByID: &uid,
	}
	if err := s.db.Create(&theme).Error; err != nil {
		return err
	}
	themesGenerated.Inc()

	s.log.Info("theme generated", "theme", theme.Name, "by", s.currentUser(c).Handle)
	return c.JSON(http.StatusCreated, newThemeView(&theme))
}
