package cms

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/gagglehome/backend/models"
)

func pathID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return uint(id), nil
}

func (s *Server) handleListCategories(c echo.Context) error {
	var cats []models.Category
	if err := s.db.Order(`"order" ASC, name ASC`).Find(&cats).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.categoryViews(cats))
}

type categoryInput struct {
	Name        *string `json:"name"`
	Slug        *string `json:"slug"`
	Description *string `json:"description"`
	ParentID    *uint   `json:"parent_id"`
	Order       *int    `json:"order"`
}

func (s *Server) handleCreateCategory(c echo.Context) error {
	var in categoryInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON")
	}
	if in.Name == nil || *in.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}

	cat := models.Category{Name: *in.Name}
	setIf(&cat.Slug, in.Slug)
	setIf(&cat.Description, in.Description)
	setIf(&cat.Order, in.Order)
	cat.ParentID = in.ParentID

	if err := s.db.Create(&cat).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return echo.NewHTTPError(http.StatusBadRequest, "category already exists")
		}
		return err
	}
	return c.JSON(http.StatusCreated, s.categoryView(&cat))
}

func (s *Server) handleGetCategory(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var cat models.Category
	if err := s.db.First(&cat, id).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.categoryView(&cat))
}

func (s *Server) handleUpdateCategory(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var cat models.Category
	if err := s.db.First(&cat, id).Error; err != nil {
		return err
	}

	var in categoryInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON")
	}
	setIf(&cat.Name, in.Name)
	setIf(&cat.Slug, in.Slug)
	setIf(&cat.Description, in.Description)
	setIf(&cat.Order, in.Order)
	if in.ParentID != nil {
		cat.ParentID = in.ParentID
	}

	if err := s.db.Save(&cat).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.categoryView(&cat))
}

func (s *Server) handleDeleteCategory(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var cat models.Category
	if err := s.db.First(&cat, id).Error; err != nil {
		return err
	}
	if err := s.db.Select("Posts").Delete(&cat).Error; err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleListTags(c echo.Context) error {
	var tags []models.Tag
	if err := s.db.Order("name ASC").Find(&tags).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.tagViews(tags))
}

type tagInput struct {
	Name *string `json:"name"`
	Slug *string `json:"slug"`
}

func (s *Server) handleCreateTag(c echo.Context) error {
	var in tagInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON")
	}
	if in.Name == nil || *in.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}

	tag := models.Tag{Name: *in.Name}
	setIf(&tag.Slug, in.Slug)

	if err := s.db.Create(&tag).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return echo.NewHTTPError(http.StatusBadRequest, "tag already exists")
		}
		return err
	}
	return c.JSON(http.StatusCreated, s.tagView(&tag))
}

func (s *Server) handleGetTag(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var tag models.Tag
	if err := s.db.First(&tag, id).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.tagView(&tag))
}

func (s *Server) handleUpdateTag(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var tag models.Tag
	if err := s.db.First(&tag, id).Error; err != nil {
		return err
	}

	var in tagInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON")
	}
	setIf(&tag.Name, in.Name)
	setIf(&tag.Slug, in.Slug)

	if err := s.db.Save(&tag).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.tagView(&tag))
}

func (s *Server) handleDeleteTag(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var tag models.Tag
	if err := s.db.First(&tag, id).Error; err != nil {
		return err
	}
	if err := s.db.Select("Posts").Delete(&tag).Error; err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
