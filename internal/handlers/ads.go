package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/mkravch/buyrate/internal/auth"
	"github.com/mkravch/buyrate/internal/authz"
	"github.com/mkravch/buyrate/internal/models"
	"github.com/mkravch/buyrate/internal/service/search"
	"github.com/mkravch/buyrate/internal/util"
)

const msgAdNotFound = "Ad with this ID not found"

type AdHandler struct {
	DB      *gorm.DB
	ES      *elasticsearch.Client
	ESIndex string
}

// requireActor fetches the identity set by the auth middleware. Mutating
// handlers still guard against a missing actor so they fail closed when
// reached without the middleware.
func requireActor(c echo.Context) (uint, authz.Role, error) {
	userID, role, ok := auth.Actor(c)
	if !ok {
		return 0, "", echo.NewHTTPError(http.StatusUnauthorized, "Authentication credentials were not provided")
	}
	return userID, role, nil
}

func (h *AdHandler) findAd(id uint) (*models.Ad, error) {
	var ad models.Ad
	if err := h.DB.First(&ad, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound, msgAdNotFound)
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return &ad, nil
}

func pathID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusNotFound, "Invalid identifier")
	}
	return uint(id), nil
}

func (h *AdHandler) List(c echo.Context) error {
	page, offset, limit, err := util.PageParams(c)
	if err != nil {
		return err
	}

	q := h.DB.Model(&models.Ad{})
	if title := c.QueryParam("title"); title != "" {
		q = q.Where("title = ?", title)
	}
	if term := c.QueryParam("search"); term != "" {
		q = q.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(term)+"%")
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if err := util.ValidatePage(page, offset, count); err != nil {
		return err
	}

	ads := make([]models.Ad, 0, limit)
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&ads).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, util.NewPage(c, count, page, limit, ads))
}

// Search serves fuzzy full-text search over the elasticsearch index, separate
// from the exact-substring search param on List.
func (h *AdHandler) Search(c echo.Context) error {
	if h.ES == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "search is unavailable")
	}
	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q query param is required")
	}

	_, offset, limit, err := util.PageParams(c)
	if err != nil {
		return err
	}

	count, ads, err := search.SearchAds(c.Request().Context(), h.ES, h.ESIndex, q, offset, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"count": count, "results": ads})
}

func (h *AdHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	ad, err := h.findAd(id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ad)
}

type adPayload struct {
	Title       *string `json:"title"`
	Price       *int    `json:"price"`
	Description *string `json:"description"`
}

func (p *adPayload) validateFull() error {
	if p.Title == nil || *p.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title is required")
	}
	if p.Price == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "price is required")
	}
	if *p.Price < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "price must be a non-negative integer")
	}
	if p.Description == nil || *p.Description == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "description is required")
	}
	return nil
}

func (h *AdHandler) Create(c echo.Context) error {
	userID, _, err := requireActor(c)
	if err != nil {
		return err
	}

	var req adPayload
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := req.validateFull(); err != nil {
		return err
	}

	// Author comes from the token; anything client-supplied is ignored.
	ad := models.Ad{
		Title:       *req.Title,
		Price:       *req.Price,
		Description: *req.Description,
		AuthorID:    userID,
	}
	if err := h.DB.Create(&ad).Error; err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	h.index(c, ad)
	return c.JSON(http.StatusCreated, ad)
}

func (h *AdHandler) Update(c echo.Context) error {
	return h.update(c, true)
}

func (h *AdHandler) Patch(c echo.Context) error {
	return h.update(c, false)
}

func (h *AdHandler) update(c echo.Context, full bool) error {
	userID, role, err := requireActor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	ad, err := h.findAd(id)
	if err != nil {
		return err
	}
	if !authz.CanAct(userID, role, ad.AuthorID) {
		return echo.NewHTTPError(http.StatusForbidden, "You do not have permission to perform this action")
	}

	var req adPayload
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if full {
		if err := req.validateFull(); err != nil {
			return err
		}
	}

	// A supplied-but-blank field is rejected even on partial update.
	if req.Title != nil {
		if *req.Title == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "title must not be blank")
		}
		ad.Title = *req.Title
	}
	if req.Price != nil {
		if *req.Price < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "price must be a non-negative integer")
		}
		ad.Price = *req.Price
	}
	if req.Description != nil {
		if *req.Description == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "description must not be blank")
		}
		ad.Description = *req.Description
	}

	if err := h.DB.Save(ad).Error; err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	h.index(c, *ad)
	return c.JSON(http.StatusOK, ad)
}

func (h *AdHandler) Delete(c echo.Context) error {
	userID, role, err := requireActor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	ad, err := h.findAd(id)
	if err != nil {
		return err
	}
	if !authz.CanAct(userID, role, ad.AuthorID) {
		return echo.NewHTTPError(http.StatusForbidden, "You do not have permission to perform this action")
	}

	// An ad owns its reviews: both rows go in one transaction.
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("ad_id = ?", ad.ID).Delete(&models.Review{}).Error; err != nil {
			return err
		}
		return tx.Delete(ad).Error
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.deindex(c, ad.ID)
	return c.NoContent(http.StatusNoContent)
}

// index and deindex keep elasticsearch in step with the database,
// best-effort: a search-index failure never fails the request.
func (h *AdHandler) index(c echo.Context, ad models.Ad) {
	if h.ES == nil {
		return
	}
	if err := search.IndexAd(c.Request().Context(), h.ES, h.ESIndex, ad); err != nil {
		c.Logger().Errorf("es index error: %v", err)
	}
}

func (h *AdHandler) deindex(c echo.Context, id uint) {
	if h.ES == nil {
		return
	}
	if err := search.DeleteAd(c.Request().Context(), h.ES, h.ESIndex, id); err != nil {
		c.Logger().Errorf("es deindex error: %v", err)
	}
}
