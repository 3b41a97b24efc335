package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/mkravch/buyrate/internal/authz"
	"github.com/mkravch/buyrate/internal/models"
	"github.com/mkravch/buyrate/internal/util"
)

type ReviewHandler struct {
	DB *gorm.DB
}

// requireAd enforces the parent check: review routes under a missing ad are
// 404 before any review query runs, so a bad ad id never reads as an empty
// result set.
func (h *ReviewHandler) requireAd(c echo.Context) (uint, error) {
	adID, err := pathID(c, "id")
	if err != nil {
		return 0, err
	}

	var count int64
	if err := h.DB.Model(&models.Ad{}).Where("id = ?", adID).Count(&count).Error; err != nil {
		return 0, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if count == 0 {
		return 0, echo.NewHTTPError(http.StatusNotFound, msgAdNotFound)
	}
	return adID, nil
}

func (h *ReviewHandler) findReview(adID, reviewID uint) (*models.Review, error) {
	var review models.Review
	err := h.DB.Where("id = ? AND ad_id = ?", reviewID, adID).First(&review).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound, "Review with this ID not found")
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return &review, nil
}

func (h *ReviewHandler) ListForAd(c echo.Context) error {
	adID, err := h.requireAd(c)
	if err != nil {
		return err
	}

	page, offset, limit, err := util.PageParams(c)
	if err != nil {
		return err
	}

	q := h.DB.Model(&models.Review{}).Where("ad_id = ?", adID)

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if err := util.ValidatePage(page, offset, count); err != nil {
		return err
	}

	reviews := make([]models.Review, 0, limit)
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&reviews).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, util.NewPage(c, count, page, limit, reviews))
}

func (h *ReviewHandler) ListAll(c echo.Context) error {
	page, offset, limit, err := util.PageParams(c)
	if err != nil {
		return err
	}

	var count int64
	if err := h.DB.Model(&models.Review{}).Count(&count).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if err := util.ValidatePage(page, offset, count); err != nil {
		return err
	}

	reviews := make([]models.Review, 0, limit)
	if err := h.DB.Order("created_at DESC").Offset(offset).Limit(limit).Find(&reviews).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, util.NewPage(c, count, page, limit, reviews))
}

type reviewPayload struct {
	Text *string `json:"text"`
}

func (h *ReviewHandler) Create(c echo.Context) error {
	userID, _, err := requireActor(c)
	if err != nil {
		return err
	}
	adID, err := h.requireAd(c)
	if err != nil {
		return err
	}

	var req reviewPayload
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Text == nil || *req.Text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}

	// Author and parent ad come from the request context, never the body.
	review := models.Review{
		Text:     *req.Text,
		AuthorID: userID,
		AdID:     adID,
	}
	if err := h.DB.Create(&review).Error; err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, review)
}

func (h *ReviewHandler) Get(c echo.Context) error {
	adID, err := h.requireAd(c)
	if err != nil {
		return err
	}
	reviewID, err := pathID(c, "review_id")
	if err != nil {
		return err
	}

	review, err := h.findReview(adID, reviewID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, review)
}

func (h *ReviewHandler) Update(c echo.Context) error {
	return h.update(c, true)
}

func (h *ReviewHandler) Patch(c echo.Context) error {
	return h.update(c, false)
}

func (h *ReviewHandler) update(c echo.Context, full bool) error {
	userID, role, err := requireActor(c)
	if err != nil {
		return err
	}
	adID, err := h.requireAd(c)
	if err != nil {
		return err
	}
	reviewID, err := pathID(c, "review_id")
	if err != nil {
		return err
	}

	review, err := h.findReview(adID, reviewID)
	if err != nil {
		return err
	}
	if !authz.CanAct(userID, role, review.AuthorID) {
		return echo.NewHTTPError(http.StatusForbidden, "You do not have permission to perform this action")
	}

	var req reviewPayload
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if full && req.Text == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}

	if req.Text != nil {
		if *req.Text == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "text must not be blank")
		}
		review.Text = *req.Text
	}
	if err := h.DB.Save(review).Error; err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, review)
}

func (h *ReviewHandler) Delete(c echo.Context) error {
	userID, role, err := requireActor(c)
	if err != nil {
		return err
	}
	adID, err := h.requireAd(c)
	if err != nil {
		return err
	}
	reviewID, err := pathID(c, "review_id")
	if err != nil {
		return err
	}

	review, err := h.findReview(adID, reviewID)
	if err != nil {
		return err
	}
	if !authz.CanAct(userID, role, review.AuthorID) {
		return echo.NewHTTPError(http.StatusForbidden, "You do not have permission to perform this action")
	}

	if err := h.DB.Delete(review).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
