package handlers

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/mkravch/buyrate/internal/auth"
	"github.com/mkravch/buyrate/internal/authz"
	"github.com/mkravch/buyrate/internal/hash"
	"github.com/mkravch/buyrate/internal/models"
	"github.com/mkravch/buyrate/internal/mykafka"
)

const (
	msgUserNotFound    = "User not found"
	msgInvalidToken    = "Invalid token"
	msgResetLinkSent   = "Reset link sent successfully"
	msgPasswordChanged = "Password successfully changed"

	resetTokenBytes = 16
)

type UserHandler struct {
	DB            *gorm.DB
	JWTSecret     []byte
	RefreshSecret []byte
	Producer      mykafka.Publisher
}

func (h *UserHandler) Register(c echo.Context) error {
	var req struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Phone     string `json:"phone"`
		Role      string `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Email == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email is required")
	}
	if req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "password is required")
	}

	role := authz.RoleUser
	if req.Role != "" {
		role = authz.Role(req.Role)
		if !role.Valid() {
			return echo.NewHTTPError(http.StatusBadRequest, "role must be one of: user, admin")
		}
	}

	var existing models.User
	err := h.DB.Where("email = ?", req.Email).First(&existing).Error
	if err == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "user with this email already exists")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	passwordHash, err := hash.HashPassword(req.Password)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	user := models.User{
		Email:        req.Email,
		PasswordHash: passwordHash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
		Role:         role,
	}
	if err := h.DB.Create(&user).Error; err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return c.JSON(http.StatusCreated, user)
}

func (h *UserHandler) Login(c echo.Context) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}

	var user models.User
	if err := h.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid email or password")
	}
	if !hash.CheckPassword(user.PasswordHash, req.Password) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid email or password")
	}

	access, err := auth.SignAccessToken(user.ID, user.Role, h.JWTSecret)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	refresh, err := auth.SignRefreshToken(user.ID, user.Role, h.RefreshSecret)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if err := auth.SaveRefreshToken(h.DB, refresh, user.ID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"access": access, "refresh": refresh})
}

// Refresh rotates a valid refresh token: the old one is revoked and a fresh
// pair is issued.
func (h *UserHandler) Refresh(c echo.Context) error {
	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}

	userID, role, err := auth.ValidateRefresh(req.Refresh, h.RefreshSecret, h.DB)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
	}

	access, err := auth.SignAccessToken(userID, role, h.JWTSecret)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	refresh, err := auth.SignRefreshToken(userID, role, h.RefreshSecret)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if err := auth.RevokeRefreshToken(h.DB, req.Refresh); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if err := auth.SaveRefreshToken(h.DB, refresh, userID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"access": access, "refresh": refresh})
}

// ResetPassword stores a fresh single-use recovery token on the account and
// hands the email off to the queue. The request succeeds whether or not the
// email is ever delivered.
func (h *UserHandler) ResetPassword(c echo.Context) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var user models.User
	if err := h.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"detail": msgUserNotFound})
	}

	token, err := newResetToken()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	// Overwrites any pending token: one active reset per account.
	if err := h.DB.Model(&user).Update("reset_token", token).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	event := mykafka.ResetEmailEvent{
		Type:  mykafka.EventPasswordReset,
		Email: user.Email,
		UID:   encodeUID(user.ID),
		Token: token,
	}
	// Enqueueing is best-effort: delivery happens in the mail worker and a
	// broker error is logged, never surfaced to the caller.
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, fmt.Sprint(user.ID), event); err != nil {
		c.Logger().Errorf("kafka publish error: %v", err)
	}

	return c.JSON(http.StatusOK, echo.Map{"detail": msgResetLinkSent})
}

func (h *UserHandler) ResetPasswordConfirm(c echo.Context) error {
	var req struct {
		UID         string `json:"uid"`
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.NewPassword == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "new_password is required")
	}

	// A malformed uid is indistinguishable from a missing account.
	userID, err := decodeUID(req.UID)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"detail": msgUserNotFound})
	}

	var user models.User
	if err := h.DB.First(&user, userID).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"detail": msgUserNotFound})
	}

	if user.ResetToken == "" || req.Token == "" ||
		subtle.ConstantTimeCompare([]byte(user.ResetToken), []byte(req.Token)) != 1 {
		return c.JSON(http.StatusForbidden, echo.Map{"detail": msgInvalidToken})
	}

	passwordHash, err := hash.HashPassword(req.NewPassword)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	// The write is guarded on the token still being the one that was checked:
	// a single conditional UPDATE, so of two concurrent confirms with the
	// same token only one can clear it. The compare above stays as the
	// constant-time pre-check.
	res := h.DB.Model(&models.User{}).
		Where("id = ? AND reset_token = ?", user.ID, req.Token).
		Updates(map[string]interface{}{
			"password_hash": passwordHash,
			"reset_token":   "",
		})
	if res.Error != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, res.Error.Error())
	}
	if res.RowsAffected != 1 {
		return c.JSON(http.StatusForbidden, echo.Map{"detail": msgInvalidToken})
	}

	return c.JSON(http.StatusOK, echo.Map{"detail": msgPasswordChanged})
}

func newResetToken() (string, error) {
	buf := make([]byte, resetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func encodeUID(id uint) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatUint(uint64(id), 10)))
}

func decodeUID(uid string) (uint, error) {
	raw, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseUint(string(raw), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
