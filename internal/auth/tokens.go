package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/mkravch/buyrate/internal/authz"
	"github.com/mkravch/buyrate/internal/models"
)

const (
	AccessTTL  = 15 * time.Minute
	RefreshTTL = 7 * 24 * time.Hour
)

func SignAccessToken(userID uint, role authz.Role, secret []byte) (string, error) {
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": string(role),
		"exp":  time.Now().Add(AccessTTL).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(secret)
}

func SignRefreshToken(userID uint, role authz.Role, secret []byte) (string, error) {
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": string(role),
		"exp":  time.Now().Add(RefreshTTL).Unix(),
		"typ":  "refresh",
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(secret)
}

// ParseAccessToken verifies the signature and expiry and returns the actor
// identity carried in the claims.
func ParseAccessToken(raw string, secret []byte) (uint, authz.Role, error) {
	t, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !t.Valid {
		return 0, "", fmt.Errorf("invalid access token: %w", err)
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return 0, "", errors.New("cannot parse claims")
	}
	sub, ok := claims["sub"].(float64)
	if !ok {
		return 0, "", errors.New("missing sub claim")
	}
	role := authz.Role(fmt.Sprint(claims["role"]))
	if !role.Valid() {
		return 0, "", errors.New("unknown role claim")
	}
	if typ, hasTyp := claims["typ"]; hasTyp && typ == "refresh" {
		return 0, "", errors.New("refresh token used as access token")
	}

	return uint(sub), role, nil
}

// ValidateRefresh checks signature, typ claim and the persisted token record
// (revocation, expiry) and returns the subject identity.
func ValidateRefresh(raw string, secret []byte, db *gorm.DB) (uint, authz.Role, error) {
	t, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !t.Valid {
		return 0, "", fmt.Errorf("invalid refresh token: %w", err)
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return 0, "", errors.New("cannot parse claims")
	}
	if typ, hasTyp := claims["typ"]; !hasTyp || typ != "refresh" {
		return 0, "", errors.New("not a refresh token")
	}
	sub, ok := claims["sub"].(float64)
	if !ok {
		return 0, "", errors.New("missing sub claim")
	}
	role := authz.Role(fmt.Sprint(claims["role"]))
	if !role.Valid() {
		return 0, "", errors.New("unknown role claim")
	}

	var stored models.RefreshToken
	if err := db.Where("token = ?", raw).First(&stored).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, "", errors.New("refresh token not found")
		}
		return 0, "", fmt.Errorf("db error: %w", err)
	}
	if stored.Revoked {
		return 0, "", errors.New("refresh token revoked")
	}
	if time.Now().Unix() > stored.ExpiresAt {
		return 0, "", errors.New("refresh token expired")
	}

	return uint(sub), role, nil
}

func SaveRefreshToken(db *gorm.DB, token string, userID uint) error {
	rec := models.RefreshToken{
		Token:     token,
		UserID:    userID,
		ExpiresAt: time.Now().Add(RefreshTTL).Unix(),
		Revoked:   false,
	}
	if err := db.Create(&rec).Error; err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func RevokeRefreshToken(db *gorm.DB, token string) error {
	return db.Model(&models.RefreshToken{}).
		Where("token = ?", token).
		Update("revoked", true).Error
}
