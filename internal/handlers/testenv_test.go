package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mkravch/buyrate/internal/auth"
	"github.com/mkravch/buyrate/internal/authz"
	"github.com/mkravch/buyrate/internal/hash"
	"github.com/mkravch/buyrate/internal/models"
	"github.com/mkravch/buyrate/internal/mykafka"
)

var (
	testJWTSecret     = []byte("test-jwt-secret")
	testRefreshSecret = []byte("test-refresh-secret")
)

type stubPublisher struct {
	events []mykafka.ResetEmailEvent
	err    error
}

func (s *stubPublisher) PublishEvent(ctx context.Context, key string, event any) error {
	if e, ok := event.(mykafka.ResetEmailEvent); ok {
		s.events = append(s.events, e)
	}
	return s.err
}

type testEnv struct {
	E         *echo.Echo
	DB        *gorm.DB
	Ads       *AdHandler
	Reviews   *ReviewHandler
	Users     *UserHandler
	Publisher *stubPublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Ad{}, &models.Review{}, &models.RefreshToken{}))

	pub := &stubPublisher{}
	return &testEnv{
		E:       echo.New(),
		DB:      db,
		Ads:     &AdHandler{DB: db},
		Reviews: &ReviewHandler{DB: db},
		Users: &UserHandler{
			DB:            db,
			JWTSecret:     testJWTSecret,
			RefreshSecret: testRefreshSecret,
			Producer:      pub,
		},
		Publisher: pub,
	}
}

func (env *testEnv) do(method, target string, body any) (*httptest.ResponseRecorder, echo.Context) {
	var r io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, r)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return rec, env.E.NewContext(req, rec)
}

func actAs(c echo.Context, user models.User) {
	auth.SetActor(c, user.ID, user.Role)
}

func (env *testEnv) createUser(t *testing.T, email string, role authz.Role) models.User {
	t.Helper()
	passwordHash, err := hash.HashPassword("p12345")
	require.NoError(t, err)
	user := models.User{Email: email, PasswordHash: passwordHash, Role: role}
	require.NoError(t, env.DB.Create(&user).Error)
	return user
}

func (env *testEnv) createAd(t *testing.T, author models.User, title string, createdAt time.Time) models.Ad {
	t.Helper()
	ad := models.Ad{
		Title:       title,
		Price:       100,
		Description: "D",
		AuthorID:    author.ID,
		CreatedAt:   createdAt,
	}
	require.NoError(t, env.DB.Create(&ad).Error)
	return ad
}

func (env *testEnv) createReview(t *testing.T, author models.User, ad models.Ad, text string, createdAt time.Time) models.Review {
	t.Helper()
	review := models.Review{
		Text:      text,
		AuthorID:  author.ID,
		AdID:      ad.ID,
		CreatedAt: createdAt,
	}
	require.NoError(t, env.DB.Create(&review).Error)
	return review
}

func requireHTTPError(t *testing.T, err error, code int) *echo.HTTPError {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected *echo.HTTPError, got %v", err)
	require.Equal(t, code, he.Code)
	return he
}

func adParam(c echo.Context, adID uint) {
	c.SetParamNames("id")
	c.SetParamValues(strconv.FormatUint(uint64(adID), 10))
}

func reviewParams(c echo.Context, adID, reviewID uint) {
	c.SetParamNames("id", "review_id")
	c.SetParamValues(
		strconv.FormatUint(uint64(adID), 10),
		strconv.FormatUint(uint64(reviewID), 10),
	)
}
