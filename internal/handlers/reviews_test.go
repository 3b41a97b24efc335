package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mkravch/buyrate/internal/authz"
	"github.com/mkravch/buyrate/internal/models"
	"github.com/mkravch/buyrate/internal/util"
)

func TestListReviewsMissingAd(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "a@x.com", authz.RoleUser)

	_, c := env.do(http.MethodGet, "/ads/42/reviews", nil)
	adParam(c, 42)
	actAs(c, user)
	he := requireHTTPError(t, env.Reviews.ListForAd(c), http.StatusNotFound)
	require.Equal(t, msgAdNotFound, he.Message)
}

func TestListReviewsEmptyIsNotNotFound(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "a@x.com", authz.RoleUser)
	ad := env.createAd(t, user, "T", time.Now())

	rec, c := env.do(http.MethodGet, "/ads/1/reviews", nil)
	adParam(c, ad.ID)
	actAs(c, user)
	require.NoError(t, env.Reviews.ListForAd(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var page struct {
		Count   int64           `json:"count"`
		Results []models.Review `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.EqualValues(t, 0, page.Count)
	require.Empty(t, page.Results)
}

func TestListReviewsPaginationAndOrder(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "a@x.com", authz.RoleUser)
	ad := env.createAd(t, user, "T", time.Now())
	other := env.createAd(t, user, "T2", time.Now())

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		env.createReview(t, user, ad, fmt.Sprintf("rev-%d", i), base.Add(time.Duration(i)*time.Minute))
	}
	env.createReview(t, user, other, "foreign", base)

	rec, c := env.do(http.MethodGet, "/ads/1/reviews", nil)
	adParam(c, ad.ID)
	actAs(c, user)
	require.NoError(t, env.Reviews.ListForAd(c))

	var page struct {
		Count   int64           `json:"count"`
		Next    *string         `json:"next"`
		Results []models.Review `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.EqualValues(t, 5, page.Count)
	require.Len(t, page.Results, util.PageSize)
	require.NotNil(t, page.Next)
	require.Equal(t, "rev-4", page.Results[0].Text)
	for _, r := range page.Results {
		require.Equal(t, ad.ID, r.AdID)
	}
}

func TestCreateReviewForcesAuthorAndAd(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "a@x.com", authz.RoleUser)
	ad := env.createAd(t, user, "T", time.Now())
	env.createAd(t, user, "T2", time.Now())

	// Client-supplied author and ad are overridden by token and path.
	rec, c := env.do(http.MethodPost, "/ads/1/reviews", map[string]any{
		"text":   "nice",
		"author": 999,
		"ad":     2,
	})
	adParam(c, ad.ID)
	actAs(c, user)
	require.NoError(t, env.Reviews.Create(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp models.Review
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "nice", resp.Text)
	require.Equal(t, user.ID, resp.AuthorID)
	require.Equal(t, ad.ID, resp.AdID)
}

func TestCreateReviewMissingAd(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "a@x.com", authz.RoleUser)

	_, c := env.do(http.MethodPost, "/ads/42/reviews", map[string]any{"text": "nice"})
	adParam(c, 42)
	actAs(c, user)
	he := requireHTTPError(t, env.Reviews.Create(c), http.StatusNotFound)
	require.Equal(t, msgAdNotFound, he.Message)
}

func TestCreateReviewValidation(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "a@x.com", authz.RoleUser)
	ad := env.createAd(t, user, "T", time.Now())

	_, c := env.do(http.MethodPost, "/ads/1/reviews", map[string]any{})
	adParam(c, ad.ID)
	actAs(c, user)
	requireHTTPError(t, env.Reviews.Create(c), http.StatusBadRequest)
}

func TestGetReviewScopedToAd(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "a@x.com", authz.RoleUser)
	ad := env.createAd(t, user, "T", time.Now())
	other := env.createAd(t, user, "T2", time.Now())
	review := env.createReview(t, user, ad, "nice", time.Now())

	rec, c := env.do(http.MethodGet, "/ads/1/reviews/1", nil)
	reviewParams(c, ad.ID, review.ID)
	actAs(c, user)
	require.NoError(t, env.Reviews.Get(c))
	require.Equal(t, http.StatusOK, rec.Code)

	// The same review under the wrong parent ad is invisible.
	_, c = env.do(http.MethodGet, "/ads/2/reviews/1", nil)
	reviewParams(c, other.ID, review.ID)
	actAs(c, user)
	requireHTTPError(t, env.Reviews.Get(c), http.StatusNotFound)
}

func TestUpdateReviewPermissions(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "a@x.com", authz.RoleUser)
	other := env.createUser(t, "b@x.com", authz.RoleUser)
	admin := env.createUser(t, "admin@x.com", authz.RoleAdmin)
	ad := env.createAd(t, owner, "T", time.Now())
	review := env.createReview(t, owner, ad, "original", time.Now())

	_, c := env.do(http.MethodPut, "/ads/1/reviews/1", map[string]any{"text": "hacked"})
	reviewParams(c, ad.ID, review.ID)
	actAs(c, other)
	requireHTTPError(t, env.Reviews.Update(c), http.StatusForbidden)

	rec, c := env.do(http.MethodPut, "/ads/1/reviews/1", map[string]any{"text": "edited"})
	reviewParams(c, ad.ID, review.ID)
	actAs(c, owner)
	require.NoError(t, env.Reviews.Update(c))
	require.Equal(t, http.StatusOK, rec.Code)

	rec, c = env.do(http.MethodPatch, "/ads/1/reviews/1", map[string]any{"text": "moderated"})
	reviewParams(c, ad.ID, review.ID)
	actAs(c, admin)
	require.NoError(t, env.Reviews.Patch(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var saved models.Review
	require.NoError(t, env.DB.First(&saved, review.ID).Error)
	require.Equal(t, "moderated", saved.Text)
}

func TestPatchReviewRejectsBlankText(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "a@x.com", authz.RoleUser)
	ad := env.createAd(t, owner, "T", time.Now())
	review := env.createReview(t, owner, ad, "original", time.Now())

	_, c := env.do(http.MethodPatch, "/ads/1/reviews/1", map[string]any{"text": ""})
	reviewParams(c, ad.ID, review.ID)
	actAs(c, owner)
	requireHTTPError(t, env.Reviews.Patch(c), http.StatusBadRequest)

	var saved models.Review
	require.NoError(t, env.DB.First(&saved, review.ID).Error)
	require.Equal(t, "original", saved.Text)
}

func TestUpdateReviewCannotMoveAd(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "a@x.com", authz.RoleUser)
	ad := env.createAd(t, owner, "T", time.Now())
	env.createAd(t, owner, "T2", time.Now())
	review := env.createReview(t, owner, ad, "original", time.Now())

	rec, c := env.do(http.MethodPatch, "/ads/1/reviews/1", map[string]any{"text": "edited", "ad": 2})
	reviewParams(c, ad.ID, review.ID)
	actAs(c, owner)
	require.NoError(t, env.Reviews.Patch(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var saved models.Review
	require.NoError(t, env.DB.First(&saved, review.ID).Error)
	require.Equal(t, ad.ID, saved.AdID)
}

func TestDeleteReview(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "a@x.com", authz.RoleUser)
	other := env.createUser(t, "b@x.com", authz.RoleUser)
	ad := env.createAd(t, owner, "T", time.Now())
	review := env.createReview(t, owner, ad, "original", time.Now())

	_, c := env.do(http.MethodDelete, "/ads/1/reviews/1", nil)
	reviewParams(c, ad.ID, review.ID)
	actAs(c, other)
	requireHTTPError(t, env.Reviews.Delete(c), http.StatusForbidden)

	rec, c := env.do(http.MethodDelete, "/ads/1/reviews/1", nil)
	reviewParams(c, ad.ID, review.ID)
	actAs(c, owner)
	require.NoError(t, env.Reviews.Delete(c))
	require.Equal(t, http.StatusNoContent, rec.Code)

	var count int64
	require.NoError(t, env.DB.Model(&models.Review{}).Count(&count).Error)
	require.EqualValues(t, 0, count)
}

func TestListAllReviews(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "a@x.com", authz.RoleUser)
	ad1 := env.createAd(t, user, "T", time.Now())
	ad2 := env.createAd(t, user, "T2", time.Now())

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		env.createReview(t, user, ad1, fmt.Sprintf("a-%d", i), base.Add(time.Duration(i)*time.Minute))
	}
	env.createReview(t, user, ad2, "b-0", base.Add(time.Hour))

	rec, c := env.do(http.MethodGet, "/reviews", nil)
	actAs(c, user)
	require.NoError(t, env.Reviews.ListAll(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var page struct {
		Count   int64           `json:"count"`
		Results []models.Review `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.EqualValues(t, 4, page.Count)
	require.Equal(t, "b-0", page.Results[0].Text)
}
