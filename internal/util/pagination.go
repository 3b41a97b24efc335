package util

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// PageSize is both the default and the ceiling: a page_size query param is
// accepted but clamped, so no page ever carries more than 4 items.
const PageSize = 4

type Page struct {
	Count    int64   `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  any     `json:"results"`
}

// PageParams reads page and page_size from the query string. A non-integer or
// non-positive page is rejected the way the rest of the API rejects a missing
// resource.
func PageParams(c echo.Context) (page, offset, limit int, err error) {
	page = 1
	if raw := c.QueryParam("page"); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, 0, echo.NewHTTPError(http.StatusNotFound, "Invalid page")
		}
	}

	limit = PageSize
	if raw := c.QueryParam("page_size"); raw != "" {
		if v, convErr := strconv.Atoi(raw); convErr == nil && v > 0 && v < PageSize {
			limit = v
		}
	}

	return page, (page - 1) * limit, limit, nil
}

// ValidatePage rejects pages past the end of the result set. Page 1 of an
// empty set is still a valid (empty) page.
func ValidatePage(page, offset int, count int64) error {
	if page > 1 && int64(offset) >= count {
		return echo.NewHTTPError(http.StatusNotFound, "Invalid page")
	}
	return nil
}

// NewPage builds the {count, next, previous, results} envelope. Next and
// previous links reuse the request URL with only the page param rewritten.
func NewPage(c echo.Context, count int64, page, limit int, results any) Page {
	p := Page{Count: count, Results: results}
	if int64(page*limit) < count {
		p.Next = pageURL(c, page+1)
	}
	if page > 1 {
		p.Previous = pageURL(c, page-1)
	}
	return p
}

func pageURL(c echo.Context, page int) *string {
	u := *c.Request().URL
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	s := u.String()
	return &s
}
