package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mkravch/buyrate/internal/auth"
	"github.com/mkravch/buyrate/internal/handlers"
)

type Deps struct {
	AdHandler     *handlers.AdHandler
	ReviewHandler *handlers.ReviewHandler
	UserHandler   *handlers.UserHandler
	Auth          *auth.Middleware
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	login := d.Auth.RequireAuth

	ads := e.Group("/ads")
	ads.GET("", d.AdHandler.List)
	ads.GET("/search", d.AdHandler.Search)
	ads.POST("", d.AdHandler.Create, login)
	ads.GET("/:id", d.AdHandler.Get, login)
	ads.PUT("/:id", d.AdHandler.Update, login)
	ads.PATCH("/:id", d.AdHandler.Patch, login)
	ads.DELETE("/:id", d.AdHandler.Delete, login)

	// Review routes reuse :id for the parent ad so echo sees one param name
	// per segment.
	ads.GET("/:id/reviews", d.ReviewHandler.ListForAd, login)
	ads.POST("/:id/reviews", d.ReviewHandler.Create, login)
	ads.GET("/:id/reviews/:review_id", d.ReviewHandler.Get, login)
	ads.PUT("/:id/reviews/:review_id", d.ReviewHandler.Update, login)
	ads.PATCH("/:id/reviews/:review_id", d.ReviewHandler.Patch, login)
	ads.DELETE("/:id/reviews/:review_id", d.ReviewHandler.Delete, login)

	e.GET("/reviews", d.ReviewHandler.ListAll, login)

	users := e.Group("/users")
	users.POST("/register", d.UserHandler.Register)
	users.POST("/token", d.UserHandler.Login)
	users.POST("/token/refresh", d.UserHandler.Refresh)
	users.POST("/reset_password", d.UserHandler.ResetPassword)
	users.POST("/reset_password_confirm", d.UserHandler.ResetPasswordConfirm)
}
