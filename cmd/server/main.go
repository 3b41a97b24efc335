package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/mkravch/buyrate/internal/auth"
	"github.com/mkravch/buyrate/internal/config"
	"github.com/mkravch/buyrate/internal/es"
	"github.com/mkravch/buyrate/internal/handlers"
	"github.com/mkravch/buyrate/internal/logging"
	"github.com/mkravch/buyrate/internal/mykafka"
	httpserver "github.com/mkravch/buyrate/internal/transport/http"
)

func main() {
	log := logging.New(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Error("config load failed", "error", err)
		os.Exit(1)
	}

	db, err := config.InitDB(cfg)
	if err != nil {
		log.Error("db init failed", "error", err)
		os.Exit(1)
	}

	producer := mykafka.NewProducer([]string{cfg.KAFKA_ADDRESS}, cfg.EMAIL_TOPIC)

	esClient, err := es.NewClient(cfg)
	if err != nil {
		// Search is an auxiliary surface: the marketplace still serves CRUD
		// without the index.
		log.Warn("elasticsearch unavailable, /ads/search disabled", "error", err)
		esClient = nil
	}

	e := echo.New()
	e.HideBanner = true
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())

	deps := httpserver.Deps{
		AdHandler:     &handlers.AdHandler{DB: db, ES: esClient, ESIndex: cfg.ES_INDEX},
		ReviewHandler: &handlers.ReviewHandler{DB: db},
		UserHandler: &handlers.UserHandler{
			DB:            db,
			JWTSecret:     []byte(cfg.JWT_SECRET),
			RefreshSecret: []byte(cfg.REFRESH_SECRET),
			Producer:      producer,
		},
		Auth: &auth.Middleware{JWTSecret: []byte(cfg.JWT_SECRET)},
	}
	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         cfg.HTTP_ADDR,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("http server starting", "addr", cfg.HTTP_ADDR)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server shutdown error", "error", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Error("db close error", "error", err)
		}
	}

	if err := producer.Close(); err != nil {
		log.Error("kafka close error", "error", err)
	}

	log.Info("shutdown complete")
}
