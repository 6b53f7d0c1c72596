package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/KOPFJE/patientor/internal/domain/diagnosis"
	"github.com/KOPFJE/patientor/internal/domain/entry"
	"github.com/KOPFJE/patientor/internal/domain/patient"
	"github.com/KOPFJE/patientor/internal/platform/middleware"
	"github.com/KOPFJE/patientor/internal/platform/store"
)

const version = "0.1.0"

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the patientor HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			return runServer(a)
		},
	}
}

// newServer builds the echo instance with every route and middleware.
func newServer(a *app) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.logger))
	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: a.cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderContentType, middleware.RequestIDHeader},
	}))
	e.Use(middleware.BodyLimit(a.cfg.BodyLimit))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: a.cfg.RateLimitRPS,
		BurstSize:         a.cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}

	api := e.Group("/api")
	api.Use(middleware.RateLimit(rateLimitCfg))
	api.Use(middleware.RequestTimeout(a.cfg.RequestTimeout))

	patientHandler := patient.NewHandler(a.patients, a.renderer, a.store, a.logger)
	patientHandler.RegisterRoutes(api)

	diagnosis.NewHandler(a.store).RegisterRoutes(api)

	entryHandler := entry.NewHandler(a.entries, entry.NewDrafts(a.registry), a.registry, a.store, a.logger)
	entryHandler.RegisterRoutes(api)

	return e
}

func runServer(a *app) error {
	ctx := context.Background()

	loadCtx, cancel := context.WithTimeout(ctx, a.cfg.APITimeout)
	if err := store.Load(loadCtx, a.store, a.client); err != nil {
		a.logger.Warn().Err(err).Msg("initial load incomplete")
	}
	cancel()
	snap := a.store.Read()
	a.logger.Info().
		Int("patients", len(snap.Patients)).
		Int("diagnoses", len(snap.Diagnoses)).
		Msg("store loaded")

	e := newServer(a)

	go func() {
		addr := ":" + a.cfg.Port
		a.logger.Info().Str("addr", addr).Str("api", a.cfg.APIBaseURL).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			a.logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	a.logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	a.logger.Info().Msg("server stopped")
	return nil
}
