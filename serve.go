package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo-contrib/pprof"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"taskflow/api"
	"taskflow/board"
	"taskflow/config"
	"taskflow/domain"
	"taskflow/events"
	"taskflow/identity"
	"taskflow/storage"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(parent context.Context, cfg *config.Config) error {
	logger := newLogger(cfg.Debug)

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Warn("tracer provider shutdown")
		}
	}()

	store, err := storage.New(cfg.Storage, cfg.Feed.ImageURLTTL)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	rc := redis.NewClient(storage.ParseRedisOptions(cfg.Redis.ConnectionString))
	defer rc.Close()
	feedStore := storage.NewCache(store, rc, cfg.Feed.CacheTTL)

	publisher := events.NewPublisher(store, events.Config{
		Workers:        cfg.Events.Workers,
		Buffer:         cfg.Events.Buffer,
		Timeout:        cfg.Events.Timeout,
		HandoffTimeout: cfg.Events.HandoffTimeout,
	}, logger)
	defer publisher.Close()

	tokens := identity.NewTokens([]byte(cfg.Session.Secret), cfg.Session.Issuer, cfg.Session.TTL, cfg.Session.ResetTokenTTL)
	opts := []identity.Option{identity.WithEvents(publisher)}
	if cfg.Federate.GoogleClientID != "" {
		google, err := identity.NewGoogleVerifier(cfg.Federate.GoogleJWKSURL, cfg.Federate.GoogleIssuer, cfg.Federate.GoogleClientID)
		if err != nil {
			return fmt.Errorf("jwks: %w", err)
		}
		defer google.Close()
		opts = append(opts, identity.WithProvider(domain.ProviderGoogle, google))
	}
	gateway := identity.NewGateway(store, tokens, identity.NewRedisRevoker(rc), logger, opts...)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	boards := board.NewRegistry(cfg.Board.IdleTTL)
	go boards.RunSweeper(ctx, cfg.Board.SweepInterval, logger)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(middleware.Decompress())
	e.Use(middleware.BodyLimit(bodyLimit(cfg.Feed.MaxUploadSize)))
	if cfg.Debug {
		pprof.Register(e)
	}

	api.Register(e, api.Dependencies{
		Identity:      gateway,
		Boards:        boards,
		Feed:          feedStore,
		Events:        publisher,
		Logger:        logger,
		SecureCookie:  cfg.Session.SecureCookie,
		MaxUploadSize: cfg.Feed.MaxUploadSize,
		Health: func(ctx context.Context) error {
			return rc.Ping(ctx).Err()
		},
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("listening on %s", cfg.ListenAddr)
		if err := e.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// bodyLimit leaves room for multipart framing around the largest upload.
func bodyLimit(maxUpload int64) string {
	return fmt.Sprintf("%dK", maxUpload/1024+1024)
}
