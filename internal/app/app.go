// Package app wires configuration, storage, the use case and the HTTP server
// together and runs them until the context is cancelled.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/httplog/v2"
	"github.com/vadimbarashkov/expiring-url-shortener/internal/config"
	"github.com/vadimbarashkov/expiring-url-shortener/internal/shortcode"
	"github.com/vadimbarashkov/expiring-url-shortener/internal/usecase"
	"golang.org/x/sync/errgroup"

	httpDelivery "github.com/vadimbarashkov/expiring-url-shortener/internal/adapter/delivery/http"
)

const serviceName = "expiring-url-shortener"

func newLogger(cfg *config.Config) *httplog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = slog.LevelInfo
	}

	return httplog.NewLogger(serviceName, httplog.Options{
		LogLevel:        level,
		JSON:            cfg.Env == config.EnvProd,
		Concise:         cfg.Env == config.EnvDev,
		Tags:            map[string]string{"env": cfg.Env},
		QuietDownRoutes: []string{"/api/v1/ping", "/metrics"},
		QuietDownPeriod: 10 * time.Second,
	})
}

func newURLUseCase(cfg *config.Config, urlRepo urlRepository, logger *slog.Logger, opts ...usecase.Option) *usecase.URLUseCase {
	allocator := shortcode.NewAllocator(shortcode.NewGenerator(), urlRepo, cfg.ShortCode.MaxAttempts,
		shortcode.WithReserved(httpDelivery.ReservedPaths...),
	)

	opts = append([]usecase.Option{
		usecase.WithTTL(cfg.URLTTL),
		usecase.WithLogger(logger),
	}, opts...)

	return usecase.New(urlRepo, allocator, opts...)
}

func Run(ctx context.Context, cfg *config.Config) error {
	const op = "app.Run"

	logger := newLogger(cfg)

	store, err := openStorage(ctx, cfg, logger.Logger)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer store.Close()

	urlUseCase := newURLUseCase(cfg, store.urlRepo, logger.Logger)

	router := httpDelivery.NewRouter(logger, urlUseCase,
		httpDelivery.WithBaseURL(cfg.BaseURL),
		httpDelivery.WithDocsPath(cfg.DocsPath),
	)

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        router,
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting server",
			slog.String("addr", server.Addr),
			slog.String("storage", cfg.Storage.Driver),
			slog.Bool("redis", cfg.Redis.Enabled),
		)

		var err error

		switch cfg.Env {
		case config.EnvProd:
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		default:
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: server error occurred: %w", op, err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		logger.Info("shutting down server")

		if err := server.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("%s: failed to shutdown server: %w", op, err)
		}

		return nil
	})

	if cfg.Cleanup.Interval > 0 {
		g.Go(func() error {
			return newSweeper(urlUseCase, cfg.Cleanup.Interval, logger.Logger).Run(ctx)
		})
	}

	return g.Wait()
}
