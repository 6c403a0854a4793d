package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"

	"moodtrack/internal/auth"
	"moodtrack/internal/config"
	apphttp "moodtrack/internal/http"
	"moodtrack/internal/service"
)

func serveCmd() *cli.Command {
	var addr string
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "Address to listen on (overrides server.addr)",
				Destination: &addr,
			},
		},
		Action: func(ctx *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			return serve(ctx.Context, cfg)
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if cfg.Database.MigrateOnStart {
		if err := db.Migrate(ctx, logger.WithField("driver", cfg.Database.Driver)); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
	}

	codec, err := auth.NewTokenCodec([]byte(cfg.Auth.Secret))
	if err != nil {
		return fmt.Errorf("token codec: %w", err)
	}

	storageSvc, err := buildStorage(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("setup storage: %w", err)
	}

	handler := apphttp.NewHandler(apphttp.Config{
		Users:   service.NewUserService(db.users, auth.NewBcryptHasher(cfg.Auth.BcryptCost)),
		Entries: service.NewEntryService(db.entries),
		Exports: service.NewExportService(db.entries, storageSvc, service.ExportConfig{
			Bucket:    cfg.Storage.Bucket,
			KeyPrefix: cfg.Storage.KeyPrefix,
			URLTTL:    cfg.Storage.URLTTL,
		}, logger),
		Codec:         codec,
		Resolver:      auth.NewResolver(codec, db.users, cfg.Auth.TokenTTL, logger),
		TokenTTL:      cfg.Auth.TokenTTL,
		CookieName:    cfg.Auth.CookieName,
		CookieSecure:  cfg.Auth.CookieSecure,
		LoginRedirect: cfg.Auth.LoginRedirect,
		Logger:        logger,
	})

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}

	logger.Info("bye")
	return nil
}
