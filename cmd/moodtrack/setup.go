package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"

	"moodtrack/internal/config"
	"moodtrack/internal/repository"
	"moodtrack/internal/repository/postgres"
	"moodtrack/internal/repository/sqlite"
	"moodtrack/internal/storage"
)

func newLogger(cfg config.Config) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	switch strings.ToLower(cfg.Log.Format) {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Log.Format)
	}

	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	logger.SetLevel(level)
	return logger, nil
}

// database bundles an open connection pool with the repositories and
// migrations of the configured driver.
type database struct {
	db      *sql.DB
	users   repository.UserRepository
	entries repository.EntryRepository
	migrate func(ctx context.Context, db *sql.DB) ([]int64, error)
}

func openDatabase(ctx context.Context, cfg config.Config) (*database, error) {
	switch cfg.Database.Driver {
	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		return &database{
			db:      db,
			users:   sqlite.NewUserRepository(db),
			entries: sqlite.NewEntryRepository(db),
			migrate: sqlite.Migrate,
		}, nil
	case config.DriverPostgres:
		db, err := postgres.Open(ctx, cfg.Database.DSN, postgres.Options{
			MaxOpenConns: cfg.Database.MaxOpenConns,
		})
		if err != nil {
			return nil, err
		}
		return &database{
			db:      db,
			users:   postgres.NewUserRepository(db),
			entries: postgres.NewEntryRepository(db),
			migrate: postgres.Migrate,
		}, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

func (d *database) Migrate(ctx context.Context, logger logrus.FieldLogger) error {
	applied, err := d.migrate(ctx, d.db)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		logger.Info("database schema up to date")
		return nil
	}
	logger.WithField("versions", applied).Info("database migrations applied")
	return nil
}

func (d *database) Close() error {
	return d.db.Close()
}

// buildStorage returns nil when no bucket is configured, which disables exports.
func buildStorage(ctx context.Context, cfg config.Config, logger logrus.FieldLogger) (storage.Service, error) {
	if cfg.Storage.Bucket == "" {
		logger.Info("storage bucket not set, entry export disabled")
		return nil, nil
	}

	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Storage.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("using s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)
	return storage.NewS3Service(client), nil
}
