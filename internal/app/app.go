// Package app wires configuration, storage, the hub and the HTTP transport
// into a runnable server.
package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/skillbridge/messaging-server/internal/auth"
	"github.com/skillbridge/messaging-server/internal/blob"
	"github.com/skillbridge/messaging-server/internal/config"
	"github.com/skillbridge/messaging-server/internal/core"
	"github.com/skillbridge/messaging-server/internal/events"
	"github.com/skillbridge/messaging-server/internal/metrics"
	"github.com/skillbridge/messaging-server/internal/presence"
	"github.com/skillbridge/messaging-server/internal/store"
	"github.com/skillbridge/messaging-server/internal/store/mongo"
	"github.com/skillbridge/messaging-server/internal/store/sqlite"
	transporthttp "github.com/skillbridge/messaging-server/internal/transport/http"
)

// App holds the assembled server and its owned resources.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	store           store.Store
	publisher       *events.KafkaPublisher
	redis           *redis.Client
	log             *zerolog.Logger
}

// New constructs the application from configuration. Optional collaborators
// (Redis mirror, Kafka publisher, S3 blobs) attach only when configured.
func New(ctx context.Context, cfg config.Config, logger *zerolog.Logger) (*App, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret is required")
	}

	metrics.Init()

	st, err := newStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	verifier := auth.NewVerifier(&auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      24 * time.Hour,
	})

	hub := core.NewHub(st, logger)

	app := &App{
		shutdownTimeout: cfg.ShutdownTimeout,
		store:           st,
		log:             logger,
	}

	if cfg.RedisAddr != "" {
		app.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		hub.SetMirror(presence.NewMirror(app.redis, cfg.RedisPrefix))
		logger.Info().Str("addr", cfg.RedisAddr).Msg("presence mirror enabled")
	}

	if len(cfg.KafkaBrokers) > 0 {
		app.publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		hub.SetSink(app.publisher)
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("kafka publisher enabled")
	}

	router := transporthttp.NewRouter(hub, st, blobs, verifier, cfg, logger)
	app.server = transporthttp.NewServer(router, cfg)

	return app, nil
}

func newStore(ctx context.Context, cfg config.Config, logger *zerolog.Logger) (store.Store, error) {
	switch cfg.StoreBackend {
	case "", "sqlite":
		st, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("init sqlite store: %w", err)
		}
		logger.Info().Str("db_path", cfg.DatabasePath).Msg("sqlite store initialized")
		return st, nil
	case "mongo":
		st, err := mongo.New(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("init mongo store: %w", err)
		}
		logger.Info().Str("database", cfg.MongoDatabase).Msg("mongo store initialized")
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func newBlobStore(ctx context.Context, cfg config.Config) (blob.Store, error) {
	switch cfg.BlobBackend {
	case "", "local":
		blobs, err := blob.NewLocalStore(cfg.UploadDir, cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("init local blob store: %w", err)
		}
		return blobs, nil
	case "s3":
		blobs, err := blob.NewS3Store(ctx, cfg.S3Region, cfg.S3Bucket)
		if err != nil {
			return nil, fmt.Errorf("init s3 blob store: %w", err)
		}
		return blobs, nil
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.BlobBackend)
	}
}

// Run starts the HTTP server and blocks until context cancellation or a
// fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes the store and optional collaborators.
func (a *App) cleanup() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close kafka publisher")
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close redis client")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
