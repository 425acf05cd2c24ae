package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/authcore/internal/adapters/driven/auth"
	"github.com/custodia-labs/authcore/internal/adapters/driven/email"
	"github.com/custodia-labs/authcore/internal/adapters/driven/memory"
	"github.com/custodia-labs/authcore/internal/adapters/driven/objectstore"
	"github.com/custodia-labs/authcore/internal/adapters/driven/postgres"
	redisadapter "github.com/custodia-labs/authcore/internal/adapters/driven/redis"
	"github.com/custodia-labs/authcore/internal/adapters/driving/http"
	"github.com/custodia-labs/authcore/internal/config"
	"github.com/custodia-labs/authcore/internal/core/domain"
	"github.com/custodia-labs/authcore/internal/core/ports/driven"
	"github.com/custodia-labs/authcore/internal/core/services"
	"github.com/custodia-labs/authcore/internal/logging"
	"github.com/custodia-labs/authcore/internal/observability"
	"github.com/custodia-labs/authcore/internal/worker"
)

// Startup connection attempts before giving up
const (
	connectAttempts = 6
	connectBackoff  = 500 * time.Millisecond
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, cfg)
		},
	}

	config.RegisterFlags(cmd.Flags())

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger := logging.Setup(logging.Options{
		Service: "authcore",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
	})
	slog.SetDefault(logger)

	logger.Info("authcore starting", "version", version, "port", cfg.Server.Port)

	registry := observability.NewRegistry()
	metrics := observability.NewMetrics(registry)

	// Database
	db, err := connectDatabase(ctx, cfg.Database.URL, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.InitSchema(ctx); err != nil {
		return err
	}
	users := postgres.NewUserDirectory(db)

	// Cache
	store, closeStore, err := newKVStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	cache := services.NewCache(services.CacheConfig{
		Store:      store,
		DefaultTTL: cfg.Cache.DefaultTTL,
		AllowClear: cfg.Cache.AllowClear,
		Timeout:    cfg.Auth.Timeout,
		Logger:     logger,
		Metrics:    metrics,
	})

	// Hashing and tokens
	hasher, err := auth.NewHasher(cfg.Auth.HashAlgorithm, cfg.Auth.BcryptCost, auth.DefaultArgon2Params)
	if err != nil {
		return err
	}
	signer, err := auth.NewJWTSigner(cfg.Auth.SecretKey, cfg.Auth.Algorithm)
	if err != nil {
		return err
	}
	tokens := services.NewTokenService(services.TokenServiceConfig{
		Signer:           signer,
		AccessTTL:        cfg.Auth.AccessTTL,
		RefreshTTL:       cfg.Auth.RefreshTTL,
		EmailVerifyTTL:   cfg.Auth.EmailVerifyTTL,
		PasswordResetTTL: cfg.Auth.PasswordResetTTL,
		Metrics:          metrics,
	})

	notifier := newNotifier(cfg, tokens, logger)

	authService := services.NewAuthService(services.AuthServiceConfig{
		Users:       users,
		Hasher:      hasher,
		Tokens:      tokens,
		Notifier:    notifier,
		Limiter:     services.NewLoginLimiter(cache, cfg.Auth.MaxLoginAttempts, cfg.Auth.LoginLockout, logger),
		AutoVerify:  cfg.Auth.AutoVerify,
		AdminEmails: cfg.Auth.AdminEmails,
		Timeout:     cfg.Auth.Timeout,
		Logger:      logger,
		Metrics:     metrics,
	})

	accountCfg := services.AccountServiceConfig{
		Users:   users,
		Timeout: cfg.Auth.Timeout,
		Logger:  logger,
		Metrics: metrics,
	}
	if cfg.S3.Bucket != "" {
		media, err := objectstore.NewMediaStore(ctx, objectstore.Config{
			Endpoint:      cfg.S3.Endpoint,
			Region:        cfg.S3.Region,
			Bucket:        cfg.S3.Bucket,
			AccessKey:     cfg.S3.AccessKey,
			SecretKey:     cfg.S3.SecretKey,
			PublicBaseURL: cfg.S3.PublicBaseURL,
			UsePathStyle:  cfg.S3.UsePathStyle,
		})
		if err != nil {
			return err
		}
		accountCfg.Media = media
		logger.Info("avatar uploads enabled", "bucket", cfg.S3.Bucket)
	} else {
		logger.Info("no media bucket configured, avatar uploads disabled")
	}

	server := http.NewServer(http.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		Version:        version,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   60 * time.Second,
	}, http.Deps{
		AuthService:    authService,
		Resolver:       services.NewPrincipalResolver(tokens, users, cfg.Auth.Timeout),
		AccountService: services.NewAccountService(accountCfg),
		CacheAdmin:     cache,
		Registry:       registry,
		Metrics:        metrics,
		DB:             db,
		Cache:          cache,
		Logger:         logger,
	})

	return server.Start(ctx)
}

// connectDatabase retries while Postgres comes up alongside the service
func connectDatabase(ctx context.Context, url string, logger *slog.Logger) (*postgres.DB, error) {
	if url == "" {
		return nil, fmt.Errorf("database.url (DATABASE_URL) is required")
	}

	var db *postgres.DB
	backoff := retry.WithMaxRetries(connectAttempts, retry.NewExponential(connectBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		db, err = postgres.Connect(ctx, postgres.DefaultConfig(url))
		if err != nil {
			logger.Warn("database not ready, retrying", "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	logger.Info("connected to PostgreSQL")
	return db, nil
}

// newKVStore builds the cache backend. The returned func releases it.
func newKVStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (driven.KVStore, func(), error) {
	if cfg.Cache.Backend == "memory" {
		logger.Info("using in-process cache")
		store := memory.NewKVStore()
		janitor := worker.NewJanitor(worker.JanitorConfig{Sweeper: store, Logger: logger})
		janitor.Start(ctx)
		return store, janitor.Stop, nil
	}

	client, err := redisadapter.NewClient(redisadapter.Config{
		URL:      cfg.Redis.URL,
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, nil, err
	}

	backoff := retry.WithMaxRetries(connectAttempts, retry.NewExponential(connectBackoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("redis not ready, retrying", "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}

	logger.Info("connected to Redis")
	return redisadapter.NewKVStore(client, cfg.Cache.KeyPrefix), func() { _ = client.Close() }, nil
}

func newNotifier(cfg *config.Config, tokens *services.TokenService, logger *slog.Logger) driven.Notifier {
	composer := email.NewComposer(cfg.PublicBaseURL,
		tokens.TTL(domain.PurposeEmailVerify), tokens.TTL(domain.PurposePasswordReset))

	if cfg.SMTP.Host == "" {
		logger.Warn("no SMTP host configured, outgoing email is written to the log")
		return email.NewLogNotifier(composer, logger)
	}

	return email.NewSMTPNotifier(email.SMTPConfig{
		Host:        cfg.SMTP.Host,
		Port:        cfg.SMTP.Port,
		Username:    cfg.SMTP.Username,
		Password:    cfg.SMTP.Password,
		From:        cfg.SMTP.From,
		ImplicitTLS: cfg.SMTP.ImplicitTLS,
	}, composer)
}
