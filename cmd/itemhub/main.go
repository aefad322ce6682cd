/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Command itemhub serves the item API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/tomoncle/itemhub/api"
	"github.com/tomoncle/itemhub/auth"
	"github.com/tomoncle/itemhub/cache"
	"github.com/tomoncle/itemhub/config"
	"github.com/tomoncle/itemhub/database"
	"github.com/tomoncle/itemhub/metrics"
	"github.com/tomoncle/itemhub/middleware"
	"github.com/tomoncle/itemhub/repository"
	"github.com/tomoncle/itemhub/server"
	"github.com/tomoncle/itemhub/utils"
	"github.com/uptrace/bun"
)

func main() {
	envFile := flag.String("env-file", ".env", "dotenv file loaded before the environment is parsed")
	exportFK := flag.String("export-foreign-keys", "", "write the model foreign keys as YAML to this path and exit")
	flag.Parse()

	logger := utils.NewLogger("MAIN")

	if *exportFK != "" {
		fkm := database.NewConfigurableForeignKeyManager(database.GetLogger(), "")
		if err := fkm.ExportToConfig(*exportFK); err != nil {
			logger.WithError(err).Fatal("failed to export foreign keys")
		}
		logger.WithField("path", *exportFK).Info("foreign keys exported")
		return
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		logger.WithError(err).Fatal("failed to load config")
	}
	utils.ConfigureConsoleLogFormat(cfg.LogFormat)
	utils.ConfigureLogLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("server exited with error")
	}
}

func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	factory, err := database.Open(ctx, &cfg.Database, nil)
	if err != nil {
		return err
	}
	db := factory.GetDB()

	var tokenCache auth.TokenCache
	var redis *cache.Cache
	if cfg.RedisURL != "" {
		redis, err = cache.New(ctx, cfg.RedisURL)
		if err != nil {
			_ = factory.Close()
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		tokenCache = redis
		logger.Info("connected to Redis")
	}

	authService := auth.NewService(auth.Config{
		PasswordMinLength: cfg.PasswordMinLength,
		TokenLifetime:     cfg.AccessTokenLifetime,
		CacheTTL:          cfg.TokenCacheTTL,
	}, tokenCache)

	sessions := database.NewSessionProvider(db)
	if cfg.FirstSuperuserEmail != "" {
		err := sessions.Scope(ctx, func(ctx context.Context, db bun.IDB) error {
			_, err := authService.EnsureSuperuser(ctx, db, cfg.FirstSuperuserEmail, cfg.FirstSuperuserPasswd)
			return err
		})
		if err != nil {
			closeAll(factory, redis)
			return err
		}
	}

	var recorder metrics.Recorder = metrics.Noop{}
	var gatherer prometheus.Gatherer
	if cfg.MetricsEnabled {
		reg := metrics.NewRegistry()
		recorder = metrics.NewCollector(reg)
		if err := metrics.RegisterDBStats(reg, factory.GetManager().GetSQLDB()); err != nil {
			logger.WithError(err).Warn("failed to register database pool metrics")
		}
		gatherer = reg
	}

	httpLogger := utils.NewLogger("HTTP")
	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:  rate.Limit(cfg.AuthRateLimitRPS),
		Burst: cfg.AuthRateLimitBurst,
	}, httpLogger)

	opts := api.Options{
		APIPrefix: cfg.APIPrefix,
		CORS: middleware.CORSConfig{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowedMethods:   cfg.CORSAllowedMethods,
			AllowedHeaders:   cfg.CORSAllowedHeaders,
			ExposedHeaders:   []string{middleware.RequestIDHeader, middleware.TraceIDHeader, middleware.ProcessTimeHeader},
			AllowCredentials: cfg.CORSAllowCredentials,
			MaxAge:           cfg.CORSMaxAge,
		},
		DB:          db,
		Health:      factory,
		Auth:        authService,
		Items:       repository.NewItemRepository(),
		Recorder:    recorder,
		Gatherer:    gatherer,
		RateLimiter: limiter,
		Logger:      httpLogger,
	}
	if redis != nil {
		opts.Cache = redis
	}

	srv := server.New(api.NewRouter(opts), server.Config{
		Addr:            cfg.Addr(),
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	srv.OnShutdown("database", func(context.Context) error { return factory.Close() })
	if redis != nil {
		srv.OnShutdown("redis", func(context.Context) error { return redis.Close() })
	}
	purgeDone := startTokenPurge(ctx, cfg.TokenPurgeInterval, sessions, authService, logger)
	srv.OnShutdown("token-purge", func(ctx context.Context) error {
		select {
		case <-purgeDone:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	srv.OnShutdown("rate-limiter", func(context.Context) error {
		limiter.Stop()
		return nil
	})

	return srv.Run(ctx)
}

// startTokenPurge deletes expired access tokens every interval until ctx is
// done. The returned channel closes when the loop has exited.
func startTokenPurge(ctx context.Context, interval time.Duration, sessions *database.SessionProvider, svc *auth.Service, logger *logrus.Logger) <-chan struct{} {
	done := make(chan struct{})
	if interval <= 0 {
		close(done)
		return done
	}
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				var purged int64
				err := sessions.Scope(ctx, func(ctx context.Context, db bun.IDB) error {
					var err error
					purged, err = svc.PurgeExpiredTokens(ctx, db)
					return err
				})
				if err != nil {
					logger.WithError(err).Warn("failed to purge expired tokens")
					continue
				}
				if purged > 0 {
					logger.WithField("count", purged).Info("expired tokens purged")
				}
			}
		}
	}()
	return done
}

func closeAll(factory *database.BaseDatabaseFactory, redis *cache.Cache) {
	if redis != nil {
		_ = redis.Close()
	}
	_ = factory.Close()
}
