// Package app wires configuration, stores and the HTTP stack together.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Gopher0727/Nexus/config"
	"github.com/Gopher0727/Nexus/internal/api"
	"github.com/Gopher0727/Nexus/internal/handler"
	"github.com/Gopher0727/Nexus/internal/pkg/kafka"
	"github.com/Gopher0727/Nexus/internal/repository"
	"github.com/Gopher0727/Nexus/internal/service"
	"github.com/Gopher0727/Nexus/internal/storage"
	logger "github.com/Gopher0727/Nexus/middleware/log"
	"github.com/Gopher0727/Nexus/utils/ratelimit"
)

type App struct {
	cfg     *config.Config
	log     *logger.Logger
	Repo    repository.IGuildRepository
	Service *service.GuildService
	Router  *gin.Engine
	closers []func() error
}

// New opens every backing service named in cfg. The caller must call Close.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (_ *App, err error) {
	if log == nil {
		log = logger.NewNop()
	}
	a := &App{cfg: cfg, log: log}
	defer func() {
		// 失败时释放已经打开的连接
		if err != nil {
			_ = a.Close()
		}
	}()

	var redisClient *redis.Client
	if cfg.NeedsRedis() {
		redisClient, err = storage.OpenRedis(ctx, &cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, redisClient.Close)
	}

	a.Repo, err = a.openStore(ctx, redisClient)
	if err != nil {
		return nil, err
	}

	var events service.EventPublisher
	if cfg.Kafka.Enabled {
		publisher, perr := kafka.NewPublisher(&cfg.Kafka, log)
		if perr != nil {
			// 降级运行: 不发送事件
			log.Warn("kafka publisher unavailable, guild events disabled", zap.Error(perr))
		} else {
			events = publisher
			a.closers = append(a.closers, publisher.Close)
		}
	}
	a.Service = service.NewGuildService(a.Repo, events, log)

	var (
		limiter ratelimit.Limiter
		rule    ratelimit.Rule
		metrics *api.Metrics
	)
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.NewWindowLimiter(redisClient, log, cfg.Redis.KeyPrefix, cfg.RateLimit.FailOpen)
		rule = ratelimit.Rule{Limit: cfg.RateLimit.RequestsPerMin, Window: cfg.RateLimit.Window}
	}
	if cfg.Metrics.Enabled {
		metrics = api.NewMetrics()
	}

	mw := api.NewMiddlewareManager(log, limiter, rule, metrics)
	a.Router = api.NewRouter(mw, handler.NewGuildHandler(a.Service), a.Repo, api.RouterOptions{
		Mode:        cfg.Server.Mode,
		MetricsPath: cfg.Metrics.Path,
	})
	return a, nil
}

func (a *App) openStore(ctx context.Context, redisClient *redis.Client) (repository.IGuildRepository, error) {
	switch a.cfg.Store.Driver {
	case config.DriverMongo:
		client, err := storage.OpenMongo(ctx, &a.cfg.Mongo)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error {
			return client.Disconnect(context.Background())
		})
		repo := repository.NewMongoGuildRepository(client.Database(a.cfg.Mongo.Database), a.cfg.Mongo.Collection)
		if err := repo.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		return repo, nil

	case config.DriverPostgres, config.DriverSQLite:
		open := func() (*gorm.DB, error) { return storage.OpenPostgres(&a.cfg.Postgres) }
		if a.cfg.Store.Driver == config.DriverSQLite {
			open = func() (*gorm.DB, error) { return storage.OpenSQLite(a.cfg.SQLite.Path) }
		}
		db, err := open()
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { return storage.CloseGorm(db) })
		return repository.NewGormGuildRepository(db), nil

	case config.DriverRedis:
		return repository.NewRedisGuildRepository(redisClient, a.cfg.Redis.KeyPrefix), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", a.cfg.Store.Driver)
}

// Run serves HTTP until ctx is cancelled, then shuts the server down gracefully.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("server listening", zap.String("addr", srv.Addr), zap.String("store", a.cfg.Store.Driver))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}

	a.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
