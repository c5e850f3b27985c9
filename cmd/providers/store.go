package providers

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"
	"go.insight.network/gateway/pkg/appcache"
	"go.insight.network/gateway/pkg/session"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// App policy cache config.
const (
	ConfAppCacheSize      = "appcache.size"
	ConfAppCacheTTL       = "appcache.ttl"
	ConfAppCacheStreamKey = "appcache.stream_key"
	ConfAppCacheBacklog   = "appcache.backlog"
)

func init() {
	viper.SetDefault(ConfAppCacheSize, 1024)
	viper.SetDefault(ConfAppCacheTTL, time.Hour)
	viper.SetDefault(ConfAppCacheStreamKey, "app-invalidations")
	viper.SetDefault(ConfAppCacheBacklog, 64)
}

// NewSessionStore provides the session store adapter.
func NewSessionStore(rd *redis.Client) *session.Store {
	return session.NewStore(rd)
}

// NewAppCache provides the local app policy cache and starts its
// stream invalidator.
func NewAppCache(
	lc fx.Lifecycle,
	shutdown fx.Shutdowner,
	store *session.Store,
	rd *redis.Client,
	log *zap.Logger,
) (*appcache.Cache, error) {
	cache, err := appcache.NewCache(store,
		viper.GetInt(ConfAppCacheSize),
		viper.GetDuration(ConfAppCacheTTL))
	if err != nil {
		return nil, err
	}
	invalidation := appcache.Invalidation{
		Cache:     cache,
		Redis:     rd,
		StreamKey: viper.GetString(ConfAppCacheStreamKey),
		Backlog:   viper.GetInt64(ConfAppCacheBacklog),
	}
	if invalidation.StreamKey == "" {
		log.Fatal("Missing " + ConfAppCacheStreamKey)
	}
	log.Info("Starting app cache invalidator")
	innerCtx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				if err := invalidation.Run(innerCtx); err != nil {
					log.Error("App cache invalidation failed", zap.Error(err))
					if err := shutdown.Shutdown(); err != nil {
						log.Fatal("Shutdown failed")
					}
				}
			}()
			return nil
		},
		OnStop: func(_ context.Context) error {
			cancel()
			return nil
		},
	})
	return cache, nil
}
