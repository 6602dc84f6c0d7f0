package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/meridianbank/opsdesk/config"
	"github.com/meridianbank/opsdesk/internal/bootstrap"
	"github.com/redis/go-redis/v9"
)

type connectInfraOptions struct {
	Logger       *slog.Logger
	Config       *config.AppConfig
	WantDB       bool
	WantSessions bool
	WantCache    bool
}

// adminConnections holds whichever backends a command asked for. Redis
// clients stay nil when the corresponding configuration is absent.
type adminConnections struct {
	DB       *sql.DB
	Sessions redis.UniversalClient
	Cache    redis.UniversalClient
}

var errRedisNotConfigured = errors.New("redis not configured")

// connectInfra wires up infrastructure dependencies based on CLI options.
func connectInfra(opts *connectInfraOptions) (*adminConnections, error) {
	conns := &adminConnections{}

	if opts.WantDB {
		db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{DBConfig: opts.Config.Postgres, Logger: opts.Logger})
		if err != nil {
			return nil, fmt.Errorf("connect db: %w", err)
		}
		conns.DB = db
	}

	if opts.WantSessions {
		client, err := maybeConnectSessionRedis(opts.Logger, &opts.Config.Redis)
		if err != nil && !errors.Is(err, errRedisNotConfigured) {
			return nil, closeAfterConnectFailure(conns, err)
		}
		conns.Sessions = client
	}

	if opts.WantCache {
		client, err := maybeConnectCacheRedis(opts.Logger, opts.Config.Cache)
		if err != nil && !errors.Is(err, errRedisNotConfigured) {
			return nil, closeAfterConnectFailure(conns, err)
		}
		conns.Cache = client
	}

	return conns, nil
}

func closeAfterConnectFailure(conns *adminConnections, err error) error {
	if closeErr := conns.Close(); closeErr != nil {
		return errors.Join(err, closeErr)
	}
	return err
}

// maybeConnectSessionRedis returns a connected client when session store
// configuration is present.
//
//nolint:ireturn // returning redis.UniversalClient keeps sentinel/cluster support flexible.
func maybeConnectSessionRedis(logger *slog.Logger, cfg *config.RedisConfig) (redis.UniversalClient, error) {
	if !hasRedisConfig(cfg) {
		logger.Info("no redis configuration detected; skipping session store connection")
		return nil, errRedisNotConfigured
	}
	client, err := bootstrap.ConnectRedis(bootstrap.DatabaseConfig{RedisConfig: *cfg, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return client, nil
}

// maybeConnectCacheRedis returns a connected client when snapshot cache
// configuration is present.
//
//nolint:ireturn // returning redis.UniversalClient keeps the nil-when-unconfigured contract explicit.
func maybeConnectCacheRedis(logger *slog.Logger, cfg config.CacheConfig) (redis.UniversalClient, error) {
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		logger.Info("no cache redis configuration detected; skipping snapshot cache connection")
		return nil, errRedisNotConfigured
	}
	client, err := bootstrap.ConnectCacheRedis(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect cache redis: %w", err)
	}
	return client, nil
}

func hasRedisConfig(cfg *config.RedisConfig) bool {
	if cfg == nil {
		return false
	}
	if cfg.UseCluster {
		return len(cfg.ClusterNodes) > 0 || cfg.URI != ""
	}
	if cfg.UseSentinel {
		return len(cfg.SentinelNodes) > 0
	}
	return cfg.URI != ""
}

func (c *adminConnections) Close() error {
	var closeErr error
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close db: %w", err))
		}
	}
	if c.Sessions != nil {
		if err := c.Sessions.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close redis: %w", err))
		}
	}
	if c.Cache != nil {
		if err := c.Cache.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close cache redis: %w", err))
		}
	}
	return closeErr
}
