package database

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"eventhub/internal/config"
)

const (
	applicationName          = "eventhub"
	defaultHealthCheckPeriod = 30 * time.Second
	defaultConnectTimeout    = 10 * time.Second
)

// NewPostgresPool opens the shared pool and checks it with a ping before
// handing it out.
func NewPostgresPool(ctx context.Context, cfg config.PostgresConfig) (*pgxpool.Pool, error) {
	poolConfig, err := PoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, poolConfig.ConnConfig.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return pool, nil
}

// PoolConfig maps PostgresConfig onto pgx. StatementTimeout is applied per
// session so a slow query is cancelled server-side even when the request
// context outlives it. Values already present in the DSN win.
func PoolConfig(cfg config.PostgresConfig) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	if cfg.MaxOpen > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpen)
	}
	if cfg.MaxIdle > 0 {
		poolConfig.MinConns = int32(min(cfg.MaxIdle, int(poolConfig.MaxConns)))
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	poolConfig.HealthCheckPeriod = defaultHealthCheckPeriod
	if cfg.HealthCheckPeriod > 0 {
		poolConfig.HealthCheckPeriod = cfg.HealthCheckPeriod
	}

	switch {
	case cfg.ConnectTimeout > 0:
		poolConfig.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	case poolConfig.ConnConfig.ConnectTimeout <= 0:
		poolConfig.ConnConfig.ConnectTimeout = defaultConnectTimeout
	}

	params := poolConfig.ConnConfig.RuntimeParams
	if _, ok := params["application_name"]; !ok {
		params["application_name"] = applicationName
	}
	if _, ok := params["statement_timeout"]; !ok && cfg.StatementTimeout > 0 {
		params["statement_timeout"] = strconv.FormatInt(cfg.StatementTimeout.Milliseconds(), 10)
	}

	return poolConfig, nil
}
