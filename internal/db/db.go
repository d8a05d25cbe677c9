package db

import (
	"context"
	"fmt"
	"time"

	"github.com/Dhoini/workshop-relay/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
)

// DBClient владеет пулом соединений и sqlx-оберткой над ним
type DBClient struct {
	Pool *pgxpool.Pool
	DB   *sqlx.DB
	log  *logger.Logger
}

// NewDBClient создает новое подключение к PostgreSQL
func NewDBClient(ctx context.Context, dsn string, maxConns int32, log *logger.Logger) (*DBClient, error) {
	log.Info("Connecting to PostgreSQL")

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	// Настраиваем пул соединений
	if maxConns > 0 {
		poolConfig.MaxConns = maxConns
	}
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	log.Info("Successfully connected to PostgreSQL")
	return &DBClient{
		Pool: pool,
		DB:   sqlx.NewDb(stdlib.OpenDBFromPool(pool), "pgx"),
		log:  log,
	}, nil
}

// Ping проверяет доступность базы
func (dc *DBClient) Ping(ctx context.Context) error {
	return dc.Pool.Ping(ctx)
}

// Close закрывает соединение с базой данных.
func (dc *DBClient) Close() {
	if err := dc.DB.Close(); err != nil {
		dc.log.Errorw("Failed to close sql.DB wrapper", "error", err)
	}
	dc.Pool.Close()
	dc.log.Info("Database connection closed")
}
