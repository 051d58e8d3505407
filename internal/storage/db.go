// Package storage provides read access to the external reporting database.
//
// The schema is owned by the plant's ERP; this process only runs queries the
// model generates against it, one connection per query.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/appline-lab/voxsql/internal/worker"
)

// DB wraps the shared connection pool.
type DB struct {
	Pool   *pgxpool.Pool
	Logger *zerolog.Logger
}

// RetryOptions bounds the startup connection attempts. Exhausting them is
// fatal to the process.
type RetryOptions struct {
	Attempts int
	Delay    time.Duration
}

func DefaultRetryOptions() RetryOptions {
	return RetryOptions{Attempts: 5, Delay: 5 * time.Second}
}

// New connects to the database, retrying with a fixed delay.
func New(ctx context.Context, dsn string, opts RetryOptions, logger *zerolog.Logger) (*DB, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}

	if opts.Attempts <= 0 {
		opts = DefaultRetryOptions()
	}

	var pool *pgxpool.Pool

	for i := 0; i < opts.Attempts; i++ {
		pool, err = pgxpool.NewWithConfig(ctx, config)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				logger.Info().Msg("database pool established")

				return &DB{Pool: pool, Logger: logger}, nil
			}
		}

		if pool != nil {
			pool.Close()
		}

		logger.Warn().
			Err(err).
			Int("remaining", opts.Attempts-i-1).
			Dur("retry_in", opts.Delay).
			Msg("database connection failed")

		if waitErr := worker.Wait(ctx, opts.Delay); waitErr != nil {
			return nil, waitErr
		}
	}

	return nil, fmt.Errorf("failed to connect to database after retries: %w", err)
}

// Close closes the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}

// Row is one result row keyed by column name.
type Row map[string]any

// Execute runs one generated query. The connection is acquired for the
// duration of this call only and released unconditionally.
func (db *DB) Execute(ctx context.Context, query string) ([]Row, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()

	var result []Row

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		row := make(Row, len(fields))
		for i, field := range fields {
			row[field.Name] = values[i]
		}

		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return result, nil
}
