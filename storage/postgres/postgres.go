// Package postgres provides a PostgreSQL implementation of the subsync.Storage
// interface. Both subscription projections are plain upserts on their natural
// key; UpsertBoth applies them in a single transaction, making this backend
// satisfy subsync.AtomicStorage.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mihaimyh/subsync/pkg/subsync"
)

// Storage implements subsync.AtomicStorage using PostgreSQL
type Storage struct {
	pool   *pgxpool.Pool
	config Config
}

// Config holds PostgreSQL storage configuration
type Config struct {
	// ConnectionString is the PostgreSQL connection string
	ConnectionString string

	// Pool configuration
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		MaxConns:        10,
		MinConns:        2,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
	}
}

// New creates a new PostgreSQL storage adapter
func New(ctx context.Context, config Config) (*Storage, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required")
	}

	poolConfig, err := pgxpool.ParseConfig(config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}
	if config.MinConns > 0 {
		poolConfig.MinConns = config.MinConns
	}
	if config.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = config.MaxConnLifetime
	}
	if config.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = config.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Storage{
		pool:   pool,
		config: config,
	}, nil
}

// Close closes the PostgreSQL connection pool
func (s *Storage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping verifies the database connection
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// InitSchema creates the required tables if they do not exist
func (s *Storage) InitSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS customer_mappings (
			customer_id TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL,
			email       TEXT NOT NULL DEFAULT '',
			created_at  TIMESTAMPTZ NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS customer_mappings_user_id_idx
			ON customer_mappings (user_id);

		CREATE TABLE IF NOT EXISTS subscriptions (
			user_id              TEXT PRIMARY KEY,
			plan                 TEXT NOT NULL,
			status               TEXT NOT NULL,
			period_start         TIMESTAMPTZ,
			period_end           TIMESTAMPTZ,
			cancel_at_period_end BOOLEAN NOT NULL DEFAULT FALSE,
			updated_at           TIMESTAMPTZ NOT NULL
		);

		CREATE TABLE IF NOT EXISTS provider_subscriptions (
			customer_id          TEXT PRIMARY KEY,
			subscription_id      TEXT NOT NULL,
			price_id             TEXT NOT NULL DEFAULT '',
			status               TEXT NOT NULL,
			period_start         BIGINT NOT NULL DEFAULT 0,
			period_end           BIGINT NOT NULL DEFAULT 0,
			cancel_at_period_end BOOLEAN NOT NULL DEFAULT FALSE,
			updated_at           TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// GetCustomerMapping implements subsync.Storage
func (s *Storage) GetCustomerMapping(ctx context.Context, customerID string) (*subsync.CustomerMapping, error) {
	var m subsync.CustomerMapping

	err := s.pool.QueryRow(ctx,
		`SELECT customer_id, user_id, email, created_at, updated_at
			FROM customer_mappings WHERE customer_id = $1`,
		customerID).Scan(
		&m.CustomerID,
		&m.UserID,
		&m.Email,
		&m.CreatedAt,
		&m.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, subsync.ErrMappingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer mapping: %w", err)
	}

	return &m, nil
}

// SetCustomerMapping implements subsync.Storage
func (s *Storage) SetCustomerMapping(ctx context.Context, mapping *subsync.CustomerMapping) error {
	if mapping == nil || mapping.CustomerID == "" || mapping.UserID == "" {
		return subsync.ErrInvalidRecord
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO customer_mappings (customer_id, user_id, email, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (customer_id) DO UPDATE SET
				user_id = EXCLUDED.user_id,
				email = EXCLUDED.email,
				updated_at = EXCLUDED.updated_at`,
		mapping.CustomerID, mapping.UserID, mapping.Email, mapping.CreatedAt, mapping.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to set customer mapping: %w", err)
	}

	return nil
}

// GetSubscription implements subsync.Storage
func (s *Storage) GetSubscription(ctx context.Context, userID string) (*subsync.SubscriptionRecord, error) {
	var rec subsync.SubscriptionRecord
	var periodStart, periodEnd *time.Time

	err := s.pool.QueryRow(ctx,
		`SELECT user_id, plan, status, period_start, period_end, cancel_at_period_end, updated_at
			FROM subscriptions WHERE user_id = $1`,
		userID).Scan(
		&rec.UserID,
		&rec.Plan,
		&rec.Status,
		&periodStart,
		&periodEnd,
		&rec.CancelAtPeriodEnd,
		&rec.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, subsync.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	if periodStart != nil {
		rec.PeriodStart = *periodStart
	}
	if periodEnd != nil {
		rec.PeriodEnd = *periodEnd
	}
	return &rec, nil
}

// UpsertSubscription implements subsync.Storage
func (s *Storage) UpsertSubscription(ctx context.Context, rec *subsync.SubscriptionRecord) error {
	if rec == nil || rec.UserID == "" {
		return subsync.ErrInvalidRecord
	}

	_, err := s.pool.Exec(ctx, upsertSubscriptionSQL, subscriptionArgs(rec)...)
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}

	return nil
}

// GetProviderSubscription implements subsync.Storage
func (s *Storage) GetProviderSubscription(ctx context.Context, customerID string) (*subsync.ProviderSubscriptionRecord, error) {
	var rec subsync.ProviderSubscriptionRecord

	err := s.pool.QueryRow(ctx,
		`SELECT customer_id, subscription_id, price_id, status, period_start, period_end,
				cancel_at_period_end, updated_at
			FROM provider_subscriptions WHERE customer_id = $1`,
		customerID).Scan(
		&rec.CustomerID,
		&rec.SubscriptionID,
		&rec.PriceID,
		&rec.Status,
		&rec.PeriodStart,
		&rec.PeriodEnd,
		&rec.CancelAtPeriodEnd,
		&rec.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, subsync.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get provider subscription: %w", err)
	}

	return &rec, nil
}

// UpsertProviderSubscription implements subsync.Storage
func (s *Storage) UpsertProviderSubscription(ctx context.Context, rec *subsync.ProviderSubscriptionRecord) error {
	if rec == nil || rec.CustomerID == "" {
		return subsync.ErrInvalidRecord
	}

	_, err := s.pool.Exec(ctx, upsertProviderSubscriptionSQL, providerSubscriptionArgs(rec)...)
	if err != nil {
		return fmt.Errorf("failed to upsert provider subscription: %w", err)
	}

	return nil
}

// UpsertBoth implements subsync.AtomicStorage: both projections are applied
// in one transaction, so a crash between the two writes cannot leave them
// out of step.
func (s *Storage) UpsertBoth(ctx context.Context, sub *subsync.SubscriptionRecord, provider *subsync.ProviderSubscriptionRecord) error {
	if sub == nil || sub.UserID == "" || provider == nil || provider.CustomerID == "" {
		return subsync.ErrInvalidRecord
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, upsertProviderSubscriptionSQL, providerSubscriptionArgs(provider)...); err != nil {
		return fmt.Errorf("failed to upsert provider subscription: %w", err)
	}
	if _, err := tx.Exec(ctx, upsertSubscriptionSQL, subscriptionArgs(sub)...); err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const upsertSubscriptionSQL = `
	INSERT INTO subscriptions
		(user_id, plan, status, period_start, period_end, cancel_at_period_end, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (user_id) DO UPDATE SET
		plan = EXCLUDED.plan,
		status = EXCLUDED.status,
		period_start = EXCLUDED.period_start,
		period_end = EXCLUDED.period_end,
		cancel_at_period_end = EXCLUDED.cancel_at_period_end,
		updated_at = EXCLUDED.updated_at`

const upsertProviderSubscriptionSQL = `
	INSERT INTO provider_subscriptions
		(customer_id, subscription_id, price_id, status, period_start, period_end,
		 cancel_at_period_end, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (customer_id) DO UPDATE SET
		subscription_id = EXCLUDED.subscription_id,
		price_id = EXCLUDED.price_id,
		status = EXCLUDED.status,
		period_start = EXCLUDED.period_start,
		period_end = EXCLUDED.period_end,
		cancel_at_period_end = EXCLUDED.cancel_at_period_end,
		updated_at = EXCLUDED.updated_at`

func subscriptionArgs(rec *subsync.SubscriptionRecord) []interface{} {
	var periodStart, periodEnd *time.Time
	if !rec.PeriodStart.IsZero() {
		periodStart = &rec.PeriodStart
	}
	if !rec.PeriodEnd.IsZero() {
		periodEnd = &rec.PeriodEnd
	}
	return []interface{}{
		rec.UserID, rec.Plan, string(rec.Status), periodStart, periodEnd,
		rec.CancelAtPeriodEnd, rec.UpdatedAt,
	}
}

func providerSubscriptionArgs(rec *subsync.ProviderSubscriptionRecord) []interface{} {
	return []interface{}{
		rec.CustomerID, rec.SubscriptionID, rec.PriceID, rec.Status,
		rec.PeriodStart, rec.PeriodEnd, rec.CancelAtPeriodEnd, rec.UpdatedAt,
	}
}
