// Package storage picks and opens the contact store named in configuration.
package storage

import (
	"context"
	"fmt"
	"time"

	intake "github.com/phbpx/contact-intake"
	"github.com/phbpx/contact-intake/dynamodb"
	"github.com/phbpx/contact-intake/memory"
	"github.com/phbpx/contact-intake/mongo"
	"github.com/phbpx/contact-intake/pkg/database"
	"github.com/phbpx/contact-intake/postgres"
	"github.com/phbpx/contact-intake/sqlite"
)

// Supported store kinds.
const (
	KindPostgres = "postgres"
	KindMongo    = "mongo"
	KindDynamo   = "dynamodb"
	KindSQLite   = "sqlite"
	KindMemory   = "memory"
)

// Backend is a contact store that can also manage its schema and connection.
type Backend interface {
	intake.Store
	Migrate(ctx context.Context) error
	Close() error
}

// Config holds the settings of every backend; only the one named by Kind is read.
type Config struct {
	Kind       string
	Postgres   database.Config
	Mongo      mongo.Config
	Dynamo     dynamodb.Config
	SQLitePath string
}

// Open connects to the configured backend. Most drivers connect lazily, so
// callers should follow up with StatusCheck before serving traffic.
func Open(ctx context.Context, cfg Config) (Backend, error) {
	switch cfg.Kind {
	case KindPostgres:
		db, err := database.Open(cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		return postgres.NewContactStore(db), nil

	case KindMongo:
		st, err := mongo.Open(ctx, cfg.Mongo)
		if err != nil {
			return nil, err
		}
		return st, nil

	case KindDynamo:
		st, err := dynamodb.Open(ctx, cfg.Dynamo)
		if err != nil {
			return nil, err
		}
		return st, nil

	case KindSQLite:
		st, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return st, nil

	case KindMemory:
		return memory.New(), nil
	}

	return nil, fmt.Errorf("unknown store kind %q", cfg.Kind)
}

// StartupConfig bounds the work Prepare does before a backend takes traffic.
type StartupConfig struct {
	Migrate        bool
	MigrateTimeout time.Duration
	ReadyTimeout   time.Duration
}

// Prepare brings the schema up to date when asked, then waits for the
// backend to pass StatusCheck. Each step gets its own deadline. Backends
// that provision asynchronously, like a DynamoDB table still CREATING, are
// polled until they report ready.
func Prepare(ctx context.Context, b Backend, cfg StartupConfig) error {
	if cfg.Migrate {
		mctx, cancel := withTimeout(ctx, cfg.MigrateTimeout)
		err := b.Migrate(mctx)
		cancel()
		if err != nil {
			return fmt.Errorf("updating schema: %w", err)
		}
	}

	rctx, cancel := withTimeout(ctx, cfg.ReadyTimeout)
	defer cancel()

	var err error
	for attempts := 1; ; attempts++ {
		if err = b.StatusCheck(rctx); err == nil {
			return nil
		}

		delay := time.Duration(attempts) * 100 * time.Millisecond
		if delay > 2*time.Second {
			delay = 2 * time.Second
		}

		select {
		case <-rctx.Done():
			return fmt.Errorf("store unreachable: %w", err)
		case <-time.After(delay):
		}
	}
}

// withTimeout leaves ctx's own deadline in charge when d is not positive.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
