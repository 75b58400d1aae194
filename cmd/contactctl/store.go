package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/phbpx/contact-intake/dynamodb"
	"github.com/phbpx/contact-intake/mongo"
	"github.com/phbpx/contact-intake/pkg/database"
	"github.com/phbpx/contact-intake/pkg/storage"
	"github.com/spf13/cobra"
)

var flags struct {
	kind    string
	timeout time.Duration

	dbURL        string
	dbUser       string
	dbPassword   string
	dbHost       string
	dbName       string
	dbDisableTLS bool

	mongoURI        string
	mongoDatabase   string
	mongoCollection string

	dynamoTable    string
	dynamoRegion   string
	dynamoEndpoint string

	sqlitePath string
}

// bindFlags must run after the .env file is loaded so its values become defaults.
func bindFlags(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()

	pf.StringVar(&flags.kind, "kind", env("CONTACT_STORE_KIND", storage.KindPostgres), "store kind: postgres|mongo|dynamodb|sqlite|memory")
	pf.DurationVar(&flags.timeout, "timeout", envDuration("CONTACT_STORE_STARTUP_TIMEOUT", 30*time.Second), "overall command timeout")

	pf.StringVar(&flags.dbURL, "database-url", env("CONTACT_DB_URL", os.Getenv("DATABASE_URL")), "postgres connection URL, overrides the discrete db flags")
	pf.StringVar(&flags.dbUser, "db-user", env("CONTACT_DB_USER", "contactsvc"), "postgres user")
	pf.StringVar(&flags.dbPassword, "db-password", env("CONTACT_DB_PASSWORD", "contactsvc"), "postgres password")
	pf.StringVar(&flags.dbHost, "db-host", env("CONTACT_DB_HOST", "localhost"), "postgres host")
	pf.StringVar(&flags.dbName, "db-name", env("CONTACT_DB_NAME", "contacts"), "postgres database")
	pf.BoolVar(&flags.dbDisableTLS, "db-disable-tls", envBool("CONTACT_DB_DISABLE_TLS", true), "disable postgres TLS")

	pf.StringVar(&flags.mongoURI, "mongo-uri", env("CONTACT_MONGO_URI", os.Getenv("MONGO_URI")), "mongodb connection URI")
	pf.StringVar(&flags.mongoDatabase, "mongo-database", env("CONTACT_MONGO_DATABASE", "mindpal"), "mongodb database")
	pf.StringVar(&flags.mongoCollection, "mongo-collection", env("CONTACT_MONGO_COLLECTION", "contacts"), "mongodb collection")

	pf.StringVar(&flags.dynamoTable, "dynamo-table", env("CONTACT_DYNAMO_TABLE", "contacts"), "dynamodb table")
	pf.StringVar(&flags.dynamoRegion, "dynamo-region", env("CONTACT_DYNAMO_REGION", ""), "dynamodb region")
	pf.StringVar(&flags.dynamoEndpoint, "dynamo-endpoint", env("CONTACT_DYNAMO_ENDPOINT", ""), "dynamodb endpoint, for local development")

	pf.StringVar(&flags.sqlitePath, "sqlite-path", env("CONTACT_SQLITE_PATH", "contacts.db"), "sqlite database file")
}

func openBackend(ctx context.Context) (storage.Backend, error) {
	return storage.Open(ctx, storage.Config{
		Kind: flags.kind,
		Postgres: database.Config{
			URL:          flags.dbURL,
			User:         flags.dbUser,
			Password:     flags.dbPassword,
			Host:         flags.dbHost,
			Name:         flags.dbName,
			MaxIdleConns: 1,
			MaxOpenConns: 2,
			DisableTLS:   flags.dbDisableTLS,
		},
		Mongo: mongo.Config{
			URI:            flags.mongoURI,
			Database:       flags.mongoDatabase,
			Collection:     flags.mongoCollection,
			ConnectTimeout: flags.timeout,
		},
		Dynamo: dynamodb.Config{
			Table:    flags.dynamoTable,
			Region:   flags.dynamoRegion,
			Endpoint: flags.dynamoEndpoint,
		},
		SQLitePath: flags.sqlitePath,
	})
}

func env(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return b
}

func envDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return d
}
