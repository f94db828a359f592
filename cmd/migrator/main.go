package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/joho/godotenv"

	"github.com/jlynch25/kaizen_api/internal/storage/mongo"
	"github.com/jlynch25/kaizen_api/internal/storage/postgres"
)

const (
	migrationUp   = "up"
	migrationDown = "down"
)

func mustMigrateUp(m *migrate.Migrate) {
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			fmt.Println("no migrations to apply")
			return
		}

		panic(err)
	}

	fmt.Println("migrations applied successfully")
}

func mustMigrateDown(m *migrate.Migrate) {
	if err := m.Down(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			fmt.Println("no migrations to apply")
			return
		}

		panic(err)
	}

	fmt.Println("migrations downed successfully")
}

func main() {
	_ = godotenv.Load()

	var storageURL, dbName, migrationsTable, migrationType, db string
	flag.StringVar(&migrationType, "migration-type", migrationUp, "migration type (up|down)")
	flag.StringVar(&db, "db", "mongo", "database (mongo|postgres)")
	flag.StringVar(&storageURL, "storage-url", defaultURL(), "connection string, defaults to DB_URL or DATABASE_URL")
	flag.StringVar(&dbName, "db-name", envOr("DB_NAME", "kaizen"), "mongo database name")
	flag.StringVar(&migrationsTable, "migrations-table", "schema_migrations", "name of migrations table")
	flag.Parse()

	if storageURL == "" {
		panic("storage-url is required")
	}

	switch db {
	case "mongo":
		mustEnsureIndexes(storageURL, dbName, migrationType)
	case "postgres":
		m := mustPostgresMigrate(storageURL, migrationsTable)
		if migrationType == migrationDown {
			mustMigrateDown(m)
			return
		}
		mustMigrateUp(m)
	default:
		panic(fmt.Sprintf("unknown db %q", db))
	}
}

func mustPostgresMigrate(storageURL, migrationsTable string) *migrate.Migrate {
	src, err := iofs.New(postgres.Migrations, "migrations")
	if err != nil {
		panic(err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, withMigrationsTable(storageURL, migrationsTable))
	if err != nil {
		panic(err)
	}
	return m
}

// mongo has no schema; "up" means the unique indexes the stores depend on.
func mustEnsureIndexes(storageURL, dbName, migrationType string) {
	if migrationType == migrationDown {
		panic("down is not supported for mongo")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := mongo.Connect(ctx, storageURL, dbName)
	if err != nil {
		panic(err)
	}
	defer func() { _ = s.Close(context.Background()) }()

	if err := s.EnsureIndexes(ctx); err != nil {
		panic(err)
	}

	fmt.Println("indexes ensured successfully")
}

func withMigrationsTable(storageURL, table string) string {
	u, err := url.Parse(storageURL)
	if err != nil {
		panic(err)
	}
	q := u.Query()
	q.Set("x-migrations-table", table)
	u.RawQuery = q.Encode()
	return u.String()
}

func defaultURL() string {
	if v := os.Getenv("DB_URL"); v != "" {
		return v
	}
	return os.Getenv("DATABASE_URL")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
