// Package config assembles the daemon's process-wide configuration: the
// Postgres connection settings in Database, the full environment in Env
// (env.go), the process-wide Registry that binds a store and queues
// together (registry.go), and the declarative queue-file reader
// (queuefile.go).
package config

import "fmt"

// Database holds the Postgres connection settings consumed by both the
// pgx pool (ToDbConnectionUri) and golang-migrate (ToMigrationUri) when
// Env.StoreBackend is "postgres". It plays no part for the other store
// backends (sqlite, redis, memory), which take their settings directly
// from Env.
type Database struct {
	Username     string `envconfig:"DB_USERNAME"`
	Password     string `envconfig:"DB_PASSWORD"`
	Host         string `envconfig:"DB_HOST"`
	Port         string `envconfig:"DB_PORT"`
	Database     string `envconfig:"DB_DATABASE"`
	SSLMode      string `envconfig:"DB_SSL_MODE" default:"require"`
	PoolMaxConns int    `envconfig:"DB_POOL_MAX_CONNS" default:"10"`
}

// ToDbConnectionUri returns the DSN pgxpool.New connects with.
func (d Database) ToDbConnectionUri() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s&pool_max_conns=%d",
		d.Username,
		d.Password,
		d.Host,
		d.Port,
		d.Database,
		d.SSLMode,
		d.PoolMaxConns,
	)
}

// ToMigrationUri returns the DSN golang-migrate's pgx/v5 database driver
// connects with, via migrate.NewWithSourceInstance in runPostgresMigrations.
func (d Database) ToMigrationUri() string {
	return fmt.Sprintf("pgx5://%s:%s@%s:%s/%s?sslmode=%s",
		d.Username,
		d.Password,
		d.Host,
		d.Port,
		d.Database,
		d.SSLMode,
	)
}

