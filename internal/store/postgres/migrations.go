package postgres

import "embed"

// Migrations embeds the SQL migration files that define the tasks and
// task_history tables, served to golang-migrate via an
// iofs.New("migrations") source instance.
//
//go:embed migrations/*.sql
var Migrations embed.FS
