// Package database owns the SQLite file that holds every committed
// telemetry row.
//
// Open configures the connection for an embedded single-writer workload:
// WAL journaling so API reads proceed while the batch writer commits, a
// busy timeout instead of immediate lock errors, and a pool pinned to one
// connection to match SQLite's one-writer model. The database file is
// created with 0600 permissions and every query runs through
// parameterised statements.
//
// Schema changes ship as embedded migration files, applied in filename
// order at startup:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migrations are additive-only so a rollback never strands data: new
// columns arrive NULLABLE or with defaults, nothing is dropped or
// renamed, and every version carries both .up.sql and .down.sql halves.
package database
