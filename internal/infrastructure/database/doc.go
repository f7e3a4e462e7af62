// Package database provides SQLite connectivity for the webOS bridge.
//
// The only persistent state the bridge keeps is the pairing key each
// television issues, so the schema is small; this package still follows the
// usual Gray Logic pattern of an embedded, versioned migration set.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql, and are registered by the top-level
// migrations package.
package database
