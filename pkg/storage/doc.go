// Package storage persists stations, departures and cycle metrics.
//
// Two backends implement Store:
//   - SQLiteStore: an embedded database file, opened in WAL mode with a
//     single connection and a write mutex
//   - PostgresStore: a pgx connection pool for a warehouse database
//
// Stations are upserted by ID. Departures and metrics are append-only and
// only removed by Prune. Every error returned is a storage error from
// pkg/errors.
//
// Usage:
//
//	store, err := storage.New(ctx, cfg.Storage, log)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	err = store.LoadDepartures(ctx, departures)
package storage
