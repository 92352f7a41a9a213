// Package storage is the task store behind the scheduler.
//
// Drivers:
//   - "sqlite": SQLite database file (modernc.org/sqlite, no cgo)
//   - "memory": process-local maps, used by tests and the offline CLI dry run
package storage
