// Package store defines interfaces for data persistence operations.
// These interfaces abstract the underlying data storage mechanism from
// the application's core logic. The bun-backed implementations live in
// internal/platform/sqlstore.
package store
