package store

import "github.com/uptrace/bun"

// DBTX is implemented by both *bun.DB and bun.Tx, allowing stores to run
// either on the connection pool or inside a transaction.
type DBTX = bun.IDB
