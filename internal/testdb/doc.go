// Package testdb provides migrated databases for tests.
//
// Every call to New returns a fresh in-memory SQLite database with the full
// schema applied, so tests can use t.Parallel() without sharing state:
//
//	func TestMyFeature(t *testing.T) {
//	    t.Parallel()
//	    db, stores := testdb.Stores(t)
//	    ...
//	}
//
// WithTx runs a test body inside a transaction that is always rolled back.
package testdb
