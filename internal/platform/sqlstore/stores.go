package sqlstore

import "github.com/fossabot/failmap/internal/store"

// New returns the bundle of all SQL-backed stores on db.
func New(db store.DBTX) store.Stores {
	return store.Stores{
		Organizations: NewOrganizationStore(db),
		URLs:          NewURLStore(db),
		Endpoints:     NewEndpointStore(db),
		Scans:         NewScanStore(db),
		Ratings:       NewRatingStore(db),
		Promises:      NewPromiseStore(db),
		Users:         NewUserStore(db),
		Sessions:      NewSessionStore(db),
	}
}
