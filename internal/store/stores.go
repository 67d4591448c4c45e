package store

import (
	"context"
	"time"

	"github.com/fossabot/failmap/internal/domain"
	"github.com/google/uuid"
)

// OrganizationFilter narrows organization listings.
type OrganizationFilter struct {
	// Names restricts the result to organizations with these names (case-insensitive).
	Names []string
	// IDs restricts the result to organizations with these ids.
	IDs         []int64
	IncludeDead bool
}

// OrganizationStore persists organizations and organization types.
type OrganizationStore interface {
	// Create saves a new organization and sets its ID.
	// Returns ErrInvalidEntity if validation fails.
	Create(ctx context.Context, org *domain.Organization) error

	// Update saves all mutable fields of an existing organization.
	// Returns ErrOrganizationNotFound if it does not exist.
	Update(ctx context.Context, org *domain.Organization) error

	GetByID(ctx context.Context, id int64) (*domain.Organization, error)

	// GetByName finds a living organization by name.
	GetByName(ctx context.Context, name string) (*domain.Organization, error)

	// List returns organizations matching the filter ordered by name.
	List(ctx context.Context, filter OrganizationFilter) ([]*domain.Organization, error)

	// EnsureType returns the organization type with the given name, creating it if needed.
	EnsureType(ctx context.Context, name string) (*domain.OrganizationType, error)

	GetType(ctx context.Context, id int64) (*domain.OrganizationType, error)

	WithTx(tx DBTX) OrganizationStore
}

// URLStore persists urls and their organization memberships.
type URLStore interface {
	// Create saves a new url together with its organization links.
	// Returns ErrDuplicate when the url already exists.
	Create(ctx context.Context, u *domain.URL) error

	Update(ctx context.Context, u *domain.URL) error

	GetByID(ctx context.Context, id int64) (*domain.URL, error)

	// GetByURL finds a url by its normalized hostname.
	GetByURL(ctx context.Context, url string) (*domain.URL, error)

	// AddOrganization links an existing url to an organization. Linking twice is a no-op.
	AddOrganization(ctx context.Context, urlID, organizationID int64) error

	// ListByOrganization returns the urls of an organization ordered by url.
	ListByOrganization(ctx context.Context, organizationID int64, includeDead bool) ([]*domain.URL, error)

	WithTx(tx DBTX) URLStore
}

// EndpointStore persists endpoints.
type EndpointStore interface {
	Create(ctx context.Context, e *domain.Endpoint) error

	Update(ctx context.Context, e *domain.Endpoint) error

	GetByID(ctx context.Context, id int64) (*domain.Endpoint, error)

	// Find looks up the endpoint identified by url, protocol, port and ip version.
	Find(ctx context.Context, urlID int64, protocol string, port, ipVersion int) (*domain.Endpoint, error)

	// ListByURL returns the endpoints of a url.
	ListByURL(ctx context.Context, urlID int64, includeDead bool) ([]*domain.Endpoint, error)

	WithTx(tx DBTX) EndpointStore
}

// ScanStore persists endpoint scan results.
type ScanStore interface {
	// Record stores a scan result. When the latest scan of the same endpoint
	// and type has the same rating, only its last scan moment and explanation
	// are updated and scan takes over its ID.
	Record(ctx context.Context, scan *domain.Scan) error

	// Latest returns the most recently determined scan of a type on an endpoint.
	Latest(ctx context.Context, endpointID int64, scanType string) (*domain.Scan, error)

	// ListByEndpoints returns all scans of the given endpoints determined at or before when.
	ListByEndpoints(ctx context.Context, endpointIDs []int64, when time.Time) ([]*domain.Scan, error)

	// ListRecentByType returns the limit scans of a type whose rating changed most recently.
	ListRecentByType(ctx context.Context, scanType string, limit int) ([]*domain.Scan, error)

	WithTx(tx DBTX) ScanStore
}

// RatingStore persists url and organization ratings.
type RatingStore interface {
	SaveURLRating(ctx context.Context, r *domain.URLRating) error

	SaveOrganizationRating(ctx context.Context, r *domain.OrganizationRating) error

	// LatestOrganizationRating returns the newest rating of an organization at or before when.
	LatestOrganizationRating(ctx context.Context, organizationID int64, when time.Time) (*domain.OrganizationRating, error)

	// LatestOrganizationRatings returns the newest rating at or before when for every organization that has one.
	LatestOrganizationRatings(ctx context.Context, when time.Time) ([]*domain.OrganizationRating, error)

	// LatestURLRatings returns the newest rating at or before when for every url that has one.
	LatestURLRatings(ctx context.Context, when time.Time) ([]*domain.URLRating, error)

	// ListOrganizationRatings returns the full rating history of an organization, oldest first.
	ListOrganizationRatings(ctx context.Context, organizationID int64) ([]*domain.OrganizationRating, error)

	WithTx(tx DBTX) RatingStore
}

// PromiseStore persists organization promises.
type PromiseStore interface {
	Create(ctx context.Context, p *domain.Promise) error

	// LatestActive returns the most recently created promise that has not expired at now.
	LatestActive(ctx context.Context, organizationID int64, now time.Time) (*domain.Promise, error)

	ListByOrganization(ctx context.Context, organizationID int64) ([]*domain.Promise, error)

	WithTx(tx DBTX) PromiseStore
}

// UserStore persists admin users.
type UserStore interface {
	// Create saves a new user. Returns ErrUsernameExists for a taken username.
	Create(ctx context.Context, user *domain.User) error

	// Update saves the password hash and flags of an existing user.
	Update(ctx context.Context, user *domain.User) error

	GetByID(ctx context.Context, id int64) (*domain.User, error)

	GetByUsername(ctx context.Context, username string) (*domain.User, error)

	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error

	WithTx(tx DBTX) UserStore
}

// SessionStore persists admin sessions.
type SessionStore interface {
	Create(ctx context.Context, s *domain.Session) error

	Get(ctx context.Context, id uuid.UUID) (*domain.Session, error)

	Delete(ctx context.Context, id uuid.UUID) error

	// DeleteExpired removes sessions expired at now and reports how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)

	WithTx(tx DBTX) SessionStore
}

// Stores bundles every entity store so callers can move them into a
// transaction together.
type Stores struct {
	Organizations OrganizationStore
	URLs          URLStore
	Endpoints     EndpointStore
	Scans         ScanStore
	Ratings       RatingStore
	Promises      PromiseStore
	Users         UserStore
	Sessions      SessionStore
}

// WithTx returns a copy of s whose stores all use tx.
func (s Stores) WithTx(tx DBTX) Stores {
	return Stores{
		Organizations: s.Organizations.WithTx(tx),
		URLs:          s.URLs.WithTx(tx),
		Endpoints:     s.Endpoints.WithTx(tx),
		Scans:         s.Scans.WithTx(tx),
		Ratings:       s.Ratings.WithTx(tx),
		Promises:      s.Promises.WithTx(tx),
		Users:         s.Users.WithTx(tx),
		Sessions:      s.Sessions.WithTx(tx),
	}
}
