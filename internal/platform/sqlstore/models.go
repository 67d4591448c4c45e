package sqlstore

import (
	"encoding/json"
	"time"

	"github.com/fossabot/failmap/internal/domain"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// organizationTypeModel maps the organization_types table.
type organizationTypeModel struct {
	bun.BaseModel `bun:"table:organization_types"`
	ID            int64  `bun:"id,pk,autoincrement"`
	Name          string `bun:"name,notnull"`
}

// organizationModel maps the organizations table.
type organizationModel struct {
	bun.BaseModel `bun:"table:organizations"`
	ID            int64      `bun:"id,pk,autoincrement"`
	TypeID        int64      `bun:"type_id,notnull"`
	Name          string     `bun:"name,notnull"`
	Country       string     `bun:"country,notnull"`
	TwitterHandle string     `bun:"twitter_handle,notnull"`
	CreatedOn     time.Time  `bun:"created_on,notnull"`
	IsDead        bool       `bun:"is_dead,notnull"`
	IsDeadSince   *time.Time `bun:"is_dead_since"`
	IsDeadReason  string     `bun:"is_dead_reason,notnull"`
}

func newOrganizationModel(o *domain.Organization) *organizationModel {
	return &organizationModel{
		ID:            o.ID,
		TypeID:        o.TypeID,
		Name:          o.Name,
		Country:       o.Country,
		TwitterHandle: o.TwitterHandle,
		CreatedOn:     o.CreatedOn.UTC(),
		IsDead:        o.IsDead,
		IsDeadSince:   utcPtr(o.IsDeadSince),
		IsDeadReason:  o.IsDeadReason,
	}
}

func (m *organizationModel) toDomain() *domain.Organization {
	return &domain.Organization{
		ID:            m.ID,
		TypeID:        m.TypeID,
		Name:          m.Name,
		Country:       m.Country,
		TwitterHandle: m.TwitterHandle,
		CreatedOn:     m.CreatedOn.UTC(),
		IsDead:        m.IsDead,
		IsDeadSince:   utcPtr(m.IsDeadSince),
		IsDeadReason:  m.IsDeadReason,
	}
}

// urlModel maps the urls table.
type urlModel struct {
	bun.BaseModel `bun:"table:urls"`
	ID            int64     `bun:"id,pk,autoincrement"`
	URL           string    `bun:"url,notnull"`
	IsDead        bool      `bun:"is_dead,notnull"`
	NotResolvable bool      `bun:"not_resolvable,notnull"`
	CreatedOn     time.Time `bun:"created_on,notnull"`
}

func (m *urlModel) toDomain(organizationIDs []int64) *domain.URL {
	if organizationIDs == nil {
		organizationIDs = []int64{}
	}
	return &domain.URL{
		ID:              m.ID,
		URL:             m.URL,
		IsDead:          m.IsDead,
		NotResolvable:   m.NotResolvable,
		CreatedOn:       m.CreatedOn.UTC(),
		OrganizationIDs: organizationIDs,
	}
}

// urlOrganizationModel maps the url_organizations link table.
type urlOrganizationModel struct {
	bun.BaseModel  `bun:"table:url_organizations"`
	URLID          int64 `bun:"url_id,pk"`
	OrganizationID int64 `bun:"organization_id,pk"`
}

// endpointModel maps the endpoints table.
type endpointModel struct {
	bun.BaseModel `bun:"table:endpoints"`
	ID            int64     `bun:"id,pk,autoincrement"`
	URLID         int64     `bun:"url_id,notnull"`
	Protocol      string    `bun:"protocol,notnull"`
	Port          int       `bun:"port,notnull"`
	IPVersion     int       `bun:"ip_version,notnull"`
	IsDead        bool      `bun:"is_dead,notnull"`
	DiscoveredOn  time.Time `bun:"discovered_on,notnull"`
}

func newEndpointModel(e *domain.Endpoint) *endpointModel {
	return &endpointModel{
		ID:           e.ID,
		URLID:        e.URLID,
		Protocol:     e.Protocol,
		Port:         e.Port,
		IPVersion:    e.IPVersion,
		IsDead:       e.IsDead,
		DiscoveredOn: e.DiscoveredOn.UTC(),
	}
}

func (m *endpointModel) toDomain() *domain.Endpoint {
	return &domain.Endpoint{
		ID:           m.ID,
		URLID:        m.URLID,
		Protocol:     m.Protocol,
		Port:         m.Port,
		IPVersion:    m.IPVersion,
		IsDead:       m.IsDead,
		DiscoveredOn: m.DiscoveredOn.UTC(),
	}
}

// scanModel maps the scans table.
type scanModel struct {
	bun.BaseModel      `bun:"table:scans"`
	ID                 int64     `bun:"id,pk,autoincrement"`
	EndpointID         int64     `bun:"endpoint_id,notnull"`
	Type               string    `bun:"type,notnull"`
	Rating             string    `bun:"rating,notnull"`
	Explanation        string    `bun:"explanation,notnull"`
	LastScanMoment     time.Time `bun:"last_scan_moment,notnull"`
	RatingDeterminedOn time.Time `bun:"rating_determined_on,notnull"`
}

func newScanModel(s *domain.Scan) *scanModel {
	return &scanModel{
		ID:                 s.ID,
		EndpointID:         s.EndpointID,
		Type:               s.Type,
		Rating:             s.Rating,
		Explanation:        s.Explanation,
		LastScanMoment:     s.LastScanMoment.UTC(),
		RatingDeterminedOn: s.RatingDeterminedOn.UTC(),
	}
}

func (m *scanModel) toDomain() *domain.Scan {
	return &domain.Scan{
		ID:                 m.ID,
		EndpointID:         m.EndpointID,
		Type:               m.Type,
		Rating:             m.Rating,
		Explanation:        m.Explanation,
		LastScanMoment:     m.LastScanMoment.UTC(),
		RatingDeterminedOn: m.RatingDeterminedOn.UTC(),
	}
}

// urlRatingModel maps the url_ratings table.
type urlRatingModel struct {
	bun.BaseModel `bun:"table:url_ratings"`
	ID            int64     `bun:"id,pk,autoincrement"`
	URLID         int64     `bun:"url_id,notnull"`
	Rating        int       `bun:"rating,notnull"`
	High          int       `bun:"high,notnull"`
	Medium        int       `bun:"medium,notnull"`
	Low           int       `bun:"low,notnull"`
	RatedAt       time.Time `bun:"rated_at,notnull"`
	Calculation   string    `bun:"calculation,notnull"`
}

func (m *urlRatingModel) toDomain() *domain.URLRating {
	return &domain.URLRating{
		ID:          m.ID,
		URLID:       m.URLID,
		Rating:      m.Rating,
		Points:      domain.Points{High: m.High, Medium: m.Medium, Low: m.Low},
		When:        m.RatedAt.UTC(),
		Calculation: json.RawMessage(m.Calculation),
	}
}

// organizationRatingModel maps the organization_ratings table.
type organizationRatingModel struct {
	bun.BaseModel  `bun:"table:organization_ratings"`
	ID             int64     `bun:"id,pk,autoincrement"`
	OrganizationID int64     `bun:"organization_id,notnull"`
	Rating         int       `bun:"rating,notnull"`
	High           int       `bun:"high,notnull"`
	Medium         int       `bun:"medium,notnull"`
	Low            int       `bun:"low,notnull"`
	RatedAt        time.Time `bun:"rated_at,notnull"`
	Calculation    string    `bun:"calculation,notnull"`
}

func (m *organizationRatingModel) toDomain() *domain.OrganizationRating {
	return &domain.OrganizationRating{
		ID:             m.ID,
		OrganizationID: m.OrganizationID,
		Rating:         m.Rating,
		Points:         domain.Points{High: m.High, Medium: m.Medium, Low: m.Low},
		When:           m.RatedAt.UTC(),
		Calculation:    json.RawMessage(m.Calculation),
	}
}

// promiseModel maps the promises table.
type promiseModel struct {
	bun.BaseModel  `bun:"table:promises"`
	ID             int64     `bun:"id,pk,autoincrement"`
	OrganizationID int64     `bun:"organization_id,notnull"`
	CreatedOn      time.Time `bun:"created_on,notnull"`
	ExpiresOn      time.Time `bun:"expires_on,notnull"`
	Notes          string    `bun:"notes,notnull"`
}

func (m *promiseModel) toDomain() *domain.Promise {
	return &domain.Promise{
		ID:             m.ID,
		OrganizationID: m.OrganizationID,
		CreatedOn:      m.CreatedOn.UTC(),
		ExpiresOn:      m.ExpiresOn.UTC(),
		Notes:          m.Notes,
	}
}

// userModel maps the users table.
type userModel struct {
	bun.BaseModel `bun:"table:users"`
	ID            int64      `bun:"id,pk,autoincrement"`
	Username      string     `bun:"username,notnull"`
	Password      string     `bun:"password,notnull"`
	IsStaff       bool       `bun:"is_staff,notnull"`
	IsSuperuser   bool       `bun:"is_superuser,notnull"`
	IsActive      bool       `bun:"is_active,notnull"`
	DateJoined    time.Time  `bun:"date_joined,notnull"`
	LastLogin     *time.Time `bun:"last_login"`
}

func newUserModel(u *domain.User) *userModel {
	return &userModel{
		ID:          u.ID,
		Username:    u.Username,
		Password:    u.HashedPassword,
		IsStaff:     u.IsStaff,
		IsSuperuser: u.IsSuperuser,
		IsActive:    u.IsActive,
		DateJoined:  u.DateJoined.UTC(),
		LastLogin:   utcPtr(u.LastLogin),
	}
}

func (m *userModel) toDomain() *domain.User {
	return &domain.User{
		ID:             m.ID,
		Username:       m.Username,
		HashedPassword: m.Password,
		IsStaff:        m.IsStaff,
		IsSuperuser:    m.IsSuperuser,
		IsActive:       m.IsActive,
		DateJoined:     m.DateJoined.UTC(),
		LastLogin:      utcPtr(m.LastLogin),
	}
}

// sessionModel maps the sessions table.
type sessionModel struct {
	bun.BaseModel `bun:"table:sessions"`
	ID            uuid.UUID `bun:"id,pk,type:varchar(36)"`
	UserID        int64     `bun:"user_id,notnull"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
	ExpiresAt     time.Time `bun:"expires_at,notnull"`
}

func (m *sessionModel) toDomain() *domain.Session {
	return &domain.Session{
		ID:        m.ID,
		UserID:    m.UserID,
		CreatedAt: m.CreatedAt.UTC(),
		ExpiresAt: m.ExpiresAt.UTC(),
	}
}

// taskModel maps the tasks table.
type taskModel struct {
	bun.BaseModel `bun:"table:tasks"`
	ID            uuid.UUID `bun:"id,pk,type:varchar(36)"`
	Type          string    `bun:"type,notnull"`
	Payload       string    `bun:"payload,notnull"`
	Status        string    `bun:"status,notnull"`
	Result        string    `bun:"result,notnull"`
	ErrorMessage  string    `bun:"error_message,notnull"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
	UpdatedAt     time.Time `bun:"updated_at,notnull"`
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func rawOrNil(s string) json.RawMessage {
	if s == "" {
		return nil
	}
	return json.RawMessage(s)
}
