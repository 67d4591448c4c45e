// Package fixtures loads and exports YAML snapshots of organizations, their
// urls, endpoints and scan history, and admin users.
package fixtures

import "time"

// Document is the YAML layout shared by fixtures and exports.
type Document struct {
	OrganizationTypes []TypeRecord         `yaml:"organization_types,omitempty"`
	Organizations     []OrganizationRecord `yaml:"organizations,omitempty"`
	Users             []UserRecord         `yaml:"users,omitempty"`
}

// TypeRecord is an organization type.
type TypeRecord struct {
	Name string `yaml:"name"`
}

// OrganizationRecord is an organization with everything it owns.
type OrganizationRecord struct {
	Name          string          `yaml:"name"`
	Type          string          `yaml:"type"`
	Country       string          `yaml:"country"`
	TwitterHandle string          `yaml:"twitter_handle,omitempty"`
	CreatedOn     *time.Time      `yaml:"created_on,omitempty"`
	IsDead        bool            `yaml:"is_dead,omitempty"`
	IsDeadSince   *time.Time      `yaml:"is_dead_since,omitempty"`
	IsDeadReason  string          `yaml:"is_dead_reason,omitempty"`
	URLs          []URLRecord     `yaml:"urls,omitempty"`
	Promises      []PromiseRecord `yaml:"promises,omitempty"`
	Ratings       []RatingRecord  `yaml:"ratings,omitempty"`
}

// URLRecord is a url of an organization.
type URLRecord struct {
	URL           string           `yaml:"url"`
	IsDead        bool             `yaml:"is_dead,omitempty"`
	NotResolvable bool             `yaml:"not_resolvable,omitempty"`
	Endpoints     []EndpointRecord `yaml:"endpoints,omitempty"`
}

// EndpointRecord is an endpoint with its scan history.
type EndpointRecord struct {
	Protocol  string       `yaml:"protocol"`
	Port      int          `yaml:"port"`
	IPVersion int          `yaml:"ip_version"`
	IsDead    bool         `yaml:"is_dead,omitempty"`
	Scans     []ScanRecord `yaml:"scans,omitempty"`
}

// ScanRecord is one stored scan result.
type ScanRecord struct {
	Type               string    `yaml:"type"`
	Rating             string    `yaml:"rating"`
	Explanation        string    `yaml:"explanation,omitempty"`
	RatingDeterminedOn time.Time `yaml:"rating_determined_on"`
	LastScanMoment     time.Time `yaml:"last_scan_moment"`
}

// PromiseRecord is an organization promise.
type PromiseRecord struct {
	CreatedOn time.Time `yaml:"created_on"`
	ExpiresOn time.Time `yaml:"expires_on"`
	Notes     string    `yaml:"notes,omitempty"`
}

// RatingRecord is a stored organization rating.
type RatingRecord struct {
	When        time.Time `yaml:"when"`
	Rating      int       `yaml:"rating"`
	High        int       `yaml:"high"`
	Medium      int       `yaml:"medium"`
	Low         int       `yaml:"low"`
	Calculation string    `yaml:"calculation"`
}

// UserRecord is an admin user. Password is plaintext and hashed on load.
type UserRecord struct {
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	IsStaff     bool   `yaml:"is_staff,omitempty"`
	IsSuperuser bool   `yaml:"is_superuser,omitempty"`
	IsActive    *bool  `yaml:"is_active,omitempty"`
}
