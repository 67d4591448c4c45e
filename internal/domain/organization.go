package domain

import (
	"fmt"
	"strings"
	"time"
)

// OrganizationType groups organizations, e.g. "municipality" or "province".
type OrganizationType struct {
	ID   int64  `json:"id" yaml:"-"`
	Name string `json:"name" yaml:"name"`
}

// Organization is a rated entity owning a set of urls.
type Organization struct {
	ID            int64      `json:"id"`
	TypeID        int64      `json:"type_id"`
	Name          string     `json:"name"`
	Country       string     `json:"country"`
	TwitterHandle string     `json:"twitter_handle,omitempty"`
	CreatedOn     time.Time  `json:"created_on"`
	IsDead        bool       `json:"is_dead"`
	IsDeadSince   *time.Time `json:"is_dead_since,omitempty"`
	IsDeadReason  string     `json:"is_dead_reason,omitempty"`
}

// NewOrganization creates a validated, living organization.
func NewOrganization(name string, typeID int64, country string) (*Organization, error) {
	o := &Organization{
		TypeID:    typeID,
		Name:      strings.TrimSpace(name),
		Country:   strings.ToUpper(strings.TrimSpace(country)),
		CreatedOn: time.Now().UTC(),
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

// Validate checks the organization's invariants.
func (o *Organization) Validate() error {
	if strings.TrimSpace(o.Name) == "" {
		return fmt.Errorf("%w: organization: %w", ErrValidation, ErrEmptyName)
	}
	if len(o.Country) != 2 {
		return fmt.Errorf("%w: organization country must be a two letter code", ErrValidation)
	}
	if o.IsDeadSince != nil && !o.IsDead {
		return fmt.Errorf("%w: organization has is_dead_since but is not dead", ErrValidation)
	}
	return nil
}

// Kill marks the organization as dead from the given moment.
func (o *Organization) Kill(at time.Time, reason string) {
	o.IsDead = true
	at = at.UTC()
	o.IsDeadSince = &at
	o.IsDeadReason = reason
}

// DisplayName renders the admin list label, prefixed with a cross for dead organizations.
func (o *Organization) DisplayName() string {
	if o.IsDead {
		since := ""
		if o.IsDeadSince != nil {
			since = o.IsDeadSince.Format("Jan 2006")
		}
		return fmt.Sprintf("✝ %s, %s (%s - %s)", o.Name, o.Country, o.CreatedOn.Format("Jan 2006"), since)
	}
	return fmt.Sprintf("%s, %s (%s)", o.Name, o.Country, o.CreatedOn.Format("Jan 2006"))
}
