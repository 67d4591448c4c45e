package domain

import (
	"encoding/json"
	"time"
)

// Colours used by the map and the statistics.
const (
	ColourRed    = "red"
	ColourOrange = "orange"
	ColourGreen  = "green"
)

// Points are the accumulated high/medium/low findings.
type Points struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// Add returns the sum of p and o.
func (p Points) Add(o Points) Points {
	return Points{High: p.High + o.High, Medium: p.Medium + o.Medium, Low: p.Low + o.Low}
}

// Colour classifies the points: any high is red, any medium is orange.
func (p Points) Colour() string {
	switch {
	case p.High > 0:
		return ColourRed
	case p.Medium > 0:
		return ColourOrange
	default:
		return ColourGreen
	}
}

// Score is the single number shown as "rating".
func (p Points) Score() int {
	return p.High*100 + p.Medium*10 + p.Low
}

// URLRating is a point-in-time rating of a URL.
type URLRating struct {
	ID          int64           `json:"id"`
	URLID       int64           `json:"url_id"`
	Rating      int             `json:"rating"`
	Points
	When        time.Time       `json:"when"`
	Calculation json.RawMessage `json:"calculation"`
}

// OrganizationRating is a point-in-time rating of an organization.
type OrganizationRating struct {
	ID             int64           `json:"id"`
	OrganizationID int64           `json:"organization_id"`
	Rating         int             `json:"rating"`
	Points
	When           time.Time       `json:"when"`
	Calculation    json.RawMessage `json:"calculation"`
}

// Promise is an organization's statement that an improvement will show up
// in its score before ExpiresOn.
type Promise struct {
	ID             int64     `json:"id"`
	OrganizationID int64     `json:"organization_id"`
	CreatedOn      time.Time `json:"created_on"`
	ExpiresOn      time.Time `json:"expires_on"`
	Notes          string    `json:"notes,omitempty"`
}

// Validate checks the promise's invariants.
func (p *Promise) Validate() error {
	if !p.ExpiresOn.After(p.CreatedOn) {
		return ErrInvalidExpiry
	}
	return nil
}

// Active reports whether the promise has not yet expired at now.
func (p *Promise) Active(now time.Time) bool {
	return p.ExpiresOn.After(now)
}
