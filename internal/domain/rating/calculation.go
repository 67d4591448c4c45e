// Package rating turns scan results into url and organization ratings.
// Calculations are pure: callers load the entities and persist the results.
package rating

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/fossabot/failmap/internal/domain"
)

// ScanCalculation is the scored latest scan of one type on an endpoint.
type ScanCalculation struct {
	Type        string    `json:"type"`
	Rating      string    `json:"rating"`
	Explanation string    `json:"explanation"`
	Since       time.Time `json:"since"`
	LastScan    time.Time `json:"last_scan"`
	domain.Points
}

// EndpointCalculation aggregates the scans of one endpoint.
type EndpointCalculation struct {
	ID        int64             `json:"id"`
	Protocol  string            `json:"protocol"`
	Port      int               `json:"port"`
	IPVersion int               `json:"ip_version"`
	Ratings   []ScanCalculation `json:"ratings"`
	domain.Points
}

// URLCalculation aggregates the endpoints of one url.
type URLCalculation struct {
	URLID     int64                 `json:"-"`
	URL       string                `json:"url"`
	Endpoints []EndpointCalculation `json:"endpoints"`
	domain.Points
}

// OrganizationCalculation aggregates the urls of one organization.
type OrganizationCalculation struct {
	OrganizationID int64            `json:"-"`
	Name           string           `json:"name"`
	URLs           []URLCalculation `json:"urls"`
	domain.Points
}

// Calculator scores entities with a Policy.
type Calculator struct {
	policy Policy
}

// NewCalculator creates a Calculator using policy, or DefaultPolicy when nil.
func NewCalculator(policy Policy) *Calculator {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &Calculator{policy: policy}
}

// URL scores a url from its endpoints and all their scans. Dead endpoints are
// skipped and only the most recently determined scan per type counts.
func (c *Calculator) URL(u *domain.URL, endpoints []*domain.Endpoint, scans []*domain.Scan) URLCalculation {
	byEndpoint := latestScans(scans)

	calc := URLCalculation{URLID: u.ID, URL: u.URL, Endpoints: []EndpointCalculation{}}
	if u.IsDead || u.NotResolvable {
		return calc
	}

	for _, e := range endpoints {
		if e.IsDead {
			continue
		}
		ec := EndpointCalculation{
			ID:        e.ID,
			Protocol:  e.Protocol,
			Port:      e.Port,
			IPVersion: e.IPVersion,
			Ratings:   []ScanCalculation{},
		}
		for _, s := range byEndpoint[e.ID] {
			points := c.policy.Points(e, s)
			ec.Ratings = append(ec.Ratings, ScanCalculation{
				Type:        s.Type,
				Rating:      s.Rating,
				Explanation: s.Explanation,
				Since:       s.RatingDeterminedOn,
				LastScan:    s.LastScanMoment,
				Points:      points,
			})
			ec.Points = ec.Points.Add(points)
		}
		calc.Endpoints = append(calc.Endpoints, ec)
		calc.Points = calc.Points.Add(ec.Points)
	}
	return calc
}

// Organization sums url calculations into an organization calculation.
func (c *Calculator) Organization(o *domain.Organization, urls []URLCalculation) OrganizationCalculation {
	calc := OrganizationCalculation{OrganizationID: o.ID, Name: o.Name, URLs: []URLCalculation{}}
	for _, u := range urls {
		calc.URLs = append(calc.URLs, u)
		calc.Points = calc.Points.Add(u.Points)
	}
	sort.Slice(calc.URLs, func(i, j int) bool {
		return calc.URLs[i].URL < calc.URLs[j].URL
	})
	return calc
}

// URLRating builds the rating record for a url calculation.
func (u URLCalculation) URLRating(when time.Time) (*domain.URLRating, error) {
	doc, err := json.Marshal(map[string]URLCalculation{"url": u})
	if err != nil {
		return nil, err
	}
	return &domain.URLRating{
		URLID:       u.URLID,
		Rating:      u.Score(),
		Points:      u.Points,
		When:        when.UTC(),
		Calculation: doc,
	}, nil
}

// OrganizationRating builds the rating record for an organization calculation.
func (o OrganizationCalculation) OrganizationRating(when time.Time) (*domain.OrganizationRating, error) {
	doc, err := json.Marshal(map[string]OrganizationCalculation{"organization": o})
	if err != nil {
		return nil, err
	}
	return &domain.OrganizationRating{
		OrganizationID: o.OrganizationID,
		Rating:         o.Score(),
		Points:         o.Points,
		When:           when.UTC(),
		Calculation:    doc,
	}, nil
}

// DefaultOrganizationRating is the empty rating given to organizations that
// were never rated, so they show up on the map.
func DefaultOrganizationRating(o *domain.Organization, when time.Time) *domain.OrganizationRating {
	r, _ := OrganizationCalculation{OrganizationID: o.ID, Name: o.Name, URLs: []URLCalculation{}}.OrganizationRating(when)
	return r
}

// latestScans keeps the most recently determined scan per endpoint and type,
// ordered by type.
func latestScans(scans []*domain.Scan) map[int64][]*domain.Scan {
	latest := make(map[int64]map[string]*domain.Scan)
	for _, s := range scans {
		types, ok := latest[s.EndpointID]
		if !ok {
			types = make(map[string]*domain.Scan)
			latest[s.EndpointID] = types
		}
		if cur, ok := types[s.Type]; !ok || s.RatingDeterminedOn.After(cur.RatingDeterminedOn) {
			types[s.Type] = s
		}
	}

	out := make(map[int64][]*domain.Scan, len(latest))
	for id, types := range latest {
		list := make([]*domain.Scan, 0, len(types))
		for _, s := range types {
			list = append(list, s)
		}
		sort.Slice(list, func(i, j int) bool { return list[i].Type < list[j].Type })
		out[id] = list
	}
	return out
}
