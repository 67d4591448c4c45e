package rating

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/fossabot/failmap/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scan(endpointID int64, scanType string, passed bool, at time.Time) *domain.Scan {
	rating := domain.RatingFalse
	if passed {
		rating = domain.RatingTrue
	}
	return &domain.Scan{
		EndpointID:         endpointID,
		Type:               scanType,
		Rating:             rating,
		LastScanMoment:     at,
		RatingDeterminedOn: at,
	}
}

func TestPolicyPoints(t *testing.T) {
	t.Parallel()

	https := &domain.Endpoint{ID: 1, Protocol: domain.ProtocolHTTPS, Port: 443, IPVersion: 4}
	http := &domain.Endpoint{ID: 2, Protocol: domain.ProtocolHTTP, Port: 80, IPVersion: 4}
	now := time.Now()
	p := DefaultPolicy()

	tests := []struct {
		name     string
		endpoint *domain.Endpoint
		scan     *domain.Scan
		want     domain.Points
	}{
		{"hsts missing on https", https, scan(1, domain.ScanStrictTransportSecurity, false, now), domain.Points{High: 1}},
		{"hsts missing on http", http, scan(2, domain.ScanStrictTransportSecurity, false, now), domain.Points{}},
		{"hsts present", https, scan(1, domain.ScanStrictTransportSecurity, true, now), domain.Points{}},
		{"x-frame-options missing", http, scan(2, domain.ScanXFrameOptions, false, now), domain.Points{Medium: 1}},
		{"x-content-type-options missing", https, scan(1, domain.ScanXContentTypeOptions, false, now), domain.Points{Low: 1}},
		{"x-xss-protection missing", https, scan(1, domain.ScanXXSSProtection, false, now), domain.Points{Low: 1}},
		{"no https counterpart", http, scan(2, domain.ScanPlainHTTPS, false, now), domain.Points{High: 1}},
		{"dummy passed", https, scan(1, domain.ScanDummy, true, now), domain.Points{}},
		{"dummy failed", https, scan(1, domain.ScanDummy, false, now), domain.Points{Low: 1}},
		{"unknown type", https, scan(1, "tls_qualys", false, now), domain.Points{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, p.Points(tt.endpoint, tt.scan))
		})
	}
}

func TestCalculatorURL(t *testing.T) {
	t.Parallel()

	c := NewCalculator(nil)
	u := &domain.URL{ID: 10, URL: "www.example.nl"}
	endpoints := []*domain.Endpoint{
		{ID: 1, URLID: 10, Protocol: domain.ProtocolHTTPS, Port: 443, IPVersion: 4},
		{ID: 2, URLID: 10, Protocol: domain.ProtocolHTTP, Port: 80, IPVersion: 4, IsDead: true},
	}
	earlier := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	later := earlier.Add(24 * time.Hour)
	scans := []*domain.Scan{
		scan(1, domain.ScanStrictTransportSecurity, false, earlier),
		scan(1, domain.ScanStrictTransportSecurity, true, later),
		scan(1, domain.ScanXFrameOptions, false, later),
		scan(2, domain.ScanPlainHTTPS, false, later),
	}

	calc := c.URL(u, endpoints, scans)

	assert.Equal(t, domain.Points{Medium: 1}, calc.Points)
	require.Len(t, calc.Endpoints, 1)
	assert.Equal(t, int64(1), calc.Endpoints[0].ID)
	require.Len(t, calc.Endpoints[0].Ratings, 2)
	assert.Equal(t, domain.ScanStrictTransportSecurity, calc.Endpoints[0].Ratings[0].Type)
	assert.Equal(t, domain.RatingTrue, calc.Endpoints[0].Ratings[0].Rating)
}

func TestCalculatorURLDead(t *testing.T) {
	t.Parallel()

	c := NewCalculator(nil)
	u := &domain.URL{ID: 10, URL: "dead.example.nl", IsDead: true}
	endpoints := []*domain.Endpoint{{ID: 1, Protocol: domain.ProtocolHTTPS, Port: 443, IPVersion: 4}}
	scans := []*domain.Scan{scan(1, domain.ScanStrictTransportSecurity, false, time.Now())}

	calc := c.URL(u, endpoints, scans)

	assert.Equal(t, domain.Points{}, calc.Points)
	assert.Empty(t, calc.Endpoints)
}

func TestCalculatorOrganization(t *testing.T) {
	t.Parallel()

	c := NewCalculator(nil)
	org := &domain.Organization{ID: 3, Name: "Arnhem"}
	urls := []URLCalculation{
		{URLID: 2, URL: "www.arnhem.nl", Points: domain.Points{High: 1, Low: 2}},
		{URLID: 1, URL: "arnhem.nl", Points: domain.Points{Medium: 1}},
	}

	calc := c.Organization(org, urls)

	assert.Equal(t, domain.Points{High: 1, Medium: 1, Low: 2}, calc.Points)
	assert.Equal(t, "arnhem.nl", calc.URLs[0].URL)
	assert.Equal(t, domain.ColourRed, calc.Colour())

	when := time.Date(2018, 2, 1, 12, 0, 0, 0, time.UTC)
	r, err := calc.OrganizationRating(when)
	require.NoError(t, err)
	assert.Equal(t, int64(3), r.OrganizationID)
	assert.Equal(t, 112, r.Rating)
	assert.Equal(t, when, r.When)

	var doc struct {
		Organization struct {
			Name string `json:"name"`
			High int    `json:"high"`
			URLs []struct {
				URL    string `json:"url"`
				Medium int    `json:"medium"`
			} `json:"urls"`
		} `json:"organization"`
	}
	require.NoError(t, json.Unmarshal(r.Calculation, &doc))
	assert.Equal(t, "Arnhem", doc.Organization.Name)
	assert.Equal(t, 1, doc.Organization.High)
	require.Len(t, doc.Organization.URLs, 2)
	assert.Equal(t, 1, doc.Organization.URLs[0].Medium)
}

func TestDefaultOrganizationRating(t *testing.T) {
	t.Parallel()

	org := &domain.Organization{ID: 9, Name: "Epe"}
	r := DefaultOrganizationRating(org, time.Now())

	require.NotNil(t, r)
	assert.Equal(t, 0, r.Rating)
	assert.Equal(t, domain.Points{}, r.Points)
	assert.JSONEq(t, `{"organization":{"name":"Epe","urls":[],"high":0,"medium":0,"low":0}}`, string(r.Calculation))
}
