package domain

import (
	"fmt"
	"time"
)

// Scan types recorded as generic endpoint scans.
const (
	ScanStrictTransportSecurity = "Strict-Transport-Security"
	ScanXFrameOptions           = "X-Frame-Options"
	ScanXContentTypeOptions     = "X-Content-Type-Options"
	ScanXXSSProtection          = "X-XSS-Protection"
	ScanPlainHTTPS              = "plain_https"
	ScanDummy                   = "Dummy"
)

// Scan ratings.
const (
	RatingTrue  = "True"
	RatingFalse = "False"
)

var knownScanTypes = map[string]bool{
	ScanStrictTransportSecurity: true,
	ScanXFrameOptions:           true,
	ScanXContentTypeOptions:     true,
	ScanXXSSProtection:          true,
	ScanPlainHTTPS:              true,
	ScanDummy:                   true,
}

// Scan is the outcome of one check against one endpoint. A new Scan is only
// stored when the rating changes; otherwise LastScanMoment is bumped.
type Scan struct {
	ID                 int64     `json:"id"`
	EndpointID         int64     `json:"endpoint_id"`
	Type               string    `json:"type"`
	Rating             string    `json:"rating"`
	Explanation        string    `json:"explanation"`
	LastScanMoment     time.Time `json:"last_scan_moment"`
	RatingDeterminedOn time.Time `json:"rating_determined_on"`
}

// NewScan creates a scan result determined now.
func NewScan(endpointID int64, scanType string, passed bool, explanation string) (*Scan, error) {
	if !knownScanTypes[scanType] {
		return nil, fmt.Errorf("%w: %w: %s", ErrValidation, ErrInvalidScanType, scanType)
	}
	rating := RatingFalse
	if passed {
		rating = RatingTrue
	}
	now := time.Now().UTC()
	return &Scan{
		EndpointID:         endpointID,
		Type:               scanType,
		Rating:             rating,
		Explanation:        explanation,
		LastScanMoment:     now,
		RatingDeterminedOn: now,
	}, nil
}

// Passed reports whether the scan rating is positive.
func (s *Scan) Passed() bool {
	return s.Rating == RatingTrue
}
