package domain

import (
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"
)

var labelPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// URL is a hostname belonging to one or more organizations.
type URL struct {
	ID              int64     `json:"id"`
	URL             string    `json:"url"`
	IsDead          bool      `json:"is_dead"`
	NotResolvable   bool      `json:"not_resolvable"`
	CreatedOn       time.Time `json:"created_on"`
	OrganizationIDs []int64   `json:"organization_ids"`
}

// NewURL normalizes raw and returns a living URL owned by the given organizations.
func NewURL(raw string, organizationIDs ...int64) (*URL, error) {
	host, err := NormalizeURL(raw)
	if err != nil {
		return nil, err
	}
	return &URL{
		URL:             host,
		CreatedOn:       time.Now().UTC(),
		OrganizationIDs: organizationIDs,
	}, nil
}

// NormalizeURL lower-cases raw and strips scheme, credentials, port and path,
// leaving the bare hostname. The hostname needs at least a domain and a suffix.
func NormalizeURL(raw string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndex(s, "@"); i >= 0 {
		s = s[i+1:]
	}
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	s = strings.TrimSuffix(s, ".")

	labels := strings.Split(s, ".")
	if len(labels) < 2 {
		return "", fmt.Errorf("%w: %q has no suffix", ErrInvalidURL, raw)
	}
	for _, l := range labels {
		if !labelPattern.MatchString(l) {
			return "", fmt.Errorf("%w: %q", ErrInvalidURL, raw)
		}
	}
	return s, nil
}

// IsTopLevel reports whether the url is a registrable domain without subdomain.
func (u *URL) IsTopLevel() bool {
	return strings.Count(u.URL, ".") == 1
}
