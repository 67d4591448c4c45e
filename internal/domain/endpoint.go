package domain

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Endpoint protocols.
const (
	ProtocolHTTP  = "http"
	ProtocolHTTPS = "https"
)

// Endpoint is a reachable protocol/port/ip-version combination of a URL.
type Endpoint struct {
	ID           int64     `json:"id"`
	URLID        int64     `json:"url_id"`
	Protocol     string    `json:"protocol"`
	Port         int       `json:"port"`
	IPVersion    int       `json:"ip_version"`
	IsDead       bool      `json:"is_dead"`
	DiscoveredOn time.Time `json:"discovered_on"`
}

// Validate checks the endpoint's invariants.
func (e *Endpoint) Validate() error {
	if e.Protocol != ProtocolHTTP && e.Protocol != ProtocolHTTPS {
		return fmt.Errorf("%w: %w", ErrValidation, ErrInvalidProtocol)
	}
	if e.Port < 1 || e.Port > 65535 {
		return fmt.Errorf("%w: %w", ErrValidation, ErrInvalidPort)
	}
	if e.IPVersion != 4 && e.IPVersion != 6 {
		return fmt.Errorf("%w: %w", ErrValidation, ErrInvalidIPVersion)
	}
	return nil
}

// IsIPv6 reports whether the endpoint was discovered over IPv6.
func (e *Endpoint) IsIPv6() bool {
	return e.IPVersion == 6
}

// Location builds the URL used to contact the endpoint on host.
func (e *Endpoint) Location(host string) string {
	defaultPort := (e.Protocol == ProtocolHTTP && e.Port == 80) || (e.Protocol == ProtocolHTTPS && e.Port == 443)
	if defaultPort {
		return e.Protocol + "://" + host + "/"
	}
	return e.Protocol + "://" + net.JoinHostPort(host, strconv.Itoa(e.Port)) + "/"
}
