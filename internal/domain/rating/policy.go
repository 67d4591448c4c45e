package rating

import "github.com/fossabot/failmap/internal/domain"

// Severity is the weight of a failed scan.
type Severity int

// Severities, from none to high.
const (
	SeverityNone Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
)

// Rule decides the severity of a failed scan of a given type.
type Rule struct {
	Severity Severity
	// Protocol restricts the rule to endpoints of this protocol; empty matches all.
	Protocol string
}

// Policy maps scan types to rules. Scan types without a rule score nothing.
type Policy map[string]Rule

// DefaultPolicy returns the scoring used for the published maps.
func DefaultPolicy() Policy {
	return Policy{
		domain.ScanStrictTransportSecurity: {Severity: SeverityHigh, Protocol: domain.ProtocolHTTPS},
		domain.ScanXFrameOptions:           {Severity: SeverityMedium},
		domain.ScanXContentTypeOptions:     {Severity: SeverityLow},
		domain.ScanXXSSProtection:          {Severity: SeverityLow},
		domain.ScanPlainHTTPS:              {Severity: SeverityHigh, Protocol: domain.ProtocolHTTP},
		domain.ScanDummy:                   {Severity: SeverityLow},
	}
}

// Points scores a single scan on its endpoint.
func (p Policy) Points(e *domain.Endpoint, s *domain.Scan) domain.Points {
	rule, ok := p[s.Type]
	if !ok || s.Passed() {
		return domain.Points{}
	}
	if rule.Protocol != "" && rule.Protocol != e.Protocol {
		return domain.Points{}
	}
	switch rule.Severity {
	case SeverityHigh:
		return domain.Points{High: 1}
	case SeverityMedium:
		return domain.Points{Medium: 1}
	case SeverityLow:
		return domain.Points{Low: 1}
	default:
		return domain.Points{}
	}
}
