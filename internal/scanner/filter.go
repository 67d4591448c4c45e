package scanner

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/fossabot/failmap/internal/domain"
	"github.com/fossabot/failmap/internal/store"
)

// Filter selects the organizations a task works on. Names match
// case-insensitively. An empty filter selects every living organization.
type Filter struct {
	Organizations   []string `json:"organizations,omitempty"`
	OrganizationIDs []int64  `json:"organization_ids,omitempty"`
}

// IsEmpty reports whether the filter selects everything.
func (f Filter) IsEmpty() bool {
	return len(f.Organizations) == 0 && len(f.OrganizationIDs) == 0
}

// DecodeFilter parses a task payload. An empty or null payload is the empty filter.
func DecodeFilter(payload json.RawMessage) (Filter, error) {
	var f Filter
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return f, nil
	}
	if err := json.Unmarshal(trimmed, &f); err != nil {
		return Filter{}, err
	}
	return f, nil
}

// Resolve returns the living organizations selected by f, ordered by name.
func Resolve(ctx context.Context, orgs store.OrganizationStore, f Filter) ([]*domain.Organization, error) {
	return orgs.List(ctx, store.OrganizationFilter{
		Names: f.Organizations,
		IDs:   f.OrganizationIDs,
	})
}

// Compose splits f into one payload per selected organization so the work
// can be spread over workers.
func Compose(ctx context.Context, orgs store.OrganizationStore, f Filter) ([]Filter, error) {
	selected, err := Resolve(ctx, orgs, f)
	if err != nil {
		return nil, err
	}
	out := make([]Filter, len(selected))
	for i, o := range selected {
		out[i] = Filter{OrganizationIDs: []int64{o.ID}}
	}
	return out, nil
}
