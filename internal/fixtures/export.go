package fixtures

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fossabot/failmap/internal/domain"
	"github.com/fossabot/failmap/internal/store"
	"gopkg.in/yaml.v3"
)

// ErrNothingToExport is returned when no organization matches the export names.
var ErrNothingToExport = errors.New("no organizations to export")

var endOfTime = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)

// Export renders the named organizations, matched case-insensitively, with
// their urls, endpoints, scans and promises. Ratings are only included when
// includeRatings is set. The types of the exported organizations come
// along. No names selects every living organization.
func Export(ctx context.Context, stores store.Stores, names []string, includeRatings bool) ([]byte, error) {
	filter := store.OrganizationFilter{Names: names, IncludeDead: len(names) > 0}
	orgs, err := stores.Organizations.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	if len(orgs) == 0 {
		return nil, ErrNothingToExport
	}

	doc := &Document{}
	typeNames := make(map[int64]string)
	for _, o := range orgs {
		if _, ok := typeNames[o.TypeID]; ok {
			continue
		}
		typ, err := stores.Organizations.GetType(ctx, o.TypeID)
		if err != nil {
			return nil, fmt.Errorf("failed to load organization type: %w", err)
		}
		typeNames[o.TypeID] = typ.Name
		doc.OrganizationTypes = append(doc.OrganizationTypes, TypeRecord{Name: typ.Name})
	}

	for _, o := range orgs {
		rec, err := exportOrganization(ctx, stores, o, typeNames[o.TypeID], includeRatings)
		if err != nil {
			return nil, fmt.Errorf("failed to export %s: %w", o.Name, err)
		}
		doc.Organizations = append(doc.Organizations, rec)
	}

	return yaml.Marshal(doc)
}

func exportOrganization(ctx context.Context, stores store.Stores, o *domain.Organization, typeName string, includeRatings bool) (OrganizationRecord, error) {
	created := o.CreatedOn
	rec := OrganizationRecord{
		Name:          o.Name,
		Type:          typeName,
		Country:       o.Country,
		TwitterHandle: o.TwitterHandle,
		CreatedOn:     &created,
		IsDead:        o.IsDead,
		IsDeadSince:   o.IsDeadSince,
		IsDeadReason:  o.IsDeadReason,
	}

	urls, err := stores.URLs.ListByOrganization(ctx, o.ID, true)
	if err != nil {
		return rec, err
	}
	for _, u := range urls {
		ur, err := exportURL(ctx, stores, u)
		if err != nil {
			return rec, err
		}
		rec.URLs = append(rec.URLs, ur)
	}

	promises, err := stores.Promises.ListByOrganization(ctx, o.ID)
	if err != nil {
		return rec, err
	}
	for i := len(promises) - 1; i >= 0; i-- {
		p := promises[i]
		rec.Promises = append(rec.Promises, PromiseRecord{CreatedOn: p.CreatedOn, ExpiresOn: p.ExpiresOn, Notes: p.Notes})
	}

	if includeRatings {
		ratings, err := stores.Ratings.ListOrganizationRatings(ctx, o.ID)
		if err != nil {
			return rec, err
		}
		for _, r := range ratings {
			rec.Ratings = append(rec.Ratings, RatingRecord{
				When:        r.When,
				Rating:      r.Rating,
				High:        r.High,
				Medium:      r.Medium,
				Low:         r.Low,
				Calculation: string(r.Calculation),
			})
		}
	}
	return rec, nil
}

func exportURL(ctx context.Context, stores store.Stores, u *domain.URL) (URLRecord, error) {
	rec := URLRecord{URL: u.URL, IsDead: u.IsDead, NotResolvable: u.NotResolvable}

	endpoints, err := stores.Endpoints.ListByURL(ctx, u.ID, true)
	if err != nil {
		return rec, err
	}
	for _, e := range endpoints {
		er := EndpointRecord{Protocol: e.Protocol, Port: e.Port, IPVersion: e.IPVersion, IsDead: e.IsDead}
		scans, err := stores.Scans.ListByEndpoints(ctx, []int64{e.ID}, endOfTime)
		if err != nil {
			return rec, err
		}
		for _, s := range scans {
			er.Scans = append(er.Scans, ScanRecord{
				Type:               s.Type,
				Rating:             s.Rating,
				Explanation:        s.Explanation,
				RatingDeterminedOn: s.RatingDeterminedOn,
				LastScanMoment:     s.LastScanMoment,
			})
		}
		rec.Endpoints = append(rec.Endpoints, er)
	}
	return rec, nil
}
