package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/fossabot/failmap/internal/domain"
	"github.com/fossabot/failmap/internal/domain/rating"
	"github.com/fossabot/failmap/internal/store"
)

// Remark is attached to the metadata of public list endpoints.
const Remark = "Get the code and all data from our gitlab repo: https://gitlab.com/failmap/"

// TopListLimit is the number of entries on the top and url lists.
const TopListLimit = 10

// StatTimeframes are the moments the statistics are calculated for, in
// presentation order.
var StatTimeframes = []string{
	"now", "7 days ago", "2 weeks ago", "3 weeks ago",
	"1 month ago", "2 months ago", "3 months ago",
}

// PromiseSummary is the public part of an active promise.
type PromiseSummary struct {
	CreatedOn time.Time `json:"created_on"`
	ExpiresOn time.Time `json:"expires_on"`
}

// OrganizationReport is the latest rating of an organization at a moment.
type OrganizationReport struct {
	Name          string          `json:"name"`
	ID            int64           `json:"id"`
	TwitterHandle string          `json:"twitter_handle"`
	Rating        int             `json:"rating"`
	When          time.Time       `json:"when"`
	Calculation   json.RawMessage `json:"calculation"`
	Promise       *PromiseSummary `json:"promise"`
	High          int             `json:"high"`
	Medium        int             `json:"medium"`
	Low           int             `json:"low"`
}

// Measurement holds the statistics of one timeframe.
type Measurement struct {
	Red                   int                       `json:"red"`
	Orange                int                       `json:"orange"`
	Green                 int                       `json:"green"`
	TotalOrganizations    int                       `json:"total_organizations"`
	NoRating              int                       `json:"no_rating"`
	IncludedOrganizations int                       `json:"included_organizations"`
	TotalURLs             int                       `json:"total_urls"`
	RedURLs               int                       `json:"red_urls"`
	OrangeURLs            int                       `json:"orange_urls"`
	GreenURLs             int                       `json:"green_urls"`
	Endpoints             int                       `json:"endpoints"`
	Endpoint              map[string]int            `json:"endpoint"`
	Explained             map[string]map[string]int `json:"explained"`
	RedPercentage         int                       `json:"red percentage"`
	OrangePercentage      int                       `json:"orange percentage"`
	GreenPercentage       int                       `json:"green percentage"`
	RedURLPercentage      int                       `json:"red url percentage"`
	OrangeURLPercentage   int                       `json:"orange url percentage"`
	GreenURLPercentage    int                       `json:"green url percentage"`
}

// ListMetadata describes a generated list.
type ListMetadata struct {
	Type         string    `json:"type"`
	RenderDate   time.Time `json:"render_date"`
	DataFromTime time.Time `json:"data_from_time"`
	Remark       string    `json:"remark"`
}

// Ranking is one organization on the toplist.
type Ranking struct {
	Rank                int       `json:"rank"`
	OrganizationID      int64     `json:"organization_id"`
	OrganizationType    string    `json:"organization_type"`
	OrganizationName    string    `json:"organization_name"`
	OrganizationTwitter string    `json:"organization_twitter"`
	DataFrom            time.Time `json:"data_from"`
	High                int       `json:"high"`
	Medium              int       `json:"medium"`
	Low                 int       `json:"low"`
}

// TopList is the ranking of worst organizations.
type TopList struct {
	Metadata ListMetadata `json:"metadata"`
	Ranking  []Ranking    `json:"ranking"`
}

// ReportService answers the public data endpoints from stored ratings.
type ReportService interface {
	// OrganizationReport returns the latest rating of an organization weeksBack
	// weeks ago. Returns ErrNoReport when there is none.
	OrganizationReport(ctx context.Context, organizationID int64, weeksBack int) (*OrganizationReport, error)

	// Stats returns the measurements per timeframe, shifted weeksBack weeks.
	Stats(ctx context.Context, weeksBack int) (map[string]*Measurement, error)

	// TopFail returns the organizations with high or medium findings, worst first.
	TopFail(ctx context.Context, weeksBack int) (*TopList, error)

	// TopWin returns the organizations without high or medium findings, best first.
	TopWin(ctx context.Context, weeksBack int) (*TopList, error)

	// TerribleURLs returns the urls with high findings, worst first.
	TerribleURLs(ctx context.Context, weeksBack int) (*URLList, error)

	// VulnStats returns the findings per scan type for every VulnStatTimeframes moment.
	VulnStats(ctx context.Context, weeksBack int) (map[string][]VulnMeasurement, error)

	// LatestScans returns the scans of a published type whose rating changed
	// most recently. Returns ErrNoReport for other types.
	LatestScans(ctx context.Context, scanType string) (*ScanList, error)

	// UpdatesOnOrganization returns the most recent scans of an organization's
	// urls. Returns ErrNoReport for unknown organizations.
	UpdatesOnOrganization(ctx context.Context, organizationID int64) (*ScanList, error)

	// WantedURLs returns the organizations with the fewest living urls.
	WantedURLs(ctx context.Context) (*WantedList, error)
}

type reportServiceImpl struct {
	organizations store.OrganizationStore
	urls          store.URLStore
	endpoints     store.EndpointStore
	scans         store.ScanStore
	ratings       store.RatingStore
	promises      store.PromiseStore
	logger        *slog.Logger
	timeFunc      func() time.Time
}

var _ ReportService = (*reportServiceImpl)(nil)

// NewReportService creates a ReportService reading from stores.
func NewReportService(stores store.Stores, logger *slog.Logger) ReportService {
	return &reportServiceImpl{
		organizations: stores.Organizations,
		urls:          stores.URLs,
		endpoints:     stores.Endpoints,
		scans:         stores.Scans,
		ratings:       stores.Ratings,
		promises:      stores.Promises,
		logger:        logger.With("component", "report_service"),
		timeFunc:      time.Now,
	}
}

// WeeksBack returns now shifted back the given number of weeks.
func WeeksBack(now time.Time, weeks int) time.Time {
	if weeks <= 0 {
		return now.UTC()
	}
	return now.UTC().AddDate(0, 0, -7*weeks)
}

// OrganizationReport implements ReportService.
func (s *reportServiceImpl) OrganizationReport(ctx context.Context, organizationID int64, weeksBack int) (*OrganizationReport, error) {
	now := s.timeFunc().UTC()
	when := WeeksBack(now, weeksBack)

	org, err := s.organizations.GetByID(ctx, organizationID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, ErrNoReport
		}
		return nil, fmt.Errorf("failed to load organization: %w", err)
	}

	r, err := s.ratings.LatestOrganizationRating(ctx, organizationID, when)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, ErrNoReport
		}
		return nil, fmt.Errorf("failed to load rating: %w", err)
	}

	report := &OrganizationReport{
		Name:          org.Name,
		ID:            org.ID,
		TwitterHandle: org.TwitterHandle,
		Rating:        r.Rating,
		When:          r.When,
		Calculation:   r.Calculation,
		High:          r.High,
		Medium:        r.Medium,
		Low:           r.Low,
	}

	promise, err := s.promises.LatestActive(ctx, organizationID, now)
	switch {
	case err == nil:
		report.Promise = &PromiseSummary{CreatedOn: promise.CreatedOn, ExpiresOn: promise.ExpiresOn}
	case !store.IsNotFoundError(err):
		return nil, fmt.Errorf("failed to load promise: %w", err)
	}
	return report, nil
}

// statMoment resolves a timeframe label such as "2 weeks ago" relative to now.
func statMoment(now time.Time, label string, weeksBack int) (time.Time, error) {
	when := now
	if label != "now" {
		var n int
		var unit string
		if _, err := fmt.Sscanf(label, "%d %s ago", &n, &unit); err != nil {
			return time.Time{}, fmt.Errorf("invalid timeframe %q: %w", label, err)
		}
		switch strings.TrimSuffix(unit, "s") {
		case "day":
			when = now.AddDate(0, 0, -n)
		case "week":
			when = now.AddDate(0, 0, -7*n)
		case "month":
			when = now.AddDate(0, -n, 0)
		default:
			return time.Time{}, fmt.Errorf("invalid timeframe unit %q", unit)
		}
	}
	return WeeksBack(when, weeksBack), nil
}

// organizationDocument is the stored shape of an organization calculation.
type organizationDocument struct {
	Organization rating.OrganizationCalculation `json:"organization"`
}

// Stats implements ReportService.
func (s *reportServiceImpl) Stats(ctx context.Context, weeksBack int) (map[string]*Measurement, error) {
	now := s.timeFunc().UTC()
	out := make(map[string]*Measurement, len(StatTimeframes))

	for _, label := range StatTimeframes {
		when, err := statMoment(now, label, weeksBack)
		if err != nil {
			return nil, err
		}
		ratings, err := s.ratings.LatestOrganizationRatings(ctx, when)
		if err != nil {
			return nil, fmt.Errorf("failed to load ratings: %w", err)
		}
		out[label] = s.measure(ratings)
	}
	return out, nil
}

func (s *reportServiceImpl) measure(ratings []*domain.OrganizationRating) *Measurement {
	m := &Measurement{
		Endpoint:  map[string]int{},
		Explained: map[string]map[string]int{},
	}
	seen := make(map[string]bool)

	for _, r := range ratings {
		m.TotalOrganizations++

		var doc organizationDocument
		if err := json.Unmarshal(r.Calculation, &doc); err != nil {
			s.logger.Warn("skipping unreadable calculation", "rating_id", r.ID, "error", err)
			m.NoRating++
			continue
		}
		// Default ratings of organizations without urls are not counted.
		if len(doc.Organization.URLs) == 0 {
			m.NoRating++
			continue
		}
		m.IncludedOrganizations++

		switch r.Points.Colour() {
		case domain.ColourRed:
			m.Red++
		case domain.ColourOrange:
			m.Orange++
		default:
			m.Green++
		}

		// Urls shared between organizations are counted once per organization.
		for _, u := range doc.Organization.URLs {
			m.TotalURLs++
			switch u.Points.Colour() {
			case domain.ColourRed:
				m.RedURLs++
			case domain.ColourOrange:
				m.OrangeURLs++
			default:
				m.GreenURLs++
			}

			if seen[u.URL] {
				continue
			}
			seen[u.URL] = true
			for _, e := range u.Endpoints {
				for _, sc := range e.Ratings {
					byExplanation, ok := m.Explained[sc.Type]
					if !ok {
						byExplanation = map[string]int{"total": 0}
						m.Explained[sc.Type] = byExplanation
					}
					byExplanation[sc.Explanation]++
					byExplanation["total"]++
				}
				if len(e.Ratings) > 0 {
					m.Endpoint[endpointLabel(e)]++
					m.Endpoints++
				}
			}
		}
	}

	m.RedPercentage = percentage(m.Red, m.IncludedOrganizations)
	m.OrangePercentage = percentage(m.Orange, m.IncludedOrganizations)
	m.GreenPercentage = percentage(m.Green, m.IncludedOrganizations)
	m.RedURLPercentage = percentage(m.RedURLs, m.TotalURLs)
	m.OrangeURLPercentage = percentage(m.OrangeURLs, m.TotalURLs)
	m.GreenURLPercentage = percentage(m.GreenURLs, m.TotalURLs)
	return m
}

func endpointLabel(e rating.EndpointCalculation) string {
	ip := "IPv4"
	if e.IPVersion == 6 {
		ip = "IPv6"
	}
	return fmt.Sprintf("%s/%d (%s)", e.Protocol, e.Port, ip)
}

func percentage(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}

// TopFail implements ReportService.
func (s *reportServiceImpl) TopFail(ctx context.Context, weeksBack int) (*TopList, error) {
	return s.topList(ctx, weeksBack,
		func(r *domain.OrganizationRating) bool { return r.High > 0 || r.Medium > 0 },
		func(a, b rankedRating) bool {
			if a.High != b.High {
				return a.High > b.High
			}
			if a.Medium != b.Medium {
				return a.Medium > b.Medium
			}
			return a.OrganizationName < b.OrganizationName
		})
}

// TopWin implements ReportService. Among equally low scores, organizations
// with larger calculations, i.e. more urls and endpoints, rank higher.
func (s *reportServiceImpl) TopWin(ctx context.Context, weeksBack int) (*TopList, error) {
	return s.topList(ctx, weeksBack,
		func(r *domain.OrganizationRating) bool { return r.High == 0 && r.Medium == 0 },
		func(a, b rankedRating) bool {
			if a.Low != b.Low {
				return a.Low < b.Low
			}
			if a.size != b.size {
				return a.size > b.size
			}
			return a.OrganizationName < b.OrganizationName
		})
}

type rankedRating struct {
	Ranking
	size int
}

// topList ranks the latest organization ratings that keep accepts, ordered
// by less and cut to TopListLimit.
func (s *reportServiceImpl) topList(
	ctx context.Context,
	weeksBack int,
	keep func(*domain.OrganizationRating) bool,
	less func(a, b rankedRating) bool,
) (*TopList, error) {
	now := s.timeFunc().UTC()
	when := WeeksBack(now, weeksBack)

	list := &TopList{
		Metadata: ListMetadata{Type: "toplist", RenderDate: now, DataFromTime: when, Remark: Remark},
		Ranking:  []Ranking{},
	}

	ratings, err := s.ratings.LatestOrganizationRatings(ctx, when)
	if err != nil {
		return nil, fmt.Errorf("failed to load ratings: %w", err)
	}

	kept := make(map[int64]*domain.OrganizationRating)
	ids := make([]int64, 0, len(ratings))
	for _, r := range ratings {
		if keep(r) {
			kept[r.OrganizationID] = r
			ids = append(ids, r.OrganizationID)
		}
	}
	if len(ids) == 0 {
		return list, nil
	}

	orgs, err := s.organizations.List(ctx, store.OrganizationFilter{IDs: ids})
	if err != nil {
		return nil, fmt.Errorf("failed to load organizations: %w", err)
	}

	types := newTypeNames(s.organizations)
	ranked := make([]rankedRating, 0, len(orgs))
	for _, o := range orgs {
		r := kept[o.ID]
		typeName, err := types.name(ctx, o.TypeID)
		if err != nil {
			return nil, err
		}
		ranked = append(ranked, rankedRating{
			Ranking: Ranking{
				OrganizationID:      o.ID,
				OrganizationType:    typeName,
				OrganizationName:    o.Name,
				OrganizationTwitter: o.TwitterHandle,
				DataFrom:            r.When,
				High:                r.High,
				Medium:              r.Medium,
				Low:                 r.Low,
			},
			size: len(r.Calculation),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool { return less(ranked[i], ranked[j]) })
	if len(ranked) > TopListLimit {
		ranked = ranked[:TopListLimit]
	}
	for i, r := range ranked {
		r.Rank = i + 1
		list.Ranking = append(list.Ranking, r.Ranking)
	}
	return list, nil
}

// typeNames caches organization type names by id.
type typeNames struct {
	organizations store.OrganizationStore
	names         map[int64]string
}

func newTypeNames(organizations store.OrganizationStore) *typeNames {
	return &typeNames{organizations: organizations, names: make(map[int64]string)}
}

func (t *typeNames) name(ctx context.Context, id int64) (string, error) {
	if n, ok := t.names[id]; ok {
		return n, nil
	}
	typ, err := t.organizations.GetType(ctx, id)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("failed to load organization type: %w", err)
	}
	if typ != nil {
		t.names[id] = typ.Name
	}
	return t.names[id], nil
}
