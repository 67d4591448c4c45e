package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/fossabot/failmap/internal/domain"
	"github.com/fossabot/failmap/internal/domain/rating"
	"github.com/fossabot/failmap/internal/store"
)

// Sizes of the url and scan lists.
const (
	LatestScansLimit    = 6
	OrganizationUpdates = 60
	WantedURLsLimit     = 25
	vulnStatDateStamp   = "2006-01-02"
)

// PublishedScanTypes are the scan types listed by LatestScans.
var PublishedScanTypes = []string{
	domain.ScanStrictTransportSecurity,
	domain.ScanXFrameOptions,
	domain.ScanXContentTypeOptions,
	domain.ScanXXSSProtection,
	domain.ScanPlainHTTPS,
}

// VulnStatTimeframes are the moments VulnStats covers: daily for two weeks,
// then weekly up to three months, newest first.
var VulnStatTimeframes = func() []string {
	frames := []string{"now"}
	for d := 1; d <= 14; d++ {
		frames = append(frames, fmt.Sprintf("%d days ago", d))
	}
	for d := 21; d <= 91; d += 7 {
		frames = append(frames, fmt.Sprintf("%d days ago", d))
	}
	return frames
}()

// URLRanking is one url on the url list.
type URLRanking struct {
	Rank                int       `json:"rank"`
	URL                 string    `json:"url"`
	OrganizationID      int64     `json:"organization_id"`
	OrganizationType    string    `json:"organization_type"`
	OrganizationName    string    `json:"organization_name"`
	OrganizationTwitter string    `json:"organization_twitter"`
	DataFrom            time.Time `json:"data_from"`
	High                int       `json:"high"`
	Medium              int       `json:"medium"`
	Low                 int       `json:"low"`
}

// URLList is the ranking of worst urls.
type URLList struct {
	Metadata ListMetadata `json:"metadata"`
	URLs     []URLRanking `json:"urls"`
}

// VulnMeasurement holds the findings of one scan type at one date.
type VulnMeasurement struct {
	Date   string `json:"date"`
	High   int    `json:"high"`
	Medium int    `json:"medium"`
	Low    int    `json:"low"`
}

// ScanEntry is a scan together with the url and endpoint it was made on.
// Organization is only set in the updates of one organization.
type ScanEntry struct {
	Organization       string    `json:"organization,omitempty"`
	OrganizationID     int64     `json:"organization_id,omitempty"`
	URL                string    `json:"url"`
	Service            string    `json:"service"`
	Protocol           string    `json:"protocol"`
	Port               int       `json:"port"`
	IPVersion          int       `json:"ip_version"`
	Type               string    `json:"type"`
	Rating             string    `json:"rating"`
	Explanation        string    `json:"explanation"`
	RatingDeterminedOn time.Time `json:"rating_determined_on"`
	LastScanMoment     time.Time `json:"last_scan_moment"`
	High               int       `json:"high"`
	Medium             int       `json:"medium"`
	Low                int       `json:"low"`
}

// ScanList is a list of recent scans.
type ScanList struct {
	Scans      []ScanEntry `json:"scans"`
	RenderDate time.Time   `json:"render_date"`
	Remark     string      `json:"remark"`
}

// WantedOrganization is an organization that needs more urls.
type WantedOrganization struct {
	Name    string   `json:"name"`
	URLs    []string `json:"urls"`
	NumURLs int      `json:"num_urls"`
}

// WantedList lists the organizations with the fewest living urls.
type WantedList struct {
	Metadata      ListMetadata         `json:"metadata"`
	Organizations []WantedOrganization `json:"organizations"`
}

// urlDocument is the stored shape of a url calculation.
type urlDocument struct {
	URL rating.URLCalculation `json:"url"`
}

// TerribleURLs implements ReportService. Urls in several organizations are
// listed under the first one by name.
func (s *reportServiceImpl) TerribleURLs(ctx context.Context, weeksBack int) (*URLList, error) {
	now := s.timeFunc().UTC()
	when := WeeksBack(now, weeksBack)

	list := &URLList{
		Metadata: ListMetadata{Type: "urllist", RenderDate: now, DataFromTime: when, Remark: Remark},
		URLs:     []URLRanking{},
	}

	ratings, err := s.ratings.LatestURLRatings(ctx, when)
	if err != nil {
		return nil, fmt.Errorf("failed to load ratings: %w", err)
	}

	types := newTypeNames(s.organizations)
	for _, r := range ratings {
		if r.High == 0 {
			continue
		}
		u, err := s.urls.GetByID(ctx, r.URLID)
		if err != nil {
			return nil, fmt.Errorf("failed to load url: %w", err)
		}
		if u.IsDead || len(u.OrganizationIDs) == 0 {
			continue
		}
		orgs, err := s.organizations.List(ctx, store.OrganizationFilter{IDs: u.OrganizationIDs})
		if err != nil {
			return nil, fmt.Errorf("failed to load organizations: %w", err)
		}
		if len(orgs) == 0 {
			continue
		}
		org := orgs[0]
		typeName, err := types.name(ctx, org.TypeID)
		if err != nil {
			return nil, err
		}
		list.URLs = append(list.URLs, URLRanking{
			URL:                 u.URL,
			OrganizationID:      org.ID,
			OrganizationType:    typeName,
			OrganizationName:    org.Name,
			OrganizationTwitter: org.TwitterHandle,
			DataFrom:            r.When,
			High:                r.High,
			Medium:              r.Medium,
			Low:                 r.Low,
		})
	}

	sort.SliceStable(list.URLs, func(i, j int) bool {
		a, b := list.URLs[i], list.URLs[j]
		if a.High != b.High {
			return a.High > b.High
		}
		if a.Medium != b.Medium {
			return a.Medium > b.Medium
		}
		if a.Low != b.Low {
			return a.Low > b.Low
		}
		if a.OrganizationName != b.OrganizationName {
			return a.OrganizationName < b.OrganizationName
		}
		return a.URL < b.URL
	})
	if len(list.URLs) > TopListLimit {
		list.URLs = list.URLs[:TopListLimit]
	}
	for i := range list.URLs {
		list.URLs[i].Rank = i + 1
	}
	return list, nil
}

// VulnStats implements ReportService. Findings are summed over the latest
// rating of every url, oldest date first.
func (s *reportServiceImpl) VulnStats(ctx context.Context, weeksBack int) (map[string][]VulnMeasurement, error) {
	now := s.timeFunc().UTC()
	out := make(map[string][]VulnMeasurement)

	for i := len(VulnStatTimeframes) - 1; i >= 0; i-- {
		when, err := statMoment(now, VulnStatTimeframes[i], weeksBack)
		if err != nil {
			return nil, err
		}
		ratings, err := s.ratings.LatestURLRatings(ctx, when)
		if err != nil {
			return nil, fmt.Errorf("failed to load ratings: %w", err)
		}

		totals := make(map[string]domain.Points)
		for _, r := range ratings {
			var doc urlDocument
			if err := json.Unmarshal(r.Calculation, &doc); err != nil {
				s.logger.Warn("skipping unreadable calculation", "rating_id", r.ID, "error", err)
				continue
			}
			for _, e := range doc.URL.Endpoints {
				for _, sc := range e.Ratings {
					totals[sc.Type] = totals[sc.Type].Add(sc.Points)
				}
			}
		}

		date := when.Format(vulnStatDateStamp)
		for scanType, p := range totals {
			out[scanType] = append(out[scanType], VulnMeasurement{
				Date:   date,
				High:   p.High,
				Medium: p.Medium,
				Low:    p.Low,
			})
		}
	}
	return out, nil
}

// LatestScans implements ReportService.
func (s *reportServiceImpl) LatestScans(ctx context.Context, scanType string) (*ScanList, error) {
	published := false
	for _, t := range PublishedScanTypes {
		if t == scanType {
			published = true
			break
		}
	}
	if !published {
		return nil, ErrNoReport
	}

	scans, err := s.scans.ListRecentByType(ctx, scanType, LatestScansLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load scans: %w", err)
	}
	return s.scanList(ctx, scans)
}

// UpdatesOnOrganization implements ReportService.
func (s *reportServiceImpl) UpdatesOnOrganization(ctx context.Context, organizationID int64) (*ScanList, error) {
	org, err := s.organizations.GetByID(ctx, organizationID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, ErrNoReport
		}
		return nil, fmt.Errorf("failed to load organization: %w", err)
	}

	urls, err := s.urls.ListByOrganization(ctx, organizationID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to load urls: %w", err)
	}

	var endpointIDs []int64
	for _, u := range urls {
		endpoints, err := s.endpoints.ListByURL(ctx, u.ID, false)
		if err != nil {
			return nil, fmt.Errorf("failed to load endpoints: %w", err)
		}
		for _, e := range endpoints {
			endpointIDs = append(endpointIDs, e.ID)
		}
	}

	var scans []*domain.Scan
	if len(endpointIDs) > 0 {
		scans, err = s.scans.ListByEndpoints(ctx, endpointIDs, s.timeFunc().UTC())
		if err != nil {
			return nil, fmt.Errorf("failed to load scans: %w", err)
		}
	}
	sort.SliceStable(scans, func(i, j int) bool {
		if !scans[i].RatingDeterminedOn.Equal(scans[j].RatingDeterminedOn) {
			return scans[i].RatingDeterminedOn.After(scans[j].RatingDeterminedOn)
		}
		return scans[i].ID > scans[j].ID
	})
	if len(scans) > OrganizationUpdates {
		scans = scans[:OrganizationUpdates]
	}

	list, err := s.scanList(ctx, scans)
	if err != nil {
		return nil, err
	}
	for i := range list.Scans {
		list.Scans[i].Organization = org.Name
		list.Scans[i].OrganizationID = org.ID
	}
	return list, nil
}

// scanList resolves the endpoint and url of every scan and scores it.
func (s *reportServiceImpl) scanList(ctx context.Context, scans []*domain.Scan) (*ScanList, error) {
	list := &ScanList{Scans: []ScanEntry{}, RenderDate: s.timeFunc().UTC(), Remark: Remark}
	policy := rating.DefaultPolicy()

	endpoints := make(map[int64]*domain.Endpoint)
	hosts := make(map[int64]string)
	for _, sc := range scans {
		e, ok := endpoints[sc.EndpointID]
		if !ok {
			var err error
			e, err = s.endpoints.GetByID(ctx, sc.EndpointID)
			if err != nil {
				return nil, fmt.Errorf("failed to load endpoint: %w", err)
			}
			endpoints[sc.EndpointID] = e
		}
		host, ok := hosts[e.URLID]
		if !ok {
			u, err := s.urls.GetByID(ctx, e.URLID)
			if err != nil {
				return nil, fmt.Errorf("failed to load url: %w", err)
			}
			host = u.URL
			hosts[e.URLID] = host
		}

		p := policy.Points(e, sc)
		list.Scans = append(list.Scans, ScanEntry{
			URL:                host,
			Service:            fmt.Sprintf("%s/%d (IPv%d)", e.Protocol, e.Port, e.IPVersion),
			Protocol:           e.Protocol,
			Port:               e.Port,
			IPVersion:          e.IPVersion,
			Type:               sc.Type,
			Rating:             sc.Rating,
			Explanation:        sc.Explanation,
			RatingDeterminedOn: sc.RatingDeterminedOn,
			LastScanMoment:     sc.LastScanMoment,
			High:               p.High,
			Medium:             p.Medium,
			Low:                p.Low,
		})
	}
	return list, nil
}

// WantedURLs implements ReportService. Organizations without any living url
// come first; only top level urls are shown.
func (s *reportServiceImpl) WantedURLs(ctx context.Context) (*WantedList, error) {
	now := s.timeFunc().UTC()
	list := &WantedList{
		Metadata:      ListMetadata{Type: "WantedOrganizations", RenderDate: now, DataFromTime: now, Remark: Remark},
		Organizations: []WantedOrganization{},
	}

	orgs, err := s.organizations.List(ctx, store.OrganizationFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to load organizations: %w", err)
	}

	for _, o := range orgs {
		urls, err := s.urls.ListByOrganization(ctx, o.ID, false)
		if err != nil {
			return nil, fmt.Errorf("failed to load urls: %w", err)
		}
		wanted := WantedOrganization{Name: o.Name, URLs: []string{}, NumURLs: len(urls)}
		for _, u := range urls {
			if u.IsTopLevel() {
				wanted.URLs = append(wanted.URLs, u.URL)
			}
		}
		list.Organizations = append(list.Organizations, wanted)
	}

	sort.SliceStable(list.Organizations, func(i, j int) bool {
		return list.Organizations[i].NumURLs < list.Organizations[j].NumURLs
	})
	if len(list.Organizations) > WantedURLsLimit {
		list.Organizations = list.Organizations[:WantedURLsLimit]
	}
	return list, nil
}
