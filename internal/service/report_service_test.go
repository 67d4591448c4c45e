package service

import (
	"context"
	"testing"
	"time"

	"github.com/fossabot/failmap/internal/domain"
	"github.com/fossabot/failmap/internal/domain/rating"
	"github.com/fossabot/failmap/internal/store"
	"github.com/fossabot/failmap/internal/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reportFixture holds three organizations: a red one rated two weeks ago, a
// green one rated now and one that only has a default rating.
type reportFixture struct {
	svc     *reportServiceImpl
	stores  store.Stores
	red     *domain.Organization
	green   *domain.Organization
	unrated *domain.Organization
}

func rateOrganization(t *testing.T, stores store.Stores, o *domain.Organization, host string, hstsPassed bool, when time.Time) {
	t.Helper()
	calc := rating.NewCalculator(nil)

	u := &domain.URL{ID: o.ID * 10, URL: host}
	e := &domain.Endpoint{ID: o.ID * 100, URLID: u.ID, Protocol: domain.ProtocolHTTPS, Port: 443, IPVersion: 4}
	scan, err := domain.NewScan(e.ID, domain.ScanStrictTransportSecurity, hstsPassed, "hsts")
	require.NoError(t, err)

	uc := calc.URL(u, []*domain.Endpoint{e}, []*domain.Scan{scan})
	r, err := calc.Organization(o, []rating.URLCalculation{uc}).OrganizationRating(when)
	require.NoError(t, err)
	require.NoError(t, stores.Ratings.SaveOrganizationRating(context.Background(), r))
}

func newReportFixture(t *testing.T) *reportFixture {
	t.Helper()
	ctx := context.Background()
	_, stores := testdb.Stores(t)

	f := &reportFixture{
		stores:  stores,
		red:     addOrganization(t, stores, "Gemeente Delfzijl"),
		green:   addOrganization(t, stores, "Gemeente Eemsmond"),
		unrated: addOrganization(t, stores, "Gemeente Loppersum"),
	}
	f.red.TwitterHandle = "@delfzijl"
	require.NoError(t, stores.Organizations.Update(ctx, f.red))

	rateOrganization(t, stores, f.red, "www.delfzijl.nl", false, fixedNow.AddDate(0, 0, -14))
	rateOrganization(t, stores, f.green, "www.eemsmond.nl", true, fixedNow)
	require.NoError(t, stores.Ratings.SaveOrganizationRating(ctx,
		rating.DefaultOrganizationRating(f.unrated, fixedNow.AddDate(0, 0, -30))))

	require.NoError(t, stores.Promises.Create(ctx, &domain.Promise{
		OrganizationID: f.red.ID,
		CreatedOn:      fixedNow.AddDate(0, 0, -1),
		ExpiresOn:      fixedNow.AddDate(0, 1, 0),
		Notes:          "HSTS wordt ingeschakeld",
	}))

	f.svc = NewReportService(stores, testLogger()).(*reportServiceImpl)
	f.svc.timeFunc = func() time.Time { return fixedNow }
	return f
}

func TestWeeksBack(t *testing.T) {
	t.Parallel()
	assert.Equal(t, fixedNow, WeeksBack(fixedNow, 0))
	assert.Equal(t, fixedNow, WeeksBack(fixedNow, -2))
	assert.Equal(t, time.Date(2024, time.February, 16, 12, 0, 0, 0, time.UTC), WeeksBack(fixedNow, 2))
}

func TestStatMoment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		label   string
		want    time.Time
		wantErr bool
	}{
		{label: "now", want: fixedNow},
		{label: "7 days ago", want: fixedNow.AddDate(0, 0, -7)},
		{label: "2 weeks ago", want: fixedNow.AddDate(0, 0, -14)},
		{label: "1 month ago", want: fixedNow.AddDate(0, -1, 0)},
		{label: "3 months ago", want: fixedNow.AddDate(0, -3, 0)},
		{label: "yesterday", wantErr: true},
		{label: "2 years ago", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			t.Parallel()
			got, err := statMoment(fixedNow, tt.label, 0)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReportService_OrganizationReport(t *testing.T) {
	t.Parallel()
	f := newReportFixture(t)
	ctx := context.Background()

	t.Run("latest rating with active promise", func(t *testing.T) {
		report, err := f.svc.OrganizationReport(ctx, f.red.ID, 0)
		require.NoError(t, err)
		assert.Equal(t, "Gemeente Delfzijl", report.Name)
		assert.Equal(t, "@delfzijl", report.TwitterHandle)
		assert.Equal(t, 100, report.Rating)
		assert.Equal(t, 1, report.High)
		assert.Contains(t, string(report.Calculation), "www.delfzijl.nl")
		require.NotNil(t, report.Promise)
		assert.True(t, fixedNow.AddDate(0, 1, 0).Equal(report.Promise.ExpiresOn))
	})

	t.Run("two weeks back still finds the rating", func(t *testing.T) {
		report, err := f.svc.OrganizationReport(ctx, f.red.ID, 2)
		require.NoError(t, err)
		assert.Equal(t, 100, report.Rating)
	})

	t.Run("no rating before the first one", func(t *testing.T) {
		_, err := f.svc.OrganizationReport(ctx, f.red.ID, 3)
		assert.ErrorIs(t, err, ErrNoReport)
	})

	t.Run("no promise", func(t *testing.T) {
		report, err := f.svc.OrganizationReport(ctx, f.green.ID, 0)
		require.NoError(t, err)
		assert.Nil(t, report.Promise)
	})

	t.Run("unknown organization", func(t *testing.T) {
		_, err := f.svc.OrganizationReport(ctx, 404, 0)
		assert.ErrorIs(t, err, ErrNoReport)
	})
}

func TestReportService_Stats(t *testing.T) {
	t.Parallel()
	f := newReportFixture(t)

	stats, err := f.svc.Stats(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, stats, len(StatTimeframes))

	now := stats["now"]
	assert.Equal(t, 3, now.TotalOrganizations)
	assert.Equal(t, 1, now.NoRating)
	assert.Equal(t, 2, now.IncludedOrganizations)
	assert.Equal(t, 1, now.Red)
	assert.Equal(t, 1, now.Green)
	assert.Equal(t, 50, now.RedPercentage)
	assert.Equal(t, 50, now.GreenPercentage)
	assert.Equal(t, 2, now.TotalURLs)
	assert.Equal(t, 2, now.Endpoints)
	assert.Equal(t, 2, now.Endpoint["https/443 (IPv4)"])
	assert.Equal(t, 2, now.Explained[domain.ScanStrictTransportSecurity]["total"])

	twoWeeks := stats["2 weeks ago"]
	assert.Equal(t, 2, twoWeeks.TotalOrganizations)
	assert.Equal(t, 1, twoWeeks.Red)
	assert.Equal(t, 100, twoWeeks.RedPercentage)

	threeWeeks := stats["3 weeks ago"]
	assert.Equal(t, 1, threeWeeks.TotalOrganizations)
	assert.Zero(t, threeWeeks.IncludedOrganizations)
	assert.Zero(t, threeWeeks.RedPercentage)
}

func TestReportService_TopFail(t *testing.T) {
	t.Parallel()
	f := newReportFixture(t)
	ctx := context.Background()

	list, err := f.svc.TopFail(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "toplist", list.Metadata.Type)
	assert.Equal(t, Remark, list.Metadata.Remark)
	require.Len(t, list.Ranking, 1)

	top := list.Ranking[0]
	assert.Equal(t, 1, top.Rank)
	assert.Equal(t, f.red.ID, top.OrganizationID)
	assert.Equal(t, "municipality", top.OrganizationType)
	assert.Equal(t, "@delfzijl", top.OrganizationTwitter)
	assert.Equal(t, 1, top.High)

	list, err = f.svc.TopFail(ctx, 4)
	require.NoError(t, err)
	assert.Empty(t, list.Ranking)
}

func TestReportService_TopFailOrdering(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	_, stores := testdb.Stores(t)

	save := func(o *domain.Organization, points domain.Points) {
		r := rating.DefaultOrganizationRating(o, fixedNow)
		r.Points = points
		r.Rating = points.Score()
		require.NoError(t, stores.Ratings.SaveOrganizationRating(ctx, r))
	}
	save(addOrganization(t, stores, "Gemeente Bedum"), domain.Points{Medium: 3})
	save(addOrganization(t, stores, "Gemeente Appingedam"), domain.Points{Medium: 3})
	save(addOrganization(t, stores, "Gemeente Winsum"), domain.Points{High: 1})
	save(addOrganization(t, stores, "Gemeente Uithuizen"), domain.Points{Low: 9})

	svc := NewReportService(stores, testLogger()).(*reportServiceImpl)
	svc.timeFunc = func() time.Time { return fixedNow }

	list, err := svc.TopFail(ctx, 0)
	require.NoError(t, err)

	names := make([]string, len(list.Ranking))
	for i, r := range list.Ranking {
		names[i] = r.OrganizationName
		assert.Equal(t, i+1, r.Rank)
	}
	assert.Equal(t, []string{"Gemeente Winsum", "Gemeente Appingedam", "Gemeente Bedum"}, names)
}
