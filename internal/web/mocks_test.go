package web

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/fossabot/failmap/internal/domain"
	"github.com/fossabot/failmap/internal/service"
	"github.com/fossabot/failmap/internal/store"
	"github.com/fossabot/failmap/internal/task"
	"github.com/google/uuid"
)

type mockReportService struct {
	report    *service.OrganizationReport
	stats     map[string]*service.Measurement
	topfail   *service.TopList
	topwin    *service.TopList
	urls      *service.URLList
	vulnstats map[string][]service.VulnMeasurement
	scans     *service.ScanList
	wanted    *service.WantedList
	err       error
	weeksSeen []int
	scanTypes []string
	orgsSeen  []int64
}

func (m *mockReportService) OrganizationReport(_ context.Context, _ int64, weeksBack int) (*service.OrganizationReport, error) {
	m.weeksSeen = append(m.weeksSeen, weeksBack)
	return m.report, m.err
}

func (m *mockReportService) Stats(_ context.Context, weeksBack int) (map[string]*service.Measurement, error) {
	m.weeksSeen = append(m.weeksSeen, weeksBack)
	return m.stats, m.err
}

func (m *mockReportService) TopFail(_ context.Context, weeksBack int) (*service.TopList, error) {
	m.weeksSeen = append(m.weeksSeen, weeksBack)
	return m.topfail, m.err
}

func (m *mockReportService) TopWin(_ context.Context, weeksBack int) (*service.TopList, error) {
	m.weeksSeen = append(m.weeksSeen, weeksBack)
	return m.topwin, m.err
}

func (m *mockReportService) TerribleURLs(_ context.Context, weeksBack int) (*service.URLList, error) {
	m.weeksSeen = append(m.weeksSeen, weeksBack)
	return m.urls, m.err
}

func (m *mockReportService) VulnStats(_ context.Context, weeksBack int) (map[string][]service.VulnMeasurement, error) {
	m.weeksSeen = append(m.weeksSeen, weeksBack)
	return m.vulnstats, m.err
}

func (m *mockReportService) LatestScans(_ context.Context, scanType string) (*service.ScanList, error) {
	m.scanTypes = append(m.scanTypes, scanType)
	return m.scans, m.err
}

func (m *mockReportService) UpdatesOnOrganization(_ context.Context, organizationID int64) (*service.ScanList, error) {
	m.orgsSeen = append(m.orgsSeen, organizationID)
	return m.scans, m.err
}

func (m *mockReportService) WantedURLs(context.Context) (*service.WantedList, error) {
	return m.wanted, m.err
}

type runCall struct {
	action string
	ids    []int64
}

type mockAdminService struct {
	organizations []*domain.Organization
	result        *service.ActionResult
	runErr        error
	tasks         map[uuid.UUID]*task.Task
	runs          []runCall
}

func (m *mockAdminService) Actions() []service.Action {
	return []service.Action{
		{Name: service.ActionScanDummy, Label: "Scan Dummy", TaskType: "scan_dummy"},
		{Name: service.ActionDeclareDead, Label: "Declare dead"},
	}
}

func (m *mockAdminService) Organizations(context.Context) ([]*domain.Organization, error) {
	return m.organizations, nil
}

func (m *mockAdminService) Run(_ context.Context, action string, ids []int64) (*service.ActionResult, error) {
	m.runs = append(m.runs, runCall{action: action, ids: ids})
	if m.runErr != nil {
		return nil, m.runErr
	}
	return m.result, nil
}

func (m *mockAdminService) TaskStatus(_ context.Context, id uuid.UUID) (*task.Task, error) {
	t, ok := m.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return t, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testOrganizations() []*domain.Organization {
	since := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	return []*domain.Organization{
		{ID: 1, Name: "Gemeente Testdorp", Country: "NL"},
		{ID: 2, Name: "Gemeente Haren", Country: "NL", IsDead: true, IsDeadSince: &since},
	}
}
