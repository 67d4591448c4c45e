package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fossabot/failmap/internal/domain"
	"github.com/fossabot/failmap/internal/scanner"
	"github.com/fossabot/failmap/internal/store"
	"github.com/fossabot/failmap/internal/task"
	"github.com/google/uuid"
)

// Admin action names.
const (
	ActionScanSecurityHeaders = "scan_security_headers"
	ActionScanPlainHTTP       = "scan_plain_http"
	ActionScanDummy           = "scan_dummy"
	ActionRebuildRatings      = "rebuild_ratings"
	ActionDeclareDead         = "declare_dead"
)

// Action is an operation the admin can run on selected organizations.
type Action struct {
	Name  string
	Label string
	// TaskType is the task enqueued per organization; empty for actions
	// that run immediately.
	TaskType string
}

var adminActions = []Action{
	{Name: ActionScanSecurityHeaders, Label: "Scan Security Headers", TaskType: scanner.TypeScanSecurityHeaders},
	{Name: ActionScanPlainHTTP, Label: "Scan Plain HTTP", TaskType: scanner.TypeScanPlainHTTP},
	{Name: ActionScanDummy, Label: "Scan Dummy", TaskType: scanner.TypeScanDummy},
	{Name: ActionRebuildRatings, Label: "Rebuild rating", TaskType: scanner.TypeRebuildRatings},
	{Name: ActionDeclareDead, Label: "Declare dead"},
}

// ActionResult reports what an admin action did.
type ActionResult struct {
	Action  string      `json:"action"`
	TaskIDs []uuid.UUID `json:"task_ids"`
	// Affected counts the organizations the action was applied to.
	Affected int `json:"affected"`
}

// TaskSubmitter enqueues tasks and reports their state. *task.Client implements it.
type TaskSubmitter interface {
	Submit(ctx context.Context, taskType string, payload any) (uuid.UUID, error)
	Status(ctx context.Context, id uuid.UUID) (*task.Task, error)
}

// AdminService backs the admin pages.
type AdminService interface {
	// Actions lists the available actions in display order.
	Actions() []Action

	// Organizations lists every organization, dead ones included.
	Organizations(ctx context.Context) ([]*domain.Organization, error)

	// Run applies action to the organizations with the given ids. Task
	// actions enqueue one task per organization.
	// Returns ErrUnknownAction or ErrNoOrganizations for invalid input.
	Run(ctx context.Context, action string, organizationIDs []int64) (*ActionResult, error)

	// TaskStatus returns the stored state of a submitted task.
	TaskStatus(ctx context.Context, id uuid.UUID) (*task.Task, error)
}

type adminServiceImpl struct {
	organizations store.OrganizationStore
	tasks         TaskSubmitter
	logger        *slog.Logger
	timeFunc      func() time.Time
}

var _ AdminService = (*adminServiceImpl)(nil)

// NewAdminService creates an AdminService.
func NewAdminService(organizations store.OrganizationStore, tasks TaskSubmitter, logger *slog.Logger) AdminService {
	return &adminServiceImpl{
		organizations: organizations,
		tasks:         tasks,
		logger:        logger.With("component", "admin_service"),
		timeFunc:      time.Now,
	}
}

// Actions implements AdminService.
func (s *adminServiceImpl) Actions() []Action {
	out := make([]Action, len(adminActions))
	copy(out, adminActions)
	return out
}

// Organizations implements AdminService.
func (s *adminServiceImpl) Organizations(ctx context.Context) ([]*domain.Organization, error) {
	return s.organizations.List(ctx, store.OrganizationFilter{IncludeDead: true})
}

func lookupAction(name string) (Action, bool) {
	for _, a := range adminActions {
		if a.Name == name {
			return a, true
		}
	}
	return Action{}, false
}

// Run implements AdminService.
func (s *adminServiceImpl) Run(ctx context.Context, name string, organizationIDs []int64) (*ActionResult, error) {
	action, ok := lookupAction(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, name)
	}
	if len(organizationIDs) == 0 {
		return nil, ErrNoOrganizations
	}

	orgs, err := s.organizations.List(ctx, store.OrganizationFilter{
		IDs:         organizationIDs,
		IncludeDead: action.Name == ActionDeclareDead,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load organizations: %w", err)
	}
	if len(orgs) == 0 {
		return nil, ErrNoOrganizations
	}

	result := &ActionResult{Action: action.Name, TaskIDs: []uuid.UUID{}}
	log := s.logger.With("action", action.Name)

	if action.TaskType == "" {
		now := s.timeFunc().UTC()
		for _, o := range orgs {
			if o.IsDead {
				continue
			}
			o.Kill(now, "Declared dead by admin")
			if err := s.organizations.Update(ctx, o); err != nil {
				return result, fmt.Errorf("failed to declare %s dead: %w", o.Name, err)
			}
			result.Affected++
		}
		log.Info("admin action applied", "organizations", result.Affected)
		return result, nil
	}

	for _, o := range orgs {
		id, err := s.tasks.Submit(ctx, action.TaskType, scanner.Filter{OrganizationIDs: []int64{o.ID}})
		if err != nil {
			return result, fmt.Errorf("failed to submit %s for %s: %w", action.TaskType, o.Name, err)
		}
		result.TaskIDs = append(result.TaskIDs, id)
		result.Affected++
	}
	log.Info("admin action enqueued", "organizations", result.Affected, "tasks", len(result.TaskIDs))
	return result, nil
}

// TaskStatus implements AdminService.
func (s *adminServiceImpl) TaskStatus(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	return s.tasks.Status(ctx, id)
}
