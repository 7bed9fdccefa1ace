package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/hearthschool/hub-api/internal/models"
	appErrors "github.com/hearthschool/hub-api/pkg/errors"
)

type coursePlatformRepository interface {
	ListByStudentTermPlanIDs(ctx context.Context, ids []string) ([]models.CoursePlatform, error)
	FindByID(ctx context.Context, id string) (*models.CoursePlatform, error)
	Upsert(ctx context.Context, assignment *models.CoursePlatform) error
	UpdateChecked(ctx context.Context, assignment *models.CoursePlatform, expectedUpdatedAt time.Time) (bool, error)
	Delete(ctx context.Context, id string) error
}

type planLinkRepository interface {
	FindByID(ctx context.Context, id string) (*models.TermPlan, error)
	StudentLinks(ctx context.Context, termPlanID, studentID string) ([]models.StudentTermPlan, error)
	FindLink(ctx context.Context, id string) (*models.StudentTermPlan, error)
}

// CoursePlatformItem is one row of a platform plan save.
type CoursePlatformItem struct {
	Subject      string               `json:"subject" validate:"required"`
	Course       string               `json:"course" validate:"required"`
	PlatformURL  string               `json:"platform_url" validate:"omitempty,url"`
	PlatformName string               `json:"platform_name"`
	PlatformHelp *models.PlatformHelp `json:"platform_help,omitempty" validate:"omitempty,oneof=needs_help no_help_needed"`
	Notes        string               `json:"notes"`
}

// SavePlatformPlanRequest batches assignment rows for one student on a plan.
type SavePlatformPlanRequest struct {
	StudentID string               `json:"student_id" validate:"required"`
	Items     []CoursePlatformItem `json:"items" validate:"required,min=1,dive"`
}

// UpdateAssignmentRequest carries a guarded single-row update. The caller
// echoes back the updated_at it last read; a mismatch means someone else
// wrote in between and the update is rejected.
type UpdateAssignmentRequest struct {
	PlatformURL       string               `json:"platform_url" validate:"omitempty,url"`
	PlatformName      string               `json:"platform_name"`
	PlatformHelp      *models.PlatformHelp `json:"platform_help,omitempty" validate:"omitempty,oneof=needs_help no_help_needed"`
	Notes             string               `json:"notes"`
	ExpectedUpdatedAt time.Time            `json:"expected_updated_at" validate:"required"`
}

// CoursePlatformService manages the mapping from courses inside a student's
// term plan to external learning platforms.
type CoursePlatformService struct {
	repo      coursePlatformRepository
	plans     planLinkRepository
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCoursePlatformService constructs a CoursePlatformService.
func NewCoursePlatformService(repo coursePlatformRepository, plans planLinkRepository, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *CoursePlatformService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CoursePlatformService{repo: repo, plans: plans, audit: audit, validator: validate, logger: logger}
}

// Resolve returns the assignments for a term plan, optionally narrowed to a
// single student. An empty termPlanID short-circuits to an empty result so
// callers without an active plan never trigger a lookup.
func (s *CoursePlatformService) Resolve(ctx context.Context, actor Actor, termPlanID, studentID string) ([]models.CoursePlatform, error) {
	if strings.TrimSpace(termPlanID) == "" {
		return []models.CoursePlatform{}, nil
	}

	if _, err := s.authorizePlan(ctx, actor, termPlanID); err != nil {
		return nil, err
	}

	links, err := s.plans.StudentLinks(ctx, termPlanID, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student links")
	}

	linkIDs := make([]string, 0, len(links))
	for _, link := range links {
		linkIDs = append(linkIDs, link.ID)
	}

	assignments, err := s.repo.ListByStudentTermPlanIDs(ctx, linkIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments")
	}
	return assignments, nil
}

// SavePlan upserts one assignment per (subject, course) for the student's
// link on the plan. Saving the same payload twice leaves one row per pair.
func (s *CoursePlatformService) SavePlan(ctx context.Context, actor Actor, termPlanID string, req SavePlatformPlanRequest) ([]models.CoursePlatform, error) {
	if actor.Role == models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "students may not edit platform plans")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid platform plan payload")
	}

	if _, err := s.authorizePlan(ctx, actor, termPlanID); err != nil {
		return nil, err
	}

	links, err := s.plans.StudentLinks(ctx, termPlanID, req.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student link")
	}
	if len(links) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student is not linked to this plan")
	}
	link := links[0]

	saved := make([]models.CoursePlatform, 0, len(req.Items))
	for _, item := range req.Items {
		assignment := &models.CoursePlatform{
			StudentTermPlanID: link.ID,
			Subject:           strings.ToLower(strings.TrimSpace(item.Subject)),
			Course:            strings.TrimSpace(item.Course),
			PlatformURL:       item.PlatformURL,
			PlatformName:      item.PlatformName,
			PlatformHelp:      item.PlatformHelp,
			Notes:             item.Notes,
		}
		if err := s.repo.Upsert(ctx, assignment); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save assignment")
		}
		saved = append(saved, *assignment)
	}

	s.recordPlanSave(ctx, actor, termPlanID)

	return saved, nil
}

// Update applies a guarded single-assignment update. A stale expected
// updated_at yields ErrStaleWrite so the client can refetch and retry.
func (s *CoursePlatformService) Update(ctx context.Context, actor Actor, id string, req UpdateAssignmentRequest) (*models.CoursePlatform, error) {
	if actor.Role == models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "students may not edit platform plans")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	assignment, err := s.findAuthorized(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	assignment.PlatformURL = req.PlatformURL
	assignment.PlatformName = req.PlatformName
	assignment.PlatformHelp = req.PlatformHelp
	assignment.Notes = req.Notes

	updated, err := s.repo.UpdateChecked(ctx, assignment, req.ExpectedUpdatedAt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update assignment")
	}
	if !updated {
		return nil, appErrors.Clone(appErrors.ErrStaleWrite, "assignment was modified since it was read")
	}
	return assignment, nil
}

// Delete removes a single assignment row.
func (s *CoursePlatformService) Delete(ctx context.Context, actor Actor, id string) error {
	if actor.Role == models.RoleStudent {
		return appErrors.Clone(appErrors.ErrForbidden, "students may not edit platform plans")
	}
	if _, err := s.findAuthorized(ctx, actor, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete assignment")
	}
	return nil
}

// PlatformURLForCourse returns the platform URL assigned to a subject/course
// pair, or the empty string when no assignment matches.
func PlatformURLForCourse(assignments []models.CoursePlatform, subject, course string) string {
	subject = strings.ToLower(strings.TrimSpace(subject))
	course = strings.TrimSpace(course)
	for _, a := range assignments {
		if a.Subject == subject && a.Course == course {
			return a.PlatformURL
		}
	}
	return ""
}

// PlatformsForSubject returns all assignments for a subject.
func PlatformsForSubject(assignments []models.CoursePlatform, subject string) []models.CoursePlatform {
	subject = strings.ToLower(strings.TrimSpace(subject))
	matched := make([]models.CoursePlatform, 0)
	for _, a := range assignments {
		if a.Subject == subject {
			matched = append(matched, a)
		}
	}
	return matched
}

func (s *CoursePlatformService) authorizePlan(ctx context.Context, actor Actor, termPlanID string) (*models.TermPlan, error) {
	plan, err := s.plans.FindByID(ctx, termPlanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term plan not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term plan")
	}

	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleParent:
		if plan.ParentID != actor.UserID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "term plan belongs to another parent")
		}
	case models.RoleStudent:
		if actor.StudentID == nil {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "student account has no linked profile")
		}
		links, err := s.plans.StudentLinks(ctx, plan.ID, *actor.StudentID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check plan membership")
		}
		if len(links) == 0 {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "plan is not linked to this student")
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "unknown role")
	}

	return plan, nil
}

// findAuthorized loads an assignment and verifies the actor may touch its
// plan by walking the link back to the owning term plan.
func (s *CoursePlatformService) findAuthorized(ctx context.Context, actor Actor, id string) (*models.CoursePlatform, error) {
	assignment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}

	if !actor.IsAdmin() {
		link, err := s.plans.FindLink(ctx, assignment.StudentTermPlanID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment link not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment link")
		}
		if _, err := s.authorizePlan(ctx, actor, link.TermPlanID); err != nil {
			return nil, err
		}
	}

	return assignment, nil
}

func (s *CoursePlatformService) recordPlanSave(ctx context.Context, actor Actor, termPlanID string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionPlanSave,
		Resource:   "course_platform",
		ResourceID: &termPlanID,
		NewValues:  []byte(`{"status":"saved"}`),
	}); err != nil {
		s.logger.Warn("failed to record platform plan audit log", zap.Error(err))
	}
}
