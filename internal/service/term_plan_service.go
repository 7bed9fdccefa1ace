package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/hearthschool/hub-api/internal/models"
	appErrors "github.com/hearthschool/hub-api/pkg/errors"
)

const defaultActivityName = "Study Block"

type termPlanRepository interface {
	List(ctx context.Context, filter models.TermPlanFilter) ([]models.TermPlan, int, error)
	FindByID(ctx context.Context, id string) (*models.TermPlan, error)
	FindLatestByStudent(ctx context.Context, studentID string) (*models.TermPlan, error)
	Create(ctx context.Context, plan *models.TermPlan, studentIDs []string, blocks []models.TimeBlock) error
	Update(ctx context.Context, plan *models.TermPlan, blocks []models.TimeBlock, regenerate bool) error
	LinkStudent(ctx context.Context, termPlanID, studentID string) (*models.StudentTermPlan, error)
	StudentLinks(ctx context.Context, termPlanID, studentID string) ([]models.StudentTermPlan, error)
	CountAssignments(ctx context.Context, termPlanID string) (int, error)
	Delete(ctx context.Context, id string) error
}

type timeBlockRepository interface {
	ListByTermPlan(ctx context.Context, termPlanID string) ([]models.TimeBlock, error)
	FindByID(ctx context.Context, id string) (*models.TimeBlock, error)
	UpdateActivity(ctx context.Context, id, activityName string) error
}

type planStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// CreateTermPlanRequest carries the scheduling preferences for a new plan.
type CreateTermPlanRequest struct {
	Name               string   `json:"name" validate:"required"`
	DaysPerWeek        int      `json:"days_per_week" validate:"required,gte=1,lte=7"`
	StartTime          string   `json:"start_time" validate:"required"`
	EndTime            string   `json:"end_time" validate:"required"`
	BlockLengthMinutes int      `json:"block_length_minutes" validate:"required,gte=5,lte=480"`
	StudentIDs         []string `json:"student_ids" validate:"required,min=1,dive,required"`
}

// UpdateTermPlanRequest carries partial plan changes. Touching any of the
// schedule preference fields regenerates the plan's time blocks.
type UpdateTermPlanRequest struct {
	Name               *string `json:"name,omitempty"`
	DaysPerWeek        *int    `json:"days_per_week,omitempty" validate:"omitempty,gte=1,lte=7"`
	StartTime          *string `json:"start_time,omitempty"`
	EndTime            *string `json:"end_time,omitempty"`
	BlockLengthMinutes *int    `json:"block_length_minutes,omitempty" validate:"omitempty,gte=5,lte=480"`
}

// TermPlanService manages term plans and their generated time blocks.
type TermPlanService struct {
	repo      termPlanRepository
	blocks    timeBlockRepository
	students  planStudentReader
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTermPlanService constructs a TermPlanService.
func NewTermPlanService(repo termPlanRepository, blocks timeBlockRepository, students planStudentReader, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *TermPlanService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &TermPlanService{repo: repo, blocks: blocks, students: students, audit: audit, validator: validate, logger: logger}
}

// List returns plans visible to the actor.
func (s *TermPlanService) List(ctx context.Context, actor Actor, filter models.TermPlanFilter) ([]models.TermPlan, *models.Pagination, error) {
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleParent:
		filter.ParentID = actor.UserID
	case models.RoleStudent:
		if actor.StudentID == nil {
			return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "student account has no linked profile")
		}
		filter.StudentID = *actor.StudentID
	default:
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "unknown role")
	}

	plans, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list term plans")
	}
	return plans, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns a plan with its blocks and linked students.
func (s *TermPlanService) Get(ctx context.Context, actor Actor, id string) (*models.TermPlanDetail, error) {
	plan, err := s.findVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, plan)
}

// LatestForStudent returns the most recently created plan linked to the
// student, with its blocks. Returns ErrNotFound when the student has no plan.
func (s *TermPlanService) LatestForStudent(ctx context.Context, actor Actor, studentID string) (*models.TermPlanDetail, error) {
	if err := s.authorizeStudentScope(ctx, actor, studentID); err != nil {
		return nil, err
	}

	plan, err := s.repo.FindLatestByStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student has no term plan")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load latest term plan")
	}
	return s.detail(ctx, plan)
}

// Create validates the preferences, generates the weekly time blocks and
// persists the plan with its student links in one transaction.
func (s *TermPlanService) Create(ctx context.Context, actor Actor, req CreateTermPlanRequest) (*models.TermPlanDetail, error) {
	if actor.Role != models.RoleParent && actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only parents may create term plans")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid term plan payload")
	}

	plan := &models.TermPlan{
		ParentID:           actor.UserID,
		Name:               strings.TrimSpace(req.Name),
		DaysPerWeek:        req.DaysPerWeek,
		StartTime:          req.StartTime,
		EndTime:            req.EndTime,
		BlockLengthMinutes: req.BlockLengthMinutes,
	}

	blocks, err := generateBlocks(plan)
	if err != nil {
		return nil, err
	}

	for _, studentID := range req.StudentIDs {
		if err := s.authorizeStudentScope(ctx, actor, studentID); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Create(ctx, plan, req.StudentIDs, blocks); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create term plan")
	}

	s.recordPlanSave(ctx, actor, plan.ID)

	return s.detail(ctx, plan)
}

// Update applies changes to a plan. When any schedule preference changed the
// existing blocks are dropped and regenerated, discarding manual activity
// renames on them.
func (s *TermPlanService) Update(ctx context.Context, actor Actor, id string, req UpdateTermPlanRequest) (*models.TermPlanDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid term plan payload")
	}

	plan, err := s.findVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "students may not edit term plans")
	}

	regenerate := false
	if req.Name != nil {
		plan.Name = strings.TrimSpace(*req.Name)
	}
	if req.DaysPerWeek != nil && *req.DaysPerWeek != plan.DaysPerWeek {
		plan.DaysPerWeek = *req.DaysPerWeek
		regenerate = true
	}
	if req.StartTime != nil && *req.StartTime != plan.StartTime {
		plan.StartTime = *req.StartTime
		regenerate = true
	}
	if req.EndTime != nil && *req.EndTime != plan.EndTime {
		plan.EndTime = *req.EndTime
		regenerate = true
	}
	if req.BlockLengthMinutes != nil && *req.BlockLengthMinutes != plan.BlockLengthMinutes {
		plan.BlockLengthMinutes = *req.BlockLengthMinutes
		regenerate = true
	}
	plan.UpdatedAt = time.Now().UTC()

	var blocks []models.TimeBlock
	if regenerate {
		blocks, err = generateBlocks(plan)
		if err != nil {
			return nil, err
		}
	}

	if err := s.repo.Update(ctx, plan, blocks, regenerate); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update term plan")
	}

	s.recordPlanSave(ctx, actor, plan.ID)

	return s.detail(ctx, plan)
}

// LinkStudent attaches an additional student to an existing plan. Linking
// the same student twice is a no-op.
func (s *TermPlanService) LinkStudent(ctx context.Context, actor Actor, termPlanID, studentID string) (*models.StudentTermPlan, error) {
	plan, err := s.findVisible(ctx, actor, termPlanID)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "students may not edit term plans")
	}
	if err := s.authorizeStudentScope(ctx, actor, studentID); err != nil {
		return nil, err
	}

	link, err := s.repo.LinkStudent(ctx, plan.ID, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to link student")
	}
	return link, nil
}

// RenameBlock updates the activity label of a single generated block.
func (s *TermPlanService) RenameBlock(ctx context.Context, actor Actor, blockID, activityName string) (*models.TimeBlock, error) {
	activityName = strings.TrimSpace(activityName)
	if activityName == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "activity name must not be empty")
	}

	block, err := s.blocks.FindByID(ctx, blockID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "time block not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load time block")
	}

	if _, err := s.findVisible(ctx, actor, block.TermPlanID); err != nil {
		return nil, err
	}
	if actor.Role == models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "students may not edit time blocks")
	}

	if err := s.blocks.UpdateActivity(ctx, block.ID, activityName); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rename time block")
	}
	block.ActivityName = activityName
	return block, nil
}

// Delete removes a plan with its blocks and student links.
func (s *TermPlanService) Delete(ctx context.Context, actor Actor, id string) error {
	plan, err := s.findVisible(ctx, actor, id)
	if err != nil {
		return err
	}
	if actor.Role == models.RoleStudent {
		return appErrors.Clone(appErrors.ErrForbidden, "students may not delete term plans")
	}

	assignments, err := s.repo.CountAssignments(ctx, plan.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count plan assignments")
	}
	if assignments > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "term plan still has platform assignments")
	}

	if err := s.repo.Delete(ctx, plan.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete term plan")
	}
	return nil
}

func (s *TermPlanService) detail(ctx context.Context, plan *models.TermPlan) (*models.TermPlanDetail, error) {
	blocks, err := s.blocks.ListByTermPlan(ctx, plan.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load time blocks")
	}

	links, err := s.repo.StudentLinks(ctx, plan.ID, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student links")
	}

	studentIDs := make([]string, 0, len(links))
	for _, link := range links {
		studentIDs = append(studentIDs, link.StudentID)
	}

	return &models.TermPlanDetail{TermPlan: *plan, StudentIDs: studentIDs, TimeBlocks: blocks}, nil
}

func (s *TermPlanService) findVisible(ctx context.Context, actor Actor, id string) (*models.TermPlan, error) {
	plan, err := s.repo.FindByID(ctx, id)
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
		links, err := s.repo.StudentLinks(ctx, plan.ID, *actor.StudentID)
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

// authorizeStudentScope verifies the actor may act on data for studentID.
func (s *TermPlanService) authorizeStudentScope(ctx context.Context, actor Actor, studentID string) error {
	if actor.CanActForStudent(studentID) {
		return nil
	}
	if actor.Role != models.RoleParent {
		return appErrors.Clone(appErrors.ErrForbidden, "not allowed to act for this student")
	}

	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.ParentID != actor.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "student belongs to another parent")
	}
	return nil
}

func (s *TermPlanService) recordPlanSave(ctx context.Context, actor Actor, planID string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionPlanSave,
		Resource:   "term_plan",
		ResourceID: &planID,
		NewValues:  []byte(`{"status":"saved"}`),
	}); err != nil {
		s.logger.Warn("failed to record plan save audit log", zap.Error(err))
	}
}

// generateBlocks lays out the weekly schedule from the plan preferences:
// for each scheduled day, consecutive blocks of BlockLengthMinutes are
// stacked from StartTime up to EndTime. A trailing remainder shorter than
// the block length is not emitted.
func generateBlocks(plan *models.TermPlan) ([]models.TimeBlock, error) {
	start, err := parseClock(plan.StartTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid start_time %q", plan.StartTime))
	}
	end, err := parseClock(plan.EndTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid end_time %q", plan.EndTime))
	}
	if end <= start {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_time must be after start_time")
	}
	if end-start < plan.BlockLengthMinutes {
		return nil, appErrors.Clone(appErrors.ErrValidation, "day is shorter than one block")
	}

	blocks := make([]models.TimeBlock, 0, plan.DaysPerWeek*((end-start)/plan.BlockLengthMinutes))
	for weekday := 1; weekday <= plan.DaysPerWeek; weekday++ {
		for cursor := start; cursor+plan.BlockLengthMinutes <= end; cursor += plan.BlockLengthMinutes {
			blocks = append(blocks, models.TimeBlock{
				Weekday:      weekday,
				StartTime:    formatClock(cursor),
				EndTime:      formatClock(cursor + plan.BlockLengthMinutes),
				ActivityName: defaultActivityName,
			})
		}
	}
	return blocks, nil
}

// parseClock converts an "HH:MM" time of day into minutes since midnight.
func parseClock(value string) (int, error) {
	parsed, err := time.Parse("15:04", value)
	if err != nil {
		return 0, err
	}
	return parsed.Hour()*60 + parsed.Minute(), nil
}

func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
