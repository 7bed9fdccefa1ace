package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hearthschool/hub-api/internal/models"
	appErrors "github.com/hearthschool/hub-api/pkg/errors"
)

const (
	parentDashboardCachePrefix  = "dashboard:parent:"
	studentDashboardCachePrefix = "dashboard:student:"
)

// DashboardService aggregates cross-module read models for the landing
// pages. Results are cached briefly since they fan out over several tables.
type DashboardService struct {
	students    studentRepository
	plans       termPlanRepository
	blocks      timeBlockRepository
	assignments coursePlatformRepository
	rewards     rewardRepository
	cache       *CacheService
	metrics     *MetricsService
	cacheTTL    time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

// NewDashboardService constructs a DashboardService.
func NewDashboardService(students studentRepository, plans termPlanRepository, blocks timeBlockRepository, assignments coursePlatformRepository, rewards rewardRepository, cache *CacheService, metrics *MetricsService, cacheTTL time.Duration, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		students:    students,
		plans:       plans,
		blocks:      blocks,
		assignments: assignments,
		rewards:     rewards,
		cache:       cache,
		metrics:     metrics,
		cacheTTL:    cacheTTL,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *DashboardService) observeAggregate(label string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveDBQuery(label, time.Since(start))
	}
}

// Parent builds the parent landing view: each child with their current plan
// and reward snapshot.
func (s *DashboardService) Parent(ctx context.Context, actor Actor) (*models.ParentDashboard, error) {
	if actor.Role != models.RoleParent && actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "parent dashboard requires a parent account")
	}

	cacheKey := parentDashboardCachePrefix + actor.UserID
	var cached models.ParentDashboard
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return &cached, nil
	}

	defer s.observeAggregate("parent_dashboard", time.Now())

	students, _, err := s.students.List(ctx, models.StudentFilter{ParentID: actor.UserID, PageSize: 100})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}

	dashboard := &models.ParentDashboard{ParentID: actor.UserID, Students: make([]models.ParentDashboardStudent, 0, len(students)), GeneratedAt: s.now()}
	for _, student := range students {
		entry := models.ParentDashboardStudent{Student: student}

		if plan, err := s.plans.FindLatestByStudent(ctx, student.ID); err == nil {
			entry.LatestPlan = plan
			count, err := s.countUnassignedBlocks(ctx, plan.ID, student.ID)
			if err != nil {
				return nil, err
			}
			entry.UnassignedBlocks = count
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load latest plan")
		}

		if profile, err := s.rewards.FindProfile(ctx, student.ID); err == nil {
			entry.Rewards = profile
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reward profile")
		}

		dashboard.Students = append(dashboard.Students, entry)
	}

	if err := s.cache.Set(ctx, cacheKey, dashboard, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache parent dashboard", zap.Error(err))
	}

	return dashboard, nil
}

// Student builds the student landing view: today's blocks from the current
// plan, the platform assignments, and the reward snapshot.
func (s *DashboardService) Student(ctx context.Context, actor Actor, studentID string) (*models.StudentDashboard, error) {
	if err := s.authorize(ctx, actor, studentID); err != nil {
		return nil, err
	}

	cacheKey := studentDashboardCachePrefix + studentID
	var cached models.StudentDashboard
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return &cached, nil
	}

	defer s.observeAggregate("student_dashboard", time.Now())

	dashboard := &models.StudentDashboard{
		StudentID:   studentID,
		TodayBlocks: []models.TimeBlock{},
		Assignments: []models.CoursePlatform{},
		GeneratedAt: s.now(),
	}

	plan, err := s.plans.FindLatestByStudent(ctx, studentID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load latest plan")
	}

	if plan != nil {
		dashboard.Plan = plan

		blocks, err := s.blocks.ListByTermPlan(ctx, plan.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load time blocks")
		}
		weekday := isoWeekday(s.now())
		for _, block := range blocks {
			if block.Weekday == weekday {
				dashboard.TodayBlocks = append(dashboard.TodayBlocks, block)
			}
		}

		links, err := s.plans.StudentLinks(ctx, plan.ID, studentID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student links")
		}
		linkIDs := make([]string, 0, len(links))
		for _, link := range links {
			linkIDs = append(linkIDs, link.ID)
		}
		assignments, err := s.assignments.ListByStudentTermPlanIDs(ctx, linkIDs)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments")
		}
		dashboard.Assignments = assignments
	}

	if profile, err := s.rewards.FindProfile(ctx, studentID); err == nil {
		dashboard.Rewards = profile
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reward profile")
	}

	if err := s.cache.Set(ctx, cacheKey, dashboard, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache student dashboard", zap.Error(err))
	}

	return dashboard, nil
}

// Invalidate drops cached dashboards touching the given parent or student.
func (s *DashboardService) Invalidate(ctx context.Context, parentID, studentID string) {
	if parentID != "" {
		if err := s.cache.Invalidate(ctx, fmt.Sprintf("%s%s*", parentDashboardCachePrefix, parentID)); err != nil {
			s.logger.Warn("failed to invalidate parent dashboard cache", zap.Error(err))
		}
	}
	if studentID != "" {
		if err := s.cache.Invalidate(ctx, fmt.Sprintf("%s%s*", studentDashboardCachePrefix, studentID)); err != nil {
			s.logger.Warn("failed to invalidate student dashboard cache", zap.Error(err))
		}
	}
}

// countUnassignedBlocks counts the plan's blocks whose activity subject has
// no course-platform assignment for the student yet.
func (s *DashboardService) countUnassignedBlocks(ctx context.Context, planID, studentID string) (int, error) {
	blocks, err := s.blocks.ListByTermPlan(ctx, planID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load time blocks")
	}
	if len(blocks) == 0 {
		return 0, nil
	}

	links, err := s.plans.StudentLinks(ctx, planID, studentID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student links")
	}
	linkIDs := make([]string, 0, len(links))
	for _, link := range links {
		linkIDs = append(linkIDs, link.ID)
	}
	assignments, err := s.assignments.ListByStudentTermPlanIDs(ctx, linkIDs)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments")
	}

	assigned := make(map[string]struct{}, len(assignments))
	for _, a := range assignments {
		assigned[a.Subject] = struct{}{}
	}

	count := 0
	for _, block := range blocks {
		subject := strings.ToLower(strings.TrimSpace(block.ActivityName))
		if _, ok := assigned[subject]; !ok {
			count++
		}
	}
	return count, nil
}

func (s *DashboardService) authorize(ctx context.Context, actor Actor, studentID string) error {
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

// isoWeekday maps time.Weekday onto the schedule's 1-7 Monday-first scheme.
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}
