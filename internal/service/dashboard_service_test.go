package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hearthschool/hub-api/internal/models"
	appErrors "github.com/hearthschool/hub-api/pkg/errors"
)

func newDashboardService(students *mockStudentRepo, plans *mockPlanRepo, blocks *mockBlockRepo, assignments *mockAssignmentRepo, rewards *mockRewardRepo, at time.Time) *DashboardService {
	cache := NewCacheService(nil, nil, 0, zap.NewNop(), false)
	svc := NewDashboardService(students, plans, blocks, assignments, rewards, cache, nil, 0, zap.NewNop())
	svc.now = func() time.Time { return at }
	return svc
}

func TestStudentDashboardShowsTodayBlocksAndAssignments(t *testing.T) {
	// 2026-03-02 is a Monday, weekday 1.
	monday := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	students := &mockStudentRepo{students: map[string]models.Student{
		"student-1": {ID: "student-1", ParentID: "parent-1"},
	}}
	plans := &mockPlanRepo{
		plans: map[string]models.TermPlan{"plan-1": {ID: "plan-1", ParentID: "parent-1", Name: "Spring"}},
		links: map[string][]models.StudentTermPlan{"plan-1": {{ID: "link-1", StudentID: "student-1", TermPlanID: "plan-1"}}},
	}
	blocks := &mockBlockRepo{blocks: map[string][]models.TimeBlock{
		"plan-1": {
			{ID: "b1", TermPlanID: "plan-1", Weekday: 1, StartTime: "09:00", EndTime: "10:00"},
			{ID: "b2", TermPlanID: "plan-1", Weekday: 1, StartTime: "10:00", EndTime: "11:00"},
			{ID: "b3", TermPlanID: "plan-1", Weekday: 2, StartTime: "09:00", EndTime: "10:00"},
		},
	}}
	assignments := &mockAssignmentRepo{rows: map[string]models.CoursePlatform{
		assignmentKey("link-1", "math", "Algebra"): {ID: "a1", StudentTermPlanID: "link-1", Subject: "math", Course: "Algebra"},
	}}
	rewards := &mockRewardRepo{profiles: map[string]models.RewardProfile{
		"student-1": {StudentID: "student-1", XP: 120, StreakDays: 4},
	}}
	svc := newDashboardService(students, plans, blocks, assignments, rewards, monday)

	dashboard, err := svc.Student(context.Background(), Actor{UserID: "parent-1", Role: models.RoleParent}, "student-1")
	require.NoError(t, err)

	require.NotNil(t, dashboard.Plan)
	assert.Equal(t, "plan-1", dashboard.Plan.ID)
	require.Len(t, dashboard.TodayBlocks, 2)
	assert.Equal(t, "b1", dashboard.TodayBlocks[0].ID)
	require.Len(t, dashboard.Assignments, 1)
	assert.Equal(t, "Algebra", dashboard.Assignments[0].Course)
	require.NotNil(t, dashboard.Rewards)
	assert.Equal(t, 120, dashboard.Rewards.XP)
}

func TestStudentDashboardWithoutPlan(t *testing.T) {
	students := &mockStudentRepo{students: map[string]models.Student{
		"student-1": {ID: "student-1", ParentID: "parent-1"},
	}}
	plans := &mockPlanRepo{plans: map[string]models.TermPlan{}, links: map[string][]models.StudentTermPlan{}}
	svc := newDashboardService(students, plans, &mockBlockRepo{}, &mockAssignmentRepo{}, &mockRewardRepo{}, time.Now().UTC())

	dashboard, err := svc.Student(context.Background(), Actor{UserID: "parent-1", Role: models.RoleParent}, "student-1")
	require.NoError(t, err)

	assert.Nil(t, dashboard.Plan)
	assert.Empty(t, dashboard.TodayBlocks)
	assert.Empty(t, dashboard.Assignments)
}

func TestParentDashboardScopesToOwnStudents(t *testing.T) {
	students := &mockStudentRepo{students: map[string]models.Student{
		"student-1": {ID: "student-1", ParentID: "parent-1"},
		"student-2": {ID: "student-2", ParentID: "parent-2"},
	}}
	plans := &mockPlanRepo{
		plans: map[string]models.TermPlan{"plan-1": {ID: "plan-1", ParentID: "parent-1", Name: "Spring"}},
		links: map[string][]models.StudentTermPlan{"plan-1": {{ID: "link-1", StudentID: "student-1", TermPlanID: "plan-1"}}},
	}
	blocks := &mockBlockRepo{blocks: map[string][]models.TimeBlock{
		"plan-1": {
			{ID: "b1", TermPlanID: "plan-1", Weekday: 1, ActivityName: "Math"},
			{ID: "b2", TermPlanID: "plan-1", Weekday: 1, ActivityName: "Reading"},
		},
	}}
	assignments := &mockAssignmentRepo{rows: map[string]models.CoursePlatform{
		assignmentKey("link-1", "math", "Algebra"): {ID: "a1", StudentTermPlanID: "link-1", Subject: "math", Course: "Algebra"},
	}}
	svc := newDashboardService(students, plans, blocks, assignments, &mockRewardRepo{}, time.Now().UTC())

	dashboard, err := svc.Parent(context.Background(), Actor{UserID: "parent-1", Role: models.RoleParent})
	require.NoError(t, err)

	require.Len(t, dashboard.Students, 1)
	assert.Equal(t, "student-1", dashboard.Students[0].Student.ID)
	require.NotNil(t, dashboard.Students[0].LatestPlan)
	assert.Equal(t, "Spring", dashboard.Students[0].LatestPlan.Name)
	// "Math" has an assignment, "Reading" does not.
	assert.Equal(t, 1, dashboard.Students[0].UnassignedBlocks)
}

func TestStudentDashboardForeignParentForbidden(t *testing.T) {
	students := &mockStudentRepo{students: map[string]models.Student{
		"student-1": {ID: "student-1", ParentID: "parent-1"},
	}}
	plans := &mockPlanRepo{plans: map[string]models.TermPlan{}, links: map[string][]models.StudentTermPlan{}}
	svc := newDashboardService(students, plans, &mockBlockRepo{}, &mockAssignmentRepo{}, &mockRewardRepo{}, time.Now().UTC())

	_, err := svc.Student(context.Background(), Actor{UserID: "parent-2", Role: models.RoleParent}, "student-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
