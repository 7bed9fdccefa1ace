package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hearthschool/hub-api/internal/models"
	appErrors "github.com/hearthschool/hub-api/pkg/errors"
)

type mockPlanRepo struct {
	plans           map[string]models.TermPlan
	links           map[string][]models.StudentTermPlan
	lastBlocks      []models.TimeBlock
	regenerated     bool
	assignmentCount int
}

func (m *mockPlanRepo) List(ctx context.Context, filter models.TermPlanFilter) ([]models.TermPlan, int, error) {
	out := make([]models.TermPlan, 0, len(m.plans))
	for _, p := range m.plans {
		if filter.ParentID != "" && p.ParentID != filter.ParentID {
			continue
		}
		out = append(out, p)
	}
	return out, len(out), nil
}

func (m *mockPlanRepo) FindByID(ctx context.Context, id string) (*models.TermPlan, error) {
	if p, ok := m.plans[id]; ok {
		return &p, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPlanRepo) FindLatestByStudent(ctx context.Context, studentID string) (*models.TermPlan, error) {
	for planID, links := range m.links {
		for _, link := range links {
			if link.StudentID == studentID {
				if p, ok := m.plans[planID]; ok {
					return &p, nil
				}
			}
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockPlanRepo) Create(ctx context.Context, plan *models.TermPlan, studentIDs []string, blocks []models.TimeBlock) error {
	if m.plans == nil {
		m.plans = make(map[string]models.TermPlan)
		m.links = make(map[string][]models.StudentTermPlan)
	}
	if plan.ID == "" {
		plan.ID = "plan-1"
	}
	m.plans[plan.ID] = *plan
	for _, studentID := range studentIDs {
		m.links[plan.ID] = append(m.links[plan.ID], models.StudentTermPlan{ID: "link-" + studentID, StudentID: studentID, TermPlanID: plan.ID})
	}
	m.lastBlocks = blocks
	return nil
}

func (m *mockPlanRepo) Update(ctx context.Context, plan *models.TermPlan, blocks []models.TimeBlock, regenerate bool) error {
	m.plans[plan.ID] = *plan
	m.regenerated = regenerate
	if regenerate {
		m.lastBlocks = blocks
	}
	return nil
}

func (m *mockPlanRepo) LinkStudent(ctx context.Context, termPlanID, studentID string) (*models.StudentTermPlan, error) {
	link := models.StudentTermPlan{ID: "link-" + studentID, StudentID: studentID, TermPlanID: termPlanID}
	m.links[termPlanID] = append(m.links[termPlanID], link)
	return &link, nil
}

func (m *mockPlanRepo) StudentLinks(ctx context.Context, termPlanID, studentID string) ([]models.StudentTermPlan, error) {
	var out []models.StudentTermPlan
	for _, link := range m.links[termPlanID] {
		if studentID != "" && link.StudentID != studentID {
			continue
		}
		out = append(out, link)
	}
	return out, nil
}

func (m *mockPlanRepo) FindLink(ctx context.Context, id string) (*models.StudentTermPlan, error) {
	for _, links := range m.links {
		for _, link := range links {
			if link.ID == id {
				return &link, nil
			}
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockPlanRepo) CountAssignments(ctx context.Context, termPlanID string) (int, error) {
	return m.assignmentCount, nil
}

func (m *mockPlanRepo) Delete(ctx context.Context, id string) error {
	delete(m.plans, id)
	delete(m.links, id)
	return nil
}

type mockBlockRepo struct {
	blocks map[string][]models.TimeBlock
}

func (m *mockBlockRepo) ListByTermPlan(ctx context.Context, termPlanID string) ([]models.TimeBlock, error) {
	return m.blocks[termPlanID], nil
}

func (m *mockBlockRepo) FindByID(ctx context.Context, id string) (*models.TimeBlock, error) {
	for _, blocks := range m.blocks {
		for _, b := range blocks {
			if b.ID == id {
				return &b, nil
			}
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockBlockRepo) UpdateActivity(ctx context.Context, id, activityName string) error {
	for planID, blocks := range m.blocks {
		for i, b := range blocks {
			if b.ID == id {
				m.blocks[planID][i].ActivityName = activityName
			}
		}
	}
	return nil
}

type mockStudentReader struct {
	students map[string]models.Student
}

func (m *mockStudentReader) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

type mockAudit struct {
	logs []models.AuditLog
}

func (m *mockAudit) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.logs = append(m.logs, *log)
	return nil
}

func newPlanService(repo *mockPlanRepo, blocks *mockBlockRepo, students *mockStudentReader) *TermPlanService {
	return NewTermPlanService(repo, blocks, students, &mockAudit{}, validator.New(), zap.NewNop())
}

func TestGenerateBlocksFillsEachScheduledDay(t *testing.T) {
	plan := &models.TermPlan{DaysPerWeek: 5, StartTime: "09:00", EndTime: "12:00", BlockLengthMinutes: 45}

	blocks, err := generateBlocks(plan)
	require.NoError(t, err)

	// 180 minutes fit four 45-minute blocks per day.
	require.Len(t, blocks, 20)
	assert.Equal(t, 1, blocks[0].Weekday)
	assert.Equal(t, "09:00", blocks[0].StartTime)
	assert.Equal(t, "09:45", blocks[0].EndTime)
	last := blocks[len(blocks)-1]
	assert.Equal(t, 5, last.Weekday)
	assert.Equal(t, "11:15", last.StartTime)
	assert.Equal(t, "12:00", last.EndTime)
}

func TestGenerateBlocksDropsTrailingRemainder(t *testing.T) {
	plan := &models.TermPlan{DaysPerWeek: 1, StartTime: "08:00", EndTime: "09:10", BlockLengthMinutes: 30}

	blocks, err := generateBlocks(plan)
	require.NoError(t, err)

	// 70 minutes hold two full blocks; the 10-minute tail is dropped.
	require.Len(t, blocks, 2)
	assert.Equal(t, "09:00", blocks[1].EndTime)
}

func TestGenerateBlocksRejectsInvertedWindow(t *testing.T) {
	plan := &models.TermPlan{DaysPerWeek: 3, StartTime: "14:00", EndTime: "09:00", BlockLengthMinutes: 30}

	_, err := generateBlocks(plan)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestGenerateBlocksRejectsDayShorterThanBlock(t *testing.T) {
	plan := &models.TermPlan{DaysPerWeek: 2, StartTime: "09:00", EndTime: "09:20", BlockLengthMinutes: 45}

	_, err := generateBlocks(plan)
	require.Error(t, err)
}

func TestTermPlanCreateGeneratesAndLinks(t *testing.T) {
	repo := &mockPlanRepo{plans: map[string]models.TermPlan{}, links: map[string][]models.StudentTermPlan{}}
	blocks := &mockBlockRepo{blocks: map[string][]models.TimeBlock{}}
	students := &mockStudentReader{students: map[string]models.Student{
		"student-1": {ID: "student-1", ParentID: "parent-1"},
	}}
	svc := newPlanService(repo, blocks, students)

	actor := Actor{UserID: "parent-1", Role: models.RoleParent}
	detail, err := svc.Create(context.Background(), actor, CreateTermPlanRequest{
		Name:               "Fall Term",
		DaysPerWeek:        4,
		StartTime:          "09:00",
		EndTime:            "11:00",
		BlockLengthMinutes: 60,
		StudentIDs:         []string{"student-1"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"student-1"}, detail.StudentIDs)
	require.Len(t, repo.lastBlocks, 8)
	assert.Equal(t, defaultActivityName, repo.lastBlocks[0].ActivityName)
}

func TestTermPlanCreateRejectsForeignStudent(t *testing.T) {
	repo := &mockPlanRepo{plans: map[string]models.TermPlan{}, links: map[string][]models.StudentTermPlan{}}
	blocks := &mockBlockRepo{blocks: map[string][]models.TimeBlock{}}
	students := &mockStudentReader{students: map[string]models.Student{
		"student-1": {ID: "student-1", ParentID: "someone-else"},
	}}
	svc := newPlanService(repo, blocks, students)

	actor := Actor{UserID: "parent-1", Role: models.RoleParent}
	_, err := svc.Create(context.Background(), actor, CreateTermPlanRequest{
		Name:               "Fall Term",
		DaysPerWeek:        2,
		StartTime:          "09:00",
		EndTime:            "11:00",
		BlockLengthMinutes: 60,
		StudentIDs:         []string{"student-1"},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestTermPlanUpdateRegeneratesOnPreferenceChange(t *testing.T) {
	repo := &mockPlanRepo{
		plans: map[string]models.TermPlan{
			"plan-1": {ID: "plan-1", ParentID: "parent-1", Name: "Fall", DaysPerWeek: 3, StartTime: "09:00", EndTime: "12:00", BlockLengthMinutes: 60},
		},
		links: map[string][]models.StudentTermPlan{"plan-1": {{ID: "link-1", StudentID: "student-1", TermPlanID: "plan-1"}}},
	}
	blocks := &mockBlockRepo{blocks: map[string][]models.TimeBlock{}}
	svc := newPlanService(repo, blocks, &mockStudentReader{})

	actor := Actor{UserID: "parent-1", Role: models.RoleParent}

	// Renaming alone must not regenerate.
	newName := "Fall 2026"
	_, err := svc.Update(context.Background(), actor, "plan-1", UpdateTermPlanRequest{Name: &newName})
	require.NoError(t, err)
	assert.False(t, repo.regenerated)

	length := 90
	_, err = svc.Update(context.Background(), actor, "plan-1", UpdateTermPlanRequest{BlockLengthMinutes: &length})
	require.NoError(t, err)
	assert.True(t, repo.regenerated)
	require.NotEmpty(t, repo.lastBlocks)
	assert.Equal(t, "10:30", repo.lastBlocks[0].EndTime)
}

func TestTermPlanDeleteBlockedByAssignments(t *testing.T) {
	repo := &mockPlanRepo{
		plans:           map[string]models.TermPlan{"plan-1": {ID: "plan-1", ParentID: "parent-1"}},
		links:           map[string][]models.StudentTermPlan{},
		assignmentCount: 3,
	}
	svc := newPlanService(repo, &mockBlockRepo{blocks: map[string][]models.TimeBlock{}}, &mockStudentReader{})

	actor := Actor{UserID: "parent-1", Role: models.RoleParent}
	err := svc.Delete(context.Background(), actor, "plan-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	repo.assignmentCount = 0
	require.NoError(t, svc.Delete(context.Background(), actor, "plan-1"))
	assert.Empty(t, repo.plans)
}

func TestTermPlanLatestForStudentNotFound(t *testing.T) {
	repo := &mockPlanRepo{plans: map[string]models.TermPlan{}, links: map[string][]models.StudentTermPlan{}}
	students := &mockStudentReader{students: map[string]models.Student{
		"student-1": {ID: "student-1", ParentID: "parent-1"},
	}}
	svc := newPlanService(repo, &mockBlockRepo{blocks: map[string][]models.TimeBlock{}}, students)

	actor := Actor{UserID: "parent-1", Role: models.RoleParent}
	_, err := svc.LatestForStudent(context.Background(), actor, "student-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTermPlanStudentCannotEdit(t *testing.T) {
	studentID := "student-1"
	repo := &mockPlanRepo{
		plans: map[string]models.TermPlan{"plan-1": {ID: "plan-1", ParentID: "parent-1"}},
		links: map[string][]models.StudentTermPlan{"plan-1": {{ID: "link-1", StudentID: studentID, TermPlanID: "plan-1"}}},
	}
	svc := newPlanService(repo, &mockBlockRepo{blocks: map[string][]models.TimeBlock{}}, &mockStudentReader{})

	actor := Actor{UserID: "user-9", Role: models.RoleStudent, StudentID: &studentID}
	name := "Hijacked"
	_, err := svc.Update(context.Background(), actor, "plan-1", UpdateTermPlanRequest{Name: &name})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
