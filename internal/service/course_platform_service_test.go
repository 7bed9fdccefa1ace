package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hearthschool/hub-api/internal/models"
	appErrors "github.com/hearthschool/hub-api/pkg/errors"
)

type mockAssignmentRepo struct {
	rows      map[string]models.CoursePlatform // keyed linkID|subject|course
	listCalls int
	staleOnly bool
}

func assignmentKey(linkID, subject, course string) string {
	return linkID + "|" + subject + "|" + course
}

func (m *mockAssignmentRepo) ListByStudentTermPlanIDs(ctx context.Context, ids []string) ([]models.CoursePlatform, error) {
	m.listCalls++
	out := []models.CoursePlatform{}
	for _, row := range m.rows {
		for _, id := range ids {
			if row.StudentTermPlanID == id {
				out = append(out, row)
			}
		}
	}
	return out, nil
}

func (m *mockAssignmentRepo) FindByID(ctx context.Context, id string) (*models.CoursePlatform, error) {
	for _, row := range m.rows {
		if row.ID == id {
			return &row, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAssignmentRepo) Upsert(ctx context.Context, assignment *models.CoursePlatform) error {
	if m.rows == nil {
		m.rows = make(map[string]models.CoursePlatform)
	}
	key := assignmentKey(assignment.StudentTermPlanID, assignment.Subject, assignment.Course)
	if existing, ok := m.rows[key]; ok {
		assignment.ID = existing.ID
		assignment.CreatedAt = existing.CreatedAt
	} else if assignment.ID == "" {
		assignment.ID = "assignment-" + key
	}
	assignment.UpdatedAt = time.Now().UTC()
	m.rows[key] = *assignment
	return nil
}

func (m *mockAssignmentRepo) UpdateChecked(ctx context.Context, assignment *models.CoursePlatform, expectedUpdatedAt time.Time) (bool, error) {
	if m.staleOnly {
		return false, nil
	}
	for key, row := range m.rows {
		if row.ID == assignment.ID {
			if !row.UpdatedAt.Equal(expectedUpdatedAt) {
				return false, nil
			}
			assignment.UpdatedAt = time.Now().UTC()
			m.rows[key] = *assignment
			return true, nil
		}
	}
	return false, nil
}

func (m *mockAssignmentRepo) Delete(ctx context.Context, id string) error {
	for key, row := range m.rows {
		if row.ID == id {
			delete(m.rows, key)
		}
	}
	return nil
}

func newAssignmentService(repo *mockAssignmentRepo, plans *mockPlanRepo) *CoursePlatformService {
	return NewCoursePlatformService(repo, plans, &mockAudit{}, validator.New(), zap.NewNop())
}

func linkedPlanRepo() *mockPlanRepo {
	return &mockPlanRepo{
		plans: map[string]models.TermPlan{"plan-1": {ID: "plan-1", ParentID: "parent-1"}},
		links: map[string][]models.StudentTermPlan{
			"plan-1": {{ID: "link-1", StudentID: "student-1", TermPlanID: "plan-1"}},
		},
	}
}

func TestResolveEmptyPlanIDShortCircuits(t *testing.T) {
	repo := &mockAssignmentRepo{}
	svc := newAssignmentService(repo, linkedPlanRepo())

	assignments, err := svc.Resolve(context.Background(), Actor{UserID: "parent-1", Role: models.RoleParent}, "  ", "")
	require.NoError(t, err)

	assert.Empty(t, assignments)
	assert.Zero(t, repo.listCalls)
}

func TestResolveReturnsAssignmentsForPlan(t *testing.T) {
	repo := &mockAssignmentRepo{rows: map[string]models.CoursePlatform{
		"link-1|math|algebra": {ID: "a1", StudentTermPlanID: "link-1", Subject: "math", Course: "algebra", PlatformURL: "https://khan.org"},
	}}
	svc := newAssignmentService(repo, linkedPlanRepo())

	assignments, err := svc.Resolve(context.Background(), Actor{UserID: "parent-1", Role: models.RoleParent}, "plan-1", "student-1")
	require.NoError(t, err)

	require.Len(t, assignments, 1)
	assert.Equal(t, "https://khan.org", assignments[0].PlatformURL)
}

func TestSavePlanIsIdempotentPerSubjectCourse(t *testing.T) {
	repo := &mockAssignmentRepo{}
	svc := newAssignmentService(repo, linkedPlanRepo())
	actor := Actor{UserID: "parent-1", Role: models.RoleParent}

	req := SavePlatformPlanRequest{
		StudentID: "student-1",
		Items: []CoursePlatformItem{
			{Subject: "Math", Course: "Algebra", PlatformURL: "https://khan.org", PlatformName: "Khan Academy"},
			{Subject: "science", Course: "Biology", PlatformURL: "https://ck12.org", PlatformName: "CK-12"},
		},
	}

	_, err := svc.SavePlan(context.Background(), actor, "plan-1", req)
	require.NoError(t, err)

	// Saving the same payload again must not grow the row set.
	req.Items[0].PlatformURL = "https://www.ixl.com"
	saved, err := svc.SavePlan(context.Background(), actor, "plan-1", req)
	require.NoError(t, err)

	assert.Len(t, repo.rows, 2)
	assert.Equal(t, "https://www.ixl.com", saved[0].PlatformURL)
	// Subjects are stored lowercased so resolve matches suggestion lookups.
	assert.Equal(t, "math", saved[0].Subject)
}

func TestSavePlanRequiresLinkedStudent(t *testing.T) {
	svc := newAssignmentService(&mockAssignmentRepo{}, linkedPlanRepo())

	_, err := svc.SavePlan(context.Background(), Actor{UserID: "parent-1", Role: models.RoleParent}, "plan-1", SavePlatformPlanRequest{
		StudentID: "student-unlinked",
		Items:     []CoursePlatformItem{{Subject: "math", Course: "algebra"}},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestUpdateRejectsStaleWrite(t *testing.T) {
	repo := &mockAssignmentRepo{
		rows: map[string]models.CoursePlatform{
			"link-1|math|algebra": {ID: "a1", StudentTermPlanID: "link-1", Subject: "math", Course: "algebra", UpdatedAt: time.Now().UTC()},
		},
		staleOnly: true,
	}
	svc := newAssignmentService(repo, linkedPlanRepo())

	_, err := svc.Update(context.Background(), Actor{UserID: "parent-1", Role: models.RoleParent}, "a1", UpdateAssignmentRequest{
		PlatformURL:       "https://khan.org",
		ExpectedUpdatedAt: time.Now().UTC().Add(-time.Hour),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrStaleWrite.Code, appErrors.FromError(err).Code)
}

func TestStudentsCannotSavePlans(t *testing.T) {
	studentID := "student-1"
	svc := newAssignmentService(&mockAssignmentRepo{}, linkedPlanRepo())

	_, err := svc.SavePlan(context.Background(), Actor{UserID: "user-9", Role: models.RoleStudent, StudentID: &studentID}, "plan-1", SavePlatformPlanRequest{
		StudentID: studentID,
		Items:     []CoursePlatformItem{{Subject: "math", Course: "algebra"}},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestPlatformHelpersMatchBySubjectAndCourse(t *testing.T) {
	assignments := []models.CoursePlatform{
		{Subject: "math", Course: "Algebra", PlatformURL: "https://khan.org"},
		{Subject: "math", Course: "Geometry", PlatformURL: "https://www.ixl.com"},
		{Subject: "science", Course: "Biology", PlatformURL: "https://ck12.org"},
	}

	assert.Equal(t, "https://khan.org", PlatformURLForCourse(assignments, "Math", "Algebra"))
	assert.Empty(t, PlatformURLForCourse(assignments, "math", "Calculus"))
	assert.Len(t, PlatformsForSubject(assignments, "MATH"), 2)
	assert.Empty(t, PlatformsForSubject(assignments, "history"))
}
