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

type mockStudentRepo struct {
	students    map[string]models.Student
	lastFilter  models.StudentFilter
	deactivated []string
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	m.lastFilter = filter
	out := make([]models.Student, 0, len(m.students))
	for _, s := range m.students {
		if filter.ParentID != "" && s.ParentID != filter.ParentID {
			continue
		}
		out = append(out, s)
	}
	return out, len(out), nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) Create(ctx context.Context, student *models.Student) error {
	if m.students == nil {
		m.students = make(map[string]models.Student)
	}
	if student.ID == "" {
		student.ID = "generated"
	}
	m.students[student.ID] = *student
	return nil
}

func (m *mockStudentRepo) Update(ctx context.Context, student *models.Student) error {
	m.students[student.ID] = *student
	return nil
}

func (m *mockStudentRepo) Deactivate(ctx context.Context, id string) error {
	m.deactivated = append(m.deactivated, id)
	return nil
}

type mockAccountRepo struct {
	byEmail map[string]models.User
	created []models.User
}

func (m *mockAccountRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := m.byEmail[email]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAccountRepo) Create(ctx context.Context, user *models.User) error {
	m.created = append(m.created, *user)
	return nil
}

func newStudentService(repo *mockStudentRepo, accounts *mockAccountRepo) *StudentService {
	return NewStudentService(repo, accounts, validator.New(), zap.NewNop())
}

func TestStudentListScopesParentsToTheirChildren(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]models.Student{
		"s1": {ID: "s1", ParentID: "parent-1", FullName: "Ada Lovelace"},
		"s2": {ID: "s2", ParentID: "parent-2", FullName: "Alan Turing"},
	}}
	svc := newStudentService(repo, &mockAccountRepo{})

	// Even a filter asking for another parent's children is overridden.
	students, _, err := svc.List(context.Background(), Actor{UserID: "parent-1", Role: models.RoleParent}, models.StudentFilter{ParentID: "parent-2"})
	require.NoError(t, err)

	assert.Equal(t, "parent-1", repo.lastFilter.ParentID)
	require.Len(t, students, 1)
	assert.Equal(t, "Ada Lovelace", students[0].FullName)
}

func TestStudentGetRejectsForeignParent(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]models.Student{
		"s1": {ID: "s1", ParentID: "parent-1"},
	}}
	svc := newStudentService(repo, &mockAccountRepo{})

	_, err := svc.Get(context.Background(), Actor{UserID: "parent-2", Role: models.RoleParent}, "s1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestStudentCreateBuildsFullName(t *testing.T) {
	repo := &mockStudentRepo{}
	svc := newStudentService(repo, &mockAccountRepo{})

	student, err := svc.Create(context.Background(), Actor{UserID: "parent-1", Role: models.RoleParent}, CreateStudentRequest{
		FirstName:  " Ada ",
		LastName:   " Lovelace ",
		GradeLevel: "5",
		Age:        10,
	})
	require.NoError(t, err)

	assert.Equal(t, "Ada Lovelace", student.FullName)
	assert.Equal(t, "parent-1", student.ParentID)
	assert.True(t, student.Active)
}

func TestStudentCreateProvisionsLinkedAccount(t *testing.T) {
	repo := &mockStudentRepo{}
	accounts := &mockAccountRepo{}
	svc := newStudentService(repo, accounts)

	student, err := svc.Create(context.Background(), Actor{UserID: "parent-1", Role: models.RoleParent}, CreateStudentRequest{
		FirstName:  "Ada",
		LastName:   "Lovelace",
		GradeLevel: "5",
		Age:        10,
		Email:      "ada@example.com",
		Password:   "s3cret1",
	})
	require.NoError(t, err)

	require.Len(t, accounts.created, 1)
	account := accounts.created[0]
	assert.Equal(t, models.RoleStudent, account.Role)
	require.NotNil(t, account.StudentID)
	assert.Equal(t, student.ID, *account.StudentID)
	assert.NotEqual(t, "s3cret1", account.PasswordHash)
}

func TestStudentCreateRequiresPasswordWithEmail(t *testing.T) {
	svc := newStudentService(&mockStudentRepo{}, &mockAccountRepo{})

	_, err := svc.Create(context.Background(), Actor{UserID: "parent-1", Role: models.RoleParent}, CreateStudentRequest{
		FirstName:  "Ada",
		LastName:   "Lovelace",
		GradeLevel: "5",
		Age:        10,
		Email:      "ada@example.com",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStudentDeactivateIsSoft(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]models.Student{
		"s1": {ID: "s1", ParentID: "parent-1", Active: true},
	}}
	svc := newStudentService(repo, &mockAccountRepo{})

	err := svc.Deactivate(context.Background(), Actor{UserID: "parent-1", Role: models.RoleParent}, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, repo.deactivated)
}
