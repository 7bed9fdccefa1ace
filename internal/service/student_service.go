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
	"golang.org/x/crypto/bcrypt"

	"github.com/hearthschool/hub-api/internal/models"
	appErrors "github.com/hearthschool/hub-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Deactivate(ctx context.Context, id string) error
}

type studentAccountRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
}

// CreateStudentRequest is the payload for registering a student profile.
type CreateStudentRequest struct {
	FirstName  string `json:"first_name" validate:"required"`
	LastName   string `json:"last_name" validate:"required"`
	GradeLevel string `json:"grade_level" validate:"required"`
	Age        int    `json:"age" validate:"required,gte=3,lte=19"`

	// Optional login for the student. When Email is set a student account
	// is provisioned and linked to the profile.
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password" validate:"omitempty,min=6"`
}

// UpdateStudentRequest carries mutable profile fields.
type UpdateStudentRequest struct {
	FirstName  *string `json:"first_name,omitempty"`
	LastName   *string `json:"last_name,omitempty"`
	GradeLevel *string `json:"grade_level,omitempty"`
	Age        *int    `json:"age,omitempty" validate:"omitempty,gte=3,lte=19"`
}

// StudentService manages student profiles owned by parent accounts.
type StudentService struct {
	repo      studentRepository
	accounts  studentAccountRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs a StudentService.
func NewStudentService(repo studentRepository, accounts studentAccountRepository, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &StudentService{repo: repo, accounts: accounts, validator: validate, logger: logger}
}

// List returns students visible to the actor. Parents only ever see their
// own children regardless of the requested filter.
func (s *StudentService) List(ctx context.Context, actor Actor, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	switch actor.Role {
	case models.RoleAdmin:
		// no scoping
	case models.RoleParent:
		filter.ParentID = actor.UserID
	default:
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "students may not list profiles")
	}

	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}

	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return students, pagination, nil
}

// Get returns a single student profile after an ownership check.
func (s *StudentService) Get(ctx context.Context, actor Actor, id string) (*models.Student, error) {
	student, err := s.findOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return student, nil
}

// Create registers a student profile under the acting parent, optionally
// provisioning a linked login account.
func (s *StudentService) Create(ctx context.Context, actor Actor, req CreateStudentRequest) (*models.Student, error) {
	if actor.Role != models.RoleParent && actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only parents may register students")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	if req.Email != "" && req.Password == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "password is required when creating a student login")
	}

	student := &models.Student{
		ParentID:   actor.UserID,
		FirstName:  strings.TrimSpace(req.FirstName),
		LastName:   strings.TrimSpace(req.LastName),
		GradeLevel: req.GradeLevel,
		Age:        req.Age,
		Active:     true,
	}
	student.FullName = fmt.Sprintf("%s %s", student.FirstName, student.LastName)

	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}

	if req.Email != "" {
		if err := s.provisionAccount(ctx, student, req.Email, req.Password); err != nil {
			return nil, err
		}
	}

	return student, nil
}

// Update applies partial changes to a student profile.
func (s *StudentService) Update(ctx context.Context, actor Actor, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	student, err := s.findOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "students may not edit profiles")
	}

	if req.FirstName != nil {
		student.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		student.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.GradeLevel != nil {
		student.GradeLevel = *req.GradeLevel
	}
	if req.Age != nil {
		student.Age = *req.Age
	}
	student.FullName = fmt.Sprintf("%s %s", student.FirstName, student.LastName)
	student.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return student, nil
}

// Deactivate soft-disables a student profile. Rows are never deleted so
// plan history and rewards stay intact.
func (s *StudentService) Deactivate(ctx context.Context, actor Actor, id string) error {
	student, err := s.findOwned(ctx, actor, id)
	if err != nil {
		return err
	}
	if actor.Role == models.RoleStudent {
		return appErrors.Clone(appErrors.ErrForbidden, "students may not deactivate profiles")
	}

	if err := s.repo.Deactivate(ctx, student.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate student")
	}
	return nil
}

func (s *StudentService) provisionAccount(ctx context.Context, student *models.Student, email, password string) error {
	if _, err := s.accounts.FindByEmail(ctx, email); err == nil {
		return appErrors.Clone(appErrors.ErrConflict, "email is already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing account")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	account := &models.User{
		Email:        email,
		PasswordHash: string(hash),
		FullName:     student.FullName,
		Role:         models.RoleStudent,
		StudentID:    &student.ID,
		Active:       true,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student account")
	}
	return nil
}

func (s *StudentService) findOwned(ctx context.Context, actor Actor, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleParent:
		if student.ParentID != actor.UserID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "student belongs to another parent")
		}
	case models.RoleStudent:
		if actor.StudentID == nil || *actor.StudentID != student.ID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "students may only view their own profile")
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "unknown role")
	}

	return student, nil
}
