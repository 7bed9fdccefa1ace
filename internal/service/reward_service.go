package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/hearthschool/hub-api/internal/models"
	appErrors "github.com/hearthschool/hub-api/pkg/errors"
)

type rewardRepository interface {
	FindProfile(ctx context.Context, studentID string) (*models.RewardProfile, error)
	SaveEvent(ctx context.Context, event *models.RewardEvent, profile *models.RewardProfile) error
	ListEvents(ctx context.Context, studentID string, limit int) ([]models.RewardEvent, error)
	HasEventSince(ctx context.Context, studentID, reason string, since time.Time) (bool, error)
}

// GrantRewardRequest awards XP or coins to a student.
type GrantRewardRequest struct {
	Kind   models.RewardKind `json:"kind" validate:"required,oneof=XP COINS"`
	Amount int               `json:"amount" validate:"required,gt=0"`
	Reason string            `json:"reason" validate:"required"`
}

// RewardConfig holds the amounts granted by the daily check-in.
type RewardConfig struct {
	DailyXP    int
	DailyCoins int
}

const dailyCheckInReason = "daily check-in"

// RewardService tracks gamified progress per student: XP, coins and a
// consecutive-day streak.
type RewardService struct {
	repo      rewardRepository
	students  planStudentReader
	config    RewardConfig
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewRewardService constructs a RewardService.
func NewRewardService(repo rewardRepository, students planStudentReader, config RewardConfig, validate *validator.Validate, logger *zap.Logger) *RewardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &RewardService{repo: repo, students: students, config: config, validator: validate, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Grant records a reward event and folds it into the student's profile.
// Streaks count consecutive UTC calendar days with at least one event: a
// second event on the same day keeps the streak, the next day extends it,
// and a gap of more than one day resets it to 1.
func (s *RewardService) Grant(ctx context.Context, actor Actor, studentID string, req GrantRewardRequest) (*models.RewardProfile, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reward payload")
	}
	// Students earn rewards through check-ins; only guardians hand out
	// arbitrary grants.
	if actor.Role == models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "students cannot grant rewards")
	}
	if err := s.authorize(ctx, actor, studentID); err != nil {
		return nil, err
	}

	profile, err := s.loadOrInitProfile(ctx, studentID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	switch req.Kind {
	case models.RewardKindXP:
		profile.XP += req.Amount
	case models.RewardKindCoins:
		profile.Coins += req.Amount
	}
	profile.StreakDays = nextStreak(profile.StreakDays, profile.LastActivityAt, now)
	profile.LastActivityAt = &now
	profile.UpdatedAt = now

	event := &models.RewardEvent{
		StudentID: studentID,
		Kind:      req.Kind,
		Amount:    req.Amount,
		Reason:    req.Reason,
		CreatedAt: now,
	}

	if err := s.repo.SaveEvent(ctx, event, profile); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save reward")
	}
	return profile, nil
}

// CheckIn grants the configured daily XP and coins. At most one check-in
// counts per UTC calendar day; repeats return a conflict.
func (s *RewardService) CheckIn(ctx context.Context, actor Actor, studentID string) (*models.RewardProfile, error) {
	if err := s.authorize(ctx, actor, studentID); err != nil {
		return nil, err
	}

	now := s.now()
	today := now.UTC().Truncate(24 * time.Hour)

	checkedIn, err := s.repo.HasEventSince(ctx, studentID, dailyCheckInReason, today)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check reward ledger")
	}
	if checkedIn {
		return nil, appErrors.Clone(appErrors.ErrConflict, "already checked in today")
	}

	profile, err := s.loadOrInitProfile(ctx, studentID)
	if err != nil {
		return nil, err
	}
	profile.XP += s.config.DailyXP
	profile.Coins += s.config.DailyCoins
	profile.StreakDays = nextStreak(profile.StreakDays, profile.LastActivityAt, now)
	profile.LastActivityAt = &now
	profile.UpdatedAt = now

	xpEvent := &models.RewardEvent{
		StudentID: studentID,
		Kind:      models.RewardKindXP,
		Amount:    s.config.DailyXP,
		Reason:    dailyCheckInReason,
		CreatedAt: now,
	}
	if err := s.repo.SaveEvent(ctx, xpEvent, profile); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save check-in")
	}
	if s.config.DailyCoins > 0 {
		coinEvent := &models.RewardEvent{
			StudentID: studentID,
			Kind:      models.RewardKindCoins,
			Amount:    s.config.DailyCoins,
			Reason:    dailyCheckInReason,
			CreatedAt: now,
		}
		if err := s.repo.SaveEvent(ctx, coinEvent, profile); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save check-in")
		}
	}
	return profile, nil
}

// Profile returns the reward snapshot for a student. Students without any
// recorded event get a zeroed profile rather than a 404.
func (s *RewardService) Profile(ctx context.Context, actor Actor, studentID string) (*models.RewardProfile, error) {
	if err := s.authorize(ctx, actor, studentID); err != nil {
		return nil, err
	}
	return s.loadOrInitProfile(ctx, studentID)
}

// History returns the most recent reward events for a student.
func (s *RewardService) History(ctx context.Context, actor Actor, studentID string, limit int) ([]models.RewardEvent, error) {
	if err := s.authorize(ctx, actor, studentID); err != nil {
		return nil, err
	}
	events, err := s.repo.ListEvents(ctx, studentID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reward events")
	}
	return events, nil
}

func (s *RewardService) loadOrInitProfile(ctx context.Context, studentID string) (*models.RewardProfile, error) {
	profile, err := s.repo.FindProfile(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.RewardProfile{StudentID: studentID}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reward profile")
	}
	return profile, nil
}

func (s *RewardService) authorize(ctx context.Context, actor Actor, studentID string) error {
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

// nextStreak computes the new consecutive-day count given the previous
// activity timestamp. Days are compared as UTC calendar dates.
func nextStreak(current int, last *time.Time, now time.Time) int {
	if last == nil {
		return 1
	}
	lastDay := last.UTC().Truncate(24 * time.Hour)
	today := now.UTC().Truncate(24 * time.Hour)
	switch days := int(today.Sub(lastDay).Hours() / 24); {
	case days == 0:
		if current < 1 {
			return 1
		}
		return current
	case days == 1:
		return current + 1
	default:
		return 1
	}
}
