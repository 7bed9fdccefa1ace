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

type mockRewardRepo struct {
	profiles map[string]models.RewardProfile
	events   []models.RewardEvent
}

func (m *mockRewardRepo) FindProfile(ctx context.Context, studentID string) (*models.RewardProfile, error) {
	if p, ok := m.profiles[studentID]; ok {
		return &p, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRewardRepo) SaveEvent(ctx context.Context, event *models.RewardEvent, profile *models.RewardProfile) error {
	if m.profiles == nil {
		m.profiles = make(map[string]models.RewardProfile)
	}
	m.events = append(m.events, *event)
	m.profiles[profile.StudentID] = *profile
	return nil
}

func (m *mockRewardRepo) ListEvents(ctx context.Context, studentID string, limit int) ([]models.RewardEvent, error) {
	var out []models.RewardEvent
	for _, e := range m.events {
		if e.StudentID == studentID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockRewardRepo) HasEventSince(ctx context.Context, studentID, reason string, since time.Time) (bool, error) {
	for _, e := range m.events {
		if e.StudentID == studentID && e.Reason == reason && !e.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func newRewardService(repo *mockRewardRepo, at time.Time) *RewardService {
	students := &mockStudentReader{students: map[string]models.Student{
		"student-1": {ID: "student-1", ParentID: "parent-1"},
	}}
	svc := NewRewardService(repo, students, RewardConfig{DailyXP: 10, DailyCoins: 5}, validator.New(), zap.NewNop())
	svc.now = func() time.Time { return at }
	return svc
}

func TestGrantAccumulatesXPAndCoins(t *testing.T) {
	repo := &mockRewardRepo{}
	day := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	svc := newRewardService(repo, day)
	actor := Actor{UserID: "parent-1", Role: models.RoleParent}

	profile, err := svc.Grant(context.Background(), actor, "student-1", GrantRewardRequest{Kind: models.RewardKindXP, Amount: 50, Reason: "finished math"})
	require.NoError(t, err)
	assert.Equal(t, 50, profile.XP)
	assert.Equal(t, 1, profile.StreakDays)

	profile, err = svc.Grant(context.Background(), actor, "student-1", GrantRewardRequest{Kind: models.RewardKindCoins, Amount: 5, Reason: "finished reading"})
	require.NoError(t, err)
	assert.Equal(t, 50, profile.XP)
	assert.Equal(t, 5, profile.Coins)
	// Second event on the same day keeps the streak.
	assert.Equal(t, 1, profile.StreakDays)
	assert.Len(t, repo.events, 2)
}

func TestGrantExtendsStreakOnConsecutiveDays(t *testing.T) {
	repo := &mockRewardRepo{}
	day1 := time.Date(2026, 3, 2, 21, 30, 0, 0, time.UTC)
	svc := newRewardService(repo, day1)
	actor := Actor{UserID: "parent-1", Role: models.RoleParent}

	_, err := svc.Grant(context.Background(), actor, "student-1", GrantRewardRequest{Kind: models.RewardKindXP, Amount: 10, Reason: "day one"})
	require.NoError(t, err)

	// Early the next UTC day still counts as consecutive.
	svc.now = func() time.Time { return time.Date(2026, 3, 3, 7, 0, 0, 0, time.UTC) }
	profile, err := svc.Grant(context.Background(), actor, "student-1", GrantRewardRequest{Kind: models.RewardKindXP, Amount: 10, Reason: "day two"})
	require.NoError(t, err)
	assert.Equal(t, 2, profile.StreakDays)

	// A missed day resets the streak to one.
	svc.now = func() time.Time { return time.Date(2026, 3, 6, 9, 0, 0, 0, time.UTC) }
	profile, err = svc.Grant(context.Background(), actor, "student-1", GrantRewardRequest{Kind: models.RewardKindXP, Amount: 10, Reason: "back again"})
	require.NoError(t, err)
	assert.Equal(t, 1, profile.StreakDays)
}

func TestProfileReturnsZeroedSnapshotWithoutEvents(t *testing.T) {
	svc := newRewardService(&mockRewardRepo{}, time.Now().UTC())

	profile, err := svc.Profile(context.Background(), Actor{UserID: "parent-1", Role: models.RoleParent}, "student-1")
	require.NoError(t, err)
	assert.Zero(t, profile.XP)
	assert.Zero(t, profile.StreakDays)
	assert.Nil(t, profile.LastActivityAt)
}

func TestCheckInGrantsDailyAmountsOncePerDay(t *testing.T) {
	repo := &mockRewardRepo{}
	day := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	svc := newRewardService(repo, day)
	actor := Actor{UserID: "parent-1", Role: models.RoleParent}

	profile, err := svc.CheckIn(context.Background(), actor, "student-1")
	require.NoError(t, err)
	assert.Equal(t, 10, profile.XP)
	assert.Equal(t, 5, profile.Coins)
	assert.Equal(t, 1, profile.StreakDays)

	_, err = svc.CheckIn(context.Background(), actor, "student-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	svc.now = func() time.Time { return day.Add(24 * time.Hour) }
	profile, err = svc.CheckIn(context.Background(), actor, "student-1")
	require.NoError(t, err)
	assert.Equal(t, 20, profile.XP)
	assert.Equal(t, 2, profile.StreakDays)
}

func TestCheckInStaysBlockedAfterBusyDay(t *testing.T) {
	repo := &mockRewardRepo{}
	day := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	svc := newRewardService(repo, day)
	actor := Actor{UserID: "parent-1", Role: models.RoleParent}

	_, err := svc.CheckIn(context.Background(), actor, "student-1")
	require.NoError(t, err)

	// A busy day of grants must not open the door to a second check-in.
	for i := 0; i < 12; i++ {
		_, err := svc.Grant(context.Background(), actor, "student-1", GrantRewardRequest{Kind: models.RewardKindXP, Amount: 1, Reason: "chore"})
		require.NoError(t, err)
	}

	_, err = svc.CheckIn(context.Background(), actor, "student-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 22, repo.profiles["student-1"].XP)
}

func TestGrantRejectsStudentActor(t *testing.T) {
	svc := newRewardService(&mockRewardRepo{}, time.Now().UTC())
	studentID := "student-1"
	actor := Actor{UserID: "user-9", Role: models.RoleStudent, StudentID: &studentID}

	_, err := svc.Grant(context.Background(), actor, studentID, GrantRewardRequest{Kind: models.RewardKindXP, Amount: 999999, Reason: "self serve"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestGrantRejectsForeignParent(t *testing.T) {
	svc := newRewardService(&mockRewardRepo{}, time.Now().UTC())

	_, err := svc.Grant(context.Background(), Actor{UserID: "other-parent", Role: models.RoleParent}, "student-1", GrantRewardRequest{Kind: models.RewardKindXP, Amount: 10, Reason: "nope"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestNextStreakTable(t *testing.T) {
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	sameDay := base.Add(-3 * time.Hour)
	yesterday := base.AddDate(0, 0, -1)
	lastWeek := base.AddDate(0, 0, -6)

	assert.Equal(t, 1, nextStreak(0, nil, base))
	assert.Equal(t, 4, nextStreak(4, &sameDay, base))
	assert.Equal(t, 5, nextStreak(4, &yesterday, base))
	assert.Equal(t, 1, nextStreak(9, &lastWeek, base))
}
