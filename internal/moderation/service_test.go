package moderation_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"spotmatch/app/internal/models"
	"spotmatch/app/internal/moderation"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetProfile(id string) (*models.Profile, error) {
	args := m.Called(id)
	if p := args.Get(0); p != nil {
		return p.(*models.Profile), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) CreateReport(r *models.Report) error {
	args := m.Called(r)
	return args.Error(0)
}

func (m *MockStore) ReportsAgainst(userID string, since time.Time) ([]models.Report, error) {
	args := m.Called(userID, since)
	if r := args.Get(0); r != nil {
		return r.([]models.Report), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) SuspendProfile(userID string, until time.Time) error {
	args := m.Called(userID, until)
	return args.Error(0)
}

func TestFileRejectsSelfReport(t *testing.T) {
	store := new(MockStore)
	svc := moderation.NewService(store)

	err := svc.File(&models.Report{ReporterID: "u1", ReportedID: "u1", Category: models.ReportSpam})

	assert.ErrorIs(t, err, moderation.ErrSelfReport)
	store.AssertNotCalled(t, "CreateReport", mock.Anything)
}

func TestFileRejectsUnknownCategory(t *testing.T) {
	store := new(MockStore)
	svc := moderation.NewService(store)

	err := svc.File(&models.Report{ReporterID: "u1", ReportedID: "u2", Category: "nonsense"})

	assert.ErrorIs(t, err, moderation.ErrUnknownCategory)
	store.AssertNotCalled(t, "CreateReport", mock.Anything)
}

func TestFileBelowThresholdRecordsOnly(t *testing.T) {
	store := new(MockStore)
	svc := moderation.NewService(store)

	report := &models.Report{ReporterID: "u1", ReportedID: "u2", Category: models.ReportSpam}
	store.On("CreateReport", report).Return(nil)
	store.On("ReportsAgainst", "u2", mock.Anything).Return([]models.Report{*report}, nil)

	err := svc.File(report)

	assert.NoError(t, err)
	store.AssertNotCalled(t, "SuspendProfile", mock.Anything, mock.Anything)
}

func TestFileWeightThresholdSuspends(t *testing.T) {
	store := new(MockStore)
	svc := moderation.NewService(store)

	report := &models.Report{ReporterID: "u1", ReportedID: "u2", Category: models.ReportHarassment}
	store.On("CreateReport", report).Return(nil)
	store.On("ReportsAgainst", "u2", mock.Anything).Return([]models.Report{*report}, nil)
	store.On("GetProfile", "u2").Return(&models.Profile{ID: "u2"}, nil)
	store.On("SuspendProfile", "u2", mock.Anything).Return(nil)

	err := svc.File(report)

	assert.NoError(t, err)
	store.AssertCalled(t, "SuspendProfile", "u2", mock.Anything)
}

func TestFileFrequencyThresholdSuspends(t *testing.T) {
	store := new(MockStore)
	svc := moderation.NewService(store)

	report := &models.Report{ReporterID: "u1", ReportedID: "u2", Category: models.ReportSpam}
	recent := make([]models.Report, 5)
	for i := range recent {
		recent[i] = models.Report{ReportedID: "u2", Category: models.ReportSpam}
	}
	store.On("CreateReport", report).Return(nil)
	store.On("ReportsAgainst", "u2", mock.Anything).Return(recent, nil)
	store.On("GetProfile", "u2").Return(&models.Profile{ID: "u2"}, nil)
	store.On("SuspendProfile", "u2", mock.Anything).Return(nil)

	err := svc.File(report)

	assert.NoError(t, err)
	store.AssertCalled(t, "SuspendProfile", "u2", mock.Anything)
}

func TestRepeatOffenseEscalates(t *testing.T) {
	store := new(MockStore)
	svc := moderation.NewService(store)

	lastWeek := time.Now().Add(-2 * 24 * time.Hour)
	report := &models.Report{ReporterID: "u1", ReportedID: "u2", Category: models.ReportHarassment}
	store.On("CreateReport", report).Return(nil)
	store.On("ReportsAgainst", "u2", mock.Anything).Return([]models.Report{*report}, nil)
	store.On("GetProfile", "u2").Return(&models.Profile{ID: "u2", LastSuspended: &lastWeek}, nil)

	var until time.Time
	store.On("SuspendProfile", "u2", mock.Anything).Run(func(args mock.Arguments) {
		until = args.Get(1).(time.Time)
	}).Return(nil)

	err := svc.File(report)

	assert.NoError(t, err)
	// Level 2 suspension runs a week, not a day.
	assert.True(t, until.After(time.Now().Add(6*24*time.Hour)))
}
