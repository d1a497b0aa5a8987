// Package moderation handles user reports: recording them, weighing their
// severity, and suspending profiles that cross the line.
package moderation

import (
	"errors"
	"log"
	"time"

	"spotmatch/app/internal/analysis"
	"spotmatch/app/internal/config"
	"spotmatch/app/internal/models"
)

// ErrSelfReport marks an attempt to report yourself.
var ErrSelfReport = errors.New("cannot report yourself")

// ErrUnknownCategory marks a report with a category outside the known set.
var ErrUnknownCategory = errors.New("unknown report category")

// Store is the slice of the row store moderation needs.
type Store interface {
	GetProfile(id string) (*models.Profile, error)
	CreateReport(r *models.Report) error
	ReportsAgainst(userID string, since time.Time) ([]models.Report, error)
	SuspendProfile(userID string, until time.Time) error
}

// Service records reports and applies suspensions.
type Service struct {
	store Store
}

// NewService creates a new moderation service.
func NewService(s Store) *Service {
	return &Service{store: s}
}

// File records a report and re-evaluates the reported user.
func (s *Service) File(report *models.Report) error {
	if report.ReporterID == report.ReportedID {
		return ErrSelfReport
	}
	if analysis.GetWeight(report.Category) == 0 {
		return ErrUnknownCategory
	}
	if err := s.store.CreateReport(report); err != nil {
		return err
	}
	return s.checkForSuspension(report.ReportedID)
}

// checkForSuspension suspends a user when the reports inside the window
// cross either the weight or the frequency threshold.
func (s *Service) checkForSuspension(userID string) error {
	since := time.Now().Add(-config.SuspendFrequencyWindow)
	reports, err := s.store.ReportsAgainst(userID, since)
	if err != nil {
		return err
	}

	weight := 0
	for _, r := range reports {
		weight += analysis.GetWeight(r.Category)
	}

	if weight < config.SuspendThresholdWeight && len(reports) < config.SuspendThresholdFrequency {
		return nil
	}
	return s.suspend(userID)
}

func (s *Service) suspend(userID string) error {
	profile, err := s.store.GetProfile(userID)
	if err != nil {
		return err
	}

	// Repeat offenses inside the escalation windows bump the level.
	level := 1
	if profile.LastSuspended != nil {
		if time.Since(*profile.LastSuspended) < config.EscalationShortWindow {
			level = 2
		} else if time.Since(*profile.LastSuspended) < config.EscalationLongWindow {
			level = 3
		}
	}

	until := time.Now().Add(suspensionDuration(level))
	log.Printf("Suspending profile %s (level %d) until %s", userID, level, until.Format(time.RFC3339))
	return s.store.SuspendProfile(userID, until)
}

func suspensionDuration(level int) time.Duration {
	switch level {
	case 1:
		return config.SuspendLevel1Duration
	case 2:
		return config.SuspendLevel2Duration
	default:
		return config.SuspendLevel3Duration
	}
}
