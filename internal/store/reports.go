package store

import (
	"fmt"
	"time"

	"spotmatch/app/internal/models"
)

// CreateReport records a report. Reports stay out of the change feed:
// neither the reporter nor the reported user should see them arrive live.
func (s *Service) CreateReport(r *models.Report) error {
	return s.DB.Create(r).Error
}

// ReportsAgainst returns the reports filed against a user since the given
// time, newest first.
func (s *Service) ReportsAgainst(userID string, since time.Time) ([]models.Report, error) {
	var reports []models.Report
	err := s.DB.
		Where("reported_id = ? AND created_at >= ?", userID, since).
		Order("created_at desc").
		Find(&reports).Error
	return reports, err
}

// SuspendProfile hides a profile until the given time. The profile update
// fans out so held candidate lists drop the user.
func (s *Service) SuspendProfile(userID string, until time.Time) error {
	now := time.Now()
	result := s.DB.Model(&models.Profile{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"suspended_until": until,
		"last_suspended":  now,
		"is_online":       false,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("profile %s: %w", userID, ErrNotFound)
	}

	profile, err := s.GetProfile(userID)
	if err != nil {
		return err
	}
	s.publish(models.TableProfiles, models.EventUpdate, userID, profile)
	return nil
}
