package store

import (
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"spotmatch/app/internal/models"
)

// GetProfile loads one profile by id.
func (s *Service) GetProfile(id string) (*models.Profile, error) {
	var profile models.Profile
	err := s.DB.Where("id = ?", id).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// SaveProfile creates or updates a profile (owner attribute edits).
func (s *Service) SaveProfile(p *models.Profile) error {
	eventType := models.EventUpdate
	if p.ID == "" {
		eventType = models.EventInsert
	}
	if err := s.DB.Save(p).Error; err != nil {
		return err
	}
	s.publish(models.TableProfiles, eventType, p.ID, p)
	return nil
}

// UpdatePresence applies a presence sample to the owner's profile. Only the
// presence columns move; a nil location leaves the stored coordinate alone.
func (s *Service) UpdatePresence(userID string, upd models.PresenceUpdate) error {
	fields := map[string]interface{}{
		"is_online": upd.IsOnline,
		"last_seen": upd.LastSeen,
	}
	if upd.Location != nil {
		fields["location"] = upd.Location
	}

	result := s.DB.Model(&models.Profile{}).Where("id = ?", userID).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("profile %s: %w", userID, ErrNotFound)
	}

	// Re-read so the fanned-out row image is the post-write state.
	profile, err := s.GetProfile(userID)
	if err != nil {
		log.Printf("WARNING: Presence written but profile %s reload failed: %v", userID, err)
		return nil
	}
	s.publish(models.TableProfiles, models.EventUpdate, userID, profile)
	return nil
}

// FindProfiles returns everyone except the viewer matching the filter. The
// radius constraint is applied by discovery after location normalization,
// not here, because stored location encodings are heterogeneous.
func (s *Service) FindProfiles(viewerID string, f ProfileFilter) ([]models.Profile, error) {
	query := s.DB.Where("id <> ?", viewerID).
		Where("suspended_until IS NULL OR suspended_until < ?", time.Now())
	if f.MinAge > 0 {
		query = query.Where("age >= ?", f.MinAge)
	}
	if f.MaxAge > 0 {
		query = query.Where("age <= ?", f.MaxAge)
	}
	if f.Gender != "" {
		query = query.Where("gender = ?", f.Gender)
	}
	if f.OnlineOnly {
		query = query.Where("is_online = ?", true)
	}

	var profiles []models.Profile
	if err := query.Order("last_seen desc").Find(&profiles).Error; err != nil {
		log.Printf("ERROR: Failed to query candidate profiles: %v", err)
		return nil, err
	}
	return profiles, nil
}
