package store

import (
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"spotmatch/app/internal/models"
)

// UpsertConversation creates the conversation for an unordered pair, or
// returns the existing one. Ids are canonicalized by sorting, and the
// on-conflict clause makes concurrent calls from both participants land on
// the same row.
func (s *Service) UpsertConversation(a, b string) (*models.Conversation, error) {
	user1, user2 := models.PairKey(a, b)

	conversation := models.Conversation{User1ID: user1, User2ID: user2}
	result := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user1_id"}, {Name: "user2_id"}},
		DoNothing: true,
	}).Create(&conversation)
	if result.Error != nil {
		log.Printf("ERROR: Failed to upsert conversation %s/%s: %v", user1, user2, result.Error)
		return nil, result.Error
	}

	// On conflict the insert is a no-op; re-read by pair either way so the
	// caller always gets the canonical row with both profiles joined.
	var existing models.Conversation
	err := s.DB.Preload("User1").Preload("User2").
		Where("user1_id = ? AND user2_id = ?", user1, user2).
		First(&existing).Error
	if err != nil {
		return nil, err
	}

	if result.RowsAffected > 0 {
		s.publish(models.TableConversations, models.EventInsert, existing.ID, &existing)
	}
	return &existing, nil
}

// GetConversation loads one conversation by id.
func (s *Service) GetConversation(id string) (*models.Conversation, error) {
	var conversation models.Conversation
	err := s.DB.Preload("User1").Preload("User2").
		Where("id = ?", id).
		First(&conversation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &conversation, nil
}

// ConversationsForUser returns every conversation the user participates in,
// most recently touched first, with both profiles joined.
func (s *Service) ConversationsForUser(userID string) ([]models.Conversation, error) {
	var conversations []models.Conversation
	err := s.DB.Preload("User1").Preload("User2").
		Where("user1_id = ? OR user2_id = ?", userID, userID).
		Order("updated_at desc").
		Find(&conversations).Error
	if err != nil {
		log.Printf("ERROR: Failed to query conversations for %s: %v", userID, err)
		return nil, err
	}
	return conversations, nil
}

// SetMatchedFlag raises the caller's own matched flag. Each conditional
// update only fires for the column the user owns, and only ever writes true,
// keeping the flag monotonic.
func (s *Service) SetMatchedFlag(convID, userID string) error {
	res1 := s.DB.Model(&models.Conversation{}).
		Where("id = ? AND user1_id = ?", convID, userID).
		Update("user1_matched", true)
	if res1.Error != nil {
		return res1.Error
	}
	res2 := s.DB.Model(&models.Conversation{}).
		Where("id = ? AND user2_id = ?", convID, userID).
		Update("user2_matched", true)
	if res2.Error != nil {
		return res2.Error
	}
	if res1.RowsAffected == 0 && res2.RowsAffected == 0 {
		return fmt.Errorf("conversation %s participant %s: %w", convID, userID, ErrNotFound)
	}

	conversation, err := s.GetConversation(convID)
	if err != nil {
		return err
	}
	s.publish(models.TableConversations, models.EventUpdate, convID, conversation)
	return nil
}

// SetPlacesListIfEmpty persists the candidate venue list onto the
// conversation, but only when nothing was stored yet. When both participants
// fetch at the same moment the condition makes the first write stick; the
// loser re-reads and swipes the winner's list.
func (s *Service) SetPlacesListIfEmpty(convID string, list models.VenueList) error {
	result := s.DB.Model(&models.Conversation{}).
		Where("id = ? AND places_list IS NULL", convID).
		Update("places_list", list)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		if conversation, err := s.GetConversation(convID); err == nil {
			s.publish(models.TableConversations, models.EventUpdate, convID, conversation)
		}
	}
	return nil
}

// CommitPlaceMatch records the converged venue, first writer wins. Returns
// true when this call performed the commit; false means a concurrent commit
// (with an identical payload) got there first.
func (s *Service) CommitPlaceMatch(convID string, v models.Venue, at time.Time) (bool, error) {
	result := s.DB.Model(&models.Conversation{}).
		Where("id = ? AND place_match_id IS NULL", convID).
		Updates(map[string]interface{}{
			"place_match_id":   v.ID,
			"place_match_name": v.Name,
			"place_match_at":   at,
		})
	if result.Error != nil {
		log.Printf("ERROR: Failed to commit place match for conversation %s: %v", convID, result.Error)
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	if conversation, err := s.GetConversation(convID); err == nil {
		s.publish(models.TableConversations, models.EventUpdate, convID, conversation)
	}
	return true, nil
}
