package store

import (
	"log"

	"gorm.io/gorm/clause"

	"spotmatch/app/internal/models"
)

// CreateMessage appends a message to its conversation.
func (s *Service) CreateMessage(m *models.Message) error {
	if err := s.DB.Create(m).Error; err != nil {
		log.Printf("ERROR: Failed to save message for conversation %s: %v", m.ConversationID, err)
		return err
	}
	s.publish(models.TableMessages, models.EventInsert, m.ID, m)
	return nil
}

// MessagesForConversations fetches all messages for a set of conversations
// in one IN-query, newest first. The conversation list aggregation reduces
// this into last-message and unread counts instead of issuing one query per
// conversation.
func (s *Service) MessagesForConversations(ids []string) ([]models.Message, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var messages []models.Message
	err := s.DB.Where("conversation_id IN ?", ids).
		Order("created_at desc").
		Find(&messages).Error
	if err != nil {
		log.Printf("ERROR: Failed to query messages: %v", err)
		return nil, err
	}
	return messages, nil
}

// MarkMessagesRead flags every message the reader did not send as read.
func (s *Service) MarkMessagesRead(convID, readerID string) error {
	result := s.DB.Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND is_read = ?", convID, readerID, false).
		Update("is_read", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		s.publish(models.TableMessages, models.EventUpdate, convID, map[string]string{
			"conversation_id": convID,
		})
	}
	return nil
}

// UpsertSwipe records a verdict on a venue. The conflict target is the
// (conversation, user, place) triple: re-swiping the same place overwrites
// the previous row instead of duplicating it.
func (s *Service) UpsertSwipe(swipe *models.PlaceSwipe) error {
	err := s.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "conversation_id"}, {Name: "user_id"}, {Name: "place_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"liked", "swipe_order", "updated_at"}),
	}).Create(swipe).Error
	if err != nil {
		log.Printf("ERROR: Failed to upsert swipe %s/%s/%s: %v",
			swipe.ConversationID, swipe.UserID, swipe.PlaceID, err)
		return err
	}
	s.publish(models.TablePlaceSwipes, models.EventInsert, swipe.ID, swipe)
	return nil
}

// PartnerLiked reports whether the counterpart already liked the place.
func (s *Service) PartnerLiked(convID, partnerID, placeID string) (bool, error) {
	var count int64
	err := s.DB.Model(&models.PlaceSwipe{}).
		Where("conversation_id = ? AND user_id = ? AND place_id = ? AND liked = ?",
			convID, partnerID, placeID, true).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
