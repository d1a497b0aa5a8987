package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Venue is one candidate meeting place from the lookup service.
type Venue struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Address  string  `json:"address"`
	Category string  `json:"category"`
	Rating   float64 `json:"rating"`
	PhotoURL string  `json:"photo_url"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
}

// VenueList is the ordered candidate set stored on a conversation as JSON.
// Order matters: swipe_order is recorded against it and both participants
// must walk the same sequence.
type VenueList []Venue

func (l VenueList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (l *VenueList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("unsupported places_list column type")
	}
	return json.Unmarshal(data, l)
}

// PlaceSwipe records one participant's verdict on one venue. The
// (conversation, user, place) triple is unique; re-swiping overwrites.
type PlaceSwipe struct {
	ID             string `gorm:"primaryKey" json:"id"`
	ConversationID string `gorm:"type:uuid;not null;uniqueIndex:idx_swipe_triple" json:"conversation_id"`
	UserID         string `gorm:"not null;uniqueIndex:idx_swipe_triple" json:"user_id"`
	PlaceID        string `gorm:"not null;uniqueIndex:idx_swipe_triple" json:"place_id"`
	Liked          bool   `json:"liked"`
	SwipeOrder     int    `json:"swipe_order"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *PlaceSwipe) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return
}
