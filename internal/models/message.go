package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message belongs to exactly one conversation. Content is polymorphic: plain
// text, or a JSON envelope describing a system event (see ParseEnvelope).
type Message struct {
	ID             string `gorm:"primaryKey" json:"id"`
	ConversationID string `gorm:"type:uuid;not null;index" json:"conversation_id"`
	SenderID       string `gorm:"not null" json:"sender_id"`
	Content        string `gorm:"type:text;not null" json:"content"`
	IsRead         bool   `json:"is_read"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return
}

// Envelope kinds and system subtypes.
const (
	KindText   = "text"
	KindSystem = "system"

	SystemPlaceMatch = "place_match"
)

// Envelope is the decoded form of a message content field.
type Envelope struct {
	Kind    string          `json:"kind"`
	Text    string          `json:"text,omitempty"`
	Subtype string          `json:"subtype,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// PlaceMatchPayload is the body of a place_match system message.
type PlaceMatchPayload struct {
	PlaceID string  `json:"place_id"`
	Name    string  `json:"name"`
	Address string  `json:"address,omitempty"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

// ParseEnvelope decodes a message content field. Anything that is not a
// well-formed envelope with a known kind is treated as plain text; this
// function never fails.
func ParseEnvelope(content string) Envelope {
	var env Envelope
	if err := json.Unmarshal([]byte(content), &env); err != nil {
		return Envelope{Kind: KindText, Text: content}
	}
	switch env.Kind {
	case KindSystem:
		if env.Subtype == "" {
			return Envelope{Kind: KindText, Text: content}
		}
		return env
	case KindText:
		return env
	}
	return Envelope{Kind: KindText, Text: content}
}

// EncodePlaceMatch builds the content field for the in-thread announcement
// of a converged venue.
func EncodePlaceMatch(v Venue) string {
	payload, _ := json.Marshal(PlaceMatchPayload{
		PlaceID: v.ID,
		Name:    v.Name,
		Address: v.Address,
		Lat:     v.Lat,
		Lng:     v.Lng,
	})
	content, _ := json.Marshal(Envelope{
		Kind:    KindSystem,
		Subtype: SystemPlaceMatch,
		Payload: payload,
	})
	return string(content)
}

// PlaceMatch decodes the payload of a place_match envelope. The second
// return value is false for any other envelope.
func (e Envelope) PlaceMatch() (PlaceMatchPayload, bool) {
	if e.Kind != KindSystem || e.Subtype != SystemPlaceMatch {
		return PlaceMatchPayload{}, false
	}
	var p PlaceMatchPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return PlaceMatchPayload{}, false
	}
	return p, true
}
