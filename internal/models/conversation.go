package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation is the per-pair aggregate. The pair is canonicalized by
// sorting the two user ids, and a unique index on the sorted pair keeps at
// most one row per couple. User1Matched/User2Matched are set only by their
// respective owners and only ever flip false to true.
type Conversation struct {
	ID      string `gorm:"primaryKey" json:"id"`
	User1ID string `gorm:"not null;uniqueIndex:idx_conversation_pair" json:"user1_id"`
	User2ID string `gorm:"not null;uniqueIndex:idx_conversation_pair" json:"user2_id"`

	User1Matched bool `json:"user1_matched"`
	User2Matched bool `json:"user2_matched"`

	// PlacesList is populated once, lazily, by whichever participant opens
	// the place flow first; after that both sides reuse the same ordered set.
	PlacesList VenueList `gorm:"type:jsonb" json:"places_list"`

	PlaceMatchID   *string    `json:"place_match_id,omitempty"`
	PlaceMatchName *string    `json:"place_match_name,omitempty"`
	PlaceMatchAt   *time.Time `json:"place_match_at,omitempty"`

	User1 Profile `gorm:"foreignKey:User1ID" json:"user1,omitempty"`
	User2 Profile `gorm:"foreignKey:User2ID" json:"user2,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return
}

// PairKey returns the two ids in canonical (sorted) order.
func PairKey(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// HasParticipant reports whether the given user is one of the pair.
func (c *Conversation) HasParticipant(userID string) bool {
	return c.User1ID == userID || c.User2ID == userID
}

// OtherParty returns the counterpart id for the given viewer.
func (c *Conversation) OtherParty(viewerID string) string {
	if c.User1ID == viewerID {
		return c.User2ID
	}
	return c.User1ID
}

// MatchedBy reports whether the given participant has set their flag.
func (c *Conversation) MatchedBy(userID string) bool {
	switch userID {
	case c.User1ID:
		return c.User1Matched
	case c.User2ID:
		return c.User2Matched
	}
	return false
}

// BothMatched is the mutual-match predicate, always derived from the two
// stored flags rather than cached.
func (c *Conversation) BothMatched() bool {
	return c.User1Matched && c.User2Matched
}
