package models

import (
	"encoding/json"
	"time"
)

// Table names used on the change feed.
const (
	TableProfiles      = "profiles"
	TableRequests      = "connection_requests"
	TableConversations = "conversations"
	TableMessages      = "messages"
	TablePlaceSwipes   = "place_swipes"
)

// Change event types.
const (
	EventInsert = "insert"
	EventUpdate = "update"
	EventDelete = "delete"
)

// ChangeEvent is one row change fanned out over the realtime channel.
// Row carries the after-image of the row as JSON.
type ChangeEvent struct {
	Table string          `json:"table"`
	Type  string          `json:"type"`
	RowID string          `json:"row_id"`
	Row   json.RawMessage `json:"row"`
}

// PresenceUpdate is the payload the presence tracker pushes onto a profile.
// Location is left untouched when nil (going offline keeps the last
// coordinate).
type PresenceUpdate struct {
	IsOnline bool        `json:"is_online"`
	LastSeen time.Time   `json:"last_seen"`
	Location RawLocation `json:"location,omitempty"`
}
