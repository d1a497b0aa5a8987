package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// RawLocation carries a profile coordinate as it was written by whichever
// client produced it. Older clients wrote several shapes ({lat,lng},
// {latitude,longitude}, "lat,lng", [lng,lat]), so the column stays raw JSON
// and normalization happens at read time in the geo package.
type RawLocation json.RawMessage

func (l RawLocation) Value() (driver.Value, error) {
	if len(l) == 0 {
		return nil, nil
	}
	return string(l), nil
}

func (l *RawLocation) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*l = append((*l)[0:0], v...)
		return nil
	case string:
		*l = RawLocation(v)
		return nil
	}
	return errors.New("unsupported location column type")
}

func (l RawLocation) MarshalJSON() ([]byte, error) {
	if len(l) == 0 {
		return []byte("null"), nil
	}
	return l, nil
}

func (l *RawLocation) UnmarshalJSON(data []byte) error {
	*l = append((*l)[0:0], data...)
	return nil
}

// Profile represents a user of the app. Attribute fields are edited by the
// owner; IsOnline, LastSeen and Location are maintained by the presence
// tracker only.
type Profile struct {
	ID          string         `gorm:"primaryKey" json:"id"`
	DisplayName string         `json:"display_name"`
	Age         int            `json:"age"`
	Gender      string         `json:"gender"`
	Bio         string         `json:"bio"`
	AvatarURL   string         `json:"avatar_url"`
	Interests   pq.StringArray `gorm:"type:text[]" json:"interests"`
	Location    RawLocation    `gorm:"type:jsonb" json:"location"`
	IsOnline    bool           `json:"is_online"`
	LastSeen    time.Time      `json:"last_seen"`

	SuspendedUntil *time.Time `json:"suspended_until,omitempty"`
	LastSuspended  *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Suspended reports whether the profile is currently hidden by moderation.
func (p Profile) Suspended() bool {
	return p.SuspendedUntil != nil && p.SuspendedUntil.After(time.Now())
}

// BeforeCreate generates a UUID for the profile if the ID is not set yet.
func (p *Profile) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return
}
