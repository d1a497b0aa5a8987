package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Report categories, ordered by severity.
const (
	ReportSpam          = "spam"
	ReportFakeProfile   = "fake_profile"
	ReportInappropriate = "inappropriate"
	ReportHarassment    = "harassment"
)

// Report is one user reporting another. Reports never travel over the
// change feed; only moderation reads them.
type Report struct {
	ID             string    `gorm:"type:uuid;primaryKey" json:"id"`
	ReporterID     string    `gorm:"index" json:"reporter_id"`
	ReportedID     string    `gorm:"index" json:"reported_id"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Category       string    `json:"category"`
	Details        string    `json:"details,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func (r *Report) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return
}
