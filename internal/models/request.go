package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Connection request statuses. A request starts pending and moves to
// accepted or rejected exactly once; there is no way back.
const (
	RequestPending  = "pending"
	RequestAccepted = "accepted"
	RequestRejected = "rejected"
)

// ConnectionRequest is a directed invitation from one user to another.
// The (FromUserID, ToUserID) pair is unique: a second send while one is
// outstanding is suppressed at the store layer.
type ConnectionRequest struct {
	ID         string `gorm:"primaryKey" json:"id"`
	FromUserID string `gorm:"not null;uniqueIndex:idx_request_pair" json:"from_user_id"`
	ToUserID   string `gorm:"not null;uniqueIndex:idx_request_pair" json:"to_user_id"`
	Status     string `gorm:"not null;default:pending" json:"status"`

	From Profile `gorm:"foreignKey:FromUserID" json:"from,omitempty"`
	To   Profile `gorm:"foreignKey:ToUserID" json:"to,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *ConnectionRequest) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Status == "" {
		r.Status = RequestPending
	}
	return
}

// Resolved reports whether the request reached a terminal status.
func (r *ConnectionRequest) Resolved() bool {
	return r.Status != RequestPending
}
