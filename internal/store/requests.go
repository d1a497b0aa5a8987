package store

import (
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"

	"spotmatch/app/internal/models"
)

// CreateRequest inserts a pending request from one user to another. A second
// insert for the same pair hits the unique index and comes back as
// ErrDuplicate so callers can show the "already sent" notice.
func (s *Service) CreateRequest(fromID, toID string) (*models.ConnectionRequest, error) {
	request := models.ConnectionRequest{
		FromUserID: fromID,
		ToUserID:   toID,
		Status:     models.RequestPending,
	}
	if err := s.DB.Create(&request).Error; err != nil {
		if isDuplicate(err) {
			return nil, fmt.Errorf("request %s -> %s: %w", fromID, toID, ErrDuplicate)
		}
		log.Printf("ERROR: Failed to create request %s -> %s: %v", fromID, toID, err)
		return nil, err
	}
	s.publish(models.TableRequests, models.EventInsert, request.ID, &request)
	return &request, nil
}

// GetRequest loads one request by id.
func (s *Service) GetRequest(id string) (*models.ConnectionRequest, error) {
	var request models.ConnectionRequest
	err := s.DB.Where("id = ?", id).First(&request).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("request %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &request, nil
}

// UpdateRequestStatus resolves a pending request. The WHERE clause only
// touches pending rows, so a request that was already resolved (possibly by
// a concurrent client) is left alone and reported via ErrNotFound-free
// reload by the caller.
func (s *Service) UpdateRequestStatus(id, status string) (*models.ConnectionRequest, error) {
	result := s.DB.Model(&models.ConnectionRequest{}).
		Where("id = ? AND status = ?", id, models.RequestPending).
		Update("status", status)
	if result.Error != nil {
		log.Printf("ERROR: Failed to update request %s: %v", id, result.Error)
		return nil, result.Error
	}

	request, err := s.GetRequest(id)
	if err != nil {
		return nil, err
	}
	if result.RowsAffected > 0 {
		s.publish(models.TableRequests, models.EventUpdate, request.ID, request)
	}
	return request, nil
}

// ReceivedRequests returns all requests addressed to the user, newest first,
// with the sender profile joined in.
func (s *Service) ReceivedRequests(userID string) ([]models.ConnectionRequest, error) {
	var requests []models.ConnectionRequest
	err := s.DB.Preload("From").
		Where("to_user_id = ?", userID).
		Order("created_at desc").
		Find(&requests).Error
	if err != nil {
		return nil, err
	}
	return requests, nil
}

// CountPendingRequests recomputes the pending badge from rows.
func (s *Service) CountPendingRequests(userID string) (int64, error) {
	var count int64
	err := s.DB.Model(&models.ConnectionRequest{}).
		Where("to_user_id = ? AND status = ?", userID, models.RequestPending).
		Count(&count).Error
	return count, err
}
