// Package requests implements the one-way invitation ledger: pending
// requests, terminal accept/reject transitions, and the live pending badge.
package requests

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"spotmatch/app/internal/models"
	"spotmatch/app/internal/store"
)

// ErrAlreadySent is the soft notice for a duplicate pending request.
var ErrAlreadySent = errors.New("request already sent")

// ErrAlreadyResolved marks an accept/reject attempt on a non-pending
// request. Transitions are terminal; the UI must stop offering the buttons.
var ErrAlreadyResolved = errors.New("request already resolved")

// ErrNotRecipient marks a resolution attempt by anyone but the recipient.
var ErrNotRecipient = errors.New("only the recipient can resolve a request")

// Store is the slice of the row store the ledger uses.
type Store interface {
	CreateRequest(fromID, toID string) (*models.ConnectionRequest, error)
	GetRequest(id string) (*models.ConnectionRequest, error)
	UpdateRequestStatus(id, status string) (*models.ConnectionRequest, error)
	ReceivedRequests(userID string) ([]models.ConnectionRequest, error)
	CountPendingRequests(userID string) (int64, error)
	Subscribe(ctx context.Context, tables ...string) (<-chan models.ChangeEvent, func())
}

// Conversations is the piece of the conversation store the ledger drives:
// acceptance opens (or finds) the pair's conversation and selects it.
type Conversations interface {
	OpenWithUser(otherID string) (*models.Conversation, error)
	Select(convID string)
}

// Ledger manages one viewer's connection requests.
type Ledger struct {
	viewerID      string
	store         Store
	conversations Conversations

	// onIncoming fires when a new pending request for the viewer arrives on
	// the change feed, with the fresh pending count.
	onIncoming func(count int64)
}

// NewLedger builds the ledger for a viewer.
func NewLedger(viewerID string, s Store, conversations Conversations) *Ledger {
	return &Ledger{viewerID: viewerID, store: s, conversations: conversations}
}

// OnIncoming registers the live pending-count callback.
func (l *Ledger) OnIncoming(fn func(count int64)) {
	l.onIncoming = fn
}

// Send inserts a pending request to the target. A duplicate comes back as
// ErrAlreadySent so the UI shows a notice instead of an error.
func (l *Ledger) Send(targetID string) (*models.ConnectionRequest, error) {
	if targetID == l.viewerID {
		return nil, fmt.Errorf("cannot send a request to yourself")
	}
	request, err := l.store.CreateRequest(l.viewerID, targetID)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrAlreadySent
		}
		return nil, err
	}
	log.Printf("Request %s sent from %s to %s", request.ID, l.viewerID, targetID)
	return request, nil
}

// Accept resolves a pending request and opens the conversation with the
// sender. The status update is awaited before the conversation lookup: the
// counterpart's client reacts to the update event and must find the
// accepted row.
func (l *Ledger) Accept(id string) (*models.Conversation, error) {
	request, err := l.resolve(id, models.RequestAccepted)
	if err != nil {
		return nil, err
	}

	conversation, err := l.conversations.OpenWithUser(request.FromUserID)
	if err != nil {
		return nil, err
	}
	l.conversations.Select(conversation.ID)
	return conversation, nil
}

// Reject resolves a pending request terminally.
func (l *Ledger) Reject(id string) error {
	_, err := l.resolve(id, models.RequestRejected)
	return err
}

func (l *Ledger) resolve(id, status string) (*models.ConnectionRequest, error) {
	request, err := l.store.GetRequest(id)
	if err != nil {
		return nil, err
	}
	if request.ToUserID != l.viewerID {
		return nil, ErrNotRecipient
	}
	if request.Resolved() {
		return nil, ErrAlreadyResolved
	}

	updated, err := l.store.UpdateRequestStatus(id, status)
	if err != nil {
		return nil, err
	}
	// A concurrent client may have resolved the row between the read and the
	// conditional update; the reload tells us what actually stuck.
	if updated.Status != status {
		return nil, ErrAlreadyResolved
	}
	return updated, nil
}

// Received returns the requests addressed to the viewer, newest first.
func (l *Ledger) Received() ([]models.ConnectionRequest, error) {
	return l.store.ReceivedRequests(l.viewerID)
}

// PendingCount recomputes the badge from rows.
func (l *Ledger) PendingCount() (int64, error) {
	return l.store.CountPendingRequests(l.viewerID)
}

// Run watches the change feed: new pending requests for the viewer refresh
// the badge, and an acceptance of a request the viewer sent opens the
// conversation on this side too, so both clients converge on the same
// current conversation.
func (l *Ledger) Run(ctx context.Context) {
	events, release := l.store.Subscribe(ctx, models.TableRequests)
	defer release()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			l.handleEvent(event)
		}
	}
}

func (l *Ledger) handleEvent(event models.ChangeEvent) {
	var request models.ConnectionRequest
	if err := json.Unmarshal(event.Row, &request); err != nil {
		log.Printf("WARNING: Undecodable request event %s: %v", event.RowID, err)
		return
	}

	switch {
	case request.ToUserID == l.viewerID && event.Type == models.EventInsert:
		if l.onIncoming != nil {
			count, err := l.store.CountPendingRequests(l.viewerID)
			if err != nil {
				log.Printf("WARNING: Pending count refresh failed: %v", err)
				return
			}
			l.onIncoming(count)
		}
	case request.FromUserID == l.viewerID && request.Status == models.RequestAccepted:
		conversation, err := l.conversations.OpenWithUser(request.ToUserID)
		if err != nil {
			log.Printf("WARNING: Failed to open conversation after acceptance of %s: %v", request.ID, err)
			return
		}
		l.conversations.Select(conversation.ID)
		log.Printf("Request %s accepted, conversation %s selected", request.ID, conversation.ID)
	}
}
