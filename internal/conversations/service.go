// Package conversations maintains the viewer's conversation list: message
// aggregation, unread counts, the current selection, and the mutual-match
// reconciler.
package conversations

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"spotmatch/app/internal/models"
)

// RefreshDebounce batches change-feed bursts into one full refresh. Full
// refetch keeps the aggregation single-sourced; per-user conversation counts
// are small enough that the extra volume does not matter.
const RefreshDebounce = 250 * time.Millisecond

// Entry is one conversation as the UI consumes it: the row plus the reduced
// message aggregates and the counterpart's profile.
type Entry struct {
	Conversation models.Conversation `json:"conversation"`
	Other        models.Profile      `json:"other"`
	LastMessage  *models.Message     `json:"last_message,omitempty"`
	UnreadCount  int                 `json:"unread_count"`
}

// Store is the slice of the row store the conversation service uses.
type Store interface {
	ConversationsForUser(userID string) ([]models.Conversation, error)
	UpsertConversation(a, b string) (*models.Conversation, error)
	SetMatchedFlag(convID, userID string) error
	CreateMessage(m *models.Message) error
	MessagesForConversations(ids []string) ([]models.Message, error)
	MarkMessagesRead(convID, readerID string) error
	Subscribe(ctx context.Context, tables ...string) (<-chan models.ChangeEvent, func())
}

// Service holds one viewer's conversation state.
type Service struct {
	viewerID string
	store    Store

	mu        sync.RWMutex
	entries   []Entry
	currentID string

	// celebrated remembers which conversations already fired the mutual
	// match celebration, so the false->true transition triggers exactly once.
	celebrated    map[string]bool
	onMutualMatch func(Entry)

	refreshCh chan struct{}
}

// New builds the service for a viewer.
func New(viewerID string, s Store) *Service {
	return &Service{
		viewerID:   viewerID,
		store:      s,
		celebrated: make(map[string]bool),
		refreshCh:  make(chan struct{}, 1),
	}
}

// OnMutualMatch registers the celebration callback, invoked once per
// conversation the first time both matched flags are observed true.
func (s *Service) OnMutualMatch(fn func(Entry)) {
	s.onMutualMatch = fn
}

// Refresh refetches everything and re-reduces. Two steps on purpose: all
// conversations first, then one IN-query for the messages of all of them,
// reduced into last-message and unread counts.
func (s *Service) Refresh() error {
	conversations, err := s.store.ConversationsForUser(s.viewerID)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(conversations))
	for _, c := range conversations {
		ids = append(ids, c.ID)
	}
	messages, err := s.store.MessagesForConversations(ids)
	if err != nil {
		return err
	}

	// Messages arrive newest first, so the first one seen per conversation
	// is its last message.
	lastByConv := make(map[string]models.Message)
	unreadByConv := make(map[string]int)
	for _, m := range messages {
		if _, ok := lastByConv[m.ConversationID]; !ok {
			lastByConv[m.ConversationID] = m
		}
		if m.SenderID != s.viewerID && !m.IsRead {
			unreadByConv[m.ConversationID]++
		}
	}

	entries := make([]Entry, 0, len(conversations))
	var celebrations []Entry
	for _, c := range conversations {
		entry := Entry{
			Conversation: c,
			Other:        s.otherProfile(c),
			UnreadCount:  unreadByConv[c.ID],
		}
		if last, ok := lastByConv[c.ID]; ok {
			lastCopy := last
			entry.LastMessage = &lastCopy
		}
		entries = append(entries, entry)
	}

	s.mu.Lock()
	s.entries = entries
	for _, entry := range entries {
		if entry.Conversation.BothMatched() && !s.celebrated[entry.Conversation.ID] {
			s.celebrated[entry.Conversation.ID] = true
			celebrations = append(celebrations, entry)
		}
	}
	s.mu.Unlock()

	// Fire outside the lock; the callback navigates UI.
	if s.onMutualMatch != nil {
		for _, entry := range celebrations {
			s.onMutualMatch(entry)
		}
	}
	return nil
}

func (s *Service) otherProfile(c models.Conversation) models.Profile {
	if c.User1ID == s.viewerID {
		return c.User2
	}
	return c.User1
}

// Entries returns the held list.
func (s *Service) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Select marks a conversation current.
func (s *Service) Select(convID string) {
	s.mu.Lock()
	s.currentID = convID
	s.mu.Unlock()
}

// Current returns the selected entry.
func (s *Service) Current() (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, entry := range s.entries {
		if entry.Conversation.ID == s.currentID {
			return entry, true
		}
	}
	return Entry{}, false
}

// Entry returns the entry for a conversation id.
func (s *Service) Entry(convID string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, entry := range s.entries {
		if entry.Conversation.ID == convID {
			return entry, true
		}
	}
	return Entry{}, false
}

// OpenWithUser finds or creates the conversation with the other user.
// Idempotent: the pair is canonicalized and upserted, so both participants
// calling concurrently land on the same row.
func (s *Service) OpenWithUser(otherID string) (*models.Conversation, error) {
	conversation, err := s.store.UpsertConversation(s.viewerID, otherID)
	if err != nil {
		return nil, err
	}
	if err := s.Refresh(); err != nil {
		// The row exists; a refresh failure only staled the list.
		log.Printf("WARNING: Refresh after opening conversation %s failed: %v", conversation.ID, err)
	}
	return conversation, nil
}

// SendMessage appends a plain text message from the viewer.
func (s *Service) SendMessage(convID, content string) (*models.Message, error) {
	message := &models.Message{
		ConversationID: convID,
		SenderID:       s.viewerID,
		Content:        content,
	}
	if err := s.store.CreateMessage(message); err != nil {
		return nil, err
	}
	return message, nil
}

// MarkRead flags the counterpart's messages as read.
func (s *Service) MarkRead(convID string) error {
	return s.store.MarkMessagesRead(convID, s.viewerID)
}

// SetMatched raises the viewer's own matched flag on the conversation. One
// way only; the store keeps it monotonic and Refresh re-derives BothMatched.
func (s *Service) SetMatched(convID string) error {
	if err := s.store.SetMatchedFlag(convID, s.viewerID); err != nil {
		return err
	}
	return s.Refresh()
}

// BothMatched reports the mutual-match predicate for a held conversation,
// always derived from the row flags.
func (s *Service) BothMatched(convID string) bool {
	entry, ok := s.Entry(convID)
	return ok && entry.Conversation.BothMatched()
}

// Run subscribes to conversation and message changes; any event touching a
// conversation the viewer participates in schedules a debounced full
// refresh.
func (s *Service) Run(ctx context.Context) {
	events, release := s.store.Subscribe(ctx, models.TableConversations, models.TableMessages)
	defer release()

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if !s.concernsViewer(event) {
				continue
			}
			if timer == nil {
				timer = time.AfterFunc(RefreshDebounce, func() {
					select {
					case s.refreshCh <- struct{}{}:
					default:
					}
				})
			} else {
				timer.Reset(RefreshDebounce)
			}
		case <-s.refreshCh:
			timer = nil
			if err := s.Refresh(); err != nil {
				log.Printf("ERROR: Conversation refresh failed: %v", err)
			}
		}
	}
}

func (s *Service) concernsViewer(event models.ChangeEvent) bool {
	switch event.Table {
	case models.TableConversations:
		var c models.Conversation
		if err := json.Unmarshal(event.Row, &c); err != nil {
			return false
		}
		return c.HasParticipant(s.viewerID)
	case models.TableMessages:
		var m struct {
			ConversationID string `json:"conversation_id"`
			SenderID       string `json:"sender_id"`
		}
		if err := json.Unmarshal(event.Row, &m); err != nil {
			return false
		}
		if m.ConversationID == "" {
			return false
		}
		// Messages in held threads refresh; so do the viewer's own messages
		// echoed before a just-created thread landed in the list. Strangers'
		// conversations stay ignored.
		if _, ok := s.Entry(m.ConversationID); ok {
			return true
		}
		return m.SenderID == s.viewerID
	}
	return false
}

// String implements fmt.Stringer for logging.
func (s *Service) String() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fmt.Sprintf("conversations<%s: %d held, current=%s>", s.viewerID, len(s.entries), s.currentID)
}
