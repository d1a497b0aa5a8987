package handler

import (
	"context"
	"log"
	"sync"

	"spotmatch/app/internal/config"
	"spotmatch/app/internal/conversations"
	"spotmatch/app/internal/discovery"
	"spotmatch/app/internal/places"
	"spotmatch/app/internal/presence"
	"spotmatch/app/internal/requests"
	"spotmatch/app/internal/store"
)

// Session is one authenticated user's live core: their presence tracker,
// candidate list, request ledger, conversation store, and per-conversation
// place engines. It exists for the lifetime of the user's connection to
// this instance.
type Session struct {
	UserID string

	Locator       *presence.RemoteLocator
	Tracker       *presence.Tracker
	Discovery     *discovery.Service
	Conversations *conversations.Service
	Ledger        *requests.Ledger

	mu      sync.Mutex
	engines map[string]*places.Engine

	ctx       context.Context
	cancel    context.CancelFunc
	trackOnce sync.Once
}

// StartTracking brings the presence tracker up. Safe to call on every
// permission grant; only the first call starts the loop.
func (s *Session) StartTracking() {
	s.trackOnce.Do(func() {
		if err := s.Tracker.Start(s.ctx); err != nil {
			log.Printf("ERROR: Failed to start presence tracking for %s: %v", s.UserID, err)
		}
	})
}

// Engine returns the place engine for a conversation, creating it on first
// access.
func (s *Session) Engine(convID string, st places.Store, venues places.Venues) *places.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	if engine, ok := s.engines[convID]; ok {
		return engine
	}
	engine := places.NewEngine(s.UserID, st, venues)
	s.engines[convID] = engine
	return engine
}

// Stop tears the session down: tracker offline write, subscriptions
// released via context.
func (s *Session) Stop() {
	s.Tracker.Stop()
	s.cancel()
}

type sessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	store    *store.Service
	cfg      config.Config
}

func newSessionRegistry(s *store.Service, cfg config.Config) *sessionRegistry {
	return &sessionRegistry{
		sessions: make(map[string]*Session),
		store:    s,
		cfg:      cfg,
	}
}

// get returns the user's session, building and starting it on first use.
// The reactive loops run until the session is stopped; the mutual-match
// celebration lands in the thread as a refresh the client picks up over the
// feed.
func (r *sessionRegistry) get(userID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if session, ok := r.sessions[userID]; ok {
		return session
	}

	ctx, cancel := context.WithCancel(context.Background())

	convs := conversations.New(userID, r.store)
	convs.OnMutualMatch(func(entry conversations.Entry) {
		log.Printf("Mutual match for %s in conversation %s", userID, entry.Conversation.ID)
	})
	ledger := requests.NewLedger(userID, r.store, convs)
	ledger.OnIncoming(func(count int64) {
		log.Printf("Pending requests for %s now %d", userID, count)
	})
	locator := presence.NewRemoteLocator()

	session := &Session{
		UserID:        userID,
		Locator:       locator,
		Tracker:       presence.NewTracker(userID, r.store, locator, r.cfg.PresenceKeepAlive),
		Discovery:     discovery.New(userID, r.store),
		Conversations: convs,
		Ledger:        ledger,
		engines:       make(map[string]*places.Engine),
		ctx:           ctx,
		cancel:        cancel,
	}

	go convs.Run(ctx)
	go ledger.Run(ctx)
	go session.Discovery.Run(ctx)

	r.sessions[userID] = session
	return session
}

func (r *sessionRegistry) drop(userID string) {
	r.mu.Lock()
	session, ok := r.sessions[userID]
	delete(r.sessions, userID)
	r.mu.Unlock()
	if ok {
		session.Stop()
	}
}
