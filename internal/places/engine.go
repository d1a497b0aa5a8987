// Package places drives the two-party swipe-to-consensus flow over a shared
// ordered venue list, committing the first venue both participants liked as
// the conversation's meeting place.
package places

import (
	"errors"
	"log"
	"sync"
	"time"

	"spotmatch/app/internal/geo"
	"spotmatch/app/internal/models"
)

// Engine states.
type State string

const (
	StateLoading   State = "loading"
	StateBrowsing  State = "browsing"
	StateConverged State = "converged"
	StateExhausted State = "exhausted"
)

// ErrNotBrowsing marks a swipe outside the browsing state.
var ErrNotBrowsing = errors.New("no venue to swipe")

// Store is the slice of the row store the engine uses.
type Store interface {
	GetConversation(id string) (*models.Conversation, error)
	SetPlacesListIfEmpty(convID string, list models.VenueList) error
	UpsertSwipe(s *models.PlaceSwipe) error
	PartnerLiked(convID, partnerID, placeID string) (bool, error)
	CommitPlaceMatch(convID string, v models.Venue, at time.Time) (bool, error)
	CreateMessage(m *models.Message) error
}

// Venues is the external lookup consulted once per conversation.
type Venues interface {
	Nearby(origin geo.Point, category string) ([]models.Venue, error)
}

// Engine walks one participant through one conversation's candidate list.
// One engine is shared by concurrent requests for the same viewer, so the
// cursor state lives behind a mutex.
type Engine struct {
	viewerID string
	store    Store
	venues   Venues

	mu        sync.Mutex
	convID    string
	partnerID string
	list      models.VenueList
	index     int
	state     State
	matched   *models.Venue
}

// NewEngine builds an engine for the viewer. Load starts a session.
func NewEngine(viewerID string, store Store, venues Venues) *Engine {
	return &Engine{
		viewerID: viewerID,
		store:    store,
		venues:   venues,
		state:    StateLoading,
	}
}

// Load enters the flow for a conversation. An already-populated places_list
// is reused so both participants walk the identical ordered sequence;
// otherwise a fresh ranked list is fetched around the viewer and persisted
// once for the counterpart to reuse.
func (e *Engine) Load(convID string, origin geo.Point, category string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state = StateLoading
	e.convID = convID
	e.index = 0
	e.matched = nil

	conversation, err := e.store.GetConversation(convID)
	if err != nil {
		return err
	}
	e.partnerID = conversation.OtherParty(e.viewerID)

	// A committed meeting place short-circuits the whole flow.
	if conversation.PlaceMatchID != nil {
		e.adoptCommitted(conversation)
		return nil
	}

	if len(conversation.PlacesList) > 0 {
		e.list = conversation.PlacesList
		e.state = StateBrowsing
		return nil
	}

	fetched, err := e.venues.Nearby(origin, category)
	if err != nil {
		// Includes ErrNotConfigured: fatal for this call only.
		return err
	}
	if err := e.store.SetPlacesListIfEmpty(convID, fetched); err != nil {
		return err
	}

	// Re-read: if the counterpart won the populate race, their list sticks
	// and we swipe that one.
	conversation, err = e.store.GetConversation(convID)
	if err != nil {
		return err
	}
	e.list = conversation.PlacesList
	if len(e.list) == 0 {
		e.state = StateExhausted
		return nil
	}
	e.state = StateBrowsing
	return nil
}

// adoptCommitted takes the row's committed meeting place as the matched
// venue. The row is the authority; a venue outside the held list is
// synthesized from the committed id and name. Caller holds the lock.
func (e *Engine) adoptCommitted(conversation *models.Conversation) {
	if len(conversation.PlacesList) > 0 {
		e.list = conversation.PlacesList
	}
	e.matched = e.findVenue(*conversation.PlaceMatchID)
	if e.matched == nil {
		v := models.Venue{ID: *conversation.PlaceMatchID}
		if conversation.PlaceMatchName != nil {
			v.Name = *conversation.PlaceMatchName
		}
		e.matched = &v
	}
	e.state = StateConverged
}

// Refresh re-reads the conversation row and adopts a meeting place the
// counterpart committed in the meantime. Unlike Load it never moves the
// cursor, so polling state mid-deck is safe.
func (e *Engine) Refresh() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateConverged || e.convID == "" {
		return nil
	}
	conversation, err := e.store.GetConversation(e.convID)
	if err != nil {
		return err
	}
	if conversation.PlaceMatchID != nil {
		e.adoptCommitted(conversation)
	}
	return nil
}

// State returns the engine state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Current returns the venue under the cursor.
func (e *Engine) Current() (models.Venue, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current()
}

func (e *Engine) current() (models.Venue, bool) {
	if e.state != StateBrowsing || e.index >= len(e.list) {
		return models.Venue{}, false
	}
	return e.list[e.index], true
}

// MatchedVenue returns the converged meeting place once committed.
func (e *Engine) MatchedVenue() (models.Venue, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.matched == nil {
		return models.Venue{}, false
	}
	return *e.matched, true
}

// Remaining returns how many venues are left to swipe, current included.
func (e *Engine) Remaining() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.index >= len(e.list) {
		return 0
	}
	return len(e.list) - e.index
}

// Swipe records the verdict on the current venue and advances. On a like it
// checks whether the counterpart already liked the same venue; if so this is
// the convergence event: the meeting place is committed (first writer wins)
// and a system message announces it in the thread.
//
// The like-check and the commit are two separate writes; when both
// participants like the same venue in the same instant both may attempt the
// commit. The conditional commit lets the first stick and the second finds
// zero rows.
func (e *Engine) Swipe(liked bool) (models.Venue, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	venue, ok := e.current()
	if !ok {
		return models.Venue{}, ErrNotBrowsing
	}

	swipe := &models.PlaceSwipe{
		ConversationID: e.convID,
		UserID:         e.viewerID,
		PlaceID:        venue.ID,
		Liked:          liked,
		SwipeOrder:     e.index,
	}
	if err := e.store.UpsertSwipe(swipe); err != nil {
		return venue, err
	}

	converged := false
	if liked {
		partnerLikes, err := e.store.PartnerLiked(e.convID, e.partnerID, venue.ID)
		if err != nil {
			// The swipe is recorded; the counterpart's like-check will catch
			// the convergence on their side.
			log.Printf("WARNING: Partner like check failed for %s/%s: %v", e.convID, venue.ID, err)
		} else if partnerLikes {
			converged = e.commit(venue)
		}
	}

	// The cursor advances no matter what happened above.
	e.index++
	if converged {
		return venue, nil
	}
	if e.index >= len(e.list) {
		e.state = StateExhausted
		log.Printf("Conversation %s exhausted its venue list without converging", e.convID)
	}
	return venue, nil
}

func (e *Engine) commit(venue models.Venue) bool {
	committed, err := e.store.CommitPlaceMatch(e.convID, venue, time.Now())
	if err != nil {
		log.Printf("ERROR: Failed to commit place match %s for %s: %v", venue.ID, e.convID, err)
		return false
	}

	if committed {
		announcement := &models.Message{
			ConversationID: e.convID,
			SenderID:       e.viewerID,
			Content:        models.EncodePlaceMatch(venue),
		}
		if err := e.store.CreateMessage(announcement); err != nil {
			log.Printf("ERROR: Failed to announce place match in %s: %v", e.convID, err)
		}
		log.Printf("Conversation %s converged on %s (%s)", e.convID, venue.Name, venue.ID)
		e.matched = &venue
		e.state = StateConverged
		return true
	}

	// Lost the commit race: the counterpart got there first, and not
	// necessarily with this venue. The row decides the meeting place.
	conversation, err := e.store.GetConversation(e.convID)
	if err != nil || conversation.PlaceMatchID == nil {
		log.Printf("WARNING: Commit for %s lost but winner unreadable: %v", e.convID, err)
		e.matched = &venue
		e.state = StateConverged
		return true
	}
	e.adoptCommitted(conversation)
	return true
}

func (e *Engine) findVenue(placeID string) *models.Venue {
	for i := range e.list {
		if e.list[i].ID == placeID {
			return &e.list[i]
		}
	}
	return nil
}
