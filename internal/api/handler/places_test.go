package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"spotmatch/app/internal/config"
	"spotmatch/app/internal/geo"
	"spotmatch/app/internal/models"
	"spotmatch/app/internal/places"
	"spotmatch/app/internal/presence"
)

type fakePlaceStore struct {
	conversation *models.Conversation
}

func (f *fakePlaceStore) GetConversation(id string) (*models.Conversation, error) {
	return f.conversation, nil
}
func (f *fakePlaceStore) SetPlacesListIfEmpty(string, models.VenueList) error { return nil }
func (f *fakePlaceStore) UpsertSwipe(*models.PlaceSwipe) error                { return nil }
func (f *fakePlaceStore) PartnerLiked(string, string, string) (bool, error)   { return false, nil }
func (f *fakePlaceStore) CommitPlaceMatch(string, models.Venue, time.Time) (bool, error) {
	return false, nil
}
func (f *fakePlaceStore) CreateMessage(*models.Message) error { return nil }

type fakeVenues struct{ calls int }

func (f *fakeVenues) Nearby(geo.Point, string) ([]models.Venue, error) {
	f.calls++
	return nil, nil
}

// TestPlaces_PollKeepsCursor verifies re-fetching deck state mid-deck stays
// on the current venue instead of reloading from the top.
func TestPlaces_PollKeepsCursor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := config.Config{JWTSecret: "test-secret"}
	h := &Handler{Cfg: cfg, sessions: newSessionRegistry(nil, cfg)}

	deck := models.VenueList{{ID: "p1"}, {ID: "p2"}, {ID: "p3"}}
	fakeStore := &fakePlaceStore{conversation: &models.Conversation{
		ID: "c1", User1ID: "alice", User2ID: "bob", PlacesList: deck,
	}}
	venues := &fakeVenues{}

	session := &Session{
		UserID:  "alice",
		Tracker: presence.NewTracker("alice", nil, nil, 0),
		engines: make(map[string]*places.Engine),
	}
	h.sessions.mu.Lock()
	h.sessions.sessions["alice"] = session
	h.sessions.mu.Unlock()

	engine := session.Engine("c1", fakeStore, venues)
	assert.NoError(t, engine.Load("c1", geo.Point{}, ""))
	_, err := engine.Swipe(false)
	assert.NoError(t, err)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/conversations/c1/places", nil)
	c.Params = gin.Params{{Key: "id", Value: "c1"}}
	c.Set("user_id", "alice")

	h.Places(c)

	assert.Equal(t, http.StatusOK, w.Code)
	current, ok := engine.Current()
	assert.True(t, ok)
	assert.Equal(t, "p2", current.ID, "state polls stay on the current venue")
	assert.Zero(t, venues.calls)
}
