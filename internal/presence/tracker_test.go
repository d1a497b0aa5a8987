package presence_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"spotmatch/app/internal/geo"
	"spotmatch/app/internal/models"
	"spotmatch/app/internal/presence"
)

// recordingStore captures every presence write in order.
type recordingStore struct {
	mu      sync.Mutex
	writes  []models.PresenceUpdate
	failAll bool
}

func (s *recordingStore) UpdatePresence(userID string, upd models.PresenceUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return errors.New("store down")
	}
	s.writes = append(s.writes, upd)
	return nil
}

func (s *recordingStore) snapshot() []models.PresenceUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.PresenceUpdate, len(s.writes))
	copy(out, s.writes)
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

// TestTracker_PushesOnlineOnFix verifies each fix becomes an online write
// carrying the coordinate.
func TestTracker_PushesOnlineOnFix(t *testing.T) {
	store := &recordingStore{}
	locator := presence.NewRemoteLocator()
	locator.SetPermission(presence.PermissionGranted)
	tracker := presence.NewTracker("user-1", store, locator, time.Hour)

	err := tracker.Start(context.Background())
	assert.NoError(t, err)
	defer tracker.Stop()

	locator.Push(geo.Point{Lat: 48.85, Lng: 2.35})

	waitFor(t, func() bool { return len(store.snapshot()) >= 1 })
	writes := store.snapshot()
	assert.True(t, writes[0].IsOnline)

	point, ok := geo.Normalize(writes[0].Location)
	assert.True(t, ok)
	assert.Equal(t, geo.Point{Lat: 48.85, Lng: 2.35}, point)

	loc, ok := tracker.CurrentLocation()
	assert.True(t, ok)
	assert.Equal(t, geo.Point{Lat: 48.85, Lng: 2.35}, loc)
}

// TestTracker_KeepAliveRepushesWithoutMovement verifies the liveness tick
// re-writes the last sample.
func TestTracker_KeepAliveRepushesWithoutMovement(t *testing.T) {
	store := &recordingStore{}
	locator := presence.NewRemoteLocator()
	locator.SetPermission(presence.PermissionGranted)
	tracker := presence.NewTracker("user-1", store, locator, 20*time.Millisecond)

	assert.NoError(t, tracker.Start(context.Background()))
	defer tracker.Stop()

	locator.Push(geo.Point{Lat: 48.85, Lng: 2.35})

	waitFor(t, func() bool { return len(store.snapshot()) >= 3 })
	for _, w := range store.snapshot() {
		assert.True(t, w.IsOnline)
	}
}

// TestTracker_StopPushesOfflineWithLastFix verifies teardown releases the
// watch and writes a final offline sample keeping the coordinate.
func TestTracker_StopPushesOfflineWithLastFix(t *testing.T) {
	store := &recordingStore{}
	locator := presence.NewRemoteLocator()
	locator.SetPermission(presence.PermissionGranted)
	tracker := presence.NewTracker("user-1", store, locator, time.Hour)

	assert.NoError(t, tracker.Start(context.Background()))
	locator.Push(geo.Point{Lat: 48.85, Lng: 2.35})
	waitFor(t, func() bool { return len(store.snapshot()) >= 1 })

	tracker.Stop()

	writes := store.snapshot()
	last := writes[len(writes)-1]
	assert.False(t, last.IsOnline)

	point, ok := geo.Normalize(last.Location)
	assert.True(t, ok, "offline write should keep the last known coordinate")
	assert.Equal(t, geo.Point{Lat: 48.85, Lng: 2.35}, point)
}

// TestTracker_Background flips online off without clearing location and
// without stopping the watch.
func TestTracker_Background(t *testing.T) {
	store := &recordingStore{}
	locator := presence.NewRemoteLocator()
	locator.SetPermission(presence.PermissionGranted)
	tracker := presence.NewTracker("user-1", store, locator, time.Hour)

	assert.NoError(t, tracker.Start(context.Background()))
	defer tracker.Stop()

	locator.Push(geo.Point{Lat: 48.85, Lng: 2.35})
	waitFor(t, func() bool { return len(store.snapshot()) >= 1 })

	tracker.Background()

	waitFor(t, func() bool {
		writes := store.snapshot()
		return !writes[len(writes)-1].IsOnline
	})

	// A later fix brings the user back online.
	locator.Push(geo.Point{Lat: 48.86, Lng: 2.36})
	waitFor(t, func() bool {
		writes := store.snapshot()
		return writes[len(writes)-1].IsOnline
	})
}

// TestTracker_DeniedPermissionIsAStateNotAnError verifies denial leaves the
// tracker idle without failing Start.
func TestTracker_DeniedPermissionIsAStateNotAnError(t *testing.T) {
	store := &recordingStore{}
	locator := presence.NewRemoteLocator()
	locator.SetPermission(presence.PermissionDenied)
	tracker := presence.NewTracker("user-1", store, locator, time.Hour)

	err := tracker.Start(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, presence.PermissionDenied, tracker.Permission())
	assert.Empty(t, store.snapshot(), "no presence writes without permission")
}

// TestTracker_WriteFailuresAreSwallowed verifies a failing store never
// breaks the loop.
func TestTracker_WriteFailuresAreSwallowed(t *testing.T) {
	store := &recordingStore{failAll: true}
	locator := presence.NewRemoteLocator()
	locator.SetPermission(presence.PermissionGranted)
	tracker := presence.NewTracker("user-1", store, locator, time.Hour)

	assert.NoError(t, tracker.Start(context.Background()))
	locator.Push(geo.Point{Lat: 48.85, Lng: 2.35})
	locator.Push(geo.Point{Lat: 48.86, Lng: 2.36})

	// The loop must still be alive and tracking fixes.
	waitFor(t, func() bool {
		loc, ok := tracker.CurrentLocation()
		return ok && loc.Lat == 48.86
	})
	tracker.Stop()
}
