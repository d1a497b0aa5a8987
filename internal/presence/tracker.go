// Package presence keeps the owner's profile row marked online with a fresh
// coordinate while the app is in the foreground, and drops it to offline on
// backgrounding or teardown. All writes are best effort.
package presence

import (
	"context"
	"log"
	"sync"
	"time"

	"spotmatch/app/internal/geo"
	"spotmatch/app/internal/models"
)

// DefaultKeepAlive is the liveness cadence: the tracker re-pushes the last
// sample on this interval even without movement so observers can detect
// staleness by last_seen age.
const DefaultKeepAlive = 30 * time.Second

// Permission is the geolocation permission state machine. A denied device is
// a state the UI renders ("enable location"), never an error thrown past
// the tracker.
type Permission string

const (
	PermissionPrompt  Permission = "prompt"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// Fix is one coordinate sample from the device.
type Fix struct {
	Point geo.Point
	At    time.Time
}

// Locator abstracts the device's geolocation service. Request triggers the
// permission prompt; Watch streams fixes on the device's own cadence until
// the context is cancelled.
type Locator interface {
	Request(ctx context.Context) (Permission, error)
	Watch(ctx context.Context) (<-chan Fix, error)
}

// Store is the slice of the row store the tracker writes through.
type Store interface {
	UpdatePresence(userID string, upd models.PresenceUpdate) error
}

// Tracker owns one user's presence reporting loop.
type Tracker struct {
	userID    string
	store     Store
	locator   Locator
	keepAlive time.Duration

	mu         sync.RWMutex
	permission Permission
	lastFix    *Fix

	cancel context.CancelFunc
	done   chan struct{}
}

// NewTracker builds a tracker; Start actually begins reporting.
func NewTracker(userID string, store Store, locator Locator, keepAlive time.Duration) *Tracker {
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}
	return &Tracker{
		userID:     userID,
		store:      store,
		locator:    locator,
		keepAlive:  keepAlive,
		permission: PermissionPrompt,
	}
}

// Permission returns the current permission state.
func (t *Tracker) Permission() Permission {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.permission
}

// CurrentLocation returns the last known coordinate, or false before the
// first fix.
func (t *Tracker) CurrentLocation() (geo.Point, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.lastFix == nil {
		return geo.Point{}, false
	}
	return t.lastFix.Point, true
}

// Start requests permission and, when granted, launches the reporting loop.
// A denied permission is recorded and Start returns nil: dependent features
// read the state and degrade.
func (t *Tracker) Start(ctx context.Context) error {
	perm, err := t.locator.Request(ctx)
	if err != nil {
		// Unsupported geolocation behaves like a denial.
		log.Printf("WARNING: Geolocation unavailable for %s: %v", t.userID, err)
		perm = PermissionDenied
	}

	t.mu.Lock()
	t.permission = perm
	t.mu.Unlock()

	if perm != PermissionGranted {
		log.Printf("Presence tracker for %s idle, permission=%s", t.userID, perm)
		return nil
	}

	watchCtx, cancel := context.WithCancel(ctx)
	fixes, err := t.locator.Watch(watchCtx)
	if err != nil {
		cancel()
		log.Printf("WARNING: Failed to start location watch for %s: %v", t.userID, err)
		t.mu.Lock()
		t.permission = PermissionDenied
		t.mu.Unlock()
		return nil
	}

	t.cancel = cancel
	t.done = make(chan struct{})
	go t.run(watchCtx, fixes)
	return nil
}

func (t *Tracker) run(ctx context.Context, fixes <-chan Fix) {
	defer close(t.done)

	ticker := time.NewTicker(t.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.pushOffline()
			return
		case fix, ok := <-fixes:
			if !ok {
				t.pushOffline()
				return
			}
			t.mu.Lock()
			t.lastFix = &fix
			t.mu.Unlock()
			t.pushOnline(&fix)
			ticker.Reset(t.keepAlive)
		case <-ticker.C:
			// Keep-alive tick: re-push the last sample even without movement.
			t.mu.RLock()
			last := t.lastFix
			t.mu.RUnlock()
			t.pushOnline(last)
		}
	}
}

// Background reports the app moved out of the foreground: offline
// immediately, location untouched. The watch keeps running so a foreground
// return resumes on the next fix or tick.
func (t *Tracker) Background() {
	t.pushOffline()
}

// Stop tears the tracker down: the watch handle is released and a final
// offline write goes out carrying the last known coordinate.
func (t *Tracker) Stop() {
	if t.cancel == nil {
		return
	}
	t.cancel()
	<-t.done
	t.cancel = nil
}

func (t *Tracker) pushOnline(fix *Fix) {
	upd := models.PresenceUpdate{
		IsOnline: true,
		LastSeen: time.Now(),
	}
	if fix != nil {
		upd.Location = models.RawLocation(fix.Point.Encode())
	}
	if err := t.store.UpdatePresence(t.userID, upd); err != nil {
		// Best effort: log and move on, the next tick self-heals.
		log.Printf("WARNING: Presence write failed for %s: %v", t.userID, err)
	}
}

func (t *Tracker) pushOffline() {
	upd := models.PresenceUpdate{
		IsOnline: false,
		LastSeen: time.Now(),
	}
	t.mu.RLock()
	if t.lastFix != nil {
		upd.Location = models.RawLocation(t.lastFix.Point.Encode())
	}
	t.mu.RUnlock()
	if err := t.store.UpdatePresence(t.userID, upd); err != nil {
		log.Printf("WARNING: Offline write failed for %s: %v", t.userID, err)
	}
}
