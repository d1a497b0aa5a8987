// Package discovery fetches nearby, filterable candidate profiles and keeps
// the held list fresh by merging live presence events in place.
package discovery

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/go-playground/validator/v10"

	"spotmatch/app/internal/geo"
	"spotmatch/app/internal/models"
	"spotmatch/app/internal/store"
)

// RadiusKm is the fixed map-view search radius.
const RadiusKm = 50.0

// GenderAll is the filter value meaning no gender constraint.
const GenderAll = "tous"

// Filters is the candidate query shape coming from the UI.
type Filters struct {
	MinAge     int    `json:"min_age" validate:"gte=18,lte=99"`
	MaxAge     int    `json:"max_age" validate:"gte=18,lte=99,gtefield=MinAge"`
	Gender     string `json:"gender"`
	OnlineOnly bool   `json:"online_only"`
}

// Candidate is one discovered profile with its normalized coordinate.
// Location is nil when the stored encoding failed to normalize (only
// possible in the list variant; the map variant drops those).
type Candidate struct {
	Profile  models.Profile `json:"profile"`
	Location *geo.Point     `json:"location,omitempty"`
}

// Store is the slice of the row store discovery reads from.
type Store interface {
	FindProfiles(viewerID string, f store.ProfileFilter) ([]models.Profile, error)
	Subscribe(ctx context.Context, tables ...string) (<-chan models.ChangeEvent, func())
}

// Service holds one viewer's candidate list.
type Service struct {
	viewerID string
	store    Store
	validate *validator.Validate

	mu         sync.RWMutex
	candidates []Candidate
}

// New builds a discovery service for the viewer.
func New(viewerID string, s Store) *Service {
	return &Service{
		viewerID: viewerID,
		store:    s,
		validate: validator.New(),
	}
}

func (s *Service) storeFilter(f Filters) store.ProfileFilter {
	gender := f.Gender
	if gender == GenderAll {
		gender = ""
	}
	return store.ProfileFilter{
		MinAge:     f.MinAge,
		MaxAge:     f.MaxAge,
		Gender:     gender,
		OnlineOnly: f.OnlineOnly,
	}
}

// Nearby is the map variant: candidates matching the filters within RadiusKm
// of the viewer. Profiles whose location cannot be normalized are dropped,
// since they cannot be placed on the map.
func (s *Service) Nearby(viewer geo.Point, f Filters) ([]Candidate, error) {
	if err := s.validate.Struct(f); err != nil {
		return nil, err
	}

	profiles, err := s.store.FindProfiles(s.viewerID, s.storeFilter(f))
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(profiles))
	for _, p := range profiles {
		point, ok := geo.Normalize(p.Location)
		if !ok {
			continue
		}
		if !geo.WithinKm(viewer, point, RadiusKm) {
			continue
		}
		loc := point
		candidates = append(candidates, Candidate{Profile: p, Location: &loc})
	}

	s.mu.Lock()
	s.candidates = candidates
	s.mu.Unlock()
	return candidates, nil
}

// Browse is the list variant: no radius constraint, and candidates without a
// usable location are kept.
func (s *Service) Browse(f Filters) ([]Candidate, error) {
	if err := s.validate.Struct(f); err != nil {
		return nil, err
	}

	profiles, err := s.store.FindProfiles(s.viewerID, s.storeFilter(f))
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(profiles))
	for _, p := range profiles {
		c := Candidate{Profile: p}
		if point, ok := geo.Normalize(p.Location); ok {
			c.Location = &point
		}
		candidates = append(candidates, c)
	}

	s.mu.Lock()
	s.candidates = candidates
	s.mu.Unlock()
	return candidates, nil
}

// Candidates returns the held list.
func (s *Service) Candidates() []Candidate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Candidate, len(s.candidates))
	copy(out, s.candidates)
	return out
}

// ApplyPresence merges a profile change event into the held list in place,
// matching by id. Incremental merge keeps the list order stable instead of
// refetching on every presence tick. Returns true when a candidate was
// touched.
func (s *Service) ApplyPresence(event models.ChangeEvent) bool {
	if event.Table != models.TableProfiles {
		return false
	}
	var updated models.Profile
	if err := json.Unmarshal(event.Row, &updated); err != nil {
		log.Printf("WARNING: Undecodable profile event %s: %v", event.RowID, err)
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.candidates {
		if s.candidates[i].Profile.ID != updated.ID {
			continue
		}
		s.candidates[i].Profile.IsOnline = updated.IsOnline
		s.candidates[i].Profile.LastSeen = updated.LastSeen
		if point, ok := geo.Normalize(updated.Location); ok {
			s.candidates[i].Profile.Location = updated.Location
			s.candidates[i].Location = &point
		}
		return true
	}
	return false
}

// Run subscribes to profile changes and merges presence updates until the
// context ends.
func (s *Service) Run(ctx context.Context) {
	events, release := s.store.Subscribe(ctx, models.TableProfiles)
	defer release()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			s.ApplyPresence(event)
		}
	}
}
