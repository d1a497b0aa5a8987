package discovery_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"spotmatch/app/internal/discovery"
	"spotmatch/app/internal/geo"
	"spotmatch/app/internal/models"
	"spotmatch/app/internal/store"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) FindProfiles(viewerID string, f store.ProfileFilter) ([]models.Profile, error) {
	args := m.Called(viewerID, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Profile), args.Error(1)
}

func (m *MockStore) Subscribe(ctx context.Context, tables ...string) (<-chan models.ChangeEvent, func()) {
	args := m.Called(ctx, tables)
	return args.Get(0).(<-chan models.ChangeEvent), args.Get(1).(func())
}

func profileAt(id string, age int, gender string, location string) models.Profile {
	p := models.Profile{
		ID:       id,
		Age:      age,
		Gender:   gender,
		LastSeen: time.Now(),
	}
	if location != "" {
		p.Location = models.RawLocation(location)
	}
	return p
}

// TestNearby_RadiusAndNormalization verifies the map variant keeps only
// candidates with a usable coordinate inside 50 km.
func TestNearby_RadiusAndNormalization(t *testing.T) {
	storeMock := new(MockStore)
	svc := discovery.New("viewer", storeMock)
	viewer := geo.Point{Lat: 48.85, Lng: 2.35}

	profiles := []models.Profile{
		profileAt("close", 30, "femme", `{"lat":48.80,"lng":2.30}`),
		profileAt("legacy-shape", 28, "femme", `{"latitude":48.90,"longitude":2.40}`),
		profileAt("too-far", 30, "femme", `{"lat":50.0,"lng":4.0}`),
		profileAt("no-location", 30, "femme", ""),
		profileAt("broken-location", 30, "femme", `"not a coordinate"`),
	}
	storeMock.On("FindProfiles", "viewer", mock.Anything).Return(profiles, nil)

	got, err := svc.Nearby(viewer, discovery.Filters{MinAge: 21, MaxAge: 45, Gender: discovery.GenderAll})

	assert.NoError(t, err)
	ids := make([]string, 0, len(got))
	for _, c := range got {
		ids = append(ids, c.Profile.ID)
		assert.NotNil(t, c.Location)
	}
	assert.ElementsMatch(t, []string{"close", "legacy-shape"}, ids)
}

// TestNearby_GenderAllMapsToNoConstraint verifies 'tous' is translated to
// an unconstrained store query.
func TestNearby_GenderAllMapsToNoConstraint(t *testing.T) {
	storeMock := new(MockStore)
	svc := discovery.New("viewer", storeMock)

	storeMock.On("FindProfiles", "viewer", store.ProfileFilter{
		MinAge: 21, MaxAge: 45, Gender: "", OnlineOnly: false,
	}).Return([]models.Profile{}, nil)

	_, err := svc.Nearby(geo.Point{Lat: 48.85, Lng: 2.35},
		discovery.Filters{MinAge: 21, MaxAge: 45, Gender: discovery.GenderAll})

	assert.NoError(t, err)
	storeMock.AssertExpectations(t)
}

// TestNearby_RejectsInvertedAgeRange verifies filter validation.
func TestNearby_RejectsInvertedAgeRange(t *testing.T) {
	storeMock := new(MockStore)
	svc := discovery.New("viewer", storeMock)

	_, err := svc.Nearby(geo.Point{}, discovery.Filters{MinAge: 45, MaxAge: 21})

	assert.Error(t, err)
	storeMock.AssertNotCalled(t, "FindProfiles", mock.Anything, mock.Anything)
}

// TestBrowse_KeepsLocationlessCandidates verifies the list variant keeps
// profiles whose location is absent or unusable.
func TestBrowse_KeepsLocationlessCandidates(t *testing.T) {
	storeMock := new(MockStore)
	svc := discovery.New("viewer", storeMock)

	profiles := []models.Profile{
		profileAt("located", 30, "homme", `{"lat":48.80,"lng":2.30}`),
		profileAt("no-location", 25, "homme", ""),
	}
	storeMock.On("FindProfiles", "viewer", mock.Anything).Return(profiles, nil)

	got, err := svc.Browse(discovery.Filters{MinAge: 21, MaxAge: 45, Gender: discovery.GenderAll})

	assert.NoError(t, err)
	assert.Len(t, got, 2)
	assert.NotNil(t, got[0].Location)
	assert.Nil(t, got[1].Location)
}

// TestApplyPresence_MergesInPlace verifies a presence event updates the held
// candidate without reordering or refetching.
func TestApplyPresence_MergesInPlace(t *testing.T) {
	storeMock := new(MockStore)
	svc := discovery.New("viewer", storeMock)

	profiles := []models.Profile{
		profileAt("a", 30, "femme", `{"lat":48.80,"lng":2.30}`),
		profileAt("b", 31, "femme", `{"lat":48.81,"lng":2.31}`),
	}
	storeMock.On("FindProfiles", "viewer", mock.Anything).Return(profiles, nil)
	_, err := svc.Nearby(geo.Point{Lat: 48.85, Lng: 2.35}, discovery.Filters{MinAge: 21, MaxAge: 45})
	assert.NoError(t, err)

	updated := profileAt("b", 31, "femme", `{"lat":48.70,"lng":2.20}`)
	updated.IsOnline = true
	row, _ := json.Marshal(updated)

	touched := svc.ApplyPresence(models.ChangeEvent{
		Table: models.TableProfiles,
		Type:  models.EventUpdate,
		RowID: "b",
		Row:   row,
	})

	assert.True(t, touched)
	got := svc.Candidates()
	assert.Len(t, got, 2)
	// Order stable, candidate b updated in place.
	assert.Equal(t, "a", got[0].Profile.ID)
	assert.Equal(t, "b", got[1].Profile.ID)
	assert.True(t, got[1].Profile.IsOnline)
	assert.Equal(t, geo.Point{Lat: 48.70, Lng: 2.20}, *got[1].Location)

	// Events for profiles outside the held list are ignored.
	other := profileAt("stranger", 40, "femme", `{"lat":48.0,"lng":2.0}`)
	row2, _ := json.Marshal(other)
	touched = svc.ApplyPresence(models.ChangeEvent{
		Table: models.TableProfiles, Type: models.EventUpdate, RowID: "stranger", Row: row2,
	})
	assert.False(t, touched)
}

// TestApplyPresence_UndecodableEventIsIgnored verifies a broken payload
// never disturbs the list.
func TestApplyPresence_UndecodableEventIsIgnored(t *testing.T) {
	storeMock := new(MockStore)
	svc := discovery.New("viewer", storeMock)

	touched := svc.ApplyPresence(models.ChangeEvent{
		Table: models.TableProfiles,
		Type:  models.EventUpdate,
		Row:   json.RawMessage(`{broken`),
	})

	assert.False(t, touched)
}
