// Package store is the app's view of the row store: Postgres rows through
// gorm, with every successful write fanned out as a change event over Redis
// pub/sub so other clients can reconcile.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"spotmatch/app/internal/models"
)

// ErrDuplicate marks a unique-constraint violation. Callers translate it
// into a soft notice instead of a failure.
var ErrDuplicate = errors.New("duplicate row")

// ErrNotFound marks a lookup that matched no row.
var ErrNotFound = errors.New("row not found")

// ProfileFilter is the candidate query shape. Zero values mean "no
// constraint" except the age bounds, which are always applied.
type ProfileFilter struct {
	MinAge     int
	MaxAge     int
	Gender     string
	OnlineOnly bool
}

// Store is everything the engines need from the row store.
type Store interface {
	GetProfile(id string) (*models.Profile, error)
	SaveProfile(p *models.Profile) error
	UpdatePresence(userID string, upd models.PresenceUpdate) error
	FindProfiles(viewerID string, f ProfileFilter) ([]models.Profile, error)

	CreateRequest(fromID, toID string) (*models.ConnectionRequest, error)
	GetRequest(id string) (*models.ConnectionRequest, error)
	UpdateRequestStatus(id, status string) (*models.ConnectionRequest, error)
	ReceivedRequests(userID string) ([]models.ConnectionRequest, error)
	CountPendingRequests(userID string) (int64, error)

	UpsertConversation(a, b string) (*models.Conversation, error)
	GetConversation(id string) (*models.Conversation, error)
	ConversationsForUser(userID string) ([]models.Conversation, error)
	SetMatchedFlag(convID, userID string) error
	SetPlacesListIfEmpty(convID string, list models.VenueList) error
	CommitPlaceMatch(convID string, v models.Venue, at time.Time) (bool, error)

	CreateMessage(m *models.Message) error
	MessagesForConversations(ids []string) ([]models.Message, error)
	MarkMessagesRead(convID, readerID string) error

	UpsertSwipe(s *models.PlaceSwipe) error
	PartnerLiked(convID, partnerID, placeID string) (bool, error)

	CreateReport(r *models.Report) error
	ReportsAgainst(userID string, since time.Time) ([]models.Report, error)
	SuspendProfile(userID string, until time.Time) error

	Subscribe(ctx context.Context, tables ...string) (<-chan models.ChangeEvent, func())
}

// Service implements Store over gorm and Redis.
type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	Ctx   context.Context
}

// New builds the storage service.
func New(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
		Ctx:   context.Background(),
	}
}

// Migrate creates the tables for every row type the app owns.
func (s *Service) Migrate() error {
	return s.DB.AutoMigrate(
		&models.Profile{},
		&models.ConnectionRequest{},
		&models.Conversation{},
		&models.Message{},
		&models.PlaceSwipe{},
		&models.Report{},
	)
}

func channelFor(table string) string {
	return "cdc:" + table
}

// publish fans a row change out over Redis. Fan-out is best effort: the row
// write already succeeded, so a publish failure is logged and dropped (the
// next full refresh self-heals).
func (s *Service) publish(table, eventType, rowID string, row interface{}) {
	rowJSON, err := json.Marshal(row)
	if err != nil {
		log.Printf("ERROR: Failed to encode change event for %s/%s: %v", table, rowID, err)
		return
	}
	event := models.ChangeEvent{
		Table: table,
		Type:  eventType,
		RowID: rowID,
		Row:   rowJSON,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("ERROR: Failed to encode change event for %s/%s: %v", table, rowID, err)
		return
	}
	if err := s.Redis.Publish(s.Ctx, channelFor(table), string(payload)).Err(); err != nil {
		log.Printf("ERROR: Failed to publish change event for %s/%s: %v", table, rowID, err)
	}
}

// Subscribe opens a change feed for the given tables. The returned release
// function closes the subscription and must be called on teardown; the event
// channel closes after release or context cancellation.
func (s *Service) Subscribe(ctx context.Context, tables ...string) (<-chan models.ChangeEvent, func()) {
	channels := make([]string, 0, len(tables))
	for _, t := range tables {
		channels = append(channels, channelFor(t))
	}

	pubsub := s.Redis.Subscribe(ctx, channels...)
	out := make(chan models.ChangeEvent, 64)

	go func() {
		defer close(out)
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event models.ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					log.Printf("ERROR: Failed to decode change event: %v", err)
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	release := func() {
		if err := pubsub.Close(); err != nil {
			log.Printf("WARNING: Failed to close change feed: %v", err)
		}
	}
	return out, release
}

// isDuplicate reports whether err is a unique-constraint violation. Relies
// on gorm error translation being enabled on the DB handle.
func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
