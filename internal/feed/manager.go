// Package feed pushes row change events out to connected UI clients over
// WebSocket. It is the delivery edge of the realtime store: clients receive
// events and reconcile; the hub never interprets domain state.
package feed

import (
	"context"
	"encoding/json"
	"log"

	"spotmatch/app/internal/models"
)

// Client is one live connection able to receive change events.
type Client interface {
	UserID() string
	SendChannel() chan<- models.ChangeEvent
	Run()
	Close()
}

// Source is where the change events come from.
type Source interface {
	Subscribe(ctx context.Context, tables ...string) (<-chan models.ChangeEvent, func())
}

// Manager fans change events out to registered clients.
type Manager struct {
	Clients map[string][]Client

	RegisterCh   chan Client
	UnregisterCh chan Client

	source Source
}

// NewManager builds the hub.
func NewManager(source Source) *Manager {
	return &Manager{
		Clients:      make(map[string][]Client),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		source:       source,
	}
}

// Run is the hub's main loop: registration, teardown, and event routing.
// It owns the Clients map; nothing else touches it.
func (m *Manager) Run(ctx context.Context) {
	events, release := m.source.Subscribe(ctx,
		models.TableProfiles,
		models.TableRequests,
		models.TableConversations,
		models.TableMessages,
		models.TablePlaceSwipes,
	)
	defer release()

	for {
		select {
		case <-ctx.Done():
			for _, clients := range m.Clients {
				for _, client := range clients {
					client.Close()
				}
			}
			return
		case client := <-m.RegisterCh:
			m.Clients[client.UserID()] = append(m.Clients[client.UserID()], client)
			client.Run()
			log.Printf("Feed client registered for %s", client.UserID())
		case client := <-m.UnregisterCh:
			m.remove(client)
		case event, ok := <-events:
			if !ok {
				return
			}
			m.route(event)
		}
	}
}

func (m *Manager) remove(client Client) {
	userID := client.UserID()
	clients := m.Clients[userID]
	for i, c := range clients {
		if c == client {
			m.Clients[userID] = append(clients[:i], clients[i+1:]...)
			break
		}
	}
	if len(m.Clients[userID]) == 0 {
		delete(m.Clients, userID)
	}
}

// routing is the minimal slice of a row needed to decide who cares about it.
type routing struct {
	FromUserID string `json:"from_user_id"`
	ToUserID   string `json:"to_user_id"`
	User1ID    string `json:"user1_id"`
	User2ID    string `json:"user2_id"`
}

// route delivers an event to the clients it concerns. Requests and
// conversations carry their participants in the row; profile presence and
// the remaining tables are broadcast and filtered client-side during
// reconciliation.
func (m *Manager) route(event models.ChangeEvent) {
	var r routing
	if err := json.Unmarshal(event.Row, &r); err != nil {
		log.Printf("WARNING: Unroutable %s event: %v", event.Table, err)
		return
	}

	switch event.Table {
	case models.TableRequests:
		m.deliver(event, r.FromUserID, r.ToUserID)
	case models.TableConversations:
		m.deliver(event, r.User1ID, r.User2ID)
	default:
		m.broadcast(event)
	}
}

func (m *Manager) deliver(event models.ChangeEvent, userIDs ...string) {
	for _, userID := range userIDs {
		for _, client := range m.Clients[userID] {
			m.send(client, event)
		}
	}
}

func (m *Manager) broadcast(event models.ChangeEvent) {
	for _, clients := range m.Clients {
		for _, client := range clients {
			m.send(client, event)
		}
	}
}

// send never blocks the hub: a client that cannot keep up is dropped.
func (m *Manager) send(client Client, event models.ChangeEvent) {
	select {
	case client.SendChannel() <- event:
	default:
		log.Printf("WARNING: Feed client for %s too slow, dropping", client.UserID())
		client.Close()
		m.remove(client)
	}
}
