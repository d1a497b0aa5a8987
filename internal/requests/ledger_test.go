package requests_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"spotmatch/app/internal/models"
	"spotmatch/app/internal/requests"
	"spotmatch/app/internal/store"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateRequest(fromID, toID string) (*models.ConnectionRequest, error) {
	args := m.Called(fromID, toID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ConnectionRequest), args.Error(1)
}

func (m *MockStore) GetRequest(id string) (*models.ConnectionRequest, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ConnectionRequest), args.Error(1)
}

func (m *MockStore) UpdateRequestStatus(id, status string) (*models.ConnectionRequest, error) {
	args := m.Called(id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ConnectionRequest), args.Error(1)
}

func (m *MockStore) ReceivedRequests(userID string) ([]models.ConnectionRequest, error) {
	args := m.Called(userID)
	return args.Get(0).([]models.ConnectionRequest), args.Error(1)
}

func (m *MockStore) CountPendingRequests(userID string) (int64, error) {
	args := m.Called(userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) Subscribe(ctx context.Context, tables ...string) (<-chan models.ChangeEvent, func()) {
	args := m.Called(ctx, tables)
	return args.Get(0).(<-chan models.ChangeEvent), args.Get(1).(func())
}

type MockConversations struct {
	mock.Mock
}

func (m *MockConversations) OpenWithUser(otherID string) (*models.Conversation, error) {
	args := m.Called(otherID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *MockConversations) Select(convID string) {
	m.Called(convID)
}

// TestSend_DuplicateBecomesSoftNotice verifies a unique violation surfaces
// as ErrAlreadySent, not a failure.
func TestSend_DuplicateBecomesSoftNotice(t *testing.T) {
	storeMock := new(MockStore)
	ledger := requests.NewLedger("alice", storeMock, new(MockConversations))

	storeMock.On("CreateRequest", "alice", "bob").
		Return(nil, fmt.Errorf("request: %w", store.ErrDuplicate)).Once()

	_, err := ledger.Send("bob")

	assert.ErrorIs(t, err, requests.ErrAlreadySent)
	storeMock.AssertExpectations(t)
}

// TestSend_SelfRequestRejected verifies you cannot invite yourself.
func TestSend_SelfRequestRejected(t *testing.T) {
	storeMock := new(MockStore)
	ledger := requests.NewLedger("alice", storeMock, new(MockConversations))

	_, err := ledger.Send("alice")

	assert.Error(t, err)
	storeMock.AssertNotCalled(t, "CreateRequest", mock.Anything, mock.Anything)
}

// TestAccept_OpensAndSelectsConversation verifies the accept chain: status
// update first, then conversation open, then select.
func TestAccept_OpensAndSelectsConversation(t *testing.T) {
	storeMock := new(MockStore)
	convsMock := new(MockConversations)
	ledger := requests.NewLedger("bob", storeMock, convsMock)

	pending := &models.ConnectionRequest{
		ID: "req-1", FromUserID: "alice", ToUserID: "bob", Status: models.RequestPending,
	}
	accepted := &models.ConnectionRequest{
		ID: "req-1", FromUserID: "alice", ToUserID: "bob", Status: models.RequestAccepted,
	}
	conversation := &models.Conversation{ID: "conv-1", User1ID: "alice", User2ID: "bob"}

	storeMock.On("GetRequest", "req-1").Return(pending, nil).Once()
	storeMock.On("UpdateRequestStatus", "req-1", models.RequestAccepted).Return(accepted, nil).Once()
	convsMock.On("OpenWithUser", "alice").Return(conversation, nil).Once()
	convsMock.On("Select", "conv-1").Once()

	got, err := ledger.Accept("req-1")

	assert.NoError(t, err)
	assert.Equal(t, "conv-1", got.ID)
	storeMock.AssertExpectations(t)
	convsMock.AssertExpectations(t)
}

// TestAccept_TerminalTransition verifies a resolved request cannot be
// re-resolved.
func TestAccept_TerminalTransition(t *testing.T) {
	storeMock := new(MockStore)
	convsMock := new(MockConversations)
	ledger := requests.NewLedger("bob", storeMock, convsMock)

	rejected := &models.ConnectionRequest{
		ID: "req-1", FromUserID: "alice", ToUserID: "bob", Status: models.RequestRejected,
	}
	storeMock.On("GetRequest", "req-1").Return(rejected, nil).Once()

	_, err := ledger.Accept("req-1")

	assert.ErrorIs(t, err, requests.ErrAlreadyResolved)
	storeMock.AssertNotCalled(t, "UpdateRequestStatus", mock.Anything, mock.Anything)
	convsMock.AssertNotCalled(t, "OpenWithUser", mock.Anything)
}

// TestAccept_LostRaceIsResolvedError verifies that when a concurrent client
// resolves the row between read and update, the reloaded status wins.
func TestAccept_LostRaceIsResolvedError(t *testing.T) {
	storeMock := new(MockStore)
	convsMock := new(MockConversations)
	ledger := requests.NewLedger("bob", storeMock, convsMock)

	pending := &models.ConnectionRequest{
		ID: "req-1", FromUserID: "alice", ToUserID: "bob", Status: models.RequestPending,
	}
	// Conditional update fired on zero rows; reload shows rejected.
	rejected := &models.ConnectionRequest{
		ID: "req-1", FromUserID: "alice", ToUserID: "bob", Status: models.RequestRejected,
	}
	storeMock.On("GetRequest", "req-1").Return(pending, nil).Once()
	storeMock.On("UpdateRequestStatus", "req-1", models.RequestAccepted).Return(rejected, nil).Once()

	_, err := ledger.Accept("req-1")

	assert.ErrorIs(t, err, requests.ErrAlreadyResolved)
	convsMock.AssertNotCalled(t, "OpenWithUser", mock.Anything)
}

// TestReject_OnlyRecipientCanResolve verifies the sender cannot resolve
// their own request.
func TestReject_OnlyRecipientCanResolve(t *testing.T) {
	storeMock := new(MockStore)
	ledger := requests.NewLedger("alice", storeMock, new(MockConversations))

	pending := &models.ConnectionRequest{
		ID: "req-1", FromUserID: "alice", ToUserID: "bob", Status: models.RequestPending,
	}
	storeMock.On("GetRequest", "req-1").Return(pending, nil).Once()

	err := ledger.Reject("req-1")

	assert.ErrorIs(t, err, requests.ErrNotRecipient)
}

// TestRun_IncomingRequestRefreshesBadge verifies the live pending count.
func TestRun_IncomingRequestRefreshesBadge(t *testing.T) {
	storeMock := new(MockStore)
	ledger := requests.NewLedger("bob", storeMock, new(MockConversations))

	events := make(chan models.ChangeEvent, 1)
	storeMock.On("Subscribe", mock.Anything, []string{models.TableRequests}).
		Return((<-chan models.ChangeEvent)(events), func() {})
	storeMock.On("CountPendingRequests", "bob").Return(int64(3), nil).Once()

	counts := make(chan int64, 1)
	ledger.OnIncoming(func(count int64) { counts <- count })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ledger.Run(ctx)

	row, _ := json.Marshal(models.ConnectionRequest{
		ID: "req-9", FromUserID: "carol", ToUserID: "bob", Status: models.RequestPending,
	})
	events <- models.ChangeEvent{Table: models.TableRequests, Type: models.EventInsert, RowID: "req-9", Row: row}

	assert.Equal(t, int64(3), <-counts)
}

// TestRun_AcceptanceEventOpensConversationReactively verifies the
// originating client converges on the same conversation when its sent
// request gets accepted.
func TestRun_AcceptanceEventOpensConversationReactively(t *testing.T) {
	storeMock := new(MockStore)
	convsMock := new(MockConversations)
	ledger := requests.NewLedger("alice", storeMock, convsMock)

	events := make(chan models.ChangeEvent, 1)
	storeMock.On("Subscribe", mock.Anything, []string{models.TableRequests}).
		Return((<-chan models.ChangeEvent)(events), func() {})

	conversation := &models.Conversation{ID: "conv-1", User1ID: "alice", User2ID: "bob"}
	opened := make(chan struct{})
	convsMock.On("OpenWithUser", "bob").Return(conversation, nil).Once()
	convsMock.On("Select", "conv-1").Run(func(args mock.Arguments) { close(opened) }).Once()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ledger.Run(ctx)

	row, _ := json.Marshal(models.ConnectionRequest{
		ID: "req-1", FromUserID: "alice", ToUserID: "bob", Status: models.RequestAccepted,
	})
	events <- models.ChangeEvent{Table: models.TableRequests, Type: models.EventUpdate, RowID: "req-1", Row: row}

	<-opened
	convsMock.AssertExpectations(t)
}
