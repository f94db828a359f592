package tickets

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/jlynch25/kaizen_api/internal/flow"
	"github.com/jlynch25/kaizen_api/internal/lib/apperr"
	"github.com/jlynch25/kaizen_api/internal/lib/logger"
	"github.com/jlynch25/kaizen_api/internal/storage/memory"
	model "github.com/jlynch25/kaizen_api/models"
)

const wallet = "0x7e60df042a9c0868"

// eventContract is where fakeChain expects KaizenEvent to live.
const eventContract = "0x1111111111111111"

type fakeChain map[string]flow.TxResult

func (c fakeChain) Result(_ context.Context, id string) (flow.TxResult, error) {
	if id == "boom" {
		return flow.TxResult{}, apperr.Unavailable(flow.MsgChainError, errors.New("dial tcp: refused"))
	}
	res, ok := c[id]
	if !ok {
		return flow.TxResult{}, apperr.NotFound("transaction not found")
	}
	return res, nil
}

func (fakeChain) Joined(res flow.TxResult, eventID uint64, attendee string) bool {
	return res.Joined(eventContract, eventID, attendee)
}

// joined is a sealed result carrying EventJoined(eventID, attendee).
func joined(id string, eventID uint64, attendee string) flow.TxResult {
	return flow.TxResult{ID: id, Status: flow.StatusSealed, Events: []flow.TxEvent{{
		Type:    flow.EventType(eventContract, "KaizenEvent", "EventJoined"),
		Payload: map[string]interface{}{"eventId": eventID, "attendee": attendee},
	}}}
}

// setup returns the service, an event linked to chain id 5, an event with no
// chain id and a caller id.
func setup(t *testing.T, seats int) (*Service, model.Event, model.Event, string) {
	t.Helper()

	store := memory.New()
	chainID := uint64(5)
	event, err := store.SaveEvent(context.Background(), model.Event{
		Title:    "Jazz Night",
		Location: "Lisbon",
		Date:     time.Now().Add(48 * time.Hour),
		Seats:    seats,
		Category: model.CategoryLiveShows,
		ChainID:  &chainID,
	})
	require.NoError(t, err)
	offChain, err := store.SaveEvent(context.Background(), model.Event{
		Title:    "Garage Sale",
		Location: "Lisbon",
		Date:     time.Now().Add(48 * time.Hour),
		Seats:    seats,
		Category: model.CategoryTourism,
	})
	require.NoError(t, err)

	chain := fakeChain{
		"sealed-1":    joined("sealed-1", 5, wallet),
		"sealed-2":    joined("sealed-2", 5, wallet),
		"other-event": joined("other-event", 6, wallet),
		"other-payer": joined("other-payer", 5, "0x01cf0e2f2f715450"),
		"plain":       {ID: "plain", Status: flow.StatusSealed},
		"pending":     {ID: "pending", Status: flow.StatusPending},
		"reverted":    {ID: "reverted", Status: flow.StatusSealed, StatusCode: 1, ErrorMessage: "insufficient balance"},
	}

	return New(logger.Discard(), store, store, chain), event, offChain, primitive.NewObjectID().Hex()
}

func TestRecord(t *testing.T) {
	s, event, _, user := setup(t, 10)
	ctx := context.Background()

	ticket, err := s.Record(ctx, user, event.ID.Hex(), RecordInput{TransactionID: "sealed-1", Address: "0x7E60DF042A9C0868"})
	require.NoError(t, err)
	assert.Equal(t, event.ID, ticket.EventID)
	assert.Equal(t, wallet, ticket.Address)
	assert.False(t, ticket.CreatedAt.IsZero())

	_, err = s.Record(ctx, user, event.ID.Hex(), RecordInput{TransactionID: "sealed-1", Address: wallet})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Equal(t, MsgDuplicate, apperr.Message(err))

	mine, err := s.ForUser(ctx, user)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "sealed-1", mine[0].TransactionID)
}

func TestRecord_SoldOut(t *testing.T) {
	s, event, _, user := setup(t, 1)
	ctx := context.Background()

	_, err := s.Record(ctx, user, event.ID.Hex(), RecordInput{TransactionID: "sealed-1", Address: wallet})
	require.NoError(t, err)

	_, err = s.Record(ctx, primitive.NewObjectID().Hex(), event.ID.Hex(), RecordInput{TransactionID: "sealed-2", Address: wallet})
	require.Error(t, err)
	assert.Equal(t, MsgSoldOut, apperr.Message(err))
}

func TestRecord_Rejections(t *testing.T) {
	s, event, offChain, user := setup(t, 10)

	tests := []struct {
		name       string
		caller     string
		eventID    string
		in         RecordInput
		wantStatus int
		wantMsg    string
	}{
		{"bad caller", "nope", event.ID.Hex(), RecordInput{TransactionID: "sealed-1", Address: wallet}, http.StatusBadRequest, MsgUserID},
		{"missing tx", user, event.ID.Hex(), RecordInput{Address: wallet}, http.StatusBadRequest, MsgTxRequired},
		{"bad address", user, event.ID.Hex(), RecordInput{TransactionID: "sealed-1", Address: "0x01"}, http.StatusBadRequest, flow.MsgInvalidAddress},
		{"unknown event", user, primitive.NewObjectID().Hex(), RecordInput{TransactionID: "sealed-1", Address: wallet}, http.StatusNotFound, MsgEventNotFound},
		{"malformed event", user, "xyz", RecordInput{TransactionID: "sealed-1", Address: wallet}, http.StatusNotFound, MsgEventNotFound},
		{"unknown tx", user, event.ID.Hex(), RecordInput{TransactionID: "ghost", Address: wallet}, http.StatusNotFound, MsgTxNotFound},
		{"pending tx", user, event.ID.Hex(), RecordInput{TransactionID: "pending", Address: wallet}, http.StatusBadRequest, MsgTxNotSealed},
		{"reverted tx", user, event.ID.Hex(), RecordInput{TransactionID: "reverted", Address: wallet}, http.StatusBadRequest, MsgTxFailed},
		{"chain down", user, event.ID.Hex(), RecordInput{TransactionID: "boom", Address: wallet}, http.StatusBadGateway, flow.MsgChainError},
		{"tx for another event", user, event.ID.Hex(), RecordInput{TransactionID: "other-event", Address: wallet}, http.StatusBadRequest, MsgTxMismatch},
		{"tx from another payer", user, event.ID.Hex(), RecordInput{TransactionID: "other-payer", Address: wallet}, http.StatusBadRequest, MsgTxMismatch},
		{"tx without join", user, event.ID.Hex(), RecordInput{TransactionID: "plain", Address: wallet}, http.StatusBadRequest, MsgTxMismatch},
		{"event not on chain", user, offChain.ID.Hex(), RecordInput{TransactionID: "sealed-1", Address: wallet}, http.StatusBadRequest, MsgNotOnChain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Record(context.Background(), tt.caller, tt.eventID, tt.in)
			require.Error(t, err)
			assert.Equal(t, tt.wantStatus, apperr.Status(err))
			assert.Equal(t, tt.wantMsg, apperr.Message(err))
		})
	}

	none, err := s.ForUser(context.Background(), user)
	require.NoError(t, err)
	assert.Empty(t, none)
}
