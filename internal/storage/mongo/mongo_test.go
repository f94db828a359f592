package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/jlynch25/kaizen_api/internal/storage"
	model "github.com/jlynch25/kaizen_api/models"
)

func newMock(t *testing.T) *mtest.T {
	return mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
}

func ns(mt *mtest.T, coll string) string {
	return mt.DB.Name() + "." + coll
}

func TestSaveUser(t *testing.T) {
	mt := newMock(t)

	mt.Run("inserted", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		s := New(mt.DB)

		user, err := s.SaveUser(context.Background(), model.User{Username: "u1", Email: "u1@x.com", Password: "hash"})
		require.NoError(mt, err)
		assert.False(mt, user.ID.IsZero())
		assert.Equal(mt, "u1@x.com", user.Email)
	})

	mt.Run("duplicate email", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error collection: kaizen.users index: email_1",
		}))
		s := New(mt.DB)

		_, err := s.SaveUser(context.Background(), model.User{Email: "u1@x.com"})
		assert.ErrorIs(mt, err, storage.ErrUserExists)
	})
}

func TestUserByEmail(t *testing.T) {
	mt := newMock(t)

	mt.Run("found", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt, usersCollection), mtest.FirstBatch, bson.D{
			{Key: "_id", Value: id},
			{Key: "username", Value: "u1"},
			{Key: "email", Value: "u1@x.com"},
			{Key: "password", Value: "hash"},
		}))
		s := New(mt.DB)

		user, err := s.UserByEmail(context.Background(), "u1@x.com")
		require.NoError(mt, err)
		assert.Equal(mt, id, user.ID)
		assert.Equal(mt, "hash", user.Password)
	})

	mt.Run("missing", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt, usersCollection), mtest.FirstBatch))
		s := New(mt.DB)

		_, err := s.UserByEmail(context.Background(), "nobody@x.com")
		assert.ErrorIs(mt, err, storage.ErrUserNotFound)
	})
}

func TestUserInvalidID(t *testing.T) {
	mt := newMock(t)

	mt.Run("malformed", func(mt *mtest.T) {
		s := New(mt.DB)

		_, err := s.User(context.Background(), "not-an-id")
		assert.ErrorIs(mt, err, storage.ErrInvalidID)
	})
}

func TestUpdateUser_Wallet(t *testing.T) {
	mt := newMock(t)

	mt.Run("set", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "_id", Value: id},
			{Key: "email", Value: "u1@x.com"},
			{Key: "walletAddress", Value: "0x01cf0e2f2f715450"},
		}}))
		s := New(mt.DB)

		wallet := "0x01cf0e2f2f715450"
		user, err := s.UpdateUser(context.Background(), id.Hex(), storage.UserPatch{WalletAddress: &wallet})
		require.NoError(mt, err)
		assert.Equal(mt, wallet, user.WalletAddress)

		cmd := mt.GetStartedEvent().Command
		assert.Equal(mt, wallet, cmd.Lookup("update", "$set", "walletAddress").StringValue())
		_, err = cmd.LookupErr("update", "$unset")
		assert.Error(mt, err)
	})

	mt.Run("clear", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "_id", Value: id},
			{Key: "email", Value: "u1@x.com"},
		}}))
		s := New(mt.DB)

		none := ""
		user, err := s.UpdateUser(context.Background(), id.Hex(), storage.UserPatch{WalletAddress: &none})
		require.NoError(mt, err)
		assert.Empty(mt, user.WalletAddress)

		cmd := mt.GetStartedEvent().Command
		_, err = cmd.LookupErr("update", "$unset", "walletAddress")
		assert.NoError(mt, err)
		_, err = cmd.LookupErr("update", "$set")
		assert.Error(mt, err)
	})
}

func TestEvents(t *testing.T) {
	mt := newMock(t)

	mt.Run("populated creator", func(mt *mtest.T) {
		creator := primitive.NewObjectID()
		first := bson.D{
			{Key: "_id", Value: primitive.NewObjectID()},
			{Key: "title", Value: "Concert"},
			{Key: "location", Value: "Dublin"},
			{Key: "date", Value: time.Date(2030, 1, 1, 20, 0, 0, 0, time.UTC)},
			{Key: "price", Value: 10.5},
			{Key: "seats", Value: 100},
			{Key: "category", Value: "Live shows"},
			{Key: "createdBy", Value: creator},
			{Key: "creator", Value: bson.D{{Key: "_id", Value: creator}, {Key: "username", Value: "u1"}}},
		}
		second := bson.D{
			{Key: "_id", Value: primitive.NewObjectID()},
			{Key: "title", Value: "Tour"},
			{Key: "category", Value: "Tourism"},
		}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt, eventsCollection), mtest.FirstBatch, first, second))
		s := New(mt.DB)

		events, err := s.Events(context.Background(), storage.EventFilter{})
		require.NoError(mt, err)
		require.Len(mt, events, 2)
		assert.Equal(mt, "Concert", events[0].Title)
		require.NotNil(mt, events[0].Creator)
		assert.Equal(mt, "u1", events[0].Creator.Username)
		assert.Nil(mt, events[1].Creator)
		assert.Equal(mt, model.CategoryTourism, events[1].Category)
	})

	mt.Run("empty list is not nil", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt, eventsCollection), mtest.FirstBatch))
		s := New(mt.DB)

		day := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
		events, err := s.Events(context.Background(), storage.EventFilter{Category: model.CategoryTourism, Day: &day})
		require.NoError(mt, err)
		assert.NotNil(mt, events)
		assert.Empty(mt, events)
	})
}

func TestEvent(t *testing.T) {
	mt := newMock(t)

	mt.Run("not found", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt, eventsCollection), mtest.FirstBatch))
		s := New(mt.DB)

		_, err := s.Event(context.Background(), primitive.NewObjectID().Hex())
		assert.ErrorIs(mt, err, storage.ErrEventNotFound)
	})

	mt.Run("malformed id", func(mt *mtest.T) {
		s := New(mt.DB)

		_, err := s.Event(context.Background(), "123")
		assert.ErrorIs(mt, err, storage.ErrInvalidID)
	})
}

func TestUpdateEvent(t *testing.T) {
	mt := newMock(t)

	mt.Run("returns updated document", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "_id", Value: id},
			{Key: "title", Value: "Renamed"},
			{Key: "seats", Value: 5},
		}}))
		s := New(mt.DB)

		title := "Renamed"
		event, err := s.UpdateEvent(context.Background(), id.Hex(), storage.EventPatch{Title: &title})
		require.NoError(mt, err)
		assert.Equal(mt, "Renamed", event.Title)
		assert.Equal(mt, 5, event.Seats)
	})

	mt.Run("missing", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		s := New(mt.DB)

		title := "Renamed"
		_, err := s.UpdateEvent(context.Background(), primitive.NewObjectID().Hex(), storage.EventPatch{Title: &title})
		assert.ErrorIs(mt, err, storage.ErrEventNotFound)
	})
}

func TestDeleteEvent(t *testing.T) {
	mt := newMock(t)

	mt.Run("deleted", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))
		s := New(mt.DB)

		assert.NoError(mt, s.DeleteEvent(context.Background(), primitive.NewObjectID().Hex()))
	})

	mt.Run("nothing deleted", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))
		s := New(mt.DB)

		err := s.DeleteEvent(context.Background(), primitive.NewObjectID().Hex())
		assert.ErrorIs(mt, err, storage.ErrEventNotFound)
	})
}

func TestTickets(t *testing.T) {
	mt := newMock(t)

	mt.Run("duplicate transaction", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error collection: kaizen.tickets index: transactionId_1",
		}))
		s := New(mt.DB)

		_, err := s.SaveTicket(context.Background(), model.Ticket{TransactionID: "abc"})
		assert.ErrorIs(mt, err, storage.ErrTicketExists)
	})

	mt.Run("count", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt, ticketsCollection), mtest.FirstBatch,
			bson.D{{Key: "_id", Value: 1}, {Key: "n", Value: int32(3)}}))
		s := New(mt.DB)

		n, err := s.CountTickets(context.Background(), primitive.NewObjectID().Hex())
		require.NoError(mt, err)
		assert.Equal(mt, 3, n)
	})
}

func TestEnsureIndexes(t *testing.T) {
	mt := newMock(t)

	mt.Run("creates all indexes", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(), mtest.CreateSuccessResponse(), mtest.CreateSuccessResponse())
		s := New(mt.DB)

		assert.NoError(mt, s.EnsureIndexes(context.Background()))
	})
}
