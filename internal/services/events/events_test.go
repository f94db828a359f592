package events

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/jlynch25/kaizen_api/internal/lib/apperr"
	"github.com/jlynch25/kaizen_api/internal/lib/logger"
	"github.com/jlynch25/kaizen_api/internal/storage"
	"github.com/jlynch25/kaizen_api/internal/storage/memory"
	model "github.com/jlynch25/kaizen_api/models"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newService(requireOwner bool) *Service {
	s := New(logger.Discard(), memory.New(), requireOwner)
	s.now = func() time.Time { return fixedNow }
	return s
}

func validInput() CreateInput {
	return CreateInput{
		Title:    gofakeit.Company(),
		Location: gofakeit.City(),
		Date:     fixedNow.Add(72 * time.Hour).Format(time.RFC3339),
		Price:    25,
		Seats:    100,
	}
}

func TestCreate(t *testing.T) {
	s := newService(false)
	ctx := context.Background()

	in := validInput()
	in.Description = "  with padding  "
	created, err := s.Create(ctx, in)
	require.NoError(t, err)
	assert.False(t, created.ID.IsZero())
	assert.Equal(t, model.CategoryLiveShows, created.Category)
	assert.Equal(t, "with padding", created.Description)
	assert.Equal(t, StatusUpcoming, created.Status)

	got, err := s.Get(ctx, created.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, created.Title, got.Title)
	assert.True(t, created.Date.Equal(got.Date))
}

func TestCreate_Validation(t *testing.T) {
	s := newService(false)

	tests := []struct {
		name    string
		mutate  func(in *CreateInput)
		wantMsg string
	}{
		{"missing title", func(in *CreateInput) { in.Title = " " }, MsgTitleLocation},
		{"missing location", func(in *CreateInput) { in.Location = "" }, MsgTitleLocation},
		{"garbage date", func(in *CreateInput) { in.Date = "next tuesday" }, MsgInvalidDate},
		{"yesterday", func(in *CreateInput) { in.Date = fixedNow.Add(-24 * time.Hour).Format(time.RFC3339) }, MsgPastDate},
		{"exactly now", func(in *CreateInput) { in.Date = fixedNow.Format(time.RFC3339) }, MsgPastDate},
		{"negative price", func(in *CreateInput) { in.Price = -1 }, MsgPrice},
		{"NaN price", func(in *CreateInput) { in.Price = math.NaN() }, MsgPrice},
		{"infinite price", func(in *CreateInput) { in.Price = math.Inf(1) }, MsgPrice},
		{"negative infinite price", func(in *CreateInput) { in.Price = math.Inf(-1) }, MsgPrice},
		{"zero seats", func(in *CreateInput) { in.Seats = 0 }, MsgSeats},
		{"unknown category", func(in *CreateInput) { in.Category = "Cinema" }, MsgCategory},
		{"bad user id", func(in *CreateInput) { in.UserID = "u1" }, MsgUserID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)

			_, err := s.Create(context.Background(), in)
			require.Error(t, err)
			assert.Equal(t, http.StatusBadRequest, apperr.Status(err))
			assert.Equal(t, tt.wantMsg, apperr.Message(err))
		})
	}
}

func TestChainID(t *testing.T) {
	s := newService(false)
	ctx := context.Background()

	in := validInput()
	first := uint64(2)
	in.ChainID = &first
	created, err := s.Create(ctx, in)
	require.NoError(t, err)
	require.NotNil(t, created.ChainID)
	assert.Equal(t, uint64(2), *created.ChainID)

	second := uint64(9)
	got, err := s.Update(ctx, "", created.ID.Hex(), UpdateInput{ChainID: &second})
	require.NoError(t, err)
	require.NotNil(t, got.ChainID)
	assert.Equal(t, uint64(9), *got.ChainID)
}

// strictCreatorStore rejects creators it does not know, like the postgres foreign key.
type strictCreatorStore struct {
	*memory.Storage
}

func (s strictCreatorStore) SaveEvent(ctx context.Context, e model.Event) (model.Event, error) {
	if e.CreatedBy != nil {
		if _, err := s.User(ctx, e.CreatedBy.Hex()); err != nil {
			return model.Event{}, fmt.Errorf("save event: %w", storage.ErrCreatorNotFound)
		}
	}
	return s.Storage.SaveEvent(ctx, e)
}

func TestCreate_UnknownCreator(t *testing.T) {
	s := New(logger.Discard(), strictCreatorStore{memory.New()}, false)
	s.now = func() time.Time { return fixedNow }

	in := validInput()
	in.UserID = primitive.NewObjectID().Hex()

	_, err := s.Create(context.Background(), in)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, apperr.Status(err))
	assert.Equal(t, MsgUserID, apperr.Message(err))
}

func TestParseDate(t *testing.T) {
	for _, in := range []string{"2030-01-02T15:04:05Z", "2030-01-02T15:04:05.000Z", "2030-01-02T15:04", "2030-01-02"} {
		d, err := ParseDate(in)
		require.NoError(t, err, in)
		assert.Equal(t, 2030, d.Year())
		assert.Equal(t, time.UTC, d.Location())
	}
}

func TestSearch_CaseInsensitiveSubset(t *testing.T) {
	s := newService(false)
	ctx := context.Background()

	titles := []string{"Summer Jazz Festival", "jazz brunch", "Rock Night", "Tourism Day"}
	for _, title := range titles {
		in := validInput()
		in.Title = title
		_, err := s.Create(ctx, in)
		require.NoError(t, err)
	}

	got, err := s.Search(ctx, "JAZZ")
	require.NoError(t, err)

	var found []string
	for _, e := range got {
		found = append(found, e.Title)
	}
	assert.ElementsMatch(t, []string{"Summer Jazz Festival", "jazz brunch"}, found)

	got, err = s.Search(ctx, "(.*)")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestList_FiltersAndStatus(t *testing.T) {
	s := newService(false)
	ctx := context.Background()

	in := validInput()
	in.Category = string(model.CategoryTourism)
	in.Date = "2026-03-20T10:00:00Z"
	tour, err := s.Create(ctx, in)
	require.NoError(t, err)

	_, err = s.Create(ctx, validInput())
	require.NoError(t, err)

	all, err := s.List(ctx, "", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byCategory, err := s.List(ctx, "Tourism", "")
	require.NoError(t, err)
	require.Len(t, byCategory, 1)
	assert.Equal(t, tour.ID, byCategory[0].ID)

	byDay, err := s.List(ctx, "", "2026-03-20")
	require.NoError(t, err)
	require.Len(t, byDay, 1)

	_, err = s.List(ctx, "", "20/03/2026")
	assert.Equal(t, MsgInvalidDate, apperr.Message(err))

	_, err = s.List(ctx, "Nope", "")
	assert.Equal(t, MsgCategory, apperr.Message(err))

	s.now = func() time.Time { return time.Date(2026, 3, 21, 9, 0, 0, 0, time.UTC) }
	got, err := s.Get(ctx, tour.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
}

func TestUpdate(t *testing.T) {
	s := newService(false)
	ctx := context.Background()

	created, err := s.Create(ctx, validInput())
	require.NoError(t, err)

	title := "Renamed"
	seats := 0
	_, err = s.Update(ctx, "", created.ID.Hex(), UpdateInput{Seats: &seats})
	assert.Equal(t, MsgSeats, apperr.Message(err))

	nan := math.NaN()
	_, err = s.Update(ctx, "", created.ID.Hex(), UpdateInput{Price: &nan})
	assert.Equal(t, MsgPrice, apperr.Message(err))

	got, err := s.Update(ctx, "", created.ID.Hex(), UpdateInput{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)

	past := "2020-01-01T00:00:00Z"
	got, err = s.Update(ctx, "", created.ID.Hex(), UpdateInput{Date: &past})
	require.NoError(t, err, "past dates are allowed on update")
	assert.Equal(t, StatusCompleted, got.Status)

	_, err = s.Update(ctx, "", primitive.NewObjectID().Hex(), UpdateInput{Title: &title})
	assert.Equal(t, http.StatusNotFound, apperr.Status(err))
}

func TestDelete_NotFoundIsNotServerError(t *testing.T) {
	s := newService(false)

	for _, id := range []string{primitive.NewObjectID().Hex(), "bogus"} {
		err := s.Delete(context.Background(), "", id)
		require.Error(t, err)
		assert.Equal(t, http.StatusNotFound, apperr.Status(err))
		assert.Equal(t, MsgNotFound, apperr.Message(err))
	}
}

func TestOwnership(t *testing.T) {
	ctx := context.Background()
	owner := primitive.NewObjectID()
	stranger := primitive.NewObjectID()

	t.Run("unenforced by default", func(t *testing.T) {
		s := newService(false)
		in := validInput()
		in.UserID = owner.Hex()
		created, err := s.Create(ctx, in)
		require.NoError(t, err)

		assert.NoError(t, s.Delete(ctx, stranger.Hex(), created.ID.Hex()))
	})

	t.Run("enforced", func(t *testing.T) {
		s := newService(true)
		in := validInput()
		in.UserID = owner.Hex()
		created, err := s.Create(ctx, in)
		require.NoError(t, err)

		err = s.Delete(ctx, stranger.Hex(), created.ID.Hex())
		assert.Equal(t, http.StatusForbidden, apperr.Status(err))

		err = s.Delete(ctx, "", created.ID.Hex())
		assert.Equal(t, http.StatusForbidden, apperr.Status(err))

		_, err = s.SetImage(ctx, stranger.Hex(), created.ID.Hex(), "/uploads/x.png")
		assert.Equal(t, http.StatusForbidden, apperr.Status(err))

		assert.NoError(t, s.Delete(ctx, owner.Hex(), created.ID.Hex()))
	})
}
