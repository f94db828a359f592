package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jlynch25/kaizen_api/internal/lib/logger"
)

type balance struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

func TestRedis_GetHit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer mock.ClearExpect()
	c := New(db)

	mock.ExpectGet("kaizen:balance:0x01").SetVal(`{"address":"0x01","amount":"1.50000000"}`)

	var got balance
	hit, err := c.Get(context.Background(), "balance:0x01", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "1.50000000", got.Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_GetMiss(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db)

	mock.ExpectGet("kaizen:balance:0x01").RedisNil()

	var got balance
	hit, err := c.Get(context.Background(), "balance:0x01", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestRedis_Set(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db)

	mock.ExpectSet("kaizen:balance:0x01", []byte(`{"address":"0x01","amount":"2.00000000"}`), 15*time.Second).SetVal("OK")

	err := c.Set(context.Background(), "balance:0x01", balance{Address: "0x01", Amount: "2.00000000"}, 15*time.Second)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetch(t *testing.T) {
	log := logrus.NewEntry(logger.Discard())

	t.Run("loads and stores on miss", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		c := New(db)

		mock.ExpectGet("kaizen:k").RedisNil()
		mock.ExpectSet("kaizen:k", []byte(`{"address":"a","amount":"1"}`), time.Minute).SetVal("OK")

		calls := 0
		got, err := Fetch(context.Background(), log, c, "k", time.Minute, func(context.Context) (balance, error) {
			calls++
			return balance{Address: "a", Amount: "1"}, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
		assert.Equal(t, "a", got.Address)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("serves hit without loading", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		c := New(db)

		mock.ExpectGet("kaizen:k").SetVal(`{"address":"cached","amount":"9"}`)

		got, err := Fetch(context.Background(), log, c, "k", time.Minute, func(context.Context) (balance, error) {
			t.Fatal("load must not be called on a hit")
			return balance{}, nil
		})
		require.NoError(t, err)
		assert.Equal(t, "cached", got.Address)
	})

	t.Run("redis failure falls through to load", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		c := New(db)

		mock.ExpectGet("kaizen:k").SetErr(errors.New("connection refused"))
		mock.ExpectSet("kaizen:k", []byte(`{"address":"a","amount":"1"}`), time.Minute).SetErr(errors.New("connection refused"))

		got, err := Fetch(context.Background(), log, c, "k", time.Minute, func(context.Context) (balance, error) {
			return balance{Address: "a", Amount: "1"}, nil
		})
		require.NoError(t, err)
		assert.Equal(t, "a", got.Address)
	})

	t.Run("load error is returned and not cached", func(t *testing.T) {
		_, err := Fetch(context.Background(), log, Nop{}, "k", time.Minute, func(context.Context) (balance, error) {
			return balance{}, errors.New("access node down")
		})
		assert.EqualError(t, err, "access node down")
	})
}
