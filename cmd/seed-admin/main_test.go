package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jlynch25/kaizen_api/internal/lib/logger"
	"github.com/jlynch25/kaizen_api/internal/services/auth"
	"github.com/jlynch25/kaizen_api/internal/storage/memory"
)

func TestSeed(t *testing.T) {
	store := memory.New()
	a := auth.New(logger.Discard(), store, store, "secret", time.Hour, nil)
	ctx := context.Background()

	created, err := seed(ctx, a, "admin", "admin@gmail.com", "admin")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = seed(ctx, a, "admin", "ADMIN@gmail.com", "admin")
	require.NoError(t, err)
	assert.False(t, created)

	_, err = a.Login(ctx, "admin@gmail.com", "admin")
	assert.NoError(t, err)
}

func TestSeed_InvalidEmail(t *testing.T) {
	store := memory.New()
	a := auth.New(logger.Discard(), store, store, "secret", time.Hour, nil)

	_, err := seed(context.Background(), a, "admin", "not-an-email", "admin")
	assert.Error(t, err)
}
