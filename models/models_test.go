package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventCompleted(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		date time.Time
		want bool
	}{
		{"yesterday", now.Add(-24 * time.Hour), true},
		{"earlier today", time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC), false},
		{"tomorrow", now.Add(24 * time.Hour), false},
		{"zero date", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Event{Date: tt.date}
			assert.Equal(t, tt.want, e.Completed(now))
		})
	}
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory("")
	require.NoError(t, err)
	assert.Equal(t, CategoryLiveShows, c)

	c, err = ParseCategory("Tourism")
	require.NoError(t, err)
	assert.Equal(t, CategoryTourism, c)

	_, err = ParseCategory("tourism")
	assert.Error(t, err)
}
