package storage

import (
	"errors"
	"time"

	model "github.com/jlynch25/kaizen_api/models"
)

var (
	ErrUserExists    = errors.New("user already exists")
	ErrUserNotFound  = errors.New("user not found")
	ErrEventNotFound = errors.New("event not found")
	ErrTicketExists  = errors.New("ticket already exists")
	ErrInvalidID     = errors.New("invalid id")
	// ErrCreatorNotFound is returned by backends that enforce the event creator reference.
	ErrCreatorNotFound = errors.New("event creator not found")
)

// EventFilter narrows an event listing. Zero values match everything.
type EventFilter struct {
	Category model.Category
	// Day selects events whose date falls on the same UTC calendar day.
	Day *time.Time
}

// DayRange returns the [start, end) bounds of the filter day in UTC.
func (f EventFilter) DayRange() (time.Time, time.Time) {
	y, m, d := f.Day.UTC().Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

// UserPatch holds the fields of a user update; nil fields are left untouched.
type UserPatch struct {
	Username     *string
	Email        *string
	PasswordHash *string
	ImageURL     *string
	// WalletAddress set to "" unlinks the wallet.
	WalletAddress *string
}

func (p UserPatch) Empty() bool {
	return p.Username == nil && p.Email == nil && p.PasswordHash == nil && p.ImageURL == nil &&
		p.WalletAddress == nil
}

// EventPatch holds the fields of an event update; nil fields are left untouched.
type EventPatch struct {
	Title       *string
	Description *string
	Date        *time.Time
	Location    *string
	ImageURL    *string
	Price       *float64
	Seats       *int
	Category    *model.Category
	ChainID     *uint64
}

func (p EventPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Date == nil && p.Location == nil &&
		p.ImageURL == nil && p.Price == nil && p.Seats == nil && p.Category == nil && p.ChainID == nil
}
