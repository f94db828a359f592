package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Username  string             `bson:"username" json:"username"`
	Email     string             `bson:"email" json:"email"`
	Password  string             `bson:"password" json:"-"`
	ImageURL  string             `bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
	// WalletAddress is the Flow account that receives ticket payments for the user's events.
	WalletAddress string    `bson:"walletAddress,omitempty" json:"walletAddress,omitempty"`
	CreatedAt     time.Time `bson:"createdAt" json:"createdAt"`
}

type Event struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"_id"`
	Title       string              `bson:"title" json:"title"`
	Description string              `bson:"description,omitempty" json:"description,omitempty"`
	Date        time.Time           `bson:"date" json:"date"`
	Location    string              `bson:"location" json:"location"`
	ImageURL    string              `bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
	Price       float64             `bson:"price" json:"price"`
	Seats       int                 `bson:"seats" json:"seats"`
	Category    Category            `bson:"category" json:"category"`
	CreatedBy   *primitive.ObjectID `bson:"createdBy,omitempty" json:"-"`
	CreatedAt   time.Time           `bson:"createdAt" json:"createdAt"`

	// ChainID is the KaizenEvent contract id tickets are paid through.
	ChainID *uint64 `bson:"chainId,omitempty" json:"chainId,omitempty"`

	// Creator is filled by a join on createdBy at read time and never written.
	Creator *User  `bson:"creator,omitempty" json:"createdBy,omitempty"`
	Status  string `bson:"-" json:"status,omitempty"`
}

// Completed reports whether the event's calendar day is already behind today.
func (e Event) Completed(now time.Time) bool {
	if e.Date.IsZero() {
		return false
	}
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	ey, em, ed := e.Date.In(now.Location()).Date()
	day := time.Date(ey, em, ed, 0, 0, 0, 0, now.Location())
	return day.Before(today)
}

// Ticket records that a user joined an event through a sealed chain transaction.
type Ticket struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	EventID       primitive.ObjectID `bson:"eventId" json:"eventId"`
	UserID        primitive.ObjectID `bson:"userId" json:"userId"`
	Address       string             `bson:"address" json:"address"`
	TransactionID string             `bson:"transactionId" json:"transactionId"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
}
