package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jlynch25/kaizen_api/internal/storage"
)

const (
	usersCollection   = "users"
	eventsCollection  = "events"
	ticketsCollection = "tickets"
)

type Storage struct {
	db      *mongo.Database
	users   *mongo.Collection
	events  *mongo.Collection
	tickets *mongo.Collection
}

// Connect dials the deployment at url and pings it before returning.
// TLS settings come from the connection string only.
func Connect(ctx context.Context, url, dbName string) (*Storage, error) {
	const op = "storage.mongo.Connect"

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(url))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("%s: could not connect to MongoDB: %w", op, err)
	}

	return New(client.Database(dbName)), nil
}

func New(db *mongo.Database) *Storage {
	return &Storage{
		db:      db,
		users:   db.Collection(usersCollection),
		events:  db.Collection(eventsCollection),
		tickets: db.Collection(ticketsCollection),
	}
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

func (s *Storage) Close(ctx context.Context) error {
	return s.db.Client().Disconnect(ctx)
}

// EnsureIndexes creates the unique indexes the stores rely on for conflict detection.
func (s *Storage) EnsureIndexes(ctx context.Context) error {
	const op = "storage.mongo.EnsureIndexes"

	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("%s: users: %w", op, err)
	}

	_, err = s.events.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "date", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("%s: events: %w", op, err)
	}

	_, err = s.tickets.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "transactionId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "eventId", Value: 1}}},
		{Keys: bson.D{{Key: "userId", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("%s: tickets: %w", op, err)
	}

	return nil
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, storage.ErrInvalidID
	}
	return oid, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

func stage(name string, value interface{}) bson.D {
	return bson.D{{Key: name, Value: value}}
}
