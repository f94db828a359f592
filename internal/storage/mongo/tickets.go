package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jlynch25/kaizen_api/internal/storage"
	model "github.com/jlynch25/kaizen_api/models"
)

func (s *Storage) SaveTicket(ctx context.Context, ticket model.Ticket) (model.Ticket, error) {
	const op = "storage.mongo.SaveTicket"

	ticket.ID = primitive.NilObjectID
	result, err := s.tickets.InsertOne(ctx, ticket)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return model.Ticket{}, fmt.Errorf("%s: %w", op, storage.ErrTicketExists)
		}
		return model.Ticket{}, fmt.Errorf("%s: %w", op, err)
	}

	ticket.ID = result.InsertedID.(primitive.ObjectID)
	return ticket, nil
}

func (s *Storage) CountTickets(ctx context.Context, eventID string) (int, error) {
	const op = "storage.mongo.CountTickets"

	oid, err := objectID(eventID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	n, err := s.tickets.CountDocuments(ctx, bson.M{"eventId": oid})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(n), nil
}

func (s *Storage) UserTickets(ctx context.Context, userID string) ([]model.Ticket, error) {
	const op = "storage.mongo.UserTickets"

	oid, err := objectID(userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cursor, err := s.tickets.Find(ctx, bson.M{"userId": oid}, options.Find().SetSort(bson.M{"_id": -1}))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer cursor.Close(ctx)

	tickets := []model.Ticket{}
	if err := cursor.All(ctx, &tickets); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return tickets, nil
}
