package mongo

import (
	"context"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jlynch25/kaizen_api/internal/storage"
	model "github.com/jlynch25/kaizen_api/models"
)

// eventPipeline matches events newest first and joins the creator without its password hash.
func eventPipeline(match bson.M, limit int64) mongo.Pipeline {
	pipeline := mongo.Pipeline{
		stage("$match", match),
		stage("$sort", bson.M{"_id": -1}),
	}
	if limit > 0 {
		pipeline = append(pipeline, stage("$limit", limit))
	}
	return append(pipeline,
		stage("$lookup", bson.M{
			"from":         usersCollection,
			"localField":   "createdBy",
			"foreignField": "_id",
			"as":           "creator",
		}),
		stage("$unwind", bson.M{"path": "$creator", "preserveNullAndEmptyArrays": true}),
		stage("$project", bson.M{"creator.password": 0}),
	)
}

func (s *Storage) aggregateEvents(ctx context.Context, pipeline mongo.Pipeline) ([]model.Event, error) {
	cursor, err := s.events.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	events := []model.Event{}
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *Storage) SaveEvent(ctx context.Context, event model.Event) (model.Event, error) {
	const op = "storage.mongo.SaveEvent"

	event.ID = primitive.NilObjectID
	event.Creator = nil
	result, err := s.events.InsertOne(ctx, event)
	if err != nil {
		return model.Event{}, fmt.Errorf("%s: %w", op, err)
	}

	event.ID = result.InsertedID.(primitive.ObjectID)
	return event, nil
}

func (s *Storage) Event(ctx context.Context, id string) (model.Event, error) {
	const op = "storage.mongo.Event"

	oid, err := objectID(id)
	if err != nil {
		return model.Event{}, fmt.Errorf("%s: %w", op, err)
	}

	events, err := s.aggregateEvents(ctx, eventPipeline(bson.M{"_id": oid}, 1))
	if err != nil {
		return model.Event{}, fmt.Errorf("%s: %w", op, err)
	}
	if len(events) == 0 {
		return model.Event{}, fmt.Errorf("%s: %w", op, storage.ErrEventNotFound)
	}
	return events[0], nil
}

func (s *Storage) Events(ctx context.Context, filter storage.EventFilter) ([]model.Event, error) {
	const op = "storage.mongo.Events"

	match := bson.M{}
	if filter.Category != "" {
		match["category"] = filter.Category
	}
	if filter.Day != nil {
		start, end := filter.DayRange()
		match["date"] = bson.M{"$gte": start, "$lt": end}
	}

	events, err := s.aggregateEvents(ctx, eventPipeline(match, 0))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return events, nil
}

// SearchEvents matches query literally against titles, ignoring case.
func (s *Storage) SearchEvents(ctx context.Context, query string) ([]model.Event, error) {
	const op = "storage.mongo.SearchEvents"

	match := bson.M{"title": primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}}

	events, err := s.aggregateEvents(ctx, eventPipeline(match, 0))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return events, nil
}

func (s *Storage) UpdateEvent(ctx context.Context, id string, patch storage.EventPatch) (model.Event, error) {
	const op = "storage.mongo.UpdateEvent"

	oid, err := objectID(id)
	if err != nil {
		return model.Event{}, fmt.Errorf("%s: %w", op, err)
	}

	update := eventUpdate(patch)
	if len(update) == 0 {
		return s.Event(ctx, id)
	}

	var event model.Event
	err = s.events.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": update},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&event)
	if err != nil {
		if isNotFound(err) {
			return model.Event{}, fmt.Errorf("%s: %w", op, storage.ErrEventNotFound)
		}
		return model.Event{}, fmt.Errorf("%s: %w", op, err)
	}

	if event.CreatedBy != nil {
		var creator model.User
		err := s.users.FindOne(ctx, bson.M{"_id": *event.CreatedBy},
			options.FindOne().SetProjection(bson.M{"password": 0})).Decode(&creator)
		switch {
		case err == nil:
			event.Creator = &creator
		case !isNotFound(err):
			return model.Event{}, fmt.Errorf("%s: creator: %w", op, err)
		}
	}

	return event, nil
}

func eventUpdate(patch storage.EventPatch) bson.M {
	update := bson.M{}
	if patch.Title != nil {
		update["title"] = *patch.Title
	}
	if patch.Description != nil {
		update["description"] = *patch.Description
	}
	if patch.Date != nil {
		update["date"] = *patch.Date
	}
	if patch.Location != nil {
		update["location"] = *patch.Location
	}
	if patch.ImageURL != nil {
		update["imageUrl"] = *patch.ImageURL
	}
	if patch.Price != nil {
		update["price"] = *patch.Price
	}
	if patch.Seats != nil {
		update["seats"] = *patch.Seats
	}
	if patch.Category != nil {
		update["category"] = *patch.Category
	}
	if patch.ChainID != nil {
		update["chainId"] = int64(*patch.ChainID)
	}
	return update
}

func (s *Storage) DeleteEvent(ctx context.Context, id string) error {
	const op = "storage.mongo.DeleteEvent"

	oid, err := objectID(id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	result, err := s.events.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrEventNotFound)
	}
	return nil
}
