package events

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/jlynch25/kaizen_api/internal/lib/apperr"
	"github.com/jlynch25/kaizen_api/internal/storage"
	model "github.com/jlynch25/kaizen_api/models"
)

const (
	MsgTitleLocation = "Title and location are required"
	MsgInvalidDate   = "Invalid event date"
	MsgPastDate      = "Event date must be in the future"
	MsgPrice         = "Price must be zero or positive"
	MsgSeats         = "Seats must be at least 1"
	MsgCategory      = "Invalid category"
	MsgUserID        = "Invalid user id"
	MsgNotFound      = "Event not found"
	MsgForbidden     = "Forbidden"
	MsgNothingToSet  = "No fields to update"
	MsgChainID       = "Invalid chain event id"

	StatusCompleted = "completed"
	StatusUpcoming  = "upcoming"
)

// dateLayouts are tried in order; the last two are what HTML date inputs submit.
var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"}

const dayLayout = "2006-01-02"

type EventStore interface {
	SaveEvent(ctx context.Context, event model.Event) (model.Event, error)
	Event(ctx context.Context, id string) (model.Event, error)
	Events(ctx context.Context, filter storage.EventFilter) ([]model.Event, error)
	SearchEvents(ctx context.Context, query string) ([]model.Event, error)
	UpdateEvent(ctx context.Context, id string, patch storage.EventPatch) (model.Event, error)
	DeleteEvent(ctx context.Context, id string) error
}

type Service struct {
	log          *logrus.Logger
	store        EventStore
	requireOwner bool
	now          func() time.Time
}

// New returns the event service. With requireOwner set, updates and deletes
// are limited to the event's creator.
func New(log *logrus.Logger, store EventStore, requireOwner bool) *Service {
	return &Service{log: log, store: store, requireOwner: requireOwner, now: time.Now}
}

func (s *Service) RequireOwner() bool { return s.requireOwner }

type CreateInput struct {
	Title       string
	Description string
	Date        string
	Location    string
	Price       float64
	Seats       int
	Category    string
	UserID      string
	ImageURL    string
	ChainID     *uint64
}

type UpdateInput struct {
	Title       *string
	Description *string
	Date        *string
	Location    *string
	Price       *float64
	Seats       *int
	Category    *string
	ChainID     *uint64
}

// ParseDate accepts RFC 3339 and the HTML date/datetime-local forms (read as UTC).
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, apperr.Validation(MsgInvalidDate)
}

func parseCategory(s string) (model.Category, error) {
	c, err := model.ParseCategory(strings.TrimSpace(s))
	if err != nil {
		return "", apperr.Validation(MsgCategory)
	}
	return c, nil
}

func (s *Service) Create(ctx context.Context, in CreateInput) (model.Event, error) {
	const op = "events.Create"
	log := s.log.WithField("op", op)

	title := strings.TrimSpace(in.Title)
	location := strings.TrimSpace(in.Location)
	if title == "" || location == "" {
		return model.Event{}, fmt.Errorf("%s: %w", op, apperr.Validation(MsgTitleLocation))
	}

	date, err := ParseDate(in.Date)
	if err != nil {
		return model.Event{}, fmt.Errorf("%s: %w", op, err)
	}
	now := s.now()
	if !date.After(now) {
		return model.Event{}, fmt.Errorf("%s: %w", op, apperr.Validation(MsgPastDate))
	}

	if !validPrice(in.Price) {
		return model.Event{}, fmt.Errorf("%s: %w", op, apperr.Validation(MsgPrice))
	}
	if in.Seats < 1 {
		return model.Event{}, fmt.Errorf("%s: %w", op, apperr.Validation(MsgSeats))
	}

	category, err := parseCategory(in.Category)
	if err != nil {
		return model.Event{}, fmt.Errorf("%s: %w", op, err)
	}

	event := model.Event{
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Date:        date,
		Location:    location,
		ImageURL:    in.ImageURL,
		Price:       in.Price,
		Seats:       in.Seats,
		Category:    category,
		CreatedAt:   now.UTC(),
		ChainID:     in.ChainID,
	}

	if in.UserID != "" {
		oid, err := primitive.ObjectIDFromHex(in.UserID)
		if err != nil {
			return model.Event{}, fmt.Errorf("%s: %w", op, apperr.Validation(MsgUserID))
		}
		event.CreatedBy = &oid
	}

	event, err = s.store.SaveEvent(ctx, event)
	if err != nil {
		if errors.Is(err, storage.ErrCreatorNotFound) {
			return model.Event{}, fmt.Errorf("%s: %w", op, apperr.Validation(MsgUserID))
		}
		log.WithError(err).Error("failed to save event")
		return model.Event{}, fmt.Errorf("%s: %w", op, apperr.Internal(err))
	}

	log.WithField("event_id", event.ID.Hex()).Info("event created")

	return s.decorate(event), nil
}

// List returns events newest first. category and day ("YYYY-MM-DD") are optional filters.
func (s *Service) List(ctx context.Context, category, day string) ([]model.Event, error) {
	const op = "events.List"

	var filter storage.EventFilter
	if category != "" {
		c, err := parseCategory(category)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		filter.Category = c
	}
	if day != "" {
		d, err := time.Parse(dayLayout, day)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, apperr.Validation(MsgInvalidDate))
		}
		filter.Day = &d
	}

	events, err := s.store.Events(ctx, filter)
	if err != nil {
		s.log.WithField("op", op).WithError(err).Error("failed to list events")
		return nil, fmt.Errorf("%s: %w", op, apperr.Internal(err))
	}
	return s.decorateAll(events), nil
}

func (s *Service) Search(ctx context.Context, query string) ([]model.Event, error) {
	const op = "events.Search"

	events, err := s.store.SearchEvents(ctx, query)
	if err != nil {
		s.log.WithField("op", op).WithError(err).Error("failed to search events")
		return nil, fmt.Errorf("%s: %w", op, apperr.Internal(err))
	}
	return s.decorateAll(events), nil
}

func (s *Service) Get(ctx context.Context, id string) (model.Event, error) {
	const op = "events.Get"

	event, err := s.store.Event(ctx, id)
	if err != nil {
		return model.Event{}, fmt.Errorf("%s: %w", op, s.storeError(op, err))
	}
	return s.decorate(event), nil
}

func (s *Service) Update(ctx context.Context, callerID, id string, in UpdateInput) (model.Event, error) {
	const op = "events.Update"

	patch, err := buildPatch(in)
	if err != nil {
		return model.Event{}, fmt.Errorf("%s: %w", op, err)
	}
	if patch.Empty() {
		return model.Event{}, fmt.Errorf("%s: %w", op, apperr.Validation(MsgNothingToSet))
	}

	if err := s.checkOwner(ctx, op, callerID, id); err != nil {
		return model.Event{}, err
	}

	event, err := s.store.UpdateEvent(ctx, id, patch)
	if err != nil {
		return model.Event{}, fmt.Errorf("%s: %w", op, s.storeError(op, err))
	}

	s.log.WithField("op", op).WithField("event_id", id).Info("event updated")
	return s.decorate(event), nil
}

// validPrice rejects negatives and the non-finite values ParseFloat accepts ("NaN", "Inf").
func validPrice(p float64) bool {
	return p >= 0 && !math.IsInf(p, 0)
}

func buildPatch(in UpdateInput) (storage.EventPatch, error) {
	var patch storage.EventPatch

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return patch, apperr.Validation(MsgTitleLocation)
		}
		patch.Title = &title
	}
	if in.Location != nil {
		location := strings.TrimSpace(*in.Location)
		if location == "" {
			return patch, apperr.Validation(MsgTitleLocation)
		}
		patch.Location = &location
	}
	if in.Description != nil {
		description := strings.TrimSpace(*in.Description)
		patch.Description = &description
	}
	if in.Date != nil {
		date, err := ParseDate(*in.Date)
		if err != nil {
			return patch, err
		}
		patch.Date = &date
	}
	if in.Price != nil {
		if !validPrice(*in.Price) {
			return patch, apperr.Validation(MsgPrice)
		}
		patch.Price = in.Price
	}
	if in.Seats != nil {
		if *in.Seats < 1 {
			return patch, apperr.Validation(MsgSeats)
		}
		patch.Seats = in.Seats
	}
	if in.Category != nil {
		c, err := parseCategory(*in.Category)
		if err != nil {
			return patch, err
		}
		patch.Category = &c
	}
	patch.ChainID = in.ChainID

	return patch, nil
}

func (s *Service) Delete(ctx context.Context, callerID, id string) error {
	const op = "events.Delete"

	if err := s.checkOwner(ctx, op, callerID, id); err != nil {
		return err
	}

	if err := s.store.DeleteEvent(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, s.storeError(op, err))
	}

	s.log.WithField("op", op).WithField("event_id", id).Info("event deleted")
	return nil
}

func (s *Service) SetImage(ctx context.Context, callerID, id, url string) (model.Event, error) {
	const op = "events.SetImage"

	if err := s.checkOwner(ctx, op, callerID, id); err != nil {
		return model.Event{}, err
	}

	event, err := s.store.UpdateEvent(ctx, id, storage.EventPatch{ImageURL: &url})
	if err != nil {
		return model.Event{}, fmt.Errorf("%s: %w", op, s.storeError(op, err))
	}
	return s.decorate(event), nil
}

// checkOwner is a no-op unless ownership is enforced.
func (s *Service) checkOwner(ctx context.Context, op, callerID, id string) error {
	if !s.requireOwner {
		return nil
	}

	event, err := s.store.Event(ctx, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, s.storeError(op, err))
	}
	if callerID == "" || event.CreatedBy == nil || event.CreatedBy.Hex() != callerID {
		s.log.WithField("op", op).WithField("event_id", id).Warn("caller does not own event")
		return fmt.Errorf("%s: %w", op, apperr.Forbidden(MsgForbidden))
	}
	return nil
}

func (s *Service) decorate(e model.Event) model.Event {
	if e.Completed(s.now()) {
		e.Status = StatusCompleted
	} else {
		e.Status = StatusUpcoming
	}
	return e
}

func (s *Service) decorateAll(events []model.Event) []model.Event {
	for i := range events {
		events[i] = s.decorate(events[i])
	}
	return events
}

func (s *Service) storeError(op string, err error) error {
	if errors.Is(err, storage.ErrEventNotFound) || errors.Is(err, storage.ErrInvalidID) {
		return apperr.NotFound(MsgNotFound)
	}
	s.log.WithField("op", op).WithError(err).Error("storage failure")
	return apperr.Internal(err)
}
