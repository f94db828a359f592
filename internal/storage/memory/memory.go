// Package memory is a process-local store with the same semantics as the database backends.
// It backs STORAGE_DRIVER=memory and the HTTP tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/jlynch25/kaizen_api/internal/storage"
	model "github.com/jlynch25/kaizen_api/models"
)

type Storage struct {
	mu      sync.RWMutex
	users   map[primitive.ObjectID]model.User
	events  map[primitive.ObjectID]model.Event
	tickets map[primitive.ObjectID]model.Ticket
}

func New() *Storage {
	return &Storage{
		users:   make(map[primitive.ObjectID]model.User),
		events:  make(map[primitive.ObjectID]model.Event),
		tickets: make(map[primitive.ObjectID]model.Ticket),
	}
}

func (s *Storage) Ping(context.Context) error  { return nil }
func (s *Storage) Close(context.Context) error { return nil }

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, storage.ErrInvalidID
	}
	return oid, nil
}

func (s *Storage) SaveUser(_ context.Context, user model.User) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == user.Email {
			return model.User{}, storage.ErrUserExists
		}
	}

	user.ID = primitive.NewObjectID()
	s.users[user.ID] = user
	return user, nil
}

func (s *Storage) UserByEmail(_ context.Context, email string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, storage.ErrUserNotFound
}

func (s *Storage) User(_ context.Context, id string) (model.User, error) {
	oid, err := parseID(id)
	if err != nil {
		return model.User{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[oid]
	if !ok {
		return model.User{}, storage.ErrUserNotFound
	}
	return u, nil
}

func (s *Storage) Users(context.Context) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return newer(users[i].ID, users[j].ID) })
	return users, nil
}

func (s *Storage) UpdateUser(_ context.Context, id string, patch storage.UserPatch) (model.User, error) {
	oid, err := parseID(id)
	if err != nil {
		return model.User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[oid]
	if !ok {
		return model.User{}, storage.ErrUserNotFound
	}

	if patch.Email != nil {
		for otherID, other := range s.users {
			if otherID != oid && other.Email == *patch.Email {
				return model.User{}, storage.ErrUserExists
			}
		}
		u.Email = *patch.Email
	}
	if patch.Username != nil {
		u.Username = *patch.Username
	}
	if patch.PasswordHash != nil {
		u.Password = *patch.PasswordHash
	}
	if patch.ImageURL != nil {
		u.ImageURL = *patch.ImageURL
	}
	if patch.WalletAddress != nil {
		u.WalletAddress = *patch.WalletAddress
	}

	s.users[oid] = u
	return u, nil
}

func (s *Storage) DeleteUser(_ context.Context, id string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[oid]; !ok {
		return storage.ErrUserNotFound
	}
	delete(s.users, oid)
	return nil
}

func (s *Storage) SaveEvent(_ context.Context, event model.Event) (model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	event.ID = primitive.NewObjectID()
	event.Creator = nil
	s.events[event.ID] = event
	return event, nil
}

// populate must be called with the lock held.
func (s *Storage) populate(e model.Event) model.Event {
	e.Creator = nil
	if e.CreatedBy != nil {
		if u, ok := s.users[*e.CreatedBy]; ok {
			u.Password = ""
			e.Creator = &u
		}
	}
	return e
}

func (s *Storage) Event(_ context.Context, id string) (model.Event, error) {
	oid, err := parseID(id)
	if err != nil {
		return model.Event{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.events[oid]
	if !ok {
		return model.Event{}, storage.ErrEventNotFound
	}
	return s.populate(e), nil
}

func (s *Storage) Events(_ context.Context, filter storage.EventFilter) ([]model.Event, error) {
	return s.matchEvents(func(e model.Event) bool {
		if filter.Category != "" && e.Category != filter.Category {
			return false
		}
		if filter.Day != nil {
			start, end := filter.DayRange()
			if e.Date.Before(start) || !e.Date.Before(end) {
				return false
			}
		}
		return true
	}), nil
}

func (s *Storage) SearchEvents(_ context.Context, query string) ([]model.Event, error) {
	q := strings.ToLower(query)
	return s.matchEvents(func(e model.Event) bool {
		return strings.Contains(strings.ToLower(e.Title), q)
	}), nil
}

func (s *Storage) matchEvents(keep func(model.Event) bool) []model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := []model.Event{}
	for _, e := range s.events {
		if keep(e) {
			events = append(events, s.populate(e))
		}
	}
	sort.Slice(events, func(i, j int) bool { return newer(events[i].ID, events[j].ID) })
	return events
}

func (s *Storage) UpdateEvent(_ context.Context, id string, patch storage.EventPatch) (model.Event, error) {
	oid, err := parseID(id)
	if err != nil {
		return model.Event{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[oid]
	if !ok {
		return model.Event{}, storage.ErrEventNotFound
	}

	if patch.Title != nil {
		e.Title = *patch.Title
	}
	if patch.Description != nil {
		e.Description = *patch.Description
	}
	if patch.Date != nil {
		e.Date = *patch.Date
	}
	if patch.Location != nil {
		e.Location = *patch.Location
	}
	if patch.ImageURL != nil {
		e.ImageURL = *patch.ImageURL
	}
	if patch.Price != nil {
		e.Price = *patch.Price
	}
	if patch.Seats != nil {
		e.Seats = *patch.Seats
	}
	if patch.Category != nil {
		e.Category = *patch.Category
	}
	if patch.ChainID != nil {
		e.ChainID = patch.ChainID
	}

	s.events[oid] = e
	return s.populate(e), nil
}

func (s *Storage) DeleteEvent(_ context.Context, id string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[oid]; !ok {
		return storage.ErrEventNotFound
	}
	delete(s.events, oid)
	return nil
}

func (s *Storage) SaveTicket(_ context.Context, ticket model.Ticket) (model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.tickets {
		if t.TransactionID == ticket.TransactionID {
			return model.Ticket{}, storage.ErrTicketExists
		}
	}

	ticket.ID = primitive.NewObjectID()
	s.tickets[ticket.ID] = ticket
	return ticket, nil
}

func (s *Storage) CountTickets(_ context.Context, eventID string) (int, error) {
	oid, err := parseID(eventID)
	if err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, t := range s.tickets {
		if t.EventID == oid {
			n++
		}
	}
	return n, nil
}

func (s *Storage) UserTickets(_ context.Context, userID string) ([]model.Ticket, error) {
	oid, err := parseID(userID)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	tickets := []model.Ticket{}
	for _, t := range s.tickets {
		if t.UserID == oid {
			tickets = append(tickets, t)
		}
	}
	sort.Slice(tickets, func(i, j int) bool { return newer(tickets[i].ID, tickets[j].ID) })
	return tickets, nil
}

// newer orders ObjectIDs by creation, most recent first. Ids minted in the
// same second fall back to their counter bytes.
func newer(a, b primitive.ObjectID) bool {
	return strings.Compare(a.Hex(), b.Hex()) > 0
}
