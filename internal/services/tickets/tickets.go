// Package tickets records event attendance backed by a sealed Flow transaction.
package tickets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/jlynch25/kaizen_api/internal/flow"
	"github.com/jlynch25/kaizen_api/internal/lib/apperr"
	"github.com/jlynch25/kaizen_api/internal/storage"
	model "github.com/jlynch25/kaizen_api/models"
)

const (
	MsgTxRequired    = "Transaction id is required"
	MsgTxNotFound    = "Transaction not found"
	MsgTxNotSealed   = "Transaction is not sealed yet"
	MsgTxFailed      = "Transaction failed on chain"
	MsgTxMismatch    = "Transaction did not join this event"
	MsgNotOnChain    = "Event is not linked to a chain event"
	MsgSoldOut       = "Event is sold out"
	MsgDuplicate     = "Ticket already recorded"
	MsgEventNotFound = "Event not found"
	MsgUserID        = "Invalid user id"
)

type TicketStore interface {
	SaveTicket(ctx context.Context, ticket model.Ticket) (model.Ticket, error)
	CountTickets(ctx context.Context, eventID string) (int, error)
	UserTickets(ctx context.Context, userID string) ([]model.Ticket, error)
}

type EventProvider interface {
	Event(ctx context.Context, id string) (model.Event, error)
}

// TxVerifier looks up a transaction on chain and checks what it emitted.
type TxVerifier interface {
	Result(ctx context.Context, id string) (flow.TxResult, error)
	Joined(res flow.TxResult, eventID uint64, attendee string) bool
}

type Service struct {
	log      *logrus.Logger
	store    TicketStore
	events   EventProvider
	verifier TxVerifier
	now      func() time.Time
}

func New(log *logrus.Logger, store TicketStore, events EventProvider, verifier TxVerifier) *Service {
	return &Service{log: log, store: store, events: events, verifier: verifier, now: time.Now}
}

type RecordInput struct {
	TransactionID string
	Address       string
}

// Record stores the caller's ticket for eventID once the joining transaction is
// sealed without error and emitted EventJoined for the event's chain id and
// address. The seat check and the insert are separate steps, so two
// concurrent joins for the last seat can both succeed.
func (s *Service) Record(ctx context.Context, callerID, eventID string, in RecordInput) (model.Ticket, error) {
	const op = "tickets.Record"
	log := s.log.WithField("op", op)

	userID, err := primitive.ObjectIDFromHex(callerID)
	if err != nil {
		return model.Ticket{}, fmt.Errorf("%s: %w", op, apperr.Validation(MsgUserID))
	}

	txID := strings.TrimSpace(in.TransactionID)
	if txID == "" {
		return model.Ticket{}, fmt.Errorf("%s: %w", op, apperr.Validation(MsgTxRequired))
	}
	address := strings.TrimSpace(in.Address)
	if !flow.IsValidAddress(address) {
		return model.Ticket{}, fmt.Errorf("%s: %w", op, apperr.Validation(flow.MsgInvalidAddress))
	}

	event, err := s.events.Event(ctx, eventID)
	if err != nil {
		if errors.Is(err, storage.ErrEventNotFound) || errors.Is(err, storage.ErrInvalidID) {
			return model.Ticket{}, fmt.Errorf("%s: %w", op, apperr.NotFound(MsgEventNotFound))
		}
		log.WithError(err).Error("failed to load event")
		return model.Ticket{}, fmt.Errorf("%s: %w", op, apperr.Internal(err))
	}
	if event.ChainID == nil {
		return model.Ticket{}, fmt.Errorf("%s: %w", op, apperr.Validation(MsgNotOnChain))
	}

	result, err := s.verifier.Result(ctx, txID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return model.Ticket{}, fmt.Errorf("%s: %w", op, apperr.NotFound(MsgTxNotFound))
		}
		return model.Ticket{}, fmt.Errorf("%s: %w", op, err)
	}
	if result.Status != flow.StatusSealed {
		return model.Ticket{}, fmt.Errorf("%s: %w", op, apperr.Validation(MsgTxNotSealed))
	}
	if result.Failed() {
		log.WithField("tx_id", txID).WithField("chain_error", result.ErrorMessage).Warn("ticket for failed transaction")
		return model.Ticket{}, fmt.Errorf("%s: %w", op, apperr.Validation(MsgTxFailed))
	}
	if !s.verifier.Joined(result, *event.ChainID, address) {
		log.WithField("tx_id", txID).WithField("chain_id", *event.ChainID).Warn("transaction does not join event")
		return model.Ticket{}, fmt.Errorf("%s: %w", op, apperr.Validation(MsgTxMismatch))
	}

	sold, err := s.store.CountTickets(ctx, event.ID.Hex())
	if err != nil {
		log.WithError(err).Error("failed to count tickets")
		return model.Ticket{}, fmt.Errorf("%s: %w", op, apperr.Internal(err))
	}
	if sold >= event.Seats {
		return model.Ticket{}, fmt.Errorf("%s: %w", op, apperr.Conflict(MsgSoldOut))
	}

	ticket, err := s.store.SaveTicket(ctx, model.Ticket{
		EventID:       event.ID,
		UserID:        userID,
		Address:       strings.ToLower(address),
		TransactionID: txID,
		CreatedAt:     s.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, storage.ErrTicketExists) {
			return model.Ticket{}, fmt.Errorf("%s: %w", op, apperr.Conflict(MsgDuplicate))
		}
		log.WithError(err).Error("failed to save ticket")
		return model.Ticket{}, fmt.Errorf("%s: %w", op, apperr.Internal(err))
	}

	log.WithField("event_id", event.ID.Hex()).WithField("tx_id", txID).Info("ticket recorded")
	return ticket, nil
}

// ForUser returns the user's tickets, newest first.
func (s *Service) ForUser(ctx context.Context, userID string) ([]model.Ticket, error) {
	const op = "tickets.ForUser"

	tickets, err := s.store.UserTickets(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidID) {
			return nil, fmt.Errorf("%s: %w", op, apperr.Validation(MsgUserID))
		}
		s.log.WithField("op", op).WithError(err).Error("failed to list tickets")
		return nil, fmt.Errorf("%s: %w", op, apperr.Internal(err))
	}
	return tickets, nil
}
