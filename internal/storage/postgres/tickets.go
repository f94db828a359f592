package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jlynch25/kaizen_api/internal/storage"
	model "github.com/jlynch25/kaizen_api/models"
)

const ticketColumns = "id, event_id, user_id, address, transaction_id, created_at"

type ticketRow struct {
	ID            string    `db:"id"`
	EventID       string    `db:"event_id"`
	UserID        string    `db:"user_id"`
	Address       string    `db:"address"`
	TransactionID string    `db:"transaction_id"`
	CreatedAt     time.Time `db:"created_at"`
}

func (r ticketRow) toModel() (model.Ticket, error) {
	id, err := parseID(r.ID)
	if err != nil {
		return model.Ticket{}, err
	}
	eventID, err := parseID(r.EventID)
	if err != nil {
		return model.Ticket{}, err
	}
	userID, err := parseID(r.UserID)
	if err != nil {
		return model.Ticket{}, err
	}
	return model.Ticket{
		ID:            id,
		EventID:       eventID,
		UserID:        userID,
		Address:       r.Address,
		TransactionID: r.TransactionID,
		CreatedAt:     r.CreatedAt,
	}, nil
}

func (s *Storage) SaveTicket(ctx context.Context, ticket model.Ticket) (model.Ticket, error) {
	const op = "storage.postgres.SaveTicket"

	query := "INSERT INTO tickets (" + ticketColumns + ") VALUES ($1, $2, $3, $4, $5, $6) RETURNING " + ticketColumns

	var row ticketRow
	err := s.db.GetContext(ctx, &row, query, newID(), ticket.EventID.Hex(), ticket.UserID.Hex(),
		ticket.Address, ticket.TransactionID, ticket.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Ticket{}, fmt.Errorf("%s: %w", op, storage.ErrTicketExists)
		}
		return model.Ticket{}, fmt.Errorf("%s: %w", op, err)
	}

	return row.toModel()
}

func (s *Storage) CountTickets(ctx context.Context, eventID string) (int, error) {
	const op = "storage.postgres.CountTickets"

	if _, err := parseID(eventID); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM tickets WHERE event_id = $1", eventID); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

func (s *Storage) UserTickets(ctx context.Context, userID string) ([]model.Ticket, error) {
	const op = "storage.postgres.UserTickets"

	if _, err := parseID(userID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var rows []ticketRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT "+ticketColumns+" FROM tickets WHERE user_id = $1 ORDER BY created_at DESC, id DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	tickets := make([]model.Ticket, 0, len(rows))
	for _, row := range rows {
		ticket, err := row.toModel()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		tickets = append(tickets, ticket)
	}
	return tickets, nil
}
