package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jlynch25/kaizen_api/internal/storage"
	model "github.com/jlynch25/kaizen_api/models"
)

// eventSelect joins the creator so listings come back populated.
const eventSelect = `SELECT e.id, e.title, e.description, e.date, e.location, e.image_url, e.price, e.seats,
	e.category, e.created_by, e.created_at, e.chain_id,
	u.username AS creator_username, u.email AS creator_email, u.image_url AS creator_image_url,
	u.wallet_address AS creator_wallet_address, u.created_at AS creator_created_at
FROM events e LEFT JOIN users u ON u.id = e.created_by`

const eventOrder = " ORDER BY e.created_at DESC, e.id DESC"

type eventRow struct {
	ID          string         `db:"id"`
	Title       string         `db:"title"`
	Description string         `db:"description"`
	Date        time.Time      `db:"date"`
	Location    string         `db:"location"`
	ImageURL    string         `db:"image_url"`
	Price       float64        `db:"price"`
	Seats       int            `db:"seats"`
	Category    string         `db:"category"`
	CreatedBy   sql.NullString `db:"created_by"`
	CreatedAt   time.Time      `db:"created_at"`
	ChainID     sql.NullInt64  `db:"chain_id"`

	CreatorUsername  sql.NullString `db:"creator_username"`
	CreatorEmail     sql.NullString `db:"creator_email"`
	CreatorImageURL  sql.NullString `db:"creator_image_url"`
	CreatorWallet    sql.NullString `db:"creator_wallet_address"`
	CreatorCreatedAt sql.NullTime   `db:"creator_created_at"`
}

func (r eventRow) toModel() (model.Event, error) {
	oid, err := parseID(r.ID)
	if err != nil {
		return model.Event{}, err
	}

	event := model.Event{
		ID:          oid,
		Title:       r.Title,
		Description: r.Description,
		Date:        r.Date,
		Location:    r.Location,
		ImageURL:    r.ImageURL,
		Price:       r.Price,
		Seats:       r.Seats,
		Category:    model.Category(r.Category),
		CreatedAt:   r.CreatedAt,
	}
	if r.ChainID.Valid {
		chainID := uint64(r.ChainID.Int64)
		event.ChainID = &chainID
	}

	if r.CreatedBy.Valid {
		creatorID, err := parseID(r.CreatedBy.String)
		if err != nil {
			return model.Event{}, err
		}
		event.CreatedBy = &creatorID

		if r.CreatorEmail.Valid {
			event.Creator = &model.User{
				ID:            creatorID,
				Username:      r.CreatorUsername.String,
				Email:         r.CreatorEmail.String,
				ImageURL:      r.CreatorImageURL.String,
				WalletAddress: r.CreatorWallet.String,
				CreatedAt:     r.CreatorCreatedAt.Time,
			}
		}
	}

	return event, nil
}

func (s *Storage) selectEvents(ctx context.Context, query string, args ...interface{}) ([]model.Event, error) {
	var rows []eventRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	events := make([]model.Event, 0, len(rows))
	for _, row := range rows {
		event, err := row.toModel()
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

func (s *Storage) SaveEvent(ctx context.Context, event model.Event) (model.Event, error) {
	const op = "storage.postgres.SaveEvent"

	var createdBy sql.NullString
	if event.CreatedBy != nil {
		createdBy = sql.NullString{String: event.CreatedBy.Hex(), Valid: true}
	}

	id := newID()
	_, err := s.db.ExecContext(ctx, `INSERT INTO events
		(id, title, description, date, location, image_url, price, seats, category, created_by, created_at, chain_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		id, event.Title, event.Description, event.Date, event.Location, event.ImageURL,
		event.Price, event.Seats, string(event.Category), createdBy, event.CreatedAt, chainID(event.ChainID))
	if err != nil {
		if isForeignKeyViolation(err) {
			return model.Event{}, fmt.Errorf("%s: %w", op, storage.ErrCreatorNotFound)
		}
		return model.Event{}, fmt.Errorf("%s: %w", op, err)
	}

	oid, _ := parseID(id)
	event.ID = oid
	event.Creator = nil
	return event, nil
}

func (s *Storage) Event(ctx context.Context, id string) (model.Event, error) {
	const op = "storage.postgres.Event"

	if _, err := parseID(id); err != nil {
		return model.Event{}, fmt.Errorf("%s: %w", op, err)
	}

	events, err := s.selectEvents(ctx, eventSelect+" WHERE e.id = $1", id)
	if err != nil {
		return model.Event{}, fmt.Errorf("%s: %w", op, err)
	}
	if len(events) == 0 {
		return model.Event{}, fmt.Errorf("%s: %w", op, storage.ErrEventNotFound)
	}
	return events[0], nil
}

func (s *Storage) Events(ctx context.Context, filter storage.EventFilter) ([]model.Event, error) {
	const op = "storage.postgres.Events"

	var (
		where []string
		args  []interface{}
	)
	if filter.Category != "" {
		args = append(args, string(filter.Category))
		where = append(where, fmt.Sprintf("e.category = $%d", len(args)))
	}
	if filter.Day != nil {
		start, end := filter.DayRange()
		args = append(args, start, end)
		where = append(where, fmt.Sprintf("e.date >= $%d AND e.date < $%d", len(args)-1, len(args)))
	}

	query := eventSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	events, err := s.selectEvents(ctx, query+eventOrder, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return events, nil
}

// SearchEvents matches query literally against titles, ignoring case.
func (s *Storage) SearchEvents(ctx context.Context, query string) ([]model.Event, error) {
	const op = "storage.postgres.SearchEvents"

	events, err := s.selectEvents(ctx, eventSelect+` WHERE e.title ILIKE $1 ESCAPE '\'`+eventOrder,
		"%"+escapeLike(query)+"%")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return events, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func (s *Storage) UpdateEvent(ctx context.Context, id string, patch storage.EventPatch) (model.Event, error) {
	const op = "storage.postgres.UpdateEvent"

	if _, err := parseID(id); err != nil {
		return model.Event{}, fmt.Errorf("%s: %w", op, err)
	}
	if patch.Empty() {
		return s.Event(ctx, id)
	}

	var set setClause
	if patch.Title != nil {
		set.add("title", *patch.Title)
	}
	if patch.Description != nil {
		set.add("description", *patch.Description)
	}
	if patch.Date != nil {
		set.add("date", *patch.Date)
	}
	if patch.Location != nil {
		set.add("location", *patch.Location)
	}
	if patch.ImageURL != nil {
		set.add("image_url", *patch.ImageURL)
	}
	if patch.Price != nil {
		set.add("price", *patch.Price)
	}
	if patch.Seats != nil {
		set.add("seats", *patch.Seats)
	}
	if patch.Category != nil {
		set.add("category", string(*patch.Category))
	}
	if patch.ChainID != nil {
		set.add("chain_id", chainID(patch.ChainID))
	}

	query := fmt.Sprintf("UPDATE events SET %s WHERE id = $%d", strings.Join(set.cols, ", "), len(set.args)+1)
	res, err := s.db.ExecContext(ctx, query, append(set.args, id)...)
	if err != nil {
		return model.Event{}, fmt.Errorf("%s: %w", op, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return model.Event{}, fmt.Errorf("%s: %w", op, err)
	} else if n == 0 {
		return model.Event{}, fmt.Errorf("%s: %w", op, storage.ErrEventNotFound)
	}

	return s.Event(ctx, id)
}

func (s *Storage) DeleteEvent(ctx context.Context, id string) error {
	const op = "storage.postgres.DeleteEvent"

	if _, err := parseID(id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM events WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	} else if n == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrEventNotFound)
	}
	return nil
}

// chainID stores contract ids in a BIGINT column.
func chainID(id *uint64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*id), Valid: true}
}
