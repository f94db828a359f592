package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/jlynch25/kaizen_api/internal/storage"
)

// Migrations holds the schema applied by cmd/migrator.
//
//go:embed migrations/*.sql
var Migrations embed.FS

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

type Storage struct {
	db *sqlx.DB
}

// Connect opens and pings a PostgreSQL pool.
func Connect(ctx context.Context, url string) (*Storage, error) {
	const op = "storage.postgres.Connect"

	db, err := sqlx.ConnectContext(ctx, "postgres", url)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return New(db), nil
}

func New(db *sqlx.DB) *Storage {
	return &Storage{db: db}
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Storage) Close(context.Context) error {
	return s.db.Close()
}

// Ids are ObjectID hex strings so both backends expose the same identifiers.
func newID() string {
	return primitive.NewObjectID().Hex()
}

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, storage.ErrInvalidID
	}
	return oid, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation
}

// setClause accumulates "col = $n" assignments for a partial update.
type setClause struct {
	cols []string
	args []interface{}
}

func (c *setClause) add(col string, v interface{}) {
	c.args = append(c.args, v)
	c.cols = append(c.cols, fmt.Sprintf("%s = $%d", col, len(c.args)))
}
