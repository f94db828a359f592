package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jlynch25/kaizen_api/internal/storage"
	model "github.com/jlynch25/kaizen_api/models"
)

const userColumns = "id, username, email, password, image_url, wallet_address, created_at"

type userRow struct {
	ID        string    `db:"id"`
	Username  string    `db:"username"`
	Email     string    `db:"email"`
	Password  string    `db:"password"`
	ImageURL  string    `db:"image_url"`
	Wallet    string    `db:"wallet_address"`
	CreatedAt time.Time `db:"created_at"`
}

func (r userRow) toModel() (model.User, error) {
	oid, err := parseID(r.ID)
	if err != nil {
		return model.User{}, err
	}
	return model.User{
		ID:            oid,
		Username:      r.Username,
		Email:         r.Email,
		Password:      r.Password,
		ImageURL:      r.ImageURL,
		WalletAddress: r.Wallet,
		CreatedAt:     r.CreatedAt,
	}, nil
}

func (s *Storage) SaveUser(ctx context.Context, user model.User) (model.User, error) {
	const op = "storage.postgres.SaveUser"

	query := "INSERT INTO users (" + userColumns + ") VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING " + userColumns

	var row userRow
	err := s.db.GetContext(ctx, &row, query,
		newID(), user.Username, user.Email, user.Password, user.ImageURL, user.WalletAddress, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return model.User{}, fmt.Errorf("%s: %w", op, storage.ErrUserExists)
		}
		return model.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return row.toModel()
}

func (s *Storage) UserByEmail(ctx context.Context, email string) (model.User, error) {
	const op = "storage.postgres.UserByEmail"
	return s.getUser(ctx, op, "SELECT "+userColumns+" FROM users WHERE email = $1", email)
}

func (s *Storage) User(ctx context.Context, id string) (model.User, error) {
	const op = "storage.postgres.User"

	if _, err := parseID(id); err != nil {
		return model.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return s.getUser(ctx, op, "SELECT "+userColumns+" FROM users WHERE id = $1", id)
}

func (s *Storage) getUser(ctx context.Context, op, query string, args ...interface{}) (model.User, error) {
	var row userRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
		}
		return model.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return row.toModel()
}

func (s *Storage) Users(ctx context.Context) ([]model.User, error) {
	const op = "storage.postgres.Users"

	var rows []userRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT "+userColumns+" FROM users ORDER BY created_at DESC, id DESC"); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	users := make([]model.User, 0, len(rows))
	for _, row := range rows {
		user, err := row.toModel()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		users = append(users, user)
	}
	return users, nil
}

func (s *Storage) UpdateUser(ctx context.Context, id string, patch storage.UserPatch) (model.User, error) {
	const op = "storage.postgres.UpdateUser"

	if _, err := parseID(id); err != nil {
		return model.User{}, fmt.Errorf("%s: %w", op, err)
	}
	if patch.Empty() {
		return s.User(ctx, id)
	}

	var set setClause
	if patch.Username != nil {
		set.add("username", *patch.Username)
	}
	if patch.Email != nil {
		set.add("email", *patch.Email)
	}
	if patch.PasswordHash != nil {
		set.add("password", *patch.PasswordHash)
	}
	if patch.ImageURL != nil {
		set.add("image_url", *patch.ImageURL)
	}
	if patch.WalletAddress != nil {
		set.add("wallet_address", *patch.WalletAddress)
	}

	query := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d RETURNING %s",
		strings.Join(set.cols, ", "), len(set.args)+1, userColumns)

	var row userRow
	if err := s.db.GetContext(ctx, &row, query, append(set.args, id)...); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return model.User{}, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
		case isUniqueViolation(err):
			return model.User{}, fmt.Errorf("%s: %w", op, storage.ErrUserExists)
		}
		return model.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return row.toModel()
}

func (s *Storage) DeleteUser(ctx context.Context, id string) error {
	const op = "storage.postgres.DeleteUser"

	if _, err := parseID(id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	} else if n == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}
	return nil
}
