package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jlynch25/kaizen_api/internal/flow"
	"github.com/jlynch25/kaizen_api/internal/lib/apperr"
	"github.com/jlynch25/kaizen_api/internal/services/auth"
	"github.com/jlynch25/kaizen_api/internal/storage"
	model "github.com/jlynch25/kaizen_api/models"
)

const (
	MsgForbidden    = "Forbidden"
	MsgNothingToSet = "No fields to update"
)

type Registrar interface {
	Register(ctx context.Context, username, email, password string) (model.User, error)
	ValidateEmail(email string) error
}

type UserStore interface {
	User(ctx context.Context, id string) (model.User, error)
	Users(ctx context.Context) ([]model.User, error)
	UpdateUser(ctx context.Context, id string, patch storage.UserPatch) (model.User, error)
	DeleteUser(ctx context.Context, id string) error
}

type Service struct {
	log       *logrus.Logger
	registrar Registrar
	store     UserStore
}

func New(log *logrus.Logger, registrar Registrar, store UserStore) *Service {
	return &Service{log: log, registrar: registrar, store: store}
}

// Patch is a partial profile update. Password is plaintext and hashed before storing.
type Patch struct {
	Username *string
	Email    *string
	Password *string
}

// Create adds a user with the same rules as self-registration.
func (s *Service) Create(ctx context.Context, username, email, password string) (model.User, error) {
	return s.registrar.Register(ctx, username, email, password)
}

func (s *Service) List(ctx context.Context) ([]model.User, error) {
	const op = "users.List"

	users, err := s.store.Users(ctx)
	if err != nil {
		s.log.WithField("op", op).WithError(err).Error("failed to list users")
		return nil, fmt.Errorf("%s: %w", op, apperr.Internal(err))
	}
	return users, nil
}

func (s *Service) Get(ctx context.Context, id string) (model.User, error) {
	const op = "users.Get"

	user, err := s.store.User(ctx, id)
	if err != nil {
		return model.User{}, fmt.Errorf("%s: %w", op, s.storeError(op, err))
	}
	return user, nil
}

// Update applies patch to the caller's own profile.
func (s *Service) Update(ctx context.Context, callerID, id string, patch Patch) (model.User, error) {
	const op = "users.Update"
	log := s.log.WithField("op", op)

	if callerID != id {
		return model.User{}, fmt.Errorf("%s: %w", op, apperr.Forbidden(MsgForbidden))
	}

	var upd storage.UserPatch
	if patch.Username != nil {
		name := strings.TrimSpace(*patch.Username)
		if name == "" {
			return model.User{}, fmt.Errorf("%s: %w", op, apperr.Validation(auth.MsgFieldsRequired))
		}
		upd.Username = &name
	}
	if patch.Email != nil {
		email := auth.NormalizeEmail(*patch.Email)
		if err := s.registrar.ValidateEmail(email); err != nil {
			return model.User{}, fmt.Errorf("%s: %w", op, err)
		}
		upd.Email = &email
	}
	if patch.Password != nil {
		if *patch.Password == "" {
			return model.User{}, fmt.Errorf("%s: %w", op, apperr.Validation(auth.MsgFieldsRequired))
		}
		hash, err := auth.HashPassword(*patch.Password)
		if apperr.Is(err, apperr.KindValidation) {
			return model.User{}, fmt.Errorf("%s: %w", op, err)
		}
		if err != nil {
			log.WithError(err).Error("failed to generate password hash")
			return model.User{}, fmt.Errorf("%s: %w", op, apperr.Internal(err))
		}
		upd.PasswordHash = &hash
	}
	if upd.Empty() {
		return model.User{}, fmt.Errorf("%s: %w", op, apperr.Validation(MsgNothingToSet))
	}

	user, err := s.store.UpdateUser(ctx, id, upd)
	if err != nil {
		return model.User{}, fmt.Errorf("%s: %w", op, s.storeError(op, err))
	}

	log.WithField("user_id", id).Info("user updated")
	return user, nil
}

func (s *Service) Delete(ctx context.Context, callerID, id string) error {
	const op = "users.Delete"

	if callerID != id {
		return fmt.Errorf("%s: %w", op, apperr.Forbidden(MsgForbidden))
	}

	if err := s.store.DeleteUser(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, s.storeError(op, err))
	}

	s.log.WithField("op", op).WithField("user_id", id).Info("user deleted")
	return nil
}

// SetImage records an uploaded profile image path on the caller's own profile.
func (s *Service) SetImage(ctx context.Context, callerID, id, url string) (model.User, error) {
	const op = "users.SetImage"

	if callerID != id {
		return model.User{}, fmt.Errorf("%s: %w", op, apperr.Forbidden(MsgForbidden))
	}

	user, err := s.store.UpdateUser(ctx, id, storage.UserPatch{ImageURL: &url})
	if err != nil {
		return model.User{}, fmt.Errorf("%s: %w", op, s.storeError(op, err))
	}
	return user, nil
}

// SetWallet links a Flow account to the caller's own profile.
func (s *Service) SetWallet(ctx context.Context, callerID, id, address string) (model.User, error) {
	const op = "users.SetWallet"

	if callerID != id {
		return model.User{}, fmt.Errorf("%s: %w", op, apperr.Forbidden(MsgForbidden))
	}

	address = strings.ToLower(strings.TrimSpace(address))
	if !flow.IsValidAddress(address) {
		return model.User{}, fmt.Errorf("%s: %w", op, apperr.Validation(flow.MsgInvalidAddress))
	}

	user, err := s.store.UpdateUser(ctx, id, storage.UserPatch{WalletAddress: &address})
	if err != nil {
		return model.User{}, fmt.Errorf("%s: %w", op, s.storeError(op, err))
	}

	s.log.WithField("op", op).WithField("user_id", id).WithField("address", address).Info("wallet linked")
	return user, nil
}

// ClearWallet unlinks the caller's Flow account.
func (s *Service) ClearWallet(ctx context.Context, callerID, id string) (model.User, error) {
	const op = "users.ClearWallet"

	if callerID != id {
		return model.User{}, fmt.Errorf("%s: %w", op, apperr.Forbidden(MsgForbidden))
	}

	none := ""
	user, err := s.store.UpdateUser(ctx, id, storage.UserPatch{WalletAddress: &none})
	if err != nil {
		return model.User{}, fmt.Errorf("%s: %w", op, s.storeError(op, err))
	}

	s.log.WithField("op", op).WithField("user_id", id).Info("wallet unlinked")
	return user, nil
}

func (s *Service) storeError(op string, err error) error {
	switch {
	case errors.Is(err, storage.ErrUserNotFound), errors.Is(err, storage.ErrInvalidID):
		return apperr.NotFound(auth.MsgUserNotFound)
	case errors.Is(err, storage.ErrUserExists):
		return apperr.Conflict(auth.MsgEmailInUse)
	}
	s.log.WithField("op", op).WithError(err).Error("storage failure")
	return apperr.Internal(err)
}
