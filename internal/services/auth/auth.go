package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/jlynch25/kaizen_api/internal/lib/apperr"
	"github.com/jlynch25/kaizen_api/internal/lib/jwt"
	"github.com/jlynch25/kaizen_api/internal/storage"
	model "github.com/jlynch25/kaizen_api/models"
)

const (
	MsgFieldsRequired     = "All fields are required"
	MsgInvalidEmail       = "Invalid email address"
	MsgEmailInUse         = "Email already in use"
	MsgInvalidCredentials = "Invalid credentials"
	MsgInvalidToken       = "Invalid token"
	MsgUserNotFound       = "User not found"
	MsgPasswordTooLong    = "Password must be at most 72 bytes"
)

// passwordCost matches the hashes already stored in the users collection.
const passwordCost = 10

type UserSaver interface {
	SaveUser(ctx context.Context, user model.User) (model.User, error)
}

type UserProvider interface {
	UserByEmail(ctx context.Context, email string) (model.User, error)
	User(ctx context.Context, id string) (model.User, error)
}

// Counter is satisfied by prometheus.Counter.
type Counter interface {
	Inc()
}

type nopCounter struct{}

func (nopCounter) Inc() {}

type Auth struct {
	log          *logrus.Logger
	userSaver    UserSaver
	userProvider UserProvider
	secret       string
	tokenTTL     time.Duration
	failedLogins Counter
	validate     *validator.Validate
	now          func() time.Time
}

// New returns a new instance of the Auth service
func New(
	log *logrus.Logger,
	userSaver UserSaver,
	userProvider UserProvider,
	secret string,
	tokenTTL time.Duration,
	failedLogins Counter,
) *Auth {
	if failedLogins == nil {
		failedLogins = nopCounter{}
	}
	return &Auth{
		log:          log,
		userSaver:    userSaver,
		userProvider: userProvider,
		secret:       secret,
		tokenTTL:     tokenTTL,
		failedLogins: failedLogins,
		validate:     validator.New(),
		now:          time.Now,
	}
}

// NormalizeEmail is the form emails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// HashPassword hashes a plaintext password with bcrypt. Passwords bcrypt
// cannot take are reported as a validation error.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", apperr.Validation(MsgPasswordTooLong)
	}
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// ValidateEmail checks an already normalized address.
func (a *Auth) ValidateEmail(email string) error {
	if err := a.validate.Var(email, "required,email"); err != nil {
		return apperr.Validation(MsgInvalidEmail)
	}
	return nil
}

func (a *Auth) Register(ctx context.Context, username, email, password string) (model.User, error) {
	const op = "auth.Register"
	log := a.log.WithField("op", op)

	username = strings.TrimSpace(username)
	email = NormalizeEmail(email)
	if username == "" || email == "" || password == "" {
		return model.User{}, fmt.Errorf("%s: %w", op, apperr.Validation(MsgFieldsRequired))
	}
	if err := a.ValidateEmail(email); err != nil {
		return model.User{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("registering new user")

	_, err := a.userProvider.UserByEmail(ctx, email)
	switch {
	case err == nil:
		log.Warn("email already in use")
		return model.User{}, fmt.Errorf("%s: %w", op, apperr.Conflict(MsgEmailInUse))
	case !errors.Is(err, storage.ErrUserNotFound):
		log.WithError(err).Error("failed to look up user")
		return model.User{}, fmt.Errorf("%s: %w", op, apperr.Internal(err))
	}

	hash, err := HashPassword(password)
	if apperr.Is(err, apperr.KindValidation) {
		return model.User{}, fmt.Errorf("%s: %w", op, err)
	}
	if err != nil {
		log.WithError(err).Error("failed to generate password hash")
		return model.User{}, fmt.Errorf("%s: %w", op, apperr.Internal(err))
	}

	user, err := a.userSaver.SaveUser(ctx, model.User{
		Username:  username,
		Email:     email,
		Password:  hash,
		CreatedAt: a.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			log.Warn("email already in use")
			return model.User{}, fmt.Errorf("%s: %w", op, apperr.Conflict(MsgEmailInUse))
		}
		log.WithError(err).Error("failed to save user")
		return model.User{}, fmt.Errorf("%s: %w", op, apperr.Internal(err))
	}

	log.WithField("user_id", user.ID.Hex()).Info("user registered")

	return user, nil
}

// Login checks credentials and issues a session token.
func (a *Auth) Login(ctx context.Context, email, password string) (string, error) {
	const op = "auth.Login"
	log := a.log.WithField("op", op)

	email = NormalizeEmail(email)
	if email == "" || password == "" {
		a.failedLogins.Inc()
		return "", fmt.Errorf("%s: %w", op, apperr.Auth(MsgInvalidCredentials))
	}

	log.Info("login user")

	user, err := a.userProvider.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found")
			a.failedLogins.Inc()
			return "", fmt.Errorf("%s: %w", op, apperr.Auth(MsgInvalidCredentials))
		}
		log.WithError(err).Error("failed to get user")
		return "", fmt.Errorf("%s: %w", op, apperr.Internal(err))
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		log.Warn("invalid credentials")
		a.failedLogins.Inc()
		return "", fmt.Errorf("%s: %w", op, apperr.Auth(MsgInvalidCredentials))
	}

	token, err := jwt.NewToken(user, a.secret, a.tokenTTL, a.now())
	if err != nil {
		log.WithError(err).Error("failed to generate token")
		return "", fmt.Errorf("%s: %w", op, apperr.Internal(err))
	}

	return token, nil
}

// Verify parses a bearer token; any failure is reported as Unauthorized.
func (a *Auth) Verify(token string) (*jwt.Claims, error) {
	claims, err := jwt.ParseToken(token, a.secret)
	if err != nil {
		return nil, apperr.Unauthorized(MsgInvalidToken)
	}
	return claims, nil
}

func (a *Auth) Me(ctx context.Context, id string) (model.User, error) {
	const op = "auth.Me"

	user, err := a.userProvider.User(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) || errors.Is(err, storage.ErrInvalidID) {
			return model.User{}, fmt.Errorf("%s: %w", op, apperr.NotFound(MsgUserNotFound))
		}
		a.log.WithField("op", op).WithError(err).Error("failed to get user")
		return model.User{}, fmt.Errorf("%s: %w", op, apperr.Internal(err))
	}
	return user, nil
}
