// Package wallet tracks a Flow wallet connection. Callers either pull the
// current State or Subscribe to a channel of changes.
package wallet

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/jlynch25/kaizen_api/internal/flow"
)

type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
)

const (
	MsgRejected      = "Wallet connection was rejected. Please try again and approve the connection."
	MsgTimeout       = "Wallet connection timed out. Please try again."
	MsgNoServices    = "No wallet services are available. Please install a Flow wallet."
	MsgNonce         = "Authentication error. Please try connecting again."
	MsgAccountProof  = "Account verification failed. Please try again."
	MsgConnectFailed = "Failed to connect wallet"
	MsgBalanceFailed = "Failed to fetch balance"

	zeroBalance   = "0"
	failedBalance = "0.00"
	defaultName   = "Flow Wallet"
)

// WalletService is one of the services a wallet advertises after login.
type WalletService struct {
	UID  string `json:"uid"`
	Type string `json:"type"`
}

// User is the provider's view of the current wallet user.
type User struct {
	LoggedIn bool            `json:"loggedIn"`
	Address  string          `json:"addr"`
	Services []WalletService `json:"services"`
}

// Provider adapts the wallet SDK or any other source of wallet identity.
type Provider interface {
	Snapshot(ctx context.Context) (User, error)
	Authenticate(ctx context.Context) (User, error)
	Unauthenticate(ctx context.Context) error
}

type BalanceSource interface {
	FlowBalance(ctx context.Context, address string) (decimal.Decimal, error)
}

type State struct {
	Status         Status `json:"status"`
	Address        string `json:"address,omitempty"`
	WalletName     string `json:"walletName,omitempty"`
	Balance        string `json:"balance"`
	BalanceLoading bool   `json:"balanceLoading"`
	Error          string `json:"error,omitempty"`
}

func (s State) Connected() bool { return s.Status == StatusConnected }

func disconnected() State {
	return State{Status: StatusDisconnected, Balance: zeroBalance}
}

type Session struct {
	log      *logrus.Logger
	provider Provider
	balances BalanceSource

	mu     sync.Mutex
	state  State
	subs   map[int]chan State
	nextID int
}

func NewSession(log *logrus.Logger, provider Provider, balances BalanceSource) *Session {
	return &Session{
		log:      log,
		provider: provider,
		balances: balances,
		state:    disconnected(),
		subs:     make(map[int]chan State),
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe delivers the current state and then every change. Only the latest
// undelivered state is kept, so a slow reader skips intermediate states
// instead of blocking the session. cancel closes the channel.
func (s *Session) Subscribe() (<-chan State, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++

	ch := make(chan State, 1)
	ch <- s.state
	s.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

func (s *Session) update(fn func(st *State)) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&s.state)
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s.state:
		default:
		}
	}
	return s.state
}

// Connect logs out any stale wallet session and starts a fresh login. The
// returned error carries a message fit for display.
func (s *Session) Connect(ctx context.Context) error {
	const op = "wallet.Connect"
	log := s.log.WithField("op", op)

	s.update(func(st *State) {
		st.Status = StatusConnecting
		st.Error = ""
	})

	if snap, err := s.provider.Snapshot(ctx); err == nil && snap.LoggedIn {
		if err := s.provider.Unauthenticate(ctx); err != nil {
			log.WithError(err).Warn("failed to clear previous wallet session")
		}
	}

	user, err := s.provider.Authenticate(ctx)
	if err == nil && (!user.LoggedIn || user.Address == "") {
		err = errors.New("")
	}
	if err != nil {
		msg := ConnectErrorMessage(err)
		log.WithError(err).Warn("wallet connection failed")
		s.update(func(st *State) {
			*st = disconnected()
			st.Error = msg
		})
		return errors.New(msg)
	}

	s.update(func(st *State) {
		st.Status = StatusConnected
		st.Address = user.Address
		st.WalletName = WalletName(user)
	})
	log.WithField("address", user.Address).Info("wallet connected")

	s.RefreshBalance(ctx)
	return nil
}

func (s *Session) Disconnect(ctx context.Context) error {
	err := s.provider.Unauthenticate(ctx)
	if err != nil {
		s.log.WithField("op", "wallet.Disconnect").WithError(err).Warn("unauthenticate failed")
	}
	s.update(func(st *State) { *st = disconnected() })
	return err
}

// Sync pulls the provider's current user and reconciles the session with it.
func (s *Session) Sync(ctx context.Context) error {
	user, err := s.provider.Snapshot(ctx)
	if err != nil {
		return err
	}

	current := s.State()
	switch {
	case user.LoggedIn && user.Address != "" && (current.Address != user.Address || !current.Connected()):
		s.update(func(st *State) {
			st.Status = StatusConnected
			st.Address = user.Address
			st.WalletName = WalletName(user)
		})
		s.RefreshBalance(ctx)
	case !user.LoggedIn && current.Status != StatusDisconnected:
		s.update(func(st *State) { *st = disconnected() })
	}
	return nil
}

// RefreshBalance reloads the balance of the connected address. A failed
// lookup shows "0.00" with an error rather than failing the session.
func (s *Session) RefreshBalance(ctx context.Context) {
	address := s.State().Address
	if address == "" {
		return
	}

	s.update(func(st *State) { st.BalanceLoading = true })

	balance, err := s.balances.FlowBalance(ctx, address)
	if err != nil {
		s.log.WithField("op", "wallet.RefreshBalance").WithError(err).Warn("balance lookup failed")
		s.update(func(st *State) {
			st.Balance = failedBalance
			st.BalanceLoading = false
			st.Error = MsgBalanceFailed
		})
		return
	}

	s.update(func(st *State) {
		st.Balance = flow.FormatAmount(balance)
		st.BalanceLoading = false
		st.Error = ""
	})
}

// Poll syncs with the provider and refreshes the balance every interval until ctx ends.
func (s *Session) Poll(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Sync(ctx); err != nil {
				s.log.WithField("op", "wallet.Poll").WithError(err).Warn("wallet sync failed")
				continue
			}
			s.RefreshBalance(ctx)
		}
	}
}

// ConnectErrorMessage maps wallet SDK failures to what the user is shown.
func ConnectErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return MsgTimeout
	}

	raw := err.Error()
	msg := strings.ToLower(raw)
	switch {
	case strings.Contains(msg, "declined"), strings.Contains(msg, "rejected"), strings.Contains(msg, "denied"):
		return MsgRejected
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"), strings.Contains(msg, "deadline"):
		return MsgTimeout
	case strings.Contains(msg, "no wallet services"), strings.Contains(msg, "no services"):
		return MsgNoServices
	case strings.Contains(msg, "nonce"):
		return MsgNonce
	case strings.Contains(msg, "account proof"):
		return MsgAccountProof
	case strings.TrimSpace(raw) != "":
		return raw
	}
	return MsgConnectFailed
}

var walletNames = []struct{ key, name string }{
	{"blocto", "Blocto"},
	{"lilico", "Lilico"},
	{"dapper", "Dapper"},
	{"ledger", "Ledger"},
	{"finoa", "Finoa"},
}

// WalletName guesses the wallet brand from the first advertised service.
func WalletName(u User) string {
	if len(u.Services) > 0 {
		uid := strings.ToLower(u.Services[0].UID)
		for _, w := range walletNames {
			if strings.Contains(uid, w.key) {
				return w.name
			}
		}
	}
	return defaultName
}
