package wallet

import (
	"context"
	"errors"
	"sync"

	"github.com/jlynch25/kaizen_api/internal/flow"
)

// AccountChecker confirms an address exists on chain.
type AccountChecker interface {
	AccountExists(ctx context.Context, address string) (bool, error)
}

var (
	errInvalidAddress = errors.New("invalid Flow address")
	errNoAccount      = errors.New("account not found on chain")
)

// WatchProvider is a read-only Provider for a known address. Authenticate
// succeeds when the account exists on chain; nothing is ever signed.
type WatchProvider struct {
	address string
	checker AccountChecker

	mu       sync.Mutex
	loggedIn bool
}

func NewWatchProvider(address string, checker AccountChecker) *WatchProvider {
	return &WatchProvider{address: address, checker: checker}
}

func (p *WatchProvider) user() User {
	if !p.loggedIn {
		return User{}
	}
	return User{LoggedIn: true, Address: p.address, Services: []WalletService{{UID: "kaizen#watch", Type: "authn"}}}
}

func (p *WatchProvider) Snapshot(context.Context) (User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.user(), nil
}

func (p *WatchProvider) Authenticate(ctx context.Context) (User, error) {
	if !flow.IsValidAddress(p.address) {
		return User{}, errInvalidAddress
	}

	ok, err := p.checker.AccountExists(ctx, p.address)
	if err != nil {
		return User{}, err
	}
	if !ok {
		return User{}, errNoAccount
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.loggedIn = true
	return p.user(), nil
}

func (p *WatchProvider) Unauthenticate(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loggedIn = false
	return nil
}
