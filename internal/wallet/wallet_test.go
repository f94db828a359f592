package wallet

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jlynch25/kaizen_api/internal/lib/logger"
)

const addr = "0x7e60df042a9c0868"

type fakeProvider struct {
	mu        sync.Mutex
	current   User
	next      User
	authErr   error
	logouts   int
	authCalls int
}

func (p *fakeProvider) Snapshot(context.Context) (User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, nil
}

func (p *fakeProvider) Authenticate(context.Context) (User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.authCalls++
	if p.authErr != nil {
		return User{}, p.authErr
	}
	p.current = p.next
	return p.next, nil
}

func (p *fakeProvider) Unauthenticate(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logouts++
	p.current = User{}
	return nil
}

type fakeBalances struct {
	balance decimal.Decimal
	err     error
}

func (b fakeBalances) FlowBalance(context.Context, string) (decimal.Decimal, error) {
	return b.balance, b.err
}

func blocto() User {
	return User{LoggedIn: true, Address: addr, Services: []WalletService{{UID: "blocto#authn"}}}
}

func TestConnect(t *testing.T) {
	p := &fakeProvider{next: blocto()}
	s := NewSession(logger.Discard(), p, fakeBalances{balance: decimal.RequireFromString("12.5")})

	assert.Equal(t, StatusDisconnected, s.State().Status)
	assert.Equal(t, "0", s.State().Balance)

	require.NoError(t, s.Connect(context.Background()))

	st := s.State()
	assert.Equal(t, StatusConnected, st.Status)
	assert.Equal(t, addr, st.Address)
	assert.Equal(t, "Blocto", st.WalletName)
	assert.Equal(t, "12.50000000", st.Balance)
	assert.False(t, st.BalanceLoading)
	assert.Empty(t, st.Error)
	assert.Equal(t, 0, p.logouts)
}

func TestConnect_ClearsStaleSession(t *testing.T) {
	p := &fakeProvider{current: blocto(), next: blocto()}
	s := NewSession(logger.Discard(), p, fakeBalances{})

	require.NoError(t, s.Connect(context.Background()))
	assert.Equal(t, 1, p.logouts)
	assert.Equal(t, 1, p.authCalls)
}

func TestConnect_Errors(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{errors.New("User declined the request"), MsgRejected},
		{errors.New("Request REJECTED"), MsgRejected},
		{errors.New("access denied"), MsgRejected},
		{context.DeadlineExceeded, MsgTimeout},
		{errors.New("popup timeout"), MsgTimeout},
		{errors.New("No wallet services found"), MsgNoServices},
		{errors.New("invalid nonce"), MsgNonce},
		{errors.New("Account Proof mismatch"), MsgAccountProof},
		{errors.New("something odd"), "something odd"},
		{errors.New("  "), MsgConnectFailed},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			p := &fakeProvider{authErr: tt.err}
			s := NewSession(logger.Discard(), p, fakeBalances{})

			err := s.Connect(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())

			st := s.State()
			assert.Equal(t, StatusDisconnected, st.Status)
			assert.Equal(t, tt.want, st.Error)
		})
	}
}

func TestConnect_NotLoggedIn(t *testing.T) {
	s := NewSession(logger.Discard(), &fakeProvider{next: User{}}, fakeBalances{})

	err := s.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, MsgConnectFailed, err.Error())
}

func TestRefreshBalance_Failure(t *testing.T) {
	s := NewSession(logger.Discard(), &fakeProvider{next: blocto()}, fakeBalances{err: errors.New("node down")})

	require.NoError(t, s.Connect(context.Background()))

	st := s.State()
	assert.Equal(t, StatusConnected, st.Status)
	assert.Equal(t, "0.00", st.Balance)
	assert.Equal(t, MsgBalanceFailed, st.Error)
}

func TestDisconnect(t *testing.T) {
	p := &fakeProvider{next: blocto()}
	s := NewSession(logger.Discard(), p, fakeBalances{balance: decimal.NewFromInt(1)})
	require.NoError(t, s.Connect(context.Background()))

	require.NoError(t, s.Disconnect(context.Background()))
	assert.Equal(t, State{Status: StatusDisconnected, Balance: "0"}, s.State())
}

func TestSubscribe_LatestValue(t *testing.T) {
	p := &fakeProvider{next: blocto()}
	s := NewSession(logger.Discard(), p, fakeBalances{balance: decimal.NewFromInt(3)})

	ch, cancel := s.Subscribe()
	first := <-ch
	assert.Equal(t, StatusDisconnected, first.Status)

	// nobody reads while the session moves through several states
	require.NoError(t, s.Connect(context.Background()))

	select {
	case latest := <-ch:
		assert.Equal(t, StatusConnected, latest.Status)
		assert.Equal(t, "3.00000000", latest.Balance)
		assert.False(t, latest.BalanceLoading)
	case <-time.After(time.Second):
		t.Fatal("no state delivered")
	}

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
}

func TestSync(t *testing.T) {
	p := &fakeProvider{}
	s := NewSession(logger.Discard(), p, fakeBalances{balance: decimal.NewFromInt(2)})

	p.current = User{LoggedIn: true, Address: addr, Services: []WalletService{{UID: "lilico"}}}
	require.NoError(t, s.Sync(context.Background()))
	assert.Equal(t, StatusConnected, s.State().Status)
	assert.Equal(t, "Lilico", s.State().WalletName)
	assert.Equal(t, "2.00000000", s.State().Balance)

	p.current = User{}
	require.NoError(t, s.Sync(context.Background()))
	assert.Equal(t, StatusDisconnected, s.State().Status)
}

func TestWalletName(t *testing.T) {
	assert.Equal(t, "Dapper", WalletName(User{Services: []WalletService{{UID: "dapper-wallet#authn"}}}))
	assert.Equal(t, "Flow Wallet", WalletName(User{Services: []WalletService{{UID: "fcl-wc"}}}))
	assert.Equal(t, "Flow Wallet", WalletName(User{}))
}

type accounts map[string]bool

func (a accounts) AccountExists(_ context.Context, address string) (bool, error) {
	return a[address], nil
}

func TestWatchProvider(t *testing.T) {
	chain := accounts{addr: true}

	s := NewSession(logger.Discard(), NewWatchProvider(addr, chain), fakeBalances{balance: decimal.NewFromInt(5)})
	require.NoError(t, s.Connect(context.Background()))
	assert.Equal(t, StatusConnected, s.State().Status)
	assert.Equal(t, "Flow Wallet", s.State().WalletName)

	missing := NewSession(logger.Discard(), NewWatchProvider("0x0000000000000009", chain), fakeBalances{})
	err := missing.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, "account not found on chain", err.Error())

	bad := NewSession(logger.Discard(), NewWatchProvider("alice", chain), fakeBalances{})
	assert.Error(t, bad.Connect(context.Background()))
}
