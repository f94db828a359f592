package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/jlynch25/kaizen_api/internal/lib/apperr"
	"github.com/jlynch25/kaizen_api/internal/storage/cache"
)

const (
	MsgInvalidAddress = "Invalid Flow address"
	MsgUnknownTxKind  = "Unknown transaction kind"
	MsgChainError     = "Flow network request failed"

	defaultPollInterval = 2500 * time.Millisecond
)

type TxKind string

const (
	TxCreateEvent     TxKind = "createEvent"
	TxJoinEvent       TxKind = "joinEvent"
	TxMintPOAP        TxKind = "mintPOAP"
	TxSetupCollection TxKind = "setupNFTCollection"
	TxDeployContract  TxKind = "deployContract"
)

// TxParams carries the inputs of every transaction kind; each kind reads its own subset.
type TxParams struct {
	EventID      uint64          `json:"eventId"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	MaxAttendees uint32          `json:"maxAttendees"`
	EventDate    time.Time       `json:"eventDate"`
	Location     string          `json:"location"`
	ImageURL     string          `json:"imageUrl"`
	Amount       decimal.Decimal `json:"amount"`
	Attendee     string          `json:"attendee"`
	ContractName string          `json:"contractName"`
	ContractCode string          `json:"contractCode"`
}

// TxRequest is an unsigned transaction for the user's wallet to sign and send.
type TxRequest struct {
	Kind      TxKind     `json:"kind"`
	Cadence   string     `json:"cadence"`
	Arguments []Argument `json:"arguments"`
	GasLimit  uint64     `json:"gasLimit"`
}

type Gateway struct {
	log          *logrus.Logger
	client       *Client
	network      Network
	templates    *Templates
	cache        cache.Cache
	cacheTTL     time.Duration
	pollInterval time.Duration
}

type GatewayConfig struct {
	Network      Network
	Cache        cache.Cache
	CacheTTL     time.Duration
	PollInterval time.Duration
}

func NewGateway(log *logrus.Logger, client *Client, cfg GatewayConfig) (*Gateway, error) {
	templates, err := NewTemplates(cfg.Network.Contracts)
	if err != nil {
		return nil, err
	}

	c := cfg.Cache
	if c == nil {
		c = cache.Nop{}
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}

	return &Gateway{
		log:          log,
		client:       client,
		network:      cfg.Network,
		templates:    templates,
		cache:        c,
		cacheTTL:     cfg.CacheTTL,
		pollInterval: poll,
	}, nil
}

func (g *Gateway) Network() Network { return g.network }

func (g *Gateway) script(ctx context.Context, op, name string, args ...Argument) (gjson.Result, error) {
	src, ok := g.templates.Script(name)
	if !ok {
		return gjson.Result{}, fmt.Errorf("%s: unknown script %s", op, name)
	}

	res, err := g.client.ExecuteScript(ctx, src, args...)
	if err != nil {
		g.log.WithField("op", op).WithError(err).Error("script failed")
		return gjson.Result{}, fmt.Errorf("%s: %w", op, chainError(err))
	}
	return res, nil
}

// chainError keeps access node failures out of the caller-facing message.
func chainError(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.NotFound() {
		return apperr.NotFound(apiErr.Message)
	}
	return apperr.Unavailable(MsgChainError, err)
}

func checkAddress(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if !IsValidAddress(addr) {
		return "", apperr.Validation(MsgInvalidAddress)
	}
	return strings.ToLower(addr), nil
}

func (g *Gateway) Events(ctx context.Context) ([]ChainEvent, error) {
	const op = "flow.Events"

	return cache.Fetch(ctx, g.log.WithField("op", op), g.cache, "flow:events", g.cacheTTL,
		func(ctx context.Context) ([]ChainEvent, error) {
			res, err := g.script(ctx, op, "getAllEvents")
			if err != nil {
				return nil, err
			}
			events := make([]ChainEvent, 0)
			for _, item := range res.Get("value").Array() {
				events = append(events, decodeChainEvent(item))
			}
			return events, nil
		})
}

// EventInfo returns the on-chain event; ok is false when the contract knows no such id.
func (g *Gateway) EventInfo(ctx context.Context, id uint64) (ChainEvent, bool, error) {
	const op = "flow.EventInfo"

	res, err := g.script(ctx, op, "getEventInfo", UInt64(id))
	if err != nil {
		return ChainEvent{}, false, err
	}
	v, ok := Unwrap(res)
	if !ok {
		return ChainEvent{}, false, nil
	}
	return decodeChainEvent(v), true, nil
}

func (g *Gateway) HasJoined(ctx context.Context, id uint64, address string) (bool, error) {
	const op = "flow.HasJoined"

	addr, err := checkAddress(address)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	res, err := g.script(ctx, op, "hasJoinedEvent", UInt64(id), Address(addr))
	if err != nil {
		return false, err
	}
	return res.Get("value").Bool(), nil
}

func (g *Gateway) NFTs(ctx context.Context, address string) ([]NFT, error) {
	const op = "flow.NFTs"

	addr, err := checkAddress(address)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return cache.Fetch(ctx, g.log.WithField("op", op), g.cache, "flow:nfts:"+addr, g.cacheTTL,
		func(ctx context.Context) ([]NFT, error) {
			res, err := g.script(ctx, op, "getUserNFTs", Address(addr))
			if err != nil {
				return nil, err
			}
			nfts := make([]NFT, 0)
			for _, item := range res.Get("value").Array() {
				nfts = append(nfts, decodeNFT(item))
			}
			return nfts, nil
		})
}

func (g *Gateway) FlowBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	const op = "flow.FlowBalance"

	addr, err := checkAddress(address)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}

	return cache.Fetch(ctx, g.log.WithField("op", op), g.cache, "flow:balance:"+addr, g.cacheTTL,
		func(ctx context.Context) (decimal.Decimal, error) {
			res, err := g.script(ctx, op, "getFlowBalance", Address(addr))
			if err != nil {
				return decimal.Zero, err
			}
			return toDecimal(res), nil
		})
}

// AccountExists reports whether the access node knows address.
func (g *Gateway) AccountExists(ctx context.Context, address string) (bool, error) {
	const op = "flow.AccountExists"

	addr, err := checkAddress(address)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if _, err := g.client.Account(ctx, addr); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.NotFound() {
			return false, nil
		}
		g.log.WithField("op", op).WithError(err).Error("account lookup failed")
		return false, fmt.Errorf("%s: %w", op, chainError(err))
	}
	return true, nil
}

func (g *Gateway) BuildTransaction(kind TxKind, p TxParams) (TxRequest, error) {
	const op = "flow.BuildTransaction"

	src, ok := g.templates.Transaction(kind)
	if !ok {
		return TxRequest{}, fmt.Errorf("%s: %w", op, apperr.Validation(MsgUnknownTxKind))
	}

	args, err := transactionArgs(kind, p)
	if err != nil {
		return TxRequest{}, fmt.Errorf("%s: %w", op, err)
	}

	limit := gasLimit
	if kind == TxDeployContract {
		limit = deployGasLimit
	}

	return TxRequest{Kind: kind, Cadence: src, Arguments: args, GasLimit: limit}, nil
}

func transactionArgs(kind TxKind, p TxParams) ([]Argument, error) {
	switch kind {
	case TxCreateEvent:
		if strings.TrimSpace(p.Name) == "" {
			return nil, apperr.Validation("Event name is required")
		}
		if p.Price.IsNegative() {
			return nil, apperr.Validation("Price must be zero or positive")
		}
		if p.MaxAttendees < 1 {
			return nil, apperr.Validation("Max attendees must be at least 1")
		}
		return []Argument{
			String(p.Name),
			String(p.Description),
			UFix64(p.Price),
			UInt32(p.MaxAttendees),
			Timestamp(p.EventDate),
			String(p.Location),
			String(p.ImageURL),
		}, nil

	case TxJoinEvent:
		if p.EventID == 0 {
			return nil, apperr.Validation("Event id is required")
		}
		if p.Amount.IsNegative() {
			return nil, apperr.Validation("Amount must be zero or positive")
		}
		return []Argument{UInt64(p.EventID), UFix64(p.Amount)}, nil

	case TxMintPOAP:
		if p.EventID == 0 {
			return nil, apperr.Validation("Event id is required")
		}
		attendee, err := checkAddress(p.Attendee)
		if err != nil {
			return nil, err
		}
		return []Argument{
			UInt64(p.EventID),
			String(p.Name),
			Timestamp(p.EventDate),
			Address(attendee),
			String(p.ImageURL),
			String(p.Description),
		}, nil

	case TxSetupCollection:
		return []Argument{}, nil

	case TxDeployContract:
		if strings.TrimSpace(p.ContractName) == "" || strings.TrimSpace(p.ContractCode) == "" {
			return nil, apperr.Validation("Contract name and code are required")
		}
		return []Argument{String(p.ContractName), String(HexCode(p.ContractCode))}, nil
	}
	return nil, apperr.Validation(MsgUnknownTxKind)
}

func (g *Gateway) Submit(ctx context.Context, tx SignedTransaction) (string, error) {
	const op = "flow.Submit"

	id, err := g.client.SendTransaction(ctx, tx)
	if err != nil {
		g.log.WithField("op", op).WithError(err).Error("transaction rejected")
		return "", fmt.Errorf("%s: %w", op, chainError(err))
	}

	g.log.WithField("op", op).WithField("tx_id", id).Info("transaction submitted")
	return id, nil
}

func (g *Gateway) Result(ctx context.Context, id string) (TxResult, error) {
	const op = "flow.Result"

	res, err := g.client.TransactionResult(ctx, id)
	if err != nil {
		g.log.WithField("op", op).WithError(err).Error("transaction result failed")
		return TxResult{}, fmt.Errorf("%s: %w", op, chainError(err))
	}
	return res, nil
}

// Watch polls the transaction until it is sealed or expired, calling onChange
// (when non-nil) each time the status moves. Unknown ids count as pending
// since freshly sent transactions take a moment to reach the access node.
func (g *Gateway) Watch(ctx context.Context, id string, onChange func(TxResult)) (TxResult, error) {
	const op = "flow.Watch"

	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	last := TxStatus(-1)
	for {
		res, err := g.client.TransactionResult(ctx, id)
		switch {
		case err == nil:
			if res.Status != last {
				last = res.Status
				if onChange != nil {
					onChange(res)
				}
			}
			if res.Status.Final() {
				return res, nil
			}
		case isNotFound(err):
		default:
			if ctx.Err() != nil {
				return TxResult{}, ctx.Err()
			}
			g.log.WithField("op", op).WithError(err).Error("transaction poll failed")
			return TxResult{}, fmt.Errorf("%s: %w", op, chainError(err))
		}

		select {
		case <-ctx.Done():
			return TxResult{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Joined checks res for this network's EventJoined of eventID by attendee.
func (g *Gateway) Joined(res TxResult, eventID uint64, attendee string) bool {
	return res.Joined(g.network.Contracts.KaizenEvent, eventID, attendee)
}

func (g *Gateway) WaitSealed(ctx context.Context, id string) (TxResult, error) {
	return g.Watch(ctx, id, nil)
}

func isNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.NotFound()
}
