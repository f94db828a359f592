// Package flow talks to a Flow access node over its REST API and holds the
// Cadence scripts and transactions the application runs.
package flow

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

const defaultTimeout = 30 * time.Second

// TxStatus follows the numeric codes the Flow SDKs report (4 is sealed).
type TxStatus int

const (
	StatusUnknown TxStatus = iota
	StatusPending
	StatusFinalized
	StatusExecuted
	StatusSealed
	StatusExpired
)

var statusNames = []string{"Unknown", "Pending", "Finalized", "Executed", "Sealed", "Expired"}

func (s TxStatus) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return statusNames[0]
	}
	return statusNames[s]
}

func (s TxStatus) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

// Final reports whether the status can no longer change.
func (s TxStatus) Final() bool { return s == StatusSealed || s == StatusExpired }

func parseStatus(name string) TxStatus {
	for i, n := range statusNames {
		if strings.EqualFold(n, name) {
			return TxStatus(i)
		}
	}
	return StatusUnknown
}

type TxEvent struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type TxResult struct {
	ID           string    `json:"id"`
	Status       TxStatus  `json:"status"`
	StatusCode   int       `json:"statusCode"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	BlockID      string    `json:"blockId,omitempty"`
	Events       []TxEvent `json:"events,omitempty"`
}

// Failed reports whether execution reverted.
func (r TxResult) Failed() bool { return r.ErrorMessage != "" || r.StatusCode != 0 }

// EventType is the qualified type the access node reports for an event
// emitted by contract name deployed at address.
func EventType(address, contract, event string) string {
	return "A." + stripHex(address) + "." + contract + "." + event
}

// Joined reports whether the result carries KaizenEvent.EventJoined, from the
// contract at address, for eventID and attendee.
func (r TxResult) Joined(address string, eventID uint64, attendee string) bool {
	want := EventType(address, "KaizenEvent", "EventJoined")
	for _, ev := range r.Events {
		if ev.Type != want {
			continue
		}
		fields, ok := ev.Payload.(map[string]interface{})
		if !ok {
			continue
		}
		id, _ := fields["eventId"].(uint64)
		who, _ := fields["attendee"].(string)
		if id == eventID && stripHex(who) == stripHex(attendee) {
			return true
		}
	}
	return false
}

type Block struct {
	ID        string    `json:"id"`
	Height    uint64    `json:"height"`
	Timestamp time.Time `json:"timestamp"`
}

type Account struct {
	Address string          `json:"address"`
	Balance decimal.Decimal `json:"balance"`
}

type ProposalKey struct {
	Address        string `json:"address"`
	KeyIndex       uint32 `json:"keyIndex"`
	SequenceNumber uint64 `json:"sequenceNumber"`
}

type Signature struct {
	Address  string `json:"address"`
	KeyIndex uint32 `json:"keyIndex"`
	// Signature is base64 encoded.
	Signature string `json:"signature"`
}

// SignedTransaction is a transaction signed by the user's wallet and relayed by the API.
type SignedTransaction struct {
	Script             string      `json:"script" validate:"required"`
	Arguments          []Argument  `json:"arguments"`
	ReferenceBlockID   string      `json:"referenceBlockId" validate:"required,hexadecimal"`
	GasLimit           uint64      `json:"gasLimit" validate:"required"`
	Payer              string      `json:"payer" validate:"required"`
	ProposalKey        ProposalKey `json:"proposalKey"`
	Authorizers        []string    `json:"authorizers"`
	PayloadSignatures  []Signature `json:"payloadSignatures"`
	EnvelopeSignatures []Signature `json:"envelopeSignatures" validate:"required,min=1"`
}

// APIError is a non-2xx answer from the access node.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("flow access node: %d %s", e.StatusCode, e.Message)
}

// NotFound reports a 404, which the access node also returns for unknown transactions.
func (e *APIError) NotFound() bool { return e.StatusCode == http.StatusNotFound }

type Config struct {
	URL     string
	Timeout time.Duration
	// Observe, when set, is told the outcome of every request ("ok" or "error").
	Observe func(op, status string)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	observe    func(op, status string)
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("flow: access node URL required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	observe := cfg.Observe
	if observe == nil {
		observe = func(string, string) {}
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		observe:    observe,
	}, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body interface{}) (raw []byte, err error) {
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		c.observe(op, status)
	}()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: marshal request: %w", op, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: execute request: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		parsed := gjson.ParseBytes(raw)
		msg := parsed.Get("message").String()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("%s: %w", op, &APIError{
			StatusCode: resp.StatusCode,
			Code:       int(parsed.Get("code").Int()),
			Message:    msg,
		})
	}
	return raw, nil
}

func encodeArguments(args []Argument) ([]string, error) {
	out := make([]string, 0, len(args))
	for _, arg := range args {
		encoded, err := json.Marshal(arg)
		if err != nil {
			return nil, err
		}
		out = append(out, base64.StdEncoding.EncodeToString(encoded))
	}
	return out, nil
}

// ExecuteScript runs a read-only script against the latest sealed block and
// returns its JSON-Cadence result.
func (c *Client) ExecuteScript(ctx context.Context, script string, args ...Argument) (gjson.Result, error) {
	const op = "flow.ExecuteScript"

	encodedArgs, err := encodeArguments(args)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%s: encode arguments: %w", op, err)
	}

	raw, err := c.do(ctx, op, http.MethodPost, "/v1/scripts?block_height=sealed", map[string]interface{}{
		"script":    base64.StdEncoding.EncodeToString([]byte(script)),
		"arguments": encodedArgs,
	})
	if err != nil {
		return gjson.Result{}, err
	}

	// the body is a JSON string holding base64 JSON-Cadence
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return gjson.Result{}, fmt.Errorf("%s: decode response: %w", op, err)
	}
	value, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%s: decode value: %w", op, err)
	}
	return gjson.ParseBytes(value), nil
}

func (c *Client) TransactionResult(ctx context.Context, id string) (TxResult, error) {
	const op = "flow.TransactionResult"

	raw, err := c.do(ctx, op, http.MethodGet, "/v1/transaction_results/"+url.PathEscape(id), nil)
	if err != nil {
		return TxResult{}, err
	}

	parsed := gjson.ParseBytes(raw)
	result := TxResult{
		ID:           id,
		Status:       parseStatus(parsed.Get("status").String()),
		StatusCode:   int(parsed.Get("status_code").Int()),
		ErrorMessage: parsed.Get("error_message").String(),
		BlockID:      parsed.Get("block_id").String(),
	}
	for _, ev := range parsed.Get("events").Array() {
		event := TxEvent{Type: ev.Get("type").String()}
		if payload, err := base64.StdEncoding.DecodeString(ev.Get("payload").String()); err == nil {
			event.Payload = Decode(gjson.ParseBytes(payload))
		}
		result.Events = append(result.Events, event)
	}
	return result, nil
}

func stripHex(addr string) string {
	return strings.TrimPrefix(strings.ToLower(addr), "0x")
}

func wireSignatures(sigs []Signature) []map[string]string {
	out := make([]map[string]string, 0, len(sigs))
	for _, s := range sigs {
		out = append(out, map[string]string{
			"address":   stripHex(s.Address),
			"key_index": strconv.FormatUint(uint64(s.KeyIndex), 10),
			"signature": s.Signature,
		})
	}
	return out
}

// SendTransaction submits a signed transaction and returns its id.
func (c *Client) SendTransaction(ctx context.Context, tx SignedTransaction) (string, error) {
	const op = "flow.SendTransaction"

	encodedArgs, err := encodeArguments(tx.Arguments)
	if err != nil {
		return "", fmt.Errorf("%s: encode arguments: %w", op, err)
	}

	authorizers := make([]string, 0, len(tx.Authorizers))
	for _, a := range tx.Authorizers {
		authorizers = append(authorizers, stripHex(a))
	}

	body := map[string]interface{}{
		"script":             base64.StdEncoding.EncodeToString([]byte(tx.Script)),
		"arguments":          encodedArgs,
		"reference_block_id": tx.ReferenceBlockID,
		"gas_limit":          strconv.FormatUint(tx.GasLimit, 10),
		"payer":              stripHex(tx.Payer),
		"proposal_key": map[string]string{
			"address":         stripHex(tx.ProposalKey.Address),
			"key_index":       strconv.FormatUint(uint64(tx.ProposalKey.KeyIndex), 10),
			"sequence_number": strconv.FormatUint(tx.ProposalKey.SequenceNumber, 10),
		},
		"authorizers":         authorizers,
		"payload_signatures":  wireSignatures(tx.PayloadSignatures),
		"envelope_signatures": wireSignatures(tx.EnvelopeSignatures),
	}

	raw, err := c.do(ctx, op, http.MethodPost, "/v1/transactions", body)
	if err != nil {
		return "", err
	}

	id := gjson.GetBytes(raw, "id").String()
	if id == "" {
		return "", fmt.Errorf("%s: response carries no transaction id", op)
	}
	return id, nil
}

func (c *Client) LatestSealedBlock(ctx context.Context) (Block, error) {
	const op = "flow.LatestSealedBlock"

	raw, err := c.do(ctx, op, http.MethodGet, "/v1/blocks?height=sealed", nil)
	if err != nil {
		return Block{}, err
	}

	header := gjson.GetBytes(raw, "0.header")
	if !header.Exists() {
		return Block{}, fmt.Errorf("%s: empty block list", op)
	}

	ts, _ := time.Parse(time.RFC3339Nano, header.Get("timestamp").String())
	return Block{
		ID:        header.Get("id").String(),
		Height:    header.Get("height").Uint(),
		Timestamp: ts,
	}, nil
}

// Account looks up an address; the access node answers 404 for unknown accounts.
func (c *Client) Account(ctx context.Context, address string) (Account, error) {
	const op = "flow.Account"

	raw, err := c.do(ctx, op, http.MethodGet, "/v1/accounts/"+url.PathEscape(stripHex(address)), nil)
	if err != nil {
		return Account{}, err
	}

	parsed := gjson.ParseBytes(raw)
	// balance is reported in 1e-8 FLOW units
	balance := decimal.New(parsed.Get("balance").Int(), -8)
	return Account{
		Address: "0x" + stripHex(parsed.Get("address").String()),
		Balance: balance,
	}, nil
}
