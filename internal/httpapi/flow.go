package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/jlynch25/kaizen_api/internal/flow"
	"github.com/jlynch25/kaizen_api/internal/lib/apperr"
	"github.com/jlynch25/kaizen_api/internal/wallet"
)

const (
	MsgInvalidEventID    = "Invalid event id"
	MsgChainEventMissing = "Event not found on chain"

	socketWriteWait = 10 * time.Second
)

type flowConfigResponse struct {
	flow.Network
	WalletConnectProjectID string `json:"walletConnectProjectId,omitempty"`
}

type balanceResponse struct {
	Address    string `json:"address"`
	Balance    string `json:"balance"`
	AccountURL string `json:"accountUrl,omitempty"`
}

type submitResponse struct {
	TransactionID string `json:"transactionId"`
	ExplorerURL   string `json:"explorerUrl,omitempty"`
}

func (s *Server) flowConfig(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, flowConfigResponse{
		Network:                s.chain.Network(),
		WalletConnectProjectID: s.cfg.WalletConnectProjectID,
	})
}

func (s *Server) flowBalance(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	balance, err := s.chain.FlowBalance(r.Context(), address)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, balanceResponse{
		Address:    strings.ToLower(address),
		Balance:    flow.FormatAmount(balance),
		AccountURL: flow.FlowScanURL(s.chain.Network(), strings.ToLower(address), ""),
	})
}

func (s *Server) flowNFTs(w http.ResponseWriter, r *http.Request) {
	nfts, err := s.chain.NFTs(r.Context(), mux.Vars(r)["address"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, nfts)
}

func (s *Server) chainEvents(w http.ResponseWriter, r *http.Request) {
	list, err := s.chain.Events(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func chainEventID(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return 0, apperr.Validation(MsgInvalidEventID)
	}
	return id, nil
}

func (s *Server) chainEvent(w http.ResponseWriter, r *http.Request) {
	id, err := chainEventID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	event, ok, err := s.chain.EventInfo(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !ok {
		s.writeError(w, r, apperr.NotFound(MsgChainEventMissing))
		return
	}
	s.writeJSON(w, http.StatusOK, event)
}

func (s *Server) hasJoined(w http.ResponseWriter, r *http.Request) {
	id, err := chainEventID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	joined, err := s.chain.HasJoined(r.Context(), id, mux.Vars(r)["address"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"joined": joined})
}

func (s *Server) buildTransaction(w http.ResponseWriter, r *http.Request) {
	var params flow.TxParams
	if err := s.decode(w, r, &params, msgInvalidBody); err != nil {
		s.writeError(w, r, err)
		return
	}

	tx, err := s.chain.BuildTransaction(flow.TxKind(mux.Vars(r)["kind"]), params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tx)
}

func (s *Server) submitTransaction(w http.ResponseWriter, r *http.Request) {
	var tx flow.SignedTransaction
	if err := s.decode(w, r, &tx, "Signed transaction is incomplete"); err != nil {
		s.writeError(w, r, err)
		return
	}

	id, err := s.chain.Submit(r.Context(), tx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, submitResponse{
		TransactionID: id,
		ExplorerURL:   flow.FlowScanURL(s.chain.Network(), "", id),
	})
}

// transactionResult returns the current result; ?wait=sealed blocks until the
// transaction is final or the client goes away.
func (s *Server) transactionResult(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var (
		res flow.TxResult
		err error
	)
	if r.URL.Query().Get("wait") == "sealed" {
		res, err = s.chain.WaitSealed(r.Context(), id)
	} else {
		res, err = s.chain.Result(r.Context(), id)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) transactionStream(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	s.stream(w, r, func(ctx context.Context, send func(interface{}) error) error {
		var sendErr error
		_, err := s.chain.Watch(ctx, id, func(res flow.TxResult) {
			if sendErr == nil {
				sendErr = send(res)
			}
		})
		if sendErr != nil {
			return sendErr
		}
		return err
	})
}

// walletStream pushes the watch-only wallet state of an address: connecting,
// connected with its balance, then every balance refresh.
func (s *Server) walletStream(w http.ResponseWriter, r *http.Request) {
	address := strings.ToLower(mux.Vars(r)["address"])
	if !flow.IsValidAddress(address) {
		s.writeError(w, r, apperr.Validation(flow.MsgInvalidAddress))
		return
	}

	s.stream(w, r, func(ctx context.Context, send func(interface{}) error) error {
		session := wallet.NewSession(s.log, wallet.NewWatchProvider(address, s.chain), s.chain)
		states, unsubscribe := session.Subscribe()
		defer unsubscribe()

		if err := session.Connect(ctx); err != nil {
			return send(session.State())
		}
		go session.Poll(ctx, s.cfg.PollInterval)

		for {
			select {
			case <-ctx.Done():
				return nil
			case st, ok := <-states:
				if !ok {
					return nil
				}
				if err := send(st); err != nil {
					return err
				}
			}
		}
	})
}

// stream upgrades to a websocket and runs fn until it returns or the peer
// disconnects. Errors close the socket with their caller-facing message.
func (s *Server) stream(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, send func(interface{}) error) error) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied
		s.log.WithError(err).WithField("path", r.URL.Path).Debug("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// reads only serve to notice the peer going away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	send := func(v interface{}) error {
		_ = conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
		return conn.WriteJSON(v)
	}

	code, reason := websocket.CloseNormalClosure, ""
	if err := fn(ctx, send); err != nil && ctx.Err() == nil {
		code, reason = websocket.CloseInternalServerErr, apperr.Message(err)
		if apperr.Status(err) < http.StatusInternalServerError {
			code = websocket.ClosePolicyViolation
		}
		s.log.WithError(err).WithField("path", r.URL.Path).Warn("stream ended with error")
	}
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(socketWriteWait))
}
