// Package httpapi is the REST and websocket surface of the API.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/jlynch25/kaizen_api/internal/flow"
	"github.com/jlynch25/kaizen_api/internal/lib/jwt"
	"github.com/jlynch25/kaizen_api/internal/metrics"
	"github.com/jlynch25/kaizen_api/internal/services/events"
	"github.com/jlynch25/kaizen_api/internal/services/tickets"
	"github.com/jlynch25/kaizen_api/internal/services/users"
	model "github.com/jlynch25/kaizen_api/models"
)

const (
	maxJSONBytes = 1 << 20

	defaultPollInterval = 2500 * time.Millisecond
)

type Authenticator interface {
	Register(ctx context.Context, username, email, password string) (model.User, error)
	Login(ctx context.Context, email, password string) (string, error)
	Verify(token string) (*jwt.Claims, error)
	Me(ctx context.Context, id string) (model.User, error)
}

type UserService interface {
	Create(ctx context.Context, username, email, password string) (model.User, error)
	List(ctx context.Context) ([]model.User, error)
	Get(ctx context.Context, id string) (model.User, error)
	Update(ctx context.Context, callerID, id string, patch users.Patch) (model.User, error)
	Delete(ctx context.Context, callerID, id string) error
	SetImage(ctx context.Context, callerID, id, url string) (model.User, error)
	SetWallet(ctx context.Context, callerID, id, address string) (model.User, error)
	ClearWallet(ctx context.Context, callerID, id string) (model.User, error)
}

type EventService interface {
	RequireOwner() bool
	Create(ctx context.Context, in events.CreateInput) (model.Event, error)
	List(ctx context.Context, category, day string) ([]model.Event, error)
	Search(ctx context.Context, query string) ([]model.Event, error)
	Get(ctx context.Context, id string) (model.Event, error)
	Update(ctx context.Context, callerID, id string, in events.UpdateInput) (model.Event, error)
	Delete(ctx context.Context, callerID, id string) error
	SetImage(ctx context.Context, callerID, id, url string) (model.Event, error)
}

type TicketService interface {
	Record(ctx context.Context, callerID, eventID string, in tickets.RecordInput) (model.Ticket, error)
	ForUser(ctx context.Context, userID string) ([]model.Ticket, error)
}

// Chain is the read and relay surface of the Flow gateway.
type Chain interface {
	Network() flow.Network
	Events(ctx context.Context) ([]flow.ChainEvent, error)
	EventInfo(ctx context.Context, id uint64) (flow.ChainEvent, bool, error)
	HasJoined(ctx context.Context, id uint64, address string) (bool, error)
	NFTs(ctx context.Context, address string) ([]flow.NFT, error)
	FlowBalance(ctx context.Context, address string) (decimal.Decimal, error)
	AccountExists(ctx context.Context, address string) (bool, error)
	BuildTransaction(kind flow.TxKind, p flow.TxParams) (flow.TxRequest, error)
	Submit(ctx context.Context, tx flow.SignedTransaction) (string, error)
	Result(ctx context.Context, id string) (flow.TxResult, error)
	Watch(ctx context.Context, id string, onChange func(flow.TxResult)) (flow.TxResult, error)
	WaitSealed(ctx context.Context, id string) (flow.TxResult, error)
}

type Config struct {
	UploadDir       string
	MaxUploadBytes  int64
	AllowedOrigins  []string
	AllowedSuffixes []string
	AuthRateLimit   float64
	AuthRateBurst   int
	// PollInterval paces the wallet stream's balance refresh.
	PollInterval           time.Duration
	WalletConnectProjectID string
}

type Services struct {
	Auth    Authenticator
	Users   UserService
	Events  EventService
	Tickets TicketService
	Chain   Chain
	Metrics *metrics.Metrics
}

type Server struct {
	log      *logrus.Logger
	cfg      Config
	auth     Authenticator
	users    UserService
	events   EventService
	tickets  TicketService
	chain    Chain
	metrics  *metrics.Metrics
	validate *validator.Validate
	limiter  *rateLimiter
	cors     *corsPolicy
	upgrader websocket.Upgrader
	handler  http.Handler
}

func New(log *logrus.Logger, cfg Config, svc Services) *Server {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if svc.Metrics == nil {
		svc.Metrics = metrics.New()
	}

	s := &Server{
		log:      log,
		cfg:      cfg,
		auth:     svc.Auth,
		users:    svc.Users,
		events:   svc.Events,
		tickets:  svc.Tickets,
		chain:    svc.Chain,
		metrics:  svc.Metrics,
		validate: validator.New(),
		limiter:  newRateLimiter(cfg.AuthRateLimit, cfg.AuthRateBurst),
		cors:     newCORSPolicy(cfg.AllowedOrigins, cfg.AllowedSuffixes),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkSocketOrigin,
	}

	// recovery -> trace/log -> metrics -> CORS -> routes
	s.handler = s.recoverer(s.traceLog(s.instrument(s.cors.handler(s.routes()))))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(routeLabel)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusNotFound, errorBody{Error: "Not found"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "Method not allowed"})
	})

	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	r.PathPrefix("/uploads/").Handler(http.StripPrefix("/uploads/", s.uploadsHandler())).Methods(http.MethodGet, http.MethodHead)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.health).Methods(http.MethodGet)

	// auth
	api.Handle("/register", s.rateLimited(http.HandlerFunc(s.register))).Methods(http.MethodPost)
	api.Handle("/login", s.rateLimited(http.HandlerFunc(s.login))).Methods(http.MethodPost)

	// users; the static /me paths must precede /{id}
	api.HandleFunc("/users/me", s.requireAuth(s.me)).Methods(http.MethodGet)
	api.HandleFunc("/users/me/tickets", s.requireAuth(s.myTickets)).Methods(http.MethodGet)
	api.HandleFunc("/users", s.requireAuth(s.createUser)).Methods(http.MethodPost)
	api.HandleFunc("/users", s.listUsers).Methods(http.MethodGet)
	api.HandleFunc("/users/{id}", s.getUser).Methods(http.MethodGet)
	api.HandleFunc("/users/{id}", s.requireAuth(s.updateUser)).Methods(http.MethodPut)
	api.HandleFunc("/users/{id}", s.requireAuth(s.deleteUser)).Methods(http.MethodDelete)
	api.HandleFunc("/users/{id}/image", s.requireAuth(s.uploadUserImage)).Methods(http.MethodPost)
	api.HandleFunc("/users/{id}/wallet", s.requireAuth(s.setWallet)).Methods(http.MethodPut)
	api.HandleFunc("/users/{id}/wallet", s.requireAuth(s.clearWallet)).Methods(http.MethodDelete)

	// events
	ownerOnly := s.passThrough
	if s.events.RequireOwner() {
		ownerOnly = s.requireAuth
	}
	api.HandleFunc("/events", s.listEvents).Methods(http.MethodGet)
	api.HandleFunc("/events", s.createEvent).Methods(http.MethodPost)
	api.HandleFunc("/events/search/{query}", s.searchEvents).Methods(http.MethodGet)
	api.HandleFunc("/events/{id}", s.getEvent).Methods(http.MethodGet)
	api.HandleFunc("/events/{id}", ownerOnly(s.updateEvent)).Methods(http.MethodPut)
	api.HandleFunc("/events/{id}", ownerOnly(s.deleteEvent)).Methods(http.MethodDelete)
	api.HandleFunc("/events/{id}/image", s.requireAuth(s.uploadEventImage)).Methods(http.MethodPost)
	api.HandleFunc("/events/{id}/tickets", s.requireAuth(s.recordTicket)).Methods(http.MethodPost)

	// flow
	fl := api.PathPrefix("/flow").Subrouter()
	fl.HandleFunc("/config", s.flowConfig).Methods(http.MethodGet)
	fl.HandleFunc("/accounts/{address}/balance", s.flowBalance).Methods(http.MethodGet)
	fl.HandleFunc("/accounts/{address}/nfts", s.flowNFTs).Methods(http.MethodGet)
	fl.HandleFunc("/accounts/{address}/stream", s.walletStream).Methods(http.MethodGet)
	fl.HandleFunc("/events", s.chainEvents).Methods(http.MethodGet)
	fl.HandleFunc("/events/{id}", s.chainEvent).Methods(http.MethodGet)
	fl.HandleFunc("/events/{id}/attendees/{address}", s.hasJoined).Methods(http.MethodGet)
	fl.HandleFunc("/transactions/build/{kind}", s.buildTransaction).Methods(http.MethodPost)
	fl.HandleFunc("/transactions", s.submitTransaction).Methods(http.MethodPost)
	fl.HandleFunc("/transactions/{id}", s.transactionResult).Methods(http.MethodGet)
	fl.HandleFunc("/transactions/{id}/stream", s.transactionStream).Methods(http.MethodGet)

	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
