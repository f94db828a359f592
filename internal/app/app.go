package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	grpcapp "github.com/jlynch25/kaizen_api/internal/app/grpc"
	"github.com/jlynch25/kaizen_api/internal/config"
	"github.com/jlynch25/kaizen_api/internal/flow"
	"github.com/jlynch25/kaizen_api/internal/httpapi"
	"github.com/jlynch25/kaizen_api/internal/metrics"
	"github.com/jlynch25/kaizen_api/internal/services/auth"
	"github.com/jlynch25/kaizen_api/internal/services/events"
	"github.com/jlynch25/kaizen_api/internal/services/tickets"
	"github.com/jlynch25/kaizen_api/internal/services/users"
	"github.com/jlynch25/kaizen_api/internal/storage/cache"
	"github.com/jlynch25/kaizen_api/internal/storage/memory"
	"github.com/jlynch25/kaizen_api/internal/storage/mongo"
	"github.com/jlynch25/kaizen_api/internal/storage/postgres"
)

const (
	connectTimeout    = 15 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// Store is everything the services need from a storage backend.
type Store interface {
	auth.UserSaver
	auth.UserProvider
	users.UserStore
	events.EventStore
	tickets.TicketStore

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

type App struct {
	log        *logrus.Logger
	HTTPServer *http.Server
	GRPCServer *grpcapp.App
	Store      Store
	Auth       *auth.Auth

	redis *cache.Redis
}

// New connects the configured backends and wires every service.
func New(ctx context.Context, log *logrus.Logger, cfg *config.Config) (*App, error) {
	const op = "app.New"

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	store, err := OpenStore(ctx, log, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a := &App{log: log, Store: store}

	var chainCache cache.Cache = cache.Nop{}
	if cfg.RedisURL != "" {
		r, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			_ = store.Close(context.Background())
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		a.redis = r
		chainCache = r
	}

	m := metrics.New()

	gateway, err := newGateway(log, cfg, chainCache, m)
	if err != nil {
		a.closeBackends(context.Background())
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	authService := auth.New(log, store, store, cfg.JWTSecret, cfg.TokenTTL, m.FailedLogins())
	a.Auth = authService

	api := httpapi.New(log, httpapi.Config{
		UploadDir:              cfg.UploadDir,
		MaxUploadBytes:         cfg.MaxUploadBytes,
		AllowedOrigins:         cfg.AllowedOrigins(),
		AllowedSuffixes:        cfg.AllowedSuffixes(),
		AuthRateLimit:          cfg.AuthRateLimit,
		AuthRateBurst:          cfg.AuthRateBurst,
		PollInterval:           cfg.Flow.PollInterval,
		WalletConnectProjectID: cfg.Flow.WalletConnectProjectID,
	}, httpapi.Services{
		Auth:    authService,
		Users:   users.New(log, authService, store),
		Events:  events.New(log, store, cfg.EventRequireOwner),
		Tickets: tickets.New(log, store, store, gateway),
		Chain:   gateway,
		Metrics: m,
	})

	a.HTTPServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           api,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	if cfg.GRPCPort > 0 {
		a.GRPCServer = grpcapp.New(log, cfg.GRPCPort, store, 0)
	}

	return a, nil
}

// OpenStore connects the backend selected by STORAGE_DRIVER.
func OpenStore(ctx context.Context, log *logrus.Logger, cfg *config.Config) (Store, error) {
	const op = "app.OpenStore"

	log.WithField("op", op).WithField("driver", cfg.StorageDriver).Info("connecting storage")

	switch cfg.StorageDriver {
	case config.DriverMongo:
		s, err := mongo.Connect(ctx, cfg.StorageURL(), cfg.DBName)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err := s.EnsureIndexes(ctx); err != nil {
			_ = s.Close(context.Background())
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return s, nil
	case config.DriverPostgres:
		s, err := postgres.Connect(ctx, cfg.StorageURL())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return s, nil
	case config.DriverMemory:
		log.WithField("op", op).Warn("using in-memory storage, data is lost on exit")
		return memory.New(), nil
	}
	return nil, fmt.Errorf("%s: unknown driver %q", op, cfg.StorageDriver)
}

func newGateway(log *logrus.Logger, cfg *config.Config, c cache.Cache, m *metrics.Metrics) (*flow.Gateway, error) {
	network, err := flow.LookupNetwork(cfg.Flow.Network, flow.Overrides{
		AccessNode:      cfg.Flow.AccessNode,
		WalletDiscovery: cfg.Flow.WalletDiscovery,
		KaizenEvent:     cfg.Flow.EventContract,
		KaizenEventNFT:  cfg.Flow.NFTContract,
	})
	if err != nil {
		return nil, err
	}

	client, err := flow.NewClient(flow.Config{
		URL:     network.AccessNode,
		Observe: m.ObserveFlowRequest,
	})
	if err != nil {
		return nil, err
	}

	return flow.NewGateway(log, client, flow.GatewayConfig{
		Network:      network,
		Cache:        c,
		CacheTTL:     cfg.ChainCacheTTL,
		PollInterval: cfg.Flow.PollInterval,
	})
}

func (a *App) MustRun() {
	if err := a.Run(); err != nil {
		panic(err)
	}
}

// Run serves HTTP (and gRPC when enabled) until Stop.
func (a *App) Run() error {
	const op = "app.Run"

	if a.GRPCServer != nil {
		go a.GRPCServer.MustRun()
	}

	a.log.WithField("op", op).WithField("addr", a.HTTPServer.Addr).Info("http server started")

	if err := a.HTTPServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Stop drains HTTP within ctx, then stops gRPC and closes the backends.
func (a *App) Stop(ctx context.Context) error {
	const op = "app.Stop"

	a.log.WithField("op", op).Info("stopping application")

	var errs []error
	if err := a.HTTPServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if a.GRPCServer != nil {
		a.GRPCServer.Stop()
	}
	if err := a.closeBackends(ctx); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (a *App) closeBackends(ctx context.Context) error {
	var errs []error
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if err := a.Store.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("store close: %w", err))
	}
	return errors.Join(errs...)
}
