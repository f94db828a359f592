package grpcapp

import (
	"context"
	"fmt"
	"net"
	"runtime/debug"
	"sync"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

const (
	defaultCheckInterval = 10 * time.Second
	pingTimeout          = 3 * time.Second
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// App serves grpc.health.v1 with a status that follows the store.
type App struct {
	log        *logrus.Logger
	gRPCServer *grpc.Server
	health     *health.Server
	pinger     Pinger
	port       int
	interval   time.Duration

	stop     chan struct{}
	stopOnce sync.Once
}

func New(log *logrus.Logger, port int, pinger Pinger, checkInterval time.Duration) *App {
	if checkInterval <= 0 {
		checkInterval = defaultCheckInterval
	}

	loggingOpts := []logging.Option{
		logging.WithLogOnEvents(logging.StartCall, logging.FinishCall),
	}

	recoveryOpts := []recovery.Option{
		recovery.WithRecoveryHandler(func(p interface{}) error {
			log.WithField("panic", p).WithField("stack", string(debug.Stack())).Error("recovered from panic")
			return status.Errorf(codes.Internal, "internal error")
		}),
	}

	gRPCServer := grpc.NewServer(grpc.ChainUnaryInterceptor(
		recovery.UnaryServerInterceptor(recoveryOpts...),
		logging.UnaryServerInterceptor(InterceptorLogger(log), loggingOpts...),
	))

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(gRPCServer, hs)

	return &App{
		log:        log,
		gRPCServer: gRPCServer,
		health:     hs,
		pinger:     pinger,
		port:       port,
		interval:   checkInterval,
		stop:       make(chan struct{}),
	}
}

// InterceptorLogger adapts logrus to the middleware logging interface.
func InterceptorLogger(l logrus.FieldLogger) logging.Logger {
	return logging.LoggerFunc(func(_ context.Context, lvl logging.Level, msg string, fields ...any) {
		f := make(logrus.Fields, len(fields)/2)
		i := logging.Fields(fields).Iterator()
		for i.Next() {
			k, v := i.At()
			f[k] = v
		}
		entry := l.WithFields(f)

		switch lvl {
		case logging.LevelDebug:
			entry.Debug(msg)
		case logging.LevelInfo:
			entry.Info(msg)
		case logging.LevelWarn:
			entry.Warn(msg)
		case logging.LevelError:
			entry.Error(msg)
		default:
			entry.Info(msg)
		}
	})
}

func (a *App) MustRun() {
	if err := a.Run(); err != nil {
		panic(err)
	}
}

func (a *App) Run() error {
	const op = "grpcapp.Run"

	l, err := net.Listen("tcp", fmt.Sprintf(":%d", a.port))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	a.log.WithField("op", op).WithField("addr", l.Addr().String()).Info("grpc server started")

	return a.Serve(l)
}

// Serve blocks serving on l until Stop.
func (a *App) Serve(l net.Listener) error {
	const op = "grpcapp.Serve"

	go a.watch()

	if err := a.gRPCServer.Serve(l); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (a *App) watch() {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		a.check()
		select {
		case <-a.stop:
			return
		case <-ticker.C:
		}
	}
}

// check pings the store once and publishes the result.
func (a *App) check() healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	st := healthpb.HealthCheckResponse_SERVING
	if err := a.pinger.Ping(ctx); err != nil {
		a.log.WithField("op", "grpcapp.check").WithError(err).Warn("store ping failed")
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	a.health.SetServingStatus("", st)
	return st
}

func (a *App) Stop() {
	const op = "grpcapp.Stop"

	a.log.WithField("op", op).WithField("port", a.port).Info("stopping grpc server")

	a.stopOnce.Do(func() {
		close(a.stop)
		a.health.Shutdown()
	})
	a.gRPCServer.GracefulStop()
}
