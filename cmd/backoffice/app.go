package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/hifat/mallow-sale-back-office-sub000/internal/api"
	"github.com/hifat/mallow-sale-back-office-sub000/internal/config"
	"github.com/hifat/mallow-sale-back-office-sub000/internal/console"
	"github.com/hifat/mallow-sale-back-office-sub000/internal/db"
	"github.com/hifat/mallow-sale-back-office-sub000/internal/gateway"
	"github.com/hifat/mallow-sale-back-office-sub000/internal/identity/client"
	"github.com/hifat/mallow-sale-back-office-sub000/internal/security"
	"github.com/hifat/mallow-sale-back-office-sub000/internal/session/domain"
	"github.com/hifat/mallow-sale-back-office-sub000/internal/session/repository"
	"github.com/hifat/mallow-sale-back-office-sub000/internal/session/service"
	"github.com/hifat/mallow-sale-back-office-sub000/internal/telemetry"
	otelsetup "github.com/hifat/mallow-sale-back-office-sub000/internal/telemetry/otel"
)

// app is one wired session stack: store, controller, gateway and API client.
type app struct {
	cfg   *config.Config
	store *repository.Store
	host  *console.Host
	ctrl  *service.Controller
	api   *api.Client
	shell *console.Shell

	closers []func(context.Context) error
}

// newApp wires the stack. Navigation notices go to notices; startRoute is the route the
// host is on before hydration.
func newApp(ctx context.Context, cfg *config.Config, out, notices io.Writer, startRoute string) (*app, error) {
	a := &app{cfg: cfg}

	providers, err := otelsetup.NewProviders(ctx, otelsetup.Settings{
		Endpoint:    cfg.OTLPEndpoint,
		Environment: cfg.Env,
		Insecure:    cfg.OTLPInsecure,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	providers.SetGlobal()
	a.closers = append(a.closers, providers.Shutdown)
	var events telemetry.EventEmitter = otelsetup.NewEventEmitter(providers.LoggerProvider)

	backend, closeBackend, err := openBackend(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	if closeBackend != nil {
		a.closers = append(a.closers, closeBackend)
	}
	a.store = repository.NewStore(backend, cfg.SessionKey)

	httpClient := &http.Client{Timeout: cfg.Timeout()}
	authClient := client.New(cfg.APIBaseURL, httpClient)
	refresher := service.NewRefresher(authClient)

	a.host = console.NewHost(notices, startRoute)
	a.ctrl = service.NewController(a.store, refresher, authClient, a.host, service.Options{
		LandingRoute:        cfg.LandingRoute,
		SignInRoute:         cfg.SignInRoute,
		RefreshInterval:     cfg.RefreshEvery(),
		InactivityThreshold: cfg.IdleAfter(),
		Events:              events,
	})
	a.host.Bind(a.ctrl)

	gw := gateway.New(a.store, refresher, a.host, gateway.Options{
		SignInRoute: cfg.SignInRoute,
		OnTokensRefreshed: func(ctx context.Context, _ domain.Tokens) {
			a.ctrl.Resync(ctx)
		},
		Events: events,
	})
	a.api, err = api.New(cfg.APIBaseURL, &http.Client{Transport: gw, Timeout: cfg.Timeout()})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.shell = console.NewShell(a.host, a.ctrl, a.api, out)

	a.ctrl.SetRoute(startRoute)
	a.ctrl.Hydrate(ctx)
	return a, nil
}

// Close stops the refresh loop and releases the backend and telemetry providers.
func (a *app) Close() {
	if a.ctrl != nil {
		a.ctrl.Stop()
	}
	ctx := context.Background()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			log.Printf("backoffice: close: %v", err)
		}
	}
}

// openBackend selects the snapshot backend from config. The returned close func may be nil.
func openBackend(ctx context.Context, cfg *config.Config) (repository.Backend, func(context.Context) error, error) {
	switch cfg.SessionStore {
	case config.StoreMemory:
		return repository.NewMemoryBackend(), nil, nil
	case config.StorePostgres:
		sqlDB, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("session store: %w", err)
		}
		return repository.NewPostgresBackend(sqlDB), func(context.Context) error { return sqlDB.Close() }, nil
	default:
		var cipher repository.Cipher
		if cfg.SessionEncryptionKey != "" {
			pass, err := security.LoadSecret(cfg.SessionEncryptionKey)
			if err != nil {
				return nil, nil, fmt.Errorf("session encryption key: %w", err)
			}
			sealer, err := security.NewSealer(pass)
			if err != nil {
				return nil, nil, fmt.Errorf("session encryption key: %w", err)
			}
			cipher = sealer
		}
		return repository.NewOSFileBackend(cfg.SessionDir, cipher), nil, nil
	}
}

// configureLogging sends the standard logger to a rotating file when LOG_FILE is set, so
// stdout and stderr stay free for the user.
func configureLogging(cfg *config.Config) io.Closer {
	if cfg.LogFile == "" {
		log.SetOutput(os.Stderr)
		return nil
	}
	lj := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
	log.SetOutput(lj)
	return lj
}
