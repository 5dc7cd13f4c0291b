package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	stdhttp "net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/wirechat-relay/internal/auth"
	"github.com/vovakirdan/wirechat-relay/internal/config"
	"github.com/vovakirdan/wirechat-relay/internal/core"
	"github.com/vovakirdan/wirechat-relay/internal/store"
	"github.com/vovakirdan/wirechat-relay/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/wirechat-relay/internal/transport/http"
	"github.com/vovakirdan/wirechat-relay/internal/transport/tcp"
)

// Options carries the process-level plumbing App needs besides config.
type Options struct {
	// Transcript receives the human-readable chat echo. Nil disables it.
	Transcript io.Writer
	// Diagnostics receives the counter report on every Signals delivery.
	Diagnostics io.Writer
	Signals     <-chan os.Signal
}

// App wires together core and transport layers.
type App struct {
	registry *core.Registry
	store    store.Store
	server   *tcp.Server
	listener net.Listener

	admin   *stdhttp.Server
	adminLn net.Listener

	reporter *core.Reporter
	signals  <-chan os.Signal

	shutdownTimeout time.Duration
	log             *zerolog.Logger
}

// New constructs the application and binds its listeners so that bind
// failures surface before Run.
func New(cfg config.Config, secret *auth.Secret, logger *zerolog.Logger, opts Options) (*App, error) {
	st, err := openStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	var regOpts []core.RegistryOption
	if opts.Transcript != nil {
		regOpts = append(regOpts, core.WithTranscript(opts.Transcript))
	}
	reg := core.NewRegistry(regOpts...)

	handler := tcp.NewHandler(reg, tcp.HandlerOptions{
		Secret:          secret,
		Store:           st,
		Logger:          logger,
		QueueSize:       cfg.OutboundQueue,
		WriteTimeout:    cfg.WriteTimeout,
		MaxLine:         cfg.MaxLine,
		CommandInterval: cfg.CommandInterval,
	})

	ln, err := tcp.Listen(cfg.Port)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	a := &App{
		registry:        reg,
		store:           st,
		server:          tcp.NewServer(handler, logger),
		listener:        ln,
		signals:         opts.Signals,
		shutdownTimeout: cfg.ShutdownTimeout,
		log:             logger,
	}
	if opts.Diagnostics != nil {
		a.reporter = core.NewReporter(reg, opts.Diagnostics)
	}

	if cfg.AdminAddr != "" {
		adminLn, err := net.Listen("tcp", cfg.AdminAddr)
		if err != nil {
			_ = ln.Close()
			_ = st.Close()
			return nil, &tcp.CommunicationsError{Op: "listen", Addr: cfg.AdminAddr, Err: err}
		}
		a.adminLn = adminLn
		a.admin = transporthttp.NewServer(transporthttp.Options{
			Addr:     cfg.AdminAddr,
			Registry: reg,
			Store:    st,
			Handler:  handler,
			MaxLine:  cfg.MaxLine,
			Logger:   logger,
		})
	}

	return a, nil
}

func openStore(cfg config.Config, logger *zerolog.Logger) (store.Store, error) {
	if cfg.DatabasePath == "" {
		return store.Nop{}, nil
	}
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("session ledger opened")
	return st, nil
}

// Port returns the bound chat port.
func (a *App) Port() int {
	return tcp.Port(a.listener)
}

// AdminAddr returns the bound admin address, or "" when disabled.
func (a *App) AdminAddr() string {
	if a.adminLn == nil {
		return ""
	}
	return a.adminLn.Addr().String()
}

// Registry exposes the live registry.
func (a *App) Registry() *core.Registry {
	return a.registry
}

// Run serves until ctx is cancelled or a listener fails. Once running, a
// failing connection never stops the server.
func (a *App) Run(ctx context.Context) error {
	defer a.cleanup()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.server.Serve(gctx, a.listener)
	})

	if a.admin != nil {
		a.admin.BaseContext = func(net.Listener) context.Context { return gctx }
		g.Go(func() error {
			a.log.Info().Str("addr", a.adminLn.Addr().String()).Msg("admin server listening")
			if err := a.admin.Serve(a.adminLn); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
				return fmt.Errorf("admin server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
			defer cancel()

			a.log.Info().Msg("shutting down admin server")
			return a.admin.Shutdown(shutdownCtx)
		})
	}

	if a.reporter != nil && a.signals != nil {
		g.Go(func() error {
			return a.reporter.Watch(gctx, a.signals)
		})
	}

	return g.Wait()
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if err := a.store.Close(); err != nil {
		a.log.Warn().Err(err).Msg("failed to close store")
	} else {
		a.log.Debug().Msg("store closed")
	}
}
