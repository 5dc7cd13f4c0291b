package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-relay/internal/app"
	"github.com/vovakirdan/wirechat-relay/internal/auth"
	"github.com/vovakirdan/wirechat-relay/internal/config"
	"github.com/vovakirdan/wirechat-relay/internal/log"
)

const (
	exitUsage          = 1
	exitCommunications = 2

	minPort = 1024
	maxPort = 65535

	usageMessage = "Usage: server authfile [port]"
	commsMessage = "Communications error"
)

var (
	errUsage          = errors.New("usage")
	errCommunications = errors.New("communications")
)

type serverFlags struct {
	configPath   string
	logLevel     string
	adminAddr    string
	databasePath string
	overrides    config.Config
}

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

// run executes the server command and maps its outcome to an exit code.
func run(args []string, stderr io.Writer) int {
	cmd := newRootCmd(stderr)
	cmd.SetArgs(args)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errCommunications):
		fmt.Fprintln(stderr, commsMessage)
		return exitCommunications
	default:
		fmt.Fprintln(stderr, usageMessage)
		return exitUsage
	}
}

func newRootCmd(stderr io.Writer) *cobra.Command {
	var flags serverFlags

	cmd := &cobra.Command{
		Use:           "server authfile [port]",
		Short:         "Run the line chat relay",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), args, flags, stderr)
		},
	}
	cmd.Flags().StringVar(&flags.configPath, "config", "", "YAML config file (created with defaults if missing)")
	cmd.Flags().StringVar(&flags.overrides.LogLevel, "log-level", "", "log level: debug, info, warn, error, off")
	cmd.Flags().StringVar(&flags.overrides.AdminAddr, "admin-addr", "", "serve the admin HTTP API and WebSocket bridge on this address")
	cmd.Flags().StringVar(&flags.overrides.DatabasePath, "database-path", "", "SQLite session ledger path")
	cmd.Flags().DurationVar(&flags.overrides.WriteTimeout, "write-timeout", 0, "per-line write deadline")
	cmd.Flags().DurationVar(&flags.overrides.CommandInterval, "command-interval", 0, "pause after each chat command")
	return cmd
}

func serve(ctx context.Context, args []string, flags serverFlags, stderr io.Writer) error {
	if len(args) < 1 || len(args) > 2 {
		return errUsage
	}
	secret, err := auth.LoadServerSecret(args[0])
	if err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}

	bootLogger := log.New("warn", stderr)
	cfg, _, err := config.Load(bootLogger, flags.configPath)
	if err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	cfg.UpdateFrom(flags.overrides)
	cfg.AuthFile = args[0]

	if len(args) == 2 {
		port, err := strconv.Atoi(args[1])
		if err != nil || port < minPort || port > maxPort {
			return fmt.Errorf("%w: port %q out of range", errCommunications, args[1])
		}
		cfg.Port = port
	}

	logger := log.New(cfg.LogLevel, stderr)

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	hangups := make(chan os.Signal, 1)
	signal.Notify(hangups, syscall.SIGHUP)
	defer signal.Stop(hangups)

	a, err := app.New(cfg, secret, logger, app.Options{
		Transcript:  os.Stdout,
		Diagnostics: stderr,
		Signals:     hangups,
	})
	if err != nil {
		logger.Error().Err(err).Msg("startup failed")
		return fmt.Errorf("%w: %w", errCommunications, err)
	}

	fmt.Fprintln(stderr, a.Port())
	if addr := a.AdminAddr(); addr != "" {
		logger.Info().Str("addr", addr).Msg("admin api enabled")
	}

	if err := a.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		return fmt.Errorf("%w: %w", errCommunications, err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
