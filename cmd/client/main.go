package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-relay/internal/auth"
	"github.com/vovakirdan/wirechat-relay/internal/client"
	"github.com/vovakirdan/wirechat-relay/internal/config"
	"github.com/vovakirdan/wirechat-relay/internal/log"
)

type clientFlags struct {
	configPath string
	overrides  config.ClientConfig
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes the client command and maps its outcome to an exit code.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdin, stdout, stderr)
	cmd.SetArgs(args)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if msg := client.ExitMessage(err); msg != "" {
		fmt.Fprintln(stderr, msg)
	}
	return client.ExitCode(err)
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	var flags clientFlags

	cmd := &cobra.Command{
		Use:           "client name authfile port",
		Short:         "Chat through a line chat relay",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return chat(cmd.Context(), args, flags, stdin, stdout, stderr)
		},
	}
	cmd.Flags().StringVar(&flags.configPath, "config", "", "YAML config file (created with defaults if missing)")
	cmd.Flags().StringVar(&flags.overrides.Host, "host", "", "server host")
	cmd.Flags().StringVar(&flags.overrides.LogLevel, "log-level", "", "log level: debug, info, warn, error, off")
	cmd.Flags().DurationVar(&flags.overrides.LeaveGrace, "leave-grace", 0, "delay before exiting after *LEAVE:")
	return cmd
}

func chat(ctx context.Context, args []string, flags clientFlags, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) != 3 {
		return client.ErrUsage
	}
	credential, err := auth.LoadSecret(args[1])
	if err != nil {
		return fmt.Errorf("%w: %w", client.ErrUsage, err)
	}

	cfg, _, err := config.LoadClient(log.New("warn", stderr), flags.configPath)
	if err != nil {
		return fmt.Errorf("%w: %w", client.ErrUsage, err)
	}
	cfg.UpdateFrom(flags.overrides)
	cfg.Name = args[0]
	cfg.AuthFile = args[1]

	port, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("%w: bad port %q", client.ErrCommunications, args[2])
	}
	cfg.Port = port

	logger := log.New(cfg.LogLevel, stderr)

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := client.Dial(ctx, cfg.Host, cfg.Port)
	if err != nil {
		logger.Debug().Err(err).Msg("connect failed")
		return err
	}

	c := client.New(conn, client.Options{
		Name:       cfg.Name,
		Credential: credential,
		Terminal:   stdin,
		Output:     stdout,
		LeaveGrace: cfg.LeaveGrace,
		Logger:     logger,
	})
	err = c.Run(ctx)
	if err != nil {
		logger.Debug().Err(err).Msg("session ended")
	}
	return err
}
