package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/tensor-server/internal/app"
	"github.com/vovakirdan/tensor-server/internal/auth"
	"github.com/vovakirdan/tensor-server/internal/config"
	applog "github.com/vovakirdan/tensor-server/internal/log"
	"github.com/vovakirdan/tensor-server/internal/store/sqlite"
)

type rootOptions struct {
	configPath string
	overrides  config.Config
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "tensor-server",
		Short:         "Real-time chat relay",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to config.yaml")
	flags.StringVar(&opts.overrides.LogLevel, "log-level", "", "log level (trace, debug, info, warn, error, off)")
	flags.StringVar(&opts.overrides.DatabasePath, "db", "", "SQLite database path")

	root.AddCommand(newServeCmd(opts), newRegisterCmd(opts), newRotateTokenCmd(opts))
	return root
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the WebSocket and HTTP gateways",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.overrides.Host, "host", "", "listen host")
	flags.IntVar(&opts.overrides.WSPort, "ws-port", 0, "WebSocket gateway port")
	flags.IntVar(&opts.overrides.HTTPPort, "http-port", 0, "HTTP listing gateway port")
	flags.DurationVar(&opts.overrides.ShutdownTimeout, "shutdown-timeout", 0, "graceful shutdown timeout")
	return cmd
}

func newRegisterCmd(opts *rootOptions) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new client and write its connection file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(opts)
			if err != nil {
				return err
			}
			svc, closeStore, err := openAuth(cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			client, token, err := svc.Register(cmd.Context(), name)
			if err != nil {
				return fmt.Errorf("register %q: %w", name, err)
			}

			path, err := auth.WriteExport(cfg.ExportPath, client.Username, auth.ClientExport{
				ServerIP:            cfg.Host,
				WebSocketServerPort: cfg.WSPort,
				HTTPServerPort:      cfg.HTTPPort,
				ServerName:          cfg.ServerName,
				ClientToken:         token,
			})
			if err != nil {
				return err
			}

			logger.Info().Str("uuid", client.UUID).Str("username", client.Username).Str("export", path).Msg("client registered")
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "username of the new client")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newRotateTokenCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rotate-token <uuid>",
		Short: "Issue a new token for a client and rewrite its connection file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(opts)
			if err != nil {
				return err
			}
			svc, closeStore, err := openAuth(cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			client, token, err := svc.RotateToken(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("rotate token for %s: %w", args[0], err)
			}

			path, err := auth.WriteExport(cfg.ExportPath, client.Username, auth.ClientExport{
				ServerIP:            cfg.Host,
				WebSocketServerPort: cfg.WSPort,
				HTTPServerPort:      cfg.HTTPPort,
				ServerName:          cfg.ServerName,
				ClientToken:         token,
			})
			if err != nil {
				return err
			}

			logger.Info().Str("uuid", client.UUID).Str("export", path).Msg("token rotated")
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func loadConfig(opts *rootOptions) (config.Config, *zerolog.Logger, error) {
	bootstrap := applog.New(firstNonEmpty(opts.overrides.LogLevel, "info"))

	cfg, path, err := config.Load(bootstrap, opts.configPath)
	if err != nil {
		return cfg, bootstrap, err
	}
	cfg.UpdateFrom(opts.overrides)
	if err := cfg.Validate(); err != nil {
		return cfg, bootstrap, err
	}

	logger := applog.New(cfg.LogLevel)
	logger.Debug().Str("config", path).Msg("configuration loaded")
	return cfg, logger, nil
}

func openAuth(cfg config.Config) (*auth.Service, func(), error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	return auth.NewService(st), func() { st.Close() }, nil
}

func runServe(parent context.Context, opts *rootOptions) error {
	cfg, logger, err := loadConfig(opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(&cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to start")
		return err
	}

	logger.Info().
		Str("server", cfg.ServerName).
		Str("ws_addr", cfg.WSAddr()).
		Str("http_addr", cfg.HTTPAddr()).
		Msg("starting tensor server")
	if err := application.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
