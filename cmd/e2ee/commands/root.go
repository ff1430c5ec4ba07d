package commands

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/NitinDabar/e2ee-chat/internal/app"
)

var (
	cfg    app.Config
	appCtx *app.App
)

// Execute runs the CLI with ctx as the base context for every command.
func Execute(ctx context.Context) error {
	return run(ctx, NewRoot())
}

// run executes root and closes whatever the pre-run opened, even when the
// command failed.
func run(ctx context.Context, root *cobra.Command) error {
	appCtx = nil
	err := root.ExecuteContext(ctx)
	if appCtx != nil {
		err = errors.Join(err, appCtx.Close())
		appCtx = nil
	}
	return err
}

// NewRoot builds the command tree with defaults taken from the environment.
func NewRoot() *cobra.Command {
	cfg = app.LoadConfig()

	root := &cobra.Command{
		Use:           "e2ee",
		Short:         "End-to-end encrypted chat CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfg.StoreBackend != app.BackendMemory && cfg.StoreBackend != app.BackendRedis {
				if err := os.MkdirAll(cfg.Home, 0o700); err != nil {
					return err
				}
			}
			log := app.NewLogger(cfg, cmd.ErrOrStderr())
			w, err := app.NewWire(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			appCtx = app.New(w)
			return nil
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&cfg.Home, "home", cfg.Home, "state dir (E2EE_HOME)")
	f.StringVar(&cfg.DeviceID, "device", cfg.DeviceID, "this device's id on the relay (E2EE_DEVICE)")
	f.StringVarP(&cfg.Passphrase, "passphrase", "p", cfg.Passphrase, "passphrase protecting stored state (E2EE_PASSPHRASE)")
	f.StringVar(&cfg.RelayURL, "relay", cfg.RelayURL, "relay base URL (E2EE_RELAY_URL)")
	f.StringVar(&cfg.StoreBackend, "store", cfg.StoreBackend, "store backend: file, sqlite, redis, ekv or memory (E2EE_STORE)")
	f.StringVar(&cfg.SQLitePath, "sqlite-path", cfg.SQLitePath, "sqlite database path (E2EE_SQLITE_PATH)")
	f.StringVar(&cfg.RedisURL, "redis-url", cfg.RedisURL, "redis URL (E2EE_REDIS_URL)")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (E2EE_LOG_LEVEL)")

	root.AddCommand(
		initCmd(),
		fingerprintCmd(),
		bundleCmd(),
		rotateCmd(),
		registerCmd(),
		startSessionCmd(),
		sendCmd(),
		recvCmd(),
		historyCmd(),
		conversationsCmd(),
		safetyNumberCmd(),
		verifyCmd(),
	)
	return root
}
