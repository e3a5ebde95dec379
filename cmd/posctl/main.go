package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dwikikusuma/pos-checkout/pkg/config"
	"github.com/dwikikusuma/pos-checkout/pkg/database"
	"github.com/dwikikusuma/pos-checkout/pkg/logger"
	"github.com/dwikikusuma/pos-checkout/pkg/shutdown"
)

var Version = "dev"

// env is what every subcommand needs: the loaded config, a logger and an
// open database.
type env struct {
	cfg config.Config
	log *slog.Logger
	db  *sql.DB
}

func (e *env) close() { e.db.Close() }

type opener func(cmd *cobra.Command) (*env, error)

type migrator interface {
	Migrate(ctx context.Context) error
}

func main() {
	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		cancel()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "posctl",
		Short:         "Operate the local POS checkout store",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("POS_CONFIG"), "config file")

	open := func(cmd *cobra.Command) (*env, error) {
		cfg, err := config.LoadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		log := logger.New(logger.Options{Service: "posctl", Env: cfg.AppEnv, Level: cfg.LogLevel, Output: cmd.ErrOrStderr()})
		db, err := database.Open(cfg.DB)
		if err != nil {
			return nil, err
		}
		return &env{cfg: cfg, log: log, db: db}, nil
	}

	rootCmd.AddCommand(catalogCmd(open))
	rootCmd.AddCommand(queueCmd(open))
	rootCmd.AddCommand(ordersCmd(open))
	rootCmd.AddCommand(stateCmd(open))
	return rootCmd
}

func migrate(ctx context.Context, repos ...migrator) error {
	for _, r := range repos {
		if err := r.Migrate(ctx); err != nil {
			return err
		}
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
