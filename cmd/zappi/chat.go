package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/pedroavv1914/zappi-chatbot/internal/chat/console"
	"github.com/pedroavv1914/zappi-chatbot/internal/config"
	"github.com/pedroavv1914/zappi-chatbot/internal/db"
	"github.com/pedroavv1914/zappi-chatbot/internal/store"
	"github.com/pedroavv1914/zappi-chatbot/internal/tenant"
	"github.com/spf13/cobra"
)

func newChatCmd() *cobra.Command {
	var (
		configPath string
		sender     string
	)

	cmd := &cobra.Command{
		Use:   "chat <tenant>",
		Short: "Talk to an establishment's bot from this terminal",
		Long: `Runs the named establishment's bot over standard input and output. Sessions,
cooldowns and orders are written to the configured database exactly as for a
chat platform, under the --as identity. The tenant's platform setting is ignored.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()
			return runChat(ctx, cmd, configPath, args[0], sender)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Zappi config file")
	cmd.Flags().StringVar(&sender, "as", console.DefaultSender, "customer identity to chat as")
	return cmd
}

func runChat(ctx context.Context, cmd *cobra.Command, configPath, name, sender string) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	defer db.Close(gormDB)

	t, err := tenant.Lookup(cfg.EstablishmentsDir, name)
	if err != nil {
		return err
	}
	if t.Catalog == nil {
		return fmt.Errorf("load %s: %w", name, t.Err)
	}

	st, err := store.New(store.Opts{DB: gormDB, Cooldown: cfg.Cooldown()})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Chatting with %q as %q (%s). Ctrl-D to quit.\n",
		t.DisplayName, sender, databaseSummary(cfg))

	adapter := console.New(console.AdapterOpts{In: cmd.InOrStdin(), Out: cmd.OutOrStdout(), Sender: sender})
	agent, err := newAgent(t, adapter, agentDeps{cfg: cfg, store: st, out: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	return agent.Run(ctx)
}

// databaseSummary names the database a local chat session writes to.
func databaseSummary(cfg *config.Config) string {
	if cfg.Database.Driver == config.DriverSQLite {
		return fmt.Sprintf("sqlite %s", cfg.Database.Path)
	}
	return fmt.Sprintf("mysql %s:%d/%s", cfg.Database.Host, cfg.Database.Port, cfg.Database.Name)
}
