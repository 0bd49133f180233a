package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/pedroavv1914/zappi-chatbot/internal/chat"
	"github.com/pedroavv1914/zappi-chatbot/internal/dashboard"
	"github.com/pedroavv1914/zappi-chatbot/internal/db"
	"github.com/pedroavv1914/zappi-chatbot/internal/metrics"
	"github.com/pedroavv1914/zappi-chatbot/internal/store"
	"github.com/pedroavv1914/zappi-chatbot/internal/tenant"
	"github.com/spf13/cobra"
)

func newStartCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start one bot per establishment and the status page",
		Long: `Discovers every establishment under establishments_dir, starts a chat
agent for each one and serves the status page. Establishments whose menu or
tenant.yaml fail to load are reported and skipped. Runs until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runStart(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Zappi config file")
	return cmd
}

func runStart(ctx context.Context, in io.Reader, out io.Writer, configPath string) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	defer db.Close(gormDB)
	fmt.Fprintf(out, "Connected to %s database\n", cfg.Database.Driver)

	st, err := store.New(store.Opts{DB: gormDB, Cooldown: cfg.Cooldown()})
	if err != nil {
		return err
	}

	registry := chat.NewRegistry()
	supervisor, err := chat.NewSupervisor(chat.SupervisorOpts{
		Registry:     registry,
		RestartDelay: cfg.RestartDelay(),
		MaxRestarts:  cfg.Supervisor.MaxRestarts,
		Out:          out,
	})
	if err != nil {
		return err
	}

	tenants, err := tenant.Discover(cfg.EstablishmentsDir)
	if err != nil {
		return err
	}
	if len(tenants) == 0 {
		fmt.Fprintf(out, "No establishments found in %s\n", cfg.EstablishmentsDir)
	}

	sweeper, err := store.StartSweeper(ctx, st.Cooldowns, cfg.SweepCron(), out)
	if err != nil {
		return err
	}
	defer sweeper.Stop()

	m := metrics.New()
	deps := agentDeps{cfg: cfg, store: st, metrics: m, in: in, out: out}

	var wg sync.WaitGroup
	for _, t := range tenants {
		if t.Err != nil {
			registry.MarkFailed(t.Name, t.DisplayName, t.Err)
			fmt.Fprintf(out, "[%s] Not started: %v\n", t.Name, t.Err)
			continue
		}
		fmt.Fprintf(out, "[%s] Starting %s agent for %q (%d items)\n",
			t.Name, t.Transport.Platform, t.DisplayName, t.Catalog.Len())

		wg.Add(1)
		go func(t tenant.Tenant) {
			defer wg.Done()
			if err := supervisor.Run(ctx, t.Name, t.DisplayName, agentFactory(t, deps)); err != nil {
				log.Printf("zappi: %s: agent stopped: %v", t.Name, err)
				fmt.Fprintf(out, "[%s] Stopped: %v\n", t.Name, err)
			}
		}(t)
	}

	if cfg.DashboardEnabled() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := dashboard.Start(ctx, dashboard.StartOpts{
				Registry: registry,
				Metrics:  m.Handler(),
				Port:     cfg.Dashboard.Port,
				Out:      out,
			})
			if err != nil {
				log.Printf("zappi: dashboard: %v", err)
			}
		}()
	}

	<-ctx.Done()
	fmt.Fprintln(out, "\nShutting down...")
	wg.Wait()
	return nil
}
