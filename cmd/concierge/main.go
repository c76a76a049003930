package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"concierge/internal/config"
	"concierge/internal/natsbus"
	"concierge/internal/planner"
	"concierge/internal/reasoner"
	"concierge/internal/registry"
	"concierge/internal/router"
	"concierge/internal/scheduler"
	"concierge/internal/session"
	"concierge/internal/store"
	"concierge/internal/telegram"
	"concierge/internal/vault"
	"concierge/internal/web"
	"concierge/internal/worker"
	"concierge/internal/workers"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("concierge %s\n", version)
	case "gateway":
		if err := runGateway(); err != nil {
			slog.Error("gateway failed", "error", err)
			os.Exit(1)
		}
	case "vault":
		if err := runVault(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "backup":
		if err := runBackup(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "restore":
		if err := runRestore(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: concierge <command>\n\nCommands:\n  gateway    Start the concierge gateway service\n  vault      Manage encrypted secrets\n  backup     Archive the data directory\n  restore    Restore a data directory archive\n  version    Print version\n")
}

func runGateway() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("starting concierge gateway", "version", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// SQLite store
	db, err := store.New(cfg.Store)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()
	slog.Info("store initialized", "path", cfg.Store.Path)

	// Embedded NATS
	bus, err := natsbus.New(cfg.NATS)
	if err != nil {
		return fmt.Errorf("init nats: %w", err)
	}
	defer bus.Close()
	slog.Info("nats started", "port", cfg.NATS.Port)

	// Reasoner client for the planner
	llm := reasoner.NewHTTP(cfg.Reasoner)

	// Worker registry
	reg := registry.New()
	reg.RegisterHidden(planner.Name, "Plans and synthesizes multi-step requests", func() (worker.Worker, error) {
		return planner.New(llm, reg), nil
	})
	reg.RegisterHidden(workers.BootstrapName, "Collects identity details for first-time users", func() (worker.Worker, error) {
		return workers.NewOnboarding(db), nil
	})
	reg.Register(workers.BalanceName, "Reports the current account balance", func() (worker.Worker, error) {
		return workers.NewBalance(db), nil
	})
	reg.Register(workers.TransferName, "Sends an amount to another account", func() (worker.Worker, error) {
		return workers.NewTransfer(db), nil
	})
	reg.Register(workers.MessagesName, "Shows recent topic messages", func() (worker.Worker, error) {
		return workers.NewMessages(db), nil
	})

	// Conversation router
	rtr := router.New(reg, cfg.Engine)

	// Session manager
	sessions := session.NewManager(db, rtr)
	if cfg.Vault.Passphrase != "" {
		sessions.SetVault(vault.New(cfg.Vault.Passphrase))
	}

	events, err := natsbus.NewClient(bus)
	if err != nil {
		return fmt.Errorf("init nats client: %w", err)
	}
	defer events.Close()
	sessions.SetEvents(events)

	if err := sessions.StartIPC(events); err != nil {
		return fmt.Errorf("start ipc: %w", err)
	}

	// Scheduler
	sched := scheduler.New(db, sessions, cfg.Scheduler)
	sched.SetEvents(events)
	go sched.Start(ctx)
	slog.Info("scheduler started")

	// Telegram bot
	if cfg.Telegram.Token != "" {
		bot, err := telegram.NewBot(cfg.Telegram, sessions)
		if err != nil {
			return fmt.Errorf("init telegram bot: %w", err)
		}
		go bot.Start(ctx)
		slog.Info("telegram bot started")
	} else {
		slog.Warn("telegram token not set, bot disabled")
	}

	// Web API
	if cfg.Web.Enabled {
		srv := web.NewServer(db, bus, reg, rtr, sessions, cfg.Web, version)
		go func() {
			if err := srv.Start(ctx); err != nil {
				slog.Error("web server error", "error", err)
			}
		}()
		slog.Info("web server started", "port", cfg.Web.Port)
	}

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutting down", "signal", sig)
	cancel()

	return nil
}
