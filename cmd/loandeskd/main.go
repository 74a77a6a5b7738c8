package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"loan-desk-backend/config"
	"loan-desk-backend/internal/app"
	"loan-desk-backend/internal/notification"
	"loan-desk-backend/internal/roster"
)

// CLI is the command line of the loan desk daemon.
type CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"config.yaml" env:"CONFIG_PATH"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Serve  ServeCmd  `cmd:"" default:"1" help:"Run the HTTP API and the background tasks"`
	Scan   ScanCmd   `cmd:"" help:"Recompute loan statuses and create due notifications once"`
	Roster RosterCmd `cmd:"" help:"Synchronise the user roster spreadsheet once"`
}

// AfterApply runs after flag parsing; setup logging once.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

func (c *CLI) load() (*app.App, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", c.Config, err)
	}
	slog.Info("Configuration loaded", slog.String("path", c.Config), slog.String("backend", cfg.Storage.Backend))
	return app.New(cfg)
}

// ServeCmd implements the 'serve' command.
type ServeCmd struct{}

func (s *ServeCmd) Run(root *CLI) error {
	a, err := root.load()
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return a.Serve(ctx)
}

// ScanCmd implements the 'scan' command.
type ScanCmd struct{}

func (s *ScanCmd) Run(root *CLI) error {
	a, err := root.load()
	if err != nil {
		return err
	}
	defer a.Close()

	created, err := a.ScanOnce(context.Background())
	for _, n := range created {
		fmt.Println(notification.Message(n))
	}
	slog.Info("Scan finished", slog.Int("created", len(created)))
	return err
}

// RosterCmd implements the 'roster' command.
type RosterCmd struct {
	Path  string `help:"Roster workbook, overriding roster.path"`
	Sheet string `help:"Sheet name, overriding roster.sheet"`
}

func (r *RosterCmd) Run(root *CLI) error {
	a, err := root.load()
	if err != nil {
		return err
	}
	defer a.Close()

	syncer := a.Roster
	if r.Path != "" {
		syncer = roster.NewSyncer(r.Path, r.Sheet, a.Store)
	}
	if syncer == nil {
		return fmt.Errorf("roster.path is not configured")
	}
	n, err := syncer.Sync(context.Background())
	if err != nil {
		return err
	}
	slog.Info("Roster synchronised", slog.Int("users", n))
	return nil
}

func main() {
	// A missing .env file is the normal case outside development.
	_ = godotenv.Load()

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("loandeskd"),
		kong.Description("Computer loan desk backend"),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run(&cli))
}
