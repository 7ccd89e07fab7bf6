// Command educube-console is the operator console: it connects to a ground
// station over WebSocket, shows the latest telemetry of each board and
// sends operator commands.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"github.com/educube/groundstation/internal/channel"
	"github.com/educube/groundstation/internal/command"
	"github.com/educube/groundstation/internal/config"
	"github.com/educube/groundstation/internal/logging"
	"github.com/educube/groundstation/internal/monitor"
	"github.com/educube/groundstation/internal/store"
	"github.com/educube/groundstation/internal/telemetry"
	"github.com/educube/groundstation/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults apply when empty)")
	address := flag.String("address", "", "ground station WebSocket address, overrides console.address")
	headless := flag.Bool("headless", false, "log telemetry instead of running the terminal UI")
	var verbose logging.Verbosity
	flag.Var(&verbose, "v", "verbosity; repeat for more (-v warn, -v -v info, -v -v -v debug)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadWithDefaults(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}
	}
	if *address != "" {
		cfg.Console.Address = *address
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}
	if verbose > 0 {
		level = logging.VerbosityLevel(int(verbose))
	}

	if !*headless && !isatty.IsTerminal(os.Stdout.Fd()) {
		fmt.Fprintln(os.Stderr, "stdout is not a terminal, running headless")
		*headless = true
	}

	opts := logging.Options{
		Level:      level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	}
	if !*headless {
		// The terminal belongs to the UI; log to the file only.
		opts.Output = io.Discard
	}
	logger, logCloser := logging.New(opts)
	defer logCloser.Close()
	slog.SetDefault(logger)

	logger.Info("starting console", version.Attr(), "address", cfg.Console.Address)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	chCfg := channel.Config{
		HandshakeTimeout: cfg.Console.HandshakeTimeout,
		WriteTimeout:     cfg.Console.WriteTimeout,
		PingInterval:     cfg.Web.PingInterval,
		RefreshInterval:  cfg.Console.RefreshInterval,
	}
	decoder := telemetry.NewDecoder(telemetry.Options{GPSScale: cfg.Telemetry.GPSScale}, logger)
	st := store.New()

	if *headless {
		err = runHeadless(ctx, cfg.Console.Address, chCfg, st, decoder, logger)
	} else {
		err = runUI(ctx, cfg.Console.Address, chCfg, st, decoder, logger)
	}
	if err != nil {
		logger.Error("console failed", "error", err)
		logCloser.Close()
		fmt.Fprintf(os.Stderr, "console: %v\n", err)
		os.Exit(1)
	}
}

func runHeadless(ctx context.Context, address string, cfg channel.Config, st *store.Store, decoder *telemetry.Decoder, logger *slog.Logger) error {
	out := monitor.NewLog(logger)
	ch := channel.New(cfg, st,
		channel.WithRenderer(channel.Renderers{out, channel.NewGPSMarker(out)}),
		channel.WithNotifier(out),
		channel.WithDecoder(decoder),
		channel.WithLogger(logger.With("component", "channel")),
	)
	defer ch.Close()

	if err := ch.Connect(ctx, address); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("console stopped")
	return nil
}

func runUI(ctx context.Context, address string, cfg channel.Config, st *store.Store, decoder *telemetry.Decoder, logger *slog.Logger) error {
	var p *tea.Program
	bridge := monitor.NewBridge(monitor.SendFunc(func(msg tea.Msg) { p.Send(msg) }))

	ch := channel.New(cfg, st,
		channel.WithRenderer(channel.Renderers{bridge, channel.NewGPSMarker(bridge)}),
		channel.WithNotifier(bridge),
		channel.WithDecoder(decoder),
		channel.WithLogger(logger.With("component", "channel")),
	)
	defer ch.Close()

	feed := command.NewFeed(ch, command.DefaultControls()...)
	p = tea.NewProgram(monitor.New(st, feed, cfg.RefreshInterval), tea.WithAltScreen(), tea.WithContext(ctx))

	// Dial failures are shown in the UI by the notifier.
	go ch.Connect(ctx, address)

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}
