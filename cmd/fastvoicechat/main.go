// Command fastvoicechat runs a voice conversation on the local microphone
// and speaker, answering with a backchannel while the user still speaks.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	orchestration "github.com/jiroshimaya/fastvoicechat/core"
	"github.com/jiroshimaya/fastvoicechat/core/events"
	"github.com/jiroshimaya/fastvoicechat/internal/config"
	"github.com/jiroshimaya/fastvoicechat/internal/telemetry"
)

const (
	logFile      = "fastvoicechat.log"
	closeTimeout = 5 * time.Second
)

func main() {
	var logLevel, configFile, ui string
	flag.StringVar(&logLevel, "loglevel", "", "log level: debug, info, warn or error (overrides FVC_LOG_LEVEL)")
	flag.StringVar(&configFile, "config", "", "path to a config file")
	flag.StringVar(&ui, "ui", "", "user interface: tui or plain (overrides FVC_UI)")
	flag.Parse()

	if err := run(logLevel, configFile, ui); err != nil {
		fmt.Fprintf(os.Stderr, "fastvoicechat: %v\n", err)
		os.Exit(1)
	}
}

func run(logLevel, configFile, ui string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if ui != "" {
		cfg.UI = ui
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var logOut io.Writer = os.Stderr
	if cfg.UI == "tui" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	shutdownLogs, err := telemetry.Setup(cfg.LogLevel, logOut)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownLogs(context.Background()) }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	p, err := buildPipeline(ctx, cfg, registry)
	if err != nil {
		return err
	}
	defer p.close()

	var program *tea.Program
	options := p.options
	if cfg.UI == "tui" {
		program = tea.NewProgram(newTUIModel(), tea.WithAltScreen())
		options = append(options, orchestration.WithEventCallback(func(event events.Event) {
			program.Send(eventMsg{event: event})
		}))
	} else {
		options = append(options, orchestration.WithEventCallback(printEvent(os.Stdout)))
	}

	o := orchestration.NewOrchestrator(options...)
	if err := o.Start(ctx); err != nil {
		return fmt.Errorf("failed to start orchestrator: %w", err)
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), closeTimeout)
		defer closeCancel()
		if err := o.Close(closeCtx); err != nil {
			logger.Error("failed to close orchestrator", "error", err)
		}
	}()

	if cfg.MetricsAddress != "" {
		go func() {
			if err := serveMetrics(ctx, cfg.MetricsAddress, newRouter(registry, o)); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	if program == nil {
		return converse(ctx, o)
	}

	done := make(chan error, 1)
	go func() {
		err := converse(ctx, o)
		program.Send(conversationDoneMsg{err: err})
		done <- err
	}()
	if _, err := program.Run(); err != nil {
		cancel()
		return fmt.Errorf("terminal ui failed: %w", err)
	}
	cancel()
	return <-done
}

// converse runs one ListenThenUtter after another until ctx is done or the
// microphone fails.
func converse(ctx context.Context, o *orchestration.Orchestrator) error {
	for {
		outcome, err := o.ListenThenUtter(ctx)
		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, orchestration.ErrCapture), errors.Is(err, orchestration.ErrClosed):
			return err
		case err != nil:
			logger.Warn("utterance cycle failed", "cycle_id", outcome.CycleID, "error", err)
		default:
			logger.Debug("utterance cycle completed", "cycle_id", outcome.CycleID, "answer", outcome.Answer)
		}
	}
}
