package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/tinytelemetry/logwatchd/internal/control"
	"github.com/tinytelemetry/logwatchd/internal/dispatch"
	"github.com/tinytelemetry/logwatchd/internal/httpserver"
	"github.com/tinytelemetry/logwatchd/internal/logsource"
	"github.com/tinytelemetry/logwatchd/internal/model"
	"github.com/tinytelemetry/logwatchd/internal/registry"
	"github.com/tinytelemetry/logwatchd/internal/sink"
	"golang.org/x/sync/errgroup"
)

// runDaemon wires the registry, sinks, control endpoint and dispatcher and
// runs the monitoring loop until a signal arrives or logging is disabled
// permanently by a failed probe (the status API stays up in the latter case).
func runDaemon(cfg appConfig) error {
	cleanupLogger := configureRuntimeLogger(cfg.StateDir)
	defer cleanupLogger()

	// Registry and file sinks. The persistent log rotates once, by rename.
	reg := registry.New()
	persist, err := sink.NewFileSink(cfg.LogFile)
	if err != nil {
		return fmt.Errorf("failed to open persistent log: %w", err)
	}
	reg.SetSink(model.EventPersist, persist)

	if cfg.DebugLogEnabled {
		debug, err := sink.NewFileSink(cfg.DebugLogFile)
		if err != nil {
			reg.CloseAll()
			return fmt.Errorf("failed to open debug log: %w", err)
		}
		reg.SetSink(model.EventDebug, debug)
	}

	// Control endpoint, created exactly once per daemon run.
	ln, err := control.Listen(cfg.SocketPath)
	if err != nil {
		reg.CloseAll()
		return err
	}
	defer ln.Close()
	defer cleanupSocket(cfg.SocketPath)

	dispatcher := dispatch.New(dispatch.Config{
		Registry: reg,
		Listener: ln,
		StartSource: func() (dispatch.LineSource, error) {
			return logsource.Start(cfg.LogcatPath, logsource.FilterArgs()...)
		},
		Probe: func() bool { return logsource.Probe(cfg.LogcatPath) },
	})

	// Start the status API server if enabled.
	if cfg.APIEnabled {
		apiServer := httpserver.NewServer(cfg.APIAddr, dispatcher)
		if err := apiServer.Start(); err != nil {
			return fmt.Errorf("failed to start API server: %w", err)
		}
		defer apiServer.Stop()
	}

	// Set up context and signal handling before errgroup
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down gracefully... (press Ctrl+C again to force)")
		cancel()

		// Shutdown deadline starts now — not at boot.
		deadline := time.NewTimer(10 * time.Second)
		defer deadline.Stop()

		select {
		case <-sigCh:
			fmt.Println("\nForce shutdown.")
		case <-deadline.C:
			fmt.Println("Shutdown timed out, forcing exit.")
		}
		cleanupSocket(cfg.SocketPath)
		os.Exit(1)
	}()

	printStartupBanner(cfg)

	// Use errgroup for concurrent goroutine lifecycle management.
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return dispatcher.Run(gctx)
	})

	// Wait for context cancellation (from signal handler) in the errgroup
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Printf("daemon: errgroup exited with error: %v", err)
	}

	cancel()
	signal.Stop(sigCh)

	return nil
}

func cleanupSocket(path string) {
	if path != "" {
		os.Remove(path)
	}
}

func configureRuntimeLogger(stateDir string) func() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if stateDir == "" {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	if err := os.MkdirAll(stateDir, 0755); err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	logPath := filepath.Join(stateDir, "logwatchd.log")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	log.SetOutput(f)
	return func() {
		_ = f.Close()
	}
}

func printStartupBanner(cfg appConfig) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	logo := cyan.Bold(true).Render(`
    ╦  ╔═╗╔═╗╦ ╦╔═╗╔╦╗╔═╗╦ ╦
    ║  ║ ║║ ╦║║║╠═╣ ║ ║  ╠═╣
    ╩═╝╚═╝╚═╝╚╩╝╩ ╩ ╩ ╚═╝╩ ╩`)

	ver := dim.Render("v" + version)

	var lines []string
	lines = append(lines, "")
	lines = append(lines, logo)
	lines = append(lines, "    "+ver)
	lines = append(lines, "")

	separator := dim.Render("    ─────────────────────────────────")
	lines = append(lines, separator)
	lines = append(lines, "")

	// Monitor
	lines = append(lines, bold.Render("    Monitor"))
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("    %s  Log Source     %s", check, cyan.Render(cfg.LogcatPath)))
	lines = append(lines, fmt.Sprintf("    %s  Control Socket %s", check, cyan.Render(shortenPath(cfg.SocketPath))))
	if cfg.APIEnabled {
		lines = append(lines, fmt.Sprintf("    %s  Status API     %s", check, cyan.Render(cfg.APIAddr)))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Status API     %s", dot, dim.Render("disabled")))
	}
	lines = append(lines, "")

	// Sinks
	lines = append(lines, bold.Render("    Sinks"))
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("    %s  Persistent Log %s", check, dim.Render(shortenPath(cfg.LogFile))))
	if cfg.DebugLogEnabled {
		lines = append(lines, fmt.Sprintf("    %s  Debug Log      %s", check, dim.Render(shortenPath(cfg.DebugLogFile))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Debug Log      %s", dot, dim.Render("disabled")))
	}
	lines = append(lines, fmt.Sprintf("    %s  Process Watch  %s", dot, dim.Render("attach on demand")))

	lines = append(lines, "")
	lines = append(lines, bold.Render("    Config"))
	lines = append(lines, "")
	if cfg.ConfigPath != "" {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", check, dim.Render(shortenPath(cfg.ConfigPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", dot, dim.Render("default (no file)")))
	}

	lines = append(lines, "")
	lines = append(lines, separator)
	lines = append(lines, "")
	lines = append(lines, "    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"))
	lines = append(lines, "")

	fmt.Println(strings.Join(lines, "\n"))
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
