package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cloudburst-desktop/cloudburst/internal/config"
	"github.com/cloudburst-desktop/cloudburst/internal/display"
	"github.com/cloudburst-desktop/cloudburst/internal/engine"
	"github.com/cloudburst-desktop/cloudburst/internal/geometry"
	"github.com/cloudburst-desktop/cloudburst/internal/hotswap"
	"github.com/cloudburst-desktop/cloudburst/internal/ipc"
	"github.com/cloudburst-desktop/cloudburst/internal/logging"
	"github.com/cloudburst-desktop/cloudburst/internal/mcp"
	"github.com/cloudburst-desktop/cloudburst/internal/panel"
	"github.com/cloudburst-desktop/cloudburst/internal/runtimepath"
	"github.com/cloudburst-desktop/cloudburst/internal/supervisor"
	"github.com/cloudburst-desktop/cloudburst/internal/surface"
	"github.com/cloudburst-desktop/cloudburst/internal/winscan"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printMainUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "daemon":
		runDaemon(os.Args[2:])
	case "status":
		runStatus(os.Args[2:])
	case "desktop":
		runDesktop(os.Args[2:])
	case "displays":
		runDisplays(os.Args[2:])
	case "windows":
		runWindows(os.Args[2:])
	case "display-info":
		runDisplayInfo(os.Args[2:])
	case "heartbeat":
		runHeartbeat(os.Args[2:])
	case "panel":
		runPanel(os.Args[2:])
	case "reload":
		runReload(os.Args[2:])
	case "config":
		runConfig(os.Args[2:])
	case "mcp":
		runMCP(os.Args[2:])
	case "version":
		fmt.Printf("cloudburst %s\n", version)
	case "help", "-h", "--help":
		printMainUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printMainUsage()
		os.Exit(1)
	}
}

func printMainUsage() {
	fmt.Println(`cloudburst - ambient rain overlay desktop engine

Usage:
  cloudburst <command> [options]

Commands:
  daemon        Run the desktop-integration daemon
  status        Show daemon uptime and surface health
  desktop       Print the current virtual-desktop descriptor as JSON
  displays      Print the enumerated monitor list as JSON
  windows       Print the classified foreign-window set as JSON
  display-info  Print the monitor region for a surface label as JSON
  heartbeat     Report renderer liveness for a surface label
  panel         Show, set, or reset the stored panel placement
  reload        Ask the daemon to reload its configuration
  config        Validate or print the configuration
  mcp           Run the MCP diagnostics server on stdio
  version       Print the version
  help          Show this help

Use "cloudburst <command> -h" for command options.`)
}

// loadConfigOrDie loads the config from an explicit path or the default
// location and exits on failure. CLI subcommands share this with the daemon
// so a broken config fails the same way everywhere.
func loadConfigOrDie(path string) *config.Config {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFrom(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func classifierOptions(cfg *config.Config) winscan.Options {
	opts := winscan.DefaultOptions()
	if cfg.Scan.MinWidth > 0 {
		opts.MinWidth = cfg.Scan.MinWidth
	}
	if cfg.Scan.MinHeight > 0 {
		opts.MinHeight = cfg.Scan.MinHeight
	}
	if cfg.Scan.ClassDenylist != nil {
		opts.ClassDenylist = cfg.Scan.ClassDenylist
	}
	if cfg.Scan.SystemTitles != nil {
		opts.SystemTitles = cfg.Scan.SystemTitles
	}
	return opts
}

func runDaemon(args []string) {
	fs := flag.NewFlagSet("daemon", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file (default: ~/.config/cloudburst/config.yaml)")
	fs.Parse(args)

	cfg := loadConfigOrDie(*configPath)

	logDir := cfg.Log.Dir
	if logDir == "" {
		if dir, err := runtimepath.StateDir(); err == nil {
			logDir = dir
		} else {
			fmt.Fprintf(os.Stderr, "cloudburst: state dir unavailable, logging to stderr only: %v\n", err)
		}
	}
	session := logging.NewSession(logging.Options{
		Dir:       logDir,
		Level:     cfg.Log.Level,
		Keep:      cfg.Log.Keep,
		MaxSizeMB: cfg.Log.MaxSizeMB,
	}, time.Now())
	defer session.Close()
	logger := session.Logger

	backend, err := display.NewBackend()
	if err != nil {
		log.Fatalf("Failed to connect to display backend: %v", err)
	}
	defer backend.Close()

	// The supervisor needs a desktop source before the engine exists; the
	// closure resolves the cycle.
	var eng *engine.Engine
	sup := supervisor.New(supervisor.Config{
		WatchdogInterval: time.Duration(cfg.Watchdog.IntervalS) * time.Second,
		StartupGrace:     time.Duration(cfg.Watchdog.StartupGraceS) * time.Second,
		StartupStall:     time.Duration(cfg.Watchdog.StartupStallS) * time.Second,
		HeartbeatStall:   time.Duration(cfg.Watchdog.HeartbeatStallS) * time.Second,
		MaxCrashes:       cfg.Watchdog.MaxCrashes,
		Logger:           logger,
	}, func() (geometry.VirtualDesktop, error) {
		return eng.VirtualDesktop()
	})
	eng = engine.New(backend, sup, logger)

	reloadChan := make(chan struct{}, 1)
	ipcServer, err := ipc.NewServer(eng, logger, reloadChan)
	if err != nil {
		log.Fatalf("Failed to create IPC server: %v", err)
	}
	if err := ipcServer.Start(); err != nil {
		log.Fatalf("Failed to start IPC server: %v", err)
	}
	defer ipcServer.Stop()

	enumerator, err := winscan.NewEnumerator()
	if err != nil {
		log.Fatalf("Failed to create window enumerator: %v", err)
	}
	defer enumerator.Close()

	poller := winscan.NewPoller(winscan.PollerConfig{
		Interval:  cfg.ScanInterval(),
		DiagEvery: cfg.Scan.DiagEvery,
		Logger:    logger,
	}, enumerator, winscan.NewClassifier(classifierOptions(cfg)), func(windows []winscan.ForeignWindow) {
		ipcServer.SetWindows(windows)
		eng.DeliverWindows(windows)
	})

	watcher := hotswap.NewWatcher(hotswap.Config{
		PollInterval: time.Duration(cfg.Hotswap.PollS) * time.Second,
		Debounce:     time.Duration(cfg.Hotswap.DebounceS) * time.Second,
		Logger:       logger,
	}, backend.Enumerate, eng.OnTopologyChange)

	// Launch configured surfaces. A headless start is not fatal: the
	// hot-swap watcher fires when monitors appear.
	if desktop, err := eng.VirtualDesktop(); err != nil {
		logger.Warn("no desktop at startup, surfaces deferred", "error", err)
	} else {
		for _, sc := range cfg.Surfaces {
			proc := surface.NewProcess(sc.Label, sc.Command, sc.Args, logger)
			if err := sup.Manage(proc, desktop); err != nil {
				logger.Error("failed to launch surface", "label", sc.Label, "error", err)
			}
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sup.Run(ctx)
	go poller.Run(ctx)
	go watcher.Run(ctx)

	logger.Info("daemon started", "version", version, "pid", os.Getpid())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	reload := func() {
		newCfg := loadConfigOrDie(*configPath)
		poller.UpdateClassifier(winscan.NewClassifier(classifierOptions(newCfg)))
		logger.Info("configuration reloaded",
			"note", "cadence and watchdog changes apply on restart")
	}

	for {
		select {
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				reload()
				continue
			}
			logger.Info("shutting down", "signal", sig.String())
			return
		case <-reloadChan:
			reload()
		}
	}
}

func runStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	asJSON := fs.Bool("json", false, "Output as JSON")
	fs.Parse(args)

	client := ipc.NewClient()
	status, err := client.GetStatus()
	if err != nil {
		log.Fatalf("Failed to get status: %v", err)
	}

	if *asJSON {
		printJSON(status)
		return
	}

	fmt.Printf("Daemon running: %v\n", status.DaemonRunning)
	fmt.Printf("Uptime: %s\n", (time.Duration(status.UptimeSeconds) * time.Second).String())
	fmt.Printf("Windows tracked: %d\n", status.WindowCount)
	if len(status.Surfaces) == 0 {
		fmt.Println("Surfaces: none")
		return
	}
	fmt.Println("Surfaces:")
	for label, h := range status.Surfaces {
		state := "starting"
		switch {
		case h.GivenUp:
			state = "abandoned"
		case h.InitComplete:
			state = "running"
		}
		fmt.Printf("  %-16s %s  crashes=%d  last heartbeat %s\n",
			label, state, h.CrashCount, h.LastHeartbeat.Format(time.RFC3339))
	}
}

func runDesktop(args []string) {
	fs := flag.NewFlagSet("desktop", flag.ExitOnError)
	fs.Parse(args)

	desktop, err := ipc.NewClient().GetVirtualDesktop()
	if err != nil {
		log.Fatalf("Failed to get virtual desktop: %v", err)
	}
	printJSON(desktop)
}

func runDisplays(args []string) {
	fs := flag.NewFlagSet("displays", flag.ExitOnError)
	fs.Parse(args)

	displays, err := ipc.NewClient().GetDisplays()
	if err != nil {
		log.Fatalf("Failed to get displays: %v", err)
	}
	printJSON(displays)
}

func runWindows(args []string) {
	fs := flag.NewFlagSet("windows", flag.ExitOnError)
	fs.Parse(args)

	windows, err := ipc.NewClient().GetWindows()
	if err != nil {
		log.Fatalf("Failed to get windows: %v", err)
	}
	printJSON(windows)
}

func runDisplayInfo(args []string) {
	fs := flag.NewFlagSet("display-info", flag.ExitOnError)
	label := fs.String("label", "", "Surface label (required)")
	fs.Parse(args)

	if *label == "" {
		fmt.Fprintln(os.Stderr, "display-info: -label is required")
		fs.Usage()
		os.Exit(1)
	}

	region, err := ipc.NewClient().GetDisplayInfo(*label)
	if err != nil {
		log.Fatalf("Failed to get display info: %v", err)
	}
	printJSON(region)
}

func runHeartbeat(args []string) {
	fs := flag.NewFlagSet("heartbeat", flag.ExitOnError)
	label := fs.String("label", "", "Surface label (required)")
	fs.Parse(args)

	if *label == "" {
		fmt.Fprintln(os.Stderr, "heartbeat: -label is required")
		fs.Usage()
		os.Exit(1)
	}

	if err := ipc.NewClient().Heartbeat(*label); err != nil {
		log.Fatalf("Failed to send heartbeat: %v", err)
	}
}

func runPanel(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: cloudburst panel <show|set|reset> [options]")
		os.Exit(1)
	}
	sub := args[0]

	fs := flag.NewFlagSet("panel "+sub, flag.ExitOnError)
	x := fs.Int("x", 0, "Panel X position, logical pixels")
	y := fs.Int("y", 0, "Panel Y position, logical pixels")
	scale := fs.Float64("scale", 0, "UI scale override")
	width := fs.Int("width", 0, "Panel width for work-area clamping")
	height := fs.Int("height", 0, "Panel height for work-area clamping")
	fs.Parse(args[1:])

	client := ipc.NewClient()
	switch sub {
	case "show":
		data, err := client.GetPanel(*width, *height)
		if err != nil {
			log.Fatalf("Failed to get panel placement: %v", err)
		}
		printJSON(data)
	case "set":
		if err := client.SetPanel(panel.Placement{X: *x, Y: *y, Scale: *scale}); err != nil {
			log.Fatalf("Failed to set panel placement: %v", err)
		}
	case "reset":
		if err := client.ResetPanel(); err != nil {
			log.Fatalf("Failed to reset panel placement: %v", err)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown panel subcommand: %s\n", sub)
		os.Exit(1)
	}
}

func runReload(args []string) {
	fs := flag.NewFlagSet("reload", flag.ExitOnError)
	fs.Parse(args)

	if err := ipc.NewClient().Reload(); err != nil {
		log.Fatalf("Failed to reload: %v", err)
	}
	fmt.Println("Reload requested")
}

func runConfig(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: cloudburst config <validate|print> [-config path]")
		os.Exit(1)
	}
	sub := args[0]

	fs := flag.NewFlagSet("config "+sub, flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args[1:])

	switch sub {
	case "validate":
		loadConfigOrDie(*configPath)
		fmt.Println("Config OK")
	case "print":
		data, err := yaml.Marshal(loadConfigOrDie(*configPath))
		if err != nil {
			log.Fatalf("Failed to marshal config: %v", err)
		}
		os.Stdout.Write(data)
	default:
		fmt.Fprintf(os.Stderr, "Unknown config subcommand: %s\n", sub)
		os.Exit(1)
	}
}

func runMCP(args []string) {
	if len(args) < 1 || args[0] != "serve" {
		fmt.Fprintln(os.Stderr, "Usage: cloudburst mcp serve")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := mcp.NewServer().Run(ctx); err != nil {
		log.Fatalf("MCP server error: %v", err)
	}
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("Failed to marshal output: %v", err)
	}
	fmt.Println(string(data))
}
