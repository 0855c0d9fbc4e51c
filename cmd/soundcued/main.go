package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const version = "1.0.0"

func printVersion() {
	fmt.Printf("soundcued v%s\n", version)
	fmt.Println("Interactive session daemon for audience-triggered soundboards")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  soundcued [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Daemon that maintains a session with an interactive streaming service,")
	fmt.Println("  publishes the active sound profile as on-screen controls, plays sounds")
	fmt.Println("  when audience members trigger them, and enforces cooldowns. Control it")
	fmt.Println("  over the local HTTP API, the state websocket, or soundcue-ctl.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        Path to YAML config file (flags below override file values)")
	fmt.Println()
	fmt.Println("  -remote-url string")
	fmt.Printf("        Interactive service websocket URL (default %q)\n", defaultRemoteURL)
	fmt.Println()
	fmt.Println("  -channel-id string")
	fmt.Println("        Channel identifier for the interactive handshake")
	fmt.Println()
	fmt.Println("  -token-file string")
	fmt.Println("        Path to file containing the service auth token")
	fmt.Println()
	fmt.Println("  -scene string")
	fmt.Printf("        Scene the controls are published into (default %q)\n", defaultScene)
	fmt.Println()
	fmt.Println("  -connect-on-start")
	fmt.Println("        Open the interactive session immediately at startup")
	fmt.Println()
	fmt.Println("  -ipc-socket string")
	fmt.Printf("        Unix domain socket path for IPC (default %q)\n", defaultIPCSocket)
	fmt.Println()
	fmt.Println("  -http-port int")
	fmt.Printf("        Control API / state websocket listener port (default %d)\n", defaultHTTPPort)
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug (default \"info\")")
	fmt.Println()
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println()
	fmt.Println("  -help")
	fmt.Println("        Print this help message")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Start with a config file")
	fmt.Println("  soundcued -config ~/.config/soundcued/config.yaml")
	fmt.Println()
	fmt.Println("  # Connect to a local development service and go live immediately")
	fmt.Println("  soundcued -remote-url ws://127.0.0.1:8100/interactive -connect-on-start")
	fmt.Println()
	fmt.Println("  # Drive the running daemon")
	fmt.Println("  soundcue-ctl connect")
	fmt.Println("  soundcue-ctl set-mode individual")
	fmt.Println()
	fmt.Println("NOTES:")
	fmt.Println("  - Profiles, sounds and session settings persist under storage.dir")
	fmt.Println("  - The HTTP API binds to 127.0.0.1 only")
	fmt.Println("  - Auto-reconnect is off by default; enable it via the API or ctl tool")
	fmt.Println()
}

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" {
			printVersion()
			return
		}
		if arg == "-help" || arg == "--help" || arg == "-h" {
			printUsage()
			return
		}
	}

	var (
		configPath     = flag.String("config", "", "Path to YAML config file")
		remoteURL      = flag.String("remote-url", "", "Interactive service websocket URL")
		channelID      = flag.String("channel-id", "", "Channel identifier for the handshake")
		tokenFile      = flag.String("token-file", "", "Path to file containing the service auth token")
		scene          = flag.String("scene", "", "Scene the controls are published into")
		connectOnStart = flag.Bool("connect-on-start", false, "Open the interactive session at startup")
		ipcSocketPath  = flag.String("ipc-socket", "", "Unix domain socket path for IPC")
		httpPort       = flag.Int("http-port", 0, "Control API listener port")
		logLevelStr    = flag.String("log-level", "", "Log level: error, warn, info, debug")
		showVersion    = flag.Bool("version", false, "Print version and exit")
		showHelp       = flag.Bool("help", false, "Print help message")
	)

	flag.Usage = printUsage
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}
	if *showVersion {
		printVersion()
		return
	}

	// Config file first, then flag overrides on top. Only flags the user
	// actually set are applied.
	cfg := DefaultConfig()
	if *configPath != "" {
		loaded, err := LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	var overrides FlagOverrides
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "remote-url":
			overrides.RemoteURL = remoteURL
		case "channel-id":
			overrides.RemoteChannelID = channelID
		case "token-file":
			overrides.RemoteTokenFile = tokenFile
		case "scene":
			overrides.RemoteScene = scene
		case "connect-on-start":
			overrides.ConnectOnStart = connectOnStart
		case "ipc-socket":
			overrides.IPCSocketPath = ipcSocketPath
		case "http-port":
			overrides.HTTPPort = httpPort
		case "log-level":
			overrides.LogLevel = logLevelStr
		}
	})
	overrides.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	logLevel, err := parseLogLevel(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	logger := setupLogger(logLevel, cfg.Logging)

	// Persistence layer. Settings writes debounce so rapid UI edits collapse
	// into one disk write per key.
	settings, err := NewSettingsStore(
		ExpandPath(cfg.Storage.Dir),
		time.Duration(defaultSettingsDebounceMS)*time.Millisecond,
		logger,
	)
	if err != nil {
		logger.Error("cannot initialize settings store", "dir", cfg.Storage.Dir, "error", err)
		os.Exit(1)
	}

	catalog := NewCatalog(settings, logger)

	// Session state seeds from the persisted interactive settings document.
	storage := DefaultSessionStorage()
	if _, err := settings.Get(settingsKeyInteractive, &storage); err != nil {
		logger.Warn("cannot load interactive settings, using defaults", "error", err)
		storage = DefaultSessionStorage()
	}
	state := NewSessionState(storage)

	// Central event bus. Everything that wants the daemon's attention posts
	// here: IPC, HTTP, remote pushes, effect completions, catalog notifies.
	events := make(chan Event, eventQueueSize)

	hub := NewHub(16, logger)
	hub.BroadcastState(state.Snapshot())

	client, err := NewRemoteClient(
		cfg.Remote.URL,
		time.Duration(cfg.Remote.TimeoutMS)*time.Millisecond,
		func(ev Event) { events <- ev },
		logger,
	)
	if err != nil {
		logger.Error("invalid remote configuration", "error", err)
		os.Exit(1)
	}

	catalog.SetNotify(func(ev Event) {
		select {
		case events <- ev:
		default:
			logger.Warn("event queue full, dropping catalog event")
		}
	})

	var player Player
	if cfg.Player.Command != "" {
		player = NewExecPlayer(cfg.Player.Command, catalog, logger)
	} else {
		player = NewLogPlayer(logger)
	}

	deps := EffectDeps{
		Client:   client,
		Catalog:  catalog,
		Settings: settings,
		Player:   player,
		Hub:      hub,
		Logger:   logger,
		Events:   events,
		Scene:    cfg.Remote.Scene,
		Settle:   time.Duration(cfg.Remote.SettleMS) * time.Millisecond,
		Credentials: func() (Credentials, error) {
			token, err := loadToken(ExpandPath(cfg.Remote.TokenFile))
			if err != nil {
				return Credentials{}, err
			}
			return Credentials{
				ChannelID: cfg.Remote.ChannelID,
				VersionID: cfg.Remote.VersionID,
				Token:     token,
			}, nil
		},
	}

	reducerCfg := ReducerConfig{
		DebounceWindow: time.Duration(cfg.Session.TriggerDebounceMS) * time.Millisecond,
		MaxControls:    cfg.Session.MaxControls,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	daemonDone := make(chan struct{})
	go func() {
		defer close(daemonDone)
		runDaemon(ctx, events, deps, state, reducerCfg, logger)
	}()

	go func() {
		if err := runIPCServer(ctx, cfg.IPC.SocketPath, events, logger); err != nil {
			logger.Error("IPC server error", "error", err)
		}
	}()

	router := newRouter(events, catalog, hub, logger)
	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runHTTPServer(ctx, cfg.HTTP.Port, router, logger)
	}()

	logger.Info("soundcued started",
		"version", version,
		"remote_url", cfg.Remote.URL,
		"scene", cfg.Remote.Scene,
		"ipc_socket", cfg.IPC.SocketPath,
		"http_port", cfg.HTTP.Port,
		"connect_on_start", cfg.Session.ConnectOnStart)

	if cfg.Session.ConnectOnStart {
		events <- ActionConnect{}
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-httpErr:
		if err != nil {
			logger.Error("http server stopped", "error", err)
		}
		stop()
	}

	// Orderly teardown: stop taking events, flush pending settings writes,
	// close the remote session.
	<-daemonDone
	settings.Flush()
	if err := client.Close(); err != nil {
		logger.Warn("error closing remote client", "error", err)
	}
}
