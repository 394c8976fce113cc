package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/fang"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/evanschultz/boardsync/internal/adapters/fixture"
	serveradapter "github.com/evanschultz/boardsync/internal/adapters/server"
	servercommon "github.com/evanschultz/boardsync/internal/adapters/server/common"
	"github.com/evanschultz/boardsync/internal/adapters/storage/sqlite"
	"github.com/evanschultz/boardsync/internal/adapters/transport/httpclient"
	"github.com/evanschultz/boardsync/internal/app"
	"github.com/evanschultz/boardsync/internal/config"
	"github.com/evanschultz/boardsync/internal/domain"
	"github.com/evanschultz/boardsync/internal/platform"
	"github.com/evanschultz/boardsync/internal/platform/otel"
	"github.com/evanschultz/boardsync/internal/tui"
)

// version is stamped at build time.
var version = "dev"

// streamBackoff is the pause between push-channel reconnects.
const streamBackoff = 2 * time.Second

// program is the subset of *tea.Program the tui command drives.
type program interface {
	Run() (tea.Model, error)
	Send(tea.Msg)
}

var programFactory = func(m tea.Model) program {
	return tea.NewProgram(m)
}

// serveCommandRunner starts the HTTP+MCP serve flow.
var serveCommandRunner = func(ctx context.Context, cfg serveradapter.Config, deps serveradapter.Dependencies) error {
	return serveradapter.Run(ctx, cfg, deps)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand(os.Stdout, os.Stderr)
	if err := fang.Execute(ctx, root, fang.WithVersion(version)); err != nil {
		os.Exit(1)
	}
}

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	configPath  string
	dbPath      string
	fixturePath string
	projectID   string
	appName     string
	devMode     bool
}

// newRootCommand builds the command tree. Running the root alone opens the TUI.
func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	opts := &globalOptions{appName: platform.DefaultAppName, devMode: version == "dev"}
	if envDev, ok := parseBoolEnv("BOARDSYNC_DEV_MODE"); ok {
		opts.devMode = envDev
	}
	if envApp := strings.TrimSpace(os.Getenv("BOARDSYNC_APP_NAME")); envApp != "" {
		opts.appName = envApp
	}

	root := &cobra.Command{
		Use:           "boardsync",
		Short:         "Collaborative task board engine with a terminal host",
		Long:          "boardsync keeps a grouped task board in sync with a remote service and collaborators, and hosts it as a TUI, a local HTTP/MCP server, or plain row output.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd.Context(), opts, stderr)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to config TOML")
	flags.StringVar(&opts.dbPath, "db", "", "path to sqlite database")
	flags.StringVar(&opts.fixturePath, "fixture", "", "load the board from a YAML fixture instead of the remote")
	flags.StringVar(&opts.projectID, "project", "", "project id (overrides board.project_id)")
	flags.StringVar(&opts.appName, "app", opts.appName, "application name for config/data path resolution")
	flags.BoolVar(&opts.devMode, "dev", opts.devMode, "use dev mode paths (<app>-dev)")

	root.AddCommand(
		&cobra.Command{
			Use:   "tui",
			Short: "Open the interactive board",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runTUI(cmd.Context(), opts, stderr)
			},
		},
		newServeCommand(opts, stderr),
		newRowsCommand(opts, stdout, stderr),
		newOutboxCommand(opts, stdout, stderr),
		&cobra.Command{
			Use:   "paths",
			Short: "Print resolved config, data and database paths",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runPaths(opts, cmd.OutOrStdout())
			},
		},
	)
	return root
}

// runPaths prints the resolved on-disk locations.
func runPaths(opts *globalOptions, stdout io.Writer) error {
	paths, err := platform.DefaultPathsWithOptions(platform.Options{AppName: opts.appName, DevMode: opts.devMode})
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(stdout, "app: %s\n", opts.appName)
	_, _ = fmt.Fprintf(stdout, "dev_mode: %t\n", opts.devMode)
	_, _ = fmt.Fprintf(stdout, "config: %s\n", paths.ConfigPath)
	_, _ = fmt.Fprintf(stdout, "data_dir: %s\n", paths.DataDir)
	_, _ = fmt.Fprintf(stdout, "db: %s\n", paths.DBPath)
	_, _ = fmt.Fprintf(stdout, "log: %s\n", paths.LogPath)
	return nil
}

// runtimeEnv holds everything a command needs after startup.
type runtimeEnv struct {
	command    string
	configPath string
	paths      platform.Paths
	cfg        config.Config
	timing     config.SyncTiming
	logger     *runtimeLogger
	repo       *sqlite.Repository
	shutdown   func(context.Context) error
}

// bootstrap resolves paths and config, then opens logging, tracing and storage.
func bootstrap(ctx context.Context, opts *globalOptions, command string, stderr io.Writer) (*runtimeEnv, error) {
	paths, err := platform.DefaultPathsWithOptions(platform.Options{AppName: opts.appName, DevMode: opts.devMode})
	if err != nil {
		return nil, err
	}

	configPath := strings.TrimSpace(opts.configPath)
	if configPath == "" {
		if envPath := strings.TrimSpace(os.Getenv("BOARDSYNC_CONFIG")); envPath != "" {
			configPath = envPath
		} else {
			configPath = paths.ConfigPath
		}
	}
	dbPath := strings.TrimSpace(opts.dbPath)
	dbOverridden := dbPath != ""
	if !dbOverridden {
		dbPath = paths.DBPath
	}

	cfg, err := config.Load(configPath, config.Default(dbPath))
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", configPath, err)
	}
	if cfg, err = config.ApplyEnv(cfg); err != nil {
		return nil, fmt.Errorf("apply environment: %w", err)
	}
	if dbOverridden {
		cfg.Database.Path = dbPath
	}
	if project := strings.TrimSpace(opts.projectID); project != "" {
		cfg.Board.ProjectID = project
	}
	timing, err := cfg.Sync.Timing()
	if err != nil {
		return nil, err
	}

	logger, err := newRuntimeLogger(stderr, opts.appName, cfg.Logging, opts.devMode, paths.LogPath)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	if command == "tui" {
		// Runtime logs stay in the file sink while the board owns the terminal.
		logger.SetConsoleEnabled(false)
	}
	env := &runtimeEnv{
		command:    command,
		configPath: configPath,
		paths:      paths,
		cfg:        cfg,
		timing:     timing,
		logger:     logger,
		shutdown:   func(context.Context) error { return nil },
	}

	logger.Info("startup configuration resolved", "app", opts.appName, "dev_mode", opts.devMode, "command", command)
	logger.Debug("runtime paths resolved", "config_path", configPath, "data_dir", paths.DataDir, "db_path", cfg.Database.Path)
	logger.Info("configuration loaded", "project_id", cfg.Board.ProjectID, "group_by", cfg.Board.GroupBy, "log_level", cfg.Logging.Level)
	if path := logger.FilePath(); path != "" {
		logger.Info("file logging enabled", "path", path)
	}

	if shutdown, err := otel.Setup(ctx, opts.appName, version); err != nil {
		logger.Warn("tracing disabled", "err", err)
	} else {
		env.shutdown = shutdown
	}

	if err := paths.EnsureDataDir(); err != nil {
		env.Close()
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		env.Close()
		return nil, fmt.Errorf("create database dir: %w", err)
	}
	logger.Info("opening sqlite repository", "db_path", cfg.Database.Path)
	repo, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("sqlite open failed", "db_path", cfg.Database.Path, "err", err)
		env.Close()
		return nil, fmt.Errorf("open sqlite repository: %w", err)
	}
	env.repo = repo
	logger.Info("sqlite repository ready", "db_path", cfg.Database.Path, "migrations", "ensured")
	return env, nil
}

// Close releases storage, tracing and log sinks.
func (e *runtimeEnv) Close() {
	if e == nil {
		return
	}
	if e.repo != nil {
		if err := e.repo.Close(); err != nil {
			e.logger.Warn("sqlite close failed", "db_path", e.cfg.Database.Path, "err", err)
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.shutdown(shutdownCtx); err != nil {
		e.logger.Warn("tracing shutdown failed", "err", err)
	}
	if err := e.logger.Close(); err != nil && e.logger.shouldLogToSink(e.logger.consoleSink) {
		e.logger.Warn("close runtime log sink failed", "err", err)
	}
}

// boardSource is the resolved loader plus the remote client when one is configured.
type boardSource struct {
	loader app.Loader
	client *httpclient.Client
}

// newBoardSource picks the fixture or the remote as the primary loader and
// wraps it with the sqlite snapshot cache.
func newBoardSource(env *runtimeEnv, fixturePath string) (boardSource, error) {
	var (
		primary app.Loader
		client  *httpclient.Client
	)
	if remote := strings.TrimSpace(env.cfg.Sync.RemoteURL); remote != "" {
		c, err := httpclient.New(httpclient.Config{
			BaseURL:    remote,
			StreamPath: env.cfg.Sync.StreamPath,
			Timeout:    env.timing.RequestTimeout,
			Logger:     env.logger.component(),
		})
		if err != nil {
			return boardSource{}, fmt.Errorf("configure remote client: %w", err)
		}
		client = c
		primary = c
	}
	if path := strings.TrimSpace(fixturePath); path != "" {
		loader, err := fixture.NewLoader(path, nil)
		if err != nil {
			return boardSource{}, err
		}
		primary = loader
	}
	if primary == nil {
		return boardSource{}, errors.New("no board source: set sync.remote_url or pass --fixture")
	}
	env.logger.Debug("board source resolved", "fixture", fixturePath != "", "remote", client != nil)
	return boardSource{
		loader: app.NewCachingLoader(primary, env.repo, env.logger.component()),
		client: client,
	}, nil
}

// newEngine builds the board engine from config.
func newEngine(env *runtimeEnv, loader app.Loader) *app.Engine {
	cfg := env.cfg
	return app.NewEngine(loader, uuid.NewString, time.Now, app.EngineConfig{
		ProjectID:  cfg.Board.ProjectID,
		TeamID:     cfg.Board.TeamID,
		ReporterID: cfg.Board.ReporterID,
		GroupBy:    cfg.GroupingMode(),
		Catalog:    cfg.Catalog(),
		Drag: app.DragActivation{
			Distance:       cfg.Drag.ActivationDistance,
			TouchDelay:     cfg.Drag.TouchDelayDuration(),
			TouchTolerance: cfg.Drag.TouchTolerance,
		},
		PendingEditTTL: env.timing.PendingEditTTL,
		Debug:          cfg.Debug,
		Logger:         env.logger.component(),
	})
}

// offlineEmitter keeps every outbound event queued until a remote is configured.
type offlineEmitter struct{}

func (offlineEmitter) Emit(context.Context, domain.Outbound) error {
	return httpclient.ErrNoRemote
}

// startDispatcher attaches an outbox dispatcher to engine and runs it until
// the returned stop func is called. stop performs a final flush.
func startDispatcher(ctx context.Context, env *runtimeEnv, engine *app.Engine, client *httpclient.Client) func() {
	var emitter app.Emitter = offlineEmitter{}
	if client != nil {
		emitter = client
	}
	dispatcher := app.NewDispatcher(emitter, env.repo, app.DispatcherConfig{Logger: env.logger.component()})
	dispatcher.Attach(engine)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = dispatcher.Run(runCtx, env.timing.FlushInterval)
	}()
	return func() {
		cancel()
		<-done
		timeout := env.timing.RequestTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		flushCtx, flushCancel := context.WithTimeout(context.Background(), timeout)
		defer flushCancel()
		sent, err := dispatcher.Flush(flushCtx)
		if err != nil {
			env.logger.Warn("final outbox flush failed", "err", err)
			return
		}
		env.logger.Info("final outbox flush complete", "sent", sent)
	}
}

// runTUI opens the interactive board.
func runTUI(ctx context.Context, opts *globalOptions, stderr io.Writer) error {
	env, err := bootstrap(ctx, opts, "tui", stderr)
	if err != nil {
		return err
	}
	defer env.Close()
	logger := env.logger
	logger.Info("command flow start", "command", "tui")

	source, err := newBoardSource(env, opts.fixturePath)
	if err != nil {
		return err
	}
	engine := newEngine(env, source.loader)
	stopDispatcher := startDispatcher(ctx, env, engine, source.client)
	defer stopDispatcher()

	model := tui.NewModel(
		engine,
		source.loader,
		tui.WithSweepInterval(env.timing.SweepInterval),
		tui.WithKeyConfig(toTUIKeyConfig(env.cfg.Keys)),
		tui.WithMarkdownStyle(env.cfg.UI.MarkdownStyle),
	)
	p := programFactory(model)

	streamCtx, cancelStream := context.WithCancel(ctx)
	defer cancelStream()
	if source.client != nil {
		projectID := env.cfg.Board.ProjectID
		go func() {
			err := source.client.Follow(streamCtx, projectID, streamBackoff, func(ev domain.Inbound) {
				p.Send(tui.InboundMsg{Event: ev})
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("push channel stopped", "project_id", projectID, "err", err)
			}
		}()
	}

	logger.Info("starting tui program loop")
	if _, err := p.Run(); err != nil {
		logger.Error("tui program terminated with error", "err", err)
		return fmt.Errorf("run tui program: %w", err)
	}
	logger.Info("command flow complete", "command", "tui")
	return nil
}

// toTUIKeyConfig maps persisted key overrides into TUI options.
func toTUIKeyConfig(keys config.KeyConfig) tui.KeyConfig {
	return tui.KeyConfig{
		Grab:          keys.Grab,
		Rename:        keys.Rename,
		AddTask:       keys.AddTask,
		Archive:       keys.Archive,
		CycleGrouping: keys.CycleGrouping,
		CopyID:        keys.CopyID,
	}
}

// newServeCommand builds the serve command.
func newServeCommand(opts *globalOptions, stderr io.Writer) *cobra.Command {
	var bind string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the board over a local HTTP API and MCP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts, bind, stderr)
		},
	}
	cmd.Flags().StringVar(&bind, "http", "", "listen address (overrides server.http_bind)")
	return cmd
}

// runServe loads the board, serialises engine access through a loop and
// serves it until ctx ends.
func runServe(ctx context.Context, opts *globalOptions, bind string, stderr io.Writer) error {
	env, err := bootstrap(ctx, opts, "serve", stderr)
	if err != nil {
		return err
	}
	defer env.Close()
	logger := env.logger
	logger.Info("command flow start", "command", "serve")

	source, err := newBoardSource(env, opts.fixturePath)
	if err != nil {
		return err
	}
	engine := newEngine(env, source.loader)
	projectID := env.cfg.Board.ProjectID
	if err := engine.Load(ctx, projectID); err != nil {
		// The adapter reports service_unavailable until a load succeeds.
		logger.Warn("initial board load failed", "project_id", projectID, "err", err)
	} else {
		logger.Info("board loaded", "project_id", projectID, "tasks", len(engine.Tasks()))
	}
	stopDispatcher := startDispatcher(ctx, env, engine, source.client)
	defer stopDispatcher()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	loop := app.NewLoop(engine, env.timing.SweepInterval)
	go func() {
		_ = loop.Run(runCtx)
	}()
	if source.client != nil {
		go func() {
			err := source.client.Follow(runCtx, projectID, streamBackoff, func(ev domain.Inbound) {
				if err := loop.Publish(runCtx, ev); err != nil {
					logger.Debug("inbound event dropped", "kind", ev.Kind(), "err", err)
				}
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("push channel stopped", "project_id", projectID, "err", err)
			}
		}()
	}

	serverCfg := serveradapter.Config{
		HTTPBind:      env.cfg.Server.HTTPBind,
		APIEndpoint:   env.cfg.Server.APIEndpoint,
		MCPEndpoint:   env.cfg.Server.MCPEndpoint,
		ServerName:    opts.appName,
		ServerVersion: version,
	}
	if b := strings.TrimSpace(bind); b != "" {
		serverCfg.HTTPBind = b
	}
	board := servercommon.NewEngineAdapter(loop, time.Now, logger.component())
	logger.Info("serving", "http_bind", serverCfg.HTTPBind, "api_endpoint", serverCfg.APIEndpoint, "mcp_endpoint", serverCfg.MCPEndpoint)
	if err := serveCommandRunner(ctx, serverCfg, serveradapter.Dependencies{Board: board, Logger: logger.component()}); err != nil {
		logger.Error("command flow failed", "command", "serve", "err", err)
		return fmt.Errorf("run serve command: %w", err)
	}
	logger.Info("command flow complete", "command", "serve")
	return nil
}

// parseBoolEnv reads a boolean environment variable. ok is false when unset or invalid.
func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
