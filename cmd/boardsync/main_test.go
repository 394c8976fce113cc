package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "charm.land/bubbletea/v2"

	serveradapter "github.com/evanschultz/boardsync/internal/adapters/server"
	"github.com/evanschultz/boardsync/internal/config"
	"github.com/evanschultz/boardsync/internal/tui"
)

const fixtureBoard = `
tasks:
  - id: A
    name: Write docs
    status: todo
    sort: {status: 1}
  - id: B
    name: Review changes
    status: todo
    sort: {status: 0}
  - id: C
    name: Ship release
    status: done
`

// fakeProgram records the model instead of driving a terminal.
type fakeProgram struct {
	model tea.Model
	sent  []tea.Msg
}

func (p *fakeProgram) Run() (tea.Model, error) { return p.model, nil }
func (p *fakeProgram) Send(msg tea.Msg)        { p.sent = append(p.sent, msg) }

// isolate points every path at a temp dir and clears BOARDSYNC_* overrides.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("BOARDSYNC_HOME", home)
	for _, name := range []string{
		"BOARDSYNC_CONFIG", "BOARDSYNC_PROJECT_ID", "BOARDSYNC_GROUP_BY", "BOARDSYNC_REMOTE_URL",
		"BOARDSYNC_HTTP_BIND", "BOARDSYNC_LOG_LEVEL", "BOARDSYNC_DEBUG", "BOARDSYNC_DB_PATH",
		"BOARDSYNC_DEV_MODE", "BOARDSYNC_APP_NAME", "BOARDSYNC_OTEL_ENDPOINT",
	} {
		t.Setenv(name, "")
	}
	return home
}

func writeFixture(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "board.yaml")
	if err := os.WriteFile(path, []byte(fixtureBoard), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCommand(&stdout, &stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// TestRunPathsUsesHomeOverride verifies path resolution honours BOARDSYNC_HOME.
func TestRunPathsUsesHomeOverride(t *testing.T) {
	home := isolate(t)
	out, _, err := execute(t, "paths", "--dev=false")
	if err != nil {
		t.Fatalf("paths error = %v", err)
	}
	want := filepath.Join(home, "boardsync", "config.toml")
	if !strings.Contains(out, "config: "+want) {
		t.Fatalf("paths output missing %q:\n%s", want, out)
	}
	if !strings.Contains(out, "dev_mode: false") {
		t.Fatalf("paths output missing dev mode:\n%s", out)
	}

	out, _, err = execute(t, "paths", "--dev")
	if err != nil {
		t.Fatalf("paths --dev error = %v", err)
	}
	if !strings.Contains(out, filepath.Join(home, "boardsync-dev")) {
		t.Fatalf("dev paths should use the -dev suffix:\n%s", out)
	}
}

// TestRowsRendersFixtureBoard verifies the rows command flattens a fixture.
func TestRowsRendersFixtureBoard(t *testing.T) {
	home := isolate(t)
	fixturePath := writeFixture(t, home)

	out, _, err := execute(t, "rows", "--fixture", fixturePath, "--project", "p1", "--dev=false")
	if err != nil {
		t.Fatalf("rows error = %v", err)
	}
	for _, want := range []string{"Review changes", "Write docs", "Ship release", "addTask", "To Do"} {
		if !strings.Contains(out, want) {
			t.Fatalf("rows output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "Review changes") > strings.Index(out, "Write docs") {
		t.Fatalf("rows should follow sort keys:\n%s", out)
	}

	out, _, err = execute(t, "rows", "--fixture", fixturePath, "--project", "p1", "--dev=false", "--collapse", "todo")
	if err != nil {
		t.Fatalf("rows --collapse error = %v", err)
	}
	if strings.Contains(out, "Write docs") {
		t.Fatalf("collapsed group should emit no task rows:\n%s", out)
	}
}

// TestRowsRequiresBoardSource verifies a clear error without remote or fixture.
func TestRowsRequiresBoardSource(t *testing.T) {
	isolate(t)
	_, _, err := execute(t, "rows", "--dev=false")
	if err == nil || !strings.Contains(err.Error(), "no board source") {
		t.Fatalf("expected no board source error, got %v", err)
	}
}

// TestOutboxCountStartsEmpty verifies the outbox commands open the database.
func TestOutboxCountStartsEmpty(t *testing.T) {
	isolate(t)
	out, _, err := execute(t, "outbox", "count", "--dev=false")
	if err != nil {
		t.Fatalf("outbox count error = %v", err)
	}
	if strings.TrimSpace(out) != "0" {
		t.Fatalf("outbox count = %q, want 0", out)
	}

	out, _, err = execute(t, "outbox", "purge", "--dev=false")
	if err != nil {
		t.Fatalf("outbox purge error = %v", err)
	}
	if !strings.Contains(out, "purged 0 entries") {
		t.Fatalf("unexpected purge output %q", out)
	}

	out, _, err = execute(t, "outbox", "list", "--dead", "--dev=false")
	if err != nil {
		t.Fatalf("outbox list --dead error = %v", err)
	}
	if !strings.Contains(out, "Last error") {
		t.Fatalf("unexpected dead letter listing %q", out)
	}
}

// TestRunTUIUsesProgramFactory verifies the TUI flow builds a board model.
func TestRunTUIUsesProgramFactory(t *testing.T) {
	home := isolate(t)
	fixturePath := writeFixture(t, home)

	var fake *fakeProgram
	orig := programFactory
	programFactory = func(m tea.Model) program {
		fake = &fakeProgram{model: m}
		return fake
	}
	t.Cleanup(func() { programFactory = orig })

	if _, _, err := execute(t, "--fixture", fixturePath, "--dev=false"); err != nil {
		t.Fatalf("tui error = %v", err)
	}
	if fake == nil {
		t.Fatalf("program factory not called")
	}
	if _, ok := fake.model.(tui.Model); !ok {
		t.Fatalf("unexpected model type %T", fake.model)
	}
}

// TestRunServeUsesRunner verifies serve wires config and the board service.
func TestRunServeUsesRunner(t *testing.T) {
	home := isolate(t)
	fixturePath := writeFixture(t, home)

	var (
		gotCfg  serveradapter.Config
		gotDeps serveradapter.Dependencies
	)
	orig := serveCommandRunner
	serveCommandRunner = func(ctx context.Context, cfg serveradapter.Config, deps serveradapter.Dependencies) error {
		gotCfg = cfg
		gotDeps = deps
		view, err := deps.Board.Board(ctx)
		if err != nil {
			return err
		}
		if len(view.Rows) == 0 {
			t.Errorf("served board has no rows")
		}
		return nil
	}
	t.Cleanup(func() { serveCommandRunner = orig })

	if _, _, err := execute(t, "serve", "--fixture", fixturePath, "--http", "127.0.0.1:0", "--dev=false"); err != nil {
		t.Fatalf("serve error = %v", err)
	}
	if gotCfg.HTTPBind != "127.0.0.1:0" {
		t.Fatalf("http bind = %q", gotCfg.HTTPBind)
	}
	if gotCfg.APIEndpoint != "/api/v1" || gotCfg.MCPEndpoint != "/mcp" {
		t.Fatalf("unexpected endpoints %#v", gotCfg)
	}
	if gotDeps.Board == nil {
		t.Fatalf("board dependency missing")
	}
}

// TestRuntimeLoggerFileSink verifies the file sink receives events while the console is muted.
func TestRuntimeLoggerFileSink(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "boardsync.log")
	logger, err := newRuntimeLogger(&console, "boardsync", config.LoggingConfig{Level: "debug", File: path}, false, "")
	if err != nil {
		t.Fatalf("newRuntimeLogger() error = %v", err)
	}
	logger.SetConsoleEnabled(false)
	logger.Info("board loaded", "tasks", 3)
	logger.Debug("row flattened", "rows", 7)
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if console.Len() != 0 {
		t.Fatalf("muted console received output: %q", console.String())
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	for _, want := range []string{"board loaded", "tasks=3", "row flattened"} {
		if !strings.Contains(string(content), want) {
			t.Fatalf("log file missing %q:\n%s", want, content)
		}
	}
	if logger.FilePath() != path || logger.component() == nil {
		t.Fatalf("unexpected logger state path=%q", logger.FilePath())
	}
}

// TestRuntimeLoggerConsoleLevels verifies level filtering and invalid levels.
func TestRuntimeLoggerConsoleLevels(t *testing.T) {
	var console bytes.Buffer
	logger, err := newRuntimeLogger(&console, "boardsync", config.LoggingConfig{Level: "warn"}, false, "")
	if err != nil {
		t.Fatalf("newRuntimeLogger() error = %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	if strings.Contains(console.String(), "hidden") || !strings.Contains(console.String(), "shown") {
		t.Fatalf("unexpected console output %q", console.String())
	}
	if logger.FilePath() != "" {
		t.Fatalf("no file sink expected")
	}

	if _, err := newRuntimeLogger(&console, "boardsync", config.LoggingConfig{Level: "loud"}, false, ""); err == nil {
		t.Fatalf("expected invalid level error")
	}
}

// TestToTUIKeyConfig verifies key overrides map field by field.
func TestToTUIKeyConfig(t *testing.T) {
	got := toTUIKeyConfig(config.KeyConfig{Grab: "v", Archive: "D", CopyID: "c"})
	want := tui.KeyConfig{Grab: "v", Archive: "D", CopyID: "c"}
	if got != want {
		t.Fatalf("toTUIKeyConfig() = %#v, want %#v", got, want)
	}
}
