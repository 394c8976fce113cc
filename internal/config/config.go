package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/evanschultz/boardsync/internal/domain"
)

type Config struct {
	Debug    bool           `toml:"debug"`
	Database DatabaseConfig `toml:"database"`
	Board    BoardConfig    `toml:"board"`
	Sync     SyncConfig     `toml:"sync"`
	Drag     DragConfig     `toml:"drag"`
	Server   ServerConfig   `toml:"server"`
	Logging  LoggingConfig  `toml:"logging"`
	Keys     KeyConfig      `toml:"keys"`
	UI       UIConfig       `toml:"ui"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type BoardConfig struct {
	ProjectID  string           `toml:"project_id"`
	TeamID     string           `toml:"team_id"`
	ReporterID string           `toml:"reporter_id"`
	GroupBy    string           `toml:"group_by"` // status | priority | phase
	Statuses   []GroupDefConfig `toml:"statuses"`
	Priorities []GroupDefConfig `toml:"priorities"`
	Phases     []GroupDefConfig `toml:"phases"`
}

type GroupDefConfig struct {
	ID    string `toml:"id"`
	Name  string `toml:"name"`
	Color string `toml:"color"`
}

// SyncConfig durations are Go duration strings such as "5s" or "250ms".
type SyncConfig struct {
	RemoteURL      string `toml:"remote_url"`
	StreamPath     string `toml:"stream_path"`
	PendingEditTTL string `toml:"pending_edit_ttl"`
	SweepInterval  string `toml:"sweep_interval"`
	FlushInterval  string `toml:"flush_interval"`
	RequestTimeout string `toml:"request_timeout"`
}

// SyncTiming is SyncConfig with every duration parsed.
type SyncTiming struct {
	PendingEditTTL time.Duration
	SweepInterval  time.Duration
	FlushInterval  time.Duration
	RequestTimeout time.Duration
}

type DragConfig struct {
	ActivationDistance float64 `toml:"activation_distance"`
	TouchDelay         string  `toml:"touch_delay"`
	TouchTolerance     float64 `toml:"touch_tolerance"`
}

type ServerConfig struct {
	HTTPBind    string `toml:"http_bind"`
	APIEndpoint string `toml:"api_endpoint"`
	MCPEndpoint string `toml:"mcp_endpoint"`
}

// KeyConfig overrides TUI bindings. Blank keeps the default.
type KeyConfig struct {
	Grab          string `toml:"grab"`
	Rename        string `toml:"rename"`
	AddTask       string `toml:"add_task"`
	Archive       string `toml:"archive"`
	CycleGrouping string `toml:"cycle_grouping"`
	CopyID        string `toml:"copy_id"`
}

// UIConfig tunes the terminal board.
type UIConfig struct {
	MarkdownStyle string `toml:"markdown_style"`
}

// markdownStyles are the glamour standard styles the description pane accepts.
var markdownStyles = []string{"ascii", "auto", "dark", "dracula", "light", "notty", "pink", "tokyo-night"}

type LoggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

func defaultStatuses() []GroupDefConfig {
	return []GroupDefConfig{
		{ID: "todo", Name: "To Do", Color: "#87909e"},
		{ID: "doing", Name: "Doing", Color: "#5f55ee"},
		{ID: "done", Name: "Done", Color: "#2f9e44"},
	}
}

func defaultPriorities() []GroupDefConfig {
	return []GroupDefConfig{
		{ID: "critical", Name: "Critical", Color: "#e03131"},
		{ID: "high", Name: "High", Color: "#f08c00"},
		{ID: "medium", Name: "Medium", Color: "#1c7ed6"},
		{ID: "low", Name: "Low", Color: "#868e96"},
	}
}

func defaultPhases() []GroupDefConfig {
	return []GroupDefConfig{
		{ID: "planning", Name: "Planning", Color: "#7048e8"},
		{ID: "development", Name: "Development", Color: "#1098ad"},
		{ID: "testing", Name: "Testing", Color: "#f59f00"},
		{ID: "deployment", Name: "Deployment", Color: "#37b24d"},
	}
}

func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Board: BoardConfig{
			ProjectID:  "demo",
			GroupBy:    string(domain.GroupByStatus),
			Statuses:   defaultStatuses(),
			Priorities: defaultPriorities(),
			Phases:     defaultPhases(),
		},
		Sync: SyncConfig{
			StreamPath:     "/events/stream",
			PendingEditTTL: "5s",
			SweepInterval:  "1s",
			FlushInterval:  "2s",
			RequestTimeout: "10s",
		},
		Drag: DragConfig{
			ActivationDistance: 8,
			TouchDelay:         "250ms",
			TouchTolerance:     5,
		},
		Server: ServerConfig{
			HTTPBind:    "127.0.0.1:5437",
			APIEndpoint: "/api/v1",
			MCPEndpoint: "/mcp",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		UI: UIConfig{
			MarkdownStyle: "dark",
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database path is required")
	}
	if strings.TrimSpace(c.Board.ProjectID) == "" {
		return errors.New("board.project_id is required")
	}
	if _, err := domain.ParseGroupingMode(c.Board.GroupBy); err != nil {
		return fmt.Errorf("invalid board.group_by: %q", c.Board.GroupBy)
	}
	lists := []struct {
		name string
		defs []GroupDefConfig
	}{
		{"board.statuses", c.Board.Statuses},
		{"board.priorities", c.Board.Priorities},
		{"board.phases", c.Board.Phases},
	}
	for _, list := range lists {
		if err := validateDefs(list.name, list.defs); err != nil {
			return err
		}
	}

	if raw := strings.TrimSpace(c.Sync.RemoteURL); raw != "" {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid sync.remote_url: %q", c.Sync.RemoteURL)
		}
	}
	if _, err := c.Sync.Timing(); err != nil {
		return err
	}

	if c.Drag.ActivationDistance < 0 {
		return errors.New("drag.activation_distance must be >= 0")
	}
	if c.Drag.TouchTolerance < 0 {
		return errors.New("drag.touch_tolerance must be >= 0")
	}
	if _, err := parseDuration("drag.touch_delay", c.Drag.TouchDelay); err != nil {
		return err
	}

	if style := strings.TrimSpace(c.UI.MarkdownStyle); style != "" && !slices.Contains(markdownStyles, style) {
		return fmt.Errorf("invalid ui.markdown_style: %q", c.UI.MarkdownStyle)
	}

	for name, endpoint := range map[string]string{
		"server.api_endpoint": c.Server.APIEndpoint,
		"server.mcp_endpoint": c.Server.MCPEndpoint,
	} {
		if endpoint != "" && !strings.HasPrefix(endpoint, "/") {
			return fmt.Errorf("%s must start with /: %q", name, endpoint)
		}
	}

	switch strings.TrimSpace(strings.ToLower(c.Logging.Level)) {
	case "", "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}
	return nil
}

func validateDefs(name string, defs []GroupDefConfig) error {
	seen := map[string]struct{}{}
	for idx, def := range defs {
		id := strings.TrimSpace(def.ID)
		if id == "" {
			return fmt.Errorf("%s[%d].id is required", name, idx)
		}
		if id == domain.UnmappedGroupID {
			return fmt.Errorf("%s[%d].id %q is reserved", name, idx, id)
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%s[%d].id is duplicated: %s", name, idx, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// Timing parses the sync durations. Blank values are zero and let callers fall back.
func (s SyncConfig) Timing() (SyncTiming, error) {
	var (
		out SyncTiming
		err error
	)
	if out.PendingEditTTL, err = parseDuration("sync.pending_edit_ttl", s.PendingEditTTL); err != nil {
		return SyncTiming{}, err
	}
	if out.SweepInterval, err = parseDuration("sync.sweep_interval", s.SweepInterval); err != nil {
		return SyncTiming{}, err
	}
	if out.FlushInterval, err = parseDuration("sync.flush_interval", s.FlushInterval); err != nil {
		return SyncTiming{}, err
	}
	if out.RequestTimeout, err = parseDuration("sync.request_timeout", s.RequestTimeout); err != nil {
		return SyncTiming{}, err
	}
	return out, nil
}

// TouchDelayDuration parses drag.touch_delay.
func (d DragConfig) TouchDelayDuration() time.Duration {
	delay, _ := parseDuration("drag.touch_delay", d.TouchDelay)
	return delay
}

func parseDuration(name, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must be >= 0: %q", name, raw)
	}
	return d, nil
}

// GroupingMode returns the validated board.group_by.
func (c Config) GroupingMode() domain.GroupingMode {
	mode, err := domain.ParseGroupingMode(c.Board.GroupBy)
	if err != nil {
		return domain.GroupByStatus
	}
	return mode
}

// Catalog converts the configured group lists into the fallback catalog used
// when a snapshot carries none.
func (c Config) Catalog() domain.Catalog {
	return domain.Catalog{
		Statuses:   toDefs(c.Board.Statuses),
		Priorities: toDefs(c.Board.Priorities),
		Phases:     toDefs(c.Board.Phases),
	}
}

func toDefs(in []GroupDefConfig) []domain.GroupDef {
	out := make([]domain.GroupDef, 0, len(in))
	for _, def := range in {
		gd, err := domain.NewGroupDef(def.ID, def.Name, def.Color)
		if err != nil {
			continue
		}
		out = append(out, gd)
	}
	return out
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
