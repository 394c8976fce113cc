package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// DefaultAppName names the per-user config and data directories.
const DefaultAppName = "boardsync"

// HomeEnv puts config and data for every app name under one directory.
const HomeEnv = "BOARDSYNC_HOME"

// Paths lists the on-disk locations used by one installation.
type Paths struct {
	ConfigPath string
	DataDir    string
	DBPath     string
	LogPath    string
}

// Options selects the app name and whether dev mode appends "-dev".
type Options struct {
	AppName string
	DevMode bool
}

// baseOverride names the variables that replace the OS config and data bases.
type baseOverride struct {
	config string
	data   string
}

var osOverrides = map[string]baseOverride{
	"linux":   {config: "XDG_CONFIG_HOME", data: "XDG_DATA_HOME"},
	"windows": {config: "APPDATA", data: "LOCALAPPDATA"},
}

// DefaultPathsWithOptions resolves paths for the running OS.
func DefaultPathsWithOptions(opts Options) (Paths, error) {
	appName := strings.TrimSpace(opts.AppName)
	if appName == "" {
		appName = DefaultAppName
	}
	if opts.DevMode {
		appName += "-dev"
	}

	env := map[string]string{HomeEnv: os.Getenv(HomeEnv)}
	for _, o := range osOverrides {
		env[o.config] = os.Getenv(o.config)
		env[o.data] = os.Getenv(o.data)
	}
	if home := strings.TrimSpace(env[HomeEnv]); home != "" {
		return PathsFor(runtime.GOOS, env, home, home, appName)
	}

	configDir, dataDir, err := userBases(runtime.GOOS)
	if err != nil {
		return Paths{}, err
	}
	return PathsFor(runtime.GOOS, env, configDir, dataDir, appName)
}

// userBases returns the OS config dir and the data dir beside it. Linux keeps
// data under ~/.local/share.
func userBases(goos string) (string, string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", "", fmt.Errorf("user config dir: %w", err)
	}
	if goos != "linux" {
		return configDir, configDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", "", fmt.Errorf("user home dir: %w", err)
	}
	return configDir, filepath.Join(home, ".local", "share"), nil
}

// PathsFor computes paths from explicit inputs so every OS branch is testable.
// HomeEnv in env wins over the per-OS overrides.
func PathsFor(goos string, env map[string]string, userConfigDir, userDataDir, appName string) (Paths, error) {
	if userConfigDir == "" || userDataDir == "" {
		return Paths{}, errors.New("empty base dirs")
	}
	if appName = strings.TrimSpace(appName); appName == "" {
		return Paths{}, errors.New("empty app name")
	}

	configBase, dataBase := userConfigDir, userDataDir
	if home := strings.TrimSpace(env[HomeEnv]); home != "" {
		configBase, dataBase = home, home
	} else if o, ok := osOverrides[goos]; ok {
		if v := env[o.config]; v != "" {
			configBase = v
		}
		if v := env[o.data]; v != "" {
			dataBase = v
		}
	}

	dataDir := filepath.Join(dataBase, appName)
	return Paths{
		ConfigPath: filepath.Join(configBase, appName, "config.toml"),
		DataDir:    dataDir,
		DBPath:     filepath.Join(dataDir, appName+".db"),
		LogPath:    filepath.Join(dataDir, appName+".log"),
	}, nil
}

// EnsureDataDir creates the directory holding the default database and log.
func (p Paths) EnsureDataDir() error {
	if strings.TrimSpace(p.DataDir) == "" {
		return errors.New("empty data dir")
	}
	return os.MkdirAll(p.DataDir, 0o755)
}
