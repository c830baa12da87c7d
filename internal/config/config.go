// Package config loads board settings from a TOML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"time"

	"github.com/BurntSushi/toml"

	"CollabBoard/internal/net"
	"CollabBoard/internal/render"
)

// DefaultPort is the hub port used when none is configured.
const DefaultPort = 8888

var ErrInvalid = errors.New("invalid config")

// Config holds everything needed to start a board.
type Config struct {
	Room  string `toml:"room"`
	Name  string `toml:"name"`
	Color string `toml:"color"`
	Port  int    `toml:"port"`
	Theme string `toml:"theme"`
	Grid  string `toml:"grid"`

	CaptureWindow     time.Duration `toml:"capture_window"`
	HeartbeatInterval time.Duration `toml:"heartbeat_interval"`
	PresenceTimeout   time.Duration `toml:"presence_timeout"`

	// Discover browses the local network for boards instead of hosting.
	Discover bool `toml:"discover"`
}

// Default returns the built-in settings. Name and Color are left empty and
// filled with a random identity at startup.
func Default() Config {
	return Config{
		Room:              net.DefaultRoom,
		Port:              DefaultPort,
		Theme:             "light",
		Grid:              "lines",
		CaptureWindow:     500 * time.Millisecond,
		HeartbeatInterval: 2 * time.Second,
		PresenceTimeout:   10 * time.Second,
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	md, err := toml.DecodeFile(path, &cfg)
	if errors.Is(err, fs.ErrNotExist) {
		log.Printf("[CONFIG] %s not found, using defaults", path)
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		log.Printf("[CONFIG] Ignoring unknown keys in %s: %v", path, undecoded)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first setting that cannot be used.
func (c Config) Validate() error {
	if _, err := net.RoomFromPath(net.RoomPrefix + c.Room); err != nil {
		return fmt.Errorf("%w: room %q: %v", ErrInvalid, c.Room, err)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalid, c.Port)
	}
	if c.Color != "" {
		if _, ok := render.ParseColor(c.Color); !ok {
			return fmt.Errorf("%w: color %q", ErrInvalid, c.Color)
		}
	}
	if _, ok := render.ParseTheme(c.Theme); !ok {
		return fmt.Errorf("%w: theme %q", ErrInvalid, c.Theme)
	}
	if _, ok := render.ParseGridMode(c.Grid); !ok {
		return fmt.Errorf("%w: grid %q", ErrInvalid, c.Grid)
	}
	if c.CaptureWindow < 0 {
		return fmt.Errorf("%w: capture_window must not be negative", ErrInvalid)
	}
	if c.HeartbeatInterval <= 0 || c.PresenceTimeout <= c.HeartbeatInterval {
		return fmt.Errorf("%w: presence_timeout (%s) must exceed heartbeat_interval (%s)",
			ErrInvalid, c.PresenceTimeout, c.HeartbeatInterval)
	}
	return nil
}

// ThemeMode returns the parsed theme.
func (c Config) ThemeMode() render.Theme {
	t, _ := render.ParseTheme(c.Theme)
	return t
}

// GridMode returns the parsed grid mode.
func (c Config) GridMode() render.GridMode {
	g, _ := render.ParseGridMode(c.Grid)
	return g
}

