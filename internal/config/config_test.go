package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CollabBoard/internal/render"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "board.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, render.GridLines, cfg.GridMode())
	assert.Equal(t, render.ThemeLight, cfg.ThemeMode())
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
room = "design-review"
name = "Ada"
color = "#1971c2"
port = 9100
theme = "dark"
grid = "dots"
capture_window = "250ms"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "design-review", cfg.Room)
	assert.Equal(t, "Ada", cfg.Name)
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, render.ThemeDark, cfg.ThemeMode())
	assert.Equal(t, render.GridDots, cfg.GridMode())
	assert.Equal(t, 250*time.Millisecond, cfg.CaptureWindow)
	assert.Equal(t, 2*time.Second, cfg.HeartbeatInterval, "unset keys keep defaults")
}

func TestLoadRejectsBadValues(t *testing.T) {
	for name, body := range map[string]string{
		"room":     `room = "a/b"`,
		"port":     `port = 70000`,
		"color":    `color = "mauve-ish"`,
		"theme":    `theme = "sepia"`,
		"grid":     `grid = "hex"`,
		"liveness": `presence_timeout = "1s"`,
		"syntax":   `room = `,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, body))
			assert.Error(t, err)
		})
	}
}

func TestValidateReportsInvalid(t *testing.T) {
	cfg := Default()
	cfg.Room = ""
	assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
}
