package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cenkalti/ariatop/internal/dashboard"
	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	name := filepath.Join(t.TempDir(), "ariatop.yaml")
	require.NoError(t, os.WriteFile(name, []byte(content), 0o600))
	return name
}

func TestMissingFileGivesDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost", c.Host)
	assert.Equal(t, 6800, c.Port)
	assert.Equal(t, 60*time.Second, c.Timeout)
	assert.Equal(t, 100*time.Millisecond, c.Dashboard.Tick)
	assert.Equal(t, time.Second, c.Dashboard.RefreshInterval)
	assert.Equal(t, Keys{"F1", "?"}, c.KeyBindings["HELP"])
	assert.Equal(t, "RED BOLD DEFAULT", c.Colors["STATUS_ERROR"])
	assert.NotContains(t, c.LogFile, "~")

	keys, err := c.Keys()
	require.NoError(t, err)
	assert.Len(t, keys, len(dashboard.Actions()))
	assert.Equal(t, []string{"space"}, keys[dashboard.TogglePause])
	assert.Equal(t, []string{"n", "<"}, keys[dashboard.PreviousSort])
	assert.Contains(t, keys[dashboard.Quit], "ctrl_c")
}

func TestFileOverridesDefaults(t *testing.T) {
	name := writeFile(t, `
host: https://seedbox
port: 6801
secret: abc
timeout: 5s
dashboard:
  refresh_interval: 2s
key_bindings:
  QUIT: x
  HELP: [h, F1]
colors:
  UI: CYAN NORMAL DEFAULT
`)
	c, err := Load(name)
	require.NoError(t, err)
	assert.Equal(t, "https://seedbox", c.Host)
	assert.Equal(t, 6801, c.Port)
	assert.Equal(t, "abc", c.Secret)
	assert.Equal(t, 5*time.Second, c.Timeout)
	assert.Equal(t, 2*time.Second, c.Dashboard.RefreshInterval)
	assert.Equal(t, 100*time.Millisecond, c.Dashboard.Tick)

	// Listed actions are replaced, the rest keep defaults.
	assert.Equal(t, Keys{"x"}, c.KeyBindings["QUIT"])
	assert.Equal(t, Keys{"h", "F1"}, c.KeyBindings["HELP"])
	assert.Equal(t, Keys{"down", "j"}, c.KeyBindings["MOVE_DOWN"])
	assert.Equal(t, "CYAN NORMAL DEFAULT", c.Colors["UI"])
	assert.Equal(t, "BLACK NORMAL GREEN", c.Colors["HEADER"])

	cc := c.ClientConfig()
	assert.Equal(t, "abc", cc.Secret)
	assert.Equal(t, 6801, cc.Port)
}

func TestFileReplacesDefaultKeysPerAction(t *testing.T) {
	name := writeFile(t, "key_bindings:\n  QUIT: x\n  PREVIOUS_SORT: [\"<\"]\ncolors:\n  UI: RED BOLD DEFAULT\n")
	c, err := Load(name)
	require.NoError(t, err)
	assert.Equal(t, Keys{"x"}, c.KeyBindings["QUIT"])
	assert.Equal(t, Keys{"<"}, c.KeyBindings["PREVIOUS_SORT"])
	assert.Equal(t, Keys{"F6"}, c.KeyBindings["SELECT_SORT"])
	assert.Equal(t, "RED BOLD DEFAULT", c.Colors["UI"])
	assert.Equal(t, "RED BOLD DEFAULT", c.Colors["STATUS_ERROR"])
	assert.Len(t, c.KeyBindings, len(Default().KeyBindings))
	assert.Len(t, c.Colors, len(Default().Colors))

	// Duplicates inside the file are still rejected.
	_, err = Load(writeFile(t, "colors:\n  UI: RED BOLD DEFAULT\n  UI: CYAN BOLD DEFAULT\n"))
	assert.Error(t, err)
}

func TestSetLogFileExpandsHome(t *testing.T) {
	homedir.DisableCache = true
	defer func() { homedir.DisableCache = false }()
	t.Setenv("HOME", "/home/someone")
	c := Default()
	require.NoError(t, c.SetLogFile("~/logs/ariatop.log"))
	assert.Equal(t, "/home/someone/logs/ariatop.log", c.LogFile)
	require.NoError(t, c.SetLogFile("/var/log/ariatop.log"))
	assert.Equal(t, "/var/log/ariatop.log", c.LogFile)
}

func TestDefaultsAreNotShared(t *testing.T) {
	c := Default()
	c.KeyBindings["QUIT"][0] = "z"
	c.Colors["UI"] = "RED NORMAL DEFAULT"
	d := Default()
	assert.Equal(t, Keys{"F10", "q", "ctrl_c"}, d.KeyBindings["QUIT"])
	assert.Equal(t, "WHITE BOLD DEFAULT", d.Colors["UI"])
}

func TestEnvironmentOverridesFile(t *testing.T) {
	name := writeFile(t, "port: 6801\nsecret: fromfile\n")
	t.Setenv("ARIATOP_SECRET", "fromenv")
	t.Setenv("ARIATOP_TIMEOUT", "3s")
	t.Setenv("ARIATOP_DASHBOARD_TICK", "50ms")

	c, err := Load(name)
	require.NoError(t, err)
	assert.Equal(t, "fromenv", c.Secret)
	assert.Equal(t, 6801, c.Port)
	assert.Equal(t, 3*time.Second, c.Timeout)
	assert.Equal(t, 50*time.Millisecond, c.Dashboard.Tick)
}

func TestInvalidConfig(t *testing.T) {
	cases := map[string]string{
		"unknown field":  "hots: x\n",
		"unknown action": "key_bindings:\n  SEARCH: /\n",
		"bad port":       "port: 70000\n",
		"bad timeout":    "timeout: -1s\n",
		"bad yaml":       "port: [\n",
		"zero tick":      "dashboard:\n  tick: 0s\n",
	}
	for name, content := range cases {
		_, err := Load(writeFile(t, content))
		assert.Error(t, err, name)
	}
}
