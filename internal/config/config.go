// Package config loads ariatop settings from a YAML file and ARIATOP_* environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/ariatop/ariarpc"
	"github.com/cenkalti/ariatop/internal/dashboard"
	"github.com/kelseyhightower/envconfig"
	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v2"
)

const (
	DefaultFile = "~/.ariatop.yaml"
	envPrefix   = "ariatop"
)

type Config struct {
	Host    string        `yaml:"host" envconfig:"HOST"`
	Port    int           `yaml:"port" envconfig:"PORT"`
	Secret  string        `yaml:"secret" envconfig:"SECRET"`
	Timeout time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
	LogFile string        `yaml:"log_file" envconfig:"LOG_FILE"`

	Dashboard Dashboard `yaml:"dashboard" envconfig:"DASHBOARD"`

	// KeyBindings maps action names to key identifiers.
	// An action given in the file replaces all default keys of that action.
	KeyBindings map[string]Keys `yaml:"key_bindings" ignored:"true"`
	// Colors maps style names to "FG MODE BG" strings.
	Colors map[string]string `yaml:"colors" ignored:"true"`
}

type Dashboard struct {
	Tick            time.Duration `yaml:"tick" envconfig:"TICK"`
	RefreshInterval time.Duration `yaml:"refresh_interval" envconfig:"REFRESH_INTERVAL"`
	MessageDuration time.Duration `yaml:"message_duration" envconfig:"MESSAGE_DURATION"`
}

// Keys is a list of key identifiers. In YAML it may also be written as a single string.
type Keys []string

func (k *Keys) UnmarshalYAML(unmarshal func(any) error) error {
	var list []string
	if err := unmarshal(&list); err == nil {
		*k = list
		return nil
	}
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	*k = Keys{s}
	return nil
}

var defaultKeyBindings = map[string]Keys{
	"ADD_DOWNLOADS":           {"a"},
	"AUTOCLEAR":               {"c"},
	"CANCEL":                  {"esc"},
	"ENTER":                   {"enter"},
	"FILTER":                  {"F4", "\\"},
	"HELP":                    {"F1", "?"},
	"MOVE_DOWN":               {"down", "j"},
	"MOVE_DOWN_STEP":          {"J"},
	"MOVE_END":                {"end"},
	"MOVE_HOME":               {"home"},
	"MOVE_LEFT":               {"left", "h"},
	"MOVE_RIGHT":              {"right", "l"},
	"MOVE_UP":                 {"up", "k"},
	"MOVE_UP_STEP":            {"K"},
	"NEXT_SORT":               {"p", ">"},
	"PREVIOUS_SORT":           {"n", "<"},
	"PRIORITY_DOWN":           {"F8", "d", "]"},
	"PRIORITY_UP":             {"F7", "u", "["},
	"QUIT":                    {"F10", "q", "ctrl_c"},
	"REMOVE_ASK":              {"del", "F9"},
	"RETRY":                   {"r"},
	"RETRY_ALL":               {"R"},
	"REVERSE_SORT":            {"I"},
	"SELECT_SORT":             {"F6"},
	"TOGGLE_RESUME_PAUSE":     {"space"},
	"TOGGLE_RESUME_PAUSE_ALL": {"P"},
}

var defaultColors = map[string]string{
	"UI":              "WHITE BOLD DEFAULT",
	"BRIGHT_HELP":     "CYAN BOLD DEFAULT",
	"FOCUSED_HEADER":  "BLACK NORMAL CYAN",
	"FOCUSED_ROW":     "BLACK NORMAL CYAN",
	"HEADER":          "BLACK NORMAL GREEN",
	"METADATA":        "WHITE UNDERLINE DEFAULT",
	"STATUS_ACTIVE":   "CYAN NORMAL DEFAULT",
	"STATUS_COMPLETE": "GREEN NORMAL DEFAULT",
	"STATUS_ERROR":    "RED BOLD DEFAULT",
	"STATUS_PAUSED":   "YELLOW NORMAL DEFAULT",
	"STATUS_WAITING":  "WHITE BOLD DEFAULT",
}

// Default returns the built-in configuration. Every call returns fresh maps.
func Default() Config {
	c := Config{
		Host:    ariarpc.DefaultHost,
		Port:    ariarpc.DefaultPort,
		Timeout: ariarpc.DefaultTimeout,
		LogFile: "~/.ariatop.log",
		Dashboard: Dashboard{
			Tick:            100 * time.Millisecond,
			RefreshInterval: time.Second,
			MessageDuration: 5 * time.Second,
		},
		KeyBindings: make(map[string]Keys, len(defaultKeyBindings)),
		Colors:      make(map[string]string, len(defaultColors)),
	}
	for k, v := range defaultKeyBindings {
		c.KeyBindings[k] = append(Keys(nil), v...)
	}
	for k, v := range defaultColors {
		c.Colors[k] = v
	}
	return c
}

// Load reads filename on top of the defaults, then applies environment variables.
// A missing file is not an error.
func Load(filename string) (*Config, error) {
	c := Default()
	// Maps are decoded empty and merged afterwards; strict mode rejects keys already present.
	keyBindings, colors := c.KeyBindings, c.Colors
	c.KeyBindings, c.Colors = nil, nil
	filename, err := homedir.Expand(filename)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(filename)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		if err = yaml.UnmarshalStrict(b, &c); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", filename, err)
		}
	}
	for name, keys := range c.KeyBindings {
		keyBindings[name] = keys
	}
	for name, style := range c.Colors {
		colors[name] = style
	}
	c.KeyBindings, c.Colors = keyBindings, colors
	if err = envconfig.Process(envPrefix, &c); err != nil {
		return nil, fmt.Errorf("parsing environment variables: %w", err)
	}
	if err = c.SetLogFile(c.LogFile); err != nil {
		return nil, err
	}
	if err = c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// SetLogFile sets the log file, expanding a leading "~".
func (c *Config) SetLogFile(name string) error {
	name, err := homedir.Expand(name)
	if err != nil {
		return err
	}
	c.LogFile = name
	return nil
}

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("invalid timeout: %s", c.Timeout)
	}
	if c.Dashboard.Tick <= 0 || c.Dashboard.RefreshInterval <= 0 {
		return fmt.Errorf("dashboard tick and refresh interval must be positive")
	}
	_, err := c.Keys()
	return err
}

// Keys resolves key binding names to dashboard actions.
func (c *Config) Keys() (map[dashboard.Action][]string, error) {
	m := make(map[dashboard.Action][]string, len(c.KeyBindings))
	for name, keys := range c.KeyBindings {
		a, err := dashboard.ParseAction(name)
		if err != nil {
			return nil, fmt.Errorf("key_bindings: %w", err)
		}
		m[a] = keys
	}
	return m, nil
}

// ClientConfig returns the connection parameters.
func (c *Config) ClientConfig() ariarpc.Config {
	return ariarpc.Config{
		Host:    c.Host,
		Port:    c.Port,
		Secret:  c.Secret,
		Timeout: c.Timeout,
	}
}
