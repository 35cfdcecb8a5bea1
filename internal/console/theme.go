package console

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// Style names used by the console.
const (
	StyleUI             = "UI"
	StyleBrightHelp     = "BRIGHT_HELP"
	StyleFocusedHeader  = "FOCUSED_HEADER"
	StyleFocusedRow     = "FOCUSED_ROW"
	StyleHeader         = "HEADER"
	StyleMetadata       = "METADATA"
	StyleStatusActive   = "STATUS_ACTIVE"
	StyleStatusComplete = "STATUS_COMPLETE"
	StyleStatusError    = "STATUS_ERROR"
	StyleStatusPaused   = "STATUS_PAUSED"
	StyleStatusWaiting  = "STATUS_WAITING"
)

var (
	foregrounds = map[string]color.Attribute{
		"BLACK":   color.FgBlack,
		"RED":     color.FgRed,
		"GREEN":   color.FgGreen,
		"YELLOW":  color.FgYellow,
		"BLUE":    color.FgBlue,
		"MAGENTA": color.FgMagenta,
		"CYAN":    color.FgCyan,
		"WHITE":   color.FgWhite,
	}
	backgrounds = map[string]color.Attribute{
		"BLACK":   color.BgBlack,
		"RED":     color.BgRed,
		"GREEN":   color.BgGreen,
		"YELLOW":  color.BgYellow,
		"BLUE":    color.BgBlue,
		"MAGENTA": color.BgMagenta,
		"CYAN":    color.BgCyan,
		"WHITE":   color.BgWhite,
	}
	modes = map[string]color.Attribute{
		"BOLD":      color.Bold,
		"UNDERLINE": color.Underline,
		"REVERSE":   color.ReverseVideo,
	}
)

// ParseStyle parses a style like "CYAN BOLD DEFAULT" (foreground, mode, background).
// "DEFAULT NORMAL DEFAULT" returns a nil color.
func ParseStyle(s string) (*color.Color, error) {
	fields := strings.Fields(strings.ToUpper(s))
	if len(fields) != 3 {
		return nil, fmt.Errorf("invalid style %q: expected \"FG MODE BG\"", s)
	}
	var attrs []color.Attribute
	if fields[0] != "DEFAULT" {
		a, ok := foregrounds[fields[0]]
		if !ok {
			return nil, fmt.Errorf("invalid style %q: unknown color %s", s, fields[0])
		}
		attrs = append(attrs, a)
	}
	if fields[1] != "NORMAL" {
		a, ok := modes[fields[1]]
		if !ok {
			return nil, fmt.Errorf("invalid style %q: unknown mode %s", s, fields[1])
		}
		attrs = append(attrs, a)
	}
	if fields[2] != "DEFAULT" {
		a, ok := backgrounds[fields[2]]
		if !ok {
			return nil, fmt.Errorf("invalid style %q: unknown color %s", s, fields[2])
		}
		attrs = append(attrs, a)
	}
	if len(attrs) == 0 {
		return nil, nil
	}
	c := color.New(attrs...)
	// The terminal is owned by gocui, which interprets the escapes itself.
	c.EnableColor()
	return c, nil
}

// Theme maps style names to colors. Missing styles render as plain text.
type Theme map[string]*color.Color

// NewTheme parses all styles in m.
func NewTheme(m map[string]string) (Theme, error) {
	t := make(Theme, len(m))
	for name, s := range m {
		c, err := ParseStyle(s)
		if err != nil {
			return nil, fmt.Errorf("style %s: %w", name, err)
		}
		t[name] = c
	}
	return t, nil
}

func (t Theme) paint(style, s string) string {
	c := t[style]
	if c == nil || s == "" {
		return s
	}
	return c.Sprint(s)
}
