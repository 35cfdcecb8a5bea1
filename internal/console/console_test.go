package console

import (
	"strings"
	"testing"

	"github.com/cenkalti/ariatop/download"
	"github.com/cenkalti/ariatop/internal/dashboard"
	"github.com/jroimartin/gocui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKey(t *testing.T) {
	cases := []struct {
		in   string
		want any
	}{
		{"q", 'q'},
		{"J", 'J'},
		{"\\", '\\'},
		{"F1", gocui.KeyF1},
		{"f10", gocui.KeyF10},
		{"up", gocui.KeyArrowUp},
		{"DOWN", gocui.KeyArrowDown},
		{"space", gocui.KeySpace},
		{" ", gocui.KeySpace},
		{"esc", gocui.KeyEsc},
		{"del", gocui.KeyDelete},
		{"enter", gocui.KeyEnter},
		{"home", gocui.KeyHome},
		{"ctrl_c", gocui.KeyCtrlC},
	}
	for _, c := range cases {
		k, err := ParseKey(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, k, c.in)
	}
	for _, s := range []string{"", "F13", "ctrl+x"} {
		_, err := ParseKey(s)
		assert.Error(t, err, s)
	}
}

func TestParseStyle(t *testing.T) {
	c, err := ParseStyle("CYAN BOLD DEFAULT")
	require.NoError(t, err)
	assert.Equal(t, "\x1b[36;1mx\x1b[0m", c.Sprint("x"))

	c, err = ParseStyle("black normal green")
	require.NoError(t, err)
	assert.Equal(t, "\x1b[30;42mx\x1b[0m", c.Sprint("x"))

	c, err = ParseStyle("DEFAULT NORMAL DEFAULT")
	require.NoError(t, err)
	assert.Nil(t, c)

	for _, s := range []string{"CYAN", "PINK NORMAL DEFAULT", "CYAN BLINK DEFAULT", "CYAN NORMAL ORANGE"} {
		_, err := ParseStyle(s)
		assert.Error(t, err, s)
	}
}

func TestNewRejectsConflictingKeys(t *testing.T) {
	d := dashboard.New(nil, dashboard.DefaultConfig)
	_, err := New(d, Config{Keys: map[dashboard.Action][]string{
		dashboard.Quit:   {"q"},
		dashboard.MoveUp: {"q"},
	}})
	assert.Error(t, err)

	_, err = New(d, Config{Keys: map[dashboard.Action][]string{dashboard.Quit: {"nope"}}})
	assert.Error(t, err)

	_, err = New(d, Config{Styles: map[string]string{StyleUI: "WHITE"}})
	assert.Error(t, err)

	c, err := New(d, Config{Keys: map[dashboard.Action][]string{dashboard.Quit: {"q", "F10", "ctrl_c"}}})
	require.NoError(t, err)
	assert.Equal(t, dashboard.Quit, c.bindings['q'])
	assert.Equal(t, dashboard.Quit, c.bindings[gocui.KeyF10])
	assert.Equal(t, dashboard.Quit, c.bindings[gocui.KeyCtrlC])
}

func testFrame() dashboard.Frame {
	return dashboard.Frame{
		Width:  20,
		Header: dashboard.Line{Cells: []string{"GID ", "NAME"}, Sorted: 1},
		Rows: []dashboard.Row{
			{Line: dashboard.Line{Cells: []string{"0001 ", "a"}}, GID: "0001", Status: download.Active, Selected: true},
			{Line: dashboard.Line{Cells: []string{"0002 ", "b"}}, GID: "0002", Status: download.Error},
		},
		Status: "DL 0 B/s",
	}
}

func TestRenderPlain(t *testing.T) {
	out := render(testFrame(), 6, Theme{})
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "GID NAME            ", lines[0])
	assert.Equal(t, "0001 a              ", lines[1])
	assert.Equal(t, "0002 b", lines[2])
	assert.Equal(t, "", lines[3])
	assert.Equal(t, "DL 0 B/s            ", lines[5])
}

func TestRenderStyled(t *testing.T) {
	theme, err := NewTheme(map[string]string{
		StyleHeader:        "BLACK NORMAL GREEN",
		StyleFocusedHeader: "BLACK NORMAL CYAN",
		StyleFocusedRow:    "BLACK NORMAL CYAN",
		StyleStatusError:   "RED BOLD DEFAULT",
	})
	require.NoError(t, err)
	f := testFrame()
	f.Rows[1].Cells = []string{"0002 ", "error ", "b"}
	lines := strings.Split(render(f, 4, theme), "\n")

	assert.Equal(t, "\x1b[30;42mGID \x1b[0m\x1b[30;46mNAME\x1b[0m\x1b[30;42m            \x1b[0m", lines[0])
	assert.Equal(t, "\x1b[30;46m0001 a              \x1b[0m", lines[1])
	assert.Equal(t, "0002 \x1b[31;1merror \x1b[0mb", lines[2])
}

func TestOverlayLines(t *testing.T) {
	theme, err := NewTheme(map[string]string{StyleBrightHelp: "CYAN BOLD DEFAULT"})
	require.NoError(t, err)
	help := helpLines([]string{"Keys:", "", "           q: quit"}, theme)
	assert.Equal(t, []string{"Keys:", "", "\x1b[36;1m           q\x1b[0m: quit"}, help)
	assert.Equal(t, 18, visibleWidth(help[2]))
	assert.Nil(t, helpLines(nil, theme))

	lines := menuLines(&dashboard.Menu{Choices: []string{"Remove", "Force remove"}, Selected: 1}, Theme{})
	assert.Equal(t, []string{"  Remove", "> Force remove"}, lines)
}
