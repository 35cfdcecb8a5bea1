// Package console draws a dashboard.Dashboard in the terminal with gocui.
package console

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/ariatop/download"
	"github.com/cenkalti/ariatop/internal/dashboard"
	"github.com/cenkalti/ariatop/internal/logger"
	"github.com/jroimartin/gocui"
	"github.com/mattn/go-runewidth"
)

const (
	viewMain    = "main"
	viewHelp    = "help"
	viewConfirm = "confirm"
	viewSort    = "sort"
	viewAdd     = "add"
)

type Config struct {
	// Tick is the period of the dashboard clock.
	Tick time.Duration
	// Keys lists the key identifiers bound to each action.
	Keys map[dashboard.Action][]string
	// Styles maps style names to "FG MODE BG" strings.
	Styles map[string]string
}

type Console struct {
	dash     *dashboard.Dashboard
	tick     time.Duration
	bindings map[any]dashboard.Action
	theme    Theme
	log      logger.Logger
}

// New validates key bindings and styles before anything touches the terminal.
func New(dash *dashboard.Dashboard, cfg Config) (*Console, error) {
	theme, err := NewTheme(cfg.Styles)
	if err != nil {
		return nil, err
	}
	c := &Console{
		dash:     dash,
		tick:     cfg.Tick,
		bindings: make(map[any]dashboard.Action),
		theme:    theme,
		log:      logger.New("console"),
	}
	if c.tick <= 0 {
		c.tick = 100 * time.Millisecond
	}
	for a, keys := range cfg.Keys {
		for _, s := range keys {
			k, err := ParseKey(s)
			if err != nil {
				return nil, fmt.Errorf("key binding %s: %w", a, err)
			}
			if prev, ok := c.bindings[k]; ok && prev != a {
				return nil, fmt.Errorf("key %q is bound to both %s and %s", s, prev, a)
			}
			c.bindings[k] = a
		}
	}
	return c, nil
}

// Run owns the terminal until the user quits or ctx is cancelled.
func (c *Console) Run(ctx context.Context) error {
	g, err := gocui.NewGui(gocui.OutputNormal)
	if err != nil {
		return err
	}
	defer g.Close()

	g.InputEsc = true
	g.SetManagerFunc(c.layout)
	// Action keys are bound to the main view so they reach the editor while URIs are typed.
	for k, a := range c.bindings {
		if err = g.SetKeybinding(viewMain, k, gocui.ModNone, c.handler(ctx, a)); err != nil {
			return err
		}
	}
	// The terminal is in raw mode, ctrl-c never becomes SIGINT. It quits from every view unless bound elsewhere.
	if a, ok := c.bindings[gocui.KeyCtrlC]; !ok || a == dashboard.Quit {
		if err = g.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone, c.handler(ctx, dashboard.Quit)); err != nil {
			return err
		}
	}
	if err = g.SetKeybinding(viewAdd, gocui.KeyEnter, gocui.ModNone, func(g *gocui.Gui, v *gocui.View) error {
		c.dash.AddDownloads(ctx, v.Buffer())
		return c.exitIfDone()
	}); err != nil {
		return err
	}
	if err = g.SetKeybinding(viewAdd, gocui.KeyEsc, gocui.ModNone, c.handler(ctx, dashboard.Cancel)); err != nil {
		return err
	}

	done := make(chan struct{})
	defer close(done)
	go c.ticker(ctx, g, done)

	c.log.Debugf("console started with %d key bindings", len(c.bindings))
	err = g.MainLoop()
	if errors.Is(err, gocui.ErrQuit) {
		err = nil
	}
	c.log.Debugln("console stopped")
	return err
}

// ticker posts clock ticks to the gui goroutine. The dashboard is only touched there.
func (c *Console) ticker(ctx context.Context, g *gocui.Gui, done chan struct{}) {
	t := time.NewTicker(c.tick)
	defer t.Stop()
	tick := func(g *gocui.Gui) error {
		c.dash.Tick(ctx)
		return c.exitIfDone()
	}
	g.Update(tick)
	for {
		select {
		case <-t.C:
			g.Update(tick)
		case <-ctx.Done():
			g.Update(tick)
			return
		case <-done:
			return
		}
	}
}

func (c *Console) handler(ctx context.Context, a dashboard.Action) func(*gocui.Gui, *gocui.View) error {
	return func(g *gocui.Gui, v *gocui.View) error {
		c.dash.HandleAction(ctx, a)
		return c.exitIfDone()
	}
}

func (c *Console) exitIfDone() error {
	if c.dash.State() == dashboard.Exiting {
		return gocui.ErrQuit
	}
	return nil
}

func (c *Console) layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()
	c.dash.Resize(maxX, maxY)
	f := c.dash.Frame()

	v, err := g.SetView(viewMain, -1, -1, maxX, maxY)
	if err != nil && err != gocui.ErrUnknownView {
		return err
	}
	v.Frame = false
	v.Clear()
	fmt.Fprint(v, render(f, maxY, c.theme))

	if err = c.overlay(g, viewHelp, helpLines(f.Help, c.theme), "Help", maxX, maxY); err != nil {
		return err
	}
	for _, m := range []struct {
		name string
		menu *dashboard.Menu
	}{{viewConfirm, f.Confirm}, {viewSort, f.SortMenu}} {
		var lines []string
		title := ""
		if m.menu != nil {
			title = m.menu.Title
			lines = menuLines(m.menu, c.theme)
		}
		if err = c.overlay(g, m.name, lines, title, maxX, maxY); err != nil {
			return err
		}
	}
	return c.input(g, f.Adding, maxX, maxY)
}

// input shows an editable line for the URIs of new downloads and gives it the focus.
// Without it the main view has the focus.
func (c *Console) input(g *gocui.Gui, show bool, maxX, maxY int) error {
	if !show {
		g.Cursor = false
		if err := g.DeleteView(viewAdd); err != nil && err != gocui.ErrUnknownView {
			return err
		}
		_, err := g.SetCurrentView(viewMain)
		return err
	}
	x0, y0 := 1, max(maxY/2-1, 0)
	x1, y1 := max(maxX-2, x0+2), y0+2
	v, err := g.SetView(viewAdd, x0, y0, x1, y1)
	switch {
	case err == gocui.ErrUnknownView:
		v.Title = "Add downloads: ENTER to add, ESC to cancel"
		v.Editable = true
	case err != nil:
		return err
	}
	g.Cursor = true
	if _, err = g.SetViewOnTop(viewAdd); err != nil {
		return err
	}
	_, err = g.SetCurrentView(viewAdd)
	return err
}

// overlay shows lines in a centered box, or removes the box when lines is nil.
func (c *Console) overlay(g *gocui.Gui, name string, lines []string, title string, maxX, maxY int) error {
	if lines == nil {
		err := g.DeleteView(name)
		if err != nil && err != gocui.ErrUnknownView {
			return err
		}
		return nil
	}
	w := runewidth.StringWidth(title) + 2
	for _, l := range lines {
		w = max(w, visibleWidth(l))
	}
	h := len(lines)
	x0 := max((maxX-w)/2-1, 0)
	y0 := max((maxY-h)/2-1, 0)
	x1, y1 := min(x0+w+1, maxX-1), min(y0+h+1, maxY-1)
	if x1 <= x0+1 || y1 <= y0+1 {
		return c.overlay(g, name, nil, "", maxX, maxY)
	}
	v, err := g.SetView(name, x0, y0, x1, y1)
	if err != nil && err != gocui.ErrUnknownView {
		return err
	}
	v.Title = title
	v.Clear()
	fmt.Fprint(v, strings.Join(lines, "\n"))
	_, err = g.SetViewOnTop(name)
	return err
}

// render returns the main view contents: header, rows, blank filler and the status line at the bottom.
func render(f dashboard.Frame, height int, t Theme) string {
	lines := make([]string, 0, height)
	lines = append(lines, renderHeader(f, t))
	for _, r := range f.Rows {
		lines = append(lines, renderRow(r, f.Width, t))
	}
	for len(lines) < height-1 {
		lines = append(lines, "")
	}
	lines = append(lines, t.paint(StyleUI, pad(f.Status, f.Width)))
	return strings.Join(lines, "\n")
}

func renderHeader(f dashboard.Frame, t Theme) string {
	var b strings.Builder
	for i, cell := range f.Header.Cells {
		style := StyleHeader
		if i == f.Header.Sorted {
			style = StyleFocusedHeader
		}
		b.WriteString(t.paint(style, cell))
	}
	if w := runewidth.StringWidth(f.Header.String()); w < f.Width {
		b.WriteString(t.paint(StyleHeader, strings.Repeat(" ", f.Width-w)))
	}
	return b.String()
}

func renderRow(r dashboard.Row, width int, t Theme) string {
	if r.Selected {
		return t.paint(StyleFocusedRow, pad(r.String(), width))
	}
	var b strings.Builder
	for i, cell := range r.Cells {
		switch {
		case i == dashboard.ColumnStatus:
			b.WriteString(t.paint(statusStyle(r.Status), cell))
		case i == dashboard.ColumnName && r.Metadata:
			b.WriteString(t.paint(StyleMetadata, cell))
		default:
			b.WriteString(cell)
		}
	}
	return b.String()
}

func statusStyle(s download.Status) string {
	switch s {
	case download.Active:
		return StyleStatusActive
	case download.Complete:
		return StyleStatusComplete
	case download.Error:
		return StyleStatusError
	case download.Paused:
		return StyleStatusPaused
	case download.Waiting:
		return StyleStatusWaiting
	}
	return ""
}

func helpLines(lines []string, t Theme) []string {
	if lines == nil {
		return nil
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		if k, text, ok := strings.Cut(l, ": "); ok {
			out[i] = t.paint(StyleBrightHelp, k) + ": " + text
			continue
		}
		out[i] = l
	}
	return out
}

func menuLines(m *dashboard.Menu, t Theme) []string {
	lines := make([]string, len(m.Choices))
	for i, choice := range m.Choices {
		if i == m.Selected {
			lines[i] = t.paint(StyleFocusedRow, "> "+choice)
		} else {
			lines[i] = "  " + choice
		}
	}
	return lines
}

func pad(s string, width int) string {
	return runewidth.FillRight(runewidth.Truncate(s, width, ""), width)
}

// visibleWidth is the display width of s without ANSI escapes.
func visibleWidth(s string) int {
	w := 0
	for len(s) > 0 {
		if strings.HasPrefix(s, "\x1b[") {
			if i := strings.IndexByte(s, 'm'); i >= 0 {
				s = s[i+1:]
				continue
			}
		}
		r, size := utf8.DecodeRuneInString(s)
		w += runewidth.RuneWidth(r)
		s = s[size:]
	}
	return w
}
