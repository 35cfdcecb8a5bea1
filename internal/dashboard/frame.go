package dashboard

import (
	"fmt"
	"strings"

	"github.com/cenkalti/ariatop/download"
	"github.com/mattn/go-runewidth"
)

// Frame is everything a front end needs to draw one screen.
type Frame struct {
	Width  int
	Header Line
	Rows   []Row
	Status string

	Disconnected bool
	Message      string

	// Help is non-nil while the help overlay is shown.
	Help []string
	// Confirm is non-nil while the remove confirmation is shown.
	Confirm *Menu
	// SortMenu is non-nil while the sort column choice is shown.
	SortMenu *Menu
	// Adding is set while URIs of new downloads are being typed.
	Adding bool
}

// Line is a table line split in column cells, horizontal scroll applied.
type Line struct {
	Cells []string
	// Sorted is the index of the sort column.
	Sorted int
}

func (l Line) String() string { return strings.Join(l.Cells, "") }

type Row struct {
	Line
	GID      string
	Status   download.Status
	Metadata bool
	Selected bool
}

// Menu is a box of choices, one of them selected.
type Menu struct {
	Title    string
	Choices  []string
	Selected int
}

// Frame renders the current state. It never calls the backend.
func (d *Dashboard) Frame() Frame {
	f := Frame{
		Width:        d.width,
		Header:       Line{Cells: scroll(cells(headerTexts(), d.width), d.xScroll), Sorted: d.sortColumn},
		Disconnected: d.disconnected,
		Message:      d.message,
	}
	end := min(d.offset+d.visibleRows(), len(d.rows))
	for i := d.offset; i < end; i++ {
		dl := d.rows[i]
		f.Rows = append(f.Rows, Row{
			Line:     Line{Cells: scroll(cells(rowTexts(dl), d.width), d.xScroll), Sorted: d.sortColumn},
			GID:      dl.GID,
			Status:   dl.Status,
			Metadata: dl.IsMetadata(),
			Selected: i == d.cursor,
		})
	}
	f.Status = d.statusLine()
	if d.help {
		f.Help = d.helpLines()
	}
	if d.state == Confirming {
		f.Confirm = &Menu{
			Title:    "Remove " + d.confirmTarget.GID + "?",
			Choices:  removeChoices,
			Selected: d.confirmChoice,
		}
	}
	if d.state == SelectingSort {
		f.SortMenu = &Menu{
			Title:    "Select sort",
			Choices:  headerTexts(),
			Selected: d.sortChoice,
		}
	}
	f.Adding = d.state == Adding
	return f
}

// statusLine puts the indicator and the message first; truncation cuts the stats.
func (d *Dashboard) statusLine() string {
	var parts []string
	if d.disconnected {
		parts = append(parts, "DISCONNECTED")
	}
	if d.message != "" {
		parts = append(parts, d.message)
	}
	if s := d.snapshot; s != nil {
		parts = append(parts,
			fmt.Sprintf("DL %s UL %s", download.FormatSpeed(s.Stats.DownloadSpeed), download.FormatSpeed(s.Stats.UploadSpeed)),
			fmt.Sprintf("%d active %d waiting %d stopped", s.Stats.NumActive, s.Stats.NumWaiting, s.Stats.NumStopped))
	}
	filter := "all"
	if d.filter != nil {
		filter = d.filter.String()
	}
	order := "asc"
	if d.reverse {
		order = "desc"
	}
	parts = append(parts, "filter: "+filter, "sort: "+columns[d.sortColumn].header+" "+order)
	return runewidth.Truncate(strings.Join(parts, " | "), d.width, "")
}

func (d *Dashboard) helpLines() []string {
	lines := []string{"Keys:", ""}
	for _, h := range helpLines {
		keys := strings.Join(d.config.KeyNames[h.action], " ")
		lines = append(lines, fmt.Sprintf("%12s: %s", keys, h.text))
	}
	return lines
}
