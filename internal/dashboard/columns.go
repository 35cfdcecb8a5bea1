package dashboard

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/cenkalti/ariatop/download"
	"github.com/mattn/go-runewidth"
)

type align int

const (
	alignLeft align = iota
	alignRight
)

type column struct {
	header string
	width  int // 0 fills the remaining width
	align  align
	text   func(*download.Download) string
	less   func(a, b *download.Download) bool
}

// Column indexes.
const (
	ColumnGID = iota
	ColumnStatus
	ColumnProgress
	ColumnSize
	ColumnDownSpeed
	ColumnUpSpeed
	ColumnETA
	ColumnName
)

var columns = []column{
	{
		header: "GID", width: 16, align: alignRight,
		text: func(d *download.Download) string { return d.GID },
		less: func(a, b *download.Download) bool { return a.GID < b.GID },
	},
	{
		header: "STATUS", width: 9, align: alignLeft,
		text: func(d *download.Download) string { return d.Status.String() },
		less: func(a, b *download.Download) bool { return a.Status.String() < b.Status.String() },
	},
	{
		header: "PROGRESS", width: 8, align: alignRight,
		text: func(d *download.Download) string { return download.FormatProgress(d.Progress()) },
		less: func(a, b *download.Download) bool { return a.Progress() < b.Progress() },
	},
	{
		header: "SIZE", width: 11, align: alignRight,
		text: func(d *download.Download) string { return download.FormatBytes(d.TotalLength) },
		less: func(a, b *download.Download) bool { return a.TotalLength < b.TotalLength },
	},
	{
		header: "DOWN_SPEED", width: 13, align: alignRight,
		text: func(d *download.Download) string { return download.FormatSpeed(d.DownloadSpeed) },
		less: func(a, b *download.Download) bool { return a.DownloadSpeed < b.DownloadSpeed },
	},
	{
		header: "UP_SPEED", width: 13, align: alignRight,
		text: func(d *download.Download) string { return download.FormatSpeed(d.UploadSpeed) },
		less: func(a, b *download.Download) bool { return a.UploadSpeed < b.UploadSpeed },
	},
	{
		header: "ETA", width: 8, align: alignRight,
		text: func(d *download.Download) string { return download.FormatETA(d, 2) },
		less: func(a, b *download.Download) bool { return etaKey(a) < etaKey(b) },
	},
	{
		header: "NAME", width: 0, align: alignLeft,
		text: func(d *download.Download) string { return printable(d.Name()) },
		less: func(a, b *download.Download) bool { return a.Name() < b.Name() },
	},
}

// printable replaces characters that would move the terminal cursor.
func printable(s string) string {
	return strings.Map(func(r rune) rune {
		if !unicode.IsPrint(r) {
			return unicode.ReplacementChar
		}
		return r
	}, s)
}

// etaKey sorts unknown ETAs last.
func etaKey(d *download.Download) float64 {
	eta, ok := d.ETA()
	if !ok {
		return math.Inf(1)
	}
	return eta.Seconds()
}

// sortDownloads sorts in place. Equal rows keep the daemon's order.
func sortDownloads(rows []*download.Download, col int, reverse bool) {
	less := columns[col].less
	sort.SliceStable(rows, func(i, j int) bool {
		if reverse {
			return less(rows[j], rows[i])
		}
		return less(rows[i], rows[j])
	})
}

// fixedWidth is the width of all columns before NAME, separators included.
func fixedWidth() int {
	w := 0
	for _, c := range columns {
		if c.width > 0 {
			w += c.width + 1
		}
	}
	return w
}

// nameWidth is the width left for the NAME column on a screen of given width.
func nameWidth(screenWidth int) int {
	return max(screenWidth-fixedWidth(), len(columns[ColumnName].header))
}

func fit(s string, width int, a align) string {
	if runewidth.StringWidth(s) > width {
		s = runewidth.Truncate(s, width, "")
	}
	if a == alignRight {
		return runewidth.FillLeft(s, width)
	}
	return runewidth.FillRight(s, width)
}

// cells lays out one line. Every cell except the last is followed by a space.
func cells(texts []string, screenWidth int) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		w := c.width
		if w == 0 {
			w = nameWidth(screenWidth)
		}
		out[i] = fit(texts[i], w, c.align)
		if i < len(columns)-1 {
			out[i] += " "
		}
	}
	return out
}

func headerTexts() []string {
	texts := make([]string, len(columns))
	for i, c := range columns {
		texts[i] = c.header
	}
	return texts
}

func rowTexts(d *download.Download) []string {
	texts := make([]string, len(columns))
	for i, c := range columns {
		texts[i] = c.text(d)
	}
	return texts
}

// scroll drops n display columns from the left of the line formed by cs.
// Cells keep their positions so callers can still tell columns apart.
func scroll(cs []string, n int) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		if n <= 0 {
			out[i] = c
			continue
		}
		w := runewidth.StringWidth(c)
		if w <= n {
			n -= w
			continue
		}
		var b strings.Builder
		for _, r := range c {
			if n > 0 {
				n -= runewidth.RuneWidth(r)
				continue
			}
			b.WriteRune(r)
		}
		out[i] = b.String()
		n = 0
	}
	return out
}
