package download

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// FormatBytes formats n with IEC units, e.g. "1.5 MiB".
func FormatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}

func FormatSpeed(n int64) string {
	return FormatBytes(n) + "/s"
}

// FormatProgress formats a ratio as a percentage with two decimals.
func FormatProgress(p float64) string {
	return fmt.Sprintf("%.2f%%", p*100)
}

// FormatDuration formats d like "1d2h3m4s".
// A positive precision keeps only that many of the largest units.
func FormatDuration(d time.Duration, precision int) string {
	secs := int64(d / time.Second)
	if secs < 0 {
		secs = 0
	}
	var pieces []string
	if days := secs / 86400; days > 0 {
		pieces = append(pieces, fmt.Sprintf("%dd", days))
		secs -= days * 86400
	}
	if hours := secs / 3600; hours > 0 {
		pieces = append(pieces, fmt.Sprintf("%dh", hours))
		secs -= hours * 3600
	}
	if minutes := secs / 60; minutes > 0 {
		pieces = append(pieces, fmt.Sprintf("%dm", minutes))
		secs -= minutes * 60
	}
	if secs > 0 || len(pieces) == 0 {
		pieces = append(pieces, fmt.Sprintf("%ds", secs))
	}
	if precision > 0 && precision < len(pieces) {
		pieces = pieces[:precision]
	}
	return strings.Join(pieces, "")
}

// FormatETA returns "-" when the ETA is unknown.
func FormatETA(d *Download, precision int) string {
	eta, ok := d.ETA()
	if !ok {
		return "-"
	}
	return FormatDuration(eta, precision)
}
