package download

import (
	"fmt"

	"github.com/cenkalti/ariatop/internal/rpctypes"
)

// Stats are the global counters of the daemon.
type Stats struct {
	DownloadSpeed   int64
	UploadSpeed     int64
	NumActive       int
	NumWaiting      int
	NumStopped      int
	NumStoppedTotal int
}

func NewStats(s rpctypes.GlobalStat) (Stats, error) {
	var p parser
	stats := Stats{
		DownloadSpeed:   p.int64("downloadSpeed", s.DownloadSpeed),
		UploadSpeed:     p.int64("uploadSpeed", s.UploadSpeed),
		NumActive:       int(p.int64("numActive", s.NumActive)),
		NumWaiting:      int(p.int64("numWaiting", s.NumWaiting)),
		NumStopped:      int(p.int64("numStopped", s.NumStopped)),
		NumStoppedTotal: int(p.int64("numStoppedTotal", s.NumStoppedTotal)),
	}
	if p.err != nil {
		return Stats{}, fmt.Errorf("global stat: %w", p.err)
	}
	return stats, nil
}
