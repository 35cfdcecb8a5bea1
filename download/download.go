// Package download converts the structs reported by the daemon into typed values with derived fields.
// Everything here is pure: the same input always yields the same value.
package download

import (
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/ariatop/internal/rpctypes"
)

type Status int

const (
	Waiting Status = iota
	Active
	Paused
	Error
	Complete
	Removed
)

var statusNames = [...]string{"waiting", "active", "paused", "error", "complete", "removed"}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

// ParseStatus returns the status named s as reported by the daemon.
func ParseStatus(s string) (Status, error) {
	for i, name := range statusNames {
		if name == s {
			return Status(i), nil
		}
	}
	return 0, fmt.Errorf("unknown status: %q", s)
}

// Stopped reports whether the daemon keeps only the result of the download.
func (s Status) Stopped() bool {
	return s == Error || s == Complete || s == Removed
}

const metadataPrefix = "[METADATA]"

type Download struct {
	GID             string
	Status          Status
	TotalLength     int64
	CompletedLength int64
	UploadLength    int64
	VerifiedLength  int64
	DownloadSpeed   int64
	UploadSpeed     int64
	Connections     int
	NumSeeders      int
	Seeder          bool
	PieceLength     int64
	NumPieces       int
	InfoHash        string
	Dir             string
	Files           []File

	// BitTorrent is nil unless the download is a BitTorrent transfer.
	BitTorrent *BitTorrent

	// Set only when Status is Error.
	ErrorCode    string
	ErrorMessage string

	// GID references. Resolve them with a Snapshot.
	Following  string
	FollowedBy []string
	BelongsTo  string

	// Options is nil unless fetched separately.
	Options *Options

	name string
}

type File struct {
	Index           int
	Path            string
	Length          int64
	CompletedLength int64
	Selected        bool
	URIs            []URI
}

type URI struct {
	URI    string
	Status string
}

type BitTorrent struct {
	InfoHash     string
	Name         string
	AnnounceList [][]string
	Mode         string
	Comment      string
	CreationDate time.Time
}

// New builds a Download from the daemon's status struct.
// Keys missing from s are left at their zero value.
func New(s rpctypes.Status) (*Download, error) {
	var p parser
	d := &Download{
		GID:             s.GID,
		TotalLength:     p.int64("totalLength", s.TotalLength),
		CompletedLength: p.int64("completedLength", s.CompletedLength),
		UploadLength:    p.int64("uploadLength", s.UploadLength),
		VerifiedLength:  p.int64("verifiedLength", s.VerifiedLength),
		DownloadSpeed:   p.int64("downloadSpeed", s.DownloadSpeed),
		UploadSpeed:     p.int64("uploadSpeed", s.UploadSpeed),
		Connections:     int(p.int64("connections", s.Connections)),
		NumSeeders:      int(p.int64("numSeeders", s.NumSeeders)),
		Seeder:          s.Seeder == "true",
		PieceLength:     p.int64("pieceLength", s.PieceLength),
		NumPieces:       int(p.int64("numPieces", s.NumPieces)),
		InfoHash:        s.InfoHash,
		Dir:             s.Dir,
		Following:       s.Following,
		FollowedBy:      s.FollowedBy,
		BelongsTo:       s.BelongsTo,
	}
	if s.Status != "" {
		status, err := ParseStatus(s.Status)
		if err != nil {
			return nil, fmt.Errorf("download %s: %w", s.GID, err)
		}
		d.Status = status
	}
	if d.Status == Error {
		d.ErrorCode = s.ErrorCode
		d.ErrorMessage = s.ErrorMessage
	}
	for _, f := range s.Files {
		d.Files = append(d.Files, p.file(f))
	}
	if s.BitTorrent != nil {
		d.BitTorrent = newBitTorrent(s.InfoHash, s.BitTorrent)
	}
	if p.err != nil {
		return nil, fmt.Errorf("download %s: %w", s.GID, p.err)
	}
	d.name = d.deriveName()
	return d, nil
}

// parser keeps the first conversion error so fields can be parsed in a single expression.
type parser struct {
	err error
}

func (p *parser) int64(key, s string) int64 {
	if s == "" || p.err != nil {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		p.err = fmt.Errorf("invalid %s: %w", key, err)
	}
	return n
}

func (p *parser) file(f rpctypes.File) File {
	file := File{
		Index:           int(p.int64("index", f.Index)),
		Path:            f.Path,
		Length:          p.int64("length", f.Length),
		CompletedLength: p.int64("completedLength", f.CompletedLength),
		Selected:        f.Selected == "true",
	}
	for _, u := range f.URIs {
		file.URIs = append(file.URIs, URI{URI: u.URI, Status: u.Status})
	}
	return file
}

func newBitTorrent(infoHash string, bt *rpctypes.BitTorrent) *BitTorrent {
	b := &BitTorrent{
		InfoHash:     infoHash,
		AnnounceList: bt.AnnounceList,
		Mode:         bt.Mode,
		Comment:      bt.Comment,
	}
	if bt.Info != nil {
		b.Name = bt.Info.Name
	}
	if bt.CreationDate != nil {
		b.CreationDate = bt.CreationDate.Time
	}
	return b
}

func (d *Download) deriveName() string {
	if d.BitTorrent != nil && d.BitTorrent.Name != "" {
		return d.BitTorrent.Name
	}
	if len(d.Files) == 0 {
		return ""
	}
	f := d.Files[0]
	if f.IsMetadata() {
		return f.Path
	}
	dir := strings.TrimRight(d.Dir, "/")
	if f.Path != "" && strings.HasPrefix(f.Path, dir+"/") {
		rel := strings.TrimLeft(f.Path[len(dir)+1:], "/")
		if i := strings.IndexByte(rel, '/'); i >= 0 {
			return rel[:i]
		}
		return rel
	}
	if len(f.URIs) > 0 {
		return path.Base(strings.TrimRight(f.URIs[0].URI, "/"))
	}
	return f.Path
}

// Name is the torrent name, the file name for single file downloads
// or the top level directory for multi file downloads.
func (d *Download) Name() string { return d.name }

// IsMetadata reports whether the download only fetches torrent metadata for a magnet link.
func (d *Download) IsMetadata() bool {
	return len(d.Files) > 0 && d.Files[0].IsMetadata()
}

func (d *Download) IsTorrent() bool { return d.BitTorrent != nil }

// Progress is the completed ratio in [0, 1]. It is 0 while the total length is unknown.
func (d *Download) Progress() float64 {
	if d.TotalLength <= 0 {
		return 0
	}
	p := float64(d.CompletedLength) / float64(d.TotalLength)
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}

// ETA returns the remaining time at the current download speed, in whole seconds.
// ok is false when the download speed is zero.
func (d *Download) ETA() (eta time.Duration, ok bool) {
	if d.DownloadSpeed <= 0 {
		return 0, false
	}
	remaining := d.TotalLength - d.CompletedLength
	if remaining < 0 {
		remaining = 0
	}
	return time.Duration(remaining/d.DownloadSpeed) * time.Second, true
}

// FirstURI returns the first source URI of the first file.
func (d *Download) FirstURI() string {
	for _, f := range d.Files {
		if len(f.URIs) > 0 {
			return f.URIs[0].URI
		}
	}
	return ""
}

func (d *Download) String() string {
	return d.GID + " " + d.Name()
}

func (f File) IsMetadata() bool {
	return strings.HasPrefix(f.Path, metadataPrefix)
}

// Progress of the file in [0, 1].
func (f File) Progress() float64 {
	if f.Length <= 0 {
		return 0
	}
	return min(float64(f.CompletedLength)/float64(f.Length), 1)
}
