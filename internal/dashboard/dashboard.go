// Package dashboard implements the interactive download table as a state machine independent of any terminal.
// A front end feeds it ticks, key actions and screen sizes and draws the Frame it returns.
// A Dashboard is not safe for concurrent use; all methods must be called from a single goroutine.
package dashboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/ariatop/ariarpc"
	"github.com/cenkalti/ariatop/download"
	"github.com/cenkalti/ariatop/internal/logger"
)

// Backend is the subset of the API used by the dashboard.
type Backend interface {
	Snapshot(ctx context.Context) (*download.Snapshot, error)
	Pause(ctx context.Context, gids []string, force bool) error
	Resume(ctx context.Context, gids []string) error
	PauseAll(ctx context.Context, force bool) error
	ResumeAll(ctx context.Context) error
	Remove(ctx context.Context, downloads []*download.Download, force bool) error
	Purge(ctx context.Context) error
	MoveUp(ctx context.Context, gid string) (int, error)
	MoveDown(ctx context.Context, gid string) (int, error)
	Retry(ctx context.Context, downloads []*download.Download) ([]string, error)
	AddURIs(ctx context.Context, uris []string, options map[string]string) (string, error)
}

type State int

const (
	Running State = iota
	Confirming
	SelectingSort
	Adding
	Exiting
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Confirming:
		return "confirming"
	case SelectingSort:
		return "selecting sort"
	case Adding:
		return "adding"
	case Exiting:
		return "exiting"
	}
	return "unknown"
}

type Config struct {
	// RefreshInterval is the minimum time between two scheduled refreshes.
	RefreshInterval time.Duration
	// Timeout bounds every backend call. Zero leaves it to the backend.
	Timeout time.Duration
	// MessageDuration is how long a status message stays visible.
	MessageDuration time.Duration
	// KeyNames lists the keys bound to each action for the help overlay.
	KeyNames map[Action][]string
	// Now is used instead of time.Now when set.
	Now func() time.Time
}

var DefaultConfig = Config{
	RefreshInterval: time.Second,
	MessageDuration: 5 * time.Second,
}

// Choices of the remove confirmation box.
var removeChoices = []string{"Remove", "Force remove"}

const scrollStep = 5

type Dashboard struct {
	backend Backend
	config  Config
	log     logger.Logger

	state    State
	snapshot *download.Snapshot

	// rows is the snapshot after filtering and sorting.
	rows []*download.Download

	// Selection follows a GID. cursor is the row index of that GID in rows.
	selected string
	cursor   int
	offset   int
	xScroll  int

	width, height int

	sortColumn int
	reverse    bool
	filter     *download.Status

	disconnected bool
	lastRefresh  time.Time
	forceRefresh bool

	message        string
	messageExpires time.Time

	help bool

	confirmChoice int
	confirmTarget *download.Download

	sortChoice int
}

func New(b Backend, cfg Config) *Dashboard {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultConfig.RefreshInterval
	}
	if cfg.MessageDuration <= 0 {
		cfg.MessageDuration = DefaultConfig.MessageDuration
	}
	return &Dashboard{
		backend:      b,
		config:       cfg,
		log:          logger.New("dashboard"),
		sortColumn:   ColumnProgress,
		reverse:      true,
		forceRefresh: true,
		width:        80,
		height:       24,
	}
}

func (d *Dashboard) now() time.Time {
	if d.config.Now != nil {
		return d.config.Now()
	}
	return time.Now()
}

func (d *Dashboard) State() State { return d.state }

// Selected returns the GID of the selected download or an empty string when the table is empty.
func (d *Dashboard) Selected() string { return d.selected }

// Snapshot returns the snapshot currently displayed.
func (d *Dashboard) Snapshot() *download.Snapshot { return d.snapshot }

// Disconnected reports whether the last refresh failed to reach the daemon.
func (d *Dashboard) Disconnected() bool { return d.disconnected }

// Tick refreshes the snapshot when a refresh is due.
// A cancelled ctx moves the dashboard to Exiting.
func (d *Dashboard) Tick(ctx context.Context) {
	if d.state == Exiting {
		return
	}
	if ctx.Err() != nil {
		d.state = Exiting
		return
	}
	if d.message != "" && !d.now().Before(d.messageExpires) {
		d.message = ""
	}
	if d.forceRefresh || d.now().Sub(d.lastRefresh) >= d.config.RefreshInterval {
		d.refresh(ctx)
	}
}

func (d *Dashboard) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.config.Timeout > 0 {
		return context.WithTimeout(ctx, d.config.Timeout)
	}
	return context.WithCancel(ctx)
}

func (d *Dashboard) refresh(ctx context.Context) {
	d.forceRefresh = false
	d.lastRefresh = d.now()
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()
	s, err := d.backend.Snapshot(ctx)
	switch {
	case err == nil:
		if d.disconnected {
			d.log.Info("reconnected")
		}
		d.disconnected = false
		d.snapshot = s
		d.rebuild()
	case ariarpc.IsTransport(err):
		if !d.disconnected {
			d.log.Warningln("disconnected:", err)
		}
		d.disconnected = true
	case ariarpc.IsProtocol(err):
		d.log.Errorln("unusable refresh:", err)
	default:
		d.setMessage(err.Error())
	}
}

func (d *Dashboard) setMessage(msg string) {
	d.message = msg
	d.messageExpires = d.now().Add(d.config.MessageDuration)
}

// rebuild applies filter and sort to the snapshot and restores the selection.
func (d *Dashboard) rebuild() {
	d.rows = d.rows[:0]
	if d.snapshot != nil {
		for _, dl := range d.snapshot.Downloads {
			if d.filter == nil || dl.Status == *d.filter {
				d.rows = append(d.rows, dl)
			}
		}
	}
	sortDownloads(d.rows, d.sortColumn, d.reverse)

	if len(d.rows) == 0 {
		d.cursor = 0
		d.selected = ""
		d.offset = 0
		return
	}
	found := false
	if d.selected != "" {
		for i, dl := range d.rows {
			if dl.GID == d.selected {
				d.cursor = i
				found = true
				break
			}
		}
	}
	if !found {
		d.cursor = min(max(d.cursor, 0), len(d.rows)-1)
	}
	d.selected = d.rows[d.cursor].GID
	d.clampScroll()
}

// visibleRows is the number of table rows that fit between the header and the status line.
func (d *Dashboard) visibleRows() int {
	return max(d.height-2, 1)
}

func (d *Dashboard) clampScroll() {
	n := d.visibleRows()
	if d.cursor < d.offset {
		d.offset = d.cursor
	}
	if d.cursor >= d.offset+n {
		d.offset = d.cursor - n + 1
	}
	d.offset = max(min(d.offset, len(d.rows)-n), 0)
}

// Resize sets the screen size. The selection stays visible.
func (d *Dashboard) Resize(width, height int) {
	d.width = max(width, 1)
	d.height = max(height, 1)
	d.clampScroll()
}

func (d *Dashboard) selectRow(i int) {
	if len(d.rows) == 0 {
		return
	}
	d.cursor = min(max(i, 0), len(d.rows)-1)
	d.selected = d.rows[d.cursor].GID
	d.clampScroll()
}

func (d *Dashboard) selectedDownload() *download.Download {
	if len(d.rows) == 0 {
		return nil
	}
	return d.rows[d.cursor]
}

// HandleAction applies a key action. Mutating actions call the backend once and refresh right after a success.
func (d *Dashboard) HandleAction(ctx context.Context, a Action) {
	if a == Quit {
		d.state = Exiting
		return
	}
	switch d.state {
	case Exiting:
		return
	case Confirming:
		d.handleConfirm(ctx, a)
		return
	case SelectingSort:
		d.handleSortMenu(a)
		return
	case Adding:
		if a == Cancel {
			d.state = Running
		}
		return
	}
	if d.help {
		d.help = false
		return
	}
	switch a {
	case MoveUp:
		d.selectRow(d.cursor - 1)
	case MoveDown:
		d.selectRow(d.cursor + 1)
	case MoveUpStep:
		d.selectRow(d.cursor - max(len(d.rows)/5, 1))
	case MoveDownStep:
		d.selectRow(d.cursor + max(len(d.rows)/5, 1))
	case MoveHome:
		d.selectRow(0)
	case MoveEnd:
		d.selectRow(len(d.rows) - 1)
	case MoveLeft:
		d.xScroll = max(d.xScroll-scrollStep, 0)
	case MoveRight:
		d.xScroll += scrollStep
	case Help:
		d.help = true
	case NextSort:
		if d.sortColumn < len(columns)-1 {
			d.sortColumn++
			d.rebuild()
		}
	case PreviousSort:
		if d.sortColumn > 0 {
			d.sortColumn--
			d.rebuild()
		}
	case ReverseSort:
		d.reverse = !d.reverse
		d.rebuild()
	case SelectSort:
		d.sortChoice = d.sortColumn
		d.state = SelectingSort
	case Filter:
		d.cycleFilter()
		d.rebuild()
	case TogglePause:
		d.togglePause(ctx)
	case TogglePauseAll:
		d.togglePauseAll(ctx)
	case PriorityUp, PriorityDown:
		d.movePriority(ctx, a == PriorityUp)
	case RemoveAsk:
		if dl := d.selectedDownload(); dl != nil {
			d.confirmTarget = dl
			d.confirmChoice = 0
			d.state = Confirming
		}
	case AddDownloads:
		d.state = Adding
	case Autoclear:
		d.mutate(ctx, "purge", d.backend.Purge)
	case Retry:
		if dl := d.selectedDownload(); dl != nil {
			d.retry(ctx, []*download.Download{dl})
		}
	case RetryAll:
		if d.snapshot != nil {
			d.retry(ctx, d.snapshot.Downloads)
		}
	case Cancel, Enter:
	}
}

func (d *Dashboard) handleConfirm(ctx context.Context, a Action) {
	switch a {
	case MoveUp:
		d.confirmChoice = max(d.confirmChoice-1, 0)
	case MoveDown:
		d.confirmChoice = min(d.confirmChoice+1, len(removeChoices)-1)
	case Cancel:
		d.state = Running
		d.confirmTarget = nil
	case Enter:
		target := d.confirmTarget
		force := d.confirmChoice == 1
		d.state = Running
		d.confirmTarget = nil
		d.mutate(ctx, "remove", func(ctx context.Context) error {
			return d.backend.Remove(ctx, []*download.Download{target}, force)
		})
	}
}

func (d *Dashboard) handleSortMenu(a Action) {
	switch a {
	case MoveUp:
		d.sortChoice = max(d.sortChoice-1, 0)
	case MoveDown:
		d.sortChoice = min(d.sortChoice+1, len(columns)-1)
	case Cancel:
		d.state = Running
	case Enter:
		d.state = Running
		d.sortColumn = d.sortChoice
		d.rebuild()
	}
}

// AddDownloads adds one download for each whitespace separated URI in text and returns to the table.
// It does nothing unless the dashboard is in the Adding state.
func (d *Dashboard) AddDownloads(ctx context.Context, text string) {
	if d.state != Adding {
		return
	}
	d.state = Running
	uris := strings.Fields(text)
	if len(uris) == 0 {
		return
	}
	d.mutate(ctx, "add", func(ctx context.Context) error {
		for _, uri := range uris {
			if _, err := d.backend.AddURIs(ctx, []string{uri}, nil); err != nil {
				return err
			}
		}
		return nil
	})
}

// Filter cycle: all, then each status in order.
func (d *Dashboard) cycleFilter() {
	switch {
	case d.filter == nil:
		s := download.Active
		d.filter = &s
	case *d.filter == download.Removed:
		d.filter = nil
	default:
		var s download.Status
		switch *d.filter {
		case download.Active:
			s = download.Waiting
		case download.Waiting:
			s = download.Paused
		default:
			s = *d.filter + 1
		}
		d.filter = &s
	}
}

func (d *Dashboard) togglePause(ctx context.Context) {
	dl := d.selectedDownload()
	if dl == nil {
		return
	}
	gids := []string{dl.GID}
	switch dl.Status {
	case download.Active, download.Waiting:
		d.mutate(ctx, "pause", func(ctx context.Context) error { return d.backend.Pause(ctx, gids, false) })
	case download.Paused:
		d.mutate(ctx, "resume", func(ctx context.Context) error { return d.backend.Resume(ctx, gids) })
	}
}

func (d *Dashboard) togglePauseAll(ctx context.Context) {
	if d.snapshot != nil && d.snapshot.Stats.NumActive > 0 {
		d.mutate(ctx, "pause all", func(ctx context.Context) error { return d.backend.PauseAll(ctx, false) })
		return
	}
	d.mutate(ctx, "resume all", d.backend.ResumeAll)
}

func (d *Dashboard) movePriority(ctx context.Context, up bool) {
	dl := d.selectedDownload()
	if dl == nil || dl.Status == download.Active {
		return
	}
	move := d.backend.MoveDown
	if up {
		move = d.backend.MoveUp
	}
	d.mutate(ctx, "move", func(ctx context.Context) error {
		_, err := move(ctx, dl.GID)
		return err
	})
}

func (d *Dashboard) retry(ctx context.Context, downloads []*download.Download) {
	d.mutate(ctx, "retry", func(ctx context.Context) error {
		_, err := d.backend.Retry(ctx, downloads)
		return err
	})
}

func (d *Dashboard) mutate(ctx context.Context, op string, fn func(context.Context) error) {
	cctx, cancel := d.withTimeout(ctx)
	err := fn(cctx)
	cancel()
	if err != nil {
		d.log.Errorf("cannot %s: %s", op, err)
		if ariarpc.IsTransport(err) {
			d.disconnected = true
		}
		d.setMessage(fmt.Sprintf("%s failed: %s", op, err))
		return
	}
	d.refresh(ctx)
}
