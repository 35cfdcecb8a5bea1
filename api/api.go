// Package api provides high level operations on the downloads of an aria2 daemon.
package api

import (
	"context"
	"fmt"
	"io"

	"github.com/cenkalti/ariatop/ariarpc"
	"github.com/cenkalti/ariatop/download"
	"github.com/cenkalti/ariatop/internal/logger"
	"github.com/cenkalti/ariatop/internal/rpctypes"
	"github.com/samber/lo"
)

// Maximum number of waiting and stopped downloads fetched per refresh.
const maxQueue = 1000

type API struct {
	client *ariarpc.Client
	log    logger.Logger
}

func New(clt *ariarpc.Client) *API {
	return &API{
		client: clt,
		log:    logger.New("api"),
	}
}

// Client returns the underlying RPC client.
func (a *API) Client() *ariarpc.Client { return a.client }

// Snapshot fetches all downloads and the global stats in a single request,
// so both reflect the same state of the daemon.
func (a *API) Snapshot(ctx context.Context) (*download.Snapshot, error) {
	keys := ariarpc.StatusKeys
	results, err := a.client.Multicall(ctx, []ariarpc.MethodCall{
		{Method: ariarpc.TellActive, Params: []any{keys}},
		{Method: ariarpc.TellWaiting, Params: []any{0, maxQueue, keys}},
		{Method: ariarpc.TellStopped, Params: []any{0, maxQueue, keys}},
		{Method: ariarpc.GetGlobalStat},
	})
	if err != nil {
		return nil, err
	}
	var statuses []rpctypes.Status
	for _, r := range results[:3] {
		var s []rpctypes.Status
		if err = r.Decode(&s); err != nil {
			return nil, err
		}
		statuses = append(statuses, s...)
	}
	var gs rpctypes.GlobalStat
	if err = results[3].Decode(&gs); err != nil {
		return nil, err
	}
	downloads, err := newDownloads(statuses)
	if err != nil {
		return nil, err
	}
	stats, err := download.NewStats(gs)
	if err != nil {
		return nil, &ariarpc.ProtocolError{Method: ariarpc.GetGlobalStat, Err: err}
	}
	return download.NewSnapshot(downloads, stats), nil
}

func newDownloads(statuses []rpctypes.Status) ([]*download.Download, error) {
	downloads := make([]*download.Download, 0, len(statuses))
	for _, s := range statuses {
		d, err := download.New(s)
		if err != nil {
			return nil, &ariarpc.ProtocolError{Method: ariarpc.TellStatus, Err: err}
		}
		downloads = append(downloads, d)
	}
	return downloads, nil
}

// Downloads returns the downloads with given GIDs, or all downloads when no GID is given.
// Downloads that could not be fetched are reported in an *OperationError next to the ones that could.
func (a *API) Downloads(ctx context.Context, gids ...string) ([]*download.Download, error) {
	if len(gids) == 0 {
		s, err := a.Snapshot(ctx)
		if err != nil {
			return nil, err
		}
		return s.Downloads, nil
	}
	gids = lo.Uniq(gids)
	calls := lo.Map(gids, func(gid string, _ int) ariarpc.MethodCall {
		return ariarpc.MethodCall{Method: ariarpc.TellStatus, Params: []any{gid}}
	})
	results, err := a.client.Multicall(ctx, calls)
	if err != nil {
		return nil, err
	}
	oe := newOperationError("get")
	var downloads []*download.Download
	for i, r := range results {
		var s rpctypes.Status
		if err = r.Decode(&s); err != nil {
			oe.add(gids[i], err)
			continue
		}
		d, err := download.New(s)
		if err != nil {
			oe.add(gids[i], &ariarpc.ProtocolError{Method: ariarpc.TellStatus, Err: err})
			continue
		}
		downloads = append(downloads, d)
	}
	return downloads, oe.err()
}

// Download returns a single download with its options attached. Unset options fall back to global ones.
func (a *API) Download(ctx context.Context, gid string) (*download.Download, error) {
	results, err := a.client.Multicall(ctx, []ariarpc.MethodCall{
		{Method: ariarpc.TellStatus, Params: []any{gid}},
		{Method: ariarpc.GetOption, Params: []any{gid}},
		{Method: ariarpc.GetGlobalOption},
	})
	if err != nil {
		return nil, err
	}
	var s rpctypes.Status
	var local, global rpctypes.Options
	for i, v := range []any{&s, &local, &global} {
		if err = results[i].Decode(v); err != nil {
			return nil, err
		}
	}
	d, err := download.New(s)
	if err != nil {
		return nil, &ariarpc.ProtocolError{Method: ariarpc.TellStatus, Err: err}
	}
	d.Options = download.NewOptions(local).WithFallback(download.NewOptions(global))
	return d, nil
}

func (a *API) Stats(ctx context.Context) (download.Stats, error) {
	gs, err := a.client.GetGlobalStat(ctx)
	if err != nil {
		return download.Stats{}, err
	}
	stats, err := download.NewStats(*gs)
	if err != nil {
		return download.Stats{}, &ariarpc.ProtocolError{Method: ariarpc.GetGlobalStat, Err: err}
	}
	return stats, nil
}

func (a *API) Version(ctx context.Context) (*rpctypes.Version, error) {
	return a.client.GetVersion(ctx)
}

// Pause pauses each download. With force, the daemon does not wait for tracker or server goodbyes.
func (a *API) Pause(ctx context.Context, gids []string, force bool) error {
	pause := a.client.Pause
	if force {
		pause = a.client.ForcePause
	}
	return a.each("pause", gids, func(gid string) error {
		_, err := pause(ctx, gid)
		return err
	})
}

func (a *API) Resume(ctx context.Context, gids []string) error {
	return a.each("resume", gids, func(gid string) error {
		_, err := a.client.Unpause(ctx, gid)
		return err
	})
}

func (a *API) PauseAll(ctx context.Context, force bool) error {
	if force {
		_, err := a.client.ForcePauseAll(ctx)
		return err
	}
	_, err := a.client.PauseAll(ctx)
	return err
}

func (a *API) ResumeAll(ctx context.Context) error {
	_, err := a.client.UnpauseAll(ctx)
	return err
}

// Remove removes downloads from the daemon's lists.
// Stopped downloads only have their result removed.
// Others are removed and then their result is purged on a best effort basis.
func (a *API) Remove(ctx context.Context, downloads []*download.Download, force bool) error {
	remove := a.client.Remove
	if force {
		remove = a.client.ForceRemove
	}
	oe := newOperationError("remove")
	for _, d := range downloads {
		if d.Status.Stopped() {
			a.log.Debugf("removing download result %s", d.GID)
			if _, err := a.client.RemoveDownloadResult(ctx, d.GID); err != nil {
				oe.add(d.GID, err)
			}
			continue
		}
		a.log.Debugf("removing download %s", d.GID)
		removed, err := remove(ctx, d.GID)
		if err != nil {
			oe.add(d.GID, err)
			continue
		}
		a.removeResult(ctx, d.GID)
		if removed != "" && removed != d.GID {
			a.log.Debugf("removed download %s has a different GID than %s", removed, d.GID)
			a.removeResult(ctx, removed)
		}
	}
	return oe.err()
}

func (a *API) removeResult(ctx context.Context, gid string) {
	if _, err := a.client.RemoveDownloadResult(ctx, gid); err != nil {
		a.log.Debugf("cannot remove download result %s: %s", gid, err)
	}
}

// Purge removes all completed, failed and removed downloads.
func (a *API) Purge(ctx context.Context) error {
	_, err := a.client.PurgeDownloadResult(ctx)
	return err
}

// Retry re-adds failed downloads from their first URI with their options and removes the failed ones.
// Downloads that did not fail or have no URI are skipped. The GIDs of the new downloads are returned.
func (a *API) Retry(ctx context.Context, downloads []*download.Download) ([]string, error) {
	failed := lo.Filter(downloads, func(d *download.Download, _ int) bool {
		return d.Status == download.Error && d.FirstURI() != ""
	})
	oe := newOperationError("retry")
	var gids []string
	for _, d := range failed {
		opts, err := a.client.GetOption(ctx, d.GID)
		if err != nil {
			oe.add(d.GID, err)
			continue
		}
		gid, err := a.client.AddURI(ctx, []string{d.FirstURI()}, opts, nil)
		if err != nil {
			oe.add(d.GID, err)
			continue
		}
		gids = append(gids, gid)
		if err = a.Remove(ctx, []*download.Download{d}, false); err != nil {
			a.log.Warningf("retried %s as %s but cannot remove it: %s", d.GID, gid, err)
		}
	}
	return gids, oe.err()
}

// Move moves a waiting download by delta positions, negative towards the front. Returns the new position.
func (a *API) Move(ctx context.Context, gid string, delta int) (int, error) {
	return a.client.ChangePosition(ctx, gid, delta, ariarpc.PosCur)
}

// MoveTo moves a waiting download to position pos. Negative positions count from the end, -1 being the last.
func (a *API) MoveTo(ctx context.Context, gid string, pos int) (int, error) {
	if pos < 0 {
		return a.client.ChangePosition(ctx, gid, pos+1, ariarpc.PosEnd)
	}
	return a.client.ChangePosition(ctx, gid, pos, ariarpc.PosSet)
}

func (a *API) MoveUp(ctx context.Context, gid string) (int, error) { return a.Move(ctx, gid, -1) }

func (a *API) MoveDown(ctx context.Context, gid string) (int, error) { return a.Move(ctx, gid, 1) }

func (a *API) MoveToTop(ctx context.Context, gid string) (int, error) { return a.MoveTo(ctx, gid, 0) }

func (a *API) MoveToBottom(ctx context.Context, gid string) (int, error) {
	return a.MoveTo(ctx, gid, -1)
}

// Options returns the options of a download. Unset options fall back to global ones.
func (a *API) Options(ctx context.Context, gid string) (*download.Options, error) {
	results, err := a.client.Multicall(ctx, []ariarpc.MethodCall{
		{Method: ariarpc.GetOption, Params: []any{gid}},
		{Method: ariarpc.GetGlobalOption},
	})
	if err != nil {
		return nil, err
	}
	var local, global rpctypes.Options
	if err = results[0].Decode(&local); err != nil {
		return nil, err
	}
	if err = results[1].Decode(&global); err != nil {
		return nil, err
	}
	return download.NewOptions(local).WithFallback(download.NewOptions(global)), nil
}

func (a *API) GlobalOptions(ctx context.Context) (*download.Options, error) {
	opts, err := a.client.GetGlobalOption(ctx)
	if err != nil {
		return nil, err
	}
	return download.NewOptions(opts), nil
}

// SetOptions changes options of each download.
func (a *API) SetOptions(ctx context.Context, gids []string, options map[string]string) error {
	options = normalizeOptions(options)
	return a.each("change option", gids, func(gid string) error {
		_, err := a.client.ChangeOption(ctx, gid, options)
		return err
	})
}

func (a *API) SetGlobalOptions(ctx context.Context, options map[string]string) error {
	_, err := a.client.ChangeGlobalOption(ctx, normalizeOptions(options))
	return err
}

func normalizeOptions(options map[string]string) map[string]string {
	return download.NewOptions(options).Map()
}

// AddURIs adds a single download whose sources are uris. All uris must point to the same file.
func (a *API) AddURIs(ctx context.Context, uris []string, options map[string]string) (string, error) {
	if len(uris) == 0 {
		return "", fmt.Errorf("no uri given")
	}
	return a.client.AddURI(ctx, uris, normalizeOptionsOrNil(options), nil)
}

func (a *API) AddMagnet(ctx context.Context, magnet string, options map[string]string) (string, error) {
	return a.AddURIs(ctx, []string{magnet}, options)
}

// AddTorrent uploads the torrent file read from r. uris are web seeds.
func (a *API) AddTorrent(ctx context.Context, r io.Reader, uris []string, options map[string]string) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return a.client.AddTorrent(ctx, b, uris, normalizeOptionsOrNil(options), nil)
}

// AddMetalink uploads the metalink file read from r. A metalink may describe many downloads.
func (a *API) AddMetalink(ctx context.Context, r io.Reader, options map[string]string) ([]string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return a.client.AddMetalink(ctx, b, normalizeOptionsOrNil(options), nil)
}

func normalizeOptionsOrNil(options map[string]string) map[string]string {
	if len(options) == 0 {
		return nil
	}
	return normalizeOptions(options)
}

func (a *API) each(op string, gids []string, fn func(gid string) error) error {
	oe := newOperationError(op)
	for _, gid := range lo.Uniq(gids) {
		if err := fn(gid); err != nil {
			oe.add(gid, err)
		}
	}
	return oe.err()
}
