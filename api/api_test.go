package api

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cenkalti/ariatop/ariarpc"
	"github.com/cenkalti/ariatop/download"
	"github.com/cenkalti/ariatop/internal/fakedaemon"
	"github.com/cenkalti/ariatop/internal/rpctypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAPI(t *testing.T) (*API, *fakedaemon.Daemon) {
	d := fakedaemon.New("s3cret")
	t.Cleanup(d.Close)
	clt, err := ariarpc.New(ariarpc.Config{Host: d.Host(), Port: d.Port(), Secret: "s3cret", Timeout: 5 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { clt.Close() })
	return New(clt), d
}

func status(gid, st string) rpctypes.Status {
	return rpctypes.Status{
		GID:             gid,
		Status:          st,
		TotalLength:     "1000",
		CompletedLength: "250",
		DownloadSpeed:   "50",
		Dir:             "/downloads",
		Files: []rpctypes.File{{
			Index: "1", Path: "/downloads/" + gid + ".iso", Length: "1000", CompletedLength: "250", Selected: "true",
			URIs: []rpctypes.URI{{URI: "http://example.com/" + gid + ".iso", Status: "used"}},
		}},
	}
}

func TestSnapshot(t *testing.T) {
	a, d := newAPI(t)
	d.Reply(ariarpc.TellActive, []rpctypes.Status{status("0000000000000001", "active")})
	d.Reply(ariarpc.TellWaiting, []rpctypes.Status{status("0000000000000002", "waiting"), status("0000000000000003", "paused")})
	d.Reply(ariarpc.TellStopped, []rpctypes.Status{status("0000000000000004", "error")})
	d.Reply(ariarpc.GetGlobalStat, rpctypes.GlobalStat{DownloadSpeed: "50", UploadSpeed: "0", NumActive: "1", NumWaiting: "2", NumStopped: "1", NumStoppedTotal: "1"})

	s, err := a.Snapshot(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4, s.Len())
	assert.Equal(t, download.Active, s.Downloads[0].Status)
	assert.Equal(t, download.Paused, s.Downloads[2].Status)
	assert.Equal(t, 1, s.Stats.NumActive)
	assert.Equal(t, int64(50), s.Stats.DownloadSpeed)
	assert.Equal(t, "0000000000000004.iso", s.Downloads[3].Name())

	// One request for the downloads and the stats.
	assert.Equal(t, []string{ariarpc.TellActive, ariarpc.TellWaiting, ariarpc.TellStopped, ariarpc.GetGlobalStat}, d.Methods())
	calls := d.Calls()
	assert.JSONEq(t, `[0, 1000]`, "["+string(calls[1].Params[0])+","+string(calls[1].Params[1])+"]")

	// Snapshot downloads carry piece geometry.
	var keys []string
	require.NoError(t, json.Unmarshal(calls[0].Params[0], &keys))
	assert.Contains(t, keys, "pieceLength")
	assert.Contains(t, keys, "numPieces")
}

func TestSnapshotProtocolError(t *testing.T) {
	a, d := newAPI(t)
	bad := status("0000000000000001", "active")
	bad.TotalLength = "many"
	d.Reply(ariarpc.TellActive, []rpctypes.Status{bad})
	d.Reply(ariarpc.TellWaiting, []rpctypes.Status{})
	d.Reply(ariarpc.TellStopped, []rpctypes.Status{})
	d.Reply(ariarpc.GetGlobalStat, rpctypes.GlobalStat{})

	_, err := a.Snapshot(context.Background())
	assert.True(t, ariarpc.IsProtocol(err), "%v", err)
}

func TestSnapshotRemoteError(t *testing.T) {
	a, d := newAPI(t)
	d.Reply(ariarpc.TellActive, []rpctypes.Status{})
	d.Fail(ariarpc.TellWaiting, 1, "boom")
	d.Reply(ariarpc.TellStopped, []rpctypes.Status{})
	d.Reply(ariarpc.GetGlobalStat, rpctypes.GlobalStat{})

	_, err := a.Snapshot(context.Background())
	assert.True(t, ariarpc.IsRemote(err), "%v", err)
}

func TestDownloadsByGID(t *testing.T) {
	a, d := newAPI(t)
	d.Handle(ariarpc.TellStatus, func(params []json.RawMessage) (any, *rpctypes.Error) {
		var gid string
		_ = json.Unmarshal(params[0], &gid)
		if gid == "0000000000000009" {
			return nil, &rpctypes.Error{Code: 1, Message: "GID " + gid + " is not found"}
		}
		return status(gid, "active"), nil
	})

	downloads, err := a.Downloads(context.Background(), "0000000000000001", "0000000000000009", "0000000000000001")
	require.Len(t, downloads, 1)
	assert.Equal(t, "0000000000000001", downloads[0].GID)

	var oe *OperationError
	require.True(t, errors.As(err, &oe))
	assert.Contains(t, oe.Errors, "0000000000000009")
	assert.True(t, ariarpc.IsRemote(err))
	assert.Len(t, d.Calls(), 2)
}

func TestDownloadWithOptions(t *testing.T) {
	a, d := newAPI(t)
	d.Reply(ariarpc.TellStatus, status("0000000000000001", "active"))
	d.Reply(ariarpc.GetOption, map[string]string{"dir": "/tmp"})
	d.Reply(ariarpc.GetGlobalOption, map[string]string{"dir": "/downloads", "max-tries": "5"})

	dl, err := a.Download(context.Background(), "0000000000000001")
	require.NoError(t, err)
	assert.Equal(t, "/tmp", dl.Options.String("dir"))
	n, ok := dl.Options.Int("max_tries")
	assert.True(t, ok)
	assert.Equal(t, int64(5), n)
}

func TestPauseResume(t *testing.T) {
	a, d := newAPI(t)
	d.Reply(ariarpc.Pause, "0000000000000001")
	d.Reply(ariarpc.ForcePause, "0000000000000001")
	d.Reply(ariarpc.Unpause, "0000000000000001")
	d.Reply(ariarpc.PauseAll, "OK")
	d.Reply(ariarpc.ForcePauseAll, "OK")
	d.Reply(ariarpc.UnpauseAll, "OK")
	d.Reply(ariarpc.PurgeDownloadResult, "OK")

	ctx := context.Background()
	require.NoError(t, a.Pause(ctx, []string{"0000000000000001"}, false))
	require.NoError(t, a.Pause(ctx, []string{"0000000000000001"}, true))
	require.NoError(t, a.Resume(ctx, []string{"0000000000000001"}))
	require.NoError(t, a.PauseAll(ctx, false))
	require.NoError(t, a.PauseAll(ctx, true))
	require.NoError(t, a.ResumeAll(ctx))
	require.NoError(t, a.Purge(ctx))
	assert.Equal(t, []string{
		ariarpc.Pause, ariarpc.ForcePause, ariarpc.Unpause,
		ariarpc.PauseAll, ariarpc.ForcePauseAll, ariarpc.UnpauseAll,
		ariarpc.PurgeDownloadResult,
	}, d.Methods())
}

func TestPauseCollectsErrors(t *testing.T) {
	a, d := newAPI(t)
	d.Fail(ariarpc.Pause, 1, "cannot be paused now")

	err := a.Pause(context.Background(), []string{"0000000000000002", "0000000000000001"}, false)
	var oe *OperationError
	require.True(t, errors.As(err, &oe))
	assert.Len(t, oe.Errors, 2)
	assert.True(t, strings.HasPrefix(err.Error(), "cannot pause 0000000000000001: "), err.Error())
}

func TestRemove(t *testing.T) {
	a, d := newAPI(t)
	d.Reply(ariarpc.Remove, "0000000000000001")
	d.Reply(ariarpc.ForceRemove, "0000000000000005")
	d.Reply(ariarpc.RemoveDownloadResult, "OK")

	active := &download.Download{GID: "0000000000000001", Status: download.Active}
	done := &download.Download{GID: "0000000000000002", Status: download.Complete}
	require.NoError(t, a.Remove(context.Background(), []*download.Download{active, done}, false))
	assert.Equal(t, []string{ariarpc.Remove, ariarpc.RemoveDownloadResult, ariarpc.RemoveDownloadResult}, d.Methods())

	// The result of a different returned GID is removed as well.
	paused := &download.Download{GID: "0000000000000003", Status: download.Paused}
	require.NoError(t, a.Remove(context.Background(), []*download.Download{paused}, true))
	calls := d.Calls()[3:]
	require.Len(t, calls, 3)
	assert.Equal(t, ariarpc.ForceRemove, calls[0].Method)
	assert.JSONEq(t, `"0000000000000003"`, string(calls[1].Params[0]))
	assert.JSONEq(t, `"0000000000000005"`, string(calls[2].Params[0]))
}

func TestRemoveResultFailureIsIgnoredAfterRemove(t *testing.T) {
	a, d := newAPI(t)
	d.Reply(ariarpc.Remove, "0000000000000001")
	d.Fail(ariarpc.RemoveDownloadResult, 1, "could not remove")

	active := &download.Download{GID: "0000000000000001", Status: download.Waiting}
	assert.NoError(t, a.Remove(context.Background(), []*download.Download{active}, false))

	stopped := &download.Download{GID: "0000000000000002", Status: download.Removed}
	assert.Error(t, a.Remove(context.Background(), []*download.Download{stopped}, false))
}

func TestRetry(t *testing.T) {
	a, d := newAPI(t)
	d.Reply(ariarpc.GetOption, map[string]string{"dir": "/downloads", "max-tries": "5"})
	d.Reply(ariarpc.AddURI, "000000000000000a")
	d.Reply(ariarpc.RemoveDownloadResult, "OK")

	failed, err := download.New(status("0000000000000001", "error"))
	require.NoError(t, err)
	active, err := download.New(status("0000000000000002", "active"))
	require.NoError(t, err)
	noURI := &download.Download{GID: "0000000000000003", Status: download.Error}

	gids, err := a.Retry(context.Background(), []*download.Download{failed, active, noURI})
	require.NoError(t, err)
	assert.Equal(t, []string{"000000000000000a"}, gids)
	assert.Equal(t, []string{ariarpc.GetOption, ariarpc.AddURI, ariarpc.RemoveDownloadResult}, d.Methods())

	add := d.Calls()[1]
	assert.JSONEq(t, `["http://example.com/0000000000000001.iso"]`, string(add.Params[0]))
	assert.JSONEq(t, `{"dir": "/downloads", "max-tries": "5"}`, string(add.Params[1]))
}

func TestMove(t *testing.T) {
	a, d := newAPI(t)
	d.Reply(ariarpc.ChangePosition, 3)

	ctx := context.Background()
	for _, move := range []func(context.Context, string) (int, error){a.MoveUp, a.MoveDown, a.MoveToTop, a.MoveToBottom} {
		pos, err := move(ctx, "0000000000000001")
		require.NoError(t, err)
		assert.Equal(t, 3, pos)
	}
	_, err := a.MoveTo(ctx, "0000000000000001", -3)
	require.NoError(t, err)

	want := []string{
		`["0000000000000001", -1, "POS_CUR"]`,
		`["0000000000000001", 1, "POS_CUR"]`,
		`["0000000000000001", 0, "POS_SET"]`,
		`["0000000000000001", 0, "POS_END"]`,
		`["0000000000000001", -2, "POS_END"]`,
	}
	calls := d.Calls()
	require.Len(t, calls, len(want))
	for i, w := range want {
		b, err := json.Marshal(calls[i].Params)
		require.NoError(t, err)
		assert.JSONEq(t, w, string(b))
	}
}

func TestOptions(t *testing.T) {
	a, d := newAPI(t)
	d.Reply(ariarpc.GetOption, map[string]string{"split": "4"})
	d.Reply(ariarpc.GetGlobalOption, map[string]string{"split": "5", "continue": "true"})
	d.Reply(ariarpc.ChangeOption, "OK")
	d.Reply(ariarpc.ChangeGlobalOption, "OK")

	ctx := context.Background()
	opts, err := a.Options(ctx, "0000000000000001")
	require.NoError(t, err)
	assert.Equal(t, "4", opts.String("split"))
	b, ok := opts.Bool("continue")
	assert.True(t, ok && b)

	global, err := a.GlobalOptions(ctx)
	require.NoError(t, err)
	assert.Equal(t, "5", global.String("split"))

	require.NoError(t, a.SetOptions(ctx, []string{"0000000000000001"}, map[string]string{"max_download_limit": "1M"}))
	require.NoError(t, a.SetGlobalOptions(ctx, map[string]string{"max_overall_download_limit": "2M"}))
	calls := d.Calls()
	assert.JSONEq(t, `{"max-download-limit": "1M"}`, string(calls[len(calls)-2].Params[1]))
	assert.JSONEq(t, `{"max-overall-download-limit": "2M"}`, string(calls[len(calls)-1].Params[0]))
}

func TestAdd(t *testing.T) {
	a, d := newAPI(t)
	d.Reply(ariarpc.AddURI, "0000000000000001")
	d.Reply(ariarpc.AddTorrent, "0000000000000002")
	d.Reply(ariarpc.AddMetalink, []string{"0000000000000003", "0000000000000004"})

	ctx := context.Background()
	_, err := a.AddURIs(ctx, nil, nil)
	assert.Error(t, err)

	gid, err := a.AddMagnet(ctx, "magnet:?xt=urn:btih:c9e15763f722f23e98a29decdfae341b98d53056", map[string]string{"dir": "/tmp"})
	require.NoError(t, err)
	assert.Equal(t, "0000000000000001", gid)

	gid, err = a.AddTorrent(ctx, strings.NewReader("d4:infod4:name1:aee"), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "0000000000000002", gid)

	gids, err := a.AddMetalink(ctx, strings.NewReader("<metalink/>"), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"0000000000000003", "0000000000000004"}, gids)

	calls := d.Calls()
	assert.Len(t, calls[0].Params, 2)
	assert.JSONEq(t, `"ZDQ6aW5mb2Q0Om5hbWUxOmFlZQ=="`, string(calls[1].Params[0]))
	assert.JSONEq(t, `[]`, string(calls[1].Params[1]))
	assert.JSONEq(t, `"PG1ldGFsaW5rLz4="`, string(calls[2].Params[0]))
}

func TestTransportErrorPassesThrough(t *testing.T) {
	a, d := newAPI(t)
	d.Close()

	_, err := a.Snapshot(context.Background())
	assert.True(t, ariarpc.IsTransport(err))

	err = a.Pause(context.Background(), []string{"0000000000000001"}, false)
	assert.True(t, ariarpc.IsTransport(err))
}
