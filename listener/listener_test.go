package listener_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/ariatop/api"
	"github.com/cenkalti/ariatop/ariarpc"
	"github.com/cenkalti/ariatop/internal/fakedaemon"
	"github.com/cenkalti/ariatop/internal/rpctypes"
	"github.com/cenkalti/ariatop/listener"
	"github.com/cenkalti/backoff/v3"
	"github.com/fortytw2/leaktest"
	"github.com/rcrowley/go-metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	// The first meter starts a goroutine that lives as long as the process.
	metrics.NewMeter().Stop()
	// Let that goroutine get scheduled so leaktest snapshots it as pre-existing.
	time.Sleep(10 * time.Millisecond)
	os.Exit(m.Run())
}

type received struct {
	event listener.Event
	gid   string
}

// recorder collects callback invocations.
type recorder struct {
	m    sync.Mutex
	got  []received
	hitC chan struct{}
}

func newRecorder() *recorder {
	return &recorder{hitC: make(chan struct{}, 100)}
}

func (r *recorder) callback(e listener.Event) listener.Callback {
	return func(ctx context.Context, a *api.API, gid string) error {
		r.m.Lock()
		r.got = append(r.got, received{e, gid})
		r.m.Unlock()
		r.hitC <- struct{}{}
		return nil
	}
}

func (r *recorder) all(e ...listener.Event) map[listener.Event]listener.Callback {
	m := make(map[listener.Event]listener.Callback)
	for _, ev := range e {
		m[ev] = r.callback(ev)
	}
	return m
}

func (r *recorder) wait(t *testing.T, n int) []received {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-r.hitC:
		case <-time.After(5 * time.Second):
			t.Fatalf("timeout waiting for callback %d", i+1)
		}
	}
	r.m.Lock()
	defer r.m.Unlock()
	return append([]received(nil), r.got...)
}

func start(t *testing.T, d *fakedaemon.Daemon, cfg listener.Config) (*listener.Listener, chan error) {
	t.Helper()
	clt, err := ariarpc.New(ariarpc.Config{Host: d.Host(), Port: d.Port(), Timeout: 2 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = clt.Close() })
	if cfg.Timeout == 0 {
		cfg.Timeout = 50 * time.Millisecond
	}
	if cfg.Backoff == nil {
		cfg.Backoff = backoff.NewConstantBackOff(10 * time.Millisecond)
	}
	l, err := listener.New(clt, api.New(clt), cfg)
	require.NoError(t, err)
	errC := make(chan error, 1)
	go func() { errC <- l.Run(context.Background()) }()
	return l, errC
}

func stop(t *testing.T, l *listener.Listener, errC chan error) {
	t.Helper()
	l.Stop()
	select {
	case err := <-errC:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not stop")
	}
}

func TestCallbacksInServerOrder(t *testing.T) {
	// Runs after the client is closed by start's cleanup.
	t.Cleanup(leaktest.Check(t))

	d := fakedaemon.New("")
	defer d.Close()
	r := newRecorder()
	l, errC := start(t, d, listener.Config{Callbacks: r.all(listener.Events()...)})
	d.WaitSocket()

	require.NoError(t, d.Notify(ariarpc.OnDownloadStart, "0000000000000001"))
	require.NoError(t, d.Notify(ariarpc.OnDownloadPause, "0000000000000001"))
	require.NoError(t, d.Notify(ariarpc.OnDownloadStart, "0000000000000002"))
	require.NoError(t, d.Notify(ariarpc.OnBtDownloadComplete, "0000000000000002"))

	got := r.wait(t, 4)
	assert.Equal(t, []received{
		{listener.Start, "0000000000000001"},
		{listener.Pause, "0000000000000001"},
		{listener.Start, "0000000000000002"},
		{listener.BtComplete, "0000000000000002"},
	}, got)
	stop(t, l, errC)
}

func TestEventsOutsideSubsetAreDiscarded(t *testing.T) {
	t.Cleanup(leaktest.Check(t))

	d := fakedaemon.New("")
	defer d.Close()
	r := newRecorder()
	l, errC := start(t, d, listener.Config{
		Callbacks: r.all(listener.Events()...),
		Events:    []listener.Event{listener.Error, listener.BtComplete},
	})
	d.WaitSocket()

	require.NoError(t, d.Notify(ariarpc.OnDownloadPause, "0000000000000001"))
	require.NoError(t, d.Notify(ariarpc.OnDownloadError, "0000000000000002"))

	got := r.wait(t, 1)
	assert.Equal(t, []received{{listener.Error, "0000000000000002"}}, got)
	stop(t, l, errC)
}

func TestFailingCallbacksDoNotStopLoop(t *testing.T) {
	t.Cleanup(leaktest.Check(t))

	d := fakedaemon.New("")
	defer d.Close()
	r := newRecorder()
	callbacks := r.all(listener.Complete)
	callbacks[listener.Start] = func(ctx context.Context, a *api.API, gid string) error {
		return errors.New("boom")
	}
	callbacks[listener.Stop] = func(ctx context.Context, a *api.API, gid string) error {
		panic("boom")
	}
	l, errC := start(t, d, listener.Config{Callbacks: callbacks})
	d.WaitSocket()

	require.NoError(t, d.Notify(ariarpc.OnDownloadStart, "0000000000000001"))
	require.NoError(t, d.Notify(ariarpc.OnDownloadStop, "0000000000000001"))
	require.NoError(t, d.SendRaw([]byte(`{"jsonrpc":"2.0","method":"aria2.onDownloadStart","params":[]}`)))
	require.NoError(t, d.Notify(ariarpc.OnDownloadComplete, "0000000000000001"))

	got := r.wait(t, 1)
	assert.Equal(t, []received{{listener.Complete, "0000000000000001"}}, got)
	stop(t, l, errC)
}

func TestReconnectsAfterConnectionLoss(t *testing.T) {
	t.Cleanup(leaktest.Check(t))

	d := fakedaemon.New("")
	defer d.Close()
	r := newRecorder()
	l, errC := start(t, d, listener.Config{Callbacks: r.all(listener.Start)})
	d.WaitSocket()

	d.DropSockets()
	d.WaitSocket()
	require.NoError(t, d.Notify(ariarpc.OnDownloadStart, "0000000000000001"))

	got := r.wait(t, 1)
	assert.Equal(t, []received{{listener.Start, "0000000000000001"}}, got)
	stop(t, l, errC)
}

func TestKeepsRetryingWhileDaemonIsDown(t *testing.T) {
	t.Cleanup(leaktest.Check(t))

	d := fakedaemon.New("")
	clt, err := ariarpc.New(ariarpc.Config{Host: d.Host(), Port: d.Port(), Timeout: time.Second})
	require.NoError(t, err)
	defer clt.Close()
	d.Close()

	l, err := listener.New(clt, api.New(clt), listener.Config{
		Timeout: 50 * time.Millisecond,
		Backoff: backoff.NewConstantBackOff(10 * time.Millisecond),
	})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	errC := make(chan error, 1)
	go func() { errC <- l.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	select {
	case <-errC:
		t.Fatal("listener returned while the daemon was down")
	default:
	}
	cancel()
	select {
	case err := <-errC:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not stop")
	}
}

func TestStopWaitsForCallback(t *testing.T) {
	t.Cleanup(leaktest.Check(t))

	d := fakedaemon.New("")
	defer d.Close()
	d.Reply(ariarpc.TellStatus, rpctypes.Status{GID: "0000000000000001", Status: "complete", Dir: "/d"})

	inside := make(chan struct{})
	release := make(chan struct{})
	var status string
	callbacks := map[listener.Event]listener.Callback{
		listener.Complete: func(ctx context.Context, a *api.API, gid string) error {
			close(inside)
			<-release
			dls, err := a.Downloads(ctx, gid)
			if err != nil {
				return err
			}
			status = dls[0].Status.String()
			return nil
		},
	}
	l, errC := start(t, d, listener.Config{Callbacks: callbacks})
	d.WaitSocket()
	require.NoError(t, d.Notify(ariarpc.OnDownloadComplete, "0000000000000001"))
	<-inside

	l.Stop()
	select {
	case <-errC:
		t.Fatal("listener returned during a callback")
	case <-time.After(100 * time.Millisecond):
	}
	close(release)
	select {
	case err := <-errC:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not stop")
	}
	assert.Equal(t, "complete", status)
}

func TestInvalidConfig(t *testing.T) {
	clt, err := ariarpc.New(ariarpc.Config{})
	require.NoError(t, err)
	_, err = listener.New(clt, api.New(clt), listener.Config{Events: []listener.Event{"finish"}})
	assert.Error(t, err)
	_, err = listener.New(clt, api.New(clt), listener.Config{Callbacks: map[listener.Event]listener.Callback{"finish": nil}})
	assert.Error(t, err)
}

func TestParseEvent(t *testing.T) {
	for _, e := range listener.Events() {
		parsed, err := listener.ParseEvent(string(e))
		require.NoError(t, err)
		assert.Equal(t, e, parsed)
		assert.Contains(t, e.Method(), "aria2.on")
	}
	_, err := listener.ParseEvent("finished")
	assert.Error(t, err)
	assert.Equal(t, "aria2.onBtDownloadComplete", listener.BtComplete.Method())
}
