package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/cenkalti/ariatop/api"
	"github.com/cenkalti/ariatop/ariarpc"
	"github.com/cenkalti/ariatop/download"
	"github.com/cenkalti/ariatop/internal/jsonutil"
	"github.com/cenkalti/ariatop/listener"
	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"github.com/urfave/cli"
)

var optionFlag = cli.StringSliceFlag{
	Name:  "option, o",
	Usage: "download option as `NAME=VALUE`; repeatable",
}

func parseOptions(c *cli.Context) (map[string]string, error) {
	options := make(map[string]string)
	for _, s := range c.StringSlice("option") {
		name, value, ok := strings.Cut(s, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid option %q: expected NAME=VALUE", s)
		}
		options[name] = value
	}
	return options, nil
}

var eventColors = map[listener.Event]*color.Color{
	listener.Start:      color.New(color.FgCyan),
	listener.Pause:      color.New(color.FgYellow),
	listener.Stop:       color.New(color.FgMagenta),
	listener.Error:      color.New(color.FgRed, color.Bold),
	listener.Complete:   color.New(color.FgGreen),
	listener.BtComplete: color.New(color.FgGreen, color.Bold),
}

func handleListen(c *cli.Context) error {
	events := listener.Events()
	if names := c.StringSlice("event"); len(names) > 0 {
		events = events[:0]
		for _, name := range names {
			for _, s := range strings.Split(name, ",") {
				e, err := listener.ParseEvent(strings.TrimSpace(s))
				if err != nil {
					return err
				}
				events = append(events, e)
			}
		}
	}
	command := c.String("exec")
	callbacks := make(map[listener.Event]listener.Callback, len(events))
	for _, e := range events {
		if command != "" {
			callbacks[e] = execCallback(command, e)
		} else {
			callbacks[e] = printCallback(e)
		}
	}
	l, err := listener.New(clt, aria, listener.Config{
		Callbacks: callbacks,
		Events:    events,
		Timeout:   c.Duration("timeout"),
	})
	if err != nil {
		return err
	}
	return l.Run(ctx)
}

func printCallback(e listener.Event) listener.Callback {
	return func(ctx context.Context, a *api.API, gid string) error {
		name := ""
		if d, err := a.Download(ctx, gid); err == nil {
			name = d.Name()
		}
		fmt.Printf("%s %-10s %s %s\n", time.Now().Format(time.TimeOnly), eventColors[e].Sprint(e), gid, name)
		return nil
	}
}

func execCallback(command string, e listener.Event) listener.Callback {
	return func(ctx context.Context, a *api.API, gid string) error {
		cmd := exec.CommandContext(ctx, command, string(e), gid)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		return cmd.Run()
	}
}

func handleCall(c *cli.Context) error {
	if c.NArg() < 1 || c.NArg() > 2 {
		return errors.New("usage: call METHOD [PARAMS_JSON]")
	}
	method, err := ariarpc.ResolveMethod(c.Args().Get(0))
	if err != nil {
		return err
	}
	var params []any
	if c.NArg() == 2 {
		if err = json.Unmarshal([]byte(c.Args().Get(1)), &params); err != nil {
			return fmt.Errorf("params must be a JSON array: %w", err)
		}
	}
	var reply json.RawMessage
	if err = clt.Call(ctx, method, params, &reply); err != nil {
		return err
	}
	b, err := jsonutil.Pretty(reply)
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func handleShow(c *cli.Context) error {
	if c.NArg() == 0 {
		s, err := aria.Snapshot(ctx)
		if err != nil {
			return err
		}
		printTable(s.Downloads)
		return nil
	}
	for i, gid := range c.Args() {
		d, err := aria.Download(ctx, gid)
		if err != nil {
			return err
		}
		b, err := jsonutil.MarshalCompactPretty(newDownloadInfo(d))
		if err != nil {
			return err
		}
		if i > 0 {
			fmt.Println()
		}
		os.Stdout.Write(b)
	}
	return nil
}

var tableColumns = []struct {
	header string
	width  int
	text   func(*download.Download) string
}{
	{"GID", 16, func(d *download.Download) string { return d.GID }},
	{"STATUS", 8, func(d *download.Download) string { return d.Status.String() }},
	{"PROGRESS", 8, func(d *download.Download) string { return download.FormatProgress(d.Progress()) }},
	{"DOWN_SPEED", 12, func(d *download.Download) string { return download.FormatSpeed(d.DownloadSpeed) }},
	{"UP_SPEED", 12, func(d *download.Download) string { return download.FormatSpeed(d.UploadSpeed) }},
	{"ETA", 8, func(d *download.Download) string { return download.FormatETA(d, 2) }},
	{"NAME", 0, func(d *download.Download) string { return d.Name() }},
}

func printTable(downloads []*download.Download) {
	line := func(text func(i int) string) {
		var b strings.Builder
		for i, col := range tableColumns {
			if col.width == 0 {
				b.WriteString(text(i))
				continue
			}
			b.WriteString(runewidth.FillRight(text(i), col.width))
			b.WriteString("  ")
		}
		fmt.Println(strings.TrimRight(b.String(), " "))
	}
	line(func(i int) string { return tableColumns[i].header })
	for _, d := range downloads {
		line(func(i int) string { return tableColumns[i].text(d) })
	}
}

type downloadInfo struct {
	GID           string
	Name          string
	Status        string
	Progress      string
	Size          string
	DownloadSpeed string
	UploadSpeed   string
	ETA           string
	Connections   int
	Dir           string
	Files         []string
	Error         string
	Options       map[string]string
}

func newDownloadInfo(d *download.Download) downloadInfo {
	info := downloadInfo{
		GID:           d.GID,
		Name:          d.Name(),
		Status:        d.Status.String(),
		Progress:      download.FormatProgress(d.Progress()),
		Size:          download.FormatBytes(d.TotalLength),
		DownloadSpeed: download.FormatSpeed(d.DownloadSpeed),
		UploadSpeed:   download.FormatSpeed(d.UploadSpeed),
		ETA:           download.FormatETA(d, 0),
		Connections:   d.Connections,
		Dir:           d.Dir,
		Options:       d.Options.Map(),
	}
	for _, f := range d.Files {
		info.Files = append(info.Files, f.Path)
	}
	if d.Status == download.Error {
		info.Error = d.ErrorCode + " " + d.ErrorMessage
	}
	return info
}

func handlePause(c *cli.Context) error {
	if c.Bool("all") {
		return aria.PauseAll(ctx, c.Bool("force"))
	}
	if c.NArg() == 0 {
		return errors.New("give GIDs or --all")
	}
	return aria.Pause(ctx, c.Args(), c.Bool("force"))
}

func handleResume(c *cli.Context) error {
	if c.Bool("all") {
		return aria.ResumeAll(ctx)
	}
	if c.NArg() == 0 {
		return errors.New("give GIDs or --all")
	}
	return aria.Resume(ctx, c.Args())
}

func handleRemove(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("give GIDs to remove")
	}
	downloads, err := aria.Downloads(ctx, c.Args()...)
	if err != nil {
		return err
	}
	return aria.Remove(ctx, downloads, c.Bool("force"))
}

func handleRetry(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("give GIDs to retry")
	}
	downloads, err := aria.Downloads(ctx, c.Args()...)
	if err != nil {
		return err
	}
	gids, err := aria.Retry(ctx, downloads)
	for _, gid := range gids {
		fmt.Println(gid)
	}
	return err
}

func handlePurge(c *cli.Context) error {
	return aria.Purge(ctx)
}

func handleAdd(c *cli.Context) error {
	options, err := parseOptions(c)
	if err != nil {
		return err
	}
	gid, err := aria.AddURIs(ctx, c.Args(), options)
	if err != nil {
		return err
	}
	fmt.Println(gid)
	return nil
}

func handleAddMagnet(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("give exactly one magnet link")
	}
	options, err := parseOptions(c)
	if err != nil {
		return err
	}
	gid, err := aria.AddMagnet(ctx, c.Args().First(), options)
	if err != nil {
		return err
	}
	fmt.Println(gid)
	return nil
}

func handleAddTorrent(c *cli.Context) error {
	if c.NArg() < 1 {
		return errors.New("give a torrent file")
	}
	options, err := parseOptions(c)
	if err != nil {
		return err
	}
	f, err := os.Open(c.Args().First())
	if err != nil {
		return err
	}
	defer f.Close()
	gid, err := aria.AddTorrent(ctx, f, c.Args().Tail(), options)
	if err != nil {
		return err
	}
	fmt.Println(gid)
	return nil
}

func handleAddMetalink(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("give a metalink file")
	}
	options, err := parseOptions(c)
	if err != nil {
		return err
	}
	f, err := os.Open(c.Args().First())
	if err != nil {
		return err
	}
	defer f.Close()
	gids, err := aria.AddMetalink(ctx, f, options)
	if err != nil {
		return err
	}
	for _, gid := range gids {
		fmt.Println(gid)
	}
	return nil
}
