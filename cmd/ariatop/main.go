package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cenkalti/ariatop/api"
	"github.com/cenkalti/ariatop/ariarpc"
	"github.com/cenkalti/ariatop/internal/config"
	"github.com/cenkalti/ariatop/internal/console"
	"github.com/cenkalti/ariatop/internal/dashboard"
	"github.com/cenkalti/ariatop/internal/logger"
	"github.com/cenkalti/ariatop/listener"
	clog "github.com/cenkalti/log"
	"github.com/rcrowley/go-metrics"
	"github.com/urfave/cli"
)

var version = "0.0.0"

var _ dashboard.Backend = (*api.API)(nil)

var (
	app = cli.NewApp()
	log = logger.New("ariatop")

	ctx  context.Context
	cfg  *config.Config
	clt  *ariarpc.Client
	aria *api.API
)

func main() {
	var stop context.CancelFunc
	ctx, stop = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app.Name = "ariatop"
	app.Usage = "Monitor and control an aria2 daemon"
	app.Version = version
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "read config from `FILE`",
			Value: config.DefaultFile,
		},
		cli.StringFlag{
			Name:  "host",
			Usage: "daemon address with scheme, without port",
		},
		cli.IntFlag{
			Name:  "port, p",
			Usage: "daemon RPC port",
		},
		cli.StringFlag{
			Name:  "secret, s",
			Usage: "daemon RPC secret token",
		},
		cli.DurationFlag{
			Name:  "timeout",
			Usage: "timeout of a single RPC call",
		},
		cli.BoolFlag{
			Name:  "debug, d",
			Usage: "enable debug log",
		},
		cli.StringFlag{
			Name:  "log-file",
			Usage: "write the dashboard log to `FILE`",
		},
	}
	app.Before = handleBeforeCommand
	app.After = handleAfterCommand
	app.Action = handleTop
	app.Commands = []cli.Command{
		{
			Name:   "top",
			Usage:  "show the interactive dashboard",
			Action: handleTop,
		},
		{
			Name:  "listen",
			Usage: "run a command on daemon notifications",
			Flags: []cli.Flag{
				cli.StringSliceFlag{
					Name:  "event, e",
					Usage: "process only this event (start, pause, stop, error, complete, btcomplete); repeatable",
				},
				cli.DurationFlag{
					Name:  "timeout, t",
					Usage: "receive timeout, bounds the time to stop",
					Value: listener.DefaultTimeout,
				},
				cli.StringFlag{
					Name:  "exec",
					Usage: "run `COMMAND` with the event and the GID as arguments",
				},
			},
			Action: handleListen,
		},
		{
			Name:      "call",
			Usage:     "call a daemon method and print the raw reply",
			ArgsUsage: "METHOD [PARAMS_JSON]",
			Action:    handleCall,
		},
		{
			Name:      "show",
			Usage:     "list downloads, or show the given ones in detail",
			ArgsUsage: "[GID...]",
			Action:    handleShow,
		},
		{
			Name:      "pause",
			Usage:     "pause downloads",
			ArgsUsage: "GID...",
			Flags: []cli.Flag{
				cli.BoolFlag{Name: "all, a", Usage: "pause all downloads"},
				cli.BoolFlag{Name: "force, f", Usage: "do not wait for trackers and servers"},
			},
			Action: handlePause,
		},
		{
			Name:      "resume",
			Usage:     "resume paused downloads",
			ArgsUsage: "GID...",
			Flags: []cli.Flag{
				cli.BoolFlag{Name: "all, a", Usage: "resume all downloads"},
			},
			Action: handleResume,
		},
		{
			Name:      "remove",
			Usage:     "remove downloads",
			ArgsUsage: "GID...",
			Flags: []cli.Flag{
				cli.BoolFlag{Name: "force, f", Usage: "do not wait for trackers and servers"},
			},
			Action: handleRemove,
		},
		{
			Name:      "retry",
			Usage:     "add failed downloads again",
			ArgsUsage: "GID...",
			Action:    handleRetry,
		},
		{
			Name:   "purge",
			Usage:  "remove finished downloads from the list",
			Action: handlePurge,
		},
		{
			Name:      "add",
			Usage:     "add a download from one or more mirrors of the same file",
			ArgsUsage: "URI...",
			Flags:     []cli.Flag{optionFlag},
			Action:    handleAdd,
		},
		{
			Name:      "add-magnet",
			Usage:     "add a magnet link",
			ArgsUsage: "URI",
			Flags:     []cli.Flag{optionFlag},
			Action:    handleAddMagnet,
		},
		{
			Name:      "add-torrent",
			Usage:     "add a torrent file",
			ArgsUsage: "FILE [WEBSEED_URI...]",
			Flags:     []cli.Flag{optionFlag},
			Action:    handleAddTorrent,
		},
		{
			Name:      "add-metalink",
			Usage:     "add a metalink file",
			ArgsUsage: "FILE",
			Flags:     []cli.Flag{optionFlag},
			Action:    handleAddMetalink,
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func handleBeforeCommand(c *cli.Context) error {
	var err error
	cfg, err = config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if c.IsSet("host") {
		cfg.Host = c.String("host")
	}
	if c.IsSet("port") {
		cfg.Port = c.Int("port")
	}
	if c.IsSet("secret") {
		cfg.Secret = c.String("secret")
	}
	if c.IsSet("timeout") {
		cfg.Timeout = c.Duration("timeout")
	}
	if c.IsSet("log-file") {
		if err = cfg.SetLogFile(c.String("log-file")); err != nil {
			return err
		}
	}
	if c.Bool("debug") {
		logger.SetLevel(clog.DEBUG)
	}
	clt, err = ariarpc.New(cfg.ClientConfig())
	if err != nil {
		return err
	}
	aria = api.New(clt)
	return nil
}

func handleAfterCommand(c *cli.Context) error {
	if clt == nil {
		return nil
	}
	var buf bytes.Buffer
	metrics.WriteOnce(clt.Metrics(), &buf)
	log.Debugf("rpc metrics:\n%s", buf.String())
	return clt.Close()
}

func handleTop(c *cli.Context) error {
	keys, err := cfg.Keys()
	if err != nil {
		return err
	}
	dash := dashboard.New(aria, dashboard.Config{
		RefreshInterval: cfg.Dashboard.RefreshInterval,
		MessageDuration: cfg.Dashboard.MessageDuration,
		KeyNames:        keys,
	})
	con, err := console.New(dash, console.Config{
		Tick:   cfg.Dashboard.Tick,
		Keys:   keys,
		Styles: cfg.Colors,
	})
	if err != nil {
		return err
	}
	// The terminal belongs to the dashboard from here on.
	f, err := logger.ToFile(cfg.LogFile)
	if err != nil {
		return err
	}
	defer f.Close()
	log.Infoln("starting dashboard for", clt)
	return con.Run(ctx)
}
