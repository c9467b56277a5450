// cmd/fsconsole/main.go
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/tamzrod/fsbridge/internal/config"
	"github.com/tamzrod/fsbridge/internal/fsconnect"
	"github.com/tamzrod/fsbridge/internal/host"
	"github.com/tamzrod/fsbridge/internal/radio"
)

// fsconsole is an interactive shell against the host. Without a config
// file it talks to the built-in simulator.
func main() {
	cfg := &config.Config{Host: config.HostConfig{Transport: config.TransportSimulated}}
	if len(os.Args) > 1 {
		var err error
		if cfg, err = config.Load(os.Args[1]); err != nil {
			fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
			os.Exit(1)
		}
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "config validation failed: %v\n", err)
		os.Exit(1)
	}
	config.Normalize(cfg)

	shell := ishell.New()
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	sess := fsconnect.New(
		host.Dialer(cfg.Host, log),
		fsconnect.WithLogger(log),
		fsconnect.WithAppName(cfg.AppName+" console"),
		fsconnect.WithConfigIndex(cfg.Host.ConfigIndex),
		fsconnect.WithRequestTimeout(time.Duration(cfg.Host.TimeoutMs)*time.Millisecond),
	)
	sess.OnError(func(e *fsconnect.HostException) {
		shell.Println("host exception:", e)
	})
	sess.OnPauseStateChanged(func(paused bool) {
		shell.Printf("host pause: %t\n", paused)
	})

	connect, cleanup, err := host.Connector(cfg.Host, sess)
	if err != nil {
		fmt.Fprintf(os.Stderr, "host setup failed: %v\n", err)
		os.Exit(1)
	}

	con := &console{
		sess:    sess,
		connect: connect,
		radioOpts: []radio.Option{
			radio.WithLogger(log),
			radio.WithTimeout(time.Duration(cfg.Radio.TimeoutMs) * time.Millisecond),
		},
		log:     log,
		timeout: time.Duration(cfg.Host.TimeoutMs) * time.Millisecond,
	}

	shell.Println("fsbridge console (" + cfg.Host.Transport + ")")

	// reply adapts a console command to the shell.
	reply := func(usage string, fn func(args []string) (string, error)) func(*ishell.Context) {
		return func(c *ishell.Context) {
			out, err := fn(c.Args)
			switch {
			case errors.Is(err, errUsage):
				c.Println("usage:", usage)
			case err != nil:
				c.Err(err)
			case out != "":
				c.Println(out)
			}
		}
	}

	shell.AddCmd(&ishell.Cmd{
		Name: "connect",
		Help: "connect to the host",
		Func: reply("connect", func([]string) (string, error) {
			return con.Connect(func() { shell.Println("host link closed") })
		}),
	})
	shell.AddCmd(&ishell.Cmd{
		Name: "disconnect",
		Help: "close the host connection",
		Func: reply("disconnect", func([]string) (string, error) { return con.Disconnect() }),
	})
	shell.AddCmd(&ishell.Cmd{
		Name: "status",
		Help: "show connection state and cached frequencies",
		Func: reply("status", func([]string) (string, error) { return con.Status(), nil }),
	})
	shell.AddCmd(&ishell.Cmd{
		Name: "refresh",
		Help: "read both COM radios",
		Func: reply("refresh", func([]string) (string, error) { return con.Refresh() }),
	})
	shell.AddCmd(&ishell.Cmd{
		Name: "stby",
		Help: "stby <1|2> <mhz>",
		Func: reply("stby <1|2> <mhz>", func(args []string) (string, error) { return con.Tune(false, args) }),
	})
	shell.AddCmd(&ishell.Cmd{
		Name: "active",
		Help: "active <1|2> <mhz>",
		Func: reply("active <1|2> <mhz>", func(args []string) (string, error) { return con.Tune(true, args) }),
	})
	shell.AddCmd(&ishell.Cmd{
		Name: "swap",
		Help: "swap <1|2>",
		Func: reply("swap <1|2>", con.Swap),
	})
	shell.AddCmd(&ishell.Cmd{
		Name: "pause",
		Help: "pause [on|off]",
		Func: reply("pause [on|off]", con.Pause),
	})
	shell.AddCmd(&ishell.Cmd{
		Name: "text",
		Help: "text <message>",
		Func: reply("text <message>", con.Text),
	})

	shell.Run()
	con.shutdown()
	if err := cleanup(); err != nil {
		log.Warn("removing transport config failed", "err", err)
	}
}
