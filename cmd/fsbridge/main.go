// cmd/fsbridge/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/tamzrod/fsbridge/internal/config"
	"github.com/tamzrod/fsbridge/internal/fsconnect"
	"github.com/tamzrod/fsbridge/internal/host"
	"github.com/tamzrod/fsbridge/internal/httpapi"
	"github.com/tamzrod/fsbridge/internal/panel"
	"github.com/tamzrod/fsbridge/internal/poller"
	"github.com/tamzrod/fsbridge/internal/radio"
	"github.com/tamzrod/fsbridge/internal/writer"
)

const (
	reconnectDelay = 5 * time.Second
	openTimeout    = 10 * time.Second
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: fsbridge <config.yaml>")
		os.Exit(2)
	}

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "config validation failed: %v\n", err)
		os.Exit(1)
	}
	config.Normalize(cfg)

	log := newLogger(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("fsbridge stopped", "err", err)
		os.Exit(1)
	}
	log.Info("fsbridge stopped")
}

func newLogger(level string) *slog.Logger {
	var lv slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lv = slog.LevelDebug
	case "warn":
		lv = slog.LevelWarn
	case "error":
		lv = slog.LevelError
	default:
		lv = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lv}))
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// --------------------
	// Host session
	// --------------------

	sess := fsconnect.New(
		host.Dialer(cfg.Host, log),
		fsconnect.WithLogger(log),
		fsconnect.WithMetrics(fsconnect.NewMetrics(reg)),
		fsconnect.WithAppName(cfg.AppName),
		fsconnect.WithConfigIndex(cfg.Host.ConfigIndex),
		fsconnect.WithRequestTimeout(time.Duration(cfg.Host.TimeoutMs)*time.Millisecond),
	)
	sess.OnError(func(e *fsconnect.HostException) {
		log.Warn("host exception", "err", e)
	})
	sess.OnPauseStateChanged(func(paused bool) {
		log.Info("host pause", "paused", paused)
	})

	connect, cleanup, err := host.Connector(cfg.Host, sess)
	if err != nil {
		return err
	}
	defer func() {
		if err := cleanup(); err != nil {
			log.Warn("removing transport config failed", "err", err)
		}
	}()

	l := &link{
		sess:    sess,
		connect: connect,
		radioOpts: []radio.Option{
			radio.WithLogger(log),
			radio.WithTimeout(time.Duration(cfg.Radio.TimeoutMs) * time.Millisecond),
		},
		log:         log.With("component", "link"),
		retry:       reconnectDelay,
		openTimeout: openTimeout,
	}

	// --------------------
	// Poller -> status writer
	// --------------------

	p, err := poller.Build(cfg.Radio, l, l)
	if err != nil {
		return fmt.Errorf("poller build failed: %w", err)
	}

	var w writer.Writer
	if len(cfg.Mirror.Targets) > 0 {
		plan, err := writer.BuildPlan(cfg.Mirror)
		if err != nil {
			return fmt.Errorf("writer plan failed: %w", err)
		}
		clients, closeWriters, err := writer.BuildEndpointClients(cfg.Mirror)
		if err != nil {
			return fmt.Errorf("writer clients failed: %w", err)
		}
		defer closeWriters()
		w = writer.New(plan, clients)
	}

	var pn *panel.Panel
	if cfg.Panel != nil {
		var closePanel func() error
		pn, closePanel, err = panel.Build(*cfg.Panel, l, log)
		if err != nil {
			return fmt.Errorf("panel build failed: %w", err)
		}
		defer closePanel()
	}

	// ---- channel between poller and status writer ----
	out := make(chan poller.PollResult)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return l.Run(gctx) })
	g.Go(func() error { p.Run(gctx, out); return nil })
	g.Go(func() error { return runStatus(gctx, out, w, log.With("component", "status")) })

	// --------------------
	// Optional panel + HTTP
	// --------------------

	if pn != nil {
		g.Go(func() error { pn.Run(gctx); return nil })
	}

	if cfg.HTTP.Listen != "" {
		srv := &http.Server{
			Addr:              cfg.HTTP.Listen,
			Handler:           httpapi.New(l, l, reg, log),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			log.Info("http listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	log.Info("fsbridge running", "transport", cfg.Host.Transport, "targets", len(cfg.Mirror.Targets), "panel", cfg.Panel != nil)
	return g.Wait()
}
