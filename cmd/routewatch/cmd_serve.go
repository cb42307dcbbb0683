package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/newtron-network/routewatch/pkg/model"
	"github.com/newtron-network/routewatch/pkg/publish"
	"github.com/newtron-network/routewatch/pkg/snapshot"
	"github.com/newtron-network/routewatch/pkg/util"
	"github.com/newtron-network/routewatch/pkg/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Collect periodically and serve the latest snapshot",
	Long: `Run a collection cycle at startup and then every interval, publish each
snapshot to the configured sinks and serve it over HTTP.

Endpoints:
  GET /snapshot, /tmp.json     full snapshot document
  GET /v1/devices              per-device summary
  GET /v1/devices/{address}    one device
  GET /health, /ready          probes
  GET /metrics                 Prometheus metrics

SIGINT or SIGTERM stops the service after in-flight requests finish.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s := app.settings
		if err := s.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log := util.WithComponent("serve")
		log.WithField("version", version.Info()).Info("routewatch starting")

		sinks, err := newSinks(ctx, s)
		if err != nil {
			return err
		}
		defer func() {
			if err := publish.CloseAll(sinks); err != nil {
				log.WithError(err).Warn("closing sinks")
			}
		}()

		store := snapshot.New()
		p, err := newPoller(s, store, sinks)
		if err != nil {
			return err
		}
		hist, err := newHistory(s)
		if err != nil {
			return err
		}
		if hist != nil {
			defer hist.Close()
			p.History = hist
		}
		srv := newServer(s, store)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return p.Run(gctx, s.Interval) })
		g.Go(func() error { return srv.Start(gctx) })
		g.Go(func() error { return notifySystemd(gctx, store) })

		err = g.Wait()
		log.Info("routewatch stopped")
		return err
	},
}

// notifySystemd reports readiness at startup, a status
// line per published snapshot, and watchdog keepalives when the unit
// asks for them. Outside systemd every notification is a no-op.
func notifySystemd(ctx context.Context, store *snapshot.Store) error {
	log := util.WithComponent("systemd")
	notify := func(state string) {
		if _, err := daemon.SdNotify(false, state); err != nil {
			log.WithError(err).Debug("sd_notify failed")
		}
	}

	notify(daemon.SdNotifyReady)
	defer notify(daemon.SdNotifyStopping)

	var keepalive <-chan time.Time
	if interval, err := daemon.SdWatchdogEnabled(false); err == nil && interval > 0 {
		t := time.NewTicker(interval / 2)
		defer t.Stop()
		keepalive = t.C
	}

	updates := store.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-keepalive:
			notify(daemon.SdNotifyWatchdog)
		case snap := <-updates:
			notify("STATUS=" + statusLine(snap))
		}
	}
}

func statusLine(snap *model.Snapshot) string {
	c := snap.Counts()
	return fmt.Sprintf("snapshot %s: %d devices, %d failed", snap.ID, c.Devices, c.Failed)
}
