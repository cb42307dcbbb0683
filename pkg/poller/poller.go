// Package poller runs collection cycles: it fans the per-device pipeline
// out over the inventory with bounded concurrency, assembles the results
// into one snapshot and publishes it.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/newtron-network/routewatch/pkg/collector"
	"github.com/newtron-network/routewatch/pkg/enrich"
	"github.com/newtron-network/routewatch/pkg/history"
	"github.com/newtron-network/routewatch/pkg/model"
	"github.com/newtron-network/routewatch/pkg/publish"
	"github.com/newtron-network/routewatch/pkg/snapshot"
	"github.com/newtron-network/routewatch/pkg/util"
)

// Defaults applied to zero-valued Poller fields.
const (
	DefaultWorkers       = 10
	DefaultDeviceTimeout = 90 * time.Second
	DefaultInterval      = 5 * time.Minute
)

// DeviceCollector collects the parsed state of one device.
type DeviceCollector interface {
	Collect(ctx context.Context, address string) (*collector.Result, error)
}

// InventorySource lists devices and the cable graph.
type InventorySource interface {
	Devices(ctx context.Context) (model.Inventory, error)
	Connections(ctx context.Context) (model.ConnectionMap, error)
}

// Poller orchestrates collection cycles.
type Poller struct {
	Collector DeviceCollector
	Inventory InventorySource
	Store     *snapshot.Store
	Sinks     []publish.Sink
	// History, when set, journals the outcome of every cycle.
	History history.Recorder

	// Workers bounds the number of devices collected at once.
	Workers int
	// DeviceTimeout bounds one device pipeline.
	DeviceTimeout time.Duration

	Logger *logrus.Entry
}

func (p *Poller) workers() int {
	if p.Workers <= 0 {
		return DefaultWorkers
	}
	return p.Workers
}

func (p *Poller) deviceTimeout() time.Duration {
	if p.DeviceTimeout <= 0 {
		return DefaultDeviceTimeout
	}
	return p.DeviceTimeout
}

func (p *Poller) log() *logrus.Entry {
	if p.Logger != nil {
		return p.Logger
	}
	return util.WithComponent("poller")
}

// CollectAll runs one pipeline per inventory address and returns the
// assembled snapshot. Device failures never fail the call; they produce
// the device's empty record with Error set.
func (p *Poller) CollectAll(ctx context.Context, devices model.Inventory, conns model.ConnectionMap) *model.Snapshot {
	return p.collect(ctx, uuid.NewString(), devices.Addresses(), devices, conns)
}

// collect collects targets; inv is used for identity and next-hop lookups
// and may hold more devices than targets.
func (p *Poller) collect(ctx context.Context, id string, targets []string, inv model.Inventory, conns model.ConnectionMap) *model.Snapshot {
	log := p.log().WithField("cycle", id)
	snap := model.NewSnapshot(id, time.Now())

	// One write-once slot per target; each goroutine owns its index.
	slots := make([]*model.Device, len(targets))

	var g errgroup.Group
	g.SetLimit(p.workers())
	for i, addr := range targets {
		g.Go(func() error {
			slots[i] = p.collectDevice(ctx, log, addr, inv, conns)
			return nil
		})
	}
	g.Wait()

	for i, addr := range targets {
		snap.Exporters[addr] = slots[i]
	}
	snap.CompletedAt = time.Now()
	return snap
}

func (p *Poller) collectDevice(ctx context.Context, log *logrus.Entry, addr string, inv model.Inventory, conns model.ConnectionMap) (d *model.Device) {
	log = log.WithField("address", addr)
	if name := inv[addr].Name; name != "" {
		log = log.WithField("device", name)
	}

	start := time.Now()
	defer func() {
		deviceCollectionDuration.Observe(time.Since(start).Seconds())
	}()
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("pipeline panic: %v", r)
			log.Error(err)
			deviceCollectionsTotal.WithLabelValues("error").Inc()
			d = enrich.Device(addr, inv, conns, nil, time.Now())
			d.Error = err.Error()
		}
	}()

	dctx, cancel := context.WithTimeout(ctx, p.deviceTimeout())
	defer cancel()

	res, err := p.Collector.Collect(dctx, addr)
	if err != nil {
		log.WithError(err).Warn("collection failed")
		deviceCollectionsTotal.WithLabelValues(failureStatus(err)).Inc()
		d = enrich.Device(addr, inv, conns, nil, time.Now())
		d.Error = err.Error()
		return d
	}

	d = enrich.Device(addr, inv, conns, res, time.Now())
	deviceCollectionsTotal.WithLabelValues("success").Inc()
	log.WithFields(logrus.Fields{
		"interfaces":  len(d.Interfaces),
		"nexthops":    len(d.NextHops),
		"mpls_labels": len(d.MPLSLabels),
		"duration":    time.Since(start).Round(time.Millisecond).String(),
	}).Debug("collected")
	return d
}

func failureStatus(err error) string {
	var de *util.DeviceError
	if errors.As(err, &de) {
		return de.Kind.String()
	}
	return "error"
}

// RunCycle lists the inventory, collects every device, makes the snapshot
// current and hands it to the sinks. An inventory failure aborts the cycle
// with an error matching util.ErrInventoryUnavailable and leaves the
// previous snapshot in place. If ctx ends during collection the partial
// snapshot is discarded and ctx.Err() returned.
func (p *Poller) RunCycle(ctx context.Context) (*model.Snapshot, error) {
	id := uuid.NewString()
	log := p.log().WithField("cycle", id)
	start := time.Now()
	log.Info("collection cycle started")

	status := "success"
	defer func() {
		cyclesTotal.WithLabelValues(status).Inc()
		cycleDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	}()

	devices, conns, err := p.inventory(ctx)
	if err != nil {
		status = "inventory_error"
		p.record(log, history.NewFailure(id, start, err))
		return nil, err
	}

	snap := p.collect(ctx, id, devices.Addresses(), devices, conns)
	if err := ctx.Err(); err != nil {
		status = "cancelled"
		return nil, err
	}

	if p.Store != nil {
		p.Store.Publish(snap)
	}
	counts := snap.Counts()
	snapshotDevices.WithLabelValues("collected").Set(float64(counts.Devices - counts.Failed))
	snapshotDevices.WithLabelValues("failed").Set(float64(counts.Failed))
	lastSuccess.SetToCurrentTime()

	log.WithFields(logrus.Fields{
		"devices":  counts.Devices,
		"failed":   counts.Failed,
		"duration": time.Since(start).Round(time.Millisecond).String(),
	}).Info("snapshot published")

	p.publish(ctx, log, snap)
	p.record(log, history.FromSnapshot(snap))
	return snap, nil
}

func (p *Poller) record(log *logrus.Entry, e *history.Event) {
	if p.History == nil {
		return
	}
	if err := p.History.Record(e); err != nil {
		log.WithError(err).Warn("recording cycle history failed")
	}
}

func (p *Poller) inventory(ctx context.Context) (model.Inventory, model.ConnectionMap, error) {
	devices, err := p.Inventory.Devices(ctx)
	if err != nil {
		return nil, nil, inventoryError("devices", err)
	}
	conns, err := p.Inventory.Connections(ctx)
	if err != nil {
		return nil, nil, inventoryError("connections", err)
	}
	return devices, conns, nil
}

func inventoryError(source string, err error) error {
	if errors.Is(err, util.ErrInventoryUnavailable) {
		return err
	}
	return util.NewInventoryError(source, err)
}

// publish hands snap to every sink. Failures are logged and counted only.
func (p *Poller) publish(ctx context.Context, log *logrus.Entry, snap *model.Snapshot) {
	for _, sink := range p.Sinks {
		if err := sink.Publish(ctx, snap); err != nil {
			sinkErrorsTotal.WithLabelValues(sink.Name()).Inc()
			log.WithField("sink", sink.Name()).WithError(err).Error("publish failed")
		}
	}
}

// Run runs a cycle immediately and then every interval until ctx is done.
// Cycles never overlap: a tick that fires while a cycle runs starts the
// next cycle as soon as it finishes. Cycle errors are logged and retried
// on the next tick.
func (p *Poller) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := p.RunCycle(ctx); err != nil && ctx.Err() == nil {
			p.log().WithError(err).Error("collection cycle failed")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Collect collects only the given addresses (all devices when none are
// given) and returns the snapshot without publishing it. Addresses unknown
// to the inventory are still collected, with empty identity.
func (p *Poller) Collect(ctx context.Context, addresses ...string) (*model.Snapshot, error) {
	devices, conns, err := p.inventory(ctx)
	if err != nil {
		return nil, err
	}
	targets := devices.Addresses()
	if len(addresses) > 0 {
		_, missing := devices.Subset(addresses...)
		for _, addr := range missing {
			p.log().WithField("address", addr).Warn("address not in inventory")
		}
		targets = dedupe(addresses)
	}

	snap := p.collect(ctx, uuid.NewString(), targets, devices, conns)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return snap, nil
}

func dedupe(addrs []string) []string {
	seen := make(map[string]bool, len(addrs))
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	return out
}
