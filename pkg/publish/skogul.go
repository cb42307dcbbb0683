package publish

import (
	"context"
	"fmt"

	"github.com/telenornms/skogul"
	sconfig "github.com/telenornms/skogul/config"

	"github.com/newtron-network/routewatch/pkg/model"
)

// SkogulSink sends one skogul metric per device through a handler from a
// skogul configuration file, so snapshots can reach any skogul sender
// (InfluxDB, Kafka, HTTP, ...).
type SkogulSink struct {
	cfg     *sconfig.Config
	handler string
}

// NewSkogulSink loads the skogul configuration at path and checks that it
// defines handler.
func NewSkogulSink(path, handler string) (*SkogulSink, error) {
	if handler == "" {
		handler = "routewatch"
	}
	cfg, err := sconfig.Path(path)
	if err != nil {
		return nil, fmt.Errorf("skogul-config failed loading: %w", err)
	}
	if cfg.Handlers[handler] == nil {
		return nil, fmt.Errorf("missing %s handler in skogul config", handler)
	}
	return &SkogulSink{cfg: cfg, handler: handler}, nil
}

func (k *SkogulSink) Name() string { return "skogul" }

func (k *SkogulSink) Publish(_ context.Context, s *model.Snapshot) error {
	c := skogul.Container{Metrics: Metrics(s)}
	if len(c.Metrics) == 0 {
		return nil
	}
	if err := k.cfg.Handlers[k.handler].Handler.TransformAndSend(&c); err != nil {
		return fmt.Errorf("send failed: %w", err)
	}
	return nil
}

func (k *SkogulSink) Close() error { return nil }

// Metrics converts a snapshot into one metric per device: identity in the
// metadata, table sizes in the data.
func Metrics(s *model.Snapshot) []*skogul.Metric {
	metrics := make([]*skogul.Metric, 0, len(s.Exporters))
	for _, addr := range s.Addresses() {
		d := s.Exporters[addr]
		t := d.CollectedAt
		if t.IsZero() {
			t = s.CompletedAt
		}
		m := skogul.Metric{
			Time: &t,
			Metadata: map[string]interface{}{
				"address": addr,
				"name":    d.Name,
				"site":    d.Site,
				"regions": d.Regions,
				"cycle":   s.ID,
			},
			Data: map[string]interface{}{
				"interfaces":  len(d.Interfaces),
				"nexthops":    len(d.NextHops),
				"mpls_labels": len(d.MPLSLabels),
				"connected":   connected(d),
				"up":          !d.Failed(),
			},
		}
		if d.Failed() {
			m.Data["error"] = d.Error
		}
		metrics = append(metrics, &m)
	}
	return metrics
}

func connected(d *model.Device) int {
	n := 0
	for _, li := range d.Interfaces {
		if !li.Connection.IsZero() {
			n++
		}
	}
	return n
}
