package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/time/rate"

	"github.com/newtron-network/routewatch/pkg/cli"
	"github.com/newtron-network/routewatch/pkg/collector"
	"github.com/newtron-network/routewatch/pkg/history"
	"github.com/newtron-network/routewatch/pkg/inventory"
	"github.com/newtron-network/routewatch/pkg/netbox"
	"github.com/newtron-network/routewatch/pkg/netconf"
	"github.com/newtron-network/routewatch/pkg/poller"
	"github.com/newtron-network/routewatch/pkg/publish"
	"github.com/newtron-network/routewatch/pkg/server"
	"github.com/newtron-network/routewatch/pkg/settings"
	"github.com/newtron-network/routewatch/pkg/snapshot"
	"github.com/newtron-network/routewatch/pkg/util"
)

// newInventory returns the static inventory when one is configured,
// NetBox otherwise.
func newInventory(s *settings.Settings) (poller.InventorySource, error) {
	if s.InventoryFile != "" {
		return inventory.NewStatic(s.InventoryFile), nil
	}
	c, err := netbox.New(s.NetBox.URL, s.NetBox.Token, netbox.Options{
		PageSize:  s.NetBox.PageSize,
		RateLimit: s.NetBox.RateLimit,
		Burst:     s.NetBox.Burst,
		Timeout:   s.NetBox.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// newDialer builds the NETCONF dialer. A missing password is prompted for
// when running on a terminal.
func newDialer(s *settings.Settings) (*netconf.Dialer, error) {
	d := &netconf.Dialer{
		Port: s.NETCONF.Port,
		Credentials: netconf.Credentials{
			Username: s.NETCONF.Username,
			Password: s.NETCONF.Password,
		},
		Timeout:      s.NETCONF.Timeout,
		MaxReplySize: s.NETCONF.MaxReplySize,
	}
	if len(s.NETCONF.Overrides) > 0 {
		d.Overrides = make(map[string]netconf.Credentials, len(s.NETCONF.Overrides))
		for addr, c := range s.NETCONF.Overrides {
			d.Overrides[addr] = netconf.Credentials{Username: c.Username, Password: c.Password}
		}
	}
	if len(s.NETCONF.KnownHosts) > 0 {
		cb, err := netconf.KnownHosts(s.NETCONF.KnownHosts...)
		if err != nil {
			return nil, err
		}
		d.HostKeyCallback = cb
	} else {
		util.Warnf("netconf.known_hosts not set, device host keys are not verified")
	}

	if d.Credentials.Password == "" {
		pw, err := cli.PromptPassword(os.Stderr, fmt.Sprintf("NETCONF password for %s: ", d.Credentials.Username))
		switch {
		case err == nil:
			d.Credentials.Password = pw
		case errors.Is(err, cli.ErrNotTerminal):
			util.Warnf("netconf password not set")
		default:
			return nil, err
		}
	}
	return d, nil
}

// newSinks opens every configured sink. On error the sinks opened so far
// are closed.
func newSinks(ctx context.Context, s *settings.Settings) (sinks []publish.Sink, err error) {
	defer func() {
		if err != nil {
			publish.CloseAll(sinks)
			sinks = nil
		}
	}()

	if s.Output.File != "" {
		sinks = append(sinks, publish.NewFileSink(s.Output.File))
	}
	if s.Redis.Addr != "" {
		r := publish.NewRedisSink(publish.RedisOptions{
			Addr:     s.Redis.Addr,
			Password: s.Redis.Password,
			DB:       s.Redis.DB,
			Prefix:   s.Redis.Prefix,
			Channel:  s.Redis.Channel,
		})
		sinks = append(sinks, r)
		// An unreachable Redis is retried on every publish.
		if err := r.Ping(ctx); err != nil {
			util.WithComponent("redis").WithError(err).Warn("redis not reachable")
		}
	}
	if s.AMQP.URL != "" {
		sinks = append(sinks, publish.NewAMQPSink(publish.AMQPOptions{
			URL:        s.AMQP.URL,
			Exchange:   s.AMQP.Exchange,
			RoutingKey: s.AMQP.RoutingKey,
			Expiration: s.AMQP.Expiration,
		}))
	}
	if s.Skogul.Config != "" {
		k, err := publish.NewSkogulSink(s.Skogul.Config, s.Skogul.Handler)
		if err != nil {
			return sinks, err
		}
		sinks = append(sinks, k)
	}
	if s.SQLite.Path != "" {
		q, err := publish.NewSQLiteSink(s.SQLite.Path)
		if err != nil {
			return sinks, err
		}
		sinks = append(sinks, q)
	}
	return sinks, nil
}

// newHistory opens the cycle journal, or returns nil when none is
// configured.
func newHistory(s *settings.Settings) (*history.FileLogger, error) {
	if s.History.File == "" {
		return nil, nil
	}
	return history.NewFileLogger(s.History.File, history.RotationConfig{
		MaxSize:    s.History.MaxSize,
		MaxBackups: s.History.MaxBackups,
	})
}

func newPoller(s *settings.Settings, store *snapshot.Store, sinks []publish.Sink) (*poller.Poller, error) {
	inv, err := newInventory(s)
	if err != nil {
		return nil, err
	}
	d, err := newDialer(s)
	if err != nil {
		return nil, err
	}
	return &poller.Poller{
		Collector:     collector.New(collector.NetconfOpener{Dialer: d}),
		Inventory:     inv,
		Store:         store,
		Sinks:         sinks,
		Workers:       s.Workers,
		DeviceTimeout: s.DeviceTimeout,
		Logger:        util.WithComponent("poller"),
	}, nil
}

func newServer(s *settings.Settings, store *snapshot.Store) *server.Server {
	return server.New(server.Config{
		Listen:         s.Server.Listen,
		RateLimit:      rate.Limit(s.Server.RateLimit),
		RateLimitBurst: s.Server.Burst,
	}, store)
}
