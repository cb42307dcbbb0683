package publish

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/newtron-network/routewatch/pkg/model"
)

// RedisOptions configures RedisSink.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// Prefix is prepended to every key, default "routewatch:".
	Prefix string
	// Channel receives the snapshot ID after each publish; empty disables.
	Channel string
}

// RedisSink stores the latest snapshot in Redis:
//
//	<prefix>snapshot        full document (string)
//	<prefix>devices         hash address -> device JSON
//	<prefix>snapshot:id     ID of the stored snapshot
//
// All keys are replaced in one MULTI/EXEC transaction.
type RedisSink struct {
	client  *redis.Client
	prefix  string
	channel string
}

// NewRedisSink creates a Redis sink. The connection is established lazily.
func NewRedisSink(opts RedisOptions) *RedisSink {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "routewatch:"
	}
	return &RedisSink{
		client: redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		}),
		prefix:  prefix,
		channel: opts.Channel,
	}
}

func (r *RedisSink) Name() string { return "redis" }

// Ping tests the connection.
func (r *RedisSink) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisSink) Publish(ctx context.Context, s *model.Snapshot) error {
	doc, err := encode(s)
	if err != nil {
		return err
	}
	devices := make(map[string]interface{}, len(s.Exporters))
	for addr, d := range s.Exporters {
		b, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("encode device %s: %w", addr, err)
		}
		devices[addr] = b
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.prefix+"snapshot", doc, 0)
		pipe.Set(ctx, r.prefix+"snapshot:id", s.ID, 0)
		pipe.Del(ctx, r.prefix+"devices")
		if len(devices) > 0 {
			pipe.HSet(ctx, r.prefix+"devices", devices)
		}
		if r.channel != "" {
			pipe.Publish(ctx, r.channel, s.ID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (r *RedisSink) Close() error {
	return r.client.Close()
}
