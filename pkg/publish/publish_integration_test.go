//go:build integration

package publish

import (
	"encoding/json"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newtron-network/routewatch/internal/testutil"
	"github.com/newtron-network/routewatch/pkg/model"
)

const testRedisDB = 9

func TestRedisSink_Integration(t *testing.T) {
	testutil.SkipIfNoRedis(t)
	testutil.FlushDB(t, testRedisDB)
	ctx := testutil.Context(t)

	sink := NewRedisSink(RedisOptions{Addr: testutil.RedisAddr(), DB: testRedisDB, Channel: "routewatch.snapshots"})
	defer sink.Close()
	require.NoError(t, sink.Ping(ctx))

	client := testutil.RedisClient(t, testRedisDB)
	sub := client.Subscribe(ctx, "routewatch.snapshots")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, sink.Publish(ctx, testutil.SampleSnapshot("c1")))

	id, err := client.Get(ctx, "routewatch:snapshot:id").Result()
	require.NoError(t, err)
	assert.Equal(t, "c1", id)

	devices := testutil.ReadHash(t, testRedisDB, "routewatch:devices")
	require.Len(t, devices, 2)
	var d model.Device
	require.NoError(t, json.Unmarshal([]byte(devices["10.255.0.1"]), &d))
	assert.Equal(t, "pe1.test", d.Name)

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "c1", msg.Payload)

	// Devices that disappear from the inventory disappear from the hash.
	next := model.NewSnapshot("c2", time.Now())
	next.Exporters["10.255.0.9"] = model.NewDevice(model.InventoryDevice{Name: "pe9.test"})
	require.NoError(t, sink.Publish(ctx, next))
	devices = testutil.ReadHash(t, testRedisDB, "routewatch:devices")
	assert.Len(t, devices, 1)
	assert.Contains(t, devices, "10.255.0.9")
}

func TestAMQPSink_Integration(t *testing.T) {
	testutil.SkipIfNoAMQP(t)
	ctx := testutil.Context(t)

	queue := "routewatch-test-" + time.Now().Format("150405.000")
	sink := NewAMQPSink(AMQPOptions{URL: testutil.AMQPURL(), RoutingKey: queue})
	defer sink.Close()

	require.NoError(t, sink.Publish(ctx, testutil.SampleSnapshot("c1")))

	conn, err := amqp.Dial(testutil.AMQPURL())
	require.NoError(t, err)
	defer conn.Close()
	ch, err := conn.Channel()
	require.NoError(t, err)
	defer ch.Close()
	defer ch.QueueDelete(queue, false, false, false)

	msg, ok, err := ch.Get(queue, true)
	require.NoError(t, err)
	require.True(t, ok, "message should be queued")
	assert.Equal(t, "c1", msg.MessageId)
	assert.Equal(t, "application/json", msg.ContentType)

	var doc struct {
		Exporters map[string]json.RawMessage `json:"exporters"`
	}
	require.NoError(t, json.Unmarshal(msg.Body, &doc))
	assert.Len(t, doc.Exporters, 2)
}
