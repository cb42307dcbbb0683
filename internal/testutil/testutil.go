//go:build integration

// Package testutil provides helpers for integration tests that need a live
// Redis or RabbitMQ.
package testutil

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RedisAddr returns the address of the test Redis (IP:port).
// It first checks ROUTEWATCH_TEST_REDIS_ADDR, then discovers the Docker
// container IP.
func RedisAddr() string {
	if addr := os.Getenv("ROUTEWATCH_TEST_REDIS_ADDR"); addr != "" {
		return addr
	}
	ip := containerIP("routewatch-test-redis")
	if ip == "" {
		return ""
	}
	return ip + ":6379"
}

// AMQPURL returns the URL of the test RabbitMQ broker.
func AMQPURL() string {
	if u := os.Getenv("ROUTEWATCH_TEST_AMQP_URL"); u != "" {
		return u
	}
	ip := containerIP("routewatch-test-rabbitmq")
	if ip == "" {
		return ""
	}
	return "amqp://guest:guest@" + ip + ":5672/"
}

func containerIP(name string) string {
	out, err := exec.Command("docker", "inspect",
		"--format", "{{range .NetworkSettings.Networks}}{{.IPAddress}}{{end}}",
		name).Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// SkipIfNoRedis skips the test if the test Redis is not reachable.
func SkipIfNoRedis(t *testing.T) {
	t.Helper()

	addr := RedisAddr()
	if addr == "" {
		t.Skip("test Redis not available: set ROUTEWATCH_TEST_REDIS_ADDR")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("test Redis not reachable at %s: %v", addr, err)
	}
}

// SkipIfNoAMQP skips the test if the test broker is not reachable.
func SkipIfNoAMQP(t *testing.T) {
	t.Helper()

	url := AMQPURL()
	if url == "" {
		t.Skip("test RabbitMQ not available: set ROUTEWATCH_TEST_AMQP_URL")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		t.Skipf("test RabbitMQ not reachable: %v", err)
	}
	conn.Close()
}

// Context returns a context with a reasonable timeout for tests.
// The cancel function is registered via t.Cleanup.
func Context(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}
