package publish

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/newtron-network/routewatch/pkg/model"
	"github.com/newtron-network/routewatch/pkg/util"
)

// AMQPOptions configures AMQPSink.
type AMQPOptions struct {
	URL string
	// Exchange is declared as a durable fanout exchange. When empty, the
	// message goes to the default exchange and a queue named RoutingKey is
	// declared instead.
	Exchange   string
	RoutingKey string
	// Expiration is the per-message TTL; zero keeps messages until consumed.
	Expiration time.Duration
}

// AMQPSink publishes each snapshot document as one AMQP message. The
// broker connection is opened on first use and re-opened after a failure.
type AMQPSink struct {
	opts AMQPOptions

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewAMQPSink creates an AMQP sink.
func NewAMQPSink(opts AMQPOptions) *AMQPSink {
	if opts.RoutingKey == "" && opts.Exchange == "" {
		opts.RoutingKey = "routewatch"
	}
	return &AMQPSink{opts: opts}
}

func (a *AMQPSink) Name() string { return "amqp" }

func (a *AMQPSink) connect() error {
	if a.ch != nil && !a.ch.IsClosed() {
		return nil
	}
	a.reset()

	if u, err := url.Parse(a.opts.URL); err == nil {
		util.WithComponent("amqp").Debugf("connecting to broker %s", u.Redacted())
	}
	conn, err := amqp.Dial(a.opts.URL)
	if err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if a.opts.Exchange != "" {
		err = ch.ExchangeDeclare(
			a.opts.Exchange, // name
			"fanout",        // kind
			true,            // durable
			false,           // auto-delete
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
	} else {
		_, err = ch.QueueDeclare(
			a.opts.RoutingKey, // name
			false,             // durable
			false,             // delete when unused
			false,             // exclusive
			false,             // no-wait
			nil,               // arguments
		)
	}
	if err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("declare destination: %w", err)
	}
	a.conn, a.ch = conn, ch
	return nil
}

func (a *AMQPSink) reset() {
	if a.ch != nil {
		a.ch.Close()
	}
	if a.conn != nil {
		a.conn.Close()
	}
	a.ch, a.conn = nil, nil
}

func (a *AMQPSink) Publish(ctx context.Context, s *model.Snapshot) error {
	doc, err := encode(s)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.connect(); err != nil {
		return err
	}

	msg := amqp.Publishing{
		ContentType: "application/json",
		MessageId:   s.ID,
		Timestamp:   s.CompletedAt,
		Type:        "routewatch.snapshot",
		Body:        doc,
	}
	if a.opts.Expiration > 0 {
		msg.Expiration = fmt.Sprintf("%d", a.opts.Expiration.Milliseconds())
	}
	err = a.ch.PublishWithContext(ctx,
		a.opts.Exchange,   // exchange
		a.opts.RoutingKey, // routing key
		false,             // mandatory
		false,             // immediate
		msg)
	if err != nil {
		a.reset()
		return fmt.Errorf("amqp publish: %w", err)
	}
	return nil
}

func (a *AMQPSink) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reset()
	return nil
}
