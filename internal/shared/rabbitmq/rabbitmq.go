package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/thudocloud/food-ordering-platform/internal/shared/config"
	"github.com/thudocloud/food-ordering-platform/internal/shared/logger"
)

const (
	// ConfirmationsQueue carries order-confirmation tasks from the producer
	// to the worker. Durable; messages are published persistent.
	ConfirmationsQueue = "order_confirmations"

	// DeadLetterExchange and DeadLetterQueue receive poison messages and
	// tasks whose retry budget is exhausted.
	DeadLetterExchange = "order_confirmations.dlx"
	DeadLetterQueue    = "order_confirmations.dead"
)

// Client is a resilient RabbitMQ connector with auto-reconnect and topology setup.
type Client struct {
	url    string
	logger *logger.Logger
	logCtx context.Context // carries context with request_id across reconnects

	mu      sync.RWMutex
	conn    *amqp.Connection
	pubChan *amqp.Channel

	closed    chan struct{}
	reconnect chan struct{}
	watchOnce sync.Once
}

// NewClient builds a client from config without dialing.
func NewClient(ctx context.Context, cfg *config.Config, log *logger.Logger) *Client {
	url := fmt.Sprintf("amqp://%s:%s@%s:%d/",
		cfg.RabbitMQ.User, cfg.RabbitMQ.Password, cfg.RabbitMQ.Host, cfg.RabbitMQ.Port)

	return &Client{
		url:       url,
		logger:    log,
		logCtx:    context.WithoutCancel(ctx), // avoid ctx cancel on reconnects
		closed:    make(chan struct{}),
		reconnect: make(chan struct{}, 1),
	}
}

// Connect dials once and starts the background reconnect watcher. On dial
// failure the watcher keeps retrying, so a producer can degrade to
// queued=false responses instead of refusing to start; the caller decides
// whether the returned error is fatal.
func (client *Client) Connect(ctx context.Context) error {
	err := client.connectOnce(ctx)
	client.startWatcher()
	if err != nil {
		client.requestReconnect()
	}
	return err
}

// ConnectWithRetry dials up to attempts times with a fixed delay between
// tries, then gives up. The worker cannot run without a queue connection, so
// its caller treats exhaustion as fatal.
func (client *Client) ConnectWithRetry(ctx context.Context, attempts int, delay time.Duration) error {
	var err error
	for i := 1; i <= attempts; i++ {
		if err = client.connectOnce(ctx); err == nil {
			client.startWatcher()
			return nil
		}

		client.logger.Error(ctx, "retry_attempted",
			fmt.Sprintf("RabbitMQ connect attempt %d/%d failed: %v", i, attempts, err), err)

		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("rabbitmq: connect failed after %d attempts: %w", attempts, err)
}

// NewConsumerChannel returns a fresh channel with prefetch (QoS) applied.
func (client *Client) NewConsumerChannel(prefetch int) (*amqp.Channel, error) {
	client.mu.RLock()
	conn := client.conn
	client.mu.RUnlock()

	// quick fail if no connection
	if conn == nil || conn.IsClosed() {
		return nil, errors.New("rabbitmq: connection is not ready")
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}

	if prefetch > 0 {
		if err := ch.Qos(prefetch, 0, false); err != nil {
			ch.Close()
			return nil, err
		}
	}

	return ch, nil
}

// PublishMessage publishes a persistent JSON message with optional headers.
func (client *Client) PublishMessage(exchange, routingKey string, body []byte, headers amqp.Table) error {
	client.mu.RLock()
	ch := client.pubChan
	conn := client.conn
	client.mu.RUnlock()

	// quick fail if no channel
	if conn == nil || conn.IsClosed() {
		return errors.New("rabbitmq: connection is not open")
	}
	if ch == nil || ch.IsClosed() {
		return errors.New("rabbitmq: publish channel is not open")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return ch.PublishWithContext(ctx,
		exchange, routingKey, false, false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent, // tasks survive broker restart
			ContentType:  "application/json",
			Headers:      headers,
			Body:         body,
		})
}

// Ping checks connectivity by dialing TCP to the RabbitMQ host.
func (client *Client) Ping(ctx context.Context, timeout time.Duration) error {
	client.mu.RLock()
	conn := client.conn
	url := client.url
	client.mu.RUnlock()

	if conn == nil || conn.IsClosed() {
		return errors.New("rabbitmq: no connection")
	}

	u, err := amqp.ParseURI(url)
	if err != nil {
		return fmt.Errorf("rabbitmq: bad url: %w", err)
	}
	addr := net.JoinHostPort(u.Host, fmt.Sprintf("%d", u.Port))

	d := net.Dialer{Timeout: timeout}
	c, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}

	_ = c.Close()
	return nil
}

// Close gracefully stops the watcher and closes AMQP resources.
func (client *Client) Close() {
	select {
	case <-client.closed:
		// already closed
	default:
		close(client.closed)
	}

	client.mu.Lock()
	if client.pubChan != nil {
		_ = client.pubChan.Close()
		client.pubChan = nil
	}
	if client.conn != nil {
		_ = client.conn.Close()
		client.conn = nil
	}
	client.mu.Unlock()
}

// --- internals ---

// connectOnce tries to connect and set up topology once.
func (client *Client) connectOnce(ctx context.Context) error {
	start := time.Now().UTC()

	// use DialConfig to set heartbeat and TCP dial timeout
	conn, err := amqp.DialConfig(client.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(10 * time.Second),
	})
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}

	// declare/ensure topology idempotently
	if err := declareTopology(ch); err != nil {
		ch.Close()
		conn.Close()
		return err
	}

	client.mu.Lock()
	client.conn = conn
	if client.pubChan != nil {
		_ = client.pubChan.Close()
	}
	client.pubChan = ch
	client.mu.Unlock()

	// watch for connection/channel closures and trigger reconnect
	go func() {
		connClosed := conn.NotifyClose(make(chan *amqp.Error, 1))
		chClosed := ch.NotifyClose(make(chan *amqp.Error, 1))
		select {
		case <-client.closed:
			return
		case <-connClosed:
		case <-chClosed:
		}
		client.requestReconnect()
	}()

	client.logger.Info(ctx, "rabbitmq_connected",
		fmt.Sprintf("Connected to RabbitMQ; queue %s declared", ConfirmationsQueue),
		map[string]any{"duration_ms": time.Since(start).Milliseconds()})

	return nil
}

// requestReconnect enqueues a reconnect signal if one is not already pending.
func (client *Client) requestReconnect() {
	select {
	case client.reconnect <- struct{}{}:
	default:
	}
}

// startWatcher launches the reconnect loop exactly once.
func (client *Client) startWatcher() {
	client.watchOnce.Do(func() {
		go client.watch()
	})
}

// watch runs in background and attempts reconnects with exponential backoff.
func (client *Client) watch() {
	backoff := time.Second
	for {
		select {
		case <-client.closed:
			return
		case <-client.reconnect:
			for {
				select {
				case <-client.closed:
					return
				default:
				}

				ctx, cancel := context.WithTimeout(client.logCtx, 30*time.Second)
				err := client.connectOnce(ctx)
				cancel()

				if err == nil {
					backoff = time.Second
					client.logger.Info(client.logCtx, "rabbitmq_reconnected", "Reconnected to RabbitMQ and re-ensured topology", nil)
					break
				}

				client.logger.Error(client.logCtx, "retry_attempted", fmt.Sprintf("RabbitMQ reconnect failed: %v", err), err)

				time.Sleep(backoff)
				if backoff < 30*time.Second {
					backoff *= 2
					if backoff > 30*time.Second {
						backoff = 30 * time.Second
					}
				}
			}
		}
	}
}

// declareTopology declares the confirmation queue and its dead-letter pair.
// Declaration is idempotent: both producer and worker run it on connect.
func declareTopology(ch *amqp.Channel) error {
	// dead-letter exchange + queue for poison and retry-exhausted messages
	if err := ch.ExchangeDeclare(DeadLetterExchange, "fanout", true, false, false, false, nil); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(DeadLetterQueue, true, false, false, false, nil); err != nil {
		return err
	}
	if err := ch.QueueBind(DeadLetterQueue, "", DeadLetterExchange, false, nil); err != nil {
		return err
	}

	// main confirmations queue: durable, dead-letters to the DLX
	_, err := ch.QueueDeclare(
		ConfirmationsQueue, true, false, false, false, amqp.Table{
			"x-dead-letter-exchange": DeadLetterExchange,
		},
	)
	return err
}
