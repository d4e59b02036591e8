package rabbitmq

import (
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/streadway/amqp"
	"go.uber.org/zap"
)

// OrderQueue receives every order and payment event published on the exchange.
const OrderQueue = "order_queue"

// Routing patterns bound to OrderQueue.
var orderBindings = []string{"order.#", "payment.#"}

// Client holds the RabbitMQ connection and channel.
type Client struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *zap.Logger
	// amqp channels are not safe for concurrent publishing.
	mu sync.Mutex
}

// Config holds RabbitMQ connection details.
type Config struct {
	URL      string
	Exchange string
}

// Handler processes one delivery. A nil return acks it; an error nacks it and
// requeues it unless it was already redelivered.
type Handler func(msg amqp.Delivery) error

// NewClient connects to RabbitMQ, declares the topic exchange and binds the
// durable order queue to it.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.Exchange == "" {
		return nil, errors.New("rabbitmq exchange must not be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close() // Close connection if channel creation fails
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := declareTopology(ch, cfg.Exchange); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	logger.Info("rabbitmq client connected",
		zap.String("exchange", cfg.Exchange),
		zap.String("queue", OrderQueue),
	)

	return &Client{
		conn:     conn,
		channel:  ch,
		exchange: cfg.Exchange,
		logger:   logger,
	}, nil
}

func declareTopology(ch *amqp.Channel, exchange string) error {
	err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // kind
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	_, err = ch.QueueDeclare(
		OrderQueue, // name
		true,       // durable (persists messages across broker restarts)
		false,      // delete when unused
		false,      // exclusive
		false,      // no-wait
		nil,        // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare %s: %w", OrderQueue, err)
	}

	for _, key := range orderBindings {
		if err := ch.QueueBind(OrderQueue, key, exchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind %s to %s with %s: %w", OrderQueue, exchange, key, err)
		}
	}
	return nil
}

// Exchange returns the topic exchange declared by NewClient.
func (c *Client) Exchange() string {
	return c.exchange
}

// Close closes the RabbitMQ connection and channel.
func (c *Client) Close() error {
	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Publish sends a persistent JSON message to exchange with routingKey.
func (c *Client) Publish(exchange, routingKey string, body []byte) error {
	if c.channel == nil {
		return errors.New("RabbitMQ channel is not available")
	}

	c.mu.Lock()
	err := c.channel.Publish(
		exchange,   // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent, // Make message persistent
			Timestamp:    time.Now(),
		})
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", routingKey, err)
	}

	c.logger.Debug("published message", zap.String("exchange", exchange), zap.String("routing_key", routingKey))
	return nil
}

// ConsumeOrderEvents starts a goroutine that feeds every delivery on the
// order queue to handler. It returns once the consumer is registered.
func (c *Client) ConsumeOrderEvents(handler Handler) error {
	if c.channel == nil {
		return errors.New("RabbitMQ channel is not available for consumption")
	}

	msgs, err := c.channel.Consume(
		OrderQueue, // queue
		"",         // consumer tag
		false,      // auto-ack: set to false to manually acknowledge messages
		false,      // exclusive
		false,      // no-local
		false,      // no-wait
		nil,        // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("waiting for order events", zap.String("queue", OrderQueue))

	go func() {
		for msg := range msgs {
			process(c.logger, msg, handler)
		}
		c.logger.Info("order event consumer stopped")
	}()

	return nil
}

func process(logger *zap.Logger, msg amqp.Delivery, handler Handler) {
	log := logger.With(zap.Uint64("delivery_tag", msg.DeliveryTag), zap.String("routing_key", msg.RoutingKey))
	if err := handler(msg); err != nil {
		log.Warn("error processing message", zap.Error(err), zap.Bool("requeue", !msg.Redelivered))
		// Redelivered messages are dropped so a poison message cannot loop forever.
		if nackErr := msg.Nack(false, !msg.Redelivered); nackErr != nil {
			log.Error("error nacking message", zap.Error(nackErr))
		}
		return
	}
	if ackErr := msg.Ack(false); ackErr != nil {
		log.Error("error acking message", zap.Error(ackErr))
	}
}
