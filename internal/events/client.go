// Package events publishes mutation events to an AMQP topic exchange.
// Publishing is best-effort: a broker outage never blocks or fails a user
// action.
package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"budgetcal/internal/log"
)

// Circuit breaker states.
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	maxBackoff     = 30 * time.Second
	publishTimeout = 5 * time.Second
)

// ErrCircuitOpen is returned while the broker is considered down.
var ErrCircuitOpen = errors.New("events: circuit breaker is open")

// Publisher sends events somewhere.
type Publisher interface {
	Publish(ctx context.Context, e *Event) error
	Close() error
}

// Noop drops every event. Used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, *Event) error { return nil }
func (Noop) Close() error                          { return nil }

// Client publishes events over AMQP. It connects lazily and reconnects after
// connection errors, guarded by a circuit breaker.
type Client struct {
	url          string
	exchangeName string
	logger       *log.Logger
	observe      func(routingKey string, err error)

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	breakerMu    sync.Mutex
	state        int32
	failureCount int64
	lastFailure  time.Time
}

// Options configures a Client.
type Options struct {
	URL      string
	Exchange string
	Logger   *log.Logger
	// Observe, when set, is told the outcome of every publish attempt.
	Observe func(routingKey string, err error)
}

// NewClient returns a client that has not connected yet.
func NewClient(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	return &Client{
		url:          opts.URL,
		exchangeName: opts.Exchange,
		logger:       logger.WithComponent(log.ComponentEvents),
		observe:      opts.Observe,
	}
}

// Connect dials the broker, retrying with exponential backoff up to
// attempts times or until ctx ends.
func (c *Client) Connect(ctx context.Context, attempts int) error {
	var err error
	for attempt := 0; attempt < max(attempts, 1); attempt++ {
		if attempt > 0 {
			wait := exponentialBackoff(attempt - 1)
			c.log().InfoContext(ctx, "Retrying AMQP connection", "attempt", attempt+1, "wait", wait.String())
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		c.mu.Lock()
		err = c.connectLocked()
		c.mu.Unlock()
		if err == nil {
			return nil
		}
		c.log().WarnContext(ctx, "AMQP connection failed", log.FieldError, err.Error())
	}
	return err
}

func (c *Client) connectLocked() error {
	if c.channel != nil && !c.channel.IsClosed() {
		return nil
	}
	c.closeLocked()

	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	err = channel.ExchangeDeclare(
		c.exchangeName, // name
		"topic",        // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("declare exchange: %w", err)
	}
	c.conn = conn
	c.channel = channel
	return nil
}

// Publish sends e. It fails fast with ErrCircuitOpen while the breaker is
// open and returns ctx.Err() unchanged when ctx is already done.
func (c *Client) Publish(ctx context.Context, e *Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isCircuitOpen() {
		c.report(e, ErrCircuitOpen)
		return ErrCircuitOpen
	}

	body, err := e.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = c.publish(ctx, e.RoutingKey(), body)
	c.report(e, err)
	if err != nil {
		c.recordFailure()
		if isConnectionError(err) || errors.Is(err, amqp091.ErrClosed) {
			c.mu.Lock()
			c.closeLocked()
			c.mu.Unlock()
		}
		return fmt.Errorf("publish %s: %w", e.RoutingKey(), err)
	}
	c.recordSuccess()

	c.log().DebugContext(ctx, "Published event",
		log.FieldEvent, e.RoutingKey(),
		log.FieldResourceID, e.ID,
		"exchange", c.exchangeName)
	return nil
}

func (c *Client) publish(ctx context.Context, routingKey string, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connectLocked(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return c.channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		routingKey,     // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}

func (c *Client) report(e *Event, err error) {
	if c.observe != nil {
		c.observe(e.RoutingKey(), err)
	}
}

func (c *Client) log() *log.Logger {
	if c.logger == nil {
		return log.Discard()
	}
	return c.logger
}

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.state) != StateOpen {
		return false
	}
	c.breakerMu.Lock()
	since := time.Since(c.lastFailure)
	c.breakerMu.Unlock()
	if since > openTimeout {
		// Let one attempt through.
		atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	n := atomic.AddInt64(&c.failureCount, 1)
	c.breakerMu.Lock()
	c.lastFailure = time.Now()
	c.breakerMu.Unlock()
	if n >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		if atomic.SwapInt32(&c.state, StateOpen) != StateOpen {
			c.log().Warn("Event publishing suspended", "failures", n, "retry_after", openTimeout.String())
		}
	}
}

// exponentialBackoff is 1s doubled per attempt, capped at 30s.
func exponentialBackoff(attempt int) time.Duration {
	if attempt >= 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, s := range []string{
		"connection refused",
		"connection closed",
		"EOF",
		"broken pipe",
		"use of closed network connection",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (c *Client) closeLocked() {
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	return nil
}
