// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/atomic"

	"github.com/tochemey/sharedchain/internal/validation"
	"github.com/tochemey/sharedchain/log"
)

const (
	defaultConnectTimeout = 5 * time.Second
	subscriptionBuffer    = 64
)

// NATSConfig defines the NATS connection settings
type NATSConfig struct {
	// URL of the NATS server
	URL string
	// Subject events are published on
	Subject string
	// ConnectTimeout bounds the initial connection
	ConnectTimeout time.Duration
}

var _ validation.Validator = (*NATSConfig)(nil)

// Sanitize fills the zero values
func (c *NATSConfig) Sanitize() {
	c.URL = strings.TrimSpace(c.URL)
	c.Subject = strings.TrimSpace(c.Subject)
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
}

// Validate checks the configuration
func (c *NATSConfig) Validate() error {
	return validation.New(validation.FailFast()).
		AddValidator(validation.NewEmptyStringValidator("URL", c.URL)).
		AddValidator(validation.NewURLValidator(c.URL, "nats", "tls", "ws", "wss")).
		AddValidator(validation.NewEmptyStringValidator("Subject", c.Subject)).
		AddAssertion(!strings.ContainsAny(c.Subject, " \t\r\n"), "Subject must not contain whitespace").
		Validate()
}

// NATS publishes events on a NATS subject
type NATS struct {
	config *NATSConfig
	conn   *nats.Conn
	logger log.Logger
	closed *atomic.Bool
	// stop is closed by Close and ends every subscription
	stop chan struct{}
}

var _ Notifier = (*NATS)(nil)

// NewNATS connects to the NATS server
func NewNATS(config *NATSConfig, logger log.Logger) (*NATS, error) {
	if config == nil {
		return nil, errors.New("notify/nats: config is nil")
	}

	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	conn, err := nats.Connect(config.URL,
		nats.Timeout(config.ConnectTimeout),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("notify/nats: connect: %w", err)
	}

	if logger == nil {
		logger = log.DiscardLogger
	}

	return &NATS{
		config: config,
		conn:   conn,
		logger: logger,
		closed: atomic.NewBool(false),
		stop:   make(chan struct{}),
	}, nil
}

// Publish sends the event on the subject
func (n *NATS) Publish(_ context.Context, event Event) error {
	payload, err := event.Marshal()
	if err != nil {
		return fmt.Errorf("notify/nats: encode: %w", err)
	}

	if err := n.conn.Publish(n.config.Subject, payload); err != nil {
		return fmt.Errorf("notify/nats: publish: %w", err)
	}
	return nil
}

// Subscribe returns the events published on the subject. The channel is
// closed once ctx is done or the notifier is closed.
func (n *NATS) Subscribe(ctx context.Context) (<-chan Event, error) {
	if n.closed.Load() {
		return nil, fmt.Errorf("notify/nats: subscribe: %w", nats.ErrConnectionClosed)
	}

	messages := make(chan *nats.Msg, subscriptionBuffer)
	subscription, err := n.conn.ChanSubscribe(n.config.Subject, messages)
	if err != nil {
		return nil, fmt.Errorf("notify/nats: subscribe: %w", err)
	}

	// make sure the server registered the interest before returning
	flushCtx, cancel := context.WithTimeout(ctx, n.config.ConnectTimeout)
	defer cancel()

	if err := n.conn.FlushWithContext(flushCtx); err != nil {
		_ = subscription.Unsubscribe()
		return nil, fmt.Errorf("notify/nats: subscribe: %w", err)
	}

	events := make(chan Event)
	go func() {
		defer close(events)
		defer func() { _ = subscription.Unsubscribe() }()
		for {
			select {
			case <-ctx.Done():
				return
			case <-n.stop:
				return
			case message := <-messages:
				event, err := UnmarshalEvent(message.Data)
				if err != nil {
					n.logger.Warnf("notify/nats: dropping malformed event: %v", err)
					continue
				}

				select {
				case events <- event:
				case <-ctx.Done():
					return
				case <-n.stop:
					return
				}
			}
		}
	}()
	return events, nil
}

// Close closes the connection. Close is idempotent.
func (n *NATS) Close() error {
	if !n.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(n.stop)
	n.conn.Close()
	return nil
}
