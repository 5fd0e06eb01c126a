package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tradetally/internal/logging"
)

// NATSPublisher publishes events on a NATS connection.
type NATSPublisher struct {
	nc     *nats.Conn
	logger *logging.Logger
}

// Connect dials url. An empty url yields a NopPublisher.
func Connect(ctx context.Context, url string, logger *logging.Logger) (Publisher, error) {
	if strings.TrimSpace(url) == "" {
		return NopPublisher{}, nil
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	nc, err := nats.Connect(url,
		nats.Name("tradetally"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(1*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn(context.Background(), "nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info(context.Background(), "nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	logger.Info(ctx, "nats publisher ready", zap.String("url", url))
	return NewNATSPublisher(nc, logger), nil
}

// NewNATSPublisher wraps an existing connection.
func NewNATSPublisher(nc *nats.Conn, logger *logging.Logger) *NATSPublisher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &NATSPublisher{nc: nc, logger: logger}
}

// Publish marshals e and publishes it on e.Subject().
func (p *NATSPublisher) Publish(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.Type == "" {
		return errors.New("event type is required")
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.nc.Publish(e.Subject(), data); err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	return nil
}

// Close drains the connection.
func (p *NATSPublisher) Close() {
	if p == nil || p.nc == nil {
		return
	}
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
	}
}

// Subscribe calls handle for every event matching pattern (for example
// "trade.*" or ">") until ctx is done.
func Subscribe(ctx context.Context, nc *nats.Conn, pattern string, handle func(Event)) error {
	if pattern == "" {
		pattern = ">"
	}
	msgs := make(chan *nats.Msg, 64)
	sub, err := nc.ChanSubscribe(SubjectPrefix+pattern, msgs)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-msgs:
			var e Event
			if err := json.Unmarshal(msg.Data, &e); err != nil {
				continue
			}
			handle(e)
		}
	}
}

// Emit builds and publishes an event, logging instead of returning errors.
func Emit(ctx context.Context, p Publisher, logger *logging.Logger, eventType, userID string, data any) {
	if p == nil {
		return
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	e, err := New(eventType, userID, data)
	if err != nil {
		logger.Warn(ctx, "build event failed", zap.String("type", eventType), zap.Error(err))
		return
	}
	if err := p.Publish(ctx, e); err != nil {
		logger.Warn(ctx, "publish event failed", zap.String("type", eventType), zap.Error(err))
	}
}

var _ Publisher = (*NATSPublisher)(nil)
