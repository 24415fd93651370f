package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"campushub/internal/middleware"

	"github.com/nats-io/nats.go"
)

// NatsFeed fans events out over NATS core subjects.
type NatsFeed struct {
	nc *nats.Conn
}

// ConnectNats dials url with reconnects enabled.
func ConnectNats(url string) (*NatsFeed, error) {
	nc, err := nats.Connect(url,
		nats.Name("campushub"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				middleware.Logger.Warn("nats disconnected", slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			middleware.Logger.Info("nats reconnected", slog.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NatsFeed{nc: nc}, nil
}

// NewNatsFeed wraps an existing connection.
func NewNatsFeed(nc *nats.Conn) *NatsFeed {
	return &NatsFeed{nc: nc}
}

// Publish implements Feed.
func (f *NatsFeed) Publish(_ context.Context, ev ChangeEvent) error {
	if f.nc == nil {
		return errors.New("nats feed has no connection")
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}
	for _, filter := range ev.Filters() {
		if err := f.nc.Publish(filter.Subject(), payload); err != nil {
			return fmt.Errorf("publish %s: %w", filter.Subject(), err)
		}
	}
	return nil
}

// Subscribe implements Feed.
func (f *NatsFeed) Subscribe(_ context.Context, filter Filter, h Handler) (Subscription, error) {
	if f.nc == nil {
		return nil, errors.New("nats feed has no connection")
	}
	sub, err := f.nc.Subscribe(filter.Subject(), func(msg *nats.Msg) {
		var ev ChangeEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			middleware.Logger.Warn("dropping malformed change event",
				slog.String("subject", msg.Subject),
				slog.String("error", err.Error()),
			)
			return
		}
		safeDeliver(h, ev)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", filter.Subject(), err)
	}
	if err := f.nc.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("flush subscription: %w", err)
	}
	return sub, nil
}

// Close drains the connection.
func (f *NatsFeed) Close() error {
	if f.nc == nil {
		return nil
	}
	return f.nc.Drain()
}
