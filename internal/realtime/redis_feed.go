package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"campushub/internal/middleware"

	"github.com/redis/go-redis/v9"
)

// RedisFeed fans events out over Redis pub/sub. Each event is published on the
// table channel and once per scope.
type RedisFeed struct {
	rdb *redis.Client
}

// NewRedisFeed wraps an existing client.
func NewRedisFeed(rdb *redis.Client) *RedisFeed {
	return &RedisFeed{rdb: rdb}
}

// Publish implements Feed.
func (f *RedisFeed) Publish(ctx context.Context, ev ChangeEvent) error {
	if f.rdb == nil {
		return errors.New("redis feed has no client")
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}
	_, err = f.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, filter := range ev.Filters() {
			p.Publish(ctx, filter.Channel(), payload)
		}
		return nil
	})
	return err
}

// Subscribe implements Feed. It returns once Redis has confirmed the subscription.
func (f *RedisFeed) Subscribe(ctx context.Context, filter Filter, h Handler) (Subscription, error) {
	if f.rdb == nil {
		return nil, errors.New("redis feed has no client")
	}
	channel := filter.Channel()
	ps := f.rdb.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &redisSub{ps: ps, cancel: cancel}
	ch := ps.Channel()

	go func() {
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					middleware.Logger.Warn("dropping malformed change event",
						slog.String("channel", msg.Channel),
						slog.String("error", err.Error()),
					)
					continue
				}
				safeDeliver(h, ev)
			}
		}
	}()
	return s, nil
}

// Close is a no-op; the Redis client is owned by the cache package.
func (f *RedisFeed) Close() error {
	return nil
}

type redisSub struct {
	ps     *redis.PubSub
	cancel context.CancelFunc
	once   sync.Once
	err    error
}

func (s *redisSub) Unsubscribe() error {
	s.once.Do(func() {
		s.cancel()
		s.err = s.ps.Close()
	})
	return s.err
}
