// Package telemetry forwards command traces to Redis so bench activity
// can be watched and replayed by outside tooling.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Event is one command exchange as seen by an instrument endpoint.
type Event struct {
	Bench      string    `json:"bench"`
	Instrument string    `json:"instrument"`
	Conn       string    `json:"conn"`
	Command    string    `json:"command"`
	Response   string    `json:"response"`
	At         time.Time `json:"at"`
}

// Publisher forwards events to whoever listens. Implementations must be
// safe for concurrent use across connection goroutines.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Nop returns a Publisher that drops every event, for benches running
// without Redis.
func Nop() Publisher { return nopPublisher{} }

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) error { return nil }
func (nopPublisher) Close() error                         { return nil }

// RedisPublisher fans events out over pub/sub and keeps a bounded
// per-instrument trace list as a backlog for late subscribers.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	history int64
	log     *zap.SugaredLogger
}

// NewRedisPublisher connects and pings the Redis instance. history
// bounds the kept trace list per instrument; zero keeps no backlog.
func NewRedisPublisher(addr, password, channel string, db int, history int64, log *zap.SugaredLogger) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connect failed: %w", err)
	}

	log.Infow("telemetry connected", "addr", addr, "channel", channel)

	return &RedisPublisher{
		client:  client,
		channel: channel,
		history: history,
		log:     log,
	}, nil
}

// Publish sends the event on the pub/sub channel and appends it to the
// instrument's trace list.
func (p *RedisPublisher) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	if p.history > 0 {
		listKey := fmt.Sprintf("virtbench:%s:trace", ev.Instrument)
		if err := p.client.LPush(ctx, listKey, data).Err(); err != nil {
			p.log.Warnw("trace backlog write failed", "err", err)
			return nil
		}
		p.client.LTrim(ctx, listKey, 0, p.history-1)
	}
	return nil
}

// Close shuts the Redis connection down.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
