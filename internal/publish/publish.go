// Package publish pushes display state changes to Redis.
//
// Every change is published as JSON on a pub/sub channel and prepended
// to the list displayctl:<name>:state, trimmed to the configured
// history length.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"displayctl/display"
	"displayctl/internal/config"
)

const pendingMessages = 256

// Message is the JSON payload published for a state change.
type Message struct {
	Display string    `json:"display"`
	Time    time.Time `json:"time"`
	Online  bool      `json:"online"`
	Power   string    `json:"power"`
	Input   string    `json:"input,omitempty"`
	Volume  *int      `json:"volume,omitempty"`
	Mute    string    `json:"mute"`
	Scaling string    `json:"scaling,omitempty"`
	Fault   string    `json:"fault,omitempty"`
}

// NewMessage returns the message for st. An unknown volume is omitted.
func NewMessage(name string, st display.State, at time.Time) Message {
	msg := Message{
		Display: name,
		Time:    at.UTC(),
		Online:  st.Online,
		Power:   st.Power.String(),
		Input:   string(st.Input),
		Mute:    st.Mute.String(),
		Scaling: string(st.Scaling),
		Fault:   st.Fault,
	}
	if st.Volume != display.VolumeUnknown {
		v := st.Volume
		msg.Volume = &v
	}
	return msg
}

// HistoryKey returns the list holding the past states of name.
func HistoryKey(name string) string {
	return fmt.Sprintf("displayctl:%s:state", name)
}

type Publisher struct {
	client  *redis.Client
	channel string
	history int
	pending chan Message
}

// New connects to Redis and checks the connection.
func New(ctx context.Context, cfg config.RedisConfig) (*Publisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}
	log.Infof("connected to redis at %s", cfg.Addr)
	return newPublisher(client, cfg.Channel, cfg.History), nil
}

func newPublisher(client *redis.Client, channel string, history int) *Publisher {
	return &Publisher{
		client:  client,
		channel: channel,
		history: history,
		pending: make(chan Message, pendingMessages),
	}
}

// StateChanged queues st for publishing. It never blocks; when Redis
// falls behind the change is dropped.
func (p *Publisher) StateChanged(name string, st display.State) {
	select {
	case p.pending <- NewMessage(name, st, time.Now()):
	default:
		log.WithField("display", name).Warn("redis publisher is behind, dropping state change")
	}
}

// Run publishes queued changes until ctx is done.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-p.pending:
			if err := p.Publish(ctx, msg); err != nil {
				log.WithField("display", msg.Display).Errorf("publishing state: %v", err)
			}
		}
	}
}

// Publish sends msg on the channel and records it in the history list.
func (p *Publisher) Publish(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return err
	}
	if p.history <= 0 {
		return nil
	}
	key := HistoryKey(msg.Display)
	pipe := p.client.Pipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, int64(p.history-1))
	if _, err := pipe.Exec(ctx); err != nil {
		log.WithField("display", msg.Display).Warnf("saving state history: %v", err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.client.Close()
}
