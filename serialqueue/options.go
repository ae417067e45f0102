package serialqueue

import (
	"time"

	log "github.com/sirupsen/logrus"

	"displayctl/protocol"
)

const (
	// DefaultTimeout is the time the queue waits for a response
	// before raising EventTimeout.
	DefaultTimeout = 3 * time.Second

	defaultEventBuffer = 32
)

// Config holds the queue configuration.
type Config struct {
	// Timeout is the maximum time to wait for a response
	Timeout time.Duration

	// CommandDelay is the minimum time between two consecutive
	// transmissions. Zero disables it.
	CommandDelay time.Duration

	// Parser turns frames into responses. Frames it rejects are
	// dropped.
	Parser protocol.ParseFunc

	// Logger is used for logging, typically with a display field
	Logger *log.Entry

	// Observer is notified of every queue event (optional)
	Observer Observer

	// EventBuffer is the capacity of the Events channel
	EventBuffer int
}

func defaultConfig() Config {
	return Config{
		Timeout:     DefaultTimeout,
		Parser:      protocol.ParseRaw,
		Logger:      log.NewEntry(log.StandardLogger()),
		Observer:    nopObserver{},
		EventBuffer: defaultEventBuffer,
	}
}

// Option is a functional option for configuring the Queue.
type Option func(*Config)

// WithTimeout sets the response timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.Timeout = timeout
		}
	}
}

// WithCommandDelay sets the minimum gap between transmissions.
func WithCommandDelay(delay time.Duration) Option {
	return func(c *Config) {
		if delay >= 0 {
			c.CommandDelay = delay
		}
	}
}

// WithParser sets the function used to validate and parse frames.
func WithParser(p protocol.ParseFunc) Option {
	return func(c *Config) {
		if p != nil {
			c.Parser = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Entry) Option {
	return func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	}
}

// WithObserver sets an Observer.
func WithObserver(o Observer) Option {
	return func(c *Config) {
		if o != nil {
			c.Observer = o
		}
	}
}

// WithEventBuffer sets the capacity of the Events channel.
func WithEventBuffer(n int) Option {
	return func(c *Config) {
		if n >= 0 {
			c.EventBuffer = n
		}
	}
}
