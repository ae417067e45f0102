package display

import (
	"time"

	log "github.com/sirupsen/logrus"

	"displayctl/serialqueue"
)

const (
	// DefaultPollInterval is the time between two state polls
	DefaultPollInterval = 10 * time.Second
	// DefaultMaxRetries is the number of times a command is resent
	// after a timeout or an error answer before giving up.
	DefaultMaxRetries = 3
)

// Config holds the controller configuration.
type Config struct {
	// Name identifies the display in logs, metrics and callbacks
	Name string

	Timeout      time.Duration
	CommandDelay time.Duration

	// PollInterval is the time between polls. Zero disables polling.
	PollInterval time.Duration

	MaxRetries int

	Logger *log.Entry

	// Observer watches the command queue (optional)
	Observer serialqueue.Observer

	// OnStateChanged is called after every state change (optional)
	OnStateChanged func(name string, st State)
}

func defaultConfig() Config {
	return Config{
		Timeout:      serialqueue.DefaultTimeout,
		PollInterval: DefaultPollInterval,
		MaxRetries:   DefaultMaxRetries,
	}
}

// Option is a functional option for configuring a Controller.
type Option func(*Config)

func WithName(name string) Option {
	return func(c *Config) {
		c.Name = name
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.Timeout = timeout
		}
	}
}

func WithCommandDelay(delay time.Duration) Option {
	return func(c *Config) {
		if delay >= 0 {
			c.CommandDelay = delay
		}
	}
}

// WithPollInterval sets the poll interval, zero disables polling.
func WithPollInterval(interval time.Duration) Option {
	return func(c *Config) {
		if interval >= 0 {
			c.PollInterval = interval
		}
	}
}

func WithMaxRetries(n int) Option {
	return func(c *Config) {
		if n >= 0 {
			c.MaxRetries = n
		}
	}
}

func WithLogger(l *log.Entry) Option {
	return func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	}
}

func WithObserver(o serialqueue.Observer) Option {
	return func(c *Config) {
		if o != nil {
			c.Observer = o
		}
	}
}

func WithStateCallback(f func(name string, st State)) Option {
	return func(c *Config) {
		c.OnStateChanged = f
	}
}
