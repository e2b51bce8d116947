package hindsight

import (
	"time"

	"go.uber.org/zap"
)

type Config struct {
	Logger       *zap.Logger
	MaxPageSize  int
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	FetchTimeout time.Duration
	QueryTimeout time.Duration
}

const (
	// DefaultMaxPageSize is the service limit per remote call
	DefaultMaxPageSize = 100

	DefaultMaxAttempts  = 5
	DefaultInitialDelay = 250 * time.Millisecond
	DefaultMaxDelay     = 8 * time.Second
	DefaultFetchTimeout = 15 * time.Second
	DefaultQueryTimeout = 5 * time.Minute
)

func DefaultConfig() Config {
	return Config{
		MaxPageSize:  DefaultMaxPageSize,
		MaxAttempts:  DefaultMaxAttempts,
		InitialDelay: DefaultInitialDelay,
		MaxDelay:     DefaultMaxDelay,
		FetchTimeout: DefaultFetchTimeout,
		QueryTimeout: DefaultQueryTimeout,
	}
}

func (c Config) withDefaults() Config {
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.MaxPageSize <= 0 || c.MaxPageSize > DefaultMaxPageSize {
		c.MaxPageSize = DefaultMaxPageSize
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = DefaultInitialDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
	return c
}
