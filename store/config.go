package store

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

// Spec is what New builds a store from: its Config plus runtime wiring.
// Config contains the serializable settings loaded from a file.
type Spec struct {
	Config *Config
	// Name labels the store's metrics; defaults to "default".
	Name string
	// Initial is the initial tree; defaults to an empty map.
	Initial    any
	Log        *slog.Logger
	Registerer prometheus.Registerer
	Tracer     trace.Tracer
	// OnChange runs on the store loop after every change of the tree. It
	// must not call back into the store.
	OnChange func(old, new any)
}

// Config represents the store configuration file structure.
type Config struct {
	// MaxConcurrent bounds the operations executing at once.
	MaxConcurrent int `yaml:"maxConcurrent" validate:"gte=1,lte=1024"`

	// RetryCount is the default number of retries of a failed operation.
	RetryCount int `yaml:"retryCount" validate:"gte=0,lte=32"`

	// RetryDelay is the base of the exponential backoff between retries.
	RetryDelay time.Duration `yaml:"retryDelay" validate:"gte=0"`

	// RollbackOnError is the default for optimistic writes whose operation
	// fails.
	RollbackOnError bool `yaml:"rollbackOnError"`

	// MaxIndex is the largest array index a write path may carry, since
	// writing past the end of an array pads it. Zero means no limit.
	MaxIndex int `yaml:"maxIndex" validate:"gte=0"`
}

// DefaultMaxIndex is the MaxIndex of DefaultConfig.
const DefaultMaxIndex = 1 << 20

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxConcurrent:   4,
		RetryCount:      0,
		RetryDelay:      100 * time.Millisecond,
		RollbackOnError: true,
		MaxIndex:        DefaultMaxIndex,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid store config: %w", err)
	}
	return nil
}
