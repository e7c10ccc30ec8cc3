package manager

import (
	"context"
	"log/slog"
	"time"

	// Packages
	intray "github.com/mutablelogic/go-intray"
	backend "github.com/mutablelogic/go-intray/pkg/backend"
	schema "github.com/mutablelogic/go-intray/pkg/schema"
	otelslog "go.opentelemetry.io/contrib/bridges/otelslog"
	trace "go.opentelemetry.io/otel/trace"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Opt is a functional option for upload manager configuration.
type Opt func(*opts) error

type opts struct {
	tracer       trace.Tracer
	logger       *slog.Logger
	backend      *backend.Backend
	expiry       time.Duration
	maxChunkSize int64
	maxFileSize  int64
}

////////////////////////////////////////////////////////////////////////////////
// GLOBALS

const (
	// DefaultExpiry is the idle time after which a pending upload is removed
	DefaultExpiry = 15 * time.Second

	// DefaultMaxChunkSize is the largest chunk size a client may request
	DefaultMaxChunkSize = 16 * schema.DefaultChunkSize
)

////////////////////////////////////////////////////////////////////////////////
// OPTIONS

// WithTracer sets the tracer used for tracing operations.
func WithTracer(tracer trace.Tracer) Opt {
	return func(o *opts) error {
		o.tracer = tracer
		return nil
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Opt {
	return func(o *opts) error {
		if logger != nil {
			o.logger = logger
		}
		return nil
	}
}

// WithBackend sets the blob backend (mem://, file://, s3://) which stores
// chunks and finished files. The manager takes ownership of the backend.
func WithBackend(ctx context.Context, url string, backendOpts ...backend.Opt) Opt {
	return func(o *opts) error {
		if o.backend != nil {
			return intray.InvalidConfig("backend already set")
		}
		b, err := backend.NewBlobBackend(ctx, url, backendOpts...)
		if err != nil {
			return err
		}
		o.backend = b
		return nil
	}
}

// WithExpiry sets the idle time after which a pending upload is removed
func WithExpiry(expiry time.Duration) Opt {
	return func(o *opts) error {
		if expiry <= 0 {
			return intray.InvalidConfig("expiry must be greater than zero, got %v", expiry)
		}
		o.expiry = expiry
		return nil
	}
}

// WithMaxChunkSize sets the largest chunk size a client may request
func WithMaxChunkSize(size int64) Opt {
	return func(o *opts) error {
		o.maxChunkSize = size
		return nil
	}
}

// WithMaxFileSize rejects uploads larger than size bytes. Zero means no limit.
func WithMaxFileSize(size int64) Opt {
	return func(o *opts) error {
		o.maxFileSize = size
		return nil
	}
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func applyOpts(opt []Opt) (opts, error) {
	// Set defaults
	o := opts{
		expiry:       DefaultExpiry,
		maxChunkSize: DefaultMaxChunkSize,
	}

	// Apply options
	for _, fn := range opt {
		if err := fn(&o); err != nil {
			if o.backend != nil {
				o.backend.Close()
			}
			return opts{}, err
		}
	}

	// Late defaults
	if o.logger == nil {
		o.logger = otelslog.NewLogger(schema.SchemaName)
	}

	// Return success
	return o, nil
}
