package transfer

import (
	"log/slog"

	// Packages
	backoff "github.com/cenkalti/backoff/v4"
	intray "github.com/mutablelogic/go-intray"
	schema "github.com/mutablelogic/go-intray/pkg/schema"
	otelslog "go.opentelemetry.io/contrib/bridges/otelslog"
	global "go.opentelemetry.io/otel"
	metric "go.opentelemetry.io/otel/metric"
	trace "go.opentelemetry.io/otel/trace"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Opt is a functional option for transfer client configuration
type Opt func(*opts) error

type opts struct {
	chunkSize  int64
	retryLimit int
	oneshot    int64
	backoff    func() backoff.BackOff
	tracer     trace.Tracer
	meter      metric.Meter
	logger     *slog.Logger
}

////////////////////////////////////////////////////////////////////////////////
// OPTIONS

// WithChunkSize sets the number of bytes sent per chunk
func WithChunkSize(size int64) Opt {
	return func(o *opts) error {
		if size <= 0 {
			return intray.InvalidConfig("chunk size must be greater than zero, got %d", size)
		}
		o.chunkSize = size
		return nil
	}
}

// WithRetryLimit sets the maximum number of attempts per chunk, including the
// first one
func WithRetryLimit(limit int) Opt {
	return func(o *opts) error {
		if limit < 1 {
			return intray.InvalidConfig("retry limit must be at least one, got %d", limit)
		}
		o.retryLimit = limit
		return nil
	}
}

// WithRetryBackoff sets the policy for the delay between attempts of a chunk.
// The function is called once per chunk. The default is to retry immediately.
func WithRetryBackoff(fn func() backoff.BackOff) Opt {
	return func(o *opts) error {
		if fn == nil {
			fn = zeroBackoff
		}
		o.backoff = fn
		return nil
	}
}

// WithOneshotThreshold sends files of at most size bytes in a single request
// when the transport supports it. Zero disables oneshot uploads.
func WithOneshotThreshold(size int64) Opt {
	return func(o *opts) error {
		if size < 0 {
			return intray.InvalidConfig("oneshot threshold must not be negative, got %d", size)
		}
		o.oneshot = size
		return nil
	}
}

// WithTracer sets the tracer used for tracing upload phases
func WithTracer(tracer trace.Tracer) Opt {
	return func(o *opts) error {
		o.tracer = tracer
		return nil
	}
}

// WithMeter sets the meter used for chunk metrics
func WithMeter(meter metric.Meter) Opt {
	return func(o *opts) error {
		if meter != nil {
			o.meter = meter
		}
		return nil
	}
}

// WithLogger sets the logger for retry and phase messages
func WithLogger(logger *slog.Logger) Opt {
	return func(o *opts) error {
		if logger != nil {
			o.logger = logger
		}
		return nil
	}
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func applyOpts(opt []Opt) (opts, error) {
	// Set defaults
	o := opts{
		chunkSize:  schema.DefaultChunkSize,
		retryLimit: schema.DefaultRetryLimit,
		oneshot:    0,
		backoff:    zeroBackoff,
	}

	// Apply options
	for _, fn := range opt {
		if err := fn(&o); err != nil {
			return opts{}, err
		}
	}

	// Late defaults
	if o.meter == nil {
		o.meter = global.GetMeterProvider().Meter(schema.SchemaName)
	}
	if o.logger == nil {
		o.logger = otelslog.NewLogger(schema.SchemaName)
	}

	// Return success
	return o, nil
}

func zeroBackoff() backoff.BackOff {
	return &backoff.ZeroBackOff{}
}
