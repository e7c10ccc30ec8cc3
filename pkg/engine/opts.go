package engine

import (
	"log/slog"

	// Packages
	backoff "github.com/cenkalti/backoff/v4"
	intray "github.com/mutablelogic/go-intray"
	schema "github.com/mutablelogic/go-intray/pkg/schema"
	transfer "github.com/mutablelogic/go-intray/pkg/transfer"
	otelslog "go.opentelemetry.io/contrib/bridges/otelslog"
	global "go.opentelemetry.io/otel"
	metric "go.opentelemetry.io/otel/metric"
	trace "go.opentelemetry.io/otel/trace"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Opt is a functional option for engine configuration
type Opt func(*opts) error

type opts struct {
	workers  int
	sink     intray.Sink
	tracer   trace.Tracer
	meter    metric.Meter
	logger   *slog.Logger
	transfer []transfer.Opt
}

////////////////////////////////////////////////////////////////////////////////
// OPTIONS

// WithWorkers sets the number of files uploaded concurrently. Each worker
// holds its own connection to the remote, so more workers means more
// concurrent connections; the chunks of a single file are always sent in
// order by one worker whatever the count.
func WithWorkers(n int) Opt {
	return func(o *opts) error {
		if n < 1 {
			return intray.InvalidConfig("worker count must be at least one, got %d", n)
		}
		o.workers = n
		return nil
	}
}

// WithChunkSize sets the number of bytes sent per chunk
func WithChunkSize(size int64) Opt {
	return func(o *opts) error {
		o.transfer = append(o.transfer, transfer.WithChunkSize(size))
		return nil
	}
}

// WithRetryLimit sets the maximum number of attempts per chunk
func WithRetryLimit(limit int) Opt {
	return func(o *opts) error {
		o.transfer = append(o.transfer, transfer.WithRetryLimit(limit))
		return nil
	}
}

// WithRetryBackoff sets the delay policy between attempts of a chunk
func WithRetryBackoff(fn func() backoff.BackOff) Opt {
	return func(o *opts) error {
		o.transfer = append(o.transfer, transfer.WithRetryBackoff(fn))
		return nil
	}
}

// WithOneshotThreshold sends files of at most size bytes in a single request
// when the transport supports it
func WithOneshotThreshold(size int64) Opt {
	return func(o *opts) error {
		o.transfer = append(o.transfer, transfer.WithOneshotThreshold(size))
		return nil
	}
}

// WithSink sets the receiver of progress and results
func WithSink(sink intray.Sink) Opt {
	return func(o *opts) error {
		o.sink = sink
		return nil
	}
}

// WithTracer sets the tracer used for tracing uploads
func WithTracer(tracer trace.Tracer) Opt {
	return func(o *opts) error {
		o.tracer = tracer
		return nil
	}
}

// WithMeter sets the meter for task and chunk metrics
func WithMeter(meter metric.Meter) Opt {
	return func(o *opts) error {
		if meter != nil {
			o.meter = meter
		}
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

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func applyOpts(opt []Opt) (opts, error) {
	// Set defaults
	o := opts{
		workers: schema.DefaultWorkers,
		sink:    intray.SinkFuncs{},
	}

	// Apply options
	for _, fn := range opt {
		if err := fn(&o); err != nil {
			return opts{}, err
		}
	}

	// Late defaults
	if o.sink == nil {
		o.sink = intray.SinkFuncs{}
	}
	if o.meter == nil {
		o.meter = global.GetMeterProvider().Meter(schema.SchemaName)
	}
	if o.logger == nil {
		o.logger = otelslog.NewLogger(schema.SchemaName)
	}
	o.transfer = append(o.transfer,
		transfer.WithTracer(o.tracer),
		transfer.WithMeter(o.meter),
		transfer.WithLogger(o.logger),
	)

	// Return success
	return o, nil
}
