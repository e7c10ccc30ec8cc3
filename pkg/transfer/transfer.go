// Package transfer uploads a single file through the three-phase
// start/chunk/finish protocol, retrying each chunk up to a limit.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	// Packages
	backoff "github.com/cenkalti/backoff/v4"
	otel "github.com/mutablelogic/go-client/pkg/otel"
	intray "github.com/mutablelogic/go-intray"
	chunk "github.com/mutablelogic/go-intray/pkg/chunk"
	schema "github.com/mutablelogic/go-intray/pkg/schema"
	attribute "go.opentelemetry.io/otel/attribute"
	metric "go.opentelemetry.io/otel/metric"
	trace "go.opentelemetry.io/otel/trace"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Client drives the upload of one file at a time. A Client holds no per-file
// state, so it may be shared between goroutines.
type Client struct {
	opts
	transport intray.Transport
	chunks    metric.Int64Counter
	retries   metric.Int64Counter
}

// ProgressFunc is called after chunk index of count has been transferred
type ProgressFunc func(index, count int)

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New returns a transfer client for the transport
func New(transport intray.Transport, opt ...Opt) (*Client, error) {
	self := new(Client)
	if transport == nil {
		return nil, intray.InvalidConfig("missing transport")
	} else {
		self.transport = transport
	}

	// Apply options
	if o, err := applyOpts(opt); err != nil {
		return nil, err
	} else {
		self.opts = o
	}

	// Metrics
	if counter, err := self.meter.Int64Counter(schema.SchemaName+".chunks",
		metric.WithDescription("Number of chunks transferred"),
		metric.WithUnit("{chunk}"),
	); err != nil {
		return nil, err
	} else {
		self.chunks = counter
	}
	if counter, err := self.meter.Int64Counter(schema.SchemaName+".chunk.retries",
		metric.WithDescription("Number of failed chunk attempts which were retried"),
		metric.WithUnit("{attempt}"),
	); err != nil {
		return nil, err
	} else {
		self.retries = counter
	}

	// Return success
	return self, nil
}

////////////////////////////////////////////////////////////////////////////////
// PROPERTIES

// ChunkSize returns the number of bytes sent per chunk
func (c *Client) ChunkSize() int64 {
	return c.chunkSize
}

// RetryLimit returns the maximum number of attempts per chunk
func (c *Client) RetryLimit() int {
	return c.retryLimit
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Upload transfers the file and returns the wall-clock time measured from the
// start of the upload. The progress function, which may be nil, is called
// after every chunk in ascending order.
//
// A failed start phase returns an error matching intray.ErrInit, a chunk which
// exhausted its attempts returns an *intray.ChunkError, and a failed finish
// phase returns an error matching intray.ErrFinish.
func (c *Client) Upload(ctx context.Context, file intray.File, progress ProgressFunc) (_ time.Duration, result error) {
	if file == nil {
		return 0, intray.InvalidConfig("missing file")
	}

	// OTEL span
	child, endFunc := otel.StartSpan(c.tracer, ctx, spanName("Upload"))
	defer func() { endFunc(result) }()
	trace.SpanFromContext(child).SetAttributes(
		attribute.String("file.name", file.Name()),
		attribute.Int64("file.size", file.Size()),
	)

	now := time.Now()
	size := file.Size()

	// Send small files in a single request
	if full, ok := c.transport.(intray.OneshotTransport); ok && c.oneshot > 0 && size > 0 && size <= c.oneshot {
		if err := c.full(child, full, file); err != nil {
			c.logger.ErrorContext(child, "upload failed", "file", file.Name(), "phase", schema.PhaseUploading, "error", err)
			return 0, err
		}
		if progress != nil {
			progress(0, 1)
		}
		return time.Since(now), nil
	}

	// Compute the chunk count before contacting the remote
	count, err := chunk.Count(size, c.chunkSize)
	if err != nil {
		return 0, err
	}

	// Start
	c.logger.DebugContext(child, "upload", "file", file.Name(), "phase", schema.PhaseStart, "size", size, "chunks", count)
	token, err := c.start(child, schema.StartRequest{
		Name:      file.Name(),
		Size:      size,
		ChunkSize: c.chunkSize,
	})
	if err != nil {
		c.logger.ErrorContext(child, "upload failed", "file", file.Name(), "phase", schema.PhaseStart, "error", err)
		return 0, err
	}
	job := schema.UploadJob{Token: token, ChunkSize: c.chunkSize, ChunkCount: count}

	// Chunks, strictly in ascending order
	for i := 0; i < job.ChunkCount; i++ {
		r := chunk.At(i, size, job.ChunkSize)
		if err := c.chunk(child, job, file, r); err != nil {
			c.logger.ErrorContext(child, "upload failed", "file", file.Name(), "phase", schema.PhaseUploading, "chunk", i, "error", err)
			return 0, err
		}
		if progress != nil {
			progress(i, job.ChunkCount)
		}
	}

	// Finish
	c.logger.DebugContext(child, "upload", "file", file.Name(), "phase", schema.PhaseFinishing)
	if err := c.finish(child, job); err != nil {
		c.logger.ErrorContext(child, "upload failed", "file", file.Name(), "phase", schema.PhaseFinishing, "error", err)
		return 0, err
	}

	// Return success
	elapsed := time.Since(now)
	c.logger.DebugContext(child, "upload", "file", file.Name(), "phase", schema.PhaseDone, "elapsed", elapsed)
	return elapsed, nil
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (c *Client) start(ctx context.Context, req schema.StartRequest) (_ string, result error) {
	child, endFunc := otel.StartSpan(c.tracer, ctx, spanName("start"))
	defer func() { endFunc(result) }()

	token, err := c.transport.Start(child, req)
	if err != nil {
		result = intray.InitError(err)
		return "", result
	} else if token == "" {
		result = intray.InitError(&intray.RemoteError{Message: "missing file token"})
		return "", result
	}
	return token, nil
}

func (c *Client) chunk(ctx context.Context, job schema.UploadJob, file intray.File, r chunk.Range) (result error) {
	child, endFunc := otel.StartSpan(c.tracer, ctx, spanName("chunk"))
	defer func() { endFunc(result) }()
	trace.SpanFromContext(child).SetAttributes(
		attribute.Int("chunk.index", r.Index),
		attribute.Int64("chunk.size", r.Len()),
	)

	if err := c.retry(child, r.Index, func() error {
		return c.transport.Chunk(child, job.Token, r.Index, r.Section(file), r.Len())
	}); err != nil {
		result = &intray.ChunkError{Index: r.Index, Err: err}
		return result
	}
	c.chunks.Add(child, 1)
	return nil
}

func (c *Client) finish(ctx context.Context, job schema.UploadJob) (result error) {
	child, endFunc := otel.StartSpan(c.tracer, ctx, spanName("finish"))
	defer func() { endFunc(result) }()

	if err := c.transport.Finish(child, job.Token); err != nil {
		result = intray.FinishError(err)
		return result
	}
	return nil
}

func (c *Client) full(ctx context.Context, transport intray.OneshotTransport, file intray.File) (result error) {
	child, endFunc := otel.StartSpan(c.tracer, ctx, spanName("full"))
	defer func() { endFunc(result) }()

	r := chunk.At(0, file.Size(), file.Size())
	if err := c.retry(child, 0, func() error {
		written, err := transport.Full(child, file.Name(), r.Section(file), r.Len())
		if err != nil {
			return err
		} else if written != r.Len() {
			return fmt.Errorf("remote wrote %d of %d bytes", written, r.Len())
		}
		return nil
	}); err != nil {
		result = &intray.ChunkError{Index: 0, Err: err}
		return result
	}
	c.chunks.Add(child, 1)
	return nil
}

// retry calls fn until it succeeds or the retry limit is reached, and returns
// the error of the last attempt
func (c *Client) retry(ctx context.Context, index int, fn func() error) error {
	attempt := 0
	policy := backoff.WithContext(backoff.WithMaxRetries(c.backoff(), uint64(c.retryLimit-1)), ctx)
	return backoff.RetryNotify(func() error {
		attempt++
		err := fn()
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(errors.Join(err, ctx.Err()))
		}
		return err
	}, policy, func(err error, delay time.Duration) {
		c.retries.Add(ctx, 1)
		c.logger.WarnContext(ctx, "chunk attempt failed", "chunk", index, "attempt", attempt, "limit", c.retryLimit, "retry_in", delay, "error", err)
	})
}

func spanName(op string) string {
	return schema.SchemaName + ".transfer." + op
}
