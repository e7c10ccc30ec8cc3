package intray_test

import (
	"context"
	"errors"
	"testing"

	// Packages
	intray "github.com/mutablelogic/go-intray"
	assert "github.com/stretchr/testify/assert"
)

func Test_ChunkError(t *testing.T) {
	cause := &intray.TransportError{Op: "chunk", Err: context.DeadlineExceeded}
	err := error(&intray.ChunkError{Index: 2, Err: cause})

	assert.ErrorIs(t, err, intray.ErrChunk)
	assert.ErrorIs(t, err, intray.ErrTransport)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, intray.ErrRejected)
	assert.Equal(t, "chunk 2: transport chunk: context deadline exceeded", err.Error())

	var chunkErr *intray.ChunkError
	if assert.ErrorAs(t, err, &chunkErr) {
		assert.Equal(t, 2, chunkErr.Index)
	}
}

func Test_InitError(t *testing.T) {
	err := intray.InitError(&intray.RemoteError{Message: "quota exceeded"})

	assert.ErrorIs(t, err, intray.ErrInit)
	assert.ErrorIs(t, err, intray.ErrRejected)
	assert.NotErrorIs(t, err, intray.ErrFinish)
	assert.Contains(t, err.Error(), "quota exceeded")

	var remote *intray.RemoteError
	if assert.ErrorAs(t, err, &remote) {
		assert.Equal(t, "quota exceeded", remote.Message)
	}
}

func Test_FinishError(t *testing.T) {
	err := intray.FinishError(&intray.TransportError{Err: errors.New("connection reset")})

	assert.ErrorIs(t, err, intray.ErrFinish)
	assert.ErrorIs(t, err, intray.ErrTransport)
	assert.Contains(t, err.Error(), "transport: connection reset")
}

func Test_InvalidConfig(t *testing.T) {
	err := intray.InvalidConfig("chunk size must be positive, got %d", 0)
	assert.ErrorIs(t, err, intray.ErrInvalidConfig)
	assert.Equal(t, "invalid configuration: chunk size must be positive, got 0", err.Error())
}

func Test_RemoteError(t *testing.T) {
	assert.Equal(t, "rejected by remote", (&intray.RemoteError{}).Error())
	assert.Equal(t, "rejected by remote: bad", (&intray.RemoteError{Message: "bad"}).Error())
}

func Test_SinkFuncs(t *testing.T) {
	var progress []float64
	sink := intray.SinkFuncs{
		Progress: func(_ uint64, f float64) { progress = append(progress, f) },
	}
	sink.OnProgress(1, 0.5)
	sink.OnDone(1, 0)
	sink.OnFailed(1, errors.New("ignored"))
	assert.Equal(t, []float64{0.5}, progress)
}
