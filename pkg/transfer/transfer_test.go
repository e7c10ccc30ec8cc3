package transfer_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	// Packages
	intray "github.com/mutablelogic/go-intray"
	schema "github.com/mutablelogic/go-intray/pkg/schema"
	source "github.com/mutablelogic/go-intray/pkg/source"
	transfer "github.com/mutablelogic/go-intray/pkg/transfer"
	assert "github.com/stretchr/testify/assert"
	require "github.com/stretchr/testify/require"
)

const mib = 1024 * 1024

///////////////////////////////////////////////////////////////////////////////
// FAKE TRANSPORT

type call struct {
	Op    string
	Index int
	Size  int64
}

type fakeTransport struct {
	sync.Mutex
	calls     []call
	data      bytes.Buffer
	startErr  error
	finishErr error
	chunkErr  func(index, attempt int) error
	attempts  map[int]int
}

func (f *fakeTransport) Start(_ context.Context, req schema.StartRequest) (string, error) {
	f.Lock()
	defer f.Unlock()
	f.calls = append(f.calls, call{Op: "start", Index: -1, Size: req.Size})
	if f.startErr != nil {
		return "", f.startErr
	}
	return "token", nil
}

func (f *fakeTransport) Chunk(_ context.Context, token string, index int, r io.Reader, size int64) error {
	f.Lock()
	defer f.Unlock()
	if f.attempts == nil {
		f.attempts = make(map[int]int)
	}
	f.attempts[index]++
	f.calls = append(f.calls, call{Op: "chunk", Index: index, Size: size})
	if token != "token" {
		return errors.New("bad token")
	}
	if f.chunkErr != nil {
		if err := f.chunkErr(index, f.attempts[index]); err != nil {
			return err
		}
	}
	_, err := io.Copy(&f.data, r)
	return err
}

func (f *fakeTransport) Finish(_ context.Context, token string) error {
	f.Lock()
	defer f.Unlock()
	f.calls = append(f.calls, call{Op: "finish", Index: -1})
	return f.finishErr
}

func (f *fakeTransport) ops() []string {
	f.Lock()
	defer f.Unlock()
	result := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		result = append(result, c.Op)
	}
	return result
}

type fakeOneshot struct {
	fakeTransport
	full int
}

func (f *fakeOneshot) Full(_ context.Context, name string, r io.Reader, size int64) (int64, error) {
	f.Lock()
	defer f.Unlock()
	f.full++
	f.calls = append(f.calls, call{Op: "full", Size: size})
	return io.Copy(&f.data, r)
}

///////////////////////////////////////////////////////////////////////////////
// TESTS

func Test_New(t *testing.T) {
	assert := assert.New(t)

	client, err := transfer.New(new(fakeTransport))
	assert.NoError(err)
	assert.Equal(int64(schema.DefaultChunkSize), client.ChunkSize())
	assert.Equal(schema.DefaultRetryLimit, client.RetryLimit())

	_, err = transfer.New(nil)
	assert.ErrorIs(err, intray.ErrInvalidConfig)

	_, err = transfer.New(new(fakeTransport), transfer.WithChunkSize(0))
	assert.ErrorIs(err, intray.ErrInvalidConfig)

	_, err = transfer.New(new(fakeTransport), transfer.WithRetryLimit(0))
	assert.ErrorIs(err, intray.ErrInvalidConfig)

	_, err = transfer.New(new(fakeTransport), transfer.WithOneshotThreshold(-1))
	assert.ErrorIs(err, intray.ErrInvalidConfig)
}

func Test_Upload_chunks(t *testing.T) {
	require := require.New(t)
	transport := new(fakeTransport)
	client, err := transfer.New(transport, transfer.WithChunkSize(4*mib))
	require.NoError(err)

	data := bytes.Repeat([]byte("0123456789"), mib)
	var progress []int
	_, err = client.Upload(context.Background(), source.Bytes("ten.bin", data), func(index, count int) {
		assert.Equal(t, 3, count)
		progress = append(progress, index)
	})
	require.NoError(err)

	assert.Equal(t, []int{0, 1, 2}, progress)
	assert.Equal(t, []string{"start", "chunk", "chunk", "chunk", "finish"}, transport.ops())
	assert.Equal(t, int64(4*mib), transport.calls[1].Size)
	assert.Equal(t, int64(4*mib), transport.calls[2].Size)
	assert.Equal(t, int64(2*mib), transport.calls[3].Size)
	assert.Equal(t, data, transport.data.Bytes())
}

func Test_Upload_zero(t *testing.T) {
	transport := new(fakeTransport)
	client, err := transfer.New(transport)
	require.NoError(t, err)

	var progress int
	_, err = client.Upload(context.Background(), source.Bytes("empty", nil), func(int, int) { progress++ })
	require.NoError(t, err)
	assert.Equal(t, 0, progress)
	assert.Equal(t, []string{"start", "finish"}, transport.ops())
}

func Test_Upload_retry(t *testing.T) {
	transport := &fakeTransport{
		chunkErr: func(index, attempt int) error {
			if index == 1 && attempt < 3 {
				return errors.New("connection reset")
			}
			return nil
		},
	}
	client, err := transfer.New(transport, transfer.WithChunkSize(4), transfer.WithRetryLimit(3))
	require.NoError(t, err)

	var progress []int
	_, err = client.Upload(context.Background(), source.Bytes("file", []byte("0123456789")), func(index, count int) {
		assert.Equal(t, 3, count)
		progress = append(progress, index)
	})
	require.NoError(t, err)
	assert.Equal(t, 3, transport.attempts[1])
	assert.Equal(t, []int{0, 1, 2}, progress)
	assert.Equal(t, "0123456789", transport.data.String())
}

func Test_Upload_exhausted(t *testing.T) {
	cause := errors.New("connection reset")
	transport := &fakeTransport{
		chunkErr: func(index, attempt int) error {
			if index == 1 {
				return cause
			}
			return nil
		},
	}
	client, err := transfer.New(transport, transfer.WithChunkSize(4), transfer.WithRetryLimit(3))
	require.NoError(t, err)

	var progress []int
	_, err = client.Upload(context.Background(), source.Bytes("file", []byte("0123456789")), func(index, _ int) {
		progress = append(progress, index)
	})

	var chunkErr *intray.ChunkError
	require.ErrorAs(t, err, &chunkErr)
	assert.Equal(t, 1, chunkErr.Index)
	assert.ErrorIs(t, err, intray.ErrChunk)
	assert.ErrorIs(t, err, cause)

	// No later chunk is attempted and finish is never called
	assert.Equal(t, 3, transport.attempts[1])
	assert.Zero(t, transport.attempts[2])
	assert.Equal(t, []int{0}, progress)
	assert.NotContains(t, transport.ops(), "finish")
}

func Test_Upload_rejected(t *testing.T) {
	transport := &fakeTransport{
		startErr: &intray.RemoteError{Message: "quota exceeded"},
	}
	client, err := transfer.New(transport)
	require.NoError(t, err)

	_, err = client.Upload(context.Background(), source.Bytes("file", []byte("data")), nil)
	assert.ErrorIs(t, err, intray.ErrInit)
	assert.ErrorIs(t, err, intray.ErrRejected)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.Equal(t, []string{"start"}, transport.ops())
}

func Test_Upload_finish(t *testing.T) {
	transport := &fakeTransport{
		finishErr: &intray.TransportError{Op: "finish", Err: errors.New("EOF")},
	}
	client, err := transfer.New(transport)
	require.NoError(t, err)

	_, err = client.Upload(context.Background(), source.Bytes("file", []byte("data")), nil)
	assert.ErrorIs(t, err, intray.ErrFinish)
	assert.ErrorIs(t, err, intray.ErrTransport)
}

func Test_Upload_oneshot(t *testing.T) {
	transport := new(fakeOneshot)
	client, err := transfer.New(transport, transfer.WithChunkSize(4), transfer.WithOneshotThreshold(16))
	require.NoError(t, err)

	var progress [][2]int
	_, err = client.Upload(context.Background(), source.Bytes("file", []byte("0123456789")), func(index, count int) {
		progress = append(progress, [2]int{index, count})
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"full"}, transport.ops())
	assert.Equal(t, [][2]int{{0, 1}}, progress)
	assert.Equal(t, "0123456789", transport.data.String())

	// Larger than the threshold uses chunks
	_, err = client.Upload(context.Background(), source.Bytes("file", bytes.Repeat([]byte("x"), 17)), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, transport.full)
	assert.Contains(t, transport.ops(), "finish")
}

func Test_Upload_oneshot_disabled(t *testing.T) {
	transport := new(fakeOneshot)
	client, err := transfer.New(transport, transfer.WithChunkSize(4))
	require.NoError(t, err)

	_, err = client.Upload(context.Background(), source.Bytes("file", []byte("0123")), nil)
	require.NoError(t, err)
	assert.Zero(t, transport.full)
	assert.Equal(t, []string{"start", "chunk", "finish"}, transport.ops())
}

func Test_Upload_cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	transport := &fakeTransport{
		chunkErr: func(index, attempt int) error {
			cancel()
			return context.Canceled
		},
	}
	client, err := transfer.New(transport, transfer.WithChunkSize(4), transfer.WithRetryLimit(5))
	require.NoError(t, err)

	_, err = client.Upload(ctx, source.Bytes("file", []byte("0123456789")), nil)
	assert.ErrorIs(t, err, intray.ErrChunk)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, transport.attempts[0])
}
