// Package manager holds the state of the receiver: uploads which have
// started but not yet finished, the chunks received for each, and their
// expiry.
package manager

import (
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	// Packages
	uuid "github.com/google/uuid"
	otel "github.com/mutablelogic/go-client/pkg/otel"
	intray "github.com/mutablelogic/go-intray"
	chunk "github.com/mutablelogic/go-intray/pkg/chunk"
	schema "github.com/mutablelogic/go-intray/pkg/schema"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

type Manager struct {
	opts
	mu      sync.Mutex
	pending map[string]*upload
}

type upload struct {
	schema.PendingUpload
	chunks *bitmap
	busy   int // chunk writes in progress
}

////////////////////////////////////////////////////////////////////////////////
// GLOBALS

// Name used for a oneshot upload without a name
const unnamedFile = "UnnamedFile"

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New creates a new upload manager. A backend is required.
func New(ctx context.Context, opts ...Opt) (*Manager, error) {
	self := new(Manager)
	self.pending = make(map[string]*upload)

	// Apply options
	if opt, err := applyOpts(opts); err != nil {
		return nil, err
	} else {
		self.opts = opt
	}

	// Check for backend
	if self.backend == nil {
		return nil, intray.InvalidConfig("missing backend")
	}

	// Return success
	return self, nil
}

// Close the backend, removing the parts of any pending uploads
func (manager *Manager) Close() error {
	var result error
	for _, token := range manager.drain(func(*upload) bool { return true }) {
		result = errors.Join(result, manager.backend.DeleteParts(context.Background(), token))
	}
	return errors.Join(result, manager.backend.Close())
}

// Run removes pending uploads which have been idle for longer than the
// expiry time, until the context is cancelled
func (manager *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(max(manager.expiry/2, time.Millisecond))
	defer ticker.Stop()

	manager.logger.DebugContext(ctx, "pending upload expiry started", "expiry", manager.expiry)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := manager.Expire(ctx); n > 0 {
				manager.logger.InfoContext(ctx, "pending uploads expired", "count", n)
			}
		}
	}
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// StartUpload creates a pending upload and returns the job the client uses
// for the chunk and finish phases
func (manager *Manager) StartUpload(ctx context.Context, req schema.StartRequest) (_ *schema.UploadJob, result error) {
	// OTEL span
	_, endFunc := otel.StartSpan(manager.tracer, ctx, spanManagerName("StartUpload"))
	defer func() { endFunc(result) }()

	// Validate the request
	if strings.TrimSpace(req.Name) == "" {
		result = httpresponse.ErrBadRequest.With("missing file name")
		return nil, result
	} else if req.Size < 0 {
		result = httpresponse.ErrBadRequest.Withf("invalid file size %d", req.Size)
		return nil, result
	} else if req.ChunkSize <= 0 || req.ChunkSize > manager.maxChunkSize {
		result = httpresponse.ErrBadRequest.Withf("chunk size must be between 1 and %d bytes", manager.maxChunkSize)
		return nil, result
	} else if manager.maxFileSize > 0 && req.Size > manager.maxFileSize {
		result = httpresponse.ErrBadRequest.Withf("quota exceeded: %d bytes is larger than %d bytes", req.Size, manager.maxFileSize)
		return nil, result
	}

	count, err := chunk.Count(req.Size, req.ChunkSize)
	if err != nil {
		result = httpresponse.ErrBadRequest.With(err.Error())
		return nil, result
	}

	// Register the upload
	u := &upload{
		PendingUpload: schema.PendingUpload{
			UploadJob: schema.UploadJob{
				Token:      uuid.NewString(),
				ChunkSize:  req.ChunkSize,
				ChunkCount: count,
			},
			Name:      req.Name,
			Size:      req.Size,
			UpdatedAt: time.Now(),
		},
		chunks: newBitmap(count),
	}
	manager.mu.Lock()
	manager.pending[u.Token] = u
	manager.mu.Unlock()

	// Return success
	manager.logger.DebugContext(ctx, "upload started", "token", u.Token, "name", u.Name, "size", u.Size, "chunks", count)
	job := u.UploadJob
	return &job, nil
}

// PutChunk stores chunk index of a pending upload. The body must be exactly
// the length of the chunk. Writing a chunk which was already received
// replaces it.
func (manager *Manager) PutChunk(ctx context.Context, token string, index int, r io.Reader) (result error) {
	// OTEL span
	child, endFunc := otel.StartSpan(manager.tracer, ctx, spanManagerName("PutChunk"))
	defer func() { endFunc(result) }()

	// Acquire the upload, which stops it expiring while the chunk is written
	u, err := manager.acquire(token)
	if err != nil {
		result = err
		return result
	}
	defer manager.release(u)

	// Validate the chunk index
	if index < 0 || index >= u.ChunkCount {
		result = httpresponse.ErrBadRequest.Withf("invalid chunk number %d", index)
		return result
	}
	want := chunk.At(index, u.Size, u.ChunkSize).Len()

	// Write at most one byte more than expected, to detect long bodies
	n, err := manager.backend.WritePart(child, token, index, io.LimitReader(r, want+1))
	if err == nil && n > want {
		err = httpresponse.ErrBadRequest.Withf("chunk %d is too long, expected %d bytes", index, want)
	} else if err == nil && n < want {
		err = httpresponse.ErrBadRequest.Withf("chunk %d is too short, %d of %d bytes", index, n, want)
	}

	// A failed write replaces any earlier copy of the chunk, so it is no
	// longer received
	if err != nil {
		manager.mu.Lock()
		u.chunks.Clear(index)
		u.Written = u.chunks.Count()
		manager.mu.Unlock()
		result = err
		return result
	}

	// Record the chunk
	manager.mu.Lock()
	u.chunks.Set(index)
	u.Written = u.chunks.Count()
	manager.mu.Unlock()

	// Return success
	return nil
}

// FinishUpload assembles the chunks of a pending upload into a file, which
// requires every chunk to have been received
func (manager *Manager) FinishUpload(ctx context.Context, token string) (_ *schema.Object, result error) {
	// OTEL span
	child, endFunc := otel.StartSpan(manager.tracer, ctx, spanManagerName("FinishUpload"))
	defer func() { endFunc(result) }()

	// Remove the upload from the pending set if complete
	manager.mu.Lock()
	u, exists := manager.pending[token]
	if !exists {
		manager.mu.Unlock()
		result = httpresponse.ErrNotFound.Withf("upload %q not found", token)
		return nil, result
	} else if u.busy > 0 {
		manager.mu.Unlock()
		result = httpresponse.ErrConflict.Withf("upload %q has chunks in progress", token)
		return nil, result
	} else if first := u.chunks.FirstUnset(); first >= 0 {
		manager.mu.Unlock()
		result = httpresponse.ErrConflict.Withf("chunk %d has not been received", first)
		return nil, result
	}
	delete(manager.pending, token)
	manager.mu.Unlock()

	// Assemble the file
	obj, err := manager.backend.Assemble(child, token, u.Name, u.ChunkCount)
	if err != nil {
		manager.backend.DeleteParts(child, token)
		result = err
		return nil, result
	}

	// Return success
	manager.logger.InfoContext(ctx, "upload finished", "token", token, "name", obj.Name, "size", obj.Size, "type", obj.ContentType)
	return obj, nil
}

// PutFull stores a whole file sent in a single request. When size is not
// negative, the body must be exactly size bytes.
func (manager *Manager) PutFull(ctx context.Context, name string, size int64, r io.Reader) (_ *schema.Object, result error) {
	// OTEL span
	child, endFunc := otel.StartSpan(manager.tracer, ctx, spanManagerName("PutFull"))
	defer func() { endFunc(result) }()

	if strings.TrimSpace(name) == "" {
		name = unnamedFile
	}
	if manager.maxFileSize > 0 {
		if size > manager.maxFileSize {
			result = httpresponse.ErrBadRequest.Withf("quota exceeded: %d bytes is larger than %d bytes", size, manager.maxFileSize)
			return nil, result
		}
		r = io.LimitReader(r, manager.maxFileSize+1)
	}

	// Write the file
	obj, err := manager.backend.WriteObject(child, name, r)
	if err != nil {
		result = err
		return nil, result
	}

	// Check the length
	if size >= 0 && obj.Size != size {
		result = httpresponse.ErrBadRequest.Withf("received %d of %d bytes", obj.Size, size)
	} else if manager.maxFileSize > 0 && obj.Size > manager.maxFileSize {
		result = httpresponse.ErrBadRequest.Withf("quota exceeded: file is larger than %d bytes", manager.maxFileSize)
	}
	if result != nil {
		if err := manager.backend.DeleteObject(child, obj.Name); err != nil {
			manager.logger.WarnContext(ctx, "remove partial file", "name", obj.Name, "error", err)
		}
		return nil, result
	}

	// Return success
	manager.logger.InfoContext(ctx, "upload finished", "name", obj.Name, "size", obj.Size, "type", obj.ContentType)
	return obj, nil
}

// Cancel removes a pending upload and its chunks
func (manager *Manager) Cancel(ctx context.Context, token string) (result error) {
	// OTEL span
	child, endFunc := otel.StartSpan(manager.tracer, ctx, spanManagerName("Cancel"))
	defer func() { endFunc(result) }()

	manager.mu.Lock()
	u, exists := manager.pending[token]
	if !exists {
		manager.mu.Unlock()
		result = httpresponse.ErrNotFound.Withf("upload %q not found", token)
		return result
	} else if u.busy > 0 {
		manager.mu.Unlock()
		result = httpresponse.ErrConflict.Withf("upload %q has chunks in progress", token)
		return result
	}
	delete(manager.pending, token)
	manager.mu.Unlock()

	result = manager.backend.DeleteParts(child, token)
	return result
}

// Expire removes pending uploads which have been idle for longer than the
// expiry time, and returns the number removed
func (manager *Manager) Expire(ctx context.Context) int {
	deadline := time.Now().Add(-manager.expiry)
	tokens := manager.drain(func(u *upload) bool {
		return u.busy == 0 && u.UpdatedAt.Before(deadline)
	})
	for _, token := range tokens {
		manager.logger.DebugContext(ctx, "upload expired", "token", token)
		if err := manager.backend.DeleteParts(ctx, token); err != nil {
			manager.logger.ErrorContext(ctx, "remove expired chunks", "token", token, "error", err)
		}
	}
	return len(tokens)
}

// List returns the pending uploads, oldest first
func (manager *Manager) List() schema.PendingListResponse {
	manager.mu.Lock()
	defer manager.mu.Unlock()

	body := make([]schema.PendingUpload, 0, len(manager.pending))
	for _, u := range manager.pending {
		body = append(body, u.PendingUpload)
	}
	slices.SortFunc(body, func(a, b schema.PendingUpload) int {
		return a.UpdatedAt.Compare(b.UpdatedAt)
	})
	return schema.PendingListResponse{Count: len(body), Body: body}
}

// ListObjects returns the finished files
func (manager *Manager) ListObjects(ctx context.Context) (_ []schema.Object, result error) {
	// OTEL span
	child, endFunc := otel.StartSpan(manager.tracer, ctx, spanManagerName("ListObjects"))
	defer func() { endFunc(result) }()

	objects, err := manager.backend.ListObjects(child)
	if err != nil {
		result = err
	}
	return objects, result
}

// ReadObject returns the content of a finished file. The caller must close
// the reader.
func (manager *Manager) ReadObject(ctx context.Context, name string) (_ io.ReadCloser, _ *schema.Object, result error) {
	// OTEL span
	child, endFunc := otel.StartSpan(manager.tracer, ctx, spanManagerName("ReadObject"))
	defer func() { endFunc(result) }()

	r, obj, err := manager.backend.ReadObject(child, name)
	if err != nil {
		result = err
		return nil, nil, result
	}
	return r, obj, nil
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (manager *Manager) acquire(token string) (*upload, error) {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	u, exists := manager.pending[token]
	if !exists {
		return nil, httpresponse.ErrNotFound.Withf("upload %q not found", token)
	}
	u.busy++
	return u, nil
}

func (manager *Manager) release(u *upload) {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	u.busy--
	u.UpdatedAt = time.Now()
}

// drain removes the pending uploads which match fn and returns their tokens
func (manager *Manager) drain(fn func(*upload) bool) []string {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	var tokens []string
	for token, u := range manager.pending {
		if fn(u) {
			tokens = append(tokens, token)
			delete(manager.pending, token)
		}
	}
	return tokens
}

func spanManagerName(op string) string {
	return schema.SchemaName + ".manager." + op
}
