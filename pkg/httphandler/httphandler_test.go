package httphandler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	// Packages
	httpclient "github.com/mutablelogic/go-intray/pkg/httpclient"
	httphandler "github.com/mutablelogic/go-intray/pkg/httphandler"
	manager "github.com/mutablelogic/go-intray/pkg/manager"
	schema "github.com/mutablelogic/go-intray/pkg/schema"
	openapi "github.com/mutablelogic/go-server/pkg/openapi/schema"
	types "github.com/mutablelogic/go-server/pkg/types"
	assert "github.com/stretchr/testify/assert"
	require "github.com/stretchr/testify/require"
)

///////////////////////////////////////////////////////////////////////////////
// MOCK ROUTER

type mockRouter struct {
	paths  []string
	retErr error
}

func (m *mockRouter) RegisterFunc(path string, handler http.HandlerFunc, middleware bool, spec *openapi.PathItem) error {
	m.paths = append(m.paths, path)
	return m.retErr
}

type muxRouter struct {
	*http.ServeMux
}

func (m muxRouter) RegisterFunc(path string, handler http.HandlerFunc, middleware bool, spec *openapi.PathItem) error {
	m.HandleFunc(path, handler)
	return nil
}

///////////////////////////////////////////////////////////////////////////////
// HELPERS

func newTestManager(t *testing.T) *manager.Manager {
	t.Helper()
	mgr, err := manager.New(context.Background(), manager.WithBackend(context.Background(), "mem://intray"))
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Close() })
	return mgr
}

func serveMux(t *testing.T, mgr *manager.Manager) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	require.NoError(t, httphandler.RegisterHandlers(mgr, muxRouter{mux}))
	return mux
}

func do(t *testing.T, mux *http.ServeMux, method, path, contentType string, body io.Reader, out any) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set(types.ContentTypeHeader, contentType)
	}
	rw := httptest.NewRecorder()
	mux.ServeHTTP(rw, req)
	resp := rw.Result()
	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

///////////////////////////////////////////////////////////////////////////////
// TESTS

func Test_RegisterHandlers(t *testing.T) {
	mgr := newTestManager(t)

	router := &mockRouter{}
	require.NoError(t, httphandler.RegisterHandlers(mgr, router))
	assert.ElementsMatch(t, []string{
		"/upload/start",
		"/upload/{token}/{chunk}",
		"/upload/finish",
		"/upload/full",
		"/upload/full/{name}",
		"/upload",
		"/upload/{token}",
		"/file",
		"/file/{name}",
	}, router.paths)

	router = &mockRouter{retErr: fmt.Errorf("router error")}
	assert.Error(t, httphandler.RegisterHandlers(mgr, router))
}

func Test_Upload(t *testing.T) {
	mgr := newTestManager(t)
	mux := serveMux(t, mgr)

	// Start
	var start schema.StartResponse
	resp := do(t, mux, http.MethodPost, "/upload/start", types.ContentTypeJSON, jsonBody(t, schema.StartRequest{
		Name: "hello.txt", Size: 10, ChunkSize: 4,
	}), &start)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, start.Ok, start.Error)
	require.NotEmpty(t, start.Token)

	// Pending
	var pending schema.PendingListResponse
	do(t, mux, http.MethodGet, "/upload", "", nil, &pending)
	require.Equal(t, 1, pending.Count)
	assert.Equal(t, start.Token, pending.Body[0].Token)

	// Chunks
	for i, data := range []string{"0123", "4567", "89"} {
		var chunk schema.Response
		resp := do(t, mux, http.MethodPost, fmt.Sprintf("/upload/%s/%d", start.Token, i), types.ContentTypeBinary, strings.NewReader(data), &chunk)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.True(t, chunk.Ok, chunk.Error)
	}

	// Finish
	var finish schema.Response
	resp = do(t, mux, http.MethodPost, "/upload/finish", types.ContentTypeJSON, jsonBody(t, schema.FinishRequest{Token: start.Token}), &finish)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, finish.Ok, finish.Error)

	// Download
	resp = do(t, mux, http.MethodGet, "/file/hello.txt", "", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(data))
	assert.Equal(t, "10", resp.Header.Get(types.ContentLengthHeader))
	assert.Contains(t, resp.Header.Get(types.ContentDispositonHeader), "hello.txt")

	// List
	var files schema.FileListResponse
	do(t, mux, http.MethodGet, "/file", "", nil, &files)
	assert.Equal(t, 1, files.Count)
}

func Test_Upload_rejected(t *testing.T) {
	mgr := newTestManager(t)
	mux := serveMux(t, mgr)

	// Semantic errors are returned with ok=false
	var start schema.StartResponse
	resp := do(t, mux, http.MethodPost, "/upload/start", types.ContentTypeJSON, jsonBody(t, schema.StartRequest{
		Name: "a", Size: 10, ChunkSize: 0,
	}), &start)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, start.Ok)
	assert.NotEmpty(t, start.Error)
	assert.Empty(t, start.Token)

	var chunk schema.Response
	resp = do(t, mux, http.MethodPost, "/upload/missing/0", types.ContentTypeBinary, strings.NewReader("x"), &chunk)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, chunk.Ok)

	var finish schema.Response
	resp = do(t, mux, http.MethodPost, "/upload/finish", types.ContentTypeJSON, jsonBody(t, schema.FinishRequest{Token: "missing"}), &finish)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, finish.Ok)
}

func Test_Upload_malformed(t *testing.T) {
	mgr := newTestManager(t)
	mux := serveMux(t, mgr)

	resp := do(t, mux, http.MethodPost, "/upload/start", types.ContentTypeJSON, strings.NewReader("{"), nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, mux, http.MethodPost, "/upload/token/abc", types.ContentTypeBinary, strings.NewReader("x"), nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, mux, http.MethodPost, "/upload/finish", types.ContentTypeJSON, jsonBody(t, schema.FinishRequest{}), nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, mux, http.MethodGet, "/upload/start", "", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func Test_UploadFull(t *testing.T) {
	mgr := newTestManager(t)
	mux := serveMux(t, mgr)

	var full schema.FullResponse
	resp := do(t, mux, http.MethodPost, "/upload/full/note.txt", types.ContentTypeBinary, strings.NewReader("hello"), &full)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, full.Ok, full.Error)
	assert.Equal(t, int64(5), full.Written)

	resp = do(t, mux, http.MethodPost, "/upload/full", types.ContentTypeBinary, strings.NewReader("x"), &full)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, full.Ok, full.Error)

	resp = do(t, mux, http.MethodHead, "/file/UnnamedFile", "", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get(types.ContentLengthHeader))
}

func Test_Cancel(t *testing.T) {
	mgr := newTestManager(t)
	mux := serveMux(t, mgr)

	job, err := mgr.StartUpload(context.Background(), schema.StartRequest{Name: "a", Size: 1, ChunkSize: 1})
	require.NoError(t, err)

	resp := do(t, mux, http.MethodDelete, "/upload/"+job.Token, "", nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = do(t, mux, http.MethodDelete, "/upload/"+job.Token, "", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, mux, http.MethodGet, "/file/missing", "", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// The HTTP client reaches every upload route on the receiver
func Test_Client(t *testing.T) {
	mgr := newTestManager(t)
	mux := serveMux(t, mgr)

	var mu sync.Mutex
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.Method+" "+r.URL.EscapedPath())
		mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	c, err := httpclient.New(srv.URL)
	require.NoError(t, err)
	ctx := context.Background()

	token, err := c.Start(ctx, schema.StartRequest{Name: "hello.txt", Size: 6, ChunkSize: 4})
	require.NoError(t, err)
	require.NoError(t, c.Chunk(ctx, token, 0, strings.NewReader("hell"), 4))
	require.NoError(t, c.Chunk(ctx, token, 1, strings.NewReader("o!"), 2))
	require.NoError(t, c.Finish(ctx, token))

	n, err := c.Full(ctx, "whole.txt", strings.NewReader("whole"), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		"POST /upload/start",
		"POST /upload/" + token + "/0",
		"POST /upload/" + token + "/1",
		"POST /upload/finish",
		"POST /upload/full/whole.txt",
	}, paths)
}
