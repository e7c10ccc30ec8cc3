package httpclient

import (
	"context"
	"io"
	"net/http"
	"strconv"

	// Packages
	client "github.com/mutablelogic/go-client"
	intray "github.com/mutablelogic/go-intray"
	schema "github.com/mutablelogic/go-intray/pkg/schema"
	types "github.com/mutablelogic/go-server/pkg/types"
)

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Start an upload session and return the file token
func (c *Client) Start(ctx context.Context, req schema.StartRequest) (string, error) {
	payload, err := client.NewJSONRequest(req)
	if err != nil {
		return "", err
	}

	var response schema.StartResponse
	if err := c.DoWithContext(ctx, payload, &response, client.OptPath(schema.PathUpload, schema.PathStart)); err != nil {
		return "", &intray.TransportError{Op: "start", Err: err}
	} else if !response.Ok {
		return "", &intray.RemoteError{Message: response.Error}
	}
	return response.Token, nil
}

// Chunk uploads size bytes read from r as chunk index of the session
func (c *Client) Chunk(ctx context.Context, token string, index int, r io.Reader, size int64) error {
	var response schema.Response
	if err := c.DoWithContext(ctx, &streamPayload{body: io.LimitReader(r, size)}, &response,
		client.OptPath(schema.PathUpload, token, strconv.Itoa(index)),
	); err != nil {
		return &intray.TransportError{Op: "chunk", Err: err}
	} else if !response.Ok {
		return &intray.RemoteError{Message: response.Error}
	}
	return nil
}

// Finish the upload session
func (c *Client) Finish(ctx context.Context, token string) error {
	payload, err := client.NewJSONRequest(schema.FinishRequest{Token: token})
	if err != nil {
		return err
	}

	var response schema.Response
	if err := c.DoWithContext(ctx, payload, &response, client.OptPath(schema.PathUpload, schema.PathFinish)); err != nil {
		return &intray.TransportError{Op: "finish", Err: err}
	} else if !response.Ok {
		return &intray.RemoteError{Message: response.Error}
	}
	return nil
}

// Full uploads a whole file in a single request, and returns the number of
// bytes the receiver has written. An empty name lets the receiver choose one.
func (c *Client) Full(ctx context.Context, name string, r io.Reader, size int64) (int64, error) {
	path := []any{schema.PathUpload, schema.PathFull}
	if name != "" {
		path = append(path, name)
	}

	var response schema.FullResponse
	if err := c.DoWithContext(ctx, &streamPayload{body: io.LimitReader(r, size)}, &response,
		client.OptPath(path...),
		client.OptNoTimeout(),
	); err != nil {
		return 0, &intray.TransportError{Op: "full", Err: err}
	} else if !response.Ok {
		return 0, &intray.RemoteError{Message: response.Error}
	}
	return response.Written, nil
}

// Cancel a pending upload session
func (c *Client) Cancel(ctx context.Context, token string) error {
	return c.DoWithContext(ctx, client.NewRequestEx(http.MethodDelete, types.ContentTypeJSON), nil, client.OptPath(schema.PathUpload, token))
}

// ListPending returns the upload sessions which have started but not
// finished
func (c *Client) ListPending(ctx context.Context) (*schema.PendingListResponse, error) {
	var response schema.PendingListResponse
	if err := c.DoWithContext(ctx, client.NewRequest(), &response, client.OptPath(schema.PathUpload)); err != nil {
		return nil, err
	}
	return &response, nil
}
