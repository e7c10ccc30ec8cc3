package httpclient

import (
	"context"
	"io"
	"net/http"

	// Packages
	client "github.com/mutablelogic/go-client"
	schema "github.com/mutablelogic/go-intray/pkg/schema"
)

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// ListFiles returns the files the receiver has stored
func (c *Client) ListFiles(ctx context.Context) (*schema.FileListResponse, error) {
	var response schema.FileListResponse
	if err := c.DoWithContext(ctx, client.NewRequest(), &response, client.OptPath(schema.PathFile)); err != nil {
		return nil, err
	}
	return &response, nil
}

// ReadFile downloads a stored file into w, and returns the number of bytes
// written
func (c *Client) ReadFile(ctx context.Context, name string, w io.Writer) (int64, error) {
	u := &fileUnmarshaler{w: w}
	if err := c.DoWithContext(ctx, client.NewRequestEx(http.MethodGet, ""), u,
		client.OptPath(schema.PathFile, name),
		client.OptNoTimeout(),
	); err != nil {
		return u.n, err
	}
	return u.n, nil
}
