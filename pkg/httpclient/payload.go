package httpclient

import (
	"io"
	"net/http"

	// Packages
	client "github.com/mutablelogic/go-client"
	types "github.com/mutablelogic/go-server/pkg/types"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// streamPayload implements client.Payload for POST requests with a binary body
type streamPayload struct {
	body io.Reader
}

// fileUnmarshaler writes the response body to w
type fileUnmarshaler struct {
	w io.Writer
	n int64
}

var _ client.Payload = (*streamPayload)(nil)
var _ client.Unmarshaler = (*fileUnmarshaler)(nil)

///////////////////////////////////////////////////////////////////////////////
// INTERFACE IMPLEMENTATION

func (p *streamPayload) Method() string {
	return http.MethodPost
}

func (p *streamPayload) Accept() string {
	return types.ContentTypeJSON
}

func (p *streamPayload) Type() string {
	return types.ContentTypeBinary
}

func (p *streamPayload) Read(b []byte) (int, error) {
	return p.body.Read(b)
}

func (u *fileUnmarshaler) Unmarshal(_ http.Header, r io.Reader) error {
	n, err := io.Copy(u.w, r)
	u.n += n
	return err
}
