package httpclient

import (
	"crypto/tls"
	"net/http"
	"os"
	"strings"

	// Packages
	client "github.com/mutablelogic/go-client"
	intray "github.com/mutablelogic/go-intray"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Client is an intray HTTP client that wraps the base HTTP client
// and implements the upload transport.
type Client struct {
	*client.Client
}

var _ intray.OneshotTransport = (*Client)(nil)

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New creates a new intray HTTP client with the given base URL and options.
// The url parameter should point to the receiver API endpoint, e.g.
// "http://localhost:8080/api/intray". Set INTRAY_HTTP1 in the environment to
// disable HTTP/2.
func New(url string, opts ...client.ClientOpt) (*Client, error) {
	c := new(Client)
	cl, err := client.New(append(opts, client.OptEndpoint(url))...)
	if err != nil {
		return nil, err
	}
	if isTruthyEnv("INTRAY_HTTP1") {
		tr, ok := cl.Client.Transport.(*http.Transport)
		if ok && tr != nil {
			tr = tr.Clone()
		} else {
			tr = http.DefaultTransport.(*http.Transport).Clone()
		}
		tr.ForceAttemptHTTP2 = false
		tr.TLSNextProto = map[string]func(string, *tls.Conn) http.RoundTripper{}
		cl.Client.Transport = tr
	}
	c.Client = cl
	return c, nil
}

func isTruthyEnv(key string) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	return v != "" && v != "0" && v != "false" && v != "no" && v != "off"
}
