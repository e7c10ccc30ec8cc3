package main

import (
	"os"

	// Packages
	client "github.com/mutablelogic/go-client"
	httpclient "github.com/mutablelogic/go-intray/pkg/httpclient"
)

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// newClient builds a receiver client from the global flags
func newClient(app App) (*httpclient.Client, error) {
	opts := []client.ClientOpt{}
	if app.GetDebug() {
		opts = append(opts, client.OptTrace(os.Stderr, false))
	}
	if app.GetTimeout() > 0 {
		opts = append(opts, client.OptTimeout(app.GetTimeout()))
	}
	return httpclient.New(app.GetEndpoint(), opts...)
}
