// Package httpclient provides the HTTP transport for uploads, talking to an
// intray receiver.
//
// Create a client with:
//
//	client, err := httpclient.New("http://localhost:8080/api/intray")
//	if err != nil {
//	   panic(err)
//	}
//
// The client implements intray.OneshotTransport, so it can be passed to
// engine.New or transfer.New:
//
//	engine, err := engine.New(client, engine.WithWorkers(3))
package httpclient
