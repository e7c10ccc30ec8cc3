package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	// Packages
	backend "github.com/mutablelogic/go-intray/pkg/backend"
	httphandler "github.com/mutablelogic/go-intray/pkg/httphandler"
	manager "github.com/mutablelogic/go-intray/pkg/manager"
	version "github.com/mutablelogic/go-intray/pkg/version"
	httprouter "github.com/mutablelogic/go-server/pkg/httprouter"
	httpserver "github.com/mutablelogic/go-server/pkg/httpserver"
	errgroup "golang.org/x/sync/errgroup"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type ServerCommands struct {
	Server RunServerCommand `cmd:"" name:"server" help:"Run the receiver." group:"SERVER"`
}

type RunServerCommand struct {
	Addr         string        `name:"addr" env:"INTRAY_ADDR" help:"Listen address" default:":8080"`
	Prefix       string        `name:"prefix" help:"Path prefix for the API" default:"/"`
	Origin       string        `name:"origin" help:"Allowed origin for cross-origin requests" default:"*"`
	Backend      string        `name:"backend" env:"INTRAY_BACKEND" help:"Storage URL (e.g. mem://name, file:///path, s3://bucket)" default:"mem://intray"`
	Expiry       time.Duration `name:"expiry" help:"Idle time after which a pending upload is removed" default:"${expiry}"`
	MaxFileSize  int64         `name:"max-file-size" help:"Largest file accepted in bytes (0 is unlimited)"`
	MaxChunkSize int64         `name:"max-chunk-size" help:"Largest chunk size a client may request in bytes" optional:""`
	S3Endpoint   string        `name:"s3-endpoint" env:"INTRAY_S3_ENDPOINT" help:"Endpoint for S3-compatible storage" optional:""`
	S3Anonymous  bool          `name:"s3-anonymous" help:"Use anonymous S3 credentials"`
}

///////////////////////////////////////////////////////////////////////////////
// COMMANDS

func (cmd *RunServerCommand) Run(app App) error {
	// Storage options
	backendOpts := []backend.Opt{}
	if strings.HasPrefix(cmd.Backend, "file:") {
		backendOpts = append(backendOpts, backend.WithCreateDir())
	}
	if cmd.S3Endpoint != "" {
		backendOpts = append(backendOpts, backend.WithEndpoint(cmd.S3Endpoint))
	}
	if cmd.S3Anonymous {
		backendOpts = append(backendOpts, backend.WithAnonymous())
	}

	// Create the manager
	opts := []manager.Opt{
		manager.WithBackend(app.Context(), cmd.Backend, backendOpts...),
		manager.WithLogger(app.Logger()),
		manager.WithExpiry(cmd.Expiry),
		manager.WithMaxFileSize(cmd.MaxFileSize),
	}
	if cmd.MaxChunkSize > 0 {
		opts = append(opts, manager.WithMaxChunkSize(cmd.MaxChunkSize))
	}
	mgr, err := manager.New(app.Context(), opts...)
	if err != nil {
		return fmt.Errorf("failed to create manager: %w", err)
	}
	defer mgr.Close()

	return cmd.serve(app, mgr)
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// serve registers the handlers and runs the server and the expiry sweep until
// the context is done
func (cmd *RunServerCommand) serve(app App, mgr *manager.Manager) error {
	ctx := app.Context()

	// Create the router
	router, err := cmd.router(app, mgr)
	if err != nil {
		return err
	}

	// Create the HTTP server
	srv, err := httpserver.New(cmd.Addr, router, nil)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	// Run the server and the expiry sweep
	app.Logger().InfoContext(ctx, "receiver started", "version", version.Version(), "addr", cmd.Addr)
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return mgr.Run(ctx)
	})
	group.Go(func() error {
		return srv.Run(ctx)
	})
	if err := group.Wait(); err != nil {
		return err
	}
	app.Logger().InfoContext(context.Background(), "receiver stopped")
	return nil
}

// router returns the HTTP router with the receiver handlers registered
func (cmd *RunServerCommand) router(app App, mgr *manager.Manager) (http.Handler, error) {
	router, err := httprouter.NewRouter(app.Context(), http.NewServeMux(), cmd.Prefix, cmd.Origin, app.Name(), version.Version())
	if err != nil {
		return nil, fmt.Errorf("failed to create router: %w", err)
	}
	if err := httphandler.RegisterHandlers(mgr, router); err != nil {
		return nil, fmt.Errorf("failed to register handlers: %w", err)
	}
	return router, nil
}
