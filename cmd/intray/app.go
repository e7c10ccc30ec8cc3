package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	// Packages
	schema "github.com/mutablelogic/go-intray/pkg/schema"
	otelslog "go.opentelemetry.io/contrib/bridges/otelslog"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type Globals struct {
	Endpoint string        `env:"INTRAY_ENDPOINT" default:"http://localhost:8080/" help:"Receiver endpoint"`
	Debug    bool          `env:"INTRAY_DEBUG" help:"Enable debug output"`
	Timeout  time.Duration `env:"INTRAY_TIMEOUT" default:"30s" help:"Timeout for each HTTP request"`

	name   string
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

type App interface {
	Context() context.Context
	Logger() *slog.Logger
	Name() string
	GetEndpoint() string
	GetDebug() bool
	GetTimeout() time.Duration
}

var _ App = (*Globals)(nil)

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

func NewApp(app Globals, name string) *Globals {
	app.name = name

	// Debug output goes to stderr as text, otherwise logs are bridged to
	// OpenTelemetry
	if app.Debug {
		app.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	} else {
		app.logger = otelslog.NewLogger(schema.SchemaName)
	}

	// This context is cancelled when the process receives a SIGINT or SIGTERM
	app.ctx, app.cancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	// Return the app
	return &app
}

func (app *Globals) Close() error {
	app.cancel()
	return nil
}

///////////////////////////////////////////////////////////////////////////////
// METHODS

func (app *Globals) Context() context.Context {
	return app.ctx
}

func (app *Globals) Logger() *slog.Logger {
	return app.logger
}

func (app *Globals) Name() string {
	return app.name
}

func (app *Globals) GetEndpoint() string {
	return app.Endpoint
}

func (app *Globals) GetDebug() bool {
	return app.Debug
}

func (app *Globals) GetTimeout() time.Duration {
	return app.Timeout
}
