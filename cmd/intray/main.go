package main

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	// Packages
	kong "github.com/alecthomas/kong"
	godotenv "github.com/joho/godotenv"
	manager "github.com/mutablelogic/go-intray/pkg/manager"
	schema "github.com/mutablelogic/go-intray/pkg/schema"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type CLI struct {
	Globals
	UploadCommands
	FileCommands
	ServerCommands
	VersionCommands
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

func main() {
	// Load environment variables from a .env file before the flags are
	// parsed, so they can set defaults
	dotenv := godotenv.Load()
	if errors.Is(dotenv, fs.ErrNotExist) {
		dotenv = nil
	}

	// Parse command-line flags
	var cli CLI
	kong := kong.Parse(&cli,
		kong.Name(execName()),
		kong.Description("chunked file upload client and receiver"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Vars{
			"workers":    strconv.Itoa(schema.DefaultWorkers),
			"chunk_size": strconv.Itoa(schema.DefaultChunkSize),
			"retry":      strconv.Itoa(schema.DefaultRetryLimit),
			"oneshot":    strconv.Itoa(schema.DefaultOneshotThreshold),
			"expiry":     manager.DefaultExpiry.String(),
		},
	)
	kong.FatalIfErrorf(dotenv)

	// Create the app
	app := NewApp(cli.Globals, execName())
	defer app.Close()

	// Run
	kong.BindTo(app, (*App)(nil))
	kong.FatalIfErrorf(kong.Run())
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func execName() string {
	// The name of the executable
	name, err := os.Executable()
	if err != nil {
		panic(err)
	}
	return filepath.Base(name)
}
