package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	// Packages
	backoff "github.com/cenkalti/backoff/v4"
	intray "github.com/mutablelogic/go-intray"
	engine "github.com/mutablelogic/go-intray/pkg/engine"
	schema "github.com/mutablelogic/go-intray/pkg/schema"
	source "github.com/mutablelogic/go-intray/pkg/source"
	task "github.com/mutablelogic/go-intray/pkg/task"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type UploadCommands struct {
	Upload UploadCommand `cmd:"" name:"upload" help:"Upload files or directories." group:"CLIENT"`
}

type UploadCommand struct {
	Paths     []string `arg:"" name:"path" help:"Files or directories to upload" type:"path"`
	Workers   int      `name:"workers" short:"w" help:"Number of files uploaded concurrently" default:"${workers}"`
	ChunkSize int64    `name:"chunk-size" help:"Size of each chunk in bytes" default:"${chunk_size}"`
	Retry     int      `name:"retry" help:"Attempts made for each chunk" default:"${retry}"`
	Oneshot   int64    `name:"oneshot" help:"Files up to this size are sent in a single request (0 disables)" default:"${oneshot}"`
	Hidden    bool     `name:"hidden" help:"Include hidden files when walking directories"`
}

// progress prints one line per progress event
type progress struct {
	sync.Mutex
	w     io.Writer
	names map[uint64]string
}

///////////////////////////////////////////////////////////////////////////////
// COMMANDS

func (cmd *UploadCommand) Run(app App) error {
	c, err := newClient(app)
	if err != nil {
		return err
	}

	// Open the files
	files, err := openPaths(cmd.Paths, cmd.Hidden)
	defer closeFiles(files)
	if err != nil {
		return err
	} else if len(files) == 0 {
		return errors.New("no files to upload")
	}

	// Create the engine
	printer := &progress{w: os.Stdout, names: make(map[uint64]string, len(files))}
	e, err := engine.New(c,
		engine.WithWorkers(cmd.Workers),
		engine.WithChunkSize(cmd.ChunkSize),
		engine.WithRetryLimit(cmd.Retry),
		engine.WithRetryBackoff(func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		}),
		engine.WithOneshotThreshold(cmd.Oneshot),
		engine.WithSink(printer.Sink()),
		engine.WithLogger(app.Logger()),
	)
	if err != nil {
		return err
	}

	// Queue the files before the workers start, so they are taken in order
	tasks := make([]*task.Task, 0, len(files))
	for _, f := range files {
		t, err := e.Add(f)
		if err != nil {
			return err
		}
		printer.add(t.ID(), f.Name())
		tasks = append(tasks, t)
	}

	// Run until every task is done, or the process is interrupted
	if err := e.Start(app.Context()); err != nil {
		return err
	}
	waitErr := e.Wait(app.Context())
	if err := e.Stop(); err != nil {
		return err
	}
	for _, t := range e.Drain() {
		app.Logger().WarnContext(app.Context(), "upload cancelled", "task", t.ID(), "name", t.File().Name())
	}
	if waitErr != nil {
		return waitErr
	}

	// Report failures
	var result error
	for _, t := range tasks {
		if t.State() == schema.Failed {
			result = errors.Join(result, fmt.Errorf("%s: %w", t.File().Name(), t.Err()))
		}
	}
	return result
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// openPaths opens each path, walking directories for the files within them.
// Files opened before an error are returned so they can be closed.
func openPaths(paths []string, hidden bool) ([]intray.File, error) {
	var files []intray.File
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return files, err
		}
		if !info.IsDir() {
			f, err := source.Open(path)
			if err != nil {
				return files, err
			}
			files = append(files, f)
			continue
		}
		fsys := os.DirFS(path)
		names, err := source.Walk(fsys, hidden)
		if err != nil {
			return files, err
		}
		for _, name := range names {
			f, err := source.OpenFS(fsys, name)
			if err != nil {
				return files, err
			}
			files = append(files, f)
		}
	}
	return files, nil
}

func closeFiles(files []intray.File) {
	for _, f := range files {
		if c, ok := f.(io.Closer); ok {
			c.Close()
		}
	}
}

func (p *progress) add(id uint64, name string) {
	p.Lock()
	defer p.Unlock()
	p.names[id] = name
}

func (p *progress) printf(id uint64, format string, a ...any) {
	p.Lock()
	defer p.Unlock()
	fmt.Fprintf(p.w, "%-30s %s\n", p.names[id], fmt.Sprintf(format, a...))
}

func (p *progress) Sink() intray.Sink {
	return intray.SinkFuncs{
		Progress: func(id uint64, fraction float64) {
			p.printf(id, "%5.1f%%", fraction*100)
		},
		Done: func(id uint64, elapsed time.Duration) {
			p.printf(id, "done in %v", elapsed.Truncate(time.Millisecond))
		},
		Failed: func(id uint64, err error) {
			p.printf(id, "failed: %v", err)
		},
	}
}
