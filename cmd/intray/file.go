package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type FileCommands struct {
	Files   ListFilesCommand   `cmd:"" name:"files" help:"List files stored by the receiver." group:"CLIENT"`
	Pending ListPendingCommand `cmd:"" name:"pending" help:"List unfinished uploads." group:"CLIENT"`
	Cancel  CancelCommand      `cmd:"" name:"cancel" help:"Cancel an unfinished upload." group:"CLIENT"`
	Get     GetFileCommand     `cmd:"" name:"get" help:"Download a stored file." group:"CLIENT"`
}

type ListFilesCommand struct{}

type ListPendingCommand struct{}

type CancelCommand struct {
	Token string `arg:"" name:"token" help:"File token of the upload"`
}

type GetFileCommand struct {
	Name   string `arg:"" name:"name" help:"Name of the stored file"`
	Output string `name:"output" short:"o" help:"Output path (defaults to the file name, - for stdout)" optional:""`
}

///////////////////////////////////////////////////////////////////////////////
// COMMANDS

func (cmd *ListFilesCommand) Run(app App) error {
	c, err := newClient(app)
	if err != nil {
		return err
	}
	files, err := c.ListFiles(app.Context())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSIZE\tTYPE\tMODIFIED")
	for _, obj := range files.Body {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", obj.Name, obj.Size, obj.ContentType, obj.ModTime.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func (cmd *ListPendingCommand) Run(app App) error {
	c, err := newClient(app)
	if err != nil {
		return err
	}
	pending, err := c.ListPending(app.Context())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TOKEN\tNAME\tSIZE\tCHUNKS\tUPDATED")
	for _, u := range pending.Body {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d/%d\t%s\n", u.Token, u.Name, u.Size, u.Written, u.ChunkCount, u.UpdatedAt.Format("15:04:05"))
	}
	return w.Flush()
}

func (cmd *CancelCommand) Run(app App) error {
	c, err := newClient(app)
	if err != nil {
		return err
	}
	return c.Cancel(app.Context(), cmd.Token)
}

func (cmd *GetFileCommand) Run(app App) (result error) {
	c, err := newClient(app)
	if err != nil {
		return err
	}

	// Stream to stdout
	if cmd.Output == "-" {
		_, err := c.ReadFile(app.Context(), cmd.Name, os.Stdout)
		return err
	}

	// Stream to a file, which is removed on error
	path := cmd.Output
	if path == "" {
		path = filepath.Base(cmd.Name)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if err := f.Close(); err != nil && result == nil {
			result = err
		}
		if result != nil {
			os.Remove(path)
		}
	}()

	n, err := c.ReadFile(app.Context(), cmd.Name, f)
	if err != nil {
		return err
	}
	app.Logger().DebugContext(app.Context(), "file downloaded", "name", cmd.Name, "path", path, "size", n)
	return nil
}
