// Package source provides intray.File implementations for local files,
// in-memory data and fs.FS trees.
package source

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	// Packages
	intray "github.com/mutablelogic/go-intray"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// File is an open file on the local filesystem
type File struct {
	f    *os.File
	name string
	size int64
}

type memFile struct {
	*bytes.Reader
	name string
}

type fsFile struct {
	fs.File
	io.ReaderAt
	name string
	size int64
}

var _ intray.File = (*File)(nil)
var _ intray.File = (*memFile)(nil)
var _ intray.File = (*fsFile)(nil)

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// Open a local file for upload. The file name sent to the remote is the base
// name of path. The caller must Close the file when the upload is complete.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		return nil, errors.Join(err, f.Close())
	}
	if info.IsDir() {
		return nil, errors.Join(&fs.PathError{Op: "open", Path: path, Err: errors.New("is a directory")}, f.Close())
	}
	return &File{f: f, name: filepath.Base(path), size: info.Size()}, nil
}

// Bytes returns a file backed by data
func Bytes(name string, data []byte) intray.File {
	return &memFile{Reader: bytes.NewReader(data), name: name}
}

// OpenFS opens the regular file at name within fsys. The file must implement
// io.ReaderAt, which is the case for os.DirFS and fstest.MapFS. The returned
// file implements io.Closer, and the caller must close it.
func OpenFS(fsys fs.FS, name string) (intray.File, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		return nil, errors.Join(err, f.Close())
	}
	if info.IsDir() {
		return nil, errors.Join(&fs.PathError{Op: "open", Path: name, Err: errors.New("is a directory")}, f.Close())
	}
	ra, ok := f.(io.ReaderAt)
	if !ok {
		return nil, errors.Join(&fs.PathError{Op: "open", Path: name, Err: errors.ErrUnsupported}, f.Close())
	}
	return &fsFile{File: f, ReaderAt: ra, name: path.Base(name), size: info.Size()}, nil
}

// Close the file
func (f *File) Close() error {
	return f.f.Close()
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

func (f *File) Name() string {
	return f.name
}

func (f *File) Size() int64 {
	return f.size
}

func (f *File) ReadAt(p []byte, off int64) (int, error) {
	return f.f.ReadAt(p, off)
}

func (f *memFile) Name() string {
	return f.name
}

func (f *fsFile) Name() string {
	return f.name
}

func (f *fsFile) Size() int64 {
	return f.size
}

// Walk walks fsys from its root and returns the paths of all regular files,
// in lexical order. Hidden files and directories (those with a name starting
// with a dot) are skipped unless hidden is true.
func Walk(fsys fs.FS, hidden bool) ([]string, error) {
	var result []string
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !hidden && p != "." && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		result = append(result, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
