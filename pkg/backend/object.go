package backend

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	// Packages
	mimetype "github.com/gabriel-vasile/mimetype"
	schema "github.com/mutablelogic/go-intray/pkg/schema"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	blob "gocloud.dev/blob"
)

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// WriteObject stores the contents of r as a new object called name, adding a
// suffix to the name if it already exists
func (b *Backend) WriteObject(ctx context.Context, name string, r io.Reader) (*schema.Object, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}

	// Detect the content type from the head of the stream
	br := bufio.NewReaderSize(r, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, httpresponse.ErrBadRequest.Withf("read %q: %v", name, err)
	}

	return b.create(ctx, name, mimetype.Detect(head).String(), func(w io.Writer) error {
		_, err := io.Copy(w, br)
		return err
	})
}

// GetObject returns the metadata of a finished file
func (b *Backend) GetObject(ctx context.Context, name string) (*schema.Object, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	sk := b.storageKey(name)
	attrs, err := b.bucket.Attributes(ctx, sk)
	if err != nil {
		return nil, blobErr(err, b.Name()+":"+name)
	}
	return b.attrsToObject(name, attrs), nil
}

// ListObjects returns the finished files at the root of the backend
func (b *Backend) ListObjects(ctx context.Context) ([]schema.Object, error) {
	prefix := b.storageKey("")
	iter := b.bucket.List(&blob.ListOptions{
		Prefix:    prefix,
		Delimiter: "/",
	})

	var result []schema.Object
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, blobErr(err, b.Name())
		}

		// Skip directories and the parts of pending uploads
		key := b.relativeKey(obj.Key)
		if obj.IsDir || key == "" || strings.HasPrefix(key, ".") {
			continue
		}

		o := schema.Object{
			Name:    key,
			Path:    "/" + key,
			Size:    obj.Size,
			ModTime: obj.ModTime,
		}
		if len(obj.MD5) > 0 {
			o.ETag = fmt.Sprintf("%x", obj.MD5)
		}
		result = append(result, o)
	}

	// Return success
	return result, nil
}

// ReadObject returns a reader for a finished file. The caller must close it.
func (b *Backend) ReadObject(ctx context.Context, name string) (io.ReadCloser, *schema.Object, error) {
	obj, err := b.GetObject(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	r, err := b.bucket.NewReader(ctx, b.storageKey(obj.Name), nil)
	if err != nil {
		return nil, nil, blobErr(err, b.Name()+":"+obj.Name)
	}
	return r, obj, nil
}

// DeleteObject removes a finished file
func (b *Backend) DeleteObject(ctx context.Context, name string) error {
	name, err := cleanName(name)
	if err != nil {
		return err
	}
	if err := b.bucket.Delete(ctx, b.storageKey(name)); err != nil {
		return blobErr(err, b.Name()+":"+name)
	}
	return nil
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// create allocates a unique name for a new object and writes it with fn.
// Allocation and the write are serialized so two uploads with the same name
// never write the same object.
func (b *Backend) create(ctx context.Context, name, contentType string, fn func(io.Writer) error) (*schema.Object, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Find a name which does not exist
	var sk string
	for n := 0; ; n++ {
		if n >= maxUniqueName {
			return nil, httpresponse.ErrConflict.Withf("too many files named %q", name)
		}
		candidate := candidateName(name, n)
		sk = b.storageKey(candidate)
		if exists, err := b.bucket.Exists(ctx, sk); err != nil {
			return nil, blobErr(err, b.Name()+":"+candidate)
		} else if !exists {
			name = candidate
			break
		}
	}

	// Write the object
	if w, err := b.bucket.NewWriter(ctx, sk, &blob.WriterOptions{
		ContentType: contentType,
	}); err != nil {
		return nil, blobErr(err, b.Name()+":"+name)
	} else if err := fn(w); err != nil {
		err = errors.Join(err, w.Close())
		b.bucket.Delete(ctx, sk)
		return nil, blobErr(err, b.Name()+":"+name)
	} else if err := w.Close(); err != nil {
		b.bucket.Delete(ctx, sk)
		return nil, blobErr(err, b.Name()+":"+name)
	}

	// Get attributes to return
	attrs, err := b.bucket.Attributes(ctx, sk)
	if err != nil {
		// The write succeeded, return a partial object
		return &schema.Object{Name: name, Path: "/" + name, ContentType: contentType}, nil
	}

	// Return success
	return b.attrsToObject(name, attrs), nil
}

func (b *Backend) attrsToObject(name string, attrs *blob.Attributes) *schema.Object {
	return &schema.Object{
		Name:        name,
		Path:        path.Join("/", name),
		Size:        attrs.Size,
		ModTime:     attrs.ModTime,
		ContentType: attrs.ContentType,
		ETag:        attrs.ETag,
	}
}
