package backend

import (
	"bytes"
	"context"
	"errors"
	"io"

	// Packages
	mimetype "github.com/gabriel-vasile/mimetype"
	schema "github.com/mutablelogic/go-intray/pkg/schema"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	blob "gocloud.dev/blob"
)

////////////////////////////////////////////////////////////////////////////////
// GLOBALS

// Number of leading bytes of a file used to detect its content type
const sniffLen = 3072

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// WritePart stores chunk index of the upload token, replacing any part
// previously written for the same index, and returns the number of bytes
// written
func (b *Backend) WritePart(ctx context.Context, token string, index int, r io.Reader) (int64, error) {
	sk := b.storageKey(partKey(token, index))
	w, err := b.bucket.NewWriter(ctx, sk, &blob.WriterOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return 0, blobErr(err, sk)
	}
	n, err := io.Copy(w, r)
	if err != nil {
		// Closing a writer after a failed copy may still commit a short part
		err = errors.Join(err, w.Close())
		b.bucket.Delete(ctx, sk)
		return 0, blobErr(err, sk)
	} else if err := w.Close(); err != nil {
		return 0, blobErr(err, sk)
	}

	// Return success
	return n, nil
}

// DeleteParts removes all parts of the upload token
func (b *Backend) DeleteParts(ctx context.Context, token string) error {
	prefix := b.storageKey(partsPrefix+"/"+token) + "/"
	iter := b.bucket.List(&blob.ListOptions{Prefix: prefix})

	var result error
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		} else if err != nil {
			return errors.Join(result, blobErr(err, prefix))
		}
		if err := b.bucket.Delete(ctx, obj.Key); err != nil {
			result = errors.Join(result, blobErr(err, obj.Key))
		}
	}

	// Return any errors
	return result
}

// Assemble concatenates parts 0 to count-1 of the upload token into a new
// object called name, and removes the parts. If an object with that name
// already exists a suffix is added, so a finished upload never replaces
// another file.
func (b *Backend) Assemble(ctx context.Context, token, name string, count int) (*schema.Object, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}

	// Check all parts exist before creating the object
	for i := 0; i < count; i++ {
		sk := b.storageKey(partKey(token, i))
		if exists, err := b.bucket.Exists(ctx, sk); err != nil {
			return nil, blobErr(err, sk)
		} else if !exists {
			return nil, httpresponse.ErrConflict.Withf("missing chunk %d of %q", i, token)
		}
	}

	// Detect the content type from the head of the first part
	contentType, err := b.detect(ctx, token, count)
	if err != nil {
		return nil, err
	}

	// Write the parts into a new object
	obj, err := b.create(ctx, name, contentType, func(w io.Writer) error {
		for i := 0; i < count; i++ {
			if err := b.copyPart(ctx, w, token, i); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Remove the parts, the object is complete regardless
	b.DeleteParts(ctx, token)

	// Return success
	return obj, nil
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (b *Backend) detect(ctx context.Context, token string, count int) (string, error) {
	if count == 0 {
		return mimetype.Detect(nil).String(), nil
	}
	sk := b.storageKey(partKey(token, 0))
	r, err := b.bucket.NewRangeReader(ctx, sk, 0, sniffLen, nil)
	if err != nil {
		return "", blobErr(err, sk)
	}
	defer r.Close()
	var head bytes.Buffer
	if _, err := io.Copy(&head, r); err != nil {
		return "", blobErr(err, sk)
	}
	return mimetype.Detect(head.Bytes()).String(), nil
}

func (b *Backend) copyPart(ctx context.Context, w io.Writer, token string, index int) error {
	sk := b.storageKey(partKey(token, index))
	r, err := b.bucket.NewReader(ctx, sk, nil)
	if err != nil {
		return blobErr(err, sk)
	}
	defer r.Close()
	if _, err := io.Copy(w, r); err != nil {
		return blobErr(err, sk)
	}
	return nil
}
