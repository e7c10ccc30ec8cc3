// Package backend stores chunk parts and assembled files for the receiver
// in a Go CDK blob bucket (mem://, file:// or s3://).
package backend

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync"
	"syscall"

	// Packages
	aws "github.com/aws/aws-sdk-go-v2/aws"
	config "github.com/aws/aws-sdk-go-v2/config"
	credentials "github.com/aws/aws-sdk-go-v2/credentials"
	s3 "github.com/aws/aws-sdk-go-v2/service/s3"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	otelaws "go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
	blob "gocloud.dev/blob"
	s3blob "gocloud.dev/blob/s3blob"
	gcerrors "gocloud.dev/gcerrors"

	// Drivers
	_ "gocloud.dev/blob/fileblob" // file:// URLs
	_ "gocloud.dev/blob/memblob"  // mem:// URLs
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Backend is a bucket holding finished files at its root and the parts of
// pending uploads under a hidden prefix
type Backend struct {
	*opt
	mu           sync.Mutex // serializes allocation of unique object names
	bucket       *blob.Bucket
	bucketPrefix string // key prefix for bucket operations (empty for file://)
}

////////////////////////////////////////////////////////////////////////////////
// GLOBALS

const (
	// Parts of pending uploads are stored under this prefix
	partsPrefix = ".parts"

	// Maximum number of suffixes tried when a file name already exists
	maxUniqueName = 1000
)

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// NewBlobBackend opens a bucket. Supported URL schemes: s3://, file://, mem://
// Examples:
//   - "s3://my-bucket/incoming?region=us-east-1"
//   - "file:///path/to/directory"
//   - "mem://intray"
func NewBlobBackend(ctx context.Context, u string, opts ...Opt) (*Backend, error) {
	self := new(Backend)

	// Set the options
	if url, err := url.Parse(u); err != nil {
		return nil, err
	} else if opt, err := apply(url, opts...); err != nil {
		return nil, err
	} else {
		self.opt = opt
	}

	// For s3/mem the path is a key prefix within the bucket.
	// For file:// the path is the bucket root directory.
	if self.url.Scheme != "file" {
		self.bucketPrefix = strings.Trim(self.url.Path, "/")
	}

	// Open the bucket
	var bucket *blob.Bucket
	var err error
	switch self.url.Scheme {
	case "s3":
		var client *s3.Client
		if client, err = self.s3Client(ctx); err == nil {
			bucket, err = s3blob.OpenBucket(ctx, client, self.url.Host, nil)
		}
	case "file":
		openURL := &url.URL{Scheme: "file", Path: self.url.Path, RawQuery: self.url.RawQuery}
		bucket, err = blob.OpenBucket(ctx, openURL.String())
	default:
		openURL := &url.URL{Scheme: self.url.Scheme, Host: self.url.Host}
		bucket, err = blob.OpenBucket(ctx, openURL.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open bucket: %w", err)
	}
	self.bucket = bucket

	// Return success
	return self, nil
}

// Close the backend
func (b *Backend) Close() error {
	var result error
	if b.bucket != nil {
		result = errors.Join(result, b.bucket.Close())
		b.bucket = nil
	}

	// Return any errors
	return result
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Name returns the name of the backend (the host component of the URL, or
// the scheme when there is no host)
func (b *Backend) Name() string {
	if b.url.Host != "" {
		return b.url.Host
	}
	return b.url.Scheme
}

// URL returns the backend URL without credentials
func (b *Backend) URL() *url.URL {
	u := *b.url
	u.User = nil
	return &u
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// s3Client returns an S3 client from the explicit AWS config, or from the
// default configuration chain with the backend options applied
func (b *Backend) s3Client(ctx context.Context) (*s3.Client, error) {
	var cfg aws.Config
	if b.awsConfig != nil {
		cfg = *b.awsConfig
	} else {
		var loadOpts []func(*config.LoadOptions) error
		if b.region != "" {
			loadOpts = append(loadOpts, config.WithRegion(b.region))
		}
		if c, err := config.LoadDefaultConfig(ctx, loadOpts...); err != nil {
			return nil, err
		} else {
			cfg = c
		}
	}

	// Credentials
	if b.anonymous {
		cfg.Credentials = aws.AnonymousCredentials{}
	} else if b.accessKey != "" {
		cfg.Credentials = credentials.NewStaticCredentialsProvider(b.accessKey, b.secretKey, "")
	}

	// Trace S3 API calls
	if b.tracer != nil {
		otelaws.AppendMiddlewares(&cfg.APIOptions)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if b.endpoint != "" {
			o.BaseEndpoint = aws.String(b.endpoint)
			o.UsePathStyle = true
		}
		if o.Region == "" {
			o.Region = "us-east-1"
		}
	}), nil
}

// storageKey returns the blob key for a key relative to the backend root
func (b *Backend) storageKey(key string) string {
	key = strings.TrimPrefix(key, "/")
	if b.bucketPrefix != "" {
		return b.bucketPrefix + "/" + key
	}
	return key
}

// relativeKey strips the bucket prefix from a blob key
func (b *Backend) relativeKey(sk string) string {
	if b.bucketPrefix != "" {
		return strings.TrimPrefix(sk, b.bucketPrefix+"/")
	}
	return sk
}

func partKey(token string, index int) string {
	return path.Join(partsPrefix, token, fmt.Sprintf("%08d", index))
}

// cleanName returns the base name of a file name, or an error if it cannot be
// stored at the root of the bucket
func cleanName(name string) (string, error) {
	name = path.Base(path.Clean("/" + strings.ReplaceAll(name, "\\", "/")))
	if name == "/" || name == "." || strings.HasPrefix(name, ".") {
		return "", httpresponse.ErrBadRequest.Withf("invalid file name %q", name)
	}
	return name, nil
}

// candidateName returns name for n=0, otherwise name with _n inserted before
// the extension
func candidateName(name string, n int) string {
	if n == 0 {
		return name
	}
	ext := path.Ext(name)
	return fmt.Sprintf("%s_%d%s", strings.TrimSuffix(name, ext), n, ext)
}

// blobErr wraps a go-cloud blob error with the appropriate httpresponse error
func blobErr(err error, key string) error {
	if err == nil {
		return nil
	}
	// Check for OS-level errors before go-cloud classification, since the
	// gcerrors default path wraps with %v and breaks the chain.
	if errors.Is(err, syscall.EISDIR) || errors.Is(err, syscall.EEXIST) {
		return httpresponse.ErrBadRequest.Withf("cannot overwrite directory with file: %q", key)
	}
	switch gcerrors.Code(err) {
	case gcerrors.NotFound:
		return httpresponse.ErrNotFound.Withf("object %q not found", key)
	case gcerrors.PermissionDenied:
		return httpresponse.ErrForbidden.Withf("permission denied for %q", key)
	case gcerrors.InvalidArgument:
		return httpresponse.ErrBadRequest.Withf("invalid argument for %q: %v", key, err)
	case gcerrors.FailedPrecondition:
		return httpresponse.ErrConflict.Withf("precondition failed for %q: %v", key, err)
	default:
		return httpresponse.ErrInternalError.Withf("blob operation failed: %v", err)
	}
}
