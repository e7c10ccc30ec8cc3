package schema

import (
	"time"

	// Packages
	"github.com/mutablelogic/go-server/pkg/types"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Object is a file stored by the receiver once an upload has finished
type Object struct {
	Name        string    `json:"name,omitempty"`
	Path        string    `json:"path,omitempty"`
	Size        int64     `json:"size"`
	ModTime     time.Time `json:"modtime,omitzero"`
	ContentType string    `json:"type,omitempty"`
	ETag        string    `json:"etag,omitempty"`
}

// PendingUpload is an upload session which has started but not yet finished
type PendingUpload struct {
	UploadJob
	Name      string    `json:"file_name"`
	Size      int64     `json:"file_size"`
	Written   int       `json:"written"` // number of chunks received
	UpdatedAt time.Time `json:"updated_at"`
}

type PendingListResponse struct {
	Count int             `json:"count"`
	Body  []PendingUpload `json:"body,omitempty"`
}

// FileListResponse lists the finished files
type FileListResponse struct {
	Count int      `json:"count"`
	Body  []Object `json:"body,omitempty"`
}

////////////////////////////////////////////////////////////////////////////////
// STRINGIFY

func (o Object) String() string {
	return types.Stringify(o)
}

func (p PendingUpload) String() string {
	return types.Stringify(p)
}

func (r PendingListResponse) String() string {
	return types.Stringify(r)
}

func (r FileListResponse) String() string {
	return types.Stringify(r)
}
