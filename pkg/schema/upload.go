package schema

import (
	// Packages
	"github.com/mutablelogic/go-server/pkg/types"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// StartRequest is sent to begin an upload session
type StartRequest struct {
	Name      string `json:"file_name"`
	Size      int64  `json:"file_size"`
	ChunkSize int64  `json:"chunk_size"`
}

// StartResponse carries the file token on success, or an error message
type StartResponse struct {
	Response
	Token string `json:"file_token,omitempty"`
}

// FinishRequest completes an upload session
type FinishRequest struct {
	Token string `json:"file_token"`
}

// Response is returned by the chunk and finish phases
type Response struct {
	Ok    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// FullResponse is returned by a oneshot upload
type FullResponse struct {
	Response
	Written int64 `json:"written,omitempty"`
}

// UploadJob is the session issued by the remote for one file. It lives no
// longer than the task it belongs to.
type UploadJob struct {
	Token      string `json:"file_token"`
	ChunkSize  int64  `json:"chunk_size"`
	ChunkCount int    `json:"chunk_count"`
}

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// OK returns a successful response
func OK() Response {
	return Response{Ok: true}
}

// Fail returns a rejection with the error message of err
func Fail(err error) Response {
	return Response{Ok: false, Error: err.Error()}
}

////////////////////////////////////////////////////////////////////////////////
// STRINGIFY

func (r StartRequest) String() string {
	return types.Stringify(r)
}

func (r StartResponse) String() string {
	return types.Stringify(r)
}

func (r FinishRequest) String() string {
	return types.Stringify(r)
}

func (r Response) String() string {
	return types.Stringify(r)
}

func (r FullResponse) String() string {
	return types.Stringify(r)
}

func (j UploadJob) String() string {
	return types.Stringify(j)
}
