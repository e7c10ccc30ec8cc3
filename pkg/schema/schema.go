package schema

////////////////////////////////////////////////////////////////////////////////
// TYPES

const (
	SchemaName = "intray"

	// DefaultChunkSize is the size of each chunk sent in the upload phase
	DefaultChunkSize = 4 * 1024 * 1024

	// DefaultOneshotThreshold is the largest file size which may be sent
	// without chunking, when oneshot uploads are enabled
	DefaultOneshotThreshold = DefaultChunkSize

	// DefaultWorkers is the number of files uploaded concurrently
	DefaultWorkers = 3

	// DefaultRetryLimit is the number of attempts made for each chunk
	DefaultRetryLimit = 3

	// HTTP path segments, relative to the endpoint prefix. Start, finish and
	// full are under the upload segment.
	PathUpload = "upload"
	PathStart  = "start"
	PathFinish = "finish"
	PathFull   = "full"
	PathFile   = "file"
)
