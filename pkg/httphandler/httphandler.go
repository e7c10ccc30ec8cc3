// Package httphandler implements the receiver side of the upload protocol:
// start, chunk, finish and full uploads, plus listing of pending uploads and
// finished files.
package httphandler

import (
	"errors"
	"net/http"

	// Packages
	manager "github.com/mutablelogic/go-intray/pkg/manager"
	openapi "github.com/mutablelogic/go-server/pkg/openapi/schema"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Router is the interface required to register HTTP handlers.
type Router interface {
	RegisterFunc(path string, handler http.HandlerFunc, middleware bool, spec *openapi.PathItem) error
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// RegisterHandlers registers all receiver HTTP handlers on the provided router.
func RegisterHandlers(mgr *manager.Manager, router Router) error {
	var result error
	register := func(path string, handler http.HandlerFunc, spec *openapi.PathItem) {
		result = errors.Join(result, router.RegisterFunc(path, handler, true, spec))
	}
	register(UploadStartHandler(mgr))
	register(UploadChunkHandler(mgr))
	register(UploadFinishHandler(mgr))
	register(UploadFullHandler(mgr))
	register(UploadFullNamedHandler(mgr))
	register(UploadListHandler(mgr))
	register(UploadHandler(mgr))
	register(FileListHandler(mgr))
	register(FileHandler(mgr))
	return result
}
