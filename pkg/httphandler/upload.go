package httphandler

import (
	"net/http"
	"strconv"

	// Packages
	manager "github.com/mutablelogic/go-intray/pkg/manager"
	schema "github.com/mutablelogic/go-intray/pkg/schema"
	httprequest "github.com/mutablelogic/go-server/pkg/httprequest"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	openapi "github.com/mutablelogic/go-server/pkg/openapi/schema"
	types "github.com/mutablelogic/go-server/pkg/types"
)

///////////////////////////////////////////////////////////////////////////////
// HANDLER FUNCTIONS

// Path: /upload/start
// POST starts an upload session and returns its file token.
func UploadStartHandler(mgr *manager.Manager) (string, http.HandlerFunc, *openapi.PathItem) {
	return "/" + schema.PathUpload + "/" + schema.PathStart, func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost:
				_ = uploadStart(w, r, mgr)
			default:
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
			}
		}, types.Ptr(openapi.PathItem{
			Post: &openapi.Operation{
				Description: "Start an upload session",
			},
		})
}

// Path: /upload/{token}/{chunk}
// POST uploads one chunk of a session as application/octet-stream.
func UploadChunkHandler(mgr *manager.Manager) (string, http.HandlerFunc, *openapi.PathItem) {
	return "/" + schema.PathUpload + "/{token}/{chunk}", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost:
				_ = uploadChunk(w, r, mgr)
			default:
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
			}
		}, types.Ptr(openapi.PathItem{
			Post: &openapi.Operation{
				Description: "Upload a chunk",
			},
		})
}

// Path: /upload/finish
// POST assembles the chunks of a session into a file.
func UploadFinishHandler(mgr *manager.Manager) (string, http.HandlerFunc, *openapi.PathItem) {
	return "/" + schema.PathUpload + "/" + schema.PathFinish, func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost:
				_ = uploadFinish(w, r, mgr)
			default:
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
			}
		}, types.Ptr(openapi.PathItem{
			Post: &openapi.Operation{
				Description: "Finish an upload session",
			},
		})
}

// Path: /upload/full
// POST uploads a whole file without a name in a single request.
func UploadFullHandler(mgr *manager.Manager) (string, http.HandlerFunc, *openapi.PathItem) {
	return "/" + schema.PathUpload + "/" + schema.PathFull, func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost:
				_ = uploadFull(w, r, mgr)
			default:
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
			}
		}, types.Ptr(openapi.PathItem{
			Post: &openapi.Operation{
				Description: "Upload an unnamed file in a single request",
			},
		})
}

// Path: /upload/full/{name}
// POST uploads a whole file in a single request.
func UploadFullNamedHandler(mgr *manager.Manager) (string, http.HandlerFunc, *openapi.PathItem) {
	return "/" + schema.PathUpload + "/" + schema.PathFull + "/{name}", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost:
				_ = uploadFull(w, r, mgr)
			default:
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
			}
		}, types.Ptr(openapi.PathItem{
			Post: &openapi.Operation{
				Description: "Upload a named file in a single request",
			},
		})
}

// Path: /upload
// GET lists the pending upload sessions.
func UploadListHandler(mgr *manager.Manager) (string, http.HandlerFunc, *openapi.PathItem) {
	return "/" + schema.PathUpload, func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				_ = httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), mgr.List())
			default:
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
			}
		}, types.Ptr(openapi.PathItem{
			Get: &openapi.Operation{
				Description: "List pending uploads",
			},
		})
}

// Path: /upload/{token}
// DELETE cancels a pending upload session.
func UploadHandler(mgr *manager.Manager) (string, http.HandlerFunc, *openapi.PathItem) {
	return "/" + schema.PathUpload + "/{token}", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodDelete:
				if err := mgr.Cancel(r.Context(), r.PathValue("token")); err != nil {
					_ = httpresponse.Error(w, err)
				} else {
					_ = httpresponse.Empty(w, http.StatusNoContent)
				}
			default:
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
			}
		}, types.Ptr(openapi.PathItem{
			Delete: &openapi.Operation{
				Description: "Cancel a pending upload",
			},
		})
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// A malformed request is answered with a 4xx status, and a request the
// manager rejects with a 200 status and ok=false

func uploadStart(w http.ResponseWriter, r *http.Request, mgr *manager.Manager) error {
	var req schema.StartRequest
	if err := httprequest.Read(r, &req); err != nil {
		return httpresponse.Error(w, httpresponse.ErrBadRequest.With(err.Error()))
	}

	job, err := mgr.StartUpload(r.Context(), req)
	if err != nil {
		return httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), schema.StartResponse{Response: schema.Fail(err)})
	}
	return httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), schema.StartResponse{Response: schema.OK(), Token: job.Token})
}

func uploadChunk(w http.ResponseWriter, r *http.Request, mgr *manager.Manager) error {
	index, err := strconv.Atoi(r.PathValue("chunk"))
	if err != nil {
		return httpresponse.Error(w, httpresponse.ErrBadRequest.Withf("invalid chunk number %q", r.PathValue("chunk")))
	}
	defer r.Body.Close()

	if err := mgr.PutChunk(r.Context(), r.PathValue("token"), index, r.Body); err != nil {
		return httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), schema.Fail(err))
	}
	return httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), schema.OK())
}

func uploadFinish(w http.ResponseWriter, r *http.Request, mgr *manager.Manager) error {
	var req schema.FinishRequest
	if err := httprequest.Read(r, &req); err != nil {
		return httpresponse.Error(w, httpresponse.ErrBadRequest.With(err.Error()))
	} else if req.Token == "" {
		return httpresponse.Error(w, httpresponse.ErrBadRequest.With("missing file_token"))
	}

	if _, err := mgr.FinishUpload(r.Context(), req.Token); err != nil {
		return httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), schema.Fail(err))
	}
	return httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), schema.OK())
}

func uploadFull(w http.ResponseWriter, r *http.Request, mgr *manager.Manager) error {
	defer r.Body.Close()

	// ContentLength is -1 when unknown
	obj, err := mgr.PutFull(r.Context(), r.PathValue("name"), r.ContentLength, r.Body)
	if err != nil {
		return httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), schema.FullResponse{Response: schema.Fail(err)})
	}
	return httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), schema.FullResponse{Response: schema.OK(), Written: obj.Size})
}
