package httphandler

import (
	"io"
	"mime"
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

// Path: /file
// GET lists the finished files.
func FileListHandler(mgr *manager.Manager) (string, http.HandlerFunc, *openapi.PathItem) {
	return "/" + schema.PathFile, func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				_ = fileList(w, r, mgr)
			default:
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
			}
		}, types.Ptr(openapi.PathItem{
			Get: &openapi.Operation{
				Description: "List received files",
			},
		})
}

// Path: /file/{name}
// GET downloads a finished file, HEAD returns its metadata.
func FileHandler(mgr *manager.Manager) (string, http.HandlerFunc, *openapi.PathItem) {
	return "/" + schema.PathFile + "/{name}", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead:
				_ = fileGet(w, r, mgr)
			default:
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
			}
		}, types.Ptr(openapi.PathItem{
			Get: &openapi.Operation{
				Description: "Download a received file",
			},
			Head: &openapi.Operation{
				Description: "Get received file metadata without body",
			},
		})
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func fileList(w http.ResponseWriter, r *http.Request, mgr *manager.Manager) error {
	objects, err := mgr.ListObjects(r.Context())
	if err != nil {
		return httpresponse.Error(w, err)
	}
	return httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), schema.FileListResponse{
		Count: len(objects),
		Body:  objects,
	})
}

func fileGet(w http.ResponseWriter, r *http.Request, mgr *manager.Manager) error {
	reader, obj, err := mgr.ReadObject(r.Context(), r.PathValue("name"))
	if err != nil {
		return httpresponse.Error(w, err)
	}
	defer reader.Close()

	writeObjectHeaders(w, obj)
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return nil
	}
	_, err = io.Copy(w, reader)
	return err
}

func writeObjectHeaders(w http.ResponseWriter, obj *schema.Object) {
	contentType := obj.ContentType
	if contentType == "" {
		contentType = types.ContentTypeBinary
	}
	w.Header().Set(types.ContentTypeHeader, contentType)
	if cd := mime.FormatMediaType("attachment", map[string]string{"filename": obj.Name}); cd != "" {
		w.Header().Set(types.ContentDispositonHeader, cd)
	}
	if obj.ETag != "" {
		w.Header().Set(types.ContentHashHeader, obj.ETag)
	}
	w.Header().Set(types.ContentLengthHeader, strconv.FormatInt(obj.Size, 10))
	if !obj.ModTime.IsZero() {
		w.Header().Set(types.ContentModifiedHeader, obj.ModTime.Format(http.TimeFormat))
	}
}
