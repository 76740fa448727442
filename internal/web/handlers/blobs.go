package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/portfolio-egg/egg/internal/storage"
	"github.com/portfolio-egg/egg/internal/store"
	"github.com/portfolio-egg/egg/internal/web/response"
	"github.com/portfolio-egg/egg/internal/web/router"
)

// BlobRedirect handles GET /blobs/redirect/{signed_id}/{filename}. It sends
// the client on to wherever the blob is served from.
func (h *Handlers) BlobRedirect(w http.ResponseWriter, r *http.Request) {
	signed := router.NewParamExtractor(r).PathParam("signed_id")

	blob, err := h.attachments.Resolve(r.Context(), signed)
	switch {
	case err == nil:
		w.Header().Set("Cache-Control", "private, max-age=300")
		http.Redirect(w, r, h.attachments.Location(blob), http.StatusFound)
	case errors.Is(err, storage.ErrInvalidSignature), store.IsNotFound(err):
		response.RenderNotFound(w, "")
	default:
		h.logger.Error("blob redirect failed", zap.Error(err))
		http.Redirect(w, r, h.frontendURL+"/placeholder.svg", http.StatusFound)
	}
}

// BlobFile handles GET /blobs/files/{key}/{filename} from local storage
func (h *Handlers) BlobFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := router.NewParamExtractor(r).PathParam("key")

	blob, err := h.store.Blobs.FindByKey(ctx, key)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	file, err := h.attachments.Open(ctx, blob.Key)
	if errors.Is(err, storage.ErrFileNotFound) || errors.Is(err, storage.ErrInvalidKey) {
		response.RenderNotFound(w, "")
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer file.Close()

	header := w.Header()
	header.Set("Content-Type", blob.ContentType)
	header.Set("Content-Length", strconv.FormatInt(blob.ByteSize, 10))
	header.Set("Cache-Control", "public, max-age=31536000, immutable")
	header.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, file); err != nil {
		h.logger.Debug("blob download interrupted", zap.String("key", key), zap.Error(err))
	}
}
