package api

import (
	"net/http"

	"github.com/go-chi/render"
	"github.com/tendant/featured-sync/pkg/featuredsync"
)

// CreateDocumentRequest is the request body for creating a document
type CreateDocumentRequest struct {
	PostType      string               `json:"post_type"`
	FeaturedMedia featuredsync.MediaID `json:"featured_media"`
}

// SetFeaturedMediaRequest is the request body for changing the featured image
type SetFeaturedMediaRequest struct {
	FeaturedMedia featuredsync.MediaID `json:"featured_media"`
}

// NoticesResponse lists the pending notices of a document
type NoticesResponse struct {
	Notices []featuredsync.Notice `json:"notices"`
}

// CreateDocument creates a new document
func (h *Handler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	var req CreateDocumentRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	doc, err := h.service.CreateDocument(r.Context(), featuredsync.CreateDocumentRequest{
		PostType:      req.PostType,
		FeaturedMedia: req.FeaturedMedia,
	})
	if err != nil {
		h.writeError(w, r, "Failed to create document", err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, doc)
}

// GetDocument returns a document
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "documentID", "document")
	if !ok {
		return
	}

	doc, err := h.service.GetDocument(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "Failed to get document", err)
		return
	}
	render.JSON(w, r, doc)
}

// SetFeaturedMedia changes the featured image of a document from outside any
// block. Synced blocks of the document follow before the response is written.
func (h *Handler) SetFeaturedMedia(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "documentID", "document")
	if !ok {
		return
	}

	var req SetFeaturedMediaRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.service.SetFeaturedMedia(r.Context(), id, req.FeaturedMedia); err != nil {
		h.writeError(w, r, "Failed to set featured media", err)
		return
	}

	doc, err := h.service.GetDocument(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "Failed to get document", err)
		return
	}
	render.JSON(w, r, doc)
}

// DrainNotices returns and clears the pending notices of a document
func (h *Handler) DrainNotices(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "documentID", "document")
	if !ok {
		return
	}
	if _, err := h.service.GetDocument(r.Context(), id); err != nil {
		h.writeError(w, r, "Failed to get document", err)
		return
	}

	resp := NoticesResponse{Notices: []featuredsync.Notice{}}
	if h.notices != nil {
		if pending := h.notices.Drain(id); len(pending) > 0 {
			resp.Notices = pending
		}
	}
	render.JSON(w, r, resp)
}
