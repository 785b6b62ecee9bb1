package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/tendant/featured-sync/pkg/featuredsync"
)

// Handler serves the featured-sync HTTP API
type Handler struct {
	service featuredsync.Service
	notices *featuredsync.NoticeBoard
	logger  *slog.Logger
}

// NewHandler creates a new handler. notices may be nil, in which case the
// notices endpoint always returns an empty list.
func NewHandler(service featuredsync.Service, notices *featuredsync.NoticeBoard, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service: service,
		notices: notices,
		logger:  logger,
	}
}

// Routes returns the routes of the API
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/post-types", h.PutPostType)
	r.Get("/post-types/{slug}", h.GetPostType)

	r.Put("/media/{mediaID}", h.PutMedia)
	r.Get("/media/{mediaID}", h.GetMedia)

	r.Post("/documents", h.CreateDocument)
	r.Get("/documents/{documentID}", h.GetDocument)
	r.Put("/documents/{documentID}/featured-media", h.SetFeaturedMedia)
	r.Get("/documents/{documentID}/notices", h.DrainNotices)
	r.Post("/documents/{documentID}/blocks", h.CreateBlock)
	r.Get("/documents/{documentID}/blocks", h.ListBlocks)

	r.Get("/blocks/{blockID}", h.GetBlock)
	r.Patch("/blocks/{blockID}/attributes", h.SetAttributes)
	r.Get("/blocks/{blockID}/sync", h.GetSyncState)
	r.Post("/blocks/{blockID}/sync/toggle", h.ToggleSync)

	return r
}

// PutPostTypeRequest is the request body for registering a post type
type PutPostTypeRequest struct {
	Slug                  string `json:"slug"`
	SupportsFeaturedImage bool   `json:"supports_featured_image"`
}

// PutPostType registers or updates a post type
func (h *Handler) PutPostType(w http.ResponseWriter, r *http.Request) {
	var req PutPostTypeRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	postType, err := h.service.PutPostType(r.Context(), featuredsync.PutPostTypeRequest{
		Slug:                  req.Slug,
		SupportsFeaturedImage: req.SupportsFeaturedImage,
	})
	if err != nil {
		h.writeError(w, r, "Failed to put post type", err)
		return
	}

	render.JSON(w, r, postType)
}

// GetPostType returns a post type
func (h *Handler) GetPostType(w http.ResponseWriter, r *http.Request) {
	postType, err := h.service.GetPostType(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.writeError(w, r, "Failed to get post type", err)
		return
	}
	render.JSON(w, r, postType)
}

// PutMedia stores a media object under the id in the path
func (h *Handler) PutMedia(w http.ResponseWriter, r *http.Request) {
	id, ok := mediaIDParam(w, r)
	if !ok {
		return
	}

	var media featuredsync.MediaObject
	if err := render.DecodeJSON(r.Body, &media); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	media.ID = id

	if err := h.service.PutMedia(r.Context(), &media); err != nil {
		h.writeError(w, r, "Failed to put media", err)
		return
	}
	render.JSON(w, r, media)
}

// GetMedia returns a media object
func (h *Handler) GetMedia(w http.ResponseWriter, r *http.Request) {
	id, ok := mediaIDParam(w, r)
	if !ok {
		return
	}

	media, err := h.service.GetMedia(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "Failed to get media", err)
		return
	}
	render.JSON(w, r, media)
}

// writeError maps service errors to status codes
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), msg, "error", err)
	} else {
		h.logger.DebugContext(r.Context(), msg, "error", err, "status", status)
	}
	http.Error(w, err.Error(), status)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, featuredsync.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, featuredsync.ErrDocumentNotFound),
		errors.Is(err, featuredsync.ErrBlockNotFound),
		errors.Is(err, featuredsync.ErrPostTypeNotFound),
		errors.Is(err, featuredsync.ErrMediaNotFound):
		return http.StatusNotFound
	case errors.Is(err, featuredsync.ErrExternalSource),
		errors.Is(err, featuredsync.ErrIneligible):
		return http.StatusUnprocessableEntity
	case errors.Is(err, featuredsync.ErrAcknowledgmentTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func mediaIDParam(w http.ResponseWriter, r *http.Request) (featuredsync.MediaID, bool) {
	raw := chi.URLParam(r, "mediaID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "Invalid media ID", http.StatusBadRequest)
		return 0, false
	}
	return featuredsync.MediaID(id), true
}

func uuidParam(w http.ResponseWriter, r *http.Request, name, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		http.Error(w, "Invalid "+label+" ID", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}
