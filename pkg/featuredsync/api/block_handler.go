package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/render"
	"github.com/tendant/featured-sync/pkg/featuredsync"
)

// CreateBlockRequest is the request body for creating a block
type CreateBlockRequest struct {
	Name       string                       `json:"name"`
	Attributes featuredsync.BlockAttributes `json:"attributes"`
}

// CreateBlock adds a block to a document
func (h *Handler) CreateBlock(w http.ResponseWriter, r *http.Request) {
	documentID, ok := uuidParam(w, r, "documentID", "document")
	if !ok {
		return
	}

	var req CreateBlockRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	block, err := h.service.CreateBlock(r.Context(), featuredsync.CreateBlockRequest{
		DocumentID: documentID,
		Name:       req.Name,
		Attributes: req.Attributes,
	})
	if err != nil {
		h.writeError(w, r, "Failed to create block", err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, block)
}

// ListBlocks lists the blocks of a document in document order
func (h *Handler) ListBlocks(w http.ResponseWriter, r *http.Request) {
	documentID, ok := uuidParam(w, r, "documentID", "document")
	if !ok {
		return
	}

	blocks, err := h.service.ListBlocks(r.Context(), documentID)
	if err != nil {
		h.writeError(w, r, "Failed to list blocks", err)
		return
	}
	if blocks == nil {
		blocks = []*featuredsync.Block{}
	}
	render.JSON(w, r, blocks)
}

// GetBlock returns a block
func (h *Handler) GetBlock(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "blockID", "block")
	if !ok {
		return
	}

	block, err := h.service.GetBlock(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "Failed to get block", err)
		return
	}
	render.JSON(w, r, block)
}

// SetAttributes applies a partial attribute write through the sync rules.
// With ?wait=true the response is written once pending featured image updates
// are acknowledged.
func (h *Handler) SetAttributes(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "blockID", "block")
	if !ok {
		return
	}

	var change featuredsync.AttributeChange
	if err := render.DecodeJSON(r.Body, &change); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	block, err := h.service.RequestAttributeChange(r.Context(), id, change)
	if err != nil {
		h.writeError(w, r, "Failed to set block attributes", err)
		return
	}

	if block, err = h.waitForBlock(r, id, block); err != nil {
		h.writeError(w, r, "Failed to wait for block", err)
		return
	}
	render.JSON(w, r, block)
}

// GetSyncState returns the sync toggle state and panel of a block
func (h *Handler) GetSyncState(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "blockID", "block")
	if !ok {
		return
	}

	info, err := h.service.GetSyncState(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "Failed to get sync state", err)
		return
	}
	render.JSON(w, r, info)
}

// ToggleSync flips the sync toggle of a block
func (h *Handler) ToggleSync(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "blockID", "block")
	if !ok {
		return
	}

	block, err := h.service.ToggleSync(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "Failed to toggle sync", err)
		return
	}

	if block, err = h.waitForBlock(r, id, block); err != nil {
		h.writeError(w, r, "Failed to wait for block", err)
		return
	}
	render.JSON(w, r, block)
}

// waitForBlock honors ?wait=true: it waits for the block's pending featured
// image changes, bounded by the request context, and re-reads the block.
func (h *Handler) waitForBlock(r *http.Request, id featuredsync.BlockID, block *featuredsync.Block) (*featuredsync.Block, error) {
	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); !wait {
		return block, nil
	}
	if err := h.service.WaitBlock(r.Context(), id); err != nil {
		return nil, err
	}
	return h.service.GetBlock(r.Context(), id)
}
