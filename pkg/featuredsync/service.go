package featuredsync

import (
	"context"
)

// Service defines the main interface of the featured-sync library
type Service interface {
	// Post type operations
	PutPostType(ctx context.Context, req PutPostTypeRequest) (*PostType, error)
	GetPostType(ctx context.Context, slug string) (*PostType, error)

	// Media operations
	PutMedia(ctx context.Context, media *MediaObject) error
	GetMedia(ctx context.Context, id MediaID) (*MediaObject, error)

	// Document operations
	CreateDocument(ctx context.Context, req CreateDocumentRequest) (*Document, error)
	GetDocument(ctx context.Context, id DocumentID) (*Document, error)
	// SetFeaturedMedia changes the featured image from outside any block
	SetFeaturedMedia(ctx context.Context, id DocumentID, mediaID MediaID) error
	// ReconcileDocument runs the featured → block pass for every block of a
	// document and returns how many blocks changed
	ReconcileDocument(ctx context.Context, id DocumentID) (int, error)

	// Block operations
	CreateBlock(ctx context.Context, req CreateBlockRequest) (*Block, error)
	GetBlock(ctx context.Context, id BlockID) (*Block, error)
	ListBlocks(ctx context.Context, documentID DocumentID) ([]*Block, error)
	RequestAttributeChange(ctx context.Context, id BlockID, change AttributeChange) (*Block, error)
	ToggleSync(ctx context.Context, id BlockID) (*Block, error)
	IsEligible(ctx context.Context, id BlockID) (bool, error)
	GetSyncState(ctx context.Context, id BlockID) (*BlockSyncInfo, error)

	// WaitBlock blocks until the featured image changes of one block are
	// acknowledged, or ctx is done
	WaitBlock(ctx context.Context, id BlockID) error
	// Wait blocks until in-flight featured image changes of every loaded block
	// are acknowledged
	Wait()
	// Close stops listening to document events and waits for in-flight changes
	Close() error
}

// PutPostTypeRequest registers or updates a post type
type PutPostTypeRequest struct {
	Slug                  string
	SupportsFeaturedImage bool
}

// CreateDocumentRequest contains parameters for creating a document
type CreateDocumentRequest struct {
	PostType      string
	FeaturedMedia MediaID
}

// CreateBlockRequest contains parameters for creating a block
type CreateBlockRequest struct {
	DocumentID DocumentID
	// Name defaults to ImageBlockName
	Name       string
	Attributes BlockAttributes
}

// BlockSyncInfo is the sync view of a block. Panel is nil for ineligible blocks.
type BlockSyncInfo struct {
	BlockID  BlockID    `json:"block_id"`
	Eligible bool       `json:"eligible"`
	Status   SyncStatus `json:"status"`
	Panel    *SyncPanel `json:"panel,omitempty"`
}
