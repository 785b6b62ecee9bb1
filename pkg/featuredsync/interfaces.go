package featuredsync

import (
	"context"
)

// DocumentStore is the host document store as seen by the reconciler.
type DocumentStore interface {
	// GetFeaturedReference returns the document's featured media id, zero if none
	GetFeaturedReference(ctx context.Context, documentID DocumentID) (MediaID, error)

	// GetMedia resolves a media object. Returns ErrMediaNotFound when it cannot be resolved
	GetMedia(ctx context.Context, id MediaID) (*MediaObject, error)

	// GetCurrentDocumentType returns the post type slug of the document
	GetCurrentDocumentType(ctx context.Context, documentID DocumentID) (string, error)

	// GetTypeCapabilities returns the capabilities of a post type
	GetTypeCapabilities(ctx context.Context, typeID string) (TypeCapabilities, error)

	// SetFeaturedReference changes the featured media id. It returns once the
	// change is acknowledged; callers that must not block run it on a goroutine.
	SetFeaturedReference(ctx context.Context, documentID DocumentID, id MediaID) error

	// Subscribe registers fn for document change notifications and returns a
	// function that removes the subscription
	Subscribe(fn func(ctx context.Context, event DocumentEvent)) (unsubscribe func())
}

// Notifier receives non-blocking user-facing signals.
type Notifier interface {
	ReportUserError(ctx context.Context, message string, notice Notice)
}

// MediaResolver looks up media metadata by id.
type MediaResolver interface {
	ResolveMedia(ctx context.Context, id MediaID) (*MediaObject, error)
}

// BlockEditor is the base edit capability of a block: it reads and writes
// attributes without any synchronization behavior.
type BlockEditor interface {
	Attributes() BlockAttributes
	SetAttributes(ctx context.Context, change AttributeChange) error
}

// Repository defines the persistence of documents, post types, media and blocks
type Repository interface {
	// Post type operations
	PutPostType(ctx context.Context, postType *PostType) error
	GetPostType(ctx context.Context, slug string) (*PostType, error)

	// Document operations
	CreateDocument(ctx context.Context, document *Document) error
	GetDocument(ctx context.Context, id DocumentID) (*Document, error)
	SetFeaturedMedia(ctx context.Context, id DocumentID, mediaID MediaID) error

	// Media operations
	PutMedia(ctx context.Context, media *MediaObject) error
	GetMedia(ctx context.Context, id MediaID) (*MediaObject, error)

	// Block operations
	CreateBlock(ctx context.Context, block *Block) error
	GetBlock(ctx context.Context, id BlockID) (*Block, error)
	UpdateBlock(ctx context.Context, block *Block) error
	ListBlocks(ctx context.Context, documentID DocumentID) ([]*Block, error)
}
