package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tendant/featured-sync/pkg/featuredsync"
)

// Repository implements featuredsync.Repository using in-memory storage
type Repository struct {
	mu               sync.RWMutex
	postTypes        map[string]*featuredsync.PostType
	documents        map[featuredsync.DocumentID]*featuredsync.Document
	media            map[featuredsync.MediaID]*featuredsync.MediaObject
	blocks           map[featuredsync.BlockID]*featuredsync.Block
	blocksByDocument map[featuredsync.DocumentID][]featuredsync.BlockID
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		postTypes:        make(map[string]*featuredsync.PostType),
		documents:        make(map[featuredsync.DocumentID]*featuredsync.Document),
		media:            make(map[featuredsync.MediaID]*featuredsync.MediaObject),
		blocks:           make(map[featuredsync.BlockID]*featuredsync.Block),
		blocksByDocument: make(map[featuredsync.DocumentID][]featuredsync.BlockID),
	}
}

// Post type operations

func (r *Repository) PutPostType(ctx context.Context, postType *featuredsync.PostType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	postTypeCopy := *postType
	r.postTypes[postType.Slug] = &postTypeCopy
	return nil
}

func (r *Repository) GetPostType(ctx context.Context, slug string) (*featuredsync.PostType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	postType, exists := r.postTypes[slug]
	if !exists {
		return nil, featuredsync.ErrPostTypeNotFound
	}
	postTypeCopy := *postType
	return &postTypeCopy, nil
}

// Document operations

func (r *Repository) CreateDocument(ctx context.Context, document *featuredsync.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Create a copy to avoid external modifications
	documentCopy := *document
	r.documents[document.ID] = &documentCopy
	return nil
}

func (r *Repository) GetDocument(ctx context.Context, id featuredsync.DocumentID) (*featuredsync.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	document, exists := r.documents[id]
	if !exists {
		return nil, featuredsync.ErrDocumentNotFound
	}
	// Return a copy to prevent external modifications
	documentCopy := *document
	return &documentCopy, nil
}

func (r *Repository) SetFeaturedMedia(ctx context.Context, id featuredsync.DocumentID, mediaID featuredsync.MediaID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	document, exists := r.documents[id]
	if !exists {
		return featuredsync.ErrDocumentNotFound
	}
	document.FeaturedMedia = mediaID
	document.UpdatedAt = time.Now().UTC()
	return nil
}

// Media operations

func (r *Repository) PutMedia(ctx context.Context, media *featuredsync.MediaObject) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.media[media.ID] = copyMedia(media)
	return nil
}

func (r *Repository) GetMedia(ctx context.Context, id featuredsync.MediaID) (*featuredsync.MediaObject, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	media, exists := r.media[id]
	if !exists {
		return nil, featuredsync.ErrMediaNotFound
	}
	return copyMedia(media), nil
}

// Block operations

func (r *Repository) CreateBlock(ctx context.Context, block *featuredsync.Block) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.documents[block.DocumentID]; !exists {
		return featuredsync.ErrDocumentNotFound
	}

	blockCopy := *block
	r.blocks[block.ID] = &blockCopy
	r.blocksByDocument[block.DocumentID] = append(r.blocksByDocument[block.DocumentID], block.ID)
	return nil
}

func (r *Repository) GetBlock(ctx context.Context, id featuredsync.BlockID) (*featuredsync.Block, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	block, exists := r.blocks[id]
	if !exists {
		return nil, featuredsync.ErrBlockNotFound
	}
	blockCopy := *block
	return &blockCopy, nil
}

func (r *Repository) UpdateBlock(ctx context.Context, block *featuredsync.Block) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.blocks[block.ID]
	if !exists {
		return featuredsync.ErrBlockNotFound
	}

	blockCopy := *block
	blockCopy.DocumentID = existing.DocumentID
	blockCopy.CreatedAt = existing.CreatedAt
	r.blocks[block.ID] = &blockCopy
	return nil
}

func (r *Repository) ListBlocks(ctx context.Context, documentID featuredsync.DocumentID) ([]*featuredsync.Block, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*featuredsync.Block
	for _, id := range r.blocksByDocument[documentID] {
		if block, exists := r.blocks[id]; exists {
			blockCopy := *block
			result = append(result, &blockCopy)
		}
	}

	// Sort by created_at ascending, the order blocks appear in the document
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func copyMedia(media *featuredsync.MediaObject) *featuredsync.MediaObject {
	mediaCopy := *media
	if media.Sizes.Large != nil {
		large := *media.Sizes.Large
		mediaCopy.Sizes.Large = &large
	}
	if media.MediaDetails.Sizes.Large != nil {
		large := *media.MediaDetails.Sizes.Large
		mediaCopy.MediaDetails.Sizes.Large = &large
	}
	return &mediaCopy
}
