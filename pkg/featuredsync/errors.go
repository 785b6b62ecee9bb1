package featuredsync

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrExternalSource indicates a synchronized block was given an image that is not a local media item
	ErrExternalSource = errors.New("cannot use an external URL while synchronized with the featured image")

	// ErrMediaNotFound indicates a media id could not be resolved
	ErrMediaNotFound = errors.New("media not found")

	// ErrDocumentNotFound indicates a document was not found
	ErrDocumentNotFound = errors.New("document not found")

	// ErrBlockNotFound indicates a block was not found
	ErrBlockNotFound = errors.New("block not found")

	// ErrPostTypeNotFound indicates a post type was not found
	ErrPostTypeNotFound = errors.New("post type not found")

	// ErrAcknowledgmentTimeout indicates a featured image update was not acknowledged in time
	ErrAcknowledgmentTimeout = errors.New("featured image update not acknowledged")

	// ErrInvalidArgument indicates a request failed validation
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrIneligible indicates the block cannot take part in synchronization
	ErrIneligible = errors.New("block is not eligible for featured image sync")
)

// BlockError represents an error related to block operations
type BlockError struct {
	BlockID BlockID
	Op      string
	Err     error
}

func (e *BlockError) Error() string {
	return fmt.Sprintf("block operation %s failed for block %s: %v", e.Op, e.BlockID, e.Err)
}

func (e *BlockError) Unwrap() error {
	return e.Err
}

// StoreError represents an error returned by a document store backend
type StoreError struct {
	Backend string
	Op      string
	Err     error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store operation %s failed on backend %s: %v", e.Op, e.Backend, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
