// Package featuredsync keeps an image block and its document's featured image
// consistent with each other.
//
// Each block carries two persisted attributes: shouldSync, toggled by the
// editor, and syncLocked, set while the block's own featured image change is
// awaiting acknowledgment. A Reconciler owns one block. It pulls the featured
// image into the block when the block is synced and unlocked, and it pushes a
// newly chosen local image to the document while holding the lock, so neither
// direction can bounce a change back to its origin.
//
// Service ties reconcilers to a Repository and a DocumentStore and is what the
// HTTP API and CLI use. Repositories are provided under repo/ (memory,
// Postgres) and an S3-backed media resolver under media/s3.
//
// Block Eligibility
//
// Only image blocks in documents whose post type supports a featured image,
// and that do not show a placeholder image, take part. Ineligible blocks are
// edited as plain blocks.
package featuredsync
