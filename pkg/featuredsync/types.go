package featuredsync

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MediaID identifies a media item in the document store. Zero means unset.
type MediaID int64

// DocumentID identifies a document (post) that owns a featured image reference.
type DocumentID = uuid.UUID

// BlockID identifies a single block instance.
type BlockID = uuid.UUID

// ImageBlockName is the only block type that takes part in synchronization.
const ImageBlockName = "core/image"

// PlaceholderURLPrefix marks system-default images. Blocks showing one are never synced.
const PlaceholderURLPrefix = "https://s.w.org/images/core"

// DefaultSizeSlug is the size slug written whenever the featured image is pulled into a block.
const DefaultSizeSlug = "large"

// LinkDestination is where a block image links to.
type LinkDestination string

// Link destination constants (typed).
const (
	LinkDestinationNone       LinkDestination = "none"
	LinkDestinationMedia      LinkDestination = "media"
	LinkDestinationAttachment LinkDestination = "attachment"
	LinkDestinationCustom     LinkDestination = "custom"
)

// BlockAttributes is the attribute set held by an image block.
//
// Width and Height of zero mean "unset". ShouldSync and SyncLocked are the two
// attributes persisted on behalf of the sync feature; both default to false.
type BlockAttributes struct {
	ID              MediaID         `json:"id,omitempty"`
	URL             string          `json:"url,omitempty"`
	Alt             string          `json:"alt,omitempty"`
	Caption         string          `json:"caption,omitempty"`
	Link            string          `json:"link,omitempty"`
	Href            string          `json:"href,omitempty"`
	LinkDestination LinkDestination `json:"linkDestination,omitempty"`
	Width           int             `json:"width,omitempty"`
	Height          int             `json:"height,omitempty"`
	SizeSlug        string          `json:"sizeSlug,omitempty"`
	ShouldSync      bool            `json:"shouldSync"`
	SyncLocked      bool            `json:"syncLocked"`
}

// OptionalID carries an id inside a partial write. Set distinguishes "the write
// names an id" from "the write does not touch the id"; a Set value with ID zero
// means the image source is not a local media item.
type OptionalID struct {
	Set bool
	ID  MediaID
}

// SomeID returns a set OptionalID for id.
func SomeID(id MediaID) OptionalID {
	return OptionalID{Set: true, ID: id}
}

// UndefinedID returns a set OptionalID without a media item.
func UndefinedID() OptionalID {
	return OptionalID{Set: true}
}

// MarshalJSON encodes an undefined id as null.
func (o OptionalID) MarshalJSON() ([]byte, error) {
	if o.ID == 0 {
		return []byte("null"), nil
	}
	return json.Marshal(int64(o.ID))
}

// UnmarshalJSON marks the id as set whenever the key is present, null included.
func (o *OptionalID) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.ID = 0
		return nil
	}
	var id int64
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	o.ID = MediaID(id)
	return nil
}

// AttributeChange is a partial attribute write. Nil pointers leave the
// corresponding attribute untouched. Width and Height set to zero unset them.
type AttributeChange struct {
	ID              OptionalID       `json:"id,omitzero"`
	URL             *string          `json:"url,omitempty"`
	Alt             *string          `json:"alt,omitempty"`
	Caption         *string          `json:"caption,omitempty"`
	Link            *string          `json:"link,omitempty"`
	Href            *string          `json:"href,omitempty"`
	LinkDestination *LinkDestination `json:"linkDestination,omitempty"`
	Width           *int             `json:"width,omitempty"`
	Height          *int             `json:"height,omitempty"`
	SizeSlug        *string          `json:"sizeSlug,omitempty"`
	ShouldSync      *bool            `json:"shouldSync,omitempty"`
	SyncLocked      *bool            `json:"syncLocked,omitempty"`
}

// Apply returns attrs with the change merged on top.
func (c AttributeChange) Apply(attrs BlockAttributes) BlockAttributes {
	if c.ID.Set {
		attrs.ID = c.ID.ID
	}
	if c.URL != nil {
		attrs.URL = *c.URL
	}
	if c.Alt != nil {
		attrs.Alt = *c.Alt
	}
	if c.Caption != nil {
		attrs.Caption = *c.Caption
	}
	if c.Link != nil {
		attrs.Link = *c.Link
	}
	if c.Href != nil {
		attrs.Href = *c.Href
	}
	if c.LinkDestination != nil {
		attrs.LinkDestination = *c.LinkDestination
	}
	if c.Width != nil {
		attrs.Width = *c.Width
	}
	if c.Height != nil {
		attrs.Height = *c.Height
	}
	if c.SizeSlug != nil {
		attrs.SizeSlug = *c.SizeSlug
	}
	if c.ShouldSync != nil {
		attrs.ShouldSync = *c.ShouldSync
	}
	if c.SyncLocked != nil {
		attrs.SyncLocked = *c.SyncLocked
	}
	return attrs
}

// IsEmpty reports whether the change touches no attribute.
func (c AttributeChange) IsEmpty() bool {
	return c == AttributeChange{}
}

// MediaSize is a single rendition of a media item.
type MediaSize struct {
	URL string `json:"url,omitempty"`
}

// MediaSizes holds the renditions the reconciler cares about.
type MediaSizes struct {
	Large *MediaSize `json:"large,omitempty"`
}

// MediaDetailSize is a rendition as reported in media_details.
type MediaDetailSize struct {
	SourceURL string `json:"source_url,omitempty"`
}

// MediaDetailSizes holds the media_details renditions.
type MediaDetailSizes struct {
	Large *MediaDetailSize `json:"large,omitempty"`
}

// MediaDetails is the nested media_details block of a media object.
type MediaDetails struct {
	Sizes MediaDetailSizes `json:"sizes"`
}

// MediaObject is read-only metadata describing a stored image.
type MediaObject struct {
	ID           MediaID      `json:"id"`
	Link         string       `json:"link,omitempty"`
	Caption      string       `json:"caption,omitempty"`
	AltText      string       `json:"alt_text,omitempty"`
	URL          string       `json:"url,omitempty"`
	Sizes        MediaSizes   `json:"sizes"`
	MediaDetails MediaDetails `json:"media_details"`
}

// TypeCapabilities describes what a document type supports.
type TypeCapabilities struct {
	SupportsFeaturedImage bool `json:"supports_featured_image"`
}

// PostType is a document type together with its capabilities.
type PostType struct {
	Slug         string           `json:"slug"`
	Capabilities TypeCapabilities `json:"capabilities"`
}

// Document is the owner of the featured image reference.
type Document struct {
	ID            DocumentID `json:"id"`
	PostType      string     `json:"post_type"`
	FeaturedMedia MediaID    `json:"featured_media"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Block is a content unit inside a document.
type Block struct {
	ID         BlockID         `json:"id"`
	DocumentID DocumentID      `json:"document_id"`
	Name       string          `json:"name"`
	Attributes BlockAttributes `json:"attributes"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// State is the sync state of a block, derived from its attributes.
type State int

const (
	StateUnsynced State = iota
	StateSyncedIdle
	StateSyncedLocked
)

func (s State) String() string {
	switch s {
	case StateUnsynced:
		return "unsynced"
	case StateSyncedIdle:
		return "synced_idle"
	case StateSyncedLocked:
		return "synced_locked"
	default:
		return "unknown"
	}
}

// StateOf maps attributes to a State.
func StateOf(attrs BlockAttributes) State {
	switch {
	case !attrs.ShouldSync:
		return StateUnsynced
	case attrs.SyncLocked:
		return StateSyncedLocked
	default:
		return StateSyncedIdle
	}
}

// SyncStatus is what the editing UI shows for a block.
type SyncStatus struct {
	ShouldSync bool   `json:"should_sync"`
	Locked     bool   `json:"locked"`
	State      string `json:"state"`
	HelpText   string `json:"help_text"`
}

// NoticeKind is how a notice is presented.
type NoticeKind string

const (
	NoticeKindSnackbar NoticeKind = "snackbar"
	NoticeKindDefault  NoticeKind = "default"
)

// Notice identifies a user-facing signal.
type Notice struct {
	ID         string     `json:"id"`
	Kind       NoticeKind `json:"kind"`
	Message    string     `json:"message"`
	DocumentID DocumentID `json:"document_id"`
	BlockID    BlockID    `json:"block_id"`
	CreatedAt  time.Time  `json:"created_at"`
}

// DocumentEventKind names a document change notification.
type DocumentEventKind string

const (
	EventFeaturedChanged DocumentEventKind = "featured_changed"
	EventMediaChanged    DocumentEventKind = "media_changed"
)

// DocumentEvent notifies subscribers that the featured reference or a media
// object changed. DocumentID is zero for media changes, which concern every document.
type DocumentEvent struct {
	Kind       DocumentEventKind
	DocumentID DocumentID
	MediaID    MediaID
}

func ptr[T any](v T) *T {
	return &v
}
