package featuredsync

// ResolveMediaURL picks the url a block should show for media: the large
// rendition, then the large media_details source, then the original.
func ResolveMediaURL(media *MediaObject) string {
	if media == nil {
		return ""
	}
	if large := media.Sizes.Large; large != nil && large.URL != "" {
		return large.URL
	}
	if large := media.MediaDetails.Sizes.Large; large != nil && large.SourceURL != "" {
		return large.SourceURL
	}
	return media.URL
}

// MergeMediaAttributes builds the single attribute update that makes a block
// show media. It depends only on media and the block's link destination.
func MergeMediaAttributes(media *MediaObject, linkDestination LinkDestination) AttributeChange {
	change := AttributeChange{
		ID:       SomeID(media.ID),
		Link:     ptr(media.Link),
		Caption:  ptr(media.Caption),
		Alt:      ptr(media.AltText),
		URL:      ptr(ResolveMediaURL(media)),
		Width:    ptr(0),
		Height:   ptr(0),
		SizeSlug: ptr(DefaultSizeSlug),
	}

	switch linkDestination {
	case LinkDestinationMedia:
		if media.URL != "" {
			change.Href = ptr(media.URL)
		}
	case LinkDestinationAttachment:
		change.Href = ptr(media.Link)
	}

	return change
}
