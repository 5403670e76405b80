// Package source defines the platform-neutral model for fetched posts.
package source

import "time"

// Post is a single post fetched from the source platform. Classification
// flags (repost, thread root author, quoted author) are resolved by the
// fetcher; downstream code never parses the wire format. A Post is
// immutable once fetched.
type Post struct {
	URI           string    // globally unique source identifier (at://...)
	CID           string    // content hash of the record
	Text          string    // plain text body
	CreatedAt     time.Time // post creation time
	AuthorDID     string    // author's stable identifier
	AuthorHandle  string    // author's handle (e.g. "user.bsky.social")
	ReplyParent   string    // URI of the parent post, empty if not a reply
	ReplyRoot     string    // URI of the thread root, empty if not a reply
	RootAuthorDID string    // DID of the thread root's author, empty if not a reply
	IsRepost      bool      // true when the feed item is a repost

	Embed  *Embed   // rich media attachment, nil if none
	Facets []Facet  // byte-offset text annotations, nil if none
	Langs  []string // language tags set by the author's client
	Labels []string // moderation/sensitivity label values
}

// EmbedKind discriminates the embed union.
type EmbedKind string

const (
	EmbedExternal       EmbedKind = "external"
	EmbedImages         EmbedKind = "images"
	EmbedVideo          EmbedKind = "video"
	EmbedQuote          EmbedKind = "quote"
	EmbedQuoteWithMedia EmbedKind = "quote_with_media"
	EmbedUnknown        EmbedKind = "unknown"
)

// Embed is a tagged union of the attachment shapes the source platform
// produces. Unrecognized shapes are carried as EmbedUnknown so the
// renderer stays total.
type Embed struct {
	Kind EmbedKind

	External *ExternalLink // set for EmbedExternal
	Images   []Image       // set for EmbedImages and quote-with-media
	Video    *Video        // set for EmbedVideo and quote-with-media
	Quote    *Quote        // set for EmbedQuote and EmbedQuoteWithMedia
}

// ExternalLink is a link card attachment.
type ExternalLink struct {
	URI         string
	Title       string
	Description string
}

// Image is one attached image with its blob reference for download.
type Image struct {
	Alt      string
	MimeType string
	Size     int64
	BlobRef  string // CID of the blob on the source PDS
}

// Video is an attached video with its blob reference.
type Video struct {
	Alt      string
	MimeType string
	Size     int64
	BlobRef  string
}

// Quote is a quoted post nested inside an embed. Quotes nest through
// Embed, so the structure is recursive and may be arbitrarily deep or
// even cyclic on the wire.
type Quote struct {
	URI          string
	AuthorDID    string
	AuthorHandle string
	Text         string
	Embed        *Embed
}

// Facet annotates a byte range of the post text with a typed feature.
// Offsets are UTF-8 byte positions, not character positions, and ranges
// from the wire must not be assumed valid or non-overlapping.
type Facet struct {
	ByteStart int
	ByteEnd   int
	Features  []Feature
}

// FeatureType discriminates facet features.
type FeatureType string

const (
	FeatureLink    FeatureType = "link"
	FeatureMention FeatureType = "mention"
	FeatureTag     FeatureType = "tag"
)

// Feature is one typed facet feature.
type Feature struct {
	Type FeatureType
	URI  string // full URL for FeatureLink
	DID  string // target identifier for FeatureMention
	Tag  string // literal tag text for FeatureTag
}

// FetchResult carries fetched posts together with fetch statistics for
// the run summary.
type FetchResult struct {
	Posts     []Post
	Retrieved int // total feed items returned by the API before any filtering
}
