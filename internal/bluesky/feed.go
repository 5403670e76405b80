package bluesky

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hossain-khan/social-sync/internal/source"
)

// AT Protocol lexicon type identifiers seen in feed responses.
const (
	typeReasonRepost  = "app.bsky.feed.defs#reasonRepost"
	typeFacetLink     = "app.bsky.richtext.facet#link"
	typeFacetMention  = "app.bsky.richtext.facet#mention"
	typeFacetTag      = "app.bsky.richtext.facet#tag"
	typeEmbedExternal = "app.bsky.embed.external"
	typeEmbedImages   = "app.bsky.embed.images"
	typeEmbedVideo    = "app.bsky.embed.video"
	typeEmbedRecord   = "app.bsky.embed.record"
	typeEmbedRecMedia = "app.bsky.embed.recordWithMedia"
	typeViewRecord    = "app.bsky.embed.record#viewRecord"
)

type feedResponse struct {
	Feed   []feedItem `json:"feed"`
	Cursor string     `json:"cursor"`
}

type feedItem struct {
	Post   postView        `json:"post"`
	Reason json.RawMessage `json:"reason"`
}

type postView struct {
	URI    string          `json:"uri"`
	CID    string          `json:"cid"`
	Author actorView       `json:"author"`
	Record postRecord      `json:"record"`
	Embed  json.RawMessage `json:"embed"`
	Labels []labelView     `json:"labels"`
}

type actorView struct {
	DID    string `json:"did"`
	Handle string `json:"handle"`
}

type labelView struct {
	Val string `json:"val"`
}

type postRecord struct {
	Text      string          `json:"text"`
	CreatedAt string          `json:"createdAt"`
	Langs     []string        `json:"langs"`
	Reply     *replyRef       `json:"reply"`
	Embed     json.RawMessage `json:"embed"`
	Facets    []wireFacet     `json:"facets"`
}

type replyRef struct {
	Root   strongRef `json:"root"`
	Parent strongRef `json:"parent"`
}

type strongRef struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

type wireFacet struct {
	Index struct {
		ByteStart int `json:"byteStart"`
		ByteEnd   int `json:"byteEnd"`
	} `json:"index"`
	Features []wireFeature `json:"features"`
}

type wireFeature struct {
	Type string `json:"$type"`
	URI  string `json:"uri"`
	DID  string `json:"did"`
	Tag  string `json:"tag"`
}

type reasonView struct {
	Type string `json:"$type"`
}

// Wire shapes for embeds. The record-side embed carries blob
// references for media; the hydrated view-side embed carries the
// quoted post's author and text. Both are needed to build a complete
// source.Embed.

type wireBlob struct {
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
	Ref      struct {
		Link string `json:"$link"`
	} `json:"ref"`
}

type wireExternal struct {
	URI         string `json:"uri"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type wireImage struct {
	Alt   string   `json:"alt"`
	Image wireBlob `json:"image"`
}

type recordEmbed struct {
	Type     string          `json:"$type"`
	External *wireExternal   `json:"external"`
	Images   []wireImage     `json:"images"`
	Video    *wireBlob       `json:"video"`
	Alt      string          `json:"alt"`
	Record   json.RawMessage `json:"record"`
	Media    json.RawMessage `json:"media"`
}

type viewEmbed struct {
	Type   string          `json:"$type"`
	Record json.RawMessage `json:"record"`
	Media  json.RawMessage `json:"media"`
}

type viewRecord struct {
	Type   string            `json:"$type"`
	URI    string            `json:"uri"`
	Author actorView         `json:"author"`
	Value  postRecord        `json:"value"`
	Embeds []json.RawMessage `json:"embeds"`
}

// DIDFromURI extracts the author DID from an at:// record URI such as
// at://did:plc:abc123/app.bsky.feed.post/xyz.
func DIDFromURI(uri string) (string, error) {
	const prefix = "at://"
	if !strings.HasPrefix(uri, prefix) {
		return "", fmt.Errorf("not an at:// uri: %q", uri)
	}
	authority := strings.SplitN(strings.TrimPrefix(uri, prefix), "/", 2)[0]
	parts := strings.SplitN(authority, ":", 3)
	if len(parts) != 3 || parts[0] != "did" || parts[1] == "" || parts[2] == "" {
		return "", fmt.Errorf("malformed did in uri: %q", uri)
	}
	return authority, nil
}

func (c *Client) convertFeedItem(item feedItem) (source.Post, error) {
	rec := item.Post.Record

	createdAt, err := time.Parse(time.RFC3339, rec.CreatedAt)
	if err != nil {
		return source.Post{}, fmt.Errorf("parse createdAt %q: %w", rec.CreatedAt, err)
	}

	post := source.Post{
		URI:          item.Post.URI,
		CID:          item.Post.CID,
		Text:         rec.Text,
		CreatedAt:    createdAt,
		AuthorDID:    item.Post.Author.DID,
		AuthorHandle: item.Post.Author.Handle,
		Langs:        rec.Langs,
	}

	// A feed item with any repost reason is the account boosting
	// someone else's post, not authoring one.
	if len(item.Reason) > 0 {
		var reason reasonView
		if err := json.Unmarshal(item.Reason, &reason); err == nil &&
			reason.Type == typeReasonRepost {
			post.IsRepost = true
		}
	}

	if rec.Reply != nil {
		post.ReplyParent = rec.Reply.Parent.URI
		post.ReplyRoot = rec.Reply.Root.URI
		if did, err := DIDFromURI(rec.Reply.Root.URI); err == nil {
			post.RootAuthorDID = did
		} else {
			c.log.Warn().Str("uri", item.Post.URI).Err(err).Msg("could not resolve thread root author")
		}
	}

	for _, facet := range rec.Facets {
		converted := source.Facet{
			ByteStart: facet.Index.ByteStart,
			ByteEnd:   facet.Index.ByteEnd,
		}
		for _, feat := range facet.Features {
			converted.Features = append(converted.Features, convertFeature(feat))
		}
		post.Facets = append(post.Facets, converted)
	}

	for _, label := range item.Post.Labels {
		post.Labels = append(post.Labels, label.Val)
	}

	post.Embed = c.buildEmbed(rec.Embed, item.Post.Embed)
	return post, nil
}

func convertFeature(feat wireFeature) source.Feature {
	converted := source.Feature{URI: feat.URI, DID: feat.DID, Tag: feat.Tag}
	switch feat.Type {
	case typeFacetLink:
		converted.Type = source.FeatureLink
	case typeFacetMention:
		converted.Type = source.FeatureMention
	case typeFacetTag:
		converted.Type = source.FeatureTag
	}
	return converted
}

// buildEmbed merges the record embed (authoritative for media blobs)
// with the hydrated view embed (authoritative for quoted content).
// Either side may be absent.
func (c *Client) buildEmbed(recordRaw, viewRaw json.RawMessage) *source.Embed {
	if len(recordRaw) == 0 {
		return nil
	}

	var rec recordEmbed
	if err := json.Unmarshal(recordRaw, &rec); err != nil {
		c.log.Warn().Err(err).Msg("unparseable record embed")
		return &source.Embed{Kind: source.EmbedUnknown}
	}

	switch baseType(rec.Type) {
	case typeEmbedExternal:
		if rec.External == nil {
			return &source.Embed{Kind: source.EmbedUnknown}
		}
		return &source.Embed{
			Kind: source.EmbedExternal,
			External: &source.ExternalLink{
				URI:         rec.External.URI,
				Title:       rec.External.Title,
				Description: rec.External.Description,
			},
		}

	case typeEmbedImages:
		return &source.Embed{
			Kind:   source.EmbedImages,
			Images: convertImages(rec.Images),
		}

	case typeEmbedVideo:
		embed := &source.Embed{
			Kind:  source.EmbedVideo,
			Video: &source.Video{Alt: rec.Alt},
		}
		if rec.Video != nil {
			embed.Video.MimeType = rec.Video.MimeType
			embed.Video.Size = rec.Video.Size
			embed.Video.BlobRef = rec.Video.Ref.Link
		}
		return embed

	case typeEmbedRecord:
		return &source.Embed{
			Kind:  source.EmbedQuote,
			Quote: c.quoteFromView(viewRaw, rec.Record),
		}

	case typeEmbedRecMedia:
		embed := &source.Embed{
			Kind:  source.EmbedQuoteWithMedia,
			Quote: c.quoteFromView(viewRaw, rec.Record),
		}
		c.attachMedia(embed, rec.Media)
		return embed

	default:
		return &source.Embed{Kind: source.EmbedUnknown}
	}
}

// attachMedia fills the media half of a recordWithMedia embed from the
// record-side media object.
func (c *Client) attachMedia(embed *source.Embed, mediaRaw json.RawMessage) {
	if len(mediaRaw) == 0 {
		return
	}
	var media recordEmbed
	if err := json.Unmarshal(mediaRaw, &media); err != nil {
		c.log.Warn().Err(err).Msg("unparseable media in record embed")
		return
	}
	switch baseType(media.Type) {
	case typeEmbedImages:
		embed.Images = convertImages(media.Images)
	case typeEmbedVideo:
		embed.Video = &source.Video{Alt: media.Alt}
		if media.Video != nil {
			embed.Video.MimeType = media.Video.MimeType
			embed.Video.Size = media.Video.Size
			embed.Video.BlobRef = media.Video.Ref.Link
		}
	}
}

// quoteFromView builds the quoted-post description from the hydrated
// view embed. When the view is missing, blocked, or not found, the
// quote degrades to the strong ref's URI so cycle and authorship
// checks still work.
func (c *Client) quoteFromView(viewRaw, recordRef json.RawMessage) *source.Quote {
	fallback := func() *source.Quote {
		var ref strongRef
		if len(recordRef) > 0 {
			_ = json.Unmarshal(recordRef, &ref)
		}
		return &source.Quote{URI: ref.URI}
	}

	if len(viewRaw) == 0 {
		return fallback()
	}

	var view viewEmbed
	if err := json.Unmarshal(viewRaw, &view); err != nil {
		return fallback()
	}

	recordView := view.Record
	// recordWithMedia#view nests the record view one level deeper.
	if baseType(view.Type) == typeEmbedRecMedia {
		var inner viewEmbed
		if err := json.Unmarshal(view.Record, &inner); err == nil && len(inner.Record) > 0 {
			recordView = inner.Record
		}
	}

	var rec viewRecord
	if err := json.Unmarshal(recordView, &rec); err != nil || rec.URI == "" {
		return fallback()
	}
	if rec.Type != "" && rec.Type != typeViewRecord {
		// viewNotFound or viewBlocked
		return fallback()
	}

	quote := &source.Quote{
		URI:          rec.URI,
		AuthorDID:    rec.Author.DID,
		AuthorHandle: rec.Author.Handle,
		Text:         rec.Value.Text,
	}
	if len(rec.Embeds) > 0 {
		quote.Embed = c.viewOnlyEmbed(rec.Embeds[0])
	}
	return quote
}

// viewOnlyEmbed converts a nested view embed, reached inside a quoted
// post, where no record-side blobs are available.
func (c *Client) viewOnlyEmbed(raw json.RawMessage) *source.Embed {
	var view viewEmbed
	if err := json.Unmarshal(raw, &view); err != nil {
		return nil
	}
	switch baseType(view.Type) {
	case typeEmbedRecord:
		return &source.Embed{
			Kind:  source.EmbedQuote,
			Quote: c.quoteFromView(raw, nil),
		}
	case typeEmbedRecMedia:
		return &source.Embed{
			Kind:  source.EmbedQuoteWithMedia,
			Quote: c.quoteFromView(raw, nil),
		}
	default:
		return nil
	}
}

func convertImages(images []wireImage) []source.Image {
	var converted []source.Image
	for _, img := range images {
		converted = append(converted, source.Image{
			Alt:      img.Alt,
			MimeType: img.Image.MimeType,
			Size:     img.Image.Size,
			BlobRef:  img.Image.Ref.Link,
		})
	}
	return converted
}

// baseType strips a #view suffix so record and view embed types
// compare against the same lexicon identifier.
func baseType(t string) string {
	if i := strings.Index(t, "#"); i >= 0 {
		return t[:i]
	}
	return t
}
