package content

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/hossain-khan/social-sync/internal/source"
)

func newTestTranscoder(t *testing.T) *Transcoder {
	t.Helper()
	return NewTranscoder(zerolog.Nop())
}

func TestRenderExternalLink(t *testing.T) {
	tr := newTestTranscoder(t)
	embed := &source.Embed{
		Kind: source.EmbedExternal,
		External: &source.ExternalLink{
			URI:         "https://github.com/example/awesome-lib",
			Title:       "Awesome Library",
			Description: "A really cool library",
		},
	}

	got := tr.renderEmbed("Check this out!", embed, true, 0, map[string]bool{})
	if !strings.Contains(got, "🔗 Awesome Library: https://github.com/example/awesome-lib") {
		t.Fatalf("missing link line: %q", got)
	}
	if strings.Contains(got, "A really cool library") {
		t.Fatalf("description must be omitted: %q", got)
	}
}

func TestRenderExternalLinkAlreadyInText(t *testing.T) {
	tr := newTestTranscoder(t)
	url := "https://example.com/article"
	embed := &source.Embed{
		Kind:     source.EmbedExternal,
		External: &source.ExternalLink{URI: url, Title: "Article"},
	}

	text := "Read " + url
	got := tr.renderEmbed(text, embed, true, 0, map[string]bool{})
	if got != text {
		t.Fatalf("duplicate link appended: %q", got)
	}
	if strings.Count(got, url) != 1 {
		t.Fatalf("URL must appear exactly once: %q", got)
	}
}

func TestRenderExternalLinkEmptyTitle(t *testing.T) {
	tr := newTestTranscoder(t)
	embed := &source.Embed{
		Kind:     source.EmbedExternal,
		External: &source.ExternalLink{URI: "https://example.com"},
	}

	got := tr.renderEmbed("post", embed, true, 0, map[string]bool{})
	if !strings.Contains(got, "🔗 Link: https://example.com") {
		t.Fatalf("missing fallback title: %q", got)
	}
}

func TestRenderImages(t *testing.T) {
	tr := newTestTranscoder(t)
	embed := &source.Embed{
		Kind: source.EmbedImages,
		Images: []source.Image{
			{Alt: "a sunset"},
			{Alt: ""},
			{Alt: "a cat"},
		},
	}

	got := tr.renderEmbed("photo dump", embed, true, 0, map[string]bool{})
	if !strings.Contains(got, "📷 [3 images]") {
		t.Fatalf("missing image placeholder: %q", got)
	}
	if !strings.Contains(got, "Alt text: a sunset | a cat") {
		t.Fatalf("missing joined alt texts: %q", got)
	}
}

func TestRenderSingleImageSingular(t *testing.T) {
	tr := newTestTranscoder(t)
	embed := &source.Embed{Kind: source.EmbedImages, Images: []source.Image{{}}}

	got := tr.renderEmbed("pic", embed, true, 0, map[string]bool{})
	if !strings.Contains(got, "📷 [1 image]") {
		t.Fatalf("expected singular placeholder: %q", got)
	}
}

func TestRenderImagesPlaceholdersDisabled(t *testing.T) {
	tr := newTestTranscoder(t)
	embed := &source.Embed{Kind: source.EmbedImages, Images: []source.Image{{Alt: "x"}}}

	if got := tr.renderEmbed("pic", embed, false, 0, map[string]bool{}); got != "pic" {
		t.Fatalf("placeholders disabled but text changed: %q", got)
	}
}

func TestRenderVideo(t *testing.T) {
	tr := newTestTranscoder(t)
	embed := &source.Embed{
		Kind:  source.EmbedVideo,
		Video: &source.Video{Alt: "Amazing video", Size: 20971520},
	}

	got := tr.renderEmbed("watch", embed, true, 0, map[string]bool{})
	if !strings.Contains(got, "🎥") {
		t.Fatalf("missing video glyph: %q", got)
	}
	if !strings.Contains(got, "Amazing video") {
		t.Fatalf("missing alt text: %q", got)
	}
	if !strings.Contains(got, "20.0MB") {
		t.Fatalf("missing size: %q", got)
	}

	disabled := tr.renderEmbed("watch", embed, false, 0, map[string]bool{})
	if disabled != "watch" {
		t.Fatalf("placeholders disabled but text changed: %q", disabled)
	}
}

func nestedQuoteChain(handles ...string) *source.Embed {
	// Builds a quote chain: first handle is the outermost quoted post.
	var embed *source.Embed
	for i := len(handles) - 1; i >= 0; i-- {
		embed = &source.Embed{
			Kind: source.EmbedQuote,
			Quote: &source.Quote{
				URI:          "at://did:plc:" + handles[i] + "/app.bsky.feed.post/1",
				AuthorHandle: handles[i] + ".bsky.social",
				Text:         "post by " + handles[i],
				Embed:        embed,
			},
		}
	}
	return embed
}

func TestQuoteDepthBound(t *testing.T) {
	tr := newTestTranscoder(t)

	// A quotes B quotes C quotes D quotes E. Only B and C render; D and
	// E are cut by the depth bound with exactly one omission marker.
	embed := nestedQuoteChain("userb", "userc", "userd", "usere")
	got := tr.renderEmbed("post by usera", embed, true, 0, map[string]bool{})

	if !strings.Contains(got, "post by usera") {
		t.Fatalf("top-level text missing: %q", got)
	}
	for _, handle := range []string{"userb.bsky.social", "userc.bsky.social"} {
		if !strings.Contains(got, "Quoting @"+handle) {
			t.Fatalf("missing quote of %s: %q", handle, got)
		}
	}
	for _, handle := range []string{"userd", "usere"} {
		if strings.Contains(got, handle) {
			t.Fatalf("content beyond depth bound rendered (%s): %q", handle, got)
		}
	}
	if n := strings.Count(got, "[Additional quoted content omitted due to depth...]"); n != 1 {
		t.Fatalf("depth marker count = %d, want 1: %q", n, got)
	}
}

func TestQuoteCycleDetection(t *testing.T) {
	tr := newTestTranscoder(t)

	uri := "at://did:plc:a/app.bsky.feed.post/1"
	embed := &source.Embed{
		Kind: source.EmbedQuote,
		Quote: &source.Quote{
			URI:          uri,
			AuthorHandle: "a.bsky.social",
			Text:         "first",
			Embed: &source.Embed{
				Kind: source.EmbedQuote,
				Quote: &source.Quote{
					URI:          uri, // same post again
					AuthorHandle: "a.bsky.social",
					Text:         "loop",
				},
			},
		},
	}

	got := tr.renderEmbed("top", embed, true, 0, map[string]bool{})
	if !strings.Contains(got, "[Circular quote reference detected]") {
		t.Fatalf("missing circular marker: %q", got)
	}
	if strings.Contains(got, "loop") {
		t.Fatalf("cycle body must not render: %q", got)
	}
}

func TestQuoteTextTruncationByDepth(t *testing.T) {
	tr := newTestTranscoder(t)

	long := strings.Repeat("A", 250)
	embed := &source.Embed{
		Kind: source.EmbedQuote,
		Quote: &source.Quote{
			URI:          "at://did:plc:b/app.bsky.feed.post/1",
			AuthorHandle: "user.bsky.social",
			Text:         long,
			Embed: &source.Embed{
				Kind: source.EmbedQuote,
				Quote: &source.Quote{
					URI:          "at://did:plc:c/app.bsky.feed.post/1",
					AuthorHandle: "deeper.bsky.social",
					Text:         strings.Repeat("B", 250),
				},
			},
		},
	}

	got := tr.renderEmbed("top", embed, true, 0, map[string]bool{})

	// Depth 0 budget is 200 characters, depth 1 gets 100.
	if !strings.Contains(got, strings.Repeat("A", 200)+"...") {
		t.Fatalf("depth-0 quote not truncated to 200: %q", got)
	}
	if strings.Contains(got, strings.Repeat("A", 201)) {
		t.Fatalf("depth-0 quote over budget: %q", got)
	}
	if !strings.Contains(got, strings.Repeat("B", 100)+"...") {
		t.Fatalf("depth-1 quote not truncated to 100: %q", got)
	}
	if strings.Contains(got, strings.Repeat("B", 101)) {
		t.Fatalf("depth-1 quote over budget: %q", got)
	}
}

func TestQuoteWithMediaRendersBoth(t *testing.T) {
	tr := newTestTranscoder(t)
	embed := &source.Embed{
		Kind: source.EmbedQuoteWithMedia,
		Quote: &source.Quote{
			URI:          "at://did:plc:q/app.bsky.feed.post/1",
			AuthorHandle: "quoted.bsky.social",
			Text:         "quoted words",
		},
		Images: []source.Image{{Alt: "chart"}},
	}

	got := tr.renderEmbed("commentary", embed, true, 0, map[string]bool{})
	if !strings.Contains(got, "Quoting @quoted.bsky.social") {
		t.Fatalf("missing quote: %q", got)
	}
	if !strings.Contains(got, "📷 [1 image]") {
		t.Fatalf("missing media placeholder: %q", got)
	}
}

func TestUnknownEmbedPassthrough(t *testing.T) {
	tr := newTestTranscoder(t)
	embed := &source.Embed{Kind: source.EmbedUnknown}

	if got := tr.renderEmbed("unchanged", embed, true, 0, map[string]bool{}); got != "unchanged" {
		t.Fatalf("unknown embed must pass text through: %q", got)
	}
}
