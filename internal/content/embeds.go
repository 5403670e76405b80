package content

import (
	"fmt"
	"strings"

	"github.com/hossain-khan/social-sync/internal/source"
)

const (
	// MaxQuoteDepth bounds how many levels of nested quoted posts are
	// rendered before the omission marker is emitted instead.
	MaxQuoteDepth = 2

	// quoteBudget is the character budget for a depth-0 quoted text;
	// each nesting level gets an integer fraction of it.
	quoteBudget = 200

	circularQuoteMarker = "\n\n[Circular quote reference detected]"
	depthOmittedMarker  = "\n\n[Additional quoted content omitted due to depth...]"
)

// renderEmbed appends a plain-text rendering of embed to text. It never
// truncates for the destination character limit; the transcoder applies
// the limit once, last. seen holds quoted-post URIs already rendered on
// this branch and is copied, not shared, when descending.
func (t *Transcoder) renderEmbed(text string, embed *source.Embed, placeholders bool, depth int, seen map[string]bool) string {
	if embed == nil {
		return text
	}

	switch embed.Kind {
	case source.EmbedExternal:
		return t.renderExternal(text, embed.External)
	case source.EmbedImages:
		return renderImages(text, embed.Images, placeholders)
	case source.EmbedVideo:
		return renderVideo(text, embed.Video, placeholders)
	case source.EmbedQuote:
		return t.renderQuote(text, embed.Quote, placeholders, depth, seen)
	case source.EmbedQuoteWithMedia:
		text = t.renderQuote(text, embed.Quote, placeholders, depth, seen)
		// Attached media renders regardless of quote depth.
		if embed.Video != nil {
			return renderVideo(text, embed.Video, placeholders)
		}
		return renderImages(text, embed.Images, placeholders)
	default:
		// Unknown embed shapes pass the text through unchanged.
		return text
	}
}

// renderExternal appends a link line unless the URL is already in the
// text (facet resolution ran first, so an expanded link would duplicate).
func (t *Transcoder) renderExternal(text string, link *source.ExternalLink) string {
	if link == nil || link.URI == "" {
		return text
	}
	if strings.Contains(text, link.URI) {
		return text
	}
	title := link.Title
	if title == "" {
		title = "Link"
	}
	// Description intentionally omitted to conserve the character budget.
	return text + fmt.Sprintf("\n\n🔗 %s: %s", title, link.URI)
}

func renderImages(text string, images []source.Image, placeholders bool) string {
	if !placeholders || len(images) == 0 {
		return text
	}

	plural := ""
	if len(images) > 1 {
		plural = "s"
	}
	out := text + fmt.Sprintf("\n\n📷 [%d image%s]", len(images), plural)

	var alts []string
	for _, img := range images {
		if img.Alt != "" {
			alts = append(alts, img.Alt)
		}
	}
	if len(alts) > 0 {
		out += "\nAlt text: " + strings.Join(alts, " | ")
	}
	return out
}

func renderVideo(text string, video *source.Video, placeholders bool) string {
	if !placeholders || video == nil {
		return text
	}

	line := "\n\n🎥 [Video]"
	if video.Alt != "" {
		line = fmt.Sprintf("\n\n🎥 [Video: %s]", video.Alt)
	}
	if video.Size > 0 {
		line += fmt.Sprintf(" (%.1fMB)", float64(video.Size)/(1024*1024))
	}
	return text + line
}

// renderQuote appends a quoted-post block, recursing into nested embeds
// with a depth bound and cycle detection on quoted URIs.
func (t *Transcoder) renderQuote(text string, quote *source.Quote, placeholders bool, depth int, seen map[string]bool) string {
	if quote == nil {
		return text
	}

	if quote.URI != "" && seen[quote.URI] {
		t.log.Warn().Str("uri", quote.URI).Msg("circular quote reference")
		return text + circularQuoteMarker
	}
	if depth >= MaxQuoteDepth {
		return text + depthOmittedMarker
	}

	branch := make(map[string]bool, len(seen)+1)
	for uri := range seen {
		branch[uri] = true
	}
	if quote.URI != "" {
		branch[quote.URI] = true
	}

	maxLen := quoteBudget / (depth + 1)
	quoted := truncateRunes(quote.Text, maxLen)

	text += fmt.Sprintf("\n\nQuoting @%s:\n> %s", quote.AuthorHandle, quoted)

	if quote.Embed != nil {
		text = t.renderEmbed(text, quote.Embed, placeholders, depth+1, branch)
	}
	return text
}

// truncateRunes cuts s to max characters, appending an ellipsis when
// anything was cut.
func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
