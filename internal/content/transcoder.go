package content

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/hossain-khan/social-sync/internal/source"
)

// CharLimit is the destination platform's post length in characters.
const CharLimit = 500

// DefaultSource is the attribution name for the source platform.
const DefaultSource = "Bluesky"

// Options control a single transcode call.
type Options struct {
	// IncludeMediaPlaceholders renders textual placeholders for images
	// and video. Callers disable this when the real media will be
	// attached out-of-band; preview modes always enable it.
	IncludeMediaPlaceholders bool

	// IncludeAttribution appends the "(via ...)" line when it fits.
	IncludeAttribution bool
}

// Result is a destination-ready post. Media upload handles are owned by
// the caller and attached at publish time, not here.
type Result struct {
	Text        string
	Hashtags    []string
	Mentions    []string
	URLs        []string
	Sensitive   bool
	SpoilerText string
	Language    string
}

// Transcoder converts source posts into destination-ready text.
type Transcoder struct {
	limit      int
	sourceName string
	log        zerolog.Logger
}

// NewTranscoder creates a transcoder with the destination character
// limit and the default source attribution.
func NewTranscoder(log zerolog.Logger) *Transcoder {
	return &Transcoder{limit: CharLimit, sourceName: DefaultSource, log: log}
}

// Transcode runs the full pipeline, strictly in order: facet resolution,
// embed rendering, attribution, truncation. The output text never
// exceeds the character limit.
func (t *Transcoder) Transcode(post source.Post, opts Options) Result {
	text := ResolveFacets(post.Text, post.Facets, t.log)

	if post.Embed != nil {
		text = t.renderEmbed(text, post.Embed, opts.IncludeMediaPlaceholders, 0, map[string]bool{})
	}

	if opts.IncludeAttribution {
		text = t.addAttribution(text)
	}

	text = t.truncate(text)

	res := Result{
		Text:     text,
		Hashtags: ExtractHashtags(text),
		Mentions: ExtractMentions(text),
		URLs:     ExtractURLs(text),
	}

	if len(post.Labels) > 0 {
		res.Sensitive = true
		res.SpoilerText = spoilerText(post.Labels)
	}
	if len(post.Langs) > 0 {
		res.Language = post.Langs[0]
	}

	return res
}

// addAttribution appends the attribution line if it is not already
// present and still fits within the character limit; otherwise the text
// is returned unchanged.
func (t *Transcoder) addAttribution(text string) string {
	attribution := fmt.Sprintf("\n\n(via %s)", t.sourceName)
	if t.sourceName == DefaultSource {
		attribution = fmt.Sprintf("\n\n(via %s 🦋)", t.sourceName)
	}

	if strings.Contains(text, "(via") {
		return text
	}
	if utf8.RuneCountInString(text)+utf8.RuneCountInString(attribution) > t.limit {
		return text
	}
	return text + attribution
}

// truncate enforces the character limit. When over, the text is cut at
// limit-3 characters, backed up to the preceding space if that space
// falls within the last 20% of the budget, and an ellipsis is appended.
func (t *Transcoder) truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= t.limit {
		return text
	}

	cut := runes[:t.limit-3]
	lastSpace := -1
	for i, r := range cut {
		if r == ' ' {
			lastSpace = i
		}
	}
	if lastSpace > t.limit*8/10 {
		cut = cut[:lastSpace]
	}
	return string(cut) + "..."
}

// spoilerText derives a content warning line from moderation labels.
func spoilerText(labels []string) string {
	return "Content warning: " + strings.Join(labels, ", ")
}
