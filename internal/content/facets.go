package content

import (
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/hossain-khan/social-sync/internal/source"
)

// ResolveFacets replaces each link facet's byte range in text with the
// feature's full URL. The source platform truncates long URLs in the
// visible text and records the full value in the facet, so this must run
// before embed rendering for duplicate-link detection to see full URLs.
//
// Offsets are UTF-8 byte positions. Splicing proceeds from the highest
// start offset down so earlier ranges are unaffected by length changes.
// Malformed facets are skipped, never fatal.
func ResolveFacets(text string, facets []source.Facet, log zerolog.Logger) string {
	if len(facets) == 0 {
		return text
	}

	ordered := make([]source.Facet, len(facets))
	copy(ordered, facets)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ByteStart > ordered[j].ByteStart
	})

	buf := []byte(text)
	for _, facet := range ordered {
		if facet.ByteStart < 0 || facet.ByteEnd < facet.ByteStart || facet.ByteEnd > len(buf) {
			log.Warn().
				Int("byte_start", facet.ByteStart).
				Int("byte_end", facet.ByteEnd).
				Int("text_len", len(buf)).
				Msg("skipping facet with invalid byte range")
			continue
		}

		uri := linkURI(facet)
		if uri == "" {
			continue
		}

		spliced := make([]byte, 0, len(buf)+len(uri))
		spliced = append(spliced, buf[:facet.ByteStart]...)
		spliced = append(spliced, uri...)
		spliced = append(spliced, buf[facet.ByteEnd:]...)
		buf = spliced
	}

	// Residual invalid sequences (a splice can cut a multi-byte rune
	// when offsets are wrong on the wire) become replacement markers.
	return strings.ToValidUTF8(string(buf), "�")
}

// linkURI returns the first link feature's URL, or "" when the facet
// carries no usable link.
func linkURI(facet source.Facet) string {
	for _, f := range facet.Features {
		if f.Type == source.FeatureLink && f.URI != "" {
			return f.URI
		}
	}
	return ""
}
