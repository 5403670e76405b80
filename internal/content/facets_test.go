package content

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/hossain-khan/social-sync/internal/source"
)

func linkFacet(start, end int, uri string) source.Facet {
	return source.Facet{
		ByteStart: start,
		ByteEnd:   end,
		Features:  []source.Feature{{Type: source.FeatureLink, URI: uri}},
	}
}

func TestResolveFacetsExpandsTruncatedURL(t *testing.T) {
	text := "See http://x..."
	full := "http://example.com/full"
	got := ResolveFacets(text, []source.Facet{linkFacet(4, 15, full)}, zerolog.Nop())

	if !strings.Contains(got, full) {
		t.Fatalf("expanded text missing full URL: %q", got)
	}
	if strings.Contains(got, "http://x...") {
		t.Fatalf("expanded text still contains truncated URL: %q", got)
	}
	if got != "See "+full {
		t.Fatalf("unexpected expansion result: %q", got)
	}
}

func TestResolveFacetsMultiByteText(t *testing.T) {
	// "héllo " is 7 bytes: the facet range must be byte-accurate, not
	// character-accurate.
	text := "héllo example.com/truncat..."
	full := "https://example.com/truncated/to/something/long"
	got := ResolveFacets(text, []source.Facet{linkFacet(7, len(text), full)}, zerolog.Nop())

	if got != "héllo "+full {
		t.Fatalf("unexpected multi-byte expansion: %q", got)
	}
}

func TestResolveFacetsMultipleDescending(t *testing.T) {
	text := "a.co and b.co"
	facets := []source.Facet{
		linkFacet(0, 4, "https://a.example.com"),
		linkFacet(9, 13, "https://b.example.com"),
	}
	got := ResolveFacets(text, facets, zerolog.Nop())

	if got != "https://a.example.com and https://b.example.com" {
		t.Fatalf("unexpected multi-facet expansion: %q", got)
	}
}

func TestResolveFacetsSkipsMalformed(t *testing.T) {
	text := "hello world"
	facets := []source.Facet{
		linkFacet(-1, 5, "https://bad.example"),
		linkFacet(3, 2, "https://bad.example"),
		linkFacet(0, 100, "https://bad.example"),
		{ByteStart: 0, ByteEnd: 5, Features: []source.Feature{{Type: source.FeatureMention, DID: "did:plc:x"}}},
		{ByteStart: 0, ByteEnd: 5, Features: []source.Feature{{Type: source.FeatureLink}}},
	}

	if got := ResolveFacets(text, facets, zerolog.Nop()); got != text {
		t.Fatalf("malformed facets must be skipped, got %q", got)
	}
}

func TestResolveFacetsDoesNotMutateInput(t *testing.T) {
	facets := []source.Facet{
		linkFacet(0, 1, "https://a.example"),
		linkFacet(2, 3, "https://b.example"),
	}
	ResolveFacets("x y", facets, zerolog.Nop())

	if facets[0].ByteStart != 0 || facets[1].ByteStart != 2 {
		t.Fatalf("input facet slice reordered: %+v", facets)
	}
}

func TestResolveFacetsInvalidUTF8Residue(t *testing.T) {
	// Splicing inside the 2-byte "é" leaves an orphaned continuation
	// byte, which must decode to a replacement marker, not fail.
	text := "é tail"
	got := ResolveFacets(text, []source.Facet{linkFacet(0, 1, "https://x.example")}, zerolog.Nop())

	if !strings.Contains(got, "�") {
		t.Fatalf("expected replacement marker in %q", got)
	}
	if !strings.Contains(got, "https://x.example") {
		t.Fatalf("expected spliced URL in %q", got)
	}
}
