// Package content rewrites source-platform posts into destination-ready
// text: facet expansion, embed rendering, attribution, and truncation.
package content

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	mentionRe = regexp.MustCompile(`@([a-zA-Z0-9.-]+\.?[a-zA-Z]{2,})`)
	urlRe     = regexp.MustCompile(`https?://[^\s]+`)
)

// ExtractHashtags returns the hashtags in text, in order, without the
// leading marker. A `#` opens a tag when it is the first character,
// follows whitespace or punctuation other than `#`, or terminates the
// content of a preceding valid tag (so "#one#two" is two tags). Tag
// content runs to the next whitespace or `#`; empty content is
// discarded, and a `#` following a failed tag never opens one (so
// "##double" yields nothing).
func ExtractHashtags(text string) []string {
	var tags []string
	runes := []rune(text)

	i := 0
	prevEndedTag := false
	for i < len(runes) {
		if runes[i] != '#' {
			prevEndedTag = false
			i++
			continue
		}

		opens := i == 0 || prevEndedTag || isTagBoundary(runes[i-1])
		prevEndedTag = false
		if !opens {
			i++
			continue
		}

		j := i + 1
		for j < len(runes) && !unicode.IsSpace(runes[j]) && runes[j] != '#' {
			j++
		}
		if j > i+1 {
			tags = append(tags, string(runes[i+1:j]))
			prevEndedTag = j < len(runes) && runes[j] == '#'
		}
		i = j
	}

	return tags
}

// isTagBoundary reports whether r may precede a tag opener. `#` is
// excluded: a `#` before a `#` is always part of a tag attempt itself.
func isTagBoundary(r rune) bool {
	if r == '#' {
		return false
	}
	return unicode.IsSpace(r) || unicode.IsPunct(r)
}

// ExtractMentions returns the mention handles in text, in order, without
// the leading marker. The pattern is carried over from the reference
// behavior verbatim: it may split a chain like "@a@bc.de" into
// independent matches.
func ExtractMentions(text string) []string {
	matches := mentionRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	mentions := make([]string, 0, len(matches))
	for _, m := range matches {
		mentions = append(mentions, m[1])
	}
	return mentions
}

// ExtractURLs returns the http/https URLs in text, in order. A URL is a
// maximal run of non-whitespace characters after the scheme.
func ExtractURLs(text string) []string {
	return urlRe.FindAllString(text, -1)
}

// HasSentinelTag reports whether any hashtag in text equals sentinel
// case-insensitively. The sentinel is an exact match, never a prefix:
// "#no-sync-today" does not suppress a post when the sentinel is
// "no-sync". Sentinel is given without the leading marker.
func HasSentinelTag(text, sentinel string) bool {
	if text == "" || sentinel == "" {
		return false
	}
	for _, tag := range ExtractHashtags(text) {
		if strings.EqualFold(tag, sentinel) {
			return true
		}
	}
	return false
}
