package syncer

import (
	"sort"

	"github.com/hossain-khan/social-sync/internal/content"
	"github.com/hossain-khan/social-sync/internal/ledger"
	"github.com/hossain-khan/social-sync/internal/source"
)

// filter drops ineligible posts and returns the survivors in oldest-
// first order so threaded replies publish after their parents. Every
// reasoned drop is recorded in the ledger; posts the ledger has already
// seen are dropped silently without a new record.
func (s *Syncer) filter(posts []source.Post) []source.Post {
	var eligible []source.Post
	for _, post := range posts {
		reason, drop := s.classify(post)
		if !drop {
			eligible = append(eligible, post)
			continue
		}
		if reason == "" {
			// Already in the ledger from an earlier run.
			continue
		}
		s.log.Debug().Str("uri", post.URI).Str("reason", string(reason)).Msg("skipping post")
		if err := s.ledger.MarkSkipped(post.URI, reason); err != nil {
			s.log.Warn().Str("uri", post.URI).Err(err).Msg("could not record skip")
		}
	}

	sort.Slice(eligible, func(i, j int) bool {
		return eligible[i].CreatedAt.Before(eligible[j].CreatedAt)
	})
	return eligible
}

// classify returns whether a post must be dropped and, for fresh
// drops, the reason to record. A dropped post with an empty reason is
// one the ledger already holds.
func (s *Syncer) classify(post source.Post) (ledger.SkipReason, bool) {
	if post.IsRepost {
		return ledger.ReasonRepost, true
	}

	// Replies survive only when the whole thread is the account
	// talking to itself.
	if post.ReplyParent != "" && post.RootAuthorDID != s.opts.OwnDID {
		return ledger.ReasonReplyNotSelf, true
	}

	if quotesOther(post.Embed, s.opts.OwnDID) {
		return ledger.ReasonQuoteOfOther, true
	}

	if post.CreatedAt.Before(s.opts.SyncStart) {
		return ledger.ReasonOlderThanWindow, true
	}

	if s.ledger.IsSynced(post.URI) || s.ledger.IsSkipped(post.URI) {
		return "", true
	}

	if content.HasSentinelTag(post.Text, s.opts.Sentinel) {
		return ledger.ReasonNoSyncTag, true
	}

	return "", false
}

// quotesOther reports whether the post's top-level embed quotes a post
// authored by someone else. Self-quotes pass through and render as
// quoted text.
func quotesOther(embed *source.Embed, ownDID string) bool {
	if embed == nil || embed.Quote == nil {
		return false
	}
	switch embed.Kind {
	case source.EmbedQuote, source.EmbedQuoteWithMedia:
		return embed.Quote.AuthorDID != "" && embed.Quote.AuthorDID != ownDID
	}
	return false
}
