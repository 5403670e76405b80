package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hossain-khan/social-sync/internal/content"
	"github.com/hossain-khan/social-sync/internal/ledger"
	"github.com/hossain-khan/social-sync/internal/source"
)

const (
	// maxAttachments is the destination platform's attachment cap per
	// status.
	maxAttachments = 4

	// maxVideoBytes is the largest video blob worth uploading.
	maxVideoBytes = 40 << 20
)

// Options configure a sync run.
type Options struct {
	// OwnDID identifies the account; replies and quotes are judged
	// against it.
	OwnDID string

	// SyncStart is the oldest creation time still eligible.
	SyncStart time.Time

	// MaxPosts bounds how many posts one run fetches.
	MaxPosts int

	// Sentinel is the hashtag that opts a post out of syncing.
	Sentinel string

	// DisableAttribution drops the "(via ...)" line from root posts.
	// Orphaned replies always carry it.
	DisableAttribution bool

	// SyncVideos enables video blob transfer instead of a placeholder.
	SyncVideos bool

	// PostDelay is the pause between published statuses.
	PostDelay time.Duration

	// UploadDelay is the pause between media uploads within a status.
	UploadDelay time.Duration

	// DryRun previews every would-be status without publishing or
	// marking anything synced.
	DryRun bool
}

// Summary reports what a run did.
type Summary struct {
	Total    int
	Synced   int
	Failed   int
	Skipped  int
	Duration time.Duration
	DryRun   bool
}

// Syncer runs the cross-posting pipeline end to end.
type Syncer struct {
	fetcher    Fetcher
	publisher  Publisher
	ledger     *ledger.Ledger
	transcoder *content.Transcoder
	opts       Options
	log        zerolog.Logger

	sleep func(time.Duration)
}

// New wires a syncer from its collaborators.
func New(fetcher Fetcher, publisher Publisher, led *ledger.Ledger, opts Options, log zerolog.Logger) *Syncer {
	return &Syncer{
		fetcher:    fetcher,
		publisher:  publisher,
		ledger:     led,
		transcoder: content.NewTranscoder(log),
		opts:       opts,
		log:        log,
		sleep:      time.Sleep,
	}
}

// Run fetches recent posts, filters them, and publishes the eligible
// ones oldest first. A failing post is logged and counted, never
// fatal to the rest of the batch.
func (s *Syncer) Run(ctx context.Context) (Summary, error) {
	start := time.Now()

	result, err := s.fetcher.FetchRecentPosts(ctx, s.opts.MaxPosts, s.opts.SyncStart)
	if err != nil {
		return Summary{}, fmt.Errorf("fetch posts: %w", err)
	}

	before := s.ledger.SkippedCount()
	eligible := s.filter(result.Posts)
	summary := Summary{
		Total:   len(result.Posts),
		Skipped: s.ledger.SkippedCount() - before,
		DryRun:  s.opts.DryRun,
	}

	for i, post := range eligible {
		if err := ctx.Err(); err != nil {
			summary.Duration = time.Since(start)
			return summary, fmt.Errorf("sync interrupted: %w", err)
		}
		if i > 0 && !s.opts.DryRun && s.opts.PostDelay > 0 {
			s.sleep(s.opts.PostDelay)
		}

		if err := s.syncPost(ctx, post); err != nil {
			s.log.Error().Str("uri", post.URI).Err(err).Msg("failed to sync post")
			summary.Failed++
			continue
		}
		summary.Synced++
	}

	if !s.opts.DryRun {
		if err := s.ledger.UpdateSyncTime(); err != nil {
			s.log.Warn().Err(err).Msg("could not record sync time")
		}
	}

	summary.Duration = time.Since(start)
	s.log.Info().
		Int("total", summary.Total).
		Int("synced", summary.Synced).
		Int("failed", summary.Failed).
		Int("skipped", summary.Skipped).
		Bool("dry_run", summary.DryRun).
		Dur("duration", summary.Duration).
		Msg("sync finished")
	return summary, nil
}

func (s *Syncer) syncPost(ctx context.Context, post source.Post) error {
	inReplyTo, attribution := s.threading(post)

	plan := s.mediaPlan(post)
	attachMedia := len(plan) > 0 && !s.opts.DryRun

	res := s.transcoder.Transcode(post, content.Options{
		IncludeMediaPlaceholders: !attachMedia,
		IncludeAttribution:       attribution,
	})

	if s.opts.DryRun {
		fmt.Printf("--- would sync %s ---\n%s\n\n", post.URI, res.Text)
		return nil
	}

	mediaIDs, err := s.uploadMedia(ctx, post.AuthorDID, plan)
	if err != nil {
		return err
	}

	destID, err := s.publisher.Publish(ctx, Status{
		Text:        res.Text,
		InReplyToID: inReplyTo,
		MediaIDs:    mediaIDs,
		Sensitive:   res.Sensitive,
		SpoilerText: res.SpoilerText,
		Language:    res.Language,
	})
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	if err := s.ledger.MarkSynced(post.URI, destID); err != nil {
		return fmt.Errorf("record sync: %w", err)
	}
	s.log.Info().Str("uri", post.URI).Str("dest_id", destID).Msg("synced post")
	return nil
}

// threading resolves a reply's destination parent. A self-thread reply
// whose parent already synced continues the destination thread and
// needs no attribution. A reply whose parent never made it across is
// published standalone with attribution forced so readers can find the
// original thread.
func (s *Syncer) threading(post source.Post) (inReplyTo string, attribution bool) {
	attribution = !s.opts.DisableAttribution

	if post.ReplyParent == "" {
		return "", attribution
	}
	if destID, ok := s.ledger.DestIDFor(post.ReplyParent); ok {
		return destID, false
	}
	s.log.Warn().
		Str("uri", post.URI).
		Str("parent", post.ReplyParent).
		Msg("reply parent never synced, publishing standalone")
	return "", true
}

// mediaItem is one blob scheduled for transfer.
type mediaItem struct {
	blobRef string
	alt     string
}

// mediaPlan picks which blobs to carry over. Images win over video in
// mixed embeds; oversized or disabled videos fall back to the textual
// placeholder.
func (s *Syncer) mediaPlan(post source.Post) []mediaItem {
	embed := post.Embed
	if embed == nil {
		return nil
	}

	var plan []mediaItem
	for _, img := range embed.Images {
		if len(plan) == maxAttachments {
			s.log.Warn().Str("uri", post.URI).Msg("too many images, dropping extras")
			break
		}
		if img.BlobRef == "" {
			continue
		}
		plan = append(plan, mediaItem{blobRef: img.BlobRef, alt: img.Alt})
	}
	if len(plan) > 0 {
		return plan
	}

	if embed.Video != nil && embed.Video.BlobRef != "" {
		if !s.opts.SyncVideos {
			return nil
		}
		if embed.Video.Size > maxVideoBytes {
			s.log.Warn().
				Str("uri", post.URI).
				Int64("bytes", embed.Video.Size).
				Msg("video too large, keeping placeholder")
			return nil
		}
		plan = append(plan, mediaItem{blobRef: embed.Video.BlobRef, alt: embed.Video.Alt})
	}
	return plan
}

func (s *Syncer) uploadMedia(ctx context.Context, authorDID string, plan []mediaItem) ([]string, error) {
	var ids []string
	for i, item := range plan {
		if i > 0 && s.opts.UploadDelay > 0 {
			s.sleep(s.opts.UploadDelay)
		}

		data, mimeType, err := s.fetcher.DownloadBlob(ctx, authorDID, item.blobRef)
		if err != nil {
			return nil, fmt.Errorf("download blob %s: %w", item.blobRef, err)
		}
		id, err := s.publisher.UploadMedia(ctx, data, mimeType, item.alt)
		if err != nil {
			return nil, fmt.Errorf("upload blob %s: %w", item.blobRef, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
