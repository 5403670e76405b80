// Package bluesky is a minimal AT Protocol client for reading the
// authenticated account's own feed and downloading media blobs.
package bluesky

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/hossain-khan/social-sync/internal/source"
)

const (
	// DefaultPDS is the default personal data server.
	DefaultPDS = "https://bsky.social"

	// feedPageLimit is the AT Protocol maximum page size for
	// getAuthorFeed.
	feedPageLimit = 100

	// maxBlobBytes caps a single blob download.
	maxBlobBytes = 100 << 20
)

// Client talks to a Bluesky PDS. Use an App Password, not the account
// password.
type Client struct {
	pds        string
	httpClient *http.Client
	log        zerolog.Logger

	// populated after Login
	accessJwt string
	did       string
	handle    string
}

// NewClient creates a client against pds, defaulting to bsky.social.
func NewClient(pds string, log zerolog.Logger) *Client {
	if pds == "" {
		pds = DefaultPDS
	}
	return &Client{
		pds: pds,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log,
	}
}

type createSessionResponse struct {
	AccessJwt string `json:"accessJwt"`
	DID       string `json:"did"`
	Handle    string `json:"handle"`
}

// Login authenticates with the PDS and stores the session token.
func (c *Client) Login(ctx context.Context, identifier, password string) error {
	body := map[string]string{
		"identifier": identifier,
		"password":   password,
	}

	var resp createSessionResponse
	if err := c.post(ctx, "/xrpc/com.atproto.server.createSession", body, &resp); err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	c.accessJwt = resp.AccessJwt
	c.did = resp.DID
	c.handle = resp.Handle
	c.log.Info().Str("handle", resp.Handle).Str("did", resp.DID).Msg("authenticated with bluesky")
	return nil
}

// DID returns the authenticated account's DID. Only valid after Login.
func (c *Client) DID() string {
	return c.did
}

// Handle returns the authenticated account's handle. Only valid after
// Login.
func (c *Client) Handle() string {
	return c.handle
}

// FetchRecentPosts returns up to limit of the account's own posts
// created at or after since, newest first as the API delivers them.
// Classification flags (repost, thread root author, quoted author) are
// resolved here so downstream code never sees the wire format.
func (c *Client) FetchRecentPosts(ctx context.Context, limit int, since time.Time) (source.FetchResult, error) {
	if c.accessJwt == "" {
		return source.FetchResult{}, fmt.Errorf("not authenticated: call Login first")
	}
	if limit < 1 {
		limit = 1
	}

	// Over-fetch so replies and reposts dropped later do not starve
	// the batch; the API caps a page at 100.
	pageLimit := limit * 2
	if pageLimit > feedPageLimit {
		pageLimit = feedPageLimit
	}

	query := url.Values{}
	query.Set("actor", c.did)
	query.Set("limit", strconv.Itoa(pageLimit))

	var resp feedResponse
	if err := c.get(ctx, "/xrpc/app.bsky.feed.getAuthorFeed", query, &resp); err != nil {
		return source.FetchResult{}, fmt.Errorf("get author feed: %w", err)
	}

	result := source.FetchResult{Retrieved: len(resp.Feed)}
	for _, item := range resp.Feed {
		post, err := c.convertFeedItem(item)
		if err != nil {
			c.log.Warn().Str("uri", item.Post.URI).Err(err).Msg("skipping unparseable feed item")
			continue
		}
		result.Posts = append(result.Posts, post)
		if len(result.Posts) >= limit {
			break
		}
	}

	c.log.Info().
		Int("retrieved", result.Retrieved).
		Int("kept", len(result.Posts)).
		Time("since", since).
		Msg("fetched recent posts")
	return result, nil
}

// DownloadBlob fetches a media blob by its CID from the author's repo.
// Returns the bytes and the MIME type reported by the server.
func (c *Client) DownloadBlob(ctx context.Context, authorDID, blobRef string) ([]byte, string, error) {
	if c.accessJwt == "" {
		return nil, "", fmt.Errorf("not authenticated: call Login first")
	}

	query := url.Values{}
	query.Set("did", authorDID)
	query.Set("cid", blobRef)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.pds+"/xrpc/com.atproto.sync.getBlob?"+query.Encode(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("build blob request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessJwt)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("get blob: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, "", fmt.Errorf("get blob: status %d: %s", resp.StatusCode, body)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBlobBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read blob: %w", err)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	c.log.Debug().Str("cid", blobRef).Int("bytes", len(data)).Msg("downloaded blob")
	return data, mimeType, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.pds+path+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessJwt)
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.pds+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.accessJwt != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessJwt)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
