// Package mastodon is a small client for the handful of Mastodon API
// endpoints needed to publish statuses with media.
package mastodon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Client talks to a single Mastodon instance with a bearer token.
type Client struct {
	server     string
	token      string
	httpClient *http.Client
	log        zerolog.Logger
}

// APIError is a non-2xx response from the instance.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mastodon api: status %d: %s", e.StatusCode, e.Body)
}

// NewClient creates a client for server (e.g. https://mastodon.social)
// using accessToken for authentication.
func NewClient(server, accessToken string, log zerolog.Logger) *Client {
	return &Client{
		server: strings.TrimRight(server, "/"),
		token:  accessToken,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		log: log,
	}
}

// Server returns the instance base URL without a trailing slash.
func (c *Client) Server() string {
	return c.server
}

// VerifyCredentials checks the token against the instance and returns
// the account's username.
func (c *Client) VerifyCredentials(ctx context.Context) (string, error) {
	var account struct {
		Username string `json:"username"`
	}
	if err := c.get(ctx, "/api/v1/accounts/verify_credentials", &account); err != nil {
		return "", fmt.Errorf("verify credentials: %w", err)
	}
	c.log.Info().Str("username", account.Username).Str("server", c.server).Msg("authenticated with mastodon")
	return account.Username, nil
}

// StatusRequest is a new status to publish.
type StatusRequest struct {
	Text        string
	InReplyToID string
	MediaIDs    []string
	Sensitive   bool
	SpoilerText string
	Language    string
}

// Publish posts a new status and returns its ID.
func (c *Client) Publish(ctx context.Context, req StatusRequest) (string, error) {
	form := url.Values{}
	form.Set("status", req.Text)
	if req.InReplyToID != "" {
		form.Set("in_reply_to_id", req.InReplyToID)
	}
	for _, id := range req.MediaIDs {
		form.Add("media_ids[]", id)
	}
	if req.Sensitive {
		form.Set("sensitive", "true")
	}
	if req.SpoilerText != "" {
		form.Set("spoiler_text", req.SpoilerText)
	}
	if req.Language != "" {
		form.Set("language", req.Language)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.server+"/api/v1/statuses", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build status request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Authorization", "Bearer "+c.token)

	var status struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := c.do(httpReq, &status); err != nil {
		return "", fmt.Errorf("publish status: %w", err)
	}

	c.log.Info().Str("id", status.ID).Str("url", status.URL).Msg("published status")
	return status.ID, nil
}

// UploadMedia uploads a media attachment and returns its ID. The
// description becomes the attachment's alt text.
func (c *Client) UploadMedia(ctx context.Context, data []byte, mimeType, description string) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", fileNameFor(mimeType))
	if err != nil {
		return "", fmt.Errorf("build media form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("write media form: %w", err)
	}
	if description != "" {
		if err := writer.WriteField("description", description); err != nil {
			return "", fmt.Errorf("write media description: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close media form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.server+"/api/v2/media", &body)
	if err != nil {
		return "", fmt.Errorf("build media request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.token)

	var media struct {
		ID string `json:"id"`
	}
	if err := c.do(req, &media); err != nil {
		return "", fmt.Errorf("upload media: %w", err)
	}

	c.log.Debug().Str("id", media.ID).Int("bytes", len(data)).Msg("uploaded media")
	return media.ID, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.server+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
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
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func fileNameFor(mimeType string) string {
	switch mimeType {
	case "image/png":
		return "media.png"
	case "image/gif":
		return "media.gif"
	case "image/webp":
		return "media.webp"
	case "video/mp4":
		return "media.mp4"
	default:
		return "media.jpg"
	}
}
