package mastodon

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-token", zerolog.Nop())
}

func TestVerifyCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/accounts/verify_credentials", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q, want Bearer test-token", got)
		}
		_, _ = w.Write([]byte(`{"id":"1","username":"alice","acct":"alice"}`))
	})

	c := testClient(t, mux)
	username, err := c.VerifyCredentials(context.Background())
	if err != nil {
		t.Fatalf("VerifyCredentials: %v", err)
	}
	if username != "alice" {
		t.Errorf("username = %q, want alice", username)
	}
}

func TestVerifyCredentialsRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/accounts/verify_credentials", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"The access token is invalid"}`, http.StatusUnauthorized)
	})

	c := testClient(t, mux)
	_, err := c.VerifyCredentials(context.Background())
	if err == nil {
		t.Fatal("expected error for invalid token")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error %v is not an *APIError", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", apiErr.StatusCode)
	}
}

func TestPublish(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/statuses", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm: %v", err)
		}
		if got := r.PostForm.Get("status"); got != "hello fediverse" {
			t.Errorf("status = %q", got)
		}
		if got := r.PostForm.Get("in_reply_to_id"); got != "111" {
			t.Errorf("in_reply_to_id = %q, want 111", got)
		}
		if got := r.PostForm["media_ids[]"]; len(got) != 2 || got[0] != "m1" || got[1] != "m2" {
			t.Errorf("media_ids[] = %v", got)
		}
		if got := r.PostForm.Get("sensitive"); got != "true" {
			t.Errorf("sensitive = %q, want true", got)
		}
		if got := r.PostForm.Get("spoiler_text"); got != "Content warning: porn" {
			t.Errorf("spoiler_text = %q", got)
		}
		if got := r.PostForm.Get("language"); got != "en" {
			t.Errorf("language = %q, want en", got)
		}
		_, _ = w.Write([]byte(`{"id":"42","url":"https://mastodon.example/@alice/42"}`))
	})

	c := testClient(t, mux)
	id, err := c.Publish(context.Background(), StatusRequest{
		Text:        "hello fediverse",
		InReplyToID: "111",
		MediaIDs:    []string{"m1", "m2"},
		Sensitive:   true,
		SpoilerText: "Content warning: porn",
		Language:    "en",
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if id != "42" {
		t.Errorf("id = %q, want 42", id)
	}
}

func TestPublishMinimal(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/statuses", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm: %v", err)
		}
		for _, key := range []string{"in_reply_to_id", "sensitive", "spoiler_text", "language"} {
			if _, ok := r.PostForm[key]; ok {
				t.Errorf("unexpected form key %q", key)
			}
		}
		_, _ = w.Write([]byte(`{"id":"7"}`))
	})

	c := testClient(t, mux)
	id, err := c.Publish(context.Background(), StatusRequest{Text: "plain"})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if id != "7" {
		t.Errorf("id = %q, want 7", id)
	}
}

func TestUploadMedia(t *testing.T) {
	payload := []byte{0xff, 0xd8, 0xff}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/media", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm: %v", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("FormFile: %v", err)
		}
		defer func() { _ = file.Close() }()
		if header.Filename != "media.jpg" {
			t.Errorf("filename = %q, want media.jpg", header.Filename)
		}
		if got := r.FormValue("description"); got != "a sunset" {
			t.Errorf("description = %q, want a sunset", got)
		}
		_, _ = w.Write([]byte(`{"id":"m99"}`))
	})

	c := testClient(t, mux)
	id, err := c.UploadMedia(context.Background(), payload, "image/jpeg", "a sunset")
	if err != nil {
		t.Fatalf("UploadMedia: %v", err)
	}
	if id != "m99" {
		t.Errorf("id = %q, want m99", id)
	}
}

func TestServerTrimsTrailingSlash(t *testing.T) {
	c := NewClient("https://mastodon.example/", "tok", zerolog.Nop())
	if c.Server() != "https://mastodon.example" {
		t.Errorf("Server() = %q", c.Server())
	}
}
