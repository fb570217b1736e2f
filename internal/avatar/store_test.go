package avatar

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/xAGI-labs/charstream-sub001/internal/config"
)

func newTestStore(t *testing.T, handler http.HandlerFunc) *StoreClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	s := NewStoreClient(config.CloudinaryConfig{
		CloudName:    "demo",
		APIKey:       "key",
		APISecret:    "secret",
		UploadPreset: "character_avatars",
		Folder:       "character-avatars",
	})
	s.uploadURL = srv.URL
	s.now = func() time.Time { return time.Unix(1700000000, 0) }
	return s
}

func TestStoreUpload_RemoteURL(t *testing.T) {
	var form url.Values
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		form = r.PostForm
		_, _ = w.Write([]byte(`{"secure_url":"https://res.cloudinary.com/demo/character-avatars/abc.png","public_id":"character-avatars/abc"}`))
	})

	got, err := s.Upload(context.Background(), "https://provider.example/img.png", "Harry Potter")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if got != "https://res.cloudinary.com/demo/character-avatars/abc.png" {
		t.Fatalf("Upload = %q", got)
	}

	if form.Get("file") != "https://provider.example/img.png" {
		t.Errorf("file = %q", form.Get("file"))
	}
	if form.Get("folder") != "character-avatars" {
		t.Errorf("folder = %q", form.Get("folder"))
	}
	if form.Get("upload_preset") != "character_avatars" {
		t.Errorf("upload_preset = %q", form.Get("upload_preset"))
	}
	if form.Get("timestamp") != "1700000000" {
		t.Errorf("timestamp = %q", form.Get("timestamp"))
	}
	want := signParams(map[string]string{
		"folder":        "character-avatars",
		"timestamp":     "1700000000",
		"upload_preset": "character_avatars",
	}, "secret")
	if form.Get("signature") != want {
		t.Errorf("signature = %q; want %q", form.Get("signature"), want)
	}
}

func TestStoreUpload_DataURIHandledIdentically(t *testing.T) {
	var file string
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		file = r.PostForm.Get("file")
		_, _ = w.Write([]byte(`{"secure_url":"https://res.cloudinary.com/demo/x.png"}`))
	})

	payload := "data:image/png;base64,QUJD"
	if _, err := s.Upload(context.Background(), payload, "x"); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if file != payload {
		t.Fatalf("file = %q; data URI must pass through unchanged", file)
	}
}

func TestStoreUpload_Non2xx(t *testing.T) {
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"quota exceeded"}}`, http.StatusUnauthorized)
	})
	if _, err := s.Upload(context.Background(), "https://x/y.png", "n"); !errors.Is(err, ErrUploadFailed) {
		t.Fatalf("err = %v; want ErrUploadFailed", err)
	}
}

func TestStoreUpload_MissingSecureURL(t *testing.T) {
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	if _, err := s.Upload(context.Background(), "https://x/y.png", "n"); !errors.Is(err, ErrUploadFailed) {
		t.Fatalf("err = %v; want ErrUploadFailed", err)
	}
}

func TestStoreUpload_MissingCredentials(t *testing.T) {
	s := NewStoreClient(config.CloudinaryConfig{CloudName: "demo", Folder: "f", UploadPreset: "p"})
	if _, err := s.Upload(context.Background(), "https://x/y.png", "n"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v; want ErrNotConfigured", err)
	}
}

func TestPayloadKind(t *testing.T) {
	if payloadKind("data:image/png;base64,AA") != "inline" {
		t.Error("data URI should be inline")
	}
	if payloadKind("https://x/y.png") != "url" {
		t.Error("http URL should be url")
	}
}
