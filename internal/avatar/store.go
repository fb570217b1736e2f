// Durable Image Store Adapter.
//
// StoreClient uploads an image (remote URL or inline data URI, treated
// identically) to the configured media-hosting service and returns its
// canonical secure URL. Upload failures are logged with the input's kind and
// collapsed into ErrUploadFailed.
package avatar

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xAGI-labs/charstream-sub001/internal/config"
)

// uploadResponse is the subset of the store's response body we consume.
type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
}

// StoreClient calls the durable media store's upload endpoint.
type StoreClient struct {
	apiKey       string
	apiSecret    string
	uploadPreset string
	folder       string
	uploadURL    string

	httpClient *http.Client

	// now is a seam for signature timestamps in tests.
	now func() time.Time
}

// NewStoreClient builds a client from configuration.
func NewStoreClient(cfg config.CloudinaryConfig) *StoreClient {
	return &StoreClient{
		apiKey:       cfg.APIKey,
		apiSecret:    cfg.APISecret,
		uploadPreset: cfg.UploadPreset,
		folder:       cfg.Folder,
		uploadURL:    cfg.UploadURL(),
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		now:          time.Now,
	}
}

// payloadKind names the input form for logs only.
func payloadKind(payload string) string {
	if strings.HasPrefix(payload, dataURIPrefix) {
		return "inline"
	}
	return "url"
}

// Upload rehosts payload (remote URL or data URI) under the configured folder
// and upload preset, returning the store's secure URL. displayName is used
// only for logging context.
func (s *StoreClient) Upload(ctx context.Context, payload, displayName string) (string, error) {
	if s.apiKey == "" || s.apiSecret == "" {
		return "", fmt.Errorf("%w: media store credentials missing", ErrNotConfigured)
	}

	ts := strconv.FormatInt(s.now().Unix(), 10)

	// Signature covers all params except file and api_key, sorted by key.
	signed := map[string]string{
		"folder":        s.folder,
		"timestamp":     ts,
		"upload_preset": s.uploadPreset,
	}
	form := url.Values{
		"file":          {payload},
		"api_key":       {s.apiKey},
		"folder":        {s.folder},
		"timestamp":     {ts},
		"upload_preset": {s.uploadPreset},
		"signature":     {signParams(signed, s.apiSecret)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.uploadURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		log.Error().Err(err).
			Str("name", displayName).
			Str("kind", payloadKind(payload)).
			Msg("avatar upload request failed")
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Error().
			Int("status", resp.StatusCode).
			Str("name", displayName).
			Str("kind", payloadKind(payload)).
			Str("body", string(raw)).
			Msg("avatar upload returned non-2xx")
		return "", fmt.Errorf("%w: status %d", ErrUploadFailed, resp.StatusCode)
	}

	var out uploadResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if out.SecureURL == "" {
		return "", fmt.Errorf("%w: response missing secure_url", ErrUploadFailed)
	}
	return out.SecureURL, nil
}

// signParams produces the hex SHA-1 signature over "k=v&k=v...<secret>" with
// keys in lexical order, per the store's documented signing scheme.
func signParams(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	b.WriteString(secret)

	sum := sha1.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
