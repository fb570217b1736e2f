package avatar

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/xAGI-labs/charstream-sub001/internal/config"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *ProviderClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p := NewProviderClient(config.TogetherConfig{
		APIKey: "test-key",
		Model:  "black-forest-labs/FLUX.1-schnell",
		Width:  512,
		Height: 512,
		Steps:  4,
	})
	p.baseURL = srv.URL
	return p
}

func TestProviderGenerate_URLResult(t *testing.T) {
	var gotBody generationRequest
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization = %q", auth)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(generationResponse{
			Data: []generationResult{{URL: "https://provider.example/img.png"}},
		})
	})

	got, err := p.Generate(context.Background(), "a wizard")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got.URL != "https://provider.example/img.png" || got.IsInline() {
		t.Fatalf("result = %+v", got)
	}
	if gotBody.Prompt != "a wizard" || gotBody.N != 1 || gotBody.Width != 512 || gotBody.Steps != 4 {
		t.Errorf("request body = %+v", gotBody)
	}
	if gotBody.Model != "black-forest-labs/FLUX.1-schnell" {
		t.Errorf("model = %q", gotBody.Model)
	}
}

func TestProviderGenerate_InlineResult(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(generationResponse{
			Data: []generationResult{{B64JSON: "QUJD"}},
		})
	})

	got, err := p.Generate(context.Background(), "x")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !got.IsInline() || !strings.HasPrefix(got.InlineData, "data:image/png;base64,") {
		t.Fatalf("inline result = %+v", got)
	}
}

func TestProviderGenerate_Non2xx(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model overloaded"}`, http.StatusServiceUnavailable)
	})

	_, err := p.Generate(context.Background(), "x")
	if !errors.Is(err, ErrGenerateFailed) {
		t.Fatalf("err = %v; want ErrGenerateFailed", err)
	}
}

func TestProviderGenerate_MalformedPayloads(t *testing.T) {
	cases := map[string]string{
		"not json":      "<html>oops</html>",
		"empty data":    `{"data":[]}`,
		"vacant result": `{"data":[{}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			})
			if _, err := p.Generate(context.Background(), "x"); !errors.Is(err, ErrMalformedResponse) {
				t.Fatalf("err = %v; want ErrMalformedResponse", err)
			}
		})
	}
}

func TestProviderGenerate_MissingKey(t *testing.T) {
	p := NewProviderClient(config.TogetherConfig{Width: 512, Height: 512, Steps: 4})
	if _, err := p.Generate(context.Background(), "x"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v; want ErrNotConfigured", err)
	}
}
