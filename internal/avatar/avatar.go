// Package avatar turns a character's name and description into a durable,
// publicly servable image URL. It orchestrates two external collaborators:
// an image-generation provider that returns either a hosted URL or inline
// base64 data, and a durable media store that rehosts the result under the
// application's own namespace.
//
// Expected failure modes (missing credentials, non-2xx responses, network
// errors) are logged at the call site and collapsed into the sentinel errors
// below; callers receive either a durable URL or an explicit absence, never
// a transient provider URL.
package avatar

import (
	"errors"
	"strings"
)

// Sentinel errors distinguishing the resolver's expected failure modes.
// All of them mean "no result" to callers; the distinction exists for logs
// and for tests that pin down which step failed.
var (
	// ErrNotConfigured signals missing credentials for an external service.
	ErrNotConfigured = errors.New("avatar: service not configured")

	// ErrGenerateFailed signals that the image provider produced no usable image.
	ErrGenerateFailed = errors.New("avatar: image generation failed")

	// ErrUploadFailed signals that the durable store rejected the upload.
	ErrUploadFailed = errors.New("avatar: durable upload failed")

	// ErrMalformedResponse signals a provider payload that did not match the
	// documented shape. Kept distinct from ErrGenerateFailed so a contract
	// drift is tellable apart from an ordinary upstream outage.
	ErrMalformedResponse = errors.New("avatar: malformed provider response")
)

// dataURIPrefix marks inline image payloads. Both the provider result and
// the durable store's upload call use this self-describing form.
const dataURIPrefix = "data:"

// Generated is the typed result of one provider call: exactly one of URL or
// InlineData is set. InlineData always carries a data-URI prefix.
type Generated struct {
	URL        string
	InlineData string
}

// IsInline reports whether the result carries inline image data rather than
// a provider-hosted URL.
func (g Generated) IsInline() bool {
	return strings.HasPrefix(g.InlineData, dataURIPrefix)
}

// Payload returns the value to hand the durable store: the hosted URL when
// present, else the inline data URI.
func (g Generated) Payload() string {
	if g.URL != "" {
		return g.URL
	}
	return g.InlineData
}
