// Avatar Resolver.
//
// Resolver orchestrates the provider and store adapters: generation output,
// whatever its form, is always rehosted on the durable store before a URL is
// returned. A transient provider URL never escapes this package.
package avatar

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Generator is the provider-side contract consumed by the Resolver.
type Generator interface {
	Generate(ctx context.Context, prompt string) (*Generated, error)
}

// Uploader is the durable-store contract consumed by the Resolver.
type Uploader interface {
	Upload(ctx context.Context, payload, displayName string) (string, error)
}

// promptTemplate is the fixed stylistic frame wrapped around a character's
// name and description.
const promptTemplate = "Portrait avatar of %s, head and shoulders, digital painting, " +
	"soft studio lighting, vibrant colors, centered, clean background"

// BuildPrompt combines the stylistic template with the character's name and
// optional description.
func BuildPrompt(name, description string) string {
	p := fmt.Sprintf(promptTemplate, name)
	if d := strings.TrimSpace(description); d != "" {
		p += ". Character: " + d
	}
	return p
}

// Resolver produces durable avatar URLs. Both calls per invocation are
// strictly sequential (the upload depends on the generation output); distinct
// invocations need no coordination.
type Resolver struct {
	Provider Generator
	Store    Uploader

	// DurableHosts are hostname substrings identifying URLs that already
	// live on the durable store and must not be re-migrated.
	DurableHosts []string
}

// NewResolver wires a Resolver from its two adapters.
func NewResolver(p Generator, s Uploader, durableHosts []string) *Resolver {
	return &Resolver{Provider: p, Store: s, DurableHosts: durableHosts}
}

// IsDurable reports whether rawURL already points at the durable store.
// Detection is substring matching against DurableHosts; good enough to avoid
// double-migrating, nothing more.
func (r *Resolver) IsDurable(rawURL string) bool {
	for _, h := range r.DurableHosts {
		if h != "" && strings.Contains(rawURL, h) {
			return true
		}
	}
	return false
}

// Generate produces a durable avatar URL for a character.
//
// Steps: build prompt, call the provider, rehost the result on the durable
// store. A provider failure short-circuits without touching the store; a
// store failure discards the generated (transient) image. Either way the
// caller gets a typed error, never a transient URL. Re-invocation regenerates
// from scratch.
func (r *Resolver) Generate(ctx context.Context, name, description string) (string, error) {
	tr := otel.Tracer("avatar/Resolver")
	ctx, span := tr.Start(ctx, "Generate",
		trace.WithAttributes(attribute.String("character.name", name)),
	)
	defer span.End()

	gen, err := r.Provider.Generate(ctx, BuildPrompt(name, description))
	if err != nil {
		return "", err
	}

	durable, err := r.Store.Upload(ctx, gen.Payload(), name)
	if err != nil {
		return "", err
	}
	return durable, nil
}

// Normalize migrates an existing URL onto the durable store. URLs already on
// a durable host are returned unchanged with zero upload calls (idempotent
// no-op); anything else is treated as a transient provider URL and rehosted.
func (r *Resolver) Normalize(ctx context.Context, name, rawURL string) (string, error) {
	if rawURL == "" {
		return "", fmt.Errorf("%w: empty source url", ErrUploadFailed)
	}
	if r.IsDurable(rawURL) {
		return rawURL, nil
	}

	tr := otel.Tracer("avatar/Resolver")
	ctx, span := tr.Start(ctx, "Normalize",
		trace.WithAttributes(attribute.String("character.name", name)),
	)
	defer span.End()

	return r.Store.Upload(ctx, rawURL, name)
}
