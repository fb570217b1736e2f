// Package services – RemediationService
//
// Bulk remediation rewrites character records whose image_url still points
// at a transient provider host, migrating each through the resolver's
// normalization path. Records are processed concurrently with no inter-record
// ordering guarantee and no global transaction: partial success is expected
// and reported per record.
package services

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/xAGI-labs/charstream-sub001/internal/domain"
)

// RemediationStore is the persistence contract for the migration job.
type RemediationStore interface {
	ListTransientCharacters(ctx context.Context, hosts []string) ([]domain.Character, error)
	ListTransientHomeCharacters(ctx context.Context, hosts []string) ([]domain.HomeCharacter, error)
	UpdateCharacterImage(ctx context.Context, id, imageURL string) error
	UpdateHomeCharacterImage(ctx context.Context, id, imageURL string) error
}

// Normalizer is the resolver slice the remediation job depends on.
type Normalizer interface {
	Normalize(ctx context.Context, name, rawURL string) (string, error)
}

// MigrationResult reports the outcome for one record.
type MigrationResult struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"` // "character" or "home_character"
	Success bool   `json:"success"`
	OldURL  string `json:"oldUrl"`
	NewURL  string `json:"newUrl,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// MigrationSummary aggregates a full remediation pass.
type MigrationSummary struct {
	Total        int               `json:"total"`
	SuccessCount int               `json:"successCount"`
	FailureCount int               `json:"failureCount"`
	Results      []MigrationResult `json:"results"`
}

// RemediationService migrates stale transient avatar URLs to the durable
// store.
type RemediationService struct {
	Store    RemediationStore
	Resolver Normalizer

	// TransientHosts are the provider host substrings the scan matches on.
	TransientHosts []string
	// Workers bounds the migration fan-out; defaults to 8 when <= 0.
	Workers int
}

// MigrateAvatars scans both character tables for transient URLs and migrates
// every match. One failing record never aborts the batch; its failure is
// recorded and the pass continues.
func (s *RemediationService) MigrateAvatars(ctx context.Context) (*MigrationSummary, error) {
	tr := otel.Tracer("services/RemediationService")
	ctx, span := tr.Start(ctx, "MigrateAvatars")
	defer span.End()

	type job struct {
		id, name, oldURL, kind string
		update                 func(ctx context.Context, id, url string) error
	}

	chars, err := s.Store.ListTransientCharacters(ctx, s.TransientHosts)
	if err != nil {
		return nil, err
	}
	homeChars, err := s.Store.ListTransientHomeCharacters(ctx, s.TransientHosts)
	if err != nil {
		return nil, err
	}

	jobs := make([]job, 0, len(chars)+len(homeChars))
	for _, c := range chars {
		jobs = append(jobs, job{c.ID, c.Name, c.ImageURL, "character", s.Store.UpdateCharacterImage})
	}
	for _, hc := range homeChars {
		jobs = append(jobs, job{hc.ID, hc.Name, hc.ImageURL, "home_character", s.Store.UpdateHomeCharacterImage})
	}
	span.SetAttributes(attribute.Int("avatars.stale", len(jobs)))

	workers := s.Workers
	if workers <= 0 {
		workers = 8
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		sem     = make(chan struct{}, workers)
		summary = MigrationSummary{Total: len(jobs), Results: make([]MigrationResult, 0, len(jobs))}
	)

	record := func(r MigrationResult) {
		mu.Lock()
		if r.Success {
			summary.SuccessCount++
		} else {
			summary.FailureCount++
		}
		summary.Results = append(summary.Results, r)
		mu.Unlock()
	}

	for _, j := range jobs {
		wg.Add(1)
		sem <- struct{}{}
		go func(j job) {
			defer wg.Done()
			defer func() { <-sem }()

			newURL, err := s.Resolver.Normalize(ctx, j.name, j.oldURL)
			if err != nil {
				log.Warn().Err(err).Str("id", j.id).Str("kind", j.kind).Msg("avatar migration failed")
				record(MigrationResult{ID: j.id, Kind: j.kind, OldURL: j.oldURL, Reason: err.Error()})
				return
			}
			if err := j.update(ctx, j.id, newURL); err != nil {
				log.Warn().Err(err).Str("id", j.id).Str("kind", j.kind).Msg("avatar migration persist failed")
				record(MigrationResult{ID: j.id, Kind: j.kind, OldURL: j.oldURL, Reason: err.Error()})
				return
			}
			record(MigrationResult{ID: j.id, Kind: j.kind, Success: true, OldURL: j.oldURL, NewURL: newURL})
		}(j)
	}
	wg.Wait()

	log.Info().
		Int("total", summary.Total).
		Int("success", summary.SuccessCount).
		Int("failure", summary.FailureCount).
		Msg("avatar remediation pass finished")
	return &summary, nil
}
