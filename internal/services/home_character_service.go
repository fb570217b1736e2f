// Package services – HomeCharacterService
//
// Curated landing-page characters are admin-managed: create/update/delete go
// through the admin routes, while the public listing is read-only. Avatar
// resolution follows the same policy as user characters.
package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/xAGI-labs/charstream-sub001/internal/avatar"
	"github.com/xAGI-labs/charstream-sub001/internal/domain"
	"github.com/xAGI-labs/charstream-sub001/internal/repo"
)

// HomeCharacterService provides CRUD over the curated landing-page set.
type HomeCharacterService struct {
	DB       *gorm.DB
	Resolver AvatarResolver

	PlaceholderBase string
	NameMaxLen      int
}

// NewHomeCharacterService constructs the service with defaults matching
// CharacterService.
func NewHomeCharacterService(db *gorm.DB, res AvatarResolver, placeholderBase string) *HomeCharacterService {
	return &HomeCharacterService{
		DB:              db,
		Resolver:        res,
		PlaceholderBase: placeholderBase,
		NameMaxLen:      120,
	}
}

// List returns curated characters, optionally scoped to a category, in
// display order.
func (s *HomeCharacterService) List(ctx context.Context, category string) ([]domain.HomeCharacter, error) {
	return repo.ListHomeCharacters(ctx, s.DB, strings.TrimSpace(category))
}

// Create inserts a curated character, resolving an avatar the same way user
// characters do (placeholder on failure).
func (s *HomeCharacterService) Create(ctx context.Context, name, description, category string, displayOrder int) (*domain.HomeCharacter, error) {
	name = normalizeName(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	if s.NameMaxLen > 0 && utf8.RuneCountInString(name) > s.NameMaxLen {
		return nil, ErrTooLong
	}
	if category = strings.TrimSpace(category); category == "" {
		category = "featured"
	}

	imageURL := ""
	if s.Resolver != nil {
		if u, err := s.Resolver.Generate(ctx, name, description); err == nil {
			imageURL = u
		}
	}
	if imageURL == "" {
		imageURL = avatar.PlaceholderURL(s.PlaceholderBase, name, 0)
	}

	return repo.CreateHomeCharacter(ctx, s.DB, name, strings.TrimSpace(description), imageURL, category, displayOrder)
}

// HomeCharacterUpdate carries mutable fields; nil means unchanged.
type HomeCharacterUpdate struct {
	Name         *string
	Description  *string
	Category     *string
	DisplayOrder *int
	ImageURL     *string
}

// Update applies an admin edit to a curated character, enforcing the
// durable-image invariant like CharacterService.Update.
func (s *HomeCharacterService) Update(ctx context.Context, id string, upd HomeCharacterUpdate) error {
	existing, err := repo.GetHomeCharacter(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrHomeCharacterNotFound
		}
		return err
	}

	updates := map[string]any{}
	if upd.Name != nil {
		n := normalizeName(*upd.Name)
		if n == "" {
			return ErrEmptyName
		}
		updates["name"] = n
	}
	if upd.Description != nil {
		updates["description"] = strings.TrimSpace(*upd.Description)
	}
	if upd.Category != nil {
		if c := strings.TrimSpace(*upd.Category); c != "" {
			updates["category"] = c
		}
	}
	if upd.DisplayOrder != nil {
		updates["display_order"] = *upd.DisplayOrder
	}
	if upd.ImageURL != nil {
		if s.Resolver != nil && s.Resolver.IsDurable(existing.ImageURL) && !s.Resolver.IsDurable(*upd.ImageURL) {
			return ErrTransientImageURL
		}
		updates["image_url"] = *upd.ImageURL
	}
	if len(updates) == 0 {
		return nil
	}

	if err := repo.UpdateHomeCharacter(ctx, s.DB, id, updates); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrHomeCharacterNotFound
		}
		return err
	}
	return nil
}

// Delete removes a curated character.
func (s *HomeCharacterService) Delete(ctx context.Context, id string) error {
	if err := repo.DeleteHomeCharacter(ctx, s.DB, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrHomeCharacterNotFound
		}
		return err
	}
	return nil
}
