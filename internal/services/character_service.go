// Package services – CharacterService
//
// This file implements the CharacterService, which manages the lifecycle of
// user-created characters. It validates and normalizes names, enforces
// ownership rules, coordinates repository operations, and drives avatar
// resolution on create. When the resolver reports no result the service
// stores the deterministic placeholder URL instead, so callers never see a
// broken image or a transient provider URL.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/xAGI-labs/charstream-sub001/internal/avatar"
	"github.com/xAGI-labs/charstream-sub001/internal/domain"
)

// CharacterRepo defines the repository contract required by CharacterService.
type CharacterRepo interface {
	CreateCharacter(ctx context.Context, db *gorm.DB, ownerID, name, description, imageURL string, public bool) (*domain.Character, error)
	GetCharacter(ctx context.Context, db *gorm.DB, id string) (*domain.Character, error)
	CountPublicCharacters(ctx context.Context, db *gorm.DB) (int64, error)
	ListPublicCharactersPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Character, error)
	CountOwnedCharacters(ctx context.Context, db *gorm.DB, ownerID string) (int64, error)
	ListOwnedCharactersPage(ctx context.Context, db *gorm.DB, ownerID string, offset, limit int) ([]domain.Character, error)
	UpdateCharacter(ctx context.Context, db *gorm.DB, id, ownerID string, updates map[string]any) error
	DeleteCharacter(ctx context.Context, db *gorm.DB, id, ownerID string) error
}

// AvatarResolver is the slice of the avatar package the service layer needs.
type AvatarResolver interface {
	Generate(ctx context.Context, name, description string) (string, error)
	Normalize(ctx context.Context, name, rawURL string) (string, error)
	IsDurable(rawURL string) bool
}

// CharacterService provides character-level operations such as creating,
// listing, updating, and deleting characters. It enforces name rules,
// ownership constraints, and the durable-image invariant.
type CharacterService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the character repository used by this service.
	Repo CharacterRepo
	// Resolver produces durable avatar URLs; may fail, in which case the
	// placeholder fallback applies.
	Resolver AvatarResolver

	// PlaceholderBase is the fallback image service used when resolution fails.
	PlaceholderBase string
	// NameMaxLen caps stored names by rune length.
	NameMaxLen int
}

// NewCharacterService constructs a CharacterService with sane defaults.
func NewCharacterService(db *gorm.DB, r CharacterRepo, res AvatarResolver, placeholderBase string) *CharacterService {
	return &CharacterService{
		DB:              db,
		Repo:            r,
		Resolver:        res,
		PlaceholderBase: placeholderBase,
		NameMaxLen:      120,
	}
}

// Create inserts a new character owned by ownerID, attempting avatar
// generation first. A resolver failure is not fatal: the character is stored
// with the deterministic placeholder derived from its name.
func (s *CharacterService) Create(ctx context.Context, ownerID, name, description string, public bool) (*domain.Character, error) {
	name = normalizeName(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	if s.NameMaxLen > 0 && utf8.RuneCountInString(name) > s.NameMaxLen {
		return nil, ErrTooLong
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

	return s.Repo.CreateCharacter(ctx, s.DB, ownerID, name, strings.TrimSpace(description), imageURL, public)
}

// Get fetches a character visible to userID: public, or owned by them.
func (s *CharacterService) Get(ctx context.Context, userID, id string) (*domain.Character, error) {
	c, err := s.Repo.GetCharacter(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCharacterNotFound
		}
		return nil, err
	}
	if !c.Public && c.OwnerID != userID {
		return nil, ErrCharacterNotFound
	}
	return c, nil
}

// ListPublicPage returns a page of public characters and the total count.
func (s *CharacterService) ListPublicPage(ctx context.Context, page, pageSize int) ([]domain.Character, int64, error) {
	page, pageSize = clampPage(page, pageSize)
	offset := (page - 1) * pageSize

	total, err := s.Repo.CountPublicCharacters(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Character{}, 0, nil
	}
	items, err := s.Repo.ListPublicCharactersPage(ctx, s.DB, offset, pageSize)
	return items, total, err
}

// ListOwnedPage returns a page of ownerID's characters and the total count.
func (s *CharacterService) ListOwnedPage(ctx context.Context, ownerID string, page, pageSize int) ([]domain.Character, int64, error) {
	page, pageSize = clampPage(page, pageSize)
	offset := (page - 1) * pageSize

	total, err := s.Repo.CountOwnedCharacters(ctx, s.DB, ownerID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Character{}, 0, nil
	}
	items, err := s.Repo.ListOwnedCharactersPage(ctx, s.DB, ownerID, offset, pageSize)
	return items, total, err
}

// CharacterUpdate carries the mutable character fields; nil means unchanged.
type CharacterUpdate struct {
	Name        *string
	Description *string
	Public      *bool
	ImageURL    *string
}

// Update applies an update to a character owned by ownerID.
//
// Setting ImageURL is guarded by the durable-image invariant: once the stored
// URL is on the durable store, it may only be replaced by another durable URL.
func (s *CharacterService) Update(ctx context.Context, ownerID, id string, upd CharacterUpdate) error {
	existing, err := s.Repo.GetCharacter(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCharacterNotFound
		}
		return err
	}
	if existing.OwnerID != ownerID {
		return ErrCharacterNotFound
	}

	updates := map[string]any{}
	if upd.Name != nil {
		n := normalizeName(*upd.Name)
		if n == "" {
			return ErrEmptyName
		}
		if s.NameMaxLen > 0 && utf8.RuneCountInString(n) > s.NameMaxLen {
			return ErrTooLong
		}
		updates["name"] = n
	}
	if upd.Description != nil {
		updates["description"] = strings.TrimSpace(*upd.Description)
	}
	if upd.Public != nil {
		updates["public"] = *upd.Public
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

	if err := s.Repo.UpdateCharacter(ctx, s.DB, id, ownerID, updates); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCharacterNotFound
		}
		return err
	}
	return nil
}

// Delete removes a character owned by ownerID. Dependent conversation rows
// cascade at the database level.
func (s *CharacterService) Delete(ctx context.Context, ownerID, id string) error {
	if err := s.Repo.DeleteCharacter(ctx, s.DB, id, ownerID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCharacterNotFound
		}
		return err
	}
	return nil
}

// clampPage applies defaults for invalid page/pageSize values.
func clampPage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	return page, pageSize
}

// normalizeName trims whitespace and collapses multiple spaces to one.
func normalizeName(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)
