// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Character
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a character is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/xAGI-labs/charstream-sub001/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateCharacter inserts a new Character row owned by ownerID.
func CreateCharacter(ctx context.Context, db *gorm.DB, ownerID, name, description, imageURL string, public bool) (*domain.Character, error) {
	c := &domain.Character{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		ImageURL:    imageURL,
		Public:      public,
		OwnerID:     ownerID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// GetCharacter fetches a single character by ID. If the record does not
// exist, it returns ErrNotFound.
func GetCharacter(ctx context.Context, db *gorm.DB, id string) (*domain.Character, error) {
	var c domain.Character
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCharacterByName fetches the most recently created character with the
// given name (case-insensitive). Used by the avatar read path's checkDb
// branch.
func GetCharacterByName(ctx context.Context, db *gorm.DB, name string) (*domain.Character, error) {
	var c domain.Character
	err := db.WithContext(ctx).
		Where("LOWER(name) = ?", strings.ToLower(name)).
		Order("created_at desc").
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CountPublicCharacters returns the total number of public characters.
func CountPublicCharacters(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Character{}).
		Where("public = ?", true).
		Count(&total).Error
	return total, err
}

// ListPublicCharactersPage returns a paginated slice of public characters,
// ordered by creation time descending.
func ListPublicCharactersPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Character, error) {
	var out []domain.Character
	err := db.WithContext(ctx).
		Where("public = ?", true).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountOwnedCharacters returns the total number of characters owned by ownerID.
func CountOwnedCharacters(ctx context.Context, db *gorm.DB, ownerID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Character{}).
		Where("owner_id = ?", ownerID).
		Count(&total).Error
	return total, err
}

// ListOwnedCharactersPage returns a paginated slice of characters owned by
// ownerID, ordered by creation time descending.
func ListOwnedCharactersPage(ctx context.Context, db *gorm.DB, ownerID string, offset, limit int) ([]domain.Character, error) {
	var out []domain.Character
	err := db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// UpdateCharacter applies the given column updates to a character owned by
// ownerID. If no rows are affected (character missing or not owned by
// ownerID), it returns ErrNotFound.
func UpdateCharacter(ctx context.Context, db *gorm.DB, id, ownerID string, updates map[string]any) error {
	res := db.WithContext(ctx).
		Model(&domain.Character{}).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateCharacterImage overwrites a character's image_url without an
// ownership check. Intended for remediation jobs operating across all rows.
func UpdateCharacterImage(ctx context.Context, db *gorm.DB, id, imageURL string) error {
	res := db.WithContext(ctx).
		Model(&domain.Character{}).
		Where("id = ?", id).
		Update("image_url", imageURL)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteCharacter soft-deletes a character owned by ownerID. Dependent
// conversations cascade through the FK constraint. Returns ErrNotFound when
// nothing was deleted.
func DeleteCharacter(ctx context.Context, db *gorm.DB, id, ownerID string) error {
	res := db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Delete(&domain.Character{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListTransientAvatarCharacters returns characters whose image_url contains
// any of the given host substrings. Matching is plain substring containment,
// mirroring how the remediation job decides a URL still points at a
// provider's transient hosting.
func ListTransientAvatarCharacters(ctx context.Context, db *gorm.DB, hosts []string) ([]domain.Character, error) {
	if len(hosts) == 0 {
		return []domain.Character{}, nil
	}
	cond := db.Where("image_url LIKE ?", "%"+hosts[0]+"%")
	for _, h := range hosts[1:] {
		cond = cond.Or("image_url LIKE ?", "%"+h+"%")
	}
	var out []domain.Character
	err := db.WithContext(ctx).
		Where(cond).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}
