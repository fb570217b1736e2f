// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the curated
// HomeCharacter model shown on the landing page.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/xAGI-labs/charstream-sub001/internal/domain"
)

// CreateHomeCharacter inserts a new curated landing-page character.
func CreateHomeCharacter(ctx context.Context, db *gorm.DB, name, description, imageURL, category string, displayOrder int) (*domain.HomeCharacter, error) {
	hc := &domain.HomeCharacter{
		ID:           uuid.NewString(),
		Name:         name,
		Description:  description,
		ImageURL:     imageURL,
		Category:     category,
		DisplayOrder: displayOrder,
		CreatedAt:    time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(hc).Error; err != nil {
		return nil, err
	}
	return hc, nil
}

// GetHomeCharacter fetches a curated character by ID, or ErrNotFound.
func GetHomeCharacter(ctx context.Context, db *gorm.DB, id string) (*domain.HomeCharacter, error) {
	var hc domain.HomeCharacter
	if err := db.WithContext(ctx).Where("id = ?", id).First(&hc).Error; err != nil {
		return nil, err
	}
	return &hc, nil
}

// ListHomeCharacters returns curated characters, optionally filtered by
// category, ordered by display order then creation time.
func ListHomeCharacters(ctx context.Context, db *gorm.DB, category string) ([]domain.HomeCharacter, error) {
	q := db.WithContext(ctx).Order("display_order asc, created_at asc")
	if category != "" {
		q = q.Where("category = ?", category)
	}
	var out []domain.HomeCharacter
	err := q.Find(&out).Error
	return out, err
}

// UpdateHomeCharacter applies column updates to a curated character.
// Returns ErrNotFound when the row does not exist.
func UpdateHomeCharacter(ctx context.Context, db *gorm.DB, id string, updates map[string]any) error {
	res := db.WithContext(ctx).
		Model(&domain.HomeCharacter{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteHomeCharacter soft-deletes a curated character, or ErrNotFound.
func DeleteHomeCharacter(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.HomeCharacter{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListTransientAvatarHomeCharacters mirrors ListTransientAvatarCharacters
// for the curated table.
func ListTransientAvatarHomeCharacters(ctx context.Context, db *gorm.DB, hosts []string) ([]domain.HomeCharacter, error) {
	if len(hosts) == 0 {
		return []domain.HomeCharacter{}, nil
	}
	cond := db.Where("image_url LIKE ?", "%"+hosts[0]+"%")
	for _, h := range hosts[1:] {
		cond = cond.Or("image_url LIKE ?", "%"+h+"%")
	}
	var out []domain.HomeCharacter
	err := db.WithContext(ctx).
		Where(cond).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// UpdateHomeCharacterImage overwrites a curated character's image_url.
// Intended for remediation jobs; returns ErrNotFound when nothing matched.
func UpdateHomeCharacterImage(ctx context.Context, db *gorm.DB, id, imageURL string) error {
	res := db.WithContext(ctx).
		Model(&domain.HomeCharacter{}).
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
