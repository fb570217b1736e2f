// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User model.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/xAGI-labs/charstream-sub001/internal/domain"
)

// UpsertUserBySubject finds the user for an identity-provider subject,
// creating the row on first sight. The returned user's ID is what the rest
// of the application uses as owner reference.
func UpsertUserBySubject(ctx context.Context, db *gorm.DB, subject, name, email string) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).Where("subject = ?", subject).First(&u).Error
	if err == nil {
		return &u, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	u = domain.User{
		ID:        uuid.NewString(),
		Subject:   subject,
		Name:      name,
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUser fetches a user by ID, or ErrNotFound.
func GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}
