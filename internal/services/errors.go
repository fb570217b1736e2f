// Package services defines the business logic for characters, curated
// landing-page characters, conversations, and avatar remediation. This file
// centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler layer.
package services

import "errors"

var (
	// ErrCharacterNotFound indicates that the requested character does not
	// exist or is not accessible to the current user.
	ErrCharacterNotFound = errors.New("character not found")

	// ErrHomeCharacterNotFound indicates that the requested curated character
	// does not exist.
	ErrHomeCharacterNotFound = errors.New("home character not found")

	// ErrEmptyName is returned when a character create/update carries a blank
	// name.
	ErrEmptyName = errors.New("name is empty")

	// ErrTransientImageURL is returned when an update would overwrite a
	// durable avatar URL with a transient provider URL.
	ErrTransientImageURL = errors.New("image url is not on the durable store")

	// ErrConversationNotFound indicates that the requested conversation does
	// not exist or belongs to another user.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrEmptyMessage is returned when a conversation message has no content.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrTooLong is returned when an input exceeds its configured rune limit.
	ErrTooLong = errors.New("input too long")
)
