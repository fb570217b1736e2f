// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP
// responses (via the `fail()` helper in this package). These codes give
// clients a stable, machine-readable error taxonomy that supplements the
// human-readable messages.
//
// Conventions:
//   - Codes are lowercase, snake_case, and domain-agnostic unless noted.
//   - Generic codes (bad_request, unauthorized, not_found, ...) mirror common
//     HTTP status semantics.
//   - Domain-specific codes (generate_failed, migrate_failed, ...) are
//     reserved for business errors that a status alone cannot convey.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "transient_image_url",
//	  "message": "image_url must point at the durable store"
//	}
package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeCreateFailed   = "create_failed"
	ErrCodeListFailed     = "list_failed"
	ErrCodeUpdateFailed   = "update_failed"
	ErrCodeDeleteFailed   = "delete_failed"
	ErrCodeGenerateFailed = "generate_failed"
	ErrCodeMigrateFailed  = "migrate_failed"
	ErrCodeTransientImage = "transient_image_url"
	ErrCodeAdminRequired  = "admin_required"
)
