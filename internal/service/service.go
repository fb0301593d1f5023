// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (business layer) → validates, enforces rules, orchestrates
//	Repository (data layer)  → reads/writes the store (SQLite or MongoDB)
//
// Services accept plain Go values, never *http.Request, and return apperror
// values, never status codes. The handler package translates one into the
// other. Every dependency is an interface or an injected struct so tests can
// run a service against a fake or an in-memory SQLite store.
//
// DEPENDENCY CHAIN:
//
//	server.New creates:  Store → Services → Handlers
//	At runtime:          Handler calls Service calls Repository
package service

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/codeshare/internal/apperror"
)

// Listing limits shared by the admin listings.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// validate is shared by all services. A *validator.Validate caches struct
// metadata and is safe for concurrent use.
var validate = validator.New()

// validEmail reports whether s looks like an email address.
func validEmail(s string) bool {
	return validate.Var(s, "required,email") == nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// maxChars rejects value when it is longer than limit characters.
func maxChars(field, label string, value string, limit int) error {
	if utf8.RuneCountInString(value) > limit {
		return apperror.ValidationFailed(field, fmt.Sprintf("%s must be less than %s characters", label, thousands(limit)))
	}
	return nil
}

// thousands formats n with comma separators, 10000 → "10,000".
func thousands(n int) string {
	s := fmt.Sprint(n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// pageBounds clamps a 1-based page number and page size and returns the
// matching limit and offset.
func pageBounds(page, limit int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return page, limit, (page - 1) * limit
}

// totalPages is ceil(total / limit).
func totalPages(total, limit int) int {
	if limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
