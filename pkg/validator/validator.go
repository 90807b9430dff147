package validator

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

var (
	ErrInvalidID         = fmt.Errorf("invalid identifier")
	ErrInvalidText       = fmt.Errorf("invalid text")
	ErrInvalidUUID       = fmt.Errorf("invalid UUID format")
	ErrInvalidPagination = fmt.Errorf("invalid pagination parameters")
	ErrInvalidAmount     = fmt.Errorf("invalid amount")
)

const (
	maxIDLength      = 128
	maxCommentLength = 10000
)

// ValidateID checks a caller-supplied identifier (content, user, channel,
// session). Identifiers are opaque but must be non-empty and free of
// whitespace.
func ValidateID(field, id string) error {
	if id == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidID, field)
	}
	if len(id) > maxIDLength {
		return fmt.Errorf("%w: %s cannot exceed %d characters", ErrInvalidID, field, maxIDLength)
	}
	if strings.IndexFunc(id, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: %s cannot contain whitespace", ErrInvalidID, field)
	}
	return nil
}

func ValidateCommentText(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: comment cannot be empty", ErrInvalidText)
	}
	if utf8.RuneCountInString(text) > maxCommentLength {
		return fmt.Errorf("%w: comment cannot exceed %d characters", ErrInvalidText, maxCommentLength)
	}
	return nil
}

func ValidateUUID(id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrInvalidUUID, id)
	}
	return parsed, nil
}

// ParseLimit reads a limit query parameter. An empty value yields def.
func ParseLimit(raw string, def, max int) (int, error) {
	if raw == "" {
		return def, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: limit must be a number", ErrInvalidPagination)
	}
	if limit < 1 || limit > max {
		return 0, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidPagination, max)
	}
	return limit, nil
}

func ValidateAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}
	return nil
}

func SanitizeString(s string) string {
	return strings.TrimSpace(s)
}
