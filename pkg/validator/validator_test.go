package validator

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"plain", "video-123", false},
		{"empty", "", true},
		{"whitespace", "video 123", true},
		{"too long", strings.Repeat("a", maxIDLength+1), true},
		{"max length", strings.Repeat("a", maxIDLength), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateID("content_id", tt.id)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidID)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateCommentText(t *testing.T) {
	assert.NoError(t, ValidateCommentText("nice video"))
	assert.ErrorIs(t, ValidateCommentText("   "), ErrInvalidText)
	assert.ErrorIs(t, ValidateCommentText(strings.Repeat("x", maxCommentLength+1)), ErrInvalidText)
}

func TestValidateUUID(t *testing.T) {
	_, err := ValidateUUID("not-a-uuid")
	assert.ErrorIs(t, err, ErrInvalidUUID)

	id, err := ValidateUUID("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	require.NoError(t, err)
	assert.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", id.String())
}

func TestParseLimit(t *testing.T) {
	limit, err := ParseLimit("", 10, 50)
	require.NoError(t, err)
	assert.Equal(t, 10, limit)

	limit, err = ParseLimit("25", 10, 50)
	require.NoError(t, err)
	assert.Equal(t, 25, limit)

	for _, raw := range []string{"0", "51", "abc", "-1"} {
		_, err := ParseLimit(raw, 10, 50)
		assert.ErrorIs(t, err, ErrInvalidPagination, raw)
	}
}

func TestValidateAmount(t *testing.T) {
	assert.NoError(t, ValidateAmount(4.99))
	assert.ErrorIs(t, ValidateAmount(0), ErrInvalidAmount)
	assert.ErrorIs(t, ValidateAmount(-1), ErrInvalidAmount)
	assert.ErrorIs(t, ValidateAmount(math.NaN()), ErrInvalidAmount)
	assert.ErrorIs(t, ValidateAmount(math.Inf(1)), ErrInvalidAmount)
}
