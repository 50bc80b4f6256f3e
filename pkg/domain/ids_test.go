package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "primegate/pkg/domain-errors"
)

// TestParsePrincipalID validates the boundary invariant: identifiers are
// opaque but must be non-empty, reasonably sized, and free of surrounding
// whitespace.
func TestParsePrincipalID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"empty string", "", true},
		{"whitespace only", "   ", true},
		{"surrounding whitespace", " principal-1 ", true},
		{"oversized input", strings.Repeat("a", 1000), true},
		{"plain identifier", "principal-1", false},
		{"uuid identifier", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ParsePrincipalID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.input, id.String())
			assert.False(t, id.IsZero())
		})
	}
}

func TestParseEntryID(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseEntryID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseEntryID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseEntryID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("round-trips a fresh ID", func(t *testing.T) {
		id := NewEntryID()
		require.False(t, id.IsNil())

		parsed, err := ParseEntryID(id.String())
		require.NoError(t, err)
		assert.Equal(t, id, parsed)
	})
}
