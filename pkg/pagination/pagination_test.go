package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	in := Cursor{CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 123, time.UTC), ID: uuid.New()}
	encoded := EncodeCursor(in)
	assert.NotContains(t, encoded, "+")
	assert.NotContains(t, encoded, "/")

	out, err := ParseCursor(encoded)
	require.NoError(t, err)
	assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
	assert.Equal(t, in.ID, out.ID)
}

func TestParseCursorEmptyAndInvalid(t *testing.T) {
	out, err := ParseCursor("  ")
	require.NoError(t, err)
	assert.Nil(t, out)

	_, err = ParseCursor("!!")
	require.Error(t, err)
}

func TestLimits(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, MaxLimit, NormalizeLimit(MaxLimit+5))
	assert.Equal(t, 11, LimitWithBuffer(10))
}
