package timestamp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNow_UsesClock(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 30, 0, 123456789, time.FixedZone("X", 3600))
	restore := WithClock(func() time.Time { return fixed })
	defer restore()

	assert.Equal(t, "2024-03-01T11:30:00.123Z", Now())
}

func TestFormatParse(t *testing.T) {
	assert.Equal(t, "", Format(time.Time{}))

	ts, err := Parse("")
	require.NoError(t, err)
	assert.True(t, ts.IsZero())

	ts, err = Parse("2024-03-01T11:30:00.123Z")
	require.NoError(t, err)
	assert.Equal(t, 123*time.Millisecond, time.Duration(ts.Nanosecond()))

	_, err = Parse("yesterday")
	assert.Error(t, err)
}

func TestCompare(t *testing.T) {
	assert.Equal(t, -1, Compare("2024-01-01T00:00:00.000Z", "2024-01-01T00:00:00.001Z"))
	assert.Equal(t, 1, Compare("2024-01-02T00:00:00Z", "2024-01-01T23:00:00+01:00"))
	assert.Equal(t, 0, Compare("2024-01-01T01:00:00+01:00", "2024-01-01T00:00:00Z"))
	assert.Equal(t, -1, Compare("garbage", "2024-01-01T00:00:00Z"))
	assert.Equal(t, 0, Compare("x", "y"))
}
