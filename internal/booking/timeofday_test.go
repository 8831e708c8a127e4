package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("09:30")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay(9*60+30), tod)
	assert.Equal(t, "09:30", tod.String())

	for _, bad := range []string{
		"24:00",
		"09:60",
		"morning",
		"9:00",     // not zero-padded
		"09:30xyz", // trailing garbage
		"+9:30",
		"09-30",
		"",
	} {
		_, err := ParseTimeOfDay(bad)
		assert.Error(t, err, "input %q must be rejected", bad)
	}
}

func TestTimeOfDayAdd(t *testing.T) {
	assert.Equal(t, TimeOfDay(9*60+30), TimeOfDay(9*60).Add(30*time.Minute))
	assert.Equal(t, TimeOfDay(10*60), TimeOfDay(9*60).Add(time.Hour))
}

func TestTimeOfDayOn(t *testing.T) {
	date := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)
	tod := TimeOfDay(14 * 60)

	at := tod.On(date)
	assert.Equal(t, time.Date(2026, 9, 2, 14, 0, 0, 0, time.UTC), at)
}

func TestDateOnly(t *testing.T) {
	ts := time.Date(2026, 9, 2, 18, 45, 12, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC), DateOnly(ts))
}
