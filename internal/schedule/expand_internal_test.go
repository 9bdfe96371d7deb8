package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		minutes int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"09:00", 540, false},
		{"09:30", 570, false},
		{"23:59", 1439, false},
		{"9am", 0, true},
		{"25:00", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseClock(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.minutes, got, tt.in)
	}
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "09:00", FormatClock(540))
	assert.Equal(t, "09:30", FormatClock(570))
	assert.Equal(t, "00:00", FormatClock(0))
}

func TestDailyWindows(t *testing.T) {
	t.Run("even split", func(t *testing.T) {
		windows, err := dailyWindows("09:00", "10:00", 30)
		require.NoError(t, err)
		require.Len(t, windows, 2)
		assert.Equal(t, slotWindow{start: "09:00", end: "09:30"}, windows[0])
		assert.Equal(t, slotWindow{start: "09:30", end: "10:00"}, windows[1])
	})

	t.Run("trailing partial window is dropped", func(t *testing.T) {
		windows, err := dailyWindows("09:00", "10:10", 30)
		require.NoError(t, err)
		require.Len(t, windows, 2)
		assert.Equal(t, "10:00", windows[1].end)
	})

	t.Run("window smaller than interval", func(t *testing.T) {
		windows, err := dailyWindows("09:00", "09:20", 30)
		require.NoError(t, err)
		assert.Empty(t, windows)
	})

	t.Run("bad time", func(t *testing.T) {
		_, err := dailyWindows("morning", "10:00", 30)
		assert.Error(t, err)
	})
}
