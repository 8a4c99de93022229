package tetris

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDropIntervalMs(t *testing.T) {
	tests := []struct {
		level int
		want  int
	}{
		{1, 1000},
		{2, 900},
		{5, 600},
		{10, 100},
		{20, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DropIntervalMs(tt.level), "level %d", tt.level)
	}
	assert.Equal(t, 600*time.Millisecond, DropInterval(5))
}

func TestLevelForLines(t *testing.T) {
	assert.Equal(t, 1, LevelForLines(0))
	assert.Equal(t, 1, LevelForLines(9))
	assert.Equal(t, 2, LevelForLines(10))
	assert.Equal(t, 4, LevelForLines(35))
}

func TestCalculateScore(t *testing.T) {
	tests := []struct {
		name      string
		lines     int
		level     int
		combo     int
		sinceLast time.Duration
		hasLast   bool
		want      int
	}{
		{name: "no lines", lines: 0, level: 1, combo: 0, want: 0},
		{name: "single", lines: 1, level: 1, combo: 1, want: 40},
		{name: "double", lines: 2, level: 1, combo: 1, want: 100},
		{name: "triple", lines: 3, level: 1, combo: 1, want: 300},
		{name: "tetris", lines: 4, level: 1, combo: 1, want: 1200},
		{name: "more than four lines scores as four", lines: 5, level: 1, combo: 1, want: 1200},
		{name: "level multiplier", lines: 2, level: 3, combo: 1, want: 300},
		{name: "combo of two", lines: 1, level: 1, combo: 2, sinceLast: time.Minute, hasLast: true, want: 60},
		{name: "combo of three", lines: 1, level: 1, combo: 3, sinceLast: time.Minute, hasLast: true, want: 80},
		{name: "quick clear", lines: 1, level: 1, combo: 1, sinceLast: 9 * time.Second, hasLast: true, want: 60},
		{name: "window is exclusive", lines: 1, level: 1, combo: 1, sinceLast: 10 * time.Second, hasLast: true, want: 40},
		{name: "combo and quick clear", lines: 1, level: 1, combo: 2, sinceLast: time.Second, hasLast: true, want: 90},
		// floor(100 * 2 * 2.0 * 1.5)
		{name: "everything", lines: 2, level: 2, combo: 3, sinceLast: time.Second, hasLast: true, want: 600},
		// floor(300 * 1 * 1.5 * 1.5)
		{name: "triple with combo and quick clear", lines: 3, level: 1, combo: 2, sinceLast: time.Second, hasLast: true, want: 675},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateScore(tt.lines, tt.level, tt.combo, tt.sinceLast, tt.hasLast)
			assert.Equal(t, tt.want, got)
		})
	}
}
