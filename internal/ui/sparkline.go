package ui

import (
	"slices"
	"strings"
)

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

// Sparkline draws the newest width samples scaled to their peak. Fewer
// samples are right-aligned behind a flat floor.
func Sparkline(data []float64, width int) string {
	if width <= 0 {
		return ""
	}
	if len(data) > width {
		data = data[len(data)-width:]
	}

	var b strings.Builder
	b.Grow(width * 3)
	for range width - len(data) {
		b.WriteRune(sparkLevels[0])
	}

	var peak float64
	if len(data) > 0 {
		peak = slices.Max(data)
	}
	top := len(sparkLevels) - 1
	for _, v := range data {
		level := 0
		if peak > 0 && v > 0 {
			level = min(int(v/peak*float64(top)), top)
		}
		b.WriteRune(sparkLevels[level])
	}
	return b.String()
}
