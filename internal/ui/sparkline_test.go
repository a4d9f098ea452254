package ui

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSparkline(t *testing.T) {
	tests := []struct {
		name  string
		data  []float64
		width int
		want  string
	}{
		{"idle", []float64{0, 0, 0}, 3, "▁▁▁"},
		{"padded", []float64{8}, 4, "▁▁▁█"},
		{"ramp", []float64{0, 7, 14}, 3, "▁▄█"},
		{"flat", []float64{3, 3}, 2, "██"},
		{"newest kept", []float64{100, 0, 1}, 2, "▁█"},
		{"no width", []float64{1}, 0, ""},
		{"no data", nil, 2, "▁▁"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sparkline(tt.data, tt.width)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.width, utf8.RuneCountInString(got))
		})
	}
}
