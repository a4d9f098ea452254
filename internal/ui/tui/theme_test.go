package tui

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"

	"github.com/bamsammich/ferry/internal/config"
)

func TestApplyTheme(t *testing.T) {
	t.Cleanup(func() { ApplyTheme(config.ThemeConfig{}) })

	green, empty := "#00ff00", ""
	ApplyTheme(config.ThemeConfig{Green: &green, Red: &empty})

	assert.Equal(t, lipgloss.Color("#00ff00"), colors.ok)
	assert.Equal(t, mocha.bad, colors.bad)
	assert.Equal(t, mocha.accent, colors.accent)

	ApplyTheme(config.ThemeConfig{})
	assert.Equal(t, mocha, colors)
}
