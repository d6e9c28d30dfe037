package tui

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// waveLevels are the bar heights of the wave, lowest first
var waveLevels = []rune("▁▂▃▄▅▆▇█")

// Wave renders frame n of a sound-wave bar that is width cells wide, in the
// accent colors of the current theme.
func Wave(n, width int) string {
	accents := []lipgloss.Color{currentTheme.Primary, currentTheme.Accent, currentTheme.Secondary}
	top := float64(len(waveLevels) - 1)

	var sb strings.Builder
	for i := 0; i < width; i++ {
		// two sines out of phase give an uneven, speech-like envelope
		amp := (math.Abs(math.Sin(float64(n)*0.45+float64(i)*0.8)) + math.Abs(math.Sin(float64(n)*0.2+float64(i)*1.7))) / 2
		bar := string(waveLevels[int(math.Round(amp*top))])
		sb.WriteString(fg(accents[(i+n/6)%len(accents)]).Render(bar))
	}
	return sb.String()
}
