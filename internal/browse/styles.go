package browse

import "github.com/charmbracelet/lipgloss"

// MinListWidth is the narrowest the view list gets.
const MinListWidth = 28

// Palette shared with the table renderer in internal/render.
var (
	accent  = lipgloss.AdaptiveColor{Light: "4", Dark: "12"}
	faint   = lipgloss.AdaptiveColor{Light: "240", Dark: "245"}
	failure = lipgloss.AdaptiveColor{Light: "1", Dark: "9"}
)

var (
	scenarioHeading = lipgloss.NewStyle().Bold(true).Foreground(accent)
	unloadedView    = lipgloss.NewStyle().Foreground(faint)
	failedView      = lipgloss.NewStyle().Foreground(failure)
	hint            = lipgloss.NewStyle().Foreground(faint).Italic(true)
)

// paneFrame is the border around the list or the viewer; the focused pane
// is drawn in the accent color.
func paneFrame(focused bool) lipgloss.Style {
	color := faint
	if focused {
		color = accent
	}
	return lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(color)
}

// SplitWidth divides the terminal between the view list and the table
// viewer. The list takes a quarter, never less than MinListWidth.
func SplitWidth(total int) (list, viewer int) {
	if total <= 0 {
		return 0, 0
	}
	list = max(total/4, MinListWidth)
	viewer = max(total-list, 0)
	return list, viewer
}
