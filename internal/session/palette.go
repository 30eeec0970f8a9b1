package session

import "github.com/catrixlabs/catrix-client/internal/model"

// Display colors for palette statuses, shared with the legend. These are the
// fixed tokens the UI layer renders; the engine never varies them.
const (
	ColorAnswered       = "#4CAF50" // green
	ColorMarked         = "#9C27B0" // purple
	ColorAnsweredMarked = "#9C27B0" // purple with tick
	ColorVisited        = "#FF9800" // orange
	ColorNotVisited     = "#E0E0E0" // gray
)

// PaletteEntry is one cell of the question palette.
type PaletteEntry struct {
	QuestionID string
	Status     model.QuestionStatus
	Color      string
}

// LegendEntry maps a status to its display token for the palette legend.
type LegendEntry struct {
	Status model.QuestionStatus
	Label  string
	Color  string
}

// StatusColor returns the display token for a status.
func StatusColor(s model.QuestionStatus) string {
	switch s {
	case model.StatusAnswered:
		return ColorAnswered
	case model.StatusAnsweredMarked:
		return ColorAnsweredMarked
	case model.StatusMarked:
		return ColorMarked
	case model.StatusVisited:
		return ColorVisited
	default:
		return ColorNotVisited
	}
}

// Palette derives the full palette from an answer snapshot. It is a pure
// function of the snapshot: no state is cached between calls.
func Palette(snapshot []model.Answer) []PaletteEntry {
	out := make([]PaletteEntry, 0, len(snapshot))
	for _, a := range snapshot {
		status := model.StatusOf(a)
		out = append(out, PaletteEntry{
			QuestionID: a.QuestionID,
			Status:     status,
			Color:      StatusColor(status),
		})
	}
	return out
}

// Legend returns the palette legend in display order.
func Legend() []LegendEntry {
	return []LegendEntry{
		{Status: model.StatusAnswered, Label: "Answered", Color: ColorAnswered},
		{Status: model.StatusAnsweredMarked, Label: "Answered & Marked", Color: ColorAnsweredMarked},
		{Status: model.StatusMarked, Label: "Marked", Color: ColorMarked},
		{Status: model.StatusVisited, Label: "Visited", Color: ColorVisited},
		{Status: model.StatusNotVisited, Label: "Not Visited", Color: ColorNotVisited},
	}
}
