package model

// Answer is the per-question response state of a running session. One Answer
// exists for every question in the test from session start; the set is never
// sparse. VisitedAt is a unix-millisecond timestamp, 0 meaning "never opened".
type Answer struct {
	QuestionID string `json:"questionId"`
	Value      string `json:"value,omitempty"`
	Flagged    bool   `json:"flagged"`
	VisitedAt  int64  `json:"visitedAt"`
}

// Answered reports whether a response value is present.
func (a Answer) Answered() bool {
	return a.Value != ""
}

// Visited reports whether the question was ever opened.
func (a Answer) Visited() bool {
	return a.VisitedAt != 0
}

// QuestionStatus is the palette status derived from an Answer. It is never
// stored; it is recomputed from the answer state on every read.
type QuestionStatus string

const (
	StatusNotVisited     QuestionStatus = "NOT_VISITED"
	StatusVisited        QuestionStatus = "VISITED"
	StatusAnswered       QuestionStatus = "ANSWERED"
	StatusMarked         QuestionStatus = "MARKED"
	StatusAnsweredMarked QuestionStatus = "ANSWERED_MARKED"
)

// StatusOf derives the palette status for an answer.
func StatusOf(a Answer) QuestionStatus {
	switch {
	case !a.Visited():
		return StatusNotVisited
	case a.Flagged && a.Answered():
		return StatusAnsweredMarked
	case a.Flagged:
		return StatusMarked
	case a.Answered():
		return StatusAnswered
	default:
		return StatusVisited
	}
}
