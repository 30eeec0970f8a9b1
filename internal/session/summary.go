package session

import "github.com/catrixlabs/catrix-client/internal/model"

// Summary holds the post-submission counts shown to the candidate. The remote
// service computes authoritative marks asynchronously; these counts come from
// the local snapshot alone.
type Summary struct {
	Total        int `json:"total"`
	Answered     int `json:"answered"`
	Flagged      int `json:"flagged"`
	NotAttempted int `json:"notAttempted"`
}

// Summarize computes the summary counts over an answer snapshot.
func Summarize(snapshot []model.Answer) Summary {
	s := Summary{Total: len(snapshot)}
	for _, a := range snapshot {
		if a.Answered() {
			s.Answered++
		}
		if a.Flagged {
			s.Flagged++
		}
	}
	s.NotAttempted = s.Total - s.Answered
	return s
}
