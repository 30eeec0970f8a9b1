package session

import (
	"fmt"

	"github.com/catrixlabs/catrix-client/internal/model"
)

// AnswerStore is the single source of truth for per-question response state.
// It is initialized dense — one entry per question — and only the four
// mutation methods below ever change it. All display state (palette, counts)
// derives from snapshots of this store.
//
// The store itself is not goroutine-safe; the owning Session serializes
// access.
type AnswerStore struct {
	order   []string
	answers map[string]model.Answer
	now     func() int64 // unix milliseconds
}

// NewAnswerStore builds a store with an empty, unvisited entry for every
// question of the test.
func NewAnswerStore(t *model.Test, clock Clock) *AnswerStore {
	s := &AnswerStore{
		order:   make([]string, 0, len(t.Questions)),
		answers: make(map[string]model.Answer, len(t.Questions)),
		now:     func() int64 { return clock.Now().UnixMilli() },
	}
	for i := range t.Questions {
		id := t.Questions[i].ID
		s.order = append(s.order, id)
		s.answers[id] = model.Answer{QuestionID: id}
	}
	return s
}

// SetAnswer records a response value. The first answer implies the first
// visit, so an unvisited entry gets its visit timestamp here.
func (s *AnswerStore) SetAnswer(questionID, value string) error {
	a, ok := s.answers[questionID]
	if !ok {
		return fmt.Errorf("set answer: unknown question %q", questionID)
	}
	a.Value = value
	if a.VisitedAt == 0 {
		a.VisitedAt = s.now()
	}
	s.answers[questionID] = a
	return nil
}

// ClearAnswer removes the response value, leaving the visit timestamp and
// flag untouched.
func (s *AnswerStore) ClearAnswer(questionID string) error {
	a, ok := s.answers[questionID]
	if !ok {
		return fmt.Errorf("clear answer: unknown question %q", questionID)
	}
	a.Value = ""
	s.answers[questionID] = a
	return nil
}

// ToggleFlag flips the marked-for-review flag. A question can be flagged with
// no answer present.
func (s *AnswerStore) ToggleFlag(questionID string) error {
	a, ok := s.answers[questionID]
	if !ok {
		return fmt.Errorf("toggle flag: unknown question %q", questionID)
	}
	a.Flagged = !a.Flagged
	s.answers[questionID] = a
	return nil
}

// Visit stamps the first-open time if the question was never opened. Called
// whenever a question becomes the displayed question.
func (s *AnswerStore) Visit(questionID string) error {
	a, ok := s.answers[questionID]
	if !ok {
		return fmt.Errorf("visit: unknown question %q", questionID)
	}
	if a.VisitedAt == 0 {
		a.VisitedAt = s.now()
		s.answers[questionID] = a
	}
	return nil
}

// Get returns the answer entry for a question.
func (s *AnswerStore) Get(questionID string) (model.Answer, bool) {
	a, ok := s.answers[questionID]
	return a, ok
}

// Len returns the number of entries, which equals the test's question count.
func (s *AnswerStore) Len() int {
	return len(s.order)
}

// Snapshot returns the answers in question order. The slice is a copy; the
// caller may hold it across further mutations.
func (s *AnswerStore) Snapshot() []model.Answer {
	out := make([]model.Answer, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.answers[id])
	}
	return out
}
