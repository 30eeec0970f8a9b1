package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/catrixlabs/catrix-client/internal/model"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name   string
		answer model.Answer
		want   model.QuestionStatus
	}{
		{"never opened", model.Answer{}, model.StatusNotVisited},
		{"opened only", model.Answer{VisitedAt: 100}, model.StatusVisited},
		{"answered", model.Answer{VisitedAt: 100, Value: "1"}, model.StatusAnswered},
		{"flagged without answer", model.Answer{VisitedAt: 100, Flagged: true}, model.StatusMarked},
		{"flagged with answer", model.Answer{VisitedAt: 100, Value: "1", Flagged: true}, model.StatusAnsweredMarked},
		{"flag without visit is still not-visited", model.Answer{Flagged: true}, model.StatusNotVisited},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, model.StatusOf(tc.answer))
		})
	}
}

// Derivation is a pure function: identical answer state always yields the
// identical status.
func TestStatusOfDeterministic(t *testing.T) {
	a := model.Answer{QuestionID: "q1", Value: "2", Flagged: true, VisitedAt: 42}
	b := model.Answer{QuestionID: "q9", Value: "2", Flagged: true, VisitedAt: 42}
	assert.Equal(t, model.StatusOf(a), model.StatusOf(b))
}
