package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Test represents one exam paper. Immutable once loaded into a session.
type Test struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Duration   int        `json:"duration"` // minutes
	TotalMarks int        `json:"totalMarks"`
	Section    string     `json:"section"`
	Questions  []Question `json:"questions"`
}

// DurationSeconds returns the exam duration in whole seconds.
func (t *Test) DurationSeconds() int {
	return t.Duration * 60
}

// QuestionByID returns the question with the given id, or nil.
func (t *Test) QuestionByID(id string) *Question {
	for i := range t.Questions {
		if t.Questions[i].ID == id {
			return &t.Questions[i]
		}
	}
	return nil
}

// Difficulty enumerates question difficulty levels.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
)

// Question is a single exam question. CorrectAnswer is only populated on the
// authoring/grading side; exam delivery payloads omit it.
type Question struct {
	ID            string     `json:"id"`
	QuestionText  string     `json:"questionText"`
	Options       []Option   `json:"options,omitempty"`
	CorrectAnswer string     `json:"correctAnswer,omitempty"`
	Marks         int        `json:"marks"`
	Difficulty    Difficulty `json:"difficulty,omitempty"`
	Section       string     `json:"section,omitempty"`
}

// FreeText reports whether the question expects a typed answer instead of an
// option selection.
func (q *Question) FreeText() bool {
	return len(q.Options) == 0
}

// UnmarshalJSON normalizes the options payload at the load boundary. The
// backend delivers options as a JSON array, as an array of option objects, or
// as a JSON-encoded string wrapping either; all forms collapse into []Option
// here so the rest of the engine never sees the raw shapes.
func (q *Question) UnmarshalJSON(data []byte) error {
	type alias struct {
		ID            string          `json:"id"`
		QuestionText  string          `json:"questionText"`
		Options       json.RawMessage `json:"options"`
		CorrectAnswer string          `json:"correctAnswer"`
		Marks         int             `json:"marks"`
		Difficulty    Difficulty      `json:"difficulty"`
		Section       string          `json:"section"`
	}

	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	opts, err := ParseOptions(raw.Options)
	if err != nil {
		return fmt.Errorf("question %s: %w", raw.ID, err)
	}

	q.ID = raw.ID
	q.QuestionText = raw.QuestionText
	q.Options = opts
	q.CorrectAnswer = raw.CorrectAnswer
	q.Marks = raw.Marks
	q.Difficulty = raw.Difficulty
	q.Section = raw.Section
	return nil
}

// AttemptStatus enumerates attempt lifecycle states.
type AttemptStatus string

const (
	AttemptStatusInProgress AttemptStatus = "IN_PROGRESS"
	AttemptStatusSubmitted  AttemptStatus = "SUBMITTED"
)

// Attempt is the server-tracked record of one run through one test.
type Attempt struct {
	ID        string        `json:"id"`
	TestID    string        `json:"testId"`
	UserID    string        `json:"userId"`
	StartedAt time.Time     `json:"startedAt"`
	Status    AttemptStatus `json:"status"`
	Score     *float64      `json:"score,omitempty"`
}

// User is the authenticated platform account.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Analytics is the per-user aggregate consumed by the analytics surfaces.
type Analytics struct {
	TotalAttempts  int                `json:"totalAttempts"`
	AverageScore   float64            `json:"averageScore"`
	RecentAttempts []Attempt          `json:"recentAttempts,omitempty"`
	SectionScores  map[string]float64 `json:"sectionScores,omitempty"`
}
