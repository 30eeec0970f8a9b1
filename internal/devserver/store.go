// Package devserver is an in-memory stand-in for the production grading API.
// It exists so the client engine can be developed and end-to-end tested
// without real infrastructure; nothing here survives a restart.
package devserver

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/catrixlabs/catrix-client/internal/model"
)

var (
	ErrUserNotFound    = errors.New("devserver: user not found")
	ErrTestNotFound    = errors.New("devserver: test not found")
	ErrAttemptNotFound = errors.New("devserver: attempt not found")
	ErrNotOwner        = errors.New("devserver: attempt belongs to another user")
	ErrUnknownQuestion = errors.New("devserver: question not in test")
)

// user is an account record with its bcrypt password hash.
type user struct {
	model.User
	PasswordHash string
}

// savedAnswer is one incrementally persisted answer.
type savedAnswer struct {
	QuestionID     string
	SelectedAnswer string
	TimeTaken      int
	SavedAt        time.Time
}

// attemptRecord is an attempt plus its incrementally saved answers.
type attemptRecord struct {
	model.Attempt
	Answers map[string]savedAnswer
}

// Store is the in-memory data layer behind the dev API.
type Store struct {
	mu       sync.RWMutex
	users    map[string]user // keyed by email
	tests    map[string]*model.Test
	attempts map[string]*attemptRecord
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		users:    make(map[string]user),
		tests:    make(map[string]*model.Test),
		attempts: make(map[string]*attemptRecord),
	}
}

// AddUser registers an account with an already-hashed password.
func (s *Store) AddUser(u model.User, passwordHash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	s.users[strings.ToLower(u.Email)] = user{User: u, PasswordHash: passwordHash}
}

// UserByEmail looks an account up by email.
func (s *Store) UserByEmail(email string) (model.User, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[strings.ToLower(email)]
	if !ok {
		return model.User{}, "", ErrUserNotFound
	}
	return u.User, u.PasswordHash, nil
}

// UserByID looks an account up by id.
func (s *Store) UserByID(id string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.ID == id {
			return u.User, nil
		}
	}
	return model.User{}, ErrUserNotFound
}

// AddTest registers a test, assigning an id when absent.
func (s *Store) AddTest(t *model.Test) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	s.tests[t.ID] = t
	return t.ID
}

// Tests returns the catalog without question bodies, sorted by title.
func (s *Store) Tests() []model.Test {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Test, 0, len(s.tests))
	for _, t := range s.tests {
		head := *t
		head.Questions = nil
		out = append(out, head)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out
}

// TestForDelivery returns a test with correct answers stripped, as served to
// a candidate.
func (s *Store) TestForDelivery(id string) (*model.Test, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tests[id]
	if !ok {
		return nil, ErrTestNotFound
	}
	out := *t
	out.Questions = make([]model.Question, len(t.Questions))
	for i, q := range t.Questions {
		q.CorrectAnswer = ""
		out.Questions[i] = q
	}
	return &out, nil
}

// StartAttempt creates an attempt record for a user on a test. One user may
// hold several attempts on the same test; each run is its own record.
func (s *Store) StartAttempt(testID, userID string) (*model.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tests[testID]; !ok {
		return nil, ErrTestNotFound
	}
	rec := &attemptRecord{
		Attempt: model.Attempt{
			ID:        uuid.New().String(),
			TestID:    testID,
			UserID:    userID,
			StartedAt: time.Now().UTC(),
			Status:    model.AttemptStatusInProgress,
		},
		Answers: make(map[string]savedAnswer),
	}
	s.attempts[rec.ID] = rec
	return &rec.Attempt, nil
}

// SaveAnswer upserts one answer on an in-progress attempt. Saves after
// submission are rejected; the record is frozen.
func (s *Store) SaveAnswer(attemptID, userID, questionID, selected string, timeTaken int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.attempts[attemptID]
	if !ok {
		return ErrAttemptNotFound
	}
	if rec.UserID != userID {
		return ErrNotOwner
	}
	if rec.Status != model.AttemptStatusInProgress {
		return errors.New("devserver: attempt already submitted")
	}
	t := s.tests[rec.TestID]
	if t == nil || t.QuestionByID(questionID) == nil {
		return ErrUnknownQuestion
	}
	rec.Answers[questionID] = savedAnswer{
		QuestionID:     questionID,
		SelectedAnswer: selected,
		TimeTaken:      timeTaken,
		SavedAt:        time.Now().UTC(),
	}
	return nil
}

// SubmitAttempt finalizes and grades an attempt. Submitting an already
// submitted attempt is a no-op returning the stored record: the attempt id is
// the idempotency key.
func (s *Store) SubmitAttempt(attemptID, userID string) (*model.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.attempts[attemptID]
	if !ok {
		return nil, ErrAttemptNotFound
	}
	if rec.UserID != userID {
		return nil, ErrNotOwner
	}
	if rec.Status == model.AttemptStatusSubmitted {
		out := rec.Attempt
		return &out, nil
	}

	score := s.gradeLocked(rec)
	rec.Status = model.AttemptStatusSubmitted
	rec.Score = &score
	out := rec.Attempt
	return &out, nil
}

// gradeLocked sums marks over exactly matching answers. Option answers match
// on the option label; free-text answers match case-insensitively.
func (s *Store) gradeLocked(rec *attemptRecord) float64 {
	t := s.tests[rec.TestID]
	if t == nil {
		return 0
	}
	var score float64
	for _, q := range t.Questions {
		saved, ok := rec.Answers[q.ID]
		if !ok || saved.SelectedAnswer == "" || q.CorrectAnswer == "" {
			continue
		}
		if q.FreeText() {
			if strings.EqualFold(strings.TrimSpace(saved.SelectedAnswer), strings.TrimSpace(q.CorrectAnswer)) {
				score += float64(q.Marks)
			}
		} else if saved.SelectedAnswer == q.CorrectAnswer {
			score += float64(q.Marks)
		}
	}
	return score
}

// Attempt returns one attempt record for its owner.
func (s *Store) Attempt(attemptID, userID string) (*model.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.attempts[attemptID]
	if !ok {
		return nil, ErrAttemptNotFound
	}
	if rec.UserID != userID {
		return nil, ErrNotOwner
	}
	out := rec.Attempt
	return &out, nil
}

// Analytics aggregates a user's submitted attempts.
func (s *Store) Analytics(userID string) model.Analytics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		out      model.Analytics
		scoreSum float64
		scored   int
		recent   []model.Attempt
	)
	out.SectionScores = make(map[string]float64)

	for _, rec := range s.attempts {
		if rec.UserID != userID || rec.Status != model.AttemptStatusSubmitted {
			continue
		}
		out.TotalAttempts++
		recent = append(recent, rec.Attempt)
		if rec.Score != nil {
			scoreSum += *rec.Score
			scored++
			if t := s.tests[rec.TestID]; t != nil && t.Section != "" {
				out.SectionScores[t.Section] += *rec.Score
			}
		}
	}
	if scored > 0 {
		out.AverageScore = scoreSum / float64(scored)
	}

	sort.Slice(recent, func(i, j int) bool { return recent[i].StartedAt.After(recent[j].StartedAt) })
	if len(recent) > 10 {
		recent = recent[:10]
	}
	out.RecentAttempts = recent
	return out
}
