package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catrixlabs/catrix-client/internal/model"
	"github.com/catrixlabs/catrix-client/internal/session"
)

// fakeBackend counts calls and can be made to fail or stall.
type fakeBackend struct {
	mu          sync.Mutex
	startErr    error
	saveErr     error
	submitErr   error
	saveEnter   chan string   // when non-nil, SaveAnswer reports the value it was called with
	saveGate    chan struct{} // when non-nil, SaveAnswer then blocks until it can receive
	startCalls  int
	saveCalls   int
	submitCalls int
	lastSaved   map[string]string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{lastSaved: make(map[string]string)}
}

func (b *fakeBackend) StartAttempt(_ context.Context, testID string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.startCalls++
	if b.startErr != nil {
		return "", b.startErr
	}
	return "attempt-1", nil
}

func (b *fakeBackend) SaveAnswer(_ context.Context, _, questionID, value string, _ int) error {
	if b.saveEnter != nil {
		b.saveEnter <- value
	}
	if b.saveGate != nil {
		<-b.saveGate
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.saveCalls++
	b.lastSaved[questionID] = value
	return b.saveErr
}

func (b *fakeBackend) SubmitAttempt(_ context.Context, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.submitCalls++
	return b.submitErr
}

func (b *fakeBackend) counts() (start, save, submit int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.startCalls, b.saveCalls, b.submitCalls
}

func (b *fakeBackend) saved(questionID string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastSaved[questionID]
}

func passedGates() *session.Gates {
	g := session.NewGates()
	g.Instructions.Update(100, 10, 100)
	for _, gate := range g.Declaration.Gates() {
		_ = g.Declaration.Set(gate, true)
	}
	return g
}

func newTestSession(t *testing.T, test *model.Test, backend session.Backend) *session.Session {
	t.Helper()
	sess, err := session.New(test, backend, passedGates(), session.Options{
		Clock:  newFakeClock(),
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	return sess
}

func TestNewRejectsEmptyTest(t *testing.T) {
	_, err := session.New(&model.Test{ID: "t1"}, newFakeBackend(), nil, session.Options{})
	assert.ErrorIs(t, err, session.ErrNoQuestions)

	_, err = session.New(nil, newFakeBackend(), nil, session.Options{})
	assert.ErrorIs(t, err, session.ErrNoQuestions)
}

func TestBeginRequiresGates(t *testing.T) {
	sess, err := session.New(threeQuestionTest(), newFakeBackend(), session.NewGates(), session.Options{
		Clock:  newFakeClock(),
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)

	assert.ErrorIs(t, sess.Begin(context.Background()), session.ErrGatesNotPassed)
	assert.Equal(t, session.StateUninitialized, sess.State())
}

func TestBeginIsOneWay(t *testing.T) {
	backend := newFakeBackend()
	sess := newTestSession(t, threeQuestionTest(), backend)
	defer sess.Close()

	require.NoError(t, sess.Begin(context.Background()))
	assert.ErrorIs(t, sess.Begin(context.Background()), session.ErrAlreadyBegun)

	start, _, _ := backend.counts()
	assert.Equal(t, 1, start)
	assert.Equal(t, session.StateInProgress, sess.State())
	assert.Equal(t, "attempt-1", sess.AttemptID())
}

func TestMutationsRequireActiveSession(t *testing.T) {
	sess := newTestSession(t, threeQuestionTest(), newFakeBackend())

	assert.ErrorIs(t, sess.SetAnswer("q1", "0"), session.ErrNotActive)
	assert.ErrorIs(t, sess.ToggleFlag("q1"), session.ErrNotActive)
	assert.ErrorIs(t, sess.Visit("q1"), session.ErrNotActive)
}

func TestSetAnswerSyncsLatestValue(t *testing.T) {
	backend := newFakeBackend()
	sess := newTestSession(t, threeQuestionTest(), backend)
	defer sess.Close()
	require.NoError(t, sess.Begin(context.Background()))

	require.NoError(t, sess.SetAnswer("q1", "0"))

	require.Eventually(t, func() bool {
		return backend.saved("q1") == "0"
	}, time.Second, 5*time.Millisecond)
}

// A newer answer must never be overwritten by an older in-flight sync: the
// sync loop reads the latest value at send time and re-sends after a change.
func TestSyncIsLatestWins(t *testing.T) {
	backend := newFakeBackend()
	backend.saveEnter = make(chan string)
	backend.saveGate = make(chan struct{})
	sess := newTestSession(t, threeQuestionTest(), backend)
	defer sess.Close()
	require.NoError(t, sess.Begin(context.Background()))

	require.NoError(t, sess.SetAnswer("q1", "0"))
	assert.Equal(t, "0", <-backend.saveEnter)

	// Change the answer while the first send is stalled in flight.
	require.NoError(t, sess.SetAnswer("q1", "1"))
	backend.saveGate <- struct{}{}

	// The loop must follow up with the newer value, not stop at the stale one.
	assert.Equal(t, "1", <-backend.saveEnter)
	backend.saveGate <- struct{}{}

	require.Eventually(t, func() bool {
		return backend.saved("q1") == "1"
	}, time.Second, 5*time.Millisecond)
}

func TestDegradedModeSkipsSync(t *testing.T) {
	backend := newFakeBackend()
	backend.startErr = errors.New("backend down")
	sess := newTestSession(t, threeQuestionTest(), backend)
	defer sess.Close()

	require.NoError(t, sess.Begin(context.Background()))
	assert.True(t, sess.Degraded())
	assert.Equal(t, session.StateInProgress, sess.State())

	// Local answering still works synchronously.
	require.NoError(t, sess.SetAnswer("q1", "0"))
	a, _ := sess.Answer("q1")
	assert.Equal(t, "0", a.Value)

	// And no sync call is ever attempted.
	time.Sleep(20 * time.Millisecond)
	_, save, _ := backend.counts()
	assert.Equal(t, 0, save)
}

func TestDegradedSubmitIsLocalOnly(t *testing.T) {
	backend := newFakeBackend()
	backend.startErr = errors.New("backend down")
	sess := newTestSession(t, threeQuestionTest(), backend)
	require.NoError(t, sess.Begin(context.Background()))

	require.NoError(t, sess.Submit())

	assert.Equal(t, session.StateSubmitted, sess.State())
	_, _, submit := backend.counts()
	assert.Equal(t, 0, submit)
}

func TestSubmitFailureStillFinalizes(t *testing.T) {
	backend := newFakeBackend()
	backend.submitErr = errors.New("503 from grader")
	sess := newTestSession(t, threeQuestionTest(), backend)
	require.NoError(t, sess.Begin(context.Background()))

	require.NoError(t, sess.Submit())

	assert.Equal(t, session.StateSubmitted, sess.State())
	_, _, submit := backend.counts()
	assert.Equal(t, 1, submit)
}

// Manual submit and timer expiry racing must produce exactly one network
// submit call.
func TestSubmitReentrancy(t *testing.T) {
	backend := newFakeBackend()
	sess := newTestSession(t, threeQuestionTest(), backend)
	require.NoError(t, sess.Begin(context.Background()))

	// Drain the countdown so the final tick fires auto-submit, then race a
	// manual submit behind it.
	for i := 0; i < threeQuestionTest().DurationSeconds(); i++ {
		sess.HandleTick()
	}
	require.NoError(t, sess.Submit())
	require.NoError(t, sess.Submit())

	assert.Equal(t, session.StateSubmitted, sess.State())
	_, _, submit := backend.counts()
	assert.Equal(t, 1, submit)
}

func TestSubmitReentrancyConcurrent(t *testing.T) {
	backend := newFakeBackend()
	sess := newTestSession(t, threeQuestionTest(), backend)
	require.NoError(t, sess.Begin(context.Background()))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = sess.Submit()
		}()
	}
	wg.Wait()

	_, _, submit := backend.counts()
	assert.Equal(t, 1, submit)
}

func TestMutationsFrozenAfterSubmit(t *testing.T) {
	sess := newTestSession(t, threeQuestionTest(), newFakeBackend())
	require.NoError(t, sess.Begin(context.Background()))
	require.NoError(t, sess.SetAnswer("q1", "0"))
	require.NoError(t, sess.Submit())

	assert.ErrorIs(t, sess.SetAnswer("q1", "1"), session.ErrNotActive)
	a, _ := sess.Answer("q1")
	assert.Equal(t, "0", a.Value)
}

// The full scenario: one-minute paper, one answered and flagged question,
// sixty ticks, auto-submit, summary counts.
func TestTimerExpiryScenario(t *testing.T) {
	backend := newFakeBackend()
	test := &model.Test{
		ID:       "t1",
		Duration: 1,
		Questions: []model.Question{
			{ID: "q1", Options: []model.Option{{Label: "0", Text: "A"}, {Label: "1", Text: "B"}}},
		},
	}
	sess := newTestSession(t, test, backend)
	require.NoError(t, sess.Begin(context.Background()))

	require.NoError(t, sess.SetAnswer("q1", "0"))
	assert.Equal(t, model.StatusAnswered, sess.Status("q1"))

	require.NoError(t, sess.ToggleFlag("q1"))
	assert.Equal(t, model.StatusAnsweredMarked, sess.Status("q1"))

	for i := 0; i < 60; i++ {
		sess.HandleTick()
	}

	assert.Equal(t, session.StateSubmitted, sess.State())
	_, _, submit := backend.counts()
	assert.Equal(t, 1, submit)

	s := sess.Summary()
	assert.Equal(t, 1, s.Answered)
	assert.Equal(t, 1, s.Flagged)
	assert.Equal(t, 0, s.NotAttempted)
}

func TestFailedSyncRecoversOnNextChange(t *testing.T) {
	backend := newFakeBackend()
	backend.saveErr = errors.New("flaky network")
	sess := newTestSession(t, threeQuestionTest(), backend)
	defer sess.Close()
	require.NoError(t, sess.Begin(context.Background()))

	require.NoError(t, sess.SetAnswer("q1", "0"))
	require.Eventually(t, func() bool {
		_, save, _ := backend.counts()
		return save == 1
	}, time.Second, 5*time.Millisecond)

	// The failed send is not retried inline; the next change re-syncs.
	require.NoError(t, sess.SetAnswer("q1", "1"))
	require.Eventually(t, func() bool {
		return backend.saved("q1") == "1"
	}, time.Second, 5*time.Millisecond)
}

// Clears are local-only: no sync call goes out for a clear, not even through
// the autosave sweep, until the next SetAnswer for the question.
func TestClearAnswerIsLocalOnly(t *testing.T) {
	backend := newFakeBackend()
	sess := newTestSession(t, threeQuestionTest(), backend)
	defer sess.Close()
	require.NoError(t, sess.Begin(context.Background()))

	require.NoError(t, sess.SetAnswer("q1", "0"))
	require.Eventually(t, func() bool {
		_, save, _ := backend.counts()
		return save == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, sess.ClearAnswer("q1"))
	sess.Autosave()

	a, _ := sess.Answer("q1")
	assert.False(t, a.Answered())
	time.Sleep(20 * time.Millisecond)
	_, save, _ := backend.counts()
	assert.Equal(t, 1, save)
	assert.Equal(t, "0", backend.saved("q1"))
}

func TestAutosaveIsNoopWhenClean(t *testing.T) {
	backend := newFakeBackend()
	sess := newTestSession(t, threeQuestionTest(), backend)
	defer sess.Close()
	require.NoError(t, sess.Begin(context.Background()))

	sess.Autosave()

	time.Sleep(20 * time.Millisecond)
	_, save, _ := backend.counts()
	assert.Equal(t, 0, save)
}
