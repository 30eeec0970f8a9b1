package session_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catrixlabs/catrix-client/internal/model"
	"github.com/catrixlabs/catrix-client/internal/session"
)

// fakeClock implements session.Clock with manual time and tickers that never
// fire on their own.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func (f *fakeClock) NewTicker(time.Duration) session.Ticker {
	return fakeTicker{ch: make(chan time.Time)}
}

type fakeTicker struct {
	ch chan time.Time
}

func (t fakeTicker) C() <-chan time.Time { return t.ch }
func (t fakeTicker) Stop()               {}

func threeQuestionTest() *model.Test {
	return &model.Test{
		ID:       "t1",
		Title:    "Mock",
		Duration: 1,
		Questions: []model.Question{
			{ID: "q1", Options: []model.Option{{Label: "0", Text: "A"}, {Label: "1", Text: "B"}}},
			{ID: "q2", Options: []model.Option{{Label: "0", Text: "A"}, {Label: "1", Text: "B"}}},
			{ID: "q3"},
		},
	}
}

func TestNewAnswerStoreIsDense(t *testing.T) {
	store := session.NewAnswerStore(threeQuestionTest(), newFakeClock())

	require.Equal(t, 3, store.Len())
	for _, a := range store.Snapshot() {
		assert.False(t, a.Answered())
		assert.False(t, a.Flagged)
		assert.EqualValues(t, 0, a.VisitedAt)
	}
}

func TestSetAnswerImpliesFirstVisit(t *testing.T) {
	clock := newFakeClock()
	store := session.NewAnswerStore(threeQuestionTest(), clock)

	require.NoError(t, store.SetAnswer("q1", "0"))

	a, ok := store.Get("q1")
	require.True(t, ok)
	assert.Equal(t, "0", a.Value)
	assert.Equal(t, clock.Now().UnixMilli(), a.VisitedAt)
}

func TestSetAnswerKeepsOriginalVisitTime(t *testing.T) {
	clock := newFakeClock()
	store := session.NewAnswerStore(threeQuestionTest(), clock)

	require.NoError(t, store.Visit("q1"))
	first := clock.Now().UnixMilli()
	clock.Advance(5 * time.Second)
	require.NoError(t, store.SetAnswer("q1", "1"))

	a, _ := store.Get("q1")
	assert.Equal(t, first, a.VisitedAt)
}

func TestClearAnswerOnlyRevertsValue(t *testing.T) {
	clock := newFakeClock()
	store := session.NewAnswerStore(threeQuestionTest(), clock)

	require.NoError(t, store.SetAnswer("q1", "0"))
	require.NoError(t, store.ToggleFlag("q1"))
	before, _ := store.Get("q1")

	require.NoError(t, store.ClearAnswer("q1"))

	after, _ := store.Get("q1")
	assert.False(t, after.Answered())
	assert.Equal(t, before.VisitedAt, after.VisitedAt)
	assert.Equal(t, before.Flagged, after.Flagged)
}

func TestToggleFlagRoundTrips(t *testing.T) {
	store := session.NewAnswerStore(threeQuestionTest(), newFakeClock())

	require.NoError(t, store.ToggleFlag("q2"))
	a, _ := store.Get("q2")
	assert.True(t, a.Flagged)

	require.NoError(t, store.ToggleFlag("q2"))
	a, _ = store.Get("q2")
	assert.False(t, a.Flagged)
}

func TestVisitIsIdempotent(t *testing.T) {
	clock := newFakeClock()
	store := session.NewAnswerStore(threeQuestionTest(), clock)

	require.NoError(t, store.Visit("q3"))
	first, _ := store.Get("q3")
	clock.Advance(time.Minute)
	require.NoError(t, store.Visit("q3"))
	second, _ := store.Get("q3")

	assert.Equal(t, first.VisitedAt, second.VisitedAt)
}

func TestUnknownQuestionRejected(t *testing.T) {
	store := session.NewAnswerStore(threeQuestionTest(), newFakeClock())

	assert.Error(t, store.SetAnswer("nope", "0"))
	assert.Error(t, store.ClearAnswer("nope"))
	assert.Error(t, store.ToggleFlag("nope"))
	assert.Error(t, store.Visit("nope"))
}
