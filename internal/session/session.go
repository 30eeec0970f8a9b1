package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/catrixlabs/catrix-client/internal/model"
)

// State enumerates the attempt lifecycle.
type State string

const (
	StateUninitialized  State = "UNINITIALIZED"
	StateAttemptPending State = "ATTEMPT_PENDING"
	StateInProgress     State = "IN_PROGRESS"
	StateSubmitting     State = "SUBMITTING"
	StateSubmitted      State = "SUBMITTED"
)

// submit triggers, recorded for logs only.
const (
	triggerManual = "manual"
	triggerTimer  = "timer"
)

var (
	// ErrNoQuestions is returned when a test arrives without questions; the
	// session cannot start.
	ErrNoQuestions = errors.New("session: test has no questions")
	// ErrGatesNotPassed is returned by Begin while any entry gate is open.
	ErrGatesNotPassed = errors.New("session: entry gates not passed")
	// ErrAlreadyBegun is returned by a second Begin. Beginning is one-way.
	ErrAlreadyBegun = errors.New("session: already begun")
	// ErrNotActive is returned for mutations outside the in-progress state.
	ErrNotActive = errors.New("session: not in progress")
)

// Backend is the remote grading service surface the session depends on. The
// apiclient satisfies it; tests substitute fakes.
type Backend interface {
	// StartAttempt creates the attempt record and returns its id.
	StartAttempt(ctx context.Context, testID string) (string, error)
	// SaveAnswer persists one answer against the attempt. Best-effort.
	SaveAnswer(ctx context.Context, attemptID, questionID, value string, timeTakenSeconds int) error
	// SubmitAttempt finalizes the attempt. Idempotent on the backend, keyed
	// by attempt id.
	SubmitAttempt(ctx context.Context, attemptID string) error
}

// Options configures a Session beyond its required collaborators.
type Options struct {
	Clock            Clock
	Logger           zerolog.Logger
	AutosaveInterval time.Duration
	SyncTimeout      time.Duration
}

// Session owns one timed exam attempt from gate-pass to submission. All state
// behind the mutex; mutations come from the caller and from the internal
// timer loop, never concurrently observed mid-change.
type Session struct {
	test    *model.Test
	backend Backend
	gates   *Gates
	clock   Clock
	log     zerolog.Logger

	autosaveInterval time.Duration
	syncTimeout      time.Duration

	mu        sync.Mutex
	state     State
	degraded  bool
	attemptID string
	store     *AnswerStore
	countdown *Countdown
	dirty     map[string]struct{}
	inflight  map[string]struct{}

	stop     chan struct{}
	stopOnce sync.Once
	syncWG   sync.WaitGroup
}

// New builds a session over a loaded test. The test must already be
// normalized; a test without questions is a load failure and is fatal here.
func New(test *model.Test, backend Backend, gates *Gates, opts Options) (*Session, error) {
	if test == nil || len(test.Questions) == 0 {
		return nil, ErrNoQuestions
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.AutosaveInterval <= 0 {
		opts.AutosaveInterval = 30 * time.Second
	}
	if opts.SyncTimeout <= 0 {
		opts.SyncTimeout = 10 * time.Second
	}

	return &Session{
		test:             test,
		backend:          backend,
		gates:            gates,
		clock:            opts.Clock,
		log:              opts.Logger.With().Str("component", "session").Str("test_id", test.ID).Logger(),
		autosaveInterval: opts.AutosaveInterval,
		syncTimeout:      opts.SyncTimeout,
		state:            StateUninitialized,
		store:            NewAnswerStore(test, opts.Clock),
		countdown:        NewCountdown(test.DurationSeconds()),
		dirty:            make(map[string]struct{}),
		inflight:         make(map[string]struct{}),
		stop:             make(chan struct{}),
	}, nil
}

// Begin passes through the entry gates, creates the remote attempt record and
// starts the countdown and autosave timers. If attempt creation fails the
// session still enters in-progress, in degraded mode: the clock is running
// and answering must never be blocked by a backend outage.
func (s *Session) Begin(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateUninitialized {
		s.mu.Unlock()
		return ErrAlreadyBegun
	}
	if s.gates != nil && !s.gates.Passed() {
		s.mu.Unlock()
		return ErrGatesNotPassed
	}
	s.state = StateAttemptPending
	s.mu.Unlock()

	attemptID, err := s.backend.StartAttempt(ctx, s.test.ID)

	s.mu.Lock()
	if err != nil {
		// Attempt tracking disabled: no per-answer sync, local-only submit.
		s.degraded = true
		s.log.Warn().Err(err).Msg("attempt creation failed, continuing in degraded mode")
	} else {
		s.attemptID = attemptID
		s.log.Info().Str("attempt_id", attemptID).Msg("attempt started")
	}
	s.state = StateInProgress
	s.mu.Unlock()

	go s.run()
	return nil
}

// run drives the 1-second countdown tick and the periodic autosave sweep.
// Both tickers are torn down together when the session leaves in-progress.
func (s *Session) run() {
	tick := s.clock.NewTicker(time.Second)
	defer tick.Stop()
	sweep := s.clock.NewTicker(s.autosaveInterval)
	defer sweep.Stop()

	for {
		select {
		case <-tick.C():
			s.HandleTick()
		case <-sweep.C():
			s.Autosave()
		case <-s.stop:
			return
		}
	}
}

// HandleTick advances the countdown by one second. On expiry it triggers the
// auto-submit path exactly once.
func (s *Session) HandleTick() {
	s.mu.Lock()
	if s.state != StateInProgress {
		s.mu.Unlock()
		return
	}
	expired := s.countdown.Tick()
	s.mu.Unlock()

	if expired {
		s.log.Info().Msg("time expired, auto-submitting")
		s.submit(triggerTimer)
	}
}

// SetAnswer records a response and schedules a best-effort remote sync. The
// local update is immediate and never waits on the network.
func (s *Session) SetAnswer(questionID, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress {
		return ErrNotActive
	}
	if err := s.store.SetAnswer(questionID, value); err != nil {
		return err
	}
	s.dirty[questionID] = struct{}{}
	s.scheduleSyncLocked(questionID)
	return nil
}

// ClearAnswer removes the response value locally. Clears are not synced; the
// next SetAnswer for the question carries the current state.
func (s *Session) ClearAnswer(questionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress {
		return ErrNotActive
	}
	return s.store.ClearAnswer(questionID)
}

// ToggleFlag flips the marked-for-review flag. Local state only.
func (s *Session) ToggleFlag(questionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress {
		return ErrNotActive
	}
	return s.store.ToggleFlag(questionID)
}

// Visit marks a question as opened.
func (s *Session) Visit(questionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress {
		return ErrNotActive
	}
	return s.store.Visit(questionID)
}

// scheduleSyncLocked starts a sync goroutine for the question unless one is
// already in flight. The goroutine always reads the latest value at send
// time, so an older write can never overwrite a newer one.
func (s *Session) scheduleSyncLocked(questionID string) {
	if s.degraded || s.attemptID == "" {
		s.log.Debug().Str("question_id", questionID).Msg("sync skipped (degraded)")
		delete(s.dirty, questionID)
		return
	}
	if _, busy := s.inflight[questionID]; busy {
		return
	}
	s.inflight[questionID] = struct{}{}
	s.syncWG.Add(1)
	go s.syncLoop(questionID)
}

// syncLoop sends the current value for one question, and repeats only while
// the value keeps changing underneath it. Failures are logged, never retried
// inline; the next change re-syncs naturally.
func (s *Session) syncLoop(questionID string) {
	defer s.syncWG.Done()
	for {
		s.mu.Lock()
		if s.state != StateInProgress {
			delete(s.inflight, questionID)
			s.mu.Unlock()
			return
		}
		delete(s.dirty, questionID)
		ans, _ := s.store.Get(questionID)
		attemptID := s.attemptID
		timeTaken := s.timeTakenLocked(ans)
		s.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), s.syncTimeout)
		err := s.backend.SaveAnswer(ctx, attemptID, questionID, ans.Value, timeTaken)
		cancel()
		if err != nil {
			s.log.Warn().Err(err).Str("question_id", questionID).Msg("answer sync failed")
		}

		s.mu.Lock()
		_, changed := s.dirty[questionID]
		if !changed {
			delete(s.inflight, questionID)
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
	}
}

func (s *Session) timeTakenLocked(a model.Answer) int {
	if a.VisitedAt == 0 {
		return 0
	}
	elapsed := s.clock.Now().UnixMilli() - a.VisitedAt
	if elapsed < 0 {
		return 0
	}
	return int(elapsed / 1000)
}

// Autosave re-schedules a sync for every answer changed since its last
// successful send. Fired on a fixed interval by the session loop.
func (s *Session) Autosave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress || len(s.dirty) == 0 {
		return
	}
	for qid := range s.dirty {
		s.scheduleSyncLocked(qid)
	}
}

// Submit finalizes the session on user confirmation. Safe to race with the
// timer's auto-submit: whichever path observes in-progress first wins, the
// other becomes a no-op, and the network submit is issued at most once.
func (s *Session) Submit() error {
	s.submit(triggerManual)
	return nil
}

func (s *Session) submit(trigger string) {
	s.mu.Lock()
	if s.state != StateInProgress {
		// Re-entrancy guard keyed on state, not on event source.
		s.mu.Unlock()
		return
	}
	s.state = StateSubmitting
	attemptID := s.attemptID
	degraded := s.degraded
	s.mu.Unlock()

	s.stopTimers()

	// Drain the per-question sync goroutines, then push anything they left
	// unsent. The backend freezes the record on submit, so every answer must
	// land before the submit call goes out.
	s.syncWG.Wait()
	s.flushDirty(attemptID, degraded)

	if degraded || attemptID == "" {
		// Nothing to submit remotely. Logged distinctly so support can spot
		// attempts that never reached the backend.
		s.log.Warn().Str("trigger", trigger).Msg("local-only submission (no attempt record)")
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), s.syncTimeout)
		err := s.backend.SubmitAttempt(ctx, attemptID)
		cancel()
		if err != nil {
			// Terminal regardless: the candidate is never trapped against a
			// dead backend at the moment their timer hits zero. Duplicate
			// protection is owned by the backend via the attempt id.
			s.log.Error().Err(err).Str("attempt_id", attemptID).Str("trigger", trigger).
				Msg("submit call failed, finalizing locally")
		} else {
			s.log.Info().Str("attempt_id", attemptID).Str("trigger", trigger).Msg("attempt submitted")
		}
	}

	s.mu.Lock()
	s.state = StateSubmitted
	s.mu.Unlock()
}

// flushDirty sends answers changed after their sync goroutine exited.
// Best-effort: a failure here is logged and the submit proceeds anyway.
func (s *Session) flushDirty(attemptID string, degraded bool) {
	s.mu.Lock()
	pending := make([]string, 0, len(s.dirty))
	for qid := range s.dirty {
		pending = append(pending, qid)
		delete(s.dirty, qid)
	}
	s.mu.Unlock()

	if degraded || attemptID == "" || len(pending) == 0 {
		return
	}

	for _, qid := range pending {
		s.mu.Lock()
		ans, _ := s.store.Get(qid)
		timeTaken := s.timeTakenLocked(ans)
		s.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), s.syncTimeout)
		err := s.backend.SaveAnswer(ctx, attemptID, qid, ans.Value, timeTaken)
		cancel()
		if err != nil {
			s.log.Warn().Err(err).Str("question_id", qid).Msg("final answer flush failed")
		}
	}
}

// Close tears the session timers down without submitting, for window
// teardown. A submission already in flight is not cancelled.
func (s *Session) Close() {
	s.stopTimers()
}

func (s *Session) stopTimers() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// ─── Read surface ──────────────────────────────────────────────────

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Degraded reports whether remote persistence is unavailable for this
// session.
func (s *Session) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

// AttemptID returns the remote attempt id, empty in degraded mode.
func (s *Session) AttemptID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attemptID
}

// Test returns the immutable test under attempt.
func (s *Session) Test() *model.Test {
	return s.test
}

// Remaining returns the countdown's remaining seconds.
func (s *Session) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countdown.Remaining()
}

// Critical reports whether the countdown is inside the urgency threshold.
func (s *Session) Critical() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countdown.Critical()
}

// FormatRemaining renders the remaining time as HH:MM:SS.
func (s *Session) FormatRemaining() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countdown.Format()
}

// Answer returns the stored answer for one question.
func (s *Session) Answer(questionID string) (model.Answer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Get(questionID)
}

// Status derives the palette status for one question.
func (s *Session) Status(questionID string) model.QuestionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, _ := s.store.Get(questionID)
	return model.StatusOf(a)
}

// Snapshot returns the answers in question order.
func (s *Session) Snapshot() []model.Answer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Snapshot()
}

// Palette derives the full question palette.
func (s *Session) Palette() []PaletteEntry {
	return Palette(s.Snapshot())
}

// Summary computes the answered/flagged/not-attempted counts.
func (s *Session) Summary() Summary {
	return Summarize(s.Snapshot())
}
