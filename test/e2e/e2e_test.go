//go:build e2e
// +build e2e

// End-to-end flow: a candidate logs in, loads a test, passes the entry gates,
// answers under the clock and submits, all against the in-memory dev server
// over real HTTP.
package e2e

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catrixlabs/catrix-client/internal/apiclient"
	"github.com/catrixlabs/catrix-client/internal/config"
	"github.com/catrixlabs/catrix-client/internal/devserver"
	"github.com/catrixlabs/catrix-client/internal/logger"
	"github.com/catrixlabs/catrix-client/internal/model"
	"github.com/catrixlabs/catrix-client/internal/session"
	"github.com/catrixlabs/catrix-client/internal/validator"
)

const (
	studentEmail = "e2e_student@example.com"
	studentPass  = "password123"
)

func startServer(t *testing.T) (*httptest.Server, *devserver.Store) {
	t.Helper()
	validator.Setup()

	cfg := &config.Config{
		GinMode:    gin.TestMode,
		JWTSecret:  "e2e-secret",
		JWTExpiry:  time.Hour,
		BcryptCost: 4,
	}
	store := devserver.NewStore()
	auth := devserver.NewAuth(cfg)
	h := devserver.NewHandler(store, auth, logger.Nop())

	hash, err := auth.HashPassword(studentPass)
	require.NoError(t, err)
	store.AddUser(model.User{Email: studentEmail, Name: "E2E Student"}, hash)

	store.AddTest(&model.Test{
		ID:       "e2e-test-1",
		Title:    "E2E Mock",
		Duration: 30,
		Section:  "general",
		Questions: []model.Question{
			{
				ID:            "q1",
				QuestionText:  "Pick B.",
				Options:       []model.Option{{Label: "0", Text: "A"}, {Label: "1", Text: "B"}},
				CorrectAnswer: "1",
				Marks:         2,
			},
			{
				ID:            "q2",
				QuestionText:  "Type forty-two as digits.",
				CorrectAnswer: "42",
				Marks:         3,
			},
			{
				ID:            "q3",
				QuestionText:  "Pick A.",
				Options:       []model.Option{{Label: "0", Text: "A"}, {Label: "1", Text: "B"}},
				CorrectAnswer: "0",
				Marks:         1,
			},
		},
	})

	srv := httptest.NewServer(devserver.NewRouter(cfg, auth, h))
	t.Cleanup(srv.Close)
	return srv, store
}

func passGates() *session.Gates {
	gates := session.NewGates()
	gates.Instructions.Update(2000, 400, 2000)
	for _, g := range gates.Declaration.Gates() {
		_ = gates.Declaration.Set(g, true)
	}
	return gates
}

func TestFullExamFlow(t *testing.T) {
	srv, _ := startServer(t)
	ctx := context.Background()

	client := apiclient.New(srv.URL+"/api", apiclient.WithRetryBaseDelay(time.Millisecond))

	// Login installs the credential for everything that follows.
	user, err := client.Login(ctx, studentEmail, studentPass)
	require.NoError(t, err)
	assert.Equal(t, studentEmail, user.Email)

	// The catalog lists the seeded paper without question bodies.
	catalog, err := client.ListTests(ctx)
	require.NoError(t, err)
	require.Len(t, catalog, 1)
	assert.Empty(t, catalog[0].Questions)

	// The delivery payload carries questions but never correct answers.
	test, err := client.GetTest(ctx, "e2e-test-1")
	require.NoError(t, err)
	require.Len(t, test.Questions, 3)
	for _, q := range test.Questions {
		assert.Empty(t, q.CorrectAnswer)
	}

	sess, err := session.New(test, client, passGates(), session.Options{Logger: logger.Nop()})
	require.NoError(t, err)
	defer sess.Close()
	require.NoError(t, sess.Begin(ctx))
	require.False(t, sess.Degraded())
	attemptID := sess.AttemptID()
	require.NotEmpty(t, attemptID)

	// Answer two of three, flag one, revise an answer.
	require.NoError(t, sess.SetAnswer("q1", "0"))
	require.NoError(t, sess.SetAnswer("q1", "1"))
	require.NoError(t, sess.SetAnswer("q2", "42"))
	require.NoError(t, sess.ToggleFlag("q3"))
	require.NoError(t, sess.Visit("q3"))

	summary := sess.Summary()
	assert.Equal(t, 2, summary.Answered)
	assert.Equal(t, 1, summary.Flagged)
	assert.Equal(t, 1, summary.NotAttempted)

	require.NoError(t, sess.Submit())
	require.Equal(t, session.StateSubmitted, sess.State())

	// The graded record reflects the final answers: q1 and q2 correct, q3
	// never answered.
	attempt, err := client.GetAttempt(ctx, attemptID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptStatusSubmitted, attempt.Status)
	require.NotNil(t, attempt.Score)
	assert.Equal(t, 5.0, *attempt.Score)

	analytics, err := client.UserAnalytics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, analytics.TotalAttempts)
	assert.Equal(t, 5.0, analytics.AverageScore)
}

func TestSubmitIsIdempotentOverHTTP(t *testing.T) {
	srv, _ := startServer(t)
	ctx := context.Background()

	client := apiclient.New(srv.URL + "/api")
	_, err := client.Login(ctx, studentEmail, studentPass)
	require.NoError(t, err)

	attemptID, err := client.StartAttempt(ctx, "e2e-test-1")
	require.NoError(t, err)
	require.NoError(t, client.SaveAnswer(ctx, attemptID, "q1", "1", 5))

	require.NoError(t, client.SubmitAttempt(ctx, attemptID))
	require.NoError(t, client.SubmitAttempt(ctx, attemptID))

	attempt, err := client.GetAttempt(ctx, attemptID)
	require.NoError(t, err)
	require.NotNil(t, attempt.Score)
	assert.Equal(t, 2.0, *attempt.Score)
}
