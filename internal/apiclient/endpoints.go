package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/catrixlabs/catrix-client/internal/model"
)

// loginRequest is the credentials payload for POST /auth/login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResult is the login response payload.
type loginResult struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

// Login authenticates and installs the returned bearer credential on the
// client.
func (c *Client) Login(ctx context.Context, email, password string) (*model.User, error) {
	var res loginResult
	err := c.do(ctx, http.MethodPost, "/auth/login", loginRequest{Email: email, Password: password}, &res)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	c.SetToken(res.Token)
	return &res.User, nil
}

// Verify checks the current credential and returns the account it belongs to.
func (c *Client) Verify(ctx context.Context) (*model.User, error) {
	var user model.User
	if err := c.do(ctx, http.MethodPost, "/auth/verify", nil, &user); err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	return &user, nil
}

// ListTests fetches the test catalog.
func (c *Client) ListTests(ctx context.Context) ([]model.Test, error) {
	var tests []model.Test
	if err := c.do(ctx, http.MethodGet, "/tests", nil, &tests); err != nil {
		return nil, fmt.Errorf("list tests: %w", err)
	}
	return tests, nil
}

// GetTest fetches one test with its question list. Options arrive in loose
// wire shapes and are normalized during decoding.
func (c *Client) GetTest(ctx context.Context, testID string) (*model.Test, error) {
	var test model.Test
	if err := c.do(ctx, http.MethodGet, "/tests/"+url.PathEscape(testID), nil, &test); err != nil {
		return nil, fmt.Errorf("get test %s: %w", testID, err)
	}
	return &test, nil
}

// StartAttempt creates the attempt record for a test and returns its id.
func (c *Client) StartAttempt(ctx context.Context, testID string) (string, error) {
	var attempt model.Attempt
	path := "/tests/attempt/start/" + url.PathEscape(testID)
	if err := c.do(ctx, http.MethodPost, path, struct{}{}, &attempt); err != nil {
		return "", fmt.Errorf("start attempt: %w", err)
	}
	return attempt.ID, nil
}

// saveAnswerRequest is the per-answer persistence payload.
type saveAnswerRequest struct {
	QuestionID     string `json:"questionId"`
	SelectedAnswer string `json:"selectedAnswer"`
	TimeTaken      int    `json:"timeTaken,omitempty"`
}

// SaveAnswer persists one answer against an attempt. Callers treat failures
// as non-fatal; the final submission payload is authoritative.
func (c *Client) SaveAnswer(ctx context.Context, attemptID, questionID, value string, timeTakenSeconds int) error {
	path := "/tests/attempt/" + url.PathEscape(attemptID) + "/answer"
	req := saveAnswerRequest{QuestionID: questionID, SelectedAnswer: value, TimeTaken: timeTakenSeconds}
	if err := c.do(ctx, http.MethodPost, path, req, nil); err != nil {
		return fmt.Errorf("save answer: %w", err)
	}
	return nil
}

// SubmitAttempt finalizes an attempt. The backend treats the attempt id as
// the idempotency key, so repeating the call cannot double-score.
func (c *Client) SubmitAttempt(ctx context.Context, attemptID string) error {
	path := "/tests/attempt/" + url.PathEscape(attemptID) + "/submit"
	if err := c.do(ctx, http.MethodPost, path, struct{}{}, nil); err != nil {
		return fmt.Errorf("submit attempt: %w", err)
	}
	return nil
}

// GetAttempt fetches one attempt record.
func (c *Client) GetAttempt(ctx context.Context, attemptID string) (*model.Attempt, error) {
	var attempt model.Attempt
	path := "/tests/attempt/" + url.PathEscape(attemptID)
	if err := c.do(ctx, http.MethodGet, path, nil, &attempt); err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	return &attempt, nil
}

// UserAnalytics fetches the per-user aggregate for the analytics surfaces.
func (c *Client) UserAnalytics(ctx context.Context) (*model.Analytics, error) {
	var analytics model.Analytics
	if err := c.do(ctx, http.MethodGet, "/analytics", nil, &analytics); err != nil {
		return nil, fmt.Errorf("analytics: %w", err)
	}
	return &analytics, nil
}
