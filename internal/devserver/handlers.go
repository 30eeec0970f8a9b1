package devserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/catrixlabs/catrix-client/internal/response"
	"github.com/catrixlabs/catrix-client/internal/validator"
)

// Handler carries the dev API endpoints.
type Handler struct {
	store *Store
	auth  *Auth
	log   zerolog.Logger
}

// NewHandler creates the dev API handler set.
func NewHandler(store *Store, auth *Auth, log zerolog.Logger) *Handler {
	return &Handler{
		store: store,
		auth:  auth,
		log:   log.With().Str("component", "devserver").Logger(),
	}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// Login godoc
// POST /api/auth/login
// Verifies credentials and issues a bearer token.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	user, hash, err := h.store.UserByEmail(req.Email)
	if err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
		return
	}
	if err := h.auth.CheckPassword(hash, req.Password); err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
		return
	}

	token, err := h.auth.GenerateToken(user.ID, user.Email)
	if err != nil {
		h.log.Error().Err(err).Msg("token generation failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"token": token, "user": user})
}

// Verify godoc
// POST /api/auth/verify
// Confirms the bearer token and echoes the account.
func (h *Handler) Verify(c *gin.Context) {
	user, err := h.store.UserByID(UserID(c))
	if err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
		return
	}
	response.Success(c, http.StatusOK, user)
}

// ListTests godoc
// GET /api/tests
func (h *Handler) ListTests(c *gin.Context) {
	response.Success(c, http.StatusOK, h.store.Tests())
}

// GetTest godoc
// GET /api/tests/:test_id
// Serves the exam paper without correct answers.
func (h *Handler) GetTest(c *gin.Context) {
	test, err := h.store.TestForDelivery(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrTestNotFound)
		return
	}
	response.Success(c, http.StatusOK, test)
}

// StartAttempt godoc
// POST /api/tests/attempt/start/:test_id
func (h *Handler) StartAttempt(c *gin.Context) {
	attempt, err := h.store.StartAttempt(c.Param("test_id"), UserID(c))
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrTestNotFound)
		return
	}
	h.log.Info().Str("request_id", response.RequestID(c)).
		Str("attempt_id", attempt.ID).Str("test_id", attempt.TestID).Msg("attempt started")
	response.Success(c, http.StatusCreated, attempt)
}

type saveAnswerRequest struct {
	QuestionID     string `json:"questionId" binding:"required"`
	SelectedAnswer string `json:"selectedAnswer"`
	TimeTaken      int    `json:"timeTaken" binding:"min=0"`
}

// SaveAnswer godoc
// POST /api/tests/attempt/:attempt_id/answer
// Upserts one answer on an in-progress attempt.
func (h *Handler) SaveAnswer(c *gin.Context) {
	var req saveAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	err := h.store.SaveAnswer(c.Param("attempt_id"), UserID(c), req.QuestionID, req.SelectedAnswer, req.TimeTaken)
	switch {
	case errors.Is(err, ErrAttemptNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrAttemptNotFound)
	case errors.Is(err, ErrNotOwner):
		response.Fail(c, http.StatusForbidden, response.ErrAttemptNotOwned)
	case errors.Is(err, ErrUnknownQuestion):
		response.Fail(c, http.StatusBadRequest, response.ErrUnknownQuestion)
	case err != nil:
		response.Fail(c, http.StatusConflict, response.ErrAttemptSubmitted)
	default:
		response.Success(c, http.StatusOK, gin.H{"saved": true})
	}
}

// SubmitAttempt godoc
// POST /api/tests/attempt/:attempt_id/submit
// Finalizes and grades the attempt. Idempotent on the attempt id.
func (h *Handler) SubmitAttempt(c *gin.Context) {
	attempt, err := h.store.SubmitAttempt(c.Param("attempt_id"), UserID(c))
	switch {
	case errors.Is(err, ErrAttemptNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrAttemptNotFound)
	case errors.Is(err, ErrNotOwner):
		response.Fail(c, http.StatusForbidden, response.ErrAttemptNotOwned)
	case err != nil:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	default:
		h.log.Info().Str("request_id", response.RequestID(c)).
			Str("attempt_id", attempt.ID).Msg("attempt submitted")
		response.Success(c, http.StatusOK, attempt)
	}
}

// GetAttempt godoc
// GET /api/tests/attempt/:attempt_id
func (h *Handler) GetAttempt(c *gin.Context) {
	attempt, err := h.store.Attempt(c.Param("attempt_id"), UserID(c))
	switch {
	case errors.Is(err, ErrAttemptNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrAttemptNotFound)
	case errors.Is(err, ErrNotOwner):
		response.Fail(c, http.StatusForbidden, response.ErrAttemptNotOwned)
	default:
		response.Success(c, http.StatusOK, attempt)
	}
}

// Analytics godoc
// GET /api/analytics
func (h *Handler) Analytics(c *gin.Context) {
	response.Success(c, http.StatusOK, h.store.Analytics(UserID(c)))
}
