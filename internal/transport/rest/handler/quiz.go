package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"quizflow/internal/catalog"
	"quizflow/internal/model"
	"quizflow/internal/repository"
	"quizflow/internal/service"
	"quizflow/internal/transport/rest/middleware"
)

// DefaultQuizIDs maps the flow segment of /api/{flow} to the quiz used when a start
// request names none
var DefaultQuizIDs = map[string]string{
	"quiz":         "quiz-v2",
	"requirements": "requirements-wizard",
}

// QuizService is the backend used by the quiz taker endpoints
type QuizService interface {
	Start(ctx context.Context, req model.StartRequest) (*model.StartResponse, error)
	RecordAnswer(ctx context.Context, req model.AnswerRequest) error
	PatchProgress(ctx context.Context, patch model.ProgressPatch) error
	RecordInteractions(ctx context.Context, batch model.InteractionBatch) error
	Complete(ctx context.Context, sessionID string) (*model.CompletionResult, error)
	Get(ctx context.Context, sessionID string) (*model.QuizSession, error)
	Catalog(quizID string) (*catalog.Catalog, error)
}

// QuizHandler serves /api/{flow}/*
type QuizHandler struct {
	svc QuizService
	log *zap.Logger
}

// NewQuizHandler creates a new quiz handler
func NewQuizHandler(svc QuizService, log *zap.Logger) *QuizHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &QuizHandler{svc: svc, log: log.Named("api")}
}

// Start handles POST /api/{flow}/start
func (h *QuizHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req model.StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.QuizID == "" {
		req.QuizID = DefaultQuizIDs[mux.Vars(r)["flow"]]
	}

	resp, err := h.svc.Start(r.Context(), req)
	if err != nil {
		h.fail(w, err, "start failed", zap.String("quizId", req.QuizID))
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// Answer handles POST /api/{flow}/answer
func (h *QuizHandler) Answer(w http.ResponseWriter, r *http.Request) {
	var req model.AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !bindSession(w, r, &req.SessionID) {
		return
	}
	if req.QuestionID == "" {
		writeError(w, http.StatusBadRequest, "questionId is required")
		return
	}

	if err := h.svc.RecordAnswer(r.Context(), req); err != nil {
		h.fail(w, err, "answer failed", zap.String("sessionId", req.SessionID), zap.String("questionId", req.QuestionID))
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}

// Progress handles PATCH /api/{flow}/progress
func (h *QuizHandler) Progress(w http.ResponseWriter, r *http.Request) {
	var patch model.ProgressPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !bindSession(w, r, &patch.SessionID) {
		return
	}

	if err := h.svc.PatchProgress(r.Context(), patch); err != nil {
		h.fail(w, err, "progress failed", zap.String("sessionId", patch.SessionID))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// Interactions handles POST /api/{flow}/interactions
func (h *QuizHandler) Interactions(w http.ResponseWriter, r *http.Request) {
	var batch model.InteractionBatch
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !bindSession(w, r, &batch.SessionID) {
		return
	}

	if err := h.svc.RecordInteractions(r.Context(), batch); err != nil {
		h.fail(w, err, "interactions failed", zap.String("sessionId", batch.SessionID))
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"received": len(batch.Interactions)})
}

// Complete handles POST /api/{flow}/complete
func (h *QuizHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req model.CompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !bindSession(w, r, &req.SessionID) {
		return
	}

	res, err := h.svc.Complete(r.Context(), req.SessionID)
	if err != nil {
		h.fail(w, err, "complete failed", zap.String("sessionId", req.SessionID))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Catalog handles GET /api/{flow}/catalog/{quizId}
func (h *QuizHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Catalog(mux.Vars(r)["quizId"])
	if err != nil {
		h.fail(w, err, "catalog failed")
		return
	}
	writeJSON(w, http.StatusOK, c.View())
}

// bindSession fills an empty body session id from the token and rejects a mismatch
func bindSession(w http.ResponseWriter, r *http.Request, sessionID *string) bool {
	tokenSession := middleware.GetSessionID(r.Context())
	if *sessionID == "" {
		*sessionID = tokenSession
	}
	if *sessionID != tokenSession {
		writeError(w, http.StatusForbidden, "token not valid for this session")
		return false
	}
	return true
}

func (h *QuizHandler) fail(w http.ResponseWriter, err error, msg string, fields ...zap.Field) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error(msg, append(fields, zap.Error(err))...)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, catalog.ErrUnknownQuiz), errors.Is(err, repository.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrSessionClosed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
