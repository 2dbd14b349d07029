package handler

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"quizflow/internal/model"
)

// FunnelReader serves conversion stats
type FunnelReader interface {
	Funnel(ctx context.Context, quizID string) (*model.Funnel, error)
}

// OpsHandler serves the ops portal endpoints
type OpsHandler struct {
	quiz  QuizService
	stats FunnelReader
	log   *zap.Logger
}

// NewOpsHandler creates a new ops handler
func NewOpsHandler(quiz QuizService, stats FunnelReader, log *zap.Logger) *OpsHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &OpsHandler{quiz: quiz, stats: stats, log: log.Named("ops")}
}

// Session handles GET /v1/ops/sessions/{id}
func (h *OpsHandler) Session(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	session, err := h.quiz.Get(r.Context(), id)
	if err != nil {
		h.fail(w, err, zap.String("sessionId", id))
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// Funnel handles GET /v1/ops/funnel/{quizId}
func (h *OpsHandler) Funnel(w http.ResponseWriter, r *http.Request) {
	quizID := mux.Vars(r)["quizId"]
	funnel, err := h.stats.Funnel(r.Context(), quizID)
	if err != nil {
		h.fail(w, err, zap.String("quizId", quizID))
		return
	}
	writeJSON(w, http.StatusOK, funnel)
}

func (h *OpsHandler) fail(w http.ResponseWriter, err error, fields ...zap.Field) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("ops request failed", append(fields, zap.Error(err))...)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}
