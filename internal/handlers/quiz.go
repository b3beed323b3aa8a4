package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"skillswap-backend/internal/middleware"
	"skillswap-backend/internal/models"
)

type quizService interface {
	RequestQuiz(ctx context.Context, userID uuid.UUID, req models.GenerateQuizRequest) (*models.Quiz, *models.Job, error)
	GetQuiz(ctx context.Context, id, userID uuid.UUID) (*models.Quiz, error)
	SubmitQuiz(ctx context.Context, id, userID uuid.UUID, answers []string) (*models.QuizResult, error)
}

type QuizHandler struct {
	quizzes quizService
}

func NewQuizHandler(quizzes quizService) *QuizHandler {
	return &QuizHandler{quizzes: quizzes}
}

func (h *QuizHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateQuizRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	quiz, job, err := h.quizzes.RequestQuiz(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id":  job.ID,
		"quiz_id": quiz.ID,
	})
}

func (h *QuizHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "quiz")
	if !ok {
		return
	}

	quiz, err := h.quizzes.GetQuiz(r.Context(), id, middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, quiz)
}

func (h *QuizHandler) Submit(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "quiz")
	if !ok {
		return
	}

	var req models.SubmitQuizRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.quizzes.SubmitQuiz(r.Context(), id, middleware.GetUserID(r.Context()), req.Answers)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
