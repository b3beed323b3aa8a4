package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"skillswap-backend/internal/logger"
	"skillswap-backend/internal/models"
	"skillswap-backend/internal/repository"
)

type JobStore interface {
	Create(ctx context.Context, j *models.Job) error
}

// JobQueue hands a persisted job to the worker pool.
type JobQueue interface {
	Enqueue(ctx context.Context, job *models.Job) error
}

type QuizService struct {
	quizzes QuizStore
	jobs    JobStore
	queue   JobQueue
	logger  *zap.Logger
}

func NewQuizService(quizzes QuizStore, jobs JobStore, queue JobQueue, log *zap.Logger) *QuizService {
	return &QuizService{
		quizzes: quizzes,
		jobs:    jobs,
		queue:   queue,
		logger:  log.With(zap.String(logger.FieldOperation, "quizzes")),
	}
}

// RequestQuiz creates a pending quiz and queues its generation.
func (s *QuizService) RequestQuiz(ctx context.Context, userID uuid.UUID, req models.GenerateQuizRequest) (*models.Quiz, *models.Job, error) {
	req.Skill = strings.TrimSpace(req.Skill)
	if req.Skill == "" {
		return nil, nil, &ValidationError{Fields: map[string]string{"skill": "Skill is required"}}
	}
	if req.Type == "" {
		req.Type = models.QuizTypeQuiz
	}

	quiz := &models.Quiz{UserID: userID, Skill: req.Skill, Type: req.Type}
	if err := s.quizzes.Create(ctx, quiz); err != nil {
		return nil, nil, fmt.Errorf("create quiz: %w", err)
	}

	configBytes, err := json.Marshal(req)
	if err != nil {
		return nil, nil, fmt.Errorf("encode quiz config: %w", err)
	}
	job := &models.Job{
		UserID:      userID,
		Type:        models.JobTypeQuizGeneration,
		ReferenceID: quiz.ID,
		ConfigJSON:  configBytes,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, nil, fmt.Errorf("create job: %w", err)
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		return nil, nil, fmt.Errorf("enqueue job: %w", err)
	}

	s.logger.Info("quiz requested",
		zap.String(logger.FieldUserID, userID.String()),
		zap.String(logger.FieldJobID, job.ID.String()),
	)
	return quiz, job, nil
}

func (s *QuizService) GetQuiz(ctx context.Context, id, userID uuid.UUID) (*models.Quiz, error) {
	quiz, err := s.quizzes.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Message: "Quiz not found"}
	}
	if err != nil {
		return nil, fmt.Errorf("load quiz: %w", err)
	}
	if quiz.UserID != userID {
		return nil, &ForbiddenError{Message: "Access denied"}
	}
	return quiz, nil
}

func (s *QuizService) SubmitQuiz(ctx context.Context, id, userID uuid.UUID, answers []string) (*models.QuizResult, error) {
	quiz, err := s.GetQuiz(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if quiz.Status != models.QuizStatusReady {
		return nil, &InvalidStateError{Message: "Quiz is not ready yet"}
	}

	var questions []models.QuizQuestion
	if err := json.Unmarshal(quiz.QuestionsJSON, &questions); err != nil {
		return nil, fmt.Errorf("decode quiz questions: %w", err)
	}
	if len(answers) != len(questions) {
		return nil, &ValidationError{Fields: map[string]string{
			"answers": fmt.Sprintf("Expected %d answers, got %d", len(questions), len(answers)),
		}}
	}

	result := ScoreQuiz(questions, answers)
	result.QuizID = quiz.ID
	return result, nil
}

// ScoreQuiz counts exact matches after trimming surrounding whitespace.
func ScoreQuiz(questions []models.QuizQuestion, answers []string) *models.QuizResult {
	result := &models.QuizResult{Total: len(questions), Results: make([]models.QuestionResult, 0, len(questions))}
	for i, q := range questions {
		answer := ""
		if i < len(answers) {
			answer = answers[i]
		}
		correct := strings.TrimSpace(answer) == strings.TrimSpace(q.CorrectAnswer)
		if correct {
			result.Score++
		}
		result.Results = append(result.Results, models.QuestionResult{
			Index:         i,
			Answer:        answer,
			CorrectAnswer: q.CorrectAnswer,
			Correct:       correct,
		})
	}
	if result.Total > 0 {
		result.Percentage = math.Round(float64(result.Score)*10000/float64(result.Total)) / 100
	}
	return result
}
