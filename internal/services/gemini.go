package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"skillswap-backend/internal/logger"
	"skillswap-backend/internal/models"
	"skillswap-backend/internal/websocket"
)

const (
	DefaultGeminiModel = "gemini-2.0-flash"

	quizQuestionCount = 10
	quizMediumCount   = 6
	quizHardCount     = 4
)

type QuizStore interface {
	Create(ctx context.Context, q *models.Quiz) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Quiz, error)
	SaveQuestions(ctx context.Context, id uuid.UUID, questions []byte, count int) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}

// textGenerator is the slice of *genai.GenerativeModel the quiz flow uses.
type textGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type GeminiService struct {
	client   *genai.Client
	model    textGenerator
	quizzes  QuizStore
	redis    *redis.Client
	rateChan chan struct{} // Token bucket
	logger   *zap.Logger
}

func NewGeminiService(
	apiKey string,
	modelName string,
	concurrentReqs int,
	quizzes QuizStore,
	redisClient *redis.Client,
	log *zap.Logger,
) (*GeminiService, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	if modelName == "" {
		modelName = DefaultGeminiModel
	}
	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.4)
	model.SetTopP(0.95)
	model.ResponseMIMEType = "application/json"

	s := newGeminiService(model, concurrentReqs, quizzes, redisClient, log)
	s.client = client
	return s, nil
}

func newGeminiService(model textGenerator, concurrentReqs int, quizzes QuizStore, redisClient *redis.Client, log *zap.Logger) *GeminiService {
	if concurrentReqs < 1 {
		concurrentReqs = 1
	}
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &GeminiService{
		model:    model,
		quizzes:  quizzes,
		redis:    redisClient,
		rateChan: rateChan,
		logger:   log.With(zap.String(logger.FieldOperation, "quiz_generation")),
	}
}

func (s *GeminiService) Close() {
	if s.client != nil {
		s.client.Close()
	}
}

// acquireRate blocks until a rate slot is available
func (s *GeminiService) acquireRate(ctx context.Context) error {
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("timeout waiting for Gemini rate slot")
	}
}

func (s *GeminiService) releaseRate() {
	s.rateChan <- struct{}{}
}

// Publish sends an event to the user's channel via Redis pub/sub so that
// whichever instance holds the socket delivers it.
func (s *GeminiService) Publish(ctx context.Context, userID uuid.UUID, evt models.Event) {
	if s.redis == nil {
		return
	}
	if err := websocket.Publish(ctx, s.redis, userID, evt); err != nil {
		s.logger.Warn("failed to publish event",
			zap.String(logger.FieldUserID, userID.String()),
			zap.String("event", evt.EventName()),
			zap.Error(err),
		)
	}
}

// GenerateSkillQuiz fills the quiz referenced by job with generated
// questions.
func (s *GeminiService) GenerateSkillQuiz(ctx context.Context, job *models.Job) error {
	var config models.GenerateQuizRequest
	if err := json.Unmarshal(job.ConfigJSON, &config); err != nil {
		return fmt.Errorf("invalid quiz job config: %w", err)
	}
	if config.Skill == "" {
		return fmt.Errorf("quiz job %s has no skill", job.ID)
	}

	if err := s.acquireRate(ctx); err != nil {
		return err
	}
	defer s.releaseRate()

	resp, err := s.model.GenerateContent(ctx, genai.Text(buildSkillQuizPrompt(config.Skill, config.Type)))
	if err != nil {
		return fmt.Errorf("Gemini API error: %w", err)
	}

	questions, err := parseQuizQuestions(extractText(resp))
	if err != nil {
		return err
	}
	questions = validateQuizQuestions(questions, config.Type)
	if len(questions) == 0 {
		return fmt.Errorf("model returned no usable questions for %q", config.Skill)
	}

	questionsJSON, err := json.Marshal(questions)
	if err != nil {
		return fmt.Errorf("encode questions: %w", err)
	}
	if err := s.quizzes.SaveQuestions(ctx, job.ReferenceID, questionsJSON, len(questions)); err != nil {
		return fmt.Errorf("failed to save questions: %w", err)
	}

	s.logger.Info("quiz generated",
		zap.String(logger.FieldJobID, job.ID.String()),
		zap.String("skill", config.Skill),
		zap.Int("questions", len(questions)),
	)
	return nil
}

// Helper functions

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}

func parseQuizQuestions(rawText string) ([]models.QuizQuestion, error) {
	rawText = strings.TrimSpace(rawText)
	rawText = strings.TrimPrefix(rawText, "```json")
	rawText = strings.TrimPrefix(rawText, "```")
	rawText = strings.TrimSuffix(rawText, "```")
	rawText = strings.TrimSpace(rawText)

	var questions []models.QuizQuestion
	if err := json.Unmarshal([]byte(rawText), &questions); err == nil {
		return questions, nil
	}

	// Try to extract JSON array
	start := strings.Index(rawText, "[")
	end := strings.LastIndex(rawText, "]")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(rawText[start:end+1]), &questions); err == nil {
			return questions, nil
		}
	}
	return nil, fmt.Errorf("could not parse quiz questions from model output")
}

func buildSkillQuizPrompt(skill, quizType string) string {
	var b strings.Builder

	b.WriteString("You are an expert assessor helping peers on a skill-exchange platform check their understanding.\n\n")
	b.WriteString("CRITICAL: Return ONLY a valid JSON array. No preamble, no markdown, no backticks.\n\n")
	b.WriteString(fmt.Sprintf("Skill: %s\n", skill))
	b.WriteString(fmt.Sprintf("Generate exactly %d items: %d of medium difficulty and %d hard.\n", quizQuestionCount, quizMediumCount, quizHardCount))

	if quizType == models.QuizTypeProblem {
		b.WriteString(`
Each item is a small practical problem that can be solved in under 20 minutes.

JSON schema per item:
{"question": "problem statement", "sample_input": "string", "sample_output": "string", "correct_answer": "expected output for the sample input", "explanation": "short solution outline", "difficulty": "medium"|"hard"}
`)
		return b.String()
	}

	b.WriteString(`
Each item is a multiple choice question with exactly 4 options. correct_answer must equal one of the options verbatim.

JSON schema per item:
{"question": "string", "options": ["string"], "correct_answer": "string", "explanation": "string", "difficulty": "medium"|"hard"}
`)
	return b.String()
}

func validateQuizQuestions(questions []models.QuizQuestion, quizType string) []models.QuizQuestion {
	var valid []models.QuizQuestion
	for _, q := range questions {
		if strings.TrimSpace(q.Question) == "" || strings.TrimSpace(q.CorrectAnswer) == "" {
			continue
		}
		if q.Difficulty != "medium" && q.Difficulty != "hard" {
			q.Difficulty = "medium"
		}
		if quizType == models.QuizTypeProblem {
			q.Options = nil
		} else if !containsString(q.Options, q.CorrectAnswer) {
			continue
		}
		valid = append(valid, q)
		if len(valid) == quizQuestionCount {
			break
		}
	}
	return valid
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
