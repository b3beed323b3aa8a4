package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	QuizTypeQuiz    = "quiz"
	QuizTypeProblem = "problem"

	QuizStatusPending = "pending"
	QuizStatusReady   = "ready"
	QuizStatusFailed  = "failed"
)

type Quiz struct {
	ID            uuid.UUID       `json:"id"`
	UserID        uuid.UUID       `json:"user_id"`
	Skill         string          `json:"skill"`
	Type          string          `json:"type"`
	Status        string          `json:"status"`
	QuestionsJSON json.RawMessage `json:"questions"`
	QuestionCount int             `json:"question_count"`
	CreatedAt     time.Time       `json:"created_at"`
}

type GenerateQuizRequest struct {
	Skill string `json:"skill" validate:"required,max=100"`
	Type  string `json:"type" validate:"required,oneof=quiz problem"`
}

// QuizQuestion covers both multiple-choice questions and coding problems.
// Problems carry sample input/output and use CorrectAnswer as the expected
// output.
type QuizQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options,omitempty"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation,omitempty"`
	Difficulty    string   `json:"difficulty"`
	SampleInput   string   `json:"sample_input,omitempty"`
	SampleOutput  string   `json:"sample_output,omitempty"`
}

type SubmitQuizRequest struct {
	Answers []string `json:"answers" validate:"required"`
}

type QuestionResult struct {
	Index         int    `json:"index"`
	Answer        string `json:"answer"`
	CorrectAnswer string `json:"correct_answer"`
	Correct       bool   `json:"correct"`
}

type QuizResult struct {
	QuizID     uuid.UUID        `json:"quiz_id"`
	Score      int              `json:"score"`
	Total      int              `json:"total"`
	Percentage float64          `json:"percentage"`
	Results    []QuestionResult `json:"results"`
}
