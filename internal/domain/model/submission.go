package model

import "time"

type SubmissionStatus string

const (
	StatusAccepted           SubmissionStatus = "accepted"
	StatusWrongAnswer        SubmissionStatus = "wrong_answer"
	StatusCompilationError   SubmissionStatus = "compilation_error"
	StatusRuntimeError       SubmissionStatus = "runtime_error"
	StatusTimeLimitExceeded  SubmissionStatus = "time_limit_exceeded"
	StatusServiceUnavailable SubmissionStatus = "service_unavailable"
)

// Submission is append-only: corrections are new submissions, never
// in-place edits. Exactly one of ChallengeID/BattleID is set on the
// challenges path; battle submissions carry both the battle and its
// linked challenge.
type Submission struct {
	ID          string           `json:"id"`
	UserID      string           `json:"user_id"`
	ChallengeID *string          `json:"challenge_id,omitempty"`
	BattleID    *string          `json:"battle_id,omitempty"`
	Language    string           `json:"language"`
	Code        string           `json:"code"`
	Status      SubmissionStatus `json:"status"`
	Score       int              `json:"score"`
	TestResults []TestResult     `json:"test_results,omitempty"`
	SubmittedAt time.Time        `json:"submitted_at"`
}

type TestResult struct {
	Index           int    `json:"index"`
	Input           string `json:"input"`
	ExpectedOutput  string `json:"expected_output"`
	ActualOutput    string `json:"actual_output"`
	Passed          bool   `json:"passed"`
	ExecutionTimeMs int    `json:"execution_time_ms"`
	Error           string `json:"error,omitempty"`
}
