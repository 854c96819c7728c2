// Package evaluator runs a submission against a challenge's ordered test
// cases and records per-case verdicts. Cases run sequentially so an
// infrastructure failure can short-circuit the remaining calls.
package evaluator

import (
	"context"
	"strings"

	"codeclash/internal/app/executor"
	"codeclash/internal/domain/model"

	"github.com/rs/zerolog"
)

// Result holds the per-case verdicts for one submission. Failure is empty
// when every case was attempted without infrastructure failure; the
// scorer derives the final status from the individual results.
type Result struct {
	Results     []model.TestResult
	WorstTimeMs int
	Failure     model.SubmissionStatus
	ErrorText   string
}

// AllPassed reports whether every attempted case passed and none were
// skipped.
func (r *Result) AllPassed(total int) bool {
	if r.Failure != "" || len(r.Results) != total {
		return false
	}
	for _, tr := range r.Results {
		if !tr.Passed {
			return false
		}
	}
	return true
}

// PassedCount returns the number of passing cases.
func (r *Result) PassedCount() int {
	n := 0
	for _, tr := range r.Results {
		if tr.Passed {
			n++
		}
	}
	return n
}

type Evaluator struct {
	exec executor.Client
	log  zerolog.Logger
}

func New(exec executor.Client, log zerolog.Logger) *Evaluator {
	return &Evaluator{exec: exec, log: log}
}

// Evaluate runs the test cases in their authored order. A wrong answer is
// recorded and evaluation continues; a compilation/runtime/service
// failure stops immediately and the remaining cases are never attempted.
func (e *Evaluator) Evaluate(ctx context.Context, code, language string, cases []model.TestCase) (*Result, error) {
	result := &Result{}

	for i, tc := range cases {
		outcome, err := e.exec.Execute(ctx, code, language, tc.Input)
		if err != nil {
			return nil, err
		}

		if outcome.TimeMs > result.WorstTimeMs {
			result.WorstTimeMs = outcome.TimeMs
		}

		if outcome.Kind != executor.KindSuccess {
			result.Results = append(result.Results, model.TestResult{
				Index:           i,
				Input:           tc.Input,
				ExpectedOutput:  tc.ExpectedOutput,
				Passed:          false,
				ExecutionTimeMs: outcome.TimeMs,
				Error:           outcome.ErrorText,
			})
			result.Failure = statusForKind(outcome.Kind)
			result.ErrorText = outcome.ErrorText
			e.log.Debug().Int("case", i).Str("kind", string(outcome.Kind)).Msg("evaluation stopped on infrastructure failure")
			return result, nil
		}

		passed := normalizeOutput(outcome.Stdout) == normalizeOutput(tc.ExpectedOutput)
		result.Results = append(result.Results, model.TestResult{
			Index:           i,
			Input:           tc.Input,
			ExpectedOutput:  tc.ExpectedOutput,
			ActualOutput:    outcome.Stdout,
			Passed:          passed,
			ExecutionTimeMs: outcome.TimeMs,
		})
	}

	return result, nil
}

func statusForKind(kind executor.OutcomeKind) model.SubmissionStatus {
	switch kind {
	case executor.KindCompilationError:
		return model.StatusCompilationError
	case executor.KindRuntimeError:
		return model.StatusRuntimeError
	case executor.KindTimeLimitExceeded:
		return model.StatusTimeLimitExceeded
	default:
		return model.StatusServiceUnavailable
	}
}

func normalizeOutput(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\r\n", "\n"))
}
