package model

import (
	"time"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// TestCase comparison is exact-match on trimmed output; there is no
// semantic diffing.
type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
}

type Challenge struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Slug        string     `json:"slug"`
	Description string     `json:"description"`
	Difficulty  Difficulty `json:"difficulty"`
	Points      int        `json:"points"`
	Languages   []string   `json:"languages,omitempty"` // empty = all supported runtimes
	TestCases   []TestCase `json:"test_cases,omitempty"`
	IsDaily     bool       `json:"is_daily"`
	PublishDate *time.Time `json:"publish_date,omitempty"`
	CreatedByID *string    `json:"created_by_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// PointValue returns the configured points, falling back to the
// difficulty default when unset.
func (c *Challenge) PointValue() int {
	if c.Points > 0 {
		return c.Points
	}
	switch c.Difficulty {
	case DifficultyEasy:
		return 25
	case DifficultyMedium:
		return 50
	case DifficultyHard:
		return 100
	}
	return 50
}

// AllowsLanguage reports whether submissions in the given language are
// accepted for this challenge. An empty list allows every runtime.
func (c *Challenge) AllowsLanguage(language string) bool {
	if len(c.Languages) == 0 {
		return true
	}
	for _, l := range c.Languages {
		if l == language {
			return true
		}
	}
	return false
}
