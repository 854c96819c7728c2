// Package executor talks to the external code-execution service. It is
// the only component that leaves the process during an evaluation, and it
// normalizes the service's heterogeneous success/failure shapes into a
// single Outcome type the evaluator can consume.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"codeclash/internal/common"

	"github.com/rs/zerolog"
)

type OutcomeKind string

const (
	KindSuccess            OutcomeKind = "success"
	KindCompilationError   OutcomeKind = "compilation_error"
	KindRuntimeError       OutcomeKind = "runtime_error"
	KindTimeLimitExceeded  OutcomeKind = "time_limit_exceeded"
	KindServiceUnavailable OutcomeKind = "service_unavailable"
)

// Outcome is the normalized result of one execution attempt.
type Outcome struct {
	Stdout    string
	ErrorText string
	TimeMs    int
	Kind      OutcomeKind
}

type Client interface {
	Execute(ctx context.Context, code, language, stdin string) (*Outcome, error)
}

type Options struct {
	BaseURL          string
	CompileTimeoutMs int
	RunTimeoutMs     int
	RetryBackoff     time.Duration
	MaxCodeLength    int
}

type httpClient struct {
	opts Options
	http *http.Client
	log  zerolog.Logger
}

func NewHTTPClient(opts Options, log zerolog.Logger) Client {
	if opts.RetryBackoff == 0 {
		opts.RetryBackoff = 250 * time.Millisecond
	}
	if opts.MaxCodeLength == 0 {
		opts.MaxCodeLength = 50000
	}
	total := time.Duration(opts.CompileTimeoutMs+opts.RunTimeoutMs)*time.Millisecond + 10*time.Second
	return &httpClient{
		opts: opts,
		http: &http.Client{Timeout: total},
		log:  log,
	}
}

type executeRequest struct {
	Language       string        `json:"language"`
	Version        string        `json:"version"`
	Files          []executeFile `json:"files"`
	Stdin          string        `json:"stdin"`
	CompileTimeout int           `json:"compile_timeout"`
	RunTimeout     int           `json:"run_timeout"`
}

type executeFile struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

type executeResponse struct {
	Compile *stageResult `json:"compile,omitempty"`
	Run     *stageResult `json:"run,omitempty"`
}

type stageResult struct {
	Code   int     `json:"code"`
	Stdout string  `json:"stdout"`
	Stderr string  `json:"stderr"`
	Signal string  `json:"signal,omitempty"`
	Time   float64 `json:"time"`
}

func (c *httpClient) Execute(ctx context.Context, code, language, stdin string) (*Outcome, error) {
	if len(code) > c.opts.MaxCodeLength {
		return nil, fmt.Errorf("code exceeds maximum length of %d characters: %w", c.opts.MaxCodeLength, common.ErrValidation)
	}
	version, ok := RuntimeVersion(language)
	if !ok {
		return nil, fmt.Errorf("unsupported language %q: %w", language, common.ErrValidation)
	}

	req := executeRequest{
		Language:       language,
		Version:        version,
		Files:          []executeFile{{Name: fileNameFor(language), Content: code}},
		Stdin:          NormalizeStdin(stdin),
		CompileTimeout: c.opts.CompileTimeoutMs,
		RunTimeout:     c.opts.RunTimeoutMs,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal execute request: %w", err)
	}

	start := time.Now()
	resp, err := c.post(ctx, body)
	if err != nil {
		// One retry after a short fixed backoff, then degrade gracefully.
		c.log.Warn().Err(err).Str("language", language).Msg("execution call failed, retrying")
		select {
		case <-time.After(c.opts.RetryBackoff):
		case <-ctx.Done():
			return &Outcome{Kind: KindServiceUnavailable, ErrorText: ctx.Err().Error()}, nil
		}
		resp, err = c.post(ctx, body)
	}
	if err != nil {
		c.log.Error().Err(err).Str("language", language).Msg("execution service unavailable")
		return &Outcome{
			Kind:      KindServiceUnavailable,
			ErrorText: err.Error(),
			TimeMs:    int(time.Since(start).Milliseconds()),
		}, nil
	}

	return classify(resp, start), nil
}

func (c *httpClient) post(ctx context.Context, body []byte) (*executeResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build execute request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute call: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, fmt.Errorf("execute call returned status %d", httpResp.StatusCode)
	}

	var resp executeResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		// Malformed response is an infrastructure failure, not a code defect.
		return nil, fmt.Errorf("decode execute response: %w", err)
	}
	return &resp, nil
}

func classify(resp *executeResponse, start time.Time) *Outcome {
	if resp.Compile != nil && resp.Compile.Code != 0 {
		return &Outcome{
			Kind:      KindCompilationError,
			ErrorText: resp.Compile.Stderr,
			TimeMs:    int(time.Since(start).Milliseconds()),
		}
	}
	if resp.Run == nil {
		return &Outcome{
			Kind:      KindServiceUnavailable,
			ErrorText: "execution service returned no run result",
			TimeMs:    int(time.Since(start).Milliseconds()),
		}
	}

	timeMs := int(resp.Run.Time)
	if timeMs == 0 {
		timeMs = int(time.Since(start).Milliseconds())
	}

	run := resp.Run
	// SIGKILL (exit 137) means the sandbox killed the process at the run
	// timeout.
	if run.Signal == "SIGKILL" || run.Code == 137 {
		return &Outcome{Kind: KindTimeLimitExceeded, ErrorText: run.Stderr, TimeMs: timeMs}
	}
	if run.Code != 0 {
		errText := run.Stderr
		if run.Signal != "" {
			errText = fmt.Sprintf("%s (signal: %s)", errText, run.Signal)
		}
		return &Outcome{Kind: KindRuntimeError, ErrorText: errText, TimeMs: timeMs}
	}

	return &Outcome{Kind: KindSuccess, Stdout: run.Stdout, TimeMs: timeMs}
}

// NormalizeStdin canonicalizes line endings and unescapes literal
// newline/tab sequences. Challenge authors sometimes store test-case
// input with escape sequences instead of real control characters.
func NormalizeStdin(stdin string) string {
	s := strings.ReplaceAll(stdin, "\r\n", "\n")
	s = strings.ReplaceAll(s, `\n`, "\n")
	s = strings.ReplaceAll(s, `\t`, "\t")
	return s
}

func fileNameFor(language string) string {
	switch language {
	case "python":
		return "main.py"
	case "javascript":
		return "main.js"
	case "typescript":
		return "main.ts"
	case "java":
		return "Main.java"
	case "c":
		return "main.c"
	case "cpp":
		return "main.cpp"
	case "csharp":
		return "Main.cs"
	case "go":
		return "main.go"
	case "rust":
		return "main.rs"
	case "ruby":
		return "main.rb"
	}
	return "main.txt"
}
