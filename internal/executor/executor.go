// Package executor runs a post's code in an isolated sandbox.
package executor

import (
	"context"
	"strings"
	"time"

	"github.com/sakif/codeshare/internal/apperror"
)

// Language is a runtime the sandbox can execute.
type Language string

const (
	Python     Language = "python"
	JavaScript Language = "javascript"
)

// ParseLanguage maps the free-form programmingLanguage of a post onto a
// runtime. Unknown languages are a validation error.
func ParseLanguage(s string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "python", "python3", "py":
		return Python, nil
	case "javascript", "js", "node", "nodejs":
		return JavaScript, nil
	}
	return "", apperror.ValidationFailed("programmingLanguage", "Running "+s+" code is not supported")
}

// ExecutionRequest is one program to run.
type ExecutionRequest struct {
	Language Language `json:"language"`
	Code     string   `json:"code"`
}

// ExecutionResult is the output and status of a run.
type ExecutionResult struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exitCode"`
	Duration time.Duration `json:"duration"`
	TimedOut bool          `json:"timedOut"`
}

// Executor runs code in an isolated environment.
type Executor interface {
	Execute(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error)
}
