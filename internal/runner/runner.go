// Package runner talks to the sandbox that actually executes user code.
// Nothing here runs code locally.
package runner

import (
	"context"
	"errors"
)

var (
	ErrTimeout     = errors.New("execution timed out")
	ErrUnavailable = errors.New("execution service unavailable")

	// ErrUnsupportedLanguage means the sandbox has no runtime for the job.
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

type Job struct {
	ID       string `json:"id"`
	Language string `json:"language"`
	Code     string `json:"code"`
}

type Result struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exitCode"`
	// Error is set by the sandbox when the job never ran (e.g. compile failure).
	Error string `json:"error,omitempty"`
}

type Executor interface {
	Run(ctx context.Context, job Job) (Result, error)
}

// ExecutorFunc adapts a plain function to Executor.
type ExecutorFunc func(ctx context.Context, job Job) (Result, error)

func (f ExecutorFunc) Run(ctx context.Context, job Job) (Result, error) {
	return f(ctx, job)
}
