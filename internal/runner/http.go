package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HTTPRunner posts jobs to a Piston-compatible execute endpoint.
type HTTPRunner struct {
	url    string
	client *http.Client
}

func NewHTTPRunner(url string, client *http.Client) *HTTPRunner {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPRunner{url: url, client: client}
}

type pistonFile struct {
	Content string `json:"content"`
}

type pistonRequest struct {
	Language string       `json:"language"`
	Version  string       `json:"version"`
	Files    []pistonFile `json:"files"`
}

type pistonStage struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
	Code   *int   `json:"code"`
	Signal string `json:"signal"`
}

type pistonResponse struct {
	Run     pistonStage  `json:"run"`
	Compile *pistonStage `json:"compile,omitempty"`
	Message string       `json:"message,omitempty"`
}

func (r *HTTPRunner) Run(ctx context.Context, job Job) (Result, error) {
	body, err := json.Marshal(pistonRequest{
		Language: job.Language,
		Version:  "*",
		Files:    []pistonFile{{Content: job.Code}},
	})
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Result{}, ErrTimeout
		}
		return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	var pr pistonResponse
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&pr)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Piston answers 400 "<lang>-<version> runtime is unknown".
		if resp.StatusCode == http.StatusBadRequest && decodeErr == nil && strings.Contains(pr.Message, "runtime is unknown") {
			return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, pr.Message)
		}
		if decodeErr == nil && pr.Message != "" {
			return Result{}, fmt.Errorf("%w: %s", ErrUnavailable, pr.Message)
		}
		return Result{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if decodeErr != nil {
		return Result{}, fmt.Errorf("decode runner response: %w", decodeErr)
	}

	if pr.Compile != nil && pr.Compile.Code != nil && *pr.Compile.Code != 0 {
		return Result{
			Stdout:   pr.Compile.Stdout,
			Stderr:   pr.Compile.Stderr,
			ExitCode: *pr.Compile.Code,
			Error:    "compilation failed",
		}, nil
	}

	res := Result{Stdout: pr.Run.Stdout, Stderr: pr.Run.Stderr}
	if pr.Run.Code != nil {
		res.ExitCode = *pr.Run.Code
	}
	if pr.Run.Signal != "" {
		res.Error = "killed by " + pr.Run.Signal
		if res.ExitCode == 0 {
			res.ExitCode = -1
		}
	}
	return res, nil
}
