package runner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHTTPRunnerSuccess(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req pistonRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "python", req.Language)
		require.Equal(t, "*", req.Version)
		require.Len(t, req.Files, 1)
		require.Equal(t, "print(1)", req.Files[0].Content)

		w.Write([]byte(`{"run":{"stdout":"1\n","stderr":"","code":0,"signal":null}}`))
	}))
	defer ts.Close()

	res, err := NewHTTPRunner(ts.URL, ts.Client()).Run(context.Background(), Job{ID: "j1", Language: "python", Code: "print(1)"})
	require.NoError(t, err)
	require.Equal(t, "1\n", res.Stdout)
	require.Equal(t, 0, res.ExitCode)
	require.Empty(t, res.Error)
}

func TestHTTPRunnerCompileFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"compile":{"stdout":"","stderr":"main.c:1: error","code":1},"run":{}}`))
	}))
	defer ts.Close()

	res, err := NewHTTPRunner(ts.URL, nil).Run(context.Background(), Job{Language: "c", Code: "int main("})
	require.NoError(t, err)
	require.Equal(t, "compilation failed", res.Error)
	require.Equal(t, "main.c:1: error", res.Stderr)
	require.Equal(t, 1, res.ExitCode)
}

func TestHTTPRunnerErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message":"job queue is full"}`))
	}))
	defer ts.Close()

	_, err := NewHTTPRunner(ts.URL, nil).Run(context.Background(), Job{Language: "python"})
	require.ErrorIs(t, err, ErrUnavailable)
	require.Contains(t, err.Error(), "job queue is full")
}

func TestHTTPRunnerUnknownRuntime(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"brainfuck-9.9.9 runtime is unknown"}`))
	}))
	defer ts.Close()

	_, err := NewHTTPRunner(ts.URL, nil).Run(context.Background(), Job{Language: "brainfuck"})
	require.ErrorIs(t, err, ErrUnsupportedLanguage)
	require.NotErrorIs(t, err, ErrUnavailable)
}

func TestHTTPRunnerTimeout(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewHTTPRunner(ts.URL, nil).Run(ctx, Job{Language: "python"})
	require.ErrorIs(t, err, ErrTimeout)
}
