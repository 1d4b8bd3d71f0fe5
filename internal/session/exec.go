package session

import (
	"context"
	"errors"
	"log"

	"codepair/internal/runner"

	"github.com/google/uuid"
)

type runOutcome struct {
	connID string
	jobID  string
	result runner.Result
	err    error
}

// runCode forwards the job to the sandbox on its own goroutine so the loop
// keeps serving other rooms. The result goes back to the requester only.
func (h *Hub) runCode(c *Client, roomID, language, code string) error {
	if _, err := h.memberRoom(c, roomID); err != nil {
		return err
	}

	job := runner.Job{ID: uuid.NewString(), Language: language, Code: code}
	connID := c.ID

	// The requester always hears back, even when nothing was run.
	if !validLanguage(language) {
		h.send(c, encode(EvRunResult, resultPayload(runOutcome{jobID: job.ID, err: runner.ErrUnsupportedLanguage})))
		return nil
	}
	if h.runner == nil {
		h.send(c, encode(EvRunResult, resultPayload(runOutcome{jobID: job.ID, err: runner.ErrUnavailable})))
		return nil
	}

	log.Printf("[HUB] run %s (%s) requested by %s", job.ID, language, connID)
	go func() {
		ctx, cancel := context.WithTimeout(h.ctx, h.runTimeout)
		defer cancel()

		res, err := h.runner.Run(ctx, job)
		if errors.Is(err, context.DeadlineExceeded) {
			err = runner.ErrTimeout
		}
		if err != nil {
			log.Printf("❌ [HUB] run %s: %v", job.ID, err)
		}

		select {
		case h.results <- runOutcome{connID: connID, jobID: job.ID, result: res, err: err}:
		case <-h.done:
		}
	}()
	return nil
}

// deliverResult runs on the loop. A requester that disconnected meanwhile
// simply never sees its result.
func (h *Hub) deliverResult(out runOutcome) {
	c, ok := h.clients[out.connID]
	if !ok {
		log.Printf("[HUB] run %s finished after %s left, result dropped", out.jobID, out.connID)
		return
	}
	h.send(c, encode(EvRunResult, resultPayload(out)))
}

func resultPayload(out runOutcome) runResultOut {
	if out.err != nil {
		msg := "execution failed"
		switch {
		case errors.Is(out.err, runner.ErrTimeout):
			msg = runner.ErrTimeout.Error()
		case errors.Is(out.err, runner.ErrUnavailable):
			msg = runner.ErrUnavailable.Error()
		}
		return runResultOut{RequestID: out.jobID, ExitCode: -1, Error: msg}
	}

	res := out.result
	return runResultOut{
		RequestID: out.jobID,
		Output:    res.Stdout + res.Stderr,
		ExitCode:  res.ExitCode,
		Error:     res.Error,
	}
}
