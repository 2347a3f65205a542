package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/relaydb/queue/clock"
	"github.com/relaydb/queue/jobrow"
	"github.com/relaydb/queue/joblog"
	"github.com/relaydb/queue/resolver"
	"github.com/relaydb/queue/retry"
)

// MaxPayloadDepth bounds the nesting depth accepted when decoding a job's
// JSON payload.
const MaxPayloadDepth = 512

// ErrPayloadTooDeep is returned by decodePayload when a payload's JSON
// nesting exceeds MaxPayloadDepth.
var ErrPayloadTooDeep = errors.New("queue: payload exceeds max nesting depth")

// OutcomeKind tags the result of one execution attempt, so settlement is
// an explicit match rather than error-driven control flow.
type OutcomeKind int

const (
	// OutcomeCompleted means the handler returned nil.
	OutcomeCompleted OutcomeKind = iota
	// OutcomeRetry means the handler failed but attempts remain.
	OutcomeRetry
	// OutcomeTerminal means the handler failed and attempts are
	// exhausted, or the job could not be resolved/decoded at all.
	OutcomeTerminal
)

// Outcome is the tagged result of JobExecutor.Execute's handler-invocation
// step, before settlement.
type Outcome struct {
	Kind       OutcomeKind
	Err        error
	StackTrace string
}

// JobExecutor runs one reserved job under its own timeout, times it,
// captures a coarse memory delta, and settles it against the Store.
type JobExecutor struct {
	Store    Store
	Resolver resolver.Resolver
	Clock    clock.Clock
	Log      *slog.Logger
}

// NewJobExecutor constructs a JobExecutor. A nil Clock defaults to
// clock.System{}.
func NewJobExecutor(store Store, res resolver.Resolver, cl clock.Clock, log *slog.Logger) *JobExecutor {
	if cl == nil {
		cl = clock.System{}
	}
	return &JobExecutor{Store: store, Resolver: res, Clock: cl, Log: log}
}

func decodePayload(data []byte, maxDepth int) (map[string]any, error) {
	if len(data) == 0 {
		return map[string]any{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	depth := 0
	maxSeen := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '{', '[':
				depth++
				if depth > maxSeen {
					maxSeen = depth
				}
			case '}', ']':
				depth--
			}
		}
	}
	if maxSeen > maxDepth {
		return nil, ErrPayloadTooDeep
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Execute resolves row.Task, decodes row.Payload, runs the handler under a
// deadline of row.Timeout, and settles the row against the Store
// (complete / retry / terminal).
func (e *JobExecutor) Execute(ctx context.Context, row *jobrow.Job) Outcome {
	handler, err := e.Resolver.Resolve(row.Task)
	if err != nil {
		out := Outcome{Kind: OutcomeTerminal, Err: err}
		e.settleTerminal(ctx, row, out)
		e.writeLog(ctx, row, joblog.LevelError, "job failed terminally", 0, 0, out.Err)
		return out
	}

	payload, err := decodePayload(row.Payload, MaxPayloadDepth)
	if err != nil {
		out := Outcome{Kind: OutcomeTerminal, Err: fmt.Errorf("decode payload: %w", err)}
		e.settleTerminal(ctx, row, out)
		e.writeLog(ctx, row, joblog.LevelError, "job failed terminally", 0, 0, out.Err)
		return out
	}

	start := e.Clock.Now()
	var memStart runtime.MemStats
	runtime.ReadMemStats(&memStart)

	deadline, cancel := context.WithTimeout(ctx, row.Timeout)
	defer cancel()

	out := e.run(deadline, handler, payload)
	if out.Kind == OutcomeRetry && row.Attempts >= row.MaxAttempts {
		out.Kind = OutcomeTerminal
	}

	elapsed := e.Clock.Now().Sub(start)
	var memEnd runtime.MemStats
	runtime.ReadMemStats(&memEnd)
	memDelta := int64(memEnd.Alloc) - int64(memStart.Alloc)

	switch out.Kind {
	case OutcomeCompleted:
		if err := e.Store.Complete(ctx, row.Id); err != nil {
			e.Log.Error("cannot complete job", "id", row.Id, "err", err)
		}
		e.Log.Info("job completed", "id", row.Id, "task", row.Task,
			"elapsed_ms", elapsed.Milliseconds(), "mem_delta_bytes", memDelta)
		e.writeLog(ctx, row, joblog.LevelInfo, "job completed", elapsed, memDelta, nil)
	case OutcomeRetry:
		e.settleRetry(ctx, row, out)
		e.writeLog(ctx, row, joblog.LevelWarn, "job failed, retry scheduled", elapsed, memDelta, out.Err)
	case OutcomeTerminal:
		e.settleTerminal(ctx, row, out)
		e.writeLog(ctx, row, joblog.LevelError, "job failed terminally", elapsed, memDelta, out.Err)
	}
	return out
}

// writeLog persists one job_logs row carrying the attempt's elapsed time
// and memory delta. Best-effort: a logging failure never changes the
// outcome of the job it describes.
func (e *JobExecutor) writeLog(ctx context.Context, row *jobrow.Job, level joblog.Level, msg string, elapsed time.Duration, memDelta int64, cause error) {
	entry := joblog.LogEntry{
		JobId:            row.Id,
		Queue:            row.Queue,
		Level:            level,
		Message:          msg,
		ElapsedMillis:    elapsed.Milliseconds(),
		MemoryDeltaBytes: memDelta,
	}
	if cause != nil {
		entry.Context = map[string]any{"error": cause.Error()}
	}
	if err := e.Store.WriteLog(context.WithoutCancel(ctx), entry); err != nil {
		e.Log.Warn("cannot write job log", "id", row.Id, "err", err)
	}
}

func (e *JobExecutor) run(ctx context.Context, h resolver.Handler, payload map[string]any) Outcome {
	type result struct {
		err        error
		stackTrace string
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("handler panic: %v", r), stackTrace: string(debug.Stack())}
			}
		}()
		done <- result{err: h.Handle(ctx, payload)}
	}()

	select {
	case res := <-done:
		if res.err == nil {
			return Outcome{Kind: OutcomeCompleted}
		}
		return Outcome{Kind: OutcomeRetry, Err: res.err, StackTrace: res.stackTrace}
	case <-ctx.Done():
		// The deadline fired. An uncooperative handler keeps running in
		// its goroutine; its eventual result is discarded. The lease
		// (ReservedAt+Timeout+grace) is the backstop that lets the
		// janitor recover the row if the handler never returns.
		return Outcome{Kind: OutcomeRetry, Err: fmt.Errorf("handler timeout after %s", ctx.Err())}
	}
}

func (e *JobExecutor) settleRetry(ctx context.Context, row *jobrow.Job, out Outcome) {
	if row.Attempts < row.MaxAttempts {
		delay := retry.Schedule(row.BackoffStrategy, row.RetryDelay, row.Attempts)
		next := e.Clock.Now().Add(delay)
		if err := e.Store.FailRetry(ctx, row.Id, out.Err.Error(), next); err != nil {
			e.Log.Error("cannot schedule retry", "id", row.Id, "err", err)
		}
		e.Log.Warn("job failed, retry scheduled", "id", row.Id, "task", row.Task,
			"attempt", row.Attempts, "next_available_at", next, "err", out.Err)
		return
	}
	e.settleTerminal(ctx, row, Outcome{Kind: OutcomeTerminal, Err: out.Err, StackTrace: out.StackTrace})
}

func (e *JobExecutor) settleTerminal(ctx context.Context, row *jobrow.Job, out Outcome) {
	msg := "unknown error"
	if out.Err != nil {
		msg = out.Err.Error()
	}
	if err := e.Store.FailTerminal(ctx, row.Id, msg, out.StackTrace); err != nil {
		e.Log.Error("cannot move job to dead letter", "id", row.Id, "err", err)
	}
	e.Log.Error("job failed terminally", "id", row.Id, "task", row.Task, "err", msg)
}

// ExecuteSync is the fast path used by QueueManager.Add when queueing is
// disabled: resolve, invoke, report success/failure. Errors are logged,
// never retried, never persisted.
func (e *JobExecutor) ExecuteSync(ctx context.Context, task string, payload map[string]any) bool {
	handler, err := e.Resolver.Resolve(task)
	if err != nil {
		e.Log.Error("sync exec: resolve failed", "task", task, "err", err)
		return false
	}
	if err := handler.Handle(ctx, payload); err != nil {
		e.Log.Error("sync exec: handler failed", "task", task, "err", err)
		return false
	}
	return true
}
