// Package executor invokes cataloged SDK callables with coerced arguments,
// bounded by timeouts and retried on transient upstream failures.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/toolbridge/sdk-mcp/pkg/catalog"
	"github.com/toolbridge/sdk-mcp/pkg/result"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultMaxRetries  = 2
	defaultBackoffBase = 2.0
	defaultBackoffCap  = 30 * time.Second
)

// Options tune invocation behavior. Zero values fall back to defaults.
type Options struct {
	// Timeout bounds each individual attempt.
	Timeout time.Duration
	// MaxRetries is the number of additional attempts after the first.
	MaxRetries int
	// BackoffBase is the exponential backoff base; the wait before retry n
	// is BackoffBase^n seconds.
	BackoffBase float64
	// BackoffCap limits a single backoff wait.
	BackoffCap time.Duration
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	} else if o.MaxRetries == 0 {
		o.MaxRetries = defaultMaxRetries
	}
	if o.BackoffBase <= 1 {
		o.BackoffBase = defaultBackoffBase
	}
	if o.BackoffCap <= 0 {
		o.BackoffCap = defaultBackoffCap
	}
	return o
}

// Stats is a snapshot of engine counters.
type Stats struct {
	Invocations uint64 `json:"invocations"`
	Retries     uint64 `json:"retries"`
	Failures    uint64 `json:"failures"`
	DryRuns     uint64 `json:"dry_runs"`
}

// JournalEntry records a dry-run that would have invoked a dangerous tool.
type JournalEntry struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args"`
	Time time.Time      `json:"time"`
}

// Engine executes descriptors. It is safe for concurrent use.
type Engine struct {
	opts Options

	// sleep is replaceable in tests to observe backoff without waiting.
	sleep func(ctx context.Context, d time.Duration) error

	invocations atomic.Uint64
	retries     atomic.Uint64
	failures    atomic.Uint64
	dryRuns     atomic.Uint64

	mu      sync.Mutex
	journal []JournalEntry
}

// New creates an engine with the given options.
func New(opts Options) *Engine {
	return &Engine{
		opts:  opts.withDefaults(),
		sleep: sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Invocations: e.invocations.Load(),
		Retries:     e.retries.Load(),
		Failures:    e.failures.Load(),
		DryRuns:     e.dryRuns.Load(),
	}
}

// Journal returns a copy of the recorded dry-run entries.
func (e *Engine) Journal() []JournalEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]JournalEntry, len(e.journal))
	copy(out, e.journal)
	return out
}

// Execute coerces args and invokes the descriptor's callable. A dry run
// validates and coerces the arguments but never invokes the target; it returns
// a synthetic payload describing what would have run.
func (e *Engine) Execute(ctx context.Context, d *catalog.Descriptor, args map[string]any, dryRun bool) *result.Invocation {
	start := time.Now()
	inv := e.execute(ctx, d, args, dryRun)
	inv.Duration = time.Since(start)
	if inv.Failure != nil {
		e.failures.Add(1)
	}
	return inv
}

func (e *Engine) execute(ctx context.Context, d *catalog.Descriptor, args map[string]any, dryRun bool) *result.Invocation {
	frame, failure := coerceArgs(d, args)
	if failure != nil {
		return result.Fail(failure)
	}

	if dryRun {
		coerced := coercedArgs(d, frame, args)
		e.dryRuns.Add(1)
		e.mu.Lock()
		e.journal = append(e.journal, JournalEntry{Tool: d.Name, Args: coerced, Time: time.Now()})
		e.mu.Unlock()
		inv := result.Success(map[string]any{
			"would_invoke": d.Name,
			"class":        string(d.Class),
			"args":         coerced,
		})
		inv.DryRun = true
		return inv
	}

	var last *result.Failure
	for attempt := 0; attempt <= e.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			e.retries.Add(1)
			if err := e.sleep(ctx, e.backoff(attempt-1)); err != nil {
				return result.Fail(result.NewFailure(result.KindTimeout, result.OriginExecution,
					"%s: cancelled while waiting to retry", d.Name))
			}
		}

		value, err := e.invoke(ctx, d, frame)
		e.invocations.Add(1)
		if err == nil {
			return result.Success(value)
		}

		last = classify(d, err)
		if !last.Retryable() {
			return result.Fail(last)
		}
		slog.Debug("transient failure, will retry",
			"tool", d.Name, "attempt", attempt+1, "err", err)
	}

	if last.Kind == result.KindTransientFailure {
		last = result.NewFailure(result.KindPermanentFailure, result.OriginExecution,
			"%s: gave up after %d attempts: %s", d.Name, e.opts.MaxRetries+1, last.Message)
	}
	return result.Fail(last)
}

func (e *Engine) backoff(n int) time.Duration {
	wait := time.Duration(math.Pow(e.opts.BackoffBase, float64(n)) * float64(time.Second))
	if wait > e.opts.BackoffCap {
		wait = e.opts.BackoffCap
	}
	return wait
}

// invoke runs one attempt under the per-attempt timeout. Context-aware
// callables are cancelled cooperatively; others run in a goroutine that is
// abandoned on timeout, since a plain Go call cannot be interrupted.
func (e *Engine) invoke(ctx context.Context, d *catalog.Descriptor, frame []reflect.Value) (value any, err error) {
	attemptCtx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	if d.AcceptsContext {
		in := append([]reflect.Value{reflect.ValueOf(attemptCtx)}, frame...)
		return callSafely(d, in)
	}

	type outcome struct {
		value any
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		v, callErr := callSafely(d, frame)
		done <- outcome{value: v, err: callErr}
	}()

	select {
	case <-attemptCtx.Done():
		return nil, attemptCtx.Err()
	case out := <-done:
		return out.value, out.err
	}
}

// callSafely performs the reflect call, turning panics in SDK code into
// errors. A panicking target is never retried.
func callSafely(d *catalog.Descriptor, in []reflect.Value) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{tool: d.Name, cause: r}
		}
	}()

	out := d.Func().Call(in)
	return splitReturns(out)
}

// splitReturns separates a trailing error return from the value returns.
func splitReturns(out []reflect.Value) (any, error) {
	if len(out) > 0 {
		last := out[len(out)-1]
		if last.Type() == errType {
			if !last.IsNil() {
				return nil, last.Interface().(error)
			}
			out = out[:len(out)-1]
		}
	}
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		return out[0].Interface(), nil
	}
	values := make([]any, len(out))
	for i, v := range out {
		values[i] = v.Interface()
	}
	return values, nil
}

var errType = reflect.TypeOf((*error)(nil)).Elem()

type panicError struct {
	tool  string
	cause any
}

func (p *panicError) Error() string {
	return fmt.Sprintf("%s panicked: %v", p.tool, p.cause)
}

// Message fragments that mark an upstream error as transient. Matching is
// deliberately coarse; SDKs rarely expose typed errors for these conditions.
var transientMarkers = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"i/o timeout",
	"tls handshake timeout",
	"temporarily unavailable",
	"service unavailable",
	"too many requests",
	"bad gateway",
	"gateway timeout",
	"internal server error",
	"status 429",
	"status 500",
	"status 502",
	"status 503",
	"status 504",
	"unexpected eof",
}

func classify(d *catalog.Descriptor, err error) *result.Failure {
	var p *panicError
	if errors.As(err, &p) {
		return result.NewFailure(result.KindInternal, result.OriginExecution, "%s", p.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return result.NewFailure(result.KindTimeout, result.OriginExecution,
			"%s did not complete in time", d.Name).
			WithHint("raise the execution timeout or narrow the request")
	}
	if errors.Is(err, context.Canceled) {
		return result.NewFailure(result.KindTimeout, result.OriginExecution,
			"%s was cancelled", d.Name)
	}

	if transient(err) {
		return result.NewFailure(result.KindTransientFailure, result.OriginExecution,
			"%s: %v", d.Name, err)
	}
	return result.NewFailure(result.KindPermanentFailure, result.OriginExecution,
		"%s: %v", d.Name, err)
}

func transient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
