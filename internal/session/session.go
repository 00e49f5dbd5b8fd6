// Package session owns the recognition adapter for the listen process and
// bridges its notifications to the engine.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/rbright/hark/internal/fsm"
	"github.com/rbright/hark/internal/ipc"
	"github.com/rbright/hark/internal/observe"
	"github.com/rbright/hark/internal/recognizer"
)

var (
	// ErrNotRunning indicates a command arrived outside Run.
	ErrNotRunning = errors.New("listener is not running")
	// ErrRunning indicates Run was called while a previous Run is active.
	ErrRunning = errors.New("listener already running")
)

// Recognizer is the adapter surface the controller drives.
type Recognizer interface {
	CreateRecognizer()
	DestroyRecognizer()
	StartRecognizing()
	State() fsm.State
	Generation() uint64
	HasHandle() bool
}

// ResultHook receives each recognized text after it is queued.
type ResultHook interface {
	Run(context.Context, string) error
}

// Options configure a Controller. Zero values are usable.
type Options struct {
	QueueSize int
	Hook      ResultHook
	Metrics   *observe.Metrics
	Now       func() time.Time
}

// Result summarizes one Run invocation.
type Result struct {
	StartedAt   time.Time
	FinishedAt  time.Time
	Results     int
	Errors      int
	Recreations int
	Dropped     int
	Err         error
}

// Controller implements recognizer.Listener and serves engine commands.
type Controller struct {
	logger     *slog.Logger
	recognizer Recognizer
	hook       ResultHook
	metrics    *observe.Metrics
	now        func() time.Time

	// lifecycle orders Run setup and teardown against engine start, stop and
	// restart commands. Listener callbacks never take it.
	lifecycle sync.Mutex

	mu      sync.Mutex
	running bool
	pool    *workerpool.WorkerPool
	queue   *queue
	stats   Result
}

// NewController constructs a controller around rec.
func NewController(logger *slog.Logger, rec Recognizer, opts Options) *Controller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.Metrics == nil {
		opts.Metrics = observe.Discard()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Controller{
		logger:     logger,
		recognizer: rec,
		hook:       opts.Hook,
		metrics:    opts.Metrics,
		now:        opts.Now,
		queue:      newQueue(opts.QueueSize),
	}
}

// Run creates the recognizer, blocks until ctx is done, then destroys it.
// Pending result hooks finish before Run returns.
func (c *Controller) Run(ctx context.Context) Result {
	c.lifecycle.Lock()
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		c.lifecycle.Unlock()
		return Result{StartedAt: c.now(), FinishedAt: c.now(), Err: ErrRunning}
	}
	c.running = true
	c.stats = Result{StartedAt: c.now()}
	if c.hook != nil {
		c.pool = workerpool.New(1)
	}
	c.mu.Unlock()

	c.logger.Info("listener started")
	c.recognizer.CreateRecognizer()
	c.lifecycle.Unlock()

	<-ctx.Done()

	c.lifecycle.Lock()
	c.recognizer.DestroyRecognizer()
	c.mu.Lock()
	c.running = false
	pool := c.pool
	c.pool = nil
	c.mu.Unlock()
	c.lifecycle.Unlock()

	if pool != nil {
		pool.StopWait()
	}

	c.mu.Lock()
	result := c.stats
	c.mu.Unlock()
	result.FinishedAt = c.now()

	c.logger.Info("listener stopped",
		"results", result.Results,
		"errors", result.Errors,
		"recreations", result.Recreations,
		"dropped", result.Dropped,
		"elapsed_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
	)
	return result
}

// OnResults queues a recognized text and schedules the result hook.
func (c *Controller) OnResults(text string) {
	ctx := context.Background()
	c.mu.Lock()
	c.stats.Results++
	c.enqueueLocked(ctx, Event{Kind: KindResult, Text: text})
	if c.pool != nil {
		c.pool.Submit(func() {
			if err := c.hook.Run(ctx, text); err != nil {
				c.logger.Debug("result hook failed", "error", err.Error())
			}
		})
	}
	c.mu.Unlock()

	c.metrics.RecordResult(ctx)
	c.logger.Debug("recognition result", "text", text)
}

// OnError queues a recognizer error.
func (c *Controller) OnError(code recognizer.Code) {
	ctx := context.Background()
	timeout := code.IsSpeechTimeout()

	c.mu.Lock()
	c.stats.Errors++
	c.enqueueLocked(ctx, Event{Kind: KindError, Code: code})
	c.mu.Unlock()

	c.metrics.RecordError(ctx, code.String(), timeout)
	if timeout {
		c.logger.Debug("recognizer speech timeout", "code", int(code))
		return
	}
	c.logger.Warn("recognizer error", "code", int(code), "reason", code.String())
}

// OnRecreated counts a handle the adapter replaced after a speech timeout.
func (c *Controller) OnRecreated(generation uint64) {
	c.mu.Lock()
	c.stats.Recreations++
	c.mu.Unlock()

	c.metrics.RecordRecreation(context.Background())
	c.logger.Debug("recognizer recreated", "generation", generation)
}

// enqueueLocked stamps and queues e. Callers hold c.mu.
func (c *Controller) enqueueLocked(ctx context.Context, e Event) {
	e.At = c.now()
	e.Generation = c.recognizer.Generation()
	if c.queue.push(e) {
		c.stats.Dropped++
		c.metrics.RecordDropped(ctx)
		return
	}
	c.metrics.AddQueueDepth(ctx, 1)
}

// Events drains and returns every queued event, oldest first.
func (c *Controller) Events() []Event {
	return c.Take(0)
}

// Take removes up to limit queued events, oldest first. limit <= 0 drains all.
func (c *Controller) Take(limit int) []Event {
	c.mu.Lock()
	events := c.queue.take(limit)
	c.mu.Unlock()

	c.metrics.AddQueueDepth(context.Background(), -int64(len(events)))
	return events
}

// QueueDepth returns the number of events waiting to be polled.
func (c *Controller) QueueDepth() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.len()
}

// Running reports whether Run is active.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Handle serves IPC commands for the engine.
func (c *Controller) Handle(_ context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CommandStatus:
		return c.status("status")
	case ipc.CommandPoll:
		events := c.Take(req.Limit)
		resp := c.status(fmt.Sprintf("%d events", len(events)))
		resp.Events = make([]ipc.Event, 0, len(events))
		for _, e := range events {
			resp.Events = append(resp.Events, e.Wire())
		}
		return resp
	case ipc.CommandStart:
		return c.whileRunning(func() ipc.Response {
			c.recognizer.CreateRecognizer()
			return c.status("recognizer created")
		})
	case ipc.CommandStop:
		return c.whileRunning(func() ipc.Response {
			c.recognizer.DestroyRecognizer()
			return c.status("recognizer destroyed")
		})
	case ipc.CommandRestart:
		return c.whileRunning(func() ipc.Response {
			if !c.recognizer.HasHandle() {
				return c.failure(errors.New("no recognizer handle; send start"))
			}
			c.recognizer.StartRecognizing()
			return c.status("listening restarted")
		})
	default:
		return c.failure(fmt.Errorf("unknown command: %s", req.Command))
	}
}

// whileRunning runs fn only inside an active Run, holding off Run teardown
// until fn returns.
func (c *Controller) whileRunning(fn func() ipc.Response) ipc.Response {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	if !c.Running() {
		return c.failure(ErrNotRunning)
	}
	return fn()
}

func (c *Controller) status(message string) ipc.Response {
	return ipc.Response{
		OK:         true,
		State:      string(c.recognizer.State()),
		Generation: c.recognizer.Generation(),
		QueueDepth: c.QueueDepth(),
		Message:    message,
	}
}

func (c *Controller) failure(err error) ipc.Response {
	return ipc.Response{
		OK:         false,
		State:      string(c.recognizer.State()),
		Generation: c.recognizer.Generation(),
		Error:      err.Error(),
	}
}
