package feed

import (
	"context"
	"sync"
	"time"
)

// TaskState is one of CREATED, STARTING, RUNNING, CANCELLED (§3). CANCELLED
// is terminal: a task never resurrects, a new one must be created.
type TaskState int32

const (
	TaskCreated TaskState = iota
	TaskStarting
	TaskRunning
	TaskCancelled
)

func (s TaskState) String() string {
	switch s {
	case TaskCreated:
		return "CREATED"
	case TaskStarting:
		return "STARTING"
	case TaskRunning:
		return "RUNNING"
	case TaskCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

const (
	startupBackoff = 100 * time.Millisecond
	emptyPollDelay = 10 * time.Millisecond
)

// taskStrategy is the two-method seam between the shared cursor-reading
// state machine and the two request variants (§4.3, §4.4). spec.md §9
// explicitly favors this over an abstract base class per variant.
type taskStrategy interface {
	// initCursor opens a fresh driver cursor for this subscription. A
	// returned cursor with ServerCursorID() == 0 is treated as unhealthy
	// and retried (§4.2 step 2b).
	initCursor(ctx context.Context) (Cursor, error)
	// toMessage wraps one polled document as a Message.
	toMessage(doc map[string]interface{}) Message
}

// Task is a cursor-reading worker: one per live subscription. Start only
// proceeds from CREATED, so a second Start call returns at once; a
// Container replaces a subscription's CANCELLED task with a fresh one on
// Start.
type Task struct {
	mu       sync.Mutex
	state    TaskState
	cursor   Cursor
	cancelFn context.CancelFunc

	strategy     taskStrategy
	listener     Listener
	translator   ExceptionTranslator
	errorHandler ErrorHandler
}

func newTask(strategy taskStrategy, listener Listener, translator ExceptionTranslator, errorHandler ErrorHandler) *Task {
	if translator == nil {
		translator = IdentityTranslator{}
	}
	if errorHandler == nil {
		errorHandler = NewLogErrorHandler(nil)
	}
	return &Task{
		state:        TaskCreated,
		strategy:     strategy,
		listener:     listener,
		translator:   translator,
		errorHandler: errorHandler,
	}
}

// State reads the current state under the lifecycle mutex (§4.2 "State
// query").
func (t *Task) State() TaskState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// IsLongLived always reports true: a Task occupies one worker for its
// entire lifetime and should be scheduled on a dedicated long-running
// goroutine rather than a bounded queue (§4.2).
func (t *Task) IsLongLived() bool { return true }

// Start runs the cursor-reading loop until the task is cancelled or ctx is
// done. It is meant to be called on its own goroutine by the container's
// worker pool; it blocks for the task's whole lifetime.
func (t *Task) Start(ctx context.Context) {
	t.mu.Lock()
	if t.state != TaskCreated {
		t.mu.Unlock()
		return
	}
	t.state = TaskStarting
	runCtx, cancel := context.WithCancel(ctx)
	t.cancelFn = cancel
	t.mu.Unlock()

	if !t.awaitHealthyCursor(runCtx) {
		return
	}
	t.runLoop(runCtx)
}

// awaitHealthyCursor implements §4.2's startup algorithm: open a cursor,
// validate it, retry on a 100ms interruptible backoff until healthy or
// cancelled. Returns false if the task was cancelled before a healthy
// cursor was obtained.
func (t *Task) awaitHealthyCursor(ctx context.Context) bool {
	for {
		if t.State() != TaskStarting {
			return false
		}

		cursor, err := t.strategy.initCursor(ctx)
		if err != nil {
			if _, fatal := err.(*ConfigError); fatal {
				translateAndHandle(t.translator, t.errorHandler, err)
				t.Cancel()
				return false
			}
			// transient: fall through to the backoff/retry below.
		} else if cursor != nil && cursor.ServerCursorID() != 0 {
			t.mu.Lock()
			if t.state != TaskStarting {
				t.mu.Unlock()
				cursor.Close(ctx)
				return false
			}
			t.cursor = cursor
			t.state = TaskRunning
			t.mu.Unlock()
			return true
		} else if cursor != nil {
			cursor.Close(ctx)
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(startupBackoff):
		}
	}
}

// runLoop implements §4.2's run algorithm: non-blocking poll, deliver on a
// hit, sleep 10ms on a miss, swallow-and-continue on any other error.
func (t *Task) runLoop(ctx context.Context) {
	for {
		t.mu.Lock()
		if t.state != TaskRunning {
			t.mu.Unlock()
			return
		}
		cursor := t.cursor
		doc, ok, err := cursor.TryNext(ctx)
		stillRunning := t.state == TaskRunning
		t.mu.Unlock()

		if err != nil {
			if !stillRunning {
				// Cursor closed out from under us by a concurrent cancel;
				// benign, the loop is about to exit on the next state check.
				continue
			}
			translateAndHandle(t.translator, t.errorHandler, err)
			continue
		}

		if !stillRunning {
			return
		}

		if !ok {
			select {
			case <-ctx.Done():
			case <-time.After(emptyPollDelay):
			}
			continue
		}

		msg := t.strategy.toMessage(doc)
		t.listener(msg)
	}
}

// Cancel transitions the task to CANCELLED and closes its cursor, if any.
// Safe to call repeatedly and from any state; a no-op once the task is
// CANCELLED. Cancelling a CREATED task makes it terminal, so a later Start
// returns without opening a cursor.
func (t *Task) Cancel() {
	t.mu.Lock()
	if t.state != TaskStarting && t.state != TaskRunning && t.state != TaskCreated {
		t.mu.Unlock()
		return
	}
	prevCursor := t.cursor
	t.cursor = nil
	t.state = TaskCancelled
	cancelFn := t.cancelFn
	t.mu.Unlock()

	if cancelFn != nil {
		cancelFn()
	}
	if prevCursor != nil {
		prevCursor.Close(context.Background())
	}
}
