package feed

import (
	"context"
	"math"
	"reflect"
	"sync"
)

// Container is the lifecycle, registry, and worker-pool dispatcher (§4.7).
// Each task it manages occupies its own goroutine for its entire lifetime
// (§5's "parallel workers, no worker sharing, no time-slicing" scheduling
// model) — there is no bounded pool to size, so "submit to the worker
// pool" is simply starting that goroutine.
type Container struct {
	mu sync.Mutex

	factory      *TaskFactory
	translator   ExceptionTranslator
	errorHandler ErrorHandler

	subscriptions map[*Subscription]struct{}
	running       bool

	phase       int
	autoStartup bool

	metrics MetricsRecorder
}

// NewContainer returns a Container driving cursors through db, converting
// bodies with converter (nil means JSONConverter), translating and
// handling task errors with translator/errorHandler (nil means identity
// translation and log-and-continue). Phase defaults to the maximum int
// (start last, stop first, per §4.7); autoStartup defaults to false.
func NewContainer(db Database, converter Converter, translator ExceptionTranslator, errorHandler ErrorHandler) *Container {
	if translator == nil {
		translator = IdentityTranslator{}
	}
	if errorHandler == nil {
		errorHandler = NewLogErrorHandler(nil)
	}
	return &Container{
		factory:       NewTaskFactory(db, converter),
		translator:    translator,
		errorHandler:  errorHandler,
		subscriptions: make(map[*Subscription]struct{}),
		phase:         math.MaxInt,
		metrics:       noopMetricsRecorder{},
	}
}

// SetMetrics wires m as the recorder for subscription and delivery counts.
// Must be called before Register/Start for existing subscriptions to be
// covered; nil restores the no-op recorder. Wraps the container's
// ErrorHandler so failures already routed there are also counted.
func (c *Container) SetMetrics(m MetricsRecorder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m == nil {
		m = noopMetricsRecorder{}
	}
	c.metrics = m
	c.errorHandler = &metricsErrorHandler{inner: c.errorHandler, metrics: m}
}

// Register builds a task for the given options/listener/target, wraps it
// as a Subscription, and — if the container is currently running — submits
// it to the worker pool immediately (§4.7 step 3). De-duplication is not
// performed: registering the same logical request twice returns two
// independent subscriptions.
func (c *Container) Register(options RequestOptions, listener Listener, target reflect.Type) (*Subscription, error) {
	c.mu.Lock()
	metrics := c.metrics
	c.mu.Unlock()

	counted := listener
	if listener != nil {
		counted = func(msg Message) {
			metrics.EventDelivered()
			listener(msg)
		}
	}

	req, err := NewSubscriptionRequest(counted, options, target)
	if err != nil {
		return nil, err
	}
	task, err := c.factory.Build(req, c.translator, c.errorHandler)
	if err != nil {
		return nil, err
	}
	sub := newSubscription(req, task)

	c.mu.Lock()
	c.subscriptions[sub] = struct{}{}
	running := c.running
	c.mu.Unlock()

	if running {
		metrics.SubscriptionStarted()
		go task.Start(context.Background())
	}
	return sub, nil
}

// Start submits every registered subscription whose task is not already
// active to the worker pool, then marks the container running (§4.7).
//
// A subscription left over from a previous stop() carries a CANCELLED
// (terminal) task. Resubmitting a terminal task would be a no-op forever,
// so per §9 Open Question 1 this rebuilds a fresh task from the
// subscription's original request before submitting it — restart recreates
// the cursor from scratch rather than resuming the dead one.
func (c *Container) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}

	for sub := range c.subscriptions {
		task := sub.currentTask()
		if task == nil || task.State() == TaskCancelled {
			fresh, err := c.factory.Build(sub.request, c.translator, c.errorHandler)
			if err != nil {
				c.errorHandler.Handle(err)
				continue
			}
			sub.replaceTask(fresh)
			task = fresh
		}
		if task.State() == TaskCreated {
			c.metrics.SubscriptionStarted()
			go task.Start(context.Background())
		}
	}
	c.running = true
}

// Stop cancels every registered subscription — closing its cursor and
// transitioning its task to CANCELLED — and marks the container not
// running. Registrations are retained for a future Start (§4.7).
func (c *Container) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	for sub := range c.subscriptions {
		if sub.IsActive() {
			c.metrics.SubscriptionStopped()
		}
		sub.Cancel()
	}
	c.running = false
}

// StopWithCallback stops the container and then invokes onDone, matching
// the `stop(onDone)` lifecycle-callback variant external frameworks expect
// (§6). onDone runs synchronously after every subscription has been
// cancelled.
func (c *Container) StopWithCallback(onDone func()) {
	c.Stop()
	if onDone != nil {
		onDone()
	}
}

// Remove cancels sub (if active) and drops it from the registry. A removed
// subscription does not restart on a later Start (§4.7).
func (c *Container) Remove(sub *Subscription) {
	if sub == nil {
		return
	}
	c.mu.Lock()
	_, present := c.subscriptions[sub]
	if present {
		delete(c.subscriptions, sub)
	}
	metrics := c.metrics
	c.mu.Unlock()
	if present {
		if sub.IsActive() {
			metrics.SubscriptionStopped()
		}
		sub.Cancel()
	}
}

// IsRunning reports the container's running flag.
func (c *Container) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// IsAutoStartup reports whether an external lifecycle framework should
// start this container automatically. False by default — the host decides
// when to call Start.
func (c *Container) IsAutoStartup() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.autoStartup
}

// SetAutoStartup overrides the default autoStartup value.
func (c *Container) SetAutoStartup(v bool) {
	c.mu.Lock()
	c.autoStartup = v
	c.mu.Unlock()
}

// Phase returns the ordering hint used by external lifecycle frameworks
// that manage several such containers (start highest phase last, stop it
// first). Defaults to math.MaxInt.
func (c *Container) Phase() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// SetPhase overrides the default phase value.
func (c *Container) SetPhase(p int) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
}
