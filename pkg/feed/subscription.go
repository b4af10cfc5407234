package feed

import "sync"

// Subscription is the handle returned by Container.Register (§4.6). It
// wraps a Task: IsActive mirrors the task's RUNNING state, Cancel forwards
// to it. The backing task may be replaced across a container stop/start
// cycle (see container.go, §9 Open Question 1); callers only ever see this
// stable wrapper.
type Subscription struct {
	mu      sync.Mutex
	task    *Task
	request *SubscriptionRequest
}

func newSubscription(request *SubscriptionRequest, task *Task) *Subscription {
	return &Subscription{request: request, task: task}
}

// IsActive reports whether the backing task's state is RUNNING.
func (s *Subscription) IsActive() bool {
	s.mu.Lock()
	task := s.task
	s.mu.Unlock()
	return task != nil && task.State() == TaskRunning
}

// Cancel cancels the backing task. Safe to call repeatedly.
func (s *Subscription) Cancel() {
	s.mu.Lock()
	task := s.task
	s.mu.Unlock()
	if task != nil {
		task.Cancel()
	}
}

func (s *Subscription) currentTask() *Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.task
}

// replaceTask swaps in a freshly built task, used when the container
// restarts a subscription whose previous task is terminal (CANCELLED).
func (s *Subscription) replaceTask(task *Task) {
	s.mu.Lock()
	s.task = task
	s.mu.Unlock()
}
