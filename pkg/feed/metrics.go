package feed

// MetricsRecorder is the narrow seam Container reports through. It mirrors
// the counters pkg/metrics.MetricsCollector already exposes for queries,
// inserts, and connections — a change feed gets the same treatment rather
// than going unobserved. A Container with no recorder configured records
// nothing.
type MetricsRecorder interface {
	EventDelivered()
	EventFailed()
	SubscriptionStarted()
	SubscriptionStopped()
}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) EventDelivered()      {}
func (noopMetricsRecorder) EventFailed()         {}
func (noopMetricsRecorder) SubscriptionStarted() {}
func (noopMetricsRecorder) SubscriptionStopped() {}

// metricsErrorHandler wraps a Container's configured ErrorHandler so every
// error still reaches it, while also being counted.
type metricsErrorHandler struct {
	inner   ErrorHandler
	metrics MetricsRecorder
}

func (h *metricsErrorHandler) Handle(err error) {
	h.metrics.EventFailed()
	if h.inner != nil {
		h.inner.Handle(err)
	}
}
