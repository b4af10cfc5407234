package feed

import "reflect"

// Listener is invoked synchronously on the subscription's task goroutine,
// once per delivered message. The task does not recover a panic raised by
// it, and nothing it does is routed to the task's ErrorHandler.
type Listener func(Message)

// SubscriptionRequest binds a listener to a RequestOptions value. It is
// the unit TaskFactory and Container.Register operate on.
type SubscriptionRequest struct {
	Listener Listener
	Options  RequestOptions
	// Target is the caller-chosen body type; reflect.TypeOf((*T)(nil)).Elem().
	// A nil Target means "generic document", i.e. no conversion.
	Target reflect.Type
}

// NewSubscriptionRequest validates listener and options are non-nil; a nil
// listener or nil options is a configuration error caught at registration.
// A nil target is accepted and means a generic document body.
func NewSubscriptionRequest(listener Listener, options RequestOptions, target reflect.Type) (*SubscriptionRequest, error) {
	if listener == nil {
		return nil, &ConfigError{Message: "listener must not be nil"}
	}
	if options == nil {
		return nil, &ConfigError{Message: "options must not be nil"}
	}
	return &SubscriptionRequest{Listener: listener, Options: options, Target: target}, nil
}
