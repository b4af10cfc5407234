package feed

import "reflect"

// TaskFactory builds a Task for a SubscriptionRequest, dispatching on the
// concrete type of its RequestOptions (§4.5). It is the one place that
// knows both request variants exist; Container and Task do not.
type TaskFactory struct {
	db        Database
	converter Converter
}

// NewTaskFactory returns a TaskFactory that opens cursors against db and
// falls back to JSONConverter when no Converter is supplied.
func NewTaskFactory(db Database, converter Converter) *TaskFactory {
	if converter == nil {
		converter = JSONConverter{}
	}
	return &TaskFactory{db: db, converter: converter}
}

// Build validates req and returns a not-yet-started Task for it, or a
// *ConfigError if req is nil, incomplete, or names an unrecognized
// RequestOptions variant.
func (f *TaskFactory) Build(req *SubscriptionRequest, translator ExceptionTranslator, errorHandler ErrorHandler) (*Task, error) {
	if req == nil {
		return nil, configErrorf("subscription request must not be nil")
	}
	if req.Listener == nil {
		return nil, configErrorf("subscription request listener must not be nil")
	}

	var (
		strategy taskStrategy
		err      error
	)
	switch opts := req.Options.(type) {
	case ChangeStreamOptions:
		strategy, err = newChangeStreamStrategy(f.db, opts, req.Target, f.converter)
	case TailingOptions:
		strategy, err = newTailingStrategy(f.db, opts, req.Target, f.converter)
	case nil:
		return nil, configErrorf("subscription request options must not be nil")
	default:
		return nil, configErrorf("unrecognized request options type %s", reflect.TypeOf(req.Options))
	}
	if err != nil {
		return nil, err
	}

	return newTask(strategy, req.Listener, translator, errorHandler), nil
}
