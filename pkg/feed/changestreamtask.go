package feed

import (
	"context"
	"reflect"
	"sync/atomic"
)

// changeStreamStrategy is the taskStrategy for a change-stream subscription
// (§4.3). It compiles the filter once, resolves the full-document lookup
// policy, and wraps each polled change event as a Message whose body is the
// event's fullDocument.
type changeStreamStrategy struct {
	db        Database
	opts      ChangeStreamOptions
	target    reflect.Type
	converter Converter
	pipeline  []map[string]interface{}

	// lastResumeToken starts as opts.ResumeToken and is updated after every
	// delivered event; initCursor opens the cursor after it. A container
	// Stop/Start builds a new strategy, which starts again from
	// opts.ResumeToken (§9 Open Question 1).
	lastResumeToken atomic.Value
}

func newChangeStreamStrategy(db Database, opts ChangeStreamOptions, target reflect.Type, converter Converter) (*changeStreamStrategy, error) {
	pipeline, err := CompilePipeline(opts.Filter)
	if err != nil {
		return nil, err
	}
	s := &changeStreamStrategy{db: db, opts: opts, target: target, converter: converter, pipeline: pipeline}
	if opts.ResumeToken != nil {
		s.lastResumeToken.Store(opts.ResumeToken)
	}
	return s, nil
}

// fullDocumentMode resolves §4.3 step 2: an explicit choice wins; absent
// that, UPDATE_LOOKUP iff the caller asked for a non-generic body type,
// else DEFAULT. Without the lookup an update event's fullDocument is empty,
// which is fine for map[string]interface{} but would leave a typed target
// converting a near-empty document.
func (s *changeStreamStrategy) fullDocumentMode() FullDocumentMode {
	if s.opts.FullDocumentLookup != nil {
		return *s.opts.FullDocumentLookup
	}
	if s.target != nil {
		return FullDocumentUpdateLookup
	}
	return FullDocumentDefault
}

func (s *changeStreamStrategy) resumeToken() ResumeToken {
	if v, ok := s.lastResumeToken.Load().(ResumeToken); ok {
		return v
	}
	return nil
}

func (s *changeStreamStrategy) initCursor(ctx context.Context) (Cursor, error) {
	coll := s.db.Collection(s.opts.CollectionName)
	cursorOpts := ChangeStreamCursorOptions{
		ResumeAfter:  s.resumeToken(),
		FullDocument: s.fullDocumentMode(),
		Collation:    s.opts.Collation,
	}
	return coll.Watch(ctx, s.pipeline, cursorOpts)
}

func (s *changeStreamStrategy) toMessage(doc map[string]interface{}) Message {
	if token, ok := doc["_id"].(map[string]interface{}); ok {
		s.lastResumeToken.Store(ResumeToken(token))
	}

	properties := unknownProperties()
	if ns, ok := doc["ns"].(map[string]interface{}); ok {
		if db, ok := ns["db"].(string); ok {
			properties.DatabaseName = db
		}
		if coll, ok := ns["coll"].(string); ok {
			properties.CollectionName = coll
		}
	}

	var body interface{}
	if fullDoc, ok := doc["fullDocument"].(map[string]interface{}); ok {
		body = fullDoc
	}

	return NewMessage(doc, body, properties, s.target, s.converter)
}
