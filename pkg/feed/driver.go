package feed

import "context"

// FullDocumentMode mirrors a change stream's fullDocument option.
type FullDocumentMode string

const (
	FullDocumentDefault      FullDocumentMode = "default"
	FullDocumentUpdateLookup FullDocumentMode = "updateLookup"
)

// Collation is propagated to the driver's cursor-opening call untouched;
// this package never interprets it itself.
type Collation struct {
	Locale   string
	Strength int
}

// ResumeToken is an opaque marker accepted by the driver to resume a
// change stream after a given event.
type ResumeToken map[string]interface{}

// ChangeStreamCursorOptions bundles the knobs a change-stream cursor can be
// opened with, resolved from ChangeStreamOptions by the change-stream task
// strategy (see changestreamtask.go).
type ChangeStreamCursorOptions struct {
	ResumeAfter  ResumeToken
	FullDocument FullDocumentMode
	Collation    *Collation
}

// FindCursorOptions bundles the knobs a tailing find cursor is opened
// with.
type FindCursorOptions struct {
	Collation *Collation
}

// Database is the subset of the document database driver this package
// consumes: the ability to look up a named collection. Everything else
// (connecting, authenticating, pooling) is the host application's concern.
type Database interface {
	Collection(name string) Collection
}

// Collection is the "on-wire client driver" contract: it can open a
// change-stream cursor over itself, or a tailing find cursor. Both kinds
// of cursor share the same Cursor interface below — a non-blocking poll, a
// health probe, and Close — matching the actual shape of a Mongo driver
// cursor far more closely than the usual channel-of-events abstraction.
type Collection interface {
	// Watch opens a change-stream cursor. pipeline is nil or a compiled
	// aggregation pipeline (§4.1); it is never interpreted here.
	Watch(ctx context.Context, pipeline []map[string]interface{}, opts ChangeStreamCursorOptions) (Cursor, error)
	// Find opens a tailing find cursor. filter is nil or a compiled
	// query document.
	Find(ctx context.Context, filter map[string]interface{}, opts FindCursorOptions) (Cursor, error)
}

// Cursor is a non-blocking, poll-based server-side cursor. TryNext never
// blocks for long; it returns (nil, false, nil) when nothing is currently
// available. ServerCursorID returns 0 when the cursor is unhealthy or
// exhausted — the health probe the task's startup loop relies on.
type Cursor interface {
	TryNext(ctx context.Context) (doc map[string]interface{}, ok bool, err error)
	ServerCursorID() int64
	Close(ctx context.Context) error
}
