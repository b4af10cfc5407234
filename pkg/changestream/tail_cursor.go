package changestream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mnohosten/laura-feed/pkg/document"
	"github.com/mnohosten/laura-feed/pkg/query"
	"github.com/mnohosten/laura-feed/pkg/replication"
)

// TailCursor follows a capped-collection-style insert stream off the same
// oplog a ChangeStream reads, but emits the raw inserted document with no
// envelope — the tailing-cursor half of §4.4, built the same way
// ChangeStream.watchLoop/pollOplog is (poll-on-ticker, buffered channel,
// non-blocking TryNext), because there is no other cursor machinery in
// this codebase to tail from.
type TailCursor struct {
	oplog      *replication.Oplog
	database   string
	collection string
	filter     *query.Query
	pollEvery  time.Duration
	collation  *Collation

	events chan map[string]interface{}
	errors chan error

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.RWMutex
	currentID replication.OpID
	closed    bool
}

// NewTailCursor starts tailing collection in database (database may be
// empty to match any) from the oplog's current position, optionally
// restricting to documents matching filter (nil means unfiltered).
func NewTailCursor(oplog *replication.Oplog, database, collection string, filter map[string]interface{}) *TailCursor {
	ctx, cancel := context.WithCancel(context.Background())
	var q *query.Query
	if filter != nil {
		q = query.NewQuery(filter)
	}
	return &TailCursor{
		oplog:      oplog,
		database:   database,
		collection: collection,
		filter:     q,
		pollEvery:  200 * time.Millisecond,
		events:     make(chan map[string]interface{}, 100),
		errors:     make(chan error, 10),
		ctx:        ctx,
		cancel:     cancel,
		currentID:  oplog.GetCurrentID(),
	}
}

// SetCollation records the collation a tailing find was opened with.
// Mirrors ChangeStream's Collation option: this package has no
// locale-aware matching, so the setting is carried for visibility only.
func (t *TailCursor) SetCollation(collation *Collation) {
	t.collation = collation
}

// Collation returns the collation this cursor was opened with, or nil.
func (t *TailCursor) Collation() *Collation {
	return t.collation
}

// Start begins the poll loop. Mirrors ChangeStream.Start.
func (t *TailCursor) Start() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return fmt.Errorf("tail cursor is closed")
	}
	t.mu.Unlock()

	go t.pollLoop()
	return nil
}

func (t *TailCursor) pollLoop() {
	ticker := time.NewTicker(t.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
			if err := t.pollOplog(); err != nil {
				select {
				case t.errors <- err:
				default:
				}
			}
		}
	}
}

func (t *TailCursor) pollOplog() error {
	t.mu.RLock()
	since := t.currentID
	t.mu.RUnlock()

	entries, err := t.oplog.GetEntriesSince(since)
	if err != nil {
		return fmt.Errorf("failed to fetch oplog entries: %w", err)
	}

	for _, entry := range entries {
		t.mu.Lock()
		t.currentID = entry.OpID
		t.mu.Unlock()

		if entry.OpType != replication.OpTypeInsert {
			continue
		}
		if t.database != "" && entry.Database != t.database {
			continue
		}
		if t.collection != "" && entry.Collection != t.collection {
			continue
		}
		if entry.Document == nil {
			continue
		}
		if t.filter != nil {
			doc := document.NewDocumentFromMap(entry.Document)
			matches, err := t.filter.Matches(doc)
			if err != nil || !matches {
				continue
			}
		}

		select {
		case t.events <- entry.Document:
		case <-t.ctx.Done():
			return nil
		default:
			select {
			case t.events <- entry.Document:
			case <-time.After(100 * time.Millisecond):
			}
		}
	}

	return nil
}

// TryNext returns the next tailed document if one is buffered, non-blocking.
func (t *TailCursor) TryNext() (map[string]interface{}, error) {
	select {
	case doc := <-t.events:
		return doc, nil
	case err := <-t.errors:
		return nil, err
	default:
		return nil, nil
	}
}

// IsOpen reports whether Close has not yet been called.
func (t *TailCursor) IsOpen() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return !t.closed
}

// Close stops the poll loop.
func (t *TailCursor) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	t.cancel()
	close(t.events)
	close(t.errors)
	return nil
}
