package lauradb

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mnohosten/laura-feed/pkg/changestream"
)

// changeStreamCursor adapts *changestream.ChangeStream to feed.Cursor. A
// healthy (open) stream reports server cursor id 1; a closed one reports 0,
// the non-zero-means-healthy convention feed.Task's startup check relies on.
type changeStreamCursor struct {
	stream *changestream.ChangeStream
}

func (c *changeStreamCursor) TryNext(ctx context.Context) (map[string]interface{}, bool, error) {
	event, err := c.stream.TryNext()
	if err != nil {
		return nil, false, err
	}
	if event == nil {
		return nil, false, nil
	}
	doc, err := eventToDoc(event)
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

func (c *changeStreamCursor) ServerCursorID() int64 {
	if c.stream.IsOpen() {
		return 1
	}
	return 0
}

func (c *changeStreamCursor) Close(ctx context.Context) error {
	return c.stream.Close()
}

// eventToDoc round-trips a ChangeEvent through its own json tags into the
// generic document shape feed's change-stream task strategy expects
// ("_id", "ns": {"db","coll"}, "fullDocument", ...) — the same
// (de)serialization boundary the rest of this codebase uses everywhere.
func eventToDoc(event *changestream.ChangeEvent) (map[string]interface{}, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("lauradb: marshal change event: %w", err)
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("lauradb: unmarshal change event: %w", err)
	}
	raw["ns"] = map[string]interface{}{
		"db":   event.Database,
		"coll": event.Collection,
	}
	return raw, nil
}

// tailCursor adapts *changestream.TailCursor to feed.Cursor.
type tailCursor struct {
	cursor *changestream.TailCursor
}

func (t *tailCursor) TryNext(ctx context.Context) (map[string]interface{}, bool, error) {
	doc, err := t.cursor.TryNext()
	if err != nil {
		return nil, false, err
	}
	if doc == nil {
		return nil, false, nil
	}
	return doc, true, nil
}

func (t *tailCursor) ServerCursorID() int64 {
	if t.cursor.IsOpen() {
		return 1
	}
	return 0
}

func (t *tailCursor) Close(ctx context.Context) error {
	return t.cursor.Close()
}
