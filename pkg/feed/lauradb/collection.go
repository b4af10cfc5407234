package lauradb

import (
	"context"

	"github.com/mnohosten/laura-feed/pkg/changestream"
	"github.com/mnohosten/laura-feed/pkg/feed"
	"github.com/mnohosten/laura-feed/pkg/replication"
)

// collectionAdapter implements feed.Collection over a named collection of
// Source's database, opening cursors against Source's shared oplog.
type collectionAdapter struct {
	source *Source
	name   string
}

func (c *collectionAdapter) Watch(ctx context.Context, pipeline []map[string]interface{}, opts feed.ChangeStreamCursorOptions) (feed.Cursor, error) {
	csOpts := changestream.DefaultChangeStreamOptions()
	csOpts.Pipeline = pipeline
	csOpts.FullDocument = changestream.FullDocumentOption(opts.FullDocument)
	if opts.ResumeAfter != nil {
		if opID, ok := opts.ResumeAfter["opId"]; ok {
			if id, ok := toOpID(opID); ok {
				token := changestream.ResumeToken{OpID: id}
				csOpts.ResumeAfter = &token
			}
		}
	}
	if opts.Collation != nil {
		csOpts.Collation = &changestream.Collation{
			Locale:   opts.Collation.Locale,
			Strength: opts.Collation.Strength,
		}
	}

	cs := changestream.NewChangeStream(c.source.oplog, c.source.dbName, c.name, csOpts)
	cs.SetDocumentLookup(c.source.documentLookup)
	if err := cs.Start(); err != nil {
		return nil, err
	}
	return &changeStreamCursor{stream: cs}, nil
}

func (c *collectionAdapter) Find(ctx context.Context, filter map[string]interface{}, opts feed.FindCursorOptions) (feed.Cursor, error) {
	tc := changestream.NewTailCursor(c.source.oplog, c.source.dbName, c.name, filter)
	if opts.Collation != nil {
		tc.SetCollation(&changestream.Collation{
			Locale:   opts.Collation.Locale,
			Strength: opts.Collation.Strength,
		})
	}
	if err := tc.Start(); err != nil {
		return nil, err
	}
	return &tailCursor{cursor: tc}, nil
}

func toOpID(v interface{}) (replication.OpID, bool) {
	switch n := v.(type) {
	case replication.OpID:
		return n, true
	case int64:
		return replication.OpID(n), true
	case int:
		return replication.OpID(n), true
	case float64:
		return replication.OpID(n), true
	default:
		return 0, false
	}
}
