package feed

import (
	"context"
	"reflect"
)

// tailingStrategy is the taskStrategy for a tailing-cursor subscription over
// a capped collection (§4.4). Unlike a change-stream event, a tailed
// document carries no envelope: it is the message body itself.
type tailingStrategy struct {
	db        Database
	opts      TailingOptions
	target    reflect.Type
	converter Converter
	filter    map[string]interface{}
	collation *Collation
}

func newTailingStrategy(db Database, opts TailingOptions, target reflect.Type, converter Converter) (*tailingStrategy, error) {
	s := &tailingStrategy{db: db, opts: opts, target: target, converter: converter}
	if opts.Query != nil {
		s.collation = opts.Query.Collation
		pipeline, err := CompilePipeline(opts.Query.Filter)
		if err != nil {
			return nil, err
		}
		// A tailing query is a plain find filter, not an aggregation
		// pipeline; reuse CompilePipeline for its validation and
		// structured-map path, then unwrap the single $match stage it
		// produces and strip the "fullDocument." prefix it added.
		if len(pipeline) == 1 {
			if match, ok := pipeline[0]["$match"].(map[string]interface{}); ok {
				s.filter = stripFullDocumentPrefix(match).(map[string]interface{})
			}
		}
	}
	return s, nil
}

// stripFullDocumentPrefix undoes prefixFullDocument: a tailing find filter
// addresses fields on the raw document directly, so the "fullDocument."
// convention CompilePipeline applies for change-stream filters doesn't
// apply here.
func stripFullDocumentPrefix(v interface{}) interface{} {
	if arr, ok := v.([]interface{}); ok {
		out := make([]interface{}, len(arr))
		for i, inner := range arr {
			out[i] = stripFullDocumentPrefix(inner)
		}
		return out
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return v
	}
	out := make(map[string]interface{}, len(m))
	for k, inner := range m {
		key := k
		const prefix = "fullDocument."
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			key = k[len(prefix):]
		}
		out[key] = stripFullDocumentPrefix(inner)
	}
	return out
}

func (s *tailingStrategy) initCursor(ctx context.Context) (Cursor, error) {
	coll := s.db.Collection(s.opts.CollectionName)
	return coll.Find(ctx, s.filter, FindCursorOptions{Collation: s.collation})
}

// namedDatabase is an optional capability a Database implementation can
// satisfy to identify itself by name. A tailed document carries no "ns"
// envelope the way a change-stream event does (see changestreamtask.go),
// so this is the only way tailingStrategy can learn the database name a
// message's properties should carry.
type namedDatabase interface {
	DatabaseName() string
}

func (s *tailingStrategy) toMessage(doc map[string]interface{}) Message {
	properties := unknownProperties()
	properties.CollectionName = s.opts.CollectionName
	if named, ok := s.db.(namedDatabase); ok {
		properties.DatabaseName = named.DatabaseName()
	}
	return NewMessage(doc, doc, properties, s.target, s.converter)
}
