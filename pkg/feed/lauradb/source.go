// Package lauradb adapts this repository's own storage engine, oplog, and
// change-stream machinery into the driver contract pkg/feed consumes
// (feed.Database, feed.Collection, feed.Cursor). It plays the role the real
// on-wire Mongo driver plays in the original design: an external
// collaborator, here provided in-process because this codebase embeds its
// own storage engine rather than connecting to one over the wire.
package lauradb

import (
	"fmt"
	"path/filepath"

	"github.com/mnohosten/laura-feed/pkg/database"
	"github.com/mnohosten/laura-feed/pkg/feed"
	"github.com/mnohosten/laura-feed/pkg/replication"
)

// Source pairs a database with the oplog its collections' writes must be
// appended to for change streams and tailing cursors to observe them. The
// two are separate engines in this codebase: a write is only visible to a feed subscription once it lands in both.
type Source struct {
	db       *database.Database
	oplog    *replication.Oplog
	dbName   string
}

// Open opens (or creates) a database under cfg.DataDir and an oplog file
// alongside it, named dbName for change-event namespace purposes.
func Open(cfg *database.Config, dbName string) (*Source, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("lauradb: open database: %w", err)
	}

	oplogPath := filepath.Join(cfg.DataDir, "oplog.bin")
	oplog, err := replication.NewOplog(oplogPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("lauradb: open oplog: %w", err)
	}

	return &Source{db: db, oplog: oplog, dbName: dbName}, nil
}

// NewSource wraps an already-open database and oplog, for hosts (such as
// pkg/server) that open both themselves and must not have this package
// open a second, conflicting instance of either.
func NewSource(db *database.Database, oplog *replication.Oplog, dbName string) *Source {
	return &Source{db: db, oplog: oplog, dbName: dbName}
}

// Oplog returns the oplog this source's cursors read from, so a host can
// share it with other writers that must be visible to subscriptions.
func (s *Source) Oplog() *replication.Oplog {
	return s.oplog
}

// DatabaseName returns the namespace a tailed document's message
// properties should be stamped with (see feed.namedDatabase).
func (s *Source) DatabaseName() string {
	return s.dbName
}

// Close closes the oplog and the underlying database.
func (s *Source) Close() error {
	if err := s.oplog.Close(); err != nil {
		return err
	}
	return s.db.Close()
}

// Collection returns the feed.Collection adapter for name, creating the
// underlying collection if it doesn't already exist.
func (s *Source) Collection(name string) feed.Collection {
	s.db.Collection(name)
	return &collectionAdapter{source: s, name: name}
}

// InsertOne inserts doc into collection name and appends the matching
// oplog entry in one call, closing the two-step gap every caller of the
// bare database/oplog pair would otherwise have to remember.
func (s *Source) InsertOne(name string, doc map[string]interface{}) (string, error) {
	coll := s.db.Collection(name)
	id, err := coll.InsertOne(doc)
	if err != nil {
		return "", err
	}
	inserted, _ := coll.FindOne(map[string]interface{}{"_id": id})
	entryDoc := doc
	if inserted != nil {
		entryDoc = inserted.ToMap()
	}
	if err := s.oplog.Append(replication.CreateInsertEntry(s.dbName, name, entryDoc)); err != nil {
		return id, fmt.Errorf("lauradb: append insert to oplog: %w", err)
	}
	return id, nil
}

// UpdateOne updates the first document matching filter and appends the
// matching oplog entry, resolving the updated document's _id for the
// change-stream update-lookup path.
func (s *Source) UpdateOne(name string, filter, update map[string]interface{}) error {
	coll := s.db.Collection(name)
	existing, err := coll.FindOne(filter)
	if err != nil {
		return err
	}
	id, _ := existing.Get("_id")

	if err := coll.UpdateOne(filter, update); err != nil {
		return err
	}

	entry := replication.CreateUpdateEntry(s.dbName, name, filter, update)
	entry.DocID = id
	if err := s.oplog.Append(entry); err != nil {
		return fmt.Errorf("lauradb: append update to oplog: %w", err)
	}
	return nil
}

// DeleteOne deletes the first document matching filter and appends the
// matching oplog entry.
func (s *Source) DeleteOne(name string, filter map[string]interface{}) error {
	coll := s.db.Collection(name)
	existing, err := coll.FindOne(filter)
	if err != nil {
		return err
	}
	id, _ := existing.Get("_id")

	if err := coll.DeleteOne(filter); err != nil {
		return err
	}

	entry := replication.CreateDeleteEntry(s.dbName, name, filter)
	entry.DocID = id
	if err := s.oplog.Append(entry); err != nil {
		return fmt.Errorf("lauradb: append delete to oplog: %w", err)
	}
	return nil
}

// documentLookup is wired into every change-stream cursor this source
// opens, satisfying changestream.DocumentLookup by reading the document
// straight back out of the live collection.
func (s *Source) documentLookup(db, collName string, id interface{}) (map[string]interface{}, bool) {
	coll := s.db.Collection(collName)
	doc, err := coll.FindOne(map[string]interface{}{"_id": id})
	if err != nil || doc == nil {
		return nil, false
	}
	return doc.ToMap(), true
}
