// Package handlers mounts the change-stream WebSocket gateway onto an HTTP
// router. It once also carried the REST document/collection/index CRUD
// surface this codebase's HTTP server originally exposed; that surface had
// no caller among the change-feed subscription container's own operations
// and has been removed, leaving this package with the gateway alone.
package handlers

// Handlers groups the change-stream HTTP/WebSocket handlers. It carries no
// state of its own; each handler reads everything it needs from the
// ChangeStreamManager passed to it.
type Handlers struct{}

// New creates a new Handlers instance.
func New() *Handlers {
	return &Handlers{}
}
