package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/mnohosten/laura-feed/pkg/changestream"
	"github.com/mnohosten/laura-feed/pkg/feed"
	"github.com/mnohosten/laura-feed/pkg/feed/lauradb"
	"github.com/mnohosten/laura-feed/pkg/replication"
)

// WebSocket upgrader with default settings
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins (can be restricted in production)
		return true
	},
}

// ChangeStreamManager owns the feed.Container every WebSocket change-stream
// connection registers a subscription against, so that a single container
// (and the single oplog/database pair its lauradb.Source wraps) backs
// every connection rather than each opening its own change stream.
type ChangeStreamManager struct {
	container   *feed.Container
	source      *lauradb.Source
	connections map[string]*ChangeStreamConnection
	mu          sync.RWMutex
}

// ChangeStreamConnection represents an active WebSocket connection with a
// live feed subscription.
type ChangeStreamConnection struct {
	id         string
	conn       *websocket.Conn
	sub        *feed.Subscription
	cancelFunc context.CancelFunc
	mu         sync.Mutex
}

// NewChangeStreamManager wraps container, which the caller owns and may
// share with other subsystems (e.g. the GraphQL watchCollection
// subscription) registering against the same source.
func NewChangeStreamManager(container *feed.Container, source *lauradb.Source) *ChangeStreamManager {
	return &ChangeStreamManager{
		container:   container,
		source:      source,
		connections: make(map[string]*ChangeStreamConnection),
	}
}

// GetOplog returns the oplog backing this manager's subscriptions.
func (m *ChangeStreamManager) GetOplog() *replication.Oplog {
	return m.source.Oplog()
}

// Close closes all active WebSocket connections. It does not stop the
// shared container or close the underlying database/oplog; the caller
// (typically *server.Server, which may share the container with other
// subsystems) owns their lifecycle.
func (m *ChangeStreamManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, conn := range m.connections {
		conn.Close()
	}
	m.connections = make(map[string]*ChangeStreamConnection)
	return nil
}

// addConnection registers a new connection
func (m *ChangeStreamManager) addConnection(conn *ChangeStreamConnection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections[conn.id] = conn
}

// removeConnection unregisters a connection
func (m *ChangeStreamManager) removeConnection(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.connections, id)
}

// Close tears down a change stream connection: cancels its context, cancels
// the backing subscription (which Container.Remove also does when called by
// the manager), and closes the socket.
func (c *ChangeStreamConnection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancelFunc != nil {
		c.cancelFunc()
	}
	if c.sub != nil {
		c.sub.Cancel()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}

// ChangeStreamRequest represents the WebSocket connection request. Database
// is accepted for wire compatibility but not consulted for routing: a
// manager's container is bound to one database, the one its Source wraps.
// Mode selects which kind of subscription the gateway registers: "" or
// "changeStream" (default) for an oplog change stream, "tailing" for a
// tailing find cursor over the raw collection.
type ChangeStreamRequest struct {
	Database    string                    `json:"database"`
	Collection  string                    `json:"collection"`
	Mode        string                    `json:"mode,omitempty"`
	Filter      map[string]interface{}    `json:"filter,omitempty"`
	Pipeline    []map[string]interface{}  `json:"pipeline,omitempty"`
	ResumeToken *changestream.ResumeToken `json:"resumeToken,omitempty"`
}

// ChangeStreamResponse represents a response sent over WebSocket. Event is
// populated for changeStream-mode subscriptions; Doc is populated for
// tailing-mode ones, which have no change-event envelope.
type ChangeStreamResponse struct {
	Type    string                    `json:"type"` // "event", "error", "heartbeat", "connected"
	Event   *changestream.ChangeEvent `json:"event,omitempty"`
	Doc     map[string]interface{}    `json:"doc,omitempty"`
	Error   string                    `json:"error,omitempty"`
	Message string                    `json:"message,omitempty"`
}

// HandleChangeStream handles WebSocket connections for change streams. Each
// connection registers one subscription against manager's shared
// feed.Container; the subscription's listener pushes events straight to
// the socket as they are delivered, so there is no per-connection polling
// loop left to drive.
func (h *Handlers) HandleChangeStream(manager *ChangeStreamManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Upgrade HTTP connection to WebSocket
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("Failed to upgrade connection: %v", err)
			return
		}

		// Generate connection ID
		connID := fmt.Sprintf("ws-%d", time.Now().UnixNano())

		// Create context for this connection
		ctx, cancel := context.WithCancel(context.Background())

		// Create connection object
		wsConn := &ChangeStreamConnection{
			id:         connID,
			conn:       conn,
			cancelFunc: cancel,
		}

		// Register connection
		manager.addConnection(wsConn)
		defer func() {
			manager.removeConnection(connID)
			wsConn.Close()
		}()

		// Read initial request from client
		var req ChangeStreamRequest
		if err := conn.ReadJSON(&req); err != nil {
			sendError(conn, fmt.Sprintf("Failed to read request: %v", err))
			return
		}

		var filter feed.Filter
		if req.Pipeline != nil {
			filter = req.Pipeline
		} else if req.Filter != nil {
			filter = req.Filter
		}

		var opts feed.RequestOptions
		var listener func(msg feed.Message)

		if req.Mode == "tailing" {
			opts = feed.NewTailingOptions(req.Collection).Query(filter, nil).Build()
			listener = func(msg feed.Message) {
				wsConn.mu.Lock()
				writeErr := conn.WriteJSON(ChangeStreamResponse{Type: "event", Doc: msg.Raw()})
				wsConn.mu.Unlock()
				if writeErr != nil {
					log.Printf("Failed to send event: %v", writeErr)
					cancel()
				}
			}
		} else {
			builder := feed.NewChangeStreamOptions(req.Collection).Filter(filter)
			if req.ResumeToken != nil {
				builder = builder.ResumeAfter(feed.ResumeToken{"opId": req.ResumeToken.OpID})
			}
			opts = builder.Build()
			listener = func(msg feed.Message) {
				event, err := docToEvent(msg.Raw())
				if err != nil {
					sendErrorLocked(wsConn, fmt.Sprintf("failed to decode event: %v", err))
					return
				}
				wsConn.mu.Lock()
				writeErr := conn.WriteJSON(ChangeStreamResponse{Type: "event", Event: event})
				wsConn.mu.Unlock()
				if writeErr != nil {
					log.Printf("Failed to send event: %v", writeErr)
					cancel()
				}
			}
		}

		sub, err := manager.container.Register(opts, listener, nil)
		if err != nil {
			sendError(conn, fmt.Sprintf("Failed to register subscription: %v", err))
			return
		}
		wsConn.mu.Lock()
		wsConn.sub = sub
		wsConn.mu.Unlock()

		// Send acknowledgment
		ack := ChangeStreamResponse{
			Type:    "connected",
			Message: "Change stream connected successfully",
		}
		if err := conn.WriteJSON(ack); err != nil {
			log.Printf("Failed to send acknowledgment: %v", err)
			return
		}

		// Start heartbeat goroutine to keep connection alive
		heartbeatTicker := time.NewTicker(30 * time.Second)
		defer heartbeatTicker.Stop()

		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-heartbeatTicker.C:
					wsConn.mu.Lock()
					err := conn.WriteJSON(ChangeStreamResponse{
						Type:    "heartbeat",
						Message: "keepalive",
					})
					wsConn.mu.Unlock()
					if err != nil {
						log.Printf("Failed to send heartbeat: %v", err)
						cancel()
						return
					}
				}
			}
		}()

		// Read control messages from client (e.g., close)
		go func() {
			for {
				var msg map[string]interface{}
				if err := conn.ReadJSON(&msg); err != nil {
					cancel()
					return
				}
				// Handle control messages if needed
			}
		}()

		// Events are pushed to the client by listener as they are
		// delivered to the subscription; this goroutine just blocks
		// until the connection is torn down (client disconnect,
		// heartbeat write failure, or event write failure).
		<-ctx.Done()
		manager.container.Remove(sub)
	}
}

// sendError sends an error message to the WebSocket client
func sendError(conn *websocket.Conn, message string) {
	response := ChangeStreamResponse{
		Type:  "error",
		Error: message,
	}
	conn.WriteJSON(response)
}

// sendErrorLocked is sendError for use from a subscription listener
// goroutine, which writes to the same connection the heartbeat and
// acknowledgment writers use and so must hold wsConn.mu.
func sendErrorLocked(wsConn *ChangeStreamConnection, message string) {
	wsConn.mu.Lock()
	defer wsConn.mu.Unlock()
	wsConn.conn.WriteJSON(ChangeStreamResponse{Type: "error", Error: message})
}

// docToEvent decodes a generic feed document (as produced by
// lauradb's change-stream cursor adapter) back into a *changestream.ChangeEvent
// for the wire protocol, the reverse of the json round-trip that produced it.
func docToEvent(doc map[string]interface{}) (*changestream.ChangeEvent, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	var event changestream.ChangeEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("unmarshal change event: %w", err)
	}
	return &event, nil
}

// HandleChangeStreamHTTP handles HTTP endpoint for creating change streams (alternative to WebSocket)
func (h *Handlers) HandleChangeStreamHTTP() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ChangeStreamRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)

		encoder := json.NewEncoder(w)
		encoder.Encode(map[string]string{
			"message": "Use WebSocket endpoint /_ws/watch for streaming change events",
			"endpoint": "ws://<host>:<port>/_ws/watch",
		})
	}
}

// SetupWebSocketRoutes mounts the change-stream WebSocket gateway and its
// companion HTTP documentation endpoint onto r, backed by manager.
func SetupWebSocketRoutes(r chi.Router, h *Handlers, manager *ChangeStreamManager) {
	r.Get("/_ws/watch", h.HandleChangeStream(manager))
	r.Post("/_watch", h.HandleChangeStreamHTTP())
}
