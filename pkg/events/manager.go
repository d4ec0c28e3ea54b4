package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// DefaultWriteTimeout bounds one WebSocket send. A client that cannot keep
// up stalls its own lanes, never other connections.
const DefaultWriteTimeout = 5 * time.Second

// laneBuffer bounds one agent lane's queue. The read loop blocks once a
// lane is this far behind; submissions are never dropped.
const laneBuffer = 16

// TaskRunner executes one task, streaming fragments to sink, and returns
// the terminal response. Wired to the agent dispatcher by the composition
// root; scripted in tests.
type TaskRunner func(ctx context.Context, agentID, task string, taskContext map[string]any, sink func(string)) (any, error)

// WSConn is the subset of *websocket.Conn the manager uses; tests
// substitute an in-memory pipe.
type WSConn interface {
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
	Write(ctx context.Context, typ websocket.MessageType, data []byte) error
}

// ConnectionManager owns all WebSocket connections, their channel
// subscriptions, and the per-(connection, agent) execution lanes.
type ConnectionManager struct {
	// Active connections: connection_id → *Connection
	connections map[string]*Connection
	mu          sync.RWMutex

	// Channel subscriptions: channel → set of connection_ids
	channels  map[string]map[string]bool
	channelMu sync.RWMutex

	runner       TaskRunner
	writeTimeout time.Duration
	logger       *slog.Logger
}

// Connection represents a single WebSocket client.
//
// subscriptions and lanes are accessed WITHOUT a lock. This is safe
// because all reads and writes happen on the single goroutine that owns
// this connection (HandleConnection's read loop and its deferred cleanup);
// lane workers only ever receive from their own channel.
type Connection struct {
	ID            string
	conn          WSConn
	subscriptions map[string]bool
	lanes         map[string]chan execJob
	ctx           context.Context
	cancel        context.CancelFunc
	writeMu       sync.Mutex
	wg            sync.WaitGroup
}

type execJob struct {
	agentID string
	task    string
	context map[string]any
}

// NewConnectionManager creates a manager over the given task runner.
// writeTimeout <= 0 selects the default.
func NewConnectionManager(runner TaskRunner, writeTimeout time.Duration) *ConnectionManager {
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	return &ConnectionManager{
		connections:  make(map[string]*Connection),
		channels:     make(map[string]map[string]bool),
		runner:       runner,
		writeTimeout: writeTimeout,
		logger:       slog.Default().With("component", "connection-manager"),
	}
}

// HandleConnection manages the lifecycle of a single WebSocket connection.
// Called by the WebSocket HTTP handler after upgrade. Blocks until the
// connection closes; disconnect cancels every in-flight task of this
// connection.
func (m *ConnectionManager) HandleConnection(parentCtx context.Context, conn WSConn) {
	ctx, cancel := context.WithCancel(parentCtx)
	c := &Connection{
		ID:            uuid.New().String(),
		conn:          conn,
		subscriptions: make(map[string]bool),
		lanes:         make(map[string]chan execJob),
		ctx:           ctx,
		cancel:        cancel,
	}

	m.registerConnection(c)
	defer m.unregisterConnection(c)

	m.sendJSON(c, map[string]string{
		"type":          "connection.established",
		"connection_id": c.ID,
	})

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			m.logger.Warn("Invalid WebSocket message",
				"connection_id", c.ID, "error", err)
			continue
		}

		m.handleClientMessage(c, &msg)
	}
}

// Broadcast sends an event to all connections subscribed to the channel.
func (m *ConnectionManager) Broadcast(channel string, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		m.logger.Error("Failed to marshal broadcast event",
			"channel", channel, "error", err)
		return
	}

	m.channelMu.RLock()
	connIDs, exists := m.channels[channel]
	if !exists {
		m.channelMu.RUnlock()
		return
	}
	ids := make([]string, 0, len(connIDs))
	for id := range connIDs {
		ids = append(ids, id)
	}
	m.channelMu.RUnlock()

	// Snapshot connection pointers, then release the lock before the
	// sends; a slow client must not stall register/unregister.
	m.mu.RLock()
	conns := make([]*Connection, 0, len(ids))
	for _, id := range ids {
		if conn, ok := m.connections[id]; ok {
			conns = append(conns, conn)
		}
	}
	m.mu.RUnlock()

	for _, conn := range conns {
		if err := m.sendRaw(conn, data); err != nil {
			m.logger.Warn("Failed to send to WebSocket client",
				"connection_id", conn.ID, "channel", channel, "error", err)
		}
	}
}

// ActiveConnections returns the count of active WebSocket connections.
func (m *ConnectionManager) ActiveConnections() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

// subscriberCount is used by tests to poll instead of sleeping.
func (m *ConnectionManager) subscriberCount(channel string) int {
	m.channelMu.RLock()
	defer m.channelMu.RUnlock()
	return len(m.channels[channel])
}

func (m *ConnectionManager) handleClientMessage(c *Connection, msg *ClientMessage) {
	switch msg.Action {
	case ActionExecute:
		if msg.AgentID == "" || msg.Task == "" {
			m.sendJSON(c, map[string]string{
				"type":    "error",
				"message": "agentId and task are required for execute",
			})
			return
		}
		m.enqueue(c, execJob{agentID: msg.AgentID, task: msg.Task, context: msg.Context})

	case ActionSubscribe:
		if msg.Channel == "" {
			m.sendJSON(c, map[string]string{"type": "error", "message": "channel is required for subscribe"})
			return
		}
		m.subscribe(c, msg.Channel)
		m.sendJSON(c, map[string]string{
			"type":    "subscription.confirmed",
			"channel": msg.Channel,
		})

	case ActionUnsubscribe:
		if msg.Channel == "" {
			m.sendJSON(c, map[string]string{"type": "error", "message": "channel is required for unsubscribe"})
			return
		}
		m.unsubscribe(c, msg.Channel)

	case ActionPing:
		m.sendJSON(c, map[string]string{"type": "pong"})

	default:
		m.sendJSON(c, map[string]string{"type": "error", "message": "unknown action: " + msg.Action})
	}
}

// enqueue submits a job to the connection's lane for the agent, creating
// the lane on first use. One lane runs one task at a time, so events for
// one agentId keep submission order. The read loop blocks when a lane is
// full rather than dropping the job.
func (m *ConnectionManager) enqueue(c *Connection, job execJob) {
	lane, exists := c.lanes[job.agentID]
	if !exists {
		lane = make(chan execJob, laneBuffer)
		c.lanes[job.agentID] = lane
		c.wg.Add(1)
		go m.laneWorker(c, lane)
	}

	select {
	case lane <- job:
	case <-c.ctx.Done():
	}
}

// laneWorker drains one agent lane, running jobs strictly in order.
func (m *ConnectionManager) laneWorker(c *Connection, lane <-chan execJob) {
	defer c.wg.Done()
	for {
		select {
		case job := <-lane:
			m.runJob(c, job)
		case <-c.ctx.Done():
			return
		}
	}
}

// runJob emits the start/chunk*/terminal sequence for one task.
func (m *ConnectionManager) runJob(c *Connection, job execJob) {
	m.sendJSON(c, NewStartEvent(job.agentID, job.task))

	response, err := m.runner(c.ctx, job.agentID, job.task, job.context, func(content string) {
		m.sendJSON(c, NewChunkEvent(job.agentID, content))
	})
	if err != nil {
		m.sendJSON(c, NewErrorEvent(job.agentID, job.task, err.Error()))
		return
	}
	m.sendJSON(c, NewCompleteEvent(job.agentID, job.task, response))
}

func (m *ConnectionManager) subscribe(c *Connection, channel string) {
	m.channelMu.Lock()
	if _, exists := m.channels[channel]; !exists {
		m.channels[channel] = make(map[string]bool)
	}
	m.channels[channel][c.ID] = true
	m.channelMu.Unlock()

	c.subscriptions[channel] = true
}

func (m *ConnectionManager) unsubscribe(c *Connection, channel string) {
	m.channelMu.Lock()
	if subs, exists := m.channels[channel]; exists {
		delete(subs, c.ID)
		if len(subs) == 0 {
			delete(m.channels, channel)
		}
	}
	m.channelMu.Unlock()

	delete(c.subscriptions, channel)
}

func (m *ConnectionManager) registerConnection(c *Connection) {
	m.mu.Lock()
	m.connections[c.ID] = c
	m.mu.Unlock()

	m.logger.Debug("WebSocket connection established", "connection_id", c.ID)
}

// unregisterConnection tears one connection down: cancels its context (and
// with it every in-flight task), waits for lane workers, and removes the
// connection from all channel subscriptions.
func (m *ConnectionManager) unregisterConnection(c *Connection) {
	c.cancel()
	c.wg.Wait()

	m.channelMu.Lock()
	for channel := range c.subscriptions {
		if subs, exists := m.channels[channel]; exists {
			delete(subs, c.ID)
			if len(subs) == 0 {
				delete(m.channels, channel)
			}
		}
	}
	m.channelMu.Unlock()

	m.mu.Lock()
	delete(m.connections, c.ID)
	m.mu.Unlock()

	m.logger.Debug("WebSocket connection closed", "connection_id", c.ID)
}

func (m *ConnectionManager) sendJSON(c *Connection, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		m.logger.Error("Failed to marshal WebSocket payload", "error", err)
		return
	}
	if err := m.sendRaw(c, data); err != nil {
		m.logger.Warn("Failed to send to WebSocket client",
			"connection_id", c.ID, "error", err)
	}
}

// sendRaw writes one text frame with the write timeout. Writes are
// serialized per connection: lane workers and broadcasts share the socket.
func (m *ConnectionManager) sendRaw(c *Connection, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	ctx, cancel := context.WithTimeout(c.ctx, m.writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, data)
}
