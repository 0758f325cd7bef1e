package japi

import (
	"net"
	"sync"
)

// Client is a single connected peer. Every Client present in a Context's
// client table has an open socket; it is removed (and the socket closed)
// on disconnect, read error, write error, or global shutdown.
type Client struct {
	// ID stands in for the reference implementation's raw file descriptor:
	// a monotonically increasing, never-reused-while-live integer identity
	// used to key subscriptions. Go does not portably expose a raw fd for
	// an arbitrary net.Conn; identity only needs to be well defined while
	// the client is live, and a per-Context counter satisfies that without
	// reaching into the runtime.
	ID   uint64
	conn net.Conn
	lr   *LineReader

	// writeMu serializes writes to conn so the Dispatcher's response write
	// and a push service's fan-out write are never interleaved mid-message.
	writeMu sync.Mutex
}

// clientTable is the set of live clients, keyed by Client.ID. All mutation
// happens under Context.mu; see Context.addClient / removeClient.
type clientTable struct {
	clients map[uint64]*Client
	nextID  uint64
}

func newClientTable() *clientTable {
	return &clientTable{clients: make(map[uint64]*Client)}
}

// addClient admits a newly accepted connection, assuming the caller has
// already performed cap/rate-limit admission checks. Returns nil if the
// Context is shutting down.
func (c *Context) addClient(conn net.Conn) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.shutdown {
		return nil
	}

	c.table.nextID++
	client := &Client{
		ID:   c.table.nextID,
		conn: conn,
		lr:   NewLineReader(conn, c.maxLineSize),
	}
	c.table.clients[client.ID] = client
	if c.metrics != nil {
		c.metrics.ClientsActive.Set(float64(len(c.table.clients)))
	}
	return client
}

// removeClient unlinks and closes a client's socket, cascading the
// unsubscribe across every push service first: cascade removal must
// happen before the Context mutex is taken, to avoid a lock order
// inversion against per-service mutexes (which are acquired one at a
// time, never together with Context.mu).
func (c *Context) removeClient(id uint64) {
	c.pushServices.removeClientFromAll(id)

	c.mu.Lock()
	client, ok := c.table.clients[id]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.table.clients, id)
	count := len(c.table.clients)
	c.mu.Unlock()

	_ = client.conn.Close()
	if c.metrics != nil {
		c.metrics.ClientsActive.Set(float64(count))
	}
}

// removeAllClients tears down every connected client; used at Shutdown
// drain time and at Destroy.
func (c *Context) removeAllClients() {
	c.mu.Lock()
	ids := make([]uint64, 0, len(c.table.clients))
	for id := range c.table.clients {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	for _, id := range ids {
		c.removeClient(id)
	}
}

// clientCount returns the number of currently tracked clients.
func (c *Context) clientCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.table.clients)
}

// writeLine assembles payload+"\n" into a single buffer and issues it as
// one write under the client's write mutex.
func (cl *Client) writeLine(payload []byte) error {
	framed := make([]byte, 0, len(payload)+1)
	framed = append(framed, payload...)
	framed = append(framed, '\n')

	cl.writeMu.Lock()
	defer cl.writeMu.Unlock()
	return writeFull(cl.conn, framed)
}
