package japi

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
)

// KeepaliveConfig is the optional TCP keepalive tuple an embedder may apply
// to every accepted connection. Go's net package exposes idle period and
// on/off as a single knob (SetKeepAlivePeriod); Interval and Probes are
// carried for parity with the config surface and with the reference
// implementation's setsockopt tuple, but the stdlib has no portable way
// to set them independently of the idle period.
type KeepaliveConfig struct {
	Enable   bool
	Idle     time.Duration
	Interval time.Duration
	Probes   int
}

// ListenAndServe opens addr, then accepts connections until ctx is
// canceled or Shutdown is called, at which point it closes the listener,
// removes every client left in the table (closing its socket), waits for
// every in-flight client goroutine to return, and returns nil. This replaces the reference
// implementation's single-threaded select() loop with one reader
// goroutine per accepted connection, spawned from this accept loop.
func (c *Context) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return wrapErr(KindIoError, "ListenAndServe", "listen", err)
	}

	c.mu.Lock()
	c.listener = ln
	c.mu.Unlock()

	c.logger.Info("japi listening", zap.String("addr", addr))

	stopWatch := make(chan struct{})
	defer close(stopWatch)
	go func() {
		select {
		case <-ctx.Done():
			c.Shutdown()
		case <-stopWatch:
		}
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			c.mu.Lock()
			draining := c.shutdown
			c.mu.Unlock()
			if draining {
				break
			}
			c.logger.Error("accept failed", zap.Error(err))
			return wrapErr(KindIoError, "ListenAndServe", "accept", err)
		}

		c.acceptConn(conn)
	}

	c.removeAllClients()
	c.wg.Wait()
	c.logger.Info("japi stopped", zap.String("addr", addr))
	return nil
}

// acceptConn admits or rejects one freshly accepted connection: the
// connection-rate limiter runs first, then the max-clients cap, layering
// admission shaping on top of (not instead of) the existing cap.
func (c *Context) acceptConn(conn net.Conn) {
	ip := hostOf(conn.RemoteAddr())

	if c.rateLimiter != nil && !c.rateLimiter.Allow(ip) {
		c.rejectConn(conn, "rate_limit")
		return
	}

	c.mu.Lock()
	atCap := c.maxClients != 0 && uint16(len(c.table.clients)) >= c.maxClients
	c.mu.Unlock()
	if atCap {
		c.rejectConn(conn, "max_clients")
		return
	}

	c.applyKeepalive(conn)

	client := c.addClient(conn)
	if client == nil {
		_ = conn.Close()
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.serveClient(client)
	}()
}

func (c *Context) rejectConn(conn net.Conn, reason string) {
	if c.metrics != nil {
		c.metrics.AcceptRejected.WithLabelValues(reason).Inc()
	}
	c.logger.Debug("connection rejected", zap.String("reason", reason),
		zap.String("remote", conn.RemoteAddr().String()))
	_ = conn.Close()
}

func (c *Context) applyKeepalive(conn net.Conn) {
	if !c.keepalive.Enable {
		return
	}
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	_ = tc.SetKeepAlive(true)
	if c.keepalive.Idle > 0 {
		_ = tc.SetKeepAlivePeriod(c.keepalive.Idle)
	}
}

// serveClient is the per-connection reader loop: read a line, dispatch it,
// write the response, repeat until the line reader reports EOF or an
// error. Any terminal condition removes the client from the table, which
// cascades its unsubscription from every push service before the Context
// mutex is ever taken (see removeClient's lock-ordering comment).
func (c *Context) serveClient(client *Client) {
	defer func() {
		c.removeClient(client.ID)
		if c.metrics != nil {
			c.metrics.ClientsActive.Set(float64(c.clientCount()))
		}
		_ = client.conn.Close()
	}()

	for {
		line, err := client.lr.ReadLine()
		if err != nil {
			c.logger.Debug("client disconnected",
				zap.Uint64("client_id", client.ID), zap.Error(err))
			return
		}

		payload, ok := c.dispatch(client, line)
		if !ok {
			continue
		}

		if err := client.writeLine(payload); err != nil {
			c.logger.Debug("client write failed",
				zap.Uint64("client_id", client.ID), zap.Error(err))
			return
		}
	}
}

func hostOf(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
