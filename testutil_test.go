package japi

import (
	"io"
	"net"
)

// newPipeDiscardConn returns one end of an in-memory net.Conn pair whose
// peer continuously discards whatever is written, so tests can exercise
// fan-out writes without a real socket or a risk of blocking on a full
// pipe buffer.
func newPipeDiscardConn() net.Conn {
	client, server := net.Pipe()
	go io.Copy(io.Discard, server)
	return client
}
