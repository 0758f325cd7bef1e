package japi

import (
	"errors"
	"io"
	"syscall"
)

// writeFull issues buf as a single logical write, looping on short writes
// and transparently retrying on an interrupted system call. Go's
// net.Conn.Write already writes-to-completion-or-error for stream
// sockets, but we loop defensively rather than assume that of every
// io.Writer a caller might plug in (e.g. a test double).
func writeFull(w io.Writer, buf []byte) error {
	for len(buf) > 0 {
		n, err := w.Write(buf)
		if n > 0 {
			buf = buf[n:]
		}
		if err != nil {
			if errors.Is(err, syscall.EINTR) {
				continue
			}
			return wrapErr(KindIoError, "writeFull", "write failed", err)
		}
	}
	return nil
}

// writeFanout writes one framed JSON line to every subscriber of a push
// service, serializing with each client's own write mutex so the write
// can never interleave with a concurrent Dispatcher response write to the
// same socket. It returns the number of subscribers the write succeeded
// for; any per-socket failure removes that subscriber from ps's set only —
// it never cascades to the client's subscriptions in other services.
func writeFanout(ps *PushService, payload []byte) int {
	ps.mu.Lock()
	subs := make([]*subscriber, len(ps.subscribers))
	copy(subs, ps.subscribers)
	ps.mu.Unlock()

	delivered := 0
	var failed []*subscriber
	for _, s := range subs {
		if err := s.client.writeLine(payload); err != nil {
			failed = append(failed, s)
			continue
		}
		delivered++
	}

	ps.removeFailed(failed)

	if ps.metrics != nil && delivered > 0 {
		ps.metrics.PushDelivered.Add(float64(delivered))
	}

	return delivered
}
