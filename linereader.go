package japi

import (
	"bytes"
	"errors"
	"io"
	"syscall"
)

const (
	// DefaultMaxLineSize is the default cap on one logical line.
	DefaultMaxLineSize = 64 << 20 // 64 MiB
	readBlockSize      = 4096
)

// LineReader extracts newline-terminated logical lines from a byte stream,
// carrying leftover bytes between calls. One LineReader belongs to exactly
// one connection; its state must never be shared across clients.
type LineReader struct {
	r       io.Reader
	maxLine int
	buf     []byte // unconsumed bytes read so far, no terminator yet found
	scratch []byte // reusable block-sized read buffer
}

// NewLineReader wraps r. maxLine <= 0 selects DefaultMaxLineSize.
func NewLineReader(r io.Reader, maxLine int) *LineReader {
	if maxLine <= 0 {
		maxLine = DefaultMaxLineSize
	}
	return &LineReader{
		r:       r,
		maxLine: maxLine,
		scratch: make([]byte, readBlockSize),
	}
}

// ReadLine returns exactly one complete line with its terminator stripped.
//
// Return conventions:
//   - (line, nil) with len(line) >= 0 on a normal (possibly empty) line.
//   - (nil, io.EOF) when the peer closed the connection with no buffered
//     partial line.
//   - (nil, *Error{Kind: KindEOFWithPartial}) when the peer closed mid-line.
//   - (nil, *Error{Kind: KindLineTooLarge}) when the cap is exceeded before
//     a terminator is found. The caller must close the connection.
//   - (nil, *Error{Kind: KindIoError}) on any other read failure.
func (lr *LineReader) ReadLine() ([]byte, error) {
	for {
		if idx := bytes.IndexByte(lr.buf, '\n'); idx >= 0 {
			if idx > lr.maxLine {
				return nil, wrapErr(KindLineTooLarge, "ReadLine", "line exceeds maximum size", nil)
			}

			end := idx
			if end > 0 && lr.buf[end-1] == '\r' {
				end--
			}
			line := make([]byte, end)
			copy(line, lr.buf[:end])

			remaining := len(lr.buf) - (idx + 1)
			copy(lr.buf, lr.buf[idx+1:])
			lr.buf = lr.buf[:remaining]

			return line, nil
		}

		if len(lr.buf) > lr.maxLine {
			return nil, wrapErr(KindLineTooLarge, "ReadLine", "line exceeds maximum size", nil)
		}

		n, err := lr.r.Read(lr.scratch)
		if n > 0 {
			lr.buf = append(lr.buf, lr.scratch[:n]...)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				if len(lr.buf) == 0 {
					return nil, io.EOF
				}
				return nil, wrapErr(KindEOFWithPartial, "ReadLine", "connection closed with unterminated line", nil)
			}
			if errors.Is(err, syscall.EINTR) {
				continue
			}
			return nil, wrapErr(KindIoError, "ReadLine", "read failed", err)
		}
	}
}

// Pending reports whether a complete line is already buffered, so that
// the next ReadLine can return it without another underlying Read.
func (lr *LineReader) Pending() bool {
	return bytes.IndexByte(lr.buf, '\n') >= 0
}
