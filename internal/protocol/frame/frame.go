// Package frame reassembles a raw byte stream into discrete command frames.
//
// Commands on the raw-stream transport are delimited by a fixed terminator
// sequence. There is no length prefix and no escaping: a terminator occurring
// inside payload bytes truncates the command. Command payloads are JSON,
// which never contains the terminator when it is chosen outside the JSON
// character repertoire; the restriction is part of the wire contract.
package frame

import (
	"bytes"
	"errors"
	"fmt"
)

// ErrOverflow reports that the reassembly buffer exceeded its bound without
// a terminator. It is connection-fatal: the orchestrator must drop the peer.
var ErrOverflow = errors.New("frame buffer overflow")

// Reassembler accumulates partial reads and yields complete frames. One
// instance belongs to exactly one connection and is not safe for concurrent
// use; connections are handled by a single goroutine each.
type Reassembler struct {
	terminator []byte
	maxBuffer  int
	buf        []byte
}

// New creates a Reassembler. The terminator must be non-empty; maxBuffer
// bounds how many bytes may accumulate without a terminator.
func New(terminator []byte, maxBuffer int) (*Reassembler, error) {
	if len(terminator) == 0 {
		return nil, fmt.Errorf("terminator must be non-empty")
	}
	if maxBuffer <= len(terminator) {
		return nil, fmt.Errorf("max buffer %d too small for terminator", maxBuffer)
	}
	return &Reassembler{
		terminator: append([]byte(nil), terminator...),
		maxBuffer:  maxBuffer,
	}, nil
}

// Feed appends a chunk and returns every frame completed by it, in arrival
// order. A chunk with no terminator grows the buffer and yields nothing.
// An empty segment between two terminators yields an empty frame, which
// callers treat as a no-op.
//
// Reassembly itself cannot fail; the only error is ErrOverflow when the
// residual buffer outgrows the configured bound.
func (r *Reassembler) Feed(chunk []byte) ([][]byte, error) {
	r.buf = append(r.buf, chunk...)

	var frames [][]byte
	for {
		idx := bytes.Index(r.buf, r.terminator)
		if idx < 0 {
			break
		}
		cmd := append([]byte(nil), r.buf[:idx]...)
		frames = append(frames, cmd)
		r.buf = r.buf[idx+len(r.terminator):]
	}

	if len(r.buf) > r.maxBuffer {
		return frames, ErrOverflow
	}
	return frames, nil
}

// Pending returns how many unterminated bytes are buffered. Used by tests
// and connection diagnostics.
func (r *Reassembler) Pending() int {
	return len(r.buf)
}
