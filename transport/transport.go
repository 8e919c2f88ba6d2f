// Package transport defines the dealer-style duplex transport the client
// worker drives: discrete frames grouped into logical messages by a "more"
// flag, non-blocking readiness polling, and bounded send/receive timeouts.
// The libzmq binding is the production implementation; an in-process pair
// is provided for tests and loopback probing.
package transport

import (
	"errors"
	"time"
)

// ErrTerminated is surfaced by socket calls once the owning transport
// context has been terminated from another goroutine.
var ErrTerminated = errors.New("transport context terminated")

// Transport creates dealer sockets and owns their shared context.
type Transport interface {
	// NewDealer creates a dealer socket with linger set to zero.
	NewDealer() (Socket, error)

	// Term terminates the context, unblocking in-flight socket calls
	// with ErrTerminated.
	Term() error
}

// Socket is one duplex dealer endpoint. It is owned by a single goroutine
// after creation; only Term may be invoked concurrently with its calls.
type Socket interface {
	// SetIdentity sets the routing identity; must precede Connect.
	SetIdentity(id []byte) error

	SetSendTimeout(d time.Duration) error
	SetRecvTimeout(d time.Duration) error

	Connect(addr string) error

	// Send writes one frame; more marks it as a non-terminal frame of a
	// multi-frame message. ok is false when the send timeout expired
	// with nothing written.
	Send(data []byte, more bool) (ok bool, err error)

	// Recv reads one frame. ok is false when the receive timeout expired.
	Recv() (data []byte, ok bool, err error)

	// More reports whether further frames of the current message follow
	// the last received frame.
	More() (bool, error)

	// Pending reports whether input can be received without blocking.
	Pending() (bool, error)

	// Poll waits up to timeout for readability or writability.
	Poll(timeout time.Duration) (readable bool, writable bool, err error)

	Close() error
}
