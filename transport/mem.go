package transport

import (
	"fmt"
	"sync"
	"time"
)

const memPollStep = time.Millisecond

// MemHub is an in-process rendezvous of named endpoints. Peers register
// listeners by address; dealer sockets created through a hub transport
// connect to them. Used by package tests and loopback self probing.
type MemHub struct {
	mu        sync.Mutex
	listeners map[string]*MemListener
}

func NewMemHub() *MemHub {
	return &MemHub{
		listeners: make(map[string]*MemListener),
	}
}

// Listen registers (or returns) the endpoint for addr.
func (h *MemHub) Listen(addr string) *MemListener {
	h.mu.Lock()
	defer h.mu.Unlock()

	l, found := h.listeners[addr]
	if !found {
		l = &MemListener{
			addr:  addr,
			conns: make(chan *MemConn, 16),
		}
		h.listeners[addr] = l
	}
	return l
}

func (h *MemHub) lookup(addr string) *MemListener {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.listeners[addr]
}

// Transport returns a fresh transport context bound to the hub. Each
// client owns its own context, mirroring the libzmq discipline.
func (h *MemHub) Transport() Transport {
	return &memTransport{
		hub:  h,
		term: make(chan struct{}),
	}
}

type memTransport struct {
	hub      *MemHub
	termOnce sync.Once
	term     chan struct{}
}

func (t *memTransport) NewDealer() (Socket, error) {
	return &memSocket{
		hub:         t.hub,
		term:        t.term,
		sendTimeout: -1,
		recvTimeout: -1,
	}, nil
}

func (t *memTransport) Term() error {
	t.termOnce.Do(func() {
		close(t.term)
	})
	return nil
}

// MemListener accepts one MemConn per connecting dealer.
type MemListener struct {
	addr  string
	conns chan *MemConn
}

func (l *MemListener) Accept(timeout time.Duration) (*MemConn, bool) {
	select {
	case c := <-l.conns:
		return c, true
	case <-time.After(timeout):
		return nil, false
	}
}

type memFrame struct {
	data []byte
	more bool
}

// memPipe carries frames between a dealer socket and its peer handle.
type memPipe struct {
	mu             sync.Mutex
	toPeer         []memFrame
	toClient       []memFrame
	clientWritable bool
	// a multi-frame message is accepted atomically: once its first frame
	// is in, the writability gate does not apply to the rest
	clientMsgInProgress bool
}

// tryPushToPeer accepts one dealer frame unless the writability gate is
// closed at a message boundary.
func (p *memPipe) tryPushToPeer(f memFrame) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.clientMsgInProgress && !p.clientWritable {
		return false
	}
	p.toPeer = append(p.toPeer, f)
	p.clientMsgInProgress = f.more
	return true
}

func (p *memPipe) popToPeer() (memFrame, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.toPeer) == 0 {
		return memFrame{}, false
	}
	f := p.toPeer[0]
	p.toPeer = p.toPeer[1:]
	return f, true
}

func (p *memPipe) pushToClient(f memFrame) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.toClient = append(p.toClient, f)
}

func (p *memPipe) popToClient() (memFrame, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.toClient) == 0 {
		return memFrame{}, false
	}
	f := p.toClient[0]
	p.toClient = p.toClient[1:]
	return f, true
}

func (p *memPipe) clientReadable() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.toClient) > 0
}

func (p *memPipe) isClientWritable() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clientWritable || p.clientMsgInProgress
}

// MemConn is the peer-side handle of one connected dealer.
type MemConn struct {
	identity []byte
	pipe     *memPipe
}

func (c *MemConn) Identity() []byte {
	return c.identity
}

// Recv pops one frame sent by the dealer, waiting up to timeout.
func (c *MemConn) Recv(timeout time.Duration) ([]byte, bool, bool) {
	deadline := time.Now().Add(timeout)
	for {
		f, found := c.pipe.popToPeer()
		if found {
			return f.data, f.more, true
		}
		if time.Now().After(deadline) {
			return nil, false, false
		}
		time.Sleep(memPollStep)
	}
}

// Send pushes one frame toward the dealer.
func (c *MemConn) Send(data []byte, more bool) {
	buf := make([]byte, len(data))
	copy(buf, data)
	c.pipe.pushToClient(memFrame{data: buf, more: more})
}

// SetPeerWritable gates the dealer's outbound path; while false the dealer
// observes an unwritable socket and its sends time out.
func (c *MemConn) SetPeerWritable(v bool) {
	c.pipe.mu.Lock()
	defer c.pipe.mu.Unlock()
	c.pipe.clientWritable = v
}

type memSocket struct {
	hub  *MemHub
	term chan struct{}

	mu          sync.Mutex
	identity    []byte
	sendTimeout time.Duration
	recvTimeout time.Duration
	pipe        *memPipe
	lastMore    bool
	closed      bool
}

func (s *memSocket) terminated() bool {
	select {
	case <-s.term:
		return true
	default:
		return false
	}
}

func (s *memSocket) SetIdentity(id []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = append([]byte(nil), id...)
	return nil
}

func (s *memSocket) SetSendTimeout(d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendTimeout = d
	return nil
}

func (s *memSocket) SetRecvTimeout(d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recvTimeout = d
	return nil
}

func (s *memSocket) Connect(addr string) error {
	l := s.hub.lookup(addr)
	if l == nil {
		return fmt.Errorf("connection refused: %s", addr)
	}

	pipe := &memPipe{
		clientWritable: true,
	}

	s.mu.Lock()
	s.pipe = pipe
	conn := &MemConn{
		identity: append([]byte(nil), s.identity...),
		pipe:     pipe,
	}
	s.mu.Unlock()

	select {
	case l.conns <- conn:
	default:
		return fmt.Errorf("accept queue full: %s", addr)
	}
	return nil
}

func (s *memSocket) snapshot() (*memPipe, time.Duration, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pipe, s.sendTimeout, s.recvTimeout
}

// wait spins in memPollStep increments until cond holds, the timeout
// expires, or the context terminates. A negative timeout waits forever.
func (s *memSocket) wait(timeout time.Duration, cond func() bool) (bool, error) {
	var deadline time.Time
	if timeout >= 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		if s.terminated() {
			return false, ErrTerminated
		}
		if cond() {
			return true, nil
		}
		if timeout >= 0 && time.Now().After(deadline) {
			return false, nil
		}
		time.Sleep(memPollStep)
	}
}

func (s *memSocket) Send(data []byte, more bool) (bool, error) {
	pipe, sendTimeout, _ := s.snapshot()
	if pipe == nil {
		return false, fmt.Errorf("socket not connected")
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	frame := memFrame{data: buf, more: more}

	accepted, err := s.wait(sendTimeout, func() bool {
		return pipe.tryPushToPeer(frame)
	})
	if err != nil || !accepted {
		return false, err
	}

	return true, nil
}

func (s *memSocket) Recv() ([]byte, bool, error) {
	pipe, _, recvTimeout := s.snapshot()
	if pipe == nil {
		return nil, false, fmt.Errorf("socket not connected")
	}

	var frame memFrame
	ready, err := s.wait(recvTimeout, func() bool {
		f, found := pipe.popToClient()
		if found {
			frame = f
		}
		return found
	})
	if err != nil || !ready {
		return nil, false, err
	}

	s.mu.Lock()
	s.lastMore = frame.more
	s.mu.Unlock()

	return frame.data, true, nil
}

func (s *memSocket) More() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastMore, nil
}

func (s *memSocket) Pending() (bool, error) {
	pipe, _, _ := s.snapshot()
	if pipe == nil {
		return false, nil
	}
	return pipe.clientReadable(), nil
}

func (s *memSocket) Poll(timeout time.Duration) (bool, bool, error) {
	if s.terminated() {
		return false, false, ErrTerminated
	}

	pipe, _, _ := s.snapshot()
	if pipe == nil {
		time.Sleep(timeout)
		return false, false, nil
	}

	deadline := time.Now().Add(timeout)
	for {
		readable := pipe.clientReadable()
		writable := pipe.isClientWritable()
		if readable || writable || time.Now().After(deadline) {
			return readable, writable, nil
		}
		if s.terminated() {
			return false, false, ErrTerminated
		}
		time.Sleep(memPollStep)
	}
}

func (s *memSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
