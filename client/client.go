// Package client implements the asynchronous dealer client a rendering
// exporter uses to talk to a remote rendering server. Each client owns one
// worker goroutine that muxes the transport with the outbound queue,
// enforces the handshake, keeps the server alive with pings, and delivers
// incoming payloads to a user callback.
package client

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/renderbridge/go-renderlink/config"
	"github.com/renderbridge/go-renderlink/message"
	"github.com/renderbridge/go-renderlink/protocol"
	"github.com/renderbridge/go-renderlink/transport"
)

// Callback receives incoming data payloads on the worker goroutine. The
// payload slice is borrowed and valid only for the duration of the call.
// The callback holds the callback mutex while it runs: it may call Send on
// its client, but must not call SetCallback or SyncStop on it.
type Callback func(payload []byte, client *Client)

type Options struct {
	Config *config.Config

	// Heartbeat selects the liveness-probe role; the client then carries
	// no application payloads and terminates on inbound silence.
	Heartbeat bool

	// Transport overrides the libzmq transport, mainly for tests.
	Transport transport.Transport
}

type Client struct {
	options    *Options
	clientType protocol.ClientType
	logPrefix  string
	logDebug   bool

	pingInterval     time.Duration
	heartbeatTimeout time.Duration
	handshakeTimeout time.Duration
	maxBurst         int

	transport transport.Transport
	socket    transport.Socket // created on the worker goroutine during init

	queue outboundQueue

	callbackMutex sync.Mutex
	callback      Callback

	startServing atomic.Bool
	isWorking    atomic.Bool
	errorConnect atomic.Bool
	flushOnExit  atomic.Bool
	serverStop   atomic.Bool

	serveOnce sync.Once
	serveCh   chan struct{}

	termOnce sync.Once
	done     chan struct{}
}

// New spawns the worker and waits for its socket to be created. The client
// is returned in unconnected state; call Connect to initiate the
// handshake. A failed socket init is reported through Good, not an error.
func New(options *Options) (*Client, error) {
	if options == nil {
		err := fmt.Errorf("nil options")
		log.Printf("%s", err.Error())
		return nil, err
	}

	c := options.Config
	if c == nil {
		c = &config.Config{}
	}
	err := c.Validate()
	if err != nil {
		return nil, err
	}

	clientType := protocol.Exporter
	if options.Heartbeat {
		clientType = protocol.Heartbeat
	}

	logPrefix := c.LogPrefix
	if logPrefix == "" {
		logPrefix = clientType.String()
	}

	p := &Client{
		options:    options,
		clientType: clientType,
		logPrefix:  logPrefix,
		logDebug:   c.LogDebug,

		pingInterval:     c.ResolvedPingInterval(),
		heartbeatTimeout: c.ResolvedHeartbeatTimeout(),
		handshakeTimeout: c.ResolvedHandshakeTimeout(),
		maxBurst:         c.ResolvedMaxBurst(),

		serveCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
	p.isWorking.Store(true)

	p.transport = options.Transport
	if p.transport == nil {
		zt, err := transport.NewZmq()
		if err != nil {
			log.Printf("%s: failed to init transport, err=%s", p.logPrefix, err.Error())
			p.isWorking.Store(false)
			close(p.done)
			return p, nil
		}
		p.transport = zt
	}

	initch := make(chan bool, 1)
	go p.worker(initch)
	<-initch

	return p, nil
}

func (p *Client) Options() *Options {
	return p.options
}

// Connect sets a random identity, attempts the transport connect, and
// releases the worker from its start-serving latch. Non-blocking; a
// transport failure is reported through Connected and Good.
func (p *Client) Connect(addr string) {
	soc := p.socket
	if soc == nil {
		log.Printf("%s: socket unavailable, cannot connect to %s", p.logPrefix, addr)
		p.errorConnect.Store(true)
		p.releaseServe()
		return
	}

	err := soc.SetIdentity(randomIdentity())
	if err != nil {
		log.Printf("%s: failed to set identity, err=%s", p.logPrefix, err.Error())
		p.errorConnect.Store(true)
		p.releaseServe()
		return
	}

	err = soc.Connect(addr)
	if err != nil {
		log.Printf("%s: failed to connect to %s, err=%s", p.logPrefix, addr, err.Error())
		p.errorConnect.Store(true)
	}

	p.releaseServe()
}

func (p *Client) releaseServe() {
	p.serveOnce.Do(func() {
		p.startServing.Store(true)
		close(p.serveCh)
	})
}

// Send copies data into the outbound queue. Thread-safe; never blocks on
// I/O. Silent if the worker has died: the payload is queued and discarded
// on teardown unless flush on exit is set.
func (p *Client) Send(data []byte) {
	buf := make([]byte, len(data))
	copy(buf, data)
	p.queue.push(buf)
}

// SendOwned enqueues data without copying; the caller must not touch the
// slice afterwards.
func (p *Client) SendOwned(data []byte) {
	p.queue.push(data)
}

// SendMessage serializes a domain message and enqueues the payload.
func (p *Client) SendMessage(m *message.Message) error {
	buf, err := message.Encode(m)
	if err != nil {
		return err
	}
	p.queue.push(buf)
	return nil
}

// SetCallback installs the sink for future incoming data payloads.
// Serialized against invocation via the callback mutex.
func (p *Client) SetCallback(cb Callback) {
	p.callbackMutex.Lock()
	defer p.callbackMutex.Unlock()
	p.callback = cb
}

// SetFlushOnExit selects whether pending envelopes are sent during
// shutdown instead of discarded.
func (p *Client) SetFlushOnExit(flag bool) {
	p.flushOnExit.Store(flag)
}

func (p *Client) FlushOnExit() bool {
	return p.flushOnExit.Load()
}

// OutstandingMessages returns the number of envelopes yet to be sent.
// Advisory; may be stale by the time the caller acts.
func (p *Client) OutstandingMessages() int {
	return p.queue.size()
}

// Connected reports whether Connect has been called and the transport
// connect did not fail. It does not imply the handshake succeeded.
func (p *Client) Connected() bool {
	return p.startServing.Load() && !p.errorConnect.Load()
}

// Good reports whether the worker is still serving.
func (p *Client) Good() bool {
	return p.isWorking.Load()
}

// WaitForMessages blocks until the outbound queue is empty or the timeout
// passes. The timeout is clamped to 10 seconds. Returns false on timeout
// or if the worker died with pending messages.
func (p *Client) WaitForMessages(timeout time.Duration) bool {
	if timeout > config.MaxWaitForMessages {
		timeout = config.MaxWaitForMessages
	}

	if p.queue.empty() {
		return true
	}

	begin := time.Now()
	for p.isWorking.Load() {
		if p.queue.empty() {
			return true
		}
		if time.Since(begin) >= timeout {
			return false
		}
		time.Sleep(config.IdleSleep)
	}

	return false
}

// StopServer asks the worker to emit a stop command to the server and then
// exit. Fire-and-forget; neither joins nor blocks.
func (p *Client) StopServer() {
	p.serverStop.Store(true)
	p.isWorking.Store(false)
}

// SyncStop orders the worker to exit, releases the start-serving latch,
// terminates the transport context to break blocked calls, and joins the
// worker. Safe to call more than once.
func (p *Client) SyncStop() {
	if p.serverStop.Load() {
		// give chance for worker to send the stop message
		begin := time.Now()
		for p.serverStop.Load() {
			if time.Since(begin) > config.ShutdownSendTimeout {
				break
			}
			time.Sleep(time.Millisecond)
		}
	}

	p.isWorking.Store(false)
	p.releaseServe()

	if p.flushOnExit.Load() {
		// give chance for worker to drain the queue before the context
		// goes away; the flush may still deliver only a prefix
		begin := time.Now()
		for !p.queue.empty() {
			workerDone := false
			select {
			case <-p.done:
				workerDone = true
			default:
			}
			if workerDone || time.Since(begin) > config.ShutdownSendTimeout {
				break
			}
			time.Sleep(time.Millisecond)
		}
	}

	p.termOnce.Do(func() {
		if p.transport == nil {
			return
		}
		err := p.transport.Term()
		if err != nil {
			log.Printf("%s: failed to terminate transport, err=%s", p.logPrefix, err.Error())
		}
	})

	<-p.done
}

// Close is equivalent to SyncStop.
func (p *Client) Close() {
	p.SyncStop()
}

// randomIdentity draws an 8-byte routing identity. The leading byte must
// be nonzero, reserved by the transport.
func randomIdentity() []byte {
	id := make([]byte, 8)
	for {
		_, err := rand.Read(id)
		if err != nil {
			log.Printf("failed to read random identity, err=%s", err.Error())
			binary.LittleEndian.PutUint64(id, uint64(time.Now().UnixNano()))
		}
		if id[0] != 0 {
			return id
		}
	}
}
