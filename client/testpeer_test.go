package client

import (
	"testing"
	"time"

	"github.com/renderbridge/go-renderlink/config"
	"github.com/renderbridge/go-renderlink/protocol"
	"github.com/renderbridge/go-renderlink/transport"
)

const testAddr = "mem://renderer"

// fastConfig shrinks the protocol timers so liveness scenarios complete in
// test time.
func fastConfig() *config.Config {
	return &config.Config{
		PingInterval:     50 * time.Millisecond,
		HeartbeatTimeout: 150 * time.Millisecond,
		HandshakeTimeout: 300 * time.Millisecond,
		LogPrefix:        "test",
	}
}

type wireRecord struct {
	frame   protocol.ControlFrame
	rawCtrl []byte
	payload []byte
}

// testPeer plays the server side of the wire protocol over the in-memory
// transport: accept one dealer, answer its handshake, then observe or
// inject records.
type testPeer struct {
	t        *testing.T
	hub      *transport.MemHub
	listener *transport.MemListener
	conn     *transport.MemConn
}

func newTestPeer(t *testing.T) *testPeer {
	t.Helper()
	hub := transport.NewMemHub()
	return &testPeer{
		t:        t,
		hub:      hub,
		listener: hub.Listen(testAddr),
	}
}

func (s *testPeer) newClient(heartbeat bool) *Client {
	s.t.Helper()
	cl, err := New(&Options{
		Config:    fastConfig(),
		Heartbeat: heartbeat,
		Transport: s.hub.Transport(),
	})
	if err != nil {
		s.t.Fatalf("New failed: %v", err)
	}
	return cl
}

func (s *testPeer) accept() {
	s.t.Helper()
	conn, ok := s.listener.Accept(2 * time.Second)
	if !ok {
		s.t.Fatalf("no dealer connected")
	}
	s.conn = conn
}

// recvRecord reads one (control, payload) pair from the dealer. The
// control frame is parsed best effort; rawCtrl always carries the bytes.
func (s *testPeer) recvRecord(timeout time.Duration) (wireRecord, bool) {
	s.t.Helper()

	ctrl, more, ok := s.conn.Recv(timeout)
	if !ok {
		return wireRecord{}, false
	}

	var payload []byte
	if more {
		payload, _, ok = s.conn.Recv(time.Second)
		if !ok {
			s.t.Fatalf("control frame without terminal payload frame")
		}
	}

	frame, _ := protocol.ParseControlFrame(ctrl)
	return wireRecord{
		frame:   frame,
		rawCtrl: ctrl,
		payload: payload,
	}, true
}

func (s *testPeer) sendRecord(ctrl []byte, payload []byte) {
	s.conn.Send(ctrl, true)
	s.conn.Send(payload, false)
}

// acceptAndHandshake accepts the dealer, checks its connect request, and
// acknowledges with the matching create opcode.
func (s *testPeer) acceptAndHandshake(role protocol.ClientType) {
	s.t.Helper()
	s.accept()

	rec, ok := s.recvRecord(2 * time.Second)
	if !ok {
		s.t.Fatalf("no handshake request received")
	}
	if rec.frame.Control != protocol.ConnectMessage(role) {
		s.t.Fatalf("handshake request opcode %s, want %s", rec.frame.Control, protocol.ConnectMessage(role))
	}
	if rec.frame.Type != role {
		s.t.Fatalf("handshake request role %s, want %s", rec.frame.Type, role)
	}

	s.sendRecord(protocol.NewControlFrame(role, protocol.CreateMessage(role)).Encode(), nil)
}

// collectData gathers want data records, ignoring pings, within timeout.
func (s *testPeer) collectData(want int, timeout time.Duration) []wireRecord {
	s.t.Helper()

	var data []wireRecord
	deadline := time.Now().Add(timeout)
	for len(data) < want {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		rec, ok := s.recvRecord(remaining)
		if !ok {
			break
		}
		if rec.frame.Control == protocol.DataMsg {
			data = append(data, rec)
		}
	}
	return data
}

// waitFor polls cond until it holds or the timeout passes.
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
}
