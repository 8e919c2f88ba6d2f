package client

import (
	"log"
	"time"

	"github.com/renderbridge/go-renderlink/config"
	"github.com/renderbridge/go-renderlink/protocol"
	"github.com/renderbridge/go-renderlink/transport"
)

var emptyFrame = []byte{}

// worker runs the client state machine on its own goroutine:
// init -> wait for serve -> handshake -> serve -> shutdown -> teardown.
func (p *Client) worker(initch chan<- bool) {
	defer close(p.done)

	soc, err := p.transport.NewDealer()
	if err != nil {
		log.Printf("%s: worker initialization failed, err=%s", p.logPrefix, err.Error())
		p.isWorking.Store(false)
		initch <- false
		return
	}

	err = soc.SetSendTimeout(p.heartbeatTimeout)
	if err != nil {
		log.Printf("%s: failed to set send timeout, err=%s", p.logPrefix, err.Error())
		soc.Close()
		p.isWorking.Store(false)
		initch <- false
		return
	}

	p.socket = soc
	initch <- true

	defer func() {
		soc.Close()
		p.isWorking.Store(false)
	}()

	// released by Connect or SyncStop; the identity must be set before
	// the handshake runs
	<-p.serveCh

	if p.errorConnect.Load() || !p.isWorking.Load() {
		return
	}

	if !p.handshake(soc) {
		return
	}

	lastHBRecv := time.Now()
	// ensure a ping goes out on the first iteration
	lastHBSend := lastHBRecv.Add(-2 * p.heartbeatTimeout)

	for p.isWorking.Load() {
		didWork := false

		readable, writable, err := soc.Poll(config.PollBudget)
		if err != nil {
			log.Printf("%s: poll failed, stopping client, err=%s", p.logPrefix, err.Error())
			return
		}

		if readable {
			didWork = true
			if !p.readBurst(soc, &lastHBRecv) {
				return
			}
		}

		if writable {
			now := time.Now()
			// no messages sent in a while - ping server
			if now.Sub(lastHBSend) > p.pingInterval {
				sent, err := p.sendControl(soc, protocol.PingMsg)
				if err != nil {
					log.Printf("%s: send failed, stopping client, err=%s", p.logPrefix, err.Error())
					return
				}
				if sent {
					lastHBSend = now
					didWork = true
				}
			}

			didWork = didWork || !p.queue.empty()
			if !p.writeBurst(soc, &lastHBSend) {
				return
			}
		}

		if p.clientType == protocol.Heartbeat && time.Since(lastHBRecv) > p.heartbeatTimeout {
			log.Printf("%s: server unresponsive, stopping client", p.logPrefix)
			return
		}

		if !didWork && p.isWorking.Load() {
			time.Sleep(config.IdleSleep)
		}
	}

	p.shutdown(soc)
}

// handshake sends the connect request for the client's role and validates
// the server's create acknowledgement. Any failure tears the worker down;
// there is no retry.
func (p *Client) handshake(soc transport.Socket) bool {
	sent, err := p.sendControl(soc, protocol.ConnectMessage(p.clientType))
	if err != nil || !sent {
		log.Printf("%s: failed to send handshake, err=%v", p.logPrefix, err)
		return false
	}

	err = soc.SetRecvTimeout(p.handshakeTimeout)
	if err != nil {
		log.Printf("%s: failed to set recv timeout, err=%s", p.logPrefix, err.Error())
		return false
	}

	ctrl, _, received, err := p.recvRecord(soc)
	if err != nil {
		log.Printf("%s: failed to receive handshake, err=%s", p.logPrefix, err.Error())
		return false
	}
	if !received {
		log.Printf("%s: server did not respond in expected timeout, stopping client", p.logPrefix)
		return false
	}

	frame, err := protocol.ParseControlFrame(ctrl)
	if err != nil {
		log.Printf("%s: invalid handshake response, err=%s", p.logPrefix, err.Error())
		return false
	}

	if frame.Type != p.clientType {
		log.Printf("%s: server created mismatching type of worker [%s]", p.logPrefix, frame.Type)
		return false
	}

	if frame.Control != protocol.CreateMessage(p.clientType) {
		log.Printf("%s: server responded with [%s], expected [%s]", p.logPrefix, frame.Control, protocol.CreateMessage(p.clientType))
		return false
	}

	log.Printf("%s: connected to server", p.logPrefix)
	return true
}

// readBurst drains up to maxBurst message pairs while the transport
// reports pending input. Invalid frames are logged and dropped without
// terminating. Returns false when the worker must stop.
func (p *Client) readBurst(soc transport.Socket, lastHBRecv *time.Time) bool {
	for c := 0; c < p.maxBurst && p.isWorking.Load(); c++ {
		ctrl, payload, received, err := p.recvRecord(soc)
		if err != nil {
			log.Printf("%s: recv failed, stopping client, err=%s", p.logPrefix, err.Error())
			return false
		}
		if !received {
			break
		}

		frame, err := protocol.ParseControlFrame(ctrl)
		if err != nil {
			log.Printf("%s: dropping message, err=%s", p.logPrefix, err.Error())
		} else if frame.Type != p.clientType {
			log.Printf("%s: server sent mismatching client type [%s], dropping message", p.logPrefix, frame.Type)
		} else {
			*lastHBRecv = time.Now()
			p.dispatch(frame, payload)
		}

		pending, err := soc.Pending()
		if err != nil {
			log.Printf("%s: failed to inspect pending input, err=%s", p.logPrefix, err.Error())
			break
		}
		if !pending {
			break
		}
	}

	return true
}

// dispatch routes one validated inbound record.
func (p *Client) dispatch(frame protocol.ControlFrame, payload []byte) {
	switch frame.Control {
	case protocol.DataMsg:
		p.callbackMutex.Lock()
		if p.callback != nil {
			p.callback(payload, p)
		}
		p.callbackMutex.Unlock()
	case protocol.PingMsg, protocol.PongMsg:
		if len(payload) != 0 {
			log.Printf("%s: expected empty frame after [%s]", p.logPrefix, frame.Control)
		}
	default:
		if p.logDebug {
			log.Printf("%s: ignoring inbound [%s]", p.logPrefix, frame.Control)
		}
	}
}

// writeBurst drains up to maxBurst envelopes. A send timeout leaves the
// envelope at the head and ends the burst. Returns false when the worker
// must stop.
func (p *Client) writeBurst(soc transport.Socket, lastHBSend *time.Time) bool {
	for c := 0; c < p.maxBurst && p.isWorking.Load(); c++ {
		buf, exists := p.queue.front()
		if !exists {
			break
		}

		sent, err := p.sendData(soc, buf)
		if err != nil {
			log.Printf("%s: send failed, stopping client, err=%s", p.logPrefix, err.Error())
			return false
		}
		if !sent {
			break
		}

		p.queue.popFront()
		// sent a message, no ping needed for a while
		*lastHBSend = time.Now()
	}

	return true
}

// shutdown runs the selected shutdown discipline before teardown: stop
// command first, graceful flush second, discard otherwise. Transport
// failures here are logged and ignored.
func (p *Client) shutdown(soc transport.Socket) {
	if p.serverStop.Load() {
		err := soc.SetSendTimeout(config.ShutdownSendTimeout)
		if err != nil {
			log.Printf("%s: failed to set send timeout, err=%s", p.logPrefix, err.Error())
		}

		sent, err := p.sendControl(soc, protocol.StopMsg)
		if err != nil {
			log.Printf("%s: failed while stopping server, err=%s", p.logPrefix, err.Error())
		} else if !sent {
			log.Printf("%s: timed out sending stop to server", p.logPrefix)
		}
		p.serverStop.Store(false)
		return
	}

	if p.flushOnExit.Load() {
		err := soc.SetSendTimeout(config.ShutdownSendTimeout)
		if err != nil {
			log.Printf("%s: failed to set send timeout, err=%s", p.logPrefix, err.Error())
		}

		p.queue.drain(func(buf []byte) bool {
			sent, err := p.sendData(soc, buf)
			if err != nil {
				log.Printf("%s: failed while flushing on exit, err=%s", p.logPrefix, err.Error())
				return false
			}
			return sent
		})
	}
}

// sendControl emits a (control, empty payload) pair for the client's role.
func (p *Client) sendControl(soc transport.Socket, ctrl protocol.ControlMessage) (bool, error) {
	sent, err := soc.Send(protocol.NewControlFrame(p.clientType, ctrl).Encode(), true)
	if err != nil || !sent {
		return sent, err
	}
	return soc.Send(emptyFrame, false)
}

// sendData emits a (data control, payload) pair.
func (p *Client) sendData(soc transport.Socket, payload []byte) (bool, error) {
	sent, err := soc.Send(protocol.NewControlFrame(protocol.Exporter, protocol.DataMsg).Encode(), true)
	if err != nil || !sent {
		return sent, err
	}
	return soc.Send(payload, false)
}

// recvRecord reads one (control, payload) frame pair. A missing payload
// frame yields an empty payload; unexpected trailing frames are drained
// and discarded.
func (p *Client) recvRecord(soc transport.Socket) ([]byte, []byte, bool, error) {
	ctrl, received, err := soc.Recv()
	if err != nil || !received {
		return nil, nil, received, err
	}

	var payload []byte

	more, err := soc.More()
	if err != nil {
		return nil, nil, false, err
	}
	if more {
		payload, received, err = soc.Recv()
		if err != nil || !received {
			return nil, nil, received, err
		}

		for {
			more, err = soc.More()
			if err != nil {
				return nil, nil, false, err
			}
			if !more {
				break
			}

			extra, received, err := soc.Recv()
			if err != nil || !received {
				return nil, nil, received, err
			}
			log.Printf("%s: dropping unexpected trailing frame of %d bytes", p.logPrefix, len(extra))
		}
	}

	return ctrl, payload, true, nil
}
