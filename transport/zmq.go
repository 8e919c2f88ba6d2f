package transport

import (
	"fmt"
	"log"
	"syscall"
	"time"

	zmq "github.com/pebbe/zmq4"
)

// ZmqTransport binds the transport contract to a libzmq context. One
// context per client; sharing a context across clients is not supported.
type ZmqTransport struct {
	ctx *zmq.Context
}

func NewZmq() (*ZmqTransport, error) {
	ctx, err := zmq.NewContext()
	if err != nil {
		err = fmt.Errorf("failed to create zmq context: %w", err)
		log.Printf("%s", err.Error())
		return nil, err
	}

	return &ZmqTransport{
		ctx: ctx,
	}, nil
}

func (t *ZmqTransport) NewDealer() (Socket, error) {
	soc, err := t.ctx.NewSocket(zmq.DEALER)
	if err != nil {
		err = fmt.Errorf("failed to create dealer socket: %w", err)
		log.Printf("%s", err.Error())
		return nil, err
	}

	// drop buffered messages on close
	err = soc.SetLinger(0)
	if err != nil {
		soc.Close()
		err = fmt.Errorf("failed to set linger: %w", err)
		log.Printf("%s", err.Error())
		return nil, err
	}

	poller := zmq.NewPoller()
	poller.Add(soc, zmq.POLLIN|zmq.POLLOUT)

	return &zmqSocket{
		soc:    soc,
		poller: poller,
	}, nil
}

func (t *ZmqTransport) Term() error {
	return t.ctx.Term()
}

type zmqSocket struct {
	soc    *zmq.Socket
	poller *zmq.Poller
}

func (s *zmqSocket) SetIdentity(id []byte) error {
	return s.soc.SetIdentity(string(id))
}

func (s *zmqSocket) SetSendTimeout(d time.Duration) error {
	return s.soc.SetSndtimeo(d)
}

func (s *zmqSocket) SetRecvTimeout(d time.Duration) error {
	return s.soc.SetRcvtimeo(d)
}

func (s *zmqSocket) Connect(addr string) error {
	return s.soc.Connect(addr)
}

func (s *zmqSocket) Send(data []byte, more bool) (bool, error) {
	flags := zmq.Flag(0)
	if more {
		flags |= zmq.SNDMORE
	}

	_, err := s.soc.SendBytes(data, flags)
	if err != nil {
		if zmq.AsErrno(err) == zmq.Errno(syscall.EAGAIN) {
			return false, nil
		}
		return false, mapTerm(err)
	}

	return true, nil
}

func (s *zmqSocket) Recv() ([]byte, bool, error) {
	buf, err := s.soc.RecvBytes(0)
	if err != nil {
		if zmq.AsErrno(err) == zmq.Errno(syscall.EAGAIN) {
			return nil, false, nil
		}
		return nil, false, mapTerm(err)
	}

	return buf, true, nil
}

func (s *zmqSocket) More() (bool, error) {
	more, err := s.soc.GetRcvmore()
	if err != nil {
		return false, mapTerm(err)
	}
	return more, nil
}

func (s *zmqSocket) Pending() (bool, error) {
	state, err := s.soc.GetEvents()
	if err != nil {
		return false, mapTerm(err)
	}
	return state&zmq.POLLIN != 0, nil
}

func (s *zmqSocket) Poll(timeout time.Duration) (bool, bool, error) {
	polled, err := s.poller.Poll(timeout)
	if err != nil {
		return false, false, mapTerm(err)
	}

	var readable, writable bool
	for _, p := range polled {
		readable = p.Events&zmq.POLLIN != 0
		writable = p.Events&zmq.POLLOUT != 0
	}

	return readable, writable, nil
}

func (s *zmqSocket) Close() error {
	return s.soc.Close()
}

func mapTerm(err error) error {
	if zmq.AsErrno(err) == zmq.ETERM {
		return ErrTerminated
	}
	return err
}
