package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/renderbridge/go-renderlink/client"
	"github.com/renderbridge/go-renderlink/config"
	"github.com/renderbridge/go-renderlink/protocol"
	"github.com/renderbridge/go-renderlink/transport"
)

var selftestCmd = &cobra.Command{
	Use:   "selftest",
	Short: "Exercise the client state machine against an in-process loopback peer",
	RunE: func(cmd *cobra.Command, args []string) error {
		const addr = "mem://selftest"

		hub := transport.NewMemHub()
		listener := hub.Listen(addr)

		cl, err := client.New(&client.Options{
			Config: &config.Config{
				LogPrefix: fmt.Sprintf("Selftest-%s", instance),
				LogDebug:  logDebug,
			},
			Transport: hub.Transport(),
		})
		if err != nil {
			return err
		}
		defer cl.Close()

		echoed := make(chan []byte, 16)
		cl.SetCallback(func(payload []byte, _ *client.Client) {
			echoed <- append([]byte(nil), payload...)
		})

		go runLoopbackPeer(listener)

		cl.Connect(addr)

		const rounds = 3
		for i := 1; i <= rounds; i++ {
			cl.Send([]byte(fmt.Sprintf("probe-%d", i)))
		}

		for i := 1; i <= rounds; i++ {
			select {
			case buf := <-echoed:
				fmt.Fprintf(cmd.OutOrStdout(), "loopback echoed %q\n", buf)
			case <-time.After(5 * time.Second):
				return fmt.Errorf("loopback echo %d not received", i)
			}
		}

		fmt.Fprintln(cmd.OutOrStdout(), "selftest passed")
		return nil
	},
}

// runLoopbackPeer answers one dealer's handshake, then echoes every data
// record back to it.
func runLoopbackPeer(listener *transport.MemListener) {
	conn, ok := listener.Accept(5 * time.Second)
	if !ok {
		return
	}

	recv := func(timeout time.Duration) ([]byte, []byte, bool) {
		ctrl, more, ok := conn.Recv(timeout)
		if !ok {
			return nil, nil, false
		}
		var payload []byte
		if more {
			payload, _, ok = conn.Recv(time.Second)
			if !ok {
				return nil, nil, false
			}
		}
		return ctrl, payload, true
	}

	ctrl, _, ok := recv(5 * time.Second)
	if !ok {
		return
	}
	frame, err := protocol.ParseControlFrame(ctrl)
	if err != nil || frame.Control != protocol.ConnectMessage(frame.Type) {
		return
	}

	conn.Send(protocol.NewControlFrame(frame.Type, protocol.CreateMessage(frame.Type)).Encode(), true)
	conn.Send(nil, false)

	for {
		ctrl, payload, ok := recv(5 * time.Second)
		if !ok {
			return
		}
		frame, err := protocol.ParseControlFrame(ctrl)
		if err != nil {
			continue
		}
		switch frame.Control {
		case protocol.DataMsg:
			conn.Send(protocol.NewControlFrame(protocol.Exporter, protocol.DataMsg).Encode(), true)
			conn.Send(payload, false)
		case protocol.StopMsg:
			return
		}
	}
}
