package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestControlFrameRoundTrip(t *testing.T) {
	types := []ClientType{None, Exporter, Heartbeat}
	controls := []ControlMessage{
		DataMsg,
		ExporterConnectMsg,
		HeartbeatConnectMsg,
		RendererCreateMsg,
		HeartbeatCreateMsg,
		PingMsg,
		PongMsg,
		StopMsg,
	}

	for _, ct := range types {
		for _, cm := range controls {
			buf := NewControlFrame(ct, cm).Encode()
			if len(buf) != ControlFrameSize {
				t.Fatalf("%s/%s: encoded %d bytes, want %d", ct, cm, len(buf), ControlFrameSize)
			}

			frame, err := ParseControlFrame(buf)
			if err != nil {
				t.Fatalf("%s/%s: parse failed: %v", ct, cm, err)
			}
			if frame.Version != ProtocolVersion {
				t.Errorf("%s/%s: version %d, want %d", ct, cm, frame.Version, ProtocolVersion)
			}
			if frame.Type != ct {
				t.Errorf("type %s, want %s", frame.Type, ct)
			}
			if frame.Control != cm {
				t.Errorf("control %s, want %s", frame.Control, cm)
			}
		}
	}
}

func TestControlFrameLayout(t *testing.T) {
	buf := NewControlFrame(Heartbeat, PingMsg).Encode()

	want := make([]byte, ControlFrameSize)
	binary.LittleEndian.PutUint32(want[0:4], uint32(ProtocolVersion))
	binary.LittleEndian.PutUint32(want[4:8], uint32(Heartbeat))
	binary.LittleEndian.PutUint32(want[8:12], uint32(PingMsg))

	if !bytes.Equal(buf, want) {
		t.Fatalf("layout mismatch: got %X, want %X", buf, want)
	}
}

func TestParseControlFrameRejectsSize(t *testing.T) {
	for _, size := range []int{0, 1, 11, 13, 24} {
		_, err := ParseControlFrame(make([]byte, size))
		if !errors.Is(err, ErrFrameSize) {
			t.Errorf("size %d: err=%v, want ErrFrameSize", size, err)
		}
	}
}

func TestParseControlFrameRejectsVersion(t *testing.T) {
	buf := ControlFrame{
		Version: 999,
		Type:    Exporter,
		Control: RendererCreateMsg,
	}.Encode()

	frame, err := ParseControlFrame(buf)
	if !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("err=%v, want ErrVersionMismatch", err)
	}
	if frame.Version != 999 {
		t.Errorf("parsed version %d, want 999 reported back", frame.Version)
	}
}

func TestHandshakeOpcodes(t *testing.T) {
	if ConnectMessage(Exporter) != ExporterConnectMsg {
		t.Errorf("exporter connect opcode mismatch")
	}
	if ConnectMessage(Heartbeat) != HeartbeatConnectMsg {
		t.Errorf("heartbeat connect opcode mismatch")
	}
	if CreateMessage(Exporter) != RendererCreateMsg {
		t.Errorf("exporter create opcode mismatch")
	}
	if CreateMessage(Heartbeat) != HeartbeatCreateMsg {
		t.Errorf("heartbeat create opcode mismatch")
	}
}
