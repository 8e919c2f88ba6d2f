package protocol

// ProtocolVersion must match exactly on both peers; there is no
// cross-version compatibility.
const ProtocolVersion int32 = 1013

// ControlFrameSize is the exact on-wire size of an encoded ControlFrame:
// three little-endian int32 fields.
const ControlFrameSize = 12

// ClientType is the role carried in every control frame.
type ClientType int32

const (
	None ClientType = iota
	Exporter
	Heartbeat
)

func (t ClientType) String() string {
	switch t {
	case None:
		return "None"
	case Exporter:
		return "Exporter"
	case Heartbeat:
		return "Heartbeat"
	default:
		return "Unknown ClientType"
	}
}

// ControlMessage is the opcode of a wire record.
type ControlMessage int32

const (
	DataMsg ControlMessage = 0

	ExporterConnectMsg  ControlMessage = 1000
	HeartbeatConnectMsg ControlMessage = 1001

	RendererCreateMsg ControlMessage = 2000
	HeartbeatCreateMsg ControlMessage = 2001

	PingMsg ControlMessage = 3000
	PongMsg ControlMessage = 3001

	StopMsg ControlMessage = 4000
)

func (c ControlMessage) String() string {
	switch c {
	case DataMsg:
		return "DataMsg"
	case ExporterConnectMsg:
		return "ExporterConnectMsg"
	case HeartbeatConnectMsg:
		return "HeartbeatConnectMsg"
	case RendererCreateMsg:
		return "RendererCreateMsg"
	case HeartbeatCreateMsg:
		return "HeartbeatCreateMsg"
	case PingMsg:
		return "PingMsg"
	case PongMsg:
		return "PongMsg"
	case StopMsg:
		return "StopMsg"
	default:
		return "Unknown ControlMessage"
	}
}

// ConnectMessage returns the handshake request opcode for a role.
func ConnectMessage(t ClientType) ControlMessage {
	if t == Heartbeat {
		return HeartbeatConnectMsg
	}
	return ExporterConnectMsg
}

// CreateMessage returns the handshake acknowledgement opcode paired with
// the role's connect opcode.
func CreateMessage(t ClientType) ControlMessage {
	if t == Heartbeat {
		return HeartbeatCreateMsg
	}
	return RendererCreateMsg
}
