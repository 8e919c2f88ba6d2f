package message

import (
	"fmt"
	"log"

	"github.com/vmihailenco/msgpack/v5"
)

// Message is the application payload carried by a data wire record. Exactly
// one of the optional sub-messages is expected to be set.
type Message struct {
	Txseq  uint64 `json:"txseq"`
	Txtime int64  `json:"txtime"` // epoch milliseconds

	PluginCreate *PluginCreate `json:"plugin_create,omitempty" msgpack:",omitempty"`
	PluginUpdate *PluginUpdate `json:"plugin_update,omitempty" msgpack:",omitempty"`
	PluginRemove *PluginRemove `json:"plugin_remove,omitempty" msgpack:",omitempty"`

	RendererAction *RendererAction `json:"renderer_action,omitempty" msgpack:",omitempty"`

	ImageSet *ImageSet `json:"image_set,omitempty" msgpack:",omitempty"`
}

// Encode serializes the message into payload bytes for the wire.
func Encode(m *Message) ([]byte, error) {
	if m == nil {
		err := fmt.Errorf("nil message")
		log.Printf("%s", err.Error())
		return nil, err
	}

	buf, err := msgpack.Marshal(m)
	if err != nil {
		log.Printf("failed to marshal message=%+v, err=%s", m, err.Error())
		return nil, err
	}

	return buf, nil
}

// Decode parses payload bytes received from the wire.
func Decode(buf []byte) (*Message, error) {
	m := new(Message)
	err := msgpack.Unmarshal(buf, m)
	if err != nil {
		log.Printf("failed to unmarshal %d payload bytes, err=%s", len(buf), err.Error())
		return nil, err
	}

	return m, nil
}
