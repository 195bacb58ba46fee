package shmsync

import "github.com/vmihailenco/msgpack/v5"

// Serializer converts between Go values and the byte payloads carried in a
// channel's ring buffer. The default implementation uses MessagePack for
// compact binary encoding that non-Go processes can decode.
type Serializer interface {
	// Marshal encodes a Go value to bytes.
	Marshal(v interface{}) ([]byte, error)

	// Unmarshal decodes bytes into a Go value.
	Unmarshal(data []byte, v interface{}) error
}

// MsgpackSerializer is the default Serializer, backed by MessagePack.
type MsgpackSerializer struct{}

// Marshal encodes v with MessagePack.
func (ms MsgpackSerializer) Marshal(v interface{}) ([]byte, error) {
	return msgpack.Marshal(v)
}

// Unmarshal decodes MessagePack data into v.
func (ms MsgpackSerializer) Unmarshal(data []byte, v interface{}) error {
	return msgpack.Unmarshal(data, v)
}
