package events

import (
	"encoding/binary"
	"fmt"
)

// Message headers set by the publisher.
const (
	HeaderEventType     = "event_type"
	HeaderSchemaSubject = "schema_subject"
)

const wireHeaderLen = 5

// EncodeWireFormat applies Confluent framing: a zero magic byte, the big-endian schema id,
// then the payload.
func EncodeWireFormat(schemaID int, payload []byte) []byte {
	frame := make([]byte, wireHeaderLen+len(payload))
	frame[0] = 0
	binary.BigEndian.PutUint32(frame[1:wireHeaderLen], uint32(schemaID))
	copy(frame[wireHeaderLen:], payload)
	return frame
}

// DecodeWireFormat splits a framed value into schema id and payload.
func DecodeWireFormat(value []byte) (int, []byte, error) {
	if len(value) < wireHeaderLen {
		return 0, nil, fmt.Errorf("invalid payload length: %d", len(value))
	}
	if value[0] != 0 {
		return 0, nil, fmt.Errorf("unknown magic byte: %d", value[0])
	}
	schemaID := int(binary.BigEndian.Uint32(value[1:wireHeaderLen]))
	return schemaID, append([]byte(nil), value[wireHeaderLen:]...), nil
}
