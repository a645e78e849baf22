package repositories

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the stored message record. Never reuse a number.
const (
	fieldID       protowire.Number = 1
	fieldSender   protowire.Number = 2
	fieldReceiver protowire.Number = 3
	fieldContent  protowire.Number = 4
	fieldAt       protowire.Number = 5
	fieldRead     protowire.Number = 6
	fieldSeq      protowire.Number = 7
)

// encodeMessage writes the record in protobuf wire format so older readers skip fields they don't know.
func encodeMessage(message DiskMessage) []byte {
	b := make([]byte, 0, 64+len(message.Content))
	b = appendString(b, fieldID, message.ID.String())
	b = appendString(b, fieldSender, message.Sender)
	b = appendString(b, fieldReceiver, message.Receiver)
	b = appendString(b, fieldContent, message.Content)
	b = protowire.AppendTag(b, fieldAt, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(message.At.UnixNano()))
	b = protowire.AppendTag(b, fieldRead, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeBool(message.Read))
	b = protowire.AppendTag(b, fieldSeq, protowire.VarintType)
	b = protowire.AppendVarint(b, message.Seq)
	return b
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

// DecodeMessage parses a stored record.
func DecodeMessage(b []byte) (DiskMessage, error) {
	return decodeMessage(b)
}

func decodeMessage(b []byte) (DiskMessage, error) {
	var message DiskMessage
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return DiskMessage{}, protowire.ParseError(n)
		}
		b = b[n:]

		switch {
		case typ == protowire.BytesType && num <= fieldContent:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return DiskMessage{}, protowire.ParseError(n)
			}
			if err := message.setString(num, v); err != nil {
				return DiskMessage{}, err
			}
			b = b[n:]
		case typ == protowire.VarintType && num >= fieldAt && num <= fieldSeq:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return DiskMessage{}, protowire.ParseError(n)
			}
			message.setVarint(num, v)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return DiskMessage{}, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return message, nil
}

func (m *DiskMessage) setString(num protowire.Number, v string) error {
	switch num {
	case fieldID:
		id, err := uuid.Parse(v)
		if err != nil {
			return fmt.Errorf("message id: %w", err)
		}
		m.ID = id
	case fieldSender:
		m.Sender = v
	case fieldReceiver:
		m.Receiver = v
	case fieldContent:
		m.Content = v
	}
	return nil
}

func (m *DiskMessage) setVarint(num protowire.Number, v uint64) {
	switch num {
	case fieldAt:
		m.At = time.Unix(0, int64(v)).UTC()
	case fieldRead:
		m.Read = protowire.DecodeBool(v)
	case fieldSeq:
		m.Seq = v
	}
}
