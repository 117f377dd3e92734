package feedpb

import "google.golang.org/protobuf/encoding/protowire"

// StoredMessage is the value kept by the stores for a message.
type StoredMessage struct {
	Message  *Message
	Token    string
	Sequence uint64
}

func (m *StoredMessage) MarshalWire() []byte {
	var b []byte
	if m.Message != nil {
		b = appendMessage(b, 1, m.Message)
	}
	b = appendString(b, 2, m.Token)
	b = appendVarint(b, 3, m.Sequence)
	return b
}

func (m *StoredMessage) UnmarshalWire(b []byte) error {
	*m = StoredMessage{}
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			m.Message = &Message{}
			return consumeMessage(typ, b, m.Message)
		case 2:
			return consumeString(typ, b, &m.Token)
		case 3:
			return consumeUint64(typ, b, &m.Sequence)
		}
		return 0, nil
	})
}

type StoredMedia struct {
	ContentType string
	Data        []byte
	StoredAt    int64
}

func (m *StoredMedia) MarshalWire() []byte {
	var b []byte
	b = appendString(b, 1, m.ContentType)
	b = appendBytes(b, 2, m.Data)
	b = appendVarint(b, 3, uint64(m.StoredAt))
	return b
}

func (m *StoredMedia) UnmarshalWire(b []byte) error {
	*m = StoredMedia{}
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &m.ContentType)
		case 2:
			return consumeBytes(typ, b, &m.Data)
		case 3:
			return consumeInt64(typ, b, &m.StoredAt)
		}
		return 0, nil
	})
}
