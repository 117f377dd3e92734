package feedpb

import (
	"google.golang.org/protobuf/encoding/protowire"
)

type Media struct {
	Locator      string
	ContentType  string
	OriginalSize int64
	Size         int64
}

func (m *Media) MarshalWire() []byte {
	var b []byte
	b = appendString(b, 1, m.Locator)
	b = appendString(b, 2, m.ContentType)
	b = appendVarint(b, 3, uint64(m.OriginalSize))
	b = appendVarint(b, 4, uint64(m.Size))
	return b
}

func (m *Media) UnmarshalWire(b []byte) error {
	*m = Media{}
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &m.Locator)
		case 2:
			return consumeString(typ, b, &m.ContentType)
		case 3:
			return consumeInt64(typ, b, &m.OriginalSize)
		case 4:
			return consumeInt64(typ, b, &m.Size)
		}
		return 0, nil
	})
}

type Message struct {
	Id        string
	Author    string
	Body      string
	Media     *Media
	CreatedAt int64 // unix nanoseconds
	Approved  bool
}

func (m *Message) MarshalWire() []byte {
	var b []byte
	b = appendString(b, 1, m.Id)
	b = appendString(b, 2, m.Author)
	b = appendString(b, 3, m.Body)
	if m.Media != nil {
		b = appendMessage(b, 4, m.Media)
	}
	b = appendVarint(b, 5, uint64(m.CreatedAt))
	b = appendBool(b, 6, m.Approved)
	return b
}

func (m *Message) UnmarshalWire(b []byte) error {
	*m = Message{}
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &m.Id)
		case 2:
			return consumeString(typ, b, &m.Author)
		case 3:
			return consumeString(typ, b, &m.Body)
		case 4:
			m.Media = &Media{}
			return consumeMessage(typ, b, m.Media)
		case 5:
			return consumeInt64(typ, b, &m.CreatedAt)
		case 6:
			return consumeBool(typ, b, &m.Approved)
		}
		return 0, nil
	})
}

type SubmitRequest struct {
	Author    string
	Body      string
	Image     []byte
	ImageType string
	Token     string
}

func (m *SubmitRequest) MarshalWire() []byte {
	var b []byte
	b = appendString(b, 1, m.Author)
	b = appendString(b, 2, m.Body)
	b = appendBytes(b, 3, m.Image)
	b = appendString(b, 4, m.ImageType)
	b = appendString(b, 5, m.Token)
	return b
}

func (m *SubmitRequest) UnmarshalWire(b []byte) error {
	*m = SubmitRequest{}
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &m.Author)
		case 2:
			return consumeString(typ, b, &m.Body)
		case 3:
			return consumeBytes(typ, b, &m.Image)
		case 4:
			return consumeString(typ, b, &m.ImageType)
		case 5:
			return consumeString(typ, b, &m.Token)
		}
		return 0, nil
	})
}

type SubmitResponse struct {
	Message *Message
}

func (m *SubmitResponse) MarshalWire() []byte {
	if m.Message == nil {
		return nil
	}
	return appendMessage(nil, 1, m.Message)
}

func (m *SubmitResponse) UnmarshalWire(b []byte) error {
	*m = SubmitResponse{}
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			m.Message = &Message{}
			return consumeMessage(typ, b, m.Message)
		}
		return 0, nil
	})
}

type Empty struct{}

func (*Empty) MarshalWire() []byte { return nil }

func (*Empty) UnmarshalWire(b []byte) error {
	return decodeFields(b, func(protowire.Number, protowire.Type, []byte) (int, error) { return 0, nil })
}

type (
	GetFeedRequest   = Empty
	SubscribeRequest = Empty
	SweepRequest     = Empty
	DeleteResponse   = Empty
)

type GetFeedResponse struct {
	Messages []*Message
}

func (m *GetFeedResponse) MarshalWire() []byte {
	return appendMessages(nil, 1, m.Messages)
}

func (m *GetFeedResponse) UnmarshalWire(b []byte) error {
	*m = GetFeedResponse{}
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			return consumeRepeated(typ, b, &m.Messages)
		}
		return 0, nil
	})
}

type FeedEvent struct {
	Seq      uint64
	Messages []*Message
	Degraded bool
	Error    string
	At       int64
}

func (m *FeedEvent) MarshalWire() []byte {
	var b []byte
	b = appendVarint(b, 1, m.Seq)
	b = appendMessages(b, 2, m.Messages)
	b = appendBool(b, 3, m.Degraded)
	b = appendString(b, 4, m.Error)
	b = appendVarint(b, 5, uint64(m.At))
	return b
}

func (m *FeedEvent) UnmarshalWire(b []byte) error {
	*m = FeedEvent{}
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeUint64(typ, b, &m.Seq)
		case 2:
			return consumeRepeated(typ, b, &m.Messages)
		case 3:
			return consumeBool(typ, b, &m.Degraded)
		case 4:
			return consumeString(typ, b, &m.Error)
		case 5:
			return consumeInt64(typ, b, &m.At)
		}
		return 0, nil
	})
}

type GetMediaRequest struct {
	Locator string
}

func (m *GetMediaRequest) MarshalWire() []byte { return appendString(nil, 1, m.Locator) }

func (m *GetMediaRequest) UnmarshalWire(b []byte) error {
	*m = GetMediaRequest{}
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			return consumeString(typ, b, &m.Locator)
		}
		return 0, nil
	})
}

type GetMediaResponse struct {
	Data        []byte
	ContentType string
}

func (m *GetMediaResponse) MarshalWire() []byte {
	b := appendBytes(nil, 1, m.Data)
	return appendString(b, 2, m.ContentType)
}

func (m *GetMediaResponse) UnmarshalWire(b []byte) error {
	*m = GetMediaResponse{}
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeBytes(typ, b, &m.Data)
		case 2:
			return consumeString(typ, b, &m.ContentType)
		}
		return 0, nil
	})
}

type SweepResponse struct {
	Removed int64
}

func (m *SweepResponse) MarshalWire() []byte { return appendVarint(nil, 1, uint64(m.Removed)) }

func (m *SweepResponse) UnmarshalWire(b []byte) error {
	*m = SweepResponse{}
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			return consumeInt64(typ, b, &m.Removed)
		}
		return 0, nil
	})
}

type DeleteRequest struct {
	Id string
}

func (m *DeleteRequest) MarshalWire() []byte { return appendString(nil, 1, m.Id) }

func (m *DeleteRequest) UnmarshalWire(b []byte) error {
	*m = DeleteRequest{}
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			return consumeString(typ, b, &m.Id)
		}
		return 0, nil
	})
}

func appendMessages(b []byte, num protowire.Number, messages []*Message) []byte {
	for _, message := range messages {
		b = appendMessage(b, num, message)
	}
	return b
}

func consumeRepeated(typ protowire.Type, b []byte, dst *[]*Message) (int, error) {
	message := &Message{}
	n, err := consumeMessage(typ, b, message)
	if err != nil {
		return 0, err
	}
	*dst = append(*dst, message)
	return n, nil
}
