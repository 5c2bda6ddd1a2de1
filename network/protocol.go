package network

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
)

// 座位状态推送协议
const (
	MsgTypeHeartbeat    = 1
	MsgTypeSeatRequest  = 401
	MsgTypeSeatSnapshot = 402
	MsgTypeSeatError    = 403
)

// HeaderSize is the 2-byte message id plus the 2-byte payload length.
const HeaderSize = 4

var ErrPayloadTooLarge = errors.New("payload exceeds packet limit")

type Packet struct {
	MsgID  uint16
	Data   []byte
	Length uint16
}

// Encode 封包: 2字节消息ID + 2字节数据长度 + 数据
func Encode(msgID uint16, data []byte) ([]byte, error) {
	if len(data) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(data))
	}
	packet := make([]byte, HeaderSize+len(data))
	binary.BigEndian.PutUint16(packet[0:2], msgID)
	binary.BigEndian.PutUint16(packet[2:4], uint16(len(data)))
	copy(packet[HeaderSize:], data)
	return packet, nil
}

// Decode 解包, trailing bytes beyond the declared length are ignored
func Decode(data []byte) (*Packet, error) {
	if len(data) < HeaderSize {
		return nil, io.ErrShortBuffer
	}

	msgID := binary.BigEndian.Uint16(data[0:2])
	length := binary.BigEndian.Uint16(data[2:4])

	if len(data) < HeaderSize+int(length) {
		return nil, io.ErrShortBuffer
	}

	return &Packet{
		MsgID:  msgID,
		Length: length,
		Data:   data[HeaderSize : HeaderSize+int(length)],
	}, nil
}

// SeatRequest asks the feed for one center's seats.
type SeatRequest struct {
	CenterID string `json:"center_id"`
}

// ErrorPayload is the body of MsgTypeSeatError.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Unmarshal decodes the packet body as JSON.
func (p *Packet) Unmarshal(v interface{}) error {
	if err := json.Unmarshal(p.Data, v); err != nil {
		return fmt.Errorf("decode message %d: %w", p.MsgID, err)
	}
	return nil
}
