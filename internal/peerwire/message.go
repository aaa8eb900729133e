package peerwire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/mtallen/tormenta/internal/bterror"
)

// Message ids, per spec.md §4.4.
const (
	Choke         = 0
	Unchoke       = 1
	Interested    = 2
	NotInterested = 3
	Have          = 4
	Bitfield      = 5
	Request       = 6
	Piece         = 7
	Cancel        = 8
)

// Message is a single framed peer-wire message. ID is meaningless (and
// Payload is nil) when the message is a keep-alive, signaled by KeepAlive.
type Message struct {
	KeepAlive bool
	ID        byte
	Payload   []byte
}

// ReadMessage reads one length-prefixed frame from r.
func ReadMessage(r io.Reader) (Message, error) {
	var lengthBuf [4]byte
	if _, err := io.ReadFull(r, lengthBuf[:]); err != nil {
		return Message{}, err
	}

	length := binary.BigEndian.Uint32(lengthBuf[:])
	if length == 0 {
		return Message{KeepAlive: true}, nil
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return Message{}, err
	}

	return Message{ID: body[0], Payload: body[1:]}, nil
}

// WriteMessage frames and writes a single message to w.
func WriteMessage(w io.Writer, id byte, payload []byte) error {
	length := uint32(1 + len(payload))
	buf := make([]byte, 4+length)
	binary.BigEndian.PutUint32(buf, length)
	buf[4] = id
	copy(buf[5:], payload)
	_, err := w.Write(buf)
	return err
}

// WriteKeepAlive writes a zero-length keep-alive frame.
func WriteKeepAlive(w io.Writer) error {
	_, err := w.Write([]byte{0, 0, 0, 0})
	return err
}

// EncodeHave builds the payload for a "have" message: the piece index as
// a big-endian uint32.
func EncodeHave(index uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, index)
	return b
}

// DecodeHave parses a "have" message payload.
func DecodeHave(payload []byte) (uint32, error) {
	if len(payload) != 4 {
		return 0, fmt.Errorf("%w: have payload length %d, want 4", bterror.ErrPeerProtocolError, len(payload))
	}
	return binary.BigEndian.Uint32(payload), nil
}

// EncodeRequest builds the payload for a "request" or "cancel" message:
// index, begin, and length, all big-endian uint32.
func EncodeRequest(index, begin, length uint32) []byte {
	b := make([]byte, 12)
	binary.BigEndian.PutUint32(b[0:4], index)
	binary.BigEndian.PutUint32(b[4:8], begin)
	binary.BigEndian.PutUint32(b[8:12], length)
	return b
}

// DecodeRequest parses a "request" or "cancel" message payload.
func DecodeRequest(payload []byte) (index, begin, length uint32, err error) {
	if len(payload) != 12 {
		return 0, 0, 0, fmt.Errorf("%w: request payload length %d, want 12", bterror.ErrPeerProtocolError, len(payload))
	}
	return binary.BigEndian.Uint32(payload[0:4]),
		binary.BigEndian.Uint32(payload[4:8]),
		binary.BigEndian.Uint32(payload[8:12]),
		nil
}

// PieceBlock is a decoded "piece" message payload.
type PieceBlock struct {
	Index uint32
	Begin uint32
	Data  []byte
}

// EncodePiece builds the payload for a "piece" message.
func EncodePiece(index, begin uint32, data []byte) []byte {
	b := make([]byte, 8+len(data))
	binary.BigEndian.PutUint32(b[0:4], index)
	binary.BigEndian.PutUint32(b[4:8], begin)
	copy(b[8:], data)
	return b
}

// DecodePiece parses a "piece" message payload.
func DecodePiece(payload []byte) (PieceBlock, error) {
	if len(payload) < 8 {
		return PieceBlock{}, fmt.Errorf("%w: piece payload too short (%d bytes)", bterror.ErrPeerProtocolError, len(payload))
	}
	return PieceBlock{
		Index: binary.BigEndian.Uint32(payload[0:4]),
		Begin: binary.BigEndian.Uint32(payload[4:8]),
		Data:  payload[8:],
	}, nil
}
