package peerwire

import (
	"fmt"
	"io"

	"github.com/mtallen/tormenta/internal/bterror"
)

const protocolString = "BitTorrent protocol"

// HandshakeLen is the fixed wire size of a handshake message.
const HandshakeLen = 49 + len(protocolString)

// Handshake is the 68-byte message exchanged once, before any framed
// message, to bind a TCP socket to a specific torrent.
type Handshake struct {
	InfoHash [20]byte
	PeerID   [20]byte
}

// Marshal serializes h to its 68-byte wire form:
// [19]["BitTorrent protocol"][8 reserved zero bytes][info_hash][peer_id].
func (h Handshake) Marshal() []byte {
	buf := make([]byte, 0, HandshakeLen)
	buf = append(buf, byte(len(protocolString)))
	buf = append(buf, protocolString...)
	buf = append(buf, make([]byte, 8)...)
	buf = append(buf, h.InfoHash[:]...)
	buf = append(buf, h.PeerID[:]...)
	return buf
}

// ReadHandshake reads and validates a peer's handshake from r, checking
// that the protocol string and info-hash match expected. The peer's
// advertised peer-id is returned but never validated against anything.
func ReadHandshake(r io.Reader, expectedInfoHash [20]byte) (Handshake, error) {
	buf := make([]byte, HandshakeLen)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Handshake{}, fmt.Errorf("%w: reading handshake: %v", bterror.ErrHandshakeFailed, err)
	}

	pstrLen := int(buf[0])
	if pstrLen != len(protocolString) || string(buf[1:1+pstrLen]) != protocolString {
		return Handshake{}, fmt.Errorf("%w: unexpected protocol string", bterror.ErrHandshakeFailed)
	}

	var h Handshake
	copy(h.InfoHash[:], buf[28:48])
	copy(h.PeerID[:], buf[48:68])

	if h.InfoHash != expectedInfoHash {
		return Handshake{}, fmt.Errorf("%w: info-hash mismatch", bterror.ErrHandshakeFailed)
	}

	return h, nil
}
