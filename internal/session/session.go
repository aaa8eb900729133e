// Package session establishes and maintains a single peer connection:
// handshake, bitfield bring-up, and the choke/unchoke/have state a
// download worker needs to drive its piece loop.
package session

import (
	"fmt"
	"net"
	"time"

	"github.com/mtallen/tormenta/internal/bterror"
	"github.com/mtallen/tormenta/internal/peerwire"
)

const (
	// ConnectTimeout bounds the initial TCP dial, per spec.md §4.5.
	ConnectTimeout = 3 * time.Second
	// OperationTimeout bounds every subsequent read/write, per spec.md §4.5.
	OperationTimeout = 30 * time.Second
)

// Session is one peer connection's mutable state: whether we are choked,
// what pieces the peer claims to have, and the socket itself. It is
// owned exclusively by the worker goroutine that created it.
type Session struct {
	conn     net.Conn
	Choked   bool
	Bitfield Bitfield
	deadline time.Time
}

// Dial connects to addr, performs the handshake, and brings the session
// up to a usable state: sends interested right after the handshake, then
// reads until a bitfield or have message has advertised at least one
// piece and an unchoke has arrived, in either order. A session is only
// returned once Choked is false and the peer has advertised at least one
// piece.
func Dial(addr net.Addr, infoHash, peerID [20]byte) (*Session, error) {
	conn, err := net.DialTimeout("tcp", addr.String(), ConnectTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", bterror.ErrHandshakeFailed, addr, err)
	}

	s := &Session{conn: conn, Choked: true}

	if err := s.handshake(infoHash, peerID); err != nil {
		conn.Close()
		return nil, err
	}

	if err := s.bringUp(); err != nil {
		conn.Close()
		return nil, err
	}

	return s, nil
}

func (s *Session) handshake(infoHash, peerID [20]byte) error {
	s.conn.SetDeadline(time.Now().Add(OperationTimeout))

	out := peerwire.Handshake{InfoHash: infoHash, PeerID: peerID}
	if _, err := s.conn.Write(out.Marshal()); err != nil {
		return fmt.Errorf("%w: sending handshake: %v", bterror.ErrHandshakeFailed, err)
	}

	if _, err := peerwire.ReadHandshake(s.conn, infoHash); err != nil {
		return err
	}

	return nil
}

// bringUp drives the session to a ready state: declare interest, then
// read until the peer's bitfield (or a have message) shows at least one
// piece it holds and an unchoke has arrived. Unexpected messages before unchoke
// (other than have/bitfield/choke/unchoke) are tolerated and ignored,
// matching a real peer's right to interleave keep-alives.
func (s *Session) bringUp() error {
	if err := s.SendInterested(); err != nil {
		return err
	}

	sawClaim := false
	for {
		s.conn.SetDeadline(time.Now().Add(OperationTimeout))
		msg, err := peerwire.ReadMessage(s.conn)
		if err != nil {
			return fmt.Errorf("%w: reading during bring-up: %v", bterror.ErrPeerProtocolError, err)
		}
		if msg.KeepAlive {
			continue
		}

		switch msg.ID {
		case peerwire.Bitfield:
			s.Bitfield = Bitfield(append([]byte(nil), msg.Payload...))
			for _, b := range s.Bitfield {
				if b != 0 {
					sawClaim = true
				}
			}
		case peerwire.Have:
			idx, err := peerwire.DecodeHave(msg.Payload)
			if err != nil {
				return err
			}
			s.Bitfield.Set(int(idx))
			sawClaim = true
		case peerwire.Unchoke:
			s.Choked = false
		case peerwire.Choke:
			s.Choked = true
		}

		if sawClaim && !s.Choked {
			return nil
		}
	}
}

// SendInterested sends an "interested" message.
func (s *Session) SendInterested() error {
	return peerwire.WriteMessage(s.conn, peerwire.Interested, nil)
}

// SendRequest sends a "request" for one block.
func (s *Session) SendRequest(index, begin, length uint32) error {
	return peerwire.WriteMessage(s.conn, peerwire.Request, peerwire.EncodeRequest(index, begin, length))
}

// SendHave sends a "have" announcing that we now hold piece index.
func (s *Session) SendHave(index uint32) error {
	return peerwire.WriteMessage(s.conn, peerwire.Have, peerwire.EncodeHave(index))
}

// ReadMessage reads the next framed message, applying the per-operation
// deadline, or the deadline last given to SetDeadline if that is sooner.
func (s *Session) ReadMessage() (peerwire.Message, error) {
	d := time.Now().Add(OperationTimeout)
	if !s.deadline.IsZero() && s.deadline.Before(d) {
		d = s.deadline
	}
	s.conn.SetReadDeadline(d)
	return peerwire.ReadMessage(s.conn)
}

// SetDeadline overrides the socket deadline, used by the download loop to
// enforce the per-piece 30s budget across several reads.
func (s *Session) SetDeadline(t time.Time) {
	s.deadline = t
	s.conn.SetDeadline(t)
}

// HasPiece reports whether the peer has advertised piece i.
func (s *Session) HasPiece(i int) bool {
	return s.Bitfield.Has(i)
}

// Close closes the underlying socket.
func (s *Session) Close() error {
	return s.conn.Close()
}
