package download

import (
	"net"
	"testing"

	"github.com/mtallen/tormenta/internal/peerwire"
	"github.com/mtallen/tormenta/internal/session"
)

var testInfoHash, testPeerID, testRemotePeerID [20]byte

func init() {
	copy(testInfoHash[:], "aaaaaaaaaaaaaaaaaaaa")
	copy(testPeerID[:], "bbbbbbbbbbbbbbbbbbbb")
	copy(testRemotePeerID[:], "cccccccccccccccccccc")
}

// dialTestSession starts a loopback listener, brings up a real Session
// against it (handshake, bitfield, unchoke), and hands back both the
// client-side Session a Worker operates on and the server-side net.Conn
// the test uses to script peer behavior.
func dialTestSession(t *testing.T, bitfield byte) (*session.Session, net.Conn) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	serverConnCh := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		if _, err := peerwire.ReadHandshake(conn, testInfoHash); err != nil {
			return
		}
		hs := peerwire.Handshake{InfoHash: testInfoHash, PeerID: testRemotePeerID}
		if _, err := conn.Write(hs.Marshal()); err != nil {
			return
		}
		if _, err := peerwire.ReadMessage(conn); err != nil { // drain interested
			return
		}
		if err := peerwire.WriteMessage(conn, peerwire.Bitfield, []byte{bitfield}); err != nil {
			return
		}
		if err := peerwire.WriteMessage(conn, peerwire.Unchoke, nil); err != nil {
			return
		}
		serverConnCh <- conn
	}()

	sess, err := session.Dial(ln.Addr(), testInfoHash, testPeerID)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	return sess, <-serverConnCh
}

// serveBlockRequests answers every request it reads on conn with a
// matching piece message carrying data[begin:begin+length], until conn
// is closed by the peer.
func serveBlockRequests(conn net.Conn, data []byte) {
	for {
		msg, err := peerwire.ReadMessage(conn)
		if err != nil {
			return
		}
		if msg.KeepAlive || msg.ID != peerwire.Request {
			continue
		}
		index, begin, length, err := peerwire.DecodeRequest(msg.Payload)
		if err != nil {
			return
		}
		block := data[begin : begin+length]
		if err := peerwire.WriteMessage(conn, peerwire.Piece, peerwire.EncodePiece(index, begin, block)); err != nil {
			return
		}
	}
}
