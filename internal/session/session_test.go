package session

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/mtallen/tormenta/internal/peerwire"
)

func TestDialBringsUpSession(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	var infoHash, peerID, remotePeerID [20]byte
	copy(infoHash[:], "aaaaaaaaaaaaaaaaaaaa")
	copy(peerID[:], "bbbbbbbbbbbbbbbbbbbb")
	copy(remotePeerID[:], "cccccccccccccccccccc")

	done := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			done <- err
			return
		}
		defer conn.Close()

		if _, err := peerwire.ReadHandshake(conn, infoHash); err != nil {
			done <- err
			return
		}
		hs := peerwire.Handshake{InfoHash: infoHash, PeerID: remotePeerID}
		if _, err := conn.Write(hs.Marshal()); err != nil {
			done <- err
			return
		}

		// Drain the "interested" message the session sends during bring-up.
		if _, err := peerwire.ReadMessage(conn); err != nil {
			done <- err
			return
		}

		if err := peerwire.WriteMessage(conn, peerwire.Bitfield, []byte{0x80}); err != nil {
			done <- err
			return
		}
		if err := peerwire.WriteMessage(conn, peerwire.Unchoke, nil); err != nil {
			done <- err
			return
		}

		done <- nil
	}()

	sess, err := Dial(ln.Addr(), infoHash, peerID)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer sess.Close()

	if sess.Choked {
		t.Error("expected session to be unchoked after bring-up")
	}
	if !sess.HasPiece(0) {
		t.Error("expected piece 0 to be claimed")
	}

	select {
	case err := <-done:
		if err != nil && err != io.EOF {
			t.Fatalf("mock peer goroutine: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("mock peer goroutine did not finish")
	}
}
