package peerwire

import (
	"bytes"
	"testing"
)

// TestHandshakeFraming checks testable property 5.
func TestHandshakeFraming(t *testing.T) {
	var infoHash [20]byte
	var peerID [20]byte
	copy(infoHash[:], "aaaaaaaaaaaaaaaaaaaa")
	copy(peerID[:], "bbbbbbbbbbbbbbbbbbbb")

	h := Handshake{InfoHash: infoHash, PeerID: peerID}
	wire := h.Marshal()

	if len(wire) != 68 {
		t.Fatalf("len(wire) = %d, want 68", len(wire))
	}
	if wire[0] != 19 {
		t.Errorf("wire[0] = %d, want 19", wire[0])
	}
	if string(wire[1:20]) != "BitTorrent protocol" {
		t.Errorf("wire[1:20] = %q", wire[1:20])
	}
	if !bytes.Equal(wire[28:48], infoHash[:]) {
		t.Errorf("wire[28:48] = %x, want %x", wire[28:48], infoHash)
	}
	if !bytes.Equal(wire[48:68], peerID[:]) {
		t.Errorf("wire[48:68] = %x, want %x", wire[48:68], peerID)
	}
}

func TestReadHandshakeRejectsInfoHashMismatch(t *testing.T) {
	var sent, expected [20]byte
	copy(sent[:], "aaaaaaaaaaaaaaaaaaaa")
	copy(expected[:], "bbbbbbbbbbbbbbbbbbbb")

	h := Handshake{InfoHash: sent, PeerID: sent}
	buf := bytes.NewReader(h.Marshal())

	if _, err := ReadHandshake(buf, expected); err == nil {
		t.Fatal("expected error for info-hash mismatch")
	}
}

// TestMessageFramingRoundTrip checks testable property 6, for each
// defined message type.
func TestMessageFramingRoundTrip(t *testing.T) {
	cases := []struct {
		name    string
		id      byte
		payload []byte
	}{
		{"choke", Choke, nil},
		{"unchoke", Unchoke, nil},
		{"interested", Interested, nil},
		{"not-interested", NotInterested, nil},
		{"have", Have, EncodeHave(7)},
		{"bitfield", Bitfield, []byte{0xFF, 0x80}},
		{"request", Request, EncodeRequest(1, 2, 3)},
		{"piece", Piece, EncodePiece(1, 2, []byte("block-data"))},
		{"cancel", Cancel, EncodeRequest(1, 2, 3)},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteMessage(&buf, c.id, c.payload); err != nil {
				t.Fatalf("WriteMessage: %v", err)
			}

			msg, err := ReadMessage(&buf)
			if err != nil {
				t.Fatalf("ReadMessage: %v", err)
			}

			if msg.ID != c.id {
				t.Errorf("ID = %d, want %d", msg.ID, c.id)
			}
			if !bytes.Equal(msg.Payload, c.payload) {
				t.Errorf("Payload = %v, want %v", msg.Payload, c.payload)
			}
		})
	}
}

func TestReadMessageKeepAlive(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteKeepAlive(&buf); err != nil {
		t.Fatalf("WriteKeepAlive: %v", err)
	}

	msg, err := ReadMessage(&buf)
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if !msg.KeepAlive {
		t.Error("expected KeepAlive message")
	}
}

func TestDecodeHaveRoundTrip(t *testing.T) {
	idx, err := DecodeHave(EncodeHave(42))
	if err != nil {
		t.Fatalf("DecodeHave: %v", err)
	}
	if idx != 42 {
		t.Errorf("idx = %d, want 42", idx)
	}
}

func TestDecodePieceRoundTrip(t *testing.T) {
	block, err := DecodePiece(EncodePiece(3, 16384, []byte("hello")))
	if err != nil {
		t.Fatalf("DecodePiece: %v", err)
	}
	if block.Index != 3 || block.Begin != 16384 || string(block.Data) != "hello" {
		t.Errorf("block = %+v", block)
	}
}
