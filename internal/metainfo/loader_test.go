package metainfo_test

import (
	"crypto/sha1"
	"errors"
	"fmt"
	"testing"

	"github.com/mtallen/tormenta/internal/bterror"
	"github.com/mtallen/tormenta/internal/metainfo"
)

// buildTorrent constructs a minimal single-file bencoded torrent, with
// info keys in ascending order so the raw info bytes are well-formed.
func buildTorrent(announce, name string, pieceLength, length int64, pieces string) []byte {
	info := fmt.Sprintf("d6:lengthi%de4:name%d:%s12:piece lengthi%de6:pieces%d:%se",
		length, len(name), name, pieceLength, len(pieces), pieces)
	top := fmt.Sprintf("d8:announce%d:%s4:info%se", len(announce), announce, info)
	return []byte(top)
}

func TestLoadBytesHappyPath(t *testing.T) {
	hash := make([]byte, 20)
	data := buildTorrent("http://tracker.example/announce", "file.bin", 16384, 100, string(hash))

	d, err := metainfo.LoadBytes(data)
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}

	if d.Announce != "http://tracker.example/announce" {
		t.Errorf("Announce = %q", d.Announce)
	}
	if d.Name != "file.bin" {
		t.Errorf("Name = %q", d.Name)
	}
	if d.PieceLength != 16384 {
		t.Errorf("PieceLength = %d", d.PieceLength)
	}
	if d.TotalLength != 100 {
		t.Errorf("TotalLength = %d", d.TotalLength)
	}
	if len(d.PieceHashes) != 1 {
		t.Fatalf("PieceHashes len = %d, want 1", len(d.PieceHashes))
	}
}

// TestInfoHashStability checks testable property 2: the info-hash is
// deterministic and matches a value computed independently from the raw
// info bytes.
func TestInfoHashStability(t *testing.T) {
	pieces := make([]byte, 20)
	info := fmt.Sprintf("d6:lengthi5e4:name1:a12:piece lengthi16384e6:pieces%d:%se", len(pieces), pieces)
	data := buildTorrent("foo", "a", 16384, 5, string(pieces))

	want := sha1.Sum([]byte(info))

	d1, err := metainfo.LoadBytes(data)
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	d2, err := metainfo.LoadBytes(data)
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}

	if d1.InfoHash != d2.InfoHash {
		t.Errorf("info-hash is not deterministic: %x != %x", d1.InfoHash, d2.InfoHash)
	}
	if d1.InfoHash != want {
		t.Errorf("info-hash = %x, want %x", d1.InfoHash, want)
	}
}

// TestPieceCountArithmetic checks testable property 3.
func TestPieceCountArithmetic(t *testing.T) {
	cases := []struct {
		total, pieceLen int64
		wantPieces      int
	}{
		{100, 16384, 1},
		{16384, 16384, 1},
		{16385, 16384, 2},
		{32768, 16384, 2},
		{0, 16384, 0},
	}

	for _, c := range cases {
		pieces := make([]byte, 20*c.wantPieces)
		data := buildTorrent("t", "n", c.pieceLen, c.total, string(pieces))
		d, err := metainfo.LoadBytes(data)
		if err != nil {
			t.Fatalf("total=%d pieceLen=%d: LoadBytes: %v", c.total, c.pieceLen, err)
		}
		if d.PieceCount() != c.wantPieces {
			t.Errorf("total=%d pieceLen=%d: PieceCount() = %d, want %d", c.total, c.pieceLen, d.PieceCount(), c.wantPieces)
		}
	}
}

func TestLoadBytesRejectsMultiFile(t *testing.T) {
	info := "d5:filesld6:lengthi10e4:pathl1:aeee4:name1:x12:piece lengthi16384e6:pieces0:e"
	data := []byte(fmt.Sprintf("d8:announce1:t4:info%se", info))

	_, err := metainfo.LoadBytes(data)
	if !errors.Is(err, bterror.ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}

func TestLoadBytesMissingField(t *testing.T) {
	// info dict missing "pieces"
	info := "d6:lengthi5e4:name1:a12:piece lengthi16384ee"
	data := []byte(fmt.Sprintf("d8:announce1:t4:info%se", info))

	_, err := metainfo.LoadBytes(data)
	if !errors.Is(err, bterror.ErrMissingField) {
		t.Errorf("expected ErrMissingField, got %v", err)
	}
}
