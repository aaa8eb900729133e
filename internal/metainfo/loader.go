package metainfo

import (
	"crypto/sha1"
	"fmt"
	"os"

	"github.com/mtallen/tormenta/internal/bencode"
	"github.com/mtallen/tormenta/internal/bterror"
)

// Load reads and parses the torrent file at path.
func Load(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read torrent file: %w", err)
	}
	return LoadBytes(data)
}

// LoadBytes parses a torrent file already held in memory.
func LoadBytes(data []byte) (*Descriptor, error) {
	top, err := bencode.DecodeFull(data)
	if err != nil {
		return nil, fmt.Errorf("decode torrent file: %w", err)
	}

	topDict, ok := top.(bencode.Dict)
	if !ok {
		return nil, fmt.Errorf("%w: top-level value is not a dictionary", bterror.ErrMalformed)
	}

	announce, ok := topDict["announce"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: announce", bterror.ErrMissingField)
	}

	infoRaw, err := rawValueSpan(data, "info")
	if err != nil {
		return nil, err
	}

	infoAny, ok := topDict["info"]
	if !ok {
		return nil, fmt.Errorf("%w: info", bterror.ErrMissingField)
	}
	infoDict, ok := infoAny.(bencode.Dict)
	if !ok {
		return nil, fmt.Errorf("%w: info is not a dictionary", bterror.ErrMalformed)
	}

	if _, hasFiles := infoDict["files"]; hasFiles {
		return nil, fmt.Errorf("%w: multi-file torrents are not supported", bterror.ErrUnsupported)
	}

	name, ok := infoDict["name"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: info.name", bterror.ErrMissingField)
	}

	pieceLength, ok := infoDict["piece length"].(int64)
	if !ok {
		return nil, fmt.Errorf("%w: info.piece length", bterror.ErrMissingField)
	}
	if pieceLength <= 0 {
		return nil, fmt.Errorf("%w: info.piece length must be positive", bterror.ErrMalformed)
	}

	length, ok := infoDict["length"].(int64)
	if !ok {
		return nil, fmt.Errorf("%w: info.length", bterror.ErrMissingField)
	}
	if length < 0 {
		return nil, fmt.Errorf("%w: info.length must not be negative", bterror.ErrMalformed)
	}

	piecesStr, ok := infoDict["pieces"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: info.pieces", bterror.ErrMissingField)
	}
	if len(piecesStr)%20 != 0 {
		return nil, fmt.Errorf("%w: info.pieces length %d is not a multiple of 20", bterror.ErrMalformed, len(piecesStr))
	}

	pieceHashes := make([][20]byte, len(piecesStr)/20)
	for i := range pieceHashes {
		copy(pieceHashes[i][:], piecesStr[i*20:(i+1)*20])
	}

	d := &Descriptor{
		Announce:    announce,
		InfoHash:    sha1.Sum(infoRaw),
		Name:        name,
		PieceLength: pieceLength,
		TotalLength: length,
		PieceHashes: pieceHashes,
	}

	if err := validate(d); err != nil {
		return nil, err
	}

	return d, nil
}

// validate enforces the piece-count arithmetic invariant from the data
// model: piece_hashes.len() * piece_length >= total_length >
// (piece_hashes.len() - 1) * piece_length.
func validate(d *Descriptor) error {
	n := int64(len(d.PieceHashes))
	if d.TotalLength == 0 {
		return nil
	}
	if n*d.PieceLength < d.TotalLength {
		return fmt.Errorf("%w: %d pieces of %d bytes cannot hold %d total bytes", bterror.ErrMalformed, n, d.PieceLength, d.TotalLength)
	}
	if (n-1)*d.PieceLength >= d.TotalLength {
		return fmt.Errorf("%w: piece count %d is inconsistent with total length %d", bterror.ErrMalformed, n, d.TotalLength)
	}
	return nil
}

// rawValueSpan walks the top-level bencoded dictionary in data byte by
// byte, without re-parsing into Go values, to find the exact input span
// of the value associated with key. This is how the info-hash is kept
// byte-identical to the source file: the info sub-value is hashed from
// its original bytes rather than from a re-encode of the decoded form
// (decode.go/encode.go would reproduce a well-formed dict, but a source
// file with keys in a different internal order would otherwise hash
// differently than the original torrent's info-hash).
func rawValueSpan(data []byte, key string) ([]byte, error) {
	if len(data) == 0 || data[0] != 'd' {
		return nil, fmt.Errorf("%w: expected top-level dictionary", bterror.ErrMalformed)
	}

	pos := 1
	for pos < len(data) && data[pos] != 'e' {
		k, n, err := bencode.Decode(data[pos:])
		if err != nil {
			return nil, fmt.Errorf("%w: invalid dict key: %v", bterror.ErrMalformed, err)
		}
		keyStr, ok := k.(string)
		if !ok {
			return nil, fmt.Errorf("%w: dict key is not a string", bterror.ErrMalformed)
		}
		pos += n

		valStart := pos
		_, n, err = bencode.Decode(data[pos:])
		if err != nil {
			return nil, fmt.Errorf("%w: invalid dict value for key %q: %v", bterror.ErrMalformed, keyStr, err)
		}
		pos += n

		if keyStr == key {
			return data[valStart:pos], nil
		}
	}

	return nil, fmt.Errorf("%w: %s", bterror.ErrMissingField, key)
}
