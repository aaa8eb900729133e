package bencode

import (
	"fmt"

	"github.com/mtallen/tormenta/internal/bterror"
)

// Decode parses the single top-level bencoded value at the start of b and
// returns it alongside the number of input bytes it consumed. It does not
// require b to contain only that value — callers that need "no trailing
// bytes" semantics (e.g. a full torrent file) should check that the
// returned count equals len(b).
func Decode(b []byte) (any, int, error) {
	if len(b) == 0 {
		return nil, 0, fmt.Errorf("%w: empty input", bterror.ErrMalformed)
	}

	switch {
	case b[0] == 'i':
		return decodeInteger(b)
	case b[0] == 'l':
		return decodeList(b)
	case b[0] == 'd':
		return decodeDict(b)
	case b[0] >= '0' && b[0] <= '9':
		return decodeString(b)
	default:
		return nil, 0, fmt.Errorf("%w: unexpected token %q", bterror.ErrMalformed, b[0])
	}
}

// DecodeFull decodes exactly one top-level value and fails with
// ErrMalformed if any bytes remain afterward.
func DecodeFull(b []byte) (any, error) {
	v, n, err := Decode(b)
	if err != nil {
		return nil, err
	}
	if n != len(b) {
		return nil, fmt.Errorf("%w: %d trailing byte(s) after top-level value", bterror.ErrMalformed, len(b)-n)
	}
	return v, nil
}

func decodeInteger(b []byte) (int64, int, error) {
	end := indexByte(b, 'e')
	if end == -1 {
		return 0, 0, fmt.Errorf("%w: integer missing terminating 'e'", bterror.ErrMalformed)
	}

	digits := b[1:end]
	if len(digits) == 0 {
		return 0, 0, fmt.Errorf("%w: empty integer", bterror.ErrMalformed)
	}

	neg := digits[0] == '-'
	unsigned := digits
	if neg {
		unsigned = digits[1:]
	}
	if len(unsigned) == 0 {
		return 0, 0, fmt.Errorf("%w: bare sign in integer", bterror.ErrMalformed)
	}
	if unsigned[0] == '0' && len(unsigned) > 1 {
		return 0, 0, fmt.Errorf("%w: leading zero in integer", bterror.ErrMalformed)
	}
	if neg && unsigned[0] == '0' {
		return 0, 0, fmt.Errorf("%w: negative zero", bterror.ErrMalformed)
	}

	var n int64
	for _, c := range unsigned {
		if c < '0' || c > '9' {
			return 0, 0, fmt.Errorf("%w: invalid digit %q in integer", bterror.ErrMalformed, c)
		}
		n = n*10 + int64(c-'0')
	}
	if neg {
		n = -n
	}

	return n, end + 1, nil
}

func decodeString(b []byte) (string, int, error) {
	colon := indexByte(b, ':')
	if colon == -1 {
		return "", 0, fmt.Errorf("%w: string missing ':' separator", bterror.ErrMalformed)
	}

	lengthDigits := b[:colon]
	if len(lengthDigits) == 0 {
		return "", 0, fmt.Errorf("%w: string missing length prefix", bterror.ErrMalformed)
	}
	if lengthDigits[0] == '0' && len(lengthDigits) > 1 {
		return "", 0, fmt.Errorf("%w: leading zero in string length", bterror.ErrMalformed)
	}

	var length int
	for _, c := range lengthDigits {
		if c < '0' || c > '9' {
			return "", 0, fmt.Errorf("%w: invalid digit %q in string length", bterror.ErrMalformed, c)
		}
		length = length*10 + int(c-'0')
	}

	start := colon + 1
	end := start + length
	if end > len(b) {
		return "", 0, fmt.Errorf("%w: string declares length %d but only %d byte(s) remain", bterror.ErrMalformed, length, len(b)-start)
	}

	return string(b[start:end]), end, nil
}

func decodeList(b []byte) (List, int, error) {
	pos := 1 // skip 'l'
	list := make(List, 0)

	for {
		if pos >= len(b) {
			return nil, 0, fmt.Errorf("%w: list missing terminating 'e'", bterror.ErrMalformed)
		}
		if b[pos] == 'e' {
			return list, pos + 1, nil
		}

		v, n, err := Decode(b[pos:])
		if err != nil {
			return nil, 0, err
		}
		list = append(list, v)
		pos += n
	}
}

func decodeDict(b []byte) (Dict, int, error) {
	pos := 1 // skip 'd'
	dict := make(Dict)
	prevKey := ""
	first := true

	for {
		if pos >= len(b) {
			return nil, 0, fmt.Errorf("%w: dict missing terminating 'e'", bterror.ErrMalformed)
		}
		if b[pos] == 'e' {
			return dict, pos + 1, nil
		}

		key, n, err := decodeString(b[pos:])
		if err != nil {
			return nil, 0, fmt.Errorf("%w: invalid dict key: %v", bterror.ErrMalformed, err)
		}
		pos += n

		if !first && key <= prevKey {
			return nil, 0, fmt.Errorf("%w: dict keys out of order (%q after %q)", bterror.ErrMalformed, key, prevKey)
		}
		prevKey = key
		first = false

		val, n, err := Decode(b[pos:])
		if err != nil {
			return nil, 0, err
		}
		pos += n

		dict[key] = val
	}
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}
