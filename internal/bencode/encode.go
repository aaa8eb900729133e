package bencode

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Encode serializes v back to its bencoded form. Dict entries are always
// emitted in ascending key order, satisfying the round-trip property
// encode(decode(x)) == x for any well-formed x.
func Encode(v any) ([]byte, error) {
	var b strings.Builder
	if err := encodeInto(&b, v); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}

func encodeInto(b *strings.Builder, v any) error {
	switch val := v.(type) {
	case string:
		encodeString(b, val)
	case []byte:
		encodeString(b, string(val))
	case int:
		encodeInt(b, int64(val))
	case int64:
		encodeInt(b, val)
	case List:
		b.WriteByte('l')
		for _, item := range val {
			if err := encodeInto(b, item); err != nil {
				return err
			}
		}
		b.WriteByte('e')
	case []string:
		b.WriteByte('l')
		for _, item := range val {
			encodeString(b, item)
		}
		b.WriteByte('e')
	case Dict:
		return encodeDict(b, val)
	default:
		return fmt.Errorf("bencode: unsupported type for encoding: %T", v)
	}
	return nil
}

func encodeDict(b *strings.Builder, d Dict) error {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b.WriteByte('d')
	for _, k := range keys {
		encodeString(b, k)
		if err := encodeInto(b, d[k]); err != nil {
			return err
		}
	}
	b.WriteByte('e')
	return nil
}

func encodeString(b *strings.Builder, s string) {
	b.WriteString(strconv.Itoa(len(s)))
	b.WriteByte(':')
	b.WriteString(s)
}

func encodeInt(b *strings.Builder, n int64) {
	b.WriteByte('i')
	b.WriteString(strconv.FormatInt(n, 10))
	b.WriteByte('e')
}
