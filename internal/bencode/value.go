// Package bencode implements the bencoding format used by torrent files
// and tracker responses: byte strings, signed integers, ordered lists,
// and ordered string-keyed mappings.
package bencode

// Dict is an ordered bencoded mapping. Decode enforces strictly ascending
// key order on input; Encode re-emits entries in ascending key order so
// that encode(decode(x)) == x for any well-formed x.
type Dict = map[string]any

// List is an ordered bencoded sequence.
type List = []any
