// Package metainfo parses bencoded torrent files into a Descriptor:
// tracker URL, info-hash, piece layout, and total payload size.
package metainfo

// Descriptor is the immutable, read-only-shared view of a single-file
// torrent's metainfo. Once constructed by Load it is never mutated —
// every download worker holds a pointer to the same Descriptor.
type Descriptor struct {
	Announce     string
	InfoHash     [20]byte
	Name         string
	PieceLength  int64
	TotalLength  int64
	PieceHashes  [][20]byte
}

// PieceCount returns the number of pieces implied by TotalLength and
// PieceLength: ceil(TotalLength / PieceLength).
func (d *Descriptor) PieceCount() int {
	if d.PieceLength == 0 {
		return 0
	}
	n := d.TotalLength / d.PieceLength
	if d.TotalLength%d.PieceLength != 0 {
		n++
	}
	return int(n)
}

// PieceLen returns the exact length of piece i: PieceLength for every
// piece but the last, which may be shorter.
func (d *Descriptor) PieceLen(i int) int64 {
	if i == d.PieceCount()-1 {
		last := d.TotalLength - int64(i)*d.PieceLength
		return last
	}
	return d.PieceLength
}
