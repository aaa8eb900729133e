// Package bterror defines the error taxonomy shared across tormenta's
// components. Sentinels are meant to be matched with errors.Is after
// being wrapped with fmt.Errorf("...: %w", ...) at each layer boundary.
package bterror

import "errors"

var (
	// ErrMalformed means a torrent file, tracker response, or peer
	// message could not be parsed.
	ErrMalformed = errors.New("malformed input")

	// ErrUnsupported means the input describes a feature this leecher
	// does not implement (multi-file torrents, magnet links, ...).
	ErrUnsupported = errors.New("unsupported feature")

	// ErrMissingField means a required key was absent from a bencoded
	// mapping.
	ErrMissingField = errors.New("missing field")

	// ErrTrackerUnreachable means the announce request failed at the
	// network level (DNS, connect, timeout).
	ErrTrackerUnreachable = errors.New("tracker unreachable")

	// ErrTrackerRejected means the tracker replied with a non-2xx HTTP
	// status.
	ErrTrackerRejected = errors.New("tracker rejected request")

	// ErrNoPeers means the tracker replied successfully with zero
	// peers.
	ErrNoPeers = errors.New("no peers returned")

	// ErrHandshakeFailed means the peer handshake was truncated or its
	// info-hash did not match.
	ErrHandshakeFailed = errors.New("handshake failed")

	// ErrPeerProtocolError means a peer sent malformed framing, an
	// unexpected message id, or an out-of-range index.
	ErrPeerProtocolError = errors.New("peer protocol error")

	// ErrHashMismatch means a downloaded piece's SHA-1 disagreed with
	// the expected digest.
	ErrHashMismatch = errors.New("piece hash mismatch")

	// ErrStalledDownload means the work queue drained before every
	// piece was completed.
	ErrStalledDownload = errors.New("download stalled")
)
