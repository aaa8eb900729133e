package download

import (
	"crypto/sha1"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mtallen/tormenta/internal/bterror"
	"github.com/mtallen/tormenta/internal/peerwire"
	"github.com/mtallen/tormenta/internal/session"
)

// PieceDeadline bounds a single piece's download, start to finish. Not
// negotiable, per spec.md §9.
const PieceDeadline = 30 * time.Second

// Worker drives one peer session through the shared work queue: pull a
// piece, download and validate it, emit the result, and repeat until the
// queue closes or the peer misbehaves. A worker owns its session
// exclusively and exits on any per-peer error, requeueing its current
// piece first.
type Worker struct {
	sess    *session.Session
	queue   chan Work
	results chan<- Result
	log     *zap.SugaredLogger
}

// NewWorker builds a worker around an already-established session.
func NewWorker(sess *session.Session, queue chan Work, results chan<- Result, log *zap.SugaredLogger) *Worker {
	return &Worker{sess: sess, queue: queue, results: results, log: log}
}

// Run pulls work until the queue closes or a per-peer error forces an
// early exit, closing the session along every path.
func (w *Worker) Run() {
	defer w.sess.Close()

	for p := range w.queue {
		if !w.sess.HasPiece(p.Index) {
			w.queue <- p
			continue
		}

		data, err := w.downloadPiece(p)
		if err != nil {
			w.log.Debugw("worker exiting on download error", "piece", p.Index, "error", err)
			w.queue <- p
			return
		}

		sum := sha1.Sum(data)
		if sum != p.Hash {
			w.log.Debugw("worker exiting on hash mismatch", "piece", p.Index)
			w.queue <- p
			return
		}

		if err := w.sess.SendHave(uint32(p.Index)); err != nil {
			w.log.Debugw("failed to send have", "piece", p.Index, "error", err)
		}

		w.results <- Result{Index: p.Index, Data: data}
	}
}

// downloadPiece pipelines block requests up to MaxBacklog in flight,
// copying each returned block into place until the full piece is
// received. The session's deadline is set once, at the first request,
// and never reset: every subsequent read shares that same deadline, so
// the whole piece must complete within PieceDeadline of starting it.
func (w *Worker) downloadPiece(p Work) ([]byte, error) {
	w.sess.SetDeadline(time.Now().Add(PieceDeadline))

	buf := make([]byte, p.Length)
	requested, downloaded, backlog := 0, 0, 0

	for downloaded < p.Length {
		for !w.sess.Choked && backlog < MaxBacklog && requested < p.Length {
			blockLen := BlockSize
			if p.Length-requested < blockLen {
				blockLen = p.Length - requested
			}
			if err := w.sess.SendRequest(uint32(p.Index), uint32(requested), uint32(blockLen)); err != nil {
				return nil, err
			}
			requested += blockLen
			backlog++
		}

		msg, err := w.sess.ReadMessage()
		if err != nil {
			return nil, err
		}
		if msg.KeepAlive {
			continue
		}

		switch msg.ID {
		case peerwire.Choke:
			w.sess.Choked = true
		case peerwire.Unchoke:
			w.sess.Choked = false
		case peerwire.Have:
			idx, err := peerwire.DecodeHave(msg.Payload)
			if err != nil {
				return nil, err
			}
			w.sess.Bitfield.Set(int(idx))
		case peerwire.Piece:
			block, err := peerwire.DecodePiece(msg.Payload)
			if err != nil {
				return nil, err
			}
			if int(block.Begin)+len(block.Data) > len(buf) {
				return nil, fmt.Errorf("%w: block at %d+%d exceeds piece length %d",
					bterror.ErrPeerProtocolError, block.Begin, len(block.Data), len(buf))
			}
			copy(buf[block.Begin:], block.Data)
			downloaded += len(block.Data)
			backlog--
		}
	}

	return buf, nil
}
