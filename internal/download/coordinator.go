// Package download implements the concurrent piece-download engine:
// a work coordinator that seeds a shared queue with one item per piece,
// spawns a worker per peer, collects validated results, and assembles
// the final payload.
package download

import (
	"net"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/mtallen/tormenta/internal/bterror"
	"github.com/mtallen/tormenta/internal/metainfo"
	"github.com/mtallen/tormenta/internal/session"
)

// Coordinator owns the work queue, results channel, and assembly buffer
// exclusively; workers own only their own socket and session state.
type Coordinator struct {
	descriptor *metainfo.Descriptor
	maxPeers   int
	log        *zap.SugaredLogger

	queue     chan Work
	results   chan Result
	completed atomic.Int64
}

// New seeds the work queue with one entry per piece.
func New(d *metainfo.Descriptor, maxPeers int, log *zap.SugaredLogger) *Coordinator {
	n := d.PieceCount()
	queue := make(chan Work, n)
	for i := 0; i < n; i++ {
		queue <- Work{
			Index:  i,
			Hash:   d.PieceHashes[i],
			Length: int(d.PieceLen(i)),
		}
	}

	return &Coordinator{
		descriptor: d,
		maxPeers:   maxPeers,
		log:        log,
		queue:      queue,
		results:    make(chan Result, n),
	}
}

// Run dials one session per peer (bounded by maxPeers, 0 meaning all of
// them), spawns a worker on each, and drains results into an assembly
// buffer until either every piece has arrived or every worker has
// exited without finishing the download.
func (c *Coordinator) Run(peers []net.TCPAddr, infoHash, peerID [20]byte) ([]byte, error) {
	total := c.descriptor.PieceCount()
	assembly := make([]byte, c.descriptor.TotalLength)

	if total == 0 {
		return assembly, nil
	}
	if len(peers) == 0 {
		return nil, bterror.ErrNoPeers
	}

	n := len(peers)
	if c.maxPeers > 0 && c.maxPeers < n {
		n = c.maxPeers
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		addr := peers[i]
		wg.Add(1)
		go func(addr net.Addr) {
			defer wg.Done()

			sess, err := session.Dial(addr, infoHash, peerID)
			if err != nil {
				c.log.Debugw("peer dial failed", "peer", addr, "error", err)
				return
			}

			NewWorker(sess, c.queue, c.results, c.log).Run()
		}(&addr)
	}

	go func() {
		wg.Wait()
		close(c.results)
	}()

	return c.assemble(assembly, total)
}

// assemble drains the results channel, writing each piece into assembly
// at its index offset regardless of arrival order, until the channel
// closes. It reports StalledDownload if closure happened before every
// piece arrived.
func (c *Coordinator) assemble(assembly []byte, total int) ([]byte, error) {
	for res := range c.results {
		offset := int64(res.Index) * c.descriptor.PieceLength
		copy(assembly[offset:], res.Data)

		if c.completed.Add(1) == int64(total) {
			// Every piece is accounted for: no worker can be holding
			// one to requeue, so closing the queue is safe and lets
			// any worker still blocked on an empty read observe
			// closure and exit.
			close(c.queue)
		}
	}

	if c.completed.Load() != int64(total) {
		return nil, bterror.ErrStalledDownload
	}

	return assembly, nil
}

// Completed reports how many pieces have been written into the assembly
// buffer so far, for an external progress collaborator.
func (c *Coordinator) Completed() int64 {
	return c.completed.Load()
}
