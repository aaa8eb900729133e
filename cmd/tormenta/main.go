// Command tormenta is a command-line BitTorrent leecher: given a
// metainfo file and a destination path, it announces to the tracker,
// downloads every piece from the returned peers, and writes the
// reconstructed payload to disk.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/mtallen/tormenta/internal/bterror"
	"github.com/mtallen/tormenta/internal/download"
	"github.com/mtallen/tormenta/internal/metainfo"
	"github.com/mtallen/tormenta/internal/telemetry"
	"github.com/mtallen/tormenta/internal/tracker"
)

const version = "0.1.0"

// Exit codes, per spec.md §6.
const (
	exitSuccess         = 0
	exitIO              = 1
	exitTracker         = 2
	exitDownloadFailure = 3
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("tormenta", flag.ContinueOnError)
	torrentPath := fs.String("t", "", "path to the torrent (metainfo) file")
	destPath := fs.String("f", "", "destination path for the downloaded payload")
	maxPeers := fs.Int("max-peers", 0, "maximum number of peer connections (0 = all peers returned by the tracker)")
	timeout := fs.Duration("timeout", tracker.DefaultTimeout, "tracker announce timeout")
	showVersion := fs.Bool("V", false, "print version and exit")
	fs.BoolVar(showVersion, "version", false, "print version and exit")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: tormenta -t <torrent-file> -f <destination>")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitSuccess
		}
		return exitIO
	}

	if *showVersion {
		fmt.Println("tormenta " + version)
		return exitSuccess
	}

	if *torrentPath == "" || *destPath == "" {
		fs.Usage()
		return exitIO
	}

	log := telemetry.Init()
	defer log.Sync()

	if err := runDownload(*torrentPath, *destPath, *maxPeers, *timeout, log); err != nil {
		log.Error("download failed", zap.Error(err))
		return exitCodeFor(err)
	}

	return exitSuccess
}

func runDownload(torrentPath, destPath string, maxPeers int, timeout time.Duration, log *zap.SugaredLogger) error {
	desc, err := metainfo.Load(torrentPath)
	if err != nil {
		return err
	}

	if desc.PieceCount() == 0 {
		return download.WriteFile(destPath, nil)
	}

	trackerClient, err := tracker.New(timeout)
	if err != nil {
		return err
	}

	peers, err := trackerClient.Announce(desc)
	if err != nil {
		return err
	}
	if len(peers) == 0 {
		return bterror.ErrNoPeers
	}

	coordinator := download.New(desc, maxPeers, log)
	data, err := coordinator.Run(peers, desc.InfoHash, trackerClient.PeerID())
	if err != nil {
		return err
	}

	return download.WriteFile(destPath, data)
}

func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, bterror.ErrTrackerUnreachable), errors.Is(err, bterror.ErrTrackerRejected):
		return exitTracker
	case errors.Is(err, bterror.ErrNoPeers), errors.Is(err, bterror.ErrStalledDownload):
		return exitDownloadFailure
	default:
		return exitIO
	}
}
