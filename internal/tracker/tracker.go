// Package tracker implements the HTTP(S) announce request and compact
// peer-list parsing for a single tracker.
package tracker

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mtallen/tormenta/internal/bencode"
	"github.com/mtallen/tormenta/internal/bterror"
	"github.com/mtallen/tormenta/internal/metainfo"
)

// clientPrefix is the 8-byte Azureus-style client identifier prepended
// to the 12 random bytes that make up a peer id for this run.
const clientPrefix = "-TM0001-"

const defaultPort = 6881

// DefaultTimeout is the tracker HTTP client timeout spec.md §4.3 names.
const DefaultTimeout = 15 * time.Second

// Client issues announce requests against a single tracker URL.
type Client struct {
	httpClient *http.Client
	peerID     [20]byte
}

// New builds a Client with the given HTTP timeout and a freshly
// generated per-run peer id.
func New(timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	var peerID [20]byte
	copy(peerID[:], clientPrefix)
	if _, err := rand.Read(peerID[8:]); err != nil {
		return nil, fmt.Errorf("generate peer id: %w", err)
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		peerID:     peerID,
	}, nil
}

// PeerID returns the 20-byte peer id this client announces with.
func (c *Client) PeerID() [20]byte {
	return c.peerID
}

// Announce issues a GET to d.Announce and returns the peers it names.
// An empty-but-successful response is returned as an empty, non-error
// slice; callers should treat that as ErrNoPeers per spec.md §4.3.
func (c *Client) Announce(d *metainfo.Descriptor) ([]net.TCPAddr, error) {
	u, err := c.announceURL(d)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Get(u)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", bterror.ErrTrackerUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: tracker returned status %d", bterror.ErrTrackerRejected, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading tracker response: %v", bterror.ErrTrackerUnreachable, err)
	}

	return parseAnnounceResponse(body)
}

func (c *Client) announceURL(d *metainfo.Descriptor) (string, error) {
	base, err := url.Parse(d.Announce)
	if err != nil {
		return "", fmt.Errorf("%w: invalid announce url: %v", bterror.ErrMalformed, err)
	}

	q := url.Values{}
	q.Set("info_hash", string(d.InfoHash[:]))
	q.Set("peer_id", string(c.peerID[:]))
	q.Set("port", fmt.Sprintf("%d", defaultPort))
	q.Set("uploaded", "0")
	q.Set("downloaded", "0")
	q.Set("left", fmt.Sprintf("%d", d.TotalLength))
	q.Set("compact", "1")

	// url.Values writes a space byte as '+'; a literal '+' is already
	// %2B, so every remaining '+' is a space and becomes %20.
	base.RawQuery = strings.ReplaceAll(q.Encode(), "+", "%20")
	return base.String(), nil
}

// parseAnnounceResponse decodes a bencoded tracker response body and
// returns its peer list. It accepts both the compact peer string and, as
// a fallback, a list of {ip, port} dictionaries.
func parseAnnounceResponse(body []byte) ([]net.TCPAddr, error) {
	decoded, err := bencode.DecodeFull(body)
	if err != nil {
		return nil, fmt.Errorf("%w: tracker response: %v", bterror.ErrMalformed, err)
	}

	dict, ok := decoded.(bencode.Dict)
	if !ok {
		return nil, fmt.Errorf("%w: tracker response is not a dictionary", bterror.ErrMalformed)
	}

	if reason, ok := dict["failure reason"].(string); ok {
		return nil, fmt.Errorf("%w: %s", bterror.ErrTrackerRejected, reason)
	}

	switch peers := dict["peers"].(type) {
	case string:
		return decodeCompactPeers([]byte(peers))
	case bencode.List:
		return decodeDictionaryPeers(peers)
	default:
		return nil, fmt.Errorf("%w: tracker response missing peers", bterror.ErrMalformed)
	}
}

// decodeCompactPeers parses the compact peer format from spec.md §3: 6
// bytes per peer, 4-byte IPv4 followed by a big-endian port.
func decodeCompactPeers(b []byte) ([]net.TCPAddr, error) {
	const peerSize = 6
	if len(b)%peerSize != 0 {
		return nil, fmt.Errorf("%w: compact peers length %d is not a multiple of %d", bterror.ErrMalformed, len(b), peerSize)
	}

	peers := make([]net.TCPAddr, len(b)/peerSize)
	for i := range peers {
		off := i * peerSize
		ip := net.IPv4(b[off], b[off+1], b[off+2], b[off+3])
		port := binary.BigEndian.Uint16(b[off+4 : off+6])
		peers[i] = net.TCPAddr{IP: ip, Port: int(port)}
	}
	return peers, nil
}

func decodeDictionaryPeers(list bencode.List) ([]net.TCPAddr, error) {
	peers := make([]net.TCPAddr, 0, len(list))
	for _, item := range list {
		m, ok := item.(bencode.Dict)
		if !ok {
			continue
		}
		ipStr, ok := m["ip"].(string)
		if !ok {
			continue
		}
		portVal, ok := m["port"].(int64)
		if !ok {
			continue
		}
		ip := net.ParseIP(ipStr)
		if ip == nil {
			continue
		}
		peers = append(peers, net.TCPAddr{IP: ip, Port: int(portVal)})
	}
	return peers, nil
}
