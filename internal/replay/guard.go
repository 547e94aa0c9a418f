package replay

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"parley/internal/domain"
)

// DefaultWindow is the maximum clock distance between a message timestamp
// and local time.
const DefaultWindow = 5 * time.Minute

// pruneEvery is how many accepted nonces trigger a sweep of expired ones.
const pruneEvery = 256

// Verdict is the outcome of a replay check.
type Verdict int

const (
	Accepted Verdict = iota
	DuplicateNonce
	TimestampExpired
	OutOfOrder
)

func (v Verdict) String() string {
	switch v {
	case Accepted:
		return "accepted"
	case DuplicateNonce:
		return "duplicate_nonce"
	case TimestampExpired:
		return "timestamp_expired"
	case OutOfOrder:
		return "out_of_order"
	}
	return "unknown"
}

// Err maps a rejection to its domain error; Accepted maps to nil.
func (v Verdict) Err() error {
	switch v {
	case DuplicateNonce:
		return domain.ErrNonceReplayed
	case TimestampExpired:
		return domain.ErrTimestampExpired
	case OutOfOrder:
		return domain.ErrSequenceOutOfOrder
	}
	return nil
}

// Check describes one message to validate.
type Check struct {
	Peer            domain.UserID
	Nonce           string
	Timestamp       time.Time
	Sequence        uint64
	RequireSequence bool
}

// Options configures a Guard. Zero values select defaults.
type Options struct {
	Window  time.Duration
	Now     func() time.Time
	Journal Journal
	Logger  zerolog.Logger
}

// Guard tracks seen nonces and per-peer sequence numbers.
type Guard struct {
	window  time.Duration
	now     func() time.Time
	journal Journal
	log     zerolog.Logger

	mu      sync.Mutex
	nonces  map[string]time.Time
	lastSeq map[domain.UserID]uint64
	sinceGC int
}

// New returns a Guard, restoring prior state from opts.Journal when present.
func New(opts Options) (*Guard, error) {
	g := &Guard{
		window:  opts.Window,
		now:     opts.Now,
		journal: opts.Journal,
		log:     opts.Logger,
		nonces:  make(map[string]time.Time),
		lastSeq: make(map[domain.UserID]uint64),
	}
	if g.window <= 0 {
		g.window = DefaultWindow
	}
	if g.now == nil {
		g.now = time.Now
	}
	if g.journal != nil {
		snap, ok, err := g.journal.Restore()
		if err != nil {
			return nil, err
		}
		if ok {
			g.load(snap)
		}
	}
	return g, nil
}

// Window returns the freshness window.
func (g *Guard) Window() time.Duration { return g.window }

// Fresh reports whether ts lies within the freshness window of now.
func (g *Guard) Fresh(ts time.Time) bool {
	d := g.now().Sub(ts)
	if d < 0 {
		d = -d
	}
	return d <= g.window
}

// Check validates c without recording anything.
func (g *Guard) Check(c Check) Verdict {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.verdictLocked(c)
}

// CheckAndRecord validates c and, on Accepted, records its nonce and
// sequence number in the same critical section.
func (g *Guard) CheckAndRecord(c Check) Verdict {
	g.mu.Lock()
	defer g.mu.Unlock()

	v := g.verdictLocked(c)
	if v != Accepted {
		g.log.Debug().
			Str("peer", c.Peer.String()).
			Str("verdict", v.String()).
			Msg("replay check rejected message")
		return v
	}

	g.nonces[c.Nonce] = c.Timestamp
	if c.RequireSequence {
		g.lastSeq[c.Peer] = c.Sequence
	}
	g.sinceGC++
	if g.sinceGC >= pruneEvery {
		g.pruneLocked()
	}
	g.persistLocked()
	return Accepted
}

func (g *Guard) verdictLocked(c Check) Verdict {
	if !g.Fresh(c.Timestamp) {
		return TimestampExpired
	}
	if _, seen := g.nonces[c.Nonce]; seen {
		return DuplicateNonce
	}
	if c.RequireSequence && c.Sequence <= g.lastSeq[c.Peer] {
		return OutOfOrder
	}
	return Accepted
}

// LastSequence returns the highest sequence accepted from peer.
func (g *Guard) LastSequence(peer domain.UserID) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastSeq[peer]
}

// ResetPeer forgets peer's sequence counter. Called when a new session with
// peer is installed, since the peer restarts numbering at 1.
func (g *Guard) ResetPeer(peer domain.UserID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.lastSeq, peer)
	g.persistLocked()
}

// ResetSequences forgets all sequence counters. Seen nonces are kept.
func (g *Guard) ResetSequences() {
	g.mu.Lock()
	defer g.mu.Unlock()
	clear(g.lastSeq)
	g.persistLocked()
}

// Prune drops nonces whose timestamps are older than twice the window and
// returns how many were removed.
func (g *Guard) Prune() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := g.pruneLocked()
	if n > 0 {
		g.persistLocked()
	}
	return n
}

func (g *Guard) pruneLocked() int {
	cutoff := g.now().Add(-2 * g.window)
	removed := 0
	for n, ts := range g.nonces {
		if ts.Before(cutoff) {
			delete(g.nonces, n)
			removed++
		}
	}
	g.sinceGC = 0
	return removed
}
