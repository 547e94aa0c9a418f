package replay

import (
	"time"

	"parley/internal/domain"
)

// Journal persists guard state across restarts. Persist failures are logged
// and do not affect the in-memory decision.
type Journal interface {
	Persist(Snapshot) error
	Restore() (Snapshot, bool, error)
}

// Snapshot is the serialisable guard state.
type Snapshot struct {
	Nonces    map[string]int64          `json:"nonces"`
	Sequences map[domain.UserID]uint64 `json:"sequences"`
}

func (g *Guard) snapshotLocked() Snapshot {
	s := Snapshot{
		Nonces:    make(map[string]int64, len(g.nonces)),
		Sequences: make(map[domain.UserID]uint64, len(g.lastSeq)),
	}
	for n, ts := range g.nonces {
		s.Nonces[n] = ts.UnixMilli()
	}
	for p, seq := range g.lastSeq {
		s.Sequences[p] = seq
	}
	return s
}

func (g *Guard) load(s Snapshot) {
	for n, ms := range s.Nonces {
		g.nonces[n] = time.UnixMilli(ms)
	}
	for p, seq := range s.Sequences {
		g.lastSeq[p] = seq
	}
	g.pruneLocked()
}

func (g *Guard) persistLocked() {
	if g.journal == nil {
		return
	}
	if err := g.journal.Persist(g.snapshotLocked()); err != nil {
		g.log.Warn().Err(err).Msg("replay journal persist failed; continuing with in-memory state")
	}
}
