package sessions

import (
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"parley/internal/domain"
	"parley/internal/util/memzero"
)

type entry struct {
	session domain.Session
	nextSeq uint64
}

// Directory maps peers to their established sessions.
type Directory struct {
	log zerolog.Logger

	mu       sync.RWMutex
	sessions map[domain.UserID]*entry
}

// NewDirectory returns an empty directory.
func NewDirectory(log zerolog.Logger) *Directory {
	return &Directory{
		log:      log,
		sessions: make(map[domain.UserID]*entry),
	}
}

// Get returns a copy of the session with peer.
func (d *Directory) Get(peer domain.UserID) (domain.Session, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.sessions[peer]
	if !ok {
		return domain.Session{}, false
	}
	return e.session, true
}

// Has reports whether a session with peer exists.
func (d *Directory) Has(peer domain.UserID) bool {
	_, ok := d.Get(peer)
	return ok
}

// Set installs s, replacing and wiping any previous session with s.Peer.
// Outgoing sequence numbers restart at 1.
func (d *Directory) Set(s domain.Session) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if old, ok := d.sessions[s.Peer]; ok {
		memzero.Zero(old.session.Key[:])
		d.log.Debug().Str("peer", s.Peer.String()).Msg("session superseded")
	}
	d.sessions[s.Peer] = &entry{session: s, nextSeq: 1}
}

// Next returns the session with peer together with the next outgoing
// sequence number, advancing the counter. A number taken by a send that then
// fails is not reused; receivers only require sequence numbers to increase, so
// the gap is harmless.
func (d *Directory) Next(peer domain.UserID) (domain.Session, uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.sessions[peer]
	if !ok {
		return domain.Session{}, 0, domain.ErrNoSession
	}
	seq := e.nextSeq
	e.nextSeq++
	return e.session, seq, nil
}

// Remove drops and wipes the session with peer.
func (d *Directory) Remove(peer domain.UserID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.sessions[peer]
	if !ok {
		return false
	}
	memzero.Zero(e.session.Key[:])
	delete(d.sessions, peer)
	return true
}

// Clear drops and wipes every session, as on logout.
func (d *Directory) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for peer, e := range d.sessions {
		memzero.Zero(e.session.Key[:])
		delete(d.sessions, peer)
	}
}

// Peers lists peers with an established session, sorted.
func (d *Directory) Peers() []domain.UserID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]domain.UserID, 0, len(d.sessions))
	for p := range d.sessions {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}
