// Package pending tracks duels between their announcement and both peers
// confirming they reached the battle session.
package pending

import (
	"maps"
	"sync"
	"time"
)

const DefaultTTL = 15 * time.Second

// PairKey is an unordered pair of peer ids; build it with Pair.
type PairKey struct {
	A string
	B string
}

func Pair(x, y string) PairKey {
	if x > y {
		x, y = y, x
	}
	return PairKey{A: x, B: y}
}

func (k PairKey) Has(id string) bool { return k.A == id || k.B == id }

type PendingDuel struct {
	Pair      PairKey
	SessionID string
	CreatedAt time.Time
	ExpiresAt time.Time
	Acks      map[string]bool
}

func (d *PendingDuel) expired(now time.Time) bool { return !now.Before(d.ExpiresAt) }

func (d *PendingDuel) snapshot() PendingDuel {
	out := *d
	out.Acks = maps.Clone(d.Acks)
	return out
}

// Registry is safe for concurrent use. Expiry is evaluated lazily by Ensure
// and Sweep; there is no background timer.
type Registry struct {
	mu        sync.Mutex
	ttl       time.Duration
	now       func() time.Time
	byPair    map[PairKey]*PendingDuel
	bySession map[string]PairKey
}

func New(ttl time.Duration, now func() time.Time) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Registry{
		ttl:       ttl,
		now:       now,
		byPair:    make(map[PairKey]*PendingDuel),
		bySession: make(map[string]PairKey),
	}
}

// Ensure returns the pending duel for pair when it is unexpired and live
// reports its session as still running (created=false). Otherwise it calls
// create for a new session id and registers a fresh entry (created=true).
// The lookup and the creation happen under one lock, so concurrent
// challenges for the same pair produce one session.
func (r *Registry) Ensure(pair PairKey, live func(sessionID string) bool, create func() (string, error)) (PendingDuel, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if d, ok := r.byPair[pair]; ok {
		if !d.expired(now) && live(d.SessionID) {
			return d.snapshot(), false, nil
		}
		r.removeLocked(d)
	}

	id, err := create()
	if err != nil {
		return PendingDuel{}, false, err
	}
	d := &PendingDuel{
		Pair:      pair,
		SessionID: id,
		CreatedAt: now,
		ExpiresAt: now.Add(r.ttl),
		Acks:      map[string]bool{},
	}
	r.byPair[pair] = d
	r.bySession[id] = pair
	return d.snapshot(), true, nil
}

// Ack records that peer attached to the session. It reports whether this
// completed the handshake, in which case the entry is gone. Acks from ids
// outside the pair are ignored.
func (r *Registry) Ack(sessionID, peer string) (complete bool, found bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d := r.lookupLocked(sessionID)
	if d == nil {
		return false, false
	}
	if !d.Pair.Has(peer) {
		return false, true
	}
	d.Acks[peer] = true
	if d.Acks[d.Pair.A] && d.Acks[d.Pair.B] {
		r.removeLocked(d)
		return true, true
	}
	return false, true
}

// Fail drops the entry regardless of acknowledgments already received.
func (r *Registry) Fail(sessionID string) (PendingDuel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d := r.lookupLocked(sessionID)
	if d == nil {
		return PendingDuel{}, false
	}
	r.removeLocked(d)
	return d.snapshot(), true
}

// Sweep removes expired entries and entries whose peers are not both present.
func (r *Registry) Sweep(present func(id string) bool) []PendingDuel {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var removed []PendingDuel
	for _, d := range r.byPair {
		if d.expired(now) || !present(d.Pair.A) || !present(d.Pair.B) {
			r.removeLocked(d)
			removed = append(removed, d.snapshot())
		}
	}
	return removed
}

// RemoveParticipant drops every entry involving peer.
func (r *Registry) RemoveParticipant(peer string) []PendingDuel {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []PendingDuel
	for pair, d := range r.byPair {
		if pair.Has(peer) {
			r.removeLocked(d)
			removed = append(removed, d.snapshot())
		}
	}
	return removed
}

func (r *Registry) Get(pair PairKey) (PendingDuel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.byPair[pair]
	if !ok {
		return PendingDuel{}, false
	}
	return d.snapshot(), true
}

func (r *Registry) BySession(sessionID string) (PendingDuel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := r.lookupLocked(sessionID)
	if d == nil {
		return PendingDuel{}, false
	}
	return d.snapshot(), true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byPair)
}

func (r *Registry) lookupLocked(sessionID string) *PendingDuel {
	pair, ok := r.bySession[sessionID]
	if !ok {
		return nil
	}
	return r.byPair[pair]
}

func (r *Registry) removeLocked(d *PendingDuel) {
	delete(r.byPair, d.Pair)
	delete(r.bySession, d.SessionID)
}
