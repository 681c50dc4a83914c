package index

import "sync/atomic"

// Engine holds the current index snapshot behind an atomic pointer.
// Retrieval calls load one snapshot and use it for the whole call, so a
// concurrent rebuild can never expose half-built state to a reader.
type Engine struct {
	current atomic.Pointer[Snapshot]
}

// NewEngine creates an engine with an empty snapshot, which scores
// everything 0 until the first rebuild.
func NewEngine() *Engine {
	e := &Engine{}
	e.current.Store(Build(nil))
	return e
}

// Snapshot returns the current snapshot.
func (e *Engine) Snapshot() *Snapshot {
	return e.current.Load()
}

// BatchScore scores ids against the current snapshot. The snapshot is
// loaded once, so one call never mixes two index generations.
func (e *Engine) BatchScore(query string, ids []string) map[string]float64 {
	return e.Snapshot().BatchScore(query, ids)
}

// Rebuild builds a fresh snapshot from a full corpus snapshot and swaps
// it in. The previous snapshot stays valid for readers that already hold
// it.
func (e *Engine) Rebuild(docs []Document) *Snapshot {
	s := Build(docs)
	e.current.Store(s)
	return s
}
