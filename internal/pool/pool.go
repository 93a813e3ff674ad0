// Package pool implements the multi-source report pool: the raw write
// target sources push observations into. One Pool instance is created per
// scope (players, entities, waypoints) by the engine.
//
// All mutators here are called only from the single-executor goroutine (see
// internal/engine); the concurrent map underneath is chosen for its
// allocation profile and to leave room for the sharded-arbitration path
// described by the specification's cooperative-scheduling design note, not
// because multiple goroutines mutate it concurrently today.
package pool

import (
	"github.com/puzpuzpuz/xsync/v4"
)

// Scope names the three parallel pools the hub maintains.
type Scope string

const (
	ScopePlayers   Scope = "players"
	ScopeEntities  Scope = "entities"
	ScopeWaypoints Scope = "waypoints"
)

// Node is a single source's opinion about one object.
type Node struct {
	Timestamp      float64
	SubmitPlayerID string
	Data           map[string]interface{}
}

// bucket is the per-object map of source_id -> Node.
type bucket = *xsync.Map[string, Node]

// Pool is one scope's object_id -> source_id -> Node mapping.
//
// Invariant: bucket maps are never left empty in the outer map — when the
// last source_id is removed from an object's bucket, the object_id key is
// removed from objects too.
type Pool struct {
	scope   Scope
	objects *xsync.Map[string, bucket]
}

// New creates an empty pool for the given scope.
func New(scope Scope) *Pool {
	return &Pool{
		scope:   scope,
		objects: xsync.NewMap[string, bucket](),
	}
}

// Scope returns the scope this pool was created for.
func (p *Pool) Scope() Scope {
	return p.scope
}

// Upsert overwrites source_id's bucket entry for object_id.
func (p *Pool) Upsert(objectID, sourceID string, node Node) {
	b, _ := p.objects.LoadOrCompute(objectID, func() (bucket, bool) {
		return xsync.NewMap[string, Node](), false
	})
	b.Store(sourceID, node)
}

// Delete removes source_id's bucket entry for object_id. If the object's
// bucket map becomes empty, the object_id key is removed entirely. Returns
// whether anything was removed.
func (p *Pool) Delete(objectID, sourceID string) bool {
	b, ok := p.objects.Load(objectID)
	if !ok {
		return false
	}
	_, removed := b.LoadAndDelete(sourceID)
	if removed && b.Size() == 0 {
		p.objects.Delete(objectID)
	}
	return removed
}

// FullReplaceForSource implements the full-snapshot semantics used by
// entities_update: delete every bucket entry owned by sourceID in this
// scope, then upsert newNodes.
func (p *Pool) FullReplaceForSource(sourceID string, newNodes map[string]Node) {
	p.PruneSource(sourceID)
	for objectID, node := range newNodes {
		p.Upsert(objectID, sourceID, node)
	}
}

// PruneSource deletes every bucket entry owned by sourceID across every
// object in this scope. Used both by entities_update's full-replace
// semantics and by connection disconnect handling.
func (p *Pool) PruneSource(sourceID string) {
	var toDelete []string
	p.objects.Range(func(objectID string, b bucket) bool {
		if _, ok := b.Load(sourceID); ok {
			b.Delete(sourceID)
			if b.Size() == 0 {
				toDelete = append(toDelete, objectID)
			}
		}
		return true
	})
	for _, objectID := range toDelete {
		p.objects.Delete(objectID)
	}
}

// SnapshotOfSource returns sourceID's existing node for objectID, if any —
// used to merge incoming patches onto the prior baseline.
func (p *Pool) SnapshotOfSource(objectID, sourceID string) (Node, bool) {
	b, ok := p.objects.Load(objectID)
	if !ok {
		return Node{}, false
	}
	return b.Load(sourceID)
}

// Objects returns every object_id currently present in the pool. The
// returned slice is a point-in-time snapshot; safe to range over while the
// caller continues to mutate the pool.
func (p *Pool) Objects() []string {
	ids := make([]string, 0, p.objects.Size())
	p.objects.Range(func(objectID string, _ bucket) bool {
		ids = append(ids, objectID)
		return true
	})
	return ids
}

// Buckets returns, for one object_id, a snapshot of its source_id -> Node
// map, or nil if the object has no reports.
func (p *Pool) Buckets(objectID string) map[string]Node {
	b, ok := p.objects.Load(objectID)
	if !ok {
		return nil
	}
	out := make(map[string]Node, b.Size())
	b.Range(func(sourceID string, n Node) bool {
		out[sourceID] = n
		return true
	})
	return out
}

// Range iterates every (object_id, source_id, node) triple in the pool. The
// iteration order is unspecified. Used by timeout cleanup and arbitration.
func (p *Pool) Range(fn func(objectID, sourceID string, node Node) bool) {
	p.objects.Range(func(objectID string, b bucket) bool {
		cont := true
		b.Range(func(sourceID string, n Node) bool {
			if !fn(objectID, sourceID, n) {
				cont = false
				return false
			}
			return true
		})
		return cont
	})
}

// DeleteMatching removes every (object_id, source_id) pair for which match
// returns true, pruning any object bucket left empty. Used by
// waypoints_entity_death_cancel, which deletes across all sources at once.
func (p *Pool) DeleteMatching(match func(objectID, sourceID string, node Node) bool) []string {
	type victim struct{ objectID, sourceID string }
	var victims []victim
	p.objects.Range(func(objectID string, b bucket) bool {
		b.Range(func(sourceID string, n Node) bool {
			if match(objectID, sourceID, n) {
				victims = append(victims, victim{objectID, sourceID})
			}
			return true
		})
		return true
	})
	touched := map[string]bool{}
	for _, v := range victims {
		if b, ok := p.objects.Load(v.objectID); ok {
			b.Delete(v.sourceID)
			touched[v.objectID] = true
		}
	}
	var emptied []string
	for objectID := range touched {
		if b, ok := p.objects.Load(objectID); ok && b.Size() == 0 {
			p.objects.Delete(objectID)
			emptied = append(emptied, objectID)
		}
	}
	return emptied
}

// Size returns the number of distinct object ids currently tracked.
func (p *Pool) Size() int {
	return p.objects.Size()
}
