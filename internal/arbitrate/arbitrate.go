// Package arbitrate implements the pure arbitration and patch-computation
// functions at the center of the hub: picking one winning source per object
// under a stickiness policy, and diffing successive resolved views into
// wire-ready patches.
//
// Every function here is a pure computation over its arguments with no
// hidden state, so it is exercised directly by unit tests without spinning
// up the engine or any transport.
package arbitrate

import (
	"sort"

	"github.com/streamspace/statehub/internal/pool"
)

// ResolvedNode is one winning node in a resolved view, paired with the
// source that produced it (needed for visibility filtering downstream).
type ResolvedNode struct {
	Timestamp      float64
	SubmitPlayerID string
	Data           map[string]interface{}
}

// ResolvedView maps object_id -> winning node for one scope.
type ResolvedView map[string]ResolvedNode

// SelectedSources maps object_id -> the source_id chosen last tick, used
// solely to implement stickiness.
type SelectedSources map[string]string

// Options configures one arbitration pass.
type Options struct {
	// Scope is ScopePlayers, ScopeEntities, or ScopeWaypoints. Only
	// ScopePlayers applies the self-preference rule.
	Scope pool.Scope
	// StickinessThresholdSec is the design parameter from §4.2 (default
	// 0.35s): how far a preferred source may lag and still be kept. The
	// player's own report is measured against the freshest candidate; the
	// prior tick's source is measured against the candidate chosen so far.
	StickinessThresholdSec float64
}

// Resolve computes the resolved view for one scope's pool snapshot, given
// the prior tick's SelectedSources, honoring (in order) freshness with
// lexicographic tiebreak, self-preference for players, and stickiness.
func Resolve(p *pool.Pool, prior SelectedSources, opts Options) (ResolvedView, SelectedSources) {
	view := make(ResolvedView)
	next := make(SelectedSources)

	for _, objectID := range p.Objects() {
		buckets := p.Buckets(objectID)
		chosen, chosenSource, ok := resolveObject(objectID, buckets, prior, opts)
		if !ok {
			continue
		}
		view[objectID] = chosen
		next[objectID] = chosenSource
	}

	return view, next
}

func resolveObject(objectID string, buckets map[string]pool.Node, prior SelectedSources, opts Options) (ResolvedNode, string, bool) {
	candidates := validCandidates(buckets)
	if len(candidates) == 0 {
		return ResolvedNode{}, "", false
	}

	freshSource, freshNode := freshest(candidates)

	chosenSource := freshSource
	chosenNode := freshNode

	if opts.Scope == pool.ScopePlayers {
		if selfNode, ok := candidates[objectID]; ok {
			if freshNode.Timestamp-selfNode.Timestamp <= opts.StickinessThresholdSec {
				chosenSource = objectID
				chosenNode = selfNode
			}
		}
	}

	if priorSource, ok := prior[objectID]; ok {
		if priorNode, stillPresent := candidates[priorSource]; stillPresent {
			if chosenNode.Timestamp-priorNode.Timestamp <= opts.StickinessThresholdSec {
				chosenSource = priorSource
				chosenNode = priorNode
			}
		}
	}

	return ResolvedNode{
		Timestamp:      chosenNode.Timestamp,
		SubmitPlayerID: chosenNode.SubmitPlayerID,
		Data:           chosenNode.Data,
	}, chosenSource, true
}

// validCandidates filters out malformed nodes: missing/non-finite timestamp
// or nil data are dropped, matching the timeout manager's unconditional
// pruning of malformed nodes.
func validCandidates(buckets map[string]pool.Node) map[string]pool.Node {
	out := make(map[string]pool.Node, len(buckets))
	for sourceID, n := range buckets {
		if !validTimestamp(n) {
			continue
		}
		out[sourceID] = n
	}
	return out
}

// freshest returns the candidate with the greatest timestamp, breaking
// exact ties by the lexicographically smallest source_id for determinism.
func freshest(candidates map[string]pool.Node) (string, pool.Node) {
	var bestSource string
	var best pool.Node
	first := true
	for sourceID, n := range candidates {
		if first {
			bestSource, best, first = sourceID, n, false
			continue
		}
		if n.Timestamp > best.Timestamp || (n.Timestamp == best.Timestamp && sourceID < bestSource) {
			bestSource, best = sourceID, n
		}
	}
	return bestSource, best
}

// ScopePatch is the {upsert, delete} diff between two resolved views.
type ScopePatch struct {
	Upsert map[string]map[string]interface{}
	Delete []string
}

// IsEmpty reports whether the patch carries no changes at all.
func (p ScopePatch) IsEmpty() bool {
	return len(p.Upsert) == 0 && len(p.Delete) == 0
}

// Diff computes the patch turning oldView into newView: for objects present
// in both, only the changed fields are emitted (by exact equality); objects
// newly appearing emit their full data; objects that disappeared are
// collected into a sorted Delete list for stable wire output.
func Diff(oldView, newView ResolvedView) ScopePatch {
	patch := ScopePatch{Upsert: map[string]map[string]interface{}{}}

	for objectID, newNode := range newView {
		oldNode, existed := oldView[objectID]
		if !existed {
			patch.Upsert[objectID] = copyData(newNode.Data)
			continue
		}
		delta := fieldDelta(oldNode.Data, newNode.Data)
		if len(delta) > 0 {
			patch.Upsert[objectID] = delta
		}
	}

	var deletes []string
	for objectID := range oldView {
		if _, stillPresent := newView[objectID]; !stillPresent {
			deletes = append(deletes, objectID)
		}
	}
	sort.Strings(deletes)
	patch.Delete = deletes

	return patch
}

// fieldDelta returns the subset of newData whose value differs from
// oldData (by exact equality) or that newData introduces. Keys present only
// in oldData are not emitted as deletions; full-resolved-view deletion is
// handled at the object level, not at the field level.
func fieldDelta(oldData, newData map[string]interface{}) map[string]interface{} {
	delta := map[string]interface{}{}
	for k, v := range newData {
		old, existed := oldData[k]
		if !existed || !deepEqual(old, v) {
			delta[k] = v
		}
	}
	return delta
}

func deepEqual(a, b interface{}) bool {
	switch av := a.(type) {
	case map[string]interface{}:
		bv, ok := b.(map[string]interface{})
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			if !deepEqual(v, bv[k]) {
				return false
			}
		}
		return true
	case []interface{}:
		bv, ok := b.([]interface{})
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !deepEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

func copyData(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
