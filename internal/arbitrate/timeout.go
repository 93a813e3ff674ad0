package arbitrate

import (
	"math"
	"sort"

	"github.com/streamspace/statehub/internal/pool"
)

// TimeoutConfig bundles the per-scope timeout and the online-owner
// extension's tunables.
type TimeoutConfig struct {
	ScopeTimeoutSec              float64
	OnlineOwnerTimeoutMultiplier float64
	LeadSec                      float64
}

// IsOnlineOwner reports whether sourceID is both this players-scope
// object's own id and a currently connected, handshook subscriber — the
// condition under which the online-owner timeout extension applies.
type IsOnlineOwner func(scope pool.Scope, objectID, sourceID string) bool

// RefreshCandidate names one (object, source) pair whose remaining life has
// entered the pre-expiry lead window.
type RefreshCandidate struct {
	ObjectID string
	SourceID string
}

// CollectRefreshCandidates scans p for nodes whose remaining life falls in
// (0, LeadSec], before any pruning happens this tick — callers must invoke
// this before Cleanup, per the broadcast engine's fixed step ordering.
func CollectRefreshCandidates(p *pool.Pool, now float64, cfg TimeoutConfig, isOnlineOwner IsOnlineOwner, waypointTTL func(pool.Node) float64) []RefreshCandidate {
	var out []RefreshCandidate
	p.Range(func(objectID, sourceID string, node pool.Node) bool {
		if !validTimestamp(node) {
			return true
		}
		timeout := effectiveTimeout(p.Scope(), objectID, sourceID, node, cfg, isOnlineOwner, waypointTTL)
		remaining := timeout - (now - node.Timestamp)
		if remaining > 0 && remaining <= cfg.LeadSec {
			out = append(out, RefreshCandidate{ObjectID: objectID, SourceID: sourceID})
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].SourceID != out[j].SourceID {
			return out[i].SourceID < out[j].SourceID
		}
		return out[i].ObjectID < out[j].ObjectID
	})
	return out
}

// Cleanup prunes every node whose age exceeds its effective timeout, and
// unconditionally prunes malformed nodes (missing/invalid timestamp or nil
// data). Nothing is returned: an object that loses its last bucket is
// removed from the pool by pool.Delete, and the next Resolve/Diff pass puts
// it on the scope's delete list.
func Cleanup(p *pool.Pool, now float64, cfg TimeoutConfig, isOnlineOwner IsOnlineOwner, waypointTTL func(pool.Node) float64) {
	type victim struct{ objectID, sourceID string }
	var victims []victim

	p.Range(func(objectID, sourceID string, node pool.Node) bool {
		if !validTimestamp(node) {
			victims = append(victims, victim{objectID, sourceID})
			return true
		}
		timeout := effectiveTimeout(p.Scope(), objectID, sourceID, node, cfg, isOnlineOwner, waypointTTL)
		if now-node.Timestamp > timeout {
			victims = append(victims, victim{objectID, sourceID})
		}
		return true
	})

	for _, v := range victims {
		p.Delete(v.objectID, v.sourceID)
	}
}

func validTimestamp(n pool.Node) bool {
	if n.Data == nil {
		return false
	}
	return !math.IsNaN(n.Timestamp) && !math.IsInf(n.Timestamp, 0) && n.Timestamp > 0
}

func effectiveTimeout(scope pool.Scope, objectID, sourceID string, node pool.Node, cfg TimeoutConfig, isOnlineOwner IsOnlineOwner, waypointTTL func(pool.Node) float64) float64 {
	base := cfg.ScopeTimeoutSec
	if scope == pool.ScopeWaypoints && waypointTTL != nil {
		if ttl := waypointTTL(node); ttl > 0 {
			base = ttl
		}
	}
	if scope == pool.ScopePlayers && isOnlineOwner != nil && objectID == sourceID && isOnlineOwner(scope, objectID, sourceID) {
		return base * cfg.OnlineOwnerTimeoutMultiplier
	}
	return base
}

// CooldownTable tracks, per source, the last tick a refresh_req was sent —
// owned alongside the rest of the engine's single-executor state, never
// accessed from outside that goroutine.
type CooldownTable struct {
	lastSent map[string]float64
}

// NewCooldownTable creates an empty cooldown table.
func NewCooldownTable() *CooldownTable {
	return &CooldownTable{lastSent: map[string]float64{}}
}

// Allow reports whether a refresh_req may be sent to sourceID at time now,
// given cooldownSec, and if so records now as the new last-sent time.
func (c *CooldownTable) Allow(sourceID string, now, cooldownSec float64) bool {
	last, seen := c.lastSent[sourceID]
	if seen && now-last < cooldownSec {
		return false
	}
	c.lastSent[sourceID] = now
	return true
}

// Prune removes a source's cooldown entry, called on disconnect so a
// reconnecting source with the same id starts with a clean slate.
func (c *CooldownTable) Prune(sourceID string) {
	delete(c.lastSent, sourceID)
}
