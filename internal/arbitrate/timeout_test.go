package arbitrate

import (
	"testing"

	"github.com/streamspace/statehub/internal/pool"
)

func TestCleanupPrunesExpiredNode(t *testing.T) {
	p := pool.New(pool.ScopeEntities)
	p.Upsert("e1", "S1", pool.Node{Timestamp: 100, SubmitPlayerID: "S1", Data: map[string]interface{}{"hp": 1.0}})

	cfg := TimeoutConfig{ScopeTimeoutSec: 5}
	Cleanup(p, 106, cfg, nil, nil)

	if p.Size() != 0 {
		t.Fatalf("expected expired node to be pruned, pool size=%d", p.Size())
	}
}

func TestCleanupKeepsFreshNode(t *testing.T) {
	p := pool.New(pool.ScopeEntities)
	p.Upsert("e1", "S1", pool.Node{Timestamp: 100, SubmitPlayerID: "S1", Data: map[string]interface{}{"hp": 1.0}})

	cfg := TimeoutConfig{ScopeTimeoutSec: 5}
	Cleanup(p, 103, cfg, nil, nil)

	if p.Size() != 1 {
		t.Fatalf("expected fresh node to survive, pool size=%d", p.Size())
	}
}

func TestCleanupExtendsTimeoutForOnlineOwner(t *testing.T) {
	p := pool.New(pool.ScopePlayers)
	p.Upsert("p1", "p1", pool.Node{Timestamp: 100, SubmitPlayerID: "p1", Data: map[string]interface{}{"x": 1.0}})

	cfg := TimeoutConfig{ScopeTimeoutSec: 5, OnlineOwnerTimeoutMultiplier: 8}
	online := func(scope pool.Scope, objectID, sourceID string) bool { return true }

	// 20s elapsed: exceeds the base 5s timeout but not the extended 40s one.
	Cleanup(p, 120, cfg, online, nil)
	if p.Size() != 1 {
		t.Fatalf("expected online owner's self-report to survive past the base timeout, pool size=%d", p.Size())
	}

	Cleanup(p, 200, cfg, online, nil)
	if p.Size() != 0 {
		t.Fatalf("expected self-report to expire once even the extended timeout passes, pool size=%d", p.Size())
	}
}

func TestCleanupUsesWaypointTTLOverride(t *testing.T) {
	p := pool.New(pool.ScopeWaypoints)
	p.Upsert("w1", "S1", pool.Node{Timestamp: 100, SubmitPlayerID: "S1", Data: map[string]interface{}{"ttlSeconds": 10.0}})

	cfg := TimeoutConfig{ScopeTimeoutSec: 120}
	ttlFn := func(n pool.Node) float64 {
		if v, ok := n.Data["ttlSeconds"].(float64); ok {
			return v
		}
		return 0
	}

	Cleanup(p, 115, cfg, nil, ttlFn)
	if p.Size() != 0 {
		t.Fatalf("expected waypoint TTL override (10s) to prune before the scope default (120s), pool size=%d", p.Size())
	}
}

func TestCleanupPrunesMalformedNodes(t *testing.T) {
	p := pool.New(pool.ScopeEntities)
	p.Upsert("e1", "S1", pool.Node{Timestamp: 0, SubmitPlayerID: "S1", Data: map[string]interface{}{"hp": 1.0}})

	Cleanup(p, 1, TimeoutConfig{ScopeTimeoutSec: 5}, nil, nil)
	if p.Size() != 0 {
		t.Fatalf("expected node with zero timestamp to be treated as malformed and pruned, pool size=%d", p.Size())
	}
}

func TestCollectRefreshCandidatesFindsLeadWindow(t *testing.T) {
	p := pool.New(pool.ScopeEntities)
	p.Upsert("e1", "S1", pool.Node{Timestamp: 100, SubmitPlayerID: "S1", Data: map[string]interface{}{"hp": 1.0}})

	cfg := TimeoutConfig{ScopeTimeoutSec: 5, LeadSec: 1.2}
	// now=103.9: remaining = 5 - 3.9 = 1.1, within the 1.2s lead window.
	candidates := CollectRefreshCandidates(p, 103.9, cfg, nil, nil)
	if len(candidates) != 1 || candidates[0].ObjectID != "e1" || candidates[0].SourceID != "S1" {
		t.Fatalf("expected e1/S1 in lead window, got %v", candidates)
	}
}

func TestCollectRefreshCandidatesExcludesOutsideWindow(t *testing.T) {
	p := pool.New(pool.ScopeEntities)
	p.Upsert("e1", "S1", pool.Node{Timestamp: 100, SubmitPlayerID: "S1", Data: map[string]interface{}{"hp": 1.0}})

	cfg := TimeoutConfig{ScopeTimeoutSec: 5, LeadSec: 1.2}
	candidates := CollectRefreshCandidates(p, 101, cfg, nil, nil)
	if len(candidates) != 0 {
		t.Fatalf("expected no candidates far from expiry, got %v", candidates)
	}
}

func TestCooldownTableEnforcesCooldown(t *testing.T) {
	c := NewCooldownTable()
	if !c.Allow("S1", 100, 1.5) {
		t.Fatalf("expected first request to be allowed")
	}
	if c.Allow("S1", 100.5, 1.5) {
		t.Fatalf("expected request within cooldown window to be denied")
	}
	if !c.Allow("S1", 102, 1.5) {
		t.Fatalf("expected request past cooldown window to be allowed")
	}
}

func TestCooldownTablePruneResetsState(t *testing.T) {
	c := NewCooldownTable()
	c.Allow("S1", 100, 1.5)
	c.Prune("S1")
	if !c.Allow("S1", 100.1, 1.5) {
		t.Fatalf("expected pruned source to bypass cooldown")
	}
}
