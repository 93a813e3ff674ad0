package ingest

import (
	"testing"

	"github.com/streamspace/statehub/internal/engine"
	"github.com/streamspace/statehub/internal/pool"
)

func testDecoder() *Decoder {
	return New(Config{}, func() float64 { return 100 })
}

func TestDecodeHandshakeProducesHandshakeCmd(t *testing.T) {
	d := testDecoder()
	cmd := d.Decode("c1", []byte(`{"type":"handshake","submitPlayerId":"p1","protocolVersion":2,"supportsDelta":true}`))
	hs, ok := cmd.(engine.HandshakeCmd)
	if !ok {
		t.Fatalf("expected HandshakeCmd, got %#v", cmd)
	}
	if hs.SubmitPlayerID != "p1" || hs.ProtocolVersion != 2 || !hs.SupportsDelta {
		t.Fatalf("unexpected handshake fields: %+v", hs)
	}
}

func TestDecodeHandshakeRejectsEmptySubmitPlayerID(t *testing.T) {
	d := testDecoder()
	if cmd := d.Decode("c1", []byte(`{"type":"handshake"}`)); cmd != nil {
		t.Fatalf("expected nil command for missing submitPlayerId, got %#v", cmd)
	}
}

func TestDecodePlayersUpdateProducesMergeIngest(t *testing.T) {
	d := testDecoder()
	cmd := d.Decode("c1", []byte(`{"type":"players_update","submitPlayerId":"p1","players":{"p1":{"x":1,"y":2,"z":3,"dimension":"overworld"}}}`))
	ic, ok := cmd.(engine.IngestCmd)
	if !ok {
		t.Fatalf("expected IngestCmd, got %#v", cmd)
	}
	if ic.Scope != pool.ScopePlayers || ic.Kind != engine.IngestKindMerge {
		t.Fatalf("unexpected scope/kind: %+v", ic)
	}
	if _, ok := ic.Upsert["p1"]; !ok {
		t.Fatalf("expected p1 in upsert set, got %+v", ic.Upsert)
	}
}

func TestDecodePlayersUpdateSkipsMalformedObject(t *testing.T) {
	d := testDecoder()
	cmd := d.Decode("c1", []byte(`{"type":"players_update","submitPlayerId":"p1","players":{"p1":{"x":1,"y":2}}}`))
	ic := cmd.(engine.IngestCmd)
	if len(ic.Upsert) != 0 {
		t.Fatalf("expected malformed object dropped, got %+v", ic.Upsert)
	}
}

func TestDecodeEntitiesUpdateProducesFullReplace(t *testing.T) {
	d := testDecoder()
	cmd := d.Decode("c1", []byte(`{"type":"entities_update","submitPlayerId":"S1","entities":{"e1":{"x":1,"y":2,"z":3,"dimension":"nether"}}}`))
	ic := cmd.(engine.IngestCmd)
	if ic.Scope != pool.ScopeEntities || ic.Kind != engine.IngestKindFullReplace {
		t.Fatalf("expected entities full-replace, got %+v", ic)
	}
}

func TestDecodeWaypointsUpdateAppliesClamp(t *testing.T) {
	d := New(Config{
		ClampQuickMarkCap: func(v int) int {
			if v > 2 {
				return 2
			}
			return v
		},
	}, func() float64 { return 100 })
	cmd := d.Decode("c1", []byte(`{"type":"waypoints_update","submitPlayerId":"S1","waypoints":{"w1":{"x":1,"y":2,"z":3,"dimension":"overworld","name":"Base","waypointKind":"quick","maxQuickMarks":50}}}`))
	ic := cmd.(engine.IngestCmd)
	if ic.Scope != pool.ScopeWaypoints {
		t.Fatalf("expected waypoints scope, got %+v", ic)
	}
	if ic.Upsert["w1"].Data["maxQuickMarks"] != 2 {
		t.Fatalf("expected clamped maxQuickMarks=2, got %+v", ic.Upsert["w1"].Data)
	}
}

func TestDecodePlayersPatchMergesAndSanitizes(t *testing.T) {
	d := testDecoder()
	cmd := d.Decode("c1", []byte(`{"type":"players_patch","submitPlayerId":"p1","upsert":{"p1":{"playerName":"<b>Bob</b>"}},"delete":["p2"]}`))
	ic := cmd.(engine.IngestCmd)
	if ic.Kind != engine.IngestKindPatch {
		t.Fatalf("expected patch kind, got %+v", ic)
	}
	if ic.Upsert["p1"].Data["playerName"] != "Bob" {
		t.Fatalf("expected sanitized playerName, got %+v", ic.Upsert["p1"].Data)
	}
	if len(ic.Delete) != 1 || ic.Delete[0] != "p2" {
		t.Fatalf("expected delete list to carry through, got %+v", ic.Delete)
	}
}

func TestDecodeWaypointsDeleteProducesDeleteIngest(t *testing.T) {
	d := testDecoder()
	cmd := d.Decode("c1", []byte(`{"type":"waypoints_delete","submitPlayerId":"p1","waypointIds":["w1","w2"]}`))
	ic := cmd.(engine.IngestCmd)
	if ic.Kind != engine.IngestKindDelete || len(ic.Delete) != 2 {
		t.Fatalf("unexpected delete ingest: %+v", ic)
	}
}

func TestDecodeDeathCancelProducesMatchPredicate(t *testing.T) {
	d := testDecoder()
	cmd := d.Decode("c1", []byte(`{"type":"waypoints_entity_death_cancel","targetEntityIds":["z1"]}`))
	ic := cmd.(engine.IngestCmd)
	if ic.Kind != engine.IngestKindDeleteMatching || ic.Match == nil {
		t.Fatalf("expected delete-matching ingest with a predicate, got %+v", ic)
	}
	hit := ic.Match("w1", "S1", pool.Node{Data: map[string]interface{}{"targetType": "entity", "targetEntityId": "z1"}})
	if !hit {
		t.Fatalf("expected predicate to match targetEntityId z1")
	}
	miss := ic.Match("w2", "S1", pool.Node{Data: map[string]interface{}{"targetType": "entity", "targetEntityId": "other"}})
	if miss {
		t.Fatalf("expected predicate to reject a non-matching targetEntityId")
	}
}

func TestDecodeDeathCancelEmptyTargetsProducesNil(t *testing.T) {
	d := testDecoder()
	if cmd := d.Decode("c1", []byte(`{"type":"waypoints_entity_death_cancel","targetEntityIds":[]}`)); cmd != nil {
		t.Fatalf("expected nil command for empty target set, got %#v", cmd)
	}
}

func TestDecodeTabPlayersUpdateBuildsIdentityKeys(t *testing.T) {
	d := testDecoder()
	cmd := d.Decode("c1", []byte(`{"type":"tab_players_update","submitPlayerId":"S1","tabPlayers":[{"uuid":"ABC-123","name":"steve"},{"name":"alex"}]}`))
	ic := cmd.(engine.IngestCmd)
	if ic.Kind != engine.IngestKindTabIdentity {
		t.Fatalf("expected tab identity ingest, got %+v", ic)
	}
	if _, ok := ic.IdentityKeys["uuid:abc-123"]; !ok {
		t.Fatalf("expected uuid-preferred key, got %+v", ic.IdentityKeys)
	}
	if _, ok := ic.IdentityKeys["name:alex"]; !ok {
		t.Fatalf("expected name-fallback key, got %+v", ic.IdentityKeys)
	}
}

func TestDecodeResyncReqProducesResyncCmd(t *testing.T) {
	d := testDecoder()
	cmd := d.Decode("c1", []byte(`{"type":"resync_req","submitPlayerId":"p1"}`))
	if _, ok := cmd.(engine.ResyncCmd); !ok {
		t.Fatalf("expected ResyncCmd, got %#v", cmd)
	}
}

func TestDecodeMalformedJSONProducesNil(t *testing.T) {
	d := testDecoder()
	if cmd := d.Decode("c1", []byte(`not json`)); cmd != nil {
		t.Fatalf("expected nil command for malformed json, got %#v", cmd)
	}
}

func TestDecodeUnsupportedTypeProducesNil(t *testing.T) {
	d := testDecoder()
	if cmd := d.Decode("c1", []byte(`{"type":"unknown_type","submitPlayerId":"p1"}`)); cmd != nil {
		t.Fatalf("expected nil command for unsupported type, got %#v", cmd)
	}
}

func TestPeekSubmitPlayerIDExtractsWithoutFullDecode(t *testing.T) {
	if got := PeekSubmitPlayerID([]byte(`{"type":"players_update","submitPlayerId":"p1"}`)); got != "p1" {
		t.Fatalf("expected p1, got %q", got)
	}
}
