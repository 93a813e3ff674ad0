package protocol

import (
	"encoding/json"
	"testing"
)

func TestNormalizePlayerDataAppliesDefaults(t *testing.T) {
	raw := json.RawMessage(`{"x":1,"y":2,"z":3,"dimension":"overworld"}`)
	data, ok := NormalizePlayerData(raw)
	if !ok {
		t.Fatalf("expected valid player data")
	}
	if data["health"] != 0.0 || data["maxHealth"] != 20.0 || data["width"] != 0.6 || data["height"] != 1.8 {
		t.Fatalf("expected defaults to apply, got %+v", data)
	}
}

func TestNormalizePlayerDataRejectsMissingRequired(t *testing.T) {
	raw := json.RawMessage(`{"x":1,"y":2}`)
	if _, ok := NormalizePlayerData(raw); ok {
		t.Fatalf("expected rejection for missing z/dimension")
	}
}

func TestNormalizePlayerDataSanitizesName(t *testing.T) {
	raw := json.RawMessage(`{"x":1,"y":2,"z":3,"dimension":"overworld","playerName":"<script>evil()</script>Steve"}`)
	data, ok := NormalizePlayerData(raw)
	if !ok {
		t.Fatalf("expected valid player data")
	}
	if name, _ := data["playerName"].(string); name != "Steve" {
		t.Fatalf("expected sanitized name 'Steve', got %q", name)
	}
}

func TestNormalizePlayerDataClampsNegativeHealth(t *testing.T) {
	raw := json.RawMessage(`{"x":1,"y":2,"z":3,"dimension":"overworld","health":-5}`)
	data, ok := NormalizePlayerData(raw)
	if !ok || data["health"] != 0.0 {
		t.Fatalf("expected negative health clamped to 0, got %+v ok=%v", data, ok)
	}
}

func TestNormalizeEntityDataFullReplaceDefaults(t *testing.T) {
	raw := json.RawMessage(`{"x":1,"y":2,"z":3,"dimension":"nether"}`)
	data, ok := NormalizeEntityData(raw)
	if !ok || data["width"] != 0.6 || data["height"] != 1.8 {
		t.Fatalf("expected entity defaults, got %+v ok=%v", data, ok)
	}
}

func TestNormalizeWaypointDataDefaultsAndClamping(t *testing.T) {
	clampTTL := func(v int) int {
		if v < 5 {
			return 5
		}
		if v > 86400 {
			return 86400
		}
		return v
	}
	clampCap := func(v int) int {
		if v < 1 {
			return 1
		}
		if v > 100 {
			return 100
		}
		return v
	}

	raw := json.RawMessage(`{"x":1,"y":2,"z":3,"dimension":"overworld","name":"Base","ttlSeconds":999999,"maxQuickMarks":500}`)
	data, ok := NormalizeWaypointData(raw, clampTTL, clampCap)
	if !ok {
		t.Fatalf("expected valid waypoint data")
	}
	if data["symbol"] != "W" || data["color"] != 5635925 {
		t.Fatalf("expected symbol/color defaults, got %+v", data)
	}
	if data["ttlSeconds"] != 86400.0 {
		t.Fatalf("expected ttlSeconds clamped to 86400, got %v", data["ttlSeconds"])
	}
	if data["maxQuickMarks"] != 100 {
		t.Fatalf("expected maxQuickMarks clamped to 100, got %v", data["maxQuickMarks"])
	}
}

func TestNormalizeWaypointDataReplaceOldQuickForcesCapOne(t *testing.T) {
	clampCap := func(v int) int { return v }
	raw := json.RawMessage(`{"x":1,"y":2,"z":3,"dimension":"overworld","name":"Mark","replaceOldQuick":true,"maxQuickMarks":10}`)
	data, ok := NormalizeWaypointData(raw, nil, clampCap)
	if !ok || data["maxQuickMarks"] != 1 {
		t.Fatalf("expected legacy replaceOldQuick to force cap 1, got %+v ok=%v", data, ok)
	}
}

func TestNormalizeWaypointDataRejectsMissingName(t *testing.T) {
	raw := json.RawMessage(`{"x":1,"y":2,"z":3,"dimension":"overworld"}`)
	if _, ok := NormalizeWaypointData(raw, nil, nil); ok {
		t.Fatalf("expected rejection for missing name")
	}
}

func TestQuickMarkEvictionCandidatesEvictsOldestFirst(t *testing.T) {
	existing := map[string]float64{"w1": 10, "w2": 20, "w3": 5}
	got := QuickMarkEvictionCandidates(existing, 3)
	if len(got) != 1 || got[0] != "w3" {
		t.Fatalf("expected eviction of oldest (w3) when count reaches cap, got %v", got)
	}
}

func TestQuickMarkEvictionCandidatesNoneBelowCap(t *testing.T) {
	existing := map[string]float64{"w1": 10}
	if got := QuickMarkEvictionCandidates(existing, 5); got != nil {
		t.Fatalf("expected no eviction below cap, got %v", got)
	}
}

func TestQuickMarkEvictionCandidatesCapOne(t *testing.T) {
	existing := map[string]float64{"w1": 10}
	got := QuickMarkEvictionCandidates(existing, 1)
	if len(got) != 1 || got[0] != "w1" {
		t.Fatalf("expected replaceOldQuick-style cap 1 to evict the sole existing mark, got %v", got)
	}
}

func TestNormalizeMarkTeamAliasesAndDefault(t *testing.T) {
	cases := map[string]string{
		"friendly": "friendly", "friend": "friendly", "ally": "friendly", "blue": "friendly",
		"enemy": "enemy", "hostile": "enemy", "red": "enemy",
		"neutral": "neutral", "none": "neutral", "unknown": "neutral", "gray": "neutral", "grey": "neutral",
		"banana": "neutral", "": "neutral", "FRIEND": "friendly", "  Red  ": "enemy",
	}
	for in, want := range cases {
		if got := NormalizeMarkTeam(in); got != want {
			t.Fatalf("NormalizeMarkTeam(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeMarkColorValidAndInvalid(t *testing.T) {
	if got, ok := NormalizeMarkColor("#ABCDEF"); !ok || got != "#abcdef" {
		t.Fatalf("expected valid hex color to lowercase, got %q, %v", got, ok)
	}
	if got, ok := NormalizeMarkColor("abcdef"); !ok || got != "#abcdef" {
		t.Fatalf("expected missing '#' to be tolerated, got %q, %v", got, ok)
	}
	for _, bad := range []string{"", "not-a-color", "#fff", "#gggggg", "#1234567"} {
		if _, ok := NormalizeMarkColor(bad); ok {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestNewPlayerMarkFillsDefaultColorPerTeam(t *testing.T) {
	mark := NewPlayerMark("enemy", "", "  Scout  ", 12345)
	if mark.Team != "enemy" || mark.Color != "#ef4444" {
		t.Fatalf("expected default enemy color fill, got %+v", mark)
	}
	if mark.Label != "Scout" {
		t.Fatalf("expected label trimmed, got %q", mark.Label)
	}
	if mark.UpdatedAt != 12345 {
		t.Fatalf("expected UpdatedAt to be stamped, got %d", mark.UpdatedAt)
	}

	mark = NewPlayerMark("banana", "bad", "", 1)
	if mark.Team != "neutral" || mark.Color != "#94a3b8" {
		t.Fatalf("expected neutral default fill for unrecognized team/color, got %+v", mark)
	}
}
