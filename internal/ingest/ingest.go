// Package ingest turns one raw subscriber-channel text frame into the
// engine.Command it should become. It is deliberately stateless and holds
// no reference to an Engine — the WebSocket read pump calls Decode and
// posts whatever it returns through Engine.Submit, keeping every state
// mutation on the single executor goroutine.
package ingest

import (
	"encoding/json"

	"github.com/streamspace/statehub/internal/engine"
	"github.com/streamspace/statehub/internal/pool"
	"github.com/streamspace/statehub/internal/protocol"
	"github.com/streamspace/statehub/internal/visibility"
)

// Clock supplies the wall-clock timestamp stamped onto every report as it
// enters a pool.
type Clock func() float64

// Config bundles the waypoint clamp functions the waypoint decode path
// needs; both come from internal/config and are otherwise unused here.
type Config struct {
	ClampWaypointTTL  func(int) int
	ClampQuickMarkCap func(int) int
}

// Decoder decodes frames for one hub instance's configured clamps.
type Decoder struct {
	cfg Config
	now Clock
}

// New builds a Decoder.
func New(cfg Config, now Clock) *Decoder {
	return &Decoder{cfg: cfg, now: now}
}

// frame is the subset of fields every inbound message shares, enough to
// dispatch on type before a type-specific decode of the same bytes.
type frame struct {
	Type           string `json:"type"`
	SubmitPlayerID string `json:"submitPlayerId"`
}

// PeekSubmitPlayerID extracts submitPlayerId from a raw frame without a
// full decode, so the read pump can decide whether this connection needs an
// implicit legacy registration before the command below is applied.
func PeekSubmitPlayerID(raw []byte) string {
	var fr frame
	_ = json.Unmarshal(raw, &fr)
	return fr.SubmitPlayerID
}

// Decode maps one raw frame from connID into the command it produces. A nil
// return means the frame was malformed or carries a type this channel
// doesn't accept — the caller simply drops it, same as the teacher's
// read pump swallowing a bad decode and looping for the next frame.
func (d *Decoder) Decode(connID string, raw []byte) engine.Command {
	typ, err := protocol.DecodeType(raw)
	if err != nil {
		return nil
	}

	var fr frame
	if err := json.Unmarshal(raw, &fr); err != nil {
		return nil
	}

	switch typ {
	case protocol.TypeHandshake:
		return d.decodeHandshake(connID, raw)
	case protocol.TypePlayersUpdate:
		return d.decodeScopeUpdate(raw, fr, pool.ScopePlayers)
	case protocol.TypeEntitiesUpdate:
		return d.decodeScopeUpdate(raw, fr, pool.ScopeEntities)
	case protocol.TypeWaypointsUpdate:
		return d.decodeWaypointsUpdate(raw, fr)
	case protocol.TypePlayersPatch:
		return d.decodeScopePatch(raw, fr, pool.ScopePlayers)
	case protocol.TypeEntitiesPatch:
		return d.decodeScopePatch(raw, fr, pool.ScopeEntities)
	case protocol.TypeWaypointsDelete:
		return d.decodeWaypointsDelete(raw, fr)
	case protocol.TypeWaypointsEntityDeathCancel:
		return d.decodeDeathCancel(raw)
	case protocol.TypeTabPlayersUpdate:
		return d.decodeTabPlayersUpdate(raw, fr)
	case protocol.TypeResyncReq:
		if fr.SubmitPlayerID == "" {
			return nil
		}
		return engine.ResyncCmd{ConnID: connID}
	}
	return nil
}

func (d *Decoder) decodeHandshake(connID string, raw []byte) engine.Command {
	var in protocol.HandshakeIn
	if err := json.Unmarshal(raw, &in); err != nil || in.SubmitPlayerID == "" {
		return nil
	}
	protocolVersion := in.ProtocolVersion
	if protocolVersion == 0 {
		protocolVersion = 1
	}
	delta := in.SupportsDelta != nil && *in.SupportsDelta
	return engine.HandshakeCmd{
		ConnID:          connID,
		SubmitPlayerID:  in.SubmitPlayerID,
		ProtocolVersion: protocolVersion,
		SupportsDelta:   delta,
	}
}

type scopeUpdateFrame struct {
	SubmitPlayerID string                     `json:"submitPlayerId"`
	Players        map[string]json.RawMessage `json:"players"`
	Entities       map[string]json.RawMessage `json:"entities"`
}

func (d *Decoder) decodeScopeUpdate(raw []byte, fr frame, scope pool.Scope) engine.Command {
	if fr.SubmitPlayerID == "" {
		return nil
	}
	var su scopeUpdateFrame
	if err := json.Unmarshal(raw, &su); err != nil {
		return nil
	}
	objects := su.Players
	normalize := protocol.NormalizePlayerData
	kind := engine.IngestKindMerge
	if scope == pool.ScopeEntities {
		objects = su.Entities
		normalize = protocol.NormalizeEntityData
		kind = engine.IngestKindFullReplace
	}

	now := d.now()
	upsert := make(map[string]pool.Node, len(objects))
	for id, rawObj := range objects {
		data, ok := normalize(rawObj)
		if !ok {
			continue
		}
		upsert[id] = pool.Node{Timestamp: now, SubmitPlayerID: fr.SubmitPlayerID, Data: data}
	}
	return engine.IngestCmd{Scope: scope, SourceID: fr.SubmitPlayerID, Kind: kind, Upsert: upsert}
}

type waypointsUpdateFrame struct {
	SubmitPlayerID string                     `json:"submitPlayerId"`
	Waypoints      map[string]json.RawMessage `json:"waypoints"`
}

func (d *Decoder) decodeWaypointsUpdate(raw []byte, fr frame) engine.Command {
	if fr.SubmitPlayerID == "" {
		return nil
	}
	var wu waypointsUpdateFrame
	if err := json.Unmarshal(raw, &wu); err != nil {
		return nil
	}

	now := d.now()
	upsert := make(map[string]pool.Node, len(wu.Waypoints))
	for id, rawObj := range wu.Waypoints {
		data, ok := protocol.NormalizeWaypointData(rawObj, d.cfg.ClampWaypointTTL, d.cfg.ClampQuickMarkCap)
		if !ok {
			continue
		}
		upsert[id] = pool.Node{Timestamp: now, SubmitPlayerID: fr.SubmitPlayerID, Data: data}
	}
	return engine.IngestCmd{Scope: pool.ScopeWaypoints, SourceID: fr.SubmitPlayerID, Kind: engine.IngestKindMerge, Upsert: upsert}
}

// patchTextFields lists the display fields a patch upsert sanitizes, since
// a patch is a partial map rather than a fully-normalized object.
var patchTextFields = []string{"playerName", "entityName", "name", "symbol", "ownerName", "targetEntityName", "targetEntityType"}

func (d *Decoder) decodeScopePatch(raw []byte, fr frame, scope pool.Scope) engine.Command {
	if fr.SubmitPlayerID == "" {
		return nil
	}
	var in protocol.ScopePatchIn
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil
	}

	now := d.now()
	upsert := make(map[string]pool.Node, len(in.Upsert))
	for id, rawObj := range in.Upsert {
		var partial map[string]interface{}
		if err := json.Unmarshal(rawObj, &partial); err != nil {
			continue
		}
		sanitizePatchFields(partial)
		upsert[id] = pool.Node{Timestamp: now, SubmitPlayerID: fr.SubmitPlayerID, Data: partial}
	}
	return engine.IngestCmd{
		Scope:    scope,
		SourceID: fr.SubmitPlayerID,
		Kind:     engine.IngestKindPatch,
		Upsert:   upsert,
		Delete:   in.Delete,
	}
}

func sanitizePatchFields(m map[string]interface{}) {
	for _, key := range patchTextFields {
		if s, ok := m[key].(string); ok {
			m[key] = protocol.SanitizeText(s)
		}
	}
}

func (d *Decoder) decodeWaypointsDelete(raw []byte, fr frame) engine.Command {
	if fr.SubmitPlayerID == "" {
		return nil
	}
	var in protocol.WaypointsDeleteIn
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil
	}
	return engine.IngestCmd{Scope: pool.ScopeWaypoints, SourceID: fr.SubmitPlayerID, Kind: engine.IngestKindDelete, Delete: in.WaypointIDs}
}

func (d *Decoder) decodeDeathCancel(raw []byte) engine.Command {
	var in protocol.WaypointsEntityDeathCancelIn
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil
	}
	targets := map[string]struct{}{}
	for _, id := range in.TargetEntityIDs {
		if id != "" {
			targets[id] = struct{}{}
		}
	}
	if len(targets) == 0 {
		return nil
	}
	return engine.IngestCmd{
		Scope: pool.ScopeWaypoints,
		Kind:  engine.IngestKindDeleteMatching,
		Match: func(objectID, sourceID string, node pool.Node) bool {
			if node.Data["targetType"] != "entity" {
				return false
			}
			id, _ := node.Data["targetEntityId"].(string)
			_, hit := targets[id]
			return hit
		},
	}
}

func (d *Decoder) decodeTabPlayersUpdate(raw []byte, fr frame) engine.Command {
	if fr.SubmitPlayerID == "" {
		return nil
	}
	var in protocol.TabPlayersUpdateIn
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil
	}
	keys := map[string]struct{}{}
	for _, p := range in.TabPlayers {
		if key, ok := visibility.NormalizeIdentity(p.UUID, p.Name, p.DisplayName, p.PrefixedName); ok {
			keys[key] = struct{}{}
		}
	}
	return engine.IngestCmd{
		Scope:        pool.ScopePlayers,
		SourceID:     fr.SubmitPlayerID,
		Kind:         engine.IngestKindTabIdentity,
		Timestamp:    d.now(),
		IdentityKeys: keys,
	}
}
