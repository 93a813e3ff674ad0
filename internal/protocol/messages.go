// Package protocol defines the WebSocket message envelope exchanged between
// the hub and its subscribers (and, on the separate admin endpoint, between
// the hub and operator tooling).
//
// Message Flow:
//
// Subscriber -> Hub:
//   - handshake, players_update, players_patch, entities_update, entities_patch
//   - waypoints_update, waypoints_delete, waypoints_entity_death_cancel
//   - tab_players_update, resync_req
//
// Hub -> Subscriber:
//   - handshake_ack, snapshot_full, patch, positions, digest, refresh_req
//
// Admin -> Hub: ping, command_player_mark_set, command_player_mark_clear,
// command_player_mark_clear_all, command_same_server_filter_set
//
// Hub -> Admin: pong, admin_ack, admin_snapshot
//
// All messages are JSON text frames with a top-level type discriminator.
// Payload is decoded lazily from the raw envelope once Type is known.
package protocol

import "encoding/json"

// Envelope is the top-level shape of every inbound and outbound message.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"-"`
}

// rawEnvelope decodes only the type discriminator. Payload fields live at
// the top level of the frame rather than nested under a "payload" key,
// matching the wire shapes in §6, and are decoded from the same bytes in a
// second, type-specific pass.
type rawEnvelope struct {
	Type string `json:"type"`
}

// DecodeType extracts just the type discriminator from a raw inbound frame,
// leaving the full byte slice available for a second, type-specific decode.
func DecodeType(raw []byte) (string, error) {
	var re rawEnvelope
	if err := json.Unmarshal(raw, &re); err != nil {
		return "", err
	}
	return re.Type, nil
}

// Inbound message type discriminators (subscriber channel).
const (
	TypeHandshake                  = "handshake"
	TypePlayersUpdate              = "players_update"
	TypePlayersPatch               = "players_patch"
	TypeEntitiesUpdate             = "entities_update"
	TypeEntitiesPatch              = "entities_patch"
	TypeWaypointsUpdate            = "waypoints_update"
	TypeWaypointsDelete            = "waypoints_delete"
	TypeWaypointsEntityDeathCancel = "waypoints_entity_death_cancel"
	TypeTabPlayersUpdate           = "tab_players_update"
	TypeResyncReq                  = "resync_req"
)

// Outbound message type discriminators (subscriber channel).
const (
	TypeHandshakeAck = "handshake_ack"
	TypeSnapshotFull = "snapshot_full"
	TypePatch        = "patch"
	TypePositions    = "positions"
	TypeDigest       = "digest"
	TypeRefreshReq   = "refresh_req"
)

// Admin channel type discriminators.
const (
	TypePing                       = "ping"
	TypeHealth                     = "health"
	TypePong                       = "pong"
	TypeCommandPlayerMarkSet       = "command_player_mark_set"
	TypeCommandPlayerMarkClear     = "command_player_mark_clear"
	TypeCommandPlayerMarkClearAll  = "command_player_mark_clear_all"
	TypeCommandSameServerFilterSet = "command_same_server_filter_set"
	TypeAdminAck                   = "admin_ack"
	TypeAdminSnapshot              = "admin_snapshot"
)

// HandshakeIn is the payload of an inbound handshake message.
type HandshakeIn struct {
	SubmitPlayerID  string `json:"submitPlayerId"`
	ProtocolVersion int    `json:"protocolVersion"`
	SupportsDelta   *bool  `json:"supportsDelta"`
}

// HandshakeAck acknowledges a handshake and announces server capabilities.
type HandshakeAck struct {
	Type              string `json:"type"`
	Ready             bool   `json:"ready"`
	ProtocolVersion   int    `json:"protocolVersion"`
	DeltaEnabled      bool   `json:"deltaEnabled"`
	DigestIntervalSec int    `json:"digestIntervalSec"`
	Rev               int64  `json:"rev"`
}

// ScopePatchIn is the shape of players_patch / entities_patch.
type ScopePatchIn struct {
	SubmitPlayerID string                     `json:"submitPlayerId"`
	Upsert         map[string]json.RawMessage `json:"upsert"`
	Delete         []string                   `json:"delete"`
}

// WaypointsDeleteIn is the waypoints_delete payload.
type WaypointsDeleteIn struct {
	SubmitPlayerID string   `json:"submitPlayerId"`
	WaypointIDs    []string `json:"waypointIds"`
}

// WaypointsEntityDeathCancelIn is the waypoints_entity_death_cancel payload.
type WaypointsEntityDeathCancelIn struct {
	TargetEntityIDs []string `json:"targetEntityIds"`
}

// TabPlayerEntry is one entry of a tab_players_update's tabPlayers array.
type TabPlayerEntry struct {
	UUID         string `json:"uuid"`
	Name         string `json:"name"`
	DisplayName  string `json:"displayName"`
	PrefixedName string `json:"prefixedName"`
}

// TabPlayersUpdateIn is the tab_players_update payload.
type TabPlayersUpdateIn struct {
	SubmitPlayerID string           `json:"submitPlayerId"`
	TabPlayers     []TabPlayerEntry `json:"tabPlayers"`
}

// ResyncReqIn is the resync_req payload.
type ResyncReqIn struct {
	SubmitPlayerID string `json:"submitPlayerId"`
}

// ScopePatchOut is the {upsert, delete} shape nested under patch's
// players/entities/waypoints keys.
type ScopePatchOut struct {
	Upsert map[string]map[string]interface{} `json:"upsert"`
	Delete []string                          `json:"delete"`
}

// PatchOut is the outbound patch message.
type PatchOut struct {
	Type      string        `json:"type"`
	Rev       int64         `json:"rev"`
	Players   ScopePatchOut `json:"players"`
	Entities  ScopePatchOut `json:"entities"`
	Waypoints ScopePatchOut `json:"waypoints"`
}

// SnapshotFullOut is the outbound full-snapshot message.
type SnapshotFullOut struct {
	Type        string                            `json:"type"`
	Rev         int64                             `json:"rev"`
	Players     map[string]map[string]interface{} `json:"players"`
	Entities    map[string]map[string]interface{} `json:"entities"`
	Waypoints   map[string]map[string]interface{} `json:"waypoints"`
	PlayerMarks map[string]PlayerMark             `json:"playerMarks,omitempty"`
}

// LegacyNode is the node form used by the positions message:
// id -> {timestamp, submitPlayerId, data}.
type LegacyNode struct {
	Timestamp      float64                `json:"timestamp"`
	SubmitPlayerID string                 `json:"submitPlayerId"`
	Data           map[string]interface{} `json:"data"`
}

// PositionsOut is the legacy full-form outbound message.
type PositionsOut struct {
	Type        string                `json:"type"`
	Players     map[string]LegacyNode `json:"players"`
	Entities    map[string]LegacyNode `json:"entities"`
	Waypoints   map[string]LegacyNode `json:"waypoints"`
	PlayerMarks map[string]PlayerMark `json:"playerMarks"`
}

// DigestOut is the outbound digest message.
type DigestOut struct {
	Type   string      `json:"type"`
	Rev    int64       `json:"rev"`
	Hashes ScopeHashes `json:"hashes"`
}

// ScopeHashes is the per-scope hash set carried by digest.
type ScopeHashes struct {
	Players   string `json:"players"`
	Entities  string `json:"entities"`
	Waypoints string `json:"waypoints"`
}

// RefreshReqOut is the outbound pre-expiry refresh request.
type RefreshReqOut struct {
	Type       string   `json:"type"`
	Reason     string   `json:"reason"`
	ServerTime float64  `json:"serverTime"`
	Rev        int64    `json:"rev"`
	Players    []string `json:"players"`
	Entities   []string `json:"entities"`
}

// PlayerMark is an admin-assigned team marker for a player. Team is always
// one of {friendly, enemy, neutral} and Color is always a populated
// "#rrggbb" string — see protocol.NewPlayerMark.
type PlayerMark struct {
	Team      string `json:"team"`
	Color     string `json:"color"`
	Label     string `json:"label,omitempty"`
	UpdatedAt int64  `json:"updatedAt"`
}

// Admin channel payloads.

// CommandPlayerMarkSetIn is the command_player_mark_set payload.
type CommandPlayerMarkSetIn struct {
	PlayerID string `json:"playerId"`
	Team     string `json:"team"`
	Color    string `json:"color"`
	Label    string `json:"label"`
}

// CommandPlayerMarkClearIn is the command_player_mark_clear payload.
type CommandPlayerMarkClearIn struct {
	PlayerID string `json:"playerId"`
}

// CommandSameServerFilterSetIn is the command_same_server_filter_set payload.
type CommandSameServerFilterSetIn struct {
	Enabled bool `json:"enabled"`
}

// PongOut answers an admin ping/health check with the hub's current clock
// and revision, so operator tooling can sanity-check liveness and staleness
// without waiting for the next periodic admin_snapshot.
type PongOut struct {
	Type       string  `json:"type"`
	ServerTime float64 `json:"serverTime"`
	Revision   int64   `json:"revision"`
}

// AdminAckOut acknowledges an admin command.
type AdminAckOut struct {
	Type   string `json:"type"`
	OK     bool   `json:"ok"`
	Action string `json:"action,omitempty"`
	Error  string `json:"error,omitempty"`
}

// TabStateOut is the tabState section of the admin snapshot.
type TabStateOut struct {
	Enabled bool                `json:"enabled"`
	Reports map[string][]string `json:"reports"`
	Groups  map[string]string   `json:"groups"`
}

// AdminSnapshotOut is the periodic admin channel snapshot. Unlike the
// subscriber channel, the admin channel is always full-snapshot, and per
// §6 it also carries the raw per-source pool contents so operators can see
// conflicting source opinions the arbitrator suppressed.
type AdminSnapshotOut struct {
	Type         string                            `json:"type"`
	Revision     int64                             `json:"revision"`
	Players      map[string]map[string]interface{} `json:"players"`
	Entities     map[string]map[string]interface{} `json:"entities"`
	Waypoints    map[string]map[string]interface{} `json:"waypoints"`
	RawPlayers   map[string]map[string]LegacyNode  `json:"rawPlayers"`
	RawEntities  map[string]map[string]LegacyNode  `json:"rawEntities"`
	RawWaypoints map[string]map[string]LegacyNode  `json:"rawWaypoints"`
	PlayerMarks  map[string]PlayerMark             `json:"playerMarks"`
	TabState     TabStateOut                       `json:"tabState"`
	Connections  []string                          `json:"connections"`
}
