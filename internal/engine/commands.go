package engine

import "github.com/streamspace/statehub/internal/pool"

// Command is the sealed set of operations the engine's single executor
// accepts. Transport code never mutates engine state directly — it builds
// one of these and calls Engine.Submit.
type Command interface {
	isCommand()
}

// HandshakeCmd registers a delta-capable subscriber and triggers a
// force-full broadcast tick.
type HandshakeCmd struct {
	ConnID          string
	SubmitPlayerID  string
	ProtocolVersion int
	SupportsDelta   bool
}

// LegacyRegisterCmd registers a pre-handshake ("legacy") subscriber the
// first time a data message with a valid submitPlayerId arrives in INIT.
type LegacyRegisterCmd struct {
	ConnID         string
	SubmitPlayerID string
}

// IngestKind selects how IngestCmd.Upsert/Delete are applied to the pool.
type IngestKind int

const (
	// IngestKindMerge upserts into the source's bucket without touching any
	// id this message didn't mention (players_update, waypoints_update).
	IngestKindMerge IngestKind = iota
	// IngestKindFullReplace replaces the source's entire bucket set
	// (entities_update).
	IngestKindFullReplace
	// IngestKindPatch merges Upsert on top of each id's existing bucket and
	// applies Delete (players_patch / entities_patch).
	IngestKindPatch
	// IngestKindDelete removes the given ids from the source's bucket
	// (waypoints_delete).
	IngestKindDelete
	// IngestKindDeleteMatching removes any node (any source) matching Match
	// (waypoints_entity_death_cancel).
	IngestKindDeleteMatching
	// IngestKindTabIdentity updates a source's TabIdentityReport.
	IngestKindTabIdentity
)

// IngestCmd carries one decoded data message into the engine.
type IngestCmd struct {
	Scope    pool.Scope
	SourceID string
	Kind     IngestKind
	Upsert   map[string]pool.Node
	Delete   []string
	Match    func(objectID, sourceID string, node pool.Node) bool

	// Only populated for IngestKindTabIdentity.
	Timestamp    float64
	IdentityKeys map[string]struct{}
}

// DisconnectCmd prunes a source's state after its connection closes and
// triggers a tick so other subscribers learn of the departure.
type DisconnectCmd struct {
	ConnID   string
	SourceID string
}

// ResyncCmd requests an immediate snapshot_full for one subscriber
// (resync_req), outside the normal change-driven dispatch.
type ResyncCmd struct {
	ConnID string
}

// TickCmd forces a broadcast tick with no associated ingest — used by the
// heartbeat scheduler to guarantee cleanup/refresh progress even when no
// client has sent data recently.
type TickCmd struct{}

// AdminRegisterCmd adds a connection to the admin fan-out set.
type AdminRegisterCmd struct {
	ConnID string
}

// AdminDisconnectCmd removes a connection from the admin fan-out set.
type AdminDisconnectCmd struct {
	ConnID string
}

// AdminCommandCmd carries one decoded admin-channel command.
type AdminCommandCmd struct {
	ConnID   string
	Action   string
	PlayerID string
	Team     string
	Color    string
	Label    string
	Enabled  bool
}

func (HandshakeCmd) isCommand()       {}
func (LegacyRegisterCmd) isCommand()  {}
func (IngestCmd) isCommand()          {}
func (DisconnectCmd) isCommand()      {}
func (ResyncCmd) isCommand()          {}
func (TickCmd) isCommand()            {}
func (AdminRegisterCmd) isCommand()   {}
func (AdminDisconnectCmd) isCommand() {}
func (AdminCommandCmd) isCommand()    {}
