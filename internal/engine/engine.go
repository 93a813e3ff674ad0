// Package engine implements the single-executor state arbitration and
// broadcast hub: one goroutine owns every report pool, resolved view,
// capability registry, identity report, and the revision/cooldown state,
// processing commands off one channel so no lock is ever needed between a
// cleanup and the dispatch that follows it.
//
// Transport packages (WebSocket read pumps, the admin endpoint) never touch
// this state directly — they decode a frame and post a Command, the same
// way the rest of this codebase keeps connection I/O off the hub's single
// goroutine and routes everything through channels instead.
package engine

import (
	"sort"

	"github.com/streamspace/statehub/internal/arbitrate"
	"github.com/streamspace/statehub/internal/canon"
	"github.com/streamspace/statehub/internal/logger"
	"github.com/streamspace/statehub/internal/pool"
	"github.com/streamspace/statehub/internal/protocol"
	"github.com/streamspace/statehub/internal/visibility"
)

// Sender delivers one already-encoded outbound message to one connection.
// Transport packages implement this over their actual socket; tests
// implement it over an in-memory slice.
type Sender interface {
	Send(connID string, v interface{}) error
}

// Clock abstracts wall-clock time so ticks are reproducible in tests.
type Clock func() float64

// Config bundles every tunable the engine's broadcast tick and ingest path
// consult.
type Config struct {
	PlayerTimeoutSec             float64
	EntityTimeoutSec             float64
	WaypointTimeoutSec           float64
	StickinessThresholdSec       float64
	DigestIntervalSec            float64
	RefreshReqCooldownSec        float64
	RefreshReqLeadSec            float64
	TabReportTimeoutSec          float64
	EnableSameServerFilter       bool
	OnlineOwnerTimeoutMultiplier float64
	ClampWaypointTTL             func(int) int
	ClampQuickMarkCap            func(int) int
}

// subscriber is one registered client of the subscriber channel.
type subscriber struct {
	connID          string
	submitPlayerID  string
	protocolVersion int
	deltaEnabled    bool
	legacy          bool
	forceFull       bool
	lastDigestSent  float64
	removed         bool
}

// Engine is the single-executor hub. All fields below are only ever
// touched from inside run(), which is the one goroutine processing
// commands off cmdCh.
type Engine struct {
	cfg    Config
	now    Clock
	sender Sender

	players   *pool.Pool
	entities  *pool.Pool
	waypoints *pool.Pool

	selectedPlayers   arbitrate.SelectedSources
	selectedEntities  arbitrate.SelectedSources
	selectedWaypoints arbitrate.SelectedSources

	viewPlayers   arbitrate.ResolvedView
	viewEntities  arbitrate.ResolvedView
	viewWaypoints arbitrate.ResolvedView

	revision int64

	subs             map[string]*subscriber
	bySubmitID       map[string]string // submitPlayerID -> connID, for connected-subscriber lookups
	admins           map[string]bool
	marks            map[string]protocol.PlayerMark
	identity         *visibility.Reports
	cooldown         *arbitrate.CooldownTable
	sameServerFilter bool

	missingBaseline map[pool.Scope]map[string]map[string]bool // scope -> sourceID -> objectID

	cmdCh chan Command
}

// New constructs an Engine. sender delivers outbound frames; now supplies
// the current server time for every tick and ingest operation.
func New(cfg Config, sender Sender, now Clock) *Engine {
	return &Engine{
		cfg:    cfg,
		now:    now,
		sender: sender,

		players:   pool.New(pool.ScopePlayers),
		entities:  pool.New(pool.ScopeEntities),
		waypoints: pool.New(pool.ScopeWaypoints),

		selectedPlayers:   arbitrate.SelectedSources{},
		selectedEntities:  arbitrate.SelectedSources{},
		selectedWaypoints: arbitrate.SelectedSources{},

		viewPlayers:   arbitrate.ResolvedView{},
		viewEntities:  arbitrate.ResolvedView{},
		viewWaypoints: arbitrate.ResolvedView{},

		subs:             map[string]*subscriber{},
		bySubmitID:       map[string]string{},
		admins:           map[string]bool{},
		marks:            map[string]protocol.PlayerMark{},
		identity:         visibility.NewReports(),
		cooldown:         arbitrate.NewCooldownTable(),
		sameServerFilter: cfg.EnableSameServerFilter,

		missingBaseline: map[pool.Scope]map[string]map[string]bool{
			pool.ScopePlayers:   {},
			pool.ScopeEntities:  {},
			pool.ScopeWaypoints: {},
		},

		cmdCh: make(chan Command, 256),
	}
}

// Submit enqueues a command for processing by Run. Safe to call from any
// goroutine; it is the only way to reach the engine's state.
func (e *Engine) Submit(cmd Command) {
	e.cmdCh <- cmd
}

// SetSender attaches the transport that delivers outbound frames. Callers
// construct the Engine first, build the transport around it (the transport
// needs the Engine to forward decoded commands to), then wire the finished
// transport back in as the Sender before calling Run — breaking the
// construction cycle between Engine and its transport.
func (e *Engine) SetSender(s Sender) {
	e.sender = s
}

// Run drains the command channel until it's closed or stop fires. This is
// the engine's single executor goroutine — everything below this call
// frame touches Engine state without synchronization because nothing else
// ever does.
func (e *Engine) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case cmd, ok := <-e.cmdCh:
			if !ok {
				return
			}
			e.handle(cmd)
		}
	}
}

func (e *Engine) handle(cmd Command) {
	switch c := cmd.(type) {
	case HandshakeCmd:
		e.onHandshake(c)
	case LegacyRegisterCmd:
		e.onLegacyRegister(c)
	case IngestCmd:
		e.onIngest(c)
	case DisconnectCmd:
		e.onDisconnect(c)
	case ResyncCmd:
		e.onResync(c)
	case TickCmd:
		e.onTick(c)
	case AdminRegisterCmd:
		e.admins[c.ConnID] = true
	case AdminDisconnectCmd:
		delete(e.admins, c.ConnID)
	case AdminCommandCmd:
		e.onAdminCommand(c)
	}
}

func (e *Engine) onHandshake(c HandshakeCmd) {
	e.subs[c.ConnID] = &subscriber{
		connID:          c.ConnID,
		submitPlayerID:  c.SubmitPlayerID,
		protocolVersion: c.ProtocolVersion,
		deltaEnabled:    c.SupportsDelta,
		forceFull:       true,
	}
	e.bySubmitID[c.SubmitPlayerID] = c.ConnID
	_ = e.sender.Send(c.ConnID, protocol.HandshakeAck{
		Type:              protocol.TypeHandshakeAck,
		Ready:             true,
		ProtocolVersion:   c.ProtocolVersion,
		DeltaEnabled:      c.SupportsDelta,
		DigestIntervalSec: int(e.cfg.DigestIntervalSec),
		Rev:               e.revision,
	})
	e.runTick()
}

func (e *Engine) onLegacyRegister(c LegacyRegisterCmd) {
	if _, exists := e.subs[c.ConnID]; exists {
		return
	}
	e.subs[c.ConnID] = &subscriber{
		connID:          c.ConnID,
		submitPlayerID:  c.SubmitPlayerID,
		protocolVersion: 1,
		deltaEnabled:    false,
		legacy:          true,
	}
	e.bySubmitID[c.SubmitPlayerID] = c.ConnID
}

func (e *Engine) pickPool(scope pool.Scope) *pool.Pool {
	switch scope {
	case pool.ScopePlayers:
		return e.players
	case pool.ScopeEntities:
		return e.entities
	case pool.ScopeWaypoints:
		return e.waypoints
	}
	return nil
}

func (e *Engine) onIngest(c IngestCmd) {
	p := e.pickPool(c.Scope)
	if p == nil {
		return
	}

	switch c.Kind {
	case IngestKindFullReplace:
		// entities_update semantics: this source's complete set this round.
		p.FullReplaceForSource(c.SourceID, c.Upsert)
	case IngestKindMerge:
		// players_update / waypoints_update semantics: merge, no implicit delete.
		for id, node := range c.Upsert {
			if c.Scope == pool.ScopeWaypoints {
				e.evictOldQuickMarks(p, id, c.SourceID, node)
			}
			p.Upsert(id, c.SourceID, node)
		}
	case IngestKindPatch:
		for id, partial := range c.Upsert {
			existing, ok := p.SnapshotOfSource(id, c.SourceID)
			if !ok {
				if e.missingBaseline[c.Scope][c.SourceID] == nil {
					e.missingBaseline[c.Scope][c.SourceID] = map[string]bool{}
				}
				e.missingBaseline[c.Scope][c.SourceID][id] = true
				existing = pool.Node{Data: map[string]interface{}{}}
			}
			merged := mergeData(existing.Data, partial.Data)
			p.Upsert(id, c.SourceID, pool.Node{
				Timestamp:      partial.Timestamp,
				SubmitPlayerID: partial.SubmitPlayerID,
				Data:           merged,
			})
		}
		for _, id := range c.Delete {
			p.Delete(id, c.SourceID)
		}
	case IngestKindDelete:
		for _, id := range c.Delete {
			p.Delete(id, c.SourceID)
		}
	case IngestKindDeleteMatching:
		p.DeleteMatching(c.Match)
	case IngestKindTabIdentity:
		e.identity.Set(c.SourceID, visibility.TabIdentityReport{Timestamp: c.Timestamp, Keys: c.IdentityKeys})
	}

	e.runTick()
}

// evictOldQuickMarks enforces one source's quick-waypoint cap before a new
// quick mark lands: once that source's other quick waypoints reach
// maxQuickMarks, the oldest are deleted to make room, mirroring the
// teacher domain's "replace oldest quick mark" rule.
func (e *Engine) evictOldQuickMarks(p *pool.Pool, newID, sourceID string, node pool.Node) {
	if node.Data["waypointKind"] != "quick" {
		return
	}
	quickCap, ok := node.Data["maxQuickMarks"].(int)
	if !ok || quickCap <= 0 {
		return
	}
	existing := map[string]float64{}
	for _, objectID := range p.Objects() {
		if objectID == newID {
			continue
		}
		n, ok := p.SnapshotOfSource(objectID, sourceID)
		if ok && n.Data["waypointKind"] == "quick" {
			existing[objectID] = n.Timestamp
		}
	}
	for _, victim := range protocol.QuickMarkEvictionCandidates(existing, quickCap) {
		p.Delete(victim, sourceID)
	}
}

func mergeData(base, partial map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(partial))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range partial {
		out[k] = v
	}
	return out
}

func (e *Engine) onDisconnect(c DisconnectCmd) {
	delete(e.subs, c.ConnID)
	delete(e.admins, c.ConnID)
	if c.SourceID != "" {
		if e.bySubmitID[c.SourceID] == c.ConnID {
			delete(e.bySubmitID, c.SourceID)
		}
		e.players.PruneSource(c.SourceID)
		e.entities.PruneSource(c.SourceID)
		e.waypoints.PruneSource(c.SourceID)
		e.identity.Prune(c.SourceID)
		e.cooldown.Prune(c.SourceID)
	}
	e.runTick()
}

func (e *Engine) onResync(c ResyncCmd) {
	sub, ok := e.subs[c.ConnID]
	if !ok {
		return
	}
	e.sendFullSnapshot(sub)
}

func (e *Engine) onTick(c TickCmd) {
	e.runTick()
}

// runTick executes one broadcast tick in the fixed order mandated by the
// broadcast engine: refresh dispatch, cleanup, resolve, revision bump,
// per-subscriber dispatch, prune, admin fan-out.
func (e *Engine) runTick() {
	now := e.now()

	e.dispatchRefreshRequests(now)

	isOnlineOwner := func(scope pool.Scope, objectID, sourceID string) bool {
		connID, connected := e.bySubmitID[sourceID]
		if !connected {
			return false
		}
		sub, ok := e.subs[connID]
		return ok && !sub.legacy && objectID == sourceID
	}
	waypointTTL := func(n pool.Node) float64 {
		if v, ok := n.Data["ttlSeconds"].(float64); ok {
			return v
		}
		return 0
	}

	arbitrate.Cleanup(e.players, now, arbitrate.TimeoutConfig{
		ScopeTimeoutSec:              e.cfg.PlayerTimeoutSec,
		OnlineOwnerTimeoutMultiplier: e.cfg.OnlineOwnerTimeoutMultiplier,
	}, isOnlineOwner, nil)
	arbitrate.Cleanup(e.entities, now, arbitrate.TimeoutConfig{ScopeTimeoutSec: e.cfg.EntityTimeoutSec}, nil, nil)
	arbitrate.Cleanup(e.waypoints, now, arbitrate.TimeoutConfig{ScopeTimeoutSec: e.cfg.WaypointTimeoutSec}, nil, waypointTTL)

	oldPlayers, oldEntities, oldWaypoints := e.viewPlayers, e.viewEntities, e.viewWaypoints

	e.viewPlayers, e.selectedPlayers = arbitrate.Resolve(e.players, e.selectedPlayers, arbitrate.Options{Scope: pool.ScopePlayers, StickinessThresholdSec: e.cfg.StickinessThresholdSec})
	e.viewEntities, e.selectedEntities = arbitrate.Resolve(e.entities, e.selectedEntities, arbitrate.Options{Scope: pool.ScopeEntities, StickinessThresholdSec: e.cfg.StickinessThresholdSec})
	e.viewWaypoints, e.selectedWaypoints = arbitrate.Resolve(e.waypoints, e.selectedWaypoints, arbitrate.Options{Scope: pool.ScopeWaypoints, StickinessThresholdSec: e.cfg.StickinessThresholdSec})

	patchPlayers := arbitrate.Diff(oldPlayers, e.viewPlayers)
	patchEntities := arbitrate.Diff(oldEntities, e.viewEntities)
	patchWaypoints := arbitrate.Diff(oldWaypoints, e.viewWaypoints)
	changed := !patchPlayers.IsEmpty() || !patchEntities.IsEmpty() || !patchWaypoints.IsEmpty()

	if changed {
		e.revision++
	}

	var broken []string
	connIDs := make([]string, 0, len(e.subs))
	for id := range e.subs {
		connIDs = append(connIDs, id)
	}
	sort.Strings(connIDs)

	groups := e.buildGroups(now)

	for _, connID := range connIDs {
		sub := e.subs[connID]
		if err := e.dispatchOne(sub, now, changed, patchPlayers, patchEntities, patchWaypoints, groups); err != nil {
			broken = append(broken, connID)
		}
	}

	for _, connID := range broken {
		sub := e.subs[connID]
		delete(e.subs, connID)
		if sub != nil && sub.submitPlayerID != "" {
			if e.bySubmitID[sub.submitPlayerID] == connID {
				delete(e.bySubmitID, sub.submitPlayerID)
			}
			e.players.PruneSource(sub.submitPlayerID)
			e.entities.PruneSource(sub.submitPlayerID)
			e.waypoints.PruneSource(sub.submitPlayerID)
		}
	}

	e.fanOutAdmin(groups)
}

func (e *Engine) buildGroups(now float64) visibility.Groups {
	if !e.sameServerFilter {
		return nil
	}
	active := e.identity.Active(now, e.cfg.TabReportTimeoutSec)
	return visibility.BuildGroups(active)
}

func (e *Engine) allowedFor(sub *subscriber, groups visibility.Groups) (map[string]struct{}, bool) {
	if !e.sameServerFilter || groups == nil {
		return nil, true
	}
	_, hasIdentity := groups[sub.submitPlayerID]
	return visibility.AllowedSources(groups, sub.submitPlayerID, hasIdentity)
}

func (e *Engine) dispatchOne(sub *subscriber, now float64, changed bool, patchPlayers, patchEntities, patchWaypoints arbitrate.ScopePatch, groups visibility.Groups) error {
	allowed, open := e.allowedFor(sub, groups)

	if sub.legacy || !sub.deltaEnabled {
		if !changed {
			return nil
		}
		return e.sender.Send(sub.connID, protocol.PositionsOut{
			Type:        protocol.TypePositions,
			Players:     toLegacyNodes(filterView(e.viewPlayers, allowed, open)),
			Entities:    toLegacyNodes(filterView(e.viewEntities, allowed, open)),
			Waypoints:   toLegacyNodes(filterView(e.viewWaypoints, allowed, open)),
			PlayerMarks: e.marks,
		})
	}

	scoped := !open
	forceFull := sub.forceFull
	sub.forceFull = false

	if scoped {
		if changed || forceFull {
			if err := e.sendFullSnapshot(sub); err != nil {
				return err
			}
		}
		return e.maybeSendDigest(sub, now, allowed, open)
	}

	if forceFull {
		if err := e.sendFullSnapshot(sub); err != nil {
			return err
		}
	} else if changed {
		if err := e.sender.Send(sub.connID, protocol.PatchOut{
			Type:      protocol.TypePatch,
			Rev:       e.revision,
			Players:   toScopePatchOut(patchPlayers),
			Entities:  toScopePatchOut(patchEntities),
			Waypoints: toScopePatchOut(patchWaypoints),
		}); err != nil {
			return err
		}
	}
	return e.maybeSendDigest(sub, now, allowed, open)
}

func (e *Engine) sendFullSnapshot(sub *subscriber) error {
	allowed, open := e.allowedFor(sub, e.buildGroups(e.now()))
	return e.sender.Send(sub.connID, protocol.SnapshotFullOut{
		Type:        protocol.TypeSnapshotFull,
		Rev:         e.revision,
		Players:     toCompact(filterView(e.viewPlayers, allowed, open)),
		Entities:    toCompact(filterView(e.viewEntities, allowed, open)),
		Waypoints:   toCompact(filterView(e.viewWaypoints, allowed, open)),
		PlayerMarks: e.marks,
	})
}

func (e *Engine) maybeSendDigest(sub *subscriber, now float64, allowed map[string]struct{}, open bool) error {
	if now-sub.lastDigestSent < e.cfg.DigestIntervalSec {
		return nil
	}
	sub.lastDigestSent = now
	return e.sender.Send(sub.connID, protocol.DigestOut{
		Type: protocol.TypeDigest,
		Rev:  e.revision,
		Hashes: protocol.ScopeHashes{
			Players:   canon.ScopeDigest(toCompact(filterView(e.viewPlayers, allowed, open))),
			Entities:  canon.ScopeDigest(toCompact(filterView(e.viewEntities, allowed, open))),
			Waypoints: canon.ScopeDigest(toCompact(filterView(e.viewWaypoints, allowed, open))),
		},
	})
}

func filterView(view arbitrate.ResolvedView, allowed map[string]struct{}, open bool) arbitrate.ResolvedView {
	if open {
		return view
	}
	out := make(arbitrate.ResolvedView, len(view))
	for id, node := range view {
		if visibility.Allows(allowed, open, node.SubmitPlayerID) {
			out[id] = node
		}
	}
	return out
}

func toCompact(view arbitrate.ResolvedView) map[string]map[string]interface{} {
	out := make(map[string]map[string]interface{}, len(view))
	for id, node := range view {
		out[id] = node.Data
	}
	return out
}

func toLegacyNodes(view arbitrate.ResolvedView) map[string]protocol.LegacyNode {
	out := make(map[string]protocol.LegacyNode, len(view))
	for id, node := range view {
		out[id] = protocol.LegacyNode{Timestamp: node.Timestamp, SubmitPlayerID: node.SubmitPlayerID, Data: node.Data}
	}
	return out
}

func toScopePatchOut(p arbitrate.ScopePatch) protocol.ScopePatchOut {
	return protocol.ScopePatchOut{Upsert: p.Upsert, Delete: p.Delete}
}

func (e *Engine) dispatchRefreshRequests(now float64) {
	e.sendRefreshForScope(now, e.players, pool.ScopePlayers, e.cfg.PlayerTimeoutSec)
	e.sendRefreshForScope(now, e.entities, pool.ScopeEntities, e.cfg.EntityTimeoutSec)
	e.dispatchMissingBaselineRefresh(now)
}

// dispatchMissingBaselineRefresh sends one refresh_req per source that had a
// patch arrive with no prior baseline this tick, then clears the flag —
// the per-tick half of the "missing baseline" error-handling rule in §7.
func (e *Engine) dispatchMissingBaselineRefresh(now float64) {
	for scope, bySource := range e.missingBaseline {
		for sourceID, ids := range bySource {
			connID, connected := e.bySubmitID[sourceID]
			if !connected || len(ids) == 0 {
				continue
			}
			objIDs := make([]string, 0, len(ids))
			for id := range ids {
				objIDs = append(objIDs, id)
			}
			sort.Strings(objIDs)
			msg := protocol.RefreshReqOut{Type: protocol.TypeRefreshReq, Reason: "missing_baseline", ServerTime: now, Rev: e.revision}
			if scope == pool.ScopePlayers {
				msg.Players = objIDs
			} else {
				msg.Entities = objIDs
			}
			_ = e.sender.Send(connID, msg)
		}
		e.missingBaseline[scope] = map[string]map[string]bool{}
	}
}

func (e *Engine) sendRefreshForScope(now float64, p *pool.Pool, scope pool.Scope, timeoutSec float64) {
	candidates := arbitrate.CollectRefreshCandidates(p, now, arbitrate.TimeoutConfig{
		ScopeTimeoutSec: timeoutSec,
		LeadSec:         e.cfg.RefreshReqLeadSec,
	}, nil, nil)

	bySource := map[string][]string{}
	for _, c := range candidates {
		bySource[c.SourceID] = append(bySource[c.SourceID], c.ObjectID)
	}

	for sourceID, ids := range bySource {
		connID, connected := e.bySubmitID[sourceID]
		if !connected {
			continue
		}
		if !e.cooldown.Allow(sourceID, now, e.cfg.RefreshReqCooldownSec) {
			continue
		}
		sort.Strings(ids)
		msg := protocol.RefreshReqOut{
			Type:       protocol.TypeRefreshReq,
			Reason:     "pre_expiry",
			ServerTime: now,
			Rev:        e.revision,
		}
		if scope == pool.ScopePlayers {
			msg.Players = ids
		} else {
			msg.Entities = ids
		}
		_ = e.sender.Send(connID, msg)
	}
}

func (e *Engine) onAdminCommand(c AdminCommandCmd) {
	logger.Admin().Debug().Str("action", c.Action).Msg("admin command received")

	if c.Action == protocol.TypePing || c.Action == protocol.TypeHealth {
		now := e.now()
		_ = e.sender.Send(c.ConnID, protocol.PongOut{Type: protocol.TypePong, ServerTime: now, Revision: e.revision})
		return
	}

	switch c.Action {
	case protocol.TypeCommandPlayerMarkSet:
		nowMs := int64(e.now() * 1000)
		e.marks[c.PlayerID] = protocol.NewPlayerMark(c.Team, c.Color, c.Label, nowMs)
	case protocol.TypeCommandPlayerMarkClear:
		delete(e.marks, c.PlayerID)
	case protocol.TypeCommandPlayerMarkClearAll:
		e.marks = map[string]protocol.PlayerMark{}
	case protocol.TypeCommandSameServerFilterSet:
		if e.sameServerFilter != c.Enabled {
			e.sameServerFilter = c.Enabled
			for _, sub := range e.subs {
				sub.forceFull = true
			}
		}
	}
	_ = e.sender.Send(c.ConnID, protocol.AdminAckOut{Type: protocol.TypeAdminAck, OK: true, Action: c.Action})
	e.runTick()
}

func (e *Engine) fanOutAdmin(groups visibility.Groups) {
	if len(e.admins) == 0 {
		return
	}
	snapshot := protocol.AdminSnapshotOut{
		Type:         protocol.TypeAdminSnapshot,
		Revision:     e.revision,
		Players:      toCompact(e.viewPlayers),
		Entities:     toCompact(e.viewEntities),
		Waypoints:    toCompact(e.viewWaypoints),
		RawPlayers:   toRawNodes(e.players),
		RawEntities:  toRawNodes(e.entities),
		RawWaypoints: toRawNodes(e.waypoints),
		PlayerMarks:  e.marks,
		TabState: protocol.TabStateOut{
			Enabled: e.sameServerFilter,
			Reports: identityReportKeys(e.identity, e.now(), e.cfg.TabReportTimeoutSec),
			Groups:  groups,
		},
		Connections: connIDList(e.subs),
	}
	for connID := range e.admins {
		_ = e.sender.Send(connID, snapshot)
	}
}

func toRawNodes(p *pool.Pool) map[string]map[string]protocol.LegacyNode {
	out := map[string]map[string]protocol.LegacyNode{}
	p.Range(func(objectID, sourceID string, node pool.Node) bool {
		if out[objectID] == nil {
			out[objectID] = map[string]protocol.LegacyNode{}
		}
		out[objectID][sourceID] = protocol.LegacyNode{Timestamp: node.Timestamp, SubmitPlayerID: node.SubmitPlayerID, Data: node.Data}
		return true
	})
	return out
}

func identityReportKeys(r *visibility.Reports, now, timeoutSec float64) map[string][]string {
	out := map[string][]string{}
	for source, report := range r.Active(now, timeoutSec) {
		keys := make([]string, 0, len(report.Keys))
		for k := range report.Keys {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out[source] = keys
	}
	return out
}

func connIDList(subs map[string]*subscriber) []string {
	out := make([]string, 0, len(subs))
	for id := range subs {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
