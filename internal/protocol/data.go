package protocol

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var sanitizer = bluemonday.StrictPolicy()

// sanitizeText strips any markup from a free-text field before it enters
// the pool — display names and waypoint labels are rendered back to other
// players' clients, so they're treated the same as any other untrusted
// user-supplied string bound for re-display.
func sanitizeText(s string) string {
	return sanitizer.Sanitize(s)
}

// SanitizeText applies the same free-text sanitization used by the full
// normalizers. Exported so the patch decode path, which merges partial
// field maps rather than running a full normalizer, can sanitize the same
// set of display fields.
func SanitizeText(s string) string {
	return sanitizeText(s)
}

// NormalizePlayerData decodes raw player data, applies the field defaults
// from §6's PlayerData table, and sanitizes free-text fields. Returns
// (nil, false) if required numeric fields are absent/invalid.
func NormalizePlayerData(raw json.RawMessage) (map[string]interface{}, bool) {
	var in struct {
		X, Y, Z    *float64
		Vx, Vy, Vz *float64
		Dimension  *string
		PlayerName *string `json:"playerName"`
		PlayerUUID *string `json:"playerUUID"`
		Health     *float64
		MaxHealth  *float64 `json:"maxHealth"`
		Armor      *float64
		Width      *float64
		Height     *float64
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, false
	}
	if in.X == nil || in.Y == nil || in.Z == nil || in.Dimension == nil {
		return nil, false
	}

	out := map[string]interface{}{
		"x": *in.X, "y": *in.Y, "z": *in.Z,
		"vx": orZero(in.Vx), "vy": orZero(in.Vy), "vz": orZero(in.Vz),
		"dimension": *in.Dimension,
		"health":    orDefault(in.Health, 0),
		"maxHealth": orDefault(in.MaxHealth, 20),
		"armor":     orDefault(in.Armor, 0),
		"width":     orDefault(in.Width, 0.6),
		"height":    orDefault(in.Height, 1.8),
	}
	if out["health"].(float64) < 0 {
		out["health"] = 0.0
	}
	if out["maxHealth"].(float64) < 0 {
		out["maxHealth"] = 0.0
	}
	if out["armor"].(float64) < 0 {
		out["armor"] = 0.0
	}
	if out["width"].(float64) <= 0 {
		out["width"] = 0.6
	}
	if out["height"].(float64) <= 0 {
		out["height"] = 1.8
	}
	if in.PlayerName != nil {
		out["playerName"] = sanitizeText(*in.PlayerName)
	}
	if in.PlayerUUID != nil {
		out["playerUUID"] = *in.PlayerUUID
	}
	return out, true
}

// NormalizeEntityData decodes raw entity data per §6's EntityData table.
func NormalizeEntityData(raw json.RawMessage) (map[string]interface{}, bool) {
	var in struct {
		X, Y, Z    *float64
		Vx, Vy, Vz *float64
		Dimension  *string
		EntityType *string `json:"entityType"`
		EntityName *string `json:"entityName"`
		Width      *float64
		Height     *float64
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, false
	}
	if in.X == nil || in.Y == nil || in.Z == nil || in.Dimension == nil {
		return nil, false
	}

	out := map[string]interface{}{
		"x": *in.X, "y": *in.Y, "z": *in.Z,
		"vx": orZero(in.Vx), "vy": orZero(in.Vy), "vz": orZero(in.Vz),
		"dimension": *in.Dimension,
		"width":     orDefault(in.Width, 0.6),
		"height":    orDefault(in.Height, 1.8),
	}
	if out["width"].(float64) < 0 {
		out["width"] = 0.6
	}
	if out["height"].(float64) < 0 {
		out["height"] = 1.8
	}
	if in.EntityType != nil {
		out["entityType"] = sanitizeText(*in.EntityType)
	}
	if in.EntityName != nil {
		out["entityName"] = sanitizeText(*in.EntityName)
	}
	return out, true
}

// NormalizeWaypointData decodes raw waypoint data per §6's WaypointData
// table, clamping ttlSeconds and maxQuickMarks into their documented
// ranges rather than rejecting out-of-range values.
func NormalizeWaypointData(raw json.RawMessage, clampTTL func(int) int, clampCap func(int) int) (map[string]interface{}, bool) {
	var in struct {
		X, Y, Z          *float64
		Dimension        *string
		Name             *string
		Symbol           *string
		Color            *int
		OwnerID          *string `json:"ownerId"`
		OwnerName        *string `json:"ownerName"`
		CreatedAt        *int64  `json:"createdAt"`
		TTLSeconds       *int    `json:"ttlSeconds"`
		WaypointKind     *string `json:"waypointKind"`
		ReplaceOldQuick  *bool   `json:"replaceOldQuick"`
		MaxQuickMarks    *int    `json:"maxQuickMarks"`
		TargetType       *string `json:"targetType"`
		TargetEntityID   *string `json:"targetEntityId"`
		TargetEntityType *string `json:"targetEntityType"`
		TargetEntityName *string `json:"targetEntityName"`
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, false
	}
	if in.X == nil || in.Y == nil || in.Z == nil || in.Dimension == nil || in.Name == nil {
		return nil, false
	}

	out := map[string]interface{}{
		"x": *in.X, "y": *in.Y, "z": *in.Z,
		"dimension": *in.Dimension,
		"name":      sanitizeText(*in.Name),
		"symbol":    "W",
		"color":     5635925,
	}
	if in.Symbol != nil {
		out["symbol"] = sanitizeText(*in.Symbol)
	}
	if in.Color != nil {
		out["color"] = *in.Color
	}
	if in.OwnerID != nil {
		out["ownerId"] = *in.OwnerID
	}
	if in.OwnerName != nil {
		out["ownerName"] = sanitizeText(*in.OwnerName)
	}
	if in.CreatedAt != nil {
		out["createdAt"] = *in.CreatedAt
	}

	kind := "manual"
	if in.WaypointKind != nil {
		kind = *in.WaypointKind
	}
	out["waypointKind"] = kind

	maxQuick := 64
	if in.MaxQuickMarks != nil {
		maxQuick = *in.MaxQuickMarks
	}
	if in.ReplaceOldQuick != nil && *in.ReplaceOldQuick {
		maxQuick = 1
	}
	if clampCap != nil {
		maxQuick = clampCap(maxQuick)
	}
	out["maxQuickMarks"] = maxQuick

	if in.TTLSeconds != nil {
		ttl := *in.TTLSeconds
		if clampTTL != nil {
			ttl = clampTTL(ttl)
		}
		out["ttlSeconds"] = float64(ttl)
	}

	if in.TargetType != nil {
		out["targetType"] = *in.TargetType
	}
	if in.TargetEntityID != nil {
		out["targetEntityId"] = *in.TargetEntityID
	}
	if in.TargetEntityType != nil {
		out["targetEntityType"] = sanitizeText(*in.TargetEntityType)
	}
	if in.TargetEntityName != nil {
		out["targetEntityName"] = sanitizeText(*in.TargetEntityName)
	}

	return out, true
}

func orZero(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

func orDefault(f *float64, def float64) float64 {
	if f == nil {
		return def
	}
	return *f
}

// QuickMarkEvictionCandidates returns, oldest-first by timestamp, the
// source's existing quick-waypoint ids to delete before upserting a new
// quick mark: none while len(existing) is below cap, otherwise the oldest
// len(existing)-cap+1, so the count is back at cap once the new mark lands.
func QuickMarkEvictionCandidates(existing map[string]float64, cap int) []string {
	if cap <= 0 || len(existing) < cap {
		return nil
	}
	ids := make([]string, 0, len(existing))
	for id := range existing {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if existing[ids[i]] != existing[ids[j]] {
			return existing[ids[i]] < existing[ids[j]]
		}
		return ids[i] < ids[j]
	})
	overflow := len(ids) - cap + 1
	if overflow <= 0 {
		return nil
	}
	return ids[:overflow]
}

// defaultMarkColor is the per-team fallback used whenever an admin mark
// command omits a color or sends one that doesn't survive normalization.
var defaultMarkColor = map[string]string{
	"friendly": "#3b82f6",
	"enemy":    "#ef4444",
	"neutral":  "#94a3b8",
}

// NormalizeMarkTeam maps the admin channel's free-text team value onto the
// {friendly, enemy, neutral} enum, folding common aliases (friend/ally/blue,
// hostile/red, none/unknown/gray/grey) onto their canonical team and
// defaulting anything else to neutral rather than rejecting the command.
func NormalizeMarkTeam(team string) string {
	switch strings.ToLower(strings.TrimSpace(team)) {
	case "friendly", "friend", "ally", "blue":
		return "friendly"
	case "enemy", "hostile", "red":
		return "enemy"
	default:
		return "neutral"
	}
}

// NormalizeMarkColor validates a "#rrggbb" hex color, lowercasing it and
// tolerating a missing leading "#". Returns ("", false) for anything that
// doesn't resolve to exactly 6 hex digits, so the caller can fall back to
// the team's default color.
func NormalizeMarkColor(color string) (string, bool) {
	text := strings.TrimSpace(color)
	if text == "" {
		return "", false
	}
	text = strings.TrimPrefix(text, "#")
	if len(text) != 6 {
		return "", false
	}
	if _, err := strconv.ParseUint(text, 16, 32); err != nil {
		return "", false
	}
	return "#" + strings.ToLower(text), true
}

// NewPlayerMark builds a PlayerMark from raw admin-command fields, applying
// the same team/color normalization and default-color fill as the
// reference implementation's set_player_mark, and stamping UpdatedAt to now
// (epoch milliseconds).
func NewPlayerMark(team, color, label string, nowMs int64) PlayerMark {
	normalizedTeam := NormalizeMarkTeam(team)
	normalizedColor, ok := NormalizeMarkColor(color)
	if !ok {
		normalizedColor = defaultMarkColor[normalizedTeam]
	}

	label = sanitizeText(strings.TrimSpace(label))
	if len(label) > 64 {
		label = label[:64]
	}

	return PlayerMark{
		Team:      normalizedTeam,
		Color:     normalizedColor,
		Label:     label,
		UpdatedAt: nowMs,
	}
}
