// Package canon implements the wire canonicalization and digest used to let
// clients detect divergence between their local state and the hub's
// resolved view without transmitting the full state every time.
//
// Canonicalization rules (must match the client implementation byte for
// byte): numbers are rounded to 6 decimal places with trailing zeros
// stripped, -0 normalizes to 0, and non-finite numbers (NaN/Inf) serialize
// as null; strings are JSON-escaped; object keys are sorted lexicographically;
// arrays preserve their original order.
package canon

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"
)

// Value renders v in canonical form. v is expected to be the result of
// decoding JSON (so its possible dynamic types are limited to
// map[string]interface{}, []interface{}, string, float64/int, bool, nil) or
// one of those types directly, as produced by the pool's Node.Data.
func Value(v interface{}) string {
	var sb strings.Builder
	writeValue(&sb, v)
	return sb.String()
}

func writeValue(sb *strings.Builder, v interface{}) {
	switch val := v.(type) {
	case nil:
		sb.WriteString("null")
	case bool:
		if val {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	case string:
		writeJSONString(sb, val)
	case float64:
		writeNumber(sb, val)
	case float32:
		writeNumber(sb, float64(val))
	case int:
		writeNumber(sb, float64(val))
	case int64:
		writeNumber(sb, float64(val))
	case map[string]interface{}:
		writeObject(sb, val)
	case []interface{}:
		writeArray(sb, val)
	default:
		// Fall back to a JSON round-trip for any other concrete type
		// (e.g. structs); keeps canonicalization total over Go's dynamic
		// JSON value space.
		data, err := json.Marshal(val)
		if err != nil {
			sb.WriteString("null")
			return
		}
		var generic interface{}
		if err := json.Unmarshal(data, &generic); err != nil {
			sb.WriteString("null")
			return
		}
		writeValue(sb, generic)
	}
}

func writeNumber(sb *strings.Builder, f float64) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		sb.WriteString("null")
		return
	}
	rounded := math.Round(f*1e6) / 1e6
	if rounded == 0 {
		rounded = 0 // normalize -0 to 0
	}
	s := strconv.FormatFloat(rounded, 'f', 6, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "" || s == "-" {
		s = "0"
	}
	sb.WriteString(s)
}

func writeJSONString(sb *strings.Builder, s string) {
	data, _ := json.Marshal(s)
	sb.Write(data)
}

func writeObject(sb *strings.Builder, m map[string]interface{}) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	sb.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		writeJSONString(sb, k)
		sb.WriteByte(':')
		writeValue(sb, m[k])
	}
	sb.WriteByte('}')
}

func writeArray(sb *strings.Builder, arr []interface{}) {
	sb.WriteByte('[')
	for i, v := range arr {
		if i > 0 {
			sb.WriteByte(',')
		}
		writeValue(sb, v)
	}
	sb.WriteByte(']')
}

// ScopeDigest computes the short hash over one visible resolved-view scope:
// for each object id in sorted order, "<id_json>:<canonical(data)>" joined
// by newlines, hashed with XXH3-64 and rendered as the first 16 hex chars.
//
// XXH3 replaces the reference implementation's SHA1 per the specification's
// explicit allowance to substitute any non-cryptographic hash, provided
// canonicalization is identical on both ends — the digest is a consistency
// hint, not a security boundary.
func ScopeDigest(view map[string]map[string]interface{}) string {
	ids := make([]string, 0, len(view))
	for id := range view {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var sb strings.Builder
	for i, id := range ids {
		if i > 0 {
			sb.WriteByte('\n')
		}
		idJSON, _ := json.Marshal(id)
		sb.Write(idJSON)
		sb.WriteByte(':')
		sb.WriteString(Value(view[id]))
	}

	sum := xxh3.HashString(sb.String())
	return fmt.Sprintf("%016x", sum)[:16]
}
