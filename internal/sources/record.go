package sources

import (
	"fmt"
	"strings"
)

// Str reads a string field out of a RawRecord, returning "" if absent or of
// another type.
func (r RawRecord) Str(key string) string {
	v, ok := r[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Path walks nested maps by dotted key (e.g. "dates.start.dateTime"),
// following the _embedded/nested shape common to the JSON APIs in the pack
// (Ticketmaster, Eventbrite).
func (r RawRecord) Path(path string) any {
	var cur any = map[string]any(r)
	for _, key := range splitPath(path) {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[key]
	}
	return cur
}

// StrPath is Path followed by a string assertion.
func (r RawRecord) StrPath(path string) string {
	s, _ := r.Path(path).(string)
	return s
}

// SliceOfMaps reads a JSON array-of-objects field, e.g. "_embedded.venues".
func (r RawRecord) SliceOfMaps(path string) []map[string]any {
	arr, ok := r.Path(path).([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(arr))
	for _, item := range arr {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// EpochSeconds renders an int/float numeric field as decimal-digit epoch
// seconds, matching the NormalizedDocument.StartDate contract. Returns
// "null" if the field is absent or not numeric.
func (r RawRecord) EpochSeconds(key string) string {
	v, ok := r[key]
	if !ok {
		return "null"
	}
	switch n := v.(type) {
	case float64:
		return fmt.Sprintf("%.0f", n)
	case int64:
		return fmt.Sprintf("%d", n)
	default:
		return "null"
	}
}

// JoinNames extracts a "name" field from each element of a slice-of-maps
// path and joins them with ", " — the shape Ticketmaster/Eventbrite use for
// classifications and attractions.
func JoinNames(maps []map[string]any, nameKey string) string {
	names := make([]string, 0, len(maps))
	for _, m := range maps {
		if s, ok := m[nameKey].(string); ok && s != "" {
			names = append(names, s)
		}
	}
	return strings.Join(names, ", ")
}
