package nostr

import (
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Filter selects events a subscription is interested in. A zero-value field
// means "no constraint on this dimension." See spec §3.
type Filter struct {
	IDs     []string
	Authors []string
	Kinds   []int
	Since   *int64
	Until   *int64
	Limit   int
	HasLimit bool
	Tags    map[string][]string // keyed by single-letter tag name, no '#' prefix
}

// Filters is a set of Filter values combined with OR semantics (spec §4.4).
type Filters []Filter

// MatchesAny reports whether event satisfies at least one filter in the set.
// An empty Filters set matches nothing, per spec.
func (fs Filters) MatchesAny(e *Event) bool {
	for _, f := range fs {
		if f.Matches(e) {
			return true
		}
	}
	return false
}

// Matches implements the filter predicate of spec §4.4: every populated
// dimension of the filter must match; absent dimensions impose no constraint.
func (f *Filter) Matches(e *Event) bool {
	if len(f.IDs) > 0 && !containsPrefix(f.IDs, e.ID) {
		return false
	}
	if len(f.Authors) > 0 && !containsPrefix(f.Authors, e.PubKey) {
		return false
	}
	if len(f.Kinds) > 0 && !containsInt(f.Kinds, e.Kind) {
		return false
	}
	if f.Since != nil && e.CreatedAt < *f.Since {
		return false
	}
	if f.Until != nil && e.CreatedAt > *f.Until {
		return false
	}
	for name, values := range f.Tags {
		if !eventHasAnyTagValue(e, name, values) {
			return false
		}
	}
	return true
}

func eventHasAnyTagValue(e *Event, name string, values []string) bool {
	for _, t := range e.Tags {
		if len(t) < 2 || t[0] != name {
			continue
		}
		for _, v := range values {
			if t[1] == v {
				return true
			}
		}
	}
	return false
}

func containsPrefix(prefixes []string, s string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

// UnmarshalJSON handles the dynamic "#x" tag-filter keys alongside the fixed
// fields, matching the wire representation of a REQ filter object.
func (f *Filter) UnmarshalJSON(data []byte) error {
	raw := map[string]jsoniter.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*f = Filter{}

	if v, ok := raw["ids"]; ok {
		if err := json.Unmarshal(v, &f.IDs); err != nil {
			return err
		}
	}
	if v, ok := raw["authors"]; ok {
		if err := json.Unmarshal(v, &f.Authors); err != nil {
			return err
		}
	}
	if v, ok := raw["kinds"]; ok {
		if err := json.Unmarshal(v, &f.Kinds); err != nil {
			return err
		}
	}
	if v, ok := raw["since"]; ok {
		var ts int64
		if err := json.Unmarshal(v, &ts); err != nil {
			return err
		}
		f.Since = &ts
	}
	if v, ok := raw["until"]; ok {
		var ts int64
		if err := json.Unmarshal(v, &ts); err != nil {
			return err
		}
		f.Until = &ts
	}
	if v, ok := raw["limit"]; ok {
		var n int
		if err := json.Unmarshal(v, &n); err != nil {
			return err
		}
		f.Limit = n
		f.HasLimit = true
	}

	for key, v := range raw {
		if len(key) != 2 || key[0] != '#' {
			continue
		}
		var values []string
		if err := json.Unmarshal(v, &values); err != nil {
			return err
		}
		if f.Tags == nil {
			f.Tags = make(map[string][]string)
		}
		f.Tags[string(key[1])] = values
	}

	return nil
}

// MarshalJSON renders the filter back to wire form, including "#x" keys.
func (f Filter) MarshalJSON() ([]byte, error) {
	raw := map[string]interface{}{}
	if len(f.IDs) > 0 {
		raw["ids"] = f.IDs
	}
	if len(f.Authors) > 0 {
		raw["authors"] = f.Authors
	}
	if len(f.Kinds) > 0 {
		raw["kinds"] = f.Kinds
	}
	if f.Since != nil {
		raw["since"] = *f.Since
	}
	if f.Until != nil {
		raw["until"] = *f.Until
	}
	if f.HasLimit {
		raw["limit"] = f.Limit
	}
	for name, values := range f.Tags {
		raw["#"+name] = values
	}
	return json.Marshal(raw)
}

// String renders a compact representation useful for log lines.
func (f Filter) String() string {
	var b strings.Builder
	b.WriteByte('{')
	if len(f.Kinds) > 0 {
		b.WriteString("kinds=")
		for i, k := range f.Kinds {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Itoa(k))
		}
		b.WriteByte(' ')
	}
	if f.HasLimit {
		b.WriteString("limit=")
		b.WriteString(strconv.Itoa(f.Limit))
	}
	b.WriteByte('}')
	return b.String()
}
