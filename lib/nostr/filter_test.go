package nostr

import "testing"

func TestFilterMatchesDimensions(t *testing.T) {
	e := &Event{
		ID:        "abcdef0123456789",
		PubKey:    "fedcba9876543210",
		CreatedAt: 1000,
		Kind:      1,
		Tags:      Tags{{"e", "target"}},
	}

	since := int64(500)
	until := int64(1500)

	cases := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"empty filter matches", Filter{}, true},
		{"id prefix match", Filter{IDs: []string{"abcdef"}}, true},
		{"id prefix mismatch", Filter{IDs: []string{"000000"}}, false},
		{"author prefix match", Filter{Authors: []string{"fedcba"}}, true},
		{"kind match", Filter{Kinds: []int{0, 1}}, true},
		{"kind mismatch", Filter{Kinds: []int{0, 2}}, false},
		{"since/until in range", Filter{Since: &since, Until: &until}, true},
		{"tag match", Filter{Tags: map[string][]string{"e": {"target"}}}, true},
		{"tag mismatch", Filter{Tags: map[string][]string{"e": {"other"}}}, false},
	}

	for _, c := range cases {
		if got := c.filter.Matches(e); got != c.want {
			t.Errorf("%s: Matches() = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestFiltersMatchesAnyEmptySetMatchesNothing(t *testing.T) {
	e := &Event{ID: "x"}
	var fs Filters
	if fs.MatchesAny(e) {
		t.Fatal("empty filter set should match nothing")
	}
}

func TestFilterUnmarshalJSONTagKeys(t *testing.T) {
	raw := []byte(`{"kinds":[1,2],"#e":["abc","def"],"limit":10}`)
	var f Filter
	if err := json.Unmarshal(raw, &f); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(f.Kinds) != 2 || f.Kinds[0] != 1 || f.Kinds[1] != 2 {
		t.Errorf("Kinds = %v", f.Kinds)
	}
	if !f.HasLimit || f.Limit != 10 {
		t.Errorf("Limit/HasLimit = %d/%v", f.Limit, f.HasLimit)
	}
	values, ok := f.Tags["e"]
	if !ok || len(values) != 2 || values[0] != "abc" || values[1] != "def" {
		t.Errorf("Tags[e] = %v", f.Tags)
	}
}

func TestFilterMarshalJSONRoundTrip(t *testing.T) {
	since := int64(42)
	f := Filter{
		Kinds:    []int{1},
		Since:    &since,
		HasLimit: true,
		Limit:    5,
		Tags:     map[string][]string{"p": {"abc"}},
	}
	data, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var f2 Filter
	if err := json.Unmarshal(data, &f2); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if f2.Limit != 5 || !f2.HasLimit || *f2.Since != 42 {
		t.Errorf("round-tripped filter = %+v", f2)
	}
	if f2.Tags["p"][0] != "abc" {
		t.Errorf("round-tripped tags = %v", f2.Tags)
	}
}
