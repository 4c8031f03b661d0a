// Package filter implements the NIP-01 Filter type, its wire codec, the
// in-memory matcher, and the index-selection planner of spec.md §4.2/§4.3.
package filter

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/nostrcore/relay/internal/nostr/event"
)

// F is a single subscription filter. Every populated field is ANDed together;
// within a field, values are ORed (spec.md §4.2). Tags holds arbitrary
// single-letter "#<letter>" constraints keyed by that letter, e.g. Tags["e"]
// is the value set for an "#e" filter field.
type F struct {
	IDs     []string
	Authors []string
	Kinds   []uint16
	Tags    map[string][]string
	Since   *int64
	Until   *int64
	Limit   *int
	Search  string
}

// New returns an empty, ready-to-populate filter.
func New() *F { return &F{Tags: map[string][]string{}} }

// Sort canonicalizes the ordering of every value set so two filters built
// from the same content produce byte-identical JSON, mirroring the teacher's
// fingerprinting rationale in pkg/encoders/filter/filter.go's Sort method.
func (f *F) Sort() {
	sort.Strings(f.IDs)
	sort.Strings(f.Authors)
	sort.Slice(f.Kinds, func(i, j int) bool { return f.Kinds[i] < f.Kinds[j] })
	for _, vs := range f.Tags {
		sort.Strings(vs)
	}
}

// tagFieldPrefix is the JSON key prefix for tag-constraint fields.
const tagFieldPrefix = "#"

// wireFilter is the JSON-level shape of F: single-letter tag fields appear
// as sibling object keys ("#e", "#p", ...) alongside the fixed fields, which
// plain struct tags cannot express, so F implements MarshalJSON/UnmarshalJSON
// by hand instead, in the manner of the teacher's own hand-rolled Filter
// codec adapted to encoding/json (see DESIGN.md's wire-codec entry).
type wireFilter struct {
	IDs     []string `json:"ids,omitempty"`
	Authors []string `json:"authors,omitempty"`
	Kinds   []uint16 `json:"kinds,omitempty"`
	Since   *int64   `json:"since,omitempty"`
	Until   *int64   `json:"until,omitempty"`
	Limit   *int     `json:"limit,omitempty"`
	Search  string   `json:"search,omitempty"`
}

func (f *F) MarshalJSON() ([]byte, error) {
	g := *f
	g.Sort()

	w := wireFilter{
		IDs:     g.IDs,
		Authors: g.Authors,
		Kinds:   g.Kinds,
		Since:   g.Since,
		Until:   g.Until,
		Limit:   g.Limit,
		Search:  g.Search,
	}
	base, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}
	if len(g.Tags) == 0 {
		return base, nil
	}

	keys := make([]string, 0, len(g.Tags))
	for k := range g.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	body := base[1 : len(base)-1]
	if len(body) > 0 {
		b.Write(body)
	}
	for i, k := range keys {
		if len(body) > 0 || i > 0 {
			b.WriteByte(',')
		}
		enc, err := json.Marshal(g.Tags[k])
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&b, "%q:%s", tagFieldPrefix+k, enc)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

func (f *F) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := F{Tags: map[string][]string{}}
	for k, v := range raw {
		switch k {
		case "ids":
			if err := json.Unmarshal(v, &out.IDs); err != nil {
				return fmt.Errorf("filter.ids: %w", err)
			}
		case "authors":
			if err := json.Unmarshal(v, &out.Authors); err != nil {
				return fmt.Errorf("filter.authors: %w", err)
			}
		case "kinds":
			if err := json.Unmarshal(v, &out.Kinds); err != nil {
				return fmt.Errorf("filter.kinds: %w", err)
			}
		case "since":
			var n int64
			if err := json.Unmarshal(v, &n); err != nil {
				return fmt.Errorf("filter.since: %w", err)
			}
			out.Since = &n
		case "until":
			var n int64
			if err := json.Unmarshal(v, &n); err != nil {
				return fmt.Errorf("filter.until: %w", err)
			}
			out.Until = &n
		case "limit":
			var n int
			if err := json.Unmarshal(v, &n); err != nil {
				return fmt.Errorf("filter.limit: %w", err)
			}
			out.Limit = &n
		case "search":
			if err := json.Unmarshal(v, &out.Search); err != nil {
				return fmt.Errorf("filter.search: %w", err)
			}
		default:
			if !strings.HasPrefix(k, tagFieldPrefix) {
				continue // unknown fixed field: ignore per NIP-01 forward compatibility
			}
			letter := strings.TrimPrefix(k, tagFieldPrefix)
			if len(letter) != 1 || !isAlpha(letter[0]) {
				return fmt.Errorf("filter tag keys can only be # and one alpha character: %q", k)
			}
			var vals []string
			if err := json.Unmarshal(v, &vals); err != nil {
				return fmt.Errorf("filter.%s: %w", k, err)
			}
			out.Tags[letter] = vals
		}
	}
	*f = out
	return nil
}

func isAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// Empty reports whether the filter constrains nothing at all, matching
// everything in the log. The dispatcher does not call it: an empty filter is
// planned and served like any other.
func (f *F) Empty() bool {
	return len(f.IDs) == 0 && len(f.Authors) == 0 && len(f.Kinds) == 0 &&
		len(f.Tags) == 0 && f.Since == nil && f.Until == nil && f.Search == ""
}

// contains reports whether needle is present in haystack.
func contains[T comparable](haystack []T, needle T) bool {
	for _, h := range haystack {
		if h == needle {
			return true
		}
	}
	return false
}

// matchesAnyPrefix reports whether value begins with any of prefixes, per
// spec.md §3/§4.3: "ids" and "authors" are prefix sets, matched as a
// byte-prefix over lowercase hex rather than full-value equality.
func matchesAnyPrefix(prefixes []string, value string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(value, p) {
			return true
		}
	}
	return false
}

// Matches reports whether e satisfies every populated field of f: fields are
// ANDed, values within a field are ORed, per spec.md §4.2.
func Matches(f *F, e *event.Event) bool {
	if len(f.IDs) > 0 && !matchesAnyPrefix(f.IDs, e.ID) {
		return false
	}
	if len(f.Authors) > 0 && !matchesAnyPrefix(f.Authors, e.PubKey) {
		return false
	}
	if len(f.Kinds) > 0 && !contains(f.Kinds, e.Kind) {
		return false
	}
	if f.Since != nil && e.CreatedAt < *f.Since {
		return false
	}
	if f.Until != nil && e.CreatedAt > *f.Until {
		return false
	}
	for letter, values := range f.Tags {
		if len(values) == 0 {
			continue
		}
		if !eventHasAnyTagValue(e, letter, values) {
			return false
		}
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(e.Content), strings.ToLower(f.Search)) {
		return false
	}
	return true
}

func eventHasAnyTagValue(e *event.Event, letter string, values []string) bool {
	for _, t := range e.Tags {
		if t.Key() != letter {
			continue
		}
		for _, v := range t[1:] {
			if contains(values, v) {
				return true
			}
		}
	}
	return false
}
