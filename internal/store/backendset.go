package store

import (
	"strings"

	"golang.org/x/exp/slices"
)

// backendSet is a case-insensitive set of backend names (spec.md §3:
// "backends (set of strings; which source reported it)"). The first
// casing seen for a given name is kept; later additions that differ only
// in case are treated as the same member.
type backendSet struct {
	byLower map[string]string
}

func newBackendSet(names []string) *backendSet {
	s := &backendSet{byLower: make(map[string]string, len(names))}
	s.Add(names)
	return s
}

// Add unions names into the set, case-insensitively (spec.md §4.3 step
// 4: "Merge backends (case-insensitive set union)").
func (s *backendSet) Add(names []string) {
	for _, n := range names {
		key := strings.ToLower(n)
		if _, ok := s.byLower[key]; !ok {
			s.byLower[key] = n
		}
	}
}

// List returns the set's members in sorted order, for deterministic
// output in GetField("backend") and JSON emission.
func (s *backendSet) List() []string {
	out := make([]string, 0, len(s.byLower))
	for _, v := range s.byLower {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}
