package registry

import (
	"fmt"
	"sort"
	"sync"
)

// Canonical GEOID tables. Congressional districts are derived from the
// apportionment table in states.go; the larger layers (counties, school
// districts, VTDs) are registered from vintage data files at startup via
// RegisterCanonical. The tables are write-once: registration happens during
// init and the pipeline only reads afterwards.

var (
	canonicalMu  sync.RWMutex
	canonicalSet = map[Layer]map[string][]string{}
)

// RegisterCanonical installs the canonical GEOID list for (layer, state).
// Later registrations for the same key replace earlier ones.
func RegisterCanonical(layer Layer, stateFIPS string, geoids []string) {
	canonicalMu.Lock()
	defer canonicalMu.Unlock()
	m, ok := canonicalSet[layer]
	if !ok {
		m = map[string][]string{}
		canonicalSet[layer] = m
	}
	sorted := make([]string, len(geoids))
	copy(sorted, geoids)
	sort.Strings(sorted)
	m[stateFIPS] = sorted
}

// CanonicalGEOIDs returns the canonical GEOID list for (layer, state), sorted.
// The second return is false when no canonical list is known, which callers
// must treat as "cannot check completeness", not as an empty expectation.
func CanonicalGEOIDs(layer Layer, stateFIPS string) ([]string, bool) {
	if layer == LayerCongressional {
		return congressionalGEOIDs(stateFIPS)
	}
	canonicalMu.RLock()
	defer canonicalMu.RUnlock()
	m, ok := canonicalSet[layer]
	if !ok {
		return nil, false
	}
	ids, ok := m[stateFIPS]
	if !ok {
		return nil, false
	}
	out := make([]string, len(ids))
	copy(out, ids)
	return out, true
}

// ExpectedCount returns the canonical boundary count for (layer, state).
func ExpectedCount(layer Layer, stateFIPS string) (int, bool) {
	ids, ok := CanonicalGEOIDs(layer, stateFIPS)
	if !ok {
		return 0, false
	}
	return len(ids), true
}

// TotalCongressionalDistricts across all states. The constitution fixes the
// house at 435 voting seats; this is recomputed from the apportionment table
// as a consistency check.
func TotalCongressionalDistricts() int {
	total := 0
	for _, s := range states {
		total += s.CongressionalDistricts
	}
	return total
}

func congressionalGEOIDs(stateFIPS string) ([]string, bool) {
	s, ok := states[stateFIPS]
	if !ok || s.CongressionalDistricts == 0 {
		return nil, false
	}
	ids := make([]string, 0, s.CongressionalDistricts)
	for d := 1; d <= s.CongressionalDistricts; d++ {
		ids = append(ids, fmt.Sprintf("%s%02d", stateFIPS, d))
	}
	return ids, true
}
