// Package sliceutil implements set operations for specific data type combinations.
package sliceutil

import "sort"

// IntersectionStrings of any number of string slices with time
// complexity of approximately O(n) leveraging a map to check for duplicates.
func IntersectionStrings(s ...[]string) []string {
	if len(s) == 0 {
		return []string{}
	}
	if len(s) == 1 {
		return DedupStrings(s[0])
	}
	intersect := make([]string, 0)
	m := make(map[string]int)
	for _, k := range s[0] {
		m[k] = 1
	}
	for i, num := 1, len(s); i < num; i++ {
		for _, k := range s[i] {
			// Increment and check only if item is present in both, and no increment has happened yet.
			if _, found := m[k]; found && i == m[k] {
				m[k]++
				if m[k] == num {
					intersect = append(intersect, k)
				}
			}
		}
	}
	return intersect
}

// UnionStrings of any number of string slices with time
// complexity of approximately O(n) leveraging a map to check for duplicates.
func UnionStrings(s ...[]string) []string {
	if len(s) == 0 {
		return []string{}
	}
	set := DedupStrings(s[0])
	m := make(map[string]bool)
	for _, k := range set {
		m[k] = true
	}
	for i, num := 1, len(s); i < num; i++ {
		for _, k := range s[i] {
			if !m[k] {
				m[k] = true
				set = append(set, k)
			}
		}
	}
	return set
}

// NotStrings returns the strings in slice b that are not in slice a.
func NotStrings(a, b []string) []string {
	set := make([]string, 0)
	m := make(map[string]bool)
	for _, k := range a {
		m[k] = true
	}
	for _, k := range b {
		if !m[k] {
			set = append(set, k)
		}
	}
	return set
}

// IsInStrings returns true if a is in b.
func IsInStrings(a string, b []string) bool {
	for _, v := range b {
		if v == a {
			return true
		}
	}
	return false
}

// DedupStrings removes duplicates, preserving first-seen order.
func DedupStrings(s []string) []string {
	m := make(map[string]bool)
	out := make([]string, 0, len(s))
	for _, k := range s {
		if !m[k] {
			m[k] = true
			out = append(out, k)
		}
	}
	return out
}

// SortedStrings returns a sorted copy of s.
func SortedStrings(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	sort.Strings(out)
	return out
}
