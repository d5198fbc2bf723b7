// Package crossval compares two boundary sets for the same (layer, state) —
// typically TIGER against a state portal — matching by GEOID, then centroid,
// and scoring geometric agreement with intersection-over-union.
package crossval

import (
	"math"
	"sort"
	"strings"

	"github.com/shadowatlas/shadow-atlas/atlas/normalize"
	"github.com/shadowatlas/shadow-atlas/atlas/registry"
	"github.com/shadowatlas/shadow-atlas/shared/geoutil"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "crossval")

// centroidMatchMaxKM bounds how far apart two centroids may be for the
// fallback match.
const centroidMatchMaxKM = 5.0

// Severity grades a geometric disagreement between matched boundaries.
type Severity int

// Severity bands by IoU.
const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	default:
		return "critical"
	}
}

func severityFor(iou float64) Severity {
	switch {
	case iou >= 0.99:
		return SeverityLow
	case iou >= 0.95:
		return SeverityMedium
	case iou >= 0.90:
		return SeverityHigh
	default:
		return SeverityCritical
	}
}

// Match pairs one boundary from each set.
type Match struct {
	A         *normalize.Boundary
	B         *normalize.Boundary
	MatchedBy string // "geoid" or "centroid"
	IoU       float64
	// AreaDiffPercent is |areaA - areaB| relative to the larger area.
	AreaDiffPercent float64
	Severity        Severity
}

// Report is the cross-validation outcome for one (layer, state).
type Report struct {
	Layer      registry.Layer
	StateFIPS  string
	CountA     int
	CountB     int
	Matches    []Match
	UnmatchedA []string
	UnmatchedB []string
	// Mismatched counts matches whose severity is high or critical.
	Mismatched   int
	QualityScore float64
}

// NormalizeGEOID strips separators, uppercases, and prefixes the state FIPS
// when the identifier arrives without it.
func NormalizeGEOID(id, stateFIPS string) string {
	var b strings.Builder
	for _, r := range id {
		switch r {
		case '-', '_', ' ', '.', '/':
			continue
		}
		b.WriteRune(r)
	}
	out := strings.ToUpper(b.String())
	if stateFIPS != "" && !strings.HasPrefix(out, stateFIPS) {
		out = stateFIPS + out
	}
	return out
}

// Compare matches set A against set B and scores the agreement. Matching is
// GEOID-first; unmatched residues fall back to nearest-centroid pairing with
// one-to-one assignment.
func Compare(layer registry.Layer, stateFIPS string, a, b []*normalize.Boundary) *Report {
	report := &Report{
		Layer:     layer,
		StateFIPS: stateFIPS,
		CountA:    len(a),
		CountB:    len(b),
	}

	byID := make(map[string]*normalize.Boundary, len(b))
	for _, bd := range b {
		byID[NormalizeGEOID(bd.ID, stateFIPS)] = bd
	}
	usedB := map[*normalize.Boundary]bool{}
	var residueA []*normalize.Boundary
	for _, ad := range a {
		key := NormalizeGEOID(ad.ID, stateFIPS)
		if bd, ok := byID[key]; ok && !usedB[bd] {
			report.Matches = append(report.Matches, scoreMatch(ad, bd, "geoid"))
			usedB[bd] = true
			continue
		}
		residueA = append(residueA, ad)
	}
	var residueB []*normalize.Boundary
	for _, bd := range b {
		if !usedB[bd] {
			residueB = append(residueB, bd)
		}
	}

	report.matchByCentroid(residueA, residueB, usedB)

	matchedA := map[*normalize.Boundary]bool{}
	for _, m := range report.Matches {
		matchedA[m.A] = true
	}
	for _, ad := range a {
		if !matchedA[ad] {
			report.UnmatchedA = append(report.UnmatchedA, ad.ID)
		}
	}
	for _, bd := range b {
		if !usedB[bd] {
			report.UnmatchedB = append(report.UnmatchedB, bd.ID)
		}
	}
	sort.Strings(report.UnmatchedA)
	sort.Strings(report.UnmatchedB)

	for _, m := range report.Matches {
		if m.Severity >= SeverityHigh {
			report.Mismatched++
		}
	}
	report.QualityScore = report.aggregateQuality()
	return report
}

// matchByCentroid pairs residues nearest-first with one-to-one assignment,
// capped at centroidMatchMaxKM.
func (r *Report) matchByCentroid(residueA, residueB []*normalize.Boundary, usedB map[*normalize.Boundary]bool) {
	type pair struct {
		a, b *normalize.Boundary
		km   float64
	}
	var pairs []pair
	for _, ad := range residueA {
		ca := geoutil.Centroid(ad.Geometry)
		for _, bd := range residueB {
			km := geoutil.DistanceKM(ca, geoutil.Centroid(bd.Geometry))
			if km <= centroidMatchMaxKM {
				pairs = append(pairs, pair{a: ad, b: bd, km: km})
			}
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].km != pairs[j].km {
			return pairs[i].km < pairs[j].km
		}
		if pairs[i].a.ID != pairs[j].a.ID {
			return pairs[i].a.ID < pairs[j].a.ID
		}
		return pairs[i].b.ID < pairs[j].b.ID
	})
	usedA := map[*normalize.Boundary]bool{}
	for _, p := range pairs {
		if usedA[p.a] || usedB[p.b] {
			continue
		}
		usedA[p.a] = true
		usedB[p.b] = true
		r.Matches = append(r.Matches, scoreMatch(p.a, p.b, "centroid"))
	}
}

func scoreMatch(a, b *normalize.Boundary, by string) Match {
	iou := geoutil.IoU(a.Geometry, b.Geometry)
	areaA := geoutil.Area(a.Geometry)
	areaB := geoutil.Area(b.Geometry)
	diff := 0.0
	if bigger := math.Max(areaA, areaB); bigger > 0 {
		diff = math.Abs(areaA-areaB) / bigger * 100
	}
	m := Match{
		A:               a,
		B:               b,
		MatchedBy:       by,
		IoU:             iou,
		AreaDiffPercent: diff,
		Severity:        severityFor(iou),
	}
	if m.Severity >= SeverityHigh {
		log.WithFields(logrus.Fields{
			"a":   a.ID,
			"b":   b.ID,
			"iou": iou,
		}).Warn("Cross-source geometry disagreement")
	}
	return m
}

// aggregateQuality folds the comparison into one score:
// 40% count agreement, 30% match coverage, 30% geometric agreement.
func (r *Report) aggregateQuality() float64 {
	if r.CountA == 0 && r.CountB == 0 {
		return 0
	}
	larger := math.Max(float64(r.CountA), float64(r.CountB))
	smaller := math.Min(float64(r.CountA), float64(r.CountB))
	countScore := 0.0
	if larger > 0 {
		countScore = smaller / larger * 100
	}
	matched := float64(len(r.Matches))
	coverage := matched / larger * 100
	agreement := 0.0
	if matched > 0 {
		agreement = (matched - float64(r.Mismatched)) / matched * 100
	}
	return 0.4*countScore + 0.3*coverage + 0.3*agreement
}
