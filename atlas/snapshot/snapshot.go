// Package snapshot persists sealed, versioned commitments and their proof
// templates, and answers version queries and diffs.
package snapshot

import (
	"time"

	"github.com/shadowatlas/shadow-atlas/atlas/registry"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "snapshot")

// Status tracks the snapshot lifecycle. Only sealed and published snapshots
// are visible to Latest and List; superseded snapshots stay readable by
// id and version.
type Status string

// Snapshot statuses.
const (
	StatusBuilding   Status = "building"
	StatusSealed     Status = "sealed"
	StatusPublished  Status = "published"
	StatusSuperseded Status = "superseded"
)

// Snapshot is one sealed, versioned catalog commitment. Append-only.
type Snapshot struct {
	ID        string    `json:"id"`
	Version   uint64    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Status    Status    `json:"status"`

	MerkleRoot      string `json:"merkle_root"`
	TreeDepth       int    `json:"tree_depth"`
	TotalBoundaries int    `json:"total_boundaries"`

	LayerCounts    map[string]int    `json:"layer_counts"`
	LayerChecksums map[string]string `json:"layer_checksums"`
	StatesIncluded []string          `json:"states_included"`
	TigerVintage   int               `json:"tiger_vintage"`

	BuildDuration time.Duration `json:"build_duration"`
	CID           string        `json:"cid,omitempty"`
	Notes         string        `json:"notes,omitempty"`
}

// Visible reports whether the snapshot answers Latest/List queries.
func (s *Snapshot) Visible() bool {
	return s.Status == StatusSealed || s.Status == StatusPublished
}

// LayerDelta describes one modified layer between two snapshots.
type LayerDelta struct {
	Layer     registry.Layer `json:"layer"`
	FromCount int            `json:"from_count"`
	ToCount   int            `json:"to_count"`
	Delta     int            `json:"delta"`
}

// Diff is the deterministic comparison of two snapshot versions.
type Diff struct {
	FromVersion uint64 `json:"from_version"`
	ToVersion   uint64 `json:"to_version"`

	LayersAdded    []registry.Layer `json:"layers_added"`
	LayersRemoved  []registry.Layer `json:"layers_removed"`
	LayersModified []LayerDelta     `json:"layers_modified"`

	StatesAdded   []string `json:"states_added"`
	StatesRemoved []string `json:"states_removed"`

	MerkleRootChanged  bool `json:"merkle_root_changed"`
	TotalBoundaryDelta int  `json:"total_boundary_delta"`
}
