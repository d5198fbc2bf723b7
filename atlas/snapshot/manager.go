package snapshot

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/shadowatlas/shadow-atlas/atlas/commit"
	"github.com/shadowatlas/shadow-atlas/atlas/registry"
	"github.com/shadowatlas/shadow-atlas/shared/bytesutil"
	"github.com/shadowatlas/shadow-atlas/shared/hashutil"
	"github.com/shadowatlas/shadow-atlas/shared/sliceutil"
	bolt "go.etcd.io/bbolt"
)

// ErrVersionNotFound is returned by Diff for a missing version.
var ErrVersionNotFound = errors.New("snapshot version not found")

// CreateMeta carries the caller-supplied context for a new snapshot.
type CreateMeta struct {
	StatesIncluded []string
	TigerVintage   int
	BuildDuration  time.Duration
	Notes          string
}

// Create seals a build result into the next snapshot version. The previous
// visible latest, if any, is marked superseded in the same transaction so
// Latest never observes two candidates.
func (s *Store) Create(build *commit.BuildResult, meta CreateMeta) (*Snapshot, error) {
	snap := &Snapshot{
		Timestamp:       time.Now().UTC(),
		Status:          StatusSealed,
		MerkleRoot:      bytesutil.ToHex(build.Root[:]),
		TreeDepth:       build.Depth,
		TotalBoundaries: build.TotalBoundaries(),
		LayerCounts:     map[string]int{},
		LayerChecksums:  map[string]string{},
		StatesIncluded:  sliceutil.SortedStrings(sliceutil.DedupStrings(meta.StatesIncluded)),
		TigerVintage:    meta.TigerVintage,
		BuildDuration:   meta.BuildDuration,
		Notes:           meta.Notes,
	}
	for layer, count := range build.LayerCounts {
		snap.LayerCounts[string(layer)] = count
		snap.LayerChecksums[string(layer)] = layerChecksum(build, layer)
	}

	// Proof templates are generated eagerly: the trie dies with the build
	// result, the templates must outlive it.
	proofs := make([]*commit.ProofTemplate, 0, build.TotalBoundaries())
	for _, b := range build.Boundaries {
		t, err := build.Prove(b.ID)
		if err != nil {
			return nil, errors.Wrapf(err, "could not prove boundary %s", b.ID)
		}
		proofs = append(proofs, t)
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		version := latestVersion(tx) + 1
		snap.Version = version
		snap.ID = fmt.Sprintf("snap-%06d-%s", version, bytesutil.ToHex(build.Root[:6])[2:])

		// Supersede the previous visible latest.
		if prev, err := getSnapshotByVersion(tx, version-1); err != nil {
			return err
		} else if prev != nil && prev.Visible() {
			prev.Status = StatusSuperseded
			if err := putSnapshot(tx, prev); err != nil {
				return err
			}
			s.snapshotCache.Del(prev.ID)
		}

		if err := putSnapshot(tx, snap); err != nil {
			return err
		}
		for _, t := range proofs {
			if err := putProof(tx, snap.ID, t); err != nil {
				return err
			}
		}
		if err := putGeoidIndex(tx, snap.ID, build.Index); err != nil {
			return err
		}
		return tx.Bucket(metaBucket).Put(latestVersionKey, versionKey(version))
	})
	if err != nil {
		return nil, err
	}
	log.WithFields(map[string]interface{}{
		"version": snap.Version,
		"id":      snap.ID,
		"root":    snap.MerkleRoot,
	}).Info("Sealed snapshot")
	return snap, nil
}

// Latest returns the newest visible snapshot, or nil when none exists.
func (s *Store) Latest() (*Snapshot, error) {
	var snap *Snapshot
	err := s.db.View(func(tx *bolt.Tx) error {
		for v := latestVersion(tx); v >= 1; v-- {
			candidate, err := getSnapshotByVersion(tx, v)
			if err != nil {
				return err
			}
			if candidate != nil && candidate.Visible() {
				snap = candidate
				return nil
			}
		}
		return nil
	})
	return snap, err
}

// ByVersion returns a snapshot by version, including superseded ones.
func (s *Store) ByVersion(v uint64) (*Snapshot, error) {
	var snap *Snapshot
	err := s.db.View(func(tx *bolt.Tx) error {
		var verr error
		snap, verr = getSnapshotByVersion(tx, v)
		return verr
	})
	return snap, err
}

// ByID returns a snapshot by id, including superseded ones.
func (s *Store) ByID(id string) (*Snapshot, error) {
	if cached, ok := s.snapshotCache.Get(id); ok {
		return cached.(*Snapshot), nil
	}
	var snap *Snapshot
	err := s.db.View(func(tx *bolt.Tx) error {
		var verr error
		snap, verr = getSnapshot(tx, id)
		return verr
	})
	if err == nil && snap != nil {
		s.snapshotCache.Set(id, snap, int64(len(snap.ID))+256)
	}
	return snap, err
}

// List returns visible snapshots sorted by version descending.
func (s *Store) List(limit, offset int) ([]*Snapshot, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []*Snapshot
	err := s.db.View(func(tx *bolt.Tx) error {
		skipped := 0
		for v := latestVersion(tx); v >= 1 && len(out) < limit; v-- {
			snap, err := getSnapshotByVersion(tx, v)
			if err != nil {
				return err
			}
			if snap == nil || !snap.Visible() {
				continue
			}
			if skipped < offset {
				skipped++
				continue
			}
			out = append(out, snap)
		}
		return nil
	})
	return out, err
}

// Proof returns the stored proof template for (snapshot, boundary id).
func (s *Store) Proof(snapshotID, boundaryID string) (*commit.ProofTemplate, error) {
	cacheKey := snapshotID + "\x00" + boundaryID
	if cached, ok := s.proofCache.Get(cacheKey); ok {
		return cached.(*commit.ProofTemplate), nil
	}
	var t *commit.ProofTemplate
	err := s.db.View(func(tx *bolt.Tx) error {
		var verr error
		t, verr = getProof(tx, snapshotID, boundaryID)
		return verr
	})
	if err == nil && t != nil {
		s.proofCache.Add(cacheKey, t)
	}
	return t, err
}

// GeoidIndex returns the id→leaf-index map for a snapshot.
func (s *Store) GeoidIndex(snapshotID string) (map[string]int, error) {
	var out map[string]int
	err := s.db.View(func(tx *bolt.Tx) error {
		var verr error
		out, verr = getGeoidIndex(tx, snapshotID)
		return verr
	})
	return out, err
}

// AttachCID binds a content address to a snapshot and publishes it. The
// operation is idempotent: re-attaching the same CID changes nothing, while
// attaching a different CID to a published snapshot is rejected.
func (s *Store) AttachCID(snapshotID, cid string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		snap, err := getSnapshot(tx, snapshotID)
		if err != nil {
			return err
		}
		if snap == nil {
			return errors.Errorf("snapshot %q not found", snapshotID)
		}
		if snap.CID == cid {
			return nil
		}
		if snap.CID != "" {
			return errors.Errorf("snapshot %q already bound to %s", snapshotID, snap.CID)
		}
		snap.CID = cid
		if snap.Status == StatusSealed {
			snap.Status = StatusPublished
		}
		s.snapshotCache.Del(snapshotID)
		return putSnapshot(tx, snap)
	})
}

// Diff compares two stored versions. Missing versions yield
// ErrVersionNotFound.
func (s *Store) Diff(fromVersion, toVersion uint64) (*Diff, error) {
	from, err := s.ByVersion(fromVersion)
	if err != nil {
		return nil, err
	}
	if from == nil {
		return nil, errors.Wrapf(ErrVersionNotFound, "version %d", fromVersion)
	}
	to, err := s.ByVersion(toVersion)
	if err != nil {
		return nil, err
	}
	if to == nil {
		return nil, errors.Wrapf(ErrVersionNotFound, "version %d", toVersion)
	}
	return computeDiff(from, to), nil
}

// layerChecksum hashes the layer's leaf hashes in leaf order.
func layerChecksum(build *commit.BuildResult, layer registry.Layer) string {
	offset := build.LayerOffsets[layer]
	count := build.LayerCounts[layer]
	material := make([]byte, 0, count*32)
	for i := offset; i < offset+count; i++ {
		material = append(material, build.LeafHashes[i][:]...)
	}
	sum := hashutil.HashSHA256(material)
	return bytesutil.ToHex(sum[:])
}

// MarshalIndent renders a snapshot for file export.
func (s *Snapshot) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// sortLayers yields deterministic layer ordering for diff output.
func sortLayers(layers []registry.Layer) {
	sort.Slice(layers, func(i, j int) bool { return layers[i] < layers[j] })
}
