package snapshot

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"github.com/shadowatlas/shadow-atlas/atlas/commit"
	"github.com/shadowatlas/shadow-atlas/shared/bytesutil"
	"github.com/shadowatlas/shadow-atlas/shared/fileutil"
)

// Export layout: one directory per snapshot holding snapshot.json,
// proofs.json and geoids.json, plus a versions.json index at the root keyed
// by version. The directory hash is reproducible because every file is
// rendered with sorted keys and no timestamps beyond the snapshot's own.
const (
	snapshotFileName = "snapshot.json"
	proofsFileName   = "proofs.json"
	geoidsFileName   = "geoids.json"
	indexFileName    = "versions.json"
)

// Export writes the snapshot directory under rootDir and updates the version
// index. Returns the snapshot directory path.
func (s *Store) Export(rootDir string, snap *Snapshot) (string, error) {
	dir := filepath.Join(rootDir, snap.ID)
	if err := fileutil.MkdirAll(dir); err != nil {
		return "", errors.Wrap(err, "could not create snapshot directory")
	}

	meta, err := snap.MarshalIndent()
	if err != nil {
		return "", err
	}
	if err := fileutil.WriteFile(filepath.Join(dir, snapshotFileName), meta); err != nil {
		return "", err
	}

	index, err := s.GeoidIndex(snap.ID)
	if err != nil {
		return "", err
	}
	ids := make([]string, 0, len(index))
	for id := range index {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	geoids, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return "", err
	}
	if err := fileutil.WriteFile(filepath.Join(dir, geoidsFileName), geoids); err != nil {
		return "", err
	}

	proofs := make(map[string]*commit.ProofTemplate, len(ids))
	for _, id := range ids {
		t, err := s.Proof(snap.ID, id)
		if err != nil {
			return "", err
		}
		if t == nil {
			return "", errors.Errorf("missing proof template for %s", id)
		}
		proofs[id] = t
	}
	proofData, err := json.MarshalIndent(proofs, "", "  ")
	if err != nil {
		return "", err
	}
	if err := fileutil.WriteFile(filepath.Join(dir, proofsFileName), proofData); err != nil {
		return "", err
	}

	if err := s.updateExportIndex(rootDir, snap); err != nil {
		return "", err
	}
	return dir, nil
}

// DirHash returns the reproducible content hash of an exported snapshot
// directory, hex encoded.
func DirHash(dir string) (string, error) {
	sum, err := fileutil.HashDir(dir)
	if err != nil {
		return "", err
	}
	return bytesutil.ToHex(sum[:]), nil
}

type exportIndexEntry struct {
	ID         string `json:"id"`
	MerkleRoot string `json:"merkle_root"`
	Directory  string `json:"directory"`
}

func (s *Store) updateExportIndex(rootDir string, snap *Snapshot) error {
	indexPath := filepath.Join(rootDir, indexFileName)
	index := map[string]exportIndexEntry{}
	if data, err := os.ReadFile(indexPath); err == nil {
		if err := json.Unmarshal(data, &index); err != nil {
			return errors.Wrap(err, "corrupt export index")
		}
	}
	index[versionString(snap.Version)] = exportIndexEntry{
		ID:         snap.ID,
		MerkleRoot: snap.MerkleRoot,
		Directory:  snap.ID,
	}
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return err
	}
	return fileutil.WriteFile(indexPath, data)
}

func versionString(v uint64) string {
	data, _ := json.Marshal(v)
	return string(data)
}
