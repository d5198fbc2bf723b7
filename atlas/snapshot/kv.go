package snapshot

import (
	"encoding/binary"
	"encoding/json"
	"os"
	"path"
	"time"

	"github.com/dgraph-io/ristretto"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/shadowatlas/shadow-atlas/atlas/commit"
	bolt "go.etcd.io/bbolt"
)

const (
	databaseFileName = "atlas.db"
	// snapshotCacheSize bounds the hot metadata cache (~1KB per snapshot).
	snapshotCacheSize = 1 << 20
	// proofCacheEntries bounds the recently served proof templates.
	proofCacheEntries = 4096
)

var (
	snapshotsBucket    = []byte("snapshots")
	versionIndexBucket = []byte("version-index")
	proofsBucket       = []byte("proofs")
	geoidsBucket       = []byte("geoids")
	metaBucket         = []byte("meta")

	latestVersionKey = []byte("latest-version")
)

// Store is the bolt-backed snapshot database. Concurrent readers are cheap;
// writers serialize behind bolt's single update transaction.
type Store struct {
	db            *bolt.DB
	databasePath  string
	snapshotCache *ristretto.Cache
	proofCache    *lru.Cache
}

// NewStore opens (or creates) the snapshot database under dirPath.
func NewStore(dirPath string) (*Store, error) {
	if err := os.MkdirAll(dirPath, 0700); err != nil {
		return nil, err
	}
	datafile := path.Join(dirPath, databaseFileName)
	db, err := bolt.Open(datafile, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		if err == bolt.ErrTimeout {
			return nil, errors.New("cannot obtain database lock, database may be in use by another process")
		}
		return nil, err
	}
	snapshotCache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1000,
		MaxCost:     snapshotCacheSize,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	proofCache, err := lru.New(proofCacheEntries)
	if err != nil {
		return nil, err
	}

	store := &Store{
		db:            db,
		databasePath:  dirPath,
		snapshotCache: snapshotCache,
		proofCache:    proofCache,
	}
	if err := store.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{
			snapshotsBucket, versionIndexBucket, proofsBucket, geoidsBucket, metaBucket,
		} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return store, nil
}

// ClearDB removes the previously stored database in the data directory.
func (s *Store) ClearDB() error {
	if _, err := os.Stat(s.databasePath); os.IsNotExist(err) {
		return nil
	}
	return os.Remove(path.Join(s.databasePath, databaseFileName))
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DatabasePath at which this database writes files.
func (s *Store) DatabasePath() string {
	return s.databasePath
}

// latestVersion reads the monotonic version counter inside a transaction.
func latestVersion(tx *bolt.Tx) uint64 {
	raw := tx.Bucket(metaBucket).Get(latestVersionKey)
	if len(raw) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(raw)
}

func versionKey(v uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, v)
	return key
}

// putSnapshot writes the snapshot record and its version index entry.
func putSnapshot(tx *bolt.Tx, snap *Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if err := tx.Bucket(snapshotsBucket).Put([]byte(snap.ID), data); err != nil {
		return err
	}
	return tx.Bucket(versionIndexBucket).Put(versionKey(snap.Version), []byte(snap.ID))
}

func getSnapshot(tx *bolt.Tx, id string) (*Snapshot, error) {
	raw := tx.Bucket(snapshotsBucket).Get([]byte(id))
	if raw == nil {
		return nil, nil
	}
	snap := &Snapshot{}
	if err := json.Unmarshal(raw, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

func getSnapshotByVersion(tx *bolt.Tx, v uint64) (*Snapshot, error) {
	id := tx.Bucket(versionIndexBucket).Get(versionKey(v))
	if id == nil {
		return nil, nil
	}
	return getSnapshot(tx, string(id))
}

// proofKey namespaces proof templates under their snapshot.
func proofKey(snapshotID, boundaryID string) []byte {
	return []byte(snapshotID + "\x00" + boundaryID)
}

func putProof(tx *bolt.Tx, snapshotID string, t *commit.ProofTemplate) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return tx.Bucket(proofsBucket).Put(proofKey(snapshotID, t.DistrictID), data)
}

func getProof(tx *bolt.Tx, snapshotID, boundaryID string) (*commit.ProofTemplate, error) {
	raw := tx.Bucket(proofsBucket).Get(proofKey(snapshotID, boundaryID))
	if raw == nil {
		return nil, nil
	}
	t := &commit.ProofTemplate{}
	if err := json.Unmarshal(raw, t); err != nil {
		return nil, err
	}
	return t, nil
}

func putGeoidIndex(tx *bolt.Tx, snapshotID string, index map[string]int) error {
	data, err := json.Marshal(index)
	if err != nil {
		return err
	}
	return tx.Bucket(geoidsBucket).Put([]byte(snapshotID), data)
}

func getGeoidIndex(tx *bolt.Tx, snapshotID string) (map[string]int, error) {
	raw := tx.Bucket(geoidsBucket).Get([]byte(snapshotID))
	if raw == nil {
		return nil, nil
	}
	out := map[string]int{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
