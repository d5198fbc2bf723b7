package snapshot

import (
	cid "github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
	"github.com/pkg/errors"
)

// ComputeCID derives the CIDv1 (raw codec, sha2-256) for the given snapshot
// content bytes; the node passes the export's directory hash string. Pinning the content anywhere is out of scope; only the
// address computation lives here so AttachCID has something verifiable to
// bind.
func ComputeCID(data []byte) (string, error) {
	sum, err := mh.Sum(data, mh.SHA2_256, -1)
	if err != nil {
		return "", errors.Wrap(err, "could not hash snapshot content")
	}
	return cid.NewCidV1(cid.Raw, sum).String(), nil
}
