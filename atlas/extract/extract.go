// Package extract implements the portal-specific extractors. Every variant
// satisfies the same narrow contract: download an artifact under scoped
// release semantics, then transform it into a lazy raw-feature sequence.
package extract

import (
	"context"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"github.com/shadowatlas/shadow-atlas/atlas/registry"
	"github.com/shadowatlas/shadow-atlas/atlas/resilience"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "extract")

// ProvenanceStub records where a raw feature came from. It travels with the
// feature until the normalizer folds it into a provenance digest.
type ProvenanceStub struct {
	SourceURL    string
	Provider     string
	FetchedAt    time.Time
	ContentHash  [32]byte
	HTTPStatus   int
	LastModified string
}

// RawFeature is the source-neutral unit produced by extractors: an opaque
// polygonal geometry, a property bag, and provenance. Destroyed at the
// boundary of the normalizer.
type RawFeature struct {
	Geometry orb.Geometry
	Props    map[string]interface{}
	Prov     *ProvenanceStub
}

// StringProp returns a property as a trimmed string, tolerating numeric
// property bags the way state portals emit them.
func (f *RawFeature) StringProp(keys ...string) string {
	for _, k := range keys {
		if v, ok := f.Props[k]; ok {
			switch t := v.(type) {
			case string:
				if s := strings.TrimSpace(t); s != "" {
					return s
				}
			case float64:
				// JSON numbers arrive as float64; GEOIDs must keep leading
				// zeros, so numeric properties are formatted without them
				// and the caller re-pads by layer.
				return strconv.FormatFloat(t, 'f', -1, 64)
			case int:
				return strconv.Itoa(t)
			}
		}
	}
	return ""
}

// Params scope one extraction run.
type Params struct {
	Source    *registry.SourceDescriptor
	StateFIPS string // optional state partition
}

// SourceMetadata describes the extractor's source to the scheduler.
type SourceMetadata struct {
	ID        string
	Kind      registry.PortalKind
	Layer     registry.Layer
	Authority registry.AuthorityTier
	Vintage   int
	Licence   string
	Endpoint  string
}

// FeatureIter lazily yields raw features. Next returns io.EOF after the last
// feature. Close releases any underlying resources and is idempotent.
type FeatureIter interface {
	Next() (*RawFeature, error)
	Close() error
}

// Extractor is the narrow contract every portal variant implements.
type Extractor interface {
	Download(ctx context.Context, p Params) (*Artifact, error)
	Transform(a *Artifact) (FeatureIter, error)
	Metadata() SourceMetadata
}

// New builds the extractor variant for the source's portal kind.
func New(src *registry.SourceDescriptor, d *Downloader, h *resilience.Harness) (Extractor, error) {
	switch src.PortalKind {
	case registry.PortalArcGISRest:
		return newArcGIS(src, d, h, false), nil
	case registry.PortalArcGISHub:
		return newArcGIS(src, d, h, true), nil
	case registry.PortalSocrata:
		return newSocrata(src, d, h), nil
	case registry.PortalCKAN:
		return newCKAN(src, d, h), nil
	case registry.PortalOSMOverpass:
		return newOverpass(src, d, h), nil
	case registry.PortalRDH:
		return newRDH(src, d, h), nil
	case registry.PortalTigerFTP:
		return newTigerFTP(src, d, h), nil
	case registry.PortalCustomStateGIS:
		return newStateGIS(src, d, h), nil
	default:
		return nil, errors.Errorf("no extractor for portal kind %q", src.PortalKind)
	}
}

// sliceIter iterates an already materialized feature slice.
type sliceIter struct {
	feats []*RawFeature
	i     int
}

func newSliceIter(feats []*RawFeature) *sliceIter {
	return &sliceIter{feats: feats}
}

func (it *sliceIter) Next() (*RawFeature, error) {
	if it.i >= len(it.feats) {
		return nil, io.EOF
	}
	f := it.feats[it.i]
	it.i++
	return f, nil
}

func (it *sliceIter) Close() error { return nil }

// Drain consumes an iterator into a slice, closing it on every path.
func Drain(it FeatureIter) ([]*RawFeature, error) {
	defer func() {
		if err := it.Close(); err != nil {
			log.WithError(err).Debug("Failed to close feature iterator")
		}
	}()
	var out []*RawFeature
	for {
		f, err := it.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, f)
	}
}

// expandEndpoint substitutes the {vintage} and {state} template variables.
func expandEndpoint(template string, src *registry.SourceDescriptor, stateFIPS string) string {
	out := strings.ReplaceAll(template, "{vintage}", strconv.Itoa(src.VintageYear))
	out = strings.ReplaceAll(out, "{state}", stateFIPS)
	return out
}
