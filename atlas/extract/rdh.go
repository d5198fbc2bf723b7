package extract

import (
	"context"

	"github.com/shadowatlas/shadow-atlas/atlas/registry"
	"github.com/shadowatlas/shadow-atlas/atlas/resilience"
)

// rdhExtractor pulls GeoJSON exports from the Redistricting Data Hub API.
type rdhExtractor struct {
	base
}

func newRDH(src *registry.SourceDescriptor, d *Downloader, h *resilience.Harness) *rdhExtractor {
	return &rdhExtractor{base: base{src: src, dl: d, h: h}}
}

// Download fetches the state's export in one request; RDH serves complete
// per-state files rather than paged queries.
func (e *rdhExtractor) Download(ctx context.Context, p Params) (*Artifact, error) {
	endpoint := expandEndpoint(e.src.EndpointTemplate, e.src, p.StateFIPS)
	return e.fetch(ctx, endpoint, FetchOpts{Accept: "application/geo+json"})
}

// Transform parses the export payload.
func (e *rdhExtractor) Transform(a *Artifact) (FeatureIter, error) {
	data, err := a.Bytes()
	if err != nil {
		return nil, err
	}
	feats, err := featuresFromGeoJSON(data, a.Stub("rdh"))
	if err != nil {
		return nil, err
	}
	return newSliceIter(feats), nil
}
