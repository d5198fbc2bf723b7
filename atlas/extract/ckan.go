package extract

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/shadowatlas/shadow-atlas/atlas/registry"
	"github.com/shadowatlas/shadow-atlas/atlas/resilience"
)

// ckanExtractor resolves a CKAN package to its GeoJSON resource and fetches it.
type ckanExtractor struct {
	base
}

func newCKAN(src *registry.SourceDescriptor, d *Downloader, h *resilience.Harness) *ckanExtractor {
	return &ckanExtractor{base: base{src: src, dl: d, h: h}}
}

type ckanPackage struct {
	Success bool `json:"success"`
	Result  struct {
		Resources []struct {
			Format string `json:"format"`
			URL    string `json:"url"`
		} `json:"resources"`
	} `json:"result"`
}

// Download asks the package_show API for resources, then fetches the first
// GeoJSON one.
func (e *ckanExtractor) Download(ctx context.Context, p Params) (*Artifact, error) {
	endpoint := expandEndpoint(e.src.EndpointTemplate, e.src, p.StateFIPS)
	meta, err := e.fetch(ctx, endpoint, FetchOpts{Accept: "application/json"})
	if err != nil {
		return nil, err
	}
	defer func() { _ = meta.Release() }()
	data, err := meta.Bytes()
	if err != nil {
		return nil, err
	}
	var pkg ckanPackage
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, resilience.WithKind(resilience.KindPermanent,
			errors.Wrap(err, "malformed ckan package response"))
	}
	if !pkg.Success {
		return nil, resilience.WithKind(resilience.KindPermanent,
			errors.New("ckan package_show reported failure"))
	}
	resourceURL := ""
	for _, r := range pkg.Result.Resources {
		if strings.EqualFold(r.Format, "geojson") && r.URL != "" {
			resourceURL = r.URL
			break
		}
	}
	if resourceURL == "" {
		return nil, resilience.WithKind(resilience.KindPermanent,
			errors.New("ckan package has no geojson resource"))
	}
	return e.fetch(ctx, resourceURL, FetchOpts{Accept: "application/geo+json"})
}

// Transform parses the resource payload.
func (e *ckanExtractor) Transform(a *Artifact) (FeatureIter, error) {
	data, err := a.Bytes()
	if err != nil {
		return nil, err
	}
	feats, err := featuresFromGeoJSON(data, a.Stub("ckan"))
	if err != nil {
		return nil, err
	}
	return newSliceIter(feats), nil
}
