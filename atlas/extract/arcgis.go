package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/shadowatlas/shadow-atlas/atlas/registry"
	"github.com/shadowatlas/shadow-atlas/atlas/resilience"
	"github.com/shadowatlas/shadow-atlas/shared/hashutil"
)

const (
	// arcgisPageSize is the record count requested per query page. Most
	// servers cap maxRecordCount at 1000 or 2000; asking for 1000 is safe.
	arcgisPageSize = 1000
	// layerCacheTTL bounds how long discovered layer listings are reused.
	layerCacheTTL = 15 * time.Minute
)

// layerDiscoveryCache is shared across arcgis extractors so repeated builds
// against the same service skip the introspection round trip.
var layerDiscoveryCache = gocache.New(layerCacheTTL, 2*layerCacheTTL)

// arcgisExtractor handles arcgis-rest services and arcgis-hub dataset pages.
// A hub endpoint serves GeoJSON directly; a rest endpoint needs layer
// discovery plus paged queries.
type arcgisExtractor struct {
	base
	hub         bool
	layerFilter LayerFilter
}

func newArcGIS(src *registry.SourceDescriptor, d *Downloader, h *resilience.Harness, hub bool) *arcgisExtractor {
	return &arcgisExtractor{
		base:        base{src: src, dl: d, h: h},
		hub:         hub,
		layerFilter: acceptAllLayers,
	}
}

// SetLayerFilter installs the pre-download layer gate.
func (e *arcgisExtractor) SetLayerFilter(f LayerFilter) {
	if f != nil {
		e.layerFilter = f
	}
}

type arcgisLayer struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	GeometryType string `json:"geometryType"`
	Type         string `json:"type"`
}

type arcgisServiceInfo struct {
	Layers []arcgisLayer `json:"layers"`
}

// Download resolves the service's polygon layers and pulls every page of
// every accepted layer into a single GeoJSON artifact.
func (e *arcgisExtractor) Download(ctx context.Context, p Params) (*Artifact, error) {
	endpoint := expandEndpoint(e.src.EndpointTemplate, e.src, p.StateFIPS)
	if e.hub {
		return e.fetch(ctx, endpoint, FetchOpts{Accept: "application/geo+json"})
	}

	layers, err := e.discoverLayers(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	accepted := make([]arcgisLayer, 0, len(layers))
	for _, l := range layers {
		if !isPolygonLayer(l) {
			continue
		}
		if !e.layerFilter(l.Name, l.Description) {
			log.WithFields(map[string]interface{}{
				"service": endpoint,
				"layer":   l.Name,
			}).Debug("Layer rejected pre-download")
			continue
		}
		accepted = append(accepted, l)
	}
	if len(accepted) == 0 {
		return nil, resilience.ErrEmptyParse
	}

	merged := struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}{Type: "FeatureCollection"}
	var last *Artifact
	for _, l := range accepted {
		feats, a, err := e.queryLayer(ctx, endpoint, l.ID)
		if err != nil {
			return nil, err
		}
		merged.Features = append(merged.Features, feats...)
		last = a
	}
	data, err := json.Marshal(merged)
	if err != nil {
		return nil, err
	}
	return syntheticArtifact(endpoint, data, last), nil
}

// discoverLayers introspects the service's layer listing, cached per service.
func (e *arcgisExtractor) discoverLayers(ctx context.Context, endpoint string) ([]arcgisLayer, error) {
	if cached, ok := layerDiscoveryCache.Get(endpoint); ok {
		return cached.([]arcgisLayer), nil
	}
	a, err := e.fetch(ctx, endpoint+"?f=json", FetchOpts{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = a.Release() }()
	data, err := a.Bytes()
	if err != nil {
		return nil, err
	}
	var info arcgisServiceInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, resilience.WithKind(resilience.KindPermanent,
			errors.Wrap(err, "malformed arcgis service info"))
	}
	layerDiscoveryCache.Set(endpoint, info.Layers, gocache.DefaultExpiration)
	return info.Layers, nil
}

// queryLayer pages through one layer's features as GeoJSON.
func (e *arcgisExtractor) queryLayer(ctx context.Context, endpoint string, layerID int) ([]json.RawMessage, *Artifact, error) {
	var features []json.RawMessage
	var last *Artifact
	for offset := 0; ; offset += arcgisPageSize {
		q := url.Values{}
		q.Set("where", "1=1")
		q.Set("outFields", "*")
		q.Set("f", "geojson")
		q.Set("outSR", "4326")
		q.Set("resultOffset", fmt.Sprintf("%d", offset))
		q.Set("resultRecordCount", fmt.Sprintf("%d", arcgisPageSize))
		pageURL := fmt.Sprintf("%s/%d/query?%s", endpoint, layerID, q.Encode())

		a, err := e.fetch(ctx, pageURL, FetchOpts{})
		if err != nil {
			return nil, nil, err
		}
		data, err := a.Bytes()
		if err != nil {
			_ = a.Release()
			return nil, nil, err
		}
		var page struct {
			Features []json.RawMessage `json:"features"`
		}
		if err := json.Unmarshal(data, &page); err != nil {
			_ = a.Release()
			return nil, nil, resilience.WithKind(resilience.KindPermanent,
				errors.Wrap(err, "malformed arcgis query page"))
		}
		_ = a.Release()
		features = append(features, page.Features...)
		last = a
		if len(page.Features) < arcgisPageSize {
			break
		}
	}
	return features, last, nil
}

// Transform parses the merged GeoJSON artifact.
func (e *arcgisExtractor) Transform(a *Artifact) (FeatureIter, error) {
	data, err := a.Bytes()
	if err != nil {
		return nil, err
	}
	feats, err := featuresFromGeoJSON(data, a.Stub(string(e.src.PortalKind)))
	if err != nil {
		return nil, err
	}
	return newSliceIter(feats), nil
}

func isPolygonLayer(l arcgisLayer) bool {
	switch l.GeometryType {
	case "esriGeometryPolygon", "Polygon", "MultiPolygon":
		return true
	}
	return false
}

// syntheticArtifact wraps locally merged bytes in an artifact, inheriting
// provenance fields from the last fetched page.
func syntheticArtifact(sourceURL string, data []byte, from *Artifact) *Artifact {
	a := &Artifact{
		SourceURL: sourceURL,
		data:      data,
		Size:      int64(len(data)),
		FetchedAt: time.Now().UTC(),
	}
	if from != nil {
		a.HTTPStatus = from.HTTPStatus
		a.LastModified = from.LastModified
		a.FetchedAt = from.FetchedAt
	}
	a.ContentHash = hashutil.HashSHA256(data)
	return a
}
