package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shadowatlas/shadow-atlas/atlas/registry"
	"github.com/shadowatlas/shadow-atlas/atlas/resilience"
	"github.com/shadowatlas/shadow-atlas/shared/hashutil"
	"github.com/shadowatlas/shadow-atlas/shared/params"
)

// stateGISExtractor crawls a state GIS server's folder hierarchy looking for
// polygon layers. Recursion is depth limited and every call to the same host
// is spaced by a minimum delay.
type stateGISExtractor struct {
	base
	maxDepth    int
	minDelay    time.Duration
	layerFilter LayerFilter

	gateMu   sync.Mutex
	lastCall map[string]time.Time
}

func newStateGIS(src *registry.SourceDescriptor, d *Downloader, h *resilience.Harness) *stateGISExtractor {
	cfg := params.AtlasConfigVals()
	return &stateGISExtractor{
		base:        base{src: src, dl: d, h: h},
		maxDepth:    cfg.CrawlMaxDepth,
		minDelay:    cfg.CrawlMinHostDelay,
		layerFilter: acceptAllLayers,
		lastCall:    map[string]time.Time{},
	}
}

// SetLayerFilter installs the pre-download layer gate.
func (e *stateGISExtractor) SetLayerFilter(f LayerFilter) {
	if f != nil {
		e.layerFilter = f
	}
}

type gisCatalog struct {
	Folders  []string `json:"folders"`
	Services []struct {
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"services"`
	Layers []arcgisLayer `json:"layers"`
}

// Download walks the catalog and merges every accepted polygon layer.
func (e *stateGISExtractor) Download(ctx context.Context, p Params) (*Artifact, error) {
	root := expandEndpoint(e.src.EndpointTemplate, e.src, p.StateFIPS)
	merged := struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}{Type: "FeatureCollection"}

	if err := e.crawl(ctx, root, 0, &merged.Features); err != nil {
		return nil, err
	}
	if len(merged.Features) == 0 {
		return nil, resilience.ErrEmptyParse
	}
	data, err := json.Marshal(merged)
	if err != nil {
		return nil, err
	}
	a := &Artifact{
		SourceURL: root,
		data:      data,
		Size:      int64(len(data)),
		FetchedAt: time.Now().UTC(),
	}
	a.ContentHash = hashutil.HashSHA256(data)
	return a, nil
}

// crawl descends one catalog level, gathering service layers.
func (e *stateGISExtractor) crawl(ctx context.Context, endpoint string, depth int, out *[]json.RawMessage) error {
	if depth > e.maxDepth {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	e.throttle(endpoint)

	a, err := e.fetch(ctx, endpoint+"?f=json", FetchOpts{})
	if err != nil {
		return err
	}
	data, err := a.Bytes()
	_ = a.Release()
	if err != nil {
		return err
	}
	var cat gisCatalog
	if err := json.Unmarshal(data, &cat); err != nil {
		return resilience.WithKind(resilience.KindPermanent,
			errors.Wrap(err, "malformed catalog response"))
	}

	for _, l := range cat.Layers {
		if !isPolygonLayer(l) || !e.layerFilter(l.Name, l.Description) {
			continue
		}
		e.throttle(endpoint)
		feats, err := e.queryServiceLayer(ctx, endpoint, l.ID)
		if err != nil {
			// A single unreadable layer must not sink the whole crawl.
			log.WithError(err).WithFields(map[string]interface{}{
				"service": endpoint,
				"layer":   l.Name,
			}).Warn("Skipping unreadable layer")
			continue
		}
		*out = append(*out, feats...)
	}

	for _, svc := range cat.Services {
		if svc.Type != "MapServer" && svc.Type != "FeatureServer" {
			continue
		}
		if err := e.crawl(ctx, fmt.Sprintf("%s/%s/%s", endpoint, svc.Name, svc.Type), depth+1, out); err != nil {
			if resilience.Classify(err) == resilience.KindCancelled {
				return err
			}
			log.WithError(err).WithField("service", svc.Name).Warn("Skipping unreadable service")
		}
	}
	for _, folder := range cat.Folders {
		if err := e.crawl(ctx, fmt.Sprintf("%s/%s", endpoint, folder), depth+1, out); err != nil {
			if resilience.Classify(err) == resilience.KindCancelled {
				return err
			}
			log.WithError(err).WithField("folder", folder).Warn("Skipping unreadable folder")
		}
	}
	return nil
}

func (e *stateGISExtractor) queryServiceLayer(ctx context.Context, endpoint string, layerID int) ([]json.RawMessage, error) {
	pageURL := fmt.Sprintf("%s/%d/query?where=1%%3D1&outFields=*&outSR=4326&f=geojson", endpoint, layerID)
	a, err := e.fetch(ctx, pageURL, FetchOpts{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = a.Release() }()
	data, err := a.Bytes()
	if err != nil {
		return nil, err
	}
	var page struct {
		Features []json.RawMessage `json:"features"`
	}
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, resilience.WithKind(resilience.KindPermanent,
			errors.Wrap(err, "malformed layer query response"))
	}
	return page.Features, nil
}

// throttle enforces the per-host minimum spacing between catalog calls.
func (e *stateGISExtractor) throttle(endpoint string) {
	host := hostOf(endpoint)
	e.gateMu.Lock()
	last, ok := e.lastCall[host]
	now := time.Now()
	var wait time.Duration
	if ok {
		if elapsed := now.Sub(last); elapsed < e.minDelay {
			wait = e.minDelay - elapsed
		}
	}
	e.lastCall[host] = now.Add(wait)
	e.gateMu.Unlock()
	if wait > 0 {
		time.Sleep(wait)
	}
}

// Transform parses the merged crawl artifact.
func (e *stateGISExtractor) Transform(a *Artifact) (FeatureIter, error) {
	data, err := a.Bytes()
	if err != nil {
		return nil, err
	}
	feats, err := featuresFromGeoJSON(data, a.Stub("state-gis"))
	if err != nil {
		return nil, err
	}
	return newSliceIter(feats), nil
}
