package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shadowatlas/shadow-atlas/atlas/registry"
	"github.com/shadowatlas/shadow-atlas/atlas/resilience"
	"github.com/shadowatlas/shadow-atlas/shared/hashutil"
)

// socrataPageSize matches the SODA API default ceiling for anonymous access.
const socrataPageSize = 5000

// socrataExtractor pages a Socrata geospatial export endpoint.
type socrataExtractor struct {
	base
}

func newSocrata(src *registry.SourceDescriptor, d *Downloader, h *resilience.Harness) *socrataExtractor {
	return &socrataExtractor{base: base{src: src, dl: d, h: h}}
}

// Download pulls every $offset page and merges them into one artifact.
func (e *socrataExtractor) Download(ctx context.Context, p Params) (*Artifact, error) {
	endpoint := expandEndpoint(e.src.EndpointTemplate, e.src, p.StateFIPS)
	merged := struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}{Type: "FeatureCollection"}

	var last *Artifact
	for offset := 0; ; offset += socrataPageSize {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		pageURL := fmt.Sprintf("%s%s$limit=%d&$offset=%d", endpoint, sep, socrataPageSize, offset)
		a, err := e.fetch(ctx, pageURL, FetchOpts{Accept: "application/geo+json"})
		if err != nil {
			return nil, err
		}
		data, err := a.Bytes()
		if err != nil {
			_ = a.Release()
			return nil, err
		}
		var page struct {
			Features []json.RawMessage `json:"features"`
		}
		if err := json.Unmarshal(data, &page); err != nil {
			_ = a.Release()
			return nil, resilience.WithKind(resilience.KindPermanent,
				errors.Wrap(err, "malformed socrata page"))
		}
		last = a
		_ = a.Release()
		merged.Features = append(merged.Features, page.Features...)
		if len(page.Features) < socrataPageSize {
			break
		}
	}
	data, err := json.Marshal(merged)
	if err != nil {
		return nil, err
	}
	out := &Artifact{
		SourceURL: endpoint,
		data:      data,
		Size:      int64(len(data)),
		FetchedAt: time.Now().UTC(),
	}
	if last != nil {
		out.HTTPStatus = last.HTTPStatus
		out.LastModified = last.LastModified
		out.FetchedAt = last.FetchedAt
	}
	out.ContentHash = hashutil.HashSHA256(data)
	return out, nil
}

// Transform parses the merged GeoJSON artifact.
func (e *socrataExtractor) Transform(a *Artifact) (FeatureIter, error) {
	data, err := a.Bytes()
	if err != nil {
		return nil, err
	}
	feats, err := featuresFromGeoJSON(data, a.Stub("socrata"))
	if err != nil {
		return nil, err
	}
	return newSliceIter(feats), nil
}
