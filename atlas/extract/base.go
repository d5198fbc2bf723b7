package extract

import (
	"context"
	"net/url"

	"github.com/shadowatlas/shadow-atlas/atlas/registry"
	"github.com/shadowatlas/shadow-atlas/atlas/resilience"
)

// LayerFilter decides pre-download whether a discovered layer is worth
// fetching. The scheduler wires the semantic validator in here; extractors
// themselves know nothing about scoring.
type LayerFilter func(title, description string) bool

// LayerFiltered is implemented by extractor variants that discover candidate
// layers and can reject them before (or while) fetching. The scheduler
// installs the semantic validator through this interface.
type LayerFiltered interface {
	SetLayerFilter(LayerFilter)
}

func acceptAllLayers(string, string) bool { return true }

// base carries the pieces every extractor variant shares.
type base struct {
	src *registry.SourceDescriptor
	dl  *Downloader
	h   *resilience.Harness
}

// fetch runs one HTTP fetch through the resilience harness, keyed by host so
// a failing portal trips its own breaker without affecting others.
func (b *base) fetch(ctx context.Context, rawurl string, opts FetchOpts) (*Artifact, error) {
	endpoint := hostOf(rawurl)
	var artifact *Artifact
	err := b.h.Do(ctx, endpoint, func(ctx context.Context) error {
		a, err := b.dl.Fetch(ctx, rawurl, opts)
		if err != nil {
			return err
		}
		artifact = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return artifact, nil
}

// Metadata describes the wrapped source.
func (b *base) Metadata() SourceMetadata {
	return SourceMetadata{
		ID:        b.src.ID,
		Kind:      b.src.PortalKind,
		Layer:     b.src.Layer,
		Authority: b.src.Authority,
		Vintage:   b.src.VintageYear,
		Licence:   b.src.Licence,
		Endpoint:  b.src.EndpointTemplate,
	}
}

func hostOf(rawurl string) string {
	u, err := url.Parse(rawurl)
	if err != nil || u.Host == "" {
		return rawurl
	}
	return u.Host
}
