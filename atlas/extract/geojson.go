package extract

import (
	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"
	"github.com/shadowatlas/shadow-atlas/atlas/resilience"
	"github.com/shadowatlas/shadow-atlas/shared/geoutil"
)

// featuresFromGeoJSON decodes a FeatureCollection payload into raw features,
// keeping only polygonal geometries. An empty result is reported as
// ErrEmptyParse so the harness treats it as transient.
func featuresFromGeoJSON(data []byte, stub *ProvenanceStub) ([]*RawFeature, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, resilience.WithKind(resilience.KindPermanent,
			errors.Wrap(err, "malformed GeoJSON payload"))
	}
	out := make([]*RawFeature, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil || !geoutil.IsPolygonal(f.Geometry) {
			continue
		}
		props := make(map[string]interface{}, len(f.Properties))
		for k, v := range f.Properties {
			props[k] = v
		}
		if f.ID != nil {
			props["__feature_id"] = f.ID
		}
		out = append(out, &RawFeature{
			Geometry: f.Geometry,
			Props:    props,
			Prov:     stub,
		})
	}
	if len(out) == 0 {
		return nil, resilience.ErrEmptyParse
	}
	return out, nil
}
