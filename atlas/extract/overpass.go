package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"github.com/shadowatlas/shadow-atlas/atlas/registry"
	"github.com/shadowatlas/shadow-atlas/atlas/resilience"
)

// overpassExtractor queries the OSM Overpass API for administrative boundary
// relations and assembles polygons from way geometry. Overpass has no layer
// catalog to introspect; the layer filter runs per relation against its name
// tag instead.
type overpassExtractor struct {
	base
	layerFilter LayerFilter
}

func newOverpass(src *registry.SourceDescriptor, d *Downloader, h *resilience.Harness) *overpassExtractor {
	return &overpassExtractor{
		base:        base{src: src, dl: d, h: h},
		layerFilter: acceptAllLayers,
	}
}

// SetLayerFilter installs the per-relation acceptance gate.
func (e *overpassExtractor) SetLayerFilter(f LayerFilter) {
	if f != nil {
		e.layerFilter = f
	}
}

// overpassQuery asks for boundary relations within a state, with full
// per-member geometry (`out geom`).
func overpassQuery(stateFIPS string) string {
	area := ""
	if s, ok := registry.StateByFIPS(stateFIPS); ok {
		area = s.Name
	}
	return fmt.Sprintf(`[out:json][timeout:180];
area["name"="%s"]["admin_level"="4"]->.state;
relation(area.state)["boundary"="administrative"]["admin_level"~"^(7|8|9)$"];
out geom tags;`, area)
}

type overpassElement struct {
	Type     string            `json:"type"`
	ID       int64             `json:"id"`
	Tags     map[string]string `json:"tags"`
	Geometry []struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"geometry"`
	Members []struct {
		Type     string `json:"type"`
		Role     string `json:"role"`
		Geometry []struct {
			Lat float64 `json:"lat"`
			Lon float64 `json:"lon"`
		} `json:"geometry"`
	} `json:"members"`
}

// Download POSTs the query to the interpreter endpoint.
func (e *overpassExtractor) Download(ctx context.Context, p Params) (*Artifact, error) {
	endpoint := expandEndpoint(e.src.EndpointTemplate, e.src, p.StateFIPS)
	body := url.Values{"data": {overpassQuery(p.StateFIPS)}}.Encode()
	return e.fetch(ctx, endpoint, FetchOpts{Body: body, Accept: "application/json"})
}

// Transform assembles polygons from relation members and way geometries.
func (e *overpassExtractor) Transform(a *Artifact) (FeatureIter, error) {
	data, err := a.Bytes()
	if err != nil {
		return nil, err
	}
	var payload struct {
		Elements []overpassElement `json:"elements"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, resilience.WithKind(resilience.KindPermanent,
			errors.Wrap(err, "malformed overpass payload"))
	}
	stub := a.Stub("osm-overpass")
	feats := make([]*RawFeature, 0, len(payload.Elements))
	for _, el := range payload.Elements {
		if !e.layerFilter(el.Tags["name"], el.Tags["description"]) {
			log.WithField("name", el.Tags["name"]).Debug("Relation rejected pre-acceptance")
			continue
		}
		geom := overpassGeometry(el)
		if geom == nil {
			continue
		}
		props := make(map[string]interface{}, len(el.Tags)+2)
		for k, v := range el.Tags {
			props[k] = v
		}
		props["osm_type"] = el.Type
		props["osm_id"] = el.ID
		feats = append(feats, &RawFeature{Geometry: geom, Props: props, Prov: stub})
	}
	if len(feats) == 0 {
		return nil, resilience.ErrEmptyParse
	}
	return newSliceIter(feats), nil
}

// overpassGeometry builds a polygon from a closed way or a relation's outer
// and inner members. Unclosed member chains are dropped rather than stitched;
// the topology gate would reject them anyway.
func overpassGeometry(el overpassElement) orb.Geometry {
	switch el.Type {
	case "way":
		ring := make(orb.Ring, 0, len(el.Geometry))
		for _, pt := range el.Geometry {
			ring = append(ring, orb.Point{pt.Lon, pt.Lat})
		}
		if len(ring) < 4 || ring[0] != ring[len(ring)-1] {
			return nil
		}
		return orb.Polygon{ring}
	case "relation":
		var outers, inners []orb.Ring
		for _, m := range el.Members {
			if m.Type != "way" || len(m.Geometry) == 0 {
				continue
			}
			ring := make(orb.Ring, 0, len(m.Geometry))
			for _, pt := range m.Geometry {
				ring = append(ring, orb.Point{pt.Lon, pt.Lat})
			}
			if len(ring) < 4 || ring[0] != ring[len(ring)-1] {
				continue
			}
			switch m.Role {
			case "inner":
				inners = append(inners, ring)
			default:
				outers = append(outers, ring)
			}
		}
		if len(outers) == 0 {
			return nil
		}
		if len(outers) == 1 {
			poly := orb.Polygon{outers[0]}
			poly = append(poly, inners...)
			return poly
		}
		mp := make(orb.MultiPolygon, 0, len(outers))
		for _, o := range outers {
			mp = append(mp, orb.Polygon{o})
		}
		// Inner rings of multi-outer relations are attached to the first
		// containing outer; ambiguous holes are rare at city scale.
		for _, in := range inners {
			for i := range mp {
				if len(in) > 0 && ringContains(mp[i][0], in[0]) {
					mp[i] = append(mp[i], in)
					break
				}
			}
		}
		return mp
	}
	return nil
}

func ringContains(ring orb.Ring, p orb.Point) bool {
	inside := false
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		if (ring[i][1] > p[1]) != (ring[j][1] > p[1]) &&
			p[0] < (ring[j][0]-ring[i][0])*(p[1]-ring[i][1])/(ring[j][1]-ring[i][1])+ring[i][0] {
			inside = !inside
		}
	}
	return inside
}
