package registry

import (
	"io/ioutil"
	"sort"
	"sync"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

// Registry is the typed table of known sources. It is populated at init
// (built-ins plus an optional YAML file) and read-only afterwards.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]*SourceDescriptor
	sealed  bool
}

// NewRegistry returns a registry preloaded with the built-in sources.
func NewRegistry() *Registry {
	r := &Registry{sources: map[string]*SourceDescriptor{}}
	for _, s := range builtinSources() {
		// Built-ins are compiled in and always valid.
		r.sources[s.ID] = s
	}
	return r
}

// Register adds a source descriptor. Registration fails once the registry is
// sealed or when the descriptor is malformed or duplicated.
func (r *Registry) Register(s *SourceDescriptor) error {
	if err := s.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return errors.New("registry is sealed")
	}
	if _, dup := r.sources[s.ID]; dup {
		return errors.Errorf("duplicate source id %q", s.ID)
	}
	cp := *s
	r.sources[s.ID] = &cp
	return nil
}

// LoadFile registers every descriptor in a YAML sources file.
func (r *Registry) LoadFile(path string) error {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "could not read sources file")
	}
	var doc struct {
		Sources []*SourceDescriptor `yaml:"sources"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return errors.Wrap(err, "could not parse sources file")
	}
	for _, s := range doc.Sources {
		if err := r.Register(s); err != nil {
			return err
		}
	}
	return nil
}

// Seal freezes the registry. All pipeline stages see an immutable table.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

// Source returns a descriptor by id.
func (r *Registry) Source(id string) (*SourceDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sources[id]
	return s, ok
}

// Sources returns all descriptors sorted by id.
func (r *Registry) Sources() []*SourceDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*SourceDescriptor, 0, len(r.sources))
	for _, s := range r.sources {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SourcesForLayer returns all descriptors covering the given layer, sorted by
// descending authority then id, so the most authoritative source leads.
func (r *Registry) SourcesForLayer(layer Layer) []*SourceDescriptor {
	all := r.Sources()
	out := make([]*SourceDescriptor, 0)
	for _, s := range all {
		if s.Layer == layer {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Authority != out[j].Authority {
			return out[i].Authority > out[j].Authority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// builtinSources holds the baseline every build starts from: the federal
// sources plus the third-party RDH precinct and OSM council sources. State
// and municipal portals are registered from the sources file.
func builtinSources() []*SourceDescriptor {
	vintage := 2024
	return []*SourceDescriptor{
		{
			ID:               "tiger-cd",
			Name:             "Census TIGER/Line congressional districts",
			PortalKind:       PortalTigerFTP,
			EndpointTemplate: "ftp://ftp2.census.gov/geo/tiger/TIGER{vintage}/CD/tl_{vintage}_us_cd119.zip",
			Layer:            LayerCongressional,
			Authority:        AuthorityFederal,
			VintageYear:      vintage,
			Licence:          "public-domain",
		},
		{
			ID:               "tiger-county",
			Name:             "Census TIGER/Line counties",
			PortalKind:       PortalTigerFTP,
			EndpointTemplate: "ftp://ftp2.census.gov/geo/tiger/TIGER{vintage}/COUNTY/tl_{vintage}_us_county.zip",
			Layer:            LayerCounty,
			Authority:        AuthorityFederal,
			VintageYear:      vintage,
			Licence:          "public-domain",
		},
		{
			ID:               "tiger-sldu",
			Name:             "Census TIGER/Line state legislative upper chambers",
			PortalKind:       PortalTigerFTP,
			EndpointTemplate: "ftp://ftp2.census.gov/geo/tiger/TIGER{vintage}/SLDU/tl_{vintage}_{state}_sldu.zip",
			Layer:            LayerStateLegUpper,
			Authority:        AuthorityFederal,
			VintageYear:      vintage,
			Licence:          "public-domain",
		},
		{
			ID:               "tiger-sldl",
			Name:             "Census TIGER/Line state legislative lower chambers",
			PortalKind:       PortalTigerFTP,
			EndpointTemplate: "ftp://ftp2.census.gov/geo/tiger/TIGER{vintage}/SLDL/tl_{vintage}_{state}_sldl.zip",
			Layer:            LayerStateLegLower,
			Authority:        AuthorityFederal,
			VintageYear:      vintage,
			Licence:          "public-domain",
		},
		{
			ID:               "tiger-unsd",
			Name:             "Census TIGER/Line unified school districts",
			PortalKind:       PortalTigerFTP,
			EndpointTemplate: "ftp://ftp2.census.gov/geo/tiger/TIGER{vintage}/UNSD/tl_{vintage}_{state}_unsd.zip",
			Layer:            LayerSchoolUnified,
			Authority:        AuthorityFederal,
			VintageYear:      vintage,
			Licence:          "public-domain",
		},
		{
			ID:               "tiger-elsd",
			Name:             "Census TIGER/Line elementary school districts",
			PortalKind:       PortalTigerFTP,
			EndpointTemplate: "ftp://ftp2.census.gov/geo/tiger/TIGER{vintage}/ELSD/tl_{vintage}_{state}_elsd.zip",
			Layer:            LayerSchoolElementary,
			Authority:        AuthorityFederal,
			VintageYear:      vintage,
			Licence:          "public-domain",
		},
		{
			ID:               "tiger-scsd",
			Name:             "Census TIGER/Line secondary school districts",
			PortalKind:       PortalTigerFTP,
			EndpointTemplate: "ftp://ftp2.census.gov/geo/tiger/TIGER{vintage}/SCSD/tl_{vintage}_{state}_scsd.zip",
			Layer:            LayerSchoolSecondary,
			Authority:        AuthorityFederal,
			VintageYear:      vintage,
			Licence:          "public-domain",
		},
		{
			ID:               "tiger-place",
			Name:             "Census TIGER/Line places",
			PortalKind:       PortalTigerFTP,
			EndpointTemplate: "ftp://ftp2.census.gov/geo/tiger/TIGER{vintage}/PLACE/tl_{vintage}_{state}_place.zip",
			Layer:            LayerPlace,
			Authority:        AuthorityFederal,
			VintageYear:      vintage,
			Licence:          "public-domain",
		},
		{
			ID:               "tiger-aiannh",
			Name:             "Census TIGER/Line tribal and native areas",
			PortalKind:       PortalTigerFTP,
			EndpointTemplate: "ftp://ftp2.census.gov/geo/tiger/TIGER{vintage}/AIANNH/tl_{vintage}_us_aiannh.zip",
			Layer:            LayerAIANNH,
			Authority:        AuthorityFederal,
			VintageYear:      vintage,
			Licence:          "public-domain",
		},
		{
			ID:               "rdh-vtd",
			Name:             "Redistricting Data Hub voting tabulation districts",
			PortalKind:       PortalRDH,
			EndpointTemplate: "https://redistrictingdatahub.org/api/v1/vtd/{state}.geojson",
			Layer:            LayerVTD,
			Authority:        AuthorityThirdParty,
			VintageYear:      vintage,
			Licence:          "rdh-terms",
		},
		{
			ID:               "osm-council",
			Name:             "OpenStreetMap municipal council districts",
			PortalKind:       PortalOSMOverpass,
			EndpointTemplate: "https://overpass-api.de/api/interpreter",
			Layer:            LayerCouncilDistrict,
			Authority:        AuthorityThirdParty,
			VintageYear:      vintage,
			Licence:          "odbl",
		},
	}
}
