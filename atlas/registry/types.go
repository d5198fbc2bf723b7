// Package registry holds the immutable tables the pipeline is driven by:
// known sources, state geography, and the canonical GEOID sets each layer is
// checked against. Everything here is read-only after initialization.
package registry

import (
	"fmt"
	"regexp"
)

// PortalKind discriminates extractor variants at the registry level.
type PortalKind string

// Portal kinds understood by the extractor pool.
const (
	PortalArcGISRest     PortalKind = "arcgis-rest"
	PortalArcGISHub      PortalKind = "arcgis-hub"
	PortalSocrata        PortalKind = "socrata"
	PortalCKAN           PortalKind = "ckan"
	PortalOSMOverpass    PortalKind = "osm-overpass"
	PortalRDH            PortalKind = "rdh"
	PortalTigerFTP       PortalKind = "tiger-ftp"
	PortalCustomStateGIS PortalKind = "custom-state-gis"
)

// AuthorityTier ranks source precedence when two sources disagree.
type AuthorityTier int

// Authority tiers, higher is more authoritative.
const (
	AuthorityThirdParty AuthorityTier = 1
	AuthorityMunicipal  AuthorityTier = 2
	AuthorityCounty     AuthorityTier = 3
	AuthorityState      AuthorityTier = 4
	AuthorityFederal    AuthorityTier = 5
)

func (t AuthorityTier) String() string {
	switch t {
	case AuthorityFederal:
		return "federal-census"
	case AuthorityState:
		return "state-agency"
	case AuthorityCounty:
		return "county-agency"
	case AuthorityMunicipal:
		return "municipal"
	case AuthorityThirdParty:
		return "third-party-aggregator"
	default:
		return fmt.Sprintf("authority-%d", int(t))
	}
}

// Layer identifies a boundary layer type.
type Layer string

// Boundary layers tracked by the atlas.
const (
	LayerCongressional    Layer = "cd"
	LayerStateLegUpper    Layer = "sldu"
	LayerStateLegLower    Layer = "sldl"
	LayerCounty           Layer = "county"
	LayerSchoolUnified    Layer = "unsd"
	LayerSchoolElementary Layer = "elsd"
	LayerSchoolSecondary  Layer = "scsd"
	LayerPlace            Layer = "place"
	LayerVTD              Layer = "vtd"
	LayerAIANNH           Layer = "aiannh"
	LayerCouncilDistrict  Layer = "council"
)

// AllLayers lists every known layer in canonical order.
func AllLayers() []Layer {
	return []Layer{
		LayerCongressional,
		LayerStateLegUpper,
		LayerStateLegLower,
		LayerCounty,
		LayerSchoolUnified,
		LayerSchoolElementary,
		LayerSchoolSecondary,
		LayerPlace,
		LayerVTD,
		LayerAIANNH,
		LayerCouncilDistrict,
	}
}

var geoidPatterns = map[Layer]*regexp.Regexp{
	LayerCongressional:    regexp.MustCompile(`^\d{4}$`),
	LayerStateLegUpper:    regexp.MustCompile(`^\d{5}$`),
	LayerStateLegLower:    regexp.MustCompile(`^\d{5}$`),
	LayerCounty:           regexp.MustCompile(`^\d{5}$`),
	LayerSchoolUnified:    regexp.MustCompile(`^\d{7}$`),
	LayerSchoolElementary: regexp.MustCompile(`^\d{7}$`),
	LayerSchoolSecondary:  regexp.MustCompile(`^\d{7}$`),
	LayerPlace:            regexp.MustCompile(`^\d{7}$`),
	LayerVTD:              regexp.MustCompile(`^\d{11,}$`),
	LayerAIANNH:           regexp.MustCompile(`^[0-9]{4,8}[A-Z]?$`),
	LayerCouncilDistrict:  regexp.MustCompile(`^\d{7}-\d{1,2}$`),
}

// GEOIDPattern returns the compiled GEOID regexp for a layer, or nil for an
// unknown layer.
func GEOIDPattern(layer Layer) *regexp.Regexp {
	return geoidPatterns[layer]
}

// ValidGEOID reports whether id matches the layer's canonical format.
func ValidGEOID(layer Layer, id string) bool {
	re := geoidPatterns[layer]
	return re != nil && re.MatchString(id)
}

// SourceDescriptor describes one registered data source. Immutable once
// registered.
type SourceDescriptor struct {
	ID               string        `yaml:"id"`
	Name             string        `yaml:"name"`
	PortalKind       PortalKind    `yaml:"portal_kind"`
	EndpointTemplate string        `yaml:"endpoint_template"`
	Layer            Layer         `yaml:"layer"`
	Authority        AuthorityTier `yaml:"authority"`
	// ExpectedCounts maps state FIPS to the expected feature count. The empty
	// key holds a nationwide expectation.
	ExpectedCounts map[string]int `yaml:"expected_counts,omitempty"`
	VintageYear    int            `yaml:"vintage_year"`
	Licence        string         `yaml:"licence"`
	// States limits the source to specific state FIPS codes; empty means all.
	States []string `yaml:"states,omitempty"`
}

// Validate rejects malformed descriptors before registration.
func (s *SourceDescriptor) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("source descriptor missing id")
	}
	if s.EndpointTemplate == "" {
		return fmt.Errorf("source %s missing endpoint template", s.ID)
	}
	switch s.PortalKind {
	case PortalArcGISRest, PortalArcGISHub, PortalSocrata, PortalCKAN,
		PortalOSMOverpass, PortalRDH, PortalTigerFTP, PortalCustomStateGIS:
	default:
		return fmt.Errorf("source %s has unknown portal kind %q", s.ID, s.PortalKind)
	}
	if geoidPatterns[s.Layer] == nil {
		return fmt.Errorf("source %s has unknown layer %q", s.ID, s.Layer)
	}
	if s.Authority < AuthorityThirdParty || s.Authority > AuthorityFederal {
		return fmt.Errorf("source %s has authority tier %d out of range", s.ID, s.Authority)
	}
	return nil
}
