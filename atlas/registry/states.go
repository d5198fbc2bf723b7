package registry

// StateInfo carries the per-state geography facts the validators depend on.
type StateInfo struct {
	FIPS  string
	USPS  string
	Name  string
	// Bounding box as (minLon, minLat, maxLon, maxLat).
	BBox [4]float64
	// Territory marks non-state areas outside the continental suspicion box.
	Territory bool
	// CongressionalDistricts under the post-2020 apportionment.
	CongressionalDistricts int
}

// states is keyed by FIPS code. Bounding boxes are generous hulls, not exact
// outlines; the geographic gate adds its own tolerance on top.
var states = map[string]StateInfo{
	"01": {FIPS: "01", USPS: "AL", Name: "Alabama", BBox: [4]float64{-88.47, 30.22, -84.89, 35.01}, CongressionalDistricts: 7},
	"02": {FIPS: "02", USPS: "AK", Name: "Alaska", BBox: [4]float64{-179.15, 51.21, 179.78, 71.44}, CongressionalDistricts: 1},
	"04": {FIPS: "04", USPS: "AZ", Name: "Arizona", BBox: [4]float64{-114.82, 31.33, -109.05, 37.00}, CongressionalDistricts: 9},
	"05": {FIPS: "05", USPS: "AR", Name: "Arkansas", BBox: [4]float64{-94.62, 33.00, -89.64, 36.50}, CongressionalDistricts: 4},
	"06": {FIPS: "06", USPS: "CA", Name: "California", BBox: [4]float64{-124.41, 32.53, -114.13, 42.01}, CongressionalDistricts: 52},
	"08": {FIPS: "08", USPS: "CO", Name: "Colorado", BBox: [4]float64{-109.06, 36.99, -102.04, 41.00}, CongressionalDistricts: 8},
	"09": {FIPS: "09", USPS: "CT", Name: "Connecticut", BBox: [4]float64{-73.73, 40.98, -71.79, 42.05}, CongressionalDistricts: 5},
	"10": {FIPS: "10", USPS: "DE", Name: "Delaware", BBox: [4]float64{-75.79, 38.45, -75.05, 39.84}, CongressionalDistricts: 1},
	"11": {FIPS: "11", USPS: "DC", Name: "District of Columbia", BBox: [4]float64{-77.12, 38.79, -76.91, 38.99}},
	"12": {FIPS: "12", USPS: "FL", Name: "Florida", BBox: [4]float64{-87.63, 24.52, -80.03, 31.00}, CongressionalDistricts: 28},
	"13": {FIPS: "13", USPS: "GA", Name: "Georgia", BBox: [4]float64{-85.61, 30.36, -80.84, 35.00}, CongressionalDistricts: 14},
	"15": {FIPS: "15", USPS: "HI", Name: "Hawaii", BBox: [4]float64{-160.25, 18.91, -154.81, 22.24}, CongressionalDistricts: 2},
	"16": {FIPS: "16", USPS: "ID", Name: "Idaho", BBox: [4]float64{-117.24, 41.99, -111.04, 49.00}, CongressionalDistricts: 2},
	"17": {FIPS: "17", USPS: "IL", Name: "Illinois", BBox: [4]float64{-91.51, 36.97, -87.02, 42.51}, CongressionalDistricts: 17},
	"18": {FIPS: "18", USPS: "IN", Name: "Indiana", BBox: [4]float64{-88.10, 37.77, -84.78, 41.76}, CongressionalDistricts: 9},
	"19": {FIPS: "19", USPS: "IA", Name: "Iowa", BBox: [4]float64{-96.64, 40.38, -90.14, 43.50}, CongressionalDistricts: 4},
	"20": {FIPS: "20", USPS: "KS", Name: "Kansas", BBox: [4]float64{-102.05, 36.99, -94.59, 40.00}, CongressionalDistricts: 4},
	"21": {FIPS: "21", USPS: "KY", Name: "Kentucky", BBox: [4]float64{-89.57, 36.50, -81.96, 39.15}, CongressionalDistricts: 6},
	"22": {FIPS: "22", USPS: "LA", Name: "Louisiana", BBox: [4]float64{-94.04, 28.93, -88.82, 33.02}, CongressionalDistricts: 6},
	"23": {FIPS: "23", USPS: "ME", Name: "Maine", BBox: [4]float64{-71.08, 42.98, -66.95, 47.46}, CongressionalDistricts: 2},
	"24": {FIPS: "24", USPS: "MD", Name: "Maryland", BBox: [4]float64{-79.49, 37.91, -75.05, 39.72}, CongressionalDistricts: 8},
	"25": {FIPS: "25", USPS: "MA", Name: "Massachusetts", BBox: [4]float64{-73.51, 41.24, -69.93, 42.89}, CongressionalDistricts: 9},
	"26": {FIPS: "26", USPS: "MI", Name: "Michigan", BBox: [4]float64{-90.42, 41.70, -82.41, 48.30}, CongressionalDistricts: 13},
	"27": {FIPS: "27", USPS: "MN", Name: "Minnesota", BBox: [4]float64{-97.24, 43.50, -89.49, 49.38}, CongressionalDistricts: 8},
	"28": {FIPS: "28", USPS: "MS", Name: "Mississippi", BBox: [4]float64{-91.66, 30.17, -88.10, 35.00}, CongressionalDistricts: 4},
	"29": {FIPS: "29", USPS: "MO", Name: "Missouri", BBox: [4]float64{-95.77, 35.99, -89.10, 40.61}, CongressionalDistricts: 8},
	"30": {FIPS: "30", USPS: "MT", Name: "Montana", BBox: [4]float64{-116.05, 44.36, -104.04, 49.00}, CongressionalDistricts: 2},
	"31": {FIPS: "31", USPS: "NE", Name: "Nebraska", BBox: [4]float64{-104.05, 40.00, -95.31, 43.00}, CongressionalDistricts: 3},
	"32": {FIPS: "32", USPS: "NV", Name: "Nevada", BBox: [4]float64{-120.01, 35.00, -114.04, 42.00}, CongressionalDistricts: 4},
	"33": {FIPS: "33", USPS: "NH", Name: "New Hampshire", BBox: [4]float64{-72.56, 42.70, -70.61, 45.31}, CongressionalDistricts: 2},
	"34": {FIPS: "34", USPS: "NJ", Name: "New Jersey", BBox: [4]float64{-75.56, 38.93, -73.89, 41.36}, CongressionalDistricts: 12},
	"35": {FIPS: "35", USPS: "NM", Name: "New Mexico", BBox: [4]float64{-109.05, 31.33, -103.00, 37.00}, CongressionalDistricts: 3},
	"36": {FIPS: "36", USPS: "NY", Name: "New York", BBox: [4]float64{-79.76, 40.50, -71.86, 45.02}, CongressionalDistricts: 26},
	"37": {FIPS: "37", USPS: "NC", Name: "North Carolina", BBox: [4]float64{-84.32, 33.84, -75.46, 36.59}, CongressionalDistricts: 14},
	"38": {FIPS: "38", USPS: "ND", Name: "North Dakota", BBox: [4]float64{-104.05, 45.94, -96.55, 49.00}, CongressionalDistricts: 1},
	"39": {FIPS: "39", USPS: "OH", Name: "Ohio", BBox: [4]float64{-84.82, 38.40, -80.52, 41.98}, CongressionalDistricts: 15},
	"40": {FIPS: "40", USPS: "OK", Name: "Oklahoma", BBox: [4]float64{-103.00, 33.62, -94.43, 37.00}, CongressionalDistricts: 5},
	"41": {FIPS: "41", USPS: "OR", Name: "Oregon", BBox: [4]float64{-124.57, 41.99, -116.46, 46.29}, CongressionalDistricts: 6},
	"42": {FIPS: "42", USPS: "PA", Name: "Pennsylvania", BBox: [4]float64{-80.52, 39.72, -74.69, 42.27}, CongressionalDistricts: 17},
	"44": {FIPS: "44", USPS: "RI", Name: "Rhode Island", BBox: [4]float64{-71.86, 41.15, -71.12, 42.02}, CongressionalDistricts: 2},
	"45": {FIPS: "45", USPS: "SC", Name: "South Carolina", BBox: [4]float64{-83.35, 32.03, -78.54, 35.22}, CongressionalDistricts: 7},
	"46": {FIPS: "46", USPS: "SD", Name: "South Dakota", BBox: [4]float64{-104.06, 42.48, -96.44, 45.95}, CongressionalDistricts: 1},
	"47": {FIPS: "47", USPS: "TN", Name: "Tennessee", BBox: [4]float64{-90.31, 34.98, -81.65, 36.68}, CongressionalDistricts: 9},
	"48": {FIPS: "48", USPS: "TX", Name: "Texas", BBox: [4]float64{-106.65, 25.84, -93.51, 36.50}, CongressionalDistricts: 38},
	"49": {FIPS: "49", USPS: "UT", Name: "Utah", BBox: [4]float64{-114.05, 37.00, -109.04, 42.00}, CongressionalDistricts: 4},
	"50": {FIPS: "50", USPS: "VT", Name: "Vermont", BBox: [4]float64{-73.44, 42.73, -71.46, 45.02}, CongressionalDistricts: 1},
	"51": {FIPS: "51", USPS: "VA", Name: "Virginia", BBox: [4]float64{-83.68, 36.54, -75.24, 39.47}, CongressionalDistricts: 11},
	"53": {FIPS: "53", USPS: "WA", Name: "Washington", BBox: [4]float64{-124.85, 45.54, -116.92, 49.00}, CongressionalDistricts: 10},
	"54": {FIPS: "54", USPS: "WV", Name: "West Virginia", BBox: [4]float64{-82.64, 37.20, -77.72, 40.64}, CongressionalDistricts: 2},
	"55": {FIPS: "55", USPS: "WI", Name: "Wisconsin", BBox: [4]float64{-92.89, 42.49, -86.25, 47.08}, CongressionalDistricts: 8},
	"56": {FIPS: "56", USPS: "WY", Name: "Wyoming", BBox: [4]float64{-111.06, 40.99, -104.05, 45.01}, CongressionalDistricts: 1},
	"60": {FIPS: "60", USPS: "AS", Name: "American Samoa", BBox: [4]float64{-171.09, -14.55, -168.14, -11.04}, Territory: true},
	"66": {FIPS: "66", USPS: "GU", Name: "Guam", BBox: [4]float64{144.62, 13.23, 145.01, 13.65}, Territory: true},
	"69": {FIPS: "69", USPS: "MP", Name: "Northern Mariana Islands", BBox: [4]float64{144.89, 14.10, 146.07, 20.56}, Territory: true},
	"72": {FIPS: "72", USPS: "PR", Name: "Puerto Rico", BBox: [4]float64{-67.95, 17.88, -65.22, 18.52}, Territory: true},
	"78": {FIPS: "78", USPS: "VI", Name: "U.S. Virgin Islands", BBox: [4]float64{-65.09, 17.67, -64.56, 18.41}, Territory: true},
}

// ContinentalUSBBox is the suspicion hull used by the coordinate gate.
var ContinentalUSBBox = [4]float64{-124.85, 24.52, -66.95, 49.38}

// dualSystemStates intentionally run overlapping elementary and secondary
// school districts over the same territory (CT, IL, ME, MA, MT, NH, NJ, RI, VT).
var dualSystemStates = map[string]bool{
	"09": true, "17": true, "23": true, "25": true, "30": true,
	"33": true, "34": true, "44": true, "50": true,
}

// StateByFIPS returns state info for a FIPS code.
func StateByFIPS(fips string) (StateInfo, bool) {
	s, ok := states[fips]
	return s, ok
}

// KnownStateFIPS reports whether the FIPS code is registered.
func KnownStateFIPS(fips string) bool {
	_, ok := states[fips]
	return ok
}

// AllStateFIPS returns every registered FIPS code, unsorted.
func AllStateFIPS() []string {
	out := make([]string, 0, len(states))
	for f := range states {
		out = append(out, f)
	}
	return out
}

// IsDualSystemState reports whether ELSD/SCSD overlap is legal in the state.
func IsDualSystemState(fips string) bool {
	return dualSystemStates[fips]
}

// IsTerritory reports whether the FIPS code names a territory, which is
// exempt from the continental suspicion flag.
func IsTerritory(fips string) bool {
	s, ok := states[fips]
	return ok && s.Territory
}

// FIPSByUSPS resolves a two-letter postal abbreviation to a FIPS code.
func FIPSByUSPS(usps string) (string, bool) {
	for f, s := range states {
		if s.USPS == usps {
			return f, true
		}
	}
	return "", false
}
