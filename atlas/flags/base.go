// Package flags defines beacon-of-the-pipeline specific command line flags.
package flags

import (
	"github.com/urfave/cli/v2"
)

var (
	// StatesFlag restricts the build to specific states.
	StatesFlag = &cli.StringFlag{
		Name:  "states",
		Usage: "Comma-separated state codes (USPS or FIPS) to build. Empty builds all states.",
	}
	// LayersFlag restricts the build to specific boundary layers.
	LayersFlag = &cli.StringFlag{
		Name:  "layers",
		Usage: "Comma-separated boundary layers to build (cd, sldu, sldl, county, unsd, elsd, scsd, place, vtd, aiannh, council). Empty builds all.",
	}
	// MaxParallelFlag bounds worker concurrency.
	MaxParallelFlag = &cli.IntFlag{
		Name:  "max-parallel",
		Usage: "Maximum concurrent work units.",
		Value: 6,
	}
	// RateLimitPerHostFlag throttles per-host request rates.
	RateLimitPerHostFlag = &cli.Float64Flag{
		Name:  "rate-limit-per-host",
		Usage: "Outbound requests per second allowed against a single host.",
		Value: 2.0,
	}
	// MinQualityScoreFlag sets the boundary admission floor.
	MinQualityScoreFlag = &cli.IntFlag{
		Name:  "min-quality-score",
		Usage: "Minimum quality score (0-100) a boundary needs to enter the tree.",
		Value: 70,
	}
	// NoHaltOnCompletenessFlag downgrades completeness failures to warnings.
	NoHaltOnCompletenessFlag = &cli.BoolFlag{
		Name:  "no-halt-on-completeness",
		Usage: "Continue past canonical GEOID completeness failures.",
	}
	// NoHaltOnTopologyFlag downgrades topology failures to warnings.
	NoHaltOnTopologyFlag = &cli.BoolFlag{
		Name:  "no-halt-on-topology",
		Usage: "Continue past topology gate failures.",
	}
	// NoHaltOnCoordinateFlag downgrades coordinate failures to warnings.
	NoHaltOnCoordinateFlag = &cli.BoolFlag{
		Name:  "no-halt-on-coordinate",
		Usage: "Continue past coordinate gate failures.",
	}
	// MerkleMinDepthFlag fixes the minimum tree depth.
	MerkleMinDepthFlag = &cli.IntFlag{
		Name:  "merkle-min-depth",
		Usage: "Minimum Merkle tree depth, regardless of leaf count.",
		Value: 14,
	}
	// ExportDirFlag selects where snapshot directories are written.
	ExportDirFlag = &cli.StringFlag{
		Name:  "export-dir",
		Usage: "Directory for exported snapshot files. Defaults to <datadir>/snapshots.",
	}
	// SnapshotNotesFlag attaches free-form notes to the sealed snapshot.
	SnapshotNotesFlag = &cli.StringFlag{
		Name:  "snapshot-notes",
		Usage: "Free-form notes recorded on the sealed snapshot.",
	}
	// TigerVintageFlag overrides the TIGER vintage year.
	TigerVintageFlag = &cli.IntFlag{
		Name:  "tiger-vintage",
		Usage: "TIGER/Line vintage year recorded on the snapshot.",
		Value: 2024,
	}
	// SourceIDsFlag restricts the build to specific registered sources.
	SourceIDsFlag = &cli.StringFlag{
		Name:  "sources",
		Usage: "Comma-separated source IDs to build. Empty builds every registered source.",
	}
	// DisableProgressFlag silences the terminal progress bar.
	DisableProgressFlag = &cli.BoolFlag{
		Name:  "disable-progress",
		Usage: "Disable the terminal progress bar.",
	}
)
