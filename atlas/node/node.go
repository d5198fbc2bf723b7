// Package node wires the pipeline services together and runs one catalog
// build: registry → scheduler → validation gate → normalizer → commitment →
// snapshot.
package node

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/shadowatlas/shadow-atlas/atlas/commit"
	"github.com/shadowatlas/shadow-atlas/atlas/crossval"
	"github.com/shadowatlas/shadow-atlas/atlas/extract"
	"github.com/shadowatlas/shadow-atlas/atlas/flags"
	"github.com/shadowatlas/shadow-atlas/atlas/normalize"
	"github.com/shadowatlas/shadow-atlas/atlas/registry"
	"github.com/shadowatlas/shadow-atlas/atlas/resilience"
	"github.com/shadowatlas/shadow-atlas/atlas/scheduler"
	"github.com/shadowatlas/shadow-atlas/atlas/snapshot"
	"github.com/shadowatlas/shadow-atlas/atlas/validate"
	"github.com/shadowatlas/shadow-atlas/shared/cmd"
	"github.com/shadowatlas/shadow-atlas/shared/fileutil"
	"github.com/shadowatlas/shadow-atlas/shared/params"
	"github.com/shadowatlas/shadow-atlas/shared/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var log = logrus.WithField("prefix", "node")

// Exit codes for the pipeline binary.
const (
	ExitOK          = 0
	ExitHalt        = 2
	ExitConfigError = 3
	ExitUnexpected  = 4
)

// ExitCodeError carries a process exit code through the CLI layer.
type ExitCodeError struct {
	Code int
	Err  error
}

func (e *ExitCodeError) Error() string { return e.Err.Error() }
func (e *ExitCodeError) Unwrap() error { return e.Err }

// AtlasNode holds the configured pipeline services for one build.
type AtlasNode struct {
	cliCtx *cli.Context
	ctx    context.Context
	cancel context.CancelFunc

	cfg       *params.AtlasConfig
	registry  *registry.Registry
	store     *snapshot.Store
	sched     *scheduler.Service
	prom      *prometheus.Service
	exportDir string
	dataDir   string
	stop      chan struct{}
}

// New creates a node instance, resolves configuration from flags, and wires
// every service the pipeline needs.
func New(cliCtx *cli.Context) (*AtlasNode, error) {
	cfg, err := configFromFlags(cliCtx)
	if err != nil {
		return nil, &ExitCodeError{Code: ExitConfigError, Err: err}
	}
	params.OverrideAtlasConfig(cfg)

	dataDir := cliCtx.String(cmd.DataDirFlag.Name)
	if dataDir == "" {
		return nil, &ExitCodeError{Code: ExitConfigError, Err: errors.New("datadir is required")}
	}
	if err := fileutil.MkdirAll(dataDir); err != nil {
		return nil, &ExitCodeError{Code: ExitConfigError, Err: err}
	}
	tempDir := filepath.Join(dataDir, "tmp")
	if err := fileutil.MkdirAll(tempDir); err != nil {
		return nil, &ExitCodeError{Code: ExitConfigError, Err: err}
	}

	reg := registry.NewRegistry()
	if sourcesFile := cliCtx.String(cmd.SourcesFileFlag.Name); sourcesFile != "" {
		if err := reg.LoadFile(sourcesFile); err != nil {
			return nil, &ExitCodeError{Code: ExitConfigError, Err: err}
		}
	}
	reg.Seal()

	store, err := snapshot.NewStore(dataDir)
	if err != nil {
		return nil, err
	}
	if cliCtx.Bool(cmd.ClearDB.Name) {
		if err := store.Close(); err != nil {
			return nil, err
		}
		if err := store.ClearDB(); err != nil {
			return nil, err
		}
		store, err = snapshot.NewStore(dataDir)
		if err != nil {
			return nil, err
		}
	}

	states, err := parseStates(cliCtx.String(flags.StatesFlag.Name))
	if err != nil {
		return nil, &ExitCodeError{Code: ExitConfigError, Err: err}
	}
	layers, err := parseLayers(cliCtx.String(flags.LayersFlag.Name))
	if err != nil {
		return nil, &ExitCodeError{Code: ExitConfigError, Err: err}
	}

	ctx, cancel := context.WithCancel(context.Background())
	harness := resilience.NewHarness(cfg)
	downloader := extract.NewDownloader(cfg, tempDir)
	gate := validate.NewGate(cfg, func(layer registry.Layer, f *extract.RawFeature) string {
		return normalize.ExtractGEOID(layer, f)
	})
	normalizer := normalize.New(cfg, nil)

	sched := scheduler.NewService(ctx, &scheduler.Config{
		Registry:   reg,
		Harness:    harness,
		Downloader: downloader,
		Gate:       gate,
		Normalizer: normalizer,
		Atlas:      cfg,
		States:     states,
		Layers:     layers,
		Sources:    splitList(cliCtx.String(flags.SourceIDsFlag.Name)),
	})

	exportDir := cliCtx.String(flags.ExportDirFlag.Name)
	if exportDir == "" {
		exportDir = filepath.Join(dataDir, "snapshots")
	}

	node := &AtlasNode{
		cliCtx:    cliCtx,
		ctx:       ctx,
		cancel:    cancel,
		cfg:       cfg,
		registry:  reg,
		store:     store,
		sched:     sched,
		exportDir: exportDir,
		dataDir:   dataDir,
		stop:      make(chan struct{}),
	}
	if !cliCtx.Bool(cmd.DisableMonitoringFlag.Name) {
		node.prom = prometheus.NewService(fmt.Sprintf(":%d", cliCtx.Int(cmd.MonitoringPortFlag.Name)))
	}
	return node, nil
}

// Start runs the pipeline to completion, honoring SIGINT/SIGTERM.
func (n *AtlasNode) Start() error {
	if n.prom != nil {
		n.prom.Start()
	}
	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigc)
		select {
		case <-sigc:
			log.Info("Got interrupt, shutting down...")
			n.cancel()
		case <-n.stop:
		}
	}()
	defer n.Close()

	err := n.run()
	if err == nil {
		return nil
	}
	if halt, ok := validate.AsHalt(err); ok {
		log.WithFields(logrus.Fields{
			"stage": halt.Stage,
			"layer": halt.Layer,
			"state": halt.StateFIPS,
		}).Error(halt.Details)
		return &ExitCodeError{Code: ExitHalt, Err: err}
	}
	var exit *ExitCodeError
	if errors.As(err, &exit) {
		return err
	}
	return &ExitCodeError{Code: ExitUnexpected, Err: err}
}

// Close releases every held resource.
func (n *AtlasNode) Close() {
	close(n.stop)
	n.cancel()
	if n.prom != nil {
		if err := n.prom.Stop(); err != nil {
			log.WithError(err).Debug("Could not stop monitoring service")
		}
	}
	if err := n.store.Close(); err != nil {
		log.WithError(err).Error("Could not close snapshot store")
	}
}

// run executes one full build: fan-out, commit, seal, export.
func (n *AtlasNode) run() error {
	started := time.Now()

	var bar *progressbar.ProgressBar
	if !n.cliCtx.Bool(flags.DisableProgressFlag.Name) {
		units := len(n.sched.Units())
		bar = progressbar.NewOptions(units,
			progressbar.OptionSetDescription("acquiring boundaries"),
			progressbar.OptionShowCount(),
		)
		progressCh := make(chan scheduler.ProgressEvent, 64)
		// Unsubscribe (LIFO, first) detaches the feed before the channel closes.
		defer close(progressCh)
		sub := n.sched.SubscribeProgress(progressCh)
		defer sub.Unsubscribe()
		go func() {
			for ev := range progressCh {
				if ev.Status != scheduler.UnitStarted {
					_ = bar.Add(1)
				}
			}
		}()
	}

	result, err := n.sched.Run()
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"boundaries": len(result.Boundaries),
		"failures":   len(result.Failures),
		"dropped":    result.DroppedFeatures,
	}).Info("Acquisition complete")
	for _, f := range result.Failures {
		log.WithError(f.Err).WithField("unit", f.Unit.ID()).Warn("Source failed")
	}
	if len(result.Boundaries) == 0 {
		return errors.New("no boundaries survived validation; nothing to commit")
	}

	reconciled, reports := crossval.Reconcile(result.Boundaries, n.cfg.Cross)
	for _, report := range reports {
		log.WithFields(logrus.Fields{
			"layer":      report.Layer,
			"state":      report.StateFIPS,
			"matched":    len(report.Matches),
			"mismatched": report.Mismatched,
			"quality":    report.QualityScore,
		}).Info("Cross-validated source pair")
	}

	build, err := commit.Build(reconciled, n.cfg.Merkle, n.cfg.MinQualityScore, nil)
	if err != nil {
		return err
	}

	snap, err := n.store.Create(build, snapshot.CreateMeta{
		StatesIncluded: result.StatesIncluded,
		TigerVintage:   n.cliCtx.Int(flags.TigerVintageFlag.Name),
		BuildDuration:  time.Since(started),
		Notes:          n.cliCtx.String(flags.SnapshotNotesFlag.Name),
	})
	if err != nil {
		return err
	}

	dir, err := n.store.Export(n.exportDir, snap)
	if err != nil {
		return err
	}
	dirHash, err := snapshot.DirHash(dir)
	if err != nil {
		return err
	}
	contentID, err := snapshot.ComputeCID([]byte(dirHash))
	if err != nil {
		return err
	}
	if err := n.store.AttachCID(snap.ID, contentID); err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"version":  snap.Version,
		"root":     snap.MerkleRoot,
		"cid":      contentID,
		"duration": time.Since(started).Round(time.Millisecond),
	}).Info("Snapshot sealed and published")
	return nil
}

// configFromFlags folds CLI flags over the default configuration.
func configFromFlags(cliCtx *cli.Context) (*params.AtlasConfig, error) {
	cfg := params.DefaultAtlasConfig()
	cfg.MaxParallel = cliCtx.Int(flags.MaxParallelFlag.Name)
	cfg.RateLimitPerHost = cliCtx.Float64(flags.RateLimitPerHostFlag.Name)
	cfg.MinQualityScore = cliCtx.Int(flags.MinQualityScoreFlag.Name)
	cfg.Halt.OnCompleteness = !cliCtx.Bool(flags.NoHaltOnCompletenessFlag.Name)
	cfg.Halt.OnTopology = !cliCtx.Bool(flags.NoHaltOnTopologyFlag.Name)
	cfg.Halt.OnCoordinate = !cliCtx.Bool(flags.NoHaltOnCoordinateFlag.Name)
	cfg.Merkle.MinDepth = cliCtx.Int(flags.MerkleMinDepthFlag.Name)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, tok := range strings.Split(raw, ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// parseStates resolves comma-separated USPS or FIPS codes.
func parseStates(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var out []string
	for _, tok := range strings.Split(raw, ",") {
		tok = strings.TrimSpace(strings.ToUpper(tok))
		if tok == "" {
			continue
		}
		if registry.KnownStateFIPS(tok) {
			out = append(out, tok)
			continue
		}
		if fips, ok := registry.FIPSByUSPS(tok); ok {
			out = append(out, fips)
			continue
		}
		return nil, errors.Errorf("unknown state %q", tok)
	}
	return out, nil
}

// parseLayers resolves comma-separated layer names.
func parseLayers(raw string) ([]registry.Layer, error) {
	if raw == "" {
		return nil, nil
	}
	var out []registry.Layer
	for _, tok := range strings.Split(raw, ",") {
		tok = strings.TrimSpace(strings.ToLower(tok))
		if tok == "" {
			continue
		}
		layer := registry.Layer(tok)
		if registry.GEOIDPattern(layer) == nil {
			return nil, errors.Errorf("unknown layer %q", tok)
		}
		out = append(out, layer)
	}
	return out, nil
}
