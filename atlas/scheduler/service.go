package scheduler

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/kevinms/leakybucket-go"
	"github.com/pkg/errors"
	"github.com/shadowatlas/shadow-atlas/atlas/extract"
	"github.com/shadowatlas/shadow-atlas/atlas/normalize"
	"github.com/shadowatlas/shadow-atlas/atlas/registry"
	"github.com/shadowatlas/shadow-atlas/atlas/resilience"
	"github.com/shadowatlas/shadow-atlas/atlas/validate"
	"github.com/shadowatlas/shadow-atlas/shared/params"
	"github.com/shadowatlas/shadow-atlas/shared/sliceutil"
	"go.opencensus.io/trace"
	"golang.org/x/sync/errgroup"
)

// rateBurst lets a host absorb a short burst before the leaky bucket drains.
const rateBurst = 4

// Config wires the scheduler's collaborators.
type Config struct {
	Registry   *registry.Registry
	Harness    *resilience.Harness
	Downloader *extract.Downloader
	Gate       *validate.Gate
	Normalizer *normalize.Normalizer
	Atlas      *params.AtlasConfig
	// States restricts the build to specific FIPS codes; empty means all.
	States []string
	// Layers restricts the build to specific layers; empty means all.
	Layers []registry.Layer
	// Sources restricts the build to specific source IDs; empty means all.
	Sources []string
}

// Result aggregates a full scheduler run.
type Result struct {
	Boundaries      []*normalize.Boundary
	Failures        []SourceFailure
	UnitsRun        int
	DroppedFeatures int
	Warnings        []string
	StatesIncluded  []string
}

// Service is the pipeline scheduler: parallel fan-out over work units with
// per-host rate limiting, a progress stream, and cooperative cancellation.
type Service struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    *Config

	rateLimiter  *leakybucket.Collector
	progressFeed event.Feed

	mu     sync.Mutex
	result *Result
}

// NewService builds a scheduler. The context bounds the whole pipeline run.
func NewService(ctx context.Context, cfg *Config) *Service {
	ctx, cancel := context.WithCancel(ctx)
	return &Service{
		ctx:    ctx,
		cancel: cancel,
		cfg:    cfg,
		rateLimiter: leakybucket.NewCollector(
			cfg.Atlas.RateLimitPerHost,
			int64(cfg.Atlas.RateLimitPerHost*rateBurst)+1,
			false /* deleteEmptyBuckets */),
	}
}

// Stop cancels all inflight work.
func (s *Service) Stop() {
	s.cancel()
}

// SubscribeProgress registers a listener for unit progress events.
func (s *Service) SubscribeProgress(ch chan<- ProgressEvent) event.Subscription {
	return s.progressFeed.Subscribe(ch)
}

// Units expands the registry into the run's work units.
func (s *Service) Units() []*WorkUnit {
	states := s.cfg.States
	if len(states) == 0 {
		states = sliceutil.SortedStrings(registry.AllStateFIPS())
	}
	var units []*WorkUnit
	for _, src := range s.cfg.Registry.Sources() {
		if len(s.cfg.Layers) > 0 && !layerIn(src.Layer, s.cfg.Layers) {
			continue
		}
		if len(s.cfg.Sources) > 0 && !sliceutil.IsInStrings(src.ID, s.cfg.Sources) {
			continue
		}
		if perState(src) {
			for _, fips := range states {
				if len(src.States) > 0 && !sliceutil.IsInStrings(fips, src.States) {
					continue
				}
				units = append(units, &WorkUnit{Source: src, StateFIPS: fips})
			}
		} else {
			units = append(units, &WorkUnit{Source: src})
		}
	}
	return units
}

// Run executes every unit under max_parallel workers. Unit failures are
// recorded and the run continues; a validation halt aborts everything and
// discards all partial results.
func (s *Service) Run() (*Result, error) {
	ctx, span := trace.StartSpan(s.ctx, "scheduler.Run")
	defer span.End()
	if s.cfg.Atlas.PipelineTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Atlas.PipelineTimeout)
		defer cancel()
	}

	units := s.Units()
	s.mu.Lock()
	s.result = &Result{}
	s.mu.Unlock()
	log.WithField("units", len(units)).Info("Starting pipeline fan-out")

	g, ctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, s.cfg.Atlas.MaxParallel)
	for _, unit := range units {
		unit := unit
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}
			defer func() { <-sem }()
			return s.runUnit(ctx, unit)
		})
	}
	if err := g.Wait(); err != nil {
		// A halt (or cancellation) discards everything: no half-committed
		// tree is ever sealed from a partial result.
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	res := s.result
	sort.SliceStable(res.Boundaries, func(i, j int) bool {
		return res.Boundaries[i].SortKey() < res.Boundaries[j].SortKey()
	})
	res.StatesIncluded = sliceutil.SortedStrings(sliceutil.DedupStrings(res.StatesIncluded))
	return res, nil
}

// runUnit drives one work unit end to end. Only halt errors and cancellation
// of the run itself propagate; a unit hitting its own timeout is recorded as
// a failed unit.
func (s *Service) runUnit(ctx context.Context, unit *WorkUnit) error {
	ctx, span := trace.StartSpan(ctx, "scheduler.runUnit")
	defer span.End()
	parent := ctx
	span.AddAttributes(trace.StringAttribute("unit", unit.ID()))

	// Full-state extractions get the longer state budget; everything else is
	// bounded by the unit timeout.
	timeout := s.cfg.Atlas.UnitTimeout
	if unit.StateFIPS != "" && s.cfg.Atlas.StateTimeout > timeout {
		timeout = s.cfg.Atlas.StateTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	s.publish(ProgressEvent{Unit: unit, Status: UnitStarted})
	started := time.Now()

	boundaries, dropped, warnings, err := s.executeUnit(ctx, unit)
	unitDurationHistogram.Observe(time.Since(started).Seconds())
	if err != nil {
		if validate.IsHalt(err) {
			s.publish(ProgressEvent{Unit: unit, Status: UnitFailed, Err: err})
			return err
		}
		if parent.Err() != nil && errors.Is(err, parent.Err()) {
			return err
		}
		s.recordFailure(unit, err)
		s.publish(ProgressEvent{Unit: unit, Status: UnitFailed, Err: err})
		return nil
	}

	s.mu.Lock()
	s.result.Boundaries = append(s.result.Boundaries, boundaries...)
	s.result.DroppedFeatures += dropped
	s.result.Warnings = append(s.result.Warnings, warnings...)
	s.result.UnitsRun++
	for _, b := range boundaries {
		if b.StateFIPS != "" {
			s.result.StatesIncluded = append(s.result.StatesIncluded, b.StateFIPS)
		}
	}
	s.mu.Unlock()

	unitsFinishedCounter.Inc()
	s.publish(ProgressEvent{Unit: unit, Status: UnitFinished, Features: len(boundaries)})
	return nil
}

// executeUnit performs extract → gate → normalize for one unit.
func (s *Service) executeUnit(ctx context.Context, unit *WorkUnit) ([]*normalize.Boundary, int, []string, error) {
	s.throttleHost(unit.Source.EndpointTemplate)

	extractor, err := extract.New(unit.Source, s.cfg.Downloader, s.cfg.Harness)
	if err != nil {
		return nil, 0, nil, err
	}
	// Semantic validation is the first gate: discovered candidate layers are
	// scored before anything downloads.
	if filtered, ok := extractor.(extract.LayerFiltered); ok && s.cfg.Gate != nil {
		filtered.SetLayerFilter(s.cfg.Gate.LayerFilter(unit.Source.Layer))
	}
	artifact, err := extractor.Download(ctx, extract.Params{Source: unit.Source, StateFIPS: unit.StateFIPS})
	if err != nil {
		return nil, 0, nil, err
	}
	defer func() {
		if rerr := artifact.Release(); rerr != nil {
			log.WithError(rerr).Debug("Failed to release artifact")
		}
	}()

	iter, err := extractor.Transform(artifact)
	if err != nil {
		return nil, 0, nil, err
	}
	feats, err := extract.Drain(iter)
	if err != nil {
		return nil, 0, nil, err
	}

	// Edge-case analysis is the second gate, classifying the whole candidate
	// layer once its true feature count is known.
	feats, edgeDropped, edgeWarnings := s.applyEdgeCase(unit, feats)

	// Nationwide files carry every state; partition before gating so the
	// completeness tables line up per state.
	groups := s.partitionByState(unit, feats)

	var boundaries []*normalize.Boundary
	warnings := edgeWarnings
	dropped := edgeDropped
	for _, fips := range sortedKeys(groups) {
		if err := ctx.Err(); err != nil {
			return nil, 0, nil, err
		}
		gateRes, err := s.cfg.Gate.Run(unit.Source.Layer, fips, groups[fips])
		if err != nil {
			return nil, 0, nil, err // halt
		}
		dropped += gateRes.Dropped
		warnings = append(warnings, gateRes.Warnings...)
		for _, f := range gateRes.Features {
			b, nerr := s.cfg.Normalizer.Normalize(f, unit.Source, fips, gateRes.QualityScore)
			if nerr != nil {
				dropped++
				log.WithError(nerr).WithField("unit", unit.ID()).Debug("Dropped unnormalizable feature")
				continue
			}
			boundaries = append(boundaries, b)
		}
	}
	return boundaries, dropped, warnings, nil
}

// applyEdgeCase runs the council edge-case analyzer over a drained unit.
// REJECT and NEEDS_CITY_CONTEXT drop the unit's features (a misclassified or
// unattributable layer must not reach the tree); NEEDS_MANUAL_REVIEW keeps
// them with a warning, per the placeholder-count rule. Non-council layers
// pass through untouched.
func (s *Service) applyEdgeCase(unit *WorkUnit, feats []*extract.RawFeature) ([]*extract.RawFeature, int, []string) {
	if unit.Source.Layer != registry.LayerCouncilDistrict || len(feats) == 0 {
		return feats, 0, nil
	}
	verdict := validate.AnalyzeCouncilCandidate(validate.Candidate{
		LayerName:    unit.Source.Name,
		URLPath:      unit.Source.EndpointTemplate,
		VintageYear:  unit.Source.VintageYear,
		CurrentYear:  time.Now().Year(),
		FeatureCount: len(feats),
	})
	fields := map[string]interface{}{
		"unit":           unit.ID(),
		"classification": verdict.Classification,
		"action":         verdict.Action,
		"features":       len(feats),
	}
	switch verdict.Action {
	case validate.ActionReject:
		log.WithFields(fields).Warn("Edge-case analyzer rejected council candidate")
		return nil, len(feats), []string{fmt.Sprintf(
			"%s rejected by edge-case analyzer (%s): %v", unit.ID(), verdict.Classification, verdict.Notes)}
	case validate.ActionNeedsCityContext:
		log.WithFields(fields).Warn("Council candidate needs city context, holding back")
		return nil, len(feats), []string{fmt.Sprintf(
			"%s held back pending city context (%s)", unit.ID(), verdict.Classification)}
	case validate.ActionNeedsManualReview:
		log.WithFields(fields).Warn("Council candidate flagged for manual review")
		return feats, 0, []string{fmt.Sprintf(
			"%s flagged for manual review (%s): %v", unit.ID(), verdict.Classification, verdict.Notes)}
	default:
		if len(verdict.Notes) > 0 {
			return feats, 0, []string{fmt.Sprintf("%s: %v", unit.ID(), verdict.Notes)}
		}
		return feats, 0, nil
	}
}

// partitionByState groups features by their state FIPS. State-scoped units
// trust the unit's own partition; nationwide units read the feature's
// STATEFP property.
func (s *Service) partitionByState(unit *WorkUnit, feats []*extract.RawFeature) map[string][]*extract.RawFeature {
	groups := map[string][]*extract.RawFeature{}
	if unit.StateFIPS != "" {
		groups[unit.StateFIPS] = feats
		return groups
	}
	for _, f := range feats {
		fips := f.StringProp("STATEFP", "STATEFP20", "statefp")
		if len(fips) == 1 {
			fips = "0" + fips
		}
		if len(s.cfg.States) > 0 && !sliceutil.IsInStrings(fips, s.cfg.States) {
			continue
		}
		groups[fips] = append(groups[fips], f)
	}
	return groups
}

// throttleHost blocks until the unit's host has rate-limit capacity.
func (s *Service) throttleHost(endpoint string) {
	host := endpoint
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		host = u.Host
	}
	if s.rateLimiter.Remaining(host) < 1 {
		rateLimitWaitsCounter.Inc()
		time.Sleep(s.rateLimiter.TillEmpty(host))
	}
	s.rateLimiter.Add(host, 1)
}

func (s *Service) recordFailure(unit *WorkUnit, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result.Failures = append(s.result.Failures, SourceFailure{Unit: unit, Err: err})
	unitsFailedCounter.Inc()
	log.WithError(err).WithField("unit", unit.ID()).Warn("Work unit failed after retries")
}

func (s *Service) publish(ev ProgressEvent) {
	go s.progressFeed.Send(ev)
}

func perState(src *registry.SourceDescriptor) bool {
	return strings.Contains(src.EndpointTemplate, "{state}") ||
		src.PortalKind == registry.PortalOSMOverpass
}

func layerIn(l registry.Layer, set []registry.Layer) bool {
	for _, x := range set {
		if x == l {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string][]*extract.RawFeature) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
