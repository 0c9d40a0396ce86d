// Package syncprobe is the public entry point: it assembles the simulator,
// estimator, strategies and persistence from a single Config and exposes
// the operations the CLI drives.
package syncprobe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"syncprobe/internal/bounds"
	"syncprobe/internal/config"
	"syncprobe/internal/experiment"
	"syncprobe/internal/kuramoto"
	"syncprobe/internal/mocu"
	"syncprobe/internal/model"
	"syncprobe/internal/stats"
	"syncprobe/internal/storage"
	"syncprobe/internal/strategy"
	"syncprobe/internal/surrogate"
)

// Client wires the whole pipeline behind a small API.
type Client struct {
	cfg   *config.Config
	log   *slog.Logger
	store storage.Store
}

// New builds a Client from a validated config.
func New(cfg *config.Config, log *slog.Logger) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if log == nil {
		log = slog.Default()
	}
	store, err := storage.NewStore(cfg.Storage.Backend, cfg.Storage.SQLitePath)
	if err != nil {
		return nil, err
	}
	return &Client{cfg: cfg, log: log, store: store}, nil
}

// Init prepares the persistence backend.
func (c *Client) Init(ctx context.Context) error {
	return c.store.Init(ctx)
}

// Close releases backend resources.
func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

// RunRequest selects one sequential-design run.
type RunRequest struct {
	Strategy     string
	Steps        int
	Seed         int64
	UpdatePolicy string
}

// RunSummary reports one finished run.
type RunSummary struct {
	RunID          string
	Strategy       string
	InitialMOCU    float64
	FinalMOCU      float64
	Steps          int
	Terminated     string
	TrajectoryPath string
}

// Run executes one sequential experiment-design run and persists its
// record, trajectory and CSV artifact.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	record, trajectory, err := c.runOnce(ctx, req)
	if err != nil {
		return RunSummary{}, err
	}
	path, err := c.persistRun(ctx, record, trajectory)
	if err != nil {
		return RunSummary{}, err
	}
	return RunSummary{
		RunID:          record.RunID,
		Strategy:       record.Strategy,
		InitialMOCU:    record.InitialMOCU,
		FinalMOCU:      record.FinalMOCU,
		Steps:          record.Steps,
		Terminated:     record.Terminated,
		TrajectoryPath: path,
	}, nil
}

func (c *Client) runOnce(ctx context.Context, req RunRequest) (model.RunRecord, []model.TrajectoryStep, error) {
	if req.Strategy == "" {
		return model.RunRecord{}, nil, errors.New("strategy is required")
	}
	if req.Steps <= 0 {
		req.Steps = c.cfg.Loop.Steps
	}
	if req.Seed == 0 {
		req.Seed = c.cfg.System.Seed
	}
	if req.UpdatePolicy == "" {
		req.UpdatePolicy = c.cfg.Loop.UpdatePolicy
	}
	policy, err := experiment.ParsePolicy(req.UpdatePolicy)
	if err != nil {
		return model.RunRecord{}, nil, err
	}

	parts, err := c.assemble(req.Seed)
	if err != nil {
		return model.RunRecord{}, nil, err
	}
	picker, surrogateSource, err := c.picker(req.Strategy, req.Seed, parts)
	if err != nil {
		return model.RunRecord{}, nil, err
	}

	runID := uuid.NewString()
	loop, err := experiment.NewLoop(parts.sys, parts.oracle, parts.estimator, parts.thresholds, picker, parts.state, experiment.Config{
		RunID:            runID,
		Steps:            req.Steps,
		ExperimentTrials: c.cfg.Loop.ExperimentTrials,
		Policy:           policy,
		ThresholdMargin:  c.cfg.Loop.ThresholdMargin,
		Seed:             req.Seed,
	}, c.log)
	if err != nil {
		return model.RunRecord{}, nil, err
	}
	if surrogateSource != nil {
		surrogateSource.OnFallback = loop.ObserveFallback
	}

	c.log.Info("run_start", "run_id", runID, "strategy", req.Strategy, "steps", req.Steps, "seed", req.Seed)
	record, trajectory, err := loop.Run(ctx)
	if err != nil {
		return model.RunRecord{}, nil, err
	}
	c.log.Info("run_done",
		"run_id", runID,
		"strategy", record.Strategy,
		"initial_mocu", record.InitialMOCU,
		"final_mocu", record.FinalMOCU,
		"steps", record.Steps,
		"terminated", record.Terminated,
	)
	return record, trajectory, nil
}

func (c *Client) persistRun(ctx context.Context, record model.RunRecord, trajectory []model.TrajectoryStep) (string, error) {
	if err := c.store.SaveRunRecord(ctx, record); err != nil {
		return "", err
	}
	if err := c.store.SaveTrajectory(ctx, record.RunID, trajectory); err != nil {
		return "", err
	}
	if err := stats.WriteRunRecord(c.cfg.Output.Dir, record); err != nil {
		return "", err
	}
	return stats.WriteTrajectoryCSV(c.cfg.Output.Dir, record.RunID, trajectory)
}

// components is one run's worth of assembled machinery. The bound state is
// fresh each time; everything else derives from the config and seed.
type components struct {
	sys        *kuramoto.System
	oracle     *kuramoto.Oracle
	state      *bounds.State
	estimator  *mocu.Estimator
	thresholds *kuramoto.ThresholdCache
	direct     *strategy.DirectSource
}

func (c *Client) assemble(seed int64) (*components, error) {
	sysCfg := c.cfg.System
	sys, err := kuramoto.RandomSystem(sysCfg.Oscillators, sysCfg.FrequencyMin, sysCfg.FrequencyMax, sysCfg.CouplingMin, sysCfg.CouplingMax, seed)
	if err != nil {
		return nil, err
	}
	oracle := c.oracle()
	state, err := bounds.NewState(sys.N(), c.cfg.Bounds.Low, c.cfg.Bounds.High)
	if err != nil {
		return nil, err
	}
	estimator := mocu.NewEstimator(oracle, sys.Frequencies(), mocu.Config{
		MinSamples:   c.cfg.MOCU.MinSamples,
		MaxSamples:   c.cfg.MOCU.MaxSamples,
		TargetStdErr: c.cfg.MOCU.TargetStdErr,
		OracleTrials: c.cfg.MOCU.OracleTrials,
		BoostMax:     c.cfg.MOCU.BoostMax,
		BisectIters:  c.cfg.MOCU.BisectIters,
	})
	thresholds := kuramoto.NewThresholdCache(oracle, sys.Frequencies(), c.cfg.Strategy.PairTrials, seed)
	direct := strategy.NewDirectSource(oracle, estimator, thresholds, strategy.DirectConfig{
		ProbSamples: c.cfg.Strategy.ProbSamples,
		PairTrials:  c.cfg.Strategy.PairTrials,
		Seed:        seed,
	})
	return &components{
		sys:        sys,
		oracle:     oracle,
		state:      state,
		estimator:  estimator,
		thresholds: thresholds,
		direct:     direct,
	}, nil
}

func (c *Client) oracle() *kuramoto.Oracle {
	oracle := kuramoto.DefaultOracle()
	if c.cfg.Oracle.Dt > 0 {
		oracle.Dt = c.cfg.Oracle.Dt
	}
	if c.cfg.Oracle.Steps > 0 {
		oracle.Steps = c.cfg.Oracle.Steps
	}
	if c.cfg.Oracle.BurnFraction > 0 {
		oracle.BurnFraction = c.cfg.Oracle.BurnFraction
	}
	if c.cfg.Oracle.SpreadTolerance > 0 {
		oracle.SpreadTolerance = c.cfg.Oracle.SpreadTolerance
	}
	if c.cfg.Oracle.Workers > 0 {
		oracle.Workers = c.cfg.Oracle.Workers
	}
	return oracle
}

// picker builds the requested strategy. For the surrogate strategies a
// missing or unreadable checkpoint is not fatal: the source starts with a
// nil predictor and every evaluation falls back to the direct path.
func (c *Client) picker(name string, seed int64, parts *components) (strategy.Picker, *strategy.SurrogateSource, error) {
	switch name {
	case strategy.NameIODE:
		return strategy.NewIODE(parts.direct), nil, nil
	case strategy.NameODE:
		return strategy.NewODE(parts.direct), nil, nil
	case strategy.NameEntropy:
		return strategy.NewEntropy(), nil, nil
	case strategy.NameRandom:
		return strategy.NewRandom(seed), nil, nil
	case strategy.NameIMP, strategy.NameMP:
		var predictor surrogate.Predictor
		if path := c.cfg.Surrogate.CheckpointPath; path != "" {
			loaded, err := surrogate.Load(path)
			if err != nil {
				c.log.Warn("surrogate_checkpoint_unavailable", "path", path, "error", err)
			} else {
				predictor = loaded
			}
		}
		source := strategy.NewSurrogateSource(predictor, surrogate.Topology{Frequencies: parts.sys.Frequencies()}, parts.direct)
		if name == strategy.NameIMP {
			return strategy.NewIMP(source), source, nil
		}
		return strategy.NewMP(source), source, nil
	default:
		return nil, nil, fmt.Errorf("unknown strategy: %s", name)
	}
}

// ExperimentRequest sweeps several strategies over repeated seeds under one
// resumable experiment record.
type ExperimentRequest struct {
	ExperimentID string
	Strategies   []string
	Repeats      int
	Steps        int
	Seed         int64
	Notes        string
}

// ExperimentSummary reports a finished or resumed sweep.
type ExperimentSummary struct {
	ExperimentID string
	TotalRuns    int
	RunsDone     int
	PlotPath     string
}

// Experiment runs every requested strategy Repeats times, persisting an
// experiment record after each run so an interrupted sweep restarts where
// it stopped. A context cancellation is recorded as an interruption and
// returned.
func (c *Client) Experiment(ctx context.Context, req ExperimentRequest) (ExperimentSummary, error) {
	if len(req.Strategies) == 0 {
		req.Strategies = []string{strategy.NameIODE, strategy.NameEntropy, strategy.NameRandom}
	}
	if req.Repeats <= 0 {
		req.Repeats = 1
	}
	if req.Seed == 0 {
		req.Seed = c.cfg.System.Seed
	}

	record := stats.ExperimentRecord{
		ID:           req.ExperimentID,
		Notes:        req.Notes,
		ProgressFlag: stats.ExperimentInProgress,
		TotalRuns:    len(req.Strategies) * req.Repeats,
		Strategies:   append([]string(nil), req.Strategies...),
		StartedAtUTC: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	} else {
		existing, ok, err := stats.ReadExperimentRecord(c.cfg.Output.Dir, record.ID)
		if err != nil {
			return ExperimentSummary{}, err
		}
		if ok {
			record = existing
			record.ProgressFlag = stats.ExperimentInProgress
			c.log.Info("experiment_resume", "experiment_id", record.ID, "run_index", record.RunIndex, "total_runs", record.TotalRuns)
		}
	}

	// Derive the repeat count from the record so a resumed sweep keeps its
	// original shape even if the request differs.
	if len(record.Strategies) == 0 {
		return ExperimentSummary{}, fmt.Errorf("experiment record %s lists no strategies", record.ID)
	}
	repeats := record.TotalRuns / len(record.Strategies)
	if repeats < 1 {
		return ExperimentSummary{}, fmt.Errorf("experiment record %s has %d total runs for %d strategies", record.ID, record.TotalRuns, len(record.Strategies))
	}
	for ; record.RunIndex < record.TotalRuns; record.RunIndex++ {
		strategyName := record.Strategies[record.RunIndex/repeats]
		repeat := record.RunIndex % repeats
		runRecord, trajectory, err := c.runOnce(ctx, RunRequest{
			Strategy: strategyName,
			Steps:    req.Steps,
			Seed:     req.Seed + int64(repeat),
		})
		if err != nil {
			record.Interruptions = append(record.Interruptions, fmt.Sprintf("run %d (%s): %v", record.RunIndex, strategyName, err))
			if writeErr := stats.WriteExperimentRecord(c.cfg.Output.Dir, record); writeErr != nil {
				return ExperimentSummary{}, errors.Join(err, writeErr)
			}
			return ExperimentSummary{}, err
		}
		if _, err := c.persistRun(ctx, runRecord, trajectory); err != nil {
			return ExperimentSummary{}, err
		}
		record.RunIDs = append(record.RunIDs, runRecord.RunID)
		record.Summaries = append(record.Summaries, runRecord)
		if err := stats.WriteExperimentRecord(c.cfg.Output.Dir, record); err != nil {
			return ExperimentSummary{}, err
		}
	}

	record.ProgressFlag = stats.ExperimentCompleted
	record.CompletedAtUTC = time.Now().UTC().Format(time.RFC3339Nano)
	if err := stats.WriteExperimentRecord(c.cfg.Output.Dir, record); err != nil {
		return ExperimentSummary{}, err
	}

	curves, err := stats.MeanCurves(c.cfg.Output.Dir, record.RunIDs)
	if err != nil {
		return ExperimentSummary{}, err
	}
	plotPath, err := stats.WriteComparisonPlot(c.cfg.Output.Dir, curves)
	if err != nil {
		return ExperimentSummary{}, err
	}
	return ExperimentSummary{
		ExperimentID: record.ID,
		TotalRuns:    record.TotalRuns,
		RunsDone:     record.RunIndex,
		PlotPath:     plotPath,
	}, nil
}

// DatasetRequest sizes a surrogate-training dataset.
type DatasetRequest struct {
	MOCUSamples   int
	RemainSamples int
	Seed          int64
}

// DatasetSummary reports how many samples were generated and stored.
type DatasetSummary struct {
	MOCUSamples   int
	RemainSamples int
}

// GenerateDataset labels random bound states (and candidate pairs) with
// direct Monte Carlo values and stores them for surrogate training.
func (c *Client) GenerateDataset(ctx context.Context, req DatasetRequest) (DatasetSummary, error) {
	if req.MOCUSamples <= 0 && req.RemainSamples <= 0 {
		return DatasetSummary{}, errors.New("dataset requires at least one sample")
	}
	if req.Seed == 0 {
		req.Seed = c.cfg.System.Seed
	}

	rng := rand.New(rand.NewSource(req.Seed))
	summary := DatasetSummary{}
	total := req.MOCUSamples + req.RemainSamples
	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		kind := model.SampleKindMOCU
		if i >= req.MOCUSamples {
			kind = model.SampleKindExpectedRemaining
		}
		sample, err := c.generateSample(ctx, kind, req.Seed+int64(i), rng)
		if err != nil {
			return summary, fmt.Errorf("sample %d: %w", i, err)
		}
		if err := c.store.SaveDatasetSample(ctx, sample); err != nil {
			return summary, err
		}
		if kind == model.SampleKindMOCU {
			summary.MOCUSamples++
		} else {
			summary.RemainSamples++
		}
		if (i+1)%50 == 0 {
			c.log.Info("dataset_progress", "generated", i+1, "total", total)
		}
	}
	return summary, nil
}

func (c *Client) generateSample(ctx context.Context, kind string, seed int64, rng *rand.Rand) (model.DatasetSample, error) {
	n := c.cfg.System.Oscillators
	frequencies := make([]float64, n)
	for i := range frequencies {
		frequencies[i] = c.cfg.System.FrequencyMin + rng.Float64()*(c.cfg.System.FrequencyMax-c.cfg.System.FrequencyMin)
	}

	pairs := kuramoto.AllPairs(n)
	intervals := make([]bounds.Interval, len(pairs))
	records := make([]model.IntervalRecord, len(pairs))
	for k := range intervals {
		low := c.cfg.Bounds.Low + rng.Float64()*(c.cfg.Bounds.High-c.cfg.Bounds.Low)
		high := low + rng.Float64()*(c.cfg.Bounds.High-low)
		intervals[k] = bounds.Interval{Low: low, High: high}
		records[k] = model.IntervalRecord{Low: low, High: high}
	}
	state, err := bounds.FromIntervals(n, intervals)
	if err != nil {
		return model.DatasetSample{}, err
	}

	oracle := c.oracle()
	estimator := mocu.NewEstimator(oracle, frequencies, mocu.Config{
		MinSamples:   c.cfg.MOCU.MinSamples,
		MaxSamples:   c.cfg.MOCU.MaxSamples,
		TargetStdErr: c.cfg.MOCU.TargetStdErr,
		OracleTrials: c.cfg.MOCU.OracleTrials,
		BoostMax:     c.cfg.MOCU.BoostMax,
		BisectIters:  c.cfg.MOCU.BisectIters,
	})

	sample := model.DatasetSample{
		ID:          uuid.NewString(),
		Kind:        kind,
		Oscillators: n,
		Frequencies: frequencies,
		Intervals:   records,
		CandidateI:  -1,
		CandidateJ:  -1,
	}
	switch kind {
	case model.SampleKindMOCU:
		value, err := estimator.Estimate(ctx, state, seed)
		if err != nil {
			return model.DatasetSample{}, err
		}
		sample.Label = value.MOCU
	case model.SampleKindExpectedRemaining:
		candidate := pairs[rng.Intn(len(pairs))]
		thresholds := kuramoto.NewThresholdCache(oracle, frequencies, c.cfg.Strategy.PairTrials, seed)
		direct := strategy.NewDirectSource(oracle, estimator, thresholds, strategy.DirectConfig{
			ProbSamples: c.cfg.Strategy.ProbSamples,
			PairTrials:  c.cfg.Strategy.PairTrials,
			Seed:        seed,
		})
		value, err := direct.ExpectedRemaining(ctx, state, candidate)
		if err != nil {
			return model.DatasetSample{}, err
		}
		sample.CandidateI = candidate.I
		sample.CandidateJ = candidate.J
		sample.Label = value
	default:
		return model.DatasetSample{}, fmt.Errorf("unknown sample kind %q", kind)
	}
	return sample, nil
}

// TrainRequest fits a fresh surrogate to the stored dataset.
type TrainRequest struct {
	CheckpointPath string
	Epochs         int
	LearnRate      float64
	Seed           int64
}

// TrainSummary reports a finished training pass.
type TrainSummary struct {
	CheckpointPath string
	Report         surrogate.TrainReport
}

// TrainSurrogate loads every stored dataset sample, fits a new model and
// writes the checkpoint.
func (c *Client) TrainSurrogate(ctx context.Context, req TrainRequest) (TrainSummary, error) {
	if req.CheckpointPath == "" {
		req.CheckpointPath = c.cfg.Surrogate.CheckpointPath
	}
	if req.CheckpointPath == "" {
		return TrainSummary{}, errors.New("checkpoint path is required")
	}
	if req.Seed == 0 {
		req.Seed = c.cfg.System.Seed
	}

	samples, err := c.store.ListDatasetSamples(ctx, "")
	if err != nil {
		return TrainSummary{}, err
	}
	if len(samples) == 0 {
		return TrainSummary{}, errors.New("no dataset samples stored; generate a dataset first")
	}

	modelOut, err := surrogate.NewModel(c.cfg.System.Oscillators, c.cfg.Surrogate.HiddenNeurons, c.cfg.Surrogate.Scale, req.Seed)
	if err != nil {
		return TrainSummary{}, err
	}
	report, err := surrogate.Train(modelOut, samples, surrogate.TrainConfig{
		Epochs:    req.Epochs,
		LearnRate: req.LearnRate,
		Seed:      req.Seed,
	})
	if err != nil {
		return TrainSummary{}, err
	}
	if err := modelOut.Save(req.CheckpointPath); err != nil {
		return TrainSummary{}, err
	}
	c.log.Info("surrogate_trained",
		"checkpoint", req.CheckpointPath,
		"mocu_samples", report.MOCUSamples,
		"remain_samples", report.RemainSamples,
		"mocu_loss", report.MOCULoss,
		"remain_loss", report.RemainLoss,
	)
	return TrainSummary{CheckpointPath: req.CheckpointPath, Report: report}, nil
}

// ReportRequest selects runs to summarize; empty RunIDs means every run in
// the store.
type ReportRequest struct {
	RunIDs []string
	Plot   bool
}

// ReportSummary is the per-strategy digest plus the optional plot path.
type ReportSummary struct {
	Strategies []stats.StrategySummary
	PlotPath   string
}

// Report aggregates stored run records by strategy and optionally renders
// the comparison plot from their CSV trajectories.
func (c *Client) Report(ctx context.Context, req ReportRequest) (ReportSummary, error) {
	runIDs := req.RunIDs
	if len(runIDs) == 0 {
		ids, err := c.store.ListRunIDs(ctx)
		if err != nil {
			return ReportSummary{}, err
		}
		runIDs = ids
	}
	if len(runIDs) == 0 {
		return ReportSummary{}, errors.New("no runs to report")
	}

	records := make([]model.RunRecord, 0, len(runIDs))
	for _, runID := range runIDs {
		record, ok, err := c.store.GetRunRecord(ctx, runID)
		if err != nil {
			return ReportSummary{}, err
		}
		if !ok {
			return ReportSummary{}, fmt.Errorf("run not found: %s", runID)
		}
		records = append(records, record)
	}

	summary := ReportSummary{Strategies: stats.SummarizeRuns(records)}
	if req.Plot {
		curves, err := stats.MeanCurves(c.cfg.Output.Dir, runIDs)
		if err != nil {
			return ReportSummary{}, err
		}
		path, err := stats.WriteComparisonPlot(c.cfg.Output.Dir, curves)
		if err != nil {
			return ReportSummary{}, err
		}
		summary.PlotPath = path
	}
	return summary, nil
}
