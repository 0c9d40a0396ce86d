package stats

import (
	"testing"

	"syncprobe/internal/model"
)

func sampleTrajectory() []model.TrajectoryStep {
	return []model.TrajectoryStep{
		{Step: 0, PairI: 0, PairJ: 1, Synchronized: true, MOCU: 0.8, MOCUStdErr: 0.01, ElapsedMS: 12.5},
		{Step: 1, PairI: 0, PairJ: 2, Synchronized: false, MOCU: 0.4, MOCUStdErr: 0.02, PrecisionShortfall: true, SurrogateFellBack: true, ElapsedMS: 13},
	}
}

func TestRunRecordRoundTrip(t *testing.T) {
	base := t.TempDir()
	record := model.RunRecord{
		RunID:       "run-1",
		Strategy:    "iODE",
		Oscillators: 3,
		Seed:        7,
		Steps:       2,
		InitialMOCU: 0.9,
		FinalMOCU:   0.4,
	}
	if err := WriteRunRecord(base, record); err != nil {
		t.Fatalf("write: %v", err)
	}
	read, ok, err := ReadRunRecord(base, "run-1")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !ok {
		t.Fatalf("expected run-1 to exist")
	}
	if read.Strategy != "iODE" || read.FinalMOCU != 0.4 {
		t.Fatalf("unexpected payload: %+v", read)
	}

	_, ok, err = ReadRunRecord(base, "missing")
	if err != nil {
		t.Fatalf("read missing: %v", err)
	}
	if ok {
		t.Fatalf("expected missing run to report ok=false")
	}
}

func TestTrajectoryCSVRoundTrip(t *testing.T) {
	base := t.TempDir()
	steps := sampleTrajectory()
	if _, err := WriteTrajectoryCSV(base, "run-1", steps); err != nil {
		t.Fatalf("write: %v", err)
	}
	read, ok, err := ReadTrajectoryCSV(base, "run-1")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !ok {
		t.Fatalf("expected trajectory to exist")
	}
	if len(read) != len(steps) {
		t.Fatalf("expected %d rows, got %d", len(steps), len(read))
	}
	for i := range steps {
		if read[i] != steps[i] {
			t.Fatalf("row %d changed in round trip: %+v vs %+v", i, read[i], steps[i])
		}
	}

	_, ok, err = ReadTrajectoryCSV(base, "missing")
	if err != nil {
		t.Fatalf("read missing: %v", err)
	}
	if ok {
		t.Fatalf("expected missing trajectory to report ok=false")
	}
}

func TestExperimentRecordRoundTripAndListing(t *testing.T) {
	base := t.TempDir()
	first := ExperimentRecord{
		ID:           "exp-a",
		ProgressFlag: ExperimentInProgress,
		RunIndex:     2,
		TotalRuns:    6,
		Strategies:   []string{"iODE", "RANDOM"},
		StartedAtUTC: "2026-08-20T00:00:00Z",
	}
	second := ExperimentRecord{
		ID:           "exp-b",
		ProgressFlag: ExperimentCompleted,
		RunIndex:     6,
		TotalRuns:    6,
		StartedAtUTC: "2026-08-21T00:00:00Z",
	}
	if err := WriteExperimentRecord(base, first); err != nil {
		t.Fatalf("write exp-a: %v", err)
	}
	if err := WriteExperimentRecord(base, second); err != nil {
		t.Fatalf("write exp-b: %v", err)
	}

	read, ok, err := ReadExperimentRecord(base, "exp-a")
	if err != nil {
		t.Fatalf("read exp-a: %v", err)
	}
	if !ok || read.RunIndex != 2 || read.ProgressFlag != ExperimentInProgress {
		t.Fatalf("unexpected exp-a payload: %+v", read)
	}

	records, err := ListExperimentRecords(base)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID != "exp-b" {
		t.Fatalf("expected most recent first, got %s", records[0].ID)
	}
}

func TestMeanCurvesGroupsByStrategy(t *testing.T) {
	base := t.TempDir()
	runs := []struct {
		id       string
		strategy string
		mocus    []float64
	}{
		{"run-1", "iODE", []float64{0.8, 0.4}},
		{"run-2", "iODE", []float64{0.6, 0.2}},
		{"run-3", "RANDOM", []float64{0.9}},
	}
	for _, run := range runs {
		if err := WriteRunRecord(base, model.RunRecord{RunID: run.id, Strategy: run.strategy}); err != nil {
			t.Fatalf("write record %s: %v", run.id, err)
		}
		steps := make([]model.TrajectoryStep, len(run.mocus))
		for i, mocu := range run.mocus {
			steps[i] = model.TrajectoryStep{Step: i, PairI: 0, PairJ: 1, MOCU: mocu}
		}
		if _, err := WriteTrajectoryCSV(base, run.id, steps); err != nil {
			t.Fatalf("write trajectory %s: %v", run.id, err)
		}
	}

	curves, err := MeanCurves(base, []string{"run-1", "run-2", "run-3"})
	if err != nil {
		t.Fatalf("mean curves: %v", err)
	}
	if len(curves) != 2 {
		t.Fatalf("expected 2 strategies, got %d", len(curves))
	}
	if curves[0].Strategy != "RANDOM" || curves[1].Strategy != "iODE" {
		t.Fatalf("expected alphabetical strategy order, got %+v", curves)
	}
	iode := curves[1]
	if iode.Runs != 2 || len(iode.Values) != 2 {
		t.Fatalf("unexpected iODE curve: %+v", iode)
	}
	if iode.Values[0] != 0.7 || iode.Values[1] != 0.3 {
		t.Fatalf("expected per-step means 0.7 and 0.3, got %v", iode.Values)
	}
}

func TestSummarizeRunsAveragesPerStrategy(t *testing.T) {
	records := []model.RunRecord{
		{RunID: "a", Strategy: "iODE", InitialMOCU: 0.8, FinalMOCU: 0.4, TotalElapsedMS: 100, SurrogateFallbacks: 1},
		{RunID: "b", Strategy: "iODE", InitialMOCU: 0.6, FinalMOCU: 0.2, TotalElapsedMS: 300, SurrogateFallbacks: 2},
		{RunID: "c", Strategy: "RANDOM", InitialMOCU: 0.9, FinalMOCU: 0.9, TotalElapsedMS: 10},
	}
	summaries := SummarizeRuns(records)
	if len(summaries) != 2 {
		t.Fatalf("expected 2 strategies, got %d", len(summaries))
	}
	iode := summaries[1]
	if iode.Strategy != "iODE" || iode.Runs != 2 {
		t.Fatalf("unexpected summary order: %+v", summaries)
	}
	if iode.MeanInitial != 0.7 || iode.MeanFinal != 0.3 || iode.MeanElapsedMS != 200 || iode.TotalFallbacks != 3 {
		t.Fatalf("unexpected iODE summary: %+v", iode)
	}
}

func TestWriteComparisonPlotProducesFile(t *testing.T) {
	dir := t.TempDir()
	curves := []StrategyCurve{
		{Strategy: "iODE", Values: []float64{0.8, 0.4, 0.2}, Runs: 2},
		{Strategy: "RANDOM", Values: []float64{0.9, 0.8, 0.7}, Runs: 2},
	}
	path, err := WriteComparisonPlot(dir, curves)
	if err != nil {
		t.Fatalf("write plot: %v", err)
	}
	if path == "" {
		t.Fatalf("expected a plot path")
	}
	if _, err := WriteComparisonPlot(dir, nil); err == nil {
		t.Fatalf("expected empty curve set to be rejected")
	}
}
