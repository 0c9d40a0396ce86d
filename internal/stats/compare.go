package stats

import (
	"fmt"
	"sort"

	"syncprobe/internal/model"
)

// StrategyCurve is the per-step mean of realized MOCU across the runs of
// one strategy. Values[0] is the mean after the first experiment.
type StrategyCurve struct {
	Strategy string
	Values   []float64
	Runs     int
}

// MeanCurves averages the MOCU trajectories stored for the given runs,
// grouped by strategy. Shorter runs simply stop contributing to later
// steps; the mean at each step is over the runs that reached it.
func MeanCurves(baseDir string, runIDs []string) ([]StrategyCurve, error) {
	type accumulator struct {
		sums   []float64
		counts []int
		runs   int
	}
	byStrategy := make(map[string]*accumulator)

	for _, runID := range runIDs {
		record, ok, err := ReadRunRecord(baseDir, runID)
		if err != nil {
			return nil, fmt.Errorf("run %s: %w", runID, err)
		}
		if !ok {
			return nil, fmt.Errorf("run %s: no record found", runID)
		}
		steps, ok, err := ReadTrajectoryCSV(baseDir, runID)
		if err != nil {
			return nil, fmt.Errorf("run %s: %w", runID, err)
		}
		if !ok {
			return nil, fmt.Errorf("run %s: no trajectory found", runID)
		}

		acc := byStrategy[record.Strategy]
		if acc == nil {
			acc = &accumulator{}
			byStrategy[record.Strategy] = acc
		}
		acc.runs++
		for _, step := range steps {
			for len(acc.sums) <= step.Step {
				acc.sums = append(acc.sums, 0)
				acc.counts = append(acc.counts, 0)
			}
			acc.sums[step.Step] += step.MOCU
			acc.counts[step.Step]++
		}
	}

	curves := make([]StrategyCurve, 0, len(byStrategy))
	for strategy, acc := range byStrategy {
		values := make([]float64, len(acc.sums))
		for i := range acc.sums {
			if acc.counts[i] > 0 {
				values[i] = acc.sums[i] / float64(acc.counts[i])
			}
		}
		curves = append(curves, StrategyCurve{Strategy: strategy, Values: values, Runs: acc.runs})
	}
	sort.Slice(curves, func(i, j int) bool { return curves[i].Strategy < curves[j].Strategy })
	return curves, nil
}

// SummarizeRuns condenses run records into the per-strategy table printed
// by the report command.
type StrategySummary struct {
	Strategy       string
	Runs           int
	MeanInitial    float64
	MeanFinal      float64
	MeanElapsedMS  float64
	TotalFallbacks int
}

// SummarizeRuns groups run records by strategy.
func SummarizeRuns(records []model.RunRecord) []StrategySummary {
	byStrategy := make(map[string]*StrategySummary)
	for _, record := range records {
		summary := byStrategy[record.Strategy]
		if summary == nil {
			summary = &StrategySummary{Strategy: record.Strategy}
			byStrategy[record.Strategy] = summary
		}
		summary.Runs++
		summary.MeanInitial += record.InitialMOCU
		summary.MeanFinal += record.FinalMOCU
		summary.MeanElapsedMS += record.TotalElapsedMS
		summary.TotalFallbacks += record.SurrogateFallbacks
	}
	summaries := make([]StrategySummary, 0, len(byStrategy))
	for _, summary := range byStrategy {
		n := float64(summary.Runs)
		summary.MeanInitial /= n
		summary.MeanFinal /= n
		summary.MeanElapsedMS /= n
		summaries = append(summaries, *summary)
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Strategy < summaries[j].Strategy })
	return summaries
}
