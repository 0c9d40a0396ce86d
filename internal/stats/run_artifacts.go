// Package stats persists run artifacts: per-run records and trajectory
// tables, multi-run experiment records with resume support, and the
// cross-strategy comparison outputs consumed by reporting.
package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"syncprobe/internal/model"
)

const (
	runsDir        = "runs"
	experimentsDir = "experiments"
	trajectoryFile = "trajectory.csv"
	runFile        = "run.json"
)

// WriteRunRecord persists one run summary under baseDir/runs/<runID>/.
func WriteRunRecord(baseDir string, record model.RunRecord) error {
	if record.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	path := filepath.Join(baseDir, runsDir, record.RunID, runFile)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

// ReadRunRecord loads one run summary.
func ReadRunRecord(baseDir, runID string) (model.RunRecord, bool, error) {
	if runID == "" {
		return model.RunRecord{}, false, fmt.Errorf("run id is required")
	}
	data, err := os.ReadFile(filepath.Join(baseDir, runsDir, runID, runFile))
	if err != nil {
		if os.IsNotExist(err) {
			return model.RunRecord{}, false, nil
		}
		return model.RunRecord{}, false, err
	}
	var record model.RunRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return model.RunRecord{}, false, err
	}
	return record, true, nil
}

// WriteTrajectoryCSV writes the run trajectory as the simple tabular
// artifact the comparison tooling consumes: one row per step.
func WriteTrajectoryCSV(baseDir, runID string, steps []model.TrajectoryStep) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}
	path := filepath.Join(baseDir, runsDir, runID, trajectoryFile)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	file, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	header := []string{"step", "pair_i", "pair_j", "synchronized", "mocu", "mocu_std_err", "precision_shortfall", "surrogate_fell_back", "elapsed_ms"}
	if err := writer.Write(header); err != nil {
		return "", err
	}
	for _, step := range steps {
		row := []string{
			strconv.Itoa(step.Step),
			strconv.Itoa(step.PairI),
			strconv.Itoa(step.PairJ),
			strconv.FormatBool(step.Synchronized),
			strconv.FormatFloat(step.MOCU, 'g', -1, 64),
			strconv.FormatFloat(step.MOCUStdErr, 'g', -1, 64),
			strconv.FormatBool(step.PrecisionShortfall),
			strconv.FormatBool(step.SurrogateFellBack),
			strconv.FormatFloat(step.ElapsedMS, 'g', -1, 64),
		}
		if err := writer.Write(row); err != nil {
			return "", err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", err
	}
	return path, nil
}

// ReadTrajectoryCSV loads a trajectory previously written by
// WriteTrajectoryCSV.
func ReadTrajectoryCSV(baseDir, runID string) ([]model.TrajectoryStep, bool, error) {
	file, err := os.Open(filepath.Join(baseDir, runsDir, runID, trajectoryFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return []model.TrajectoryStep{}, true, nil
	}
	steps := make([]model.TrajectoryStep, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) != 9 {
			return nil, false, fmt.Errorf("trajectory row %d has %d columns, want 9", i+1, len(row))
		}
		step, err := parseTrajectoryRow(row)
		if err != nil {
			return nil, false, fmt.Errorf("trajectory row %d: %w", i+1, err)
		}
		steps = append(steps, step)
	}
	return steps, true, nil
}

func parseTrajectoryRow(row []string) (model.TrajectoryStep, error) {
	var step model.TrajectoryStep
	var err error
	if step.Step, err = strconv.Atoi(row[0]); err != nil {
		return step, err
	}
	if step.PairI, err = strconv.Atoi(row[1]); err != nil {
		return step, err
	}
	if step.PairJ, err = strconv.Atoi(row[2]); err != nil {
		return step, err
	}
	if step.Synchronized, err = strconv.ParseBool(row[3]); err != nil {
		return step, err
	}
	if step.MOCU, err = strconv.ParseFloat(row[4], 64); err != nil {
		return step, err
	}
	if step.MOCUStdErr, err = strconv.ParseFloat(row[5], 64); err != nil {
		return step, err
	}
	if step.PrecisionShortfall, err = strconv.ParseBool(row[6]); err != nil {
		return step, err
	}
	if step.SurrogateFellBack, err = strconv.ParseBool(row[7]); err != nil {
		return step, err
	}
	if step.ElapsedMS, err = strconv.ParseFloat(row[8], 64); err != nil {
		return step, err
	}
	return step, nil
}

// Experiment progress flags.
const (
	ExperimentInProgress = "in_progress"
	ExperimentCompleted  = "completed"
)

// ExperimentRecord tracks a multi-run experiment so interrupted sweeps can
// resume at the run they stopped in.
type ExperimentRecord struct {
	ID             string            `json:"id"`
	Notes          string            `json:"notes,omitempty"`
	ProgressFlag   string            `json:"progress_flag"`
	RunIndex       int               `json:"run_index"`
	TotalRuns      int               `json:"total_runs"`
	Strategies     []string          `json:"strategies,omitempty"`
	StartedAtUTC   string            `json:"started_at_utc,omitempty"`
	CompletedAtUTC string            `json:"completed_at_utc,omitempty"`
	Interruptions  []string          `json:"interruptions,omitempty"`
	RunIDs         []string          `json:"run_ids,omitempty"`
	Summaries      []model.RunRecord `json:"summaries,omitempty"`
}

// WriteExperimentRecord persists an experiment record.
func WriteExperimentRecord(baseDir string, record ExperimentRecord) error {
	if record.ID == "" {
		return fmt.Errorf("experiment id is required")
	}
	path := experimentPath(baseDir, record.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

// ReadExperimentRecord loads an experiment record by id.
func ReadExperimentRecord(baseDir, id string) (ExperimentRecord, bool, error) {
	if id == "" {
		return ExperimentRecord{}, false, fmt.Errorf("experiment id is required")
	}
	data, err := os.ReadFile(experimentPath(baseDir, id))
	if err != nil {
		if os.IsNotExist(err) {
			return ExperimentRecord{}, false, nil
		}
		return ExperimentRecord{}, false, err
	}
	var record ExperimentRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return ExperimentRecord{}, false, err
	}
	return record, true, nil
}

// ListExperimentRecords returns every experiment record, most recent
// first.
func ListExperimentRecords(baseDir string) ([]ExperimentRecord, error) {
	root := filepath.Join(baseDir, experimentsDir)
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return []ExperimentRecord{}, nil
		}
		return nil, err
	}
	records := make([]ExperimentRecord, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		record, ok, err := ReadExperimentRecord(baseDir, entry.Name())
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		switch {
		case records[i].StartedAtUTC == records[j].StartedAtUTC:
			return records[i].ID < records[j].ID
		case records[i].StartedAtUTC == "":
			return false
		case records[j].StartedAtUTC == "":
			return true
		default:
			return records[i].StartedAtUTC > records[j].StartedAtUTC
		}
	})
	return records, nil
}

func experimentPath(baseDir, id string) string {
	return filepath.Join(baseDir, experimentsDir, id, "experiment.json")
}
