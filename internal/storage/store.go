package storage

import (
	"context"

	"syncprobe/internal/model"
)

// Store defines persistence for run summaries, trajectories and
// surrogate-training samples.
type Store interface {
	Init(ctx context.Context) error
	SaveRunRecord(ctx context.Context, record model.RunRecord) error
	GetRunRecord(ctx context.Context, runID string) (model.RunRecord, bool, error)
	ListRunIDs(ctx context.Context) ([]string, error)
	SaveTrajectory(ctx context.Context, runID string, steps []model.TrajectoryStep) error
	GetTrajectory(ctx context.Context, runID string) ([]model.TrajectoryStep, bool, error)
	SaveDatasetSample(ctx context.Context, sample model.DatasetSample) error
	ListDatasetSamples(ctx context.Context, kind string) ([]model.DatasetSample, error)
}
