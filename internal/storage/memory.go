package storage

import (
	"context"
	"sort"
	"sync"

	"syncprobe/internal/model"
)

type MemoryStore struct {
	mu           sync.RWMutex
	runs         map[string]model.RunRecord
	trajectories map[string][]model.TrajectoryStep
	samples      map[string]model.DatasetSample
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs = make(map[string]model.RunRecord)
	s.trajectories = make(map[string][]model.TrajectoryStep)
	s.samples = make(map[string]model.DatasetSample)
	return nil
}

func (s *MemoryStore) SaveRunRecord(_ context.Context, record model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[record.RunID] = StampRun(record)
	return nil
}

func (s *MemoryStore) GetRunRecord(_ context.Context, runID string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.runs[runID]
	return record, ok, nil
}

func (s *MemoryStore) ListRunIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.runs))
	for id := range s.runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) SaveTrajectory(_ context.Context, runID string, steps []model.TrajectoryStep) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]model.TrajectoryStep, len(steps))
	copy(copied, steps)
	s.trajectories[runID] = copied
	return nil
}

func (s *MemoryStore) GetTrajectory(_ context.Context, runID string) ([]model.TrajectoryStep, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	steps, ok := s.trajectories[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.TrajectoryStep, len(steps))
	copy(copied, steps)
	return copied, true, nil
}

func (s *MemoryStore) SaveDatasetSample(_ context.Context, sample model.DatasetSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.samples[sample.ID] = StampSample(sample)
	return nil
}

func (s *MemoryStore) ListDatasetSamples(_ context.Context, kind string) ([]model.DatasetSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	samples := make([]model.DatasetSample, 0, len(s.samples))
	for _, sample := range s.samples {
		if kind != "" && sample.Kind != kind {
			continue
		}
		samples = append(samples, sample)
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i].ID < samples[j].ID })
	return samples, nil
}
