package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"syncprobe/internal/model"
)

func testRunRecord(id string) model.RunRecord {
	return model.RunRecord{
		RunID:       id,
		Strategy:    "iODE",
		Oscillators: 3,
		Seed:        7,
		Steps:       2,
		InitialMOCU: 0.9,
		FinalMOCU:   0.4,
	}
}

func testSample(id, kind string) model.DatasetSample {
	return model.DatasetSample{
		ID:          id,
		Kind:        kind,
		Oscillators: 3,
		Frequencies: []float64{-0.7, 0.1, 0.6},
		Intervals: []model.IntervalRecord{
			{Low: 0, High: 3}, {Low: 0.5, High: 2}, {Low: 1, High: 1.5},
		},
		CandidateI: -1,
		CandidateJ: -1,
		Label:      0.42,
	}
}

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	stores := map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": NewSQLiteStore(filepath.Join(t.TempDir(), "syncprobe.db")),
	}
	for name, store := range stores {
		if err := store.Init(context.Background()); err != nil {
			t.Fatalf("init %s: %v", name, err)
		}
	}
	t.Cleanup(func() {
		for _, store := range stores {
			_ = CloseIfSupported(store)
		}
	})
	return stores
}

func TestStoreRunRecordRoundTrip(t *testing.T) {
	for name, store := range openStores(t) {
		ctx := context.Background()
		if err := store.SaveRunRecord(ctx, testRunRecord("run-1")); err != nil {
			t.Fatalf("%s save: %v", name, err)
		}
		record, ok, err := store.GetRunRecord(ctx, "run-1")
		if err != nil {
			t.Fatalf("%s get: %v", name, err)
		}
		if !ok {
			t.Fatalf("%s: expected run-1 to exist", name)
		}
		if record.Strategy != "iODE" || record.FinalMOCU != 0.4 {
			t.Fatalf("%s: unexpected payload %+v", name, record)
		}
		if record.SchemaVersion != CurrentSchemaVersion || record.CodecVersion != CurrentCodecVersion {
			t.Fatalf("%s: record was not stamped: %+v", name, record.VersionedRecord)
		}

		if _, ok, err := store.GetRunRecord(ctx, "missing"); err != nil || ok {
			t.Fatalf("%s: expected missing run to report ok=false, got ok=%v err=%v", name, ok, err)
		}
	}
}

func TestStoreListRunIDsIsSorted(t *testing.T) {
	for name, store := range openStores(t) {
		ctx := context.Background()
		for _, id := range []string{"run-c", "run-a", "run-b"} {
			if err := store.SaveRunRecord(ctx, testRunRecord(id)); err != nil {
				t.Fatalf("%s save %s: %v", name, id, err)
			}
		}
		ids, err := store.ListRunIDs(ctx)
		if err != nil {
			t.Fatalf("%s list: %v", name, err)
		}
		want := []string{"run-a", "run-b", "run-c"}
		if len(ids) != len(want) {
			t.Fatalf("%s: expected %d ids, got %v", name, len(want), ids)
		}
		for i := range want {
			if ids[i] != want[i] {
				t.Fatalf("%s: expected sorted ids %v, got %v", name, want, ids)
			}
		}
	}
}

func TestStoreTrajectoryRoundTrip(t *testing.T) {
	steps := []model.TrajectoryStep{
		{Step: 0, PairI: 0, PairJ: 1, Synchronized: true, MOCU: 0.8, MOCUStdErr: 0.01},
		{Step: 1, PairI: 1, PairJ: 2, MOCU: 0.3, PrecisionShortfall: true},
	}
	for name, store := range openStores(t) {
		ctx := context.Background()
		if err := store.SaveTrajectory(ctx, "run-1", steps); err != nil {
			t.Fatalf("%s save: %v", name, err)
		}
		read, ok, err := store.GetTrajectory(ctx, "run-1")
		if err != nil {
			t.Fatalf("%s get: %v", name, err)
		}
		if !ok || len(read) != 2 {
			t.Fatalf("%s: unexpected trajectory ok=%v len=%d", name, ok, len(read))
		}
		for i := range steps {
			if read[i] != steps[i] {
				t.Fatalf("%s: row %d changed in round trip", name, i)
			}
		}
		if _, ok, err := store.GetTrajectory(ctx, "missing"); err != nil || ok {
			t.Fatalf("%s: expected missing trajectory to report ok=false", name)
		}
	}
}

func TestStoreDatasetSampleFiltering(t *testing.T) {
	for name, store := range openStores(t) {
		ctx := context.Background()
		samples := []model.DatasetSample{
			testSample("s-b", model.SampleKindMOCU),
			testSample("s-a", model.SampleKindMOCU),
			testSample("s-c", model.SampleKindExpectedRemaining),
		}
		for _, sample := range samples {
			if err := store.SaveDatasetSample(ctx, sample); err != nil {
				t.Fatalf("%s save %s: %v", name, sample.ID, err)
			}
		}

		all, err := store.ListDatasetSamples(ctx, "")
		if err != nil {
			t.Fatalf("%s list all: %v", name, err)
		}
		if len(all) != 3 || all[0].ID != "s-a" {
			t.Fatalf("%s: expected 3 samples sorted by id, got %+v", name, all)
		}
		if all[0].SchemaVersion != CurrentSchemaVersion {
			t.Fatalf("%s: sample was not stamped", name)
		}

		mocuOnly, err := store.ListDatasetSamples(ctx, model.SampleKindMOCU)
		if err != nil {
			t.Fatalf("%s list mocu: %v", name, err)
		}
		if len(mocuOnly) != 2 {
			t.Fatalf("%s: expected 2 MOCU samples, got %d", name, len(mocuOnly))
		}
	}
}

func TestDecodeRejectsVersionMismatch(t *testing.T) {
	record := StampRun(testRunRecord("run-1"))
	record.CodecVersion = CurrentCodecVersion + 1
	payload, err := EncodeRunRecord(record)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeRunRecord(payload); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}

	sample := StampSample(testSample("s-1", model.SampleKindMOCU))
	sample.SchemaVersion = CurrentSchemaVersion + 1
	data, err := EncodeDatasetSample(sample)
	if err != nil {
		t.Fatalf("encode sample: %v", err)
	}
	if _, err := DecodeDatasetSample(data); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch for sample, got %v", err)
	}
}

func TestNewStoreSelectsBackend(t *testing.T) {
	store, err := NewStore("", "")
	if err != nil {
		t.Fatalf("default backend: %v", err)
	}
	if _, ok := store.(*MemoryStore); !ok {
		t.Fatalf("expected default backend to be the memory store, got %T", store)
	}

	store, err = NewStore("sqlite", filepath.Join(t.TempDir(), "syncprobe.db"))
	if err != nil {
		t.Fatalf("sqlite backend: %v", err)
	}
	if _, ok := store.(*SQLiteStore); !ok {
		t.Fatalf("expected sqlite backend, got %T", store)
	}

	if _, err := NewStore("postgres", ""); err == nil {
		t.Fatalf("expected unsupported backend to be rejected")
	}
}

func TestSQLiteRequiresPathAndInit(t *testing.T) {
	store := NewSQLiteStore("")
	if err := store.Init(context.Background()); err == nil {
		t.Fatalf("expected empty path to be rejected")
	}

	uninitialized := NewSQLiteStore(filepath.Join(t.TempDir(), "syncprobe.db"))
	if err := uninitialized.SaveRunRecord(context.Background(), testRunRecord("run-1")); err == nil {
		t.Fatalf("expected save before Init to fail")
	}
}
