package storage

import (
	"encoding/json"
	"errors"

	"syncprobe/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// StampRun fills in the current schema and codec versions before a record
// is persisted.
func StampRun(record model.RunRecord) model.RunRecord {
	record.SchemaVersion = CurrentSchemaVersion
	record.CodecVersion = CurrentCodecVersion
	return record
}

// StampSample fills in the current schema and codec versions before a
// sample is persisted.
func StampSample(sample model.DatasetSample) model.DatasetSample {
	sample.SchemaVersion = CurrentSchemaVersion
	sample.CodecVersion = CurrentCodecVersion
	return sample
}

func EncodeRunRecord(record model.RunRecord) ([]byte, error) {
	return json.Marshal(record)
}

func DecodeRunRecord(data []byte) (model.RunRecord, error) {
	var record model.RunRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(record.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return record, nil
}

func EncodeTrajectory(steps []model.TrajectoryStep) ([]byte, error) {
	return json.Marshal(steps)
}

func DecodeTrajectory(data []byte) ([]model.TrajectoryStep, error) {
	var steps []model.TrajectoryStep
	if err := json.Unmarshal(data, &steps); err != nil {
		return nil, err
	}
	return steps, nil
}

func EncodeDatasetSample(sample model.DatasetSample) ([]byte, error) {
	return json.Marshal(sample)
}

func DecodeDatasetSample(data []byte) (model.DatasetSample, error) {
	var sample model.DatasetSample
	if err := json.Unmarshal(data, &sample); err != nil {
		return model.DatasetSample{}, err
	}
	if err := checkVersion(sample.VersionedRecord); err != nil {
		return model.DatasetSample{}, err
	}
	return sample, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
