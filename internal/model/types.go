package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// TrajectoryStep is one row of a run trajectory: the pair probed at this
// step, the observed outcome, and the realized MOCU recomputed by direct
// Monte Carlo so rows stay comparable across strategies.
type TrajectoryStep struct {
	Step               int     `json:"step"`
	PairI              int     `json:"pair_i"`
	PairJ              int     `json:"pair_j"`
	Synchronized       bool    `json:"synchronized"`
	MOCU               float64 `json:"mocu"`
	MOCUStdErr         float64 `json:"mocu_std_err"`
	PrecisionShortfall bool    `json:"precision_shortfall,omitempty"`
	SurrogateFellBack  bool    `json:"surrogate_fell_back,omitempty"`
	ElapsedMS          float64 `json:"elapsed_ms"`
}

// RunRecord is the persisted summary of one experiment-design run.
type RunRecord struct {
	VersionedRecord
	RunID              string  `json:"run_id"`
	Strategy           string  `json:"strategy"`
	Oscillators        int     `json:"oscillators"`
	Seed               int64   `json:"seed"`
	Steps              int     `json:"steps"`
	UpdatePolicy       string  `json:"update_policy"`
	Terminated         string  `json:"terminated"`
	StartedAtUTC       string  `json:"started_at_utc,omitempty"`
	CompletedAtUTC     string  `json:"completed_at_utc,omitempty"`
	InitialMOCU        float64 `json:"initial_mocu"`
	FinalMOCU          float64 `json:"final_mocu"`
	SurrogateFallbacks int     `json:"surrogate_fallbacks,omitempty"`
	TotalElapsedMS     float64 `json:"total_elapsed_ms"`
}

// Termination reasons recorded on RunRecord.Terminated.
const (
	TerminatedStepBudget          = "step_budget"
	TerminatedExhaustedCandidates = "exhausted_candidates"
)

// IntervalRecord is one serialized coupling bound.
type IntervalRecord struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Dataset sample kinds.
const (
	SampleKindMOCU              = "mocu"
	SampleKindExpectedRemaining = "expected_remaining"
)

// DatasetSample is one surrogate-training label produced by the core's
// Oracle+Estimator acting as a label-generation service: a bound state,
// optionally a candidate pair, and the direct Monte Carlo value for it.
// CandidateI/CandidateJ are -1 for plain MOCU samples.
type DatasetSample struct {
	VersionedRecord
	ID          string           `json:"id"`
	Kind        string           `json:"kind"`
	Oscillators int              `json:"oscillators"`
	Frequencies []float64        `json:"frequencies"`
	Intervals   []IntervalRecord `json:"intervals"`
	CandidateI  int              `json:"candidate_i"`
	CandidateJ  int              `json:"candidate_j"`
	Label       float64          `json:"label"`
}
