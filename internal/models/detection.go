package models

import "time"

// DetectionResult is the output of scoring one AnalysisSummary against a
// detection model. It is consumed immediately by the healing dispatcher and
// is not persisted as first-class state.
type DetectionResult struct {
	ModelName  string    `json:"model_name"`
	Score      float64   `json:"score"`
	Threshold  float64   `json:"threshold"`
	Verdict    bool      `json:"verdict"`
	SubjectID  string    `json:"subject_id"`
	ProducedAt time.Time `json:"produced_at"`
}
