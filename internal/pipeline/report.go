package pipeline

import (
	"time"
)

// Outcome summarizes how a cycle ended.
type Outcome string

const (
	OutcomeUploaded    Outcome = "uploaded"
	OutcomeDuplicate   Outcome = "duplicate"
	OutcomeNoPrompts   Outcome = "no-prompts"
	OutcomeNoSurvivors Outcome = "no-survivors"
	OutcomeFailed      Outcome = "failed"
)

// ReasonUnevaluated marks a prompt held back because no test model produced a
// usable evaluation for it.
const ReasonUnevaluated = "unevaluated"

// CycleReport describes one source cycle.
type CycleReport struct {
	Source          string        `json:"source"`
	Fingerprint     string        `json:"fingerprint,omitempty"`
	Outcome         Outcome       `json:"outcome"`
	Items           int           `json:"items"`
	Generated       int           `json:"generated"`
	Evaluations     int           `json:"evaluations"`
	Kept            int           `json:"kept"`
	Rejected        int           `json:"rejected"`
	PromptsUploaded int           `json:"promptsUploaded"`
	ScoresUploaded  int           `json:"scoresUploaded"`
	Error           string        `json:"error,omitempty"`
	ScoreError      string        `json:"scoreError,omitempty"`
	StartedAt       time.Time     `json:"startedAt"`
	Duration        time.Duration `json:"durationNs"`
}

// Failed reports whether the cycle ended in an error.
func (r CycleReport) Failed() bool {
	return r.Outcome == OutcomeFailed
}

func (r *CycleReport) fail(err error) CycleReport {
	r.Outcome = OutcomeFailed
	if err != nil {
		r.Error = err.Error()
	}
	return *r
}
