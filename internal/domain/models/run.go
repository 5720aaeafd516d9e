package models

import "time"

// RunStatus classifies the outcome of one synchronization run.
type RunStatus string

const (
	RunSuccess         RunStatus = "Success"
	RunPartiallyFailed RunStatus = "Partially Failed"
	RunFail            RunStatus = "Fail"
)

// RunResult is what a synchronization run returns to its caller.
type RunResult struct {
	RunID     string
	Status    RunStatus
	Message   string
	Errors    []error
	StartedAt time.Time
	Duration  time.Duration
	Requests  int // planned fetch requests
	Records   int // records handed to the store
	Passes    int // fetch passes executed
}

// RunReport is the serializable form of a RunResult.
type RunReport struct {
	RunID      string    `json:"run_id"`
	Trigger    string    `json:"trigger"`
	Status     RunStatus `json:"status"`
	Message    string    `json:"message"`
	Errors     []string  `json:"errors,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs int64     `json:"duration_ms"`
	Requests   int       `json:"requests"`
	Records    int       `json:"records"`
	Passes     int       `json:"passes"`
}

// NewRunReport converts r for publishing. trigger names what started the run.
func NewRunReport(r RunResult, trigger string) RunReport {
	errs := make([]string, 0, len(r.Errors))
	for _, err := range r.Errors {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return RunReport{
		RunID:      r.RunID,
		Trigger:    trigger,
		Status:     r.Status,
		Message:    r.Message,
		Errors:     errs,
		StartedAt:  r.StartedAt,
		DurationMs: r.Duration.Milliseconds(),
		Requests:   r.Requests,
		Records:    r.Records,
		Passes:     r.Passes,
	}
}
