package model

import (
	"bytes"
	"encoding/csv"
)

// DispatchStatus represents the final state of one recipient's dispatch
type DispatchStatus string

const (
	DispatchSuccess DispatchStatus = "success"
	DispatchFailed  DispatchStatus = "failed"
)

// Failure reasons reported verbatim in outcomes
const (
	ReasonInvalidEmail = "Invalid email format"
)

// DispatchOutcome records what happened for one recipient
type DispatchOutcome struct {
	Name   string         `json:"name"`
	Email  string         `json:"email"`
	Status DispatchStatus `json:"status"`
	Reason string         `json:"reason,omitempty"`
}

// Label renders the outcome the way the report presents it:
// "Success" or "Failed: <reason>"
func (o DispatchOutcome) Label() string {
	if o.Status == DispatchSuccess {
		return "Success"
	}
	return "Failed: " + o.Reason
}

// SuccessOutcome builds a success outcome for a recipient
func SuccessOutcome(name, email string) DispatchOutcome {
	return DispatchOutcome{Name: name, Email: email, Status: DispatchSuccess}
}

// FailedOutcome builds a failure outcome with the underlying reason
func FailedOutcome(name, email, reason string) DispatchOutcome {
	return DispatchOutcome{Name: name, Email: email, Status: DispatchFailed, Reason: reason}
}

// BatchReport aggregates the outcomes of one run. It lives for the
// duration of the response only and is never persisted.
type BatchReport struct {
	RunID        string            `json:"runId"`
	Total        int               `json:"total"`
	SuccessCount int               `json:"successCount"`
	Outcomes     []DispatchOutcome `json:"outcomes"`
	OutputDir    string            `json:"outputDir"`
}

// Append records an outcome, keeping the success counter in sync
func (r *BatchReport) Append(o DispatchOutcome) {
	r.Outcomes = append(r.Outcomes, o)
	if o.Status == DispatchSuccess {
		r.SuccessCount++
	}
}

// Failed returns the failed subset in original order
func (r *BatchReport) Failed() []DispatchOutcome {
	var failed []DispatchOutcome
	for _, o := range r.Outcomes {
		if o.Status == DispatchFailed {
			failed = append(failed, o)
		}
	}
	return failed
}

// FailedCSV renders the failed subset as a downloadable CSV document
// with a name,email,reason header
func (r *BatchReport) FailedCSV() string {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"name", "email", "reason"})
	for _, o := range r.Failed() {
		_ = w.Write([]string{o.Name, o.Email, o.Reason})
	}
	w.Flush()
	return buf.String()
}
