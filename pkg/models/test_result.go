package models

import (
	"time"

	"github.com/google/uuid"
)

// ResultValue is a recorded pass/fail outcome. Pending is used only on
// aggregates (run cases and runs) that have not finished executing.
type ResultValue string

const (
	ResultPending ResultValue = "pending"
	ResultPass    ResultValue = "pass"
	ResultFail    ResultValue = "fail"
)

// TestResult is the derived, immutable evidence entity minted when a test
// run is approved. Identified by "TRES-<n>". It is never created, edited or
// deleted by a caller; only the execution pipeline writes it, together with
// the system-generated trace edge from its test case.
type TestResult struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	Result     ResultValue `json:"result"`
	TestCaseID string      `json:"testCaseId"`
	TestRunID  uuid.UUID   `json:"testRunId"`
	ExecutedBy uuid.UUID   `json:"executedBy"`
	ExecutedAt time.Time   `json:"executedAt"`
	CreatedAt  time.Time   `json:"createdAt"`
}
