package models

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is the state of a test run.
type RunStatus string

const (
	RunNotStarted RunStatus = "not_started"
	RunInProgress RunStatus = "in_progress"
	RunComplete   RunStatus = "complete"
	RunApproved   RunStatus = "approved"
)

// CaseStatus is the state of a single test-run-case.
type CaseStatus string

const (
	CaseNotStarted CaseStatus = "not_started"
	CaseInProgress CaseStatus = "in_progress"
	CaseComplete   CaseStatus = "complete"
)

// TestRun executes a set of approved test cases.
//
// State machine: not_started → in_progress → complete → approved. The run
// enters in_progress on the first case transition and completes
// automatically once every case is complete. OverallResult is fail if any
// case failed. Once approved no case may be modified.
type TestRun struct {
	ID            uuid.UUID      `json:"id"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	Status        RunStatus      `json:"status"`
	OverallResult ResultValue    `json:"overallResult"`
	CreatedBy     uuid.UUID      `json:"createdBy"`
	CreatedAt     time.Time      `json:"createdAt"`
	ApprovedBy    *uuid.UUID     `json:"approvedBy,omitempty"`
	ApprovedAt    *time.Time     `json:"approvedAt,omitempty"`
	Cases         []*TestRunCase `json:"testRunCases,omitempty"`
}

// TestRunCase is one (test run, test case) pairing, fixed at run creation.
//
// State machine: not_started → in_progress → complete. Entering
// in_progress clears any previous step results; complete is reached once
// every step of the test case has a recorded outcome. Result is fail if at
// least one step failed.
type TestRunCase struct {
	ID          uuid.UUID         `json:"id"`
	TestRunID   uuid.UUID         `json:"testRunId"`
	TestCaseID  string            `json:"testCaseId"`
	Status      CaseStatus        `json:"status"`
	Result      ResultValue       `json:"result"`
	ExecutedBy  *uuid.UUID        `json:"executedBy,omitempty"`
	ExecutedAt  *time.Time        `json:"executedAt,omitempty"`
	StepResults []*TestStepResult `json:"stepResults,omitempty"`
}

// TestStepResult is the recorded outcome of one step of a run case. Upserts
// are keyed by (TestRunCaseID, StepNumber); the last write per step wins.
// ExpectedResult is copied from the step definition at recording time, so
// the evidence keeps its expected-vs-actual pairing even after the test
// case is edited.
type TestStepResult struct {
	ID             uuid.UUID   `json:"id"`
	TestRunCaseID  uuid.UUID   `json:"testRunCaseId"`
	StepNumber     int         `json:"stepNumber"`
	Status         ResultValue `json:"status"`
	ExpectedResult string      `json:"expectedResult"`
	ActualResult   string      `json:"actualResult"`
	EvidenceRef    string      `json:"evidenceRef,omitempty"`
	RecordedBy     uuid.UUID   `json:"recordedBy"`
	RecordedAt     time.Time   `json:"recordedAt"`
}
