package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTestCase() *TestCase {
	return &TestCase{
		Title:       "Verify login lockout",
		Description: "Account locks after repeated failures",
		Steps: []TestStep{
			{StepNumber: 1, Action: "Enter wrong password five times", ExpectedResult: "Account is locked"},
			{StepNumber: 2, Action: "Enter correct password", ExpectedResult: "Login is rejected"},
		},
	}
}

func TestTestCase_Validate(t *testing.T) {
	require.NoError(t, validTestCase().Validate())

	tests := []struct {
		name    string
		mutate  func(*TestCase)
		wantMsg string
	}{
		{"no steps", func(tc *TestCase) { tc.Steps = nil }, "steps is required"},
		{"step number zero", func(tc *TestCase) { tc.Steps[0].StepNumber = 0 }, "step number"},
		{"duplicate step numbers", func(tc *TestCase) { tc.Steps[1].StepNumber = 1 }, "unique step numbers"},
		{"empty action", func(tc *TestCase) { tc.Steps[0].Action = "" }, "step action"},
		{"empty expected result", func(tc *TestCase) { tc.Steps[1].ExpectedResult = "" }, "step expected result"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := validTestCase()
			tt.mutate(tc)
			err := tc.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestTestCase_Step(t *testing.T) {
	tc := validTestCase()

	step := tc.Step(2)
	require.NotNil(t, step)
	assert.Equal(t, "Enter correct password", step.Action)

	assert.Nil(t, tc.Step(3))
	assert.Nil(t, tc.Step(0))
}

func TestTrace_KindsDerivedFromIDs(t *testing.T) {
	tr := &Trace{FromID: "TC-4", ToID: "TRES-12"}
	assert.Equal(t, KindTestCase, tr.FromKind())
	assert.Equal(t, KindTestResult, tr.ToKind())

	tr = &Trace{FromID: "ur-1", ToID: "sr-2"}
	assert.Equal(t, KindUserRequirement, tr.FromKind())
	assert.Equal(t, KindSystemRequirement, tr.ToKind())
}
