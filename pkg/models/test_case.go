package models

// TestStep is one numbered step of a test case definition. Steps are part
// of the test case content; executing them produces TestStepResult rows in
// a test run.
type TestStep struct {
	StepNumber     int    `json:"stepNumber"`
	Action         string `json:"action"`
	ExpectedResult string `json:"expectedResult"`
}

// TestCase is a lifecycle-bearing entity describing a verification
// procedure. Identified by "TC-<n>". Only approved test cases may be pulled
// into a test run.
type TestCase struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Steps       []TestStep `json:"steps"`
	LifecycleFields
}

func (t *TestCase) EntityID() string              { return t.ID }
func (t *TestCase) EntityKind() EntityKind        { return KindTestCase }
func (t *TestCase) EntityTitle() string           { return t.Title }
func (t *TestCase) SetEntityTitle(title string)   { t.Title = title }
func (t *TestCase) EntityDescription() string     { return t.Description }
func (t *TestCase) SetEntityDescription(d string) { t.Description = d }
func (t *TestCase) Lifecycle() *LifecycleFields   { return &t.LifecycleFields }

func (t *TestCase) Validate() error {
	if err := validateTitleDescription(t.Title, t.Description); err != nil {
		return err
	}
	if len(t.Steps) == 0 {
		return errRequired("steps")
	}
	seen := make(map[int]bool, len(t.Steps))
	for _, step := range t.Steps {
		if step.StepNumber < 1 {
			return errRequired("step number")
		}
		if seen[step.StepNumber] {
			return errRequired("unique step numbers")
		}
		seen[step.StepNumber] = true
		if step.Action == "" {
			return errRequired("step action")
		}
		if step.ExpectedResult == "" {
			return errRequired("step expected result")
		}
	}
	return nil
}

// Step returns the definition for the given step number, or nil.
func (t *TestCase) Step(number int) *TestStep {
	for i := range t.Steps {
		if t.Steps[i].StepNumber == number {
			return &t.Steps[i]
		}
	}
	return nil
}

var _ LifecycleEntity = (*TestCase)(nil)
