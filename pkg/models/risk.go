package models

import "strconv"

// Probability and severity bounds for risk scoring.
const (
	RiskScaleMin = 1
	RiskScaleMax = 5
)

// Risk is a lifecycle-bearing entity with severity/probability scoring.
// Identified by "RISK-<n>".
//
// PTotal is always persisted as max(ProbabilityP1, ProbabilityP2). The
// PTotalCalculationMethod field documents how the team arrived at the
// probabilities; it is stored verbatim and never interpreted.
type Risk struct {
	ID                      string `json:"id"`
	Title                   string `json:"title"`
	Description             string `json:"description"`
	Severity                int    `json:"severity"`
	ProbabilityP1           int    `json:"probabilityP1"`
	ProbabilityP2           int    `json:"probabilityP2"`
	PTotal                  int    `json:"pTotal"`
	PTotalCalculationMethod string `json:"pTotalCalculationMethod"`
	LifecycleFields
}

func (r *Risk) EntityID() string              { return r.ID }
func (r *Risk) EntityKind() EntityKind        { return KindRisk }
func (r *Risk) EntityTitle() string           { return r.Title }
func (r *Risk) SetEntityTitle(t string)       { r.Title = t }
func (r *Risk) EntityDescription() string     { return r.Description }
func (r *Risk) SetEntityDescription(d string) { r.Description = d }
func (r *Risk) Lifecycle() *LifecycleFields   { return &r.LifecycleFields }

func (r *Risk) Validate() error {
	if err := validateTitleDescription(r.Title, r.Description); err != nil {
		return err
	}
	if r.Severity < RiskScaleMin || r.Severity > RiskScaleMax {
		return errRange("severity", RiskScaleMin, RiskScaleMax)
	}
	if r.ProbabilityP1 < RiskScaleMin || r.ProbabilityP1 > RiskScaleMax {
		return errRange("probabilityP1", RiskScaleMin, RiskScaleMax)
	}
	if r.ProbabilityP2 < RiskScaleMin || r.ProbabilityP2 > RiskScaleMax {
		return errRange("probabilityP2", RiskScaleMin, RiskScaleMax)
	}
	if r.PTotalCalculationMethod == "" {
		return errRequired("pTotalCalculationMethod")
	}
	return nil
}

// Recalculate refreshes the persisted PTotal from the current probabilities.
// Called whenever severity, P1, P2 or the method change; never on read.
func (r *Risk) Recalculate() {
	r.PTotal = ComputePTotal(r.ProbabilityP1, r.ProbabilityP2)
}

// Score returns the display score, severity concatenated with pTotal:
// severity 4 and pTotal 3 render as "43".
func (r *Risk) Score() string {
	return RiskScore(r.Severity, r.PTotal)
}

// ComputePTotal is the risk score calculator: the combined probability is
// the maximum of the two input probabilities. Inputs are validated against
// [RiskScaleMin, RiskScaleMax] before this is reached.
func ComputePTotal(p1, p2 int) int {
	if p1 > p2 {
		return p1
	}
	return p2
}

// RiskScore renders the severity/pTotal pair as the two-digit display value.
func RiskScore(severity, pTotal int) string {
	return strconv.Itoa(severity) + strconv.Itoa(pTotal)
}

var _ LifecycleEntity = (*Risk)(nil)
