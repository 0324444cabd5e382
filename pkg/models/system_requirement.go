package models

// SystemRequirement refines user requirements into system behavior.
// Identified by "SR-<n>".
type SystemRequirement struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	LifecycleFields
}

func (s *SystemRequirement) EntityID() string              { return s.ID }
func (s *SystemRequirement) EntityKind() EntityKind        { return KindSystemRequirement }
func (s *SystemRequirement) EntityTitle() string           { return s.Title }
func (s *SystemRequirement) SetEntityTitle(t string)       { s.Title = t }
func (s *SystemRequirement) EntityDescription() string     { return s.Description }
func (s *SystemRequirement) SetEntityDescription(d string) { s.Description = d }
func (s *SystemRequirement) Lifecycle() *LifecycleFields   { return &s.LifecycleFields }

func (s *SystemRequirement) Validate() error {
	return validateTitleDescription(s.Title, s.Description)
}

var _ LifecycleEntity = (*SystemRequirement)(nil)
