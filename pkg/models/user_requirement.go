package models

// UserRequirement captures a need expressed by the end user. Identified by
// "UR-<n>".
type UserRequirement struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	LifecycleFields
}

func (u *UserRequirement) EntityID() string              { return u.ID }
func (u *UserRequirement) EntityKind() EntityKind        { return KindUserRequirement }
func (u *UserRequirement) EntityTitle() string           { return u.Title }
func (u *UserRequirement) SetEntityTitle(t string)       { u.Title = t }
func (u *UserRequirement) EntityDescription() string     { return u.Description }
func (u *UserRequirement) SetEntityDescription(d string) { u.Description = d }
func (u *UserRequirement) Lifecycle() *LifecycleFields   { return &u.LifecycleFields }

func (u *UserRequirement) Validate() error {
	return validateTitleDescription(u.Title, u.Description)
}

var _ LifecycleEntity = (*UserRequirement)(nil)
