package models

import "github.com/Muhonne/reqquli-sub000/pkg/apperrors"

func errRequired(field string) error {
	return apperrors.Validation("%s is required", field)
}

func errTooLong(field string, max int) error {
	return apperrors.Validation("%s exceeds %d characters", field, max)
}

func errRange(field string, lo, hi int) error {
	return apperrors.Validation("%s must be between %d and %d", field, lo, hi)
}
