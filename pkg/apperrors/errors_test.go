package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructorsWrapSentinels(t *testing.T) {
	tests := []struct {
		err      error
		sentinel error
	}{
		{Validation("title is required"), ErrValidation},
		{BadRequest("password required"), ErrBadRequest},
		{Unauthorized("invalid password"), ErrUnauthorized},
		{NotFound("UR-4 not found"), ErrNotFound},
		{Conflict("title taken"), ErrConflict},
	}

	for _, tt := range tests {
		assert.True(t, errors.Is(tt.err, tt.sentinel), "%v should wrap %v", tt.err, tt.sentinel)
	}
}

func TestConstructorsFormatArgs(t *testing.T) {
	err := NotFound("%s not found", "UR-14")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UR-14 not found")
}

func TestClassificationSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("service call failed: %w", Conflict("trace from UR-1 to SR-2 already exists"))
	assert.True(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrNotFound))
}
