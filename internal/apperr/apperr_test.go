package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassification(t *testing.T) {
	err := fmt.Errorf("adjust: %w", Invalid("quantity %s must not be negative", "-1"))
	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "adjust: invalid input: quantity -1 must not be negative", err.Error())

	nf := NotFound("material %d", 9)
	assert.True(t, errors.Is(nf, ErrNotFound))
	assert.Equal(t, "not found: material 9", nf.Error())
}
