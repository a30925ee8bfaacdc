package errors

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapKeepsCode(t *testing.T) {
	base := DataFormat("dataset %q not found", "labels")
	wrapped := Wrap(base, "loading parameters")

	assert.True(t, IsDataFormat(wrapped))
	assert.Equal(t, `loading parameters: dataset "labels" not found`, wrapped.Error())

	// fmt.Errorf %w chains still resolve to the inner code
	outer := fmt.Errorf("run aborted: %w", wrapped)
	assert.Equal(t, CodeDataFormat, GetCode(outer))
}

func TestWrapPlainError(t *testing.T) {
	assert.Nil(t, Wrap(nil, "nothing"))
	assert.Equal(t, CodeInternal, GetCode(Wrap(fmt.Errorf("boom"), "ctx")))
}

func TestIOUnwrapsToCause(t *testing.T) {
	err := IO(os.ErrPermission, "out_0.jsonl")
	require.Error(t, err)
	assert.True(t, IsIO(err))
	assert.ErrorIs(t, err, os.ErrPermission)
	assert.False(t, IsConfiguration(err))
	assert.False(t, IsPhysicalModel(err))
}

func TestConstructors(t *testing.T) {
	assert.True(t, IsConfiguration(Configuration("workers must be positive, got %d", 0)))
	assert.True(t, IsPhysicalModel(PhysicalModel("ejecta mass %g", -1.0)))
	assert.Equal(t, "workers must be positive, got 0", Configuration("workers must be positive, got %d", 0).Error())
}
