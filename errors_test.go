package hnswstore

import (
	"errors"
	"fmt"
	"testing"

	"github.com/hupe1980/hnswstore/internal/hnsw"
	"github.com/hupe1980/hnswstore/metric"
	"github.com/hupe1980/hnswstore/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateError(t *testing.T) {
	assert.NoError(t, translateError(nil))

	t.Run("graph dimension mismatch", func(t *testing.T) {
		cause := fmt.Errorf("search: %w", &hnsw.ErrDimensionMismatch{Expected: 4, Actual: 2})
		err := translateError(cause)

		var dm *ErrDimensionMismatch
		require.ErrorAs(t, err, &dm)
		assert.Equal(t, 4, dm.Expected)
		assert.Equal(t, 2, dm.Actual)
		assert.ErrorIs(t, err, ErrInvalidInput)
		assert.Equal(t, cause, errors.Unwrap(err))
	})

	t.Run("metric dimension mismatch", func(t *testing.T) {
		err := translateError(&metric.ErrDimensionMismatch{Expected: 3, Actual: 5})

		var dm *ErrDimensionMismatch
		require.ErrorAs(t, err, &dm)
		assert.Equal(t, 5, dm.Actual)
	})

	t.Run("public error passes through", func(t *testing.T) {
		orig := &ErrDimensionMismatch{Expected: 1, Actual: 2}
		assert.Same(t, orig, translateError(orig))
	})

	t.Run("invalid dimension", func(t *testing.T) {
		err := translateError(&hnsw.ErrInvalidDimension{Dimension: 0})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("memory limit", func(t *testing.T) {
		err := translateError(resource.ErrMemoryLimitExceeded)
		assert.ErrorIs(t, err, ErrResourceExhausted)
		assert.ErrorIs(t, err, resource.ErrMemoryLimitExceeded)
	})

	t.Run("unknown", func(t *testing.T) {
		other := errors.New("other")
		assert.Equal(t, other, translateError(other))
	})
}

func TestErrInvalidK(t *testing.T) {
	assert.ErrorIs(t, ErrInvalidK, ErrInvalidInput)
	assert.NotErrorIs(t, ErrNotInitialized, ErrInvalidInput)
}
