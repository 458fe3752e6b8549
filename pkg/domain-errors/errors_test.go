package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCode(t *testing.T) {
	base := errors.New("connection reset")

	t.Run("direct code", func(t *testing.T) {
		err := New(CodeNotFound, "certificate not found")
		assert.True(t, HasCode(err, CodeNotFound))
		assert.False(t, HasCode(err, CodeConflict))
	})

	t.Run("wrapped with fmt", func(t *testing.T) {
		err := fmt.Errorf("issue: %w", Wrap(base, CodeAnchoringFailed, "ledger rejected transaction"))
		assert.True(t, HasCode(err, CodeAnchoringFailed))
		assert.ErrorIs(t, err, base)
	})

	t.Run("nested domain errors", func(t *testing.T) {
		inner := New(CodeLedgerUnavailable, "horizon timeout")
		outer := Wrap(inner, CodeAnchoringFailed, "anchoring failed")
		assert.True(t, HasCode(outer, CodeAnchoringFailed))
		assert.True(t, HasCode(outer, CodeLedgerUnavailable))
		assert.Equal(t, CodeAnchoringFailed, CodeOf(outer))
	})

	t.Run("plain error", func(t *testing.T) {
		assert.False(t, HasCode(base, CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(base))
		assert.Equal(t, "internal error", MessageOf(base))
	})
}

func TestErrorString(t *testing.T) {
	assert.Equal(t, "not_found: missing", New(CodeNotFound, "missing").Error())
	assert.Equal(t, "conflict: dup: boom", Wrap(errors.New("boom"), CodeConflict, "dup").Error())
	assert.Equal(t, "invalid_input: bad 3", Newf(CodeInvalidInput, "bad %d", 3).Error())
}
