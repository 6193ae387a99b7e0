package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("direct code matches", func(t *testing.T) {
		err := New(CodeValidation, "age out of bounds")
		assert.True(t, HasCode(err, CodeValidation))
		assert.False(t, HasCode(err, CodeInternal))
	})

	t.Run("wrapped code is found through the chain", func(t *testing.T) {
		inner := New(CodeCryptoFailure, "key mismatch")
		outer := Wrap(inner, CodeInternal, "message send failed")
		assert.True(t, HasCode(outer, CodeCryptoFailure))
		assert.True(t, HasCode(outer, CodeInternal))
	})

	t.Run("fmt.Errorf wrapping preserves the code", func(t *testing.T) {
		err := fmt.Errorf("pipeline: %w", New(CodeRateLimited, "too many messages"))
		assert.True(t, HasCode(err, CodeRateLimited))
	})

	t.Run("plain errors carry no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
	})
}

func TestWrapNil(t *testing.T) {
	require.NoError(t, Wrap(nil, CodeInternal, "should be nil"))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeForbidden, CodeOf(New(CodeForbidden, "certification verification required")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeBadRequest:        http.StatusBadRequest,
		CodeValidation:        http.StatusUnprocessableEntity,
		CodeForbidden:         http.StatusForbidden,
		CodeRateLimited:       http.StatusTooManyRequests,
		CodeCryptoFailure:     http.StatusInternalServerError,
		CodeEscalationFailure: http.StatusInternalServerError,
		Code("unknown"):       http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, ToHTTPStatus(code), string(code))
	}
}
