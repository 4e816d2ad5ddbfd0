package failure

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	err := &Error{Kind: RateLimited, Op: "invoke", Provider: "openai", Status: 429, Err: errors.New("slow down")}
	assert.Equal(t, "invoke: rate_limited (openai 429): slow down", err.Error())

	bare := New(InvalidCycleKind, "", nil)
	assert.Equal(t, "invalid_cycle_kind", bare.Error())
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, Unknown},
		{"plain", errors.New("boom"), Unknown},
		{"direct", New(AuthFailure, "invoke", nil), AuthFailure},
		{"wrapped", fmt.Errorf("batch 2: %w", New(StorageFailure, "write", nil)), StorageFailure},
		{"canceled", fmt.Errorf("run: %w", context.Canceled), Canceled},
		{"deadline", context.DeadlineExceeded, Canceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestErrorsIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("wrap: %w", New(MalformedResponse, "decode", errors.New("eof")))

	assert.True(t, errors.Is(err, New(MalformedResponse, "", nil)))
	assert.False(t, errors.Is(err, New(TransportFailure, "", nil)))
	assert.True(t, Is(err, MalformedResponse))
}

func TestFatal(t *testing.T) {
	assert.True(t, Fatal(New(RateLimited, "", nil)))
	assert.True(t, Fatal(New(AuthFailure, "", nil)))
	assert.True(t, Fatal(context.Canceled))
	assert.False(t, Fatal(New(TransportFailure, "", nil)))
	assert.False(t, Fatal(New(MalformedResponse, "", nil)))
	assert.False(t, Fatal(nil))
}
