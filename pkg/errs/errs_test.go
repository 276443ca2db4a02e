package errs

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestE_MatchesKindAndCause(t *testing.T) {
	err := E(ErrIO, "write row", io.ErrShortWrite)

	assert.ErrorIs(t, err, ErrIO)
	assert.ErrorIs(t, err, io.ErrShortWrite)
	assert.NotErrorIs(t, err, ErrDecode)
	assert.Equal(t, "io: write row: short write", err.Error())
}

func TestE_SurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("balances exporter: %w", MissingPrice("b"))

	require.ErrorIs(t, err, ErrMissingPrice)
	assert.Contains(t, err.Error(), `"b"`)

	var kinded *Error
	require.True(t, errors.As(err, &kinded))
	assert.Equal(t, "price", kinded.Op)
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "transport", err: E(ErrTransport, "post", io.EOF), want: ErrTransport},
		{name: "rate limit wins over transport order", err: E(ErrRateLimitExceeded, "post", nil), want: ErrRateLimitExceeded},
		{name: "wrapped arithmetic", err: fmt.Errorf("x: %w", E(ErrArithmetic, "f64", nil)), want: ErrArithmetic},
		{name: "unknown", err: io.EOF, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}
