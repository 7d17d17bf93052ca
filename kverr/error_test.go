package kverr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutcome_String(t *testing.T) {
	cases := []struct {
		o    Outcome
		want string
	}{
		{OK, "OK"},
		{NoKey, "NoKey"},
		{VersionMismatch, "VersionMismatch"},
		{Maybe, "Maybe"},
		{Timeout, "Timeout"},
		{unspecified, fmt.Sprintf("Outcome(%d)", 0)},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.o.String())
	}
}

func TestOutcome_Definitive(t *testing.T) {
	definitive := []Outcome{OK, NoKey, VersionMismatch}
	ambiguous := []Outcome{Maybe, Timeout}

	for _, o := range definitive {
		assert.Truef(t, o.Definitive(), "%s: expected Definitive() true", o)
	}
	for _, o := range ambiguous {
		assert.Falsef(t, o.Definitive(), "%s: expected Definitive() false", o)
	}
}

func TestNew_PanicsOnOK(t *testing.T) {
	assert.Panics(t, func() { New(OK, "") })
}

func TestError_Is(t *testing.T) {
	err := New(NoKey, "key \"x\"")

	assert.True(t, errors.Is(err, ErrNoKey))
	assert.False(t, errors.Is(err, ErrVersionMismatch))

	wrapped := fmt.Errorf("put failed: %w", err)
	assert.True(t, errors.Is(wrapped, ErrNoKey), "expected errors.Is to see through fmt.Errorf wrapping")
}

func TestAs(t *testing.T) {
	o, ok := As(New(Maybe, ""))
	require.True(t, ok)
	assert.Equal(t, Maybe, o)

	o, ok = As(errors.New("plain error"))
	assert.False(t, ok)

	o, ok = As(nil)
	assert.False(t, ok)
}
