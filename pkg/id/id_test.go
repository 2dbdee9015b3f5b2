package id

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsSortable(t *testing.T) {
	t.Parallel()

	prev := New()
	for i := 0; i < 1000; i++ {
		next := New()
		assert.Len(t, next, 26)
		assert.Less(t, prev, next)
		prev = next
	}
}

func TestGeneratorDeterministic(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	a, b := NewGenerator(42), NewGenerator(42)
	for i := 0; i < 5; i++ {
		assert.Equal(t, a.New(at), b.New(at))
	}
}

func TestTime(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 5, 1, 12, 0, 0, 123e6, time.UTC)
	got, err := Time(NewGenerator(1).New(at))
	require.NoError(t, err)
	assert.True(t, at.Equal(got))

	_, err = Time("not-an-id")
	assert.Error(t, err)
}
