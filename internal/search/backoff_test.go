package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff_MonotonicAndCapped(t *testing.T) {
	b := Backoff{Base: 30 * time.Second, Max: 2 * time.Minute}
	assert.Equal(t, 30*time.Second, b.Delay(0))
	assert.Equal(t, time.Minute, b.Delay(1))
	assert.Equal(t, 2*time.Minute, b.Delay(2))

	prev := time.Duration(0)
	for i := 0; i < 80; i++ {
		d := b.Delay(i)
		assert.GreaterOrEqual(t, d, prev, "retry %d", i)
		assert.LessOrEqual(t, d, b.Max, "retry %d", i)
		prev = d
	}
}

func TestBackoff_ZeroBase(t *testing.T) {
	assert.Equal(t, time.Duration(0), Backoff{}.Delay(5))
}

func TestBackoff_Uncapped(t *testing.T) {
	b := Backoff{Base: time.Millisecond}
	prev := time.Duration(0)
	for i := 0; i < 100; i++ {
		d := b.Delay(i)
		assert.GreaterOrEqual(t, d, prev)
		prev = d
	}
}

func TestBackoff_UncappedPowerOfTwoNeverWraps(t *testing.T) {
	for _, base := range []time.Duration{1, 2, 1 << 20} {
		b := Backoff{Base: base}
		prev := time.Duration(0)
		for i := 0; i < 130; i++ {
			d := b.Delay(i)
			assert.Positive(t, d, "base %d retry %d", base, i)
			assert.GreaterOrEqual(t, d, prev, "base %d retry %d", base, i)
			prev = d
		}
	}
}
