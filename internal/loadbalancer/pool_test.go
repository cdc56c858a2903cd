package loadbalancer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPoolValidates(t *testing.T) {
	_, err := NewPool(nil, "round_robin")
	assert.ErrorIs(t, err, ErrNoTargets)

	_, err = NewPool([]string{"a"}, "weighted")
	assert.Error(t, err)
}

func TestRoundRobinRotates(t *testing.T) {
	p, err := NewPool([]string{"a", "b", "c"}, "round_robin")
	require.NoError(t, err)

	var picked []string
	for i := 0; i < 4; i++ {
		picked = append(picked, p.Next(nil))
	}
	assert.Equal(t, []string{"a", "b", "c", "a"}, picked)
}

func TestNextHonoursSkip(t *testing.T) {
	p, err := NewPool([]string{"a", "b"}, "failover")
	require.NoError(t, err)

	assert.Equal(t, "a", p.Next(nil))
	assert.Equal(t, "b", p.Next(map[string]bool{"a": true}))
	assert.Equal(t, "", p.Next(map[string]bool{"a": true, "b": true}))
}

func TestLeastConnectionsTracksInFlight(t *testing.T) {
	p, err := NewPool([]string{"a", "b"}, "least_connections")
	require.NoError(t, err)

	release := p.Acquire("a")
	assert.Equal(t, "b", p.Next(nil))

	release()
	assert.Equal(t, "a", p.Next(nil))
}

func TestRandomStaysWithinCandidates(t *testing.T) {
	p, err := NewPool([]string{"a", "b", "c"}, "random")
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		assert.NotEqual(t, "b", p.Next(map[string]bool{"b": true}))
	}
	assert.Equal(t, "random", p.Strategy())
}
