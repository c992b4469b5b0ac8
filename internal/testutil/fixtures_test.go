package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fennecml/fennec/internal/effects"
	"github.com/fennecml/fennec/internal/runtime"
)

func TestRegistryClassification(t *testing.T) {
	reg := Registry()

	log := reg.Intern(EffLog)
	assert.True(t, reg.IsOrdered(log))
	assert.True(t, reg.IsLowerable(log))
	assert.True(t, reg.IsAllowedInConstruct(effects.ConstructWhile, log))
	assert.False(t, reg.IsAllowedInConstruct(effects.ConstructCond, log))

	opaque := reg.Intern(EffOpaque)
	assert.False(t, reg.IsLowerable(opaque))
	assert.False(t, reg.IsOrdered(opaque))

	note := reg.Intern(EffNote)
	for kind := range effects.ValidConstructKinds {
		assert.True(t, reg.IsAllowedInConstruct(kind, note))
	}

	ordr := reg.Intern(EffOrderedR)
	assert.True(t, reg.IsOrdered(ordr))
	assert.True(t, reg.IsAllowedInConstruct(effects.ConstructCond, ordr))
	assert.True(t, reg.IsAllowedInConstruct(effects.ConstructReplicate, ordr))
	assert.False(t, reg.IsAllowedInConstruct(effects.ConstructWhile, ordr))
}

func TestLogCollectorConcurrent(t *testing.T) {
	c := NewLogCollector()
	cb := c.Callback()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v float64) {
			defer wg.Done()
			_, err := cb([]runtime.Value{runtime.ScalarValue(v)})
			require.NoError(t, err)
		}(float64(i))
	}
	wg.Wait()

	assert.Len(t, c.Values(), 8)
}

func TestMemorySink(t *testing.T) {
	s := NewMemorySink()
	require.NoError(t, s.Record(runtime.Record{Seq: 1, Effect: EffLog, Args: []float64{2}}))
	require.NoError(t, s.Record(runtime.Record{Seq: 2, Effect: EffLog, Args: []float64{3}}))

	recs := s.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, int64(1), recs[0].Seq)
	assert.Equal(t, []float64{3}, recs[1].Args)
}
