package runtime_test

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fennecml/fennec/internal/builtin"
	"github.com/fennecml/fennec/internal/ir"
	"github.com/fennecml/fennec/internal/lower"
	"github.com/fennecml/fennec/internal/runtime"
	"github.com/fennecml/fennec/internal/testutil"
	"github.com/fennecml/fennec/internal/transform"
)

func TestRunReplicated(t *testing.T) {
	reg := testutil.Registry()
	count := reg.Intern(testutil.EffCount)

	// x -> 2*x, with an unordered count firing per worker.
	b := ir.NewBuilder(reg)
	x := b.Input(ir.Scalar(ir.F64))
	_, err := b.Bind(builtin.HostCall, []ir.Atom{x}, ir.Params{
		builtin.ParamEffect:   count,
		builtin.ParamCallback: "count",
	})
	require.NoError(t, err)
	out, err := b.Bind(builtin.Mul, []ir.Atom{x, ir.F64Lit(2)}, nil)
	require.NoError(t, err)
	g, err := b.Build(out[0])
	require.NoError(t, err)

	rep, err := transform.Replicate(reg, g, 3)
	require.NoError(t, err)

	collector := testutil.NewLogCollector()
	callbacks := runtime.NewCallbackRegistry()
	callbacks.Register("count", collector.Callback())

	cfg := runtime.Config{
		Registry:  reg,
		Rules:     lower.StandardRules(),
		Callbacks: callbacks,
	}
	results, err := runtime.RunReplicated(context.Background(), cfg, rep, [][]runtime.Value{
		{runtime.ScalarValue(1)},
		{runtime.ScalarValue(2)},
		{runtime.ScalarValue(3)},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	for w, res := range results {
		require.Len(t, res, 1)
		assert.Equal(t, 2*float64(w+1), res[0].Scalar())
	}

	// The effect fires once per worker; cross-worker order is not
	// guaranteed.
	got := collector.Values()
	sort.Float64s(got)
	assert.Equal(t, []float64{1, 2, 3}, got)
}

func TestRunReplicatedReleasesKeepalives(t *testing.T) {
	reg := testutil.Registry()
	count := reg.Intern(testutil.EffCount)

	b := ir.NewBuilder(reg)
	x := b.Input(ir.Scalar(ir.F64))
	_, err := b.Bind(builtin.HostCall, []ir.Atom{x}, ir.Params{
		builtin.ParamEffect:   count,
		builtin.ParamCallback: "count",
	})
	require.NoError(t, err)
	g, err := b.Build(x)
	require.NoError(t, err)

	rep, err := transform.Replicate(reg, g, 2)
	require.NoError(t, err)

	rec := &closeRecorder{}
	callbacks := runtime.NewCallbackRegistry()
	callbacks.RegisterWithKeepalive("count", testutil.NewLogCollector().Callback(), rec)

	cfg := runtime.Config{
		Registry:  reg,
		Rules:     lower.StandardRules(),
		Callbacks: callbacks,
	}
	_, err = runtime.RunReplicated(context.Background(), cfg, rep, [][]runtime.Value{
		{runtime.ScalarValue(1)},
		{runtime.ScalarValue(2)},
	})
	require.NoError(t, err)

	// The internal compile's keepalives are released when the run ends.
	assert.Equal(t, 1, rec.closed)
}

func TestRunReplicatedArgCountMismatch(t *testing.T) {
	reg := testutil.Registry()

	b := ir.NewBuilder(reg)
	x := b.Input(ir.Scalar(ir.F64))
	g, err := b.Build(x)
	require.NoError(t, err)

	rep, err := transform.Replicate(reg, g, 2)
	require.NoError(t, err)

	cfg := runtime.Config{Registry: reg, Rules: lower.StandardRules()}
	_, err = runtime.RunReplicated(context.Background(), cfg, rep, [][]runtime.Value{
		{runtime.ScalarValue(1)},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 workers but 1 argument slices")
}
