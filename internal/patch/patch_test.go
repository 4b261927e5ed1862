// SPDX-License-Identifier: MIT
package patch

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"patchbay/internal/graph"
	"patchbay/internal/signal"
)

func TestLoadAndBuild(t *testing.T) {
	d, err := Load("testdata/filtered_sine.yaml")
	require.NoError(t, err)
	assert.Equal(t, 0, d.Inputs)
	assert.Equal(t, 2, d.Outputs)
	require.Len(t, d.Units, 6)

	p, err := Build[float64](d)
	require.NoError(t, err)
	assert.Equal(t, 6, p.Net.Len())

	lp, ok := p.Node("lp")
	require.True(t, ok)
	assert.Equal(t, "lp", p.Name(lp))
	assert.Equal(t, graph.NewEdge(graph.Local(lp, 0), graph.Global(1)), p.Net.OutputEdge(1))

	p.Net.Set(1, 500)
	cutoff, ok := p.Net.Get(1)
	require.True(t, ok)
	assert.Equal(t, 500.0, cutoff)

	out := []float64{0, 0}
	for range 100 {
		p.Net.Tick(nil, out)
	}
	assert.NotZero(t, out[1])
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("testdata/missing.yaml")
	assert.ErrorContains(t, err, "failed to read patch file")
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("outputs: 1\nwires: []\n"))
	assert.ErrorContains(t, err, "failed to parse patch")
}

func TestBuildRoute(t *testing.T) {
	d, err := Parse([]byte(`
inputs: 1
outputs: 1
units:
  - {name: lp, kind: lowpole, params: {cutoff: 2000}}
  - {name: amp, kind: gain, params: {amount: 0.8}}
edges:
  - {from: in.0, to: lp}
  - {from: lp, to: amp}
  - {from: amp, to: out.0}
`))
	require.NoError(t, err)
	p, err := Build[float32](d)
	require.NoError(t, err)

	out := p.Net.Route(signal.Frame{signal.Const(2)}, 1000)
	v, ok := out[0].IsConst()
	require.True(t, ok)
	assert.InDelta(t, 1.6, v, 1e-6)
}

func TestBuildCollectsEveryProblem(t *testing.T) {
	d := &Description{
		Inputs:  1,
		Outputs: 1,
		Units: []UnitSpec{
			{Name: "a", Kind: "pass"},
			{Name: "a", Kind: "pass"},
			{Name: "b", Kind: "wobble"},
			{Name: "out", Kind: "pass"},
			{Name: "c", Kind: "gain", Params: map[string]float64{"speed": 1}},
			{Name: "d", Kind: "sum", Params: map[string]float64{"inputs": 1.5}},
		},
		Edges: []EdgeSpec{
			{From: "a.1", To: "out.0"},
			{From: "in.3", To: "a"},
			{From: "a", To: "in.0"},
			{From: "ghost", To: "out.0"},
			{From: "a.x", To: "out.0"},
		},
	}
	_, err := Build[float64](d)
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 10)
	assert.ErrorContains(t, err, `duplicate name "a"`)
	assert.ErrorContains(t, err, `unknown kind "wobble"`)
	assert.ErrorContains(t, err, `name "out" is reserved`)
	assert.ErrorContains(t, err, `no parameter "speed"`)
	assert.ErrorContains(t, err, "non-negative integer")
	assert.ErrorContains(t, err, "a has 1 outputs")
	assert.ErrorContains(t, err, "patch has 1 inputs")
	assert.ErrorContains(t, err, "global input cannot be an edge target")
	assert.ErrorContains(t, err, `unknown unit "ghost"`)
	assert.ErrorContains(t, err, "bad port")
}

func TestBuildRejectsDoubleFeed(t *testing.T) {
	d := &Description{
		Outputs: 1,
		Units: []UnitSpec{
			{Name: "a", Kind: "constant"},
			{Name: "b", Kind: "constant"},
		},
		Edges: []EdgeSpec{
			{From: "a", To: "out.0"},
			{From: "b", To: "out.0"},
		},
	}
	_, err := Build[float64](d)
	assert.ErrorContains(t, err, "already fed by edge 0")
}

func TestBuildRequiresOutputs(t *testing.T) {
	_, err := Build[float64](&Description{})
	assert.True(t, errors.Is(err, ErrEmpty))

	_, err = Build[float64](&Description{Inputs: -1, Outputs: -1})
	assert.Len(t, multierr.Errors(err), 2)
}

func TestBuildReportsCycle(t *testing.T) {
	d := &Description{
		Outputs: 1,
		Units: []UnitSpec{
			{Name: "a", Kind: "pass"},
			{Name: "b", Kind: "pass"},
		},
		Edges: []EdgeSpec{
			{From: "a", To: "b"},
			{From: "b", To: "a"},
			{From: "b", To: "out.0"},
		},
	}
	_, err := Build[float64](d)
	require.Error(t, err)
	assert.ErrorIs(t, err, graph.ErrCycle)
}

func TestFeedbackKindBreaksLoop(t *testing.T) {
	d := &Description{
		Inputs:  1,
		Outputs: 1,
		Units:   []UnitSpec{{Name: "fb", Kind: "feedback", Params: map[string]float64{"amount": 0.5}}},
		Edges: []EdgeSpec{
			{From: "in.0", To: "fb"},
			{From: "fb", To: "out.0"},
		},
	}
	p, err := Build[float64](d)
	require.NoError(t, err)

	out := []float64{0}
	want := []float64{0.5, 0.25, 0.125}
	for i, w := range want {
		x := 0.0
		if i == 0 {
			x = 1
		}
		p.Net.Tick([]float64{x}, out)
		assert.Equal(t, w, out[0])
	}
}

func TestControls(t *testing.T) {
	d := &Description{
		Outputs: 1,
		Units:   []UnitSpec{{Name: "level", Kind: "var", Params: map[string]float64{"value": 0.25}}},
		Edges:   []EdgeSpec{{From: "level", To: "out.0"}},
	}
	p, err := Build[float64](d)
	require.NoError(t, err)
	require.Contains(t, p.Controls, "level")

	out := []float64{0}
	p.Net.Tick(nil, out)
	assert.Equal(t, 0.25, out[0])

	p.Controls["level"].Set(0.75)
	p.Net.Tick(nil, out)
	assert.Equal(t, 0.75, out[0])
}

func TestEveryKindBuildsWithDefaults(t *testing.T) {
	all := Kinds()
	require.Len(t, all, len(kinds))
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Name, all[i].Name)
	}

	for _, k := range all {
		t.Run(k.Name, func(t *testing.T) {
			d := &Description{
				Outputs: 1,
				Units:   []UnitSpec{{Name: "u", Kind: k.Name}},
			}
			_, err := Build[float64](d)
			assert.NoError(t, err)
			_, err = Build[float32](d)
			assert.NoError(t, err)
			assert.Len(t, k.ParamNames(), len(k.Params))
		})
	}
}

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		in      string
		want    endpoint
		wantErr bool
	}{
		{"osc", endpoint{name: "osc"}, false},
		{"osc.2", endpoint{name: "osc", port: 2}, false},
		{" in.0 ", endpoint{name: "in"}, false},
		{"zero", endpoint{name: "zero"}, false},
		{"", endpoint{}, true},
		{".1", endpoint{}, true},
		{"osc.", endpoint{}, true},
		{"osc.-1", endpoint{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseEndpoint(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, errEndpoint)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestZeroEndpoint(t *testing.T) {
	d := &Description{
		Outputs: 1,
		Units:   []UnitSpec{{Name: "s", Kind: "sum"}},
		Edges: []EdgeSpec{
			{From: "zero", To: "s.0"},
			{From: "s", To: "out.0"},
			{From: "s", To: "zero"},
		},
	}
	_, err := Build[float64](d)
	assert.ErrorContains(t, err, "zero cannot be an edge target")
}
