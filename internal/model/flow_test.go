package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandedParameters_NoSweeps(t *testing.T) {
	step := FlowStep{
		Name:       "stress",
		Adapter:    "echo",
		Parameters: NewValues("duration", 0.001, "message", "hello"),
	}

	sets := step.ExpandedParameters()
	require.Len(t, sets, 1)
	assert.Equal(t, []string{"duration", "message"}, sets[0].Keys())

	// the copy is independent of the step
	sets[0].Set("duration", 5.0)
	d, _ := step.Parameters.Get("duration")
	assert.Equal(t, 0.001, d)
}

func TestExpandedParameters_ProductInDeclarationOrder(t *testing.T) {
	step := FlowStep{
		Name:       "sweep",
		Adapter:    "echo",
		Parameters: NewValues("message", "hi"),
		Sweeps: []Sweep{
			{Key: "threads", Values: []any{1, 2}},
			{Key: "pattern", Values: []any{"a", "b", "c"}},
		},
	}

	sets := step.ExpandedParameters()
	require.Len(t, sets, 6)

	var got [][2]any
	for _, s := range sets {
		th, _ := s.Get("threads")
		pa, _ := s.Get("pattern")
		got = append(got, [2]any{th, pa})
		assert.Equal(t, []string{"message", "threads", "pattern"}, s.Keys())
	}
	assert.Equal(t, [][2]any{
		{1, "a"}, {1, "b"}, {1, "c"},
		{2, "a"}, {2, "b"}, {2, "c"},
	}, got)
}

func TestExpandedParameters_SweepOverridesFixed(t *testing.T) {
	step := FlowStep{
		Parameters: NewValues("threads", 8, "message", "x"),
		Sweeps:     []Sweep{{Key: "threads", Values: []any{1, 2}}},
	}
	sets := step.ExpandedParameters()
	require.Len(t, sets, 2)
	th, _ := sets[1].Get("threads")
	assert.Equal(t, 2, th)
	assert.Equal(t, []string{"threads", "message"}, sets[1].Keys())
}

func TestExpandedParameters_EmptySweep(t *testing.T) {
	step := FlowStep{Sweeps: []Sweep{{Key: "threads"}}}
	sets := step.ExpandedParameters()
	assert.NotNil(t, sets)
	assert.Empty(t, sets)
}

func TestFlowDefinition_Step(t *testing.T) {
	flow := &FlowDefinition{Steps: []FlowStep{{Name: "a"}, {Name: "b", Adapter: "echo"}}}
	s, ok := flow.Step("b")
	require.True(t, ok)
	assert.Equal(t, "echo", s.Adapter)
	_, ok = flow.Step("missing")
	assert.False(t, ok)
}

func TestCartesian_IndexesAreSequential(t *testing.T) {
	var indexes []int
	cartesian([][]any{{1, 2}, {3, 4}}, func(i int, _ []any) {
		indexes = append(indexes, i)
	})
	assert.Equal(t, []int{0, 1, 2, 3}, indexes)

	called := false
	cartesian(nil, func(int, []any) { called = true })
	assert.False(t, called)
}
