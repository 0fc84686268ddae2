package model

// Sweep is an ordered list of values for one key.
type Sweep struct {
	Key    string
	Values []any
}

// FlowStep is one diagnostic step of a flow.
type FlowStep struct {
	// Name is unique within the flow.
	Name string

	// Adapter names the AdapterManifest that runs this step.
	Adapter string

	// Parameters are passed to every invocation.
	Parameters Values

	// Sweeps are expanded into one invocation per combination.
	Sweeps []Sweep
}

// ExpandedParameters returns the parameter set for every invocation.
//
// With no sweeps the result is a single copy of Parameters. Otherwise it is
// the Cartesian product over the sweeps in declaration order, the last sweep
// varying fastest, each set being Parameters with the swept keys overlaid.
func (s FlowStep) ExpandedParameters() []Values {
	if len(s.Sweeps) == 0 {
		return []Values{s.Parameters.Clone()}
	}

	lists := make([][]any, len(s.Sweeps))
	for i, sw := range s.Sweeps {
		lists[i] = sw.Values
	}

	var out []Values
	cartesian(lists, func(_ int, combo []any) {
		params := s.Parameters.Clone()
		for i, sw := range s.Sweeps {
			params.Set(sw.Key, cloneValue(combo[i]))
		}
		out = append(out, params)
	})
	if out == nil {
		out = []Values{}
	}
	return out
}

// FlowDefinition is an ordered sequence of steps plus opaque metadata.
type FlowDefinition struct {
	// Path is the file the flow was loaded from.
	Path string

	Metadata map[string]any
	Steps    []FlowStep
}

// Step returns the step called name.
func (f *FlowDefinition) Step(name string) (FlowStep, bool) {
	for _, s := range f.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return FlowStep{}, false
}

// cartesian calls fn for every combination of one element from each list,
// in odometer order with the last list varying fastest. The index counts
// combinations from 0. Nothing is emitted if any list is empty or lists is
// empty.
func cartesian(lists [][]any, fn func(index int, combo []any)) {
	if len(lists) == 0 {
		return
	}
	for _, l := range lists {
		if len(l) == 0 {
			return
		}
	}

	cursor := make([]int, len(lists))
	combo := make([]any, len(lists))
	for index := 0; ; index++ {
		for i, l := range lists {
			combo[i] = l[cursor[i]]
		}
		fn(index, combo)

		pos := len(lists) - 1
		for pos >= 0 {
			cursor[pos]++
			if cursor[pos] < len(lists[pos]) {
				break
			}
			cursor[pos] = 0
			pos--
		}
		if pos < 0 {
			return
		}
	}
}
