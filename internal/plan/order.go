package plan

// Order returns the resources in apply order: every resource appears after
// all members of its DependsOn set. Resources with no dependency relation
// keep their declaration order, so a given plan always produces the same
// sequence.
//
// The sort is DFS-based; when a back edge is found the current visitation
// stack is captured so the CycleError names the cycle members.
func Order(resources []Resource) ([]Resource, error) {
	if err := Validate(resources); err != nil {
		return nil, err
	}

	byName := make(map[string]*Resource, len(resources))
	for i := range resources {
		byName[resources[i].Name] = &resources[i]
	}

	const (
		stateNew uint8 = iota
		stateVisiting
		stateDone
	)

	state := make(map[string]uint8, len(resources))
	stack := make([]string, 0, len(resources))
	stackPos := make(map[string]int, len(resources))
	ordered := make([]Resource, 0, len(resources))

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case stateDone:
			return nil
		case stateVisiting:
			pos := stackPos[name]
			cycle := append([]string(nil), stack[pos:]...)
			cycle = append(cycle, name)
			return CycleError{Path: cycle}
		}

		state[name] = stateVisiting
		stackPos[name] = len(stack)
		stack = append(stack, name)

		for _, dep := range byName[name].DependsOn {
			if err := visit(dep); err != nil {
				return err
			}
		}

		stack = stack[:len(stack)-1]
		delete(stackPos, name)
		state[name] = stateDone
		ordered = append(ordered, *byName[name])
		return nil
	}

	for _, r := range resources {
		if state[r.Name] == stateDone {
			continue
		}
		if err := visit(r.Name); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}

// Dependents returns, for each resource, the set of resources that list it
// in DependsOn. The bootstrapper uses this to report how many resources a
// failure blocks downstream.
func Dependents(resources []Resource) map[string][]string {
	dependents := make(map[string][]string, len(resources))
	for _, r := range resources {
		for _, dep := range r.DependsOn {
			dependents[dep] = append(dependents[dep], r.Name)
		}
	}
	return dependents
}
