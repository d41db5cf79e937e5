package steps

import "fmt"

// Tracker follows the steps of one run in plan order.
type Tracker struct {
	plan      []string
	position  map[string]int
	completed map[string]bool
}

// NewTracker validates plan and returns a tracker with nothing completed.
func NewTracker(plan []string) (*Tracker, error) {
	if err := ValidatePlan(plan); err != nil {
		return nil, err
	}
	position := make(map[string]int, len(plan))
	for i, step := range plan {
		position[step] = i + 1
	}
	return &Tracker{plan: plan, position: position, completed: make(map[string]bool)}, nil
}

// Begin checks that step can start and returns its 1-based position in the
// plan together with the plan length.
func (t *Tracker) Begin(step string) (index, total int, err error) {
	pos, ok := t.position[step]
	if !ok {
		return 0, len(t.plan), fmt.Errorf("step %s is not part of this run", step)
	}
	if err := ValidateDependencies(t.completed, step); err != nil {
		return pos, len(t.plan), err
	}
	return pos, len(t.plan), nil
}

// Complete marks step as done.
func (t *Tracker) Complete(step string) {
	t.completed[step] = true
}

// Completed returns the completed steps in plan order.
func (t *Tracker) Completed() []string {
	var out []string
	for _, step := range t.plan {
		if t.completed[step] {
			out = append(out, step)
		}
	}
	return out
}

// Done reports whether step has been completed.
func (t *Tracker) Done(step string) bool {
	return t.completed[step]
}
