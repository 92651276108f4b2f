package qpath

// Direction of propagation.
type Direction int

const (
	Forward Direction = iota
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

/*
Step is one point of a trajectory. Phase holds the realignment angle applied
to the step, zero for raw trajectories. Density is only set on noisy runs.
*/
type Step struct {
	Index       int
	Time        float64
	State       State
	Populations []float64
	Phase       float64
	Density     *DensityMatrix
}

/*
Trajectory is an ordered sequence of steps. Backward trajectories are stored
in the order they were built, latest time first.
*/
type Trajectory struct {
	Direction Direction
	Dt        float64
	Steps     []Step
}

func (t Trajectory) Len() int {
	return len(t.Steps)
}

// Final returns the last step that was built.
func (t Trajectory) Final() Step {
	return t.Steps[len(t.Steps)-1]
}

// Aligned returns the steps in ascending time order.
func (t Trajectory) Aligned() []Step {
	n := len(t.Steps)
	out := make([]Step, n)
	if n > 1 && t.Steps[0].Time > t.Steps[n-1].Time {
		for i, s := range t.Steps {
			out[n-1-i] = s
		}
		return out
	}
	copy(out, t.Steps)
	return out
}

// States returns the state of every step in build order.
func (t Trajectory) States() []State {
	out := make([]State, len(t.Steps))
	for i, s := range t.Steps {
		out[i] = s.State
	}
	return out
}
