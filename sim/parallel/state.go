package parallel

// State is a lifecycle phase of a Controller.
//
//	Idle -> Running -> Cancelling -> Drained -> Idle
//
// A run that stops at Config.MaxChunks skips Cancelling.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateCancelling
	StateDrained
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCancelling:
		return "cancelling"
	case StateDrained:
		return "drained"
	default:
		return "unknown"
	}
}

// DrainPolicy decides what happens to chunks still running at cancellation.
type DrainPolicy int

const (
	// DrainAbandon tells in-flight chunks to stop and never merges them.
	DrainAbandon DrainPolicy = iota
	// DrainWait lets in-flight chunks finish and merges them.
	DrainWait
)

// ValidDrainPolicies maps CLI names to policies.
var ValidDrainPolicies = map[string]DrainPolicy{"": DrainAbandon, "abandon": DrainAbandon, "wait": DrainWait}

func (p DrainPolicy) String() string {
	if p == DrainWait {
		return "wait"
	}
	return "abandon"
}
