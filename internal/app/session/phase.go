package session

// Phase represents the manager lifecycle phase.
type Phase int

const (
	PhaseIdle       Phase = iota // Created, not started
	PhaseLoading                 // Seeding the library
	PhaseActive                  // Accepting commands
	PhaseTerminated              // Closed
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseActive:
		return "active"
	case PhaseTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}
