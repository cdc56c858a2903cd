package circuitbreaker

type State int

const (
	// StateClosed - normal operation, calls reach the collaborator
	StateClosed State = iota

	// StateOpen - collaborator considered down, calls fail immediately
	StateOpen

	// StateHalfOpen - probing whether the collaborator recovered
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
