package loadbalancer

type Strategy interface {
	// Selects the next relay from the candidates
	Next(targets []string) string

	// Returns the strategy name
	Name() string
}

// Tracker is implemented by strategies that need to know how many
// deliveries are in flight per relay
type Tracker interface {
	Increment(target string)
	Decrement(target string)
}
