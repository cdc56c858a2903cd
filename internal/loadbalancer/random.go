package loadbalancer

import "math/rand/v2"

// Random spreads deliveries uniformly; safe for concurrent use
type Random struct{}

func NewRandom() *Random {
	return &Random{}
}

// Returns a random relay
func (r *Random) Next(targets []string) string {
	if len(targets) == 0 {
		return ""
	}

	return targets[rand.IntN(len(targets))]
}

// Returns the strategy name
func (r *Random) Name() string {
	return "random"
}
