package loadbalancer

import "sync/atomic"

// RoundRobin cycles through the candidates it is handed. The cursor is shared
// across calls, so a shrinking candidate list (relays skipped because their
// breaker is open) still spreads deliveries over whatever remains.
type RoundRobin struct {
	cursor atomic.Uint64
}

func NewRoundRobin() *RoundRobin {
	return &RoundRobin{}
}

func (r *RoundRobin) Next(targets []string) string {
	if len(targets) == 0 {
		return ""
	}

	n := r.cursor.Add(1) - 1
	return targets[n%uint64(len(targets))]
}

func (r *RoundRobin) Name() string {
	return "round_robin"
}
