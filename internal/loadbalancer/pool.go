package loadbalancer

import "errors"

var ErrNoTargets = errors.New("no relays configured")

// Pool pairs a fixed relay list with a selection strategy
type Pool struct {
	targets  []string
	strategy Strategy
}

func NewPool(targets []string, strategyName string) (*Pool, error) {
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}

	strategy, err := NewStrategy(strategyName)
	if err != nil {
		return nil, err
	}

	return &Pool{
		targets:  append([]string(nil), targets...),
		strategy: strategy,
	}, nil
}

// Next picks a relay that is not in skip, "" once every relay was skipped
func (p *Pool) Next(skip map[string]bool) string {
	candidates := make([]string, 0, len(p.targets))
	for _, t := range p.targets {
		if !skip[t] {
			candidates = append(candidates, t)
		}
	}
	return p.strategy.Next(candidates)
}

// Acquire marks a delivery in flight on target. The returned func ends it.
func (p *Pool) Acquire(target string) func() {
	tracker, ok := p.strategy.(Tracker)
	if !ok {
		return func() {}
	}

	tracker.Increment(target)
	return func() { tracker.Decrement(target) }
}

func (p *Pool) Targets() []string {
	return append([]string(nil), p.targets...)
}

func (p *Pool) Strategy() string {
	return p.strategy.Name()
}
