package loadbalancer

import "sync"

// LeastConnections sends each delivery to the relay with the fewest open SMTP
// sessions. Ties go to the relay listed first.
type LeastConnections struct {
	mu       sync.Mutex
	inFlight map[string]int
}

func NewLeastConnections() *LeastConnections {
	return &LeastConnections{inFlight: make(map[string]int)}
}

func (l *LeastConnections) Next(targets []string) string {
	l.mu.Lock()
	defer l.mu.Unlock()

	selected := ""
	for _, target := range targets {
		if selected == "" || l.inFlight[target] < l.inFlight[selected] {
			selected = target
		}
	}

	return selected
}

func (l *LeastConnections) Increment(target string) {
	l.mu.Lock()
	l.inFlight[target]++
	l.mu.Unlock()
}

func (l *LeastConnections) Decrement(target string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch n := l.inFlight[target]; {
	case n > 1:
		l.inFlight[target] = n - 1
	default:
		delete(l.inFlight, target)
	}
}

func (l *LeastConnections) Name() string {
	return "least_connections"
}
