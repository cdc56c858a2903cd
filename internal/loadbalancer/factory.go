package loadbalancer

import "fmt"

// Creates a relay selection strategy based on name
func NewStrategy(strategyName string) (Strategy, error) {
	switch strategyName {
	case "round-robin", "round_robin", "":
		return NewRoundRobin(), nil
	case "random":
		return NewRandom(), nil
	case "least-connections", "least_connections":
		return NewLeastConnections(), nil
	case "failover":
		return Failover{}, nil
	default:
		return nil, fmt.Errorf("unknown relay selection strategy: %s", strategyName)
	}
}
