package loadbalancer

// Failover always prefers the first configured relay that is still a candidate
type Failover struct{}

func (Failover) Next(targets []string) string {
	if len(targets) == 0 {
		return ""
	}
	return targets[0]
}

func (Failover) Name() string {
	return "failover"
}
