package healthcheck

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Probe reports whether one dependency is reachable
type Probe func(ctx context.Context) error

// Checker runs named dependency probes on demand, concurrently, each bounded
// by the probe timeout
type Checker struct {
	mu      sync.RWMutex
	names   []string
	probes  map[string]Probe
	status  map[string]*Status
	timeout time.Duration
	logger  *zap.Logger
}

func NewChecker(timeout time.Duration, logger *zap.Logger) *Checker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	return &Checker{
		probes:  make(map[string]Probe),
		status:  make(map[string]*Status),
		timeout: timeout,
		logger:  logger,
	}
}

// Register adds a probe; registering a name twice replaces the probe
func (c *Checker) Register(name string, probe Probe) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.probes[name]; !exists {
		c.names = append(c.names, name)
		c.status[name] = &Status{Target: name, IsHealthy: true}
	}
	c.probes[name] = probe
}

// Check runs every probe and returns the overall health with a snapshot of
// each dependency
func (c *Checker) Check(ctx context.Context) (HealthStatus, map[string]Status) {
	c.mu.RLock()
	names := append([]string(nil), c.names...)
	probes := make(map[string]Probe, len(c.probes))
	for name, p := range c.probes {
		probes[name] = p
	}
	c.mu.RUnlock()

	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(name string, probe Probe) {
			defer wg.Done()

			pctx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			if err := probe(pctx); err != nil {
				c.recordFailure(name, err)
				return
			}
			c.recordSuccess(name)
		}(name, probes[name])
	}
	wg.Wait()

	return c.OverallHealth(), c.GetAllStatus()
}

// Records a successful probe
func (c *Checker) recordSuccess(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := c.status[name]
	status.LastCheck = time.Now()
	status.LastSuccess = status.LastCheck
	status.FailureCount = 0
	status.Error = ""

	if !status.IsHealthy {
		c.logger.Info("Dependency recovered", zap.String("dependency", name))
		status.IsHealthy = true
	}
}

// Records a failed probe
func (c *Checker) recordFailure(name string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := c.status[name]
	status.LastCheck = time.Now()
	status.LastFailure = status.LastCheck
	status.FailureCount++
	status.Error = err.Error()

	if status.IsHealthy {
		c.logger.Warn("Dependency unhealthy", zap.String("dependency", name), zap.Error(err))
		status.IsHealthy = false
	}
}

// Returns a copy of every dependency status
func (c *Checker) GetAllStatus() map[string]Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	statusMap := make(map[string]Status, len(c.status))
	for name, status := range c.status {
		statusMap[name] = *status
	}

	return statusMap
}

// Degraded when some dependencies are down; the gateway still answers then,
// because rate limiting fails open and order numbers fall back.
func (c *Checker) OverallHealth() HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.status) == 0 {
		return Healthy
	}

	healthy := 0
	for _, status := range c.status {
		if status.IsHealthy {
			healthy++
		}
	}

	switch {
	case healthy == len(c.status):
		return Healthy
	case healthy == 0:
		return Unhealthy
	default:
		return Degraded
	}
}
