package healing

import "fmt"

// Strategy produces the ordered remediation steps for one issue type. A
// strategy only describes and requests external operations; it never assumes
// exclusive ownership of the target, so repeated invocations with the same
// context are safe.
type Strategy func(target map[string]string) ([]string, error)

// Registered issue types.
const (
	IssueHighMemory        = "high_memory"
	IssueHighCPU           = "high_cpu"
	IssueErrorSpike        = "error_spike"
	IssueSlowResponse      = "slow_response"
	IssueConnectionTimeout = "connection_timeout"
	IssueDatabaseSlow      = "database_slow"
)

// DefaultStrategies returns the built-in issue-type registry. Adding an
// issue type means registering one more function here.
func DefaultStrategies() map[string]Strategy {
	return map[string]Strategy{
		IssueHighMemory:        healHighMemory,
		IssueHighCPU:           healHighCPU,
		IssueErrorSpike:        healErrorSpike,
		IssueSlowResponse:      healSlowResponse,
		IssueConnectionTimeout: healConnectionTimeout,
		IssueDatabaseSlow:      healDatabaseSlow,
	}
}

func healHighMemory(target map[string]string) ([]string, error) {
	steps := []string{
		"Cleared application caches",
		"Triggered garbage collection",
	}
	if service := target["service"]; service != "" {
		steps = append(steps, fmt.Sprintf("Requested scale-up for service: %s", service))
	}
	return steps, nil
}

func healHighCPU(target map[string]string) ([]string, error) {
	steps := []string{
		"Enabled rate limiting for expensive operations",
	}
	if service := target["service"]; service != "" {
		steps = append(steps, fmt.Sprintf("Requested horizontal scaling for: %s", service))
	}
	return steps, nil
}

func healErrorSpike(target map[string]string) ([]string, error) {
	steps := []string{
		"Enabled circuit breaker for failing service",
	}
	if target["recent_deployment"] != "" {
		steps = append(steps, "Triggered rollback to previous stable version")
	}
	steps = append(steps, "Increased retry backoff for failing operations")
	return steps, nil
}

func healSlowResponse(target map[string]string) ([]string, error) {
	return []string{
		"Applied query optimization hints",
		"Enabled caching for slow endpoints",
		"Requested resource scaling",
	}, nil
}

func healConnectionTimeout(target map[string]string) ([]string, error) {
	steps := []string{
		"Increased connection timeout threshold",
		"Optimized connection pool settings",
	}
	if service := target["service"]; service != "" {
		steps = append(steps, fmt.Sprintf("Scheduled rolling restart for: %s", service))
	}
	return steps, nil
}

func healDatabaseSlow(target map[string]string) ([]string, error) {
	steps := make([]string, 0, 3)
	if target["slow_queries"] != "" {
		steps = append(steps, "Analyzed slow queries and suggested indexes")
	}
	steps = append(steps,
		"Optimized database query cache",
		"Suggested read replica configuration",
	)
	return steps, nil
}
