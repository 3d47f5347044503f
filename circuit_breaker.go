package paper

import (
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/paper-cache/go-paper/wire"
)

// NewCircuitBreakerConfig returns a factory suitable for
// Config.NewCircuitBreaker. The breaker trips once at least 3 requests have
// been observed and 60% of them failed. Protocol errors carried inside a
// response do not count as failures; only transport, timeout and framing
// errors do.
func NewCircuitBreakerConfig(maxRequests uint32, interval, timeout time.Duration) func(string) *gobreaker.CircuitBreaker[*wire.Response] {
	return func(addr string) *gobreaker.CircuitBreaker[*wire.Response] {
		settings := gobreaker.Settings{
			Name:        addr,
			MaxRequests: maxRequests,
			Interval:    interval,
			Timeout:     timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
		}
		return gobreaker.NewCircuitBreaker[*wire.Response](settings)
	}
}
