package wire

// Status is the payload of a status request: a snapshot of the cache's
// configuration, memory usage and lifetime counters.
type Status struct {
	// PID is the server's process id.
	PID uint32

	// MaxSize and UsedSize are the configured and occupied cache sizes in
	// bytes. NumObjects is the number of stored entries.
	MaxSize    uint64
	UsedSize   uint64
	NumObjects uint64

	// RSS is the server's resident set size; HWM is its high water mark.
	RSS uint64
	HWM uint64

	// Lifetime operation counters.
	TotalGets uint64
	TotalSets uint64
	TotalDels uint64

	// MissRatio is the lifetime get miss ratio, in [0, 1].
	MissRatio float64

	// Policies lists the policies the server is configured with.
	// Policy is the active one; IsAutoPolicy reports whether it was chosen
	// automatically.
	Policies     []Policy
	Policy       Policy
	IsAutoPolicy bool

	// Uptime is the server uptime in seconds.
	Uptime uint64
}
