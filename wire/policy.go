package wire

import (
	"fmt"
	"strconv"
	"strings"
)

// PolicyKind enumerates the eviction policies the server understands.
type PolicyKind int

const (
	PolicyAuto PolicyKind = iota
	PolicyLFU
	PolicyFIFO
	PolicyClock
	PolicySieve
	PolicyLRU
	PolicyMRU
	PolicyTwoQ
	PolicyARC
	PolicyS3FIFO
)

// Policy is an eviction policy plus its parameters. On the wire a policy
// travels as its String form.
type Policy struct {
	Kind PolicyKind

	// KIn and KOut are the queue ratios of the 2Q policy.
	KIn, KOut float64

	// Ratio is the small-queue ratio of the S3-FIFO policy.
	Ratio float64
}

// Parameterless policies.
var (
	Auto  = Policy{Kind: PolicyAuto}
	LFU   = Policy{Kind: PolicyLFU}
	FIFO  = Policy{Kind: PolicyFIFO}
	Clock = Policy{Kind: PolicyClock}
	Sieve = Policy{Kind: PolicySieve}
	LRU   = Policy{Kind: PolicyLRU}
	MRU   = Policy{Kind: PolicyMRU}
	ARC   = Policy{Kind: PolicyARC}
)

// TwoQ returns a 2Q policy with the given queue ratios.
func TwoQ(kIn, kOut float64) Policy {
	return Policy{Kind: PolicyTwoQ, KIn: kIn, KOut: kOut}
}

// S3FIFO returns an S3-FIFO policy with the given small-queue ratio.
func S3FIFO(ratio float64) Policy {
	return Policy{Kind: PolicyS3FIFO, Ratio: ratio}
}

func (p Policy) String() string {
	switch p.Kind {
	case PolicyAuto:
		return "auto"
	case PolicyLFU:
		return "lfu"
	case PolicyFIFO:
		return "fifo"
	case PolicyClock:
		return "clock"
	case PolicySieve:
		return "sieve"
	case PolicyLRU:
		return "lru"
	case PolicyMRU:
		return "mru"
	case PolicyTwoQ:
		return fmt.Sprintf("2q-%s-%s", formatRatio(p.KIn), formatRatio(p.KOut))
	case PolicyARC:
		return "arc"
	case PolicyS3FIFO:
		return "s3-fifo-" + formatRatio(p.Ratio)
	default:
		return "unknown"
	}
}

func formatRatio(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParsePolicy parses the wire string form of a policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "auto":
		return Auto, nil
	case "lfu":
		return LFU, nil
	case "fifo":
		return FIFO, nil
	case "clock":
		return Clock, nil
	case "sieve":
		return Sieve, nil
	case "lru":
		return LRU, nil
	case "mru":
		return MRU, nil
	case "arc":
		return ARC, nil
	}

	if rest, ok := strings.CutPrefix(s, "2q-"); ok {
		return parseTwoQ(s, rest)
	}

	if rest, ok := strings.CutPrefix(s, "s3-fifo-"); ok {
		ratio, err := strconv.ParseFloat(rest, 64)
		if err != nil {
			return Policy{}, &ParseError{Message: "invalid policy " + strconv.Quote(s)}
		}
		return S3FIFO(ratio), nil
	}

	return Policy{}, &ParseError{Message: "invalid policy " + strconv.Quote(s)}
}

func parseTwoQ(full, rest string) (Policy, error) {
	tokens := strings.Split(rest, "-")
	if len(tokens) != 2 {
		return Policy{}, &ParseError{Message: "invalid policy " + strconv.Quote(full)}
	}

	kIn, err := strconv.ParseFloat(tokens[0], 64)
	if err != nil {
		return Policy{}, &ParseError{Message: "invalid policy " + strconv.Quote(full)}
	}

	kOut, err := strconv.ParseFloat(tokens[1], 64)
	if err != nil {
		return Policy{}, &ParseError{Message: "invalid policy " + strconv.Quote(full)}
	}

	return TwoQ(kIn, kOut), nil
}
