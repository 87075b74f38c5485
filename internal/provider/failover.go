package provider

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"
)

// Outcome classifies one HTTP attempt against a mirror.
type Outcome int

const (
	// OutcomeOK is a 2xx JSON response that arrived in time.
	OutcomeOK Outcome = iota
	// OutcomeSlow is a 2xx JSON response that took at least slow_after.
	OutcomeSlow
	// OutcomeTransient is a transport error (not DNS) or a non-2xx status.
	OutcomeTransient
	// OutcomeDNS is a name-resolution failure.
	OutcomeDNS
	// OutcomeNotJSON is a 2xx response that is not the API's JSON.
	OutcomeNotJSON
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeSlow:
		return "slow"
	case OutcomeTransient:
		return "transient"
	case OutcomeDNS:
		return "dns"
	case OutcomeNotJSON:
		return "not-json"
	default:
		return "unknown"
	}
}

// Action is what the search loop does after an attempt.
type Action int

const (
	// ActionSuccess returns the parsed response.
	ActionSuccess Action = iota
	// ActionRetry sleeps for Step.Backoff and retries the same mirror.
	ActionRetry
	// ActionFailover abandons the mirror and moves to the next one.
	ActionFailover
)

func (a Action) String() string {
	switch a {
	case ActionSuccess:
		return "success"
	case ActionRetry:
		return "retry"
	case ActionFailover:
		return "failover"
	default:
		return "unknown"
	}
}

// Step is the decision taken for one attempt.
type Step struct {
	Action  Action
	Backoff time.Duration
}

// Attempt is the retry state on a single mirror.
type Attempt struct {
	N       int           // 1-based attempt number
	Backoff time.Duration // wait before the next retry
}

// RetryPolicy bounds retries on a mirror. Attempt N may be retried while
// N <= Retries, so a mirror receives at most Retries+1 requests.
type RetryPolicy struct {
	Retries        int
	InitialBackoff time.Duration
}

// Start returns the state for the first attempt on a fresh mirror.
func (p RetryPolicy) Start() Attempt {
	return Attempt{N: 1, Backoff: p.InitialBackoff}
}

// Decide maps an attempt outcome to the next step and the state of the
// following attempt. It performs no I/O.
//
// DNS and non-JSON outcomes are structural: the mirror is abandoned without
// spending retry budget. Transient failures and slow successes are retried
// on the same mirror with doubling backoff while budget remains. A slow
// success with no budget left is still a success.
func (p RetryPolicy) Decide(a Attempt, o Outcome) (Step, Attempt) {
	canRetry := a.N <= p.Retries
	switch o {
	case OutcomeOK:
		return Step{Action: ActionSuccess}, a
	case OutcomeSlow:
		if canRetry {
			return Step{Action: ActionRetry, Backoff: a.Backoff}, a.next()
		}
		return Step{Action: ActionSuccess}, a
	case OutcomeTransient:
		if canRetry {
			return Step{Action: ActionRetry, Backoff: a.Backoff}, a.next()
		}
		return Step{Action: ActionFailover}, a
	default:
		return Step{Action: ActionFailover}, a
	}
}

func (a Attempt) next() Attempt {
	return Attempt{N: a.N + 1, Backoff: a.Backoff * 2}
}

// classifyError maps a request error to an outcome.
func classifyError(err error) Outcome {
	if isDNSError(err) {
		return OutcomeDNS
	}
	return OutcomeTransient
}

// isDNSError walks the error chain looking for a name-resolution failure.
func isDNSError(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		msg := e.Error()
		if strings.Contains(msg, "no such host") ||
			strings.Contains(msg, "nodename nor servname provided") ||
			strings.Contains(msg, "Name or service not known") {
			return true
		}
	}
	return false
}

// isCancelled reports whether the caller's context ended, as opposed to a
// per-attempt timeout.
func isCancelled(ctx context.Context) bool {
	return ctx.Err() != nil
}
