package gateway

import (
	"time"

	"github.com/yungbote/neurobridge-competency/internal/platform/envutil"
)

// Policy is the single bounded-retry policy applied to every call kind. The
// second attempt repeats the input with an explicit schema instruction.
type Policy struct {
	MaxAttempts    int
	AttemptTimeout time.Duration
}

func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 2, AttemptTimeout: 90 * time.Second}
}

func PolicyFromEnv() Policy {
	p := DefaultPolicy()
	p.AttemptTimeout = envutil.Seconds("GATEWAY_TIMEOUT_SECONDS", p.AttemptTimeout)
	if n := envutil.Int("GATEWAY_MAX_ATTEMPTS", p.MaxAttempts); n >= 1 {
		p.MaxAttempts = n
	}
	return p
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.AttemptTimeout <= 0 {
		p.AttemptTimeout = DefaultPolicy().AttemptTimeout
	}
	return p
}
