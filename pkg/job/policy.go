package job

import (
	"errors"
	"fmt"
	"strings"
)

// FailurePolicy decides what a job does when one of its dependencies ends in
// StatusFailure before reaching the status the job waits for
type FailurePolicy int

const (
	// FailureBlock never treats a failed dependency as ready. The dependent
	// keeps waiting until its context is done.
	FailureBlock FailurePolicy = iota

	// FailurePropagate marks the dependent as failed without spawning it
	FailurePropagate

	// FailureIgnore treats a failed dependency as ready and spawns anyway
	FailureIgnore
)

var policyNames = [...]string{
	FailureBlock:     "block",
	FailurePropagate: "propagate",
	FailureIgnore:    "ignore",
}

// ErrUnknownFailurePolicy is returned by ParseFailurePolicy
var ErrUnknownFailurePolicy = errors.New("unknown failure policy")

func (p FailurePolicy) String() string {
	if p < 0 || int(p) >= len(policyNames) {
		return fmt.Sprintf("FailurePolicy(%d)", int(p))
	}
	return policyNames[p]
}

// ParseFailurePolicy returns the FailurePolicy named by text, ignoring case.
// An empty string is FailureBlock.
func ParseFailurePolicy(text string) (FailurePolicy, error) {
	if text == "" {
		return FailureBlock, nil
	}
	for i, name := range policyNames {
		if strings.EqualFold(text, name) {
			return FailurePolicy(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFailurePolicy, text)
}
