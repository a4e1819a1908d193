package job

import (
	"errors"
	"fmt"
	"strings"
)

// Status is the enum representing the lifecycle phase of a job. The intended
// progression is ready -> starting -> running -> (finish | failure), it is not
// enforced.
type Status int

const (
	StatusReady    Status = iota // the job has been created but Run has not been called
	StatusStarting               // Run was called, waiting on dependencies or spawning
	StatusRunning                // the process was spawned and had not exited when checked
	StatusStopping               // reserved for an external stop operation
	StatusFinish                 // the process exited with code 0
	StatusFailure                // the process exited with a non-zero code
	numStatuses
)

var statusNames = [numStatuses]string{
	StatusReady:    "ready",
	StatusStarting: "starting",
	StatusRunning:  "running",
	StatusStopping: "stopping",
	StatusFinish:   "finish",
	StatusFailure:  "failure",
}

// ErrUnknownStatus is returned when a Status outside of the enumeration is
// used
var ErrUnknownStatus = errors.New("unknown status")

// Statuses returns every valid Status in order
func Statuses() []Status {
	ret := make([]Status, numStatuses)
	for i := range ret {
		ret[i] = Status(i)
	}
	return ret
}

// Valid returns whether s is a member of the enumeration
func (s Status) Valid() bool {
	return s >= 0 && s < numStatuses
}

func (s Status) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

// Terminal returns true for finish and failure
func (s Status) Terminal() bool {
	return s == StatusFinish || s == StatusFailure
}

// rank is the position of s along the progression. finish and failure share
// the last position.
func (s Status) rank() int {
	if s == StatusFailure {
		return int(StatusFinish)
	}
	return int(s)
}

func (s Status) check() error {
	if !s.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownStatus, int(s))
	}
	return nil
}

// ParseStatus returns the Status named by text, ignoring case
func ParseStatus(text string) (Status, error) {
	for i, name := range statusNames {
		if strings.EqualFold(text, name) {
			return Status(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStatus, text)
}
