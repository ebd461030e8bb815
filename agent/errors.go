package agent

import (
	"errors"
	"fmt"
)

var ErrProtocolViolation = errors.New("protocol violation")

// ProtocolViolation reports a callback that does not fit the match so far.
type ProtocolViolation struct {
	Callback string
	Reason   string
}

func (e *ProtocolViolation) Error() string {
	return fmt.Sprintf("protocol violation in %s: %s", e.Callback, e.Reason)
}

func (e *ProtocolViolation) Is(target error) bool { return target == ErrProtocolViolation }

func violation(callback, format string, args ...any) error {
	return &ProtocolViolation{Callback: callback, Reason: fmt.Sprintf(format, args...)}
}
